package memarchive

import (
	"errors"
	"fmt"
	"hash/crc32"
	"log/slog"
	"runtime"
	"strconv"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/memarchive/cache"
	"github.com/meigma/memarchive/internal/entrytype"
	"github.com/meigma/memarchive/internal/file"
	"github.com/meigma/memarchive/internal/zipindex"
)

// Re-export types from internal/entrytype for public API.
type (
	// Entry is the indexed metadata of one archive entry.
	Entry = entrytype.Entry

	// Method identifies how an entry's payload is stored.
	Method = entrytype.Method
)

// Re-export method constants.
const (
	MethodUnknown  = entrytype.MethodUnknown
	MethodStored   = entrytype.MethodStored
	MethodDeflated = entrytype.MethodDeflated
	MethodZstd     = entrytype.MethodZstd
)

// Match locates one entry in one bound archive.
type Match struct {
	// Archive is the archive holding the entry.
	Archive *Archive

	// Name is the entry name.
	Name string

	// Offset is the validated local header offset of the entry.
	Offset uint64
}

// Path returns the "{archive path}!/{name}" address of the match.
func (m Match) Path() string {
	return m.Archive.ResourcePath(m.Name)
}

// URL returns the scheme-qualified address of the match.
func (m Match) URL() string {
	return m.Archive.ResourceURL(m.Name)
}

// Resource is an extracted entry.
type Resource struct {
	Match

	// Data is the decoded payload and must not be modified. For stored
	// entries it is a view of the archive bytes. With a cache configured,
	// compressed entries may return the slice the cache holds, shared with
	// every other reader of that entry.
	Data []byte
}

// binding pairs a bound archive with its table of contents.
type binding struct {
	archive *Archive
	toc     *zipindex.TOC
	reader  *file.Reader
}

// Resolver finds entries across an ordered list of archives.
//
// Archives are searched in the order they were bound; the first archive
// holding a name wins single-result lookups. Tables of contents are built
// once by NewResolver and never change, so a Resolver is safe for
// concurrent use.
type Resolver struct {
	bindings  []*binding
	byArchive map[*Archive]*binding

	indexConcurrency      int
	maxEntries            uint64
	maxFileSize           uint64
	maxDecoderMemory      uint64
	decoderConcurrencySet bool
	decoderConcurrency    int
	cache                 cache.Cache        // nil = no caching
	readGroup             singleflight.Group // zero value is valid
	logger                *slog.Logger
}

// NewResolver indexes the archives behind handles and binds them in order.
//
// Every archive is validated before NewResolver returns; the first archive
// that fails indexing fails construction with an error wrapping ErrDecode.
// The Resolver keeps the archives alive but not the handles, so dropping the
// handles releases their registrations without affecting the Resolver.
func NewResolver(handles []*Handle, opts ...ResolverOption) (*Resolver, error) {
	r := &Resolver{
		maxEntries:       zipindex.DefaultMaxEntries,
		maxFileSize:      file.DefaultMaxFileSize,
		maxDecoderMemory: file.DefaultMaxDecoderMemory,
		logger:           slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}

	archives := make([]*Archive, len(handles))
	for i, h := range handles {
		if h == nil {
			return nil, fmt.Errorf("new resolver: handle %d is nil", i)
		}
		archives[i] = h.archive
	}

	tocs := make([]*zipindex.TOC, len(archives))
	var g errgroup.Group
	if r.indexConcurrency > 0 {
		g.SetLimit(r.indexConcurrency)
	}
	for i, a := range archives {
		g.Go(func() error {
			toc, err := zipindex.Build(a.data,
				zipindex.WithLogger(r.logger.With(slog.String("archive", a.path))),
				zipindex.WithMaxEntries(r.maxEntries))
			if err != nil {
				return fmt.Errorf("index %s: %w", a.path, err)
			}
			tocs[i] = toc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	readerOpts := []file.Option{
		file.WithMaxFileSize(r.maxFileSize),
		file.WithMaxDecoderMemory(r.maxDecoderMemory),
	}
	if r.decoderConcurrencySet {
		readerOpts = append(readerOpts, file.WithDecoderConcurrency(r.decoderConcurrency))
	}

	r.bindings = make([]*binding, len(archives))
	r.byArchive = make(map[*Archive]*binding, len(archives))
	for i, a := range archives {
		b := &binding{archive: a, toc: tocs[i], reader: file.NewReader(a.data, readerOpts...)}
		r.bindings[i] = b
		if _, ok := r.byArchive[a]; !ok {
			r.byArchive[a] = b
		}
		r.logger.Debug("archive indexed",
			slog.String("archive", a.path),
			slog.Int("entries", tocs[i].Len()),
			slog.Int("duplicates", tocs[i].Duplicates()))
	}
	return r, nil
}

// Len returns the number of bound archives.
func (r *Resolver) Len() int {
	return len(r.bindings)
}

// Archives returns the bound archives in search order.
func (r *Resolver) Archives() []*Archive {
	out := make([]*Archive, len(r.bindings))
	for i, b := range r.bindings {
		out[i] = b.archive
	}
	return out
}

// URLs returns the addresses of the bound archives in search order.
func (r *Resolver) URLs() []string {
	out := make([]string, len(r.bindings))
	for i, b := range r.bindings {
		out[i] = b.archive.URL()
	}
	return out
}

// Find returns the first bound archive holding name.
func (r *Resolver) Find(name string) (Match, bool) {
	for _, b := range r.bindings {
		if off, ok := b.toc.Offset(name); ok {
			return Match{Archive: b.archive, Name: name, Offset: off}, true
		}
	}
	return Match{}, false
}

// FindAll returns every bound archive holding name, in search order.
func (r *Resolver) FindAll(name string) []Match {
	var out []Match
	for _, b := range r.bindings {
		if off, ok := b.toc.Offset(name); ok {
			out = append(out, Match{Archive: b.archive, Name: name, Offset: off})
		}
	}
	return out
}

// Extract returns the decoded payload of a match.
func (r *Resolver) Extract(m Match) ([]byte, error) {
	return r.ExtractAt(m.Archive, m.Offset, m.Name)
}

// ExtractAt returns the decoded payload of the entry name whose local header
// starts at offset in a.
//
// The header is re-read before decoding. If it no longer names the entry the
// error wraps both ErrEntryDrift and ErrDecode. An archive that is not bound,
// or an offset the index does not record for name, yields ErrNotFound.
func (r *Resolver) ExtractAt(a *Archive, offset uint64, name string) ([]byte, error) {
	defer runtime.KeepAlive(a)

	b, ok := r.byArchive[a]
	if !ok {
		return nil, fmt.Errorf("extract %s: archive not bound: %w", name, ErrNotFound)
	}
	entry, ok := b.toc.Lookup(name)
	if !ok || entry.Offset != offset {
		return nil, fmt.Errorf("extract %s at %d in %s: %w", name, offset, a.path, ErrNotFound)
	}

	h, err := zipindex.ReadLocalHeader(a.data, offset)
	if err != nil {
		return nil, fmt.Errorf("extract %s from %s: %w", name, a.path, err)
	}
	if h.Name != name {
		return nil, fmt.Errorf("extract %s from %s: header at %d names %q: %w: %w",
			name, a.path, offset, h.Name, ErrEntryDrift, ErrDecode)
	}

	if r.cache == nil || entry.Method == entrytype.MethodStored {
		return b.reader.ReadAll(&entry, h.DataOffset)
	}
	return r.extractCached(b, &entry, h.DataOffset)
}

// extractCached serves compressed entries through the cache, decoding each
// entry at most once across concurrent misses.
func (r *Resolver) extractCached(b *binding, entry *entrytype.Entry, dataOffset uint64) ([]byte, error) {
	key := cacheKey(b.archive, entry.Offset)

	if data, ok := r.cache.Get(key); ok {
		if cachedIntact(data, entry) {
			r.logger.Debug("extract cache hit", slog.String("key", key))
			return data, nil
		}
		_ = r.cache.Delete(key) //nolint:errcheck // best-effort cache cleanup on corruption
	}

	r.logger.Debug("extract cache miss", slog.String("key", key))
	result, err, _ := r.readGroup.Do(key, func() (any, error) {
		if data, ok := r.cache.Get(key); ok && cachedIntact(data, entry) {
			return data, nil
		}
		data, err := b.reader.ReadAll(entry, dataOffset)
		if err != nil {
			return nil, err
		}
		if err := r.cache.Put(key, data); err != nil {
			r.logger.Warn("extract cache put failed",
				slog.String("key", key),
				slog.Any("error", err))
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil //nolint:errcheck // type assertion always succeeds when err is nil
}

// cachedIntact reports whether a cached payload still matches the entry's
// recorded size and CRC-32.
func cachedIntact(data []byte, entry *entrytype.Entry) bool {
	return uint64(len(data)) == entry.UncompressedSize && crc32.ChecksumIEEE(data) == entry.CRC32
}

// cacheKey identifies an entry by archive content and header offset.
func cacheKey(a *Archive, offset uint64) string {
	return a.Digest().String() + "@" + strconv.FormatUint(offset, 10)
}

// ReadResource extracts the first entry named name.
// A name absent from every bound archive yields ErrNotFound.
func (r *Resolver) ReadResource(name string) (Resource, error) {
	m, ok := r.Find(name)
	if !ok {
		return Resource{}, fmt.Errorf("%s: %w", name, ErrNotFound)
	}
	data, err := r.Extract(m)
	if err != nil {
		return Resource{}, err
	}
	return Resource{Match: m, Data: data}, nil
}

// ReadResources extracts every entry named name, in search order.
// A name absent from every bound archive yields an empty result and no error.
func (r *Resolver) ReadResources(name string) ([]Resource, error) {
	matches := r.FindAll(name)
	out := make([]Resource, 0, len(matches))
	for _, m := range matches {
		data, err := r.Extract(m)
		if err != nil {
			return nil, err
		}
		out = append(out, Resource{Match: m, Data: data})
	}
	return out, nil
}

// Entry returns the indexed metadata of the first entry named name.
func (r *Resolver) Entry(name string) (Entry, *Archive, bool) {
	for _, b := range r.bindings {
		if e, ok := b.toc.Lookup(name); ok {
			return e, b.archive, true
		}
	}
	return Entry{}, nil, false
}

// Names returns the distinct entry names across all bound archives, in
// search order.
func (r *Resolver) Names() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, b := range r.bindings {
		for name := range b.toc.Names() {
			if _, ok := seen[name]; ok {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

// Duplicates returns how many entries of a were ignored during indexing
// because an earlier entry had the same name. It returns 0 for archives the
// Resolver does not bind.
func (r *Resolver) Duplicates(a *Archive) int {
	b, ok := r.byArchive[a]
	if !ok {
		return 0
	}
	return b.toc.Duplicates()
}

// isNotFound reports whether err means the entry does not exist.
func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
