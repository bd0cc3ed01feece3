package zipindex

import (
	"encoding/binary"
	"log/slog"

	"github.com/meigma/memarchive/internal/cursor"
	"github.com/meigma/memarchive/internal/entrytype"
	"github.com/meigma/memarchive/internal/sizing"
)

// DefaultMaxEntries is the default limit on central directory records.
const DefaultMaxEntries = 1 << 20

// Option configures Build.
type Option func(*builder)

// WithLogger sets the logger used for duplicate-entry warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(b *builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMaxEntries limits the number of central directory records accepted.
// Set to 0 to disable the limit.
func WithMaxEntries(n uint64) Option {
	return func(b *builder) {
		b.maxEntries = n
	}
}

type builder struct {
	data       []byte
	logger     *slog.Logger
	maxEntries uint64

	codec        map[uint64]codecEntry
	local        map[uint64]entrytype.Entry // pass 1 results by header offset
	centralStart int
}

// Build indexes the archive image in data.
//
// data is only read; Build never modifies it.
func Build(data []byte, opts ...Option) (*TOC, error) {
	b := &builder{
		data:       data,
		logger:     slog.New(slog.DiscardHandler),
		maxEntries: DefaultMaxEntries,
	}
	for _, opt := range opts {
		opt(b)
	}

	codec, err := scanCodec(data)
	if err != nil {
		return nil, err
	}
	b.codec = codec
	b.local = make(map[uint64]entrytype.Entry, len(codec))

	if err := b.scanLocal(); err != nil {
		return nil, err
	}
	return b.scanCentral()
}

// scanLocal is pass 1: it walks consecutive local file headers from the start
// of the image and stops at the first signature that is not one.
func (b *builder) scanLocal() error {
	c := cursor.New(b.data)
	for {
		p, err := c.Peek(4)
		if err != nil {
			return decodeErrorf("archive truncated at %d before the central directory", c.Pos())
		}
		if binary.LittleEndian.Uint32(p) != sigLocalHeader {
			break
		}

		h, err := readLocalHeader(c)
		if err != nil {
			return err
		}
		ce, ok := b.codec[h.DataOffset]
		if !ok {
			return decodeErrorf("local header %q at %d is not listed in the central directory", h.Name, h.Offset)
		}
		if ce.name != h.Name {
			return decodeErrorf("local header at %d names %q but the codec reports %q", h.Offset, h.Name, ce.name)
		}
		if ce.method != h.Method {
			return decodeErrorf("local header %q at %d uses method %d but the codec reports %d", h.Name, h.Offset, h.Method, ce.method)
		}

		size := uint64(h.CompressedSize)
		if h.HasDataDescriptor() || h.Zip64Sizes() {
			size = ce.compressedSize
		} else if size != ce.compressedSize {
			return decodeErrorf("local header %q at %d declares %d payload bytes but the codec reports %d", h.Name, h.Offset, size, ce.compressedSize)
		}
		n, err := sizing.ToInt(size, entrytype.ErrSizeOverflow)
		if err != nil {
			return decodeErrorf("payload of %q at %d: %v", h.Name, h.Offset, err)
		}
		if err := c.Skip(n); err != nil {
			return decodeErrorf("payload of %q at %d overruns the archive", h.Name, h.Offset)
		}
		if h.HasDataDescriptor() {
			wide := h.Zip64Sizes() || ce.compressedSize >= uint64(escape32) || ce.uncompressedSize >= uint64(escape32)
			if err := skipDataDescriptor(c, wide, ce.crc32); err != nil {
				return decodeErrorf("data descriptor of %q at %d overruns the archive", h.Name, h.Offset)
			}
		}

		b.local[h.Offset] = entrytype.Entry{
			Name:             h.Name,
			Offset:           h.Offset,
			Method:           entrytype.MethodFromZip(h.Method),
			Flags:            h.Flags,
			CompressedSize:   ce.compressedSize,
			UncompressedSize: ce.uncompressedSize,
			CRC32:            ce.crc32,
			Mode:             ce.mode,
			Modified:         ce.modified,
		}
	}
	b.centralStart = c.Pos()
	return nil
}

// scanCentral is pass 2: it walks the central directory that follows the
// last local header and builds the TOC from records that agree with pass 1.
func (b *builder) scanCentral() (*TOC, error) {
	c, err := cursor.NewAt(b.data, b.centralStart)
	if err != nil {
		return nil, decodeErrorf("central directory start %d: %v", b.centralStart, err)
	}
	toc := newTOC(len(b.local))

	for {
		at := c.Pos()
		sig, err := c.Uint32()
		if err != nil {
			return nil, decodeErrorf("archive truncated at %d inside the central directory", at)
		}

		switch sig {
		case sigCentralDir:
			if b.maxEntries > 0 && toc.Records() >= b.maxEntries {
				return nil, decodeErrorf("central directory exceeds %d records", b.maxEntries)
			}
			if err := b.centralRecord(c, at, toc); err != nil {
				return nil, err
			}
		case sigEndOfDir:
			if err := b.endOfDir(c, at, toc.Records()); err != nil {
				return nil, err
			}
			return toc, nil
		case sigZip64EndOfDir:
			if err := b.zip64EndOfDir(c, at, toc.Records()); err != nil {
				return nil, err
			}
			return toc, nil
		default:
			return nil, decodeErrorf("unexpected signature 0x%08x at %d", sig, at)
		}
	}
}

func (b *builder) centralRecord(c *cursor.Cursor, at int, toc *TOC) error {
	r := fieldReader{c: c}
	r.skip(2 + 2 + 2 + 2 + 4 + 4) // versions, flags, method, time and date, crc32
	compressed := r.u32()
	uncompressed := r.u32()
	nameLen := r.u16()
	extraLen := r.u16()
	commentLen := r.u16()
	r.skip(2 + 2 + 4) // disk number start, internal and external attributes
	offset32 := r.u32()
	name := r.bytes(int(nameLen))
	extra := r.bytes(int(extraLen))
	r.skip(int(commentLen))
	if r.err != nil {
		return decodeErrorf("truncated central directory record at %d: %v", at, r.err)
	}

	offset := uint64(offset32)
	if offset32 == escape32 {
		var ok bool
		offset, ok = zip64Offset(extra, uncompressed, compressed)
		if !ok {
			return decodeErrorf("central directory record %q at %d escapes its offset without a Zip64 field", name, at)
		}
	}
	if offset >= uint64(len(b.data)) {
		return decodeErrorf("central directory record %q at %d points at %d, outside the archive of %d bytes", name, at, offset, len(b.data))
	}

	e, ok := b.local[offset]
	if !ok {
		return decodeErrorf("central directory record %q at %d points at %d, which is not a local header", name, at, offset)
	}
	if e.Name != string(name) {
		return decodeErrorf("central directory record %q at %d points at the local header for %q", name, at, e.Name)
	}

	if !toc.add(e) {
		kept, _ := toc.Offset(e.Name)
		b.logger.Warn("duplicate archive entry ignored",
			slog.String("name", e.Name),
			slog.Uint64("offset", offset),
			slog.Uint64("kept_offset", kept))
	}
	return nil
}

func (b *builder) endOfDir(c *cursor.Cursor, at int, records uint64) error {
	r := fieldReader{c: c}
	disk := r.u16()
	dirDisk := r.u16()
	onDisk := r.u16()
	total := r.u16()
	dirSize := r.u32()
	dirOffset := r.u32()
	if r.err != nil {
		return decodeErrorf("truncated end of central directory at %d: %v", at, r.err)
	}
	if err := b.checkEnd(uint64(disk), uint64(dirDisk), uint64(onDisk), uint64(total), records); err != nil {
		return err
	}
	if dirOffset != escape32 && uint64(dirOffset) != uint64(b.centralStart) { //nolint:gosec // non-negative
		return decodeErrorf("end of central directory places the directory at %d, found at %d", dirOffset, b.centralStart)
	}
	if dirSize != escape32 && uint64(dirSize) != uint64(at-b.centralStart) { //nolint:gosec // non-negative
		return decodeErrorf("end of central directory declares %d directory bytes, found %d", dirSize, at-b.centralStart)
	}
	return nil
}

func (b *builder) zip64EndOfDir(c *cursor.Cursor, at int, records uint64) error {
	r := fieldReader{c: c}
	r.skip(zip64EndPreamble)
	disk := r.u32()
	dirDisk := r.u32()
	onDisk := r.u64()
	total := r.u64()
	dirSize := r.u64()
	dirOffset := r.u64()
	if r.err != nil {
		return decodeErrorf("truncated Zip64 end of central directory at %d: %v", at, r.err)
	}
	if err := b.checkEnd(uint64(disk), uint64(dirDisk), onDisk, total, records); err != nil {
		return err
	}
	if dirOffset != uint64(b.centralStart) { //nolint:gosec // non-negative
		return decodeErrorf("Zip64 end of central directory places the directory at %d, found at %d", dirOffset, b.centralStart)
	}
	if dirSize != uint64(at-b.centralStart) { //nolint:gosec // non-negative
		return decodeErrorf("Zip64 end of central directory declares %d directory bytes, found %d", dirSize, at-b.centralStart)
	}
	return nil
}

func (b *builder) checkEnd(disk, dirDisk, onDisk, total, records uint64) error {
	if disk != 0 || dirDisk != 0 {
		return decodeErrorf("multi-disk archives are not supported (disk %d, directory disk %d)", disk, dirDisk)
	}
	if onDisk != records || total != records {
		return decodeErrorf("end of central directory declares %d entries on disk and %d in total, found %d", onDisk, total, records)
	}
	return nil
}
