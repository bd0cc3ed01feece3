// Package file decodes entry payloads out of an in-memory archive image.
package file

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/meigma/memarchive/internal/entrytype"
	"github.com/meigma/memarchive/internal/sizing"
)

const (
	// DefaultMaxFileSize is the default maximum entry size (256MB).
	DefaultMaxFileSize = 256 << 20

	// DefaultMaxDecoderMemory is the default maximum decoder memory (256MB).
	DefaultMaxDecoderMemory = 256 << 20
)

// Reader decodes and verifies entry payloads from one archive image.
//
// A Reader is safe for concurrent use.
type Reader struct {
	source                []byte
	maxFileSize           uint64
	maxDecoderMemory      uint64
	decoderConcurrencySet bool
	decoderConcurrency    int
	decoderLowmemSet      bool
	decoderLowmem         bool
	zstd                  *DecompressPool
	inflate               *InflatePool
}

// Option configures a Reader.
type Option func(*Reader)

// WithMaxFileSize sets the maximum entry size limit, compressed or not.
// Set to 0 to disable the limit.
func WithMaxFileSize(limit uint64) Option {
	return func(r *Reader) {
		r.maxFileSize = limit
	}
}

// WithMaxDecoderMemory sets the maximum zstd decoder memory limit.
// Set to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) Option {
	return func(r *Reader) {
		r.maxDecoderMemory = limit
	}
}

// WithDecoderConcurrency sets the zstd decoder concurrency (default: 1).
// Values < 0 are treated as 0 (use GOMAXPROCS).
func WithDecoderConcurrency(n int) Option {
	return func(r *Reader) {
		if n < 0 {
			n = 0
		}
		r.decoderConcurrency = n
		r.decoderConcurrencySet = true
	}
}

// WithDecoderLowmem sets whether the zstd decoder should use low-memory mode (default: false).
func WithDecoderLowmem(enabled bool) Option {
	return func(r *Reader) {
		r.decoderLowmem = enabled
		r.decoderLowmemSet = true
	}
}

// NewReader creates a Reader over the archive image in source.
// source is never modified.
func NewReader(source []byte, opts ...Option) *Reader {
	r := &Reader{
		source:           source,
		maxFileSize:      DefaultMaxFileSize,
		maxDecoderMemory: DefaultMaxDecoderMemory,
		inflate:          NewInflatePool(),
	}
	for _, opt := range opts {
		opt(r)
	}
	poolOpts := make([]decompressOption, 0, 2)
	if r.decoderConcurrencySet {
		poolOpts = append(poolOpts, withDecoderConcurrency(r.decoderConcurrency))
	}
	if r.decoderLowmemSet {
		poolOpts = append(poolOpts, withDecoderLowmem(r.decoderLowmem))
	}
	r.zstd = NewDecompressPool(r.maxDecoderMemory, poolOpts...)
	return r
}

// ReadAll decodes the payload of entry, which starts at dataOffset, and
// verifies its size and CRC-32.
//
// Stored payloads are returned as a capacity-clipped view of the source; the
// caller must not modify them. Compressed payloads are freshly allocated.
func (r *Reader) ReadAll(entry *entrytype.Entry, dataOffset uint64) ([]byte, error) {
	payload, err := ValidateForRead(entry, dataOffset, r.source, r.maxFileSize)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", entry.Name, err)
	}
	if err := ValidateMethod(entry); err != nil {
		return nil, fmt.Errorf("read %s: %w", entry.Name, err)
	}

	if entry.Method == entrytype.MethodStored {
		if crc32.ChecksumIEEE(payload) != entry.CRC32 {
			return nil, fmt.Errorf("read %s: %w", entry.Name, entrytype.ErrCRCMismatch)
		}
		return payload, nil
	}

	reader, release, err := r.entryReader(entry, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %v", entry.Name, entrytype.ErrDecompression, err)
	}
	defer release()

	content, sum, err := readContentAndCRC(entry, reader)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", entry.Name, err)
	}
	if sum != entry.CRC32 {
		return nil, fmt.Errorf("read %s: %w", entry.Name, entrytype.ErrCRCMismatch)
	}
	return content, nil
}

// entryReader returns a decoder for a compressed payload.
func (r *Reader) entryReader(entry *entrytype.Entry, payload io.Reader) (io.Reader, func(), error) {
	switch entry.Method {
	case entrytype.MethodDeflated:
		return r.inflate.Get(payload)
	case entrytype.MethodZstd:
		return r.zstd.Get(payload)
	default:
		return nil, nil, fmt.Errorf("unsupported method %s", entry.Method)
	}
}

// readContentAndCRC reads the decoded payload, which must be exactly the
// declared uncompressed size, and checksums it on the way. The buffer grows
// with the data rather than trusting the declared size up front.
func readContentAndCRC(entry *entrytype.Entry, reader io.Reader) ([]byte, uint32, error) {
	cr := NewCRCReader(reader)
	content, err := sizing.ReadAllWithLimit(cr, entry.UncompressedSize, entrytype.ErrSizeOverflow)
	if errors.Is(err, entrytype.ErrSizeOverflow) {
		return nil, 0, err
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", entrytype.ErrDecompression, err)
	}
	if uint64(len(content)) != entry.UncompressedSize {
		return nil, 0, fmt.Errorf("%w: unexpected EOF after %d of %d bytes",
			entrytype.ErrDecompression, len(content), entry.UncompressedSize)
	}
	return content, cr.Sum32(), nil
}
