package file

import (
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"math"

	"github.com/meigma/memarchive/internal/entrytype"
	"github.com/meigma/memarchive/internal/sizing"
)

// ValidateForRead checks that an entry is safe to read from source and
// returns its payload window. It validates:
//   - Compressed and uncompressed sizes are within maxFileSize (if limit > 0)
//   - The uncompressed size fits in memory
//   - dataOffset + CompressedSize doesn't overflow
//   - The payload lies within source
func ValidateForRead(entry *entrytype.Entry, dataOffset uint64, source []byte, maxFileSize uint64) ([]byte, error) {
	if maxFileSize > 0 {
		if entry.CompressedSize > maxFileSize || entry.UncompressedSize > maxFileSize {
			return nil, entrytype.ErrSizeOverflow
		}
	}
	if entry.UncompressedSize > math.MaxInt {
		return nil, entrytype.ErrSizeOverflow
	}
	start, end, ok := sizing.Range(dataOffset, entry.CompressedSize, len(source))
	if !ok {
		return nil, entrytype.ErrSizeOverflow
	}
	return source[start:end:end], nil
}

// ValidateMethod checks that the payload encoding is one the Reader decodes.
// Stored payloads must have equal compressed and uncompressed sizes.
func ValidateMethod(entry *entrytype.Entry) error {
	if entry.Flags&entrytype.FlagEncrypted != 0 {
		return fmt.Errorf("%w: encrypted entries are not supported", entrytype.ErrDecompression)
	}
	switch entry.Method {
	case entrytype.MethodStored:
		if entry.CompressedSize != entry.UncompressedSize {
			return fmt.Errorf("%w: size mismatch", entrytype.ErrDecompression)
		}
		return nil
	case entrytype.MethodDeflated, entrytype.MethodZstd:
		return nil
	default:
		return fmt.Errorf("%w: unsupported method %s", entrytype.ErrDecompression, entry.Method)
	}
}

// CRCReader wraps an io.Reader and computes the IEEE CRC-32 of all data read.
type CRCReader struct {
	r io.Reader
	h hash.Hash32
}

// NewCRCReader creates a reader that checksums while reading.
func NewCRCReader(r io.Reader) *CRCReader {
	return &CRCReader{r: r, h: crc32.NewIEEE()}
}

// Read implements io.Reader.
func (cr *CRCReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		_, _ = cr.h.Write(p[:n]) //nolint:errcheck // hash writes never fail
	}
	return n, err
}

// Sum32 returns the checksum of the data read so far.
func (cr *CRCReader) Sum32() uint32 {
	return cr.h.Sum32()
}
