package zipindex

import (
	"encoding/binary"
	"fmt"
	"unicode/utf8"

	"github.com/meigma/memarchive/internal/cursor"
	"github.com/meigma/memarchive/internal/entrytype"
	"github.com/meigma/memarchive/internal/sizing"
)

// Record signatures.
const (
	sigLocalHeader    uint32 = 0x04034b50
	sigCentralDir     uint32 = 0x02014b50
	sigEndOfDir       uint32 = 0x06054b50
	sigZip64EndOfDir  uint32 = 0x06064b50
	sigDataDescriptor uint32 = 0x08074b50
)

const (
	// escape32 marks a 32-bit field whose real value lives in a Zip64 record.
	escape32 uint32 = 0xFFFFFFFF

	zip64ExtraTag uint16 = 0x0001

	// zip64EndPreamble covers the record size and both version fields.
	zip64EndPreamble = 8 + 2 + 2
)

// LocalHeader is a decoded local file header.
type LocalHeader struct {
	// Offset is where the header's signature starts.
	Offset uint64

	Flags            uint16
	Method           uint16
	CRC32            uint32
	CompressedSize   uint32
	UncompressedSize uint32
	Name             string
	Extra            []byte

	// DataOffset is the first payload byte, immediately after the extra field.
	DataOffset uint64
}

// HasDataDescriptor reports whether sizes and CRC follow the payload.
func (h *LocalHeader) HasDataDescriptor() bool {
	return h.Flags&entrytype.FlagDataDescriptor != 0
}

// Zip64Sizes reports whether the header defers its sizes to Zip64 fields.
func (h *LocalHeader) Zip64Sizes() bool {
	return h.CompressedSize == escape32 || h.UncompressedSize == escape32
}

// ReadLocalHeader decodes the local file header that starts at offset.
func ReadLocalHeader(data []byte, offset uint64) (LocalHeader, error) {
	off, err := sizing.ToInt(offset, entrytype.ErrSizeOverflow)
	if err != nil {
		return LocalHeader{}, decodeErrorf("local header offset %d: %v", offset, err)
	}
	c, err := cursor.NewAt(data, off)
	if err != nil {
		return LocalHeader{}, decodeErrorf("local header offset %d outside archive of %d bytes", offset, len(data))
	}
	return readLocalHeader(c)
}

func readLocalHeader(c *cursor.Cursor) (LocalHeader, error) {
	h := LocalHeader{Offset: uint64(c.Pos())} //nolint:gosec // positions are non-negative
	r := fieldReader{c: c}

	if sig := r.u32(); r.err == nil && sig != sigLocalHeader {
		return h, decodeErrorf("expected local header at %d, found signature 0x%08x", h.Offset, sig)
	}
	r.skip(2) // version needed to extract
	h.Flags = r.u16()
	h.Method = r.u16()
	r.skip(4) // modification time and date
	h.CRC32 = r.u32()
	h.CompressedSize = r.u32()
	h.UncompressedSize = r.u32()
	nameLen := r.u16()
	extraLen := r.u16()
	name := r.bytes(int(nameLen))
	h.Extra = r.bytes(int(extraLen))
	if r.err != nil {
		return h, decodeErrorf("truncated local header at %d: %v", h.Offset, r.err)
	}
	if !utf8.Valid(name) {
		return h, decodeErrorf("local header at %d has a name that is not valid UTF-8", h.Offset)
	}
	h.Name = string(name)
	h.DataOffset = uint64(c.Pos()) //nolint:gosec // positions are non-negative
	return h, nil
}

// skipDataDescriptor steps over the descriptor trailing a payload. The
// signature is optional, so a leading signature word only counts as one when
// the entry's CRC-32 follows it; an unsigned descriptor may carry a CRC equal
// to the signature. Wide descriptors carry 8-byte sizes.
func skipDataDescriptor(c *cursor.Cursor, wide bool, crc uint32) error {
	if p, err := c.Peek(8); err == nil &&
		binary.LittleEndian.Uint32(p) == sigDataDescriptor &&
		binary.LittleEndian.Uint32(p[4:]) == crc {
		if err := c.Skip(4); err != nil {
			return err
		}
	}
	n := 4 + 4 + 4 // crc32, compressed size, uncompressed size
	if wide {
		n = 4 + 8 + 8
	}
	return c.Skip(n)
}

// zip64Offset scans extra for the Zip64 extended information block and
// returns the local header offset stored in it. Fields for sizes that were
// not escaped are absent from the block, so they are only skipped when set.
func zip64Offset(extra []byte, uncompressed, compressed uint32) (uint64, bool) {
	ec := cursor.New(extra)
	for ec.Len() >= 4 {
		tag, _ := ec.Uint16()
		size, _ := ec.Uint16()
		field, err := ec.Next(int(size))
		if err != nil {
			return 0, false
		}
		if tag != zip64ExtraTag {
			continue
		}
		fc := cursor.New(field)
		if uncompressed == escape32 && fc.Skip(8) != nil {
			return 0, false
		}
		if compressed == escape32 && fc.Skip(8) != nil {
			return 0, false
		}
		v, err := fc.Uint64()
		if err != nil {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

// fieldReader reads consecutive header fields and keeps the first error, so a
// header can be decoded field by field and checked once.
type fieldReader struct {
	c   *cursor.Cursor
	err error
}

func (r *fieldReader) u16() uint16 {
	if r.err != nil {
		return 0
	}
	v, err := r.c.Uint16()
	r.err = err
	return v
}

func (r *fieldReader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	v, err := r.c.Uint32()
	r.err = err
	return v
}

func (r *fieldReader) u64() uint64 {
	if r.err != nil {
		return 0
	}
	v, err := r.c.Uint64()
	r.err = err
	return v
}

func (r *fieldReader) skip(n int) {
	if r.err != nil {
		return
	}
	r.err = r.c.Skip(n)
}

func (r *fieldReader) bytes(n int) []byte {
	if r.err != nil {
		return nil
	}
	b, err := r.c.Next(n)
	r.err = err
	return b
}

func decodeErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", entrytype.ErrDecode, fmt.Sprintf(format, args...))
}
