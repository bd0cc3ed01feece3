package zipindex

import (
	"bytes"
	"io/fs"
	"time"

	"github.com/klauspost/compress/zip"
)

// codecEntry is what the zip codec reports for one central directory entry.
type codecEntry struct {
	name             string
	method           uint16
	crc32            uint32
	compressedSize   uint64
	uncompressedSize uint64
	mode             fs.FileMode
	modified         time.Time
}

// scanCodec lists the archive through the zip codec and keys every entry by
// the offset of its first payload byte. Entries sharing a payload keep the
// first name the codec reported; the central directory pass rejects any
// record whose name disagrees with the local header.
func scanCodec(data []byte) (map[uint64]codecEntry, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, decodeErrorf("zip codec: %v", err)
	}

	byPayload := make(map[uint64]codecEntry, len(zr.File))
	for _, f := range zr.File {
		off, err := f.DataOffset()
		if err != nil {
			return nil, decodeErrorf("zip codec: locate payload of %q: %v", f.Name, err)
		}
		if off < 0 {
			return nil, decodeErrorf("zip codec: negative payload offset for %q", f.Name)
		}
		key := uint64(off)
		if _, ok := byPayload[key]; ok {
			continue
		}
		byPayload[key] = codecEntry{
			name:             f.Name,
			method:           f.Method,
			crc32:            f.CRC32,
			compressedSize:   f.CompressedSize64,
			uncompressedSize: f.UncompressedSize64,
			mode:             f.Mode(),
			modified:         f.Modified,
		}
	}
	return byPayload, nil
}
