package entrytype

import (
	"io/fs"
	"time"
)

// Entry describes one indexed archive member.
type Entry struct {
	// Name is the entry name exactly as recorded in the archive (e.g., "pkg/One.class").
	Name string

	// Offset is the byte offset of the entry's local file header in the archive.
	Offset uint64

	// Method is the payload encoding.
	Method Method

	// Flags is the general purpose bit flag from the local header.
	Flags uint16

	// CompressedSize is the number of payload bytes stored in the archive.
	CompressedSize uint64

	// UncompressedSize is the payload size after decoding.
	// Equal to CompressedSize for stored entries.
	UncompressedSize uint64

	// CRC32 is the IEEE checksum of the decoded payload.
	CRC32 uint32

	// Mode is the file mode reported by the central directory.
	Mode fs.FileMode

	// Modified is the entry's modification time.
	Modified time.Time
}

// IsDir reports whether the entry names a directory.
func (e *Entry) IsDir() bool {
	return len(e.Name) > 0 && e.Name[len(e.Name)-1] == '/'
}

// General purpose bit flags.
const (
	FlagEncrypted      uint16 = 0x1
	FlagDataDescriptor uint16 = 0x8
	FlagUTF8           uint16 = 0x800
)
