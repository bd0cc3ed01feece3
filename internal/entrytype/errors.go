package entrytype

import "errors"

// Sentinel errors for archive operations.
var (
	// ErrDecode is returned when an archive's structure is malformed or its
	// local headers and central directory disagree.
	ErrDecode = errors.New("memarchive: malformed archive")

	// ErrEntryDrift is returned when the local header at an indexed offset no
	// longer names the entry the index recorded there.
	ErrEntryDrift = errors.New("memarchive: entry header drift")

	// ErrDecompression is returned when decompression fails.
	ErrDecompression = errors.New("memarchive: decompression failed")

	// ErrCRCMismatch is returned when a decoded payload does not match its CRC-32.
	ErrCRCMismatch = errors.New("memarchive: crc32 mismatch")

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = errors.New("memarchive: size overflow")
)
