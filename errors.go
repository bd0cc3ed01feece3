package memarchive

import (
	"errors"

	"github.com/meigma/memarchive/internal/entrytype"
)

// Sentinel errors re-exported from internal/entrytype.
var (
	// ErrDecode is returned when an archive is malformed or its local headers
	// and central directory disagree.
	ErrDecode = entrytype.ErrDecode

	// ErrEntryDrift is returned when the local header at an indexed offset no
	// longer names the requested entry. Errors wrapping it also wrap ErrDecode.
	ErrEntryDrift = entrytype.ErrEntryDrift

	// ErrDecompression is returned when decompression fails.
	ErrDecompression = entrytype.ErrDecompression

	// ErrCRCMismatch is returned when a decoded payload fails its CRC-32 check.
	ErrCRCMismatch = entrytype.ErrCRCMismatch

	// ErrSizeOverflow is returned when byte counts exceed supported limits.
	ErrSizeOverflow = entrytype.ErrSizeOverflow
)

// Sentinel errors specific to the memarchive package.
var (
	// ErrAlreadyRegistered is returned when a path is registered while a
	// handle for it is still reachable.
	ErrAlreadyRegistered = errors.New("memarchive: path already registered")

	// ErrInvalidPath is returned when registering an empty path.
	ErrInvalidPath = errors.New("memarchive: invalid path")

	// ErrNotFound is returned when no bound archive contains the requested entry.
	ErrNotFound = errors.New("memarchive: entry not found")

	// ErrClassNotFound is returned by Loader.LoadClass when no bound archive
	// contains the class file.
	ErrClassNotFound = errors.New("memarchive: class not found")
)
