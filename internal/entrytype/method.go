// Package entrytype defines the archive entry model shared by the indexer,
// the payload reader, and the public memarchive package. Keeping it separate
// avoids import cycles between them.
package entrytype

// Method identifies how an entry's payload is stored.
//
// The method is resolved once per entry when the archive is indexed, so
// extraction dispatches on a closed set instead of re-reading header fields.
type Method uint8

const (
	MethodUnknown Method = iota
	MethodStored
	MethodDeflated
	MethodZstd
)

// ZIP compression method identifiers as written in local and central headers.
const (
	ZipStore      uint16 = 0
	ZipDeflate    uint16 = 8
	ZipZstdPKWare uint16 = 20
	ZipZstdWinZip uint16 = 93
)

// MethodFromZip maps a ZIP compression method field to a Method.
func MethodFromZip(m uint16) Method {
	switch m {
	case ZipStore:
		return MethodStored
	case ZipDeflate:
		return MethodDeflated
	case ZipZstdPKWare, ZipZstdWinZip:
		return MethodZstd
	default:
		return MethodUnknown
	}
}

// String returns the human-readable name of the method.
func (m Method) String() string {
	switch m {
	case MethodStored:
		return "stored"
	case MethodDeflated:
		return "deflated"
	case MethodZstd:
		return "zstd"
	default:
		return "unknown"
	}
}
