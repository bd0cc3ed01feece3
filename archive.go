package memarchive

import (
	"sync"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/memarchive/internal/cursor"
)

// ResourceSeparator joins an archive path and an entry name in resource
// addresses, as in "/lib1.jar!/pkg/One.class".
const ResourceSeparator = "!/"

// Stream is a sequential reader over a shared byte window. It supports
// io.Reader, io.ByteReader, io.ReaderAt, io.Seeker and mark/reset.
type Stream = cursor.Cursor

// Archive is one registered archive image.
//
// The bytes are shared with whoever registered them and are never modified.
// An Archive stays alive as long as a Handle or a Resolver refers to it.
type Archive struct {
	scheme string
	path   string
	data   []byte

	digestOnce sync.Once
	digest     digest.Digest
}

func newArchive(scheme, path string, data []byte) *Archive {
	return &Archive{
		scheme: scheme,
		path:   path,
		data:   data[:len(data):len(data)],
	}
}

// Path returns the logical path the archive was registered under.
func (a *Archive) Path() string {
	return a.path
}

// URL returns the archive address, e.g. "memory:/lib1.jar".
func (a *Archive) URL() string {
	return a.scheme + ":" + a.path
}

// Size returns the archive length in bytes.
func (a *Archive) Size() int {
	return len(a.data)
}

// Bytes returns a view of the archive image. Callers must not modify it.
func (a *Archive) Bytes() []byte {
	return a.data
}

// Digest returns the sha256 digest of the archive image.
// It is computed on first use.
func (a *Archive) Digest() digest.Digest {
	a.digestOnce.Do(func() {
		a.digest = digest.FromBytes(a.data)
	})
	return a.digest
}

// ResourcePath returns the "{path}!/{name}" address of an entry.
func (a *Archive) ResourcePath(name string) string {
	return a.path + ResourceSeparator + name
}

// ResourceURL returns the ResourcePath of an entry prefixed with the scheme.
func (a *Archive) ResourceURL(name string) string {
	return a.scheme + ":" + a.ResourcePath(name)
}

// Open returns a connection reading the archive from its first byte.
func (a *Archive) Open() *Connection {
	return &Connection{archive: a, length: len(a.data)}
}
