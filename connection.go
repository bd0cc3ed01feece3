package memarchive

import "github.com/meigma/memarchive/internal/cursor"

// ContentType is reported for every archive connection.
const ContentType = "application/octet-stream"

// Connection is an input-only, uncached view of one archive.
//
// Every stream or content view taken from a Connection is independent; none
// of them disturbs the others or the registered bytes.
type Connection struct {
	archive *Archive
	length  int
}

// URL returns the address of the connected archive.
func (c *Connection) URL() string {
	return c.archive.URL()
}

// ContentType returns "application/octet-stream".
func (c *Connection) ContentType() string {
	return ContentType
}

// ContentLength returns the number of bytes remaining when the connection was opened.
func (c *Connection) ContentLength() int64 {
	return int64(c.length)
}

// DoInput reports true: connections are readable.
func (c *Connection) DoInput() bool { return true }

// DoOutput reports false: archives cannot be written through a connection.
func (c *Connection) DoOutput() bool { return false }

// UseCaches reports false.
func (c *Connection) UseCaches() bool { return false }

// AllowUserInteraction reports false.
func (c *Connection) AllowUserInteraction() bool { return false }

// InputStream returns a fresh stream positioned at the first byte.
func (c *Connection) InputStream() *Stream {
	return cursor.New(c.archive.data)
}

// Content returns a capacity-clipped view of the archive bytes.
func (c *Connection) Content() []byte {
	d := c.archive.data
	return d[:len(d):len(d)]
}
