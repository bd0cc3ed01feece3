// Package cursor provides sequential, mark/reset-capable access to a window of
// a shared byte slice.
//
// A Cursor never copies the bytes it reads over: Next returns sub-slices of the
// window and the window itself aliases the caller's memory. Only the position
// and mark are private to each Cursor, so any number of cursors may read the
// same buffer independently. A single Cursor is not safe for concurrent use.
package cursor

import (
	"encoding/binary"
	"errors"
	"io"
)

var (
	// ErrShortBuffer is returned when a read would cross the end of the window.
	ErrShortBuffer = errors.New("cursor: short buffer")

	// ErrNoMark is returned by Reset when no mark has been set.
	ErrNoMark = errors.New("cursor: no mark set")

	// ErrInvalidPosition is returned when seeking outside the window.
	ErrInvalidPosition = errors.New("cursor: invalid position")
)

// Cursor reads a fixed window of bytes from front to back.
type Cursor struct {
	data []byte
	pos  int
	mark int
}

// Interface compliance.
var (
	_ io.Reader     = (*Cursor)(nil)
	_ io.ByteReader = (*Cursor)(nil)
	_ io.ReaderAt   = (*Cursor)(nil)
	_ io.Seeker     = (*Cursor)(nil)
)

// New returns a cursor positioned at the start of data.
//
// The window is clipped to len(data) so nothing reachable through the cursor
// can grow into memory beyond it.
func New(data []byte) *Cursor {
	return &Cursor{data: data[:len(data):len(data)], mark: -1}
}

// NewAt returns a cursor over data positioned at off.
func NewAt(data []byte, off int) (*Cursor, error) {
	c := New(data)
	if err := c.SetPos(off); err != nil {
		return nil, err
	}
	return c, nil
}

// Pos returns the current position relative to the start of the window.
func (c *Cursor) Pos() int {
	return c.pos
}

// Len returns the number of unread bytes.
func (c *Cursor) Len() int {
	return len(c.data) - c.pos
}

// Cap returns the size of the whole window.
func (c *Cursor) Cap() int {
	return len(c.data)
}

// SetPos moves the cursor to an absolute position within the window.
// Positioning exactly at the end is allowed.
func (c *Cursor) SetPos(off int) error {
	if off < 0 || off > len(c.data) {
		return ErrInvalidPosition
	}
	c.pos = off
	return nil
}

// Skip advances the cursor by n bytes.
func (c *Cursor) Skip(n int) error {
	if n < 0 || n > c.Len() {
		return ErrShortBuffer
	}
	c.pos += n
	return nil
}

// Mark remembers the current position for a later Reset.
func (c *Cursor) Mark() {
	c.mark = c.pos
}

// Reset returns to the most recent mark. The mark is kept.
func (c *Cursor) Reset() error {
	if c.mark < 0 {
		return ErrNoMark
	}
	c.pos = c.mark
	return nil
}

// Next returns the next n bytes without copying them and advances past them.
// The returned slice aliases the window and must be treated as read-only.
func (c *Cursor) Next(n int) ([]byte, error) {
	if n < 0 || n > c.Len() {
		return nil, ErrShortBuffer
	}
	b := c.data[c.pos : c.pos+n : c.pos+n]
	c.pos += n
	return b, nil
}

// Peek returns the next n bytes without advancing.
func (c *Cursor) Peek(n int) ([]byte, error) {
	if n < 0 || n > c.Len() {
		return nil, ErrShortBuffer
	}
	return c.data[c.pos : c.pos+n : c.pos+n], nil
}

// Read implements io.Reader.
func (c *Cursor) Read(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if c.Len() == 0 {
		return 0, io.EOF
	}
	n := copy(p, c.data[c.pos:])
	c.pos += n
	return n, nil
}

// ReadByte implements io.ByteReader.
func (c *Cursor) ReadByte() (byte, error) {
	if c.Len() == 0 {
		return 0, io.EOF
	}
	b := c.data[c.pos]
	c.pos++
	return b, nil
}

// ReadAt implements io.ReaderAt over the whole window. It does not move the cursor.
func (c *Cursor) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, ErrInvalidPosition
	}
	if off >= int64(len(c.data)) {
		return 0, io.EOF
	}
	n := copy(p, c.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Seek implements io.Seeker.
func (c *Cursor) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(c.pos)
	case io.SeekEnd:
		base = int64(len(c.data))
	default:
		return 0, ErrInvalidPosition
	}
	abs := base + offset
	if abs < 0 || abs > int64(len(c.data)) {
		return 0, ErrInvalidPosition
	}
	c.pos = int(abs)
	return abs, nil
}

// Uint16 reads a little-endian uint16.
func (c *Cursor) Uint16() (uint16, error) {
	b, err := c.Next(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Uint32 reads a little-endian uint32.
func (c *Cursor) Uint32() (uint32, error) {
	b, err := c.Next(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Uint64 reads a little-endian uint64.
func (c *Cursor) Uint64() (uint64, error) {
	b, err := c.Next(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}
