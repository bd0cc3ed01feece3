// Package sizing provides safe size arithmetic and conversions to prevent overflow.
package sizing

import (
	"io"
	"math"
)

// ToInt converts a uint64 to int, returning overflowErr if it doesn't fit.
func ToInt(size uint64, overflowErr error) (int, error) {
	if size > uint64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(size), nil
}

// AddUint64 adds two uint64 values, returning (result, false) on overflow.
func AddUint64(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

// Range validates that [off, off+n) lies within a buffer of length size and
// returns the bounds as ints suitable for slicing.
func Range(off, n uint64, size int) (start, end int, ok bool) {
	last, ok := AddUint64(off, n)
	if !ok || size < 0 || last > uint64(size) {
		return 0, 0, false
	}
	return int(off), int(last), true //nolint:gosec // bounded by size above
}

// maxInitialAlloc caps the buffer ReadAllWithLimit allocates before any data
// has arrived, so a large size claim alone cannot force a large allocation.
const maxInitialAlloc = 64 << 10

// ReadAllWithLimit reads r to EOF, failing with overflowErr once more than
// maxSize bytes arrive. The buffer starts small and grows with the data.
func ReadAllWithLimit(r io.Reader, maxSize uint64, overflowErr error) ([]byte, error) {
	if maxSize > uint64(math.MaxInt-1) {
		return nil, overflowErr
	}
	limit := int(maxSize) + 1 //nolint:gosec // checked above
	lr := &io.LimitedReader{R: r, N: int64(limit)}
	buf := make([]byte, 0, min(limit, maxInitialAlloc))
	for {
		n, err := lr.Read(buf[len(buf):cap(buf)])
		buf = buf[:len(buf)+n]
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(buf) == cap(buf) {
			buf = append(buf, 0)[:len(buf)]
		}
	}
	if uint64(len(buf)) > maxSize {
		return nil, overflowErr
	}
	return buf, nil
}
