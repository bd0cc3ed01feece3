package file

import (
	"bytes"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/memarchive/internal/entrytype"
	"github.com/meigma/memarchive/internal/testutil"
	"github.com/meigma/memarchive/internal/zipindex"
)

// indexed builds an archive and returns it with its table of contents.
func indexed(tb testing.TB, files []testutil.File) ([]byte, *zipindex.TOC) {
	tb.Helper()
	data := testutil.BuildZip(tb, files)
	toc, err := zipindex.Build(data)
	require.NoError(tb, err)
	return data, toc
}

// locate returns the entry named name and the offset of its payload.
func locate(tb testing.TB, data []byte, toc *zipindex.TOC, name string) (entrytype.Entry, uint64) {
	tb.Helper()
	e, ok := toc.Lookup(name)
	require.True(tb, ok, "missing %q", name)
	h, err := zipindex.ReadLocalHeader(data, e.Offset)
	require.NoError(tb, err)
	return e, h.DataOffset
}

func TestReaderReadAll(t *testing.T) {
	t.Parallel()

	text := bytes.Repeat([]byte("resource text that compresses well. "), 64)
	blob := testutil.Junk(4096)
	files := []testutil.File{
		{Name: "stored.bin", Data: blob, Method: testutil.Store, Raw: true},
		{Name: "stored-descriptor.bin", Data: blob, Method: testutil.Store},
		{Name: "deflated.txt", Data: text, Method: testutil.Deflate},
		{Name: "deflated-raw.txt", Data: text, Method: testutil.Deflate, Raw: true},
		{Name: "zstd.bin", Data: blob, Method: testutil.Zstd},
		{Name: "zstd-raw.txt", Data: text, Method: testutil.Zstd, Raw: true},
		{Name: "empty.txt", Method: testutil.Deflate},
		{Name: "dir/", Method: testutil.Store},
	}
	data, toc := indexed(t, files)
	r := NewReader(data)

	for _, f := range files {
		t.Run(f.Name, func(t *testing.T) {
			t.Parallel()
			e, off := locate(t, data, toc, f.Name)
			got, err := r.ReadAll(&e, off)
			require.NoError(t, err)
			assert.Equal(t, len(f.Data), len(got))
			if len(f.Data) > 0 {
				assert.Equal(t, f.Data, got)
			}
			assert.Equal(t, testutil.ReadEntry(t, data, f.Name), got, "agrees with the zip codec")
		})
	}
}

func TestReaderStoredIsZeroCopy(t *testing.T) {
	t.Parallel()

	data, toc := indexed(t, []testutil.File{
		{Name: "a.bin", Data: []byte("abcdef"), Method: testutil.Store, Raw: true},
	})
	e, off := locate(t, data, toc, "a.bin")

	got, err := NewReader(data).ReadAll(&e, off)
	require.NoError(t, err)
	assert.Same(t, &data[off], &got[0], "stored payload shares the source")
	assert.Equal(t, len(got), cap(got), "view is capacity clipped")

	got = append(got, 'X')
	assert.Equal(t, byte('a'), data[off])
	assert.NotEqual(t, byte('X'), data[int(off)+6], "append must not write into the source")
}

func TestReaderVerification(t *testing.T) {
	t.Parallel()

	text := bytes.Repeat([]byte("0123456789"), 100)
	data, toc := indexed(t, []testutil.File{
		{Name: "stored.txt", Data: text, Method: testutil.Store, Raw: true},
		{Name: "deflated.txt", Data: text, Method: testutil.Deflate, Raw: true},
		{Name: "zstd.txt", Data: text, Method: testutil.Zstd, Raw: true},
	})
	r := NewReader(data)

	t.Run("crc mismatch", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{"stored.txt", "deflated.txt", "zstd.txt"} {
			e, off := locate(t, data, toc, name)
			e.CRC32 ^= 1
			_, err := r.ReadAll(&e, off)
			require.ErrorIs(t, err, entrytype.ErrCRCMismatch, name)
		}
	})

	t.Run("declared size too small", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{"deflated.txt", "zstd.txt"} {
			e, off := locate(t, data, toc, name)
			e.UncompressedSize--
			_, err := r.ReadAll(&e, off)
			require.ErrorIs(t, err, entrytype.ErrSizeOverflow, name)
		}
	})

	t.Run("declared size too large", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{"deflated.txt", "zstd.txt"} {
			e, off := locate(t, data, toc, name)
			e.UncompressedSize++
			_, err := r.ReadAll(&e, off)
			require.ErrorIs(t, err, entrytype.ErrDecompression, name)
		}
	})

	t.Run("stored sizes disagree", func(t *testing.T) {
		t.Parallel()
		e, off := locate(t, data, toc, "stored.txt")
		e.UncompressedSize++
		_, err := r.ReadAll(&e, off)
		require.ErrorIs(t, err, entrytype.ErrDecompression)
	})

	t.Run("payload outside source", func(t *testing.T) {
		t.Parallel()
		e, _ := locate(t, data, toc, "stored.txt")
		_, err := r.ReadAll(&e, uint64(len(data)))
		require.ErrorIs(t, err, entrytype.ErrSizeOverflow)

		_, err = r.ReadAll(&e, ^uint64(0))
		require.ErrorIs(t, err, entrytype.ErrSizeOverflow)
	})

	t.Run("unknown method", func(t *testing.T) {
		t.Parallel()
		e, off := locate(t, data, toc, "deflated.txt")
		e.Method = entrytype.MethodUnknown
		_, err := r.ReadAll(&e, off)
		require.ErrorIs(t, err, entrytype.ErrDecompression)
	})

	t.Run("encrypted", func(t *testing.T) {
		t.Parallel()
		e, off := locate(t, data, toc, "stored.txt")
		e.Flags |= entrytype.FlagEncrypted
		_, err := r.ReadAll(&e, off)
		require.ErrorIs(t, err, entrytype.ErrDecompression)
	})

	t.Run("corrupt payload", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{"deflated.txt", "zstd.txt"} {
			e, off := locate(t, data, toc, name)
			corrupt := bytes.Clone(data)
			for i := range e.CompressedSize {
				corrupt[off+i] = 0xFF
			}
			_, err := NewReader(corrupt).ReadAll(&e, off)
			require.Error(t, err, name)
		}
	})
}

func TestReaderMaxFileSize(t *testing.T) {
	t.Parallel()

	text := bytes.Repeat([]byte("a"), 2048)
	data, toc := indexed(t, []testutil.File{
		{Name: "big.txt", Data: text, Method: testutil.Deflate},
	})
	e, off := locate(t, data, toc, "big.txt")

	_, err := NewReader(data, WithMaxFileSize(1024)).ReadAll(&e, off)
	require.ErrorIs(t, err, entrytype.ErrSizeOverflow)

	got, err := NewReader(data, WithMaxFileSize(0)).ReadAll(&e, off)
	require.NoError(t, err)
	assert.Equal(t, text, got)
}

func TestReaderConcurrent(t *testing.T) {
	t.Parallel()

	text := bytes.Repeat([]byte("concurrent decoding "), 200)
	data, toc := indexed(t, []testutil.File{
		{Name: "d.txt", Data: text, Method: testutil.Deflate},
		{Name: "z.txt", Data: text, Method: testutil.Zstd},
	})
	r := NewReader(data, WithDecoderConcurrency(1), WithDecoderLowmem(true), WithMaxDecoderMemory(64<<20))

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := range 32 {
		name := "d.txt"
		if i%2 == 1 {
			name = "z.txt"
		}
		e, off := locate(t, data, toc, name)
		wg.Go(func() {
			got, err := r.ReadAll(&e, off)
			if err == nil && !bytes.Equal(got, text) {
				err = assert.AnError
			}
			errs <- err
		})
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestReaderInflatedSizeClaim(t *testing.T) {
	t.Parallel()

	data, toc := indexed(t, []testutil.File{
		{Name: "d.txt", Data: []byte("tiny"), Method: testutil.Deflate},
		{Name: "z.txt", Data: []byte("tiny"), Method: testutil.Zstd},
	})

	for _, name := range []string{"d.txt", "z.txt"} {
		e, off := locate(t, data, toc, name)

		huge := e
		huge.UncompressedSize = 1 << 50
		_, err := NewReader(data, WithMaxFileSize(0)).ReadAll(&huge, off)
		require.ErrorIs(t, err, entrytype.ErrDecompression, name)

		atLimit := e
		atLimit.UncompressedSize = DefaultMaxFileSize
		_, err = NewReader(data).ReadAll(&atLimit, off)
		require.ErrorIs(t, err, entrytype.ErrDecompression, name)
	}
}
