// Package testutil builds archive images for tests.
package testutil

import (
	"bytes"
	"hash/crc32"
	"io"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/require"
)

// Compression methods accepted by File.Method.
const (
	Store   = zip.Store
	Deflate = zip.Deflate
	Zstd    = zstd.ZipMethodWinZip
)

// File is one entry of a test archive.
type File struct {
	Name   string
	Data   []byte
	Method uint16

	// Raw writes sizes and CRC into the local header instead of a trailing
	// data descriptor.
	Raw bool
}

// BuildZip writes files into an in-memory ZIP image using the zip codec.
func BuildZip(tb testing.TB, files []File) []byte {
	tb.Helper()

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	w.RegisterCompressor(Zstd, zstd.ZipCompressor())

	for _, f := range files {
		if f.Raw {
			payload := Compress(tb, f.Method, f.Data)
			fw, err := w.CreateRaw(&zip.FileHeader{
				Name:               f.Name,
				Method:             f.Method,
				CRC32:              crc32.ChecksumIEEE(f.Data),
				CompressedSize64:   uint64(len(payload)),
				UncompressedSize64: uint64(len(f.Data)),
			})
			require.NoError(tb, err)
			_, err = fw.Write(payload)
			require.NoError(tb, err)
			continue
		}

		fw, err := w.CreateHeader(&zip.FileHeader{Name: f.Name, Method: f.Method})
		require.NoError(tb, err)
		if len(f.Data) > 0 {
			_, err = fw.Write(f.Data)
			require.NoError(tb, err)
		}
	}
	require.NoError(tb, w.Close())
	return buf.Bytes()
}

// Compress encodes data with the given ZIP method.
func Compress(tb testing.TB, method uint16, data []byte) []byte {
	tb.Helper()

	switch method {
	case Store:
		return bytes.Clone(data)
	case Deflate:
		var buf bytes.Buffer
		fw, err := flate.NewWriter(&buf, flate.BestCompression)
		require.NoError(tb, err)
		_, err = fw.Write(data)
		require.NoError(tb, err)
		require.NoError(tb, fw.Close())
		return buf.Bytes()
	case Zstd:
		enc, err := zstd.NewWriter(nil)
		require.NoError(tb, err)
		defer enc.Close()
		return enc.EncodeAll(data, nil)
	default:
		tb.Fatalf("unsupported method %d", method)
		return nil
	}
}

// ReadEntry reads one entry back through the zip codec.
func ReadEntry(tb testing.TB, archive []byte, name string) []byte {
	tb.Helper()

	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	require.NoError(tb, err)
	zr.RegisterDecompressor(Zstd, zstd.ZipDecompressor())
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		require.NoError(tb, err)
		defer rc.Close()
		data, err := io.ReadAll(rc)
		require.NoError(tb, err)
		return data
	}
	tb.Fatalf("entry %q not found", name)
	return nil
}

// Junk returns n deterministic pseudo-random bytes.
func Junk(n int) []byte {
	out := make([]byte, n)
	x := uint32(2463534242)
	for i := range out {
		x ^= x << 13
		x ^= x >> 17
		x ^= x << 5
		out[i] = byte(x)
	}
	return out
}
