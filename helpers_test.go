package memarchive

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meigma/memarchive/internal/testutil"
)

var (
	oneClass = []byte{0xCA, 0xFE, 0xBA, 0xBE, 0, 0, 0, 52, 'O', 'n', 'e', 0}
	manifest = []byte("Manifest-Version: 1.0\r\nCreated-By: jdk\r\n") // 40 bytes
	twoClass = []byte{0xCA, 0xFE, 0xBA, 0xBE, 0, 0, 0, 52, 'T', 'w', 'o', 0, 1, 2}
)

// lib1 holds a stored class and a deflated manifest.
func lib1(tb testing.TB) []byte {
	tb.Helper()
	return testutil.BuildZip(tb, []testutil.File{
		{Name: "pkg/One.class", Data: oneClass, Method: testutil.Store, Raw: true},
		{Name: "pkg/META-INF/MANIFEST.MF", Data: manifest, Method: testutil.Deflate},
	})
}

// lib2 holds a single zstd class.
func lib2(tb testing.TB) []byte {
	tb.Helper()
	return testutil.BuildZip(tb, []testutil.File{
		{Name: "pkg/Two.class", Data: twoClass, Method: testutil.Zstd},
	})
}

// mustRegister registers data under path in reg or fails the test.
func mustRegister(tb testing.TB, reg *Registry, path string, data []byte) *Handle {
	tb.Helper()
	h, err := reg.Register(path, data)
	require.NoError(tb, err)
	return h
}

// mustResolver builds a resolver over handles or fails the test.
func mustResolver(tb testing.TB, handles []*Handle, opts ...ResolverOption) *Resolver {
	tb.Helper()
	r, err := NewResolver(handles, opts...)
	require.NoError(tb, err)
	return r
}

// text returns a compressible payload of roughly n bytes.
func text(n int) []byte {
	return bytes.Repeat([]byte("lorem ipsum dolor sit amet "), n/27+1)[:n]
}
