package entrytype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMethodFromZip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		zip  uint16
		want Method
		name string
	}{
		{ZipStore, MethodStored, "stored"},
		{ZipDeflate, MethodDeflated, "deflated"},
		{ZipZstdPKWare, MethodZstd, "zstd"},
		{ZipZstdWinZip, MethodZstd, "zstd"},
		{12, MethodUnknown, "unknown"},
		{99, MethodUnknown, "unknown"},
	}
	for _, tt := range tests {
		got := MethodFromZip(tt.zip)
		assert.Equal(t, tt.want, got, "method %d", tt.zip)
		assert.Equal(t, tt.name, got.String(), "method %d", tt.zip)
	}
}

func TestEntryIsDir(t *testing.T) {
	t.Parallel()

	assert.True(t, (&Entry{Name: "pkg/"}).IsDir())
	assert.False(t, (&Entry{Name: "pkg/One.class"}).IsDir())
	assert.False(t, (&Entry{}).IsDir())
}
