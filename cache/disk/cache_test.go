package disk

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachePutGet(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)

	key := "sha256:abc@42"
	_, ok := c.Get(key)
	assert.False(t, ok)

	require.NoError(t, c.Put(key, []byte("hello")))
	got, ok := c.Get(key)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), got)
	assert.Equal(t, int64(5), c.SizeBytes())

	name := digest.FromString(key).Encoded()
	_, err = os.Stat(filepath.Join(dir, name[:defaultShardPrefixLen], name))
	require.NoError(t, err, "payload is sharded by hash prefix")

	require.NoError(t, c.Put(key, []byte("other")))
	got, _ = c.Get(key)
	assert.Equal(t, []byte("hello"), got, "existing payload is kept")

	require.NoError(t, c.Delete(key))
	require.NoError(t, c.Delete(key), "missing key is a no-op")
	_, ok = c.Get(key)
	assert.False(t, ok)
	assert.Equal(t, int64(0), c.SizeBytes())
}

func TestCacheShardDisabled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir, WithShardPrefixLen(0))
	require.NoError(t, err)
	require.NoError(t, c.Put("k", []byte("v")))

	_, err = os.Stat(filepath.Join(dir, digest.FromString("k").Encoded()))
	require.NoError(t, err)
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	_, err := New("")
	require.Error(t, err)
	_, err = New(t.TempDir(), WithShardPrefixLen(-1))
	require.Error(t, err)
	_, err = New(t.TempDir(), WithMaxBytes(-1))
	require.Error(t, err)
}

func TestCacheReopenCountsExisting(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, c.Put("a", make([]byte, 10)))
	require.NoError(t, c.Put("b", make([]byte, 20)))

	reopened, err := New(dir)
	require.NoError(t, err)
	assert.Equal(t, int64(30), reopened.SizeBytes())
	got, ok := reopened.Get("b")
	require.True(t, ok)
	assert.Len(t, got, 20)
}

func TestCacheMaxBytes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	c, err := New(dir, WithMaxBytes(25))
	require.NoError(t, err)
	assert.Equal(t, int64(25), c.MaxBytes())

	require.NoError(t, c.Put("big", make([]byte, 30)))
	_, ok := c.Get("big")
	assert.False(t, ok, "oversized payloads are skipped")

	require.NoError(t, c.Put("old", make([]byte, 10)))
	old := time.Now().Add(-time.Hour)
	name := digest.FromString("old").Encoded()
	require.NoError(t, os.Chtimes(filepath.Join(dir, name[:2], name), old, old))
	require.NoError(t, c.Put("mid", make([]byte, 10)))

	require.NoError(t, c.Put("new", make([]byte, 10)))
	_, ok = c.Get("old")
	assert.False(t, ok, "oldest payload is pruned")
	_, ok = c.Get("mid")
	assert.True(t, ok)
	_, ok = c.Get("new")
	assert.True(t, ok)
	assert.Equal(t, int64(20), c.SizeBytes())
}

func TestCachePrune(t *testing.T) {
	t.Parallel()

	c, err := New(t.TempDir())
	require.NoError(t, err)
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.Put(k, make([]byte, 10)))
	}

	freed, err := c.Prune(15)
	require.NoError(t, err)
	assert.Equal(t, int64(20), freed)
	assert.Equal(t, int64(10), c.SizeBytes())

	freed, err = c.Prune(-1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), freed)
	assert.Equal(t, int64(0), c.SizeBytes())
}
