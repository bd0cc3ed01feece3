package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheGetPut(t *testing.T) {
	t.Parallel()

	c, err := New()
	require.NoError(t, err)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	require.NoError(t, c.Put("a@0", []byte("alpha")))
	got, ok := c.Get("a@0")
	require.True(t, ok)
	assert.Equal(t, []byte("alpha"), got)
	assert.Equal(t, int64(5), c.SizeBytes())
	assert.Equal(t, int64(0), c.MaxBytes())

	t.Run("put existing key keeps first payload", func(t *testing.T) {
		require.NoError(t, c.Put("a@0", []byte("other payload")))
		got, ok := c.Get("a@0")
		require.True(t, ok)
		assert.Equal(t, []byte("alpha"), got)
		assert.Equal(t, int64(5), c.SizeBytes())
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, c.Delete("a@0"))
		require.NoError(t, c.Delete("a@0"), "missing key is a no-op")
		_, ok := c.Get("a@0")
		assert.False(t, ok)
		assert.Equal(t, int64(0), c.SizeBytes())
	})

	t.Run("empty key", func(t *testing.T) {
		require.Error(t, c.Put("", []byte("x")))
	})
}

func TestCacheNegativeMaxBytes(t *testing.T) {
	t.Parallel()

	_, err := New(WithMaxBytes(-1))
	require.Error(t, err)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	t.Parallel()

	c, err := New(WithMaxBytes(10))
	require.NoError(t, err)

	require.NoError(t, c.Put("a", []byte("aaaa")))
	require.NoError(t, c.Put("b", []byte("bbbb")))
	_, ok := c.Get("a")
	require.True(t, ok, "touch a so b becomes least recent")

	require.NoError(t, c.Put("c", []byte("cccc")))
	_, ok = c.Get("b")
	assert.False(t, ok, "b evicted")
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, int64(8), c.SizeBytes())
	assert.Equal(t, 2, c.Len())
}

func TestCacheSkipsOversizedPayload(t *testing.T) {
	t.Parallel()

	c, err := New(WithMaxBytes(4))
	require.NoError(t, err)
	require.NoError(t, c.Put("small", []byte("abc")))
	require.NoError(t, c.Put("big", []byte("too large")))

	_, ok := c.Get("big")
	assert.False(t, ok)
	_, ok = c.Get("small")
	assert.True(t, ok, "existing payloads are kept")
}

func TestCachePrune(t *testing.T) {
	t.Parallel()

	c, err := New()
	require.NoError(t, err)
	for i := range 5 {
		require.NoError(t, c.Put(fmt.Sprintf("k%d", i), make([]byte, 10)))
	}

	freed, err := c.Prune(25)
	require.NoError(t, err)
	assert.Equal(t, int64(30), freed)
	assert.Equal(t, int64(20), c.SizeBytes())
	_, ok := c.Get("k0")
	assert.False(t, ok, "oldest evicted first")
	_, ok = c.Get("k4")
	assert.True(t, ok)

	freed, err = c.Prune(-1)
	require.NoError(t, err)
	assert.Equal(t, int64(20), freed)
	assert.Equal(t, 0, c.Len())
}

func TestCacheConcurrent(t *testing.T) {
	t.Parallel()

	c, err := New(WithMaxBytes(256))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := range 16 {
		wg.Go(func() {
			for j := range 100 {
				key := fmt.Sprintf("k%d", (i*7+j)%32)
				_ = c.Put(key, make([]byte, 16))
				c.Get(key)
				if j%10 == 0 {
					_ = c.Delete(key)
				}
			}
		})
	}
	wg.Wait()
	assert.LessOrEqual(t, c.SizeBytes(), int64(256))
}
