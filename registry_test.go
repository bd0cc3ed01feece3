package memarchive

import (
	"bytes"
	"log/slog"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegister(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	data := lib1(t)
	h := mustRegister(t, reg, "/lib1.jar", data)

	assert.Equal(t, "/lib1.jar", h.Path())
	assert.Equal(t, "memory:/lib1.jar", h.URL())
	assert.Equal(t, 1, reg.Size())

	got, ok := reg.Lookup("/lib1.jar")
	require.True(t, ok)
	assert.Same(t, h, got)

	_, ok = reg.Lookup("/other.jar")
	assert.False(t, ok)

	runtime.KeepAlive(h)
}

func TestRegistryRejectsLivePath(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	h := mustRegister(t, reg, "/lib.jar", lib1(t))

	_, err := reg.Register("/lib.jar", lib2(t))
	require.ErrorIs(t, err, ErrAlreadyRegistered, "different bytes do not matter")

	_, err = reg.Register("/lib.jar", h.Archive().Bytes())
	require.ErrorIs(t, err, ErrAlreadyRegistered)

	assert.Equal(t, 1, reg.Size())
	runtime.KeepAlive(h)
}

func TestRegistryInvalidPath(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry().Register("", lib1(t))
	require.ErrorIs(t, err, ErrInvalidPath)
}

func TestRegistryConcurrentRegistration(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	data := lib1(t)

	const racers = 32
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		handles []*Handle
		losses  int
	)
	start := make(chan struct{})
	for range racers {
		wg.Go(func() {
			<-start
			h, err := reg.Register("/race.jar", data)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, ErrAlreadyRegistered)
				losses++
				return
			}
			handles = append(handles, h)
		})
	}
	close(start)
	wg.Wait()

	assert.Len(t, handles, 1, "exactly one registration wins")
	assert.Equal(t, racers-1, losses)
	assert.Equal(t, 1, reg.Size())
	runtime.KeepAlive(handles)
}

func TestRegistrySharesBytes(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	backing := make([]byte, 0, 1<<16)
	backing = append(backing, lib1(t)...)
	h := mustRegister(t, reg, "/lib1.jar", backing)

	view := h.Archive().Bytes()
	assert.Same(t, &backing[0], &view[0], "memory is shared")
	assert.Equal(t, len(backing), cap(view), "view is capacity clipped")
	assert.Equal(t, 1<<16, cap(backing), "caller's slice is untouched")
	assert.Equal(t, len(backing), h.Archive().Size())
}

// registerAndResolve registers data and returns a resolver over it, leaving
// no reference to the handle behind.
func registerAndResolve(t *testing.T, reg *Registry, path string, data []byte) *Resolver {
	t.Helper()
	h := mustRegister(t, reg, path, data)
	return mustResolver(t, []*Handle{h})
}

func TestRegistryReclaimsUnreachableHandles(t *testing.T) {
	t.Parallel()

	var logs syncBuffer
	reg := NewRegistry(WithRegistryLogger(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))))
	res := registerAndResolve(t, reg, "/lib1.jar", lib1(t))
	keep := mustRegister(t, reg, "/kept.jar", lib2(t))

	require.Eventually(t, func() bool {
		runtime.GC()
		return reg.Size() == 1
	}, 5*time.Second, 10*time.Millisecond, "dropped handle is reclaimed")

	_, ok := reg.Lookup("/lib1.jar")
	assert.False(t, ok)
	_, ok = reg.Lookup("/kept.jar")
	assert.True(t, ok, "reachable handle survives")

	t.Run("resolver still extracts", func(t *testing.T) {
		r, err := res.ReadResource("pkg/One.class")
		require.NoError(t, err)
		assert.Equal(t, oneClass, r.Data)

		r, err = res.ReadResource("pkg/META-INF/MANIFEST.MF")
		require.NoError(t, err)
		assert.Equal(t, manifest, r.Data)
	})

	t.Run("path can be registered again", func(t *testing.T) {
		h, err := reg.Register("/lib1.jar", lib2(t))
		require.NoError(t, err)
		assert.Equal(t, 2, reg.Size())
		runtime.KeepAlive(h)
	})

	require.Eventually(t, func() bool {
		runtime.GC()
		return bytes.Contains(logs.Bytes(), []byte("archive reclaimed"))
	}, 5*time.Second, 10*time.Millisecond, "cleanup logs reclamation")

	runtime.KeepAlive(keep)
}

func TestRegistryReclaimIgnoresNewerRegistration(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	func() {
		h := mustRegister(t, reg, "/lib.jar", lib1(t))
		reg.Clear()
		runtime.KeepAlive(h)
	}()

	h := mustRegister(t, reg, "/lib.jar", lib2(t))
	for range 5 {
		runtime.GC()
		time.Sleep(5 * time.Millisecond)
	}
	got, ok := reg.Lookup("/lib.jar")
	require.True(t, ok, "stale cleanup must not remove the newer registration")
	assert.Same(t, h, got)
	runtime.KeepAlive(h)
}

func TestRegistryClear(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	a := mustRegister(t, reg, "/a.jar", lib1(t))
	b := mustRegister(t, reg, "/b.jar", lib2(t))
	require.Equal(t, 2, reg.Size())

	reg.Clear()
	assert.Equal(t, 0, reg.Size())
	_, ok := reg.Lookup("/a.jar")
	assert.False(t, ok)

	again := mustRegister(t, reg, "/a.jar", lib1(t))
	assert.NotSame(t, a, again)
	assert.Equal(t, "/b.jar", b.Path(), "cleared handles keep working")
	runtime.KeepAlive(b)
}

func TestRegistryScheme(t *testing.T) {
	t.Parallel()

	reg := NewRegistry(WithScheme("enclave"))
	assert.Equal(t, "enclave", reg.Scheme())
	h := mustRegister(t, reg, "/lib1.jar", lib1(t))
	assert.Equal(t, "enclave:/lib1.jar", h.URL())
	assert.Equal(t, "enclave:/lib1.jar!/pkg/One.class", h.Archive().ResourceURL("pkg/One.class"))

	assert.Equal(t, DefaultScheme, NewRegistry(WithScheme("")).Scheme())
}

func TestDefaultRegistry(t *testing.T) {
	// Not parallel: the Default registry is process-wide.
	Clear()
	t.Cleanup(Clear)

	h, err := Register("/default.jar", lib1(t))
	require.NoError(t, err)
	assert.Equal(t, 1, Size())

	_, err = Register("/default.jar", lib1(t))
	require.ErrorIs(t, err, ErrAlreadyRegistered)

	Clear()
	assert.Equal(t, 0, Size())
	runtime.KeepAlive(h)
}

// syncBuffer is a bytes.Buffer safe for concurrent writes from log handlers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return bytes.Clone(b.buf.Bytes())
}
