package memarchive

import (
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"weak"
)

// DefaultScheme prefixes archive and resource URLs.
const DefaultScheme = "memory"

// Handle is the caller's token for one registered archive.
//
// The registry keeps the path reserved for as long as the Handle is
// reachable. Once every reference to it is gone the garbage collector
// reclaims the registration, and the path may be registered again.
type Handle struct {
	archive *Archive
}

// Path returns the logical path the archive was registered under.
func (h *Handle) Path() string {
	return h.archive.Path()
}

// URL returns the archive address, e.g. "memory:/lib1.jar".
func (h *Handle) URL() string {
	return h.archive.URL()
}

// Archive returns the registered archive.
func (h *Handle) Archive() *Archive {
	return h.archive
}

// Open returns a connection reading the archive from its first byte.
func (h *Handle) Open() *Connection {
	return h.archive.Open()
}

// Registry maps logical paths to archive images.
//
// A Registry is safe for concurrent use. Registrations for the same path are
// serialized; registrations for different paths do not wait on each other
// beyond a brief map update.
type Registry struct {
	scheme string
	logger *slog.Logger

	// locks holds one *sync.Mutex per path ever registered.
	locks sync.Map

	mu      sync.Mutex
	entries map[string]weak.Pointer[Handle]
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		scheme:  DefaultScheme,
		logger:  slog.New(slog.DiscardHandler),
		entries: make(map[string]weak.Pointer[Handle]),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Scheme returns the URL scheme of archives registered here.
func (r *Registry) Scheme() string {
	return r.scheme
}

// Register stores data under path and returns the handle that keeps the
// registration alive.
//
// It fails with ErrAlreadyRegistered while a handle for path is reachable,
// whatever the bytes. data is shared, not copied, and must not be modified
// afterwards.
func (r *Registry) Register(path string, data []byte) (*Handle, error) {
	if path == "" {
		return nil, fmt.Errorf("register: %w", ErrInvalidPath)
	}

	lock := r.pathLock(path)
	lock.Lock()
	defer lock.Unlock()

	if _, ok := r.Lookup(path); ok {
		return nil, fmt.Errorf("register %s: %w", path, ErrAlreadyRegistered)
	}

	h := &Handle{archive: newArchive(r.scheme, path, data)}
	wp := weak.Make(h)
	r.mu.Lock()
	r.entries[path] = wp
	r.mu.Unlock()
	runtime.AddCleanup(h, r.reclaim, registration{path: path, handle: wp})

	r.logger.Debug("archive registered",
		slog.String("path", path),
		slog.Int("size", len(data)))
	return h, nil
}

// Lookup returns the live handle registered under path.
func (r *Registry) Lookup(path string) (*Handle, bool) {
	r.mu.Lock()
	wp, ok := r.entries[path]
	r.mu.Unlock()
	if !ok {
		return nil, false
	}
	h := wp.Value()
	return h, h != nil
}

// Size returns the number of paths with a reachable handle.
// Registrations whose handles were collected are dropped first.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	for path, wp := range r.entries {
		if wp.Value() == nil {
			delete(r.entries, path)
		}
	}
	return len(r.entries)
}

// Clear forgets every registration, reachable or not. Handles already issued
// keep working but no longer reserve their paths.
func (r *Registry) Clear() {
	r.mu.Lock()
	n := len(r.entries)
	clear(r.entries)
	r.mu.Unlock()
	r.logger.Debug("registry cleared", slog.Int("entries", n))
}

// pathLock returns the mutex serializing registrations of path.
func (r *Registry) pathLock(path string) *sync.Mutex {
	if v, ok := r.locks.Load(path); ok {
		return v.(*sync.Mutex) //nolint:errcheck // only *sync.Mutex is stored
	}
	v, _ := r.locks.LoadOrStore(path, new(sync.Mutex))
	return v.(*sync.Mutex) //nolint:errcheck // only *sync.Mutex is stored
}

// registration identifies one Register call to its cleanup.
type registration struct {
	path   string
	handle weak.Pointer[Handle]
}

// reclaim runs after a handle becomes unreachable. It removes the entry only
// while the entry still refers to that handle.
func (r *Registry) reclaim(reg registration) {
	r.mu.Lock()
	wp, ok := r.entries[reg.path]
	removed := ok && wp == reg.handle
	if removed {
		delete(r.entries, reg.path)
	}
	r.mu.Unlock()
	r.logger.Debug("archive reclaimed",
		slog.String("path", reg.path),
		slog.Bool("removed", removed))
}

// Default is the process-wide registry used by the package-level functions.
var Default = NewRegistry()

// Register stores data under path in the Default registry.
func Register(path string, data []byte) (*Handle, error) {
	return Default.Register(path, data)
}

// Size returns the number of live registrations in the Default registry.
func Size() int {
	return Default.Size()
}

// Clear forgets every registration in the Default registry.
func Clear() {
	Default.Clear()
}
