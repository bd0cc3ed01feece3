// Package memory provides an in-process cache.Cache with least-recently-used
// eviction.
package memory

import (
	"container/list"
	"errors"
	"sync"

	"github.com/meigma/memarchive/cache"
)

// Interface compliance.
var _ cache.Cache = (*Cache)(nil)

// Cache implements cache.Cache in memory.
// The cache is safe for concurrent use.
type Cache struct {
	maxBytes int64 // maximum cache size (0 = unlimited)

	mu    sync.Mutex
	bytes int64                    // current total size of cached payloads
	order *list.List               // front is most recently used
	items map[string]*list.Element // values are *item
}

type item struct {
	key  string
	data []byte
}

// Option configures a memory cache.
type Option func(*Cache)

// WithMaxBytes sets the maximum cache size in bytes.
// Values < 0 are invalid. Use 0 to disable the limit.
func WithMaxBytes(n int64) Option {
	return func(c *Cache) {
		c.maxBytes = n
	}
}

// New creates an empty memory cache.
func New(opts ...Option) (*Cache, error) {
	c := &Cache{
		order: list.New(),
		items: make(map[string]*list.Element),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxBytes < 0 {
		return nil, errors.New("max bytes must be >= 0")
	}
	return c, nil
}

// Get returns the cached payload for key and marks it recently used.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*item).data, true //nolint:errcheck // only *item is stored
}

// Put stores data under key, evicting least recently used payloads to make
// room. Payloads larger than the limit are silently not cached.
func (c *Cache) Put(key string, data []byte) error {
	if key == "" {
		return errors.New("key is empty")
	}
	size := int64(len(data))

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		return nil
	}
	if !c.ensureCapacity(size) {
		return nil
	}
	c.items[key] = c.order.PushFront(&item{key: key, data: data})
	c.bytes += size
	return nil
}

// Delete removes the payload for key.
func (c *Cache) Delete(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
	return nil
}

// MaxBytes returns the configured cache size limit (0 = unlimited).
func (c *Cache) MaxBytes() int64 {
	return c.maxBytes
}

// SizeBytes returns the current cache size in bytes.
func (c *Cache) SizeBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bytes
}

// Len returns the number of cached payloads.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Prune evicts least recently used payloads until the cache is at or below
// targetBytes.
func (c *Cache) Prune(targetBytes int64) (int64, error) {
	if targetBytes < 0 {
		targetBytes = 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pruneLocked(targetBytes), nil
}

func (c *Cache) pruneLocked(targetBytes int64) int64 {
	var freed int64
	for c.bytes > targetBytes {
		el := c.order.Back()
		if el == nil {
			break
		}
		freed += c.remove(el)
	}
	return freed
}

func (c *Cache) remove(el *list.Element) int64 {
	it := c.order.Remove(el).(*item) //nolint:errcheck // only *item is stored
	delete(c.items, it.key)
	size := int64(len(it.data))
	c.bytes -= size
	return size
}

func (c *Cache) ensureCapacity(need int64) bool {
	if c.maxBytes <= 0 {
		return true
	}
	if need > c.maxBytes {
		return false
	}
	if c.bytes+need > c.maxBytes {
		c.pruneLocked(c.maxBytes - need)
	}
	return c.bytes+need <= c.maxBytes
}
