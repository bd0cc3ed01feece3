// Package cache defines the storage interface for decoded archive entries.
package cache

// Cache stores decoded entry payloads.
//
// Keys have the form "{archive digest}@{local header offset}", so an entry is
// identified by the content of the archive holding it rather than by the
// path the archive was registered under. Callers still verify hits against
// the entry's CRC-32 and delete entries that fail.
//
// Implementations should handle their own size limits and eviction policies.
// Implementations must be safe for concurrent use.
type Cache interface {
	// Get returns the cached payload for key.
	// Returns nil, false if the payload is not cached.
	// Callers must not modify the returned slice.
	Get(key string) ([]byte, bool)

	// Put stores data under key. The cache may keep data without copying;
	// callers must not modify it afterwards.
	Put(key string, data []byte) error

	// Delete removes the payload for key.
	// Implementations should treat missing entries as a no-op.
	Delete(key string) error

	// MaxBytes returns the configured cache size limit (0 = unlimited).
	MaxBytes() int64

	// SizeBytes returns the current cache size in bytes.
	SizeBytes() int64

	// Prune removes cached entries until the cache is at or below targetBytes.
	// Returns the number of bytes freed.
	Prune(targetBytes int64) (int64, error)
}
