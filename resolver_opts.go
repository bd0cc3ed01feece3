package memarchive

import (
	"log/slog"

	"github.com/meigma/memarchive/cache"
)

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithLogger sets the logger for indexing, duplicate-entry and cache events.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithIndexConcurrency limits how many archives NewResolver indexes at once.
// Values <= 0 mean one per archive.
func WithIndexConcurrency(n int) ResolverOption {
	return func(r *Resolver) {
		r.indexConcurrency = n
	}
}

// WithMaxEntries limits the central directory records accepted per archive.
// Set to 0 to disable the limit.
func WithMaxEntries(n uint64) ResolverOption {
	return func(r *Resolver) {
		r.maxEntries = n
	}
}

// WithMaxFileSize limits the maximum per-entry size (compressed and uncompressed).
// Set limit to 0 to disable the limit.
func WithMaxFileSize(limit uint64) ResolverOption {
	return func(r *Resolver) {
		r.maxFileSize = limit
	}
}

// WithMaxDecoderMemory limits the maximum memory used by the zstd decoder.
// Set limit to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) ResolverOption {
	return func(r *Resolver) {
		r.maxDecoderMemory = limit
	}
}

// WithDecoderConcurrency sets the zstd decoder concurrency (default: 1).
// Values < 0 are treated as 0 (use GOMAXPROCS).
func WithDecoderConcurrency(n int) ResolverOption {
	return func(r *Resolver) {
		if n < 0 {
			n = 0
		}
		r.decoderConcurrency = n
		r.decoderConcurrencySet = true
	}
}

// WithCache enables caching of decoded entries.
//
// Only compressed entries are cached; stored entries are already served
// without copying. Concurrent misses for the same entry are deduplicated.
func WithCache(c cache.Cache) ResolverOption {
	return func(r *Resolver) {
		r.cache = c
	}
}
