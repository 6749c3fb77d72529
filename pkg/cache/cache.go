// Package cache provides byte-oriented key/value stores with per-entry TTL.
//
// Three backends implement [Cache]:
//
//   - [MemoryCache]: process-local map with a periodic sweeper (default)
//   - [RedisCache]: shared store for multi-instance deployments
//   - [NullCache]: never stores anything, for tests or --no-cache
//
// Values are opaque bytes; typed views (such as the resolver's manifest
// cache) encode and decode on top. Keys are produced by a [Keyer] so that
// the key layout lives in one place.
package cache

import (
	"context"
	"errors"
	"time"
)

// Default lifetimes.
const (
	// TTLManifest is how long a fetched dependency manifest stays fresh.
	TTLManifest = 24 * time.Hour

	// DefaultSweepInterval is how often the memory backend drops expired entries.
	DefaultSweepInterval = 2 * time.Minute
)

// ErrClosed is returned by operations on a cache after Close.
var ErrClosed = errors.New("cache closed")

// Cache is a key/value store with per-entry expiration.
//
// Implementations must be safe for concurrent use. A Set racing a Get for the
// same key must never expose a partially written value.
type Cache interface {
	// Get returns the value stored under key. The bool is false on a miss,
	// including when the entry exists but has expired.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl <= 0 means the entry never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases background resources.
	Close() error
}
