package deps

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/deptree/pkg/cache"
	"github.com/matzehuels/deptree/pkg/observability"
)

const manifestKeyType = "manifest"

// ResolutionCache is a typed view over a [cache.Cache] that stores one
// [Manifest] per [PackageRef]. Manifests are stored JSON-encoded, so every Get
// returns a fresh copy that callers may modify freely.
//
// Backend and decode errors are logged and reported as misses: a broken cache
// degrades to refetching, never to a failed resolution.
type ResolutionCache struct {
	backend cache.Cache
	keyer   cache.Keyer
	ttl     time.Duration
	logger  *log.Logger
}

// NewResolutionCache wraps backend with the given entry lifetime. A nil
// backend disables caching; a ttl <= 0 uses [cache.TTLManifest].
func NewResolutionCache(backend cache.Cache, ttl time.Duration) *ResolutionCache {
	if backend == nil {
		backend = cache.NewNullCache()
	}
	if ttl <= 0 {
		ttl = cache.TTLManifest
	}
	return &ResolutionCache{
		backend: backend,
		keyer:   cache.NewDefaultKeyer(),
		ttl:     ttl,
		logger:  log.Default(),
	}
}

// WithKeyer replaces the key layout, e.g. with a [cache.ScopedKeyer] when
// several deployments share one Redis.
func (c *ResolutionCache) WithKeyer(k cache.Keyer) *ResolutionCache {
	c.keyer = k
	return c
}

// WithLogger sets the logger used for backend and decode failures.
func (c *ResolutionCache) WithLogger(l *log.Logger) *ResolutionCache {
	if l != nil {
		c.logger = l
	}
	return c
}

// TTL returns the lifetime applied to new entries.
func (c *ResolutionCache) TTL() time.Duration { return c.ttl }

// Get returns the cached manifest for ref.
func (c *ResolutionCache) Get(ctx context.Context, ref PackageRef) (Manifest, bool) {
	key := c.keyer.ManifestKey(ref.Name, ref.Version)
	data, ok, err := c.backend.Get(ctx, key)
	if err != nil {
		c.logger.Debug("cache read failed", "package", ref, "error", err)
		ok = false
	}
	if !ok {
		observability.Cache().OnCacheMiss(ctx, manifestKeyType)
		return nil, false
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		c.logger.Debug("cache entry corrupt", "package", ref, "error", err)
		observability.Cache().OnCacheMiss(ctx, manifestKeyType)
		return nil, false
	}
	if m == nil {
		m = Manifest{}
	}
	observability.Cache().OnCacheHit(ctx, manifestKeyType)
	return m, true
}

// Put stores m under ref, replacing any existing entry.
func (c *ResolutionCache) Put(ctx context.Context, ref PackageRef, m Manifest) error {
	if m == nil {
		m = Manifest{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	key := c.keyer.ManifestKey(ref.Name, ref.Version)
	if err := c.backend.Set(ctx, key, data, c.ttl); err != nil {
		return err
	}
	observability.Cache().OnCacheSet(ctx, manifestKeyType, len(data))
	return nil
}

// Close closes the underlying backend.
func (c *ResolutionCache) Close() error { return c.backend.Close() }
