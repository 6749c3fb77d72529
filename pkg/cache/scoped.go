package cache

// ScopedKeyer wraps a Keyer with a prefix. Deployments that share one Redis
// instance between several registries or environments use it to keep their
// key spaces apart.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "deptree:npm:")
//	keyer.ManifestKey("express", "latest") // "deptree:npm:manifest:express@latest"
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// ManifestKey generates a prefixed manifest key.
func (k *ScopedKeyer) ManifestKey(name, version string) string {
	return k.prefix + k.inner.ManifestKey(name, version)
}
