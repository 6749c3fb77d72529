package cache

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Keyer generates cache keys.
type Keyer interface {
	// ManifestKey returns the key for the manifest of name at version.
	ManifestKey(name, version string) string
}

// DefaultKeyer produces human-readable keys of the form
// "manifest:<name>@<version>".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default key layout.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// ManifestKey returns "manifest:<name>@<version>".
// Names longer than 200 bytes are hashed to keep Redis keys bounded.
func (DefaultKeyer) ManifestKey(name, version string) string {
	id := name + "@" + version
	if len(id) > 200 {
		id = Hash([]byte(id))
	}
	return "manifest:" + id
}
