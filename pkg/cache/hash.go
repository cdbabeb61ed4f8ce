package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hash computes the SHA-256 of data as a 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// hashKey builds "prefix:hash(parts...)".
func hashKey(prefix string, parts ...any) string {
	data, _ := json.Marshal(parts)
	return fmt.Sprintf("%s:%s", prefix, Hash(data))
}

// Keyer derives cache keys.
type Keyer interface {
	// LayoutKey keys engine output by program text and engine name.
	LayoutKey(engine, program string) string

	// PayloadKey keys a payload service response by endpoint and query.
	PayloadKey(endpoint string, query map[string]string) string
}

// DefaultKeyer produces unscoped keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) LayoutKey(engine, program string) string {
	return hashKey("layout", engine, Hash([]byte(program)))
}

func (DefaultKeyer) PayloadKey(endpoint string, query map[string]string) string {
	// json.Marshal sorts map keys, so equal queries hash equally.
	return hashKey("payload", endpoint, query)
}

// ScopedKeyer prefixes another keyer's keys so callers with different access
// rights never share payload entries.
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer wraps inner with a prefix. A nil inner uses DefaultKeyer.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// ScopeFor returns a stable, non-reversible scope prefix for a credential.
// An empty credential gets the shared "public:" scope.
func ScopeFor(credential string) string {
	if credential == "" {
		return "public:"
	}
	return "scope:" + Hash([]byte(credential))[:16] + ":"
}

func (k *ScopedKeyer) LayoutKey(engine, program string) string {
	return k.prefix + k.inner.LayoutKey(engine, program)
}

func (k *ScopedKeyer) PayloadKey(endpoint string, query map[string]string) string {
	return k.prefix + k.inner.PayloadKey(endpoint, query)
}
