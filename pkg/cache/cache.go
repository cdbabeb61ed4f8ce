// Package cache stores layout results and payload responses.
//
// Layout is the one slow step of the chart pipeline, and identical programs
// always lay out identically, so engine output is cached under the hash of
// the program text. Payload responses from the family tree service are cached
// per caller scope because privacy redaction depends on who is asking.
//
// Three backends implement [Cache]:
//   - [NullCache]: never stores anything (--no-cache, tests)
//   - [FileCache]: JSON entries under the user cache directory (CLI)
//   - [RedisCache]: shared cache for the chart server
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with optional expiry.
type Cache interface {
	// Get returns the stored value and whether it was found. Expired entries
	// are reported as misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Clearer is implemented by backends that can drop every entry they own.
type Clearer interface {
	Clear(ctx context.Context) (int, error)
}

// TTL defaults.
const (
	LayoutTTL  = 30 * 24 * time.Hour
	PayloadTTL = 10 * time.Minute
)

// NullCache misses on every read and drops every write. The pipeline uses it
// when caching is disabled so callers never check for a nil cache.
type NullCache struct{}

// NewNullCache returns a NullCache.
func NewNullCache() Cache { return NullCache{} }

func (NullCache) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NullCache) Delete(context.Context, string) error                     { return nil }
func (NullCache) Close() error                                             { return nil }
