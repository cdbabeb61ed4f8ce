package layout

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/famtree/pkg/cache"
)

// Cached wraps an engine with a byte cache keyed by program text. Errors are
// never cached.
type Cached struct {
	Engine Engine
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger

	// TTL is the entry lifetime; zero means cache.LayoutTTL.
	TTL time.Duration
}

// NewCached wraps e. A nil keyer uses the default keyer; a nil logger
// discards cache errors silently.
func NewCached(e Engine, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Cached {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Cached{Engine: e, Cache: c, Keyer: keyer, Logger: logger}
}

func (c *Cached) Name() string { return c.Engine.Name() }

func (c *Cached) Layout(ctx context.Context, program string) ([]byte, error) {
	key := c.Keyer.LayoutKey(c.Engine.Name(), program)
	if data, ok, err := c.Cache.Get(ctx, key); err == nil && ok {
		c.debug("layout cache hit", "key", key)
		return data, nil
	} else if err != nil {
		c.debug("layout cache read failed", "error", err)
	}

	data, err := c.Engine.Layout(ctx, program)
	if err != nil {
		return nil, err
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = cache.LayoutTTL
	}
	if err := c.Cache.Set(ctx, key, data, ttl); err != nil {
		c.debug("layout cache write failed", "error", err)
	}
	return data, nil
}

func (c *Cached) debug(msg string, kv ...any) {
	if c.Logger != nil {
		c.Logger.Debug(msg, kv...)
	}
}
