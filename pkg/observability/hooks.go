// Package observability carries instrumentation hooks for the chart pipeline.
//
// Library packages report through the hook accessors and never import a
// metrics backend:
//
//	observability.Pipeline().OnExpand(ctx, "parents", added, elapsed, err)
//
// Until the command wires a backend every hook is a no-op. [Collector] is the
// Prometheus backend used by famtree serve:
//
//	c := observability.NewCollector("famtree")
//	c.Register()
//	defer observability.Reset()
package observability

import (
	"context"
	"sync/atomic"
	"time"
)

// PipelineHooks receives layout, post-processing and expansion events.
type PipelineHooks interface {
	OnLayoutStart(ctx context.Context, engine string, nodeCount int)

	// OnLayoutComplete reports a finished layout. Attempts is 2 when the
	// relaxed retry ran.
	OnLayoutComplete(ctx context.Context, engine string, attempts int, duration time.Duration, err error)

	// OnProcessComplete reports nodes moved, special couples corrected and
	// lookups skipped by post-processing.
	OnProcessComplete(ctx context.Context, moved, corrections, skipped int, duration time.Duration)

	// OnExpand reports a merged expansion delta.
	OnExpand(ctx context.Context, kind string, nodesAdded int, duration time.Duration, err error)
}

// CacheHooks receives cache events. Kind is "layout" or "payload".
type CacheHooks interface {
	OnCacheHit(ctx context.Context, kind string)
	OnCacheMiss(ctx context.Context, kind string)
	OnCacheSet(ctx context.Context, kind string, size int)
}

// HTTPHooks receives family tree service calls.
type HTTPHooks interface {
	OnRequest(ctx context.Context, method, host, path string)
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError reports a call that got no response.
	OnError(ctx context.Context, method, host, path string, err error)
}

// NoopPipelineHooks ignores every event. Embed it to implement a subset.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnLayoutStart(context.Context, string, int)                          {}
func (NoopPipelineHooks) OnLayoutComplete(context.Context, string, int, time.Duration, error) {}
func (NoopPipelineHooks) OnProcessComplete(context.Context, int, int, int, time.Duration)     {}
func (NoopPipelineHooks) OnExpand(context.Context, string, int, time.Duration, error)         {}

// NoopCacheHooks ignores every event.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks ignores every event.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string, string)                      {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// registry is replaced as a whole so readers never lock.
type registry struct {
	pipeline PipelineHooks
	cache    CacheHooks
	http     HTTPHooks
}

var (
	noop    = registry{NoopPipelineHooks{}, NoopCacheHooks{}, NoopHTTPHooks{}}
	current atomic.Pointer[registry]
)

func init() { Reset() }

func update(set func(*registry)) {
	for {
		old := current.Load()
		next := *old
		set(&next)
		if current.CompareAndSwap(old, &next) {
			return
		}
	}
}

// SetPipelineHooks installs h. Nil is ignored.
func SetPipelineHooks(h PipelineHooks) {
	if h != nil {
		update(func(r *registry) { r.pipeline = h })
	}
}

// SetCacheHooks installs h. Nil is ignored.
func SetCacheHooks(h CacheHooks) {
	if h != nil {
		update(func(r *registry) { r.cache = h })
	}
}

// SetHTTPHooks installs h. Nil is ignored.
func SetHTTPHooks(h HTTPHooks) {
	if h != nil {
		update(func(r *registry) { r.http = h })
	}
}

func Pipeline() PipelineHooks { return current.Load().pipeline }
func Cache() CacheHooks       { return current.Load().cache }
func HTTP() HTTPHooks         { return current.Load().http }

// Reset restores the no-op hooks.
func Reset() {
	r := noop
	current.Store(&r)
}
