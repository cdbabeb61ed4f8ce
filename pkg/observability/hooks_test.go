package observability

import (
	"context"
	"sync"
	"testing"
	"time"
)

type countingHooks struct {
	NoopPipelineHooks
	NoopCacheHooks
	mu      sync.Mutex
	expands int
	hits    int
}

func (h *countingHooks) OnExpand(context.Context, string, int, time.Duration, error) {
	h.mu.Lock()
	h.expands++
	h.mu.Unlock()
}

func (h *countingHooks) OnCacheHit(context.Context, string) {
	h.mu.Lock()
	h.hits++
	h.mu.Unlock()
}

func TestHooksRegistry(t *testing.T) {
	t.Cleanup(Reset)
	ctx := context.Background()
	h := &countingHooks{}

	tests := []struct {
		name  string
		setup func()
		want  int
	}{
		{"noop by default", Reset, 0},
		{"installed", func() { SetPipelineHooks(h); SetCacheHooks(h) }, 1},
		{"nil ignored", func() { SetPipelineHooks(nil); SetCacheHooks(nil) }, 2},
		{"reset", Reset, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			Pipeline().OnExpand(ctx, "parents", 3, time.Millisecond, nil)
			Cache().OnCacheHit(ctx, "layout")
			HTTP().OnError(ctx, "GET", "tree.example.org", "/graph/neighborhood", nil)
			if h.expands != tt.want || h.hits != tt.want {
				t.Errorf("expands=%d hits=%d, want %d", h.expands, h.hits, tt.want)
			}
		})
	}
}

func TestHooksConcurrentSet(t *testing.T) {
	t.Cleanup(Reset)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			SetHTTPHooks(NoopHTTPHooks{})
			SetPipelineHooks(&countingHooks{})
		}()
		go func() {
			defer wg.Done()
			Pipeline().OnLayoutStart(context.Background(), "graphviz", 10)
		}()
	}
	wg.Wait()
	if _, ok := HTTP().(NoopHTTPHooks); !ok {
		t.Errorf("HTTP() = %T", HTTP())
	}
	if _, ok := Pipeline().(*countingHooks); !ok {
		t.Errorf("Pipeline() = %T", Pipeline())
	}
}
