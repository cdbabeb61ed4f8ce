package observability

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCollectorServesMetrics(t *testing.T) {
	ctx := context.Background()
	c := NewCollector("famtree")

	c.OnLayoutComplete(ctx, "graphviz", 2, 300*time.Millisecond, nil)
	c.OnLayoutComplete(ctx, "graphviz", 2, time.Second, errors.New("boom"))
	c.OnProcessComplete(ctx, 3, 1, 2, time.Millisecond)
	c.OnExpand(ctx, "children", 5, time.Second, nil)
	c.OnCacheHit(ctx, "layout")
	c.OnResponse(ctx, "GET", "tree.example.org", "/graph/neighborhood", 200, 50*time.Millisecond)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`famtree_layout_runs_total{engine="graphviz",status="ok"} 1`,
		`famtree_layout_runs_total{engine="graphviz",status="error"} 1`,
		`famtree_layout_relaxed_retries_total 2`,
		`famtree_postprocess_nodes_moved_total 3`,
		`famtree_postprocess_couple_corrections_total 1`,
		`famtree_expansions_total{kind="children",status="ok"} 1`,
		`famtree_nodes_merged_total 5`,
		`famtree_cache_events_total{event="hit",kind="layout"} 1`,
		`famtree_source_requests_total{method="GET",path="/graph/neighborhood",status="200"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestCollectorRegister(t *testing.T) {
	defer Reset()
	c := NewCollector("famtree_test")
	c.Register()
	if Pipeline() != PipelineHooks(c) || Cache() != CacheHooks(c) || HTTP() != HTTPHooks(c) {
		t.Error("Register did not install the collector")
	}
}
