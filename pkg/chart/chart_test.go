package chart

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/matzehuels/famtree/internal/charttest"
	"github.com/matzehuels/famtree/pkg/pipeline"
	"github.com/matzehuels/famtree/pkg/source"
)

func openTree(t *testing.T) *source.Archive { return charttest.Tree(t) }

func newTestDispatcher(t *testing.T, src source.Source, calls *atomic.Int32) *Dispatcher {
	t.Helper()
	return NewDispatcher(pipeline.NewRunner(charttest.RowEngine(calls), nil), src, pipeline.Options{Width: 800, Height: 400}, nil)
}

func openChart(t *testing.T, d *Dispatcher) *State {
	t.Helper()
	st, err := d.Open(context.Background(), "C", 0, 100)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return st
}
