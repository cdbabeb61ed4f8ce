package pipeline

import (
	"context"
	"time"

	"github.com/matzehuels/famtree/pkg/dot"
	"github.com/matzehuels/famtree/pkg/layout"
	"github.com/matzehuels/famtree/pkg/observability"
	"github.com/matzehuels/famtree/pkg/payload"
)

// Layout runs the engine adapter and reports it to the pipeline hooks.
func (r *Runner) Layout(ctx context.Context, x *payload.Index, opts dot.Options) (*layout.Geometry, error) {
	hooks := observability.Pipeline()
	engine := r.Adapter.Engine.Name()
	hooks.OnLayoutStart(ctx, engine, x.Len())

	start := time.Now()
	geo, err := r.Adapter.Layout(ctx, x, opts)
	attempts := 0
	if geo != nil {
		attempts = geo.Attempts
	}
	hooks.OnLayoutComplete(ctx, engine, attempts, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if geo.Program.Unconstrained {
		r.Logger.Warn("grouping constraints abandoned", "diagnostics", len(geo.Program.Diagnostics))
	}
	if geo.Attempts > 1 {
		r.Logger.Warn("layout needed relaxed constraints")
	}
	return geo, nil
}
