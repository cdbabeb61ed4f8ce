package pipeline

import (
	"context"
	"time"

	"github.com/matzehuels/famtree/pkg/layout"
	"github.com/matzehuels/famtree/pkg/observability"
	"github.com/matzehuels/famtree/pkg/payload"
	"github.com/matzehuels/famtree/pkg/postprocess"
	"github.com/matzehuels/famtree/pkg/render/svg"
	"github.com/matzehuels/famtree/pkg/viewport"
)

// View returns the view to render geo for: opts.View when set, otherwise
// the whole chart fitted into the configured viewport.
func View(geo *layout.Geometry, opts Options) viewport.View {
	if opts.View != nil {
		return *opts.View
	}
	v := viewport.Fit(geo.Scene.Bounds(), opts.Width, opts.Height, opts.Padding)
	v.MinZoom, v.MaxZoom = opts.MinZoom, opts.MaxZoom
	return v
}

// Process runs the geometry post-processor for view v.
func (r *Runner) Process(ctx context.Context, x *payload.Index, geo *layout.Geometry, v viewport.View, opts Options) *postprocess.Result {
	start := time.Now()
	res := postprocess.Process(postprocess.Input{
		Geometry:  geo,
		Index:     x,
		Selection: opts.Selection,
		Screen:    v.ScreenCTM(),
	}, opts.Post)
	observability.Pipeline().OnProcessComplete(ctx, len(res.Moved), res.Corrections, len(res.Skipped), time.Since(start))

	for _, s := range res.Skipped {
		r.Logger.Debug("post-process skipped", "reason", s)
	}
	for _, n := range res.Notes {
		r.Logger.Info("post-process correction", "note", n)
	}
	return res
}

// Render writes the chart document.
func Render(x *payload.Index, res *postprocess.Result, v viewport.View, opts Options) []byte {
	ro := []svg.Option{
		svg.WithIndex(x),
		svg.WithView(v),
		svg.WithBusy(opts.Busy),
	}
	if opts.Title != "" {
		ro = append(ro, svg.WithTitle(opts.Title))
	}
	if opts.NoScript {
		ro = append(ro, svg.WithoutScript())
	}
	return svg.RenderSVG(res, ro...)
}
