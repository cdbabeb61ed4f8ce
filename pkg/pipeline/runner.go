package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/famtree/pkg/cache"
	"github.com/matzehuels/famtree/pkg/layout"
	"github.com/matzehuels/famtree/pkg/payload"
)

// Runner executes the pipeline. It holds no per-run state, so one Runner
// can serve concurrent runs as long as its engine can.
type Runner struct {
	Adapter *layout.Adapter
	Logger  *log.Logger
}

// NewRunner returns a runner around engine. A nil logger discards output.
func NewRunner(engine layout.Engine, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Runner{
		Adapter: layout.NewAdapter(engine, logger),
		Logger:  logger,
	}
}

// NewCachedRunner wraps engine with a layout cache first. A nil cache
// disables caching.
func NewCachedRunner(engine layout.Engine, c cache.Cache, logger *log.Logger) *Runner {
	if c == nil {
		c = cache.NewNullCache()
	}
	return NewRunner(layout.NewCached(engine, c, nil, logger), logger)
}

// Execute runs index, layout, process and render. On any error no partial
// result is returned.
func (r *Runner) Execute(ctx context.Context, p payload.Payload, opts Options) (*Result, error) {
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	x, err := Index(p, r.Logger)
	if err != nil {
		return nil, err
	}
	res := &Result{Index: x}
	res.Stats.NodeCount = x.Len()
	res.Stats.EdgeCount = len(x.Edges())
	res.Stats.Dropped = len(x.Dropped())

	// Stage 2: Layout
	layoutStart := time.Now()
	geo, err := r.Layout(ctx, x, opts.Dot)
	if err != nil {
		return nil, err
	}
	res.Geometry = geo
	res.Stats.Attempts = geo.Attempts
	res.Stats.LayoutTime = time.Since(layoutStart)

	r.Logger.Info("computed layout",
		"nodes", res.Stats.NodeCount,
		"edges", res.Stats.EdgeCount,
		"attempts", geo.Attempts,
		"duration", res.Stats.LayoutTime)

	// Stage 3: Process
	processStart := time.Now()
	res.View = View(geo, opts)
	res.Chart = r.Process(ctx, x, geo, res.View, opts)
	res.Stats.Moved = len(res.Chart.Moved)
	res.Stats.Skipped = len(res.Chart.Skipped)
	res.Stats.ProcessTime = time.Since(processStart)

	// Stage 4: Render
	renderStart := time.Now()
	res.SVG = Render(x, res.Chart, res.View, opts)
	res.Stats.RenderTime = time.Since(renderStart)

	r.Logger.Debug("rendered chart",
		"bytes", len(res.SVG),
		"moved", res.Stats.Moved,
		"corrections", res.Chart.Corrections,
		"duration", res.Stats.Total())
	return res, nil
}
