// Package pipeline runs the chart pipeline end to end.
//
// A run takes a merged payload through four stages:
//
//  1. Index: sanitize the payload and build lookups (malformed edges dropped)
//  2. Layout: generate the constraint program and run the engine
//  3. Process: correct and annotate the geometry
//  4. Render: write the interactive SVG document
//
// The CLI, the chart server and the terminal explorer all go through
// [Runner.Execute]:
//
//	runner := pipeline.NewRunner(layout.NewGraphviz(), logger)
//	res, err := runner.Execute(ctx, p, pipeline.Options{Selection: "I0001"})
//	if err != nil {
//	    fmt.Println(errors.UserMessage(err))
//	}
//	os.WriteFile("chart.svg", res.SVG, 0o644)
package pipeline

import (
	"time"

	"github.com/matzehuels/famtree/pkg/dot"
	"github.com/matzehuels/famtree/pkg/errors"
	"github.com/matzehuels/famtree/pkg/layout"
	"github.com/matzehuels/famtree/pkg/payload"
	"github.com/matzehuels/famtree/pkg/postprocess"
	"github.com/matzehuels/famtree/pkg/viewport"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultWidth is the default client viewport width in pixels.
	DefaultWidth = 1200.0

	// DefaultHeight is the default client viewport height in pixels.
	DefaultHeight = 800.0

	// DefaultPadding is the margin around the chart in the home view.
	DefaultPadding = 24.0
)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options configures one run.
type Options struct {
	Dot  dot.Options
	Post postprocess.Options

	// Selection is the id of the selected person or family.
	Selection string

	// View is the current client view. When nil the chart is fitted into a
	// Width x Height viewport.
	View    *viewport.View
	Width   float64
	Height  float64
	Padding float64

	// MinZoom and MaxZoom bound the zoom of a fitted view.
	MinZoom float64
	MaxZoom float64

	Title    string
	Busy     bool
	NoScript bool

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// ValidateAndSetDefaults checks the options and fills in defaults. Calling
// it more than once has no further effect.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Dot == (dot.Options{}) {
		o.Dot = dot.DefaultOptions()
	}
	if o.Post == (postprocess.Options{}) {
		o.Post = postprocess.DefaultOptions()
	}
	if o.Width == 0 {
		o.Width = DefaultWidth
	}
	if o.Height == 0 {
		o.Height = DefaultHeight
	}
	if o.Padding == 0 {
		o.Padding = DefaultPadding
	}
	if o.MinZoom == 0 {
		o.MinZoom = viewport.DefaultMinZoom
	}
	if o.MaxZoom == 0 {
		o.MaxZoom = viewport.DefaultMaxZoom
	}
	if o.Width < 0 || o.Height < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "viewport size must be positive, got %gx%g", o.Width, o.Height)
	}
	if o.View != nil && (o.View.Width <= 0 || o.View.Height <= 0 || o.View.Box.W <= 0 || o.View.Box.H <= 0) {
		return errors.New(errors.ErrCodeInvalidInput, "view has an empty viewport or viewBox")
	}
	if o.MinZoom < 0 || o.MaxZoom < o.MinZoom {
		return errors.New(errors.ErrCodeInvalidInput, "zoom bounds %g..%g are invalid", o.MinZoom, o.MaxZoom)
	}
	if o.Post.MinCoupleGap < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "minimum couple gap must not be negative")
	}
	o.validated = true
	return nil
}

// =============================================================================
// Results
// =============================================================================

// Result is the output of a run.
type Result struct {
	Index    *payload.Index
	Geometry *layout.Geometry
	Chart    *postprocess.Result

	// View is the view the chart was rendered for.
	View viewport.View

	SVG   []byte
	Stats Stats
}

// Stats holds timing and size information.
type Stats struct {
	NodeCount   int
	EdgeCount   int
	Dropped     int
	Attempts    int
	Moved       int
	Skipped     int
	LayoutTime  time.Duration
	ProcessTime time.Duration
	RenderTime  time.Duration
}

// Total returns the summed stage durations.
func (s Stats) Total() time.Duration { return s.LayoutTime + s.ProcessTime + s.RenderTime }
