package layout

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/famtree/pkg/dot"
	"github.com/matzehuels/famtree/pkg/errors"
	"github.com/matzehuels/famtree/pkg/payload"
	"github.com/matzehuels/famtree/pkg/scene"
)

// ErrEmptyGeometry is returned when the engine output contains no nodes.
var ErrEmptyGeometry = stderrors.New("layout: engine returned no nodes")

// IncompleteError reports engine output that is missing nodes or edges the
// program declared.
type IncompleteError struct {
	MissingNodes int
	MissingEdges int
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("incomplete geometry: %d nodes and %d edges missing", e.MissingNodes, e.MissingEdges)
}

// Geometry is a complete layout.
type Geometry struct {
	Program *dot.Program
	Scene   *scene.Scene
	SVG     []byte

	// Attempts is 1, or 2 when the relaxed retry was needed.
	Attempts int
	Duration time.Duration
}

// Adapter generates programs, runs the engine and validates its output.
type Adapter struct {
	Engine Engine
	Logger *log.Logger

	// NoRetry disables the relaxed second attempt.
	NoRetry bool
}

// NewAdapter returns an adapter around e. A nil logger discards output.
func NewAdapter(e Engine, logger *log.Logger) *Adapter {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Adapter{Engine: e, Logger: logger}
}

// Layout lays out the indexed payload. When the first attempt fails, the
// program is regenerated with the non-essential groupings disabled and tried
// once more. If that fails too the error has code LAYOUT_FAILED and no
// geometry is returned.
func (a *Adapter) Layout(ctx context.Context, x *payload.Index, opts dot.Options) (*Geometry, error) {
	if x == nil || x.Len() == 0 {
		return nil, errors.New(errors.ErrCodeInvalidPayload, "nothing to lay out")
	}
	start := time.Now()

	geo, err := a.attempt(ctx, x, opts)
	if err == nil {
		geo.Attempts = 1
		geo.Duration = time.Since(start)
		return geo, nil
	}
	if ctx.Err() != nil {
		return nil, errors.Wrap(errors.ErrCodeTimeout, ctx.Err(), "layout canceled")
	}
	if a.NoRetry {
		return nil, errors.Wrap(errors.ErrCodeLayoutFailed, err, "layout failed")
	}

	a.Logger.Warn("layout failed, retrying with relaxed constraints", "error", err)
	geo, retryErr := a.attempt(ctx, x, opts.Relax())
	if retryErr != nil {
		if ctx.Err() != nil {
			return nil, errors.Wrap(errors.ErrCodeTimeout, ctx.Err(), "layout canceled")
		}
		return nil, errors.Wrap(errors.ErrCodeLayoutFailed, retryErr, "layout failed after relaxed retry (first attempt: %v)", err)
	}
	geo.Attempts = 2
	geo.Duration = time.Since(start)
	return geo, nil
}

func (a *Adapter) attempt(ctx context.Context, x *payload.Index, opts dot.Options) (*Geometry, error) {
	prog := dot.Generate(x, opts)
	for _, d := range prog.Diagnostics {
		a.Logger.Debug("program diagnostic", "msg", d)
	}

	svg, err := a.Engine.Layout(ctx, prog.DOT)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeEngine, err, "%s", a.Engine.Name())
	}
	sc, err := scene.Parse(svg, prog)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeEngine, err, "unreadable engine output")
	}
	if err := complete(prog, sc); err != nil {
		return nil, err
	}
	return &Geometry{Program: prog, Scene: sc, SVG: svg}, nil
}

// complete checks that the scene has every node and edge of the program.
func complete(prog *dot.Program, sc *scene.Scene) error {
	if len(sc.Nodes) == 0 {
		return ErrEmptyGeometry
	}
	var missing IncompleteError
	missing.MissingNodes = prog.Len() - len(sc.Nodes)
	missing.MissingEdges = len(prog.Edges) - len(sc.Edges)
	if missing.MissingNodes > 0 || missing.MissingEdges > 0 {
		return &missing
	}
	return nil
}
