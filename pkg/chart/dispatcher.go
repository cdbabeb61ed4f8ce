package chart

import (
	"context"
	"fmt"
	"io"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/famtree/pkg/errors"
	"github.com/matzehuels/famtree/pkg/geom"
	"github.com/matzehuels/famtree/pkg/observability"
	"github.com/matzehuels/famtree/pkg/payload"
	"github.com/matzehuels/famtree/pkg/pipeline"
	"github.com/matzehuels/famtree/pkg/postprocess"
	"github.com/matzehuels/famtree/pkg/source"
	"github.com/matzehuels/famtree/pkg/viewport"
)

// DefaultAnchorTolerance is the anchor drift, in pixels, below which
// restore passes stop.
const DefaultAnchorTolerance = 0.5

// ErrBusy is returned for an expansion requested while another expansion of
// the same chart is still running.
var ErrBusy = errors.New(errors.ErrCodeBusy, "the chart is still updating; try again when the current expansion has finished")

// Update describes what an event changed.
type Update struct {
	Event string `json:"event"`

	// Relayout is set when the chart was laid out again.
	Relayout bool               `json:"relayout"`
	Merge    payload.MergeStats `json:"merge"`

	// Anchored is set when the anchor element was found after re-layout;
	// Drift is its remaining distance from the captured position in pixels.
	Anchored bool    `json:"anchored"`
	Drift    float64 `json:"drift"`
}

// Dispatcher applies events to chart states. Only expansions are
// serialized per chart: while one runs, a second expansion of the same chart
// fails with [ErrBusy]. Pan, zoom, reset and resize only move the viewBox and
// selection restyles the outline; none of them wait for an expansion or lay
// the chart out again.
type Dispatcher struct {
	Runner *pipeline.Runner
	Source source.Source

	// Options are the base pipeline options; Selection and View are taken
	// from the state on every run.
	Options pipeline.Options

	AnchorPasses    int
	AnchorTolerance float64

	// ResultCacheSize bounds the laid out charts kept for states reloaded
	// from a session store; zero means DefaultResultCacheSize.
	ResultCacheSize int

	Logger *log.Logger

	inflight sync.Map
	once     sync.Once
	results  *resultCache
}

// NewDispatcher returns a dispatcher with default anchor settings.
func NewDispatcher(runner *pipeline.Runner, src source.Source, opts pipeline.Options, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Dispatcher{
		Runner:          runner,
		Source:          src,
		Options:         opts,
		AnchorPasses:    viewport.DefaultPasses,
		AnchorTolerance: DefaultAnchorTolerance,
		Logger:          logger,
	}
}

// Busy reports whether an expansion of chart id is running.
func (d *Dispatcher) Busy(id string) bool {
	_, ok := d.inflight.Load(id)
	return ok
}

func (d *Dispatcher) acquire(st *State) error {
	if _, loaded := d.inflight.LoadOrStore(st.ID, struct{}{}); loaded {
		return ErrBusy
	}
	return nil
}

func (d *Dispatcher) release(st *State) { d.inflight.Delete(st.ID) }

func (d *Dispatcher) cache() *resultCache {
	d.once.Do(func() { d.results = newResultCache(d.ResultCacheSize) })
	return d.results
}

func (d *Dispatcher) options(st *State) pipeline.Options {
	opts := d.Options
	opts.Selection = st.Selection
	opts.View = st.View
	opts.Busy = false
	return opts
}

func (d *Dispatcher) padding() float64 {
	if d.Options.Padding > 0 {
		return d.Options.Padding
	}
	return pipeline.DefaultPadding
}

// Open fetches the neighborhood of root and draws the first chart.
func (d *Dispatcher) Open(ctx context.Context, root string, depth, maxNodes int) (*State, error) {
	if err := errors.ValidateID("person", root); err != nil {
		return nil, err
	}
	p, err := d.Source.Neighborhood(ctx, root, depth, maxNodes)
	if err != nil {
		return nil, err
	}
	st := NewState(rootOf(p, root), p)
	st.Selection = st.Root
	st.Revision = 1
	st.Digest = digest(p)
	if _, err := d.Render(ctx, st); err != nil {
		return nil, err
	}
	d.Logger.Info("opened chart", "id", st.ID, "root", st.Root, "nodes", len(p.Nodes))
	return st, nil
}

// Render returns the pipeline result for st. A state without one, such as
// a state just loaded from a session store, takes the chart laid out for its
// revision from the result cache and runs the pipeline only on a miss. The
// first run fits the chart and stores the view.
func (d *Dispatcher) Render(ctx context.Context, st *State) (*pipeline.Result, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return d.render(ctx, st)
}

func (d *Dispatcher) render(ctx context.Context, st *State) (*pipeline.Result, error) {
	if st.current != nil {
		return st.current, nil
	}
	if res, ok := d.cache().get(st); ok {
		d.attach(st, res)
		return st.current, nil
	}
	res, err := d.Runner.Execute(ctx, st.Payload, d.options(st))
	if err != nil {
		st.Status = errors.UserMessage(err)
		return nil, err
	}
	st.current = res
	if st.View == nil {
		v := res.View
		st.View = &v
	}
	if st.Digest == "" {
		st.Digest = digest(st.Payload)
	}
	d.cache().put(st)
	return res, nil
}

// attach makes a cached result current for st, restyling it for the
// state's own view and selection. Cached results are never modified.
func (d *Dispatcher) attach(st *State, res *pipeline.Result) {
	next := *res
	changed := false
	if outlined(res) != st.Selection {
		next.Chart = selected(res.Chart, st.Selection, res.View, d.Options)
		changed = true
	}
	if st.View == nil {
		v := res.View
		st.View = &v
	} else if next.View != *st.View {
		next.View = *st.View
		changed = true
	}
	if changed {
		next.SVG = pipeline.Render(next.Index, next.Chart, next.View, d.options(st))
	}
	st.current = &next
}

func outlined(res *pipeline.Result) string {
	if res.Chart.Outline == nil {
		return ""
	}
	return res.Chart.Outline.ID
}

// selected returns a copy of chart with the selection outline on id.
func selected(chart *postprocess.Result, id string, v viewport.View, opts pipeline.Options) *postprocess.Result {
	c := *chart
	c.Skipped = slices.Clip(c.Skipped)
	postprocess.Select(&c, id, v.ScreenCTM(), opts.Post)
	return &c
}

// Document returns the chart document for st. While an expansion of the
// same chart runs elsewhere the document is marked busy.
func (d *Dispatcher) Document(ctx context.Context, st *State) ([]byte, error) {
	st.mu.Lock()
	res, err := d.render(ctx, st)
	opts := d.options(st)
	st.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !d.Busy(st.ID) {
		return res.SVG, nil
	}
	opts.Busy = true
	return pipeline.Render(res.Index, res.Chart, res.View, opts), nil
}

// Dispatch applies ev to st. On error st keeps its previous payload and
// view, and Status carries the message to show.
func (d *Dispatcher) Dispatch(ctx context.Context, st *State, ev Event) (*Update, error) {
	if e, ok := ev.(ExpandRequested); ok {
		if err := d.acquire(st); err != nil {
			return nil, err
		}
		defer d.release(st)
		up, err := d.expand(ctx, st, e)
		if err != nil {
			return nil, err
		}
		up.Event = ev.Type()
		return up, nil
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if _, err := d.render(ctx, st); err != nil {
		return nil, err
	}

	var up *Update
	var err error
	switch e := ev.(type) {
	case PersonSelected:
		up, err = d.selectNode(st, e.PersonID, payload.KindPerson)
	case FamilySelected:
		up, err = d.selectNode(st, e.FamilyID, payload.KindFamily)
	case Pan:
		up, err = d.moveView(st, func(v viewport.View) viewport.View {
			return v.Pan(geom.Pt(e.DX, e.DY))
		})
	case Zoom:
		if e.Factor <= 0 {
			return nil, errors.New(errors.ErrCodeInvalidInput, "zoom factor must be positive, got %g", e.Factor)
		}
		up, err = d.moveView(st, func(v viewport.View) viewport.View {
			return v.ZoomAt(geom.Pt(e.X, e.Y), e.Factor)
		})
	case Reset:
		up, err = d.moveView(st, viewport.View.Reset)
	case Resize:
		if e.Width <= 0 || e.Height <= 0 {
			return nil, errors.New(errors.ErrCodeInvalidInput, "viewport size must be positive, got %gx%g", e.Width, e.Height)
		}
		up, err = d.moveView(st, func(v viewport.View) viewport.View {
			v.Width, v.Height = e.Width, e.Height
			return v
		})
	default:
		return nil, errors.New(errors.ErrCodeInvalidInput, "unsupported event %T", ev)
	}
	if err != nil {
		return nil, err
	}
	d.cache().put(st)
	up.Event = ev.Type()
	st.touch()
	return up, nil
}

func (d *Dispatcher) selectNode(st *State, id string, kind payload.Kind) (*Update, error) {
	cur := st.current
	if n, ok := cur.Index.Node(id); !ok || n.Type != kind {
		return nil, errors.New(errors.ErrCodeNotFound, "%s %s is not on the chart", kind, id)
	}
	st.Selection = id
	next := *cur
	next.Chart = selected(cur.Chart, id, *st.View, d.Options)
	st.current = &next
	d.redraw(st)
	return &Update{}, nil
}

func (d *Dispatcher) moveView(st *State, f func(viewport.View) viewport.View) (*Update, error) {
	v := f(*st.View)
	st.View = &v
	d.redraw(st)
	return &Update{}, nil
}

// redraw replaces the current result with one rendered for the state's view
// and selection.
func (d *Dispatcher) redraw(st *State) {
	next := *st.current
	next.View = *st.View
	next.SVG = pipeline.Render(next.Index, next.Chart, next.View, d.options(st))
	st.current = &next
}

func (d *Dispatcher) expand(ctx context.Context, st *State, e ExpandRequested) (*Update, error) {
	dir, err := source.ParseDirection(e.Kind)
	if err != nil {
		return nil, err
	}
	if err := errors.ValidateID("family", e.FamilyID); err != nil {
		return nil, err
	}

	st.mu.Lock()
	if _, err := d.render(ctx, st); err != nil {
		st.mu.Unlock()
		return nil, err
	}
	st.Busy = true
	anchorID := e.AnchorID
	if anchorID == "" {
		anchorID = e.FamilyID
	}
	if a, ok := viewport.Capture(*st.View, st.current.Chart.Scene, anchorID, e.Click); ok {
		st.PendingAnchor = &a
	} else {
		d.Logger.Debug("anchor not on chart", "id", anchorID)
	}
	base := st.Payload
	opts := d.options(st)
	st.mu.Unlock()

	defer func() {
		st.mu.Lock()
		st.Busy = false
		st.PendingAnchor = nil
		st.mu.Unlock()
	}()

	start := time.Now()
	up, err := d.relayout(ctx, st, base, opts, dir, e)
	var added int
	if up != nil {
		added = up.Merge.NodesAdded
	}
	observability.Pipeline().OnExpand(ctx, string(dir), added, time.Since(start), err)
	if err != nil {
		st.mu.Lock()
		st.Status = errors.UserMessage(err)
		st.mu.Unlock()
		d.Logger.Warn("expansion failed", "family", e.FamilyID, "kind", dir, "err", err)
		return nil, err
	}
	return up, nil
}

// relayout fetches and merges the expansion delta into base, lays the merged
// payload out and restores the pending anchor. The state is locked only to
// commit the result, so view events keep working meanwhile; nothing in st
// changes unless every step succeeds.
func (d *Dispatcher) relayout(ctx context.Context, st *State, base payload.Payload, opts pipeline.Options, dir source.Direction, e ExpandRequested) (*Update, error) {
	delta, err := source.Expand(ctx, d.Source, e.FamilyID, dir, e.ChildID)
	if err != nil {
		return nil, err
	}
	merged := payload.Merge(base, delta)
	up := &Update{Merge: payload.Diff(base, merged)}
	if up.Merge.NodesAdded == 0 && up.Merge.EdgesAdded == 0 {
		st.mu.Lock()
		st.Status = "nothing new to show"
		st.touch()
		st.mu.Unlock()
		return up, nil
	}

	res, err := d.Runner.Execute(ctx, merged, opts)
	if err != nil {
		return nil, err
	}
	up.Relayout = true

	st.mu.Lock()
	defer st.mu.Unlock()

	// The run kept the pre-expansion viewBox; only the home box follows the
	// new chart.
	next := res.View
	next.Home = viewport.Fit(res.Chart.Scene.Bounds(), next.Width, next.Height, d.padding()).Home
	if a := st.PendingAnchor; a != nil {
		restored, ok := viewport.Restore(next, res.Chart.Scene, *a, d.AnchorPasses, d.AnchorTolerance)
		if ok {
			next = restored
			up.Anchored = true
			up.Drift, _ = viewport.Drift(next, res.Chart.Scene, *a)
		} else {
			d.Logger.Debug("anchor missing after layout", "id", a.ElementID)
		}
	}
	res.View = next
	if st.Selection != opts.Selection {
		res.Chart = selected(res.Chart, st.Selection, next, d.Options)
	}
	st.Payload = merged
	st.View = &next
	res.SVG = pipeline.Render(res.Index, res.Chart, next, d.options(st))
	st.current = res
	st.Revision++
	st.Digest = digest(merged)
	st.Status = fmt.Sprintf("expanded %s: %d new", dir, up.Merge.NodesAdded)
	st.touch()
	d.cache().put(st)
	d.Logger.Info("expanded chart",
		"id", st.ID,
		"family", e.FamilyID,
		"kind", dir,
		"nodes_added", up.Merge.NodesAdded,
		"edges_added", up.Merge.EdgesAdded,
		"anchored", up.Anchored,
		"drift", up.Drift)
	return up, nil
}
