package chart

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matzehuels/famtree/internal/charttest"
	"github.com/matzehuels/famtree/pkg/errors"
	"github.com/matzehuels/famtree/pkg/geom"
	"github.com/matzehuels/famtree/pkg/layout"
	"github.com/matzehuels/famtree/pkg/observability"
	"github.com/matzehuels/famtree/pkg/payload"
	"github.com/matzehuels/famtree/pkg/pipeline"
	"github.com/matzehuels/famtree/pkg/source"
)

func center(t *testing.T, st *State, id string) geom.Point {
	t.Helper()
	c, ok := st.Current().Chart.Scene.Center(id)
	if !ok {
		t.Fatalf("%s not on chart", id)
	}
	return c
}

func TestOpen(t *testing.T) {
	var calls atomic.Int32
	d := newTestDispatcher(t, openTree(t), &calls)
	st, err := d.Open(context.Background(), "I-C", 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	if st.Root != "C" || st.Selection != "C" || st.Revision != 1 {
		t.Errorf("state = root %q selection %q revision %d", st.Root, st.Selection, st.Revision)
	}
	if st.View == nil || st.View.Width != 800 || st.View.Box != st.View.Home {
		t.Errorf("view = %+v", st.View)
	}
	if len(st.SVG()) == 0 || calls.Load() != 1 {
		t.Errorf("svg %d bytes after %d engine calls", len(st.SVG()), calls.Load())
	}

	if _, err := d.Open(context.Background(), "nobody", 1, 10); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("Open(nobody) = %v, want NOT_FOUND", err)
	}
}

func TestSelectDoesNotRelayout(t *testing.T) {
	var calls atomic.Int32
	d := newTestDispatcher(t, openTree(t), &calls)
	st := openChart(t, d)
	view := *st.View

	up, err := d.Dispatch(context.Background(), st, PersonSelected{PersonID: "S"})
	if err != nil {
		t.Fatal(err)
	}
	if up.Relayout || calls.Load() != 1 {
		t.Errorf("selection re-laid out the chart: %+v, %d calls", up, calls.Load())
	}
	if st.Selection != "S" || st.Current().Chart.Outline == nil || st.Current().Chart.Outline.ID != "S" {
		t.Errorf("selection = %q, outline %+v", st.Selection, st.Current().Chart.Outline)
	}
	if *st.View != view {
		t.Errorf("selection moved the view: %+v", st.View)
	}

	if _, err := d.Dispatch(context.Background(), st, FamilySelected{FamilyID: "F3"}); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Dispatch(context.Background(), st, PersonSelected{PersonID: "F3"}); !errors.Is(err, errors.ErrCodeNotFound) {
		t.Errorf("selecting a family as a person = %v", err)
	}
	if st.Selection != "F3" {
		t.Errorf("failed selection changed state: %q", st.Selection)
	}
}

func TestExpandKeepsAnchor(t *testing.T) {
	tests := []struct {
		name  string
		click bool
	}{
		{"element center", false},
		{"click point", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			d := newTestDispatcher(t, openTree(t), &calls)
			st := openChart(t, d)
			ctx := context.Background()

			if _, err := d.Dispatch(ctx, st, Zoom{X: 400, Y: 200, Factor: 1.5}); err != nil {
				t.Fatal(err)
			}
			before := *st.View
			ev := ExpandRequested{FamilyID: "F1", Kind: "parents", ChildID: "C", AnchorID: "C"}
			want := before.ToScreen(center(t, st, "C"))
			if tt.click {
				click := want.Add(geom.Pt(7, -3))
				ev.Click = &click
				want = click
			}
			nodes := len(st.Payload.Nodes)

			up, err := d.Dispatch(ctx, st, ev)
			if err != nil {
				t.Fatal(err)
			}
			if !up.Relayout || !up.Anchored || up.Drift >= d.AnchorTolerance {
				t.Errorf("update = %+v", up)
			}
			if up.Merge.NodesAdded == 0 || len(st.Payload.Nodes) != nodes+up.Merge.NodesAdded {
				t.Errorf("merge = %+v, payload %d -> %d", up.Merge, nodes, len(st.Payload.Nodes))
			}

			got := st.View.ToScreen(center(t, st, "C"))
			if tt.click {
				got = got.Add(geom.Pt(7, -3))
			}
			if !got.Near(want, d.AnchorTolerance) {
				t.Errorf("anchor at %v, want %v", got, want)
			}
			if st.View.Box.W != before.Box.W || st.View.Home == before.Home {
				t.Errorf("zoom not kept or home not refitted: %+v", st.View)
			}
			if st.Revision != 2 || st.Busy || st.PendingAnchor != nil || st.Status == "" {
				t.Errorf("state after expansion: revision %d busy %v anchor %v status %q", st.Revision, st.Busy, st.PendingAnchor, st.Status)
			}
			if !st.Current().Index.Has("A") || !st.Current().Index.Has("B") {
				t.Error("parents missing from chart")
			}
		})
	}
}

func TestExpandIsIdempotent(t *testing.T) {
	var calls atomic.Int32
	d := newTestDispatcher(t, openTree(t), &calls)
	st := openChart(t, d)
	ctx := context.Background()
	ev := ExpandRequested{FamilyID: "F1", Kind: "parents", ChildID: "C"}

	if _, err := d.Dispatch(ctx, st, ev); err != nil {
		t.Fatal(err)
	}
	merged := st.Payload.Clone()
	engine := calls.Load()

	up, err := d.Dispatch(ctx, st, ev)
	if err != nil {
		t.Fatal(err)
	}
	if up.Relayout || up.Merge != (payload.MergeStats{}) || calls.Load() != engine {
		t.Errorf("second expansion = %+v after %d engine calls", up, calls.Load()-engine)
	}
	if len(st.Payload.Nodes) != len(merged.Nodes) || len(st.Payload.Edges) != len(merged.Edges) || st.Revision != 2 {
		t.Errorf("payload changed: %d nodes, %d edges, revision %d", len(st.Payload.Nodes), len(st.Payload.Edges), st.Revision)
	}
}

func TestExpandMissingAnchor(t *testing.T) {
	var calls atomic.Int32
	d := newTestDispatcher(t, openTree(t), &calls)
	st := openChart(t, d)
	ctx := context.Background()
	if _, err := d.Dispatch(ctx, st, Pan{DX: 30, DY: 10}); err != nil {
		t.Fatal(err)
	}
	before := st.View.Box

	up, err := d.Dispatch(ctx, st, ExpandRequested{FamilyID: "F3", Kind: "children", AnchorID: "nobody"})
	if err != nil {
		t.Fatal(err)
	}
	if up.Anchored {
		t.Error("anchored on a missing element")
	}
	if st.View.Box != before {
		t.Errorf("view moved to %+v, want %+v", st.View.Box, before)
	}
	if !st.Current().Index.Has("K") {
		t.Error("child K missing after expansion")
	}
}

type expandHooks struct {
	observability.NoopPipelineHooks
	mu   sync.Mutex
	errs []error
}

func (h *expandHooks) OnExpand(_ context.Context, _ string, _ int, _ time.Duration, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs = append(h.errs, err)
}

func TestExpandFailureKeepsChart(t *testing.T) {
	hooks := &expandHooks{}
	observability.SetPipelineHooks(hooks)
	t.Cleanup(observability.Reset)

	tests := []struct {
		name   string
		engine func(calls *atomic.Int32) layout.Engine
		ev     ExpandRequested
		code   errors.Code
	}{
		{
			name: "unknown family",
			ev:   ExpandRequested{FamilyID: "F9", Kind: "parents"},
			code: errors.ErrCodeNotFound,
		},
		{
			name: "family without parents",
			ev:   ExpandRequested{FamilyID: "FG", Kind: "parents"},
			code: errors.ErrCodeNotFound,
		},
		{
			name: "bad direction",
			ev:   ExpandRequested{FamilyID: "F1", Kind: "siblings"},
			code: errors.ErrCodeInvalidInput,
		},
		{
			name: "engine fails",
			engine: func(calls *atomic.Int32) layout.Engine {
				row := charttest.RowEngine(calls)
				return layout.EngineFunc(func(ctx context.Context, program string) ([]byte, error) {
					if calls.Load() > 0 {
						calls.Add(1)
						return []byte("<svg"), nil
					}
					return row.Layout(ctx, program)
				})
			},
			ev: ExpandRequested{FamilyID: "F1", Kind: "parents", ChildID: "C"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			engine := charttest.RowEngine(&calls)
			if tt.engine != nil {
				engine = tt.engine(&calls)
			}
			d := NewDispatcher(pipeline.NewRunner(engine, nil), openTree(t), pipeline.Options{}, nil)
			st := openChart(t, d)
			p, svg, view := st.Payload.Clone(), st.SVG(), *st.View

			_, err := d.Dispatch(context.Background(), st, tt.ev)
			if err == nil {
				t.Fatal("Dispatch succeeded")
			}
			if tt.code != "" && !errors.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
			if len(st.Payload.Nodes) != len(p.Nodes) || !bytes.Equal(st.SVG(), svg) || *st.View != view {
				t.Error("failed expansion changed the chart")
			}
			if st.Revision != 1 || st.Busy {
				t.Errorf("revision %d busy %v", st.Revision, st.Busy)
			}
			if tt.ev.Kind == "parents" && st.Status == "" {
				t.Error("no status message")
			}
		})
	}
	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	failed := 0
	for _, err := range hooks.errs {
		if err != nil {
			failed++
		}
	}
	if failed != 3 {
		t.Errorf("OnExpand saw %d failures, want 3", failed)
	}
}

// blockingSource holds FamilyParents until released.
type blockingSource struct {
	source.Source
	entered chan struct{}
	release chan struct{}
}

func (b *blockingSource) FamilyParents(ctx context.Context, family, child string) (payload.Payload, error) {
	close(b.entered)
	<-b.release
	return b.Source.FamilyParents(ctx, family, child)
}

func busy(st *State) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.Busy
}

func TestExpandIsSerialized(t *testing.T) {
	src := &blockingSource{Source: openTree(t), entered: make(chan struct{}), release: make(chan struct{})}
	var calls atomic.Int32
	d := newTestDispatcher(t, src, &calls)
	st := openChart(t, d)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := d.Dispatch(ctx, st, ExpandRequested{FamilyID: "F1", Kind: "parents", ChildID: "C"})
		done <- err
	}()
	<-src.entered

	if !d.Busy(st.ID) || !busy(st) {
		t.Error("chart not busy during expansion")
	}
	if _, err := d.Dispatch(ctx, st, ExpandRequested{FamilyID: "F3", Kind: "children"}); !errors.Is(err, errors.ErrCodeBusy) {
		t.Errorf("expand during expansion = %v, want BUSY", err)
	}

	// View events and selection go through while the expansion waits.
	for _, ev := range []Event{Pan{DX: 5}, Zoom{X: 10, Y: 10, Factor: 1.5}, Reset{}, Resize{Width: 700, Height: 300}, PersonSelected{PersonID: "S"}} {
		res := make(chan error, 1)
		go func() {
			_, err := d.Dispatch(ctx, st, ev)
			res <- err
		}()
		select {
		case err := <-res:
			if err != nil {
				t.Errorf("%s during expansion = %v", ev.Type(), err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("%s blocked behind the expansion", ev.Type())
		}
	}
	if calls.Load() != 1 {
		t.Errorf("view events ran the engine: %d calls", calls.Load())
	}

	close(src.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
	if d.Busy(st.ID) || busy(st) {
		t.Error("chart still busy")
	}
	if st.Selection != "S" || st.Current().Chart.Outline == nil || st.Current().Chart.Outline.ID != "S" {
		t.Errorf("selection made during expansion lost: %q", st.Selection)
	}
	if _, err := d.Dispatch(ctx, st, Pan{DX: 5}); err != nil {
		t.Errorf("pan after expansion: %v", err)
	}
}

func TestViewEvents(t *testing.T) {
	var calls atomic.Int32
	d := newTestDispatcher(t, openTree(t), &calls)
	st := openChart(t, d)
	ctx := context.Background()
	home := st.View.Home
	revision := st.Revision

	steps := []struct {
		ev    Event
		check func(t *testing.T)
	}{
		{Pan{DX: 40, DY: -10}, func(t *testing.T) {
			if st.View.Box == home {
				t.Error("pan did not move the view")
			}
		}},
		{Zoom{X: 100, Y: 100, Factor: 2}, func(t *testing.T) {
			if z := st.View.Zoom(); z < 1.99 || z > 2.01 {
				t.Errorf("zoom = %v", z)
			}
		}},
		{Resize{Width: 640, Height: 480}, func(t *testing.T) {
			if st.View.Width != 640 || st.View.Height != 480 {
				t.Errorf("size = %vx%v", st.View.Width, st.View.Height)
			}
		}},
		{Reset{}, func(t *testing.T) {
			if st.View.Box != home {
				t.Errorf("reset box = %+v, want %+v", st.View.Box, home)
			}
		}},
	}
	for _, s := range steps {
		t.Run(s.ev.Type(), func(t *testing.T) {
			up, err := d.Dispatch(ctx, st, s.ev)
			if err != nil {
				t.Fatal(err)
			}
			if up.Relayout || up.Event != s.ev.Type() {
				t.Errorf("update = %+v", up)
			}
			if st.Current().View != *st.View {
				t.Error("rendered view out of date")
			}
			s.check(t)
		})
	}
	if calls.Load() != 1 || st.Revision != revision {
		t.Errorf("view events ran the engine %d times, revision %d", calls.Load(), st.Revision)
	}

	for _, ev := range []Event{Zoom{Factor: 0}, Resize{Width: -1, Height: 10}} {
		if _, err := d.Dispatch(ctx, st, ev); !errors.Is(err, errors.ErrCodeInvalidInput) {
			t.Errorf("%+v = %v, want INVALID_INPUT", ev, err)
		}
	}
}

func TestReloadedState(t *testing.T) {
	var calls atomic.Int32
	d := newTestDispatcher(t, openTree(t), &calls)
	st := openChart(t, d)
	if _, err := d.Dispatch(context.Background(), st, Pan{DX: 12}); err != nil {
		t.Fatal(err)
	}

	data, err := MarshalState(st)
	if err != nil {
		t.Fatal(err)
	}
	reload := func(t *testing.T) *State {
		t.Helper()
		loaded, err := UnmarshalState(data)
		if err != nil {
			t.Fatal(err)
		}
		if loaded.Current() != nil {
			t.Fatal("reloaded state has a result")
		}
		return loaded
	}

	t.Run("same view", func(t *testing.T) {
		loaded := reload(t)
		res, err := d.Render(context.Background(), loaded)
		if err != nil {
			t.Fatal(err)
		}
		if res.View != *st.View || loaded.ID != st.ID || !bytes.Equal(res.SVG, st.SVG()) {
			t.Errorf("reloaded view %+v, want %+v", res.View, *st.View)
		}
	})

	t.Run("own view and selection", func(t *testing.T) {
		loaded := reload(t)
		v := loaded.View.Pan(geom.Pt(30, 0))
		loaded.View = &v
		loaded.Selection = "S"
		res, err := d.Render(context.Background(), loaded)
		if err != nil {
			t.Fatal(err)
		}
		if res.View != v || res.Chart.Outline == nil || res.Chart.Outline.ID != "S" {
			t.Errorf("reloaded result view %+v outline %+v", res.View, res.Chart.Outline)
		}
		if st.Current().View != *st.View || st.Current().Chart.Outline.ID != "C" {
			t.Error("restyling a reloaded state changed the shared result")
		}
	})

	t.Run("events and documents", func(t *testing.T) {
		loaded := reload(t)
		for _, ev := range []Event{Pan{DX: 4}, Zoom{X: 50, Y: 50, Factor: 2}, FamilySelected{FamilyID: "F3"}} {
			if _, err := d.Dispatch(context.Background(), loaded, ev); err != nil {
				t.Fatal(err)
			}
		}
		if _, err := d.Document(context.Background(), reload(t)); err != nil {
			t.Fatal(err)
		}
	})

	if calls.Load() != 1 {
		t.Errorf("reloaded states ran the engine %d more times", calls.Load()-1)
	}

	// Another process has no laid out chart to reuse.
	other := newTestDispatcher(t, openTree(t), &calls)
	if _, err := other.Render(context.Background(), reload(t)); err != nil {
		t.Fatal(err)
	}
	if calls.Load() != 2 {
		t.Errorf("engine calls = %d, want 2", calls.Load())
	}

	if _, err := UnmarshalState([]byte(`{"root":"C"}`)); err == nil {
		t.Error("state without id accepted")
	}
}

func TestDocumentMarksBusy(t *testing.T) {
	src := &blockingSource{Source: openTree(t), entered: make(chan struct{}), release: make(chan struct{})}
	var calls atomic.Int32
	d := newTestDispatcher(t, src, &calls)
	st := openChart(t, d)
	ctx := context.Background()

	data, err := MarshalState(st)
	if err != nil {
		t.Fatal(err)
	}
	idle, err := d.Document(ctx, st)
	if err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := d.Dispatch(ctx, st, ExpandRequested{FamilyID: "F1", Kind: "parents", ChildID: "C"})
		done <- err
	}()
	<-src.entered

	// A request holding its own copy of the chart sees the busy state.
	copied, err := UnmarshalState(data)
	if err != nil {
		t.Fatal(err)
	}
	busy, err := d.Document(ctx, copied)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Equal(busy, idle) {
		t.Error("busy document identical to idle one")
	}

	close(src.release)
	if err := <-done; err != nil {
		t.Fatal(err)
	}
}
