package pipeline

import (
	"context"
	stderrors "errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matzehuels/famtree/pkg/cache"
	"github.com/matzehuels/famtree/pkg/errors"
	"github.com/matzehuels/famtree/pkg/geom"
	"github.com/matzehuels/famtree/pkg/layout"
	"github.com/matzehuels/famtree/pkg/observability"
	"github.com/matzehuels/famtree/pkg/payload"
	"github.com/matzehuels/famtree/pkg/viewport"
)

func couple() payload.Payload {
	return payload.Payload{
		Nodes: []payload.Node{
			{ID: "A", Type: payload.KindPerson, DisplayName: "Person A", Gender: "M", Birth: "1900", Death: "1970"},
			{ID: "B", Type: payload.KindPerson, DisplayName: "Person B", Gender: "F"},
			{ID: "F1", Type: payload.KindFamily, ParentsTotal: 2, ChildrenTotal: 1},
		},
		Edges: []payload.Edge{
			{From: "A", To: "F1", Kind: payload.EdgeParent, Role: payload.RoleFather},
			{From: "B", To: "F1", Kind: payload.EdgeParent, Role: payload.RoleMother},
			{From: "F1", To: "ghost", Kind: payload.EdgeChild},
		},
	}
}

func fixtureEngine(t *testing.T, calls *int) layout.Engine {
	t.Helper()
	data, err := os.ReadFile("../scene/testdata/couple.svg")
	if err != nil {
		t.Fatal(err)
	}
	return layout.EngineFunc(func(ctx context.Context, program string) ([]byte, error) {
		*calls++
		return data, nil
	})
}

type recordingHooks struct {
	observability.NoopPipelineHooks
	mu     sync.Mutex
	events []string
}

func (h *recordingHooks) record(s string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, s)
}

func (h *recordingHooks) OnLayoutStart(context.Context, string, int) {
	h.record("layout-start")
}

func (h *recordingHooks) OnLayoutComplete(_ context.Context, _ string, _ int, _ time.Duration, err error) {
	if err != nil {
		h.record("layout-failed")
		return
	}
	h.record("layout-complete")
}

func (h *recordingHooks) OnProcessComplete(context.Context, int, int, int, time.Duration) {
	h.record("process-complete")
}

func TestExecute(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetPipelineHooks(hooks)
	t.Cleanup(observability.Reset)

	var calls int
	r := NewRunner(fixtureEngine(t, &calls), nil)
	res, err := r.Execute(context.Background(), couple(), Options{Selection: "A", Title: "Family A"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if res.Stats.NodeCount != 3 || res.Stats.Dropped != 1 || res.Stats.Attempts != 1 {
		t.Errorf("stats = %+v", res.Stats)
	}
	if res.Chart.Outline == nil || res.Chart.Outline.ID != "A" {
		t.Errorf("outline = %+v", res.Chart.Outline)
	}
	if res.View.Width != DefaultWidth || res.View.Box != res.View.Home {
		t.Errorf("view = %+v, want fitted home view", res.View)
	}
	svg := string(res.SVG)
	for _, want := range []string{`id="f_F1"`, `id="p_A"`, "<title>Family A</title>", `class="selection"`} {
		if !strings.Contains(svg, want) {
			t.Errorf("SVG missing %s", want)
		}
	}
	want := []string{"layout-start", "layout-complete", "process-complete"}
	if strings.Join(hooks.events, ",") != strings.Join(want, ",") {
		t.Errorf("hooks = %v, want %v", hooks.events, want)
	}
}

func TestExecuteKeepsView(t *testing.T) {
	var calls int
	r := NewRunner(fixtureEngine(t, &calls), nil)
	v := viewport.Fit(geom.Rect{W: 332, H: 62}, 400, 300, 0)
	res, err := r.Execute(context.Background(), couple(), Options{View: &v, NoScript: true})
	if err != nil {
		t.Fatal(err)
	}
	if res.View != v {
		t.Errorf("view = %+v, want %+v", res.View, v)
	}
	if strings.Contains(string(res.SVG), "<script") {
		t.Error("script written with NoScript")
	}
}

func TestExecuteFailures(t *testing.T) {
	failing := layout.EngineFunc(func(ctx context.Context, program string) ([]byte, error) {
		return nil, stderrors.New("engine crashed")
	})

	tests := []struct {
		name    string
		engine  layout.Engine
		payload payload.Payload
		opts    Options
		code    errors.Code
	}{
		{"engine failure", failing, couple(), Options{}, errors.ErrCodeLayoutFailed},
		{"empty payload", failing, payload.Payload{}, Options{}, errors.ErrCodeInvalidPayload},
		{"only malformed records", failing, payload.Payload{Nodes: []payload.Node{{ID: "x", Type: "pet"}}}, Options{}, errors.ErrCodeInvalidPayload},
		{"negative size", failing, couple(), Options{Width: -1}, errors.ErrCodeInvalidInput},
		{"empty view", failing, couple(), Options{View: &viewport.View{}}, errors.ErrCodeInvalidInput},
		{"inverted zoom bounds", failing, couple(), Options{MinZoom: 2, MaxZoom: 1}, errors.ErrCodeInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := NewRunner(tt.engine, nil).Execute(context.Background(), tt.payload, tt.opts)
			if res != nil {
				t.Error("partial result returned")
			}
			if !errors.Is(err, tt.code) {
				t.Errorf("err = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestCachedRunner(t *testing.T) {
	fc, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	var calls int
	r := NewCachedRunner(fixtureEngine(t, &calls), fc, nil)
	for range 2 {
		if _, err := r.Execute(context.Background(), couple(), Options{}); err != nil {
			t.Fatal(err)
		}
	}
	if calls != 1 {
		t.Errorf("engine called %d times, want 1", calls)
	}
}

func TestValidateAndSetDefaults(t *testing.T) {
	var o Options
	if err := o.ValidateAndSetDefaults(); err != nil {
		t.Fatal(err)
	}
	if o.Width != DefaultWidth || o.Height != DefaultHeight || o.Dot.CoupleWeight == 0 || o.Post.HubScale == 0 {
		t.Errorf("defaults not applied: %+v", o)
	}
	o.Width = -5
	if err := o.ValidateAndSetDefaults(); err != nil {
		t.Errorf("second call revalidated: %v", err)
	}
}

func TestLoad(t *testing.T) {
	if _, err := Load("testdata/missing.json"); !errors.Is(err, errors.ErrCodeInvalidPayload) {
		t.Errorf("err = %v", err)
	}
}
