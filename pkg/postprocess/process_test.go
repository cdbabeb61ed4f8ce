package postprocess

import (
	"context"
	"math"
	"os"
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/famtree/pkg/dot"
	"github.com/matzehuels/famtree/pkg/geom"
	"github.com/matzehuels/famtree/pkg/layout"
	"github.com/matzehuels/famtree/pkg/payload"
	"github.com/matzehuels/famtree/pkg/scene"
)

func person(id, gender string) payload.Node {
	return payload.Node{ID: id, Type: payload.KindPerson, DisplayName: "Person " + id, Gender: gender}
}

func parent(p, f, role string) payload.Edge {
	return payload.Edge{From: p, To: f, Kind: payload.EdgeParent, Role: role}
}

// couple is the payload drawn by the fixture: A and B with hub F1.
func couple() payload.Payload {
	return payload.Payload{
		Nodes: []payload.Node{person("A", "M"), person("B", "F"), {ID: "F1", Type: payload.KindFamily, ParentsTotal: 2}},
		Edges: []payload.Edge{parent("A", "F1", payload.RoleFather), parent("B", "F1", payload.RoleMother)},
	}
}

// special adds a single-parent family F2 headed by A, which makes F1 a
// special couple. F2 is not in the fixture, so its lookups fail.
func special() payload.Payload {
	p := couple()
	p.Nodes[2].ChildrenTotal = 3
	p.Nodes = append(p.Nodes, payload.Node{ID: "F2", Type: payload.KindFamily, ParentsTotal: 1, ChildrenTotal: 1})
	p.Edges = append(p.Edges, parent("A", "F2", payload.RoleFather))
	return p
}

func geometry(t *testing.T, p payload.Payload) (*layout.Geometry, *payload.Index) {
	t.Helper()
	svg, err := os.ReadFile("../scene/testdata/couple.svg")
	if err != nil {
		t.Fatal(err)
	}
	x := payload.NewIndex(p)
	prog := dot.Generate(x, dot.DefaultOptions())
	sc, err := scene.Parse(svg, prog)
	if err != nil {
		t.Fatal(err)
	}
	return &layout.Geometry{Program: prog, Scene: sc, SVG: svg}, x
}

func hubX(t *testing.T, sc *scene.Scene, id string) float64 {
	t.Helper()
	c, ok := sc.Center(id)
	if !ok {
		t.Fatalf("hub %s not found", id)
	}
	return c.X
}

func TestHubCenteredBetweenParents(t *testing.T) {
	screens := map[string]geom.Matrix{
		"identity":  {},
		"letterbox": {A: 3, D: 3, E: 17, F: -40},
	}
	for name, screen := range screens {
		t.Run(name, func(t *testing.T) {
			geo, x := geometry(t, couple())
			if got := hubX(t, geo.Scene, "F1"); math.Abs(got-166) < 1 {
				t.Fatalf("fixture hub already centered at %v", got)
			}

			res := Process(Input{Geometry: geo, Index: x, Screen: screen}, DefaultOptions())

			a, _ := res.Scene.Box("A")
			b, _ := res.Scene.Box("B")
			mid := (a.Right() + b.Left()) / 2
			if got := hubX(t, res.Scene, "F1"); math.Abs(got-mid) > 1 {
				t.Errorf("hub at x=%v, midpoint %v", got, mid)
			}
			if !slices.Equal(res.Moved, []string{"F1"}) {
				t.Errorf("Moved = %v", res.Moved)
			}
			if res.Corrections != 0 {
				t.Errorf("Corrections = %d for a regular couple", res.Corrections)
			}
		})
	}
}

func TestEdgesFollowMovedNodes(t *testing.T) {
	geo, x := geometry(t, special())
	opts := DefaultOptions()
	opts.MinCoupleGap = 80

	res := Process(Input{Geometry: geo, Index: x}, opts)

	if len(res.Moved) != 3 {
		t.Fatalf("Moved = %v, want hub and both parents", res.Moved)
	}
	if d := Detached(res.Scene, opts.SnapEpsilon); len(d) != 0 {
		t.Errorf("detached edges: %v", d)
	}
	e := res.Scene.Edges[0]
	a, _ := res.Scene.Box("A")
	if got := e.Path.Start(); math.Abs(got.X-a.Right()) > opts.SnapEpsilon {
		t.Errorf("edge starts at %v, card A ends at %v", got, a.Right())
	}
}

func TestDetachedWithoutResnap(t *testing.T) {
	geo, _ := geometry(t, couple())
	geo.Scene.Normalize()
	geo.Scene.Translate("A", geom.Pt(-10, 0))
	if d := Detached(geo.Scene, 0.5); len(d) != 1 || !strings.HasPrefix(d[0], "e_0") {
		t.Errorf("Detached = %v, want e_0", d)
	}
}

func TestSpecialCoupleGap(t *testing.T) {
	for _, minGap := range []float64{20, 50, 80, 120} {
		geo, x := geometry(t, special())
		if !geo.Program.Special["F1"] {
			t.Fatal("F1 not flagged special")
		}
		opts := DefaultOptions()
		opts.MinCoupleGap = minGap

		res := Process(Input{Geometry: geo, Index: x}, opts)

		a, _ := res.Scene.Box("A")
		b, _ := res.Scene.Box("B")
		gap := b.Left() - a.Right()
		if gap < minGap-1e-9 {
			t.Errorf("minGap %v: gap = %v", minGap, gap)
		}
		if wantFix := minGap > 50; (res.Corrections == 1) != wantFix {
			t.Errorf("minGap %v: Corrections = %d", minGap, res.Corrections)
		}
		if mid := (a.Right() + b.Left()) / 2; math.Abs(hubX(t, res.Scene, "F1")-mid) > 1 {
			t.Errorf("minGap %v: hub off center after correction", minGap)
		}
		if minGap == 80 {
			// Both cards move outward by half the shortfall.
			if got := res.Scene.Offsets["A"]; math.Abs(got.X+14.8) > 1e-9 {
				t.Errorf("A offset = %v, want -14.8", got)
			}
			if got := res.Scene.Offsets["B"]; math.Abs(got.X-14.8) > 1e-9 {
				t.Errorf("B offset = %v, want 14.8", got)
			}
		}
	}
}

func TestSpecialCoupleGapMirrored(t *testing.T) {
	geo, x := geometry(t, special())
	for i, c := range geo.Program.Couples {
		if c.Family == "F1" {
			// B is drawn right of A but listed first, as in a mirrored row.
			geo.Program.Couples[i].Left, geo.Program.Couples[i].Right = c.Right, c.Left
		}
	}
	opts := DefaultOptions()
	opts.MinCoupleGap = 80

	res := Process(Input{Geometry: geo, Index: x}, opts)

	a, _ := res.Scene.Box("A")
	b, _ := res.Scene.Box("B")
	if gap := b.Left() - a.Right(); gap < 80-1e-9 {
		t.Errorf("gap = %v, cards pushed the wrong way", gap)
	}
	if got := res.Scene.Offsets["A"]; math.Abs(got.X+14.8) > 1e-9 {
		t.Errorf("A offset = %v, want -14.8", got)
	}
	if got := res.Scene.Offsets["B"]; math.Abs(got.X-14.8) > 1e-9 {
		t.Errorf("B offset = %v, want 14.8", got)
	}
	if mid := (a.Right() + b.Left()) / 2; math.Abs(hubX(t, res.Scene, "F1")-mid) > 1 {
		t.Errorf("hub at %v, want %v", hubX(t, res.Scene, "F1"), mid)
	}
}

func child(f, c string) payload.Edge {
	return payload.Edge{From: f, To: c, Kind: payload.EdgeChild}
}

// multiSpouse is P with two wives and a family of his own: F1 (S1, two
// children), F2 (S2, one child) and F3 (P alone). F1 and F2 are special and
// share P.
func multiSpouse() payload.Payload {
	fam := func(id string, parents, children int) payload.Node {
		return payload.Node{ID: id, Type: payload.KindFamily, ParentsTotal: parents, ChildrenTotal: children}
	}
	return payload.Payload{
		Nodes: []payload.Node{
			person("P", "M"), person("S1", "F"), person("S2", "F"),
			person("K1", "F"), person("K2", "M"), person("K3", "M"), person("K4", "F"),
			fam("F1", 2, 2), fam("F2", 2, 1), fam("F3", 1, 1),
		},
		Edges: []payload.Edge{
			parent("P", "F1", payload.RoleFather), parent("S1", "F1", payload.RoleMother),
			parent("P", "F2", payload.RoleFather), parent("S2", "F2", payload.RoleMother),
			parent("P", "F3", payload.RoleFather),
			child("F1", "K1"), child("F1", "K2"), child("F2", "K3"), child("F3", "K4"),
		},
	}
}

func TestSpecialCouplesSharingASpouse(t *testing.T) {
	for _, minGap := range []float64{DefaultOptions().MinCoupleGap, 90, 160} {
		x := payload.NewIndex(multiSpouse())
		a := layout.NewAdapter(layout.NewGraphviz(), nil)
		geo, err := a.Layout(context.Background(), x, dot.DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		for _, f := range []string{"F1", "F2"} {
			if !geo.Program.Special[f] {
				t.Fatalf("%s not flagged special", f)
			}
		}
		before := make(map[string]float64)
		for _, id := range []string{"P", "S1", "S2"} {
			c, _ := geo.Scene.Center(id)
			before[id] = c.X
		}
		opts := DefaultOptions()
		opts.MinCoupleGap = minGap

		res := Process(Input{Geometry: geo, Index: x}, opts)

		for _, c := range []struct{ family, spouse string }{{"F1", "S1"}, {"F2", "S2"}} {
			p, _ := res.Scene.Box("P")
			s, _ := res.Scene.Box(c.spouse)
			sc, _ := res.Scene.Center(c.spouse)
			pc, _ := res.Scene.Center("P")
			if (sc.X < pc.X) != (before[c.spouse] < before["P"]) {
				t.Errorf("minGap %v: %s swapped sides with P", minGap, c.spouse)
			}
			left, right := p, s
			if sc.X < pc.X {
				left, right = s, p
			}
			if gap := right.Left() - left.Right(); gap < minGap-1e-6 {
				t.Errorf("minGap %v: %s gap = %v", minGap, c.family, gap)
			}
			if hx := hubX(t, res.Scene, c.family); hx <= left.Right() || hx >= right.Left() {
				t.Errorf("minGap %v: hub %s at %v outside gap %v..%v", minGap, c.family, hx, left.Right(), right.Left())
			}
		}
		if d := Detached(res.Scene, opts.SnapEpsilon); len(d) != 0 {
			t.Errorf("minGap %v: detached edges: %v", minGap, d)
		}
	}
}

func TestLookupFailuresAreSkipped(t *testing.T) {
	geo, x := geometry(t, special())
	res := Process(Input{Geometry: geo, Index: x, Selection: "ghost"}, DefaultOptions())

	for _, want := range []string{
		"F2: hub not rendered",
		"F2: hub not rendered, no expand controls",
		"ghost: selection not rendered",
	} {
		if !slices.Contains(res.Skipped, want) {
			t.Errorf("Skipped = %v, missing %q", res.Skipped, want)
		}
	}
	if got := hubX(t, res.Scene, "F1"); math.Abs(got-166) > 1 {
		t.Errorf("F1 not centered after F2 failed: %v", got)
	}
	if res.Outline != nil {
		t.Errorf("Outline = %+v", res.Outline)
	}
}

func TestHubsDecoratedUniformly(t *testing.T) {
	for _, p := range []payload.Payload{couple(), special()} {
		geo, x := geometry(t, p)
		res := Process(Input{Geometry: geo, Index: x}, DefaultOptions())
		hub, _ := res.Scene.Node("F1")
		if got := hub.Layers[0].RX; math.Abs(got-5.04*1.25) > 1e-9 {
			t.Errorf("hub radius = %v, want %v", got, 5.04*1.25)
		}
	}
}

func TestActions(t *testing.T) {
	geo, x := geometry(t, special())
	res := Process(Input{Geometry: geo, Index: x}, DefaultOptions())

	kinds := map[ActionKind][]string{}
	for _, a := range res.Actions {
		kinds[a.Kind] = append(kinds[a.Kind], a.Target)
	}
	if got := kinds[ActionSelectPerson]; !slices.Equal(got, []string{"A", "B"}) {
		t.Errorf("select-person targets = %v", got)
	}
	if got := kinds[ActionSelectFamily]; !slices.Equal(got, []string{"F1"}) {
		t.Errorf("select-family targets = %v", got)
	}
	if got := kinds[ActionExpandChildren]; !slices.Equal(got, []string{"F1"}) {
		t.Errorf("expand-children targets = %v", got)
	}
	if got := kinds[ActionExpandParents]; len(got) != 0 {
		t.Errorf("expand-parents targets = %v", got)
	}

	hub, _ := res.Scene.Center("F1")
	for _, a := range res.Actions {
		if a.Kind == ActionExpandChildren && !a.At.Near(hub.Add(geom.Pt(0, 16)), 1e-9) {
			t.Errorf("expand-children at %v, hub at %v", a.At, hub)
		}
	}
}

func TestSelectionOutline(t *testing.T) {
	for _, screen := range []geom.Matrix{{}, geom.Scale(2, 2), {A: 0.5, D: 0.5, E: 100, F: 7}} {
		geo, x := geometry(t, couple())
		res := Process(Input{Geometry: geo, Index: x, Selection: "A", Screen: screen}, DefaultOptions())
		if res.Outline == nil {
			t.Fatal("no outline")
		}
		want := geom.Rect{X: 0, Y: 0, W: 144.8, H: 62}
		got := res.Outline.Box
		if math.Abs(got.X-want.X) > 1e-6 || math.Abs(got.Y-want.Y) > 1e-6 ||
			math.Abs(got.W-want.W) > 1e-6 || math.Abs(got.H-want.H) > 1e-6 {
			t.Errorf("screen %v: outline = %+v, want %+v", screen, got, want)
		}
		if res.Outline.Radius != DefaultOptions().OutlineRadius {
			t.Errorf("radius = %v", res.Outline.Radius)
		}
	}
}

func TestSelectMovesOutline(t *testing.T) {
	geo, x := geometry(t, couple())
	res := Process(Input{Geometry: geo, Index: x, Selection: "A"}, DefaultOptions())
	moved := slices.Clone(res.Moved)

	Select(res, "B", geom.Scale(2, 2), DefaultOptions())
	if res.Outline == nil || res.Outline.ID != "B" {
		t.Fatalf("outline = %+v, want B", res.Outline)
	}
	want := geom.Rect{X: 187.2, Y: 0, W: 144.8, H: 62}
	if got := res.Outline.Box; math.Abs(got.X-want.X) > 1e-6 || math.Abs(got.W-want.W) > 1e-6 || math.Abs(got.H-want.H) > 1e-6 {
		t.Errorf("outline = %+v, want %+v", got, want)
	}
	if !slices.Equal(res.Moved, moved) {
		t.Errorf("Select moved nodes: %v", res.Moved)
	}

	Select(res, "", geom.Identity, DefaultOptions())
	if res.Outline != nil {
		t.Error("empty selection kept an outline")
	}
	Select(res, "nobody", geom.Identity, DefaultOptions())
	if res.Outline != nil || !strings.Contains(res.Skipped[len(res.Skipped)-1], "nobody: selection not rendered") {
		t.Errorf("unknown selection: outline %+v, skipped %v", res.Outline, res.Skipped)
	}
}

func TestFloatingSingleParentHubReanchored(t *testing.T) {
	svg, err := os.ReadFile("testdata/floating.svg")
	if err != nil {
		t.Fatal(err)
	}
	p := payload.Payload{
		Nodes: []payload.Node{person("E", "F"), {ID: "F2", Type: payload.KindFamily, ParentsTotal: 1}},
		Edges: []payload.Edge{parent("E", "F2", payload.RoleMother)},
	}
	x := payload.NewIndex(p)
	prog := dot.Generate(x, dot.DefaultOptions())
	sc, err := scene.Parse(svg, prog)
	if err != nil {
		t.Fatal(err)
	}

	res := Process(Input{Geometry: &layout.Geometry{Program: prog, Scene: sc}, Index: x}, DefaultOptions())

	card, _ := res.Scene.Box("E")
	hub, _ := res.Scene.Center("F2")
	if hub.Y < card.Top() || hub.Y > card.Bottom() {
		t.Errorf("hub at y=%v, parent card spans %v..%v", hub.Y, card.Top(), card.Bottom())
	}
	if len(res.Notes) != 1 || !strings.Contains(res.Notes[0], "re-anchored") {
		t.Errorf("Notes = %v", res.Notes)
	}
	if d := Detached(res.Scene, 0.5); len(d) != 0 {
		t.Errorf("detached edges: %v", d)
	}
}
