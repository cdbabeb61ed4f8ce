package svg

import (
	"os"
	"strings"
	"testing"

	"github.com/antchfx/xmlquery"

	"github.com/matzehuels/famtree/pkg/dot"
	"github.com/matzehuels/famtree/pkg/geom"
	"github.com/matzehuels/famtree/pkg/layout"
	"github.com/matzehuels/famtree/pkg/payload"
	"github.com/matzehuels/famtree/pkg/postprocess"
	"github.com/matzehuels/famtree/pkg/scene"
	"github.com/matzehuels/famtree/pkg/viewport"
)

func processed(t *testing.T, selection string) (*postprocess.Result, *payload.Index) {
	t.Helper()
	svg, err := os.ReadFile("../../scene/testdata/couple.svg")
	if err != nil {
		t.Fatal(err)
	}
	x := payload.NewIndex(payload.Payload{
		Nodes: []payload.Node{
			{ID: "A", Type: payload.KindPerson, DisplayName: "Adam <Sr.>", Birth: "1900", Death: "1970", Portrait: "https://example.org/a.jpg"},
			{ID: "B", Type: payload.KindPerson, Private: true},
			{ID: "F1", Type: payload.KindFamily, ParentsTotal: 2, ChildrenTotal: 2},
		},
		Edges: []payload.Edge{
			{From: "A", To: "F1", Kind: payload.EdgeParent, Role: payload.RoleFather},
			{From: "B", To: "F1", Kind: payload.EdgeParent, Role: payload.RoleMother},
		},
	})
	prog := dot.Generate(x, dot.DefaultOptions())
	sc, err := scene.Parse(svg, prog)
	if err != nil {
		t.Fatal(err)
	}
	geo := &layout.Geometry{Program: prog, Scene: sc}
	return postprocess.Process(postprocess.Input{Geometry: geo, Index: x, Selection: selection}, postprocess.DefaultOptions()), x
}

func TestRenderSVGIsWellFormed(t *testing.T) {
	res, x := processed(t, "A")
	out := RenderSVG(res, WithIndex(x), WithTitle("Family of A & B"))

	doc, err := xmlquery.Parse(strings.NewReader(string(out)))
	if err != nil {
		t.Fatalf("output is not XML: %v\n%s", err, out)
	}
	checks := map[string]int{
		"//g[@data-action='select-person']":   2,
		"//g[@data-action='select-family']":   1,
		"//g[@data-action='expand-children']": 1,
		"//g[@data-action='expand-parents']":  0,
		"//path[contains(@class,'edge')]":     2,
		"//rect[@class='selection']":          1,
		"//image[@class='portrait']":          1,
		"//g[contains(@class,'private')]":     1,
		"//script":                            1,
	}
	for expr, want := range checks {
		if got := len(xmlquery.Find(doc, expr)); got != want {
			t.Errorf("%s: %d matches, want %d", expr, got, want)
		}
	}
	if title := xmlquery.FindOne(doc, "//g[@id='p_A']/title"); title == nil || title.InnerText() != "Adam <Sr.> (1900 – 1970)" {
		t.Errorf("tooltip = %v", title)
	}
}

func TestRenderSVGAppliesOffsets(t *testing.T) {
	res, _ := processed(t, "")
	out := string(RenderSVG(res))

	// The hub moved 2 units right to sit between the cards.
	if !strings.Contains(out, `<g id="f_F1" class="node hub" data-id="F1" data-action="select-family" transform="translate(2 0)">`) {
		t.Errorf("hub offset not applied:\n%s", out)
	}
	if !strings.Contains(out, `<g id="p_A" class="node person" data-id="A" data-action="select-person">`) {
		t.Errorf("unmoved card has a transform:\n%s", out)
	}
	if !strings.Contains(out, `d="M140.8,31C148.8,31 152.96,31 160.96,31"`) {
		t.Errorf("edge e_0 not re-snapped:\n%s", out)
	}
}

func TestRenderSVGOptions(t *testing.T) {
	res, _ := processed(t, "")
	view := viewport.View{Box: geom.Rect{X: -10, Y: 5, W: 200, H: 100}, Width: 800, Height: 400}
	out := string(RenderSVG(res, WithView(view), WithoutScript(), WithBusy(true)))

	for _, want := range []string{`viewBox="-10 5 200 100"`, `width="800"`, `height="400"`, `class="famtree busy"`} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %s", want)
		}
	}
	if strings.Contains(out, "<script") {
		t.Error("script present with WithoutScript")
	}
	if strings.Contains(out, "<title>") {
		t.Error("tooltips present without index")
	}
}
