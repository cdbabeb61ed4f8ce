package svg

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/matzehuels/famtree/pkg/geom"
	"github.com/matzehuels/famtree/pkg/payload"
	"github.com/matzehuels/famtree/pkg/postprocess"
	"github.com/matzehuels/famtree/pkg/scene"
	"github.com/matzehuels/famtree/pkg/viewport"
)

const chartCSS = `
    .edge { fill: none; stroke: #5f5f5f; stroke-width: 1.2; }
    .person { cursor: pointer; }
    .person text { font-family: Helvetica, Arial, sans-serif; pointer-events: none; }
    .person.private path, .person.private polygon { fill: #e6e6e6; }
    .hub { cursor: pointer; }
    .hub ellipse { fill: #5f5f5f; stroke: #5f5f5f; }
    .affordance { cursor: pointer; }
    .affordance circle { fill: #ffffff; stroke: #3b6ea5; stroke-width: 1.2; }
    .affordance text { fill: #3b6ea5; font: bold 10px sans-serif; text-anchor: middle; dominant-baseline: central; pointer-events: none; }
    .affordance:hover circle { fill: #3b6ea5; }
    .affordance:hover text { fill: #ffffff; }
    .selection { fill: none; stroke: #e0a100; stroke-width: 2.5; pointer-events: none; }
    .busy .affordance { pointer-events: none; opacity: 0.4; }`

const chartJS = `
    (function () {
      var svg = document.currentScript ? document.currentScript.ownerSVGElement || document.documentElement : document.documentElement;
      function emit(detail) {
        window.dispatchEvent(new CustomEvent('famtree', { detail: detail }));
        if (window.parent && window.parent !== window) { window.parent.postMessage({ famtree: detail }, '*'); }
      }
      function clickPoint(evt) { return { x: evt.clientX, y: evt.clientY }; }
      svg.querySelectorAll('[data-action]').forEach(function (el) {
        el.addEventListener('click', function (evt) {
          evt.stopPropagation();
          var d = el.dataset;
          switch (d.action) {
            case 'select-person': emit({ type: 'person_selected', person_id: d.id }); break;
            case 'select-family': emit({ type: 'family_selected', family_id: d.id }); break;
            case 'expand-parents':
              if (svg.classList.contains('busy')) { return; }
              emit({ type: 'expand_requested', family_id: d.id, kind: 'parents', child_id: d.child || '', anchor_id: d.anchor || d.id, click: clickPoint(evt) });
              break;
            case 'expand-children':
              if (svg.classList.contains('busy')) { return; }
              emit({ type: 'expand_requested', family_id: d.id, kind: 'children', anchor_id: d.anchor || d.id, click: clickPoint(evt) });
              break;
          }
        });
      });
    })();`

// Option configures the document.
type Option func(*renderer)

type renderer struct {
	index  *payload.Index
	view   *viewport.View
	title  string
	script bool
	busy   bool
}

// WithIndex supplies node details: tooltips, portraits and private styling.
func WithIndex(x *payload.Index) Option { return func(r *renderer) { r.index = x } }

// WithView sets the document viewBox and size from a view. Without it the
// document shows the whole chart at its natural size.
func WithView(v viewport.View) Option { return func(r *renderer) { r.view = &v } }

// WithTitle sets the document title.
func WithTitle(t string) Option { return func(r *renderer) { r.title = t } }

// WithoutScript omits the embedded event script, for static exports.
func WithoutScript() Option { return func(r *renderer) { r.script = false } }

// WithBusy marks the chart busy; expand controls are disabled.
func WithBusy(busy bool) Option { return func(r *renderer) { r.busy = busy } }

// RenderSVG writes res as an SVG document.
func RenderSVG(res *postprocess.Result, opts ...Option) []byte {
	r := renderer{script: true}
	for _, opt := range opts {
		opt(&r)
	}
	sc := res.Scene

	box, width, height := sc.Bounds().Inset(-8), 0.0, 0.0
	if r.view != nil && !r.view.Box.Empty() {
		box, width, height = r.view.Box, r.view.Width, r.view.Height
	}
	if width <= 0 || height <= 0 {
		width, height = box.W, box.H
	}

	var buf bytes.Buffer
	class := "famtree"
	if r.busy {
		class += " busy"
	}
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" class="%s" viewBox="%s %s %s %s" width="%s" height="%s" preserveAspectRatio="xMidYMid meet">`+"\n",
		class, num(box.X), num(box.Y), num(box.W), num(box.H), num(width), num(height))
	if r.title != "" {
		fmt.Fprintf(&buf, "  <title>%s</title>\n", escape(r.title))
	}
	fmt.Fprintf(&buf, "  <style>%s\n  </style>\n", chartCSS)

	buf.WriteString(`  <g id="chart" class="chart">` + "\n")
	for _, e := range sc.Edges {
		writeEdge(&buf, e)
	}
	selects := make(map[string]postprocess.ActionKind)
	for _, a := range res.Actions {
		if a.Kind == postprocess.ActionSelectPerson || a.Kind == postprocess.ActionSelectFamily {
			selects[a.Target] = a.Kind
		}
	}
	for _, n := range sc.Nodes {
		r.writeNode(&buf, sc, n, selects[n.ID])
	}
	for _, a := range res.Actions {
		if a.Kind == postprocess.ActionExpandParents || a.Kind == postprocess.ActionExpandChildren {
			writeAffordance(&buf, a)
		}
	}
	if o := res.Outline; o != nil {
		fmt.Fprintf(&buf, `    <rect class="selection" data-id="%s" x="%s" y="%s" width="%s" height="%s" rx="%s" ry="%s"/>`+"\n",
			escape(o.ID), num(o.Box.X), num(o.Box.Y), num(o.Box.W), num(o.Box.H), num(o.Radius), num(o.Radius))
	}
	buf.WriteString("  </g>\n")

	if r.script {
		fmt.Fprintf(&buf, "  <script type=\"text/javascript\"><![CDATA[%s\n  ]]></script>\n", chartJS)
	}
	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

func writeEdge(buf *bytes.Buffer, e *scene.Edge) {
	d := e.Raw
	if e.Path != nil {
		d = e.Path.String()
	}
	fmt.Fprintf(buf, `    <path id="%s" class="edge %s" data-from="%s" data-to="%s"%s d="%s"/>`+"\n",
		escape(e.DOMID), e.Ref.Edge.Kind, escape(e.Ref.Edge.From), escape(e.Ref.Edge.To), transformAttr(e.CTM), escape(d))
}

func (r *renderer) writeNode(buf *bytes.Buffer, sc *scene.Scene, n *scene.Node, action postprocess.ActionKind) {
	ctm, _ := sc.NodeCTM(n.ID)
	class := "node person"
	var info payload.Node
	var known bool
	if r.index != nil {
		info, known = r.index.Node(n.ID)
	}
	if n.Kind == payload.KindFamily {
		class = "node hub"
	} else if known && info.Private {
		class += " private"
	}

	fmt.Fprintf(buf, `    <g id="%s" class="%s" data-id="%s"`, escape(n.DOMID), class, escape(n.ID))
	if action != "" {
		fmt.Fprintf(buf, ` data-action="%s"`, action)
	}
	buf.WriteString(transformAttr(ctm) + ">\n")
	if known && n.Kind == payload.KindPerson {
		tip := info.Name()
		if span := info.Lifespan(); span != "" {
			tip += " (" + span + ")"
		}
		fmt.Fprintf(buf, "      <title>%s</title>\n", escape(tip))
	}
	for _, l := range n.Layers {
		writeShape(buf, l)
	}
	if known && info.Portrait != "" && !info.Private {
		writePortrait(buf, n.LocalBounds(), info.Portrait)
	}
	buf.WriteString("    </g>\n")
}

func writeShape(buf *bytes.Buffer, s scene.Shape) {
	paint := fmt.Sprintf(` fill="%s" stroke="%s"`, escape(orNone(s.Fill)), escape(orNone(s.Stroke)))
	switch s.Kind {
	case scene.ShapePolygon:
		fmt.Fprintf(buf, `      <polygon%s points="%s"/>`+"\n", paint, points(s.Points))
	case scene.ShapeEllipse:
		fmt.Fprintf(buf, `      <ellipse%s cx="%s" cy="%s" rx="%s" ry="%s"/>`+"\n",
			paint, num(s.Center.X), num(s.Center.Y), num(s.RX), num(s.RY))
	case scene.ShapePath:
		fmt.Fprintf(buf, `      <path%s d="%s"/>`+"\n", paint, s.Path.String())
	case scene.ShapeRect:
		fmt.Fprintf(buf, `      <rect%s x="%s" y="%s" width="%s" height="%s"/>`+"\n",
			paint, num(s.Box.X), num(s.Box.Y), num(s.Box.W), num(s.Box.H))
	case scene.ShapeImage:
		fmt.Fprintf(buf, `      <image href="%s" x="%s" y="%s" width="%s" height="%s"/>`+"\n",
			escape(s.Href), num(s.Box.X), num(s.Box.Y), num(s.Box.W), num(s.Box.H))
	case scene.ShapeText:
		anchor := s.Anchor
		if anchor == "" {
			anchor = "start"
		}
		fmt.Fprintf(buf, `      <text text-anchor="%s" x="%s" y="%s" font-size="%s">%s</text>`+"\n",
			anchor, num(s.Points[0].X), num(s.Points[0].Y), num(s.FontSize), escape(s.Text))
	}
}

// writePortrait places a square portrait at the left end of a card.
func writePortrait(buf *bytes.Buffer, card geom.Rect, href string) {
	side := card.H - 8
	if side <= 0 {
		return
	}
	fmt.Fprintf(buf, `      <image class="portrait" href="%s" x="%s" y="%s" width="%s" height="%s" preserveAspectRatio="xMidYMid slice"/>`+"\n",
		escape(href), num(card.X+4), num(card.Y+4), num(side), num(side))
}

func writeAffordance(buf *bytes.Buffer, a postprocess.Action) {
	glyph := "▼"
	if a.Kind == postprocess.ActionExpandParents {
		glyph = "▲"
	}
	fmt.Fprintf(buf, `    <g class="affordance %s" data-action="%s" data-id="%s"`, a.Kind, a.Kind, escape(a.Target))
	if a.Child != "" {
		fmt.Fprintf(buf, ` data-child="%s"`, escape(a.Child))
	}
	buf.WriteString(">\n")
	fmt.Fprintf(buf, `      <circle cx="%s" cy="%s" r="%s"/>`+"\n", num(a.At.X), num(a.At.Y), num(a.Radius))
	fmt.Fprintf(buf, `      <text x="%s" y="%s">%s</text>`+"\n", num(a.At.X), num(a.At.Y), glyph)
	buf.WriteString("    </g>\n")
}

func transformAttr(m geom.Matrix) string {
	if m == (geom.Matrix{}) || m.IsIdentity() {
		return ""
	}
	return fmt.Sprintf(` transform="%s"`, m)
}

func points(pts []geom.Point) string {
	var b bytes.Buffer
	for i, p := range pts {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%s,%s", num(p.X), num(p.Y))
	}
	return b.String()
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func num(v float64) string { return strconv.FormatFloat(geom.Round(v, 2), 'f', -1, 64) }

func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
