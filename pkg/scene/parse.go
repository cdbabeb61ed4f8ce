package scene

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/matzehuels/famtree/pkg/dot"
	"github.com/matzehuels/famtree/pkg/geom"
)

// ErrNoSVG is returned when the document has no svg root element.
var ErrNoSVG = errors.New("scene: document has no svg element")

// Parse reads engine SVG output into a scene. Node and edge groups are
// matched to the program through their id attributes; groups that match
// nothing are ignored.
func Parse(svg []byte, prog *dot.Program) (*Scene, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(svg))
	if err != nil {
		return nil, fmt.Errorf("scene: parse svg: %w", err)
	}
	root := xmlquery.FindOne(doc, "//svg")
	if root == nil {
		return nil, ErrNoSVG
	}

	s := newScene()
	if vb := root.SelectAttr("viewBox"); vb != "" {
		nums, err := geom.ParsePoints(vb)
		if err != nil || len(nums) != 2 {
			return nil, fmt.Errorf("scene: invalid viewBox %q", vb)
		}
		s.ViewBox = geom.Rect{X: nums[0].X, Y: nums[0].Y, W: nums[1].X, H: nums[1].Y}
	}
	if s.Width, err = geom.ParseFloat(root.SelectAttr("width")); err != nil {
		return nil, fmt.Errorf("scene: invalid width: %w", err)
	}
	if s.Height, err = geom.ParseFloat(root.SelectAttr("height")); err != nil {
		return nil, fmt.Errorf("scene: invalid height: %w", err)
	}
	if s.ViewBox.Empty() {
		s.ViewBox = geom.Rect{W: s.Width, H: s.Height}
	}

	p := &parser{scene: s, prog: prog}
	if err := p.walk(root, geom.Identity); err != nil {
		return nil, err
	}
	return s, nil
}

type parser struct {
	scene    *Scene
	prog     *dot.Program
	layerSet bool
}

func (p *parser) walk(n *xmlquery.Node, ctm geom.Matrix) error {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		if c.Data != "g" && c.Data != "a" {
			continue
		}
		m, err := elementCTM(c, ctm)
		if err != nil {
			return err
		}
		switch classes := strings.Fields(c.SelectAttr("class")); {
		case slices.Contains(classes, "node"):
			p.node(c, m)
		case slices.Contains(classes, "edge"):
			p.edge(c, m)
		default:
			if slices.Contains(classes, "graph") && !p.layerSet {
				p.scene.Layer = m
				p.layerSet = true
			}
			if err := p.walk(c, m); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *parser) node(g *xmlquery.Node, ctm geom.Matrix) {
	title := titleOf(g)
	id, kind, ok := p.prog.Resolve(g.SelectAttr("id"), title)
	if !ok {
		return
	}
	if _, dup := p.scene.byID[id]; dup {
		return
	}
	n := &Node{ID: id, Kind: kind, DOMID: g.SelectAttr("id"), Title: title, CTM: ctm}
	n.Layers = collectShapes(g, geom.Identity)
	p.scene.Nodes = append(p.scene.Nodes, n)
	p.scene.byID[id] = n
}

func (p *parser) edge(g *xmlquery.Node, ctm geom.Matrix) {
	ref, ok := p.prog.EdgeRef(g.SelectAttr("id"))
	if !ok {
		return
	}
	e := &Edge{DOMID: g.SelectAttr("id"), Ref: ref, CTM: ctm}
	if el := xmlquery.FindOne(g, ".//path"); el != nil {
		e.Raw = el.SelectAttr("d")
		if path, err := ParsePath(e.Raw); err == nil {
			local, err := elementCTM(el, geom.Identity)
			if err == nil {
				path.Transform(local)
				e.Path = path
			}
		}
	}
	p.scene.Edges = append(p.scene.Edges, e)
}

// collectShapes gathers the drawable descendants of n. Nested transforms
// are applied to the shapes so a node keeps a single CTM.
func collectShapes(n *xmlquery.Node, local geom.Matrix) []Shape {
	var out []Shape
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != xmlquery.ElementNode {
			continue
		}
		m, err := elementCTM(c, local)
		if err != nil {
			continue
		}
		if c.Data == "g" || c.Data == "a" {
			out = append(out, collectShapes(c, m)...)
			continue
		}
		s, ok := shapeOf(c)
		if !ok {
			continue
		}
		if !m.IsIdentity() {
			s.transform(m)
		}
		out = append(out, s)
	}
	return out
}

func shapeOf(el *xmlquery.Node) (Shape, bool) {
	s := Shape{Fill: el.SelectAttr("fill"), Stroke: el.SelectAttr("stroke")}
	f := func(name string) float64 {
		v, _ := geom.ParseFloat(el.SelectAttr(name))
		return v
	}
	switch el.Data {
	case "polygon", "polyline":
		pts, err := geom.ParsePoints(el.SelectAttr("points"))
		if err != nil || len(pts) == 0 {
			return Shape{}, false
		}
		s.Kind, s.Points = ShapePolygon, pts
	case "ellipse", "circle":
		s.Kind = ShapeEllipse
		s.Center = geom.Pt(f("cx"), f("cy"))
		if el.Data == "circle" {
			s.RX, s.RY = f("r"), f("r")
		} else {
			s.RX, s.RY = f("rx"), f("ry")
		}
	case "path":
		path, err := ParsePath(el.SelectAttr("d"))
		if err != nil {
			return Shape{}, false
		}
		s.Kind, s.Path = ShapePath, path
	case "rect", "image":
		s.Kind = ShapeRect
		if el.Data == "image" {
			s.Kind = ShapeImage
			s.Href = el.SelectAttr("xlink:href")
			if s.Href == "" {
				s.Href = el.SelectAttr("href")
			}
		}
		s.Box = geom.Rect{X: f("x"), Y: f("y"), W: f("width"), H: f("height")}
	case "text":
		s.Kind = ShapeText
		s.Points = []geom.Point{geom.Pt(f("x"), f("y"))}
		s.Text = el.InnerText()
		s.FontSize = f("font-size")
		s.Anchor = el.SelectAttr("text-anchor")
	default:
		return Shape{}, false
	}
	return s, true
}

func elementCTM(el *xmlquery.Node, parent geom.Matrix) (geom.Matrix, error) {
	t := el.SelectAttr("transform")
	if t == "" {
		return parent, nil
	}
	m, err := geom.ParseTransform(t)
	if err != nil {
		return geom.Matrix{}, fmt.Errorf("scene: element %q: %w", el.SelectAttr("id"), err)
	}
	return parent.Mul(m), nil
}

func titleOf(g *xmlquery.Node) string {
	if t := xmlquery.FindOne(g, "./title"); t != nil {
		return strings.TrimSpace(t.InnerText())
	}
	return ""
}
