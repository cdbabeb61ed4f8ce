// Package scene turns engine SVG output into a plain scene graph: person and
// hub nodes made of layered shapes, and edges with their routing points.
//
// The scene is the derived, disposable view of a layout. Nothing reads
// positions back out of rendered markup; post-processing works on these
// structs, records every translation in the scene's offset table and the SVG
// sink writes the result.
//
// Coordinates are parsed in each element's local space together with the
// transform that maps them into user space (the SVG viewBox space). Call
// [Scene.Normalize] to bake the transforms into the coordinates.
package scene

import (
	"github.com/matzehuels/famtree/pkg/dot"
	"github.com/matzehuels/famtree/pkg/geom"
	"github.com/matzehuels/famtree/pkg/payload"
)

// ShapeKind is the SVG element a shape came from.
type ShapeKind string

// Shape kinds.
const (
	ShapePolygon ShapeKind = "polygon"
	ShapeEllipse ShapeKind = "ellipse"
	ShapePath    ShapeKind = "path"
	ShapeText    ShapeKind = "text"
	ShapeRect    ShapeKind = "rect"
	ShapeImage   ShapeKind = "image"
)

// Shape is one layer of a node.
type Shape struct {
	Kind ShapeKind

	Points []geom.Point // polygon corners, path points, text anchor
	Path   *Path        // parsed path data for ShapePath
	Center geom.Point   // ellipse
	RX, RY float64      // ellipse radii
	Box    geom.Rect    // rect and image

	Text     string
	FontSize float64
	Anchor   string // text-anchor

	Fill   string
	Stroke string
	Href   string // image source
}

// Bounds returns the shape's bounding box in its own coordinates.
func (s Shape) Bounds() geom.Rect {
	switch s.Kind {
	case ShapeEllipse:
		return geom.Rect{X: s.Center.X - s.RX, Y: s.Center.Y - s.RY, W: 2 * s.RX, H: 2 * s.RY}
	case ShapeRect, ShapeImage:
		return s.Box
	case ShapePath:
		if s.Path != nil {
			return s.Path.Bounds()
		}
	case ShapeText:
		if len(s.Points) == 0 {
			return geom.Rect{}
		}
		// Approximate metrics: average glyph width 0.6em, ascent 0.8em.
		w := 0.6 * s.FontSize * float64(len([]rune(s.Text)))
		x := s.Points[0].X
		switch s.Anchor {
		case "middle":
			x -= w / 2
		case "end":
			x -= w
		}
		return geom.Rect{X: x, Y: s.Points[0].Y - 0.8*s.FontSize, W: w, H: s.FontSize}
	}
	return geom.RectFromPoints(s.Points...)
}

// transform maps the shape's coordinates through m. Ellipse radii and font
// sizes scale by the matrix's axis scale factors.
func (s *Shape) transform(m geom.Matrix) {
	for i, p := range s.Points {
		s.Points[i] = m.Apply(p)
	}
	if s.Path != nil {
		s.Path.Transform(m)
	}
	sx, sy := axisScale(m)
	switch s.Kind {
	case ShapeEllipse:
		s.Center = m.Apply(s.Center)
		s.RX *= sx
		s.RY *= sy
	case ShapeRect, ShapeImage:
		s.Box = m.ApplyRect(s.Box)
	case ShapeText:
		s.FontSize *= sy
	}
}

// Scale scales an ellipse around its center. Other shapes are unchanged.
func (s *Shape) Scale(k float64) {
	if s.Kind == ShapeEllipse {
		s.RX *= k
		s.RY *= k
	}
}

func axisScale(m geom.Matrix) (float64, float64) {
	x := m.ApplyVector(geom.Pt(1, 0))
	y := m.ApplyVector(geom.Pt(0, 1))
	return x.Dist(geom.Point{}), y.Dist(geom.Point{})
}

// Node is a rendered person card or family hub.
type Node struct {
	ID     string
	Kind   payload.Kind
	DOMID  string
	Title  string
	Layers []Shape

	// CTM maps the layers' coordinates into user space.
	CTM geom.Matrix
}

// LocalBounds returns the union of the layers' bounds before CTM.
func (n *Node) LocalBounds() geom.Rect {
	var r geom.Rect
	for _, s := range n.Layers {
		r = r.Union(s.Bounds())
	}
	return r
}

// Edge is a rendered edge with its routing.
type Edge struct {
	DOMID string
	Ref   dot.EdgeRef
	Path  *Path // nil when the path data could not be parsed
	Raw   string
	CTM   geom.Matrix
}

// Scene is the geometry of one layout.
type Scene struct {
	// ViewBox is the root viewBox; Width and Height are the root size in points.
	ViewBox       geom.Rect
	Width, Height float64

	// Layer is the transform of the engine's root group.
	Layer geom.Matrix

	Nodes []*Node
	Edges []*Edge

	// Offsets records every translation applied after layout, in user
	// space, keyed by node id.
	Offsets map[string]geom.Point

	Normalized bool

	byID map[string]*Node
}

func newScene() *Scene {
	return &Scene{
		Layer:   geom.Identity,
		Offsets: make(map[string]geom.Point),
		byID:    make(map[string]*Node),
	}
}

// Node returns the node with the given payload id.
func (s *Scene) Node(id string) (*Node, bool) {
	n, ok := s.byID[id]
	return n, ok
}

// NodeCTM returns the node's full transform including its recorded offset.
func (s *Scene) NodeCTM(id string) (geom.Matrix, bool) {
	n, ok := s.byID[id]
	if !ok {
		return geom.Matrix{}, false
	}
	off := s.Offsets[id]
	return geom.Translate(off.X, off.Y).Mul(n.CTM), true
}

// Box returns a node's bounding box in user space, offset included.
func (s *Scene) Box(id string) (geom.Rect, bool) {
	n, ok := s.byID[id]
	if !ok || len(n.Layers) == 0 {
		return geom.Rect{}, false
	}
	m, _ := s.NodeCTM(id)
	var r geom.Rect
	for _, l := range n.Layers {
		r = r.Union(m.ApplyRect(l.Bounds()))
	}
	return r, true
}

// Center returns the center of a node's box in user space.
func (s *Scene) Center(id string) (geom.Point, bool) {
	r, ok := s.Box(id)
	return r.Center(), ok
}

// Translate adds d to the node's offset. It reports false for unknown ids.
func (s *Scene) Translate(id string, d geom.Point) bool {
	if _, ok := s.byID[id]; !ok {
		return false
	}
	s.Offsets[id] = s.Offsets[id].Add(d)
	return true
}

// EdgesOf returns the edges drawn to or from a node.
func (s *Scene) EdgesOf(id string) []*Edge {
	var out []*Edge
	for _, e := range s.Edges {
		if e.Ref.Tail == id || e.Ref.Head == id {
			out = append(out, e)
		}
	}
	return out
}

// Bounds returns the union of every node box and edge path in user space.
func (s *Scene) Bounds() geom.Rect {
	var r geom.Rect
	for _, n := range s.Nodes {
		if b, ok := s.Box(n.ID); ok {
			r = r.Union(b)
		}
	}
	for _, e := range s.Edges {
		if e.Path != nil {
			r = r.Union(e.CTM.ApplyRect(e.Path.Bounds()))
		}
	}
	return r
}

// Normalize maps every coordinate into user space and resets the element
// transforms to the identity. Offsets are unaffected.
func (s *Scene) Normalize() {
	if s.Normalized {
		return
	}
	for _, n := range s.Nodes {
		for i := range n.Layers {
			n.Layers[i].transform(n.CTM)
		}
		n.CTM = geom.Identity
	}
	for _, e := range s.Edges {
		if e.Path != nil {
			e.Path.Transform(e.CTM)
		}
		e.CTM = geom.Identity
	}
	s.Normalized = true
}
