package postprocess

import (
	"fmt"
	"math"

	"github.com/matzehuels/famtree/pkg/dot"
	"github.com/matzehuels/famtree/pkg/geom"
	"github.com/matzehuels/famtree/pkg/layout"
	"github.com/matzehuels/famtree/pkg/payload"
	"github.com/matzehuels/famtree/pkg/scene"
)

// ActionKind names what clicking an element does.
type ActionKind string

// Action kinds. Selecting never expands or recenters.
const (
	ActionSelectPerson   ActionKind = "select-person"
	ActionSelectFamily   ActionKind = "select-family"
	ActionExpandParents  ActionKind = "expand-parents"
	ActionExpandChildren ActionKind = "expand-children"
)

// Action is an interactive element of the chart. Select actions attach to
// their node; expand actions are separate controls drawn at At.
type Action struct {
	Kind   ActionKind `json:"kind"`
	Target string     `json:"target"`
	Child  string     `json:"child,omitempty"`
	At     geom.Point `json:"at"`
	Radius float64    `json:"radius,omitempty"`
}

// Outline is the selection outline in user space.
type Outline struct {
	ID     string
	Box    geom.Rect
	Radius float64
}

// Input is the geometry to process.
type Input struct {
	Geometry  *layout.Geometry
	Index     *payload.Index
	Selection string

	// Screen maps user space to client pixels; the zero value means
	// identity.
	Screen geom.Matrix
}

// Result is the processed chart.
type Result struct {
	Scene   *scene.Scene
	Program *dot.Program
	Actions []Action
	Outline *Outline

	// Moved lists translated nodes in the order they were first moved.
	Moved []string

	// Skipped explains nodes and edges a step could not resolve.
	Skipped []string

	// Notes records corrections beyond the regular steps.
	Notes []string

	// Corrections counts special couples pushed apart.
	Corrections int
}

// Process runs every step on in.Geometry's scene, which it modifies.
func Process(in Input, opts Options) *Result {
	opts = opts.withDefaults()
	geo := in.Geometry
	p := &processor{
		sc:   geo.Scene,
		prog: geo.Program,
		x:    in.Index,
		opts: opts,
		res:  &Result{Scene: geo.Scene, Program: geo.Program},
		seen: make(map[string]bool),
	}
	p.m = newMeasurer(geo.Scene, in.Screen)

	p.sc.Normalize()
	p.centerHubs()
	p.enforceCoupleGaps()
	p.resnapEdges()
	p.decorateHubs()
	p.wireActions()
	p.outline(in.Selection)
	return p.res
}

type processor struct {
	sc   *scene.Scene
	prog *dot.Program
	x    *payload.Index
	m    measurer
	opts Options
	res  *Result
	seen map[string]bool
}

func (p *processor) skip(format string, args ...any) {
	p.res.Skipped = append(p.res.Skipped, fmt.Sprintf(format, args...))
}

func (p *processor) translate(id string, d geom.Point) {
	if math.Abs(d.X) < 1e-9 && math.Abs(d.Y) < 1e-9 {
		return
	}
	if !p.sc.Translate(id, d) {
		return
	}
	if !p.seen[id] {
		p.seen[id] = true
		p.res.Moved = append(p.res.Moved, id)
	}
}

// =============================================================================
// Hub Centering
// =============================================================================

func (p *processor) centerHubs() {
	for _, c := range p.prog.Couples {
		p.centerHub(c)
	}
}

// centerHub moves a two-parent hub horizontally to the middle of the gap
// between its parent cards. A single-parent hub that ended up outside its
// parent's rank band is pulled back level with the parent.
func (p *processor) centerHub(c dot.Couple) {
	hub, ok := p.m.screenBox(c.Family)
	if !ok {
		p.skip("%s: hub not rendered", c.Family)
		return
	}
	left, ok := p.m.screenBox(c.Left)
	if !ok {
		p.skip("%s: parent %s not rendered", c.Family, c.Left)
		return
	}
	from := hub.Center()

	if c.Single() {
		if from.Y >= left.Top() && from.Y <= left.Bottom() {
			return
		}
		to := geom.Pt(from.X, left.Center().Y)
		p.translate(c.Family, p.m.userDelta(from, to))
		p.res.Notes = append(p.res.Notes, fmt.Sprintf("%s: hub detached from parent %s, re-anchored", c.Family, c.Left))
		return
	}

	right, ok := p.m.screenBox(c.Right)
	if !ok {
		p.skip("%s: parent %s not rendered", c.Family, c.Right)
		return
	}
	left, right = byX(left, right)
	to := geom.Pt((left.Right()+right.Left())/2, from.Y)
	d := p.m.userDelta(from, to)
	d.Y = 0
	p.translate(c.Family, d)
}

// =============================================================================
// Special Couple Gap
// =============================================================================

// byX orders two boxes left to right. Couple.Left is only the left card
// when the row was not mirrored.
func byX(a, b geom.Rect) (geom.Rect, geom.Rect) {
	if b.Center().X < a.Center().X {
		return b, a
	}
	return a, b
}

// enforceCoupleGaps pushes the cards of every special couple apart until
// their gap reaches the minimum. A card shared with another special couple
// stays put when its partner can move alone, so a fix never shrinks the
// neighbouring couple. Couples are checked again after every round of moves.
func (p *processor) enforceCoupleGaps() {
	var special []dot.Couple
	shared := make(map[string]int)
	for _, c := range p.prog.Couples {
		if c.Single() || !p.prog.Special[c.Family] {
			continue
		}
		special = append(special, c)
		shared[c.Left]++
		shared[c.Right]++
	}

	moved := make(map[string]bool)
	fixed := make(map[string]bool)
	skipped := make(map[string]bool)
	for round := 0; round <= len(special); round++ {
		changed := false
		for _, c := range special {
			a, aok := p.sc.Box(c.Left)
			b, bok := p.sc.Box(c.Right)
			if !aok || !bok {
				if !skipped[c.Family] {
					skipped[c.Family] = true
					p.skip("%s: couple cards not rendered", c.Family)
				}
				continue
			}
			lid, rid := c.Left, c.Right
			if b.Center().X < a.Center().X {
				lid, rid = rid, lid
			}
			left, right := byX(a, b)
			short := p.opts.MinCoupleGap - (right.Left() - left.Right())
			if short <= 1e-9 {
				continue
			}
			switch {
			case shared[lid] > 1 && shared[rid] == 1:
				p.translate(rid, geom.Pt(short, 0))
			case shared[rid] > 1 && shared[lid] == 1:
				p.translate(lid, geom.Pt(-short, 0))
			default:
				p.translate(lid, geom.Pt(-short/2, 0))
				p.translate(rid, geom.Pt(short/2, 0))
			}
			moved[lid], moved[rid] = true, true
			fixed[c.Family] = true
			changed = true
		}
		if !changed {
			break
		}
	}
	p.res.Corrections = len(fixed)
	if len(moved) == 0 {
		return
	}
	for _, c := range p.prog.Couples {
		if moved[c.Left] || moved[c.Right] {
			p.centerHub(c)
		}
	}
}

// =============================================================================
// Edge Re-Snapping
// =============================================================================

// resnapEdges moves the ends of every edge touching a translated node by
// that node's recorded offset, converted into the edge's own coordinates.
func (p *processor) resnapEdges() {
	for _, e := range p.sc.Edges {
		tail, head := p.sc.Offsets[e.Ref.Tail], p.sc.Offsets[e.Ref.Head]
		if tail == (geom.Point{}) && head == (geom.Point{}) {
			continue
		}
		if e.Path == nil {
			p.skip("%s: edge path not parsed", e.DOMID)
			continue
		}
		inv, ok := e.CTM.Inverse()
		if !ok {
			p.skip("%s: edge transform not invertible", e.DOMID)
			continue
		}
		if tail != (geom.Point{}) {
			e.Path.MoveStart(inv.ApplyVector(tail))
		}
		if head != (geom.Point{}) {
			e.Path.MoveEnd(inv.ApplyVector(head))
		}
	}
}

// =============================================================================
// Decoration
// =============================================================================

func (p *processor) decorateHubs() {
	for _, n := range p.sc.Nodes {
		if n.Kind != payload.KindFamily {
			continue
		}
		for i := range n.Layers {
			n.Layers[i].Scale(p.opts.HubScale)
		}
	}
}

// =============================================================================
// Interaction
// =============================================================================

func (p *processor) wireActions() {
	for _, n := range p.sc.Nodes {
		c, ok := p.sc.Center(n.ID)
		if !ok {
			p.skip("%s: no geometry for actions", n.ID)
			continue
		}
		kind := ActionSelectPerson
		if n.Kind == payload.KindFamily {
			kind = ActionSelectFamily
		}
		p.res.Actions = append(p.res.Actions, Action{Kind: kind, Target: n.ID, At: c})
	}
	if p.x == nil {
		return
	}
	for _, e := range p.x.Partial() {
		c, ok := p.sc.Center(e.Family)
		if !ok {
			p.skip("%s: hub not rendered, no expand controls", e.Family)
			continue
		}
		if e.MissingParents() > 0 {
			a := Action{
				Kind:   ActionExpandParents,
				Target: e.Family,
				At:     c.Sub(geom.Pt(0, p.opts.AffordanceGap)),
				Radius: p.opts.AffordanceRadius,
			}
			if kids := p.x.Children(e.Family); len(kids) > 0 {
				a.Child = kids[0]
			}
			p.res.Actions = append(p.res.Actions, a)
		}
		if e.MissingChildren() > 0 {
			p.res.Actions = append(p.res.Actions, Action{
				Kind:   ActionExpandChildren,
				Target: e.Family,
				At:     c.Add(geom.Pt(0, p.opts.AffordanceGap)),
				Radius: p.opts.AffordanceRadius,
			})
		}
	}
}

// =============================================================================
// Selection
// =============================================================================

// outline draws around the union of all the node's layers measured on
// screen, mapped back into the scene's root layer.
func (p *processor) outline(id string) {
	if id == "" {
		return
	}
	box, ok := p.m.screenBox(id)
	if !ok {
		p.skip("%s: selection not rendered", id)
		return
	}
	layer := geom.Identity
	if !p.sc.Normalized {
		layer = p.sc.Layer
	}
	inv, ok := p.m.screen.Mul(layer).Inverse()
	if !ok {
		p.skip("%s: layer transform not invertible", id)
		return
	}
	r := inv.ApplyRect(box)
	pad := p.opts.OutlinePadding
	p.res.Outline = &Outline{ID: id, Box: r.Inset(-pad), Radius: p.opts.OutlineRadius}
}

// Select moves the selection outline of a processed result to id without
// touching any geometry. An empty id clears the outline.
func Select(res *Result, id string, screen geom.Matrix, opts Options) {
	opts = opts.withDefaults()
	res.Outline = nil
	p := &processor{sc: res.Scene, prog: res.Program, opts: opts, res: res, seen: make(map[string]bool)}
	p.m = newMeasurer(res.Scene, screen)
	p.outline(id)
}
