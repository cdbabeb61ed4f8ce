package postprocess

import (
	"github.com/matzehuels/famtree/pkg/geom"
	"github.com/matzehuels/famtree/pkg/scene"
)

// measurer reads node geometry in screen space.
type measurer struct {
	sc     *scene.Scene
	screen geom.Matrix
	inv    geom.Matrix
}

func newMeasurer(sc *scene.Scene, screen geom.Matrix) measurer {
	if screen == (geom.Matrix{}) {
		screen = geom.Identity
	}
	inv, ok := screen.Inverse()
	if !ok {
		screen, inv = geom.Identity, geom.Identity
	}
	return measurer{sc: sc, screen: screen, inv: inv}
}

// screenBox returns the union of the node's layer boxes on screen.
func (m measurer) screenBox(id string) (geom.Rect, bool) {
	n, ok := m.sc.Node(id)
	if !ok || len(n.Layers) == 0 {
		return geom.Rect{}, false
	}
	ctm, _ := m.sc.NodeCTM(id)
	full := m.screen.Mul(ctm)
	var r geom.Rect
	for _, l := range n.Layers {
		r = r.Union(full.ApplyRect(l.Bounds()))
	}
	return r, true
}

// userDelta converts a move between two screen points into user space.
func (m measurer) userDelta(from, to geom.Point) geom.Point {
	return m.inv.Apply(to).Sub(m.inv.Apply(from))
}
