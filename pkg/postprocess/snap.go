package postprocess

import (
	"fmt"

	"github.com/matzehuels/famtree/pkg/geom"
	"github.com/matzehuels/famtree/pkg/payload"
	"github.com/matzehuels/famtree/pkg/scene"
)

// Detached lists edge ends that are not attached to their node: farther
// than eps from a card's outline, or outside a hub by more than eps. Ends
// inside a hub count as attached because hubs are drawn over edges.
func Detached(sc *scene.Scene, eps float64) []string {
	var out []string
	for _, e := range sc.Edges {
		if e.Path == nil {
			continue
		}
		ends := [2]struct {
			node string
			pt   geom.Point
		}{
			{e.Ref.Tail, e.CTM.Apply(e.Path.Start())},
			{e.Ref.Head, e.CTM.Apply(e.Path.End())},
		}
		for _, end := range ends {
			if d, ok := gapTo(sc, end.node, end.pt); ok && d > eps {
				out = append(out, fmt.Sprintf("%s: end at %s is %.2f from %s", e.DOMID, fmtPoint(end.pt), d, end.node))
			}
		}
	}
	return out
}

func gapTo(sc *scene.Scene, id string, pt geom.Point) (float64, bool) {
	n, ok := sc.Node(id)
	if !ok {
		return 0, false
	}
	box, ok := sc.Box(id)
	if !ok {
		return 0, false
	}
	if n.Kind == payload.KindFamily {
		return max(0, pt.Dist(box.Center())-box.W/2), true
	}
	return box.BoundaryDistance(pt), true
}

func fmtPoint(p geom.Point) string { return fmt.Sprintf("(%.2f, %.2f)", p.X, p.Y) }
