package payload

import "fmt"

// Drop reasons reported by Sanitize.
const (
	ReasonDanglingFrom  = "unknown source node"
	ReasonDanglingTo    = "unknown target node"
	ReasonWrongShape    = "endpoint types do not match edge kind"
	ReasonUnknownKind   = "unsupported edge kind"
	ReasonDuplicate     = "duplicate edge"
	ReasonExtraParent   = "family already has two parents"
	ReasonDuplicateNode = "duplicate node id"
	ReasonInvalidNode   = "node has no id or unknown type"
)

// Dropped records a node or edge removed by Sanitize.
type Dropped struct {
	Node   *Node
	Edge   *Edge
	Reason string
}

func (d Dropped) String() string {
	if d.Edge != nil {
		return fmt.Sprintf("edge %s: %s", d.Edge, d.Reason)
	}
	if d.Node != nil {
		return fmt.Sprintf("node %q: %s", d.Node.ID, d.Reason)
	}
	return d.Reason
}

// Sanitize returns a copy of p that contains only well-formed records,
// along with what was removed. The first occurrence of a node id wins.
// Edges must reference existing nodes with the right types: parent edges go
// person -> family and child edges family -> person. A family keeps at most
// two parent edges.
func Sanitize(p Payload) (Payload, []Dropped) {
	var dropped []Dropped
	out := Payload{Meta: p.Meta}

	types := make(map[string]Kind, len(p.Nodes))
	for i := range p.Nodes {
		n := p.Nodes[i]
		if n.ID == "" || (n.Type != KindPerson && n.Type != KindFamily) {
			dropped = append(dropped, Dropped{Node: &n, Reason: ReasonInvalidNode})
			continue
		}
		if _, ok := types[n.ID]; ok {
			dropped = append(dropped, Dropped{Node: &n, Reason: ReasonDuplicateNode})
			continue
		}
		types[n.ID] = n.Type
		out.Nodes = append(out.Nodes, n)
	}

	seen := make(map[EdgeKey]bool, len(p.Edges))
	parentCount := make(map[string]int)
	for i := range p.Edges {
		e := p.Edges[i]
		if reason := edgeProblem(e, types, seen, parentCount); reason != "" {
			dropped = append(dropped, Dropped{Edge: &e, Reason: reason})
			continue
		}
		seen[e.Key()] = true
		if e.Kind == EdgeParent {
			parentCount[e.To]++
		}
		out.Edges = append(out.Edges, e)
	}
	return out, dropped
}

func edgeProblem(e Edge, types map[string]Kind, seen map[EdgeKey]bool, parentCount map[string]int) string {
	from, okFrom := types[e.From]
	to, okTo := types[e.To]
	switch {
	case !okFrom:
		return ReasonDanglingFrom
	case !okTo:
		return ReasonDanglingTo
	}
	switch e.Kind {
	case EdgeParent:
		if from != KindPerson || to != KindFamily {
			return ReasonWrongShape
		}
	case EdgeChild:
		if from != KindFamily || to != KindPerson {
			return ReasonWrongShape
		}
	default:
		return ReasonUnknownKind
	}
	if seen[e.Key()] {
		return ReasonDuplicate
	}
	if e.Kind == EdgeParent && parentCount[e.To] >= 2 {
		return ReasonExtraParent
	}
	return ""
}
