package dot

import (
	"strconv"
	"strings"

	"github.com/matzehuels/famtree/pkg/payload"
)

// Id attribute prefixes. Graphviz copies a node's id attribute onto the
// <g> element it emits, so these survive into the geometry.
const (
	PersonPrefix = "p_"
	FamilyPrefix = "f_"
	EdgePrefix   = "e_"
)

// Couple is a family hub with its rendered parents in left-to-right order.
// Right is empty for single-parent families.
type Couple struct {
	Family string
	Left   string
	Right  string
}

// Single reports whether the family has exactly one rendered parent.
func (c Couple) Single() bool { return c.Right == "" }

// Parents returns the rendered parents, left first.
func (c Couple) Parents() []string {
	if c.Single() {
		return []string{c.Left}
	}
	return []string{c.Left, c.Right}
}

// EdgeRef maps a rendered DOT edge back to the payload edge it draws. Tail and
// Head are the DOT endpoints, which are swapped relative to the payload edge
// when the edge is drawn right-to-left inside a couple row.
type EdgeRef struct {
	Edge payload.Edge
	Tail string
	Head string
}

// Program is a generated constraint program and its side tables.
type Program struct {
	DOT string

	// Couples lists every family with at least one rendered parent, in
	// payload order.
	Couples []Couple

	// Special marks two-parent families where a parent is also the sole
	// rendered parent of another family in view.
	Special map[string]bool

	// Rows are the accepted multi-spouse rows, left to right.
	Rows [][]string

	// Edges lists rendered edges in emission order; the DOT id of Edges[i] is
	// EdgePrefix + i.
	Edges []EdgeRef

	// Relaxed is set when the non-essential groupings were disabled.
	Relaxed bool

	// Unconstrained is set when the grouping constraints were abandoned
	// because the input produced contradictory ordering or ranks.
	Unconstrained bool

	// Diagnostics explains dropped edges, dropped groups and fallbacks.
	Diagnostics []string

	nodes map[string]payload.Kind
}

// Couple returns the couple entry for a family.
func (p *Program) Couple(family string) (Couple, bool) {
	for _, c := range p.Couples {
		if c.Family == family {
			return c, true
		}
	}
	return Couple{}, false
}

// NodeID returns the DOM id for a payload node.
func NodeID(id string, kind payload.Kind) string {
	if kind == payload.KindFamily {
		return FamilyPrefix + id
	}
	return PersonPrefix + id
}

// Resolve maps a DOM id (or, failing that, the element title the engine
// emitted) back to a payload node id.
func (p *Program) Resolve(domID, title string) (string, payload.Kind, bool) {
	for _, prefix := range []string{PersonPrefix, FamilyPrefix} {
		if id, ok := strings.CutPrefix(domID, prefix); ok {
			if kind, ok := p.nodes[id]; ok {
				return id, kind, true
			}
		}
	}
	if kind, ok := p.nodes[title]; ok {
		return title, kind, true
	}
	return "", "", false
}

// EdgeRef maps an edge DOM id back to its reference.
func (p *Program) EdgeRef(domID string) (EdgeRef, bool) {
	s, ok := strings.CutPrefix(domID, EdgePrefix)
	if !ok {
		return EdgeRef{}, false
	}
	i, err := strconv.Atoi(s)
	if err != nil || i < 0 || i >= len(p.Edges) {
		return EdgeRef{}, false
	}
	return p.Edges[i], true
}

// Len returns the number of nodes the program renders.
func (p *Program) Len() int { return len(p.nodes) }
