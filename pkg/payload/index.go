package payload

import "errors"

// ErrUnknownNode is returned when a lookup names an id that is not in view.
var ErrUnknownNode = errors.New("payload: unknown node")

// Index is a read-only view over a sanitized payload with the lookups the
// layout pipeline needs. Build a new Index after every merge.
type Index struct {
	payload  Payload
	dropped  []Dropped
	position map[string]int

	parents  map[string][]string // family -> parents, father first
	roles    map[EdgeKey]string
	children map[string][]string // family -> children in payload order
	spouseOf map[string][]string // person -> families they head
	childOf  map[string][]string // person -> families they were born into
}

// NewIndex sanitizes p and indexes the result.
func NewIndex(p Payload) *Index {
	clean, dropped := Sanitize(p)
	x := &Index{
		payload:  clean,
		dropped:  dropped,
		position: make(map[string]int, len(clean.Nodes)),
		parents:  make(map[string][]string),
		roles:    make(map[EdgeKey]string),
		children: make(map[string][]string),
		spouseOf: make(map[string][]string),
		childOf:  make(map[string][]string),
	}
	for i, n := range clean.Nodes {
		x.position[n.ID] = i
	}

	var unroled []Edge
	for _, e := range clean.Edges {
		switch e.Kind {
		case EdgeParent:
			x.roles[e.Key()] = e.Role
			x.spouseOf[e.From] = append(x.spouseOf[e.From], e.To)
			if e.Role == "" {
				unroled = append(unroled, e)
			}
		case EdgeChild:
			x.children[e.From] = append(x.children[e.From], e.To)
			x.childOf[e.To] = append(x.childOf[e.To], e.From)
		}
	}
	for _, role := range []string{RoleFather, RoleMother} {
		for _, e := range clean.Edges {
			if e.Kind == EdgeParent && e.Role == role {
				x.parents[e.To] = append(x.parents[e.To], e.From)
			}
		}
	}
	for _, e := range unroled {
		x.parents[e.To] = append(x.parents[e.To], e.From)
	}
	for _, e := range clean.Edges {
		if e.Kind == EdgeParent && e.Role != "" && e.Role != RoleFather && e.Role != RoleMother {
			x.parents[e.To] = append(x.parents[e.To], e.From)
		}
	}
	return x
}

// Payload returns the sanitized payload the index was built from.
func (x *Index) Payload() Payload { return x.payload }

// Dropped returns the records Sanitize removed.
func (x *Index) Dropped() []Dropped { return x.dropped }

// Len returns the number of nodes in view.
func (x *Index) Len() int { return len(x.payload.Nodes) }

// Node returns the node with the given id.
func (x *Index) Node(id string) (Node, bool) {
	i, ok := x.position[id]
	if !ok {
		return Node{}, false
	}
	return x.payload.Nodes[i], true
}

// Has reports whether id is in view.
func (x *Index) Has(id string) bool {
	_, ok := x.position[id]
	return ok
}

// Nodes returns all nodes in payload order.
func (x *Index) Nodes() []Node { return x.payload.Nodes }

// Edges returns all well-formed edges in payload order.
func (x *Index) Edges() []Edge { return x.payload.Edges }

// Persons returns person nodes in payload order.
func (x *Index) Persons() []Node { return x.filter(KindPerson) }

// Families returns family hubs in payload order.
func (x *Index) Families() []Node { return x.filter(KindFamily) }

func (x *Index) filter(k Kind) []Node {
	var out []Node
	for _, n := range x.payload.Nodes {
		if n.Type == k {
			out = append(out, n)
		}
	}
	return out
}

// Parents returns the rendered parents of a family: the father first, then the
// mother, then parents without a role.
func (x *Index) Parents(family string) []string { return x.parents[family] }

// Role returns the role of person in family, if one was given.
func (x *Index) Role(person, family string) string {
	return x.roles[EdgeKey{From: person, To: family, Kind: EdgeParent}]
}

// Children returns the rendered children of a family in payload order.
func (x *Index) Children(family string) []string { return x.children[family] }

// SpouseFamilies returns the families a person heads, in payload order.
func (x *Index) SpouseFamilies(person string) []string { return x.spouseOf[person] }

// ChildFamilies returns the families a person was born into.
func (x *Index) ChildFamilies(person string) []string { return x.childOf[person] }

// Spouse returns the other parent of family, if present.
func (x *Index) Spouse(family, person string) (string, bool) {
	for _, p := range x.parents[family] {
		if p != person {
			return p, true
		}
	}
	return "", false
}

// =============================================================================
// Expansion State
// =============================================================================

// Expansion compares a family's known relative counts with what is rendered.
type Expansion struct {
	Family        string
	ParentsShown  int
	ParentsTotal  int
	ChildrenShown int
	ChildrenTotal int
}

// MissingParents returns how many known parents are not in view.
func (e Expansion) MissingParents() int { return max(0, e.ParentsTotal-e.ParentsShown) }

// MissingChildren returns how many known children are not in view.
func (e Expansion) MissingChildren() int { return max(0, e.ChildrenTotal-e.ChildrenShown) }

// Partial reports whether the family has relatives that are not in view.
func (e Expansion) Partial() bool { return e.MissingParents() > 0 || e.MissingChildren() > 0 }

// Expansion returns the expansion state of a family.
func (x *Index) Expansion(family string) (Expansion, error) {
	n, ok := x.Node(family)
	if !ok || !n.IsFamily() {
		return Expansion{}, ErrUnknownNode
	}
	return Expansion{
		Family:        family,
		ParentsShown:  len(x.parents[family]),
		ParentsTotal:  n.ParentsTotal,
		ChildrenShown: len(x.children[family]),
		ChildrenTotal: n.ChildrenTotal,
	}, nil
}

// Partial returns the expansion state of every partially expanded family in
// payload order.
func (x *Index) Partial() []Expansion {
	var out []Expansion
	for _, n := range x.payload.Nodes {
		if !n.IsFamily() {
			continue
		}
		if e, err := x.Expansion(n.ID); err == nil && e.Partial() {
			out = append(out, e)
		}
	}
	return out
}
