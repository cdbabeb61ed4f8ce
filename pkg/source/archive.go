package source

import (
	"context"

	"github.com/matzehuels/famtree/pkg/errors"
	"github.com/matzehuels/famtree/pkg/payload"
)

// Archive answers Source calls from a complete exported tree held in memory.
// Ids may be given as node ids or short ids.
type Archive struct {
	x     *payload.Index
	short map[string]string
}

// NewArchive indexes a full tree.
func NewArchive(tree payload.Payload) *Archive {
	a := &Archive{x: payload.NewIndex(tree), short: make(map[string]string)}
	for _, n := range a.x.Nodes() {
		if n.ShortID != "" {
			a.short[n.ShortID] = n.ID
		}
	}
	return a
}

// OpenArchive reads a tree export from path.
func OpenArchive(path string) (*Archive, error) {
	tree, err := payload.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPayload, err, "read archive %s", path)
	}
	return NewArchive(tree), nil
}

// Len returns the number of nodes in the archive.
func (a *Archive) Len() int { return a.x.Len() }

func (a *Archive) resolve(id string, kind payload.Kind) (payload.Node, bool) {
	if n, ok := a.x.Node(id); ok && n.Type == kind {
		return n, true
	}
	if full, ok := a.short[id]; ok {
		if n, ok := a.x.Node(full); ok && n.Type == kind {
			return n, true
		}
	}
	return payload.Node{}, false
}

// ghost families have only child links.
func (a *Archive) ghost(family string) bool { return len(a.x.Parents(family)) == 0 }

func (a *Archive) spouses(person string) []string {
	var out []string
	for _, f := range a.x.SpouseFamilies(person) {
		if s, ok := a.x.Spouse(f, person); ok {
			out = append(out, s)
		}
	}
	return out
}

// neighbors are a person's parents and children.
func (a *Archive) neighbors(person string) []string {
	var out []string
	for _, f := range a.x.ChildFamilies(person) {
		out = append(out, a.x.Parents(f)...)
	}
	for _, f := range a.x.SpouseFamilies(person) {
		out = append(out, a.x.Children(f)...)
	}
	return out
}

// distances runs the generation BFS: it expands through parent and child
// links only, attaching spouses at the distance of the person who brought
// them in.
func (a *Archive) distances(root string, depth, maxNodes int) ([]string, map[string]int) {
	dist := map[string]int{root: 0}
	order := []string{root}
	add := func(id string, d int) bool {
		if _, ok := dist[id]; ok {
			return false
		}
		dist[id] = d
		order = append(order, id)
		return true
	}
	full := func() bool { return len(dist) >= maxNodes }

	for _, s := range a.spouses(root) {
		if add(s, 0) && full() {
			return order, dist
		}
	}
	frontier := []string{root}
	for d := 1; d <= depth && len(frontier) > 0; d++ {
		var next []string
		for _, p := range frontier {
			for _, nb := range a.neighbors(p) {
				if add(nb, d) {
					next = append(next, nb)
					if full() {
						return order, dist
					}
				}
			}
		}
		for _, p := range next {
			for _, s := range a.spouses(p) {
				if add(s, d) && full() {
					return order, dist
				}
			}
		}
		frontier = next
	}
	return order, dist
}

// Neighborhood implements Source.
func (a *Archive) Neighborhood(ctx context.Context, id string, depth, maxNodes int) (payload.Payload, error) {
	if err := ctx.Err(); err != nil {
		return payload.Payload{}, err
	}
	root, ok := a.resolve(id, payload.KindPerson)
	if !ok {
		return payload.Payload{}, notFound("person", id)
	}
	depth, maxNodes = ClampDepth(depth), ClampMaxNodes(maxNodes)
	order, dist := a.distances(root.ID, depth, maxNodes)

	b := newBuilder()
	for _, pid := range order {
		n, _ := a.x.Node(pid)
		d := dist[pid]
		n.Distance = &d
		b.node(n)
	}
	for _, f := range a.x.Families() {
		if a.ghost(f.ID) || !a.touches(f.ID, dist) {
			continue
		}
		var edges []payload.Edge
		for _, p := range a.x.Parents(f.ID) {
			if _, ok := dist[p]; ok {
				edges = append(edges, a.parentEdge(p, f.ID))
			}
		}
		shown := 0
		children := a.x.Children(f.ID)
		for _, c := range children {
			if _, ok := dist[c]; ok {
				edges = append(edges, payload.Edge{From: f.ID, To: c, Kind: payload.EdgeChild})
				shown++
			}
		}
		b.node(a.family(f, len(children) > shown))
		for _, e := range edges {
			b.edge(e)
		}
	}
	b.p.Meta = map[string]any{"root": id, "layout": "family", "depth": depth, "max_nodes": maxNodes}
	return b.p, nil
}

func (a *Archive) touches(family string, in map[string]int) bool {
	for _, p := range a.x.Parents(family) {
		if _, ok := in[p]; ok {
			return true
		}
	}
	for _, c := range a.x.Children(family) {
		if _, ok := in[c]; ok {
			return true
		}
	}
	return false
}

// FamilyParents implements Source. Each parent's birth family is included
// as a stub so the parents can be expanded further.
func (a *Archive) FamilyParents(ctx context.Context, familyID, childID string) (payload.Payload, error) {
	if err := ctx.Err(); err != nil {
		return payload.Payload{}, err
	}
	f, ok := a.resolve(familyID, payload.KindFamily)
	if !ok {
		return payload.Payload{}, notFound("family", familyID)
	}
	if a.ghost(f.ID) {
		return payload.Payload{}, errors.New(errors.ErrCodeNotFound, "family has no parents: %s", familyID)
	}

	b := newBuilder()
	hub := a.family(f, childID != "" && len(a.x.Children(f.ID)) > 1)
	b.node(hub)
	parents := a.x.Parents(f.ID)
	for _, p := range parents {
		n, _ := a.x.Node(p)
		b.node(n)
		b.edge(a.parentEdge(p, f.ID))
	}
	if childID != "" {
		for _, c := range a.x.Children(f.ID) {
			if c == childID {
				b.edge(payload.Edge{From: f.ID, To: c, Kind: payload.EdgeChild})
			}
		}
	}
	for _, p := range parents {
		for _, bf := range a.x.ChildFamilies(p) {
			if a.ghost(bf) {
				continue
			}
			n, _ := a.x.Node(bf)
			b.node(a.family(n, len(a.x.Children(bf)) > 0))
			b.edge(payload.Edge{From: bf, To: p, Kind: payload.EdgeChild})
		}
	}
	b.p.Meta = map[string]any{"family_id": familyID, "family": f.ID}
	return b.p, nil
}

// FamilyChildren implements Source. Grandchildren are never included.
func (a *Archive) FamilyChildren(ctx context.Context, familyID string, includeSpouses bool) (payload.Payload, error) {
	if err := ctx.Err(); err != nil {
		return payload.Payload{}, err
	}
	f, ok := a.resolve(familyID, payload.KindFamily)
	if !ok {
		return payload.Payload{}, notFound("family", familyID)
	}

	b := newBuilder()
	b.node(a.family(f, false))
	for _, p := range a.x.Parents(f.ID) {
		b.edge(a.parentEdge(p, f.ID))
	}
	children := a.x.Children(f.ID)
	for _, c := range children {
		b.edge(payload.Edge{From: f.ID, To: c, Kind: payload.EdgeChild})
		n, _ := a.x.Node(c)
		b.node(n)
	}
	if includeSpouses {
		for _, c := range children {
			for _, sf := range a.x.SpouseFamilies(c) {
				parents := a.x.Parents(sf)
				if len(parents) < 2 {
					continue
				}
				n, _ := a.x.Node(sf)
				b.node(a.family(n, len(a.x.Children(sf)) > 0))
				for _, p := range parents {
					b.edge(a.parentEdge(p, sf))
					sp, _ := a.x.Node(p)
					b.node(sp)
				}
			}
		}
	}
	b.p.Meta = map[string]any{"family_id": familyID, "family": f.ID}
	return b.p, nil
}

// family returns a copy of a family node with totals counted from the
// archive.
func (a *Archive) family(n payload.Node, more bool) payload.Node {
	n.ParentsTotal = len(a.x.Parents(n.ID))
	n.ChildrenTotal = len(a.x.Children(n.ID))
	n.HasMoreChildren = &more
	return n
}

func (a *Archive) parentEdge(person, family string) payload.Edge {
	return payload.Edge{From: person, To: family, Kind: payload.EdgeParent, Role: a.x.Role(person, family)}
}

type builder struct {
	p     payload.Payload
	nodes map[string]bool
	edges map[payload.EdgeKey]bool
}

func newBuilder() *builder {
	return &builder{nodes: make(map[string]bool), edges: make(map[payload.EdgeKey]bool)}
}

func (b *builder) node(n payload.Node) {
	if !b.nodes[n.ID] {
		b.nodes[n.ID] = true
		b.p.Nodes = append(b.p.Nodes, n)
	}
}

func (b *builder) edge(e payload.Edge) {
	if !b.edges[e.Key()] {
		b.edges[e.Key()] = true
		b.p.Edges = append(b.p.Edges, e)
	}
}
