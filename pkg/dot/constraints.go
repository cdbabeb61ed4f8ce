package dot

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dominikbraun/graph"
)

// orderChecker accumulates left-to-right ordering edges and rejects chains
// that would make the ordering cyclic.
type orderChecker struct {
	g graph.Graph[string, string]
}

func newOrderChecker() *orderChecker {
	return &orderChecker{g: graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())}
}

// chain adds seq[0] -> seq[1] -> ... atomically: on conflict every edge added
// by this call is removed again.
func (o *orderChecker) chain(seq []string) error {
	var added [][2]string
	for i := 0; i+1 < len(seq); i++ {
		a, b := seq[i], seq[i+1]
		for _, v := range []string{a, b} {
			if err := o.g.AddVertex(v); err != nil && !errors.Is(err, graph.ErrVertexAlreadyExists) {
				o.rollback(added)
				return err
			}
		}
		err := o.g.AddEdge(a, b)
		switch {
		case err == nil:
			added = append(added, [2]string{a, b})
		case errors.Is(err, graph.ErrEdgeAlreadyExists):
		case errors.Is(err, graph.ErrEdgeCreatesCycle):
			o.rollback(added)
			return fmt.Errorf("ordering %s before %s contradicts an earlier group", a, b)
		default:
			o.rollback(added)
			return err
		}
	}
	return nil
}

func (o *orderChecker) rollback(added [][2]string) {
	for _, e := range added {
		_ = o.g.RemoveEdge(e[0], e[1])
	}
}

// checkRanks verifies that the same-rank groups and the hub -> child edges
// admit a ranking: after merging every group into one vertex, the child
// edges must form a DAG.
func checkRanks(groups [][]string, childEdges [][2]string) error {
	uf := newUnionFind()
	for _, grp := range groups {
		for _, m := range grp[1:] {
			uf.union(grp[0], m)
		}
	}

	g := graph.New(graph.StringHash, graph.Directed())
	members := make(map[string][]string)
	addVertex := func(id string) string {
		rep := uf.find(id)
		if err := g.AddVertex(rep); err == nil {
			members[rep] = nil
		}
		members[rep] = appendUnique(members[rep], id)
		return rep
	}
	for _, e := range childEdges {
		from, to := addVertex(e[0]), addVertex(e[1])
		if from == to {
			return fmt.Errorf("%s is ranked level with its own child %s", e[0], e[1])
		}
		if err := g.AddEdge(from, to); err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return err
		}
	}

	sccs, err := graph.StronglyConnectedComponents(g)
	if err != nil {
		return err
	}
	for _, scc := range sccs {
		if len(scc) < 2 {
			continue
		}
		var ids []string
		for _, rep := range scc {
			ids = append(ids, members[rep]...)
		}
		sort.Strings(ids)
		return fmt.Errorf("generation cycle among %s", strings.Join(ids, ", "))
	}
	return nil
}

func appendUnique(s []string, v string) []string {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

type unionFind struct {
	parent map[string]string
}

func newUnionFind() *unionFind { return &unionFind{parent: make(map[string]string)} }

func (u *unionFind) find(x string) string {
	p, ok := u.parent[x]
	if !ok || p == x {
		return x
	}
	root := u.find(p)
	u.parent[x] = root
	return root
}

func (u *unionFind) union(a, b string) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[rb] = ra
	}
}
