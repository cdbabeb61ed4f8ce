package payload

import (
	"math/rand"
	"reflect"
	"testing"
)

func TestMergeIdempotent(t *testing.T) {
	base := threeGenerations()
	deltas := []Payload{
		{},
		base,
		{Nodes: []Node{person("E"), family("F1", 2, 3)}, Edges: []Edge{child("F1", "E")}},
		{Nodes: []Node{person("H"), person("H")}, Edges: []Edge{child("F0", "H"), child("F0", "H")}},
	}
	for i, delta := range deltas {
		once := Merge(base, delta)
		twice := Merge(base, once)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("delta %d: merge(p, merge(p, d)) != merge(p, d)", i)
		}
		again := Merge(once, delta)
		if !reflect.DeepEqual(once, again) {
			t.Errorf("delta %d: merging the same delta twice changed the payload", i)
		}
	}
}

func TestMergeRandomDeltas(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	pool := threeGenerations()
	for round := 0; round < 100; round++ {
		var p, d Payload
		for _, n := range pool.Nodes {
			if rng.Intn(2) == 0 {
				p.Nodes = append(p.Nodes, n)
			}
			if rng.Intn(2) == 0 {
				d.Nodes = append(d.Nodes, n)
			}
		}
		for _, e := range pool.Edges {
			if rng.Intn(2) == 0 {
				p.Edges = append(p.Edges, e)
			}
			if rng.Intn(2) == 0 {
				d.Edges = append(d.Edges, e)
			}
		}
		merged := Merge(p, d)
		if !reflect.DeepEqual(merged, Merge(p, merged)) {
			t.Fatalf("round %d: merge not idempotent", round)
		}
	}
}

func TestMergeNeverReplaces(t *testing.T) {
	base := Payload{Nodes: []Node{{ID: "A", Type: KindPerson, DisplayName: "Original"}}}
	delta := Payload{Nodes: []Node{{ID: "A", Type: KindPerson, DisplayName: "Changed"}}}

	merged := Merge(base, delta)
	if len(merged.Nodes) != 1 || merged.Nodes[0].DisplayName != "Original" {
		t.Errorf("existing node replaced: %+v", merged.Nodes)
	}
	if base.Nodes[0].DisplayName != "Original" {
		t.Error("Merge modified its input")
	}
}

func TestMergeNoPersonDuplication(t *testing.T) {
	// A is a child in F0 and a parent in F1; each delta mentions A again.
	p := Payload{Nodes: []Node{person("A"), family("F1", 2, 2)}, Edges: []Edge{parent("A", "F1", RoleFather)}}
	deltas := []Payload{
		{Nodes: []Node{person("G1"), person("G2"), family("F0", 2, 1), person("A")},
			Edges: []Edge{parent("G1", "F0", RoleFather), parent("G2", "F0", RoleMother), child("F0", "A")}},
		{Nodes: []Node{family("F1", 2, 2), person("A"), person("B"), person("C")},
			Edges: []Edge{parent("A", "F1", RoleFather), parent("B", "F1", RoleMother), child("F1", "C")}},
		{Nodes: []Node{person("A"), family("F2", 2, 0), person("S")},
			Edges: []Edge{parent("A", "F2", RoleFather), parent("S", "F2", RoleMother)}},
	}
	for i := 0; i < 3; i++ {
		for _, d := range deltas {
			p = Merge(p, d)
		}
	}

	count := 0
	for _, n := range p.Nodes {
		if n.ID == "A" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("person A appears %d times, want 1", count)
	}
	x := NewIndex(p)
	if len(x.SpouseFamilies("A")) != 2 || len(x.ChildFamilies("A")) != 1 {
		t.Errorf("A spouse families = %v, child families = %v", x.SpouseFamilies("A"), x.ChildFamilies("A"))
	}
}

func TestMergeExpandChildren(t *testing.T) {
	base := threeGenerations()
	delta := Payload{
		Nodes: []Node{family("F1", 2, 3), person("C"), person("D"), person("E")},
		Edges: []Edge{child("F1", "C"), child("F1", "D"), child("F1", "E")},
	}

	merged := Merge(base, delta)
	x := NewIndex(merged)

	if got := x.Children("F1"); !reflect.DeepEqual(got, []string{"C", "D", "E"}) {
		t.Errorf("Children(F1) = %v, want old children then new", got)
	}
	for i, n := range base.Nodes {
		if merged.Nodes[i] != n {
			t.Errorf("previously visible node %d changed: %+v", i, merged.Nodes[i])
		}
	}
	if e, _ := x.Expansion("F1"); e.Partial() {
		t.Errorf("F1 still partial after expansion: %+v", e)
	}
	if stats := Diff(base, merged); stats.NodesAdded != 1 || stats.EdgesAdded != 1 {
		t.Errorf("Diff = %+v, want 1 node and 1 edge", stats)
	}
}
