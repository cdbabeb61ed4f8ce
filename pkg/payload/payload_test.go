package payload

import (
	"bytes"
	"math/rand"
	"reflect"
	"strings"
	"testing"
)

func person(id string) Node { return Node{ID: id, Type: KindPerson, DisplayName: id} }

func family(id string, parents, children int) Node {
	return Node{ID: id, Type: KindFamily, ParentsTotal: parents, ChildrenTotal: children}
}

func parent(p, f, role string) Edge { return Edge{From: p, To: f, Kind: EdgeParent, Role: role} }

func child(f, c string) Edge { return Edge{From: f, To: c, Kind: EdgeChild} }

// threeGenerations: grandparents G1+G2 (family F0) -> father A; A+B (family F1) -> C, D.
func threeGenerations() Payload {
	return Payload{
		Nodes: []Node{
			person("G1"), person("G2"), family("F0", 2, 1),
			person("A"), person("B"), family("F1", 2, 3),
			person("C"), person("D"),
		},
		Edges: []Edge{
			parent("G1", "F0", RoleFather), parent("G2", "F0", RoleMother), child("F0", "A"),
			parent("A", "F1", RoleFather), parent("B", "F1", RoleMother),
			child("F1", "C"), child("F1", "D"),
		},
	}
}

func TestSanitize(t *testing.T) {
	p := threeGenerations()
	p.Nodes = append(p.Nodes, person("A"), Node{ID: "", Type: KindPerson}, Node{ID: "X", Type: "place"})
	p.Edges = append(p.Edges,
		child("F1", "ghost"),
		parent("nobody", "F1", RoleFather),
		parent("F0", "A", ""),
		Edge{From: "A", To: "B", Kind: "partner"},
		child("F1", "C"),
		parent("C", "F1", ""),
	)

	clean, dropped := Sanitize(p)

	if len(clean.Nodes) != 8 {
		t.Errorf("nodes = %d, want 8", len(clean.Nodes))
	}
	if len(clean.Edges) != 7 {
		t.Errorf("edges = %d, want 7: %v", len(clean.Edges), clean.Edges)
	}
	reasons := make(map[string]int)
	for _, d := range dropped {
		reasons[d.Reason]++
	}
	want := map[string]int{
		ReasonDuplicateNode: 1,
		ReasonInvalidNode:   2,
		ReasonDanglingTo:    1,
		ReasonDanglingFrom:  1,
		ReasonWrongShape:    1,
		ReasonUnknownKind:   1,
		ReasonDuplicate:     1,
		ReasonExtraParent:   1,
	}
	if !reflect.DeepEqual(reasons, want) {
		t.Errorf("drop reasons = %v, want %v", reasons, want)
	}
}

func TestSanitizeNoOrphanEdges(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ids := []string{"G1", "G2", "F0", "A", "B", "F1", "C", "D", "Z1", "Z2"}
	kinds := []EdgeKind{EdgeParent, EdgeChild, "partner"}
	for round := 0; round < 50; round++ {
		p := threeGenerations()
		for i := 0; i < 10; i++ {
			p.Edges = append(p.Edges, Edge{
				From: ids[rng.Intn(len(ids))],
				To:   ids[rng.Intn(len(ids))],
				Kind: kinds[rng.Intn(len(kinds))],
			})
		}
		x := NewIndex(p)
		for _, e := range x.Edges() {
			if !x.Has(e.From) || !x.Has(e.To) {
				t.Fatalf("round %d: orphan edge %s survived", round, e)
			}
		}
	}
}

func TestIndexLookups(t *testing.T) {
	x := NewIndex(threeGenerations())

	if got := x.Parents("F1"); !reflect.DeepEqual(got, []string{"A", "B"}) {
		t.Errorf("Parents(F1) = %v", got)
	}
	if got := x.Children("F1"); !reflect.DeepEqual(got, []string{"C", "D"}) {
		t.Errorf("Children(F1) = %v", got)
	}
	if got := x.SpouseFamilies("A"); !reflect.DeepEqual(got, []string{"F1"}) {
		t.Errorf("SpouseFamilies(A) = %v", got)
	}
	if got := x.ChildFamilies("A"); !reflect.DeepEqual(got, []string{"F0"}) {
		t.Errorf("ChildFamilies(A) = %v", got)
	}
	if sp, ok := x.Spouse("F1", "A"); !ok || sp != "B" {
		t.Errorf("Spouse(F1, A) = %q, %v", sp, ok)
	}
	if got := x.Role("B", "F1"); got != RoleMother {
		t.Errorf("Role(B, F1) = %q", got)
	}
	if len(x.Persons()) != 6 || len(x.Families()) != 2 {
		t.Errorf("persons = %d, families = %d", len(x.Persons()), len(x.Families()))
	}
}

func TestIndexParentOrder(t *testing.T) {
	p := Payload{
		Nodes: []Node{person("M"), person("P"), family("F", 2, 0)},
		Edges: []Edge{parent("M", "F", RoleMother), parent("P", "F", RoleFather)},
	}
	if got := NewIndex(p).Parents("F"); !reflect.DeepEqual(got, []string{"P", "M"}) {
		t.Errorf("Parents = %v, want father first", got)
	}
}

func TestExpansion(t *testing.T) {
	p := threeGenerations()
	p.Nodes = append(p.Nodes, family("F2", 2, 0), person("E"))
	p.Edges = append(p.Edges, parent("E", "F2", RoleMother))
	x := NewIndex(p)

	tests := []struct {
		family          string
		missingParents  int
		missingChildren int
		partial         bool
	}{
		{"F0", 0, 0, false},
		{"F1", 0, 1, true},
		{"F2", 1, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.family, func(t *testing.T) {
			e, err := x.Expansion(tt.family)
			if err != nil {
				t.Fatal(err)
			}
			if e.MissingParents() != tt.missingParents || e.MissingChildren() != tt.missingChildren || e.Partial() != tt.partial {
				t.Errorf("Expansion(%s) = %+v", tt.family, e)
			}
		})
	}

	if _, err := x.Expansion("A"); err != ErrUnknownNode {
		t.Errorf("Expansion(person) error = %v, want ErrUnknownNode", err)
	}
	if got := len(x.Partial()); got != 2 {
		t.Errorf("Partial() = %d families, want 2", got)
	}
}

func TestExpansionNeverNegative(t *testing.T) {
	p := Payload{
		Nodes: []Node{person("A"), person("B"), family("F", 1, 0)},
		Edges: []Edge{parent("A", "F", RoleFather), parent("B", "F", RoleMother)},
	}
	e, _ := NewIndex(p).Expansion("F")
	if e.MissingParents() != 0 || e.Partial() {
		t.Errorf("counts below rendered edges must not report missing relatives: %+v", e)
	}
}

func TestNodeName(t *testing.T) {
	tests := []struct {
		node Node
		want string
	}{
		{Node{ID: "I1", DisplayName: "Ada Smith"}, "Ada Smith"},
		{Node{ID: "I1", GivenName: "Ada", Surname: "Smith"}, "Ada Smith"},
		{Node{ID: "I1", Surname: "Smith"}, "Smith"},
		{Node{ID: "I1", ShortID: "I0001"}, "I0001"},
		{Node{ID: "I1"}, "I1"},
		{Node{ID: "I1", DisplayName: "Ada", Private: true}, PrivateName},
	}
	for _, tt := range tests {
		if got := tt.node.Name(); got != tt.want {
			t.Errorf("Name(%+v) = %q, want %q", tt.node, got, tt.want)
		}
	}
	if got := (Node{Birth: "1900", Death: "1980"}).Lifespan(); got != "1900 – 1980" {
		t.Errorf("Lifespan = %q", got)
	}
	if got := (Node{Birth: "1900", Private: true}).Lifespan(); got != "" {
		t.Errorf("private Lifespan = %q", got)
	}
}

func TestDecodeKeepsEnvelope(t *testing.T) {
	data := `{"root":"I1","depth":2,"nodes":[{"id":"I1","type":"person","display_name":"Ada"},
	{"id":"F1","type":"family","parents_total":2,"children_total":null,"has_more_children":true}],
	"edges":[{"from":"I1","to":"F1","type":"parent","role":"mother"}]}`

	p, err := Decode([]byte(data))
	if err != nil {
		t.Fatal(err)
	}
	if p.Meta["root"] != "I1" {
		t.Errorf("Meta[root] = %v", p.Meta["root"])
	}
	if len(p.Nodes) != 2 || p.Nodes[1].ParentsTotal != 2 || p.Nodes[1].HasMoreChildren == nil {
		t.Errorf("nodes = %+v", p.Nodes)
	}

	var buf bytes.Buffer
	if err := Write(p, &buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"root": "I1"`) {
		t.Errorf("envelope lost on write: %s", buf.String())
	}
}

func TestDecodeInvalid(t *testing.T) {
	if _, err := Decode([]byte(`{"nodes": 3}`)); err == nil {
		t.Error("expected error for malformed nodes")
	}
	if _, err := Decode([]byte(`[`)); err == nil {
		t.Error("expected error for malformed JSON")
	}
}

func TestReadWriteFile(t *testing.T) {
	path := t.TempDir() + "/tree.json"
	if err := WriteFile(threeGenerations(), path); err != nil {
		t.Fatal(err)
	}
	p, err := ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(p.Nodes, threeGenerations().Nodes) {
		t.Errorf("nodes changed across file round trip")
	}
}
