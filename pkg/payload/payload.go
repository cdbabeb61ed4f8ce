package payload

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Kind discriminates person nodes from family hubs.
type Kind string

// Node kinds.
const (
	KindPerson Kind = "person"
	KindFamily Kind = "family"
)

// EdgeKind is the relation an edge expresses.
type EdgeKind string

// Edge kinds.
const (
	EdgeParent EdgeKind = "parent" // person -> family
	EdgeChild  EdgeKind = "child"  // family -> person
)

// Parent roles carried on parent edges.
const (
	RoleFather = "father"
	RoleMother = "mother"
)

// PrivateName replaces the display name of redacted persons.
const PrivateName = "Private"

// Node is a person or a family hub. Person and family fields share one record
// because the wire format does; Type says which half is meaningful.
type Node struct {
	ID      string `json:"id"`
	ShortID string `json:"gramps_id,omitempty"`
	Type    Kind   `json:"type"`
	Private bool   `json:"is_private,omitempty"`

	// Person fields.
	DisplayName string `json:"display_name,omitempty"`
	GivenName   string `json:"given_name,omitempty"`
	Surname     string `json:"surname,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Birth       string `json:"birth,omitempty"`
	Death       string `json:"death,omitempty"`
	Portrait    string `json:"portrait_url,omitempty"`
	Distance    *int   `json:"distance,omitempty"`

	// Family fields.
	ParentsTotal    int    `json:"parents_total,omitempty"`
	ChildrenTotal   int    `json:"children_total,omitempty"`
	HasMoreChildren *bool  `json:"has_more_children,omitempty"`
	Marriage        string `json:"marriage,omitempty"`
}

// IsPerson reports whether n is a person node.
func (n Node) IsPerson() bool { return n.Type == KindPerson }

// IsFamily reports whether n is a family hub.
func (n Node) IsFamily() bool { return n.Type == KindFamily }

// Name returns the card title for a person.
func (n Node) Name() string {
	if n.Private {
		return PrivateName
	}
	if n.DisplayName != "" {
		return n.DisplayName
	}
	if n.GivenName != "" || n.Surname != "" {
		switch {
		case n.GivenName == "":
			return n.Surname
		case n.Surname == "":
			return n.GivenName
		}
		return n.GivenName + " " + n.Surname
	}
	if n.ShortID != "" {
		return n.ShortID
	}
	return n.ID
}

// Lifespan returns the "birth – death" summary shown under a person's name.
func (n Node) Lifespan() string {
	if n.Private || (n.Birth == "" && n.Death == "") {
		return ""
	}
	return n.Birth + " – " + n.Death
}

// Edge links a person and a family hub.
type Edge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Kind EdgeKind `json:"type"`
	Role string   `json:"role,omitempty"`
}

// EdgeKey identifies an edge for deduplication.
type EdgeKey struct {
	From, To string
	Kind     EdgeKind
}

// Key returns the identity of e.
func (e Edge) Key() EdgeKey { return EdgeKey{From: e.From, To: e.To, Kind: e.Kind} }

func (e Edge) String() string { return fmt.Sprintf("%s -%s-> %s", e.From, e.Kind, e.To) }

// Payload is a set of nodes and edges, either a full view or an expansion delta.
// Meta holds envelope keys (root, depth, family_id, ...) the service returns
// alongside the graph.
type Payload struct {
	Nodes []Node         `json:"nodes"`
	Edges []Edge         `json:"edges"`
	Meta  map[string]any `json:"-"`
}

// Empty reports whether p has no nodes.
func (p Payload) Empty() bool { return len(p.Nodes) == 0 }

// Clone returns a copy of p whose slices can be appended to independently.
func (p Payload) Clone() Payload {
	out := Payload{
		Nodes: append([]Node(nil), p.Nodes...),
		Edges: append([]Edge(nil), p.Edges...),
	}
	if len(p.Meta) > 0 {
		out.Meta = make(map[string]any, len(p.Meta))
		for k, v := range p.Meta {
			out.Meta[k] = v
		}
	}
	return out
}

// =============================================================================
// Serialization
// =============================================================================

// Decode parses a payload, keeping unknown top-level keys in Meta.
func Decode(data []byte) (Payload, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Payload{}, fmt.Errorf("decode payload: %w", err)
	}
	var p Payload
	for key, value := range raw {
		var err error
		switch key {
		case "nodes":
			err = json.Unmarshal(value, &p.Nodes)
		case "edges":
			err = json.Unmarshal(value, &p.Edges)
		default:
			var v any
			if err = json.Unmarshal(value, &v); err == nil {
				if p.Meta == nil {
					p.Meta = make(map[string]any)
				}
				p.Meta[key] = v
			}
		}
		if err != nil {
			return Payload{}, fmt.Errorf("decode payload %s: %w", key, err)
		}
	}
	return p, nil
}

// Read decodes a payload from r.
func Read(r io.Reader) (Payload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Payload{}, err
	}
	return Decode(data)
}

// ReadFile decodes the payload stored at path.
func ReadFile(path string) (Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Payload{}, err
	}
	return Decode(data)
}

// Marshal encodes p with its Meta keys inlined.
func Marshal(p Payload) ([]byte, error) {
	out := make(map[string]any, len(p.Meta)+2)
	for k, v := range p.Meta {
		out[k] = v
	}
	nodes, edges := p.Nodes, p.Edges
	if nodes == nil {
		nodes = []Node{}
	}
	if edges == nil {
		edges = []Edge{}
	}
	out["nodes"] = nodes
	out["edges"] = edges
	return json.MarshalIndent(out, "", "  ")
}

// Write encodes p to w.
func Write(p Payload, w io.Writer) error {
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// WriteFile writes p to path with 0644 permissions.
func WriteFile(p Payload, path string) error {
	data, err := Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
