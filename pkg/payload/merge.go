package payload

// Merge unions delta into existing and returns the result. Nodes are keyed by
// id and edges by (from, to, kind); entries already in existing are kept as
// they are and the delta's copies are ignored. Existing order is preserved and
// new entries are appended in delta order, so merging the same delta again
// returns an identical payload.
//
// Neither input is modified. Meta keys of existing take precedence.
func Merge(existing, delta Payload) Payload {
	out := existing.Clone()

	nodes := make(map[string]bool, len(existing.Nodes)+len(delta.Nodes))
	for _, n := range existing.Nodes {
		nodes[n.ID] = true
	}
	for _, n := range delta.Nodes {
		if nodes[n.ID] {
			continue
		}
		nodes[n.ID] = true
		out.Nodes = append(out.Nodes, n)
	}

	edges := make(map[EdgeKey]bool, len(existing.Edges)+len(delta.Edges))
	for _, e := range existing.Edges {
		edges[e.Key()] = true
	}
	for _, e := range delta.Edges {
		if edges[e.Key()] {
			continue
		}
		edges[e.Key()] = true
		out.Edges = append(out.Edges, e)
	}

	for k, v := range delta.Meta {
		if out.Meta == nil {
			out.Meta = make(map[string]any)
		}
		if _, ok := out.Meta[k]; !ok {
			out.Meta[k] = v
		}
	}
	return out
}

// MergeStats describes what a merge added.
type MergeStats struct {
	NodesAdded int `json:"nodes_added"`
	EdgesAdded int `json:"edges_added"`
}

// Diff reports how many nodes and edges merged gained over existing.
func Diff(existing, merged Payload) MergeStats {
	return MergeStats{
		NodesAdded: len(merged.Nodes) - len(existing.Nodes),
		EdgesAdded: len(merged.Edges) - len(existing.Edges),
	}
}
