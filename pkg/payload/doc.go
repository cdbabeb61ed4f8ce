// Package payload defines the node/edge records a family tree service returns
// and the lookup indices the layout pipeline builds over them.
//
// # Wire Format
//
// Payloads use the node-link JSON format of the family tree API:
//
//	{
//	  "nodes": [
//	    {"id": "I1", "gramps_id": "I0001", "type": "person", "display_name": "Ada Smith", "gender": "F"},
//	    {"id": "F1", "gramps_id": "F0001", "type": "family", "parents_total": 2, "children_total": 3}
//	  ],
//	  "edges": [
//	    {"from": "I1", "to": "F1", "type": "parent", "role": "mother"},
//	    {"from": "F1", "to": "I2", "type": "child"}
//	  ]
//	}
//
// A parent edge connects a person to the family hub they head; a child edge
// connects a family hub to a person born into it.
//
// # Sanitizing
//
// Edges that reference ids absent from the node set, point the wrong way, carry
// an unknown kind or repeat an existing edge are dropped by [Sanitize] before
// anything else sees them. [NewIndex] always sanitizes.
//
// # Merging
//
// Payloads grow monotonically: [Merge] unions nodes and edges by identity and
// never replaces an entry that is already present, so merging the same delta
// twice is a no-op.
package payload
