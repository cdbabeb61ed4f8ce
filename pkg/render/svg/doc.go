// Package svg writes a processed chart as a standalone interactive SVG
// document.
//
// The document draws edges first, then cards and hubs with their recorded
// offsets applied as group transforms, then expand controls and the
// selection outline. An embedded script turns clicks into typed events:
// every click dispatches a "famtree" CustomEvent on the window (and posts
// the same detail to a parent frame), for example
//
//	{"type": "person_selected", "person_id": "I0001"}
//	{"type": "expand_requested", "family_id": "F0001", "kind": "children", "click": {"x": 310, "y": 88}}
//
// which the host decodes with chart.DecodeEvent.
package svg
