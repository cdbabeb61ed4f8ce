// Package dot generates the Graphviz constraint program for a pedigree chart.
//
// [Generate] turns an indexed payload into DOT text plus the side tables the
// post-processor needs (couples, special couples, the edge identity table).
// The program expresses:
//
//   - node shapes: person cards (wider when a portrait is shown) and small
//     circular family hubs
//   - generational ordering: parents rank above the hub's children
//   - couple cohesion: [father, hub, mother] share a rank and are chained by
//     heavy invisible ordering edges
//   - multi-spouse rows: a person heading several families gets one row with
//     the family that has the most children next to them
//   - sibling grouping: children of one family share a rank and keep their
//     payload order
//   - single-parent anchoring: the lone parent -> hub edge is a ranking edge
//     that is never marked constraint=false
//
// # Identity
//
// Engines do not always keep names verbatim, so every rendered node and edge
// carries an id attribute with a kind prefix ([PersonPrefix], [FamilyPrefix],
// [EdgePrefix]). [Program.Resolve] and [Program.EdgeRef] reverse them.
//
// # Bad Input
//
// Ordering chains are checked for cycles as they are added and the rank
// structure is checked once all groups are known. Optional groups that
// conflict are dropped with a diagnostic; if the essential couple groups
// conflict the program falls back to unconstrained ordering (plain
// parent -> hub -> child edges) instead of failing.
package dot
