// Package postprocess turns raw layout geometry into the final chart scene.
//
// [Process] runs a fixed sequence of steps over a [layout.Geometry]:
//
//  1. normalize coordinates into the SVG user space
//  2. center every family hub between its parent cards
//  3. push apart the parents of special couples that ended up too close
//  4. re-snap the edges of every moved node through the offset table
//  5. enlarge all hubs uniformly
//  6. attach select and expand actions
//  7. outline the selected node
//
// Measurements go through the screen transform and back through its
// inverse, so ancestor transforms are always accounted for. A node whose
// geometry cannot be resolved is skipped and recorded in [Result.Skipped];
// the remaining nodes are still processed.
package postprocess
