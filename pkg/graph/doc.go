// Package graph implements the canonical n-level super-hypergraph store.
//
// The Store is the single logical owner of all nodes and edges: mutation is
// serialized through it and callers only ever receive clones or id-keyed
// projections, never aliases into the owned structures. Containment and
// adjacency are kept as id-keyed maps so merges are O(degree) id rewrites
// rather than graph walks, and ownership cycles are structurally impossible.
package graph
