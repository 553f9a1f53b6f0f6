// Package strata implements a hierarchical knowledge-graph engine: an
// n-level super-hypergraph whose nodes carry explicit uncertainty attributes,
// whose structure is continuously validated against topological and
// structural invariants, and which self-repairs through a bounded autopoietic
// refinement loop.
//
// The canonical graph lives in pkg/graph and is the single owner of all
// structure. The validator (pkg/validate) is pure and returns violations as
// data. The refinement engine in this package consumes those violations and
// applies bounded remediation until the graph is stable or the budget is
// exhausted. Query-time resolution (decoherence) always works on snapshots
// and never mutates the canonical graph.
package strata
