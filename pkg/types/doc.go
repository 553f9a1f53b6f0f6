// Package types defines the core data model for the strata knowledge graph:
// hierarchy levels, nodes, edges, plithogenic uncertainty attributes and the
// algebra over them, and the violation/result types produced by validation.
//
// Types in this package carry no graph ownership. Nodes reference their
// contained children and edges reference their endpoints by id only; the
// canonical structure lives in pkg/graph.
package types
