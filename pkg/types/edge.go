package types

import (
	"errors"
	"fmt"
)

// ErrEmptyLabel is returned for edges without a label.
var ErrEmptyLabel = errors.New("edge label cannot be empty")

// Edge is a directed, labeled, weighted arc between two node ids. Edges are
// keyed by (source, target, label); re-adding an existing key overwrites the
// stored weight.
type Edge struct {
	Source string  `json:"source"`
	Target string  `json:"target"`
	Label  string  `json:"label"`
	Weight float64 `json:"weight"`
}

// NewEdge creates an edge with weight 1.0.
func NewEdge(source, target, label string) Edge {
	return Edge{Source: source, Target: target, Label: label, Weight: 1.0}
}

// Validate checks that the edge has endpoints and a label. Endpoint existence
// is enforced by the graph store.
func (e Edge) Validate() error {
	if e.Source == "" || e.Target == "" {
		return ErrEmptyID
	}
	if e.Label == "" {
		return ErrEmptyLabel
	}
	return nil
}

// Key returns the identity key of the edge.
func (e Edge) Key() EdgeKey {
	return EdgeKey{Source: e.Source, Target: e.Target, Label: e.Label}
}

// IsSelfLoop reports whether source and target coincide.
func (e Edge) IsSelfLoop() bool {
	return e.Source == e.Target
}

// String renders the edge in the engine's canonical text form.
func (e Edge) String() string {
	return fmt.Sprintf("%s --[%s]--> %s", e.Source, e.Label, e.Target)
}

// EdgeKey identifies an edge: duplicate keys overwrite on insertion.
type EdgeKey struct {
	Source string
	Target string
	Label  string
}
