package strata

import (
	"context"
	"io"

	"github.com/soundprediction/strata/pkg/types"
)

// This file defines focused interfaces that follow the Interface Segregation Principle.
// The main Strata interface is composed from these smaller interfaces.
// Consumers should depend on the smallest interface that meets their needs.

// Ingester accepts batches of nodes and edges into the canonical graph.
// Use this interface when you only need to feed the engine.
type Ingester interface {
	// Ingest applies a batch to the canonical graph. A non-nil operation
	// descriptor governance-gates the batch first.
	Ingest(ctx context.Context, batch Batch, op *types.Operation) (*IngestResult, error)
}

// GraphReader provides read-only access to the canonical graph.
type GraphReader interface {
	// GetNode retrieves a clone of a node by id.
	GetNode(id string) (*types.Node, error)
}

// Checker runs invariant validation over the canonical graph.
type Checker interface {
	// Validate reports all invariant violations. A nil operation skips the
	// governance pass.
	Validate(op *types.Operation) types.ValidationResult
}

// Refiner drives the bounded self-repair loop.
type Refiner interface {
	// Refine runs validate/remediate cycles until the graph is stable or a
	// budget runs out.
	Refine(ctx context.Context) (*RefineOutcome, error)
}

// Resolver produces query-specific views of the graph.
type Resolver interface {
	// Decohere materializes a filtered, specialized snapshot for one query.
	Decohere(query string, polysemous []PolysemousNode, conditional []ConditionalEdge) *Resolution
}

// Exporter renders the graph for external consumers.
type Exporter interface {
	// Export produces one record per node, sorted by id.
	Export() []ExportRecord

	// ExportYAML writes the export records as a YAML document stream.
	ExportYAML(w io.Writer) error
}

// Learner maintains the correlation matrix from the update history.
type Learner interface {
	// LearnCorrelations replays the update log into the correlation matrix.
	LearnCorrelations(ctx context.Context) error
}

// Strata is the full engine surface, composed from the focused interfaces.
type Strata interface {
	Ingester
	GraphReader
	Checker
	Refiner
	Resolver
	Exporter
	Learner

	// Close releases resources held by the engine.
	Close() error
}

// Compile-time check that Client implements the composed interface.
var _ Strata = (*Client)(nil)
