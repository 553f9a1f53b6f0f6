package strata

import (
	"context"
	"fmt"
	"time"

	"github.com/soundprediction/strata/pkg/types"
)

// NodeRecord is one node to ingest, with its optional uncertainty attributes.
// Records typically arrive from an external text-extraction collaborator; the
// engine performs no text processing itself.
type NodeRecord struct {
	Node       *types.Node                      `json:"node"`
	Attributes map[string]types.PlithoAttribute `json:"attributes,omitempty"`
}

// Batch is one ingestion unit. Nodes are inserted before edges so edges may
// reference nodes from the same batch.
type Batch struct {
	Nodes []NodeRecord `json:"nodes,omitempty"`
	Edges []types.Edge `json:"edges,omitempty"`
}

// IngestResult reports what a batch changed and the post-batch validation.
type IngestResult struct {
	NodesAdded int                    `json:"nodes_added"`
	EdgesAdded int                    `json:"edges_added"`
	Validation types.ValidationResult `json:"validation"`
}

// Ingest applies a batch of node and edge records to the canonical graph.
// When an operation descriptor is supplied the batch is governance-gated
// first: a failed KROG check blocks the whole batch with ErrOperationBlocked
// before anything mutates. Structural errors from individual records abort
// the batch at that record; earlier records stay applied, since transient
// violation during multi-step edits is legal and the post-batch validation
// reports the state actually reached.
func (c *Client) Ingest(ctx context.Context, batch Batch, op *types.Operation) (*IngestResult, error) {
	if op != nil {
		gate := c.validator.Validate(c.store, op)
		if !gate.Valid {
			return &IngestResult{Validation: gate}, fmt.Errorf("ingest by %q: %w", op.Agent, ErrOperationBlocked)
		}
	}

	result := &IngestResult{}
	now := time.Now().UTC()

	for i, record := range batch.Nodes {
		if record.Node == nil {
			return result, fmt.Errorf("node record %d is nil", i)
		}
		node := record.Node.Clone()
		for name, attr := range record.Attributes {
			if err := node.SetAttribute(name, attr); err != nil {
				return result, fmt.Errorf("node record %d: %w", i, err)
			}
		}
		if err := c.store.AddNode(node); err != nil {
			return result, fmt.Errorf("node record %d: %w", i, err)
		}
		result.NodesAdded++
		c.recordUpdate(node.ID, now)
	}

	for i, edge := range batch.Edges {
		if err := c.store.AddEdge(edge); err != nil {
			return result, fmt.Errorf("edge record %d: %w", i, err)
		}
		result.EdgesAdded++
		c.recordUpdate(edge.Source, now)
		c.recordUpdate(edge.Target, now)
	}

	result.Validation = c.validator.Validate(c.store, nil)
	c.logger.Info("batch ingested",
		"nodes", result.NodesAdded,
		"edges", result.EdgesAdded,
		"valid", result.Validation.Valid,
		"violations", len(result.Validation.Violations))
	return result, nil
}

// recordUpdate appends to the update log when one is configured. Log failures
// are reported but never fail the ingest: the log feeds correlation learning,
// not correctness.
func (c *Client) recordUpdate(nodeID string, ts time.Time) {
	if c.updates == nil {
		return
	}
	if err := c.updates.Append(nodeID, ts); err != nil {
		c.logger.Warn("failed to record update", "node", nodeID, "error", err)
	}
}
