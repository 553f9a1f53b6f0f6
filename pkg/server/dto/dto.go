// Package dto defines the request and response shapes of the HTTP API and
// their conversions to engine types.
package dto

import (
	"errors"
	"strings"

	"github.com/soundprediction/strata"
	"github.com/soundprediction/strata/pkg/types"
)

// AttributeDTO is the wire form of an uncertainty attribute.
type AttributeDTO struct {
	Confidence    float64  `json:"confidence"`
	Coverage      float64  `json:"coverage"`
	SourceQuality float64  `json:"source_quality"`
	Sources       []string `json:"sources,omitempty"`
}

// NodeDTO is the wire form of a node.
type NodeDTO struct {
	ID         string                  `json:"id" binding:"required"`
	Level      int                     `json:"level"`
	Contains   []string                `json:"contains,omitempty"`
	Attributes map[string]AttributeDTO `json:"attributes,omitempty"`
}

// EdgeDTO is the wire form of an edge.
type EdgeDTO struct {
	Source string  `json:"source" binding:"required"`
	Target string  `json:"target" binding:"required"`
	Label  string  `json:"label" binding:"required"`
	Weight float64 `json:"weight"`
}

// OperationDTO describes the acting agent for governance checking.
type OperationDTO struct {
	Type      string   `json:"type"`
	Agent     string   `json:"agent"`
	Rationale string   `json:"rationale"`
	Logged    bool     `json:"logged"`
	Positions []string `json:"positions,omitempty"`
}

// IngestRequest is one batch of nodes and edges.
type IngestRequest struct {
	Nodes     []NodeDTO     `json:"nodes,omitempty"`
	Edges     []EdgeDTO     `json:"edges,omitempty"`
	Operation *OperationDTO `json:"operation,omitempty"`
}

// Validate performs structural validation before conversion.
func (r *IngestRequest) Validate() error {
	if len(r.Nodes) == 0 && len(r.Edges) == 0 {
		return errors.New("batch cannot be empty")
	}
	for _, n := range r.Nodes {
		if strings.TrimSpace(n.ID) == "" {
			return errors.New("node id cannot be empty")
		}
	}
	return nil
}

// ToBatch converts the request into an engine batch.
func (r *IngestRequest) ToBatch() (strata.Batch, error) {
	batch := strata.Batch{}
	for _, n := range r.Nodes {
		node := types.NewNode(n.ID, types.Level(n.Level), n.Contains...)
		record := strata.NodeRecord{Node: node}
		if len(n.Attributes) > 0 {
			record.Attributes = make(map[string]types.PlithoAttribute, len(n.Attributes))
			for name, a := range n.Attributes {
				attr, err := types.NewAttribute(a.Confidence, a.Coverage, a.SourceQuality, a.Sources...)
				if err != nil {
					return strata.Batch{}, err
				}
				record.Attributes[name] = attr
			}
		}
		batch.Nodes = append(batch.Nodes, record)
	}
	for _, e := range r.Edges {
		edge := types.NewEdge(e.Source, e.Target, e.Label)
		if e.Weight != 0 {
			edge.Weight = e.Weight
		}
		batch.Edges = append(batch.Edges, edge)
	}
	return batch, nil
}

// ToOperation converts the wire operation, nil stays nil.
func (o *OperationDTO) ToOperation() *types.Operation {
	if o == nil {
		return nil
	}
	op := &types.Operation{
		Type:      types.OperationType(o.Type),
		Agent:     o.Agent,
		Rationale: o.Rationale,
		Logged:    o.Logged,
	}
	for _, p := range o.Positions {
		op.Positions = append(op.Positions, types.HohfeldPosition(p))
	}
	return op
}

// DecohereRequest asks for a query-specific view.
type DecohereRequest struct {
	Query      string                  `json:"query" binding:"required"`
	Polysemous []strata.PolysemousNode `json:"polysemous,omitempty"`
}

// DecohereResponse reports the derived context and chosen interpretations.
type DecohereResponse struct {
	Context  strata.QueryContext              `json:"context"`
	Resolved map[string]strata.Interpretation `json:"resolved,omitempty"`
	Rendered string                           `json:"rendered"`
}

// Result represents a generic API result
type Result struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
