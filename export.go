package strata

import (
	"fmt"
	"io"
	"sort"

	"gopkg.in/yaml.v3"
)

// AttributeSummary is the flattened uncertainty tuple of one attribute.
type AttributeSummary struct {
	Name          string  `json:"name" yaml:"name"`
	Confidence    float64 `json:"confidence" yaml:"confidence"`
	Coverage      float64 `json:"coverage" yaml:"coverage"`
	SourceQuality float64 `json:"source_quality" yaml:"source_quality"`
}

// RelationRecord is one incident edge from the exported node's point of view.
type RelationRecord struct {
	Label  string  `json:"label" yaml:"label"`
	Other  string  `json:"other" yaml:"other"`
	Weight float64 `json:"weight" yaml:"weight"`
}

// CorrelateRecord is a correlated node above the propagation threshold.
type CorrelateRecord struct {
	NodeID string  `json:"node_id" yaml:"node_id"`
	Value  float64 `json:"value" yaml:"value"`
}

// ExportRecord is the externally observed representation of one node,
// consumed by the PKM-export collaborator. The collaborator owns the final
// prose/markup formatting; this record is the contract.
type ExportRecord struct {
	ID         string             `json:"id" yaml:"id"`
	Level      int                `json:"level" yaml:"level"`
	LevelName  string             `json:"level_name" yaml:"level_name"`
	Contains   []string           `json:"contains,omitempty" yaml:"contains,omitempty"`
	Attributes []AttributeSummary `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Outgoing   []RelationRecord   `json:"outgoing,omitempty" yaml:"outgoing,omitempty"`
	Incoming   []RelationRecord   `json:"incoming,omitempty" yaml:"incoming,omitempty"`
	Correlates []CorrelateRecord  `json:"correlates,omitempty" yaml:"correlates,omitempty"`
}

// Export produces one record per node, sorted by id.
func (c *Client) Export() []ExportRecord {
	edges := c.store.Edges()
	records := make([]ExportRecord, 0, c.store.NodeCount())

	for _, id := range c.store.NodeIDs() {
		node, ok := c.store.GetNode(id)
		if !ok {
			continue
		}

		record := ExportRecord{
			ID:        node.ID,
			Level:     int(node.Level),
			LevelName: node.Level.String(),
			Contains:  node.ContainedIDs(),
		}

		names := make([]string, 0, len(node.Attributes))
		for name := range node.Attributes {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			attr := node.Attributes[name]
			record.Attributes = append(record.Attributes, AttributeSummary{
				Name:          name,
				Confidence:    attr.Confidence,
				Coverage:      attr.Coverage,
				SourceQuality: attr.SourceQuality,
			})
		}

		for _, edge := range edges {
			if edge.Source == id {
				record.Outgoing = append(record.Outgoing, RelationRecord{
					Label: edge.Label, Other: edge.Target, Weight: edge.Weight,
				})
			}
			if edge.Target == id {
				record.Incoming = append(record.Incoming, RelationRecord{
					Label: edge.Label, Other: edge.Source, Weight: edge.Weight,
				})
			}
		}

		for _, target := range c.matrix.PropagationTargets(id) {
			record.Correlates = append(record.Correlates, CorrelateRecord{
				NodeID: target.NodeID, Value: target.Value,
			})
		}

		records = append(records, record)
	}
	return records
}

// ExportYAML writes the export records as a YAML document stream.
func (c *Client) ExportYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	for _, record := range c.Export() {
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("failed to encode export record %s: %w", record.ID, err)
		}
	}
	return nil
}
