package validate

import (
	"fmt"
	"sort"

	"github.com/soundprediction/strata/pkg/graph"
	"github.com/soundprediction/strata/pkg/types"
)

// CoherenceSlack is how far confidence may exceed source quality before the
// attribute is flagged as incoherent.
const CoherenceSlack = 0.1

// uncertaintyPass checks attribute ranges and confidence/source-quality
// coherence. The pass is skipped when no node carries attributes.
func (v *Validator) uncertaintyPass(s *graph.Store) types.ValidationResult {
	result := types.ValidationResult{Valid: true}

	for _, id := range s.NodeIDs() {
		node, ok := s.GetNode(id)
		if !ok || len(node.Attributes) == 0 {
			continue
		}

		names := make([]string, 0, len(node.Attributes))
		for name := range node.Attributes {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			attr := node.Attributes[name]
			if attr.Validate() != nil {
				result.Violations = append(result.Violations, types.Violation{
					Type:            types.UncertaintyViolation,
					Metric:          "attribute_range",
					Value:           attr.Confidence,
					Threshold:       1,
					Severity:        types.SeverityMajor,
					Message:         fmt.Sprintf("node %s attribute %q has a component outside [0,1]", id, name),
					RemediationHint: "repair",
				})
				continue
			}
			if attr.Confidence > attr.SourceQuality+CoherenceSlack {
				result.Violations = append(result.Violations, types.Violation{
					Type:            types.UncertaintyViolation,
					Metric:          "coherence",
					Value:           attr.Confidence,
					Threshold:       attr.SourceQuality + CoherenceSlack,
					Severity:        types.SeverityMinor,
					Message:         fmt.Sprintf("node %s attribute %q claims confidence %.2f on source quality %.2f", id, name, attr.Confidence, attr.SourceQuality),
					RemediationHint: "repair",
				})
			}
		}
	}

	return result
}
