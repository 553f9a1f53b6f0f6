package validate

import (
	"fmt"
	"math"

	"github.com/soundprediction/strata/pkg/graph"
	"github.com/soundprediction/strata/pkg/types"
)

// structurePass checks hierarchy well-foundedness: grounding of every node
// above level 0, the level-population growth bound, and the maximum depth.
// The pass is skipped entirely for flat graphs.
func (v *Validator) structurePass(s *graph.Store) types.ValidationResult {
	result := types.ValidationResult{Valid: true}
	if s.MaxLevel() == 0 {
		return result
	}

	if s.MaxLevel() > types.MaxLevel {
		result.Violations = append(result.Violations, types.Violation{
			Type:            types.StructureViolation,
			Metric:          "max_level",
			Value:           float64(s.MaxLevel()),
			Threshold:       float64(types.MaxLevel),
			Severity:        types.SeverityCritical,
			Message:         fmt.Sprintf("hierarchy depth %d exceeds maximum %d", s.MaxLevel(), types.MaxLevel),
			RemediationHint: "compress",
		})
		result.Valid = false
	}

	ungrounded := 0
	for level := types.LevelGrouping; level <= s.MaxLevel() && level <= types.MaxLevel; level++ {
		for _, node := range s.NodesAtLevel(level) {
			if len(node.Content) > 0 || s.HasCrossLevelEdge(node.ID) {
				continue
			}
			ungrounded++
			result.Violations = append(result.Violations, types.Violation{
				Type:            types.StructureViolation,
				Metric:          "grounding",
				Value:           float64(node.Level),
				Threshold:       0,
				Severity:        types.SeverityMajor,
				Message:         fmt.Sprintf("node %s at L%d has no grounding in a lower level", node.ID, node.Level),
				RemediationHint: "repair",
			})
		}
	}

	for level := types.LevelGrouping; level <= s.MaxLevel() && level <= types.MaxLevel; level++ {
		upper := float64(len(s.NodesAtLevel(level)))
		lower := float64(len(s.NodesAtLevel(level - 1)))
		if upper == 0 {
			continue
		}
		bound := math.Pow(lower, v.thresholds.GrowthExponent)
		if upper > bound {
			result.Violations = append(result.Violations, types.Violation{
				Type:            types.StructureViolation,
				Metric:          "growth_bound",
				Value:           upper,
				Threshold:       bound,
				Severity:        types.SeverityMinor,
				Message:         fmt.Sprintf("level %d holds %.0f nodes, above %.1f allowed by level %d", level, upper, bound, level-1),
				RemediationHint: "compress",
			})
		}
	}

	return result
}
