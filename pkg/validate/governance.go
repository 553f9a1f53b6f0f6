package validate

import (
	"fmt"

	"github.com/soundprediction/strata/pkg/types"
)

// governancePass runs the KROG predicates for an operation descriptor:
// Knowable, Rights, Obligations, Governance bounds. Failures are CRITICAL
// violations, never errors: governance gates operations exactly the way
// topology and structure do.
func (v *Validator) governancePass(op *types.Operation, topology, structure types.ValidationResult) types.ValidationResult {
	result := types.ValidationResult{Valid: true}

	// Knowable: the operation must be audit-logged and carry a rationale.
	if !op.Logged || op.Rationale == "" {
		result.Violations = append(result.Violations, types.Violation{
			Type:            types.GovernanceViolation,
			Metric:          "knowable",
			Severity:        types.SeverityCritical,
			Message:         fmt.Sprintf("%s operation by %q is not knowable: missing log entry or rationale", op.Type, op.Agent),
			RemediationHint: "log the operation with a rationale before retrying",
		})
		result.Valid = false
	}

	// Rights: the agent must hold every Hohfeld position the operation type
	// requires.
	for _, required := range op.Type.RequiredPositions() {
		if op.Holds(required) {
			continue
		}
		result.Violations = append(result.Violations, types.Violation{
			Type:            types.GovernanceViolation,
			Metric:          "rights",
			Severity:        types.SeverityCritical,
			Message:         fmt.Sprintf("agent %q lacks %s position required for %s", op.Agent, required, op.Type),
			RemediationHint: "grant the missing position or reject the operation",
		})
		result.Valid = false
	}

	// Obligations: not modeled in the core beyond the caller-supplied hook.
	if v.obligations != nil {
		for _, violation := range v.obligations(op) {
			result.Violations = append(result.Violations, violation)
			if violation.Severity == types.SeverityCritical {
				result.Valid = false
			}
		}
	}

	// Governance bounds: an operation against a structurally broken graph is
	// itself out of bounds. Reuses the topology and structure pass results.
	for _, prior := range [][]types.Violation{topology.Violations, structure.Violations} {
		for _, violation := range prior {
			if violation.Severity != types.SeverityCritical {
				continue
			}
			result.Violations = append(result.Violations, types.Violation{
				Type:            types.GovernanceViolation,
				Metric:          "governance_bounds",
				Value:           violation.Value,
				Threshold:       violation.Threshold,
				Severity:        types.SeverityCritical,
				Message:         fmt.Sprintf("%s operation blocked by critical %s violation on %s", op.Type, violation.Type, violation.Metric),
				RemediationHint: "refine the graph before retrying",
			})
			result.Valid = false
		}
	}

	return result
}
