package types

import "fmt"

// Severity ranks how strongly a violation should influence downstream
// behavior. Only CRITICAL violations make a graph invalid; the rest feed
// refinement prioritization.
type Severity int

const (
	// SeverityInfo is purely informational.
	SeverityInfo Severity = iota
	// SeverityMinor marks soft-bound breaches.
	SeverityMinor
	// SeverityMajor marks target metrics clearly missed.
	SeverityMajor
	// SeverityCritical marks structural breakage that blocks gated operations.
	SeverityCritical
)

// String returns the severity's canonical name.
func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityMajor:
		return "MAJOR"
	case SeverityMinor:
		return "MINOR"
	default:
		return "INFO"
	}
}

// ViolationType is the validation pass a violation originated from.
type ViolationType string

const (
	// TopologyViolation covers connectivity metrics (eta, phi, kappa).
	TopologyViolation ViolationType = "topology"
	// StructureViolation covers hierarchy well-foundedness and growth bounds.
	StructureViolation ViolationType = "structure"
	// UncertaintyViolation covers attribute range and coherence checks.
	UncertaintyViolation ViolationType = "uncertainty"
	// GovernanceViolation covers KROG operation governance checks.
	GovernanceViolation ViolationType = "governance"
)

// Violation is a single finding from a validation pass. Violations are
// returned as data and ranked by severity; they are never raised as errors.
type Violation struct {
	Type            ViolationType `json:"type"`
	Metric          string        `json:"metric"`
	Value           float64       `json:"value"`
	Threshold       float64       `json:"threshold"`
	Severity        Severity      `json:"severity"`
	Message         string        `json:"message"`
	RemediationHint string        `json:"remediation_hint,omitempty"`
}

// String renders the violation for logs.
func (v Violation) String() string {
	return fmt.Sprintf("[%s] %s/%s: %s (value=%.3f threshold=%.3f)",
		v.Severity, v.Type, v.Metric, v.Message, v.Value, v.Threshold)
}

// ValidationResult aggregates the findings of all validation passes over one
// graph state.
type ValidationResult struct {
	// Valid is true iff no CRITICAL violation was found. MAJOR and below are
	// advisory.
	Valid      bool        `json:"valid"`
	Violations []Violation `json:"violations,omitempty"`
}

// Merge folds another result into this one, recomputing Valid.
func (r *ValidationResult) Merge(other ValidationResult) {
	r.Violations = append(r.Violations, other.Violations...)
	r.Valid = r.Valid && other.Valid
}

// WorstFirst returns the violations sorted most severe first, preserving the
// reporting order within a severity class. The sort is stable so validator
// output stays deterministic.
func (r *ValidationResult) WorstFirst() []Violation {
	out := make([]Violation, len(r.Violations))
	copy(out, r.Violations)
	// insertion sort keeps the pass order stable for equal severities

	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Severity > out[j-1].Severity; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// CountBySeverity tallies violations per severity class.
func (r *ValidationResult) CountBySeverity() map[Severity]int {
	counts := make(map[Severity]int)
	for _, v := range r.Violations {
		counts[v.Severity]++
	}
	return counts
}
