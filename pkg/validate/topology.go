package validate

import (
	"fmt"

	"github.com/soundprediction/strata/pkg/graph"
	"github.com/soundprediction/strata/pkg/types"
)

// topologyPass checks the connectivity metrics: edge density eta, isolation
// ratio phi, and the clustering coefficient kappa.
func (v *Validator) topologyPass(s *graph.Store) types.ValidationResult {
	result := types.ValidationResult{Valid: true}
	if s.NodeCount() == 0 {
		return result
	}

	eta := s.Eta()
	if eta < v.thresholds.TargetEta {
		severity := types.SeverityMajor
		if eta < v.thresholds.TargetEta*v.thresholds.CriticalEtaFraction {
			severity = types.SeverityCritical
		}
		result.Violations = append(result.Violations, types.Violation{
			Type:            types.TopologyViolation,
			Metric:          "eta",
			Value:           eta,
			Threshold:       v.thresholds.TargetEta,
			Severity:        severity,
			Message:         fmt.Sprintf("edge density %.2f below target %.2f", eta, v.thresholds.TargetEta),
			RemediationHint: "bridge_gaps",
		})
		result.Valid = severity != types.SeverityCritical
	}

	phi := float64(len(s.IsolatedNodes())) / float64(s.NodeCount())
	if phi >= v.thresholds.MaxIsolation {
		severity := types.SeverityMajor
		if phi >= v.thresholds.CriticalIsolation {
			severity = types.SeverityCritical
		}
		result.Violations = append(result.Violations, types.Violation{
			Type:            types.TopologyViolation,
			Metric:          "phi",
			Value:           phi,
			Threshold:       v.thresholds.MaxIsolation,
			Severity:        severity,
			Message:         fmt.Sprintf("isolation ratio %.2f at or above limit %.2f", phi, v.thresholds.MaxIsolation),
			RemediationHint: "bridge_gaps",
		})
		if severity == types.SeverityCritical {
			result.Valid = false
		}
	}

	kappa, defined := clusteringCoefficient(s)
	if defined && kappa < v.thresholds.MinClustering {
		result.Violations = append(result.Violations, types.Violation{
			Type:            types.TopologyViolation,
			Metric:          "kappa",
			Value:           kappa,
			Threshold:       v.thresholds.MinClustering,
			Severity:        types.SeverityMinor,
			Message:         fmt.Sprintf("clustering coefficient %.2f below target %.2f", kappa, v.thresholds.MinClustering),
			RemediationHint: "expand",
		})
	}

	return result
}

// clusteringCoefficient computes kappa as the mean local triangle ratio over
// nodes with at least two neighbors: for each such node, the fraction of its
// neighbor pairs that are themselves connected (in either direction). This is
// the simplified local form, not the global coefficient; the two diverge on
// sparse graphs. Returns defined=false when no node has two neighbors.
func clusteringCoefficient(s *graph.Store) (float64, bool) {
	adjacency := make(map[string]map[string]struct{})
	for _, edge := range s.Edges() {
		if edge.Source == edge.Target {
			continue
		}
		if adjacency[edge.Source] == nil {
			adjacency[edge.Source] = make(map[string]struct{})
		}
		adjacency[edge.Source][edge.Target] = struct{}{}
		if adjacency[edge.Target] == nil {
			adjacency[edge.Target] = make(map[string]struct{})
		}
		adjacency[edge.Target][edge.Source] = struct{}{}
	}

	var total float64
	counted := 0
	for _, neighbors := range adjacency {
		if len(neighbors) < 2 {
			continue
		}
		ids := make([]string, 0, len(neighbors))
		for n := range neighbors {
			ids = append(ids, n)
		}
		connected := 0
		pairs := 0
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				pairs++
				if _, ok := adjacency[ids[i]][ids[j]]; ok {
					connected++
				}
			}
		}
		total += float64(connected) / float64(pairs)
		counted++
	}

	if counted == 0 {
		return 0, false
	}
	return total / float64(counted), true
}
