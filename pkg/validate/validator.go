// Package validate checks a graph against its topological, structural,
// uncertainty and governance invariants. Validation is stateless and pure:
// it takes a store, returns a ValidationResult, and never mutates anything.
// Violations are data, not errors; a result is invalid only when a CRITICAL
// finding exists.
package validate

import (
	"log/slog"
	"sync"

	"github.com/soundprediction/strata/pkg/graph"
	"github.com/soundprediction/strata/pkg/types"
)

// Thresholds are the invariant bounds the validator checks against.
type Thresholds struct {
	// TargetEta is the edge-density target; below it is MAJOR.
	TargetEta float64
	// CriticalEtaFraction of TargetEta marks the CRITICAL margin.
	CriticalEtaFraction float64
	// MaxIsolation is the highest tolerated fraction of zero-degree nodes.
	MaxIsolation float64
	// CriticalIsolation marks the CRITICAL margin for isolation.
	CriticalIsolation float64
	// MinClustering is the minimum mean local clustering coefficient.
	MinClustering float64
	// GrowthExponent bounds level population growth: |V_k| <= |V_{k-1}|^exp.
	GrowthExponent float64
}

// DefaultThresholds returns the engine's canonical bounds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		TargetEta:           graph.TargetEta,
		CriticalEtaFraction: 0.25,
		MaxIsolation:        0.2,
		CriticalIsolation:   0.5,
		MinClustering:       0.3,
		GrowthExponent:      1.5,
	}
}

// ObligationsHook lets the caller plug policy-level obligation checks into
// the governance pass. The core models obligations as a pass-through only.
type ObligationsHook func(op *types.Operation) []types.Violation

// Validator runs the four validation passes. It holds thresholds and an
// optional obligations hook, no graph state.
type Validator struct {
	thresholds  Thresholds
	obligations ObligationsHook
	logger      *slog.Logger
}

// Option configures a Validator.
type Option func(*Validator)

// WithThresholds overrides the default invariant bounds.
func WithThresholds(t Thresholds) Option {
	return func(v *Validator) { v.thresholds = t }
}

// WithObligationsHook installs a caller policy for the Obligations predicate.
func WithObligationsHook(hook ObligationsHook) Option {
	return func(v *Validator) { v.obligations = hook }
}

// WithLogger sets the validator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) { v.logger = logger }
}

// New creates a Validator.
func New(opts ...Option) *Validator {
	v := &Validator{
		thresholds: DefaultThresholds(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate runs the topology, structure and uncertainty passes concurrently,
// then the governance pass (which reuses the first two) when an operation
// descriptor is supplied. Results are merged in fixed pass order so the
// violation list is deterministic.
func (v *Validator) Validate(s *graph.Store, op *types.Operation) types.ValidationResult {
	var (
		topology    types.ValidationResult
		structure   types.ValidationResult
		uncertainty types.ValidationResult
		wg          sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		topology = v.topologyPass(s)
	}()
	go func() {
		defer wg.Done()
		structure = v.structurePass(s)
	}()
	go func() {
		defer wg.Done()
		uncertainty = v.uncertaintyPass(s)
	}()
	wg.Wait()

	merged := types.ValidationResult{Valid: true}
	merged.Merge(topology)
	merged.Merge(structure)
	merged.Merge(uncertainty)

	if op != nil {
		merged.Merge(v.governancePass(op, topology, structure))
	}

	if !merged.Valid {
		v.logger.Debug("validation found critical violations",
			"violations", len(merged.Violations))
	}
	return merged
}
