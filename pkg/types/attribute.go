package types

import (
	"errors"
	"fmt"
	"time"
)

// Validation errors
var (
	ErrOutOfRange = errors.New("component out of range [0,1]")
	ErrEmptyID    = errors.New("id cannot be empty")
)

// Thresholds for contradiction detection between two attributes.
const (
	// ContradictionConfidenceGap is the minimum confidence distance for two
	// attributes to be considered contradictory.
	ContradictionConfidenceGap = 0.5
	// ContradictionQualityFloor is the minimum source quality both attributes
	// must exceed before a confidence gap counts as a contradiction.
	ContradictionQualityFloor = 0.6
	// SynthesisDamping is applied to the averaged confidence when resolving a
	// contradiction between equally trusted sources.
	SynthesisDamping = 0.7
)

// PlithoAttribute is a plithogenic uncertainty tuple attached to a node
// attribute: how confident we are in the value, how much of the relevant
// evidence it covers, and how trustworthy its sources are. All three
// components are constrained to [0,1].
type PlithoAttribute struct {
	Confidence    float64 `json:"confidence"`
	Coverage      float64 `json:"coverage"`
	SourceQuality float64 `json:"source_quality"`

	// Sources is an ordered provenance list, most recent last.
	Sources   []string  `json:"sources,omitempty"`
	Timestamp time.Time `json:"timestamp,omitempty"`

	// Synthesized marks attributes produced by Resolve rather than observed.
	Synthesized bool `json:"synthesized,omitempty"`
}

// NewAttribute constructs a PlithoAttribute, failing with ErrOutOfRange if any
// component lies outside [0,1]. Values are never clamped: closure of the
// algebra is a caller guarantee, not an internal repair.
func NewAttribute(confidence, coverage, sourceQuality float64, sources ...string) (PlithoAttribute, error) {
	for _, v := range []float64{confidence, coverage, sourceQuality} {
		if v < 0 || v > 1 {
			return PlithoAttribute{}, fmt.Errorf("plitho attribute component %v: %w", v, ErrOutOfRange)
		}
	}
	return PlithoAttribute{
		Confidence:    confidence,
		Coverage:      coverage,
		SourceQuality: sourceQuality,
		Sources:       sources,
		Timestamp:     time.Now().UTC(),
	}, nil
}

// Validate checks that every component is within [0,1].
func (a PlithoAttribute) Validate() error {
	for _, v := range []float64{a.Confidence, a.Coverage, a.SourceQuality} {
		if v < 0 || v > 1 {
			return ErrOutOfRange
		}
	}
	return nil
}

// Meet is the algebra's conjunction: componentwise minimum, with provenance
// from both operands concatenated.
func (a PlithoAttribute) Meet(b PlithoAttribute) PlithoAttribute {
	return PlithoAttribute{
		Confidence:    min(a.Confidence, b.Confidence),
		Coverage:      min(a.Coverage, b.Coverage),
		SourceQuality: min(a.SourceQuality, b.SourceQuality),
		Sources:       concatSources(a.Sources, b.Sources),
		Timestamp:     laterOf(a.Timestamp, b.Timestamp),
	}
}

// Join is the algebra's disjunction: componentwise maximum.
func (a PlithoAttribute) Join(b PlithoAttribute) PlithoAttribute {
	return PlithoAttribute{
		Confidence:    max(a.Confidence, b.Confidence),
		Coverage:      max(a.Coverage, b.Coverage),
		SourceQuality: max(a.SourceQuality, b.SourceQuality),
		Sources:       concatSources(a.Sources, b.Sources),
		Timestamp:     laterOf(a.Timestamp, b.Timestamp),
	}
}

// Negate inverts the confidence component. Coverage and source quality are
// properties of the evidence, not the claim, so they are unchanged.
func (a PlithoAttribute) Negate() PlithoAttribute {
	out := a
	out.Confidence = 1 - a.Confidence
	return out
}

// Contradicts reports whether a and b are in genuine contradiction: their
// confidences diverge by more than ContradictionConfidenceGap and both rest on
// sources above ContradictionQualityFloor. Low-quality disagreement is noise,
// not contradiction.
func (a PlithoAttribute) Contradicts(b PlithoAttribute) bool {
	gap := a.Confidence - b.Confidence
	if gap < 0 {
		gap = -gap
	}
	return gap > ContradictionConfidenceGap &&
		min(a.SourceQuality, b.SourceQuality) > ContradictionQualityFloor
}

// Resolve settles a contradiction between a and b. The operand with strictly
// higher source quality wins. On a tie, a synthesized attribute is returned
// with the damped average confidence, the maximum coverage, and the minimum
// source quality. If the operands do not contradict, a is returned unchanged.
func (a PlithoAttribute) Resolve(b PlithoAttribute) PlithoAttribute {
	if !a.Contradicts(b) {
		return a
	}
	if a.SourceQuality > b.SourceQuality {
		return a
	}
	if b.SourceQuality > a.SourceQuality {
		return b
	}
	return PlithoAttribute{
		Confidence:    (a.Confidence + b.Confidence) / 2 * SynthesisDamping,
		Coverage:      max(a.Coverage, b.Coverage),
		SourceQuality: min(a.SourceQuality, b.SourceQuality),
		Sources:       concatSources(a.Sources, b.Sources),
		Timestamp:     time.Now().UTC(),
		Synthesized:   true,
	}
}

func concatSources(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]string, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
