// Package advice integrates the external gap-analysis collaborator. Given the
// engine's deterministic text rendering of the graph, the collaborator
// proposes bridging edges and research questions. The integration is strictly
// advisory: every caller must keep a local heuristic as fallback, because the
// refinement loop's correctness never depends on this call succeeding.
package advice

import (
	"context"
	"errors"
)

// Errors surfaced by advisors.
var (
	// ErrTimeout is returned when the collaborator does not answer within the
	// caller's deadline.
	ErrTimeout = errors.New("gap advice timed out")
	// ErrUnavailable is returned when the circuit to the collaborator is open.
	ErrUnavailable = errors.New("gap advice unavailable")
)

// BridgeSuggestion is one proposed edge between existing nodes. Suggestions
// naming unknown ids are discarded by the caller, never trusted.
type BridgeSuggestion struct {
	Source    string `json:"source"`
	Target    string `json:"target"`
	Label     string `json:"label"`
	Rationale string `json:"rationale,omitempty"`
}

// Advice is the collaborator's full answer.
type Advice struct {
	Bridges           []BridgeSuggestion `json:"bridges"`
	ResearchQuestions []string           `json:"research_questions,omitempty"`
}

// Advisor proposes bridging edges for a rendered graph.
type Advisor interface {
	// SuggestBridges analyzes the rendered graph and returns bridging advice.
	// Implementations must respect ctx cancellation and deadlines.
	SuggestBridges(ctx context.Context, rendered string) (*Advice, error)
}
