package types

// HohfeldPosition is a jural position an agent can hold with respect to the
// graph. Operation types each require a specific position (or combination)
// before governance lets them pass.
type HohfeldPosition string

const (
	// PositionPrivilege permits reading without a duty to abstain.
	PositionPrivilege HohfeldPosition = "privilege"
	// PositionPower permits changing jural relations, i.e. mutating the graph.
	PositionPower HohfeldPosition = "power"
	// PositionClaim entitles the holder to another's performance; required in
	// addition to power for destructive operations.
	PositionClaim HohfeldPosition = "claim"
	// PositionImmunity shields the holder from having their relations changed;
	// required for governance operations themselves.
	PositionImmunity HohfeldPosition = "immunity"
)

// OperationType classifies an operation for governance checking.
type OperationType string

const (
	// OpRead covers queries and exports.
	OpRead OperationType = "read"
	// OpWrite covers node/edge insertion and attribute replacement.
	OpWrite OperationType = "write"
	// OpDelete covers merges and removals.
	OpDelete OperationType = "delete"
	// OpGovern covers changes to governance policy itself.
	OpGovern OperationType = "govern"
)

// Operation describes an act against the graph for KROG governance checking.
// A nil Operation skips the governance pass entirely.
type Operation struct {
	Type  OperationType `json:"type"`
	Agent string        `json:"agent"`

	// Rationale is the human-readable reason the operation is being performed.
	// Knowability requires it to be non-empty.
	Rationale string `json:"rationale"`

	// Logged records whether the operation has been written to the audit log.
	Logged bool `json:"logged"`

	// Positions are the Hohfeld positions the acting agent holds.
	Positions []HohfeldPosition `json:"positions,omitempty"`
}

// Holds reports whether the agent holds the given position.
func (o *Operation) Holds(p HohfeldPosition) bool {
	for _, held := range o.Positions {
		if held == p {
			return true
		}
	}
	return false
}

// RequiredPositions returns the Hohfeld positions an operation type demands.
func (t OperationType) RequiredPositions() []HohfeldPosition {
	switch t {
	case OpRead:
		return []HohfeldPosition{PositionPrivilege}
	case OpWrite:
		return []HohfeldPosition{PositionPower}
	case OpDelete:
		return []HohfeldPosition{PositionPower, PositionClaim}
	case OpGovern:
		return []HohfeldPosition{PositionImmunity}
	default:
		return nil
	}
}
