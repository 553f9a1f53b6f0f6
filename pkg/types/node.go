package types

import (
	"errors"
	"fmt"
	"sort"
)

// Validation errors
var (
	ErrEmptyContent      = errors.New("content set cannot be empty when present")
	ErrSingletonContent  = errors.New("content set cannot be a trivial singleton")
	ErrLevelExceeded     = errors.New("level exceeds maximum hierarchy depth")
	ErrLevelViolation    = errors.New("content must reference strictly lower-level nodes")
	ErrDanglingReference = errors.New("reference to nonexistent node")
)

// Level is a node's rank in the hierarchy. Higher levels denote coarser
// abstractions over sets of lower-level nodes.
type Level int

const (
	// LevelEntity holds concrete entities extracted from source material.
	LevelEntity Level = iota
	// LevelGrouping holds groupings of entities.
	LevelGrouping
	// LevelSchema holds schemas over groupings.
	LevelSchema
	// LevelParadigm holds paradigms, the coarsest abstraction.
	LevelParadigm

	// MaxLevel is the deepest hierarchy rank the engine accepts.
	MaxLevel = LevelParadigm
)

// String returns the level's name.
func (l Level) String() string {
	switch l {
	case LevelEntity:
		return "entity"
	case LevelGrouping:
		return "grouping"
	case LevelSchema:
		return "schema"
	case LevelParadigm:
		return "paradigm"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Valid reports whether the level lies within the supported hierarchy.
func (l Level) Valid() bool {
	return l >= LevelEntity && l <= MaxLevel
}

// Node is a vertex in the n-level super-hypergraph. Identity is immutable;
// attributes and containment are replaced only by the owning graph store.
type Node struct {
	ID    string `json:"id"`
	Level Level  `json:"level"`

	// Content is the set of node ids this node abstracts over, each strictly
	// one level below. Empty means the node is not a container.
	Content map[string]struct{} `json:"content,omitempty"`

	// Attributes maps attribute names to their uncertainty tuples.
	Attributes map[string]PlithoAttribute `json:"attributes,omitempty"`
}

// NewNode creates a node with the given identity and level. Contained ids, if
// any, are deduplicated into the content set.
func NewNode(id string, level Level, contains ...string) *Node {
	n := &Node{ID: id, Level: level}
	if len(contains) > 0 {
		n.Content = make(map[string]struct{}, len(contains))
		for _, c := range contains {
			n.Content[c] = struct{}{}
		}
	}
	return n
}

// Validate checks the node's local invariants: non-empty id, a level inside
// the hierarchy, and a content set that is either absent or a non-trivial set.
// Cross-node invariants (level monotonicity, dangling ids) are enforced by the
// graph store at insertion time.
func (n *Node) Validate() error {
	if n.ID == "" {
		return ErrEmptyID
	}
	if !n.Level.Valid() {
		return fmt.Errorf("node %s at %d: %w", n.ID, n.Level, ErrLevelExceeded)
	}
	if n.Content != nil {
		if len(n.Content) == 0 {
			return fmt.Errorf("node %s: %w", n.ID, ErrEmptyContent)
		}
		if len(n.Content) == 1 {
			return fmt.Errorf("node %s: %w", n.ID, ErrSingletonContent)
		}
	}
	for name, attr := range n.Attributes {
		if err := attr.Validate(); err != nil {
			return fmt.Errorf("node %s attribute %q: %w", n.ID, name, err)
		}
	}
	return nil
}

// ContainedIDs returns the content set as a sorted slice, for deterministic
// rendering and iteration.
func (n *Node) ContainedIDs() []string {
	if len(n.Content) == 0 {
		return nil
	}
	ids := make([]string, 0, len(n.Content))
	for id := range n.Content {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetAttribute replaces the named attribute. The attribute must already be
// valid; invalid tuples never enter a node.
func (n *Node) SetAttribute(name string, attr PlithoAttribute) error {
	if err := attr.Validate(); err != nil {
		return fmt.Errorf("attribute %q: %w", name, err)
	}
	if n.Attributes == nil {
		n.Attributes = make(map[string]PlithoAttribute)
	}
	n.Attributes[name] = attr
	return nil
}

// Clone returns a deep copy of the node. Query-time resolution operates on
// clones so the canonical graph is never aliased.
func (n *Node) Clone() *Node {
	out := &Node{ID: n.ID, Level: n.Level}
	if n.Content != nil {
		out.Content = make(map[string]struct{}, len(n.Content))
		for id := range n.Content {
			out.Content[id] = struct{}{}
		}
	}
	if n.Attributes != nil {
		out.Attributes = make(map[string]PlithoAttribute, len(n.Attributes))
		for name, attr := range n.Attributes {
			cp := attr
			cp.Sources = append([]string(nil), attr.Sources...)
			out.Attributes[name] = cp
		}
	}
	return out
}
