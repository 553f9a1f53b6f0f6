package graph

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/soundprediction/strata/pkg/types"
)

// TargetEta is the edge-density target the topology validator checks against.
// The store exposes it so remediation and validation agree on the goal.
const TargetEta = 4.0

// Store is the canonical graph. All mutation is serialized through it; reads
// return clones or value copies.
type Store struct {
	mu    sync.RWMutex
	nodes map[string]*types.Node
	edges map[types.EdgeKey]types.Edge

	// adjacency indices, maintained on every edge mutation
	out map[string]map[types.EdgeKey]struct{}
	in  map[string]map[types.EdgeKey]struct{}

	maxLevel types.Level
	logger   *slog.Logger
}

// NewStore creates an empty store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		nodes:  make(map[string]*types.Node),
		edges:  make(map[types.EdgeKey]types.Edge),
		out:    make(map[string]map[types.EdgeKey]struct{}),
		in:     make(map[string]map[types.EdgeKey]struct{}),
		logger: logger,
	}
}

// AddNode inserts a node. It fails with ErrLevelExceeded when the level lies
// outside the hierarchy, with ErrDanglingReference when a content id is not
// present, and with ErrLevelViolation when a content id is not strictly one
// level below. The store is unchanged on failure.
func (s *Store) AddNode(node *types.Node) error {
	if err := node.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id := range node.Content {
		child, ok := s.nodes[id]
		if !ok {
			return fmt.Errorf("node %s content %q: %w", node.ID, id, types.ErrDanglingReference)
		}
		if child.Level >= node.Level {
			return fmt.Errorf("node %s (L%d) contains %q (L%d): %w",
				node.ID, node.Level, id, child.Level, types.ErrLevelViolation)
		}
	}

	s.nodes[node.ID] = node.Clone()
	if node.Level > s.maxLevel {
		s.maxLevel = node.Level
	}
	return nil
}

// AddEdge inserts an edge, overwriting any edge with the same
// (source, target, label) key. Both endpoints must exist.
func (s *Store) AddEdge(edge types.Edge) error {
	if err := edge.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[edge.Source]; !ok {
		return fmt.Errorf("edge source %q: %w", edge.Source, types.ErrDanglingReference)
	}
	if _, ok := s.nodes[edge.Target]; !ok {
		return fmt.Errorf("edge target %q: %w", edge.Target, types.ErrDanglingReference)
	}

	s.insertEdgeLocked(edge)
	return nil
}

// insertEdgeLocked stores the edge and maintains the adjacency indices.
// Caller must hold the write lock.
func (s *Store) insertEdgeLocked(edge types.Edge) {
	key := edge.Key()
	s.edges[key] = edge
	if s.out[edge.Source] == nil {
		s.out[edge.Source] = make(map[types.EdgeKey]struct{})
	}
	s.out[edge.Source][key] = struct{}{}
	if s.in[edge.Target] == nil {
		s.in[edge.Target] = make(map[types.EdgeKey]struct{})
	}
	s.in[edge.Target][key] = struct{}{}
}

// removeEdgeLocked deletes the edge and its index entries.
// Caller must hold the write lock.
func (s *Store) removeEdgeLocked(key types.EdgeKey) {
	delete(s.edges, key)
	delete(s.out[key.Source], key)
	delete(s.in[key.Target], key)
}

// ReplaceAttributes swaps a node's attribute map. The node keeps its identity
// and containment; only the owning store may do this.
func (s *Store) ReplaceAttributes(id string, attrs map[string]types.PlithoAttribute) error {
	for name, attr := range attrs {
		if err := attr.Validate(); err != nil {
			return fmt.Errorf("attribute %q: %w", name, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node, ok := s.nodes[id]
	if !ok {
		return fmt.Errorf("node %q: %w", id, types.ErrDanglingReference)
	}
	node.Attributes = make(map[string]types.PlithoAttribute, len(attrs))
	for name, attr := range attrs {
		node.Attributes[name] = attr
	}
	return nil
}

// Merge redirects every edge incident to remove onto keep, dropping any
// resulting self-loop, rewrites containment references, and deletes remove.
// Duplicate (source, target, label) keys produced by redirection collapse by
// the usual overwrite rule. Content sets left with fewer than two members by
// the rewrite are dissolved, keeping every stored node valid.
func (s *Store) Merge(keep, remove string) error {
	if keep == remove {
		return fmt.Errorf("merge %q into itself: %w", keep, types.ErrDanglingReference)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.nodes[keep]; !ok {
		return fmt.Errorf("merge keep %q: %w", keep, types.ErrDanglingReference)
	}
	if _, ok := s.nodes[remove]; !ok {
		return fmt.Errorf("merge remove %q: %w", remove, types.ErrDanglingReference)
	}

	var incident []types.EdgeKey
	for key := range s.out[remove] {
		incident = append(incident, key)
	}
	for key := range s.in[remove] {
		if key.Source != remove { // self-loops already collected above
			incident = append(incident, key)
		}
	}

	for _, key := range incident {
		edge := s.edges[key]
		s.removeEdgeLocked(key)
		if edge.Source == remove {
			edge.Source = keep
		}
		if edge.Target == remove {
			edge.Target = keep
		}
		if edge.IsSelfLoop() {
			continue
		}
		s.insertEdgeLocked(edge)
	}

	for _, node := range s.nodes {
		if _, ok := node.Content[remove]; !ok {
			continue
		}
		delete(node.Content, remove)
		if node.ID != keep {
			node.Content[keep] = struct{}{}
		}
		// A set reduced below two members is no longer a grouping; dissolve
		// it rather than hold a singleton the data model forbids.
		if len(node.Content) < 2 {
			node.Content = nil
			s.logger.Debug("dissolved content set", "node", node.ID, "merged", remove)
		}
	}

	delete(s.nodes, remove)
	delete(s.out, remove)
	delete(s.in, remove)

	s.logger.Debug("merged nodes", "keep", keep, "remove", remove)
	return nil
}

// GetNode returns a clone of the node, or false if absent.
func (s *Store) GetNode(id string) (*types.Node, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	node, ok := s.nodes[id]
	if !ok {
		return nil, false
	}
	return node.Clone(), true
}

// HasNode reports whether the id is present.
func (s *Store) HasNode(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nodes[id]
	return ok
}

// NodeCount returns |V|.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// EdgeCount returns |E|.
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}

// Eta returns the edge density |E| / |V|, the primary connectivity metric.
// An empty graph has density 0.
func (s *Store) Eta() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.nodes) == 0 {
		return 0
	}
	return float64(len(s.edges)) / float64(len(s.nodes))
}

// Degree returns the total degree (in + out) of the node.
func (s *Store) Degree(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degreeLocked(id)
}

func (s *Store) degreeLocked(id string) int {
	return len(s.out[id]) + len(s.in[id])
}

// IsolatedNodes returns the ids of all zero-degree nodes, sorted.
func (s *Store) IsolatedNodes() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var isolated []string
	for id := range s.nodes {
		if s.degreeLocked(id) == 0 {
			isolated = append(isolated, id)
		}
	}
	sort.Strings(isolated)
	return isolated
}

// NodesAtLevel returns clones of all nodes at level k, sorted by id.
func (s *Store) NodesAtLevel(k types.Level) []*types.Node {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*types.Node
	for _, node := range s.nodes {
		if node.Level == k {
			out = append(out, node.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// NodeIDs returns all node ids, sorted.
func (s *Store) NodeIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Edges returns a copy of all edges in deterministic key order.
func (s *Store) Edges() []types.Edge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Edge, 0, len(s.edges))
	for _, edge := range s.edges {
		out = append(out, edge)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Source != b.Source {
			return a.Source < b.Source
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		return a.Label < b.Label
	})
	return out
}

// Neighbors returns the ids adjacent to id (either direction), sorted.
func (s *Store) Neighbors(id string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	for key := range s.out[id] {
		seen[key.Target] = struct{}{}
	}
	for key := range s.in[id] {
		seen[key.Source] = struct{}{}
	}
	delete(seen, id)

	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// MaxLevel returns the highest level ever inserted. It is a watermark: merges
// do not lower it.
func (s *Store) MaxLevel() types.Level {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.maxLevel
}

// HasCrossLevelEdge reports whether the node has an edge to or from a node at
// a strictly lower level, one of the two accepted groundings.
func (s *Store) HasCrossLevelEdge(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	node, ok := s.nodes[id]
	if !ok {
		return false
	}
	for key := range s.out[id] {
		if other, ok := s.nodes[key.Target]; ok && other.Level < node.Level {
			return true
		}
	}
	for key := range s.in[id] {
		if other, ok := s.nodes[key.Source]; ok && other.Level < node.Level {
			return true
		}
	}
	return false
}

// Snapshot returns an independent deep copy of the store. Query-time
// resolution and parallel validation work on snapshots so the canonical graph
// is never touched.
func (s *Store) Snapshot() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := NewStore(s.logger)
	snap.maxLevel = s.maxLevel
	for id, node := range s.nodes {
		snap.nodes[id] = node.Clone()
	}
	for _, edge := range s.edges {
		snap.insertEdgeLocked(edge)
	}
	return snap
}

// RemoveEdge deletes the edge with the given key. Used by query-time views
// when conditional edges deactivate; the canonical store itself only removes
// edges through Merge.
func (s *Store) RemoveEdge(key types.EdgeKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.edges[key]; !ok {
		return false
	}
	s.removeEdgeLocked(key)
	return true
}
