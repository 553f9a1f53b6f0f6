// Package correlation maintains the sparse symmetric matrix of pairwise
// update correlation between graph nodes. The matrix holds node ids only,
// never structure: it is a side index over the canonical graph, used to
// decide which nodes must be re-examined when one node's uncertainty changes.
package correlation

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Defaults for the two sparsity thresholds.
const (
	// DefaultStorageThreshold is the minimum |value| persisted at all.
	DefaultStorageThreshold = 0.5
	// DefaultPropagationThreshold is the stricter minimum |value| for a pair
	// to force re-examination on update.
	DefaultPropagationThreshold = 0.7
)

// ErrOutOfRange is returned for correlation values outside [-1,1].
var ErrOutOfRange = errors.New("correlation value out of range [-1,1]")

// pairKey is an unordered id pair, normalized so A < B.
type pairKey struct {
	A, B string
}

func keyFor(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{A: a, B: b}
}

// Target is a correlated node above the propagation threshold.
type Target struct {
	NodeID string  `json:"node_id"`
	Value  float64 `json:"value"`
}

// Matrix is a sparse symmetric correlation store. Values below the storage
// threshold are never persisted, so Get is total and returns 0.0 for any
// unknown pair, registered or not.
type Matrix struct {
	mu                   sync.RWMutex
	entries              map[pairKey]float64
	byNode               map[string]map[string]struct{}
	storageThreshold     float64
	propagationThreshold float64
}

// NewMatrix creates a matrix with the default thresholds.
func NewMatrix() *Matrix {
	return NewMatrixWithThresholds(DefaultStorageThreshold, DefaultPropagationThreshold)
}

// NewMatrixWithThresholds creates a matrix with explicit storage and
// propagation thresholds.
func NewMatrixWithThresholds(storage, propagation float64) *Matrix {
	return &Matrix{
		entries:              make(map[pairKey]float64),
		byNode:               make(map[string]map[string]struct{}),
		storageThreshold:     storage,
		propagationThreshold: propagation,
	}
}

// Set stores the correlation between a and b symmetrically. Values outside
// [-1,1] fail with ErrOutOfRange; values below the storage threshold are
// dropped (and evict any previously stored value for the pair). Self pairs
// are ignored.
func (m *Matrix) Set(a, b string, value float64) error {
	if value < -1 || value > 1 {
		return fmt.Errorf("correlation %s~%s = %v: %w", a, b, value, ErrOutOfRange)
	}
	if a == b {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := keyFor(a, b)
	if abs(value) < m.storageThreshold {
		if _, had := m.entries[key]; had {
			delete(m.entries, key)
			delete(m.byNode[key.A], key.B)
			delete(m.byNode[key.B], key.A)
		}
		return nil
	}

	m.entries[key] = value
	if m.byNode[key.A] == nil {
		m.byNode[key.A] = make(map[string]struct{})
	}
	m.byNode[key.A][key.B] = struct{}{}
	if m.byNode[key.B] == nil {
		m.byNode[key.B] = make(map[string]struct{})
	}
	m.byNode[key.B][key.A] = struct{}{}
	return nil
}

// Get returns the stored correlation for the pair, or 0.0 when none is
// persisted. Get never fails.
func (m *Matrix) Get(a, b string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[keyFor(a, b)]
}

// PropagationTargets returns every node correlated with id above the
// propagation threshold, sorted by id for deterministic iteration.
func (m *Matrix) PropagationTargets(id string) []Target {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Target
	for other := range m.byNode[id] {
		value := m.entries[keyFor(id, other)]
		if abs(value) >= m.propagationThreshold {
			out = append(out, Target{NodeID: other, Value: value})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NodeID < out[j].NodeID })
	return out
}

// Remove drops every entry involving id. Called when a node is merged away.
func (m *Matrix) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for other := range m.byNode[id] {
		delete(m.entries, keyFor(id, other))
		delete(m.byNode[other], id)
	}
	delete(m.byNode, id)
}

// Len returns the number of stored pairs.
func (m *Matrix) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
