package graph

import (
	"errors"
	"strings"
	"testing"

	"github.com/soundprediction/strata/pkg/types"
)

func newTestStore(t *testing.T, ids ...string) *Store {
	t.Helper()
	s := NewStore(nil)
	for _, id := range ids {
		if err := s.AddNode(types.NewNode(id, types.LevelEntity)); err != nil {
			t.Fatalf("AddNode(%s) failed: %v", id, err)
		}
	}
	return s
}

func TestAddNodeLevelRules(t *testing.T) {
	s := newTestStore(t, "heart", "aorta")

	t.Run("rejects level above paradigm", func(t *testing.T) {
		err := s.AddNode(types.NewNode("beyond", types.Level(4)))
		if !errors.Is(err, types.ErrLevelExceeded) {
			t.Errorf("AddNode() error = %v, want ErrLevelExceeded", err)
		}
	})

	t.Run("rejects same-level containment", func(t *testing.T) {
		err := s.AddNode(types.NewNode("pair", types.LevelEntity, "heart", "aorta"))
		if !errors.Is(err, types.ErrLevelViolation) {
			t.Errorf("AddNode() error = %v, want ErrLevelViolation", err)
		}
		if s.HasNode("pair") {
			t.Error("rejected node was partially inserted")
		}
	})

	t.Run("rejects dangling containment", func(t *testing.T) {
		err := s.AddNode(types.NewNode("ghost_group", types.LevelGrouping, "heart", "phantom"))
		if !errors.Is(err, types.ErrDanglingReference) {
			t.Errorf("AddNode() error = %v, want ErrDanglingReference", err)
		}
	})

	t.Run("accepts strictly lower containment", func(t *testing.T) {
		if err := s.AddNode(types.NewNode("circulation", types.LevelGrouping, "heart", "aorta")); err != nil {
			t.Fatalf("AddNode() failed: %v", err)
		}
		if got := s.MaxLevel(); got != types.LevelGrouping {
			t.Errorf("MaxLevel() = %v, want grouping", got)
		}
	})
}

func TestAddEdge(t *testing.T) {
	s := newTestStore(t, "a", "b")

	if err := s.AddEdge(types.NewEdge("a", "b", "supplies")); err != nil {
		t.Fatalf("AddEdge() failed: %v", err)
	}

	err := s.AddEdge(types.NewEdge("a", "missing", "supplies"))
	if !errors.Is(err, types.ErrDanglingReference) {
		t.Errorf("AddEdge() error = %v, want ErrDanglingReference", err)
	}

	// duplicate key overwrites, not duplicates
	e := types.NewEdge("a", "b", "supplies")
	e.Weight = 0.25
	if err := s.AddEdge(e); err != nil {
		t.Fatalf("AddEdge() overwrite failed: %v", err)
	}
	if s.EdgeCount() != 1 {
		t.Errorf("EdgeCount() = %d after overwrite, want 1", s.EdgeCount())
	}
	if got := s.Edges()[0].Weight; got != 0.25 {
		t.Errorf("overwrite kept weight %v, want 0.25", got)
	}
}

func TestEtaAndIsolation(t *testing.T) {
	s := newTestStore(t, "a", "b", "c", "d", "e")
	mustEdge(t, s, "a", "b", "r")
	mustEdge(t, s, "b", "c", "r")

	if got := s.Eta(); got != 0.4 {
		t.Errorf("Eta() = %v, want 0.4", got)
	}
	isolated := s.IsolatedNodes()
	if len(isolated) != 2 || isolated[0] != "d" || isolated[1] != "e" {
		t.Errorf("IsolatedNodes() = %v, want [d e]", isolated)
	}
}

func mustEdge(t *testing.T, s *Store, src, tgt, label string) {
	t.Helper()
	if err := s.AddEdge(types.NewEdge(src, tgt, label)); err != nil {
		t.Fatalf("AddEdge(%s->%s) failed: %v", src, tgt, err)
	}
}

func TestMerge(t *testing.T) {
	s := newTestStore(t, "x", "y", "dup1", "dup2")
	mustEdge(t, s, "dup1", "x", "feeds")
	mustEdge(t, s, "dup1", "y", "feeds")
	mustEdge(t, s, "dup2", "x", "feeds")
	mustEdge(t, s, "dup2", "y", "feeds")
	mustEdge(t, s, "dup2", "dup1", "mirrors")

	if err := s.Merge("dup1", "dup2"); err != nil {
		t.Fatalf("Merge() failed: %v", err)
	}

	if s.HasNode("dup2") {
		t.Error("merged node still present")
	}
	for _, edge := range s.Edges() {
		if edge.Source == "dup2" || edge.Target == "dup2" {
			t.Errorf("edge %v still references merged node", edge)
		}
	}
	// dup2's two parallel edges collapse onto dup1's, the mirrors edge becomes
	// a self-loop and is dropped
	if got := s.EdgeCount(); got != 2 {
		t.Errorf("EdgeCount() = %d after merge, want 2", got)
	}
	if got := s.Degree("dup1"); got != 2 {
		t.Errorf("Degree(dup1) = %d after merge, want 2", got)
	}
}

func TestMergeRewritesContainment(t *testing.T) {
	s := newTestStore(t, "a", "b", "c")
	if err := s.AddNode(types.NewNode("group", types.LevelGrouping, "a", "b", "c")); err != nil {
		t.Fatalf("AddNode(group) failed: %v", err)
	}

	if err := s.Merge("a", "b"); err != nil {
		t.Fatalf("Merge() failed: %v", err)
	}

	group, _ := s.GetNode("group")
	if _, stale := group.Content["b"]; stale {
		t.Error("containment still references merged node")
	}
	if _, ok := group.Content["a"]; !ok {
		t.Error("containment lost surviving node")
	}
}

func TestMergeDissolvesThinContainment(t *testing.T) {
	s := newTestStore(t, "a", "b")
	if err := s.AddNode(types.NewNode("pair", types.LevelGrouping, "a", "b")); err != nil {
		t.Fatalf("AddNode(pair) failed: %v", err)
	}

	if err := s.Merge("a", "b"); err != nil {
		t.Fatalf("Merge() failed: %v", err)
	}

	pair, _ := s.GetNode("pair")
	if len(pair.Content) != 0 {
		t.Errorf("Content = %v after merge, want dissolved", pair.ContainedIDs())
	}
	if err := pair.Validate(); err != nil {
		t.Errorf("stored node no longer valid after merge: %v", err)
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	s := newTestStore(t, "a", "b")
	mustEdge(t, s, "a", "b", "r")

	snap := s.Snapshot()
	mustEdge(t, s, "b", "a", "r")

	if snap.EdgeCount() != 1 {
		t.Errorf("snapshot saw canonical mutation: EdgeCount() = %d", snap.EdgeCount())
	}
	if err := snap.AddNode(types.NewNode("c", types.LevelEntity)); err != nil {
		t.Fatalf("snapshot AddNode() failed: %v", err)
	}
	if s.HasNode("c") {
		t.Error("canonical store saw snapshot mutation")
	}
}

func TestRenderDeterministic(t *testing.T) {
	s := newTestStore(t, "b", "a")
	if err := s.AddNode(types.NewNode("pair", types.LevelGrouping, "a", "b")); err != nil {
		t.Fatalf("AddNode(pair) failed: %v", err)
	}
	mustEdge(t, s, "a", "b", "links")

	first := s.Render()
	second := s.Render()
	if first != second {
		t.Fatal("Render() is not deterministic")
	}
	for _, want := range []string{"a: L0 node", "pair: L1 node", "  contains: a, b", "a --[links]--> b"} {
		if !strings.Contains(first, want) {
			t.Errorf("Render() missing %q:\n%s", want, first)
		}
	}
}

func TestLevelView(t *testing.T) {
	s := newTestStore(t, "a", "b")
	if err := s.AddNode(types.NewNode("grp", types.LevelGrouping, "a", "b")); err != nil {
		t.Fatalf("AddNode(grp) failed: %v", err)
	}
	mustEdge(t, s, "a", "b", "r")
	mustEdge(t, s, "grp", "a", "abstracts")

	view := s.LevelView(types.LevelEntity)
	if len(view.Nodes) != 2 {
		t.Errorf("LevelView nodes = %d, want 2", len(view.Nodes))
	}
	if len(view.Edges) != 1 {
		t.Errorf("LevelView edges = %d, want 1 (cross-level excluded)", len(view.Edges))
	}
}
