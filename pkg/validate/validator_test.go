package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/strata/pkg/graph"
	"github.com/soundprediction/strata/pkg/types"
)

// denseStore builds a complete digraph on the given ids: eta = n-1, phi = 0,
// kappa = 1.
func denseStore(t *testing.T, ids ...string) *graph.Store {
	t.Helper()
	s := graph.NewStore(nil)
	for _, id := range ids {
		require.NoError(t, s.AddNode(types.NewNode(id, types.LevelEntity)))
	}
	for _, src := range ids {
		for _, tgt := range ids {
			if src == tgt {
				continue
			}
			require.NoError(t, s.AddEdge(types.NewEdge(src, tgt, "r")))
		}
	}
	return s
}

func TestValidateEmptyGraph(t *testing.T) {
	v := New()
	result := v.Validate(graph.NewStore(nil), nil)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Violations)
}

func TestValidateHealthyGraph(t *testing.T) {
	v := New()
	s := denseStore(t, "a", "b", "c", "d", "e")

	result := v.Validate(s, nil)
	assert.True(t, result.Valid)
	assert.Empty(t, result.Violations, "a dense flat graph should produce no findings")
}

func TestTopologyEtaMargins(t *testing.T) {
	v := New()

	t.Run("critically sparse", func(t *testing.T) {
		s := graph.NewStore(nil)
		for _, id := range []string{"a", "b", "c", "d", "e"} {
			require.NoError(t, s.AddNode(types.NewNode(id, types.LevelEntity)))
		}
		require.NoError(t, s.AddEdge(types.NewEdge("a", "b", "r")))
		require.NoError(t, s.AddEdge(types.NewEdge("b", "c", "r")))

		result := v.Validate(s, nil)
		assert.False(t, result.Valid)

		worst := result.WorstFirst()[0]
		assert.Equal(t, "eta", worst.Metric)
		assert.Equal(t, types.SeverityCritical, worst.Severity)
		assert.Equal(t, "bridge_gaps", worst.RemediationHint)
	})

	t.Run("below target but above critical margin", func(t *testing.T) {
		s := graph.NewStore(nil)
		ids := []string{"a", "b", "c"}
		for _, id := range ids {
			require.NoError(t, s.AddNode(types.NewNode(id, types.LevelEntity)))
		}
		// 6 edges over 3 nodes: eta = 2.0, above the 1.0 critical margin
		for _, src := range ids {
			for _, tgt := range ids {
				if src != tgt {
					require.NoError(t, s.AddEdge(types.NewEdge(src, tgt, "r")))
				}
			}
		}

		result := v.Validate(s, nil)
		assert.True(t, result.Valid, "MAJOR findings never invalidate")
		var etaViolation *types.Violation
		for i := range result.Violations {
			if result.Violations[i].Metric == "eta" {
				etaViolation = &result.Violations[i]
			}
		}
		require.NotNil(t, etaViolation)
		assert.Equal(t, types.SeverityMajor, etaViolation.Severity)
	})
}

func TestTopologyIsolation(t *testing.T) {
	v := New()
	s := denseStore(t, "a", "b", "c", "d", "e", "f", "g", "h")
	require.NoError(t, s.AddNode(types.NewNode("alone1", types.LevelEntity)))
	require.NoError(t, s.AddNode(types.NewNode("alone2", types.LevelEntity)))

	result := v.Validate(s, nil)
	found := false
	for _, violation := range result.Violations {
		if violation.Metric == "phi" {
			found = true
			assert.Equal(t, types.SeverityMajor, violation.Severity)
			assert.InDelta(t, 0.2, violation.Value, 1e-9)
		}
	}
	assert.True(t, found, "expected a phi violation at 2/10 isolated")
}

func TestTopologyClustering(t *testing.T) {
	v := New()
	// star graph: hub has degree 4 but no neighbor pair is connected
	s := graph.NewStore(nil)
	for _, id := range []string{"hub", "n1", "n2", "n3", "n4"} {
		require.NoError(t, s.AddNode(types.NewNode(id, types.LevelEntity)))
	}
	for _, leaf := range []string{"n1", "n2", "n3", "n4"} {
		require.NoError(t, s.AddEdge(types.NewEdge("hub", leaf, "r")))
	}

	result := v.Validate(s, nil)
	found := false
	for _, violation := range result.Violations {
		if violation.Metric == "kappa" {
			found = true
			assert.Equal(t, types.SeverityMinor, violation.Severity)
			assert.Equal(t, "expand", violation.RemediationHint)
		}
	}
	assert.True(t, found, "triangle-free graph should flag kappa")
}

func TestStructureGrounding(t *testing.T) {
	v := New()
	s := denseStore(t, "a", "b", "c", "d", "e")

	// grounded by containment
	require.NoError(t, s.AddNode(types.NewNode("contained_group", types.LevelGrouping, "a", "b")))
	// grounded by a cross-level edge
	require.NoError(t, s.AddNode(types.NewNode("edge_group", types.LevelGrouping)))
	require.NoError(t, s.AddEdge(types.NewEdge("edge_group", "c", "abstracts")))
	// no grounding at all
	require.NoError(t, s.AddNode(types.NewNode("floating_group", types.LevelGrouping)))

	result := v.Validate(s, nil)
	var ungrounded []string
	for _, violation := range result.Violations {
		if violation.Metric == "grounding" {
			ungrounded = append(ungrounded, violation.Message)
		}
	}
	require.Len(t, ungrounded, 1)
	assert.Contains(t, ungrounded[0], "floating_group")
}

func TestStructureGrowthBound(t *testing.T) {
	v := New()
	s := denseStore(t, "a", "b")
	// 2^1.5 ~ 2.83, so three groupings over two entities breach the bound
	require.NoError(t, s.AddNode(types.NewNode("g1", types.LevelGrouping, "a", "b")))
	require.NoError(t, s.AddNode(types.NewNode("g2", types.LevelGrouping, "a", "b")))
	require.NoError(t, s.AddNode(types.NewNode("g3", types.LevelGrouping, "a", "b")))

	result := v.Validate(s, nil)
	found := false
	for _, violation := range result.Violations {
		if violation.Metric == "growth_bound" {
			found = true
			assert.Equal(t, types.SeverityMinor, violation.Severity)
		}
	}
	assert.True(t, found, "expected a growth bound violation")
}

func TestUncertaintyCoherence(t *testing.T) {
	v := New()
	s := denseStore(t, "a", "b", "c", "d", "e")

	incoherent, err := types.NewAttribute(0.9, 0.5, 0.3)
	require.NoError(t, err)
	require.NoError(t, s.ReplaceAttributes("a", map[string]types.PlithoAttribute{
		"claim": incoherent,
	}))

	result := v.Validate(s, nil)
	found := false
	for _, violation := range result.Violations {
		if violation.Metric == "coherence" {
			found = true
			assert.Equal(t, types.SeverityMinor, violation.Severity)
			assert.Equal(t, types.UncertaintyViolation, violation.Type)
		}
	}
	assert.True(t, found, "confidence above source_quality+0.1 should be flagged")
	assert.True(t, result.Valid, "coherence findings are advisory")
}

func TestGovernanceKROG(t *testing.T) {
	v := New()
	s := denseStore(t, "a", "b", "c", "d", "e")

	t.Run("well-formed write passes", func(t *testing.T) {
		op := &types.Operation{
			Type:      types.OpWrite,
			Agent:     "ingestor",
			Rationale: "batch ingestion of extracted entities",
			Logged:    true,
			Positions: []types.HohfeldPosition{types.PositionPower},
		}
		result := v.Validate(s, op)
		assert.True(t, result.Valid)
	})

	t.Run("unknowable operation is critical", func(t *testing.T) {
		op := &types.Operation{
			Type:      types.OpWrite,
			Agent:     "ingestor",
			Logged:    false,
			Positions: []types.HohfeldPosition{types.PositionPower},
		}
		result := v.Validate(s, op)
		assert.False(t, result.Valid)
		assert.Equal(t, "knowable", result.WorstFirst()[0].Metric)
	})

	t.Run("delete requires power and claim", func(t *testing.T) {
		op := &types.Operation{
			Type:      types.OpDelete,
			Agent:     "curator",
			Rationale: "compress duplicates",
			Logged:    true,
			Positions: []types.HohfeldPosition{types.PositionPower},
		}
		result := v.Validate(s, op)
		assert.False(t, result.Valid)

		found := false
		for _, violation := range result.Violations {
			if violation.Metric == "rights" {
				found = true
				assert.Contains(t, violation.Message, "claim")
			}
		}
		assert.True(t, found)
	})

	t.Run("critical topology blocks governed operations", func(t *testing.T) {
		sparse := graph.NewStore(nil)
		require.NoError(t, sparse.AddNode(types.NewNode("x", types.LevelEntity)))
		require.NoError(t, sparse.AddNode(types.NewNode("y", types.LevelEntity)))

		op := &types.Operation{
			Type:      types.OpWrite,
			Agent:     "ingestor",
			Rationale: "write to broken graph",
			Logged:    true,
			Positions: []types.HohfeldPosition{types.PositionPower},
		}
		result := v.Validate(sparse, op)
		assert.False(t, result.Valid)

		found := false
		for _, violation := range result.Violations {
			if violation.Metric == "governance_bounds" {
				found = true
			}
		}
		assert.True(t, found, "governance should reuse topology criticals")
	})
}

func TestObligationsHook(t *testing.T) {
	hook := func(op *types.Operation) []types.Violation {
		return []types.Violation{{
			Type:     types.GovernanceViolation,
			Metric:   "obligations",
			Severity: types.SeverityCritical,
			Message:  "retention obligation unmet",
		}}
	}
	v := New(WithObligationsHook(hook))
	s := denseStore(t, "a", "b", "c", "d", "e")

	op := &types.Operation{
		Type:      types.OpRead,
		Agent:     "reader",
		Rationale: "export",
		Logged:    true,
		Positions: []types.HohfeldPosition{types.PositionPrivilege},
	}
	result := v.Validate(s, op)
	assert.False(t, result.Valid)
}
