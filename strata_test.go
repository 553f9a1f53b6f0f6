package strata_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/strata"
	"github.com/soundprediction/strata/pkg/advice"
	"github.com/soundprediction/strata/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, advisor advice.Advisor) *strata.Client {
	t.Helper()
	client, err := strata.NewClient(advisor, nil, nil, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

// fillDense wires the ids into a complete digraph so eta, phi, and kappa are
// all within bounds.
func fillDense(t *testing.T, c *strata.Client, ids ...string) {
	t.Helper()
	for _, id := range ids {
		require.NoError(t, c.Store().AddNode(types.NewNode(id, types.LevelEntity)))
	}
	for _, src := range ids {
		for _, dst := range ids {
			if src == dst {
				continue
			}
			require.NoError(t, c.Store().AddEdge(types.NewEdge(src, dst, "rel")))
		}
	}
}

func writeOp() *types.Operation {
	return &types.Operation{
		Type:      types.OpWrite,
		Agent:     "ingestor",
		Rationale: "load extracted concepts",
		Logged:    true,
		Positions: []types.HohfeldPosition{types.PositionPower},
	}
}

func TestIngestBatch(t *testing.T) {
	c := newTestClient(t, nil)

	attr, err := types.NewAttribute(0.8, 0.7, 0.9, "textbook")
	require.NoError(t, err)

	batch := strata.Batch{
		Nodes: []strata.NodeRecord{
			{Node: types.NewNode("preload", types.LevelEntity), Attributes: map[string]types.PlithoAttribute{"definition": attr}},
			{Node: types.NewNode("afterload", types.LevelEntity)},
		},
		Edges: []types.Edge{types.NewEdge("preload", "afterload", "opposes")},
	}

	result, err := c.Ingest(context.Background(), batch, writeOp())
	require.NoError(t, err)
	assert.Equal(t, 2, result.NodesAdded)
	assert.Equal(t, 1, result.EdgesAdded)

	node, err := c.GetNode("preload")
	require.NoError(t, err)
	assert.InDelta(t, 0.8, node.Attributes["definition"].Confidence, 1e-9)

	// A two node graph is far below the density target; the post-batch
	// validation reports it without failing the ingest.
	assert.False(t, result.Validation.Valid)
}

func TestIngestGovernanceGate(t *testing.T) {
	c := newTestClient(t, nil)

	op := writeOp()
	op.Positions = nil

	batch := strata.Batch{Nodes: []strata.NodeRecord{{Node: types.NewNode("x", types.LevelEntity)}}}
	_, err := c.Ingest(context.Background(), batch, op)
	require.ErrorIs(t, err, strata.ErrOperationBlocked)
	assert.False(t, c.Store().HasNode("x"))
}

func TestIngestUnknowableBlocked(t *testing.T) {
	c := newTestClient(t, nil)

	op := writeOp()
	op.Logged = false

	batch := strata.Batch{Nodes: []strata.NodeRecord{{Node: types.NewNode("x", types.LevelEntity)}}}
	_, err := c.Ingest(context.Background(), batch, op)
	require.ErrorIs(t, err, strata.ErrOperationBlocked)
}

func TestIngestAbortsAtBadRecord(t *testing.T) {
	c := newTestClient(t, nil)

	batch := strata.Batch{
		Nodes: []strata.NodeRecord{
			{Node: types.NewNode("good", types.LevelEntity)},
			{Node: types.NewNode("", types.LevelEntity)},
			{Node: types.NewNode("never", types.LevelEntity)},
		},
	}

	result, err := c.Ingest(context.Background(), batch, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "node record 1")
	assert.Equal(t, 1, result.NodesAdded)
	assert.True(t, c.Store().HasNode("good"))
	assert.False(t, c.Store().HasNode("never"))
}

func TestRefineAlreadyStable(t *testing.T) {
	c := newTestClient(t, nil)
	fillDense(t, c, "a", "b", "c", "d", "e")
	before := c.Store().EdgeCount()

	outcome, err := c.Refine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, strata.StateStable, outcome.State)
	assert.Equal(t, 1, outcome.Cycles)
	assert.Zero(t, outcome.Refinements)
	assert.Empty(t, outcome.Actions)
	assert.Equal(t, before, c.Store().EdgeCount())
}

func TestRefineExhaustsOnUnreachableTarget(t *testing.T) {
	// Two nodes can never reach the density target. The first cycle bridges
	// them; the second finds no remaining action and must halt instead of
	// oscillating.
	c := newTestClient(t, nil)
	require.NoError(t, c.Store().AddNode(types.NewNode("a", types.LevelEntity)))
	require.NoError(t, c.Store().AddNode(types.NewNode("b", types.LevelEntity)))

	outcome, err := c.Refine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, strata.StateExhausted, outcome.State)
	assert.Equal(t, 1, outcome.Refinements)
	assert.Equal(t, 1, c.Store().EdgeCount())

	last := outcome.Actions[len(outcome.Actions)-1]
	assert.False(t, last.Mutated)
	assert.False(t, outcome.Final.Valid)
}

func TestRefineBridgesSparseGraph(t *testing.T) {
	c := newTestClient(t, nil)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, c.Store().AddNode(types.NewNode(id, types.LevelEntity)))
	}
	require.NoError(t, c.Store().AddEdge(types.NewEdge("a", "b", "rel")))
	require.NoError(t, c.Store().AddEdge(types.NewEdge("b", "c", "rel")))

	outcome, err := c.Refine(context.Background())
	require.NoError(t, err)

	// Five nodes admit ten connected pairs, so eta tops out at 2.0 and the
	// run ends exhausted rather than stable.
	assert.Equal(t, strata.StateExhausted, outcome.State)
	assert.Equal(t, 10, c.Store().EdgeCount())
	assert.InDelta(t, 2.0, c.Store().Eta(), 1e-9)
	assert.Empty(t, c.Store().IsolatedNodes())

	for _, action := range outcome.Actions {
		assert.Equal(t, strata.ActionBridgeGaps, action.Action)
	}
	for _, edge := range c.Store().Edges() {
		assert.True(t, c.Store().HasNode(edge.Source))
		assert.True(t, c.Store().HasNode(edge.Target))
	}
}

func TestRefineStopsBridgingAtDensityTarget(t *testing.T) {
	c := newTestClient(t, nil)
	ids := []string{"a", "b", "c", "d", "e", "f"}
	for _, id := range ids {
		require.NoError(t, c.Store().AddNode(types.NewNode(id, types.LevelEntity)))
	}
	// Connect all but four pairs, leaving the graph two edges short of the
	// density target.
	skip := map[string]bool{"a-b": true, "a-c": true, "c-d": true, "e-f": true}
	for i, src := range ids {
		for _, dst := range ids[i+1:] {
			if skip[src+"-"+dst] {
				continue
			}
			require.NoError(t, c.Store().AddEdge(types.NewEdge(src, dst, "rel")))
			require.NoError(t, c.Store().AddEdge(types.NewEdge(dst, src, "rel")))
		}
	}
	require.Equal(t, 22, c.Store().EdgeCount())

	outcome, err := c.Refine(context.Background())
	require.NoError(t, err)

	// Two bridges reach the target; the rest of the per-cycle budget stays
	// unspent even though unconnected pairs remain.
	assert.Equal(t, strata.StateStable, outcome.State)
	assert.Equal(t, 1, outcome.Refinements)
	assert.Equal(t, 24, c.Store().EdgeCount())
	assert.InDelta(t, 4.0, c.Store().Eta(), 1e-9)
}

type cannedAdvisor struct {
	advice advice.Advice
	calls  int
}

func (a *cannedAdvisor) SuggestBridges(ctx context.Context, rendered string) (*advice.Advice, error) {
	a.calls++
	return &a.advice, nil
}

func TestRefineUsesAdvisorAndDiscardsUnknownIDs(t *testing.T) {
	advisor := &cannedAdvisor{advice: advice.Advice{
		Bridges: []advice.BridgeSuggestion{
			{Source: "ghost", Target: "a", Label: "haunts"},
			{Source: "a", Target: "b", Label: "relates"},
		},
	}}

	c := newTestClient(t, advisor)
	require.NoError(t, c.Store().AddNode(types.NewNode("a", types.LevelEntity)))
	require.NoError(t, c.Store().AddNode(types.NewNode("b", types.LevelEntity)))

	outcome, err := c.Refine(context.Background())
	require.NoError(t, err)
	assert.Equal(t, strata.StateExhausted, outcome.State)
	assert.Positive(t, advisor.calls)
	assert.False(t, c.Store().HasNode("ghost"))

	var found bool
	for _, edge := range c.Store().Edges() {
		if edge.Source == "a" && edge.Target == "b" && edge.Label == "relates" {
			found = true
			assert.InDelta(t, 0.5, edge.Weight, 1e-9)
		}
	}
	assert.True(t, found, "advised edge should have been applied")
}

func TestDecohereResolvesByDomain(t *testing.T) {
	c := newTestClient(t, nil)
	for _, id := range []string{"co", "heart", "pipe"} {
		require.NoError(t, c.Store().AddNode(types.NewNode(id, types.LevelEntity)))
	}
	require.NoError(t, c.Store().AddEdge(types.NewEdge("co", "heart", "affects")))

	polysemous := []strata.PolysemousNode{{
		NodeID: "co",
		Interpretations: []strata.Interpretation{
			{Meaning: "cardiac output", Domain: "hemodynamic", Confidence: 0.9},
			{Meaning: "volumetric flow rate", Domain: "fluid dynamics", Confidence: 0.6},
		},
	}}
	conditional := []strata.ConditionalEdge{{
		Edge: types.NewEdge("co", "pipe", "relates"),
		Activates: func(ctx *strata.QueryContext) bool {
			return ctx.Domain == "fluid dynamics"
		},
	}}

	res := c.Decohere("cardiac blood pressure under vascular perfusion", polysemous, conditional)
	assert.Equal(t, "hemodynamic", res.Context.Domain)
	assert.Equal(t, "cardiac output", res.Resolved["co"].Meaning)
	assert.Equal(t, 1, res.Graph.EdgeCount())

	res = c.Decohere("laminar flow viscosity in a pipe", polysemous, conditional)
	assert.Equal(t, "fluid dynamics", res.Context.Domain)
	assert.Equal(t, "volumetric flow rate", res.Resolved["co"].Meaning)
	assert.Equal(t, 2, res.Graph.EdgeCount())

	// The canonical graph never changes.
	assert.Equal(t, 1, c.Store().EdgeCount())
}

func TestDecohereDeterministic(t *testing.T) {
	c := newTestClient(t, nil)
	require.NoError(t, c.Store().AddNode(types.NewNode("co", types.LevelEntity)))

	polysemous := []strata.PolysemousNode{{
		NodeID: "co",
		Interpretations: []strata.Interpretation{
			{Meaning: "carbon monoxide", Domain: "chemistry", Confidence: 0.5},
			{Meaning: "cardiac output", Domain: "hemodynamic", Confidence: 0.9},
		},
	}}

	first := c.Decohere("svr and cardiac pressure", polysemous, nil)
	second := c.Decohere("svr and cardiac pressure", polysemous, nil)
	assert.Equal(t, first.Resolved, second.Resolved)
	assert.Equal(t, first.Context, second.Context)
}

func TestDecohereNoDomainFallsBackToOverlap(t *testing.T) {
	c := newTestClient(t, nil)
	require.NoError(t, c.Store().AddNode(types.NewNode("co", types.LevelEntity)))

	polysemous := []strata.PolysemousNode{{
		NodeID: "co",
		Interpretations: []strata.Interpretation{
			{Meaning: "carbon monoxide gas", Domain: "chemistry", Confidence: 0.5},
			{Meaning: "company abbreviation", Domain: "business", Confidence: 0.5},
		},
	}}

	res := c.Decohere("monoxide gas exposure", polysemous, nil)
	assert.Empty(t, res.Context.Domain)
	assert.Equal(t, "carbon monoxide gas", res.Resolved["co"].Meaning)
}

func TestExport(t *testing.T) {
	c := newTestClient(t, nil)
	attr, err := types.NewAttribute(0.9, 0.8, 0.95, "review")
	require.NoError(t, err)

	a := types.NewNode("a", types.LevelEntity)
	require.NoError(t, a.SetAttribute("definition", attr))
	require.NoError(t, c.Store().AddNode(a))
	require.NoError(t, c.Store().AddNode(types.NewNode("b", types.LevelEntity)))
	require.NoError(t, c.Store().AddNode(types.NewNode("g", types.LevelGrouping, "a", "b")))
	require.NoError(t, c.Store().AddEdge(types.NewEdge("a", "b", "rel")))

	require.NoError(t, c.Matrix().Set("a", "b", 0.8))
	require.NoError(t, c.Matrix().Set("b", "g", 0.6))

	records := c.Export()
	require.Len(t, records, 3)
	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, "b", records[1].ID)
	assert.Equal(t, "g", records[2].ID)

	assert.Equal(t, []strata.RelationRecord{{Label: "rel", Other: "b", Weight: 1.0}}, records[0].Outgoing)
	assert.Equal(t, []strata.CorrelateRecord{{NodeID: "b", Value: 0.8}}, records[0].Correlates)
	require.Len(t, records[0].Attributes, 1)
	assert.Equal(t, "definition", records[0].Attributes[0].Name)

	// 0.6 is stored but below the propagation threshold.
	assert.Empty(t, records[1].Correlates)
	assert.Equal(t, []string{"a", "b"}, records[2].Contains)
	assert.Equal(t, "grouping", records[2].LevelName)

	var buf bytes.Buffer
	require.NoError(t, c.ExportYAML(&buf))
	assert.Contains(t, buf.String(), "id: a")
	assert.Contains(t, buf.String(), "node_id: b")
}
