package graph

import (
	"fmt"
	"strings"

	"github.com/soundprediction/strata/pkg/types"
)

// View is a read-only level slice of the graph: the nodes at one level and
// the edges whose endpoints both lie at that level. Nodes are clones; a View
// never writes back.
type View struct {
	Level types.Level
	Nodes []*types.Node
	Edges []types.Edge
}

// LevelView projects the slice of the graph at level k.
func (s *Store) LevelView(k types.Level) *View {
	nodes := s.NodesAtLevel(k)
	at := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		at[n.ID] = struct{}{}
	}

	var edges []types.Edge
	for _, edge := range s.Edges() {
		if _, srcOK := at[edge.Source]; !srcOK {
			continue
		}
		if _, tgtOK := at[edge.Target]; !tgtOK {
			continue
		}
		edges = append(edges, edge)
	}

	return &View{Level: k, Nodes: nodes, Edges: edges}
}

// Render produces the deterministic text serialization consumed by the
// gap-advice collaborator: one line per node, one line per edge, both in
// sorted order.
func (s *Store) Render() string {
	var b strings.Builder
	for _, id := range s.NodeIDs() {
		node, _ := s.GetNode(id)
		fmt.Fprintf(&b, "%s: L%d node\n", node.ID, int(node.Level))
		if contained := node.ContainedIDs(); len(contained) > 0 {
			fmt.Fprintf(&b, "  contains: %s\n", strings.Join(contained, ", "))
		}
	}
	for _, edge := range s.Edges() {
		fmt.Fprintf(&b, "%s --[%s]--> %s\n", edge.Source, edge.Label, edge.Target)
	}
	return b.String()
}
