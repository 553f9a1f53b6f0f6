package strata

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/soundprediction/strata/pkg/graph"
	"github.com/soundprediction/strata/pkg/types"
	"github.com/soundprediction/strata/pkg/validate"
)

// State is the refinement engine's phase for one graph instance.
type State int

const (
	// StateStable means no violations remain.
	StateStable State = iota
	// StateRefining means violations exist and an action is in flight.
	StateRefining
	// StateExhausted means the budget ran out before reaching stability.
	StateExhausted
)

// String returns the state's name.
func (s State) String() string {
	switch s {
	case StateStable:
		return "stable"
	case StateRefining:
		return "refining"
	default:
		return "exhausted"
	}
}

// RemediationAction is the closed set of repairs the engine can apply. The
// set is fixed; dispatch is a single exhaustive switch.
type RemediationAction int

const (
	// ActionBridgeGaps connects low-degree nodes to plausible targets.
	ActionBridgeGaps RemediationAction = iota
	// ActionCompress merges nodes with identical immediate neighborhoods.
	ActionCompress
	// ActionExpand abstracts a dense cluster into a meta-node one level up.
	ActionExpand
	// ActionRepair applies a violation-specific local fix.
	ActionRepair
)

// String returns the action's name.
func (a RemediationAction) String() string {
	switch a {
	case ActionBridgeGaps:
		return "bridge_gaps"
	case ActionCompress:
		return "compress"
	case ActionExpand:
		return "expand"
	default:
		return "repair"
	}
}

// AppliedAction records one remediation attempt for the outcome report.
type AppliedAction struct {
	Cycle   int               `json:"cycle"`
	Action  RemediationAction `json:"action"`
	Metric  string            `json:"metric"`
	Mutated bool              `json:"mutated"`
}

// RefineOutcome reports how a refinement run ended.
type RefineOutcome struct {
	State       State                  `json:"state"`
	Cycles      int                    `json:"cycles"`
	Refinements int                    `json:"refinements"`
	Actions     []AppliedAction        `json:"actions,omitempty"`
	Final       types.ValidationResult `json:"final"`
}

// Refine runs the autopoietic loop: validate, pick the most severe violation,
// apply its remediation action, repeat. The loop halts when the graph is
// stable, when MaxRefinements mutations have been applied, or when MaxCycles
// have elapsed without reaching stability. A graph that is already stable is
// returned untouched after the first validation.
func (c *Client) Refine(ctx context.Context) (*RefineOutcome, error) {
	outcome := &RefineOutcome{State: StateRefining}

	for cycle := 1; cycle <= c.config.MaxCycles; cycle++ {
		if err := ctx.Err(); err != nil {
			return outcome, err
		}
		outcome.Cycles = cycle

		result := c.validator.Validate(c.store, nil)
		if len(result.Violations) == 0 {
			outcome.State = StateStable
			outcome.Final = result
			c.logger.Info("refinement reached stability", "cycles", cycle, "refinements", outcome.Refinements)
			return outcome, nil
		}

		if outcome.Refinements >= c.config.MaxRefinements {
			outcome.State = StateExhausted
			outcome.Final = result
			c.logger.Warn("refinement budget exhausted", "refinements", outcome.Refinements)
			return outcome, nil
		}

		worst := result.WorstFirst()[0]
		action := actionFor(worst)
		mutated := c.apply(ctx, action, worst)
		outcome.Actions = append(outcome.Actions, AppliedAction{
			Cycle:   cycle,
			Action:  action,
			Metric:  worst.Metric,
			Mutated: mutated,
		})
		c.logger.Debug("remediation applied",
			"cycle", cycle, "action", action.String(), "metric", worst.Metric, "mutated", mutated)

		if mutated {
			outcome.Refinements++
			continue
		}

		// No safe action exists for the worst violation; repeating the cycle
		// would oscillate on the same finding.
		outcome.State = StateExhausted
		outcome.Final = result
		c.logger.Warn("no safe remediation available", "metric", worst.Metric, "action", action.String())
		return outcome, nil
	}

	outcome.State = StateExhausted
	outcome.Final = c.validator.Validate(c.store, nil)
	c.logger.Warn("refinement cycle budget elapsed", "cycles", outcome.Cycles)
	return outcome, nil
}

// actionFor is the fixed, total mapping from a violation to its remediation.
func actionFor(v types.Violation) RemediationAction {
	switch v.Metric {
	case "eta", "phi":
		return ActionBridgeGaps
	case "growth_bound", "redundancy":
		return ActionCompress
	case "kappa":
		return ActionExpand
	default:
		return ActionRepair
	}
}

// apply dispatches one remediation action. It returns true iff the graph was
// mutated.
func (c *Client) apply(ctx context.Context, action RemediationAction, worst types.Violation) bool {
	switch action {
	case ActionBridgeGaps:
		return c.bridgeGaps(ctx)
	case ActionCompress:
		return c.compress()
	case ActionExpand:
		return c.expand()
	default:
		return c.repair(worst)
	}
}

// bridgeGaps adds up to BridgeEdgesPerCycle edges from the lowest-degree
// nodes to the highest-degree plausible targets, stopping early once the
// density target is met and no node is isolated. When a gap advisor is
// configured it is consulted first; its suggestions are verified against the
// store and the remaining budget falls back to the local heuristic. Advisor
// failure or timeout never fails the action.
func (c *Client) bridgeGaps(ctx context.Context) bool {
	budget := c.config.BridgeEdgesPerCycle
	added := 0

	if c.advisor != nil {
		added += c.applyAdvice(ctx, budget)
	}

	for added < budget && !c.bridgingSatisfied() {
		edge, ok := c.nextBridge()
		if !ok {
			break
		}
		if err := c.store.AddEdge(edge); err != nil {
			c.logger.Warn("bridge edge rejected", "edge", edge.String(), "error", err)
			break
		}
		added++
	}
	return added > 0
}

// bridgingSatisfied reports whether both bridging triggers are resolved:
// density at or above target and no isolated node. Budget left beyond this
// point stays unspent.
func (c *Client) bridgingSatisfied() bool {
	return c.store.Eta() >= c.config.Thresholds.TargetEta && len(c.store.IsolatedNodes()) == 0
}

// applyAdvice renders the graph, asks the advisor, and applies verified
// suggestions. Returns how many edges were added.
func (c *Client) applyAdvice(ctx context.Context, budget int) int {
	adviceCtx, cancel := context.WithTimeout(ctx, c.config.AdviceTimeout)
	defer cancel()

	suggestions, err := c.advisor.SuggestBridges(adviceCtx, c.store.Render())
	if err != nil {
		c.logger.Warn("gap advice unavailable, using local heuristic", "error", err)
		return 0
	}

	added := 0
	for _, bridge := range suggestions.Bridges {
		if added >= budget || c.bridgingSatisfied() {
			break
		}
		if !c.store.HasNode(bridge.Source) || !c.store.HasNode(bridge.Target) || bridge.Source == bridge.Target {
			c.logger.Warn("discarding advice naming unknown or identical ids",
				"source", bridge.Source, "target", bridge.Target)
			continue
		}
		label := bridge.Label
		if label == "" {
			label = "bridge"
		}
		edge := types.NewEdge(bridge.Source, bridge.Target, label)
		edge.Weight = 0.5
		if err := c.store.AddEdge(edge); err == nil {
			added++
		}
	}
	if len(suggestions.ResearchQuestions) > 0 {
		c.logger.Info("gap advice research questions", "questions", suggestions.ResearchQuestions)
	}
	return added
}

// nextBridge picks the lowest-degree node and the highest-degree structurally
// plausible target it is not yet connected to. Plausible means the same level
// or one level apart, so bridges can also serve as groundings. Ties break by
// id for determinism.
func (c *Client) nextBridge() (types.Edge, bool) {
	ids := c.store.NodeIDs()
	if len(ids) < 2 {
		return types.Edge{}, false
	}

	bySource := make([]string, len(ids))
	copy(bySource, ids)
	sort.SliceStable(bySource, func(i, j int) bool {
		di, dj := c.store.Degree(bySource[i]), c.store.Degree(bySource[j])
		if di != dj {
			return di < dj
		}
		return bySource[i] < bySource[j]
	})

	byTarget := make([]string, len(ids))
	copy(byTarget, ids)
	sort.SliceStable(byTarget, func(i, j int) bool {
		di, dj := c.store.Degree(byTarget[i]), c.store.Degree(byTarget[j])
		if di != dj {
			return di > dj
		}
		return byTarget[i] < byTarget[j]
	})

	for _, source := range bySource {
		srcNode, ok := c.store.GetNode(source)
		if !ok {
			continue
		}
		adjacent := make(map[string]struct{})
		for _, n := range c.store.Neighbors(source) {
			adjacent[n] = struct{}{}
		}
		for _, target := range byTarget {
			if target == source {
				continue
			}
			if _, already := adjacent[target]; already {
				continue
			}
			tgtNode, ok := c.store.GetNode(target)
			if !ok {
				continue
			}
			levelGap := int(srcNode.Level) - int(tgtNode.Level)
			if levelGap < -1 || levelGap > 1 {
				continue
			}
			edge := types.NewEdge(source, target, "bridge")
			edge.Weight = 0.5
			return edge, true
		}
	}
	return types.Edge{}, false
}

// compress merges nodes that share a level and an identical immediate
// neighborhood, the bisimulation-style equivalence the redundancy bound asks
// for. The lexicographically smallest id of each class survives.
func (c *Client) compress() bool {
	classes := make(map[string][]string)
	for _, id := range c.store.NodeIDs() {
		node, ok := c.store.GetNode(id)
		if !ok {
			continue
		}
		neighbors := c.store.Neighbors(id)
		if len(neighbors) == 0 {
			continue
		}
		key := fmt.Sprintf("L%d|%v", node.Level, neighbors)
		classes[key] = append(classes[key], id)
	}

	merged := false
	for _, class := range classes {
		if len(class) < 2 {
			continue
		}
		sort.Strings(class)
		keep := class[0]
		for _, remove := range class[1:] {
			if err := c.store.Merge(keep, remove); err != nil {
				c.logger.Warn("compress merge failed", "keep", keep, "remove", remove, "error", err)
				continue
			}
			c.matrix.Remove(remove)
			merged = true
		}
	}
	return merged
}

// expand abstracts the densest detected cluster into a meta-node one level
// up. A cluster is a node plus its neighbors at the same level, accepted when
// it has at least three members and at least half its pairs are connected.
// Graphs without such a cluster report no safe action.
func (c *Client) expand() bool {
	for _, id := range c.store.NodeIDs() {
		node, ok := c.store.GetNode(id)
		if !ok || node.Level >= types.MaxLevel {
			continue
		}

		cluster := []string{id}
		for _, n := range c.store.Neighbors(id) {
			other, ok := c.store.GetNode(n)
			if ok && other.Level == node.Level {
				cluster = append(cluster, n)
			}
		}
		if len(cluster) < 3 {
			continue
		}
		if clusterDensity(c.store, cluster) < 0.5 {
			continue
		}

		metaID := fmt.Sprintf("meta-%s", uuid.New().String()[:8])
		meta := types.NewNode(metaID, node.Level+1, cluster...)
		if err := c.store.AddNode(meta); err != nil {
			c.logger.Warn("expand meta-node rejected", "id", metaID, "error", err)
			return false
		}
		if err := c.store.AddEdge(types.NewEdge(metaID, id, "abstracts")); err != nil {
			c.logger.Warn("expand grounding edge rejected", "id", metaID, "error", err)
		}
		c.logger.Info("expanded cluster into meta-node", "meta", metaID, "members", len(cluster))
		return true
	}
	return false
}

// clusterDensity is the fraction of connected pairs within the cluster.
func clusterDensity(s *graph.Store, cluster []string) float64 {
	adjacent := make(map[string]map[string]struct{}, len(cluster))
	for _, id := range cluster {
		adjacent[id] = make(map[string]struct{})
		for _, n := range s.Neighbors(id) {
			adjacent[id][n] = struct{}{}
		}
	}
	connected, pairs := 0, 0
	for i := 0; i < len(cluster); i++ {
		for j := i + 1; j < len(cluster); j++ {
			pairs++
			if _, ok := adjacent[cluster[i]][cluster[j]]; ok {
				connected++
			}
		}
	}
	if pairs == 0 {
		return 0
	}
	return float64(connected) / float64(pairs)
}

// repair applies a violation-specific local fix. Grounding findings get a
// grounding edge; coherence findings get their confidence pulled down to the
// coherent bound. Anything else is logged and reported as unactionable.
func (c *Client) repair(worst types.Violation) bool {
	switch worst.Metric {
	case "grounding":
		return c.repairGrounding()
	case "coherence":
		return c.repairCoherence()
	default:
		c.logger.Warn("no local repair for violation", "metric", worst.Metric, "message", worst.Message)
		return false
	}
}

// repairGrounding connects the first ungrounded node to the highest-degree
// node one level below it.
func (c *Client) repairGrounding() bool {
	for level := types.LevelGrouping; level <= c.store.MaxLevel(); level++ {
		for _, node := range c.store.NodesAtLevel(level) {
			if len(node.Content) > 0 || c.store.HasCrossLevelEdge(node.ID) {
				continue
			}
			candidates := c.store.NodesAtLevel(level - 1)
			sort.SliceStable(candidates, func(i, j int) bool {
				di, dj := c.store.Degree(candidates[i].ID), c.store.Degree(candidates[j].ID)
				if di != dj {
					return di > dj
				}
				return candidates[i].ID < candidates[j].ID
			})
			if len(candidates) == 0 {
				continue
			}
			edge := types.NewEdge(node.ID, candidates[0].ID, "grounds")
			if err := c.store.AddEdge(edge); err != nil {
				c.logger.Warn("grounding repair failed", "node", node.ID, "error", err)
				return false
			}
			return true
		}
	}
	return false
}

// repairCoherence lowers the confidence of the first incoherent attribute to
// the coherent bound. This is an explicit, logged remediation, not a silent
// clamp at construction time.
func (c *Client) repairCoherence() bool {
	for _, id := range c.store.NodeIDs() {
		node, ok := c.store.GetNode(id)
		if !ok || len(node.Attributes) == 0 {
			continue
		}
		changed := false
		for name, attr := range node.Attributes {
			bound := attr.SourceQuality + validate.CoherenceSlack
			if bound > 1 {
				bound = 1
			}
			if attr.Confidence > bound {
				attr.Confidence = bound
				node.Attributes[name] = attr
				changed = true
			}
		}
		if changed {
			if err := c.store.ReplaceAttributes(id, node.Attributes); err != nil {
				c.logger.Warn("coherence repair failed", "node", id, "error", err)
				return false
			}
			c.logger.Info("coherence repaired", "node", id)
			return true
		}
	}
	return false
}
