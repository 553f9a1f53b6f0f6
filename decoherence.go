package strata

import (
	"sort"
	"strings"

	"github.com/soundprediction/strata/pkg/graph"
	"github.com/soundprediction/strata/pkg/types"
)

// Interpretation is one candidate meaning of a polysemous node.
type Interpretation struct {
	Meaning    string  `json:"meaning"`
	Domain     string  `json:"domain"`
	Confidence float64 `json:"confidence"`
}

// PolysemousNode names a node with several candidate interpretations to be
// resolved per query.
type PolysemousNode struct {
	NodeID          string           `json:"node_id"`
	Interpretations []Interpretation `json:"interpretations"`
}

// ConditionalEdge is an edge that only exists for queries whose context
// satisfies its predicate. Unconditional edges in the canonical graph are
// always kept.
type ConditionalEdge struct {
	Edge      types.Edge
	Activates func(ctx *QueryContext) bool
}

// QueryContext is the derived interpretation frame for one query.
type QueryContext struct {
	Query  string   `json:"query"`
	Domain string   `json:"domain,omitempty"`
	Terms  []string `json:"terms"`
}

// Resolution is a query-specific view of the graph: a filtered, specialized
// snapshot plus the interpretation chosen for each polysemous node. The
// canonical graph is never mutated.
type Resolution struct {
	Graph    *graph.Store              `json:"-"`
	Context  QueryContext              `json:"context"`
	Resolved map[string]Interpretation `json:"resolved,omitempty"`
}

// domainKeywords is the fixed table used to infer a query's domain. Matching
// is by lowercase term intersection; the domain with the most hits wins, ties
// break lexicographically so resolution stays deterministic.
var domainKeywords = map[string][]string{
	"hemodynamic":    {"cardiac", "co", "svr", "hemodynamic", "blood", "pressure", "perfusion", "vascular"},
	"fluid dynamics": {"fluid", "viscosity", "turbulent", "laminar", "pipe", "reynolds"},
	"electrical":     {"current", "voltage", "circuit", "impedance", "resistor"},
	"information":    {"bandwidth", "throughput", "packet", "channel", "signal"},
}

// Decohere materializes a query-specific view: it derives a QueryContext from
// the free-text query, resolves each polysemous node, and activates or
// removes conditional edges. Resolution is deterministic given identical
// inputs.
func (c *Client) Decohere(query string, polysemous []PolysemousNode, conditional []ConditionalEdge) *Resolution {
	ctx := DeriveContext(query)
	snapshot := c.store.Snapshot()

	resolution := &Resolution{
		Graph:    snapshot,
		Context:  ctx,
		Resolved: make(map[string]Interpretation),
	}

	for _, poly := range polysemous {
		if !snapshot.HasNode(poly.NodeID) || len(poly.Interpretations) == 0 {
			continue
		}
		resolution.Resolved[poly.NodeID] = resolveInterpretation(&ctx, poly.Interpretations)
	}

	for _, cond := range conditional {
		active := cond.Activates == nil || cond.Activates(&ctx)
		key := cond.Edge.Key()
		if active {
			if err := snapshot.AddEdge(cond.Edge); err != nil {
				c.logger.Warn("conditional edge skipped", "edge", cond.Edge.String(), "error", err)
			}
			continue
		}
		snapshot.RemoveEdge(key)
	}

	return resolution
}

// DeriveContext infers the query's domain by keyword-set matching against
// the fixed table.
func DeriveContext(query string) QueryContext {
	terms := tokenize(query)
	termSet := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		termSet[t] = struct{}{}
	}

	domains := make([]string, 0, len(domainKeywords))
	for domain := range domainKeywords {
		domains = append(domains, domain)
	}
	sort.Strings(domains)

	best := ""
	bestHits := 0
	for _, domain := range domains {
		hits := 0
		for _, keyword := range domainKeywords[domain] {
			if _, ok := termSet[keyword]; ok {
				hits++
			}
		}
		if hits > bestHits {
			best = domain
			bestHits = hits
		}
	}

	return QueryContext{Query: query, Domain: best, Terms: terms}
}

// resolveInterpretation picks an interpretation: exact domain match first,
// then highest lexical overlap with the query terms. Ties break by higher
// confidence, then by listing order.
func resolveInterpretation(ctx *QueryContext, candidates []Interpretation) Interpretation {
	if ctx.Domain != "" {
		best := -1
		for i, cand := range candidates {
			if cand.Domain != ctx.Domain {
				continue
			}
			if best == -1 || cand.Confidence > candidates[best].Confidence {
				best = i
			}
		}
		if best >= 0 {
			return candidates[best]
		}
	}

	termSet := make(map[string]struct{}, len(ctx.Terms))
	for _, t := range ctx.Terms {
		termSet[t] = struct{}{}
	}

	bestIdx := 0
	bestScore := -1
	for i, cand := range candidates {
		score := 0
		for _, t := range tokenize(cand.Meaning + " " + cand.Domain) {
			if _, ok := termSet[t]; ok {
				score++
			}
		}
		if score > bestScore || (score == bestScore && cand.Confidence > candidates[bestIdx].Confidence) {
			bestIdx = i
			bestScore = score
		}
	}
	return candidates[bestIdx]
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	return fields
}
