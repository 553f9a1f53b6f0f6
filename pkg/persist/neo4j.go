// Package persist saves and restores graph snapshots in Neo4j. The in-memory
// store stays authoritative; persistence is a durability layer loaded at
// startup and written after mutating operations.
package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/soundprediction/strata/pkg/graph"
	"github.com/soundprediction/strata/pkg/types"
)

// Neo4jStore persists graph snapshots to a Neo4j database.
type Neo4jStore struct {
	client   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// NewNeo4jStore creates a snapshot store against the given instance.
func NewNeo4jStore(uri, username, password, database string, logger *slog.Logger) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if database == "" {
		database = "neo4j"
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Neo4jStore{
		client:   driver,
		database: database,
		logger:   logger,
	}, nil
}

// Save replaces the persisted snapshot with the store's current state.
func (p *Neo4jStore) Save(ctx context.Context, s *graph.Store) error {
	session := p.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: p.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `MATCH (n:Concept) DETACH DELETE n`, nil); err != nil {
			return nil, err
		}

		for _, id := range s.NodeIDs() {
			node, ok := s.GetNode(id)
			if !ok {
				continue
			}
			attrs, err := json.Marshal(node.Attributes)
			if err != nil {
				return nil, fmt.Errorf("failed to encode attributes for %s: %w", id, err)
			}
			query := `
				CREATE (n:Concept {id: $id, level: $level, attributes: $attributes})
			`
			if _, err := tx.Run(ctx, query, map[string]any{
				"id":         node.ID,
				"level":      int64(node.Level),
				"attributes": string(attrs),
			}); err != nil {
				return nil, err
			}
		}

		for _, id := range s.NodeIDs() {
			node, ok := s.GetNode(id)
			if !ok {
				continue
			}
			for _, child := range node.ContainedIDs() {
				query := `
					MATCH (parent:Concept {id: $parent}), (child:Concept {id: $child})
					CREATE (parent)-[:CONTAINS]->(child)
				`
				if _, err := tx.Run(ctx, query, map[string]any{
					"parent": node.ID,
					"child":  child,
				}); err != nil {
					return nil, err
				}
			}
		}

		for _, edge := range s.Edges() {
			query := `
				MATCH (src:Concept {id: $source}), (dst:Concept {id: $target})
				CREATE (src)-[:RELATES {label: $label, weight: $weight}]->(dst)
			`
			if _, err := tx.Run(ctx, query, map[string]any{
				"source": edge.Source,
				"target": edge.Target,
				"label":  edge.Label,
				"weight": edge.Weight,
			}); err != nil {
				return nil, err
			}
		}

		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}

	p.logger.Info("snapshot saved", "nodes", s.NodeCount(), "edges", s.EdgeCount())
	return nil
}

// Load rebuilds a store from the persisted snapshot. Nodes are inserted in
// level order so containment references resolve.
func (p *Neo4jStore) Load(ctx context.Context) (*graph.Store, error) {
	session := p.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: p.database})
	defer session.Close(ctx)

	type nodeRow struct {
		id         string
		level      int64
		attributes string
		contains   []string
	}

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (n:Concept)
			OPTIONAL MATCH (n)-[:CONTAINS]->(c:Concept)
			RETURN n.id AS id, n.level AS level, n.attributes AS attributes,
			       collect(c.id) AS contains
			ORDER BY n.level ASC, n.id ASC
		`
		res, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}

		var rows []nodeRow
		for res.Next(ctx) {
			record := res.Record()
			row := nodeRow{}
			if v, ok := record.Get("id"); ok {
				row.id, _ = v.(string)
			}
			if v, ok := record.Get("level"); ok {
				row.level, _ = v.(int64)
			}
			if v, ok := record.Get("attributes"); ok {
				row.attributes, _ = v.(string)
			}
			if v, ok := record.Get("contains"); ok {
				if list, ok := v.([]any); ok {
					for _, item := range list {
						if id, ok := item.(string); ok {
							row.contains = append(row.contains, id)
						}
					}
				}
			}
			rows = append(rows, row)
		}
		return rows, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot nodes: %w", err)
	}

	store := graph.NewStore(p.logger)
	for _, row := range result.([]nodeRow) {
		node := types.NewNode(row.id, types.Level(row.level), row.contains...)
		if row.attributes != "" {
			if err := json.Unmarshal([]byte(row.attributes), &node.Attributes); err != nil {
				return nil, fmt.Errorf("failed to decode attributes for %s: %w", row.id, err)
			}
		}
		if err := store.AddNode(node); err != nil {
			return nil, fmt.Errorf("failed to restore node %s: %w", row.id, err)
		}
	}

	edgesResult, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (src:Concept)-[r:RELATES]->(dst:Concept)
			RETURN src.id AS source, dst.id AS target, r.label AS label, r.weight AS weight
		`
		res, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}

		var edges []types.Edge
		for res.Next(ctx) {
			record := res.Record()
			edge := types.Edge{Weight: 1.0}
			if v, ok := record.Get("source"); ok {
				edge.Source, _ = v.(string)
			}
			if v, ok := record.Get("target"); ok {
				edge.Target, _ = v.(string)
			}
			if v, ok := record.Get("label"); ok {
				edge.Label, _ = v.(string)
			}
			if v, ok := record.Get("weight"); ok {
				if w, ok := v.(float64); ok {
					edge.Weight = w
				}
			}
			edges = append(edges, edge)
		}
		return edges, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot edges: %w", err)
	}

	for _, edge := range edgesResult.([]types.Edge) {
		if err := store.AddEdge(edge); err != nil {
			return nil, fmt.Errorf("failed to restore edge %s: %w", edge.String(), err)
		}
	}

	p.logger.Info("snapshot loaded", "nodes", store.NodeCount(), "edges", store.EdgeCount())
	return store, nil
}

// Close releases the underlying driver.
func (p *Neo4jStore) Close(ctx context.Context) error {
	return p.client.Close(ctx)
}
