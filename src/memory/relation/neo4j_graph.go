package relation

import (
	"context"
	"errors"
	"fmt"

	"github.com/engram-ai/engram/src/memory/model"
)

// Neo4jAccessMode controls whether a session is opened for read or write
// operations.
type Neo4jAccessMode string

const (
	AccessModeWrite Neo4jAccessMode = "write"
	AccessModeRead  Neo4jAccessMode = "read"
)

// Neo4jSessionConfig mirrors the minimal subset of Neo4j session
// configuration we require.
type Neo4jSessionConfig struct {
	AccessMode   Neo4jAccessMode
	DatabaseName string
}

// neo4jDriver abstracts the Neo4j driver capabilities used by the graph.
// This allows tests to provide lightweight fakes without depending on the
// real driver package (which is guarded behind an optional build tag).
type neo4jDriver interface {
	NewSession(ctx context.Context, config Neo4jSessionConfig) (neo4jSession, error)
	Close(ctx context.Context) error
}

type neo4jSession interface {
	Run(ctx context.Context, query string, params map[string]any) (neo4jResult, error)
	Close(ctx context.Context) error
}

type neo4jResult interface {
	Next(ctx context.Context) bool
	Record() neo4jRecord
	Err() error
	Close(ctx context.Context) error
}

type neo4jRecord interface {
	Get(key string) (any, bool)
}

// ErrNeo4jUnavailable is returned when graph operations are attempted
// without a configured driver.
var ErrNeo4jUnavailable = errors.New("neo4j driver not configured")

// Neo4jGraph persists memory relationships as MEMORY nodes joined by
// RELATES edges carrying kind and strength properties.
type Neo4jGraph struct {
	driver   neo4jDriver
	database string
}

func NewNeo4jGraph(driver neo4jDriver, database string) (*Neo4jGraph, error) {
	if driver == nil {
		return nil, ErrNeo4jUnavailable
	}
	return &Neo4jGraph{driver: driver, database: database}, nil
}

func (g *Neo4jGraph) Link(ctx context.Context, rel model.Relationship) error {
	if err := rel.Validate(); err != nil {
		return err
	}
	return g.write(ctx, `MERGE (a:Memory {id: $from})
		MERGE (b:Memory {id: $to})
		MERGE (a)-[r:RELATES {kind: $kind}]->(b)
		SET r.strength = $strength`,
		map[string]any{
			"from":     rel.FromID,
			"to":       rel.ToID,
			"kind":     string(rel.Kind),
			"strength": rel.Strength,
		})
}

func (g *Neo4jGraph) Unlink(ctx context.Context, fromID, toID string, kind model.RelationKind) error {
	return g.write(ctx, `MATCH (a:Memory {id: $from})-[r:RELATES {kind: $kind}]->(b:Memory {id: $to})
		DELETE r`,
		map[string]any{"from": fromID, "to": toID, "kind": string(kind)})
}

func (g *Neo4jGraph) From(ctx context.Context, id string, kind model.RelationKind) ([]model.Relationship, error) {
	return g.query(ctx, `MATCH (a:Memory {id: $id})-[r:RELATES]->(b:Memory)
		WHERE $kind = '' OR r.kind = $kind
		RETURN a.id AS from, b.id AS to, r.kind AS kind, r.strength AS strength
		ORDER BY from, to, kind`,
		map[string]any{"id": id, "kind": string(kind)})
}

func (g *Neo4jGraph) To(ctx context.Context, id string, kind model.RelationKind) ([]model.Relationship, error) {
	return g.query(ctx, `MATCH (a:Memory)-[r:RELATES]->(b:Memory {id: $id})
		WHERE $kind = '' OR r.kind = $kind
		RETURN a.id AS from, b.id AS to, r.kind AS kind, r.strength AS strength
		ORDER BY from, to, kind`,
		map[string]any{"id": id, "kind": string(kind)})
}

func (g *Neo4jGraph) Remove(ctx context.Context, id string) error {
	return g.write(ctx, `MATCH (m:Memory {id: $id}) DETACH DELETE m`,
		map[string]any{"id": id})
}

func (g *Neo4jGraph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

func (g *Neo4jGraph) write(ctx context.Context, query string, params map[string]any) error {
	session, err := g.driver.NewSession(ctx, Neo4jSessionConfig{
		AccessMode: AccessModeWrite, DatabaseName: g.database,
	})
	if err != nil {
		return fmt.Errorf("neo4j session: %w", err)
	}
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return err
	}
	defer result.Close(ctx)
	return result.Err()
}

func (g *Neo4jGraph) query(ctx context.Context, query string, params map[string]any) ([]model.Relationship, error) {
	session, err := g.driver.NewSession(ctx, Neo4jSessionConfig{
		AccessMode: AccessModeRead, DatabaseName: g.database,
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j session: %w", err)
	}
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}
	defer result.Close(ctx)

	var out []model.Relationship
	for result.Next(ctx) {
		record := result.Record()
		rel := model.Relationship{
			FromID:   model.StringFromAny(value(record, "from")),
			ToID:     model.StringFromAny(value(record, "to")),
			Kind:     model.RelationKind(model.StringFromAny(value(record, "kind"))),
			Strength: model.FloatFromAny(value(record, "strength")),
		}
		out = append(out, rel)
	}
	return out, result.Err()
}

func value(record neo4jRecord, key string) any {
	v, _ := record.Get(key)
	return v
}

var _ Graph = (*Neo4jGraph)(nil)
