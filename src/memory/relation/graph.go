// Package relation persists typed edges between memory records, keeping
// track of which memories contradict, supersede, or elaborate on others.
package relation

import (
	"context"

	"github.com/engram-ai/engram/src/memory/model"
)

// Graph stores directed, typed edges between memory records.
type Graph interface {
	// Link upserts an edge. Linking the same (from, to, kind) again
	// replaces the strength.
	Link(ctx context.Context, rel model.Relationship) error
	// Unlink removes one edge. Removing a missing edge is a no-op.
	Unlink(ctx context.Context, fromID, toID string, kind model.RelationKind) error
	// From returns all outgoing edges of a record. A kind of "" returns
	// every kind.
	From(ctx context.Context, id string, kind model.RelationKind) ([]model.Relationship, error)
	// To returns all incoming edges of a record.
	To(ctx context.Context, id string, kind model.RelationKind) ([]model.Relationship, error)
	// Remove drops every edge touching the record, in both directions.
	// Used when a record is hard-deleted.
	Remove(ctx context.Context, id string) error
	Close(ctx context.Context) error
}
