// Package store owns durable memory records and their version history.
//
// A Store never reaches into a vector index; pairing the two sides of a
// commit is the caller's job. Soft-deleted records stay addressable by id
// for audit purposes but are excluded from every listing.
package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/engram-ai/engram/src/memory/model"
)

var (
	// ErrNotFound is returned for operations on a nonexistent record, or
	// for mutations of an already soft-deleted one.
	ErrNotFound = errors.New("memory record not found")
	// ErrUnauthorized is returned when the caller's owner id does not
	// match the record's. Checked before any record data is returned.
	ErrUnauthorized = errors.New("record belongs to a different owner")
	// ErrInvalidRecord is returned when a record fails validation.
	ErrInvalidRecord = errors.New("invalid memory record")
)

// Order selects the sort applied by List.
type Order string

const (
	OrderCreatedDesc    Order = "created_desc"
	OrderUpdatedDesc    Order = "updated_desc"
	OrderImportanceDesc Order = "importance_desc"
)

// ListFilter narrows List results. Zero values mean "no constraint".
// List only ever returns active records.
type ListFilter struct {
	Type        model.MemoryType
	Category    string
	Tag         string
	Source      model.SourceType
	Pinned      *bool
	Verified    *bool
	NeedsResync *bool
	Limit       int
}

// UpdateRequest describes a partial mutation. Nil pointer fields are left
// untouched. Tags are merged (set union) with the existing ones, matching
// how conflict resolution folds a candidate into an existing record.
type UpdateRequest struct {
	Content          *string
	Category         *string
	Tags             []string
	Importance       *float64
	Confidence       *float64
	Pinned           *bool
	Verified         *bool
	Embedding        []float32
	EmbeddingModelID string
	NeedsResync      *bool
	Extra            map[string]any
	Reason           string
	ChangedBy        model.ChangedBy
}

// Store is the durable persistence contract for memory records and their
// append-only version history.
type Store interface {
	// Create persists a new record, filling in id, timestamps and
	// defaults on the passed record.
	Create(ctx context.Context, rec *model.MemoryRecord) error
	// Get returns the record, active or not: soft-deleted records stay
	// addressable by id for audit and version history.
	Get(ctx context.Context, ownerID, id string) (model.MemoryRecord, error)
	// Update mutates an active record. When the content changes, a
	// MemoryVersion snapshot of the prior content is appended first.
	Update(ctx context.Context, ownerID, id string, req UpdateRequest) (model.MemoryRecord, error)
	// SoftDelete deactivates the record; it stays addressable by Get.
	SoftDelete(ctx context.Context, ownerID, id string) error
	// HardDelete removes the record and cascades its versions. Callers
	// must pair this with VectorIndex.Delete.
	HardDelete(ctx context.Context, ownerID, id string) error
	// List returns active records matching the filter in the given order.
	List(ctx context.Context, ownerID string, filter ListFilter, order Order) ([]model.MemoryRecord, error)
	// Pinned returns all active pinned records for the owner.
	Pinned(ctx context.Context, ownerID string) ([]model.MemoryRecord, error)
	// Versions returns the record's snapshots, oldest first.
	Versions(ctx context.Context, ownerID, id string) ([]model.MemoryVersion, error)
	// Touch records an access: bumps access_count and last_accessed_at.
	Touch(ctx context.Context, ownerID string, ids []string, at time.Time) error
	Close() error
}

// prepareCreate validates and normalizes a record before insertion. Shared
// by every backend so their create semantics cannot drift apart.
func prepareCreate(rec *model.MemoryRecord, now time.Time) error {
	if rec == nil {
		return ErrInvalidRecord
	}
	if strings.TrimSpace(rec.Content) == "" {
		return errors.New("memory content is empty")
	}
	if rec.OwnerID == "" {
		return errors.New("memory owner id is empty")
	}
	if rec.Type == "" {
		rec.Type = model.TypeFact
	}
	if !rec.Type.Valid() {
		return errors.New("unknown memory type " + string(rec.Type))
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Source == "" {
		rec.Source = model.SourceManual
	}
	rec.Tags = model.NormalizeTags(rec.Tags)
	rec.Importance = model.ClampScore(rec.Importance)
	rec.Confidence = model.ClampScore(rec.Confidence)
	rec.CreatedAt = now
	rec.UpdatedAt = now
	rec.Active = true
	return nil
}

// applyUpdate folds req into rec and reports whether the content changed
// (i.e. whether a version snapshot of the prior content is required).
func applyUpdate(rec *model.MemoryRecord, req UpdateRequest, now time.Time) bool {
	contentChanged := false
	if req.Content != nil && *req.Content != rec.Content {
		rec.Content = *req.Content
		contentChanged = true
	}
	if req.Category != nil {
		rec.Category = *req.Category
	}
	if req.Tags != nil {
		rec.Tags = model.UnionTags(rec.Tags, req.Tags)
	}
	if req.Importance != nil {
		rec.Importance = model.ClampScore(*req.Importance)
	}
	if req.Confidence != nil {
		rec.Confidence = model.ClampScore(*req.Confidence)
	}
	if req.Pinned != nil {
		rec.Pinned = *req.Pinned
	}
	if req.Verified != nil {
		rec.Verified = *req.Verified
	}
	if req.Embedding != nil {
		rec.Embedding = append([]float32(nil), req.Embedding...)
		rec.EmbeddingModelID = req.EmbeddingModelID
	}
	if req.NeedsResync != nil {
		rec.NeedsResync = *req.NeedsResync
	}
	if req.Extra != nil {
		if rec.Extra == nil {
			rec.Extra = make(map[string]any, len(req.Extra))
		}
		for k, v := range req.Extra {
			rec.Extra[k] = v
		}
	}
	rec.UpdatedAt = now
	return contentChanged
}

// matchesFilter implements ListFilter for backends that filter in process.
func matchesFilter(rec model.MemoryRecord, f ListFilter) bool {
	if f.Type != "" && rec.Type != f.Type {
		return false
	}
	if f.Category != "" && rec.Category != f.Category {
		return false
	}
	if f.Source != "" && rec.Source != f.Source {
		return false
	}
	if f.Tag != "" {
		found := false
		for _, tag := range rec.Tags {
			if tag == f.Tag {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Pinned != nil && rec.Pinned != *f.Pinned {
		return false
	}
	if f.Verified != nil && rec.Verified != *f.Verified {
		return false
	}
	if f.NeedsResync != nil && rec.NeedsResync != *f.NeedsResync {
		return false
	}
	return true
}
