// Package index provides nearest-neighbor structures keyed by memory id.
//
// An index holds a derived, eventually-consistent projection of the memory
// store (id, embedding, text, minimal metadata). Writes to the store and
// the index for the same record are paired by the caller; the index never
// reaches back into the store.
package index

import "context"

// Metadata keys every backend indexes for equality filtering.
const (
	MetaOwnerID    = "owner_id"
	MetaMemoryType = "memory_type"
)

// Entry is the indexed projection of a memory record.
type Entry struct {
	ID       string
	Vector   []float32
	Text     string
	Metadata map[string]string
}

// Result is one ranked query hit.
type Result struct {
	ID         string
	Similarity float64 // normalized cosine in [0,1]
	Text       string
	Metadata   map[string]string
}

// Filter is an equality match on indexed metadata fields. A nil or empty
// filter matches everything; callers scoping by owner must always set
// MetaOwnerID, since cross-tenant leakage is a correctness violation.
type Filter map[string]string

// Matches reports whether metadata satisfies every filter clause.
func (f Filter) Matches(metadata map[string]string) bool {
	for k, want := range f {
		if metadata[k] != want {
			return false
		}
	}
	return true
}

// VectorIndex is a nearest-neighbor structure keyed by memory id.
//
// Query returns up to k results ordered by descending similarity, ties
// broken by ascending id for determinism. Fewer than k results are returned
// when the index holds fewer matching items; results are never padded.
type VectorIndex interface {
	Upsert(ctx context.Context, entry Entry) error
	Delete(ctx context.Context, id string) error
	Query(ctx context.Context, vector []float32, k int, filter Filter) ([]Result, error)
	Count(ctx context.Context) (int, error)
}
