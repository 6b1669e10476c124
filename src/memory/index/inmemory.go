package index

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/engram-ai/engram/src/memory/embed"
)

// InMemoryIndex is a brute-force cosine index. It is the reference
// implementation of the VectorIndex contract and the default for tests.
type InMemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewInMemoryIndex creates an empty index.
func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{entries: make(map[string]Entry)}
}

func (ix *InMemoryIndex) Upsert(_ context.Context, entry Entry) error {
	if entry.ID == "" {
		return errors.New("index entry id is empty")
	}
	if len(entry.Vector) == 0 {
		return errors.New("index entry vector is empty")
	}

	cp := entry
	cp.Vector = append([]float32(nil), entry.Vector...)
	if entry.Metadata != nil {
		cp.Metadata = make(map[string]string, len(entry.Metadata))
		for k, v := range entry.Metadata {
			cp.Metadata[k] = v
		}
	}

	ix.mu.Lock()
	ix.entries[entry.ID] = cp
	ix.mu.Unlock()
	return nil
}

func (ix *InMemoryIndex) Delete(_ context.Context, id string) error {
	ix.mu.Lock()
	delete(ix.entries, id)
	ix.mu.Unlock()
	return nil
}

func (ix *InMemoryIndex) Query(_ context.Context, vector []float32, k int, filter Filter) ([]Result, error) {
	if k <= 0 || len(vector) == 0 {
		return nil, nil
	}

	ix.mu.RLock()
	results := make([]Result, 0, len(ix.entries))
	for _, entry := range ix.entries {
		if !filter.Matches(entry.Metadata) {
			continue
		}
		results = append(results, Result{
			ID:         entry.ID,
			Similarity: embed.Cosine(vector, entry.Vector),
			Text:       entry.Text,
			Metadata:   entry.Metadata,
		})
	}
	ix.mu.RUnlock()

	sort.Slice(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (ix *InMemoryIndex) Count(_ context.Context) (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries), nil
}

var _ VectorIndex = (*InMemoryIndex)(nil)
