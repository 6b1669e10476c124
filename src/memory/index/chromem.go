package index

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	chromem "github.com/philippgille/chromem-go"
)

// ChromemIndex backs the VectorIndex contract with chromem-go, an embedded
// pure-Go vector database. All tenants share one collection; isolation is
// enforced through the metadata filter on every query.
type ChromemIndex struct {
	db   *chromem.DB
	col  *chromem.Collection
	mu   sync.Mutex
	name string
}

// NewChromemIndex creates an in-process index. If path is non-empty the
// database persists to disk, otherwise it is purely in-memory.
func NewChromemIndex(name, path string) (*ChromemIndex, error) {
	if name == "" {
		name = "memories"
	}

	var (
		db  *chromem.DB
		err error
	)
	if path != "" {
		db, err = chromem.NewPersistentDB(path, false)
		if err != nil {
			return nil, err
		}
	} else {
		db = chromem.NewDB()
	}

	// Embeddings are always supplied by the caller; no embedding func.
	col, err := db.GetOrCreateCollection(name, nil, nil)
	if err != nil {
		return nil, err
	}
	return &ChromemIndex{db: db, col: col, name: name}, nil
}

func (ix *ChromemIndex) Upsert(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		return errors.New("index entry id is empty")
	}
	if len(entry.Vector) == 0 {
		return errors.New("index entry vector is empty")
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	// chromem's AddDocument does not overwrite, so drop a stale document
	// for this id first.
	_ = ix.col.Delete(ctx, nil, nil, entry.ID)

	return ix.col.AddDocument(ctx, chromem.Document{
		ID:        entry.ID,
		Content:   entry.Text,
		Embedding: entry.Vector,
		Metadata:  entry.Metadata,
	})
}

func (ix *ChromemIndex) Delete(ctx context.Context, id string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.col.Delete(ctx, nil, nil, id)
}

func (ix *ChromemIndex) Query(ctx context.Context, vector []float32, k int, filter Filter) ([]Result, error) {
	if k <= 0 || len(vector) == 0 {
		return nil, nil
	}

	// chromem rejects nResults larger than the collection size.
	if count := ix.col.Count(); count < k {
		if count == 0 {
			return nil, nil
		}
		k = count
	}

	raw, err := ix.col.QueryEmbedding(ctx, vector, k, map[string]string(filter), nil)
	if err != nil {
		if isTooFewDocsError(err) {
			return nil, nil
		}
		return nil, err
	}

	results := make([]Result, 0, len(raw))
	for _, r := range raw {
		results = append(results, Result{
			ID:         r.ID,
			Similarity: normalizeCosine(float64(r.Similarity)),
			Text:       r.Content,
			Metadata:   r.Metadata,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Similarity != results[j].Similarity {
			return results[i].Similarity > results[j].Similarity
		}
		return results[i].ID < results[j].ID
	})
	return results, nil
}

func (ix *ChromemIndex) Count(_ context.Context) (int, error) {
	return ix.col.Count(), nil
}

// normalizeCosine maps a raw cosine similarity in [-1,1] onto [0,1].
func normalizeCosine(cos float64) float64 {
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return (cos + 1) / 2
}

func isTooFewDocsError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "nResults") || strings.Contains(msg, "number of documents")
}

var _ VectorIndex = (*ChromemIndex)(nil)
