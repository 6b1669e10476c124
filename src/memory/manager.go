package memory

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/engram-ai/engram/src/concurrent"
	"github.com/engram-ai/engram/src/memory/embed"
	"github.com/engram-ai/engram/src/memory/extract"
	"github.com/engram-ai/engram/src/memory/index"
	"github.com/engram-ai/engram/src/memory/inject"
	"github.com/engram-ai/engram/src/memory/model"
	"github.com/engram-ai/engram/src/memory/relation"
	"github.com/engram-ai/engram/src/memory/resolve"
	"github.com/engram-ai/engram/src/memory/store"
	"github.com/engram-ai/engram/src/models"
)

// Options configures a Manager. Zero-value fields fall back to in-process
// implementations so a Manager works out of the box without external
// services.
type Options struct {
	Store     store.Store
	Index     index.VectorIndex
	Embedder  embed.Embedder
	Generator models.Generator
	Graph     relation.Graph
	Resolver  resolve.Options
}

func DefaultOptions() Options {
	return Options{
		Store:     store.NewInMemoryStore(),
		Index:     index.NewInMemoryIndex(),
		Embedder:  embed.DummyEmbedder{},
		Generator: models.NewDummyLLM(""),
		Graph:     relation.NewInMemoryGraph(),
		Resolver:  resolve.DefaultOptions(),
	}
}

// Manager ties the store, the vector index, the relationship graph, and
// the extraction pipeline into one memory subsystem for an assistant.
type Manager struct {
	store    store.Store
	index    index.VectorIndex
	embedder embed.Embedder
	graph    relation.Graph
	locks    *concurrent.KeyedMutex
	pipeline *extract.Pipeline
	injector *inject.Injector
}

func NewManager(opts Options) *Manager {
	def := DefaultOptions()
	if opts.Store == nil {
		opts.Store = def.Store
	}
	if opts.Index == nil {
		opts.Index = def.Index
	}
	if opts.Embedder == nil {
		opts.Embedder = def.Embedder
	}
	if opts.Generator == nil {
		opts.Generator = def.Generator
	}
	if opts.Graph == nil {
		opts.Graph = def.Graph
	}

	locks := concurrent.NewKeyedMutex()
	pipeline := extract.NewPipeline(opts.Store, opts.Index, opts.Embedder, opts.Generator, locks)
	pipeline.Resolver = opts.Resolver.WithDefaults()

	return &Manager{
		store:    opts.Store,
		index:    opts.Index,
		embedder: opts.Embedder,
		graph:    opts.Graph,
		locks:    locks,
		pipeline: pipeline,
		injector: inject.NewInjector(opts.Store, opts.Index, opts.Embedder),
	}
}

// SearchResult pairs a record with its similarity to the query.
type SearchResult struct {
	Record     model.MemoryRecord
	Similarity float64
}

// Remember stores one explicit memory for the owner, running it through
// the same conflict resolution as extracted candidates. The returned
// decision tells the caller whether the memory was created, merged into
// an existing record, or dropped as a duplicate.
func (m *Manager) Remember(ctx context.Context, ownerID string, cand resolve.Candidate) (model.MemoryRecord, resolve.Decision, error) {
	if ownerID == "" {
		return model.MemoryRecord{}, "", store.ErrUnauthorized
	}
	decision, rec, err := m.pipeline.CommitCandidate(ctx, ownerID, cand, model.SourceManual)
	if err != nil {
		return model.MemoryRecord{}, "", err
	}
	return rec, decision, nil
}

// ExtractFromConversation mines the turns for durable memories.
func (m *Manager) ExtractFromConversation(ctx context.Context, ownerID string, turns []extract.Turn) (extract.Result, error) {
	return m.pipeline.ProcessConversation(ctx, ownerID, turns)
}

// BuildContext renders the memory block to inject into the next prompt.
func (m *Manager) BuildContext(ctx context.Context, ownerID, query string, maxItems int, typeFilter model.MemoryType) (string, error) {
	return m.injector.BuildContext(ctx, ownerID, query, maxItems, typeFilter)
}

// Search returns the owner's memories nearest to the query, strongest
// first, dropping hits below minSimilarity.
func (m *Manager) Search(ctx context.Context, ownerID, query string, k int, minSimilarity float64) ([]SearchResult, error) {
	if ownerID == "" {
		return nil, store.ErrUnauthorized
	}
	vector, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query embedding: %w", err)
	}
	hits, err := m.index.Query(ctx, vector, k, index.Filter{index.MetaOwnerID: ownerID})
	if err != nil {
		return nil, fmt.Errorf("vector query: %w", err)
	}

	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		if hit.Similarity < minSimilarity {
			continue
		}
		rec, err := m.store.Get(ctx, ownerID, hit.ID)
		if err != nil || !rec.Active {
			continue
		}
		results = append(results, SearchResult{Record: rec, Similarity: hit.Similarity})
	}
	return results, nil
}

func (m *Manager) Get(ctx context.Context, ownerID, id string) (model.MemoryRecord, error) {
	return m.store.Get(ctx, ownerID, id)
}

func (m *Manager) List(ctx context.Context, ownerID string, filter store.ListFilter, order store.Order) ([]model.MemoryRecord, error) {
	return m.store.List(ctx, ownerID, filter, order)
}

func (m *Manager) Versions(ctx context.Context, ownerID, id string) ([]model.MemoryVersion, error) {
	return m.store.Versions(ctx, ownerID, id)
}

// Update edits a record directly, bypassing conflict resolution. When the
// content changes and no new embedding is supplied, the record is
// re-embedded so store and index stay aligned.
func (m *Manager) Update(ctx context.Context, ownerID, id string, req store.UpdateRequest) (model.MemoryRecord, error) {
	m.locks.Lock(id)
	defer m.locks.Unlock(id)

	if req.Content != nil && req.Embedding == nil {
		vector, modelID, err := embed.Tag(ctx, m.embedder, *req.Content)
		if err != nil {
			return model.MemoryRecord{}, fmt.Errorf("re-embed: %w", err)
		}
		req.Embedding = vector
		req.EmbeddingModelID = modelID
	}
	if req.ChangedBy == "" {
		req.ChangedBy = model.ChangedByUser
	}

	rec, err := m.store.Update(ctx, ownerID, id, req)
	if err != nil {
		return model.MemoryRecord{}, err
	}
	m.syncIndex(ctx, rec)
	return rec, nil
}

// Forget soft-deletes a memory. The record stays addressable for audit,
// but it leaves the index and will not be retrieved again.
func (m *Manager) Forget(ctx context.Context, ownerID, id string) error {
	m.locks.Lock(id)
	defer m.locks.Unlock(id)

	if err := m.store.SoftDelete(ctx, ownerID, id); err != nil {
		return err
	}
	if err := m.index.Delete(ctx, id); err != nil {
		log.Printf("memory: index delete for forgotten %s failed: %v", id, err)
	}
	return nil
}

// Erase removes a memory permanently: record, versions, vector, and
// graph edges.
func (m *Manager) Erase(ctx context.Context, ownerID, id string) error {
	m.locks.Lock(id)
	defer m.locks.Unlock(id)

	if err := m.store.HardDelete(ctx, ownerID, id); err != nil {
		return err
	}
	if err := m.index.Delete(ctx, id); err != nil {
		log.Printf("memory: index delete for erased %s failed: %v", id, err)
	}
	if err := m.graph.Remove(ctx, id); err != nil {
		log.Printf("memory: graph cleanup for erased %s failed: %v", id, err)
	}
	return nil
}

func (m *Manager) Pin(ctx context.Context, ownerID, id string) error {
	return m.setPinned(ctx, ownerID, id, true)
}

func (m *Manager) Unpin(ctx context.Context, ownerID, id string) error {
	return m.setPinned(ctx, ownerID, id, false)
}

func (m *Manager) setPinned(ctx context.Context, ownerID, id string, pinned bool) error {
	m.locks.Lock(id)
	defer m.locks.Unlock(id)
	_, err := m.store.Update(ctx, ownerID, id, store.UpdateRequest{
		Pinned:    &pinned,
		ChangedBy: model.ChangedByUser,
	})
	return err
}

// Link records a typed edge between two of the owner's memories. Both
// endpoints must exist and belong to the owner.
func (m *Manager) Link(ctx context.Context, ownerID string, rel model.Relationship) error {
	if _, err := m.store.Get(ctx, ownerID, rel.FromID); err != nil {
		return err
	}
	if _, err := m.store.Get(ctx, ownerID, rel.ToID); err != nil {
		return err
	}
	return m.graph.Link(ctx, rel)
}

func (m *Manager) Unlink(ctx context.Context, ownerID string, fromID, toID string, kind model.RelationKind) error {
	if _, err := m.store.Get(ctx, ownerID, fromID); err != nil {
		return err
	}
	return m.graph.Unlink(ctx, fromID, toID, kind)
}

// Related returns the outgoing edges of one of the owner's memories.
func (m *Manager) Related(ctx context.Context, ownerID, id string, kind model.RelationKind) ([]model.Relationship, error) {
	if _, err := m.store.Get(ctx, ownerID, id); err != nil {
		return nil, err
	}
	return m.graph.From(ctx, id, kind)
}

// Resync repairs store/index divergence: every record flagged during a
// failed index write is re-embedded when needed, upserted, and cleared.
// It returns how many records were repaired.
func (m *Manager) Resync(ctx context.Context, ownerID string) (int, error) {
	needsResync := true
	flagged, err := m.store.List(ctx, ownerID, store.ListFilter{NeedsResync: &needsResync}, store.OrderUpdatedDesc)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, rec := range flagged {
		if err := m.resyncOne(ctx, rec); err != nil {
			log.Printf("memory: resync of %s failed: %v", rec.ID, err)
			continue
		}
		repaired++
	}
	return repaired, nil
}

func (m *Manager) resyncOne(ctx context.Context, rec model.MemoryRecord) error {
	m.locks.Lock(rec.ID)
	defer m.locks.Unlock(rec.ID)

	vector := rec.Embedding
	modelID := rec.EmbeddingModelID
	if len(vector) == 0 {
		var err error
		vector, modelID, err = embed.Tag(ctx, m.embedder, rec.Content)
		if err != nil {
			return fmt.Errorf("re-embed: %w", err)
		}
	}

	err := m.index.Upsert(ctx, index.Entry{
		ID:     rec.ID,
		Vector: vector,
		Text:   rec.Content,
		Metadata: map[string]string{
			index.MetaOwnerID:    rec.OwnerID,
			index.MetaMemoryType: string(rec.Type),
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %v", extract.ErrSyncDivergence, err)
	}

	cleared := false
	_, err = m.store.Update(ctx, rec.OwnerID, rec.ID, store.UpdateRequest{
		NeedsResync:      &cleared,
		Embedding:        vector,
		EmbeddingModelID: modelID,
		ChangedBy:        model.ChangedBySystem,
	})
	return err
}

func (m *Manager) syncIndex(ctx context.Context, rec model.MemoryRecord) {
	err := m.index.Upsert(ctx, index.Entry{
		ID:     rec.ID,
		Vector: rec.Embedding,
		Text:   rec.Content,
		Metadata: map[string]string{
			index.MetaOwnerID:    rec.OwnerID,
			index.MetaMemoryType: string(rec.Type),
		},
	})
	if err == nil {
		return
	}
	log.Printf("memory: index upsert for %s failed, flagging for resync: %v", rec.ID, err)
	needsResync := true
	if _, uerr := m.store.Update(ctx, rec.OwnerID, rec.ID, store.UpdateRequest{
		NeedsResync: &needsResync,
		ChangedBy:   model.ChangedBySystem,
	}); uerr != nil {
		log.Printf("memory: could not flag %s for resync: %v", rec.ID, uerr)
	}
}

// StartResyncWorker repairs flagged records for the owner on a fixed
// interval until the context is cancelled.
func (m *Manager) StartResyncWorker(ctx context.Context, ownerID string, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := m.Resync(ctx, ownerID); err != nil {
					log.Printf("memory: background resync: %v", err)
				} else if n > 0 {
					log.Printf("memory: background resync repaired %d records", n)
				}
			}
		}
	}()
}

// Close releases the store and graph. The index owns no local resources.
func (m *Manager) Close(ctx context.Context) error {
	errStore := m.store.Close()
	errGraph := m.graph.Close(ctx)
	if errStore != nil {
		return errStore
	}
	return errGraph
}
