package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/engram-ai/engram/src/concurrent"
	"github.com/engram-ai/engram/src/memory/embed"
	"github.com/engram-ai/engram/src/memory/index"
	"github.com/engram-ai/engram/src/memory/model"
	"github.com/engram-ai/engram/src/memory/store"
	"github.com/engram-ai/engram/src/models"
)

// mappedEmbedder returns fixed vectors per text so tests can steer
// similarity into specific resolver bands.
type mappedEmbedder struct {
	vectors map[string][]float32
}

func (m *mappedEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if vec, ok := m.vectors[text]; ok {
		return vec, nil
	}
	return embed.DummyEmbedding(text), nil
}

func (m *mappedEmbedder) ModelID() string { return "mapped" }

var _ embed.Embedder = (*mappedEmbedder)(nil)

func newPipeline(t *testing.T, completion string, emb embed.Embedder) (*Pipeline, *store.InMemoryStore, *index.InMemoryIndex) {
	t.Helper()
	st := store.NewInMemoryStore()
	idx := index.NewInMemoryIndex()
	p := NewPipeline(st, idx, emb, models.NewDummyLLM(completion), concurrent.NewKeyedMutex())
	return p, st, idx
}

func seed(t *testing.T, p *Pipeline, ownerID, content string, typ model.MemoryType, importance float64) model.MemoryRecord {
	t.Helper()
	vector, _, err := embed.Tag(context.Background(), p.Embedder, content)
	if err != nil {
		t.Fatalf("seed embed: %v", err)
	}
	rec := model.MemoryRecord{
		OwnerID:    ownerID,
		Content:    content,
		Type:       typ,
		Embedding:  vector,
		Importance: importance,
	}
	if err := p.Store.Create(context.Background(), &rec); err != nil {
		t.Fatalf("seed create: %v", err)
	}
	err = p.Index.Upsert(context.Background(), index.Entry{
		ID:     rec.ID,
		Vector: vector,
		Text:   content,
		Metadata: map[string]string{
			index.MetaOwnerID:    ownerID,
			index.MetaMemoryType: string(typ),
		},
	})
	if err != nil {
		t.Fatalf("seed upsert: %v", err)
	}
	return rec
}

func TestProcessConversationCreatesNewMemory(t *testing.T) {
	completion := `[{"content": "favorite dish is pasta carbonara", "type": "preference", "importance": 0.6, "confidence": 0.9, "tags": ["Food"]}]`
	p, st, idx := newPipeline(t, completion, embed.DummyEmbedder{})

	res, err := p.ProcessConversation(context.Background(), "alice", []Turn{
		{Role: "user", Content: "I always order carbonara, it's my favorite"},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Extracted != 1 || res.Created != 1 || res.Skipped != 0 || res.Failed != 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	records, err := st.List(context.Background(), "alice", store.ListFilter{}, store.OrderCreatedDesc)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one stored record, got %d", len(records))
	}
	rec := records[0]
	if rec.Type != model.TypePreference || rec.Source != model.SourceConversation {
		t.Fatalf("unexpected record %+v", rec)
	}
	if len(rec.Tags) != 1 || rec.Tags[0] != "food" {
		t.Fatalf("tags not normalized: %v", rec.Tags)
	}
	if n, _ := idx.Count(context.Background()); n != 1 {
		t.Fatalf("expected the vector indexed, got %d entries", n)
	}
}

func TestProcessConversationSkipsRestatement(t *testing.T) {
	const dish = "favorite dish is pasta carbonara"
	completion := `[{"content": "` + dish + `", "type": "preference", "importance": 0.9}]`
	p, st, _ := newPipeline(t, completion, embed.DummyEmbedder{})
	seed(t, p, "alice", dish, model.TypePreference, 0.4)

	res, err := p.ProcessConversation(context.Background(), "alice", []Turn{
		{Role: "user", Content: "as I said, carbonara is my favorite"},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Skipped != 1 || res.Created != 0 || res.Updated != 0 {
		t.Fatalf("expected identical content skipped, got %+v", res)
	}

	records, _ := st.List(context.Background(), "alice", store.ListFilter{}, store.OrderCreatedDesc)
	if len(records) != 1 {
		t.Fatalf("duplicate was stored anyway: %d records", len(records))
	}
}

func TestProcessConversationUpdatesConflict(t *testing.T) {
	// Unit vectors with cosine 0.8, which normalizes to 0.9: between the
	// update and duplicate thresholds.
	emb := &mappedEmbedder{vectors: map[string][]float32{
		"project deadline is Monday":       {1, 0},
		"project deadline moved to Friday": {0.8, 0.6},
	}}
	completion := `[{"content": "project deadline moved to Friday", "type": "task", "importance": 0.9, "confidence": 0.9}]`
	p, st, _ := newPipeline(t, completion, emb)
	target := seed(t, p, "alice", "project deadline is Monday", model.TypeTask, 0.5)

	res, err := p.ProcessConversation(context.Background(), "alice", []Turn{
		{Role: "user", Content: "heads up, the deadline slipped to Friday"},
	})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Updated != 1 || res.Created != 0 {
		t.Fatalf("expected in-place update, got %+v", res)
	}

	rec, err := st.Get(context.Background(), "alice", target.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Content != "project deadline moved to Friday" {
		t.Fatalf("content not rewritten: %q", rec.Content)
	}
	versions, err := st.Versions(context.Background(), "alice", target.ID)
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(versions) != 1 || versions[0].Content != "project deadline is Monday" {
		t.Fatalf("prior content not snapshotted: %+v", versions)
	}
}

func TestProcessConversationScopedToOwner(t *testing.T) {
	const dish = "favorite dish is pasta carbonara"
	completion := `[{"content": "` + dish + `", "type": "preference", "importance": 0.5}]`
	p, st, _ := newPipeline(t, completion, embed.DummyEmbedder{})
	seed(t, p, "bob", dish, model.TypePreference, 0.5)

	res, err := p.ProcessConversation(context.Background(), "alice", []Turn{{Content: "carbonara!"}})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Created != 1 {
		t.Fatalf("another owner's memory should not suppress creation: %+v", res)
	}
	aliceRecords, _ := st.List(context.Background(), "alice", store.ListFilter{}, store.OrderCreatedDesc)
	if len(aliceRecords) != 1 {
		t.Fatalf("expected alice's own record, got %d", len(aliceRecords))
	}
}

// failingIndex rejects writes to exercise the resync path.
type failingIndex struct {
	index.InMemoryIndex
}

func (f *failingIndex) Upsert(context.Context, index.Entry) error {
	return errors.New("index unavailable")
}

func TestIndexFailureFlagsResync(t *testing.T) {
	completion := `[{"content": "speaks fluent Spanish", "type": "skill", "importance": 0.7}]`
	st := store.NewInMemoryStore()
	p := NewPipeline(st, &failingIndex{}, embed.DummyEmbedder{}, models.NewDummyLLM(completion), nil)

	res, err := p.ProcessConversation(context.Background(), "alice", []Turn{{Content: "hablo español"}})
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if res.Created != 1 || res.Failed != 0 {
		t.Fatalf("index failure must not fail the candidate: %+v", res)
	}

	needsResync := true
	flagged, err := st.List(context.Background(), "alice", store.ListFilter{NeedsResync: &needsResync}, store.OrderCreatedDesc)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(flagged) != 1 {
		t.Fatalf("expected the record flagged for resync, got %d", len(flagged))
	}
}

func TestProcessConversationEmptyInputs(t *testing.T) {
	p, _, _ := newPipeline(t, "[]", embed.DummyEmbedder{})

	res, err := p.ProcessConversation(context.Background(), "alice", nil)
	if err != nil || res.Extracted != 0 {
		t.Fatalf("empty conversation should no-op, got %+v err %v", res, err)
	}

	if _, err := p.ProcessConversation(context.Background(), "", []Turn{{Content: "hi"}}); !errors.Is(err, store.ErrUnauthorized) {
		t.Fatalf("missing owner should be rejected, got %v", err)
	}
}
