// Package extract turns raw conversation turns into persisted memories.
// An LLM proposes candidates, each candidate is embedded and compared
// against its nearest stored neighbors, and the resolver decides whether
// it becomes a new record, an update, or nothing.
package extract

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/engram-ai/engram/src/concurrent"
	"github.com/engram-ai/engram/src/memory/embed"
	"github.com/engram-ai/engram/src/memory/index"
	"github.com/engram-ai/engram/src/memory/model"
	"github.com/engram-ai/engram/src/memory/resolve"
	"github.com/engram-ai/engram/src/memory/store"
	"github.com/engram-ai/engram/src/models"
)

// Turn is one message of the conversation under extraction.
type Turn struct {
	Role    string
	Content string
}

// Result counts what happened to the extracted candidates.
type Result struct {
	Extracted int
	Created   int
	Updated   int
	Skipped   int
	Failed    int
}

const (
	// neighborK bounds the store lookup per candidate.
	neighborK = 5
	// neighborFloor filters out vector hits too weak to be conflicts.
	neighborFloor = 0.7
)

// ErrSyncDivergence marks a committed record whose index entry could not be
// written. The record stays readable and is flagged for resync.
var ErrSyncDivergence = errors.New("extract: index out of sync with store")

const extractionPrompt = `You maintain long-term memory for a personal assistant.
Read the conversation below and extract durable facts about the user worth
remembering across sessions. Ignore small talk and one-off details.

Respond with a JSON array only. Each element:
  {"content": "...", "type": "...", "category": "...", "importance": 0.0, "confidence": 0.0, "tags": ["..."]}

type is one of: personal_info, preference, fact, task, goal, relationship,
conversation_summary, skill. importance and confidence are in [0, 1].
Return [] when nothing is worth keeping.

Conversation:
%s`

// Pipeline wires the generator, embedder, store, and index together.
type Pipeline struct {
	Store     store.Store
	Index     index.VectorIndex
	Embedder  embed.Embedder
	Generator models.Generator
	Locks     *concurrent.KeyedMutex
	Resolver  resolve.Options
}

func NewPipeline(st store.Store, idx index.VectorIndex, emb embed.Embedder, gen models.Generator, locks *concurrent.KeyedMutex) *Pipeline {
	if locks == nil {
		locks = concurrent.NewKeyedMutex()
	}
	return &Pipeline{
		Store:     st,
		Index:     idx,
		Embedder:  emb,
		Generator: gen,
		Locks:     locks,
		Resolver:  resolve.DefaultOptions(),
	}
}

// ProcessConversation extracts candidates from the turns and commits them
// for the owner. Per-candidate failures are logged and counted, not
// returned: one bad candidate must not abort the rest of the batch.
func (p *Pipeline) ProcessConversation(ctx context.Context, ownerID string, turns []Turn) (Result, error) {
	var res Result
	if ownerID == "" {
		return res, store.ErrUnauthorized
	}
	if len(turns) == 0 {
		return res, nil
	}

	completion, err := p.Generator.Generate(ctx, models.Request{
		Prompt:      fmt.Sprintf(extractionPrompt, renderTurns(turns)),
		Temperature: 0.2,
	})
	if err != nil {
		return res, fmt.Errorf("extraction completion: %w", err)
	}

	candidates := ParseCandidates(completion)
	res.Extracted = len(candidates)
	for _, cand := range candidates {
		decision, _, err := p.CommitCandidate(ctx, ownerID, cand, model.SourceConversation)
		if err != nil {
			res.Failed++
			log.Printf("extract: candidate %q failed: %v", snippet(cand.Content), err)
			continue
		}
		switch decision {
		case resolve.DecisionCreate:
			res.Created++
		case resolve.DecisionUpdate:
			res.Updated++
		case resolve.DecisionSkip:
			res.Skipped++
		}
	}
	return res, nil
}

// CommitCandidate resolves one candidate against the owner's existing
// memories and applies the outcome. It returns the decision made and the
// record it produced or rewrote; a skip returns the retained record.
func (p *Pipeline) CommitCandidate(ctx context.Context, ownerID string, cand resolve.Candidate, source model.SourceType) (resolve.Decision, model.MemoryRecord, error) {
	vector, modelID, err := embed.Tag(ctx, p.Embedder, cand.Content)
	if err != nil {
		return "", model.MemoryRecord{}, fmt.Errorf("embed: %w", err)
	}

	neighbors, err := p.neighbors(ctx, ownerID, cand, vector)
	if err != nil {
		return "", model.MemoryRecord{}, fmt.Errorf("neighbor query: %w", err)
	}

	resolution := resolve.Resolve(cand, neighbors, p.Resolver)
	switch resolution.Decision {
	case resolve.DecisionSkip:
		return resolve.DecisionSkip, *resolution.Target, nil

	case resolve.DecisionCreate:
		rec := model.MemoryRecord{
			ID:               uuid.NewString(),
			OwnerID:          ownerID,
			Content:          cand.Content,
			Type:             cand.Type,
			Category:         cand.Category,
			Tags:             cand.Tags,
			Embedding:        vector,
			EmbeddingModelID: modelID,
			Importance:       cand.Importance,
			Confidence:       cand.Confidence,
			Source:           source,
		}
		p.Locks.Lock(rec.ID)
		defer p.Locks.Unlock(rec.ID)
		if err := p.Store.Create(ctx, &rec); err != nil {
			return "", model.MemoryRecord{}, fmt.Errorf("create: %w", err)
		}
		p.syncIndex(ctx, rec)
		return resolve.DecisionCreate, rec, nil

	case resolve.DecisionUpdate:
		target := resolution.Target
		p.Locks.Lock(target.ID)
		defer p.Locks.Unlock(target.ID)
		updated, err := p.Store.Update(ctx, ownerID, target.ID, store.UpdateRequest{
			Content:          &cand.Content,
			Tags:             cand.Tags,
			Importance:       &cand.Importance,
			Confidence:       &cand.Confidence,
			Embedding:        vector,
			EmbeddingModelID: modelID,
			Reason:           resolution.Reason,
			ChangedBy:        model.ChangedByAI,
		})
		if err != nil {
			return "", model.MemoryRecord{}, fmt.Errorf("update %s: %w", target.ID, err)
		}
		p.syncIndex(ctx, updated)
		return resolve.DecisionUpdate, updated, nil
	}
	return "", model.MemoryRecord{}, fmt.Errorf("unknown decision %q", resolution.Decision)
}

// neighbors queries the index for same-owner, same-type records near the
// candidate and hydrates the hits from the store. Hits that vanished from
// the store (index drift) are logged and dropped.
func (p *Pipeline) neighbors(ctx context.Context, ownerID string, cand resolve.Candidate, vector []float32) ([]resolve.Neighbor, error) {
	hits, err := p.Index.Query(ctx, vector, neighborK, index.Filter{
		index.MetaOwnerID:    ownerID,
		index.MetaMemoryType: string(cand.Type),
	})
	if err != nil {
		return nil, err
	}

	neighbors := make([]resolve.Neighbor, 0, len(hits))
	for _, hit := range hits {
		if hit.Similarity < neighborFloor {
			continue
		}
		rec, err := p.Store.Get(ctx, ownerID, hit.ID)
		if err != nil {
			log.Printf("extract: index hit %s missing from store: %v", hit.ID, err)
			continue
		}
		if !rec.Active {
			continue
		}
		neighbors = append(neighbors, resolve.Neighbor{Record: rec, Similarity: hit.Similarity})
	}
	return neighbors, nil
}

// syncIndex upserts the record's vector. An index failure never rolls the
// store back; the record is flagged for resync instead.
func (p *Pipeline) syncIndex(ctx context.Context, rec model.MemoryRecord) {
	err := p.Index.Upsert(ctx, index.Entry{
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
	log.Printf("extract: index upsert for %s failed, flagging for resync: %v", rec.ID, err)
	needsResync := true
	if _, uerr := p.Store.Update(ctx, rec.OwnerID, rec.ID, store.UpdateRequest{
		NeedsResync: &needsResync,
		ChangedBy:   model.ChangedBySystem,
	}); uerr != nil {
		log.Printf("extract: could not flag %s for resync: %v", rec.ID, uerr)
	}
}

func renderTurns(turns []Turn) string {
	var b strings.Builder
	for _, turn := range turns {
		role := turn.Role
		if role == "" {
			role = "user"
		}
		fmt.Fprintf(&b, "%s: %s\n", role, strings.TrimSpace(turn.Content))
	}
	return b.String()
}

func snippet(s string) string {
	if len(s) > 48 {
		return s[:48] + "..."
	}
	return s
}
