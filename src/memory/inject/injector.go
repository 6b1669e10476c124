// Package inject renders relevant memories into a context block for the
// assistant's prompt.
package inject

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/engram-ai/engram/src/memory/embed"
	"github.com/engram-ai/engram/src/memory/index"
	"github.com/engram-ai/engram/src/memory/model"
	"github.com/engram-ai/engram/src/memory/store"
)

// relevanceFloor is the minimum similarity for a retrieved memory to be
// worth prompt space.
const relevanceFloor = 0.6

const defaultMaxItems = 10

// Injector retrieves and formats memories for a query.
type Injector struct {
	Store    store.Store
	Index    index.VectorIndex
	Embedder embed.Embedder
}

func NewInjector(st store.Store, idx index.VectorIndex, emb embed.Embedder) *Injector {
	return &Injector{Store: st, Index: idx, Embedder: emb}
}

// BuildContext assembles the memory block for a query. Pinned memories are
// always included and consume the budget first; the remainder of maxItems
// is filled with vector hits at or above the relevance floor. A failed
// query embedding degrades to the pinned-only block rather than erroring.
// Every included memory has its access counters bumped. Returns "" when
// nothing qualifies.
func (inj *Injector) BuildContext(ctx context.Context, ownerID, query string, maxItems int, typeFilter model.MemoryType) (string, error) {
	if ownerID == "" {
		return "", store.ErrUnauthorized
	}
	if maxItems <= 0 {
		maxItems = defaultMaxItems
	}

	pinned, err := inj.Store.Pinned(ctx, ownerID)
	if err != nil {
		return "", fmt.Errorf("pinned lookup: %w", err)
	}
	if typeFilter != "" {
		pinned = filterByType(pinned, typeFilter)
	}

	included := make([]model.MemoryRecord, 0, len(pinned)+maxItems)
	seen := make(map[string]bool, len(pinned))
	for _, rec := range pinned {
		included = append(included, rec)
		seen[rec.ID] = true
	}

	budget := maxItems - len(pinned)
	if budget < 0 {
		budget = 0
	}
	included = append(included, inj.retrieve(ctx, ownerID, query, budget, typeFilter, seen)...)
	if len(included) == 0 {
		return "", nil
	}

	now := time.Now().UTC()
	ids := make([]string, len(included))
	for i, rec := range included {
		ids[i] = rec.ID
	}
	if err := inj.Store.Touch(ctx, ownerID, ids, now); err != nil {
		log.Printf("inject: touch failed for %d memories: %v", len(ids), err)
	}

	return render(included, now), nil
}

// retrieve fills the similarity budget. Errors here degrade to an empty
// contribution so the pinned block still renders.
func (inj *Injector) retrieve(ctx context.Context, ownerID, query string, budget int, typeFilter model.MemoryType, seen map[string]bool) []model.MemoryRecord {
	if strings.TrimSpace(query) == "" || budget <= 0 {
		return nil
	}

	vector, err := inj.Embedder.Embed(ctx, query)
	if err != nil {
		log.Printf("inject: query embedding failed, serving pinned only: %v", err)
		return nil
	}

	filter := index.Filter{index.MetaOwnerID: ownerID}
	if typeFilter != "" {
		filter[index.MetaMemoryType] = string(typeFilter)
	}
	// Oversample so hits already pinned do not eat the budget.
	hits, err := inj.Index.Query(ctx, vector, budget+len(seen), filter)
	if err != nil {
		log.Printf("inject: vector query failed, serving pinned only: %v", err)
		return nil
	}

	var out []model.MemoryRecord
	for _, hit := range hits {
		if len(out) >= budget {
			break
		}
		if hit.Similarity < relevanceFloor || seen[hit.ID] {
			continue
		}
		rec, err := inj.Store.Get(ctx, ownerID, hit.ID)
		if err != nil || !rec.Active {
			continue
		}
		seen[hit.ID] = true
		out = append(out, rec)
	}
	return out
}

func filterByType(records []model.MemoryRecord, typ model.MemoryType) []model.MemoryRecord {
	out := records[:0]
	for _, rec := range records {
		if rec.Type == typ {
			out = append(out, rec)
		}
	}
	return out
}

// render groups memories under type headings, groups in their canonical
// order. Within a group the decayed effective importance at render time
// decides the order, not the stored importance: stale unaccessed facts
// sink below fresh ones. The two orders coincide for recently created,
// recently accessed records.
func render(records []model.MemoryRecord, now time.Time) string {
	groups := make(map[model.MemoryType][]model.MemoryRecord)
	for _, rec := range records {
		groups[rec.Type] = append(groups[rec.Type], rec)
	}

	types := model.MemoryTypeOrder()
	var extra []model.MemoryType
	for typ := range groups {
		if !typ.Valid() {
			extra = append(extra, typ)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	types = append(types, extra...)

	var b strings.Builder
	b.WriteString("Relevant memories about the user:\n")
	for _, typ := range types {
		group, ok := groups[typ]
		if !ok {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			si, sj := store.EffectiveImportance(group[i], now), store.EffectiveImportance(group[j], now)
			if si != sj {
				return si > sj
			}
			return group[i].ID < group[j].ID
		})
		fmt.Fprintf(&b, "\n%s:\n", typ.Label())
		for _, rec := range group {
			b.WriteString("- ")
			b.WriteString(rec.Content)
			if rec.Pinned {
				b.WriteString(" (pinned)")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}
