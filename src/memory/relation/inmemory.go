package relation

import (
	"context"
	"sort"
	"sync"

	"github.com/engram-ai/engram/src/memory/model"
)

type edgeKey struct {
	from string
	to   string
	kind model.RelationKind
}

// InMemoryGraph keeps edges in a map. Suitable for tests and single
// process runs.
type InMemoryGraph struct {
	mu    sync.RWMutex
	edges map[edgeKey]float64
}

func NewInMemoryGraph() *InMemoryGraph {
	return &InMemoryGraph{edges: make(map[edgeKey]float64)}
}

func (g *InMemoryGraph) Link(_ context.Context, rel model.Relationship) error {
	if err := rel.Validate(); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.edges[edgeKey{rel.FromID, rel.ToID, rel.Kind}] = rel.Strength
	return nil
}

func (g *InMemoryGraph) Unlink(_ context.Context, fromID, toID string, kind model.RelationKind) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.edges, edgeKey{fromID, toID, kind})
	return nil
}

func (g *InMemoryGraph) From(_ context.Context, id string, kind model.RelationKind) ([]model.Relationship, error) {
	return g.collect(func(k edgeKey) bool {
		return k.from == id && (kind == "" || k.kind == kind)
	}), nil
}

func (g *InMemoryGraph) To(_ context.Context, id string, kind model.RelationKind) ([]model.Relationship, error) {
	return g.collect(func(k edgeKey) bool {
		return k.to == id && (kind == "" || k.kind == kind)
	}), nil
}

func (g *InMemoryGraph) Remove(_ context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for k := range g.edges {
		if k.from == id || k.to == id {
			delete(g.edges, k)
		}
	}
	return nil
}

func (g *InMemoryGraph) Close(context.Context) error { return nil }

func (g *InMemoryGraph) collect(match func(edgeKey) bool) []model.Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var out []model.Relationship
	for k, strength := range g.edges {
		if match(k) {
			out = append(out, model.Relationship{
				FromID: k.from, ToID: k.to, Kind: k.kind, Strength: strength,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FromID != out[j].FromID {
			return out[i].FromID < out[j].FromID
		}
		if out[i].ToID != out[j].ToID {
			return out[i].ToID < out[j].ToID
		}
		return out[i].Kind < out[j].Kind
	})
	return out
}

var _ Graph = (*InMemoryGraph)(nil)
