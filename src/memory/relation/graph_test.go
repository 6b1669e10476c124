package relation

import (
	"context"
	"testing"

	"github.com/engram-ai/engram/src/memory/model"
)

func TestInMemoryGraphLinkAndQuery(t *testing.T) {
	g := NewInMemoryGraph()
	ctx := context.Background()

	edges := []model.Relationship{
		{FromID: "new", ToID: "old", Kind: model.RelationSupersedes, Strength: 0.9},
		{FromID: "new", ToID: "ctx", Kind: model.RelationDerivedFrom, Strength: 0.5},
		{FromID: "other", ToID: "old", Kind: model.RelationContradicts, Strength: 0.7},
	}
	for _, e := range edges {
		if err := g.Link(ctx, e); err != nil {
			t.Fatalf("link %+v: %v", e, err)
		}
	}

	out, err := g.From(ctx, "new", "")
	if err != nil {
		t.Fatalf("from: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 outgoing edges, got %d", len(out))
	}

	out, err = g.From(ctx, "new", model.RelationSupersedes)
	if err != nil {
		t.Fatalf("from: %v", err)
	}
	if len(out) != 1 || out[0].ToID != "old" {
		t.Fatalf("kind filter failed: %+v", out)
	}

	out, err = g.To(ctx, "old", "")
	if err != nil {
		t.Fatalf("to: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 incoming edges on old, got %d", len(out))
	}
}

func TestInMemoryGraphLinkReplacesStrength(t *testing.T) {
	g := NewInMemoryGraph()
	ctx := context.Background()

	for _, strength := range []float64{0.3, 0.8} {
		err := g.Link(ctx, model.Relationship{
			FromID: "a", ToID: "b", Kind: model.RelationRelatedTo, Strength: strength,
		})
		if err != nil {
			t.Fatalf("link: %v", err)
		}
	}
	out, _ := g.From(ctx, "a", "")
	if len(out) != 1 || out[0].Strength != 0.8 {
		t.Fatalf("relink should replace strength, got %+v", out)
	}
}

func TestInMemoryGraphValidation(t *testing.T) {
	g := NewInMemoryGraph()
	ctx := context.Background()

	bad := []model.Relationship{
		{FromID: "", ToID: "b", Kind: model.RelationRelatedTo},
		{FromID: "a", ToID: "a", Kind: model.RelationRelatedTo},
		{FromID: "a", ToID: "b", Kind: "friends_with"},
		{FromID: "a", ToID: "b", Kind: model.RelationRelatedTo, Strength: 1.2},
	}
	for _, e := range bad {
		if err := g.Link(ctx, e); err == nil {
			t.Fatalf("expected validation failure for %+v", e)
		}
	}
}

func TestInMemoryGraphRemove(t *testing.T) {
	g := NewInMemoryGraph()
	ctx := context.Background()

	_ = g.Link(ctx, model.Relationship{FromID: "a", ToID: "b", Kind: model.RelationRelatedTo, Strength: 0.5})
	_ = g.Link(ctx, model.Relationship{FromID: "c", ToID: "a", Kind: model.RelationPartOf, Strength: 0.5})
	_ = g.Link(ctx, model.Relationship{FromID: "c", ToID: "b", Kind: model.RelationPartOf, Strength: 0.5})

	if err := g.Remove(ctx, "a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if out, _ := g.From(ctx, "a", ""); len(out) != 0 {
		t.Fatalf("outgoing edges survived removal: %+v", out)
	}
	if out, _ := g.To(ctx, "a", ""); len(out) != 0 {
		t.Fatalf("incoming edges survived removal: %+v", out)
	}
	if out, _ := g.From(ctx, "c", ""); len(out) != 1 || out[0].ToID != "b" {
		t.Fatalf("unrelated edge lost: %+v", out)
	}
}
