package embed

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"
)

func TestCosineNormalization(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, 0.0},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0.5},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
		{"length mismatch", []float32{1, 2}, []float32{1, 2, 3}, 0.0},
		{"empty", nil, nil, 0.0},
	}
	for _, tc := range cases {
		if got := Cosine(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%s: Cosine = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestCosineStaysInUnitRange(t *testing.T) {
	a := []float32{0.1, -0.7, 0.3, 0.9}
	b := []float32{-0.5, 0.2, 0.8, -0.1}
	got := Cosine(a, b)
	if got < 0 || got > 1 {
		t.Fatalf("Cosine out of [0,1]: %v", got)
	}
}

func TestDummyEmbedderDeterministic(t *testing.T) {
	e := DummyEmbedder{}
	first, err := e.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	second, err := e.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(first) != 768 {
		t.Fatalf("expected 768 dims, got %d", len(first))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("embedding not deterministic at dim %d", i)
		}
	}

	if _, err := e.Embed(context.Background(), "   "); !errors.Is(err, ErrNoContent) {
		t.Fatalf("blank input should return ErrNoContent, got %v", err)
	}
}

type brokenEmbedder struct{}

func (brokenEmbedder) Embed(context.Context, string) ([]float32, error) {
	return nil, errors.New("provider down")
}

func (brokenEmbedder) ModelID() string { return "broken" }

func TestFallbackEmbedder(t *testing.T) {
	f := NewFallbackEmbedder(brokenEmbedder{}, DummyEmbedder{})

	vec, modelID, err := f.EmbedTagged(context.Background(), "resilience")
	if err != nil {
		t.Fatalf("fallback embed: %v", err)
	}
	if modelID != "dummy-768" {
		t.Fatalf("model id should name the serving model, got %q", modelID)
	}
	if len(vec) != 768 {
		t.Fatalf("unexpected vector length %d", len(vec))
	}

	// Both sources failing surfaces ErrEmbeddingFailed.
	dead := NewFallbackEmbedder(brokenEmbedder{}, brokenEmbedder{})
	if _, _, err := dead.EmbedTagged(context.Background(), "resilience"); !errors.Is(err, ErrEmbeddingFailed) {
		t.Fatalf("expected ErrEmbeddingFailed, got %v", err)
	}
}

func TestTagHelper(t *testing.T) {
	// Plain embedders are tagged with their own model id.
	vec, modelID, err := Tag(context.Background(), DummyEmbedder{}, "some text")
	if err != nil {
		t.Fatalf("tag: %v", err)
	}
	if modelID != "dummy-768" || len(vec) == 0 {
		t.Fatalf("unexpected tag result %q (%d dims)", modelID, len(vec))
	}

	// Tagged embedders report the model that actually served.
	f := NewFallbackEmbedder(brokenEmbedder{}, DummyEmbedder{})
	_, modelID, err = Tag(context.Background(), f, "some text")
	if err != nil {
		t.Fatalf("tag: %v", err)
	}
	if modelID != "dummy-768" {
		t.Fatalf("tag should surface the fallback model, got %q", modelID)
	}
}

// flakyEmbedder fails on specific inputs.
type flakyEmbedder struct{}

func (flakyEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if text == "poison" {
		return nil, errors.New("boom")
	}
	return DummyEmbedding(text), nil
}

func (flakyEmbedder) ModelID() string { return "flaky" }

func TestEmbedBatchPreservesOrderAndToleratesFailures(t *testing.T) {
	texts := make([]string, 0, 9)
	for i := 0; i < 8; i++ {
		texts = append(texts, fmt.Sprintf("text %d", i))
	}
	texts = append(texts, "poison")

	vectors := EmbedBatch(context.Background(), flakyEmbedder{}, texts, 3)
	if len(vectors) != len(texts) {
		t.Fatalf("expected %d results, got %d", len(texts), len(vectors))
	}
	for i := 0; i < 8; i++ {
		want := DummyEmbedding(texts[i])
		if len(vectors[i]) != len(want) || vectors[i][0] != want[0] {
			t.Fatalf("result %d out of order", i)
		}
	}
	if vectors[8] != nil {
		t.Fatalf("failed item should yield nil, got %d dims", len(vectors[8]))
	}
}

type countingEmbedder struct {
	calls int
}

func (c *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	c.calls++
	return DummyEmbedding(text), nil
}

func (c *countingEmbedder) ModelID() string { return "counting" }

func TestCachedEmbedder(t *testing.T) {
	inner := &countingEmbedder{}
	cached := NewCachedEmbedder(inner, 16, time.Minute)

	for i := 0; i < 3; i++ {
		if _, err := cached.Embed(context.Background(), "repeated"); err != nil {
			t.Fatalf("embed: %v", err)
		}
	}
	if inner.calls != 1 {
		t.Fatalf("expected one upstream call, got %d", inner.calls)
	}
	if _, err := cached.Embed(context.Background(), "different"); err != nil {
		t.Fatalf("embed: %v", err)
	}
	if inner.calls != 2 {
		t.Fatalf("expected a miss for new text, got %d calls", inner.calls)
	}
}
