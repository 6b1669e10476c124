package embed

import (
	"context"
	"errors"
	"log"
	"os"
	"strings"
)

// Embedder is a pluggable text-embedding provider. Implementations must be
// deterministic for a fixed model version and must reject empty input with
// ErrNoContent without calling the model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// ModelID names the model producing the vectors. Vectors from
	// different model ids must never be compared against each other.
	ModelID() string
}

// TaggedEmbedder is an optional upgrade implemented by embedders whose
// effective model can vary per call (e.g. a fallback chain). EmbedTagged
// reports the model id that actually produced the vector.
type TaggedEmbedder interface {
	EmbedTagged(ctx context.Context, text string) ([]float32, string, error)
}

var (
	// ErrNoContent is returned for empty or whitespace-only input.
	ErrNoContent = errors.New("no content to embed")
	// ErrEmbeddingFailed is returned once every configured embedding
	// source has been exhausted. Callers must treat it as "memory cannot
	// be created or searched this cycle", not as a retry trigger.
	ErrEmbeddingFailed = errors.New("all embedding sources failed")
	// ErrNotSupported is returned by providers that do not offer embeddings.
	ErrNotSupported = errors.New("embeddings not supported by this provider")
)

// Tag embeds text and reports the producing model id, honouring the
// TaggedEmbedder upgrade when available.
func Tag(ctx context.Context, e Embedder, text string) ([]float32, string, error) {
	if te, ok := e.(TaggedEmbedder); ok {
		return te.EmbedTagged(ctx, text)
	}
	vec, err := e.Embed(ctx, text)
	if err != nil {
		return nil, "", err
	}
	return vec, e.ModelID(), nil
}

// ---------- Dummy (deterministic, for tests and offline use) ----------

const dummyDimensions = 768

// DummyEmbedder produces deterministic, content-derived vectors with no
// model behind them. Useful for tests and as the terminal fallback.
type DummyEmbedder struct{}

func (DummyEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoContent
	}
	return DummyEmbedding(text), nil
}

func (DummyEmbedder) ModelID() string { return "dummy-768" }

// DummyEmbedding is exported for tests that need a raw vector.
func DummyEmbedding(text string) []float32 {
	vec := make([]float32, dummyDimensions)
	for i, ch := range []byte(text) {
		vec[(i*31+int(ch))%dummyDimensions] += float32(ch) / 255.0
	}
	return vec
}

// AutoEmbedder chooses a provider from env:
// ENGRAM_EMBED_PROVIDER=openai|google|gemini|ollama|voyage|fastembed
// ENGRAM_EMBED_MODEL=<model string>
// Unset or unusable configuration falls back to the dummy embedder.
func AutoEmbedder() Embedder {
	provider := strings.ToLower(strings.TrimSpace(os.Getenv("ENGRAM_EMBED_PROVIDER")))
	model := strings.TrimSpace(os.Getenv("ENGRAM_EMBED_MODEL"))

	switch provider {
	case "openai":
		if e, err := NewOpenAIEmbedder(model); err == nil {
			return e
		}
	case "google", "gemini":
		if e, err := NewGeminiEmbedder(context.Background(), model); err == nil {
			return e
		}
	case "ollama":
		if e, err := NewOllamaEmbedder(model); err == nil {
			return e
		}
	case "voyage":
		if e, err := NewVoyageEmbedder(model); err == nil {
			return e
		}
	case "fastembed":
		if e, err := NewFastEmbedder(context.Background(), defaultFastEmbedOptions()); err == nil {
			return e
		}
	}

	log.Printf("AutoEmbedder: falling back to DummyEmbedder")
	return DummyEmbedder{}
}
