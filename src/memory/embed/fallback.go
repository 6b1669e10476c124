package embed

import (
	"context"
	"fmt"
	"log"
	"strings"
)

// FallbackEmbedder tries a primary embedding source and degrades to a
// secondary one when the primary errors or is unavailable. When both fail
// the result is ErrEmbeddingFailed; callers must not retry unbounded.
type FallbackEmbedder struct {
	primary   Embedder
	secondary Embedder
}

// NewFallbackEmbedder builds a two-source chain. secondary may be nil.
func NewFallbackEmbedder(primary, secondary Embedder) *FallbackEmbedder {
	return &FallbackEmbedder{primary: primary, secondary: secondary}
}

func (f *FallbackEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, _, err := f.EmbedTagged(ctx, text)
	return vec, err
}

// EmbedTagged reports which model actually produced the vector, so callers
// can stamp the right embedding_model_id on the record.
func (f *FallbackEmbedder) EmbedTagged(ctx context.Context, text string) ([]float32, string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, "", ErrNoContent
	}

	var primaryErr error
	if f.primary != nil {
		vec, err := f.primary.Embed(ctx, text)
		if err == nil && len(vec) > 0 {
			return vec, f.primary.ModelID(), nil
		}
		primaryErr = err
	}

	if f.secondary != nil {
		if primaryErr != nil {
			log.Printf("embed: primary %s failed (%v), trying secondary %s",
				f.primary.ModelID(), primaryErr, f.secondary.ModelID())
		}
		vec, err := f.secondary.Embed(ctx, text)
		if err == nil && len(vec) > 0 {
			return vec, f.secondary.ModelID(), nil
		}
		if primaryErr == nil {
			primaryErr = err
		}
	}

	if primaryErr != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrEmbeddingFailed, primaryErr)
	}
	return nil, "", ErrEmbeddingFailed
}

// ModelID reports the primary model; use EmbedTagged to learn which model
// served an individual call.
func (f *FallbackEmbedder) ModelID() string {
	if f.primary != nil {
		return f.primary.ModelID()
	}
	if f.secondary != nil {
		return f.secondary.ModelID()
	}
	return ""
}

var (
	_ Embedder       = (*FallbackEmbedder)(nil)
	_ TaggedEmbedder = (*FallbackEmbedder)(nil)
)
