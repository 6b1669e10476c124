package embed

import (
	"context"
	"log"
	"strings"

	"github.com/engram-ai/engram/src/concurrent"
)

// EmbedBatch embeds texts concurrently with bounded parallelism. The result
// preserves input order; an individual failure degrades to a nil vector at
// that position and never aborts the batch.
func EmbedBatch(ctx context.Context, e Embedder, texts []string, maxConcurrency int) [][]float32 {
	if len(texts) == 0 {
		return nil
	}

	results, errs := concurrent.ParallelMap(ctx, texts, func(text string) ([]float32, error) {
		if strings.TrimSpace(text) == "" {
			return nil, ErrNoContent
		}
		return e.Embed(ctx, text)
	}, maxConcurrency)

	for i, err := range errs {
		if err != nil {
			log.Printf("embed: batch item %d failed: %v", i, err)
			results[i] = nil
		}
	}
	return results
}
