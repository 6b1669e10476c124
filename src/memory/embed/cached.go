package embed

import (
	"context"
	"time"

	"github.com/engram-ai/engram/src/cache"
)

// CachedEmbedder wraps an Embedder and memoizes vectors by input hash.
// Safe because embeddings are deterministic for a fixed model version.
type CachedEmbedder struct {
	inner Embedder
	cache *cache.LRUCache[[]float32]
}

// NewCachedEmbedder wraps inner with an LRU of the given size and TTL.
func NewCachedEmbedder(inner Embedder, size int, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{
		inner: inner,
		cache: cache.NewLRUCache[[]float32](size, ttl),
	}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	// Key on model id too: a swapped-out inner model must not serve
	// another model's vectors.
	key := cache.HashKey(c.inner.ModelID() + "\x00" + text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, vec)
	return vec, nil
}

func (c *CachedEmbedder) ModelID() string { return c.inner.ModelID() }

var _ Embedder = (*CachedEmbedder)(nil)
