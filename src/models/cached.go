package models

import (
	"context"
	"fmt"
	"time"

	"github.com/engram-ai/engram/src/cache"
)

// CachedLLM memoizes completions so repeated extraction prompts (retries,
// replayed conversations) do not burn provider calls.
type CachedLLM struct {
	inner Generator
	cache *cache.LRUCache[string]
}

func NewCachedLLM(inner Generator, capacity int, ttl time.Duration) *CachedLLM {
	return &CachedLLM{
		inner: inner,
		cache: cache.NewLRUCache[string](capacity, ttl),
	}
}

func (c *CachedLLM) Generate(ctx context.Context, req Request) (string, error) {
	key := cache.HashKey(fmt.Sprintf("%s\x00%s\x00%.3f\x00%d",
		c.inner.Name(), req.Prompt, req.Temperature, req.MaxTokens))
	if out, ok := c.cache.Get(key); ok {
		return out, nil
	}
	out, err := c.inner.Generate(ctx, req)
	if err != nil {
		return "", err
	}
	c.cache.Set(key, out)
	return out, nil
}

func (c *CachedLLM) Name() string { return c.inner.Name() }

var _ Generator = (*CachedLLM)(nil)
