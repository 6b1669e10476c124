package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Entry holds a cached value with its expiration.
type Entry[V any] struct {
	Value     V
	ExpiresAt time.Time
}

// LRUCache is a thread-safe LRU cache with TTL support. It caches the two
// expensive call classes in the memory subsystem: generated text keyed by
// prompt hash, and embedding vectors keyed by input text hash.
type LRUCache[V any] struct {
	mu       sync.RWMutex
	capacity int
	ttl      time.Duration
	items    map[string]*list.Element
	lru      *list.List
}

type lruEntry[V any] struct {
	key   string
	value Entry[V]
}

// NewLRUCache creates an LRU cache with the given capacity and TTL.
func NewLRUCache[V any](capacity int, ttl time.Duration) *LRUCache[V] {
	if capacity <= 0 {
		capacity = 128
	}
	return &LRUCache[V]{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*list.Element, capacity),
		lru:      list.New(),
	}
}

// Get retrieves a value from the cache.
func (c *LRUCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}

	ent := elem.Value.(*lruEntry[V])
	if time.Now().After(ent.value.ExpiresAt) {
		c.lru.Remove(elem)
		delete(c.items, key)
		return zero, false
	}

	c.lru.MoveToFront(elem)
	return ent.value.Value, true
}

// Set adds or updates a value in the cache.
func (c *LRUCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := time.Now().Add(c.ttl)

	if elem, ok := c.items[key]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*lruEntry[V]).value = Entry[V]{Value: value, ExpiresAt: expiresAt}
		return
	}

	ent := &lruEntry[V]{key: key, value: Entry[V]{Value: value, ExpiresAt: expiresAt}}
	c.items[key] = c.lru.PushFront(ent)

	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		if oldest != nil {
			c.lru.Remove(oldest)
			delete(c.items, oldest.Value.(*lruEntry[V]).key)
		}
	}
}

// Clear removes all entries from the cache.
func (c *LRUCache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element, c.capacity)
	c.lru.Init()
}

// Len returns the number of items in the cache.
func (c *LRUCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lru.Len()
}

// HashKey derives a stable cache key from an input string.
func HashKey(input string) string {
	h := sha256.Sum256([]byte(input))
	return hex.EncodeToString(h[:])
}
