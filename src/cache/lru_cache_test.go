package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestLRUCacheEvictsOldest(t *testing.T) {
	c := NewLRUCache[int](3, time.Minute)
	for i := 0; i < 4; i++ {
		c.Set(fmt.Sprintf("k%d", i), i)
	}
	if c.Len() != 3 {
		t.Fatalf("capacity not enforced: %d", c.Len())
	}
	if _, ok := c.Get("k0"); ok {
		t.Fatalf("oldest entry should have been evicted")
	}
	for i := 1; i < 4; i++ {
		if v, ok := c.Get(fmt.Sprintf("k%d", i)); !ok || v != i {
			t.Fatalf("k%d missing or wrong: %v %v", i, v, ok)
		}
	}
}

func TestLRUCacheGetRefreshesRecency(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Get("a")   // a becomes most recent
	c.Set("c", 3) // evicts b

	if _, ok := c.Get("b"); ok {
		t.Fatalf("b should have been evicted")
	}
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("recently used entry evicted")
	}
}

func TestLRUCacheTTL(t *testing.T) {
	c := NewLRUCache[string](8, 10*time.Millisecond)
	c.Set("k", "v")
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("entry should be live")
	}
	time.Sleep(20 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("entry should have expired")
	}
}

func TestLRUCacheSetOverwrites(t *testing.T) {
	c := NewLRUCache[int](4, time.Minute)
	c.Set("k", 1)
	c.Set("k", 2)
	if c.Len() != 1 {
		t.Fatalf("overwrite should not grow the cache: %d", c.Len())
	}
	if v, _ := c.Get("k"); v != 2 {
		t.Fatalf("stale value served: %d", v)
	}
}

func TestLRUCacheClear(t *testing.T) {
	c := NewLRUCache[int](4, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Clear()
	if c.Len() != 0 {
		t.Fatalf("clear left %d entries", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Fatalf("entry survived clear")
	}
}

func TestHashKeyStable(t *testing.T) {
	if HashKey("input") != HashKey("input") {
		t.Fatalf("hash not deterministic")
	}
	if HashKey("a") == HashKey("b") {
		t.Fatalf("distinct inputs collided")
	}
	if len(HashKey("x")) != 64 {
		t.Fatalf("unexpected digest length %d", len(HashKey("x")))
	}
}
