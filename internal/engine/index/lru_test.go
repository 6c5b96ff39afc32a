package index

import (
	"testing"
)

func TestLRUCache_GetPut(t *testing.T) {
	c := newLRUCache[string, int](3, nil)

	if _, ok := c.get("a"); ok {
		t.Fatal("expected miss on empty cache")
	}

	c.put("a", 1)
	c.put("b", 2)
	c.put("c", 3)

	if c.len() != 3 {
		t.Fatalf("expected len 3, got %d", c.len())
	}
	for k, want := range map[string]int{"a": 1, "b": 2, "c": 3} {
		v, ok := c.get(k)
		if !ok {
			t.Fatalf("expected hit for %q", k)
		}
		if v != want {
			t.Fatalf("key %q: want %d got %d", k, want, v)
		}
	}

	hits, misses := c.stats()
	if hits != 3 || misses != 1 {
		t.Fatalf("expected 3 hits and 1 miss, got %d/%d", hits, misses)
	}
}

func TestLRUCache_EvictsLeastRecent(t *testing.T) {
	var evicted []string
	c := newLRUCache[string, int](2, func(k string, _ int) { evicted = append(evicted, k) })

	c.put("a", 1)
	c.put("b", 2)
	c.get("a")
	c.put("c", 3)

	if _, ok := c.get("b"); ok {
		t.Fatal("expected 'b' to be evicted")
	}
	if len(evicted) != 1 || evicted[0] != "b" {
		t.Fatalf("expected eviction callback for b, got %v", evicted)
	}
	if _, ok := c.get("a"); !ok {
		t.Fatal("expected 'a' to still be present")
	}
}

func TestLRUCache_UpdateDoesNotEvict(t *testing.T) {
	c := newLRUCache[string, int](2, nil)
	c.put("a", 1)
	c.put("b", 2)
	c.put("a", 10)

	if c.len() != 2 {
		t.Fatalf("expected len 2, got %d", c.len())
	}
	if v, _ := c.get("a"); v != 10 {
		t.Fatalf("expected updated value 10, got %d", v)
	}
}

func TestLRUCache_EvictWhereAndClear(t *testing.T) {
	c := newLRUCache[int, string](8, nil)
	for i := 0; i < 6; i++ {
		c.put(i, "v")
	}
	if n := c.evictWhere(func(k int, _ string) bool { return k%2 == 0 }); n != 3 {
		t.Fatalf("expected 3 evictions, got %d", n)
	}
	if _, ok := c.get(2); ok {
		t.Fatal("expected even keys to be gone")
	}
	c.clear()
	if c.len() != 0 {
		t.Fatalf("expected empty cache, got %d", c.len())
	}
}

func TestLRUCache_ZeroCapacity(t *testing.T) {
	c := newLRUCache[string, int](0, nil)
	c.put("a", 1)
	c.put("b", 2)
	if c.len() != 1 {
		t.Fatalf("expected capacity normalised to 1, got len %d", c.len())
	}
}
