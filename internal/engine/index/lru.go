package index

import (
	"container/list"
	"sync"
)

// lruCache is a capacity-bounded least-recently-used cache. It counts hits
// and misses and reports evictions through onEvict.
type lruCache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[K]*list.Element
	order    *list.List // front = most-recently used
	onEvict  func(K, V)

	hits   uint64
	misses uint64
}

type lruEntry[K comparable, V any] struct {
	key   K
	value V
}

// newLRUCache normalises capacities below one to one.
func newLRUCache[K comparable, V any](capacity int, onEvict func(K, V)) *lruCache[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &lruCache[K, V]{
		capacity: capacity,
		items:    make(map[K]*list.Element, capacity),
		order:    list.New(),
		onEvict:  onEvict,
	}
}

func (c *lruCache[K, V]) get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	c.order.MoveToFront(el)
	return el.Value.(*lruEntry[K, V]).value, true
}

func (c *lruCache[K, V]) put(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		el.Value.(*lruEntry[K, V]).value = value
		return
	}
	if c.order.Len() >= c.capacity {
		c.removeLocked(c.order.Back())
	}
	c.items[key] = c.order.PushFront(&lruEntry[K, V]{key: key, value: value})
}

// evictWhere drops every entry matching pred and returns how many went.
func (c *lruCache[K, V]) evictWhere(pred func(K, V) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for el := c.order.Front(); el != nil; {
		next := el.Next()
		entry := el.Value.(*lruEntry[K, V])
		if pred(entry.key, entry.value) {
			c.removeLocked(el)
			n++
		}
		el = next
	}
	return n
}

func (c *lruCache[K, V]) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *lruCache[K, V]) stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

func (c *lruCache[K, V]) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for c.order.Len() > 0 {
		c.removeLocked(c.order.Back())
	}
}

// removeLocked requires c.mu.
func (c *lruCache[K, V]) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	entry := el.Value.(*lruEntry[K, V])
	c.order.Remove(el)
	delete(c.items, entry.key)
	if c.onEvict != nil {
		c.onEvict(entry.key, entry.value)
	}
}
