// Package cache provides a size-weighted LRU map.
//
// Information Hiding:
// - Recency list bookkeeping hidden
// - Byte accounting and eviction policy hidden
// - Metrics emission hidden
package cache

import (
	"container/list"
	"sync"
)

// Weigher returns the cost of an entry in bytes.
type Weigher[K comparable, V any] func(key K, value V) int

type entry[K comparable, V any] struct {
	key     K
	value   V
	weight  int
	element *list.Element
}

// LRU is a generic least-recently-used cache bounded by total entry weight
// and, optionally, by entry count. Safe for concurrent use.
type LRU[K comparable, V any] struct {
	name       string
	capacity   int
	maxEntries int
	weigh      Weigher[K, V]

	mu        sync.Mutex
	entries   map[K]*entry[K, V]
	evictList *list.List
	size      int
	metrics   *cacheMetrics
}

// Option configures an LRU.
type Option func(*options)

type options struct {
	maxEntries int
}

// WithMaxEntries caps the number of entries in addition to the byte budget.
func WithMaxEntries(n int) Option {
	return func(o *options) { o.maxEntries = n }
}

// New creates a cache holding at most capacity bytes as measured by weigh.
// name labels the exported metrics.
func New[K comparable, V any](name string, capacity int, weigh Weigher[K, V], opts ...Option) *LRU[K, V] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if capacity < 1 {
		capacity = 1
	}
	return &LRU[K, V]{
		name:       name,
		capacity:   capacity,
		maxEntries: o.maxEntries,
		weigh:      weigh,
		entries:    make(map[K]*entry[K, V]),
		evictList:  list.New(),
		metrics:    metricsFor(name),
	}
}

// Get returns the value for key and marks it most recently used.
func (c *LRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.metrics.misses.Inc()
		var zero V
		return zero, false
	}
	c.evictList.MoveToFront(e.element)
	c.metrics.hits.Inc()
	return e.value, true
}

// Contains reports presence without touching recency or metrics.
func (c *LRU[K, V]) Contains(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Set stores value under key. Entries heavier than the whole capacity are
// not admitted; it reports whether the value was stored.
func (c *LRU[K, V]) Set(key K, value V) bool {
	w := c.weigh(key, value)
	if w < 0 {
		w = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if w > c.capacity {
		if e, ok := c.entries[key]; ok {
			c.remove(e)
		}
		c.metrics.rejected.Inc()
		return false
	}

	if e, ok := c.entries[key]; ok {
		c.size += w - e.weight
		e.value = value
		e.weight = w
		c.evictList.MoveToFront(e.element)
	} else {
		e := &entry[K, V]{key: key, value: value, weight: w}
		e.element = c.evictList.PushFront(e)
		c.entries[key] = e
		c.size += w
	}

	c.evictOverflow()
	c.metrics.bytes.Set(float64(c.size))
	return true
}

// Remove deletes key if present.
func (c *LRU[K, V]) Remove(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.remove(e)
		c.metrics.bytes.Set(float64(c.size))
	}
}

// Len returns the number of entries.
func (c *LRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Size returns the total weight of all entries.
func (c *LRU[K, V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Name returns the metrics label of the cache.
func (c *LRU[K, V]) Name() string {
	return c.name
}

func (c *LRU[K, V]) evictOverflow() {
	for c.size > c.capacity || (c.maxEntries > 0 && len(c.entries) > c.maxEntries) {
		oldest := c.evictList.Back()
		if oldest == nil {
			return
		}
		c.remove(oldest.Value.(*entry[K, V]))
		c.metrics.evictions.Inc()
	}
}

func (c *LRU[K, V]) remove(e *entry[K, V]) {
	c.evictList.Remove(e.element)
	delete(c.entries, e.key)
	c.size -= e.weight
}
