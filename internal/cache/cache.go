// Package cache provides a bounded, expiring key/value store used to
// memoize IP reputation lookups. Eviction follows insertion-recency order;
// Get re-inserts the entry so a recently read key survives the next
// capacity eviction.
package cache

import (
	"container/list"
	"sync"
	"time"
)

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
	accessed  time.Time
}

// Cache is a thread-safe LRU store with a per-entry TTL. All operations
// are safe for concurrent use from in-flight classification calls.
type Cache[V any] struct {
	mu         sync.Mutex
	maxSize    int
	defaultTTL time.Duration
	items      map[string]*list.Element
	order      *list.List // front = most recently used
	hits       uint64
	misses     uint64

	// injectable for expiry tests
	now func() time.Time
}

// Stats is a point-in-time snapshot of cache effectiveness.
type Stats struct {
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	Size    int     `json:"size"`
	MaxSize int     `json:"maxSize"`
	HitRate float64 `json:"hitRate"`
}

// New creates a cache holding at most maxSize entries, each stored with
// defaultTTL unless Set overrides it.
func New[V any](maxSize int, defaultTTL time.Duration) *Cache[V] {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Cache[V]{
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		items:      make(map[string]*list.Element, maxSize),
		order:      list.New(),
		now:        time.Now,
	}
}

// Get returns the live value for key. Expired entries are evicted as a
// side effect and count as misses. A hit promotes the entry to most
// recently used.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	en := el.Value.(*entry[V])
	if c.now().After(en.expiresAt) {
		c.removeElement(el)
		c.misses++
		return zero, false
	}

	en.accessed = c.now()
	c.order.MoveToFront(el)
	c.hits++
	return en.value, true
}

// Set stores value under key. At capacity, inserting a new key evicts the
// least recently used entry first. An optional ttl overrides the default.
func (c *Cache[V]) Set(key string, value V, ttl ...time.Duration) {
	d := c.defaultTTL
	if len(ttl) > 0 && ttl[0] > 0 {
		d = ttl[0]
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if el, ok := c.items[key]; ok {
		en := el.Value.(*entry[V])
		en.value = value
		en.expiresAt = now.Add(d)
		en.accessed = now
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}

	el := c.order.PushFront(&entry[V]{
		key:       key,
		value:     value,
		expiresAt: now.Add(d),
		accessed:  now,
	})
	c.items[key] = el
}

// Has reports whether key is present and unexpired. Unlike Get it neither
// promotes recency nor touches the hit/miss counters, though an expired
// entry is still evicted.
func (c *Cache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	if c.now().After(el.Value.(*entry[V]).expiresAt) {
		c.removeElement(el)
		return false
	}
	return true
}

// Delete removes key immediately, reporting whether it was present. Used
// when an out-of-band write must take effect before the TTL lapses.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.removeElement(el)
	return true
}

// Cleanup sweeps all expired entries and returns how many were evicted.
// Intended to run on a periodic background tick.
func (c *Cache[V]) Cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	evicted := 0
	for el := c.order.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*entry[V]).expiresAt) {
			c.removeElement(el)
			evicted++
		}
		el = prev
	}
	return evicted
}

// Len returns the current number of entries, live or not yet swept.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// GetStats returns a snapshot of hit/miss counters and occupancy.
func (c *Cache[V]) GetStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Hits:    c.hits,
		Misses:  c.misses,
		Size:    c.order.Len(),
		MaxSize: c.maxSize,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

// caller must hold c.mu
func (c *Cache[V]) removeElement(el *list.Element) {
	en := el.Value.(*entry[V])
	delete(c.items, en.key)
	c.order.Remove(el)
}
