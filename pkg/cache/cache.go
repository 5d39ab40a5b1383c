// Package cache implements a bounded, TTL-and-LRU key-value cache used
// by file-reading and directory-listing tools. The cache is advisory:
// misses are always silent, never surfaced as tool errors.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Entry is one cached value plus its bookkeeping fields.
type Entry struct {
	Value      any
	CreatedAt  time.Time
	AccessedAt time.Time
	AccessCnt  int64
	SizeBytes  int64
	Priority   int
}

// Stats mirrors the CacheStats data-model record.
type Stats struct {
	Hits             int64
	Misses           int64
	Entries          int
	TotalSizeBytes   int64
	MemoryEvictions  int64
	ExpiredEvictions int64
}

type node struct {
	key   string
	entry Entry
}

// Cache is a single bounded cache. The CLI session builds one instance,
// shared by the file-content tools; directory listings are not cached.
type Cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capBytes int64

	items map[string]*list.Element
	order *list.List // front = most recently used

	size             int64
	hits, misses     int64
	memoryEvictions  int64
	expiredEvictions int64
}

// Option configures a Cache at construction time.
type Option func(*Cache)

// WithTTL overrides the default 5 minute TTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.ttl = ttl }
}

// WithCapacityBytes sets the total size cap that triggers LRU eviction.
func WithCapacityBytes(n int64) Option {
	return func(c *Cache) { c.capBytes = n }
}

// New constructs a Cache with a default 5 minute TTL and a 64MiB capacity.
func New(opts ...Option) *Cache {
	c := &Cache{
		ttl:      5 * time.Minute,
		capBytes: 64 * 1024 * 1024,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the cached value for key, purging it first if expired.
func (c *Cache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}
	n := el.Value.(*node)
	if c.ttl > 0 && time.Since(n.entry.CreatedAt) > c.ttl {
		c.removeElement(el)
		c.expiredEvictions++
		c.misses++
		return nil, false
	}

	n.entry.AccessedAt = time.Now()
	n.entry.AccessCnt++
	c.order.MoveToFront(el)
	c.hits++
	return n.entry.Value, true
}

// Put inserts or overwrites key, then evicts least-recently-used entries
// until the cache is back under its byte capacity.
func (c *Cache) Put(key string, value any, sizeBytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if el, ok := c.items[key]; ok {
		n := el.Value.(*node)
		c.size -= n.entry.SizeBytes
		n.entry = Entry{Value: value, CreatedAt: now, AccessedAt: now, SizeBytes: sizeBytes}
		c.size += sizeBytes
		c.order.MoveToFront(el)
	} else {
		n := &node{key: key, entry: Entry{Value: value, CreatedAt: now, AccessedAt: now, SizeBytes: sizeBytes}}
		el := c.order.PushFront(n)
		c.items[key] = el
		c.size += sizeBytes
	}

	for c.capBytes > 0 && c.size > c.capBytes && c.order.Len() > 0 {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.removeElement(back)
		c.memoryEvictions++
	}
}

// Invalidate removes key if present, a no-op otherwise.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Clear empties the cache without affecting cumulative hit/miss counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.size = 0
}

// Stats returns a snapshot of current cache statistics.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:             c.hits,
		Misses:           c.misses,
		Entries:          c.order.Len(),
		TotalSizeBytes:   c.size,
		MemoryEvictions:  c.memoryEvictions,
		ExpiredEvictions: c.expiredEvictions,
	}
}

func (c *Cache) removeElement(el *list.Element) {
	n := el.Value.(*node)
	delete(c.items, n.key)
	c.order.Remove(el)
	c.size -= n.entry.SizeBytes
}
