package market

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultCacheTTL is how long a fetched result is served from cache.
	DefaultCacheTTL = time.Hour

	// DefaultCacheCapacity bounds the number of cached queries.
	DefaultCacheCapacity = 100
)

// CacheKey identifies one market lookup.
type CacheKey struct {
	Query     string
	Category  string
	Condition string
}

// NewCacheKey normalizes the query (lowercase, single spaces) and the
// optional filters.
func NewCacheKey(query, category, condition string) CacheKey {
	return CacheKey{
		Query:     normalizeQuery(query),
		Category:  strings.ToLower(strings.TrimSpace(category)),
		Condition: strings.ToLower(strings.TrimSpace(condition)),
	}
}

// String returns a stable single-string form, used by the persistent store.
func (k CacheKey) String() string {
	return k.Query + "|" + k.Category + "|" + k.Condition
}

func normalizeQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

type cacheEntry struct {
	key       CacheKey
	result    *Result
	fetchedAt time.Time
}

// Cache is a bounded, thread-safe LRU cache with a TTL per entry.
type Cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	now      func() time.Time
	order    *list.List // Front is most recently used
	entries  map[CacheKey]*list.Element
}

// NewCache creates a cache. Non-positive ttl or capacity use the defaults.
// A nil now uses time.Now.
func NewCache(ttl time.Duration, capacity int, now func() time.Time) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl:      ttl,
		capacity: capacity,
		now:      now,
		order:    list.New(),
		entries:  make(map[CacheKey]*list.Element),
	}
}

// Get returns the cached result for key if present and not expired.
// Expired entries are removed.
func (c *Cache) Get(key CacheKey) (*Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	entry := el.Value.(*cacheEntry)
	if c.now().Sub(entry.fetchedAt) >= c.ttl {
		c.order.Remove(el)
		delete(c.entries, key)
		return nil, false
	}
	c.order.MoveToFront(el)
	return entry.result, true
}

// Set stores result under key, evicting the least recently used entry when
// the cache is full.
func (c *Cache) Set(key CacheKey, result *Result, fetchedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		entry := el.Value.(*cacheEntry)
		entry.result = result
		entry.fetchedAt = fetchedAt
		c.order.MoveToFront(el)
		return
	}

	for c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}

	c.entries[key] = c.order.PushFront(&cacheEntry{key: key, result: result, fetchedAt: fetchedAt})
}

// Len returns the number of entries, including expired ones not yet evicted.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[CacheKey]*list.Element)
}
