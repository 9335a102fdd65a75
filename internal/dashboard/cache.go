package dashboard

import (
	"sync"
	"sync/atomic"
	"time"
)

// ViewCache is a concurrent-safe LRU cache of rendered view responses with
// TTL expiration. Keys combine the view name and the canonical filter.
type ViewCache struct {
	mu         sync.Mutex
	entries    map[string]*viewEntry
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	hits       atomic.Int64
	misses     atomic.Int64
}

type viewEntry struct {
	body        []byte
	contentType string
	createdAt   time.Time
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewViewCache creates a cache holding at most maxEntries responses, each
// valid for ttl. A zero ttl never expires entries.
func NewViewCache(maxEntries int, ttl time.Duration) *ViewCache {
	return &ViewCache{
		entries:    make(map[string]*viewEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
	}
}

func viewKey(view, filter string) string {
	return view + "?" + filter
}

// Get returns a cached response body and content type.
func (c *ViewCache) Get(view, filter string) ([]byte, string, bool) {
	key := viewKey(view, filter)

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil, "", false
	}
	if c.ttl > 0 && time.Since(e.createdAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		c.misses.Add(1)
		return nil, "", false
	}

	c.removeFromOrder(key)
	c.order = append(c.order, key)
	c.hits.Add(1)
	return e.body, e.contentType, true
}

// Put stores a response, evicting the least recently used entries when full.
func (c *ViewCache) Put(view, filter string, body []byte, contentType string) {
	if c.maxEntries <= 0 {
		return
	}
	key := viewKey(view, filter)
	e := &viewEntry{body: body, contentType: contentType, createdAt: time.Now()}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.entries[key] = e
		c.removeFromOrder(key)
		c.order = append(c.order, key)
		return
	}

	for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
	}
	c.entries[key] = e
	c.order = append(c.order, key)
}

// Len returns the number of cached entries.
func (c *ViewCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns cache performance statistics.
func (c *ViewCache) Stats() CacheStats {
	c.mu.Lock()
	entries := len(c.entries)
	c.mu.Unlock()

	hits, misses := c.hits.Load(), c.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return CacheStats{Entries: entries, MaxEntries: c.maxEntries, Hits: hits, Misses: misses, HitRate: rate}
}

func (c *ViewCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}
