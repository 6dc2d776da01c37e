package external

import (
	"strconv"
	"sync"
	"time"

	"skyrisk/internal/types"
)

// DefaultForecastCacheTTL is how long a forecast payload is reused.
const DefaultForecastCacheTTL = 10 * time.Minute

type cacheEntry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is an in-memory cache whose entries expire after a fixed TTL.
// Expired entries are dropped lazily on Get and in bulk by Sweep.
type TTLCache[V any] struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry[V]
	ttl     time.Duration
	now     func() time.Time
}

// NewTTLCache creates a cache. now may be nil to use time.Now.
func NewTTLCache[V any](ttl time.Duration, now func() time.Time) *TTLCache[V] {
	if now == nil {
		now = time.Now
	}
	return &TTLCache[V]{
		entries: make(map[string]cacheEntry[V]),
		ttl:     ttl,
		now:     now,
	}
}

// Get returns the cached value if present and not expired.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || !c.now().Before(entry.expiresAt) {
		var zero V
		return zero, false
	}
	return entry.value, true
}

// Set stores value under key for the cache TTL.
func (c *TTLCache[V]) Set(key string, value V) {
	c.mu.Lock()
	c.entries[key] = cacheEntry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Len reports the number of stored entries, expired or not.
func (c *TTLCache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep rebuilds the map without expired entries and returns how many were
// removed. Rebuilding lets the runtime reclaim the old buckets.
func (c *TTLCache[V]) Sweep() int {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	fresh := make(map[string]cacheEntry[V], len(c.entries)/2)
	for k, v := range c.entries {
		if now.Before(v.expiresAt) {
			fresh[k] = v
		}
	}
	removed := len(c.entries) - len(fresh)
	c.entries = fresh
	return removed
}

// coordKey rounds a coordinate pair to 4 decimals, roughly 11 m.
func coordKey(lat, lon float64) string {
	return strconv.FormatFloat(types.Round4(lat), 'f', 4, 64) + "," + strconv.FormatFloat(types.Round4(lon), 'f', 4, 64)
}
