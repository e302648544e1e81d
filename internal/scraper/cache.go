package scraper

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// DefaultCacheTTL is how long a cached response stays fresh.
const DefaultCacheTTL = time.Hour

type cacheEntry struct {
	insertedAt time.Time
	body       []byte
}

// Cache is a process-local response cache keyed by a hash of the URL.
// Entries expire a fixed duration after insertion; there is no sliding
// expiration and no size bound beyond the time-based sweep on update.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	ttl     time.Duration
	clock   Clock
	hasher  Hasher
	logger  *zap.Logger
}

// NewCache constructs a Cache with the given TTL.
func NewCache(ttl time.Duration, clock Clock, hasher Hasher, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		entries: make(map[string]cacheEntry),
		ttl:     ttl,
		clock:   clock,
		hasher:  hasher,
		logger:  logger,
	}
}

// Check returns the cached body for url if a fresh entry exists. An entry
// inserted at T is served strictly before T+TTL and treated as a miss at
// or after it.
func (c *Cache) Check(url string) (bool, []byte) {
	key, err := c.hasher.Hash([]byte(url))
	if err != nil {
		return false, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	if c.clock.Now().Sub(entry.insertedAt) >= c.ttl {
		delete(c.entries, key)
		return false, nil
	}
	return true, entry.body
}

// Update stores a fresh response for url and sweeps any entries that have
// already expired, so the map does not accumulate dead pages across a
// long-running process.
func (c *Cache) Update(url string, body []byte) {
	key, err := c.hasher.Hash([]byte(url))
	if err != nil {
		c.logger.Warn("cache key hash failed", zap.String("url", url), zap.Error(err))
		return
	}

	now := c.clock.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	for k, entry := range c.entries {
		if now.Sub(entry.insertedAt) >= c.ttl {
			delete(c.entries, k)
		}
	}
	c.entries[key] = cacheEntry{insertedAt: now, body: body}
}

// Len reports the number of live entries, for monitoring.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
