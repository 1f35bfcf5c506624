package rates

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// rateCache is a TTL cache for looked-up exchange rates. The clock is
// injected so tests can expire entries deterministically. Expired entries
// are dropped lazily on read; writes are last-write-wins.
type rateCache struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]cacheEntry
}

type cacheEntry struct {
	rate      decimal.Decimal
	expiresAt time.Time
}

func newRateCache(ttl time.Duration, now func() time.Time) *rateCache {
	if now == nil {
		now = time.Now
	}
	return &rateCache{
		ttl:   ttl,
		now:   now,
		items: make(map[string]cacheEntry),
	}
}

func (c *rateCache) Get(key string) (decimal.Decimal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.items[key]
	if !ok {
		return decimal.Zero, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.items, key)
		return decimal.Zero, false
	}
	return entry.rate, true
}

func (c *rateCache) Set(key string, rate decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = cacheEntry{
		rate:      rate,
		expiresAt: c.now().Add(c.ttl),
	}
}

// CleanExpired removes all expired entries and reports how many were dropped.
func (c *rateCache) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for key, entry := range c.items {
		if now.After(entry.expiresAt) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

func (c *rateCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}
