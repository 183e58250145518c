package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ResultCache keeps recently computed change areas in memory so redrawing
// the same polygon with the same parameters does not hit the remote service.
type ResultCache struct {
	lru    *expirable.LRU[string, float64]
	hits   atomic.Int64
	misses atomic.Int64
}

// NewResultCache creates a cache holding at most size entries for ttl each
func NewResultCache(size int, ttl time.Duration) *ResultCache {
	if size <= 0 {
		size = 256
	}
	return &ResultCache{
		lru: expirable.NewLRU[string, float64](size, nil, ttl),
	}
}

// Key derives a cache key from the polygon WKT and the request parameters
func Key(polygonWKT string, yearA, yearB int, threshold float64) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%d|%.4f", polygonWKT, yearA, yearB, threshold)))
	return hex.EncodeToString(h[:])
}

// Get returns a cached area
func (c *ResultCache) Get(key string) (float64, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Put stores an area
func (c *ResultCache) Put(key string, areaKm2 float64) {
	c.lru.Add(key, areaKm2)
}

// Clear removes all entries
func (c *ResultCache) Clear() {
	c.lru.Purge()
}

// Stats returns entry count, hits and misses
func (c *ResultCache) Stats() (entries int, hits, misses int64) {
	return c.lru.Len(), c.hits.Load(), c.misses.Load()
}
