// Package quote caches the latest bid/ask per (asset pair, source).
// External sources publish their own symbols; an asset-pair mapping
// rewrites them to internal asset pair ids before caching.
package quote

import (
	"strings"
	"sync"
	"time"

	"github.com/indexlab/hedging-engine/internal/model"
)

type key struct {
	assetPairID string
	source      string
}

// Cache holds the most recent quote per (asset pair, source). Safe for
// concurrent use.
type Cache struct {
	mu      sync.RWMutex
	quotes  map[key]model.Quote
	mapping map[string]string
}

// NewCache creates a quote cache. assetPairMapping translates external
// symbols to internal asset pair ids; lookups are case-insensitive and
// unmapped symbols pass through unchanged.
func NewCache(assetPairMapping map[string]string) *Cache {
	mapping := make(map[string]string, len(assetPairMapping))
	for external, internal := range assetPairMapping {
		mapping[strings.ToUpper(external)] = internal
	}
	return &Cache{
		quotes:  make(map[key]model.Quote),
		mapping: mapping,
	}
}

// Update overwrites the cached quote for the pair/source, rewriting the
// external symbol first.
func (c *Cache) Update(q model.Quote) {
	if internal, ok := c.mapping[strings.ToUpper(q.AssetPairID)]; ok {
		q.AssetPairID = internal
	}

	c.mu.Lock()
	c.quotes[key{assetPairID: q.AssetPairID, source: q.Source}] = q
	c.mu.Unlock()
}

// Get returns the cached quote for an exact (pair, source).
func (c *Cache) Get(assetPairID, source string) (model.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	q, ok := c.quotes[key{assetPairID: assetPairID, source: source}]
	return q, ok
}

// Latest returns the newest quote for a pair across all sources.
func (c *Cache) Latest(assetPairID string) (model.Quote, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var latest model.Quote
	found := false
	for k, q := range c.quotes {
		if k.assetPairID != assetPairID {
			continue
		}
		if !found || q.Timestamp.After(latest.Timestamp) {
			latest = q
			found = true
		}
	}
	return latest, found
}

// Fresh returns the newest quote for a pair if it is younger than maxAge.
func (c *Cache) Fresh(assetPairID string, maxAge time.Duration, now time.Time) (model.Quote, bool) {
	q, ok := c.Latest(assetPairID)
	if !ok {
		return model.Quote{}, false
	}
	if maxAge > 0 && now.Sub(q.Timestamp) > maxAge {
		return model.Quote{}, false
	}
	return q, true
}

// All returns a snapshot of every cached quote.
func (c *Cache) All() []model.Quote {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.Quote, 0, len(c.quotes))
	for _, q := range c.quotes {
		out = append(out, q)
	}
	return out
}
