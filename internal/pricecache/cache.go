// Package pricecache holds the latest mark price per symbol.
//
// Venue feeds write into the cache; the matching engine, equity recorder and
// HTTP handlers read from it. Per-symbol values are always consistent, but a
// cross-symbol view is only consistent through Snapshot.
package pricecache

import (
	"sync"

	"github.com/shopspring/decimal"
)

// Cache is a process-wide symbol -> last mark price map.
type Cache struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{prices: make(map[string]decimal.Decimal)}
}

// Put stores the latest mark for a symbol. Non-positive prices are dropped so
// a bad venue frame can never poison the engine.
func (c *Cache) Put(symbol string, price decimal.Decimal) {
	if !price.IsPositive() {
		return
	}
	c.mu.Lock()
	c.prices[symbol] = price
	c.mu.Unlock()
}

// Get returns the current mark for a symbol, if one has been published.
func (c *Cache) Get(symbol string) (decimal.Decimal, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[symbol]
	return p, ok
}

// Snapshot returns a copy of all current marks.
func (c *Cache) Snapshot() map[string]decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]decimal.Decimal, len(c.prices))
	for k, v := range c.prices {
		out[k] = v
	}
	return out
}
