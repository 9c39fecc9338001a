package market

import (
	"sort"
	"sync"

	market "bitget-trader/pkg/market/bitget"
)

// DefaultMaxCandles bounds the in-memory window.
const DefaultMaxCandles = 200

// Cache is the sole authority over the in-memory candle window for one
// symbol. Candles are keyed by timestamp; inserting past capacity evicts
// the single oldest entry, never the insert itself.
type Cache struct {
	mu       sync.RWMutex
	maxSize  int
	candles  map[int64]market.Candle
	latestTS int64
}

// NewCache builds a bounded candle cache.
func NewCache(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxCandles
	}
	return &Cache{
		maxSize: maxSize,
		candles: make(map[int64]market.Candle, maxSize),
	}
}

// Upsert inserts or overwrites a candle by timestamp. A re-delivered or
// in-progress bar with a known timestamp replaces the stored OHLCV.
func (c *Cache) Upsert(k market.Candle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, existed := c.candles[k.Timestamp]
	c.candles[k.Timestamp] = k
	if k.Timestamp >= c.latestTS {
		c.latestTS = k.Timestamp
	}

	if !existed && len(c.candles) > c.maxSize {
		oldest := c.latestTS
		for ts := range c.candles {
			if ts < oldest {
				oldest = ts
			}
		}
		delete(c.candles, oldest)
	}
}

// Seed loads an initial window, typically from the persistence layer.
func (c *Cache) Seed(candles []market.Candle) {
	for _, k := range candles {
		c.Upsert(k)
	}
}

// Recent returns the lookback most-recent candles in ascending timestamp
// order; fewer when the cache holds fewer.
func (c *Cache) Recent(lookback int) []market.Candle {
	c.mu.RLock()
	defer c.mu.RUnlock()

	timestamps := make([]int64, 0, len(c.candles))
	for ts := range c.candles {
		timestamps = append(timestamps, ts)
	}
	sort.Slice(timestamps, func(i, j int) bool { return timestamps[i] < timestamps[j] })

	if lookback < len(timestamps) {
		timestamps = timestamps[len(timestamps)-lookback:]
	}
	out := make([]market.Candle, 0, len(timestamps))
	for _, ts := range timestamps {
		out = append(out, c.candles[ts])
	}
	return out
}

// Latest returns the candle with the maximum timestamp, if any.
func (c *Cache) Latest() (market.Candle, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	k, ok := c.candles[c.latestTS]
	return k, ok
}

// LatestPrice returns the close of the newest candle, or 0 when empty.
func (c *Cache) LatestPrice() float64 {
	k, ok := c.Latest()
	if !ok {
		return 0.0
	}
	return k.Close
}

// Len reports the number of cached candles.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.candles)
}
