// Package marketdata implements the Market Data Fetcher: cached, deduped,
// rate-limited reads of Binance price/kline/exchange-info data. Grounded on
// the teacher's internal/binance/market_data_cache.go (sync.Map caches with
// hit/miss stats) and internal/binance/rate_limiter.go (throttling idiom),
// generalized from WebSocket-fed staleness windows to the spec's explicit
// TTL/size/eviction contract.
package marketdata

import (
	"sort"
	"sync"
	"time"
)

// klineKey identifies one kline cache entry.
type klineKey struct {
	Symbol  string
	Interval string
	Limit   int
	EndTime int64
	Mode    string
}

type klineEntry struct {
	data      interface{} // []binanceclient.Kline, kept opaque to avoid an import cycle
	insertedAt time.Time
}

const (
	klineTTL        = 2 * time.Minute
	klineMaxEntries = 1000
	klineKeepNewest = 500

	exchangeInfoTTL           = 30 * time.Minute
	exchangeInfoRefreshWindow = 60 * time.Second
)

// klineCache is a TTL + size-bounded cache keyed by the full request tuple,
// matching the contract table in spec.md §4.1.
type klineCache struct {
	mu      sync.Mutex
	entries map[klineKey]*klineEntry

	hits   int64
	misses int64
}

func newKlineCache() *klineCache {
	return &klineCache{entries: make(map[klineKey]*klineEntry)}
}

func (c *klineCache) get(key klineKey) (interface{}, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if time.Since(e.insertedAt) > klineTTL {
		delete(c.entries, key)
		c.misses++
		return nil, false
	}
	c.hits++
	return e.data, true
}

func (c *klineCache) set(key klineKey, data interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &klineEntry{data: data, insertedAt: time.Now()}
	c.evictLocked()
}

// evictLocked drops expired entries first; if the cache is still over
// klineMaxEntries it keeps only the klineKeepNewest most recently inserted.
// Caller must hold c.mu.
func (c *klineCache) evictLocked() {
	now := time.Now()
	for k, e := range c.entries {
		if now.Sub(e.insertedAt) > klineTTL {
			delete(c.entries, k)
		}
	}
	if len(c.entries) <= klineMaxEntries {
		return
	}

	type kv struct {
		key klineKey
		at  time.Time
	}
	all := make([]kv, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, kv{key: k, at: e.insertedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].at.After(all[j].at) })

	if len(all) > klineKeepNewest {
		for _, stale := range all[klineKeepNewest:] {
			delete(c.entries, stale.key)
		}
	}
}

// cleanup removes expired entries; called only from the Supervisor's
// periodic cleanup ticker, every 2 minutes by default (spec.md §4.1
// "cleanup strategy").
func (c *klineCache) cleanup() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	now := time.Now()
	for k, e := range c.entries {
		if now.Sub(e.insertedAt) > klineTTL {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

func (c *klineCache) stats() (hits, misses int64, size int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, len(c.entries)
}

// exchangeInfoCache is a single-entry cache per trading mode, with a
// rate-limit guard that prefers stale data over hammering upstream.
type exchangeInfoCache struct {
	mu sync.Mutex

	data        map[string]interface{} // mode -> *binanceclient.ExchangeInfo
	insertedAt  map[string]time.Time
	lastRefresh map[string]time.Time
}

func newExchangeInfoCache() *exchangeInfoCache {
	return &exchangeInfoCache{
		data:        make(map[string]interface{}),
		insertedAt:  make(map[string]time.Time),
		lastRefresh: make(map[string]time.Time),
	}
}

// snapshot returns the cached entry for mode, whether it's expired, and
// whether the 60s refresh window is still open (meaning upstream must not
// be called even if expired).
func (c *exchangeInfoCache) snapshot(mode string) (data interface{}, expired bool, withinRefreshWindow bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[mode]
	if !ok {
		return nil, true, false
	}
	expired = time.Since(c.insertedAt[mode]) > exchangeInfoTTL
	withinRefreshWindow = time.Since(c.lastRefresh[mode]) < exchangeInfoRefreshWindow
	return data, expired, withinRefreshWindow
}

func (c *exchangeInfoCache) store(mode string, data interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	c.data[mode] = data
	c.insertedAt[mode] = now
	c.lastRefresh[mode] = now
}
