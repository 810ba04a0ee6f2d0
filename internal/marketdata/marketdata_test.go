package marketdata

import (
	"context"
	"testing"
	"time"

	"sentineld/internal/sentinel"
)

func TestKlineCacheGetSetRoundTrip(t *testing.T) {
	c := newKlineCache()
	key := klineKey{Symbol: "ETH/USDT", Interval: "1h", Limit: 100}

	if _, ok := c.get(key); ok {
		t.Fatal("expected a miss on an empty cache")
	}
	c.set(key, []int{1, 2, 3})
	got, ok := c.get(key)
	if !ok {
		t.Fatal("expected a hit after set")
	}
	if data, ok := got.([]int); !ok || len(data) != 3 {
		t.Errorf("expected the stored slice back, got %v", got)
	}

	hits, misses, size := c.stats()
	if hits != 1 || misses != 1 || size != 1 {
		t.Errorf("stats = (hits=%d misses=%d size=%d), want (1,1,1)", hits, misses, size)
	}
}

func TestKlineCacheExpiresByTTL(t *testing.T) {
	c := newKlineCache()
	key := klineKey{Symbol: "ETH/USDT", Interval: "1h"}
	c.entries[key] = &klineEntry{data: 1, insertedAt: time.Now().Add(-klineTTL - time.Second)}

	if _, ok := c.get(key); ok {
		t.Error("expected an expired entry to be treated as a miss")
	}
}

func TestKlineCacheCleanupRemovesOnlyExpired(t *testing.T) {
	c := newKlineCache()
	fresh := klineKey{Symbol: "ETH/USDT"}
	stale := klineKey{Symbol: "BTC/USDT"}
	c.entries[fresh] = &klineEntry{data: 1, insertedAt: time.Now()}
	c.entries[stale] = &klineEntry{data: 2, insertedAt: time.Now().Add(-klineTTL - time.Second)}

	removed := c.cleanup()
	if removed != 1 {
		t.Errorf("expected cleanup to remove 1 expired entry, removed %d", removed)
	}
	if _, ok := c.entries[fresh]; !ok {
		t.Error("expected the fresh entry to survive cleanup")
	}
	if _, ok := c.entries[stale]; ok {
		t.Error("expected the stale entry to be gone after cleanup")
	}
}

func TestKlineCacheEvictsDownToKeepNewestWhenOverCapacity(t *testing.T) {
	c := newKlineCache()
	base := time.Now()
	for i := 0; i < klineMaxEntries+50; i++ {
		key := klineKey{Symbol: "SYM", Limit: i}
		c.entries[key] = &klineEntry{data: i, insertedAt: base.Add(time.Duration(i) * time.Millisecond)}
	}
	c.evictLocked()
	if len(c.entries) != klineKeepNewest {
		t.Errorf("expected eviction to trim to %d entries, got %d", klineKeepNewest, len(c.entries))
	}
	if _, ok := c.entries[klineKey{Symbol: "SYM", Limit: klineMaxEntries + 49}]; !ok {
		t.Error("expected the most recently inserted entry to survive eviction")
	}
}

func TestExchangeInfoCacheSnapshotAndStore(t *testing.T) {
	c := newExchangeInfoCache()
	if data, expired, within := c.snapshot("testnet"); data != nil || !expired || within {
		t.Errorf("expected a cold cache to report nil/expired/not-within-window, got (%v,%v,%v)", data, expired, within)
	}

	c.store("testnet", "info-blob")
	data, expired, within := c.snapshot("testnet")
	if data != "info-blob" {
		t.Errorf("expected the stored value back, got %v", data)
	}
	if expired {
		t.Error("expected a freshly stored entry to not be expired")
	}
	if !within {
		t.Error("expected a freshly stored entry to be within the refresh window")
	}
}

func TestGetPriceBatchSummaryForUnconfiguredMode(t *testing.T) {
	f := NewFetcher(nil)
	results, summary := f.GetPriceBatch(context.Background(), []string{"ETH/USDT", "BTC/USDT"}, sentinel.ModeTestnet)
	if summary.Requested != 2 || summary.Failed != 2 || summary.Successful != 0 {
		t.Errorf("expected both symbols to fail for an unconfigured mode, got %+v", summary)
	}
	for _, r := range results {
		if r.Error == "" {
			t.Errorf("expected an error for symbol %s with no configured client", r.Symbol)
		}
	}
}
