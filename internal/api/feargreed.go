package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"
)

// fearGreedTTL matches the index's own daily refresh cadence loosely; a
// short TTL just avoids hammering alternative.me on every dashboard poll.
const fearGreedTTL = 5 * time.Minute

// fearGreedResponse is the upstream alternative.me shape, grounded on the
// teacher's internal/ai/sentiment/analyzer.go FearGreedResponse.
type fearGreedResponse struct {
	Data []struct {
		Value               string `json:"value"`
		ValueClassification string `json:"value_classification"`
	} `json:"data"`
}

// FearGreed is the value the Gateway returns to callers.
type FearGreed struct {
	Value          string `json:"value"`
	Classification string `json:"classification"`
}

var defaultFearGreed = FearGreed{Value: "50", Classification: "Neutral"}

// fearGreedCache holds the last successfully fetched index value so a
// transient upstream failure serves the last-known reading (or the neutral
// default on first call) instead of an error.
type fearGreedCache struct {
	mu       sync.RWMutex
	value    FearGreed
	fetched  time.Time
	haveData bool
}

func newFearGreedCache() *fearGreedCache {
	return &fearGreedCache{value: defaultFearGreed}
}

// Get returns the cached value, refreshing from upstream if the cache is
// stale. Any fetch failure falls back to the existing cached value (or the
// neutral default if nothing has ever been fetched).
func (f *fearGreedCache) Get(ctx context.Context, client *http.Client) FearGreed {
	f.mu.RLock()
	fresh := f.haveData && time.Since(f.fetched) < fearGreedTTL
	current := f.value
	f.mu.RUnlock()
	if fresh {
		return current
	}

	fetched, err := fetchFearGreed(ctx, client)
	if err != nil {
		return current
	}

	f.mu.Lock()
	f.value = fetched
	f.fetched = time.Now()
	f.haveData = true
	f.mu.Unlock()
	return fetched
}

func fetchFearGreed(ctx context.Context, client *http.Client) (FearGreed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://api.alternative.me/fng/?limit=1", nil)
	if err != nil {
		return FearGreed{}, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return FearGreed{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FearGreed{}, err
	}

	var parsed fearGreedResponse
	if err := json.Unmarshal(body, &parsed); err != nil || len(parsed.Data) == 0 {
		return FearGreed{}, err
	}

	return FearGreed{Value: parsed.Data[0].Value, Classification: parsed.Data[0].ValueClassification}, nil
}
