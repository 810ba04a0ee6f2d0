package marketdata

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"sentineld/internal/binanceclient"
	"sentineld/internal/circuitbreaker"
	"sentineld/internal/logging"
	"sentineld/internal/sentinel"
)

const (
	priceTimeout  = 10 * time.Second
	klineTimeout  = 20 * time.Second
	tickerTimeout = 10 * time.Second
)

// Fetcher is the Market Data Fetcher (C1). It owns one Binance REST client
// per trading mode and the kline/exchange-info caches shared across both.
type Fetcher struct {
	clients map[sentinel.TradingMode]*binanceclient.Client
	limiter *rate.Limiter

	klines    *klineCache
	exchange  *exchangeInfoCache

	breakers map[sentinel.TradingMode]*circuitbreaker.Breaker

	inflightMu sync.Mutex
	inflight   map[klineKey]*inflightKlineFetch
}

type inflightKlineFetch struct {
	done chan struct{}
	data []binanceclient.Kline
	err  error
}

// NewFetcher builds a Fetcher. The teacher's rate_limiter.go backs its own
// weight-tracking circuit breaker; here a single token-bucket limiter throttles
// outbound REST calls across both trading modes, sized generously above
// Binance's published spot weight budget.
func NewFetcher(clients map[sentinel.TradingMode]*binanceclient.Client) *Fetcher {
	breakers := make(map[sentinel.TradingMode]*circuitbreaker.Breaker, len(clients))
	for mode := range clients {
		breakers[mode] = circuitbreaker.New(circuitbreaker.DefaultConfig())
	}
	return &Fetcher{
		clients:  clients,
		limiter:  rate.NewLimiter(rate.Limit(20), 40),
		klines:   newKlineCache(),
		exchange: newExchangeInfoCache(),
		breakers: breakers,
		inflight: make(map[klineKey]*inflightKlineFetch),
	}
}

// guardUpstream refuses to attempt a call while the per-mode breaker is open.
func (f *Fetcher) guardUpstream(mode sentinel.TradingMode) error {
	b, ok := f.breakers[mode]
	if !ok {
		return nil
	}
	if allowed, reason := b.Allow(); !allowed {
		return sentinel.Upstream("circuit breaker open: "+reason, nil)
	}
	return nil
}

func (f *Fetcher) recordUpstreamResult(mode sentinel.TradingMode, err error) {
	b, ok := f.breakers[mode]
	if !ok {
		return
	}
	if err != nil {
		b.RecordFailure()
		return
	}
	b.RecordSuccess()
}

func (f *Fetcher) client(mode sentinel.TradingMode) (*binanceclient.Client, error) {
	c, ok := f.clients[mode]
	if !ok {
		return nil, sentinel.Validation("unknown trading mode", "mode")
	}
	return c, nil
}

func (f *Fetcher) throttle(ctx context.Context) error {
	if err := f.limiter.Wait(ctx); err != nil {
		return sentinel.RateLimited("market data throttle: " + err.Error())
	}
	return nil
}

// GetPrice returns the latest trade price for symbol, validating that the
// upstream-echoed symbol matches the request and applying the plausibility
// band as a logged warning only — upstream remains the source of truth.
func (f *Fetcher) GetPrice(ctx context.Context, symbol string, mode sentinel.TradingMode) (float64, error) {
	client, err := f.client(mode)
	if err != nil {
		return 0, err
	}
	if err := f.guardUpstream(mode); err != nil {
		return 0, err
	}
	if err := f.throttle(ctx); err != nil {
		return 0, err
	}

	cctx, cancel := context.WithTimeout(ctx, priceTimeout)
	defer cancel()

	ticker, err := client.GetCurrentPrice(cctx, symbol)
	f.recordUpstreamResult(mode, err)
	if err != nil {
		return 0, sentinel.Upstream("fetch price failed", err)
	}
	if ticker.Symbol != "" && ticker.Symbol != symbol {
		return 0, sentinel.Upstream(fmt.Sprintf("upstream echoed symbol %q for request %q", ticker.Symbol, symbol), nil)
	}
	if !sentinel.InBand(symbol, ticker.Price) {
		logging.BinanceAPIContext("getPrice", map[string]interface{}{"symbol": symbol}).
			WithField("price", ticker.Price).Error("price outside plausibility band")
	}
	return ticker.Price, nil
}

// PriceBatchResult is one symbol's outcome from a batch price fetch.
type PriceBatchResult struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// BatchSummary reports how many symbols in a batch request succeeded.
type BatchSummary struct {
	Requested  int `json:"requested"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
}

// GetPriceBatch fans out GetPrice concurrently; one symbol's failure never
// fails the batch.
func (f *Fetcher) GetPriceBatch(ctx context.Context, symbols []string, mode sentinel.TradingMode) ([]PriceBatchResult, BatchSummary) {
	results := make([]PriceBatchResult, len(symbols))
	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, priceTimeout)
			defer cancel()
			price, err := f.GetPrice(cctx, symbol, mode)
			if err != nil {
				results[i] = PriceBatchResult{Symbol: symbol, Error: err.Error()}
				return
			}
			results[i] = PriceBatchResult{Symbol: symbol, Price: price}
		}(i, symbol)
	}
	wg.Wait()

	summary := BatchSummary{Requested: len(symbols)}
	for _, r := range results {
		if r.Error == "" {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}
	return results, summary
}

// TickerBatchResult is one symbol's outcome from a batch 24hr-ticker fetch.
type TickerBatchResult struct {
	Symbol string                      `json:"symbol"`
	Ticker *binanceclient.Ticker24hr    `json:"ticker,omitempty"`
	Error  string                      `json:"error,omitempty"`
}

// Get24hrTickerBatch fans out 24hr-ticker fetches concurrently.
func (f *Fetcher) Get24hrTickerBatch(ctx context.Context, symbols []string, mode sentinel.TradingMode) ([]TickerBatchResult, BatchSummary) {
	client, err := f.client(mode)
	results := make([]TickerBatchResult, len(symbols))
	if err != nil {
		for i, s := range symbols {
			results[i] = TickerBatchResult{Symbol: s, Error: err.Error()}
		}
		return results, BatchSummary{Requested: len(symbols), Failed: len(symbols)}
	}

	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			if err := f.guardUpstream(mode); err != nil {
				results[i] = TickerBatchResult{Symbol: symbol, Error: err.Error()}
				return
			}
			if err := f.throttle(ctx); err != nil {
				results[i] = TickerBatchResult{Symbol: symbol, Error: err.Error()}
				return
			}
			cctx, cancel := context.WithTimeout(ctx, tickerTimeout)
			defer cancel()
			ticker, err := client.Get24hrTicker(cctx, symbol)
			f.recordUpstreamResult(mode, err)
			if err != nil {
				results[i] = TickerBatchResult{Symbol: symbol, Error: err.Error()}
				return
			}
			results[i] = TickerBatchResult{Symbol: symbol, Ticker: ticker}
		}(i, symbol)
	}
	wg.Wait()

	summary := BatchSummary{Requested: len(symbols)}
	for _, r := range results {
		if r.Error == "" {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}
	return results, summary
}

// GetKlines returns OHLCV data, served from cache when fresh and deduped
// against any in-flight upstream fetch for the identical key.
func (f *Fetcher) GetKlines(ctx context.Context, symbol, interval string, limit int, endTime int64, mode sentinel.TradingMode) ([]binanceclient.Kline, bool, error) {
	key := klineKey{Symbol: symbol, Interval: interval, Limit: limit, EndTime: endTime, Mode: string(mode)}

	if cached, ok := f.klines.get(key); ok {
		return cached.([]binanceclient.Kline), true, nil
	}

	data, deduped, err := f.fetchKlinesDeduped(ctx, key)
	if err != nil {
		return nil, false, err
	}
	return data, deduped, nil
}

func (f *Fetcher) fetchKlinesDeduped(ctx context.Context, key klineKey) ([]binanceclient.Kline, bool, error) {
	f.inflightMu.Lock()
	if existing, ok := f.inflight[key]; ok {
		f.inflightMu.Unlock()
		<-existing.done
		if existing.err != nil {
			return nil, false, existing.err
		}
		return existing.data, true, nil
	}

	record := &inflightKlineFetch{done: make(chan struct{})}
	f.inflight[key] = record
	f.inflightMu.Unlock()

	data, err := f.doFetchKlines(ctx, key)

	f.inflightMu.Lock()
	delete(f.inflight, key)
	f.inflightMu.Unlock()

	record.data, record.err = data, err
	close(record.done)

	if err != nil {
		return nil, false, err
	}
	return data, false, nil
}

func (f *Fetcher) doFetchKlines(ctx context.Context, key klineKey) ([]binanceclient.Kline, error) {
	mode := sentinel.TradingMode(key.Mode)
	client, err := f.client(mode)
	if err != nil {
		return nil, err
	}
	if err := f.guardUpstream(mode); err != nil {
		return nil, err
	}
	if err := f.throttle(ctx); err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, klineTimeout)
	defer cancel()

	klines, err := client.GetKlines(cctx, key.Symbol, key.Interval, key.Limit, key.EndTime)
	f.recordUpstreamResult(mode, err)
	if err != nil {
		return nil, sentinel.Upstream("fetch klines failed", err)
	}
	f.klines.set(key, klines)
	return klines, nil
}

// KlineBatchResult is one symbol's outcome from a batch kline fetch.
type KlineBatchResult struct {
	Symbol string                   `json:"symbol"`
	Klines []binanceclient.Kline    `json:"klines,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

// GetKlinesBatch fans out kline fetches concurrently, per-symbol timeout 20s.
func (f *Fetcher) GetKlinesBatch(ctx context.Context, symbols []string, interval string, limit int, endTime int64, mode sentinel.TradingMode) ([]KlineBatchResult, BatchSummary) {
	results := make([]KlineBatchResult, len(symbols))
	var wg sync.WaitGroup
	for i, symbol := range symbols {
		wg.Add(1)
		go func(i int, symbol string) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, klineTimeout)
			defer cancel()
			klines, _, err := f.GetKlines(cctx, symbol, interval, limit, endTime, mode)
			if err != nil {
				results[i] = KlineBatchResult{Symbol: symbol, Error: err.Error()}
				return
			}
			results[i] = KlineBatchResult{Symbol: symbol, Klines: klines}
		}(i, symbol)
	}
	wg.Wait()

	summary := BatchSummary{Requested: len(symbols)}
	for _, r := range results {
		if r.Error == "" {
			summary.Successful++
		} else {
			summary.Failed++
		}
	}
	return results, summary
}

// GetExchangeInfo returns the cached exchange-info table, refreshing from
// upstream at most once per 60s regardless of TTL expiry.
func (f *Fetcher) GetExchangeInfo(ctx context.Context, mode sentinel.TradingMode) (*binanceclient.ExchangeInfo, error) {
	modeKey := string(mode)
	cached, expired, withinWindow := f.exchange.snapshot(modeKey)

	if cached != nil && (!expired || withinWindow) {
		return cached.(*binanceclient.ExchangeInfo), nil
	}

	client, err := f.client(mode)
	if err != nil {
		if cached != nil {
			return cached.(*binanceclient.ExchangeInfo), nil
		}
		return nil, err
	}
	if err := f.guardUpstream(mode); err != nil {
		if cached != nil {
			return cached.(*binanceclient.ExchangeInfo), nil
		}
		return nil, err
	}
	if err := f.throttle(ctx); err != nil {
		if cached != nil {
			return cached.(*binanceclient.ExchangeInfo), nil
		}
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, priceTimeout)
	defer cancel()

	info, err := client.GetExchangeInfo(cctx)
	f.recordUpstreamResult(mode, err)
	if err != nil {
		if cached != nil {
			logging.BinanceAPIContext("getExchangeInfo", nil).WithError(err).
				Error("exchange info refresh failed, serving stale cache")
			return cached.(*binanceclient.ExchangeInfo), nil
		}
		return nil, sentinel.Upstream("fetch exchange info failed", err)
	}

	f.exchange.store(modeKey, info)
	return info, nil
}

// CleanupKlineCache removes expired kline entries. Called from the
// Supervisor's periodic cleanup ticker (every 2 minutes by default).
func (f *Fetcher) CleanupKlineCache() int {
	return f.klines.cleanup()
}

// CacheStats reports kline cache hit/miss/size. No Gateway endpoint
// exposes it.
func (f *Fetcher) CacheStats() (hits, misses int64, size int) {
	return f.klines.stats()
}

// BreakerStats reports the per-mode circuit breaker state, surfaced by the
// Gateway's health endpoint.
func (f *Fetcher) BreakerStats() map[sentinel.TradingMode]circuitbreaker.Stats {
	out := make(map[sentinel.TradingMode]circuitbreaker.Stats, len(f.breakers))
	for mode, b := range f.breakers {
		out[mode] = b.GetStats()
	}
	return out
}
