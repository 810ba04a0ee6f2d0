// Package strategyperf implements the Strategy Aggregator (C6): derives a
// strategy's live-performance KPIs from the Trade ledger and keeps them
// refreshed via a fire-and-forget queue plus a periodic batched scan.
// The queue/worker shape is grounded on the teacher's internal/events/bus.go
// pub/sub, narrowed from broadcast-to-many-subscribers down to a single
// consumer with last-write-wins coalescing.
package strategyperf

import (
	"context"
	"math"
	"regexp"
	"strings"
	"sync"
	"time"

	"sentineld/internal/logging"
	"sentineld/internal/sentinel"
	"sentineld/internal/store"
)

// queueDepth bounds the pending-refresh channel; a strategy already queued
// is coalesced rather than queued twice (last-write-wins).
const queueDepth = 256

var regimeSuffix = regexp.MustCompile(`\s*\([^()]*\)\s*$`)

// NormalizeStrategyName strips a trailing "(REGIME)" suffix so
// regime-variants collide and merge, per §4.6.
func NormalizeStrategyName(name string) string {
	return strings.TrimSpace(regimeSuffix.ReplaceAllString(name, ""))
}

// Aggregator is the Strategy Aggregator component.
type Aggregator struct {
	state *store.CoreState
	repo  strategyRepo

	mu      sync.Mutex
	pending map[string]bool
	queue   chan string

	batchSize       int
	interBatchPause time.Duration

	stop chan struct{}
	wg   sync.WaitGroup
}

// strategyRepo is the subset of persistence the Aggregator needs; kept
// narrow to simplify testing.
type strategyRepo interface {
	UpsertStrategyLiveStats(ctx context.Context, s *sentinel.Strategy) error
}

func New(state *store.CoreState, repo strategyRepo, batchSize int, interBatchPause time.Duration) *Aggregator {
	a := &Aggregator{
		state:           state,
		repo:            repo,
		pending:         make(map[string]bool),
		queue:           make(chan string, queueDepth),
		batchSize:       batchSize,
		interBatchPause: interBatchPause,
		stop:            make(chan struct{}),
	}
	a.wg.Add(1)
	go a.worker()
	return a
}

// Stop drains and terminates the background worker; called on supervisor
// shutdown.
func (a *Aggregator) Stop() {
	close(a.stop)
	a.wg.Wait()
}

// NotifyTrade enqueues a refresh for strategyName. If one is already
// pending, this call is a no-op (last-write-wins: the pending refresh will
// observe the latest ledger state when it runs).
func (a *Aggregator) NotifyTrade(strategyName string) {
	name := NormalizeStrategyName(strategyName)
	a.mu.Lock()
	if a.pending[name] {
		a.mu.Unlock()
		return
	}
	a.pending[name] = true
	a.mu.Unlock()

	select {
	case a.queue <- name:
	default:
		logging.StrategyContext(name).Warn("strategy refresh queue full, dropping notification")
		a.mu.Lock()
		delete(a.pending, name)
		a.mu.Unlock()
	}
}

func (a *Aggregator) worker() {
	defer a.wg.Done()
	for {
		select {
		case <-a.stop:
			return
		case name := <-a.queue:
			a.mu.Lock()
			delete(a.pending, name)
			a.mu.Unlock()

			if err := a.Refresh(context.Background(), name); err != nil {
				logging.StrategyContext(name).WithError(err).Error("strategy refresh failed")
			}
		}
	}
}

// Refresh recomputes and persists the live KPIs for one strategy.
func (a *Aggregator) Refresh(ctx context.Context, strategyName string) error {
	name := NormalizeStrategyName(strategyName)
	strat, ok := a.state.Strategy(name)
	if !ok {
		strat = &sentinel.Strategy{StrategyName: name, CreatedDate: time.Now()}
	}

	stats := Derive(a.state.Trades(), name)
	stats.ApplyTo(strat)
	strat.UpdatedDate = time.Now()

	a.state.PutStrategy(name, strat)
	if a.repo != nil {
		return a.repo.UpsertStrategyLiveStats(ctx, strat)
	}
	return nil
}

// RefreshAll runs the periodic batched full scan: batches of batchSize run
// concurrently, with interBatchPause between batches.
func (a *Aggregator) RefreshAll(ctx context.Context) {
	names := make([]string, 0)
	seen := make(map[string]bool)
	for _, t := range a.state.Trades() {
		n := NormalizeStrategyName(t.StrategyName)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		names = append(names, n)
	}

	for i := 0; i < len(names); i += a.batchSize {
		end := i + a.batchSize
		if end > len(names) {
			end = len(names)
		}
		batch := names[i:end]

		var wg sync.WaitGroup
		for _, name := range batch {
			wg.Add(1)
			go func(name string) {
				defer wg.Done()
				if err := a.Refresh(ctx, name); err != nil {
					logging.StrategyContext(name).WithError(err).Error("periodic strategy refresh failed")
				}
			}(name)
		}
		wg.Wait()

		if end < len(names) {
			time.Sleep(a.interBatchPause)
		}
	}
}

// LiveStats is the derived KPI set from §4.6, independent of storage.
type LiveStats struct {
	SuccessRate       float64
	Occurrences       int
	AvgPriceMove      float64
	ProfitFactor      float64
	MaxDrawdownPct    float64
	WinLossRatio      float64
	GrossProfitTotal  float64
	GrossLossTotal    float64
	ExitReasonBreakdown map[sentinel.ExitReason]sentinel.ExitReasonBreakdownEntry
	LastLiveTradeDate *time.Time
}

// infiniteCollapse is the value an infinite ratio (zero denominator, positive
// numerator) collapses to per §4.6.
const infiniteCollapse = 999

// Derive computes LiveStats for strategyName from trades, excluding
// trading_mode == "backtest" per the invariant in spec.md §3.
func Derive(trades []sentinel.Trade, strategyName string) LiveStats {
	var relevant []sentinel.Trade
	for _, t := range trades {
		if NormalizeStrategyName(t.StrategyName) != strategyName {
			continue
		}
		if t.TradingMode == "backtest" {
			continue
		}
		relevant = append(relevant, t)
	}

	var stats LiveStats
	stats.ExitReasonBreakdown = make(map[sentinel.ExitReason]sentinel.ExitReasonBreakdownEntry)
	total := len(relevant)
	stats.Occurrences = total
	if total == 0 {
		return stats
	}

	var winning int
	var sumWinnerPct, sumLoserAbsPct float64
	var winPctSum, lossPctSum float64
	var winCount, lossCount int
	var maxDrawdown float64
	exitCounts := make(map[sentinel.ExitReason]int)
	exitPnLSum := make(map[sentinel.ExitReason]float64)

	for _, t := range relevant {
		if t.PnLUSDT > 0 {
			winning++
			stats.GrossProfitTotal += t.PnLUSDT
			sumWinnerPct += t.PnLPercent
			winPctSum += t.PnLPercent
			winCount++
		} else if t.PnLUSDT < 0 {
			stats.GrossLossTotal += -t.PnLUSDT
			sumLoserAbsPct += math.Abs(t.PnLPercent)
			lossPctSum += math.Abs(t.PnLPercent)
			lossCount++
			if math.Abs(t.PnLPercent) > maxDrawdown {
				maxDrawdown = math.Abs(t.PnLPercent)
			}
		}

		exitCounts[t.ExitReason]++
		exitPnLSum[t.ExitReason] += t.PnLUSDT

		if stats.LastLiveTradeDate == nil || (t.ExitTimestamp != nil && t.ExitTimestamp.After(*stats.LastLiveTradeDate)) {
			if t.ExitTimestamp != nil {
				ts := *t.ExitTimestamp
				stats.LastLiveTradeDate = &ts
			}
		}
	}

	stats.SuccessRate = float64(winning) / float64(total) * 100
	stats.AvgPriceMove = (sumWinnerPct - sumLoserAbsPct) / float64(total)
	stats.MaxDrawdownPct = maxDrawdown

	stats.ProfitFactor = collapsingRatio(sumWinnerPct, sumLoserAbsPct)

	avgWin := safeAvg(winPctSum, winCount)
	avgLoss := safeAvg(lossPctSum, lossCount)
	stats.WinLossRatio = collapsingRatio(avgWin, avgLoss)

	for reason, count := range exitCounts {
		stats.ExitReasonBreakdown[reason] = sentinel.ExitReasonBreakdownEntry{
			Count:      count,
			Percentage: float64(count) / float64(total) * 100,
			AvgPnL:     exitPnLSum[reason] / float64(count),
		}
	}

	return stats
}

// collapsingRatio implements the ∞→999 rule: a zero denominator with a
// positive numerator collapses to infiniteCollapse instead of +Inf.
func collapsingRatio(numerator, denominator float64) float64 {
	if denominator == 0 {
		if numerator > 0 {
			return infiniteCollapse
		}
		return 0
	}
	return numerator / denominator
}

func safeAvg(sum float64, count int) float64 {
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

// ApplyTo writes the derived stats onto a Strategy record, including the
// performance-gap computation against the existing backtest success rate.
func (s LiveStats) ApplyTo(strat *sentinel.Strategy) {
	strat.LiveSuccessRate = s.SuccessRate
	strat.LiveOccurrences = s.Occurrences
	strat.LiveAvgPriceMove = s.AvgPriceMove
	strat.LiveProfitFactor = s.ProfitFactor
	strat.LiveMaxDrawdownPct = s.MaxDrawdownPct
	strat.LiveWinLossRatio = s.WinLossRatio
	strat.LiveGrossProfitTotal = s.GrossProfitTotal
	strat.LiveGrossLossTotal = s.GrossLossTotal
	strat.LiveExitReasonBreakdown = s.ExitReasonBreakdown
	strat.LastLiveTradeDate = s.LastLiveTradeDate
	strat.PerformanceGapPercent = s.SuccessRate - strat.BacktestSuccessRate
}
