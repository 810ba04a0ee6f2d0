// Package ledger implements the Trade Ledger (C3): the append-only store of
// closed positions, with its dual dedup rule, ON CONFLICT merge-insert, and
// fire-and-forget strategy-performance refresh hook.
package ledger

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"sentineld/internal/logging"
	"sentineld/internal/sentinel"
	"sentineld/internal/store"
)

// commissionRate is the flat per-side commission assumed by the P&L
// formula (spec.md §4.3 "recalculate-pnl"); the client may supply its own
// commission on insert, but recompute always uses this rate.
const commissionRate = 0.001

// Aggregator is the subset of the Strategy Aggregator the Ledger depends
// on, kept as an interface to avoid an import cycle.
type Aggregator interface {
	NotifyTrade(strategyName string)
}

// Ledger is the Trade Ledger component.
type Ledger struct {
	repo  *store.Repository
	state *store.CoreState
	agg   Aggregator
}

func New(repo *store.Repository, state *store.CoreState, agg Aggregator) *Ledger {
	return &Ledger{repo: repo, state: state, agg: agg}
}

// InsertResult reports what happened to an attempted trade insert.
type InsertResult struct {
	Trade      sentinel.Trade
	Duplicate  bool
	Persisted  bool
}

// Insert applies the dual dedup rule, writes through the repository, and
// kicks the Strategy Aggregator asynchronously on success.
func (l *Ledger) Insert(ctx context.Context, t sentinel.Trade) (InsertResult, error) {
	if _, err := uuid.Parse(t.ID); err != nil {
		t.ID = uuid.NewString()
	}
	if t.CreatedDate.IsZero() {
		t.CreatedDate = time.Now()
	}

	existing := l.state.Trades()

	if t.PositionID != "" {
		for _, e := range existing {
			if e.PositionID == t.PositionID {
				logging.TradeContext(t.PositionID, t.Symbol, t.StrategyName).Warn("duplicate trade insert by position_id, skipping")
				return InsertResult{Trade: e, Duplicate: true}, nil
			}
		}
	}

	if match, ok := findCharacteristicMatch(existing, t); ok {
		logging.TradeContext(t.PositionID, t.Symbol, t.StrategyName).Warn("duplicate trade insert by characteristic tuple, skipping")
		return InsertResult{Trade: match, Duplicate: true}, nil
	}

	if err := l.repo.InsertTrade(ctx, t); err != nil {
		return InsertResult{}, err
	}
	l.state.ReplaceTradeByPositionID(t)

	if l.agg != nil && t.StrategyName != "" {
		go l.agg.NotifyTrade(t.StrategyName)
	}

	return InsertResult{Trade: t, Persisted: true}, nil
}

// findCharacteristicMatch implements the secondary dedup check from §4.3:
// same symbol/strategy/trading_mode, entry & exit price within ±0.0001,
// quantity within ±1e-6, entry_timestamp within a ±1s window around a 2s
// grid bucket, and the candidate already closed.
func findCharacteristicMatch(existing []sentinel.Trade, t sentinel.Trade) (sentinel.Trade, bool) {
	bucket := gridBucket(t.EntryTimestamp)
	for _, e := range existing {
		if e.Symbol != t.Symbol || e.StrategyName != t.StrategyName || e.TradingMode != t.TradingMode {
			continue
		}
		if e.ExitTimestamp == nil {
			continue
		}
		if math.Abs(e.EntryPrice-t.EntryPrice) > 0.0001 {
			continue
		}
		if math.Abs(e.ExitPrice-t.ExitPrice) > 0.0001 {
			continue
		}
		if math.Abs(e.Quantity-t.Quantity) > 1e-6 {
			continue
		}
		if math.Abs(float64(gridBucket(e.EntryTimestamp).Sub(bucket))) > float64(time.Second) {
			continue
		}
		return e, true
	}
	return sentinel.Trade{}, false
}

// gridBucket snaps a timestamp down to the start of its 2s grid bucket.
func gridBucket(t time.Time) time.Time {
	const grid = 2 * time.Second
	return t.Truncate(grid)
}

// BulkInsertSummary is the {saved, updated, failed} triple for bulk insert.
type BulkInsertSummary struct {
	Saved   int `json:"saved"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// BulkInsert applies Insert per-row, preserving the same dedup rules.
func (l *Ledger) BulkInsert(ctx context.Context, trades []sentinel.Trade) BulkInsertSummary {
	var summary BulkInsertSummary
	for _, t := range trades {
		result, err := l.Insert(ctx, t)
		if err != nil {
			summary.Failed++
			continue
		}
		if result.Duplicate {
			summary.Updated++
			continue
		}
		summary.Saved++
	}
	return summary
}

// LoadFromStore loads the full ledger from the DB and filters invalid
// trades per §4.3's critical-column + plausibility-band rules. Invalid
// trades stay in the DB but are excluded from memory.
func (l *Ledger) LoadFromStore(ctx context.Context) error {
	trades, err := l.repo.ListTrades(ctx)
	if err != nil {
		return err
	}

	valid := make([]sentinel.Trade, 0, len(trades))
	for _, t := range trades {
		if !isValidTrade(t) {
			logging.TradeContext(t.PositionID, t.Symbol, t.StrategyName).
				WithField("trade_id", t.ID).Warn("excluding invalid trade from in-memory ledger")
			continue
		}
		valid = append(valid, t)
	}
	l.state.ReplaceTrades(valid)
	return nil
}

// isValidTrade checks the critical-column set and the plausibility band.
func isValidTrade(t sentinel.Trade) bool {
	if t.Symbol == "" || t.EntryPrice == 0 || t.ExitPrice == 0 || t.Quantity == 0 {
		return false
	}
	if t.ExitTimestamp == nil || t.EntryTimestamp.IsZero() {
		return false
	}
	if t.StrategyName == "" || t.TradingMode == "" {
		return false
	}
	if !sentinel.InBand(t.Symbol, t.ExitPrice) {
		return false
	}
	return true
}

// pnl computes the signed P&L in USDT for a trade given a commission rate
// applied on both entry and exit legs.
func pnl(side sentinel.Side, entryPrice, exitPrice, quantity float64) (pnlUSDT, commission decimal.Decimal) {
	entry := decimal.NewFromFloat(entryPrice)
	exit := decimal.NewFromFloat(exitPrice)
	qty := decimal.NewFromFloat(quantity)
	dir := decimal.NewFromFloat(side.Direction())
	rate := decimal.NewFromFloat(commissionRate)

	entryValue := entry.Mul(qty)
	exitValue := exit.Mul(qty)
	commission = entryValue.Mul(rate).Add(exitValue.Mul(rate))

	gross := exit.Sub(entry).Mul(qty).Mul(dir)
	pnlUSDT = gross.Sub(commission)
	return pnlUSDT, commission
}

// RecalculatePnL walks every closed trade and rewrites pnl_usdt/pnl_percent
// whenever the recomputed value drifts more than 0.01 from stored, per
// §4.3's recalculate-pnl operation.
func (l *Ledger) RecalculatePnL(ctx context.Context) (rewritten int, err error) {
	trades := l.state.Trades()
	for _, t := range trades {
		if t.ExitTimestamp == nil || t.EntryPrice == 0 || t.ExitPrice == 0 || t.Quantity <= 0 {
			continue
		}
		recomputed, commission := pnl(t.Side, t.EntryPrice, t.ExitPrice, t.Quantity)
		recomputedF, _ := recomputed.Float64()
		commissionF, _ := commission.Float64()

		if math.Abs(recomputedF-t.PnLUSDT) <= 0.01 {
			continue
		}

		entryValue := t.EntryPrice * t.Quantity
		pnlPercent := 0.0
		if entryValue != 0 {
			pnlPercent = recomputedF / entryValue * 100
		}

		if err := l.repo.UpdateTradePnL(ctx, t.ID, recomputedF, pnlPercent, commissionF); err != nil {
			return rewritten, err
		}
		t.PnLUSDT = recomputedF
		t.PnLPercent = pnlPercent
		t.Commission = commissionF
		l.state.ReplaceTradeByPositionID(t)
		rewritten++
	}
	return rewritten, nil
}

// DeleteByIDs removes the given trade ids from DB and memory, returning
// {deletedCount, remainingCount}.
func (l *Ledger) DeleteByIDs(ctx context.Context, ids []string) (deleted, remaining int64, err error) {
	deleted, remaining, err = l.repo.DeleteTrades(ctx, ids)
	if err != nil {
		return 0, 0, err
	}
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	l.state.RemoveTrades(set)
	return deleted, remaining, nil
}

// RemoveDuplicates re-runs the dual dedup rule (§4.3) across the whole
// ledger, keeping the earliest-created row of each duplicate group and
// deleting the rest. Used by the admin `remove-duplicates` operation when a
// prior bug or a replayed backfill let duplicates slip past insert-time
// checking.
func (l *Ledger) RemoveDuplicates(ctx context.Context) (deleted, remaining int64, err error) {
	trades := l.state.Trades()
	sort.Slice(trades, func(i, j int) bool { return trades[i].CreatedDate.Before(trades[j].CreatedDate) })

	var kept []sentinel.Trade
	var duplicateIDs []string
	byPositionID := make(map[string]bool)

	for _, t := range trades {
		if t.PositionID != "" && byPositionID[t.PositionID] {
			duplicateIDs = append(duplicateIDs, t.ID)
			continue
		}
		if _, ok := findCharacteristicMatch(kept, t); ok {
			duplicateIDs = append(duplicateIDs, t.ID)
			continue
		}
		kept = append(kept, t)
		if t.PositionID != "" {
			byPositionID[t.PositionID] = true
		}
	}

	if len(duplicateIDs) == 0 {
		return 0, int64(len(trades)), nil
	}
	return l.DeleteByIDs(ctx, duplicateIDs)
}

// FixEntryPrices repairs trades whose entry_price fell outside the
// plausibility band for their symbol while the rest of the row is usable:
// it backs the entry price out of the stored pnl_usdt, exit_price, quantity
// and side, the inverse of the pnl() formula. A trade that still can't be
// brought into band (bad exit_price or quantity) is left untouched and
// counted as unfixable.
func (l *Ledger) FixEntryPrices(ctx context.Context) (fixed, unfixable int, err error) {
	trades := l.state.Trades()
	for _, t := range trades {
		if t.EntryPrice != 0 && sentinel.InBand(t.Symbol, t.EntryPrice) {
			continue
		}
		if t.ExitPrice == 0 || t.Quantity <= 0 {
			unfixable++
			continue
		}

		gross := t.PnLUSDT + t.Commission
		entryPrice := t.ExitPrice - gross/(t.Quantity*t.Side.Direction())
		if !sentinel.InBand(t.Symbol, entryPrice) {
			unfixable++
			continue
		}

		if err := l.repo.UpdateTradeEntryPrice(ctx, t.ID, entryPrice); err != nil {
			return fixed, unfixable, err
		}
		t.EntryPrice = entryPrice
		l.state.ReplaceTradeByPositionID(t)
		fixed++
	}
	return fixed, unfixable, nil
}

// CleanInvalid deletes every trade violating the critical-column set or a
// tighter per-symbol minimum-price threshold, per §4.5.4.
func (l *Ledger) CleanInvalid(ctx context.Context, minPrice map[string]float64) (deleted, remaining int64, err error) {
	trades := l.state.Trades()
	var bad []string
	for _, t := range trades {
		if !isValidTrade(t) {
			bad = append(bad, t.ID)
			continue
		}
		if min, ok := minPrice[t.Symbol]; ok && t.ExitPrice < min {
			bad = append(bad, t.ID)
		}
	}
	return l.DeleteByIDs(ctx, bad)
}
