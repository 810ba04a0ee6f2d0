// Package reconcile implements the Reconciler (C5): wallet-state recompute,
// dust virtual-close, ghost-position purge and invalid-trade cleanup. None
// of the teacher's files do reconciliation — this is built fresh in the
// teacher's repository/logging idiom, following spec.md §4.5 exactly.
package reconcile

import (
	"context"
	"strings"

	"sentineld/internal/binanceclient"
	"sentineld/internal/ledger"
	"sentineld/internal/logging"
	"sentineld/internal/sentinel"
	"sentineld/internal/store"
)

// dustCommissionRate matches the ledger's flat commission assumption.
const dustCommissionRate = 0.001

// PriceFetcher is the subset of the Market Data Fetcher the Reconciler
// needs for a fresh dust-close price.
type PriceFetcher interface {
	GetPrice(ctx context.Context, symbol string, mode sentinel.TradingMode) (float64, error)
}

// AccountFetcher is the subset of binanceclient.Client the ghost-purge path
// needs, kept as an interface per trading mode for testability.
type AccountFetcher interface {
	GetAccount(ctx context.Context) (*binanceclient.Account, error)
}

// Reconciler is the Reconciler component.
type Reconciler struct {
	repo     *store.Repository
	state    *store.CoreState
	ledger   *ledger.Ledger
	prices   PriceFetcher
	accounts map[sentinel.TradingMode]AccountFetcher

	ghostThresholdTestnet float64
	ghostThresholdMainnet float64
}

func New(repo *store.Repository, state *store.CoreState, led *ledger.Ledger, prices PriceFetcher,
	accounts map[sentinel.TradingMode]AccountFetcher, ghostTestnet, ghostMainnet float64) *Reconciler {
	return &Reconciler{
		repo: repo, state: state, ledger: led, prices: prices, accounts: accounts,
		ghostThresholdTestnet: ghostTestnet, ghostThresholdMainnet: ghostMainnet,
	}
}

// ReconcileWalletState implements §4.5.1: recompute wallet counters from
// the Trade ledger and report {before, after, diff}.
func (r *Reconciler) ReconcileWalletState(ctx context.Context, mode sentinel.TradingMode) (sentinel.ReconcileReport, error) {
	before := r.state.Wallet(mode)

	var after sentinel.WalletSnapshot
	after.TradingMode = mode
	for _, t := range r.state.Trades() {
		if t.TradingMode != mode {
			continue
		}
		after.Count++
		if t.PnLUSDT > 0 {
			after.WinningCount++
			after.GrossProfit += t.PnLUSDT
		} else if t.PnLUSDT < 0 {
			after.LosingCount++
			after.GrossLoss += -t.PnLUSDT
		}
		after.TotalFees += t.Commission
	}
	after.RealizedPnL = after.GrossProfit - after.GrossLoss

	if r.repo != nil {
		if err := r.repo.UpsertWallet(ctx, after); err != nil {
			return sentinel.ReconcileReport{}, err
		}
	}
	r.state.PutWallet(after)

	diff := sentinel.WalletSnapshot{
		TradingMode:  mode,
		Count:        after.Count - before.Count,
		WinningCount: after.WinningCount - before.WinningCount,
		LosingCount:  after.LosingCount - before.LosingCount,
		GrossProfit:  after.GrossProfit - before.GrossProfit,
		GrossLoss:    after.GrossLoss - before.GrossLoss,
		TotalFees:    after.TotalFees - before.TotalFees,
		RealizedPnL:  after.RealizedPnL - before.RealizedPnL,
	}

	return sentinel.ReconcileReport{Before: before, After: after, Diff: diff}, nil
}

// VirtualCloseResult is one closed position in a dust virtual-close batch.
type VirtualCloseResult struct {
	TradeID    string             `json:"trade_id"`
	PnLUSDT    float64            `json:"pnl_usdt"`
	ExitReason sentinel.ExitReason `json:"exit_reason"`
}

// VirtualCloseDustPositions implements §4.5.2.
func (r *Reconciler) VirtualCloseDustPositions(ctx context.Context, symbol string, mode sentinel.TradingMode) (int, []VirtualCloseResult, error) {
	var targets []sentinel.Position
	for _, p := range r.state.Positions() {
		if p.Symbol == symbol && p.TradingMode == mode && isOpen(p) {
			targets = append(targets, p)
		}
	}

	if len(targets) == 0 {
		if r.repo != nil {
			affected, err := r.repo.DeleteOpenPositionsBySymbolMode(ctx, symbol, mode)
			if err != nil {
				return 0, nil, err
			}
			return int(affected), nil, nil
		}
		return 0, nil, nil
	}

	price, priceErr := r.prices.GetPrice(ctx, symbol, mode)

	var closed []VirtualCloseResult
	for _, p := range targets {
		exitPrice := price
		if priceErr != nil || !sentinel.InBand(symbol, price) {
			if sentinel.InETHAlertBand(symbol, price) {
				logging.ReconcileContext("virtualCloseDustPositions", symbol, string(mode)).
					WithField("price", price).Warn("price inside ETH/USDT alert band")
			}
			if sentinel.InBand(symbol, p.EntryPrice) {
				exitPrice = p.EntryPrice
			} else {
				logging.ReconcileContext("virtualCloseDustPositions", symbol, string(mode)).
					WithField("position_id", p.PositionID).Error("no plausible price available, skipping dust close")
				continue
			}
		} else if sentinel.InETHAlertBand(symbol, price) {
			logging.ReconcileContext("virtualCloseDustPositions", symbol, string(mode)).
				WithField("price", price).Warn("price inside ETH/USDT alert band")
		}

		entryValue := p.EntryPrice * p.Quantity
		exitValue := exitPrice * p.Quantity
		commission := dustCommissionRate*entryValue + dustCommissionRate*exitValue
		grossPnL := (exitPrice - p.EntryPrice) * p.Quantity
		netPnL := grossPnL - commission
		pnlPercent := 0.0
		if entryValue != 0 {
			pnlPercent = netPnL / entryValue * 100
		}

		t := sentinel.Trade{
			PositionID:   p.PositionID,
			Symbol:       p.Symbol,
			Side:         sentinel.SideBuy,
			TradingMode:  p.TradingMode,
			StrategyName: "dust_virtual_close",
			EntryPrice:   p.EntryPrice,
			ExitPrice:    exitPrice,
			Quantity:     p.Quantity,
			PnLUSDT:      netPnL,
			PnLPercent:   pnlPercent,
			Commission:   commission,
			ExitReason:   sentinel.ExitDustVirtualClose,
			EntryTimestamp: p.EntryTimestamp,
		}
		now := p.UpdatedDate
		t.ExitTimestamp = &now

		result, err := r.ledger.Insert(ctx, t)
		if err != nil {
			logging.ReconcileContext("virtualCloseDustPositions", symbol, string(mode)).WithError(err).Error("dust close trade insert failed")
			continue
		}

		if err := deletePosition(ctx, r, p.PositionID); err != nil {
			logging.ReconcileContext("virtualCloseDustPositions", symbol, string(mode)).WithError(err).Error("dust close position delete failed")
			continue
		}

		closed = append(closed, VirtualCloseResult{TradeID: result.Trade.ID, PnLUSDT: result.Trade.PnLUSDT, ExitReason: result.Trade.ExitReason})
	}

	return len(closed), closed, nil
}

func deletePosition(ctx context.Context, r *Reconciler, positionID string) error {
	r.state.RemovePosition(positionID)
	if r.repo == nil {
		return nil
	}
	_, err := r.repo.DeletePosition(ctx, positionID)
	return err
}

// GhostPurgeReport is the {purged, ghostPositions, legitimatePositions}
// response from §4.5.3.
type GhostPurgeReport struct {
	Purged               int `json:"purged"`
	GhostPositions       int `json:"ghostPositions"`
	LegitimatePositions  int `json:"legitimatePositions"`
}

// PurgeGhostPositions implements §4.5.3.
func (r *Reconciler) PurgeGhostPositions(ctx context.Context, mode sentinel.TradingMode, walletID string) (GhostPurgeReport, error) {
	account, ok := r.accounts[mode]
	if !ok {
		return GhostPurgeReport{}, sentinel.Upstream("no account client configured for mode", nil)
	}

	acct, err := account.GetAccount(ctx)
	if err != nil {
		return GhostPurgeReport{}, sentinel.Upstream("fetch account balances failed", err)
	}
	balances := make(map[string]float64, len(acct.Balances))
	for _, b := range acct.Balances {
		balances[b.Asset] = b.Free
	}

	threshold := sentinel.GhostThreshold(mode, r.ghostThresholdTestnet, r.ghostThresholdMainnet)

	var report GhostPurgeReport
	for _, p := range r.state.Positions() {
		if p.TradingMode != mode || !isOpen(p) {
			continue
		}
		if walletID != "" && p.WalletID != walletID {
			continue
		}

		base := baseAsset(p.Symbol)
		free := balances[base]
		if free < p.Quantity*threshold {
			report.GhostPositions++
			if err := r.closeGhost(ctx, p); err != nil {
				logging.ReconcileContext("purgeGhostPositions", p.Symbol, string(mode)).WithError(err).Error("ghost close failed")
				continue
			}
			report.Purged++
		} else {
			report.LegitimatePositions++
		}
	}

	return report, nil
}

func (r *Reconciler) closeGhost(ctx context.Context, p sentinel.Position) error {
	entryValue := p.EntryPrice * p.Quantity
	now := p.UpdatedDate
	t := sentinel.Trade{
		PositionID:     p.PositionID,
		Symbol:         p.Symbol,
		Side:           sentinel.SideBuy,
		TradingMode:    p.TradingMode,
		StrategyName:   "ghost_position_purge",
		EntryPrice:     p.EntryPrice,
		ExitPrice:      p.EntryPrice,
		Quantity:       p.Quantity,
		PnLUSDT:        -entryValue,
		PnLPercent:     -100,
		ExitReason:     sentinel.ExitGhostPositionPurge,
		EntryTimestamp: p.EntryTimestamp,
		ExitTimestamp:  &now,
	}
	if _, err := r.ledger.Insert(ctx, t); err != nil {
		return err
	}
	return deletePosition(ctx, r, p.PositionID)
}

// baseAsset derives the base asset from a "BASE/QUOTE" symbol. A symbol
// without a separator has a trailing USDT, BUSD or USDC quote stripped
// ("ETHUSDT" -> "ETH"); any other symbol is returned unchanged.
func baseAsset(symbol string) string {
	if idx := strings.Index(symbol, "/"); idx >= 0 {
		return symbol[:idx]
	}
	for _, quote := range []string{"USDT", "BUSD", "USDC"} {
		if strings.HasSuffix(symbol, quote) && len(symbol) > len(quote) {
			return strings.TrimSuffix(symbol, quote)
		}
	}
	return symbol
}

func isOpen(p sentinel.Position) bool {
	return p.Status == "" || p.Status == sentinel.StatusOpen
}

// CleanupReport is the {deletedCount, remainingCount} response from §4.5.4.
type CleanupReport struct {
	DeletedCount   int64 `json:"deletedCount"`
	RemainingCount int64 `json:"remainingCount"`
}

// CleanInvalidTrades implements §4.5.4, delegating the actual filter and
// delete to the Ledger.
func (r *Reconciler) CleanInvalidTrades(ctx context.Context, minPrice map[string]float64) (CleanupReport, error) {
	deleted, remaining, err := r.ledger.CleanInvalid(ctx, minPrice)
	if err != nil {
		return CleanupReport{}, err
	}
	return CleanupReport{DeletedCount: deleted, RemainingCount: remaining}, nil
}
