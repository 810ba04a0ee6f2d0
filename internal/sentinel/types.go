// Package sentinel holds the domain model shared by every component of the
// trading-state engine: positions, trades, strategies and wallet snapshots.
package sentinel

import (
	"encoding/json"
	"time"
)

// TradingMode distinguishes sandbox from live exchange state. Orthogonal to
// position/trade status.
type TradingMode string

const (
	ModeTestnet TradingMode = "testnet"
	ModeMainnet TradingMode = "mainnet"
)

// PositionStatus is the lifecycle state of a live position.
type PositionStatus string

const (
	StatusOpen    PositionStatus = "open"
	StatusClosed  PositionStatus = "closed"
	StatusDeleted PositionStatus = "deleted"
)

// Side is the direction of a trade.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// ExitReason labels why a trade closed.
type ExitReason string

const (
	ExitTakeProfit        ExitReason = "take_profit"
	ExitStopLoss          ExitReason = "stop_loss"
	ExitTimeout           ExitReason = "timeout"
	ExitManual            ExitReason = "manual"
	ExitDustVirtualClose  ExitReason = "dust_virtual_close"
	ExitGhostPositionPurge ExitReason = "ghost_position_purge"
	ExitUnknown           ExitReason = "unknown"
)

// Position is an open exposure in a single symbol for a single trading mode.
// See spec.md §3 for the full invariant set.
type Position struct {
	ID             string         `json:"id"`
	PositionID     string         `json:"position_id"`
	WalletID       string         `json:"wallet_id"`
	Symbol         string         `json:"symbol"`
	TradingMode    TradingMode    `json:"trading_mode"`
	Status         PositionStatus `json:"status"`

	EntryPrice      float64 `json:"entry_price"`
	CurrentPrice    float64 `json:"current_price"`
	Quantity        float64 `json:"quantity"`
	EntryValue      float64 `json:"entry_value"`
	UnrealizedPnL   float64 `json:"unrealized_pnl"`
	StopLossPrice   float64 `json:"stop_loss_price,omitempty"`
	TakeProfitPrice float64 `json:"take_profit_price,omitempty"`
	TrailingStopPct float64 `json:"trailing_stop_percent,omitempty"`
	PeakPrice       float64 `json:"peak_price,omitempty"`
	TroughPrice     float64 `json:"trough_price,omitempty"`

	TimeExitHours float64    `json:"time_exit_hours"`
	ExitTime      *time.Time `json:"exit_time,omitempty"`

	// Analytics is the opaque bag of client-computed snapshot metrics taken
	// at position-open time (regime, volatility, ATR, fear-greed, LPM,
	// conviction breakdown, entry-quality metrics). The engine never reads
	// or mutates individual keys; it stores and returns the blob verbatim.
	Analytics json.RawMessage `json:"analytics,omitempty"`

	CreatedDate     time.Time `json:"created_date"`
	UpdatedDate     time.Time `json:"updated_date"`
	EntryTimestamp  time.Time `json:"entry_timestamp"`
	LastPriceUpdate time.Time `json:"last_price_update"`
}

// Trade is a closed position: an immutable ledger entry once inserted, save
// for the small set of exit-enrichment fields merged via ON CONFLICT.
type Trade struct {
	ID           string      `json:"id"`
	PositionID   string      `json:"position_id"`
	Symbol       string      `json:"symbol"`
	Side         Side        `json:"side"`
	TradingMode  TradingMode `json:"trading_mode"`
	StrategyName string      `json:"strategy_name"`

	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	Quantity   float64 `json:"quantity"`
	PnLUSDT    float64 `json:"pnl_usdt"`
	PnLPercent float64 `json:"pnl_percent"`
	Commission float64 `json:"commission"`

	ExitReason ExitReason `json:"exit_reason"`

	// MFE/MAE and exit-quality fields read by the Reconciler/Aggregator.
	MaxFavorableExcursion float64 `json:"mfe,omitempty"`
	MaxAdverseExcursion   float64 `json:"mae,omitempty"`
	SLHit                 bool    `json:"sl_hit_boolean,omitempty"`
	TPHit                  bool    `json:"tp_hit_boolean,omitempty"`

	// Analytics carries everything else pre-computed by the client: opening
	// analytics copied from Position, exit-time analytics, slippage,
	// time-in-profit/loss, order-execution metadata, strategy-context
	// metrics at entry. Opaque passthrough, same rationale as Position.Analytics.
	Analytics json.RawMessage `json:"analytics,omitempty"`

	EntryTimestamp time.Time  `json:"entry_timestamp"`
	ExitTimestamp  *time.Time `json:"exit_timestamp,omitempty"`
	CreatedDate    time.Time  `json:"created_date"`
}

// Direction returns +1 for a BUY (long) trade and -1 for a SELL (short)
// trade, used by the P&L formula.
func (t Side) Direction() float64 {
	if t == SideSell {
		return -1
	}
	return 1
}

// ExitReasonBreakdownEntry is one row of the per-exit-reason KPI breakdown.
type ExitReasonBreakdownEntry struct {
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
	AvgPnL     float64 `json:"avg_pnl"`
}

// Strategy is a named recipe with attached backtest stats and derived live
// performance. Live fields are a pure function of the Trade ledger; they are
// never written directly by a client upsert.
type Strategy struct {
	ID                     string `json:"id"`
	StrategyName           string `json:"strategy_name"`
	CombinationName        string `json:"combination_name"`
	CombinationSignature   string `json:"combination_signature,omitempty"`
	Coin                   string `json:"coin"`
	Timeframe              string `json:"timeframe"`

	IncludedInScanner        bool `json:"included_in_scanner"`
	IncludedInLiveScanner    bool `json:"included_in_live_scanner"`
	IsEventDrivenStrategy    bool `json:"is_event_driven_strategy"`

	// Backtest stats and the rest of the client-owned "bag" (regime
	// performance map, drawdowns, streaks, exit-time stats, backtest exit
	// reason breakdown) flow through unchanged via upsert.
	BacktestStats json.RawMessage `json:"backtest_stats,omitempty"`
	BacktestSuccessRate float64 `json:"backtest_success_rate"`

	// Derived live-performance fields (§4.6). Never set by a client upsert;
	// only the Strategy Aggregator writes these.
	LiveSuccessRate       float64                              `json:"live_success_rate"`
	LiveOccurrences       int                                  `json:"live_occurrences"`
	LiveAvgPriceMove      float64                              `json:"live_avg_price_move"`
	LiveProfitFactor      float64                              `json:"live_profit_factor"`
	LiveMaxDrawdownPct    float64                              `json:"live_max_drawdown_percent"`
	LiveWinLossRatio      float64                              `json:"live_win_loss_ratio"`
	LiveGrossProfitTotal  float64                              `json:"live_gross_profit_total"`
	LiveGrossLossTotal    float64                              `json:"live_gross_loss_total"`
	PerformanceGapPercent float64                              `json:"performance_gap_percent"`
	LiveExitReasonBreakdown map[ExitReason]ExitReasonBreakdownEntry `json:"live_exit_reason_breakdown,omitempty"`
	LastLiveTradeDate     *time.Time                            `json:"last_live_trade_date,omitempty"`

	CreatedDate time.Time `json:"created_date"`
	UpdatedDate time.Time `json:"updated_date"`
}

// WalletSnapshot is the periodic aggregate balance/counter view, derivable
// from the Trade ledger and kept in agreement with it by the Reconciler.
type WalletSnapshot struct {
	ID          string      `json:"id"`
	TradingMode TradingMode `json:"trading_mode"`

	Count         int     `json:"count"`
	WinningCount  int     `json:"winning_count"`
	LosingCount   int     `json:"losing_count"`
	GrossProfit   float64 `json:"gross_profit"`
	GrossLoss     float64 `json:"gross_loss"`
	TotalFees     float64 `json:"total_fees"`
	RealizedPnL   float64 `json:"realized_pnl"`

	UpdatedDate time.Time `json:"updated_date"`
}

// ReconcileReport captures a before/after/diff triple for an idempotent
// reconciliation operation, so callers can display drift magnitude.
type ReconcileReport struct {
	Before WalletSnapshot `json:"before"`
	After  WalletSnapshot `json:"after"`
	Diff   WalletSnapshot `json:"diff"`
}
