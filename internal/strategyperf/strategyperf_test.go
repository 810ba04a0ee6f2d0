package strategyperf

import (
	"math"
	"testing"
	"time"

	"sentineld/internal/sentinel"
)

func TestNormalizeStrategyName(t *testing.T) {
	cases := map[string]string{
		"grid-a (bull)":      "grid-a",
		"grid-a (BULL MKT)":  "grid-a",
		"grid-a":             "grid-a",
		"  grid-a (chop)  ":  "grid-a",
		"grid-a(nospace)":    "grid-a",
	}
	for in, want := range cases {
		if got := NormalizeStrategyName(in); got != want {
			t.Errorf("NormalizeStrategyName(%q) = %q, want %q", in, got, want)
		}
	}
}

func mkExit(ts time.Time) *time.Time { return &ts }

func TestDeriveExcludesBacktestTrades(t *testing.T) {
	trades := []sentinel.Trade{
		{StrategyName: "grid-a", TradingMode: "backtest", PnLUSDT: 1000, ExitTimestamp: mkExit(time.Now())},
		{StrategyName: "grid-a", TradingMode: sentinel.ModeTestnet, PnLUSDT: 10, PnLPercent: 2, ExitTimestamp: mkExit(time.Now())},
	}
	stats := Derive(trades, "grid-a")
	if stats.Occurrences != 1 {
		t.Errorf("expected backtest trades excluded, got %d occurrences", stats.Occurrences)
	}
}

func TestDeriveSuccessRateAndTotals(t *testing.T) {
	now := time.Now()
	trades := []sentinel.Trade{
		{StrategyName: "grid-a", TradingMode: sentinel.ModeTestnet, PnLUSDT: 10, PnLPercent: 5, ExitReason: sentinel.ExitTakeProfit, ExitTimestamp: mkExit(now)},
		{StrategyName: "grid-a", TradingMode: sentinel.ModeTestnet, PnLUSDT: -4, PnLPercent: -2, ExitReason: sentinel.ExitStopLoss, ExitTimestamp: mkExit(now.Add(time.Hour))},
		{StrategyName: "grid-a", TradingMode: sentinel.ModeTestnet, PnLUSDT: 20, PnLPercent: 8, ExitReason: sentinel.ExitTakeProfit, ExitTimestamp: mkExit(now.Add(2 * time.Hour))},
	}
	stats := Derive(trades, "grid-a")

	if stats.Occurrences != 3 {
		t.Fatalf("expected 3 occurrences, got %d", stats.Occurrences)
	}
	wantSuccess := 2.0 / 3.0 * 100
	if math.Abs(stats.SuccessRate-wantSuccess) > 1e-9 {
		t.Errorf("SuccessRate = %v, want %v", stats.SuccessRate, wantSuccess)
	}
	if stats.GrossProfitTotal != 30 {
		t.Errorf("GrossProfitTotal = %v, want 30", stats.GrossProfitTotal)
	}
	if stats.GrossLossTotal != 4 {
		t.Errorf("GrossLossTotal = %v, want 4", stats.GrossLossTotal)
	}
	if stats.LastLiveTradeDate == nil || !stats.LastLiveTradeDate.Equal(now.Add(2*time.Hour)) {
		t.Errorf("expected LastLiveTradeDate to be the latest exit timestamp")
	}
	if stats.ExitReasonBreakdown[sentinel.ExitTakeProfit].Count != 2 {
		t.Errorf("expected 2 take_profit exits, got %d", stats.ExitReasonBreakdown[sentinel.ExitTakeProfit].Count)
	}
}

func TestDeriveEmptyTradeSet(t *testing.T) {
	stats := Derive(nil, "grid-a")
	if stats.Occurrences != 0 {
		t.Errorf("expected 0 occurrences for an empty trade set, got %d", stats.Occurrences)
	}
	if stats.SuccessRate != 0 {
		t.Errorf("expected 0 success rate for an empty trade set, got %v", stats.SuccessRate)
	}
}

func TestCollapsingRatioInfiniteCollapse(t *testing.T) {
	if got := collapsingRatio(5, 0); got != infiniteCollapse {
		t.Errorf("collapsingRatio(5, 0) = %v, want %v", got, infiniteCollapse)
	}
	if got := collapsingRatio(0, 0); got != 0 {
		t.Errorf("collapsingRatio(0, 0) = %v, want 0", got)
	}
	if got := collapsingRatio(10, 5); got != 2 {
		t.Errorf("collapsingRatio(10, 5) = %v, want 2", got)
	}
}

func TestApplyToComputesPerformanceGap(t *testing.T) {
	strat := &sentinel.Strategy{BacktestSuccessRate: 60}
	stats := LiveStats{SuccessRate: 75}
	stats.ApplyTo(strat)
	if strat.PerformanceGapPercent != 15 {
		t.Errorf("PerformanceGapPercent = %v, want 15", strat.PerformanceGapPercent)
	}
	if strat.LiveSuccessRate != 75 {
		t.Errorf("LiveSuccessRate = %v, want 75", strat.LiveSuccessRate)
	}
}
