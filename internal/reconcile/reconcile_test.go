package reconcile

import (
	"context"
	"testing"
	"time"

	"sentineld/internal/sentinel"
	"sentineld/internal/store"
)

func exitTimestamp() time.Time {
	return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
}

func TestBaseAsset(t *testing.T) {
	cases := map[string]string{
		"ETH/USDT": "ETH",
		"BTC/USD":  "BTC",
		"ETHUSDT":  "ETH",
		"XRPBUSD":  "XRP",
		"WEIRD":    "WEIRD",
	}
	for in, want := range cases {
		if got := baseAsset(in); got != want {
			t.Errorf("baseAsset(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsOpen(t *testing.T) {
	if !isOpen(sentinel.Position{Status: ""}) {
		t.Error("expected an empty status to be treated as open")
	}
	if !isOpen(sentinel.Position{Status: sentinel.StatusOpen}) {
		t.Error("expected StatusOpen to be open")
	}
	if isOpen(sentinel.Position{Status: sentinel.StatusClosed}) {
		t.Error("expected StatusClosed to not be open")
	}
}

// ReconcileWalletState never touches r.repo when it is nil, so the full
// recompute-from-ledger path is testable without a database.
func TestReconcileWalletStateRecomputesFromTrades(t *testing.T) {
	state := store.NewCoreState()
	exitTS := exitTimestamp()
	state.ReplaceTrades([]sentinel.Trade{
		{ID: "t1", TradingMode: sentinel.ModeTestnet, PnLUSDT: 10, Commission: 0.5, ExitTimestamp: &exitTS},
		{ID: "t2", TradingMode: sentinel.ModeTestnet, PnLUSDT: -4, Commission: 0.2, ExitTimestamp: &exitTS},
		{ID: "t3", TradingMode: sentinel.ModeMainnet, PnLUSDT: 100, Commission: 1, ExitTimestamp: &exitTS},
	})

	r := New(nil, state, nil, nil, nil, 1.0, 1.0)
	report, err := r.ReconcileWalletState(context.Background(), sentinel.ModeTestnet)
	if err != nil {
		t.Fatalf("ReconcileWalletState returned error: %v", err)
	}

	if report.After.Count != 2 {
		t.Errorf("expected 2 testnet trades counted, got %d", report.After.Count)
	}
	if report.After.WinningCount != 1 || report.After.LosingCount != 1 {
		t.Errorf("expected 1 winning and 1 losing trade, got %+v", report.After)
	}
	if report.After.GrossProfit != 10 {
		t.Errorf("expected gross profit 10, got %v", report.After.GrossProfit)
	}
	if report.After.GrossLoss != 4 {
		t.Errorf("expected gross loss 4, got %v", report.After.GrossLoss)
	}
	if report.After.RealizedPnL != 6 {
		t.Errorf("expected realized pnl 6, got %v", report.After.RealizedPnL)
	}
	if report.After.TotalFees != 0.7 {
		t.Errorf("expected total fees 0.7, got %v", report.After.TotalFees)
	}
}

func TestReconcileWalletStateDiffAgainstPriorSnapshot(t *testing.T) {
	state := store.NewCoreState()
	state.PutWallet(sentinel.WalletSnapshot{TradingMode: sentinel.ModeTestnet, Count: 1, RealizedPnL: 5})

	exitTS := exitTimestamp()
	state.ReplaceTrades([]sentinel.Trade{
		{ID: "t1", TradingMode: sentinel.ModeTestnet, PnLUSDT: 10, ExitTimestamp: &exitTS},
	})

	r := New(nil, state, nil, nil, nil, 1.0, 1.0)
	report, err := r.ReconcileWalletState(context.Background(), sentinel.ModeTestnet)
	if err != nil {
		t.Fatalf("ReconcileWalletState returned error: %v", err)
	}
	if report.Diff.RealizedPnL != 5 {
		t.Errorf("expected realized pnl diff of 5 (10 after - 5 before), got %v", report.Diff.RealizedPnL)
	}
}
