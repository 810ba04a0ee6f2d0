package ledger

import (
	"testing"
	"time"

	"sentineld/internal/sentinel"
)

// Unit tests below exercise the pure dedup/validation/P&L logic directly.
// Insert/BulkInsert/LoadFromStore/RecalculatePnL and friends all write
// through *store.Repository, a concrete pgx-backed type with no DB-free
// test double in this stack; exercising those requires a real Postgres
// instance, so they're left as documented integration tests rather than
// faked with a mock repository.

func mkTrade(symbol, strategy string, mode sentinel.TradingMode, entry, exit, qty float64, entryTS time.Time, closed bool) sentinel.Trade {
	t := sentinel.Trade{
		ID:             "t-" + symbol,
		Symbol:         symbol,
		StrategyName:   strategy,
		TradingMode:    mode,
		Side:           sentinel.SideBuy,
		EntryPrice:     entry,
		ExitPrice:      exit,
		Quantity:       qty,
		EntryTimestamp: entryTS,
	}
	if closed {
		ts := entryTS.Add(time.Minute)
		t.ExitTimestamp = &ts
	}
	return t
}

func TestFindCharacteristicMatch(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	existing := mkTrade("ETH/USDT", "grid-a", sentinel.ModeTestnet, 3000, 3100, 1.5, base, true)

	t.Run("matches within tolerance", func(t *testing.T) {
		candidate := mkTrade("ETH/USDT", "grid-a", sentinel.ModeTestnet, 3000.00005, 3100.00005, 1.500001, base.Add(500*time.Millisecond), true)
		match, ok := findCharacteristicMatch([]sentinel.Trade{existing}, candidate)
		if !ok {
			t.Fatal("expected a characteristic match within tolerance")
		}
		if match.ID != existing.ID {
			t.Errorf("expected match %s, got %s", existing.ID, match.ID)
		}
	})

	t.Run("no match when entry price diverges", func(t *testing.T) {
		candidate := mkTrade("ETH/USDT", "grid-a", sentinel.ModeTestnet, 3005, 3100, 1.5, base, true)
		if _, ok := findCharacteristicMatch([]sentinel.Trade{existing}, candidate); ok {
			t.Error("expected no match when entry price is outside tolerance")
		}
	})

	t.Run("no match against a still-open trade", func(t *testing.T) {
		open := mkTrade("ETH/USDT", "grid-a", sentinel.ModeTestnet, 3000, 3100, 1.5, base, false)
		candidate := mkTrade("ETH/USDT", "grid-a", sentinel.ModeTestnet, 3000, 3100, 1.5, base, true)
		if _, ok := findCharacteristicMatch([]sentinel.Trade{open}, candidate); ok {
			t.Error("an open trade (nil ExitTimestamp) must never match as a duplicate")
		}
	})

	t.Run("no match across different symbols or strategies", func(t *testing.T) {
		candidate := mkTrade("BTC/USDT", "grid-a", sentinel.ModeTestnet, 3000, 3100, 1.5, base, true)
		if _, ok := findCharacteristicMatch([]sentinel.Trade{existing}, candidate); ok {
			t.Error("expected no match across differing symbols")
		}
		candidate2 := mkTrade("ETH/USDT", "grid-b", sentinel.ModeTestnet, 3000, 3100, 1.5, base, true)
		if _, ok := findCharacteristicMatch([]sentinel.Trade{existing}, candidate2); ok {
			t.Error("expected no match across differing strategy names")
		}
	})

	t.Run("no match when entry timestamps land on different grid buckets", func(t *testing.T) {
		candidate := mkTrade("ETH/USDT", "grid-a", sentinel.ModeTestnet, 3000, 3100, 1.5, base.Add(5*time.Second), true)
		if _, ok := findCharacteristicMatch([]sentinel.Trade{existing}, candidate); ok {
			t.Error("expected no match when entry timestamp grid buckets are more than 1s apart")
		}
	})
}

func TestGridBucket(t *testing.T) {
	t1 := time.Date(2026, 1, 1, 12, 0, 1, 0, time.UTC)
	t2 := time.Date(2026, 1, 1, 12, 0, 0, 500_000_000, time.UTC)
	if !gridBucket(t1).Equal(gridBucket(t2)) {
		t.Errorf("expected %v and %v to snap to the same 2s grid bucket", t1, t2)
	}

	t3 := time.Date(2026, 1, 1, 12, 0, 3, 0, time.UTC)
	if gridBucket(t1).Equal(gridBucket(t3)) {
		t.Errorf("expected %v and %v to land in different 2s grid buckets", t1, t3)
	}
}

func TestIsValidTrade(t *testing.T) {
	exitTS := time.Now()
	valid := sentinel.Trade{
		Symbol: "BTC/USDT", EntryPrice: 50000, ExitPrice: 51000, Quantity: 0.1,
		EntryTimestamp: time.Now().Add(-time.Hour), ExitTimestamp: &exitTS,
		StrategyName: "grid-a", TradingMode: sentinel.ModeTestnet,
	}
	if !isValidTrade(valid) {
		t.Error("expected a fully populated, in-band trade to be valid")
	}

	missingSymbol := valid
	missingSymbol.Symbol = ""
	if isValidTrade(missingSymbol) {
		t.Error("expected a trade with no symbol to be invalid")
	}

	stillOpen := valid
	stillOpen.ExitTimestamp = nil
	if isValidTrade(stillOpen) {
		t.Error("expected a trade with no exit timestamp to be invalid")
	}

	outOfBand := valid
	outOfBand.ExitPrice = 1_000_000
	if isValidTrade(outOfBand) {
		t.Error("expected an out-of-plausibility-band exit price to be invalid")
	}

	noStrategy := valid
	noStrategy.StrategyName = ""
	if isValidTrade(noStrategy) {
		t.Error("expected a trade with no strategy name to be invalid")
	}
}

func TestPnL(t *testing.T) {
	t.Run("long trade profit", func(t *testing.T) {
		pnlUSDT, commission := pnl(sentinel.SideBuy, 100, 110, 1)
		gotPnL, _ := pnlUSDT.Float64()
		gotCommission, _ := commission.Float64()

		wantCommission := 100*commissionRate + 110*commissionRate
		wantPnL := (110-100)*1 - wantCommission
		if diff := gotPnL - wantPnL; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("pnl = %v, want %v", gotPnL, wantPnL)
		}
		if diff := gotCommission - wantCommission; diff > 1e-9 || diff < -1e-9 {
			t.Errorf("commission = %v, want %v", gotCommission, wantCommission)
		}
	})

	t.Run("short trade profit direction is inverted", func(t *testing.T) {
		longPnL, _ := pnl(sentinel.SideBuy, 100, 90, 1)
		shortPnL, _ := pnl(sentinel.SideSell, 100, 90, 1)
		longF, _ := longPnL.Float64()
		shortF, _ := shortPnL.Float64()
		if longF >= 0 {
			t.Errorf("expected a long trade entering at 100 and exiting at 90 to lose money, got %v", longF)
		}
		if shortF <= 0 {
			t.Errorf("expected a short trade entering at 100 and exiting at 90 to profit, got %v", shortF)
		}
	})
}

// TestRemoveDuplicatesSelection walks trades already in created-date order
// through findCharacteristicMatch, the characteristic half of the dedup
// rule RemoveDuplicates applies, and checks that the earliest copy is kept.
// It does not call RemoveDuplicates itself, whose deletion path requires
// *store.Repository.
func TestRemoveDuplicatesSelection(t *testing.T) {
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	first := mkTrade("ETH/USDT", "grid-a", sentinel.ModeTestnet, 3000, 3100, 1.5, base, true)
	first.ID = "first"
	first.CreatedDate = base

	second := mkTrade("ETH/USDT", "grid-a", sentinel.ModeTestnet, 3000, 3100, 1.5, base, true)
	second.ID = "second"
	second.CreatedDate = base.Add(time.Minute)

	unrelated := mkTrade("BTC/USDT", "grid-b", sentinel.ModeTestnet, 50000, 51000, 0.1, base, true)
	unrelated.ID = "unrelated"
	unrelated.CreatedDate = base.Add(2 * time.Minute)

	var kept []sentinel.Trade
	var duplicates []string
	for _, tr := range []sentinel.Trade{first, second, unrelated} {
		if _, ok := findCharacteristicMatch(kept, tr); ok {
			duplicates = append(duplicates, tr.ID)
			continue
		}
		kept = append(kept, tr)
	}

	if len(duplicates) != 1 || duplicates[0] != "second" {
		t.Errorf("expected only %q flagged as a duplicate of %q, got %v", "second", "first", duplicates)
	}
	if len(kept) != 2 {
		t.Errorf("expected 2 surviving trades, got %d", len(kept))
	}
}
