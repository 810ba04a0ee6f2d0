package positions

import (
	"context"
	"testing"
	"time"

	"sentineld/internal/sentinel"
	"sentineld/internal/store"
)

// With a nil repository the Manager runs dbUp=false, so Create/Update/Delete
// and the merge-rule read all stay purely in-memory — no pgx connection
// needed to exercise the position lifecycle end to end.
func newTestManager() *Manager {
	return New(nil, store.NewCoreState(), nil)
}

func TestCreateAssignsIDAndTimestamps(t *testing.T) {
	m := newTestManager()
	p := sentinel.Position{PositionID: "p1", Symbol: "ETH/USDT", WalletID: "w1", TradingMode: sentinel.ModeTestnet}

	created, err := m.Create(context.Background(), p)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.ID == "" {
		t.Error("expected Create to assign a UUID when ID is empty")
	}
	if created.CreatedDate.IsZero() || created.UpdatedDate.IsZero() {
		t.Error("expected Create to stamp CreatedDate/UpdatedDate")
	}
	if created.EntryTimestamp.IsZero() {
		t.Error("expected EntryTimestamp to default to CreatedDate when unset")
	}
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	m := newTestManager()
	_, err := m.Create(context.Background(), sentinel.Position{})
	if err == nil {
		t.Fatal("expected an error for a position missing symbol/wallet_id/trading_mode")
	}
	se, ok := err.(*sentinel.Error)
	if !ok {
		t.Fatalf("expected a *sentinel.Error, got %T", err)
	}
	if se.Kind != sentinel.KindValidation {
		t.Errorf("expected KindValidation, got %v", se.Kind)
	}
}

func TestUpdateNotFound(t *testing.T) {
	m := newTestManager()
	_, err := m.Update(context.Background(), "missing-id", Patch{})
	if err == nil {
		t.Fatal("expected NotFound error for a missing position id")
	}
	se, ok := err.(*sentinel.Error)
	if !ok || se.Kind != sentinel.KindNotFound {
		t.Errorf("expected KindNotFound, got %v (%T)", err, err)
	}
}

func TestUpdateMergesPatchFields(t *testing.T) {
	m := newTestManager()
	created, err := m.Create(context.Background(), sentinel.Position{
		PositionID: "p1", Symbol: "ETH/USDT", WalletID: "w1", TradingMode: sentinel.ModeTestnet,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	newPrice := 3500.0
	updated, err := m.Update(context.Background(), created.ID, Patch{CurrentPrice: &newPrice})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.CurrentPrice != newPrice {
		t.Errorf("expected CurrentPrice %v, got %v", newPrice, updated.CurrentPrice)
	}
	if updated.Symbol != "ETH/USDT" {
		t.Error("expected unrelated fields to survive the patch untouched")
	}
}

func TestDeleteRemovesFromMemory(t *testing.T) {
	m := newTestManager()
	_, err := m.Create(context.Background(), sentinel.Position{
		PositionID: "p1", Symbol: "ETH/USDT", WalletID: "w1", TradingMode: sentinel.ModeTestnet,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if err := m.Delete(context.Background(), "p1"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	list, err := m.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("expected 0 positions after delete, got %d", len(list))
	}
}

func TestFilterApplyDefaultsEmptyStatusToOpen(t *testing.T) {
	positions := []sentinel.Position{
		{PositionID: "p1", Status: "", WalletID: "w1", TradingMode: sentinel.ModeTestnet},
		{PositionID: "p2", Status: sentinel.StatusClosed, WalletID: "w1", TradingMode: sentinel.ModeTestnet},
	}
	f := Filter{Status: []sentinel.PositionStatus{sentinel.StatusOpen}}
	out := f.Apply(positions)
	if len(out) != 1 || out[0].PositionID != "p1" {
		t.Errorf("expected only p1 (empty status treated as open), got %+v", out)
	}
}

func TestFilterApplyByWalletAndMode(t *testing.T) {
	positions := []sentinel.Position{
		{PositionID: "p1", WalletID: "w1", TradingMode: sentinel.ModeTestnet},
		{PositionID: "p2", WalletID: "w2", TradingMode: sentinel.ModeTestnet},
		{PositionID: "p3", WalletID: "w1", TradingMode: sentinel.ModeMainnet},
	}
	out := Filter{WalletID: "w1", TradingMode: sentinel.ModeTestnet}.Apply(positions)
	if len(out) != 1 || out[0].PositionID != "p1" {
		t.Errorf("expected only p1 to match wallet+mode filter, got %+v", out)
	}
}

func TestDeriveExitTime(t *testing.T) {
	entry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("zero hours yields nil", func(t *testing.T) {
		p := sentinel.Position{EntryTimestamp: entry, TimeExitHours: 0}
		if deriveExitTime(p) != nil {
			t.Error("expected nil exit_time when time_exit_hours is 0")
		}
	})

	t.Run("computes sum of entry timestamp and hours", func(t *testing.T) {
		p := sentinel.Position{EntryTimestamp: entry, TimeExitHours: 2.5}
		got := deriveExitTime(p)
		if got == nil {
			t.Fatal("expected a non-nil exit_time")
		}
		want := entry.Add(150 * time.Minute)
		if !got.Equal(want) {
			t.Errorf("exit_time = %v, want %v", got, want)
		}
	})
}

func TestRederiveExitTimeOnlyFillsWhenMissing(t *testing.T) {
	entry := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := &sentinel.Position{EntryTimestamp: entry, TimeExitHours: 1}
	RederiveExitTime(p)
	if p.ExitTime == nil {
		t.Fatal("expected RederiveExitTime to fill a missing exit_time")
	}
	filled := *p.ExitTime

	p.TimeExitHours = 99
	RederiveExitTime(p)
	if !p.ExitTime.Equal(filled) {
		t.Error("expected RederiveExitTime to leave an already-set exit_time untouched")
	}
}

func TestOnlyHotFields(t *testing.T) {
	hot := Patch{CurrentPrice: floatPtr(1)}
	if !hot.onlyHotFields() {
		t.Error("expected a patch touching only current_price to be hot-fields-only")
	}

	status := sentinel.StatusClosed
	cold := Patch{Status: &status}
	if cold.onlyHotFields() {
		t.Error("expected a patch touching status to not be hot-fields-only")
	}
}

func floatPtr(f float64) *float64 { return &f }
