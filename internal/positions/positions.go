// Package positions implements the Position Manager (C4): a
// memory-authoritative-but-DB-reconciled CRUD layer over open positions,
// with the merge-rule read algorithm from spec.md §4.4.
package positions

import (
	"context"
	"time"

	"github.com/google/uuid"

	"sentineld/internal/logging"
	"sentineld/internal/sentinel"
	"sentineld/internal/store"
)

// recencyWindow is the merge-rule grace period: an in-memory position
// missing from a fresh DB read is kept if it was created within this
// window (or has no created_date at all).
const recencyWindow = 30 * time.Second

// Accelerator is the optional position-list cache (Redis). Every successful
// DB read in the merge-rule algorithm is written into it, and it is read
// only when that DB read fails. DB/memory remain authoritative; a miss or
// a disabled accelerator is not an error.
type Accelerator interface {
	GetPositions(ctx context.Context, mode sentinel.TradingMode) ([]sentinel.Position, bool)
	SetPositions(ctx context.Context, mode sentinel.TradingMode, positions []sentinel.Position)
}

// Manager is the Position Manager component.
type Manager struct {
	repo  *store.Repository
	state *store.CoreState
	cache Accelerator
	dbUp  bool
}

func New(repo *store.Repository, state *store.CoreState, cache Accelerator) *Manager {
	return &Manager{repo: repo, state: state, cache: cache, dbUp: repo != nil}
}

// SetDBAvailable flips whether the merge-rule algorithm attempts a DB read.
// New sets the initial value from whether a repository was supplied.
func (m *Manager) SetDBAvailable(up bool) { m.dbUp = up }

// List runs the merge-rule read algorithm from §4.4 and applies the
// caller's filters afterward.
func (m *Manager) List(ctx context.Context, filter Filter) ([]sentinel.Position, error) {
	merged, err := m.mergedList(ctx)
	if err != nil {
		return nil, err
	}
	return filter.Apply(merged), nil
}

// mergedList implements steps 1-5 of §4.4's read model. The accelerator is
// consulted only as a fallback when the DB read itself fails; it is never
// allowed to pre-empt the merge-rule comparison against fresh memory state.
func (m *Manager) mergedList(ctx context.Context) ([]sentinel.Position, error) {
	memSnapshot := m.state.Positions()

	if !m.dbUp {
		return memSnapshot, nil
	}

	dbPositions, err := m.repo.ListPositions(ctx)
	if err != nil {
		logging.PositionContext("", "", "").WithError(err).Error("merge-rule DB read failed, falling back to memory")
		if m.cache != nil {
			if cached, ok := m.cache.GetPositions(ctx, ""); ok && len(cached) > len(memSnapshot) {
				return cached, nil
			}
		}
		return memSnapshot, nil
	}

	if m.cache != nil {
		m.cache.SetPositions(ctx, "", dbPositions)
	}

	switch {
	case len(dbPositions) == 0 && len(memSnapshot) > 0:
		// DB visibility lag assumed; keep memory untouched.
		return memSnapshot, nil

	case len(dbPositions) < len(memSnapshot):
		dbByID := make(map[string]bool, len(dbPositions))
		for _, p := range dbPositions {
			dbByID[p.PositionID] = true
		}
		now := time.Now()
		merged := append([]sentinel.Position{}, dbPositions...)
		for _, p := range memSnapshot {
			if dbByID[p.PositionID] {
				continue
			}
			if p.CreatedDate.IsZero() || now.Sub(p.CreatedDate) <= recencyWindow {
				merged = append(merged, p)
			}
		}
		m.state.ReplacePositions(merged)
		return merged, nil

	default:
		m.state.ReplacePositions(dbPositions)
		return dbPositions, nil
	}
}

// Filter captures the query parameters accepted by the listing endpoint.
type Filter struct {
	WalletID    string
	TradingMode sentinel.TradingMode
	Status      []sentinel.PositionStatus
}

// Apply filters a position list. A stored nil/empty status is treated as
// 'open' for backward compatibility with older rows (§4.4).
func (f Filter) Apply(positions []sentinel.Position) []sentinel.Position {
	out := make([]sentinel.Position, 0, len(positions))
	for _, p := range positions {
		status := p.Status
		if status == "" {
			status = sentinel.StatusOpen
		}
		if f.WalletID != "" && p.WalletID != f.WalletID {
			continue
		}
		if f.TradingMode != "" && p.TradingMode != f.TradingMode {
			continue
		}
		if len(f.Status) > 0 && !containsStatus(f.Status, status) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func containsStatus(list []sentinel.PositionStatus, s sentinel.PositionStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Create assigns a UUID if missing, pushes into memory first to close the
// race window, then persists to DB. A DB failure surfaces to the caller
// but the memory copy is not rolled back (memory is the race guard).
func (m *Manager) Create(ctx context.Context, p sentinel.Position) (sentinel.Position, error) {
	if err := validateRequired(p); err != nil {
		return sentinel.Position{}, err
	}
	if _, err := uuid.Parse(p.ID); err != nil {
		p.ID = uuid.NewString()
	}
	if p.CreatedDate.IsZero() {
		p.CreatedDate = time.Now()
	}
	p.UpdatedDate = time.Now()
	if p.EntryTimestamp.IsZero() {
		p.EntryTimestamp = p.CreatedDate
	}
	p.ExitTime = deriveExitTime(p)

	lock := m.state.PositionLock(p.PositionID)
	lock.Lock()
	defer lock.Unlock()

	m.state.UpsertPosition(p)

	if m.dbUp {
		if err := m.repo.InsertPosition(ctx, p); err != nil {
			return p, err
		}
	}
	return p, nil
}

// Update locates by id, merges patch fields, and emits a narrow UPDATE when
// only hot fields changed.
func (m *Manager) Update(ctx context.Context, id string, patch Patch) (sentinel.Position, error) {
	positions := m.state.Positions()
	var current *sentinel.Position
	for i := range positions {
		if positions[i].ID == id {
			current = &positions[i]
			break
		}
	}
	if current == nil {
		return sentinel.Position{}, sentinel.NotFound("position not found: " + id)
	}

	lock := m.state.PositionLock(current.PositionID)
	lock.Lock()
	defer lock.Unlock()

	updated := patch.ApplyTo(*current)
	updated.UpdatedDate = time.Now()
	if patch.TimeExitHours != nil {
		updated.ExitTime = deriveExitTime(updated)
	}

	m.state.UpsertPosition(updated)

	if m.dbUp {
		if patch.onlyHotFields() {
			if err := m.repo.UpdatePositionHotFields(ctx, updated); err != nil {
				return updated, err
			}
		} else {
			if err := m.repo.UpdatePosition(ctx, updated); err != nil {
				return updated, err
			}
		}
	}
	return updated, nil
}

// Delete removes a position from memory and DB.
func (m *Manager) Delete(ctx context.Context, positionID string) error {
	lock := m.state.PositionLock(positionID)
	lock.Lock()
	defer lock.Unlock()

	m.state.RemovePosition(positionID)
	if m.dbUp {
		if _, err := m.repo.DeletePosition(ctx, positionID); err != nil {
			return err
		}
	}
	return nil
}

// deriveExitTime implements the exit_time computation rule from §4.4: when
// entry_timestamp and time_exit_hours are both present, exit_time is their
// sum; otherwise null, re-derived lazily on next load with a diagnostic.
func deriveExitTime(p sentinel.Position) *time.Time {
	if p.EntryTimestamp.IsZero() || p.TimeExitHours == 0 {
		return nil
	}
	t := p.EntryTimestamp.Add(time.Duration(p.TimeExitHours * float64(time.Hour)))
	return &t
}

// RederiveExitTime is called lazily on load when exit_time is null but both
// inputs are now present, emitting a diagnostic per §4.4.
func RederiveExitTime(p *sentinel.Position) {
	if p.ExitTime != nil {
		return
	}
	if t := deriveExitTime(*p); t != nil {
		logging.PositionContext(p.PositionID, p.Symbol, string(p.TradingMode)).
			Warn("re-derived missing exit_time on load")
		p.ExitTime = t
	}
}

func validateRequired(p sentinel.Position) error {
	var missing []string
	if p.Symbol == "" {
		missing = append(missing, "symbol")
	}
	if p.WalletID == "" {
		missing = append(missing, "wallet_id")
	}
	if p.TradingMode == "" {
		missing = append(missing, "trading_mode")
	}
	if len(missing) > 0 {
		return sentinel.Validation("missing required position fields", missing...)
	}
	return nil
}

// Patch is a partial update payload for PUT /api/livePositions/:id.
type Patch struct {
	CurrentPrice    *float64
	UnrealizedPnL   *float64
	PeakPrice       *float64
	TroughPrice     *float64
	Status          *sentinel.PositionStatus
	TimeExitHours   *float64
	StopLossPrice   *float64
	TakeProfitPrice *float64
}

// onlyHotFields reports whether the patch touches only current_price,
// unrealized_pnl, peak/trough_price and time_exit_hours — the narrow
// hot-path update contract from §4.4.
func (p Patch) onlyHotFields() bool {
	return p.Status == nil && p.StopLossPrice == nil && p.TakeProfitPrice == nil
}

func (p Patch) ApplyTo(pos sentinel.Position) sentinel.Position {
	if p.CurrentPrice != nil {
		pos.CurrentPrice = *p.CurrentPrice
	}
	if p.UnrealizedPnL != nil {
		pos.UnrealizedPnL = *p.UnrealizedPnL
	}
	if p.PeakPrice != nil {
		pos.PeakPrice = *p.PeakPrice
	}
	if p.TroughPrice != nil {
		pos.TroughPrice = *p.TroughPrice
	}
	if p.Status != nil {
		pos.Status = *p.Status
	}
	if p.TimeExitHours != nil {
		pos.TimeExitHours = *p.TimeExitHours
	}
	if p.StopLossPrice != nil {
		pos.StopLossPrice = *p.StopLossPrice
	}
	if p.TakeProfitPrice != nil {
		pos.TakeProfitPrice = *p.TakeProfitPrice
	}
	return pos
}

// LoadFromStore replaces the in-memory positions with the DB rows,
// re-deriving any missing exit_time. It is a no-op when the DB is
// unavailable; a failed DB read is returned and memory is left as it was
// (there is no file-mirror fallback for positions).
func (m *Manager) LoadFromStore(ctx context.Context) error {
	if !m.dbUp {
		return nil
	}
	dbPositions, err := m.repo.ListPositions(ctx)
	if err != nil {
		return err
	}
	for i := range dbPositions {
		RederiveExitTime(&dbPositions[i])
	}
	m.state.ReplacePositions(dbPositions)
	return nil
}
