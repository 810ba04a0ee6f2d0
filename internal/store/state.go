package store

import (
	"sync"
	"time"

	"sentineld/internal/sentinel"
)

// CoreState is the in-memory mirror every component reads through. Each
// collection has its own RWMutex so a Reconciler sweep over trades never
// blocks a Position Manager read, matching the teacher's pattern of
// per-resource locking rather than one global state mutex.
type CoreState struct {
	positionsMu sync.RWMutex
	positions   []sentinel.Position

	tradesMu sync.RWMutex
	trades   []sentinel.Trade

	strategiesMu sync.RWMutex
	strategies   map[string]*sentinel.Strategy

	walletMu sync.RWMutex
	wallet   map[sentinel.TradingMode]*sentinel.WalletSnapshot

	// positionLocks serializes concurrent updates to the same position_id,
	// per §5 of the concurrency model.
	positionLocksMu sync.Mutex
	positionLocks   map[string]*sync.Mutex
}

func NewCoreState() *CoreState {
	return &CoreState{
		strategies:    make(map[string]*sentinel.Strategy),
		wallet:        make(map[sentinel.TradingMode]*sentinel.WalletSnapshot),
		positionLocks: make(map[string]*sync.Mutex),
	}
}

// PositionLock returns the per-position-id mutex, creating it on first use.
func (s *CoreState) PositionLock(positionID string) *sync.Mutex {
	s.positionLocksMu.Lock()
	defer s.positionLocksMu.Unlock()
	if l, ok := s.positionLocks[positionID]; ok {
		return l
	}
	l := &sync.Mutex{}
	s.positionLocks[positionID] = l
	return l
}

// Positions returns a snapshot copy of the in-memory position list.
func (s *CoreState) Positions() []sentinel.Position {
	s.positionsMu.RLock()
	defer s.positionsMu.RUnlock()
	out := make([]sentinel.Position, len(s.positions))
	copy(out, s.positions)
	return out
}

// ReplacePositions overwrites the in-memory list wholesale (used by the
// merge-rule read algorithm in §4.4 and by startup load-from-DB).
func (s *CoreState) ReplacePositions(positions []sentinel.Position) {
	s.positionsMu.Lock()
	defer s.positionsMu.Unlock()
	s.positions = positions
}

// UpsertPosition inserts or replaces a position keyed by PositionID.
func (s *CoreState) UpsertPosition(p sentinel.Position) {
	s.positionsMu.Lock()
	defer s.positionsMu.Unlock()
	for i := range s.positions {
		if s.positions[i].PositionID == p.PositionID {
			s.positions[i] = p
			return
		}
	}
	s.positions = append(s.positions, p)
}

// RemovePosition deletes a position by PositionID.
func (s *CoreState) RemovePosition(positionID string) {
	s.positionsMu.Lock()
	defer s.positionsMu.Unlock()
	for i := range s.positions {
		if s.positions[i].PositionID == positionID {
			s.positions = append(s.positions[:i], s.positions[i+1:]...)
			return
		}
	}
}

// Trades returns a snapshot copy of the in-memory trade ledger.
func (s *CoreState) Trades() []sentinel.Trade {
	s.tradesMu.RLock()
	defer s.tradesMu.RUnlock()
	out := make([]sentinel.Trade, len(s.trades))
	copy(out, s.trades)
	return out
}

func (s *CoreState) ReplaceTrades(trades []sentinel.Trade) {
	s.tradesMu.Lock()
	defer s.tradesMu.Unlock()
	s.trades = trades
}

func (s *CoreState) AppendTrade(t sentinel.Trade) {
	s.tradesMu.Lock()
	defer s.tradesMu.Unlock()
	s.trades = append(s.trades, t)
}

// ReplaceTradeByPositionID overwrites a trade in place (ON CONFLICT merge
// enrichment path) or appends it if absent.
func (s *CoreState) ReplaceTradeByPositionID(t sentinel.Trade) {
	s.tradesMu.Lock()
	defer s.tradesMu.Unlock()
	for i := range s.trades {
		if s.trades[i].PositionID == t.PositionID {
			s.trades[i] = t
			return
		}
	}
	s.trades = append(s.trades, t)
}

// RemoveTrades deletes every trade whose ID is in ids and returns the
// remaining count.
func (s *CoreState) RemoveTrades(ids map[string]bool) int {
	s.tradesMu.Lock()
	defer s.tradesMu.Unlock()
	kept := s.trades[:0]
	for _, t := range s.trades {
		if !ids[t.ID] {
			kept = append(kept, t)
		}
	}
	s.trades = kept
	return len(s.trades)
}

// Strategies returns a snapshot copy of the strategy table.
func (s *CoreState) Strategies() []*sentinel.Strategy {
	s.strategiesMu.RLock()
	defer s.strategiesMu.RUnlock()
	out := make([]*sentinel.Strategy, 0, len(s.strategies))
	for _, v := range s.strategies {
		out = append(out, v)
	}
	return out
}

func (s *CoreState) Strategy(key string) (*sentinel.Strategy, bool) {
	s.strategiesMu.RLock()
	defer s.strategiesMu.RUnlock()
	v, ok := s.strategies[key]
	return v, ok
}

func (s *CoreState) PutStrategy(key string, strat *sentinel.Strategy) {
	s.strategiesMu.Lock()
	defer s.strategiesMu.Unlock()
	s.strategies[key] = strat
}

func (s *CoreState) ReplaceStrategies(strategies map[string]*sentinel.Strategy) {
	s.strategiesMu.Lock()
	defer s.strategiesMu.Unlock()
	s.strategies = strategies
}

func (s *CoreState) Wallet(mode sentinel.TradingMode) sentinel.WalletSnapshot {
	s.walletMu.RLock()
	defer s.walletMu.RUnlock()
	if w, ok := s.wallet[mode]; ok {
		return *w
	}
	return sentinel.WalletSnapshot{TradingMode: mode, UpdatedDate: time.Now()}
}

func (s *CoreState) PutWallet(w sentinel.WalletSnapshot) {
	s.walletMu.Lock()
	defer s.walletMu.Unlock()
	s.wallet[w.TradingMode] = &w
}
