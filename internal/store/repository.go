package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"sentineld/internal/logging"
	"sentineld/internal/sentinel"
)

// Repository is the typed query layer over DB. Every write follows the
// visibility-check contract from §4.2.3: explicit COMMIT, 50ms sleep,
// read-back by primary key, read-back via the listing query.
type Repository struct {
	db *DB
}

func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

const visibilitySleep = 50 * time.Millisecond

// verifyVisibility performs the post-commit read-back pair required by
// §4.2.3 and logs a structured error if either fails to observe the row.
// It never returns an error itself — an invisible row is a logged defect,
// not a failed write (the write already committed).
func (r *Repository) verifyVisibility(ctx context.Context, table, pkColumn, pkValue, listingQuery string) {
	time.Sleep(visibilitySleep)

	var exists bool
	pkQuery := fmt.Sprintf("SELECT EXISTS(SELECT 1 FROM %s WHERE %s = $1)", table, pkColumn)
	if err := r.db.Pool.QueryRow(ctx, pkQuery, pkValue).Scan(&exists); err != nil || !exists {
		logging.DatabaseContext("verify-visibility-pk", table).
			WithField("pk", pkValue).Error("row not visible by primary key after commit")
	}

	rows, err := r.db.Pool.Query(ctx, listingQuery)
	if err != nil {
		logging.DatabaseContext("verify-visibility-listing", table).WithError(err).Error("listing read-back failed")
		return
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var id string
		if rows.Scan(&id) == nil && id == pkValue {
			found = true
			break
		}
	}
	if !found {
		logging.DatabaseContext("verify-visibility-listing", table).
			WithField("pk", pkValue).Error("row not visible via listing query after commit")
	}
}

// ---------------------------------------------------------------------------
// Positions
// ---------------------------------------------------------------------------

// InsertPosition writes a new open position and runs the visibility check.
func (r *Repository) InsertPosition(ctx context.Context, p sentinel.Position) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return sentinel.Persistence("begin insert position", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO live_positions (
			id, position_id, wallet_id, symbol, trading_mode, status,
			entry_price, current_price, quantity, entry_value, unrealized_pnl,
			stop_loss_price, take_profit_price, trailing_stop_percent,
			peak_price, trough_price, time_exit_hours, exit_time, analytics,
			created_date, updated_date, entry_timestamp, last_price_update
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23
		)`
	_, err = tx.Exec(ctx, query,
		p.ID, p.PositionID, p.WalletID, p.Symbol, p.TradingMode, nullableStatus(p.Status),
		p.EntryPrice, p.CurrentPrice, p.Quantity, p.EntryValue, p.UnrealizedPnL,
		p.StopLossPrice, p.TakeProfitPrice, p.TrailingStopPct,
		p.PeakPrice, p.TroughPrice, p.TimeExitHours, p.ExitTime, rawOrNil(p.Analytics),
		p.CreatedDate, p.UpdatedDate, p.EntryTimestamp, p.LastPriceUpdate,
	)
	if err != nil {
		return sentinel.Persistence("insert position", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return sentinel.Persistence("commit insert position", err)
	}

	r.verifyVisibility(ctx, "live_positions", "id", p.ID,
		"SELECT id FROM live_positions ORDER BY created_date DESC")
	return nil
}

// UpdatePositionHotFields applies a narrow hot-field update for the
// tick-driven fields only, avoiding a full row rewrite on every price tick.
func (r *Repository) UpdatePositionHotFields(ctx context.Context, p sentinel.Position) error {
	query := `
		UPDATE live_positions SET
			current_price = $2, unrealized_pnl = $3, peak_price = $4,
			trough_price = $5, status = $6, exit_time = $7, updated_date = $8,
			last_price_update = $9, time_exit_hours = $10
		WHERE id = $1`
	_, err := r.db.Pool.Exec(ctx, query,
		p.ID, p.CurrentPrice, p.UnrealizedPnL, p.PeakPrice, p.TroughPrice,
		nullableStatus(p.Status), p.ExitTime, p.UpdatedDate, p.LastPriceUpdate,
		p.TimeExitHours,
	)
	if err != nil {
		return sentinel.Persistence("update position hot fields", err)
	}
	return nil
}

// UpdatePosition applies a full-row update covering every client-patchable
// field, including stop_loss_price/take_profit_price, which
// UpdatePositionHotFields intentionally leaves untouched.
func (r *Repository) UpdatePosition(ctx context.Context, p sentinel.Position) error {
	query := `
		UPDATE live_positions SET
			current_price = $2, unrealized_pnl = $3, peak_price = $4,
			trough_price = $5, status = $6, exit_time = $7, updated_date = $8,
			last_price_update = $9, stop_loss_price = $10, take_profit_price = $11,
			time_exit_hours = $12
		WHERE id = $1`
	_, err := r.db.Pool.Exec(ctx, query,
		p.ID, p.CurrentPrice, p.UnrealizedPnL, p.PeakPrice, p.TroughPrice,
		nullableStatus(p.Status), p.ExitTime, p.UpdatedDate, p.LastPriceUpdate,
		p.StopLossPrice, p.TakeProfitPrice, p.TimeExitHours,
	)
	if err != nil {
		return sentinel.Persistence("update position", err)
	}
	return nil
}

// DeletePosition removes a position row by position_id (used by dust
// virtual-close and ghost purge).
func (r *Repository) DeletePosition(ctx context.Context, positionID string) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM live_positions WHERE position_id = $1`, positionID)
	if err != nil {
		return 0, sentinel.Persistence("delete position", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteOpenPositionsBySymbolMode is the §4.5.2 DB fallback for virtual
// close when no matching in-memory positions are found.
func (r *Repository) DeleteOpenPositionsBySymbolMode(ctx context.Context, symbol string, mode sentinel.TradingMode) (int64, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		DELETE FROM live_positions
		WHERE symbol = $1 AND trading_mode = $2 AND (status IS NULL OR status = 'open')`,
		symbol, mode)
	if err != nil {
		return 0, sentinel.Persistence("delete open positions by symbol/mode", err)
	}
	return tag.RowsAffected(), nil
}

// ListPositions runs the canonical listing query from §4.4 step 1.
func (r *Repository) ListPositions(ctx context.Context) ([]sentinel.Position, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT
		id, position_id, wallet_id, symbol, trading_mode, status,
		entry_price, current_price, quantity, entry_value, unrealized_pnl,
		stop_loss_price, take_profit_price, trailing_stop_percent,
		peak_price, trough_price, time_exit_hours, exit_time, analytics,
		created_date, updated_date, entry_timestamp, last_price_update
		FROM live_positions ORDER BY created_date DESC`)
	if err != nil {
		return nil, sentinel.Persistence("list positions", err)
	}
	defer rows.Close()

	var out []sentinel.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, sentinel.Persistence("scan position", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPosition(rows pgx.Rows) (sentinel.Position, error) {
	var p sentinel.Position
	var status sql.NullString
	var stopLoss, takeProfit, trailing, peak, trough sql.NullFloat64
	var exitTime sql.NullTime
	var analytics []byte

	err := rows.Scan(
		&p.ID, &p.PositionID, &p.WalletID, &p.Symbol, &p.TradingMode, &status,
		&p.EntryPrice, &p.CurrentPrice, &p.Quantity, &p.EntryValue, &p.UnrealizedPnL,
		&stopLoss, &takeProfit, &trailing, &peak, &trough, &p.TimeExitHours,
		&exitTime, &analytics,
		&p.CreatedDate, &p.UpdatedDate, &p.EntryTimestamp, &p.LastPriceUpdate,
	)
	if err != nil {
		return p, err
	}

	if status.Valid {
		p.Status = sentinel.PositionStatus(status.String)
	} else {
		p.Status = sentinel.StatusOpen
	}
	p.StopLossPrice = stopLoss.Float64
	p.TakeProfitPrice = takeProfit.Float64
	p.TrailingStopPct = trailing.Float64
	p.PeakPrice = peak.Float64
	p.TroughPrice = trough.Float64
	if exitTime.Valid {
		t := exitTime.Time
		p.ExitTime = &t
	}
	if len(analytics) > 0 {
		p.Analytics = analytics
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// Trades
// ---------------------------------------------------------------------------

// InsertTrade inserts a trade with ON CONFLICT (id) DO UPDATE so a
// late-arriving enrichment merges instead of creating a second row (§4.3.3).
func (r *Repository) InsertTrade(ctx context.Context, t sentinel.Trade) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return sentinel.Persistence("begin insert trade", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO trades (
			id, position_id, symbol, side, trading_mode, strategy_name,
			entry_price, exit_price, quantity, pnl_usdt, pnl_percent, commission,
			exit_reason, mfe, mae, sl_hit_boolean, tp_hit_boolean, analytics,
			entry_timestamp, exit_timestamp, created_date
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21
		)
		ON CONFLICT (id) DO UPDATE SET
			exit_price = EXCLUDED.exit_price,
			pnl_usdt = EXCLUDED.pnl_usdt,
			pnl_percent = EXCLUDED.pnl_percent,
			commission = EXCLUDED.commission,
			mfe = EXCLUDED.mfe,
			mae = EXCLUDED.mae,
			sl_hit_boolean = EXCLUDED.sl_hit_boolean,
			tp_hit_boolean = EXCLUDED.tp_hit_boolean,
			analytics = EXCLUDED.analytics`
	_, err = tx.Exec(ctx, query,
		t.ID, t.PositionID, t.Symbol, t.Side, t.TradingMode, t.StrategyName,
		t.EntryPrice, t.ExitPrice, t.Quantity, t.PnLUSDT, t.PnLPercent, t.Commission,
		t.ExitReason, nullFloatOrNil(t.MaxFavorableExcursion), nullFloatOrNil(t.MaxAdverseExcursion),
		t.SLHit, t.TPHit, rawOrNil(t.Analytics),
		t.EntryTimestamp, t.ExitTimestamp, t.CreatedDate,
	)
	if err != nil {
		return sentinel.Persistence("insert trade", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return sentinel.Persistence("commit insert trade", err)
	}

	r.verifyVisibility(ctx, "trades", "id", t.ID,
		"SELECT id FROM trades ORDER BY created_date DESC")
	return nil
}

// ListTrades loads the full ledger, newest first.
func (r *Repository) ListTrades(ctx context.Context) ([]sentinel.Trade, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT
		id, position_id, symbol, side, trading_mode, strategy_name,
		entry_price, exit_price, quantity, pnl_usdt, pnl_percent, commission,
		exit_reason, mfe, mae, sl_hit_boolean, tp_hit_boolean, analytics,
		entry_timestamp, exit_timestamp, created_date
		FROM trades ORDER BY created_date DESC`)
	if err != nil {
		return nil, sentinel.Persistence("list trades", err)
	}
	defer rows.Close()

	var out []sentinel.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, sentinel.Persistence("scan trade", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTrade(rows pgx.Rows) (sentinel.Trade, error) {
	var t sentinel.Trade
	var mfe, mae sql.NullFloat64
	var slHit, tpHit sql.NullBool
	var analytics []byte
	var exitTimestamp sql.NullTime

	err := rows.Scan(
		&t.ID, &t.PositionID, &t.Symbol, &t.Side, &t.TradingMode, &t.StrategyName,
		&t.EntryPrice, &t.ExitPrice, &t.Quantity, &t.PnLUSDT, &t.PnLPercent, &t.Commission,
		&t.ExitReason, &mfe, &mae, &slHit, &tpHit, &analytics,
		&t.EntryTimestamp, &exitTimestamp, &t.CreatedDate,
	)
	if err != nil {
		return t, err
	}
	t.MaxFavorableExcursion = mfe.Float64
	t.MaxAdverseExcursion = mae.Float64
	t.SLHit = slHit.Bool
	t.TPHit = tpHit.Bool
	if exitTimestamp.Valid {
		et := exitTimestamp.Time
		t.ExitTimestamp = &et
	}
	if len(analytics) > 0 {
		t.Analytics = analytics
	}
	return t, nil
}

// DeleteTrades removes rows by id and returns the remaining row count.
func (r *Repository) DeleteTrades(ctx context.Context, ids []string) (deleted, remaining int64, err error) {
	if len(ids) > 0 {
		tag, derr := r.db.Pool.Exec(ctx, `DELETE FROM trades WHERE id = ANY($1)`, ids)
		if derr != nil {
			return 0, 0, sentinel.Persistence("delete trades", derr)
		}
		deleted = tag.RowsAffected()
	}
	if err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM trades`).Scan(&remaining); err != nil {
		return deleted, 0, sentinel.Persistence("count remaining trades", err)
	}
	return deleted, remaining, nil
}

// UpdateTradePnL rewrites the recomputed P&L fields for recalculate-pnl.
func (r *Repository) UpdateTradePnL(ctx context.Context, id string, pnlUSDT, pnlPercent, commission float64) error {
	_, err := r.db.Pool.Exec(ctx, `
		UPDATE trades SET pnl_usdt = $2, pnl_percent = $3, commission = $4 WHERE id = $1`,
		id, pnlUSDT, pnlPercent, commission)
	if err != nil {
		return sentinel.Persistence("update trade pnl", err)
	}
	return nil
}

// UpdateTradeEntryPrice rewrites a single trade's entry_price, used by the
// fix-entry-prices admin operation.
func (r *Repository) UpdateTradeEntryPrice(ctx context.Context, id string, entryPrice float64) error {
	_, err := r.db.Pool.Exec(ctx, `UPDATE trades SET entry_price = $2 WHERE id = $1`, id, entryPrice)
	if err != nil {
		return sentinel.Persistence("update trade entry price", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Wallet
// ---------------------------------------------------------------------------

// UpsertWallet writes the recomputed wallet counters for a trading mode.
func (r *Repository) UpsertWallet(ctx context.Context, w sentinel.WalletSnapshot) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO wallet_config (id, trading_mode, count, winning_count, losing_count, gross_profit, gross_loss, total_fees, realized_pnl, updated_date)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (trading_mode) DO UPDATE SET
			count = EXCLUDED.count,
			winning_count = EXCLUDED.winning_count,
			losing_count = EXCLUDED.losing_count,
			gross_profit = EXCLUDED.gross_profit,
			gross_loss = EXCLUDED.gross_loss,
			total_fees = EXCLUDED.total_fees,
			realized_pnl = EXCLUDED.realized_pnl,
			updated_date = EXCLUDED.updated_date`,
		w.TradingMode, w.Count, w.WinningCount, w.LosingCount, w.GrossProfit, w.GrossLoss, w.TotalFees, w.RealizedPnL, w.UpdatedDate,
	)
	if err != nil {
		return sentinel.Persistence("upsert wallet", err)
	}
	return nil
}

// GetWallet reads the stored wallet row for a trading mode.
func (r *Repository) GetWallet(ctx context.Context, mode sentinel.TradingMode) (sentinel.WalletSnapshot, error) {
	var w sentinel.WalletSnapshot
	w.TradingMode = mode
	err := r.db.Pool.QueryRow(ctx, `
		SELECT count, winning_count, losing_count, gross_profit, gross_loss, total_fees, realized_pnl, updated_date
		FROM wallet_config WHERE trading_mode = $1`, mode,
	).Scan(&w.Count, &w.WinningCount, &w.LosingCount, &w.GrossProfit, &w.GrossLoss, &w.TotalFees, &w.RealizedPnL, &w.UpdatedDate)
	if err != nil {
		if err == pgx.ErrNoRows {
			return w, nil
		}
		return w, sentinel.Persistence("get wallet", err)
	}
	return w, nil
}

func nullableStatus(s sentinel.PositionStatus) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullFloatOrNil(f float64) interface{} {
	if f == 0 {
		return nil
	}
	return f
}

func rawOrNil(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
