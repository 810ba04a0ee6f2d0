package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"sentineld/internal/sentinel"
)

// UpsertStrategy writes the client-owned fields of a Strategy (backtest
// stats, flags, keys) via the partial-unique-constrained ON CONFLICT from
// §4.6. Derived live-performance fields are left untouched here; only
// UpsertStrategyLiveStats writes those.
func (r *Repository) UpsertStrategy(ctx context.Context, s *sentinel.Strategy) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	now := time.Now()
	if s.CreatedDate.IsZero() {
		s.CreatedDate = now
	}
	s.UpdatedDate = now

	conflictTarget := "(strategy_name, coin, timeframe)"
	if s.CombinationSignature != "" {
		conflictTarget = "(combination_signature, coin, timeframe)"
	}

	query := `
		INSERT INTO backtest_combinations (
			id, strategy_name, combination_name, combination_signature, coin, timeframe,
			included_in_scanner, included_in_live_scanner, is_event_driven_strategy,
			backtest_stats, backtest_success_rate, created_date, updated_date
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT ` + conflictTarget + ` DO UPDATE SET
			strategy_name = EXCLUDED.strategy_name,
			combination_name = EXCLUDED.combination_name,
			included_in_scanner = EXCLUDED.included_in_scanner,
			included_in_live_scanner = EXCLUDED.included_in_live_scanner,
			is_event_driven_strategy = EXCLUDED.is_event_driven_strategy,
			backtest_stats = EXCLUDED.backtest_stats,
			backtest_success_rate = EXCLUDED.backtest_success_rate,
			updated_date = EXCLUDED.updated_date
		RETURNING id`
	return r.db.Pool.QueryRow(ctx, query,
		s.ID, s.StrategyName, s.CombinationName, nullStringOrNil(s.CombinationSignature), s.Coin, s.Timeframe,
		s.IncludedInScanner, s.IncludedInLiveScanner, s.IsEventDrivenStrategy,
		rawOrNil(s.BacktestStats), s.BacktestSuccessRate, s.CreatedDate, s.UpdatedDate,
	).Scan(&s.ID)
}

// UpsertStrategyLiveStats writes only the derived live-performance columns,
// never touching client-owned fields.
func (r *Repository) UpsertStrategyLiveStats(ctx context.Context, s *sentinel.Strategy) error {
	breakdown, err := json.Marshal(s.LiveExitReasonBreakdown)
	if err != nil {
		return sentinel.Persistence("marshal exit reason breakdown", err)
	}

	_, err = r.db.Pool.Exec(ctx, `
		UPDATE backtest_combinations SET
			live_success_rate = $2, live_occurrences = $3, live_avg_price_move = $4,
			live_profit_factor = $5, live_max_drawdown_percent = $6, live_win_loss_ratio = $7,
			live_gross_profit_total = $8, live_gross_loss_total = $9,
			performance_gap_percent = $10, live_exit_reason_breakdown = $11,
			last_live_trade_date = $12, updated_date = $13
		WHERE strategy_name = $1`,
		s.StrategyName, s.LiveSuccessRate, s.LiveOccurrences, s.LiveAvgPriceMove,
		s.LiveProfitFactor, s.LiveMaxDrawdownPct, s.LiveWinLossRatio,
		s.LiveGrossProfitTotal, s.LiveGrossLossTotal,
		s.PerformanceGapPercent, breakdown, s.LastLiveTradeDate, time.Now(),
	)
	if err != nil {
		return sentinel.Persistence("upsert strategy live stats", err)
	}
	return nil
}

// ListStrategies loads every backtest combination row.
func (r *Repository) ListStrategies(ctx context.Context, limit int) ([]*sentinel.Strategy, error) {
	if limit <= 0 {
		limit = 10000
	}
	rows, err := r.db.Pool.Query(ctx, `SELECT
		id, strategy_name, combination_name, combination_signature, coin, timeframe,
		included_in_scanner, included_in_live_scanner, is_event_driven_strategy,
		backtest_stats, backtest_success_rate,
		live_success_rate, live_occurrences, live_avg_price_move, live_profit_factor,
		live_max_drawdown_percent, live_win_loss_ratio, live_gross_profit_total, live_gross_loss_total,
		performance_gap_percent, live_exit_reason_breakdown, last_live_trade_date,
		created_date, updated_date
		FROM backtest_combinations ORDER BY created_date DESC LIMIT $1`, limit)
	if err != nil {
		return nil, sentinel.Persistence("list strategies", err)
	}
	defer rows.Close()

	var out []*sentinel.Strategy
	for rows.Next() {
		s, err := scanStrategy(rows)
		if err != nil {
			return nil, sentinel.Persistence("scan strategy", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scanStrategy(rows pgx.Rows) (*sentinel.Strategy, error) {
	s := &sentinel.Strategy{}
	var signature sql.NullString
	var backtestStats, breakdown []byte
	var lastLiveTradeDate sql.NullTime

	err := rows.Scan(
		&s.ID, &s.StrategyName, &s.CombinationName, &signature, &s.Coin, &s.Timeframe,
		&s.IncludedInScanner, &s.IncludedInLiveScanner, &s.IsEventDrivenStrategy,
		&backtestStats, &s.BacktestSuccessRate,
		&s.LiveSuccessRate, &s.LiveOccurrences, &s.LiveAvgPriceMove, &s.LiveProfitFactor,
		&s.LiveMaxDrawdownPct, &s.LiveWinLossRatio, &s.LiveGrossProfitTotal, &s.LiveGrossLossTotal,
		&s.PerformanceGapPercent, &breakdown, &lastLiveTradeDate,
		&s.CreatedDate, &s.UpdatedDate,
	)
	if err != nil {
		return nil, err
	}

	s.CombinationSignature = signature.String
	if len(backtestStats) > 0 {
		s.BacktestStats = backtestStats
	}
	if len(breakdown) > 0 {
		_ = json.Unmarshal(breakdown, &s.LiveExitReasonBreakdown)
	}
	if lastLiveTradeDate.Valid {
		t := lastLiveTradeDate.Time
		s.LastLiveTradeDate = &t
	}
	return s, nil
}

// DeleteStrategies removes backtest_combinations rows by id.
func (r *Repository) DeleteStrategies(ctx context.Context, ids []string) error {
	_, err := r.db.Pool.Exec(ctx, `DELETE FROM backtest_combinations WHERE id = ANY($1)`, ids)
	if err != nil {
		return sentinel.Persistence("delete strategies", err)
	}
	return nil
}

func nullStringOrNil(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
