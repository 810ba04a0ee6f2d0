// Package store implements the Persistence Layer (C2): a pgx pool session
// pinned to READ COMMITTED, a JSON file mirror for cold-restart fallback,
// and the in-memory CoreState every other component reads and writes
// through. Grounded on the teacher's internal/database/db.go (pool config,
// migration list, HealthCheck idiom).
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sentineld/internal/logging"
)

// DB wraps the Postgres connection pool used by every read/write path.
type DB struct {
	Pool *pgxpool.Pool
}

// Config holds Postgres connection settings.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// NewDB opens a pool and pins every session to READ COMMITTED, the
// isolation level the visibility-check contract in §4.2 assumes.
func NewDB(cfg Config) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	poolConfig.MaxConns = 25
	poolConfig.MinConns = 5
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute
	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, "SET SESSION CHARACTERISTICS AS TRANSACTION ISOLATION LEVEL READ COMMITTED")
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	logging.DatabaseContext("connect", "").Info("connected to PostgreSQL")
	return &DB{Pool: pool}, nil
}

// Close closes the pool.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		logging.DatabaseContext("close", "").Info("database connection closed")
	}
}

// HealthCheck pings the pool.
func (db *DB) HealthCheck(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// RunMigrations creates the schema named in §4.2: live_positions, trades,
// backtest_combinations, wallet_config, plus the indexes the Reconciler and
// Position Manager query paths need.
func (db *DB) RunMigrations(ctx context.Context) error {
	logging.DatabaseContext("migrate", "").Info("running database migrations")

	migrations := []string{
		`CREATE TABLE IF NOT EXISTS live_positions (
			id UUID PRIMARY KEY,
			position_id VARCHAR(100) NOT NULL,
			wallet_id VARCHAR(100) NOT NULL DEFAULT 'default',
			symbol VARCHAR(20) NOT NULL,
			trading_mode VARCHAR(10) NOT NULL,
			status VARCHAR(20),
			entry_price DECIMAL(20, 8) NOT NULL,
			current_price DECIMAL(20, 8) NOT NULL,
			quantity DECIMAL(20, 8) NOT NULL,
			entry_value DECIMAL(20, 8) NOT NULL,
			unrealized_pnl DECIMAL(20, 8) NOT NULL DEFAULT 0,
			stop_loss_price DECIMAL(20, 8),
			take_profit_price DECIMAL(20, 8),
			trailing_stop_percent DECIMAL(10, 4),
			peak_price DECIMAL(20, 8),
			trough_price DECIMAL(20, 8),
			time_exit_hours DECIMAL(10, 2),
			exit_time TIMESTAMPTZ,
			analytics JSONB,
			created_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			entry_timestamp TIMESTAMPTZ NOT NULL,
			last_price_update TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_live_positions_symbol_mode ON live_positions(symbol, trading_mode)`,
		`CREATE INDEX IF NOT EXISTS idx_live_positions_created_date ON live_positions(created_date DESC)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_live_positions_open_symbol_mode
			ON live_positions(symbol, trading_mode)
			WHERE status IS NULL OR status = 'open'`,

		`CREATE TABLE IF NOT EXISTS trades (
			id UUID PRIMARY KEY,
			position_id VARCHAR(100) NOT NULL,
			symbol VARCHAR(20) NOT NULL,
			side VARCHAR(4) NOT NULL,
			trading_mode VARCHAR(10) NOT NULL,
			strategy_name VARCHAR(100) NOT NULL,
			entry_price DECIMAL(20, 8) NOT NULL,
			exit_price DECIMAL(20, 8) NOT NULL,
			quantity DECIMAL(20, 8) NOT NULL,
			pnl_usdt DECIMAL(20, 8) NOT NULL,
			pnl_percent DECIMAL(10, 4) NOT NULL,
			commission DECIMAL(20, 8) NOT NULL DEFAULT 0,
			exit_reason VARCHAR(30) NOT NULL,
			mfe DECIMAL(10, 4),
			mae DECIMAL(10, 4),
			sl_hit_boolean BOOLEAN,
			tp_hit_boolean BOOLEAN,
			analytics JSONB,
			entry_timestamp TIMESTAMPTZ NOT NULL,
			exit_timestamp TIMESTAMPTZ NOT NULL,
			created_date TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_trades_position_id ON trades(position_id)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_strategy_mode ON trades(strategy_name, trading_mode)`,
		`CREATE INDEX IF NOT EXISTS idx_trades_created_date ON trades(created_date DESC)`,

		`CREATE TABLE IF NOT EXISTS backtest_combinations (
			id UUID PRIMARY KEY,
			strategy_name VARCHAR(150) NOT NULL,
			combination_name VARCHAR(150) NOT NULL,
			combination_signature VARCHAR(300),
			coin VARCHAR(20) NOT NULL,
			timeframe VARCHAR(10) NOT NULL,
			included_in_scanner BOOLEAN NOT NULL DEFAULT FALSE,
			included_in_live_scanner BOOLEAN NOT NULL DEFAULT FALSE,
			is_event_driven_strategy BOOLEAN NOT NULL DEFAULT FALSE,
			backtest_stats JSONB,
			backtest_success_rate DECIMAL(10, 4),
			live_success_rate DECIMAL(10, 4),
			live_occurrences INT NOT NULL DEFAULT 0,
			live_avg_price_move DECIMAL(10, 4),
			live_profit_factor DECIMAL(10, 4),
			live_max_drawdown_percent DECIMAL(10, 4),
			live_win_loss_ratio DECIMAL(10, 4),
			live_gross_profit_total DECIMAL(20, 8),
			live_gross_loss_total DECIMAL(20, 8),
			performance_gap_percent DECIMAL(10, 4),
			live_exit_reason_breakdown JSONB,
			last_live_trade_date TIMESTAMPTZ,
			created_date TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_date TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_backtest_combinations_signature
			ON backtest_combinations(combination_signature, coin, timeframe)
			WHERE combination_signature IS NOT NULL AND combination_signature != ''`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_backtest_combinations_name
			ON backtest_combinations(strategy_name, coin, timeframe)
			WHERE combination_signature IS NULL OR combination_signature = ''`,

		`CREATE TABLE IF NOT EXISTS wallet_config (
			id UUID PRIMARY KEY,
			trading_mode VARCHAR(10) NOT NULL UNIQUE,
			count INT NOT NULL DEFAULT 0,
			winning_count INT NOT NULL DEFAULT 0,
			losing_count INT NOT NULL DEFAULT 0,
			gross_profit DECIMAL(20, 8) NOT NULL DEFAULT 0,
			gross_loss DECIMAL(20, 8) NOT NULL DEFAULT 0,
			total_fees DECIMAL(20, 8) NOT NULL DEFAULT 0,
			realized_pnl DECIMAL(20, 8) NOT NULL DEFAULT 0,
			updated_date TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	logging.DatabaseContext("migrate", "").Info("database migrations completed")
	return nil
}
