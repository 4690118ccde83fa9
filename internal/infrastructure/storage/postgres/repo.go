package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"fundarb/internal/application/port"
)

const uniqueViolation = "23505"

type Repo struct {
	db *sql.DB
}

func New(dsn string, maxConns int) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if maxConns <= 0 {
		maxConns = 10
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns / 2)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS assets (
  id BIGSERIAL PRIMARY KEY,
  symbol TEXT NOT NULL UNIQUE,
  is_active BOOLEAN NOT NULL DEFAULT TRUE,
  created_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS funding_rates (
  id BIGSERIAL PRIMARY KEY,
  asset_id BIGINT NOT NULL REFERENCES assets(id),
  exchange TEXT NOT NULL,
  rate DOUBLE PRECISION NOT NULL,
  ts_ms BIGINT NOT NULL,
  mark_price DOUBLE PRECISION NOT NULL DEFAULT 0,
  index_price DOUBLE PRECISION NOT NULL DEFAULT 0,
  premium DOUBLE PRECISION NOT NULL DEFAULT 0,
  funding_interval_hours DOUBLE PRECISION NOT NULL DEFAULT 0,
  next_funding_time BIGINT NOT NULL DEFAULT 0,
  created_at BIGINT NOT NULL,
  UNIQUE(asset_id, exchange, ts_ms)
);
CREATE INDEX IF NOT EXISTS idx_funding_rates_ts ON funding_rates(ts_ms);

CREATE TABLE IF NOT EXISTS arbitrage_opportunities (
  id BIGSERIAL PRIMARY KEY,
  opp_key TEXT NOT NULL,
  asset_id BIGINT NOT NULL REFERENCES assets(id),
  exchange_a TEXT NOT NULL,
  exchange_b TEXT NOT NULL,
  rate_a DOUBLE PRECISION NOT NULL,
  rate_b DOUBLE PRECISION NOT NULL,
  rate_difference DOUBLE PRECISION NOT NULL,
  annualized_return DOUBLE PRECISION NOT NULL,
  strategy TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_opp_created ON arbitrage_opportunities(created_at);
CREATE INDEX IF NOT EXISTS idx_opp_key ON arbitrage_opportunities(opp_key);
CREATE INDEX IF NOT EXISTS idx_opp_pair ON arbitrage_opportunities(asset_id, exchange_a, exchange_b, id DESC);

CREATE TABLE IF NOT EXISTS strategies (
  id TEXT PRIMARY KEY,
  symbol TEXT NOT NULL,
  status TEXT NOT NULL,
  long_leg JSONB NOT NULL,
  short_leg JSONB NOT NULL,
  opportunity JSONB NOT NULL,
  created_at BIGINT NOT NULL,
  updated_at BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS strategy_events (
  id BIGSERIAL PRIMARY KEY,
  strategy_id TEXT NOT NULL,
  status TEXT NOT NULL,
  payload JSONB NOT NULL,
  ts_ms BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_strategy_events_sid ON strategy_events(strategy_id);
`)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

var _ port.Store = (*Repo)(nil)
