package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"fundarb/internal/application/port"
)

// Repo SQLite 实现，所有仓储共用一个连接
type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) GetDB() *sql.DB {
	return r.db
}

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS assets (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  symbol TEXT NOT NULL UNIQUE,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS funding_rates (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  asset_id INTEGER NOT NULL REFERENCES assets(id),
  exchange TEXT NOT NULL,
  rate REAL NOT NULL,
  ts_ms INTEGER NOT NULL,
  mark_price REAL NOT NULL DEFAULT 0,
  index_price REAL NOT NULL DEFAULT 0,
  premium REAL NOT NULL DEFAULT 0,
  funding_interval_hours REAL NOT NULL DEFAULT 0,
  next_funding_time INTEGER NOT NULL DEFAULT 0,
  created_at INTEGER NOT NULL,
  UNIQUE(asset_id, exchange, ts_ms)
);
CREATE INDEX IF NOT EXISTS idx_funding_rates_ts ON funding_rates(ts_ms);

CREATE TABLE IF NOT EXISTS arbitrage_opportunities (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  opp_key TEXT NOT NULL,
  asset_id INTEGER NOT NULL REFERENCES assets(id),
  exchange_a TEXT NOT NULL,
  exchange_b TEXT NOT NULL,
  rate_a REAL NOT NULL,
  rate_b REAL NOT NULL,
  rate_difference REAL NOT NULL,
  annualized_return REAL NOT NULL,
  strategy TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_opp_created ON arbitrage_opportunities(created_at);
CREATE INDEX IF NOT EXISTS idx_opp_key ON arbitrage_opportunities(opp_key);
CREATE INDEX IF NOT EXISTS idx_opp_pair ON arbitrage_opportunities(asset_id, exchange_a, exchange_b);

CREATE TABLE IF NOT EXISTS strategies (
  id TEXT PRIMARY KEY,
  symbol TEXT NOT NULL,
  status TEXT NOT NULL,
  long_leg TEXT NOT NULL,
  short_leg TEXT NOT NULL,
  opportunity TEXT NOT NULL,
  created_at INTEGER NOT NULL,
  updated_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_strategies_status ON strategies(status);

CREATE TABLE IF NOT EXISTS strategy_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  strategy_id TEXT NOT NULL,
  status TEXT NOT NULL,
  payload TEXT NOT NULL,
  ts_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_strategy_events_sid ON strategy_events(strategy_id);
`)
	return err
}

var _ port.Store = (*Repo)(nil)
