package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

const rateColumns = `f.id, f.asset_id, a.symbol, f.exchange, f.rate, f.ts_ms,
		f.mark_price, f.index_price, f.premium, f.funding_interval_hours, f.next_funding_time`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRate(s rowScanner) (model.RateObservation, error) {
	var o model.RateObservation
	err := s.Scan(&o.ID, &o.AssetID, &o.Symbol, &o.Exchange, &o.Rate, &o.Timestamp,
		&o.Extra.MarkPrice, &o.Extra.IndexPrice, &o.Extra.Premium,
		&o.Extra.FundingIntervalHours, &o.Extra.NextFundingTime)
	return o, err
}

// InsertRate 相同 (asset, exchange, ts) 直接忽略
func (r *Repo) InsertRate(ctx context.Context, obs *model.RateObservation) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO funding_rates(
			asset_id, exchange, rate, ts_ms,
			mark_price, index_price, premium, funding_interval_hours, next_funding_time,
			created_at
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(asset_id, exchange, ts_ms) DO NOTHING
	`, obs.AssetID, obs.Exchange, obs.Rate, obs.Timestamp,
		obs.Extra.MarkPrice, obs.Extra.IndexPrice, obs.Extra.Premium,
		obs.Extra.FundingIntervalHours, obs.Extra.NextFundingTime,
		time.Now().UnixMilli())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, nil
	}
	if id, err := res.LastInsertId(); err == nil {
		obs.ID = id
	}
	return true, nil
}

func (r *Repo) LatestRate(ctx context.Context, assetID int64, exchange string, since int64) (*model.RateObservation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+rateColumns+`
		FROM funding_rates f JOIN assets a ON a.id = f.asset_id
		WHERE f.asset_id = ? AND f.exchange = ? AND f.ts_ms >= ?
		ORDER BY f.ts_ms DESC
		LIMIT 1
	`, assetID, exchange, since)
	o, err := scanRate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *Repo) LatestRatesByExchange(ctx context.Context, assetID int64, since int64) (map[string]model.RateObservation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+rateColumns+`
		FROM funding_rates f
		JOIN assets a ON a.id = f.asset_id
		JOIN (
			SELECT exchange, MAX(ts_ms) AS ts_ms
			FROM funding_rates
			WHERE asset_id = ? AND ts_ms >= ?
			GROUP BY exchange
		) m ON m.exchange = f.exchange AND m.ts_ms = f.ts_ms
		WHERE f.asset_id = ?
	`, assetID, since, assetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]model.RateObservation)
	for rows.Next() {
		o, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		out[o.Exchange] = o
	}
	return out, rows.Err()
}

func (r *Repo) AssetsWithRatesSince(ctx context.Context, since int64) ([]model.Asset, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.symbol, a.is_active, a.created_at
		FROM assets a
		WHERE a.is_active = 1
		  AND EXISTS (SELECT 1 FROM funding_rates f WHERE f.asset_id = a.id AND f.ts_ms >= ?)
		ORDER BY a.symbol
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assets []model.Asset
	for rows.Next() {
		var (
			a         model.Asset
			active    int
			createdAt int64
		)
		if err := rows.Scan(&a.ID, &a.Symbol, &active, &createdAt); err != nil {
			return nil, err
		}
		a.IsActive = active != 0
		a.CreatedAt = time.UnixMilli(createdAt)
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// RateHistory to=0 表示不设上限
func (r *Repo) RateHistory(ctx context.Context, assetID int64, exchange string, from, to int64) ([]model.RateObservation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+rateColumns+`
		FROM funding_rates f JOIN assets a ON a.id = f.asset_id
		WHERE f.asset_id = ? AND f.exchange = ? AND f.ts_ms >= ? AND (? = 0 OR f.ts_ms <= ?)
		ORDER BY f.ts_ms
	`, assetID, exchange, from, to, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.RateObservation
	for rows.Next() {
		o, err := scanRate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
