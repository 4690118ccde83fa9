package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

func (r *Repo) FindAssetBySymbol(ctx context.Context, symbol string) (*model.Asset, error) {
	var (
		a         model.Asset
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, symbol, is_active, created_at FROM assets WHERE symbol = $1`, symbol).
		Scan(&a.ID, &a.Symbol, &a.IsActive, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.CreatedAt = time.UnixMilli(createdAt)
	return &a, nil
}

func (r *Repo) InsertAsset(ctx context.Context, symbol string) (*model.Asset, error) {
	now := time.Now().UnixMilli()
	var id int64
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO assets(symbol, is_active, created_at) VALUES($1, TRUE, $2) RETURNING id`,
		symbol, now).Scan(&id)
	if isUniqueViolation(err) {
		return nil, port.ErrAssetExists
	}
	if err != nil {
		return nil, err
	}
	return &model.Asset{ID: id, Symbol: symbol, IsActive: true, CreatedAt: time.UnixMilli(now)}, nil
}

func (r *Repo) InsertRate(ctx context.Context, obs *model.RateObservation) (bool, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO funding_rates(
			asset_id, exchange, rate, ts_ms,
			mark_price, index_price, premium, funding_interval_hours, next_funding_time,
			created_at
		) VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (asset_id, exchange, ts_ms) DO NOTHING
		RETURNING id
	`, obs.AssetID, obs.Exchange, obs.Rate, obs.Timestamp,
		obs.Extra.MarkPrice, obs.Extra.IndexPrice, obs.Extra.Premium,
		obs.Extra.FundingIntervalHours, obs.Extra.NextFundingTime,
		time.Now().UnixMilli()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	obs.ID = id
	return true, nil
}

const rateColumns = `f.id, f.asset_id, a.symbol, f.exchange, f.rate, f.ts_ms,
		f.mark_price, f.index_price, f.premium, f.funding_interval_hours, f.next_funding_time`

func scanRates(rows *sql.Rows) ([]model.RateObservation, error) {
	defer rows.Close()
	var out []model.RateObservation
	for rows.Next() {
		var o model.RateObservation
		if err := rows.Scan(&o.ID, &o.AssetID, &o.Symbol, &o.Exchange, &o.Rate, &o.Timestamp,
			&o.Extra.MarkPrice, &o.Extra.IndexPrice, &o.Extra.Premium,
			&o.Extra.FundingIntervalHours, &o.Extra.NextFundingTime); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) LatestRate(ctx context.Context, assetID int64, exchange string, since int64) (*model.RateObservation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+rateColumns+`
		FROM funding_rates f JOIN assets a ON a.id = f.asset_id
		WHERE f.asset_id = $1 AND f.exchange = $2 AND f.ts_ms >= $3
		ORDER BY f.ts_ms DESC
		LIMIT 1
	`, assetID, exchange, since)
	if err != nil {
		return nil, err
	}
	out, err := scanRates(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, port.ErrNotFound
	}
	return &out[0], nil
}

func (r *Repo) LatestRatesByExchange(ctx context.Context, assetID int64, since int64) (map[string]model.RateObservation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT DISTINCT ON (f.exchange) `+rateColumns+`
		FROM funding_rates f JOIN assets a ON a.id = f.asset_id
		WHERE f.asset_id = $1 AND f.ts_ms >= $2
		ORDER BY f.exchange, f.ts_ms DESC
	`, assetID, since)
	if err != nil {
		return nil, err
	}
	list, err := scanRates(rows)
	if err != nil {
		return nil, err
	}
	out := make(map[string]model.RateObservation, len(list))
	for _, o := range list {
		out[o.Exchange] = o
	}
	return out, nil
}

func (r *Repo) AssetsWithRatesSince(ctx context.Context, since int64) ([]model.Asset, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT a.id, a.symbol, a.is_active, a.created_at
		FROM assets a
		WHERE a.is_active
		  AND EXISTS (SELECT 1 FROM funding_rates f WHERE f.asset_id = a.id AND f.ts_ms >= $1)
		ORDER BY a.symbol
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Asset
	for rows.Next() {
		var (
			a         model.Asset
			createdAt int64
		)
		if err := rows.Scan(&a.ID, &a.Symbol, &a.IsActive, &createdAt); err != nil {
			return nil, err
		}
		a.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *Repo) RateHistory(ctx context.Context, assetID int64, exchange string, from, to int64) ([]model.RateObservation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+rateColumns+`
		FROM funding_rates f JOIN assets a ON a.id = f.asset_id
		WHERE f.asset_id = $1 AND f.exchange = $2 AND f.ts_ms >= $3 AND ($4 = 0 OR f.ts_ms <= $4)
		ORDER BY f.ts_ms
	`, assetID, exchange, from, to)
	if err != nil {
		return nil, err
	}
	return scanRates(rows)
}

func (r *Repo) SaveOpportunity(ctx context.Context, opp *model.ArbitrageOpportunity) error {
	return r.db.QueryRowContext(ctx, `
		INSERT INTO arbitrage_opportunities(
			opp_key, asset_id, exchange_a, exchange_b, rate_a, rate_b,
			rate_difference, annualized_return, strategy, created_at
		) VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, opp.Key, opp.AssetID, opp.ExchangeA, opp.ExchangeB, opp.RateA, opp.RateB,
		opp.RateDifference, opp.AnnualizedReturn, opp.Strategy, opp.CreatedAt).Scan(&opp.ID)
}

func (r *Repo) DeleteOpportunitiesBefore(ctx context.Context, cutoff int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM arbitrage_opportunities WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const oppColumns = `o.id, o.opp_key, o.asset_id, a.symbol, o.exchange_a, o.exchange_b,
		o.rate_a, o.rate_b, o.rate_difference, o.annualized_return, o.strategy, o.created_at`

func scanOpportunities(rows *sql.Rows) ([]model.ArbitrageOpportunity, error) {
	defer rows.Close()
	var out []model.ArbitrageOpportunity
	for rows.Next() {
		var o model.ArbitrageOpportunity
		if err := rows.Scan(&o.ID, &o.Key, &o.AssetID, &o.Symbol, &o.ExchangeA, &o.ExchangeB,
			&o.RateA, &o.RateB, &o.RateDifference, &o.AnnualizedReturn, &o.Strategy, &o.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) ListLatestOpportunities(ctx context.Context, q port.OpportunityQuery) ([]model.ArbitrageOpportunity, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT * FROM (
			SELECT DISTINCT ON (o.asset_id, o.exchange_a, o.exchange_b) ` + oppColumns + `
			FROM arbitrage_opportunities o JOIN assets a ON a.id = o.asset_id
			ORDER BY o.asset_id, o.exchange_a, o.exchange_b, o.id DESC
		) latest
		WHERE created_at >= $1 AND ABS(rate_difference) >= $2`)
	args := []any{q.Since, q.MinAbsDiff}

	if q.Symbol != "" {
		args = append(args, q.Symbol)
		fmt.Fprintf(&sb, ` AND symbol = $%d`, len(args))
	}
	sb.WriteString(` ORDER BY ABS(rate_difference) DESC, symbol, exchange_a, exchange_b`)
	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, ` LIMIT $%d`, len(args))
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	return scanOpportunities(rows)
}

func (r *Repo) GetOpportunityByKey(ctx context.Context, key string) (*model.ArbitrageOpportunity, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+oppColumns+`
		FROM arbitrage_opportunities o JOIN assets a ON a.id = o.asset_id
		WHERE o.opp_key = $1
		ORDER BY o.id DESC
		LIMIT 1
	`, key)
	if err != nil {
		return nil, err
	}
	out, err := scanOpportunities(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, port.ErrNotFound
	}
	return &out[0], nil
}

func (r *Repo) SaveStrategy(ctx context.Context, s *model.Strategy) error {
	longLeg, err := json.Marshal(s.Long)
	if err != nil {
		return err
	}
	shortLeg, err := json.Marshal(s.Short)
	if err != nil {
		return err
	}
	opp, err := json.Marshal(s.Opportunity)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(s)
	if err != nil {
		return err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO strategies(id, symbol, status, long_leg, short_leg, opportunity, created_at, updated_at)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status, long_leg = EXCLUDED.long_leg, short_leg = EXCLUDED.short_leg,
			updated_at = EXCLUDED.updated_at
	`, s.ID, s.Symbol, string(s.Status), string(longLeg), string(shortLeg), string(opp),
		s.CreatedAt.UnixMilli(), s.UpdatedAt.UnixMilli()); err != nil {
		return fmt.Errorf("upsert strategy: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO strategy_events(strategy_id, status, payload, ts_ms) VALUES($1, $2, $3, $4)`,
		s.ID, string(s.Status), string(payload), s.UpdatedAt.UnixMilli()); err != nil {
		return fmt.Errorf("insert strategy event: %w", err)
	}
	return tx.Commit()
}

func (r *Repo) ListOpenStrategies(ctx context.Context) ([]model.Strategy, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, symbol, status, long_leg, short_leg, opportunity, created_at, updated_at
		FROM strategies
		WHERE status <> $1
		ORDER BY created_at, id
	`, string(model.StrategyClosed))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Strategy
	for rows.Next() {
		var (
			s                         model.Strategy
			status                    string
			longLeg, shortLeg, oppRaw []byte
			createdAt, updatedAt      int64
		)
		if err := rows.Scan(&s.ID, &s.Symbol, &status, &longLeg, &shortLeg, &oppRaw, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(longLeg, &s.Long); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(shortLeg, &s.Short); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(oppRaw, &s.Opportunity); err != nil {
			return nil, err
		}
		s.Status = model.StrategyStatus(status)
		s.CreatedAt = time.UnixMilli(createdAt)
		s.UpdatedAt = time.UnixMilli(updatedAt)
		out = append(out, s)
	}
	return out, rows.Err()
}
