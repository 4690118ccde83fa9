package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

const oppColumns = `o.id, o.opp_key, o.asset_id, a.symbol, o.exchange_a, o.exchange_b,
		o.rate_a, o.rate_b, o.rate_difference, o.annualized_return, o.strategy, o.created_at`

func scanOpportunity(s rowScanner) (model.ArbitrageOpportunity, error) {
	var o model.ArbitrageOpportunity
	err := s.Scan(&o.ID, &o.Key, &o.AssetID, &o.Symbol, &o.ExchangeA, &o.ExchangeB,
		&o.RateA, &o.RateB, &o.RateDifference, &o.AnnualizedReturn, &o.Strategy, &o.CreatedAt)
	return o, err
}

func (r *Repo) SaveOpportunity(ctx context.Context, opp *model.ArbitrageOpportunity) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO arbitrage_opportunities(
			opp_key, asset_id, exchange_a, exchange_b, rate_a, rate_b,
			rate_difference, annualized_return, strategy, created_at
		) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, opp.Key, opp.AssetID, opp.ExchangeA, opp.ExchangeB, opp.RateA, opp.RateB,
		opp.RateDifference, opp.AnnualizedReturn, opp.Strategy, opp.CreatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	opp.ID = id
	return nil
}

func (r *Repo) DeleteOpportunitiesBefore(ctx context.Context, cutoff int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM arbitrage_opportunities WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListLatestOpportunities 每个 (资产, 交易所对) 取最新一行，按 |diff| 降序
func (r *Repo) ListLatestOpportunities(ctx context.Context, q port.OpportunityQuery) ([]model.ArbitrageOpportunity, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT ` + oppColumns + `
		FROM arbitrage_opportunities o
		JOIN assets a ON a.id = o.asset_id
		JOIN (
			SELECT MAX(id) AS id
			FROM arbitrage_opportunities
			GROUP BY asset_id, exchange_a, exchange_b
		) m ON m.id = o.id
		WHERE o.created_at >= ? AND ABS(o.rate_difference) >= ?`)
	args := []any{q.Since, q.MinAbsDiff}

	if q.Symbol != "" {
		sb.WriteString(` AND a.symbol = ?`)
		args = append(args, q.Symbol)
	}
	sb.WriteString(` ORDER BY ABS(o.rate_difference) DESC, a.symbol, o.exchange_a, o.exchange_b`)
	if q.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ArbitrageOpportunity
	for rows.Next() {
		o, err := scanOpportunity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *Repo) GetOpportunityByKey(ctx context.Context, key string) (*model.ArbitrageOpportunity, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+oppColumns+`
		FROM arbitrage_opportunities o JOIN assets a ON a.id = o.asset_id
		WHERE o.opp_key = ?
		ORDER BY o.id DESC
		LIMIT 1
	`, key)
	o, err := scanOpportunity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}
