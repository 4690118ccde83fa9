package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fundarb/internal/domain/model"
)

// SaveStrategy 覆盖最新状态并追加一条流水
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
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status=excluded.status, long_leg=excluded.long_leg, short_leg=excluded.short_leg,
			updated_at=excluded.updated_at
	`, s.ID, s.Symbol, string(s.Status), string(longLeg), string(shortLeg), string(opp),
		s.CreatedAt.UnixMilli(), s.UpdatedAt.UnixMilli()); err != nil {
		return fmt.Errorf("upsert strategy: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO strategy_events(strategy_id, status, payload, ts_ms) VALUES(?, ?, ?, ?)
	`, s.ID, string(s.Status), string(payload), s.UpdatedAt.UnixMilli()); err != nil {
		return fmt.Errorf("insert strategy event: %w", err)
	}
	return tx.Commit()
}

func (r *Repo) ListOpenStrategies(ctx context.Context) ([]model.Strategy, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, symbol, status, long_leg, short_leg, opportunity, created_at, updated_at
		FROM strategies
		WHERE status != ?
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
			longLeg, shortLeg, oppRaw string
			createdAt, updatedAt      int64
		)
		if err := rows.Scan(&s.ID, &s.Symbol, &status, &longLeg, &shortLeg, &oppRaw, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(longLeg), &s.Long); err != nil {
			return nil, fmt.Errorf("strategy %s long leg: %w", s.ID, err)
		}
		if err := json.Unmarshal([]byte(shortLeg), &s.Short); err != nil {
			return nil, fmt.Errorf("strategy %s short leg: %w", s.ID, err)
		}
		if err := json.Unmarshal([]byte(oppRaw), &s.Opportunity); err != nil {
			return nil, fmt.Errorf("strategy %s opportunity: %w", s.ID, err)
		}
		s.Status = model.StrategyStatus(status)
		s.CreatedAt = time.UnixMilli(createdAt)
		s.UpdatedAt = time.UnixMilli(updatedAt)
		out = append(out, s)
	}
	return out, rows.Err()
}

// StrategyEvents 某策略的状态流水（按时间）
func (r *Repo) StrategyEvents(ctx context.Context, id string) ([]model.StrategyStatus, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT status FROM strategy_events WHERE strategy_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.StrategyStatus
	for rows.Next() {
		var st string
		if err := rows.Scan(&st); err != nil {
			return nil, err
		}
		out = append(out, model.StrategyStatus(st))
	}
	return out, rows.Err()
}
