package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

func (r *Repo) FindAssetBySymbol(ctx context.Context, symbol string) (*model.Asset, error) {
	var (
		a         model.Asset
		active    int
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, symbol, is_active, created_at FROM assets WHERE symbol = ?`, symbol).
		Scan(&a.ID, &a.Symbol, &active, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.IsActive = active != 0
	a.CreatedAt = time.UnixMilli(createdAt)
	return &a, nil
}

// InsertAsset 冲突时不插入，返回 ErrAssetExists
func (r *Repo) InsertAsset(ctx context.Context, symbol string) (*model.Asset, error) {
	now := time.Now()
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO assets(symbol, is_active, created_at) VALUES(?, 1, ?)
		ON CONFLICT(symbol) DO NOTHING
		RETURNING id
	`, symbol, now.UnixMilli()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrAssetExists
	}
	if err != nil {
		return nil, err
	}
	return &model.Asset{ID: id, Symbol: symbol, IsActive: true, CreatedAt: time.UnixMilli(now.UnixMilli())}, nil
}
