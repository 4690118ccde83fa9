package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	domainservice "fundarb/internal/domain/service"
)

// AssetResolver 规范资产代码 -> 资产 ID，首次出现时创建
type AssetResolver struct {
	repo port.AssetRepository

	mu    sync.RWMutex
	cache map[string]model.Asset
}

func NewAssetResolver(repo port.AssetRepository) *AssetResolver {
	return &AssetResolver{
		repo:  repo,
		cache: make(map[string]model.Asset),
	}
}

// Resolve returns the id of symbol, creating the asset if needed.
func (r *AssetResolver) Resolve(ctx context.Context, symbol string) (int64, error) {
	a, err := r.ResolveAsset(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return a.ID, nil
}

// ResolveAsset 查找或创建资产；插入冲突说明有并发调用方已创建，重新查找即可
func (r *AssetResolver) ResolveAsset(ctx context.Context, symbol string) (model.Asset, error) {
	symbol = domainservice.NormalizeSymbol(symbol)
	if symbol == "" {
		return model.Asset{}, model.NewValidationError("symbol", "empty asset symbol")
	}

	r.mu.RLock()
	a, ok := r.cache[symbol]
	r.mu.RUnlock()
	if ok {
		return a, nil
	}

	found, err := r.repo.FindAssetBySymbol(ctx, symbol)
	if err == nil {
		return r.remember(*found), nil
	}
	if !errors.Is(err, port.ErrNotFound) {
		return model.Asset{}, fmt.Errorf("find asset %s: %w", symbol, err)
	}

	created, err := r.repo.InsertAsset(ctx, symbol)
	if err == nil {
		return r.remember(*created), nil
	}
	if !errors.Is(err, port.ErrAssetExists) {
		return model.Asset{}, fmt.Errorf("insert asset %s: %w", symbol, err)
	}

	found, err = r.repo.FindAssetBySymbol(ctx, symbol)
	if err != nil {
		return model.Asset{}, fmt.Errorf("find asset %s after conflict: %w", symbol, err)
	}
	return r.remember(*found), nil
}

func (r *AssetResolver) remember(a model.Asset) model.Asset {
	r.mu.Lock()
	r.cache[a.Symbol] = a
	r.mu.Unlock()
	return a
}
