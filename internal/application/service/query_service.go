package service

import (
	"context"
	"errors"
	"time"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	domainservice "fundarb/internal/domain/service"
)

// DefaultTopN 默认展示条数
const DefaultTopN = 10

// QueryService 只读查询入口（看板、机器人）
type QueryService struct {
	opps      port.OpportunityRepository
	assets    port.AssetRepository
	rates     *RateStore
	discovery *DiscoveryService
}

func NewQueryService(opps port.OpportunityRepository, assets port.AssetRepository, rates *RateStore, discovery *DiscoveryService) *QueryService {
	return &QueryService{opps: opps, assets: assets, rates: rates, discovery: discovery}
}

// ListCurrent 每个 (资产, 交易所对) 的最新机会
func (q *QueryService) ListCurrent(ctx context.Context, query port.OpportunityQuery) ([]model.ArbitrageOpportunity, error) {
	if query.Limit < 0 {
		return nil, model.NewValidationError("limit", "must not be negative")
	}
	if query.MinAbsDiff < 0 {
		return nil, model.NewValidationError("min_abs_diff", "must not be negative")
	}
	query.Symbol = domainservice.NormalizeSymbol(query.Symbol)
	return q.opps.ListLatestOpportunities(ctx, query)
}

// Top returns the n current opportunities with the largest |rate difference|.
func (q *QueryService) Top(ctx context.Context, n int) ([]model.ArbitrageOpportunity, error) {
	if n <= 0 {
		n = DefaultTopN
	}
	return q.ListCurrent(ctx, port.OpportunityQuery{Limit: n})
}

// FindByKey 通过内容键回查机会快照
func (q *QueryService) FindByKey(ctx context.Context, key string) (*model.ArbitrageOpportunity, error) {
	if key == "" {
		return nil, model.NewValidationError("key", "empty opportunity key")
	}
	return q.opps.GetOpportunityByKey(ctx, key)
}

// ForceRecompute runs discovery immediately on the rates already stored.
func (q *QueryService) ForceRecompute(ctx context.Context) ([]model.ArbitrageOpportunity, error) {
	if q.discovery == nil {
		return nil, errors.New("discovery not configured")
	}
	return q.discovery.Recompute(ctx)
}

// RateHistory 某资产在某交易所的费率历史
func (q *QueryService) RateHistory(ctx context.Context, symbol, exchange string, from, to time.Time) ([]model.RateObservation, error) {
	symbol = domainservice.NormalizeSymbol(symbol)
	asset, err := q.assets.FindAssetBySymbol(ctx, symbol)
	if err != nil {
		return nil, err
	}
	out, err := q.rates.History(ctx, asset.ID, exchange, from, to)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Symbol = asset.Symbol
	}
	return out, nil
}
