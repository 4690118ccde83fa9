package port

import (
	"context"
	"errors"

	"fundarb/internal/domain/model"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrAssetExists = errors.New("asset already exists")
)

// AssetRepository 资产仓储
type AssetRepository interface {
	// FindAssetBySymbol returns ErrNotFound when the symbol is unknown.
	FindAssetBySymbol(ctx context.Context, symbol string) (*model.Asset, error)
	// InsertAsset returns ErrAssetExists on a uniqueness violation.
	InsertAsset(ctx context.Context, symbol string) (*model.Asset, error)
}

// RateRepository 资金费率观测仓储（只追加）
type RateRepository interface {
	// InsertRate is a no-op (inserted=false) when (asset, exchange, ts) already exists.
	InsertRate(ctx context.Context, obs *model.RateObservation) (inserted bool, err error)
	// LatestRate returns ErrNotFound when nothing was observed at or after since.
	LatestRate(ctx context.Context, assetID int64, exchange string, since int64) (*model.RateObservation, error)
	LatestRatesByExchange(ctx context.Context, assetID int64, since int64) (map[string]model.RateObservation, error)
	AssetsWithRatesSince(ctx context.Context, since int64) ([]model.Asset, error)
	RateHistory(ctx context.Context, assetID int64, exchange string, from, to int64) ([]model.RateObservation, error)
}

// OpportunityQuery 机会查询条件，零值表示不过滤
type OpportunityQuery struct {
	Limit      int
	Since      int64 // unix ms
	MinAbsDiff float64
	Symbol     string
}

// OpportunityRepository 套利机会仓储
type OpportunityRepository interface {
	SaveOpportunity(ctx context.Context, opp *model.ArbitrageOpportunity) error
	DeleteOpportunitiesBefore(ctx context.Context, cutoff int64) (int64, error)
	// ListLatestOpportunities returns the newest row per (asset, exchange pair)
	// ordered by descending |rate difference|.
	ListLatestOpportunities(ctx context.Context, q OpportunityQuery) ([]model.ArbitrageOpportunity, error)
	GetOpportunityByKey(ctx context.Context, key string) (*model.ArbitrageOpportunity, error)
}

// StrategyJournal 策略状态流水
type StrategyJournal interface {
	SaveStrategy(ctx context.Context, s *model.Strategy) error
	// ListOpenStrategies returns every strategy whose last status is not closed.
	ListOpenStrategies(ctx context.Context) ([]model.Strategy, error)
}

// Store 聚合所有仓储
type Store interface {
	AssetRepository
	RateRepository
	OpportunityRepository
	StrategyJournal

	Close() error
}
