package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

// RateStore 资金费率时间序列（只追加）
type RateStore struct {
	repo port.RateRepository
	now  func() time.Time
}

func NewRateStore(repo port.RateRepository) *RateStore {
	return &RateStore{repo: repo, now: time.Now}
}

// Record appends an observation. A duplicate (asset, exchange, ts) is a
// no-op and reports inserted=false.
func (s *RateStore) Record(ctx context.Context, assetID int64, exchange string, rate float64, ts int64, extra model.RateExtra) (bool, error) {
	if assetID <= 0 {
		return false, model.NewValidationError("asset_id", "must be positive, got %d", assetID)
	}
	exchange = strings.ToLower(strings.TrimSpace(exchange))
	if exchange == "" {
		return false, model.NewValidationError("exchange", "empty exchange")
	}
	if ts <= 0 {
		ts = s.now().UnixMilli()
	}
	return s.repo.InsertRate(ctx, &model.RateObservation{
		AssetID:   assetID,
		Exchange:  exchange,
		Rate:      rate,
		Timestamp: ts,
		Extra:     extra,
	})
}

// Latest 返回窗口内最新观测；没有时返回 DataAbsentError
func (s *RateStore) Latest(ctx context.Context, assetID int64, exchange string, within time.Duration) (*model.RateObservation, error) {
	obs, err := s.repo.LatestRate(ctx, assetID, strings.ToLower(exchange), s.since(within))
	if errors.Is(err, port.ErrNotFound) {
		return nil, &model.DataAbsentError{Exchange: exchange}
	}
	if err != nil {
		return nil, err
	}
	return obs, nil
}

// LatestPerExchange exchange -> 最新观测
func (s *RateStore) LatestPerExchange(ctx context.Context, assetID int64, within time.Duration) (map[string]model.RateObservation, error) {
	return s.repo.LatestRatesByExchange(ctx, assetID, s.since(within))
}

// AssetsWithFreshRates 窗口内至少有一条观测的资产
func (s *RateStore) AssetsWithFreshRates(ctx context.Context, within time.Duration) ([]model.Asset, error) {
	return s.repo.AssetsWithRatesSince(ctx, s.since(within))
}

func (s *RateStore) History(ctx context.Context, assetID int64, exchange string, from, to time.Time) ([]model.RateObservation, error) {
	if !to.IsZero() && to.Before(from) {
		return nil, model.NewValidationError("range", "to is before from")
	}
	toMs := int64(0)
	if !to.IsZero() {
		toMs = to.UnixMilli()
	}
	return s.repo.RateHistory(ctx, assetID, strings.ToLower(exchange), from.UnixMilli(), toMs)
}

func (s *RateStore) since(within time.Duration) int64 {
	if within <= 0 {
		return 0
	}
	return s.now().Add(-within).UnixMilli()
}
