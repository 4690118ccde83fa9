package postgres

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

// 需要真实数据库：FUNDARB_TEST_POSTGRES_DSN=postgres://...
func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	dsn := os.Getenv("FUNDARB_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("FUNDARB_TEST_POSTGRES_DSN not set")
	}
	repo, err := New(dsn, 4)
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestPostgresAssetConflict(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	symbol := fmt.Sprintf("T%d", time.Now().UnixNano())

	a, err := repo.InsertAsset(ctx, symbol)
	if err != nil {
		t.Fatalf("InsertAsset failed: %v", err)
	}
	if _, err := repo.InsertAsset(ctx, symbol); !errors.Is(err, port.ErrAssetExists) {
		t.Errorf("expected ErrAssetExists, got %v", err)
	}
	found, err := repo.FindAssetBySymbol(ctx, symbol)
	if err != nil || found.ID != a.ID {
		t.Errorf("FindAssetBySymbol = %+v, %v", found, err)
	}
}

func TestPostgresRatesAndOpportunities(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	a, err := repo.InsertAsset(ctx, fmt.Sprintf("R%d", time.Now().UnixNano()))
	if err != nil {
		t.Fatalf("InsertAsset failed: %v", err)
	}

	obs := &model.RateObservation{AssetID: a.ID, Exchange: "binance", Rate: 0.0001, Timestamp: 100}
	if ok, err := repo.InsertRate(ctx, obs); err != nil || !ok {
		t.Fatalf("InsertRate = %v, %v", ok, err)
	}
	if ok, err := repo.InsertRate(ctx, obs); err != nil || ok {
		t.Fatalf("duplicate InsertRate = %v, %v", ok, err)
	}
	if _, err := repo.InsertRate(ctx, &model.RateObservation{AssetID: a.ID, Exchange: "paradex", Rate: 0.0004, Timestamp: 120}); err != nil {
		t.Fatalf("InsertRate failed: %v", err)
	}

	latest, err := repo.LatestRatesByExchange(ctx, a.ID, 0)
	if err != nil {
		t.Fatalf("LatestRatesByExchange failed: %v", err)
	}
	if len(latest) != 2 || latest["paradex"].Rate != 0.0004 {
		t.Errorf("unexpected latest %v", latest)
	}

	key := fmt.Sprintf("key-%d", time.Now().UnixNano())
	opp := &model.ArbitrageOpportunity{Key: key, AssetID: a.ID, ExchangeA: "binance", ExchangeB: "paradex",
		RateA: 0.0001, RateB: 0.0004, RateDifference: -0.0003, AnnualizedReturn: -0.3285,
		Strategy: "long binance, short paradex", CreatedAt: time.Now().UnixMilli()}
	if err := repo.SaveOpportunity(ctx, opp); err != nil {
		t.Fatalf("SaveOpportunity failed: %v", err)
	}
	got, err := repo.GetOpportunityByKey(ctx, key)
	if err != nil || got.ID != opp.ID || got.Symbol != a.Symbol {
		t.Errorf("GetOpportunityByKey = %+v, %v", got, err)
	}

	list, err := repo.ListLatestOpportunities(ctx, port.OpportunityQuery{Symbol: a.Symbol, Limit: 5})
	if err != nil {
		t.Fatalf("ListLatestOpportunities failed: %v", err)
	}
	if len(list) != 1 || list[0].Key != key {
		t.Errorf("unexpected list %+v", list)
	}
}
