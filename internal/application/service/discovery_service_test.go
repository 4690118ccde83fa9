package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	domainservice "fundarb/internal/domain/service"
)

type pipeline struct {
	store     *MockStore
	resolver  *AssetResolver
	rates     *RateStore
	discovery *DiscoveryService
	query     *QueryService
	now       time.Time
}

func newPipeline(exchanges ...string) *pipeline {
	p := &pipeline{store: NewMockStore(), now: time.UnixMilli(1_700_000_000_000)}
	clock := func() time.Time { return p.now }

	p.resolver = NewAssetResolver(p.store)
	p.rates = NewRateStore(p.store)
	p.rates.now = clock
	p.discovery = NewDiscoveryService(p.rates, p.store, domainservice.NewFundingCalculator(0), nil, DiscoveryConfig{Exchanges: exchanges})
	p.discovery.now = clock
	p.query = NewQueryService(p.store, p.store, p.rates, p.discovery)
	return p
}

func (p *pipeline) record(t *testing.T, symbol, exchange string, rate float64, age time.Duration) {
	t.Helper()
	id, err := p.resolver.Resolve(context.Background(), symbol)
	if err != nil {
		t.Fatalf("resolve %s: %v", symbol, err)
	}
	if _, err := p.rates.Record(context.Background(), id, exchange, rate, p.now.Add(-age).UnixMilli(), model.RateExtra{}); err != nil {
		t.Fatalf("record: %v", err)
	}
}

func TestDiscoveryBTCScenario(t *testing.T) {
	p := newPipeline("alpha", "beta")
	p.record(t, "BTC", "alpha", 0.0010, time.Minute)
	p.record(t, "BTC", "beta", 0.0002, time.Minute)

	opps, err := p.discovery.Recompute(context.Background())
	if err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	if len(opps) != 1 {
		t.Fatalf("expected 1 opportunity, got %d", len(opps))
	}
	o := opps[0]
	if o.ExchangeA != "alpha" || o.ExchangeB != "beta" {
		t.Errorf("unexpected pair %s/%s", o.ExchangeA, o.ExchangeB)
	}
	if o.RateDifference != 0.0008 || o.AnnualizedReturn != 0.876 {
		t.Errorf("unexpected diff=%v annualized=%v", o.RateDifference, o.AnnualizedReturn)
	}
	if o.Strategy != "long beta, short alpha" {
		t.Errorf("unexpected strategy %q", o.Strategy)
	}
	if o.ID == 0 {
		t.Error("opportunity should be persisted")
	}

	got, err := p.query.FindByKey(context.Background(), o.Key)
	if err != nil {
		t.Fatalf("FindByKey failed: %v", err)
	}
	if got.ID != o.ID {
		t.Errorf("FindByKey returned id %d, want %d", got.ID, o.ID)
	}
}

// TestDiscoverySkipsStaleSide 一侧费率超出 1 小时窗口时跳过该交易所对
func TestDiscoverySkipsStaleSide(t *testing.T) {
	p := newPipeline("alpha", "beta", "gamma")
	p.record(t, "ETH", "alpha", 0.0003, time.Minute)
	p.record(t, "ETH", "beta", 0.0001, 2*time.Hour)
	p.record(t, "ETH", "gamma", -0.0001, time.Minute)

	opps, err := p.discovery.Recompute(context.Background())
	if err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	if len(opps) != 1 {
		t.Fatalf("expected only alpha/gamma, got %d opportunities", len(opps))
	}
	if opps[0].ExchangeA != "alpha" || opps[0].ExchangeB != "gamma" {
		t.Errorf("unexpected pair %s/%s", opps[0].ExchangeA, opps[0].ExchangeB)
	}
}

func TestDiscoveryIgnoresUnconfiguredExchange(t *testing.T) {
	p := newPipeline("alpha", "beta")
	p.record(t, "SOL", "alpha", 0.0003, time.Minute)
	p.record(t, "SOL", "delta", 0.0001, time.Minute)

	opps, err := p.discovery.Recompute(context.Background())
	if err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	if len(opps) != 0 {
		t.Errorf("expected no opportunities, got %d", len(opps))
	}
}

func TestDiscoveryPrunesOldOpportunities(t *testing.T) {
	p := newPipeline("alpha", "beta")
	p.store.opps = append(p.store.opps,
		model.ArbitrageOpportunity{ID: 90, Key: "old", Symbol: "BTC", CreatedAt: p.now.Add(-7 * time.Hour).UnixMilli()},
		model.ArbitrageOpportunity{ID: 91, Key: "recent", Symbol: "BTC", CreatedAt: p.now.Add(-5 * time.Hour).UnixMilli()},
	)

	if _, err := p.discovery.Recompute(context.Background()); err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	if _, err := p.store.GetOpportunityByKey(context.Background(), "old"); !errors.Is(err, port.ErrNotFound) {
		t.Errorf("expected old opportunity pruned, got %v", err)
	}
	if _, err := p.store.GetOpportunityByKey(context.Background(), "recent"); err != nil {
		t.Errorf("recent opportunity should survive: %v", err)
	}
}

func TestDiscoveryContinuesOnSaveFailure(t *testing.T) {
	p := newPipeline("alpha", "beta")
	p.record(t, "BTC", "alpha", 0.0002, time.Minute)
	p.record(t, "BTC", "beta", 0.0001, time.Minute)
	p.record(t, "ETH", "alpha", 0.0002, time.Minute)
	p.record(t, "ETH", "beta", 0.0004, time.Minute)
	p.store.saveOppErr = errors.New("disk full")
	p.store.failSaveFor = "BTC"

	opps, err := p.discovery.Recompute(context.Background())
	if err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	if len(opps) != 1 || opps[0].Symbol != "ETH" {
		t.Fatalf("expected only ETH, got %+v", opps)
	}
	if opps[0].Strategy != "long alpha, short beta" {
		t.Errorf("unexpected strategy %q", opps[0].Strategy)
	}
}

func TestDiscoveryOrdersByAbsDifference(t *testing.T) {
	p := newPipeline("alpha", "beta")
	p.record(t, "BTC", "alpha", 0.0001, time.Minute)
	p.record(t, "BTC", "beta", 0.0002, time.Minute)
	p.record(t, "ETH", "alpha", -0.0005, time.Minute)
	p.record(t, "ETH", "beta", 0.0001, time.Minute)
	p.record(t, "SOL", "alpha", 0.0003, time.Minute)
	p.record(t, "SOL", "beta", 0.0003, time.Minute)

	opps, err := p.discovery.Recompute(context.Background())
	if err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}
	want := []string{"ETH", "BTC", "SOL"}
	if len(opps) != len(want) {
		t.Fatalf("expected %d opportunities, got %d", len(want), len(opps))
	}
	for i, sym := range want {
		if opps[i].Symbol != sym {
			t.Errorf("position %d = %s, want %s", i, opps[i].Symbol, sym)
		}
	}
	if opps[2].Strategy != model.NoActionStrategy {
		t.Errorf("tie should give no action, got %q", opps[2].Strategy)
	}
}

// TestQueryLatestSnapshotPerPair 多轮计算后每个交易所对只返回最新一条
func TestQueryLatestSnapshotPerPair(t *testing.T) {
	p := newPipeline("alpha", "beta")
	p.record(t, "BTC", "alpha", 0.0010, time.Minute)
	p.record(t, "BTC", "beta", 0.0002, time.Minute)
	if _, err := p.discovery.Recompute(context.Background()); err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}

	p.now = p.now.Add(5 * time.Minute)
	p.record(t, "BTC", "alpha", 0.0004, 0)
	second, err := p.query.ForceRecompute(context.Background())
	if err != nil {
		t.Fatalf("ForceRecompute failed: %v", err)
	}

	current, err := p.query.ListCurrent(context.Background(), port.OpportunityQuery{})
	if err != nil {
		t.Fatalf("ListCurrent failed: %v", err)
	}
	if len(current) != 1 {
		t.Fatalf("expected 1 current opportunity, got %d", len(current))
	}
	if current[0].Key != second[0].Key {
		t.Errorf("expected latest snapshot, got rate_a=%v", current[0].RateA)
	}
	if len(p.store.opps) != 2 {
		t.Errorf("both snapshots should be stored, got %d", len(p.store.opps))
	}
}

func TestQueryTopAndFilters(t *testing.T) {
	p := newPipeline("alpha", "beta")
	p.record(t, "BTC", "alpha", 0.0001, time.Minute)
	p.record(t, "BTC", "beta", 0.0002, time.Minute)
	p.record(t, "ETH", "alpha", -0.0005, time.Minute)
	p.record(t, "ETH", "beta", 0.0001, time.Minute)
	if _, err := p.discovery.Recompute(context.Background()); err != nil {
		t.Fatalf("Recompute failed: %v", err)
	}

	top, err := p.query.Top(context.Background(), 1)
	if err != nil {
		t.Fatalf("Top failed: %v", err)
	}
	if len(top) != 1 || top[0].Symbol != "ETH" {
		t.Errorf("unexpected top %+v", top)
	}

	filtered, err := p.query.ListCurrent(context.Background(), port.OpportunityQuery{MinAbsDiff: 0.0002})
	if err != nil {
		t.Fatalf("ListCurrent failed: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Symbol != "ETH" {
		t.Errorf("unexpected filtered %+v", filtered)
	}

	bySymbol, err := p.query.ListCurrent(context.Background(), port.OpportunityQuery{Symbol: "btc"})
	if err != nil {
		t.Fatalf("ListCurrent failed: %v", err)
	}
	if len(bySymbol) != 1 || bySymbol[0].Symbol != "BTC" {
		t.Errorf("unexpected symbol filter %+v", bySymbol)
	}

	if _, err := p.query.ListCurrent(context.Background(), port.OpportunityQuery{Limit: -1}); err == nil {
		t.Error("expected error for negative limit")
	}
}

func TestQueryRateHistory(t *testing.T) {
	p := newPipeline("alpha", "beta")
	p.record(t, "BTC", "alpha", 0.0001, 3*time.Hour)
	p.record(t, "BTC", "alpha", 0.0002, 2*time.Hour)
	p.record(t, "BTC", "alpha", 0.0003, time.Hour)

	hist, err := p.query.RateHistory(context.Background(), "btc", "alpha", p.now.Add(-150*time.Minute), time.Time{})
	if err != nil {
		t.Fatalf("RateHistory failed: %v", err)
	}
	if len(hist) != 2 {
		t.Fatalf("expected 2 points, got %d", len(hist))
	}
	if hist[0].Rate != 0.0002 || hist[1].Rate != 0.0003 || hist[0].Symbol != "BTC" {
		t.Errorf("unexpected history %+v", hist)
	}

	if _, err := p.query.RateHistory(context.Background(), "DOGE", "alpha", p.now, time.Time{}); !errors.Is(err, port.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRateStoreLatest(t *testing.T) {
	p := newPipeline("alpha")
	p.record(t, "BTC", "alpha", 0.0001, 30*time.Hour)

	id, _ := p.resolver.Resolve(context.Background(), "BTC")
	_, err := p.rates.Latest(context.Background(), id, "alpha", DefaultRateFreshness)
	var absent *model.DataAbsentError
	if !errors.As(err, &absent) {
		t.Fatalf("expected DataAbsentError for stale rate, got %v", err)
	}

	p.record(t, "BTC", "alpha", 0.0002, time.Hour)
	obs, err := p.rates.Latest(context.Background(), id, "alpha", DefaultRateFreshness)
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if obs.Rate != 0.0002 {
		t.Errorf("expected latest rate 0.0002, got %v", obs.Rate)
	}
}

// overlapRepo 记录同时处于 prune 阶段的 Recompute 数量
type overlapRepo struct {
	*MockStore
	active    atomic.Int32
	maxActive atomic.Int32
}

func (r *overlapRepo) DeleteOpportunitiesBefore(ctx context.Context, cutoff int64) (int64, error) {
	n := r.active.Add(1)
	for {
		m := r.maxActive.Load()
		if n <= m || r.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	r.active.Add(-1)
	return r.MockStore.DeleteOpportunitiesBefore(ctx, cutoff)
}

func TestDiscoveryRecomputeSerialized(t *testing.T) {
	p := newPipeline("alpha", "beta")
	p.record(t, "BTC", "alpha", 0.0002, time.Minute)
	p.record(t, "BTC", "beta", 0.0001, time.Minute)

	repo := &overlapRepo{MockStore: p.store}
	d := NewDiscoveryService(p.rates, repo, domainservice.NewFundingCalculator(0), nil, DiscoveryConfig{Exchanges: []string{"alpha", "beta"}})
	d.now = func() time.Time { return p.now }

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := d.Recompute(context.Background()); err != nil {
				t.Errorf("Recompute failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := repo.maxActive.Load(); got != 1 {
		t.Errorf("recompute passes overlapped: max %d concurrent", got)
	}
}
