package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

type obsKey struct {
	assetID  int64
	exchange string
	ts       int64
}

// MockStore 内存仓储，实现 port.Store
type MockStore struct {
	mu         sync.Mutex
	assets     map[string]model.Asset
	nextAsset  int64
	rates      map[obsKey]model.RateObservation
	opps       []model.ArbitrageOpportunity
	nextOpp    int64
	strategies map[string][]model.Strategy

	insertConflicts int   // InsertAsset 返回 ErrAssetExists 的次数（模拟并发）
	saveOppErr      error // SaveOpportunity 返回的错误
	failSaveFor     string
}

func NewMockStore() *MockStore {
	return &MockStore{
		assets:     make(map[string]model.Asset),
		rates:      make(map[obsKey]model.RateObservation),
		strategies: make(map[string][]model.Strategy),
	}
}

var _ port.Store = (*MockStore)(nil)

func (m *MockStore) FindAssetBySymbol(ctx context.Context, symbol string) (*model.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.assets[symbol]
	if !ok {
		return nil, port.ErrNotFound
	}
	return &a, nil
}

func (m *MockStore) InsertAsset(ctx context.Context, symbol string) (*model.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertConflicts > 0 {
		m.insertConflicts--
		m.nextAsset++
		m.assets[symbol] = model.Asset{ID: m.nextAsset, Symbol: symbol, IsActive: true}
		return nil, port.ErrAssetExists
	}
	if _, ok := m.assets[symbol]; ok {
		return nil, port.ErrAssetExists
	}
	m.nextAsset++
	a := model.Asset{ID: m.nextAsset, Symbol: symbol, IsActive: true, CreatedAt: time.Now()}
	m.assets[symbol] = a
	return &a, nil
}

func (m *MockStore) assetByID(id int64) (model.Asset, bool) {
	for _, a := range m.assets {
		if a.ID == id {
			return a, true
		}
	}
	return model.Asset{}, false
}

func (m *MockStore) InsertRate(ctx context.Context, obs *model.RateObservation) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := obsKey{obs.AssetID, obs.Exchange, obs.Timestamp}
	if _, ok := m.rates[k]; ok {
		return false, nil
	}
	m.rates[k] = *obs
	return true, nil
}

func (m *MockStore) LatestRate(ctx context.Context, assetID int64, exchange string, since int64) (*model.RateObservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var best *model.RateObservation
	for k, o := range m.rates {
		if k.assetID != assetID || k.exchange != exchange || k.ts < since {
			continue
		}
		if best == nil || o.Timestamp > best.Timestamp {
			o := o
			best = &o
		}
	}
	if best == nil {
		return nil, port.ErrNotFound
	}
	return best, nil
}

func (m *MockStore) LatestRatesByExchange(ctx context.Context, assetID int64, since int64) (map[string]model.RateObservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]model.RateObservation)
	for k, o := range m.rates {
		if k.assetID != assetID || k.ts < since {
			continue
		}
		if cur, ok := out[k.exchange]; !ok || o.Timestamp > cur.Timestamp {
			out[k.exchange] = o
		}
	}
	return out, nil
}

func (m *MockStore) AssetsWithRatesSince(ctx context.Context, since int64) ([]model.Asset, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[int64]bool)
	var out []model.Asset
	for k := range m.rates {
		if k.ts < since || seen[k.assetID] {
			continue
		}
		seen[k.assetID] = true
		if a, ok := m.assetByID(k.assetID); ok {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (m *MockStore) RateHistory(ctx context.Context, assetID int64, exchange string, from, to int64) ([]model.RateObservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.RateObservation
	for k, o := range m.rates {
		if k.assetID == assetID && k.exchange == exchange && k.ts >= from && (to == 0 || k.ts <= to) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out, nil
}

func (m *MockStore) SaveOpportunity(ctx context.Context, opp *model.ArbitrageOpportunity) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveOppErr != nil && (m.failSaveFor == "" || m.failSaveFor == opp.Symbol) {
		return m.saveOppErr
	}
	m.nextOpp++
	opp.ID = m.nextOpp
	m.opps = append(m.opps, *opp)
	return nil
}

func (m *MockStore) DeleteOpportunitiesBefore(ctx context.Context, cutoff int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.opps[:0]
	var n int64
	for _, o := range m.opps {
		if o.CreatedAt < cutoff {
			n++
			continue
		}
		kept = append(kept, o)
	}
	m.opps = kept
	return n, nil
}

func (m *MockStore) ListLatestOpportunities(ctx context.Context, q port.OpportunityQuery) ([]model.ArbitrageOpportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	latest := make(map[string]model.ArbitrageOpportunity)
	for _, o := range m.opps {
		k := fmt.Sprintf("%d|%s|%s", o.AssetID, o.ExchangeA, o.ExchangeB)
		if cur, ok := latest[k]; !ok || o.CreatedAt > cur.CreatedAt {
			latest[k] = o
		}
	}
	var out []model.ArbitrageOpportunity
	for _, o := range latest {
		if o.CreatedAt < q.Since || math.Abs(o.RateDifference) < q.MinAbsDiff {
			continue
		}
		if q.Symbol != "" && o.Symbol != q.Symbol {
			continue
		}
		out = append(out, o)
	}
	SortByAbsDifference(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (m *MockStore) GetOpportunityByKey(ctx context.Context, key string) (*model.ArbitrageOpportunity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.opps {
		if o.Key == key {
			return &o, nil
		}
	}
	return nil, port.ErrNotFound
}

func (m *MockStore) SaveStrategy(ctx context.Context, s *model.Strategy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.strategies[s.ID] = append(m.strategies[s.ID], *s)
	return nil
}

func (m *MockStore) ListOpenStrategies(ctx context.Context) ([]model.Strategy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Strategy
	for _, hist := range m.strategies {
		last := hist[len(hist)-1]
		if last.Status != model.StrategyClosed {
			out = append(out, last)
		}
	}
	return out, nil
}

func (m *MockStore) journalStatuses(id string) []model.StrategyStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.StrategyStatus
	for _, s := range m.strategies[id] {
		out = append(out, s.Status)
	}
	return out
}

func (m *MockStore) Close() error { return nil }

// MockAdapter 费率适配器
type MockAdapter struct {
	name  string
	rates []port.RawRate
	err   error
	meta  []port.InstrumentMeta
}

func (a *MockAdapter) Name() string { return a.name }

func (a *MockAdapter) FetchLatestRates(ctx context.Context) ([]port.RawRate, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.rates, nil
}

type MockMetaAdapter struct {
	MockAdapter
}

func (a *MockMetaAdapter) FetchMetadata(ctx context.Context) ([]port.InstrumentMeta, error) {
	return a.meta, nil
}

// MockVenue 下单适配器
type MockVenue struct {
	mu        sync.Mutex
	submitErr error
	posErr    error
	positions map[string]*port.VenuePosition
	orders    []port.OrderRequest
	seq       int
}

func NewMockVenue() *MockVenue {
	return &MockVenue{positions: make(map[string]*port.VenuePosition)}
}

func (v *MockVenue) SubmitOrder(ctx context.Context, req port.OrderRequest) (port.OrderResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.submitErr != nil {
		return port.OrderResult{}, v.submitErr
	}
	v.orders = append(v.orders, req)
	v.seq++
	if req.ReduceOnly {
		delete(v.positions, req.Symbol)
	} else {
		v.positions[req.Symbol] = &port.VenuePosition{Symbol: req.Symbol, Size: req.Size, Side: req.Side}
	}
	return port.OrderResult{OrderID: fmt.Sprintf("ord-%d", v.seq), Status: "FILLED"}, nil
}

func (v *MockVenue) GetPosition(ctx context.Context, symbol string) (*port.VenuePosition, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.posErr != nil {
		return nil, v.posErr
	}
	p, ok := v.positions[symbol]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (v *MockVenue) orderCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.orders)
}

// blockingVenue GetPosition 阻塞直到 release 关闭
type blockingVenue struct {
	*MockVenue
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (v *blockingVenue) GetPosition(ctx context.Context, symbol string) (*port.VenuePosition, error) {
	v.once.Do(func() { close(v.entered) })
	<-v.release
	return v.MockVenue.GetPosition(ctx, symbol)
}

var errNetwork = errors.New("connection reset by peer")

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// nettingVenue 按 symbol 记录带符号的净头寸，与真实交易所一致
type nettingVenue struct {
	mu     sync.Mutex
	net    map[string]decimal.Decimal
	orders []port.OrderRequest
}

func newNettingVenue() *nettingVenue {
	return &nettingVenue{net: make(map[string]decimal.Decimal)}
}

func (v *nettingVenue) SubmitOrder(ctx context.Context, req port.OrderRequest) (port.OrderResult, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.orders = append(v.orders, req)
	delta := req.Size
	if req.Side == model.SideSell {
		delta = delta.Neg()
	}
	v.net[req.Symbol] = v.net[req.Symbol].Add(delta)
	return port.OrderResult{OrderID: fmt.Sprintf("net-%d", len(v.orders)), Status: "FILLED"}, nil
}

func (v *nettingVenue) GetPosition(ctx context.Context, symbol string) (*port.VenuePosition, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	n := v.net[symbol]
	if n.IsZero() {
		return nil, nil
	}
	side := model.SideBuy
	if n.IsNegative() {
		side = model.SideSell
	}
	return &port.VenuePosition{Symbol: symbol, Size: n.Abs(), Side: side}, nil
}

func (v *nettingVenue) position(symbol string) decimal.Decimal {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.net[symbol]
}

func (v *nettingVenue) lastOrder() port.OrderRequest {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.orders[len(v.orders)-1]
}

func (v *nettingVenue) orderCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.orders)
}

// blockingSubmitVenue SubmitOrder 阻塞直到 release 关闭
type blockingSubmitVenue struct {
	*MockVenue
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (v *blockingSubmitVenue) SubmitOrder(ctx context.Context, req port.OrderRequest) (port.OrderResult, error) {
	v.once.Do(func() { close(v.entered) })
	<-v.release
	return v.MockVenue.SubmitOrder(ctx, req)
}
