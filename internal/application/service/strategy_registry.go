package service

import (
	"sort"
	"sync"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

type registryEntry struct {
	strategy model.Strategy
	venues   port.VenueSet
	busy     bool
}

// StrategyRegistry 进程内策略表，按 ID 索引
type StrategyRegistry struct {
	mu      sync.Mutex
	entries map[string]*registryEntry
	pending map[string]int // symbol -> 正在开仓、尚未 Put 的数量
}

func NewStrategyRegistry() *StrategyRegistry {
	return &StrategyRegistry{entries: make(map[string]*registryEntry), pending: make(map[string]int)}
}

func (r *StrategyRegistry) Put(s model.Strategy, venues port.VenueSet) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[s.ID] = &registryEntry{strategy: s, venues: venues}
}

func (r *StrategyRegistry) Get(id string) (model.Strategy, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return model.Strategy{}, false
	}
	return e.strategy, true
}

// List 按创建时间排序
func (r *StrategyRegistry) List() []model.Strategy {
	r.mu.Lock()
	out := make([]model.Strategy, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.strategy)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Acquire marks id busy and hands out a copy; Release must follow.
func (r *StrategyRegistry) Acquire(id string) (model.Strategy, port.VenueSet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok {
		return model.Strategy{}, nil, ErrStrategyNotFound
	}
	if e.busy {
		return model.Strategy{}, nil, ErrStrategyBusy
	}
	e.busy = true
	return e.strategy, e.venues, nil
}

// Release stores s and clears the busy flag, or drops the entry when remove is set.
func (r *StrategyRegistry) Release(s model.Strategy, remove bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if remove {
		delete(r.entries, s.ID)
		return
	}
	if e, ok := r.entries[s.ID]; ok {
		e.strategy = s
		e.busy = false
	}
}

// Reserve 在锁内按当前数量（已登记 + 正在开仓）做检查并占位
// 返回的 release 必须调用；Put 之后再 release 不会漏算
func (r *StrategyRegistry) Reserve(symbol string, check func(open int) error) (release func(), err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := check(r.countLocked(symbol) + r.pending[symbol]); err != nil {
		return nil, err
	}
	r.pending[symbol]++

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if r.pending[symbol]--; r.pending[symbol] <= 0 {
				delete(r.pending, symbol)
			}
		})
	}, nil
}

// CountSymbol 某资产当前登记的策略数（含 failed）
func (r *StrategyRegistry) CountSymbol(symbol string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.countLocked(symbol)
}

func (r *StrategyRegistry) countLocked(symbol string) int {
	n := 0
	for _, e := range r.entries {
		if e.strategy.Symbol == symbol {
			n++
		}
	}
	return n
}

func (r *StrategyRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
