package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	domainservice "fundarb/internal/domain/service"
)

// ExecuteRequest 执行一次双腿套利
type ExecuteRequest struct {
	Opportunity model.ArbitrageOpportunity
	Size        decimal.Decimal
	Venues      port.VenueSet
}

// StrategyCoordinator 双腿策略的开仓与平仓
type StrategyCoordinator struct {
	mapper   *domainservice.SymbolMapper
	registry *StrategyRegistry
	journal  port.StrategyJournal
	guard    *domainservice.SubmissionGuard // nil 表示不去重
	limits   domainservice.RiskLimits
	now      func() time.Time
}

// NewStrategyCoordinator builds a coordinator. journal may be nil.
func NewStrategyCoordinator(mapper *domainservice.SymbolMapper, registry *StrategyRegistry, journal port.StrategyJournal) *StrategyCoordinator {
	if registry == nil {
		registry = NewStrategyRegistry()
	}
	return &StrategyCoordinator{
		mapper:   mapper,
		registry: registry,
		journal:  journal,
		now:      time.Now,
	}
}

// SetSubmissionWindow 同一方向重复开仓的最短间隔，<= 0 关闭
func (c *StrategyCoordinator) SetSubmissionWindow(window time.Duration) {
	if window <= 0 {
		c.guard = nil
		return
	}
	c.guard = domainservice.NewSubmissionGuard(window)
}

// SetRiskLimits 替换开仓限制
func (c *StrategyCoordinator) SetRiskLimits(limits domainservice.RiskLimits) {
	c.limits = limits
}

// ParsePositionSize 解析用户输入的仓位大小，必须为正数
func ParsePositionSize(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, model.NewValidationError("size", "empty position size")
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, model.NewValidationError("size", "%q is not a number", raw)
	}
	if !d.IsPositive() {
		return decimal.Zero, model.NewValidationError("size", "must be positive, got %s", d.String())
	}
	return d, nil
}

// Execute 先开多腿再开空腿，两次独立调用
// 空腿失败时保留记录（状态 failed）以便之后平掉已开的多腿
func (c *StrategyCoordinator) Execute(ctx context.Context, req ExecuteRequest) (*model.Strategy, error) {
	if !req.Size.IsPositive() {
		return nil, model.NewValidationError("size", "must be positive, got %s", req.Size.String())
	}
	if req.Venues == nil {
		return nil, model.NewValidationError("venues", "no venue set")
	}
	opp := req.Opportunity
	longEx, shortEx, ok := opp.Legs()
	if !ok {
		return nil, model.NewValidationError("opportunity", "%s %s/%s has no rate difference, no action", opp.Symbol, opp.ExchangeA, opp.ExchangeB)
	}

	longSym, err := c.mapper.ToNative(longEx, opp.Symbol)
	if err != nil {
		return nil, err
	}
	shortSym, err := c.mapper.ToNative(shortEx, opp.Symbol)
	if err != nil {
		return nil, err
	}
	longVenue, err := req.Venues.Venue(longEx)
	if err != nil {
		return nil, err
	}
	shortVenue, err := req.Venues.Venue(shortEx)
	if err != nil {
		return nil, err
	}

	release, err := c.registry.Reserve(opp.Symbol, func(open int) error {
		return c.limits.CheckOpen(opp.Symbol, req.Size, open)
	})
	if err != nil {
		return nil, err
	}
	defer release()

	guardKey := domainservice.SubmissionKey(opp.Symbol, longEx, shortEx)
	if c.guard != nil {
		if ok, wait := c.guard.Allow(guardKey, c.now()); !ok {
			return nil, fmt.Errorf("%w: %s, retry in %s", ErrDuplicateSubmission, guardKey, wait.Round(time.Millisecond))
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate strategy id: %w", err)
	}
	now := c.now()
	s := model.Strategy{
		ID:     id.String(),
		Symbol: opp.Symbol,
		Long: model.Leg{
			Role: model.LegLong, Exchange: longEx, Symbol: longSym,
			Side: model.SideBuy, Size: req.Size, Status: model.LegPending,
		},
		Short: model.Leg{
			Role: model.LegShort, Exchange: shortEx, Symbol: shortSym,
			Side: model.SideSell, Size: req.Size, Status: model.LegPending,
		},
		Opportunity: opp,
		Status:      model.StrategyProposed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	c.record(ctx, &s)

	if err := c.openLeg(ctx, longVenue, &s.Long); err != nil {
		s.Status = model.StrategyFailed
		c.record(ctx, &s)
		if c.guard != nil {
			c.guard.Forget(guardKey)
		}
		log.Warn().Str("strategy", s.ID).Str("exchange", longEx).Err(err).Msg("long leg failed")
		return nil, &model.ExecutionError{Failed: s.Long, Err: err}
	}
	s.Status = model.StrategyLegsSubmitted
	c.record(ctx, &s)

	if err := c.openLeg(ctx, shortVenue, &s.Short); err != nil {
		s.Status = model.StrategyFailed
		c.record(ctx, &s)
		c.registry.Put(s, req.Venues)
		log.Error().
			Str("strategy", s.ID).
			Str("long_exchange", longEx).
			Str("long_order", s.Long.OrderID).
			Str("short_exchange", shortEx).
			Err(err).
			Msg("short leg failed, long leg left open")
		return &s, &model.PartialExecutionError{StrategyID: s.ID, Placed: s.Long, Failed: s.Short, Err: err}
	}

	s.Status = model.StrategyActive
	c.record(ctx, &s)
	c.registry.Put(s, req.Venues)

	log.Info().
		Str("strategy", s.ID).
		Str("symbol", s.Symbol).
		Str("long", longEx).
		Str("short", shortEx).
		Str("size", req.Size.String()).
		Msg("strategy active")
	return &s, nil
}

func (c *StrategyCoordinator) openLeg(ctx context.Context, venue port.TradingAdapter, leg *model.Leg) error {
	res, err := venue.SubmitOrder(ctx, port.OrderRequest{
		Symbol: leg.Symbol,
		Side:   leg.Side,
		Size:   leg.Size,
	})
	if err != nil {
		leg.Status = model.LegFailed
		leg.Error = err.Error()
		return &model.TransientAdapterError{Exchange: leg.Exchange, Op: "submit order", Err: err}
	}
	leg.Status = model.LegOpen
	leg.OrderID = res.OrderID
	leg.OrderStatus = res.Status
	leg.Error = ""
	return nil
}

// Close 平掉仍打开的腿；两腿都确认平仓后从注册表移除
func (c *StrategyCoordinator) Close(ctx context.Context, id string) (*model.Strategy, error) {
	s, venues, err := c.registry.Acquire(id)
	if err != nil {
		return nil, err
	}

	s.Status = model.StrategyClosing
	c.record(ctx, &s)

	var (
		open []model.Leg
		errs []error
	)
	for _, role := range []model.LegRole{model.LegLong, model.LegShort} {
		leg := s.Leg(role)
		if !leg.NeedsClose() {
			continue
		}
		if err := c.closeLeg(ctx, venues, leg); err != nil {
			leg.Error = err.Error()
			open = append(open, *leg)
			errs = append(errs, err)
			log.Warn().Str("strategy", s.ID).Str("exchange", leg.Exchange).Err(err).Msg("close leg failed")
			continue
		}
		leg.Error = ""
	}

	if len(open) > 0 {
		c.record(ctx, &s)
		c.registry.Release(s, false)
		return &s, &model.PartialCloseError{StrategyID: s.ID, Open: open, Errs: errs}
	}

	s.Status = model.StrategyClosed
	c.record(ctx, &s)
	c.registry.Release(s, true)
	log.Info().Str("strategy", s.ID).Str("symbol", s.Symbol).Msg("strategy closed")
	return &s, nil
}

// closeLeg 按原方向反向 reduce-only 下单，数量不超过本腿开仓数量
// 交易所持仓为净头寸，可能包含同资产其他策略的腿：
// 空仓或方向相反说明本腿已无剩余，直接视为已平
func (c *StrategyCoordinator) closeLeg(ctx context.Context, venues port.VenueSet, leg *model.Leg) error {
	venue, err := venues.Venue(leg.Exchange)
	if err != nil {
		return err
	}
	pos, err := venue.GetPosition(ctx, leg.Symbol)
	if err != nil {
		return &model.TransientAdapterError{Exchange: leg.Exchange, Op: "get position", Err: err}
	}
	if pos.Flat() || (pos.Side != "" && pos.Side != leg.Side) {
		leg.Status = model.LegClosed
		return nil
	}

	size := closeSize(leg.Size, pos.Size.Abs())
	res, err := venue.SubmitOrder(ctx, port.OrderRequest{
		Symbol:     leg.Symbol,
		Side:       leg.Side.Opposite(),
		Size:       size,
		ReduceOnly: true,
	})
	if err != nil {
		return &model.TransientAdapterError{Exchange: leg.Exchange, Op: "submit close order", Err: err}
	}
	leg.CloseOrderID = res.OrderID
	leg.Status = model.LegClosed
	return nil
}

// closeSize min(本腿数量, 持仓数量)；未记录本腿数量时平掉全部持仓
func closeSize(legSize, open decimal.Decimal) decimal.Decimal {
	if !legSize.IsPositive() || open.LessThan(legSize) {
		return open
	}
	return legSize
}

func (c *StrategyCoordinator) Get(id string) (model.Strategy, bool) {
	return c.registry.Get(id)
}

func (c *StrategyCoordinator) List() []model.Strategy {
	return c.registry.List()
}

// Restore 从流水中恢复未平仓策略到注册表
func (c *StrategyCoordinator) Restore(ctx context.Context, venues port.VenueSet) (int, error) {
	if c.journal == nil {
		return 0, nil
	}
	open, err := c.journal.ListOpenStrategies(ctx)
	if err != nil {
		return 0, fmt.Errorf("load open strategies: %w", err)
	}
	n := 0
	for _, s := range open {
		if !s.Long.NeedsClose() && !s.Short.NeedsClose() {
			continue
		}
		c.registry.Put(s, venues)
		n++
	}
	return n, nil
}

func (c *StrategyCoordinator) record(ctx context.Context, s *model.Strategy) {
	s.UpdatedAt = c.now()
	if c.journal == nil {
		return
	}
	if err := c.journal.SaveStrategy(ctx, s); err != nil {
		log.Error().Str("strategy", s.ID).Str("status", string(s.Status)).Err(err).Msg("journal strategy failed")
	}
}
