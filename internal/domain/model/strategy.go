package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// StrategyStatus 策略生命周期
// proposed -> legs_submitted -> active -> closing -> closed
// proposed -> failed（任一腿下单失败）
type StrategyStatus string

const (
	StrategyProposed      StrategyStatus = "proposed"
	StrategyLegsSubmitted StrategyStatus = "legs_submitted"
	StrategyActive        StrategyStatus = "active"
	StrategyClosing       StrategyStatus = "closing"
	StrategyClosed        StrategyStatus = "closed"
	StrategyFailed        StrategyStatus = "failed"
)

// OrderSide 订单方向
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// Opposite returns the side that reduces a position opened with s.
func (s OrderSide) Opposite() OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// LegRole 腿的角色
type LegRole string

const (
	LegLong  LegRole = "long"
	LegShort LegRole = "short"
)

// LegStatus 单腿状态
type LegStatus string

const (
	LegPending LegStatus = "pending" // 尚未提交
	LegOpen    LegStatus = "open"    // 开仓单已被交易所接受
	LegFailed  LegStatus = "failed"  // 开仓单提交失败
	LegClosed  LegStatus = "closed"  // 已确认平仓（或本来就是空仓）
)

// Leg 套利的一条腿，位于单一交易所
type Leg struct {
	Role         LegRole         `json:"role"`
	Exchange     string          `json:"exchange"`
	Symbol       string          `json:"symbol"` // 交易所原生合约代码
	Side         OrderSide       `json:"side"`
	Size         decimal.Decimal `json:"size"`
	OrderID      string          `json:"order_id,omitempty"`
	OrderStatus  string          `json:"order_status,omitempty"`
	CloseOrderID string          `json:"close_order_id,omitempty"`
	Status       LegStatus       `json:"status"`
	Error        string          `json:"error,omitempty"`
}

// Placed reports whether the venue accepted the opening order for this leg.
func (l Leg) Placed() bool {
	return l.Status == LegOpen || l.Status == LegClosed
}

// NeedsClose reports whether closing still has work on this leg.
func (l Leg) NeedsClose() bool {
	return l.Status == LegOpen
}

// Strategy 一次已执行的双腿套利
type Strategy struct {
	ID          string               `json:"id"`
	Symbol      string               `json:"symbol"`
	Long        Leg                  `json:"long"`
	Short       Leg                  `json:"short"`
	Opportunity ArbitrageOpportunity `json:"opportunity"`
	Status      StrategyStatus       `json:"status"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

// Leg returns a pointer to the leg with the given role.
func (s *Strategy) Leg(role LegRole) *Leg {
	if role == LegShort {
		return &s.Short
	}
	return &s.Long
}
