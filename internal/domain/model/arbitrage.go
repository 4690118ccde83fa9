package model

import "fmt"

// Direction 推荐的开仓方向
type Direction int

const (
	DirectionNone        Direction = 0  // 费率相同，不操作
	DirectionLongBShortA Direction = +1 // A 费率更高：做空 A，做多 B
	DirectionLongAShortB Direction = -1 // B 费率更高：做空 B，做多 A
)

// NoActionStrategy is the recommendation text for a zero differential.
const NoActionStrategy = "no action"

// DirectionOf 根据费率差的符号确定方向
func DirectionOf(rateDifference float64) Direction {
	switch {
	case rateDifference > 0:
		return DirectionLongBShortA
	case rateDifference < 0:
		return DirectionLongAShortB
	default:
		return DirectionNone
	}
}

// ArbitrageOpportunity 资金费率套利机会（某资产在一对交易所之间）
type ArbitrageOpportunity struct {
	ID               int64   `json:"id"`
	Key              string  `json:"key"` // 内容寻址键，用于展示层回查
	AssetID          int64   `json:"asset_id"`
	Symbol           string  `json:"symbol"`
	ExchangeA        string  `json:"exchange_a"`
	ExchangeB        string  `json:"exchange_b"`
	RateA            float64 `json:"rate_a"`
	RateB            float64 `json:"rate_b"`
	RateDifference   float64 `json:"rate_difference"`   // RateA - RateB
	AnnualizedReturn float64 `json:"annualized_return"` // 年化收益（小数，0.876 = 87.6%）
	Strategy         string  `json:"strategy"`          // 推荐策略文本
	CreatedAt        int64   `json:"created_at"`        // unix ms
}

// Direction is always derived from the stored rate difference.
func (o ArbitrageOpportunity) Direction() Direction {
	return DirectionOf(o.RateDifference)
}

// Legs 返回做多/做空交易所；DirectionNone 时 ok=false
func (o ArbitrageOpportunity) Legs() (longExchange, shortExchange string, ok bool) {
	switch o.Direction() {
	case DirectionLongBShortA:
		return o.ExchangeB, o.ExchangeA, true
	case DirectionLongAShortB:
		return o.ExchangeA, o.ExchangeB, true
	default:
		return "", "", false
	}
}

// RecommendationText renders the strategy text stored with an opportunity.
func RecommendationText(d Direction, exchangeA, exchangeB string) string {
	switch d {
	case DirectionLongBShortA:
		return fmt.Sprintf("long %s, short %s", exchangeB, exchangeA)
	case DirectionLongAShortB:
		return fmt.Sprintf("long %s, short %s", exchangeA, exchangeB)
	default:
		return NoActionStrategy
	}
}
