package port

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"fundarb/internal/domain/model"
)

type OrderRequest struct {
	Symbol     string // 交易所原生代码
	Side       model.OrderSide
	Size       decimal.Decimal
	Price      *decimal.Decimal // nil 为市价单
	ReduceOnly bool
}

type OrderResult struct {
	OrderID string
	Status  string
}

// VenuePosition 交易所持仓，Size 为绝对值
type VenuePosition struct {
	Symbol string
	Size   decimal.Decimal
	Side   model.OrderSide
}

// Flat reports whether there is nothing to close.
func (p *VenuePosition) Flat() bool {
	return p == nil || p.Size.IsZero()
}

// TradingAdapter 已认证的下单客户端
type TradingAdapter interface {
	SubmitOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	// GetPosition returns nil when there is no position.
	GetPosition(ctx context.Context, symbol string) (*VenuePosition, error)
}

// VenueSet 某个用户可用的交易所集合
type VenueSet interface {
	Venue(exchange string) (TradingAdapter, error)
}

// VenueMap is a VenueSet keyed by lower case exchange name.
type VenueMap map[string]TradingAdapter

func (m VenueMap) Venue(exchange string) (TradingAdapter, error) {
	v, ok := m[strings.ToLower(exchange)]
	if !ok || v == nil {
		return nil, model.NewValidationError("exchange", "no trading venue configured for %q", exchange)
	}
	return v, nil
}
