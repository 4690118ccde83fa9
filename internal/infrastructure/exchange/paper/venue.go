package paper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

var _ port.TradingAdapter = (*Venue)(nil)

// ErrReduceOnly 只减仓订单会开仓或加仓
var ErrReduceOnly = errors.New("reduce-only order would open or increase a position")

// Venue 模拟成交的交易所，市价单立即全部成交
// 持仓按合约代码记录，多头为正、空头为负
type Venue struct {
	exchange string

	mu        sync.Mutex
	positions map[string]decimal.Decimal
	seq       int64
}

func NewVenue(exchange string) *Venue {
	return &Venue{
		exchange:  strings.ToLower(exchange),
		positions: make(map[string]decimal.Decimal),
	}
}

func (v *Venue) SubmitOrder(ctx context.Context, req port.OrderRequest) (port.OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return port.OrderResult{}, err
	}
	if !req.Size.IsPositive() {
		return port.OrderResult{}, fmt.Errorf("paper %s: size must be positive", v.exchange)
	}
	if req.Side != model.SideBuy && req.Side != model.SideSell {
		return port.OrderResult{}, fmt.Errorf("paper %s: unknown side %q", v.exchange, req.Side)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	delta := req.Size
	if req.Side == model.SideSell {
		delta = delta.Neg()
	}
	cur := v.positions[req.Symbol]

	if req.ReduceOnly {
		if cur.IsZero() || cur.Sign() == delta.Sign() {
			return port.OrderResult{}, fmt.Errorf("paper %s %s: %w", v.exchange, req.Symbol, ErrReduceOnly)
		}
		if delta.Abs().GreaterThan(cur.Abs()) {
			delta = cur.Neg()
		}
	}

	next := cur.Add(delta)
	if next.IsZero() {
		delete(v.positions, req.Symbol)
	} else {
		v.positions[req.Symbol] = next
	}
	v.seq++
	id := fmt.Sprintf("paper-%s-%d", v.exchange, v.seq)

	log.Info().
		Str("exchange", v.exchange).
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Str("size", delta.Abs().String()).
		Bool("reduceOnly", req.ReduceOnly).
		Str("position", next.String()).
		Msg("paper order filled")

	return port.OrderResult{OrderID: id, Status: "FILLED"}, nil
}

func (v *Venue) GetPosition(ctx context.Context, symbol string) (*port.VenuePosition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	cur, ok := v.positions[symbol]
	if !ok || cur.IsZero() {
		return nil, nil
	}
	side := model.SideBuy
	if cur.IsNegative() {
		side = model.SideSell
	}
	return &port.VenuePosition{Symbol: symbol, Size: cur.Abs(), Side: side}, nil
}
