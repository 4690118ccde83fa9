package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
)

// OrderResponse 下单响应
type OrderResponse struct {
	OrderID       int64  `json:"orderId"`
	Symbol        string `json:"symbol"`
	Status        string `json:"status"`
	ClientOrderID string `json:"clientOrderId"`
	Side          string `json:"side"`
	Type          string `json:"type"`
	OrigQty       string `json:"origQty"`
	ExecutedQty   string `json:"executedQty"`
	AvgPrice      string `json:"avgPrice"`
	ReduceOnly    bool   `json:"reduceOnly"`
}

// SubmitOrder 下单，Price 为空时为市价单
func (c *PerpetualClient) SubmitOrder(ctx context.Context, req port.OrderRequest) (port.OrderResult, error) {
	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", string(req.Side))
	params.Set("quantity", req.Size.String())

	if req.Price == nil {
		params.Set("type", "MARKET")
	} else {
		params.Set("type", "LIMIT")
		params.Set("timeInForce", "GTC")
		params.Set("price", req.Price.String())
	}
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}

	body, err := c.signedRequest(ctx, http.MethodPost, "/fapi/v1/order", params)
	if err != nil {
		return port.OrderResult{}, fmt.Errorf("place order failed: %w", err)
	}

	var resp OrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return port.OrderResult{}, fmt.Errorf("parse order response failed: %w", err)
	}
	if resp.OrderID == 0 {
		return port.OrderResult{}, fmt.Errorf("order failed: %s", string(body))
	}

	log.Info().
		Str("exchange", "BINANCE").
		Str("symbol", req.Symbol).
		Str("side", string(req.Side)).
		Str("quantity", req.Size.String()).
		Bool("reduceOnly", req.ReduceOnly).
		Int64("orderID", resp.OrderID).
		Str("status", resp.Status).
		Msg("order placed")

	return port.OrderResult{OrderID: strconv.FormatInt(resp.OrderID, 10), Status: resp.Status}, nil
}
