package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

// PlaceOrderResponse 下单响应
type PlaceOrderResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		OrderID     string `json:"orderId"`
		OrderLinkID string `json:"orderLinkId"`
	} `json:"result"`
}

// sideOf BUY/SELL -> Buy/Sell
func sideOf(s model.OrderSide) string {
	if s == model.SideSell {
		return "Sell"
	}
	return "Buy"
}

// SubmitOrder 下单，Price 为空时为市价单
func (c *PerpetualClient) SubmitOrder(ctx context.Context, req port.OrderRequest) (port.OrderResult, error) {
	payload := map[string]any{
		"category": "linear",
		"symbol":   req.Symbol,
		"side":     sideOf(req.Side),
		"qty":      req.Size.String(),
	}

	if req.Price == nil {
		payload["orderType"] = "Market"
	} else {
		payload["orderType"] = "Limit"
		payload["price"] = req.Price.String()
		payload["timeInForce"] = "GTC"
	}
	if req.ReduceOnly {
		payload["reduceOnly"] = true
	}

	body, err := c.signedJSONRequest(ctx, http.MethodPost, "/v5/order/create", payload)
	if err != nil {
		return port.OrderResult{}, fmt.Errorf("place order failed: %w", err)
	}

	var resp PlaceOrderResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return port.OrderResult{}, fmt.Errorf("parse order response failed: %w", err)
	}
	if resp.RetCode != 0 {
		return port.OrderResult{}, fmt.Errorf("place order error: [%d] %s", resp.RetCode, resp.RetMsg)
	}

	log.Info().
		Str("exchange", "BYBIT").
		Str("symbol", req.Symbol).
		Str("side", sideOf(req.Side)).
		Str("quantity", req.Size.String()).
		Bool("reduceOnly", req.ReduceOnly).
		Str("orderID", resp.Result.OrderID).
		Msg("order placed")

	return port.OrderResult{OrderID: resp.Result.OrderID, Status: "created"}, nil
}
