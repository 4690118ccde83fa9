package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

// PositionRiskResp /fapi/v2/positionRisk 单条记录，positionAmt 带符号
type PositionRiskResp struct {
	Symbol       string `json:"symbol"`
	PositionAmt  string `json:"positionAmt"`
	EntryPrice   string `json:"entryPrice"`
	MarkPrice    string `json:"markPrice"`
	PositionSide string `json:"positionSide"`
}

// GetPosition 查询单个合约持仓，无持仓返回 nil
func (c *PerpetualClient) GetPosition(ctx context.Context, symbol string) (*port.VenuePosition, error) {
	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.signedRequest(ctx, http.MethodGet, "/fapi/v2/positionRisk", params)
	if err != nil {
		return nil, fmt.Errorf("get position failed: %w", err)
	}

	var rows []PositionRiskResp
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("parse position response failed: %w", err)
	}

	for _, r := range rows {
		if !strings.EqualFold(r.Symbol, symbol) {
			continue
		}
		amt, err := decimal.NewFromString(r.PositionAmt)
		if err != nil {
			return nil, fmt.Errorf("parse positionAmt %q: %w", r.PositionAmt, err)
		}
		if amt.IsZero() {
			return nil, nil
		}
		side := model.SideBuy
		if amt.IsNegative() {
			side = model.SideSell
		}
		return &port.VenuePosition{Symbol: r.Symbol, Size: amt.Abs(), Side: side}, nil
	}
	return nil, nil
}
