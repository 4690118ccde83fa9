package bybit

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

// PositionListResponse /v5/position/list 响应，size 为绝对值
type PositionListResponse struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []struct {
			PositionIdx int    `json:"positionIdx"`
			Symbol      string `json:"symbol"`
			Side        string `json:"side"`
			Size        string `json:"size"`
			EntryPrice  string `json:"avgPrice"`
			MarkPrice   string `json:"markPrice"`
		} `json:"list"`
	} `json:"result"`
}

// GetPosition 获取单个交易对的持仓，无持仓返回 nil
func (c *PerpetualClient) GetPosition(ctx context.Context, symbol string) (*port.VenuePosition, error) {
	params := url.Values{}
	params.Set("category", "linear")
	params.Set("symbol", symbol)

	body, err := c.signedQueryRequest(ctx, http.MethodGet, "/v5/position/list", params)
	if err != nil {
		return nil, fmt.Errorf("get position failed: %w", err)
	}

	var resp PositionListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse position response failed: %w", err)
	}
	if resp.RetCode != 0 {
		return nil, fmt.Errorf("get position error: [%d] %s", resp.RetCode, resp.RetMsg)
	}

	for _, p := range resp.Result.List {
		if !strings.EqualFold(p.Symbol, symbol) || p.Size == "" {
			continue
		}
		size, err := decimal.NewFromString(p.Size)
		if err != nil {
			return nil, fmt.Errorf("parse size %q: %w", p.Size, err)
		}
		if size.IsZero() {
			continue
		}
		side := model.SideBuy
		if strings.EqualFold(p.Side, "Sell") {
			side = model.SideSell
		}
		return &port.VenuePosition{Symbol: p.Symbol, Size: size.Abs(), Side: side}, nil
	}
	return nil, nil
}
