package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/exchange"
)

const (
	Name       = "hyperliquid"
	DefaultURL = "https://api.hyperliquid.xyz"

	// 每小时结算一次，费率为小时费率
	fundingIntervalHours = 1
)

// FundingClient Hyperliquid /info 资金费率客户端
type FundingClient struct {
	rest *exchange.RESTClient
	now  func() time.Time
}

type infoRequest struct {
	Type string `json:"type"`
}

// Universe metaAndAssetCtxs 第一个元素
type Universe struct {
	Universe []struct {
		Name       string `json:"name"`
		SzDecimals int    `json:"szDecimals"`
		IsDelisted bool   `json:"isDelisted"`
	} `json:"universe"`
}

// AssetCtx metaAndAssetCtxs 第二个元素中的单项，与 universe 按下标对应
type AssetCtx struct {
	Funding  string `json:"funding"`
	MarkPx   string `json:"markPx"`
	OraclePx string `json:"oraclePx"`
	Premium  string `json:"premium"`
}

func NewFundingClient(opts exchange.Options) *FundingClient {
	return &FundingClient{
		rest: exchange.NewRESTClient(Name, DefaultURL, opts),
		now:  time.Now,
	}
}

func (c *FundingClient) Name() string { return Name }

// FetchLatestRates 拉取全部永续合约的当前资金费率
// 响应为 [meta, [ctx...]]，按下标配对
func (c *FundingClient) FetchLatestRates(ctx context.Context) ([]port.RawRate, error) {
	var raw []json.RawMessage
	if err := c.rest.PostJSON(ctx, "/info", infoRequest{Type: "metaAndAssetCtxs"}, &raw); err != nil {
		return nil, err
	}
	if len(raw) != 2 {
		return nil, fmt.Errorf("hyperliquid: unexpected response with %d elements", len(raw))
	}

	var meta Universe
	if err := json.Unmarshal(raw[0], &meta); err != nil {
		return nil, fmt.Errorf("hyperliquid meta: %w", err)
	}
	var ctxs []AssetCtx
	if err := json.Unmarshal(raw[1], &ctxs); err != nil {
		return nil, fmt.Errorf("hyperliquid asset ctxs: %w", err)
	}
	if len(ctxs) != len(meta.Universe) {
		log.Warn().Int("universe", len(meta.Universe)).Int("ctxs", len(ctxs)).Msg("hyperliquid universe/ctx length mismatch")
	}

	ts := c.now().UnixMilli()
	n := min(len(ctxs), len(meta.Universe))
	out := make([]port.RawRate, 0, n)
	for i := 0; i < n; i++ {
		asset := meta.Universe[i]
		if asset.IsDelisted {
			continue
		}
		rate, err := exchange.ParseFloat(ctxs[i].Funding)
		if err != nil {
			log.Debug().Str("exchange", Name).Str("symbol", asset.Name).Err(err).Msg("skip unparsable funding rate")
			continue
		}
		mark, _ := exchange.ParseFloat(ctxs[i].MarkPx)
		oracle, _ := exchange.ParseFloat(ctxs[i].OraclePx)
		premium, _ := exchange.ParseFloat(ctxs[i].Premium)
		out = append(out, port.RawRate{
			Symbol:    asset.Name,
			Rate:      rate,
			Timestamp: ts,
			Extra: model.RateExtra{
				MarkPrice:            mark,
				IndexPrice:           oracle,
				Premium:              premium,
				FundingIntervalHours: fundingIntervalHours,
			},
		})
	}
	return out, nil
}
