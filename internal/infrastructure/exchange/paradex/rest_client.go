package paradex

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/exchange"
)

const (
	Name       = "paradex"
	DefaultURL = "https://api.prod.paradex.trade"

	perpSuffix = "-PERP"
)

// FundingClient Paradex 市场摘要客户端
type FundingClient struct {
	rest *exchange.RESTClient
	now  func() time.Time
}

// MarketsSummaryResp /v1/markets/summary?market=ALL 响应
type MarketsSummaryResp struct {
	Results []struct {
		Symbol          string `json:"symbol"`
		MarkPrice       string `json:"mark_price"`
		UnderlyingPrice string `json:"underlying_price"`
		FundingRate     string `json:"funding_rate"`
		CreatedAt       int64  `json:"created_at"`
	} `json:"results"`
}

func NewFundingClient(opts exchange.Options) *FundingClient {
	return &FundingClient{
		rest: exchange.NewRESTClient(Name, DefaultURL, opts),
		now:  time.Now,
	}
}

func (c *FundingClient) Name() string { return Name }

// FetchLatestRates 拉取全部永续合约的当前资金费率，期权等非 -PERP 市场忽略
func (c *FundingClient) FetchLatestRates(ctx context.Context) ([]port.RawRate, error) {
	q := url.Values{}
	q.Set("market", "ALL")

	var resp MarketsSummaryResp
	if err := c.rest.GetJSON(ctx, "/v1/markets/summary", q, &resp); err != nil {
		return nil, err
	}

	out := make([]port.RawRate, 0, len(resp.Results))
	for _, r := range resp.Results {
		if !strings.HasSuffix(r.Symbol, perpSuffix) || r.FundingRate == "" {
			continue
		}
		rate, err := exchange.ParseFloat(r.FundingRate)
		if err != nil {
			log.Debug().Str("exchange", Name).Str("symbol", r.Symbol).Err(err).Msg("skip unparsable funding rate")
			continue
		}
		mark, _ := exchange.ParseFloat(r.MarkPrice)
		underlying, _ := exchange.ParseFloat(r.UnderlyingPrice)
		ts := r.CreatedAt
		if ts <= 0 {
			ts = c.now().UnixMilli()
		}
		out = append(out, port.RawRate{
			Symbol:    r.Symbol,
			Rate:      rate,
			Timestamp: ts,
			Extra: model.RateExtra{
				MarkPrice:  mark,
				IndexPrice: underlying,
			},
		})
	}
	return out, nil
}
