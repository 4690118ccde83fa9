package bybit

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/exchange"
)

const (
	Name       = "bybit"
	DefaultURL = "https://api.bybit.com"
)

// FundingClient Bybit 资金费率 REST 客户端 (V5 API)
type FundingClient struct {
	rest *exchange.RESTClient
	now  func() time.Time
}

// TickersResp /v5/market/tickers?category=linear 响应
type TickersResp struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		Category string `json:"category"`
		List     []struct {
			Symbol          string `json:"symbol"`
			MarkPrice       string `json:"markPrice"`
			IndexPrice      string `json:"indexPrice"`
			FundingRate     string `json:"fundingRate"`
			NextFundingTime string `json:"nextFundingTime"`
		} `json:"list"`
	} `json:"result"`
	Time int64 `json:"time"`
}

// InstrumentsResp /v5/market/instruments-info 响应，fundingInterval 单位为分钟
type InstrumentsResp struct {
	RetCode int    `json:"retCode"`
	RetMsg  string `json:"retMsg"`
	Result  struct {
		List []struct {
			Symbol          string `json:"symbol"`
			FundingInterval int    `json:"fundingInterval"`
		} `json:"list"`
		NextPageCursor string `json:"nextPageCursor"`
	} `json:"result"`
}

// NewFundingClient 创建 Bybit 资金费率客户端
func NewFundingClient(opts exchange.Options) *FundingClient {
	return &FundingClient{
		rest: exchange.NewRESTClient(Name, DefaultURL, opts),
		now:  time.Now,
	}
}

func (c *FundingClient) Name() string { return Name }

// FetchLatestRates 拉取全部 USDT 永续合约的当前资金费率
func (c *FundingClient) FetchLatestRates(ctx context.Context) ([]port.RawRate, error) {
	q := url.Values{}
	q.Set("category", "linear")

	var result TickersResp
	if err := c.rest.GetJSON(ctx, "/v5/market/tickers", q, &result); err != nil {
		return nil, err
	}
	if result.RetCode != 0 {
		return nil, fmt.Errorf("bybit api error: [%d] %s", result.RetCode, result.RetMsg)
	}

	ts := result.Time
	if ts <= 0 {
		ts = c.now().UnixMilli()
	}

	out := make([]port.RawRate, 0, len(result.Result.List))
	for _, r := range result.Result.List {
		if r.FundingRate == "" {
			continue
		}
		rate, err := exchange.ParseFloat(r.FundingRate)
		if err != nil {
			log.Debug().Str("exchange", Name).Str("symbol", r.Symbol).Err(err).Msg("skip unparsable funding rate")
			continue
		}
		mark, _ := exchange.ParseFloat(r.MarkPrice)
		index, _ := exchange.ParseFloat(r.IndexPrice)
		next, _ := strconv.ParseInt(r.NextFundingTime, 10, 64)
		out = append(out, port.RawRate{
			Symbol:    r.Symbol,
			Rate:      rate,
			Timestamp: ts,
			Extra: model.RateExtra{
				MarkPrice:       mark,
				IndexPrice:      index,
				NextFundingTime: next,
			},
		})
	}
	return out, nil
}

// FetchMetadata 合约结算周期，分页读取
func (c *FundingClient) FetchMetadata(ctx context.Context) ([]port.InstrumentMeta, error) {
	var out []port.InstrumentMeta
	cursor := ""
	for {
		q := url.Values{}
		q.Set("category", "linear")
		q.Set("limit", "1000")
		if cursor != "" {
			q.Set("cursor", cursor)
		}

		var result InstrumentsResp
		if err := c.rest.GetJSON(ctx, "/v5/market/instruments-info", q, &result); err != nil {
			return nil, err
		}
		if result.RetCode != 0 {
			return nil, fmt.Errorf("bybit api error: [%d] %s", result.RetCode, result.RetMsg)
		}
		for _, r := range result.Result.List {
			if r.FundingInterval <= 0 {
				continue
			}
			out = append(out, port.InstrumentMeta{
				Symbol:               r.Symbol,
				FundingIntervalHours: float64(r.FundingInterval) / 60,
			})
		}
		cursor = result.Result.NextPageCursor
		if cursor == "" || len(result.Result.List) == 0 {
			return out, nil
		}
	}
}
