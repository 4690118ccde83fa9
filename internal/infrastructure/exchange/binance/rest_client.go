package binance

import (
	"context"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/exchange"
)

const (
	Name       = "binance"
	DefaultURL = "https://fapi.binance.com"

	defaultIntervalHours = 8
)

// FundingClient Binance U 本位合约资金费率 REST 客户端
type FundingClient struct {
	rest *exchange.RESTClient
	now  func() time.Time
}

// PremiumIndexResp /fapi/v1/premiumIndex 单条记录
type PremiumIndexResp struct {
	Symbol          string `json:"symbol"`
	MarkPrice       string `json:"markPrice"`
	IndexPrice      string `json:"indexPrice"`
	LastFundingRate string `json:"lastFundingRate"`
	NextFundingTime int64  `json:"nextFundingTime"`
	Time            int64  `json:"time"`
}

// FundingInfoResp /fapi/v1/fundingInfo 单条记录，只列出调整过参数的合约
type FundingInfoResp struct {
	Symbol               string  `json:"symbol"`
	FundingIntervalHours float64 `json:"fundingIntervalHours"`
}

// NewFundingClient 创建 Binance 资金费率客户端
func NewFundingClient(opts exchange.Options) *FundingClient {
	return &FundingClient{
		rest: exchange.NewRESTClient(Name, DefaultURL, opts),
		now:  time.Now,
	}
}

func (c *FundingClient) Name() string { return Name }

// FetchLatestRates 一次请求拉取全部合约的当前资金费率
func (c *FundingClient) FetchLatestRates(ctx context.Context) ([]port.RawRate, error) {
	var results []PremiumIndexResp
	if err := c.rest.GetJSON(ctx, "/fapi/v1/premiumIndex", url.Values{}, &results); err != nil {
		return nil, err
	}

	out := make([]port.RawRate, 0, len(results))
	for _, r := range results {
		rate, err := exchange.ParseFloat(r.LastFundingRate)
		if err != nil {
			log.Debug().Str("exchange", Name).Str("symbol", r.Symbol).Err(err).Msg("skip unparsable funding rate")
			continue
		}
		mark, _ := exchange.ParseFloat(r.MarkPrice)
		index, _ := exchange.ParseFloat(r.IndexPrice)
		ts := r.Time
		if ts <= 0 {
			ts = c.now().UnixMilli()
		}
		out = append(out, port.RawRate{
			Symbol:    r.Symbol,
			Rate:      rate,
			Timestamp: ts,
			Extra: model.RateExtra{
				MarkPrice:       mark,
				IndexPrice:      index,
				NextFundingTime: r.NextFundingTime,
			},
		})
	}
	return out, nil
}

// FetchMetadata 结算周期，未列出的合约按 8 小时
func (c *FundingClient) FetchMetadata(ctx context.Context) ([]port.InstrumentMeta, error) {
	var results []FundingInfoResp
	if err := c.rest.GetJSON(ctx, "/fapi/v1/fundingInfo", url.Values{}, &results); err != nil {
		return nil, err
	}
	out := make([]port.InstrumentMeta, 0, len(results))
	for _, r := range results {
		hours := r.FundingIntervalHours
		if hours <= 0 {
			hours = defaultIntervalHours
		}
		out = append(out, port.InstrumentMeta{Symbol: r.Symbol, FundingIntervalHours: hours})
	}
	return out, nil
}
