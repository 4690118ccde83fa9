package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

const defaultStreamMaxLen = 10000

// Repo 最新费率镜像（Hash）+ 机会流（Stream）+ 推送频道（Pub/Sub）
type Repo struct {
	rdb         *redis.Client
	prefix      string
	ttl         time.Duration
	keyLatest   string // prefix + ":rates:latest"
	oppStream   string
	oppChannel  string
	maxStreamLn int64
}

// LatestRate Hash 中的单条记录
type LatestRate struct {
	Exchange string  `json:"exchange"`
	Symbol   string  `json:"symbol"`
	Rate     float64 `json:"rate"`
	Ts       int64   `json:"ts"`
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, oppStream, oppChannel string) *Repo {
	if strings.TrimSpace(prefix) == "" {
		prefix = "fundarb"
	}
	if strings.TrimSpace(oppStream) == "" {
		oppStream = prefix + ":opportunities:stream"
	}
	if strings.TrimSpace(oppChannel) == "" {
		oppChannel = prefix + ":opportunities"
	}
	return &Repo{
		rdb:         rdb,
		prefix:      prefix,
		ttl:         ttl,
		keyLatest:   prefix + ":rates:latest",
		oppStream:   oppStream,
		oppChannel:  oppChannel,
		maxStreamLn: defaultStreamMaxLen,
	}
}

func latestField(exchange, symbol string) string {
	return fmt.Sprintf("%s:%s", exchange, symbol)
}

// PublishRates 覆盖最新费率，field = "binance:BTC"
func (r *Repo) PublishRates(ctx context.Context, rates []model.RateObservation) error {
	if len(rates) == 0 {
		return nil
	}
	pipe := r.rdb.Pipeline()
	for _, o := range rates {
		b, err := json.Marshal(LatestRate{Exchange: o.Exchange, Symbol: o.Symbol, Rate: o.Rate, Ts: o.Timestamp})
		if err != nil {
			return err
		}
		pipe.HSet(ctx, r.keyLatest, latestField(o.Exchange, o.Symbol), string(b))
	}
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyLatest, r.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// PublishOpportunities 1) XADD 每条机会  2) PUBLISH 整批 JSON
func (r *Repo) PublishOpportunities(ctx context.Context, opps []model.ArbitrageOpportunity) error {
	if len(opps) == 0 {
		return nil
	}
	pipe := r.rdb.Pipeline()
	for _, o := range opps {
		pipe.XAdd(ctx, &redis.XAddArgs{
			Stream: r.oppStream,
			MaxLen: r.maxStreamLn,
			Approx: true,
			Values: map[string]any{
				"key":               o.Key,
				"symbol":            o.Symbol,
				"exchange_a":        o.ExchangeA,
				"exchange_b":        o.ExchangeB,
				"rate_difference":   o.RateDifference,
				"annualized_return": o.AnnualizedReturn,
				"strategy":          o.Strategy,
				"created_at":        o.CreatedAt,
			},
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	msg, err := json.Marshal(opps)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.oppChannel, string(msg)).Err()
}

// GetLatestRate 读取镜像中的最新费率；不存在时返回 port.ErrNotFound
func (r *Repo) GetLatestRate(ctx context.Context, exchange, symbol string) (*LatestRate, error) {
	raw, err := r.rdb.HGet(ctx, r.keyLatest, latestField(exchange, symbol)).Result()
	if err == redis.Nil {
		return nil, port.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var lr LatestRate
	if err := json.Unmarshal([]byte(raw), &lr); err != nil {
		return nil, err
	}
	return &lr, nil
}

func (r *Repo) Close() error { return r.rdb.Close() }

var _ port.Publisher = (*Repo)(nil)
