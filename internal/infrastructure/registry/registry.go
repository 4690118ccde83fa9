package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/infrastructure/exchange"
)

// FeedFactory 创建资金费率采集适配器
type FeedFactory func(opts exchange.Options) port.IngestionAdapter

// VenueFactory 创建已认证的下单客户端
type VenueFactory func(opts exchange.Options, creds exchange.Credentials) (port.TradingAdapter, error)

var (
	mu     sync.RWMutex
	feeds  = make(map[string]FeedFactory)
	venues = make(map[string]VenueFactory)
)

// RegisterFeed 注册采集适配器工厂
// 由各交易所包的 init() 调用
func RegisterFeed(exchangeName string, factory FeedFactory) {
	name := strings.ToLower(exchangeName)
	if factory == nil {
		log.Warn().Str("exchange", name).Msg("invalid feed factory")
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := feeds[name]; exists {
		log.Warn().Str("exchange", name).Msg("feed factory already registered, overwriting")
	}
	feeds[name] = factory
}

// RegisterVenue 注册下单客户端工厂
func RegisterVenue(exchangeName string, factory VenueFactory) {
	name := strings.ToLower(exchangeName)
	if factory == nil {
		log.Warn().Str("exchange", name).Msg("invalid venue factory")
		return
	}
	mu.Lock()
	defer mu.Unlock()
	if _, exists := venues[name]; exists {
		log.Warn().Str("exchange", name).Msg("venue factory already registered, overwriting")
	}
	venues[name] = factory
}

// Feed 获取已注册的采集适配器工厂
func Feed(exchangeName string) (FeedFactory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := feeds[strings.ToLower(exchangeName)]
	return f, ok
}

// Venue 获取已注册的下单客户端工厂
func Venue(exchangeName string) (VenueFactory, bool) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := venues[strings.ToLower(exchangeName)]
	return f, ok
}

// Feeds lists registered feed names, sorted.
func Feeds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(feeds))
	for name := range feeds {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
