package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	domainservice "fundarb/internal/domain/service"
)

const (
	DefaultRateFreshness     = 24 * time.Hour
	DefaultOpportunityWindow = time.Hour
	DefaultRetention         = 6 * time.Hour
)

// DiscoveryConfig 机会发现参数
type DiscoveryConfig struct {
	Exchanges         []string      // 配置顺序，决定 exchange_a / exchange_b
	RateFreshness     time.Duration // 资产筛选窗口
	OpportunityWindow time.Duration // 计算所用费率的新鲜度
	Retention         time.Duration // 机会保留时长
}

// DiscoveryService 机会发现引擎
type DiscoveryService struct {
	mu        sync.Mutex // 周期任务与手动 recompute 互斥
	rates     *RateStore
	repo      port.OpportunityRepository
	calc      *domainservice.FundingCalculator
	publisher port.Publisher
	cfg       DiscoveryConfig
	pairs     [][2]string
	now       func() time.Time
}

func NewDiscoveryService(
	rates *RateStore,
	repo port.OpportunityRepository,
	calc *domainservice.FundingCalculator,
	publisher port.Publisher,
	cfg DiscoveryConfig,
) *DiscoveryService {
	if cfg.RateFreshness <= 0 {
		cfg.RateFreshness = DefaultRateFreshness
	}
	if cfg.OpportunityWindow <= 0 {
		cfg.OpportunityWindow = DefaultOpportunityWindow
	}
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	exchanges := make([]string, 0, len(cfg.Exchanges))
	for _, ex := range cfg.Exchanges {
		exchanges = append(exchanges, strings.ToLower(ex))
	}
	cfg.Exchanges = exchanges

	return &DiscoveryService{
		rates:     rates,
		repo:      repo,
		calc:      calc,
		publisher: publisher,
		cfg:       cfg,
		pairs:     domainservice.PairCatalog(exchanges),
		now:       time.Now,
	}
}

// Recompute 清理过期机会后重新计算并持久化，返回本轮结果（按 |diff| 降序）
func (s *DiscoveryService) Recompute(ctx context.Context) ([]model.ArbitrageOpportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	cutoff := now.Add(-s.cfg.Retention).UnixMilli()
	if n, err := s.repo.DeleteOpportunitiesBefore(ctx, cutoff); err != nil {
		log.Error().Err(err).Msg("purge old opportunities failed")
	} else if n > 0 {
		log.Debug().Int64("deleted", n).Msg("purged old opportunities")
	}

	assets, err := s.rates.AssetsWithFreshRates(ctx, s.cfg.RateFreshness)
	if err != nil {
		return nil, err
	}

	createdAt := now.UnixMilli()
	var out []model.ArbitrageOpportunity
	for _, asset := range assets {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		latest, err := s.rates.LatestPerExchange(ctx, asset.ID, s.cfg.OpportunityWindow)
		if err != nil {
			log.Error().Str("symbol", asset.Symbol).Err(err).Msg("load latest rates failed")
			continue
		}

		for _, p := range s.pairs {
			ra, okA := latest[p[0]]
			rb, okB := latest[p[1]]
			if !okA || !okB {
				continue
			}

			opp := s.calc.Calculate(asset, p[0], ra.Rate, p[1], rb.Rate, createdAt)
			if err := s.repo.SaveOpportunity(ctx, &opp); err != nil {
				log.Error().
					Str("symbol", asset.Symbol).
					Str("exchange_a", p[0]).
					Str("exchange_b", p[1]).
					Err(err).
					Msg("save opportunity failed")
				continue
			}
			out = append(out, opp)
		}
	}

	SortByAbsDifference(out)

	if s.publisher != nil && len(out) > 0 {
		if err := s.publisher.PublishOpportunities(ctx, out); err != nil {
			log.Warn().Err(err).Int("count", len(out)).Msg("publish opportunities failed")
		}
	}

	log.Info().Int("assets", len(assets)).Int("opportunities", len(out)).Msg("opportunities recomputed")
	return out, nil
}

// SortByAbsDifference 按 |rate_difference| 降序，相同时按代码与交易所排序
func SortByAbsDifference(opps []model.ArbitrageOpportunity) {
	sort.SliceStable(opps, func(i, j int) bool {
		di, dj := math.Abs(opps[i].RateDifference), math.Abs(opps[j].RateDifference)
		if di != dj {
			return di > dj
		}
		if opps[i].Symbol != opps[j].Symbol {
			return opps[i].Symbol < opps[j].Symbol
		}
		if opps[i].ExchangeA != opps[j].ExchangeA {
			return opps[i].ExchangeA < opps[j].ExchangeA
		}
		return opps[i].ExchangeB < opps[j].ExchangeB
	})
}
