package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	domainservice "fundarb/internal/domain/service"
)

// IngestionReport 单个交易所一轮拉取的结果
type IngestionReport struct {
	Exchange   string
	Fetched    int
	Inserted   int
	Duplicates int
	Skipped    int // 无法映射或不在关注列表
	Err        error
}

// IngestionService 并发拉取各交易所费率并写入 RateStore
type IngestionService struct {
	adapters  []port.IngestionAdapter
	mapper    *domainservice.SymbolMapper
	resolver  *AssetResolver
	store     *RateStore
	publisher port.Publisher
	symbols   map[string]struct{}
	now       func() time.Time
}

// NewIngestionService builds the service. symbols limits ingestion to the
// given canonical assets; empty means every asset the venues report.
func NewIngestionService(
	adapters []port.IngestionAdapter,
	mapper *domainservice.SymbolMapper,
	resolver *AssetResolver,
	store *RateStore,
	publisher port.Publisher,
	symbols []string,
) *IngestionService {
	var filter map[string]struct{}
	if len(symbols) > 0 {
		filter = make(map[string]struct{}, len(symbols))
		for _, s := range symbols {
			filter[domainservice.NormalizeSymbol(s)] = struct{}{}
		}
	}
	return &IngestionService{
		adapters:  adapters,
		mapper:    mapper,
		resolver:  resolver,
		store:     store,
		publisher: publisher,
		symbols:   filter,
		now:       time.Now,
	}
}

// Exchanges 适配器名称（配置顺序）
func (s *IngestionService) Exchanges() []string {
	out := make([]string, 0, len(s.adapters))
	for _, a := range s.adapters {
		out = append(out, strings.ToLower(a.Name()))
	}
	return out
}

// Ingest runs every adapter concurrently and returns once all of them are
// done. Adapter failures are reported per exchange, never returned.
func (s *IngestionService) Ingest(ctx context.Context) ([]IngestionReport, error) {
	reports := make([]IngestionReport, len(s.adapters))

	var (
		mu        sync.Mutex
		published []model.RateObservation
	)

	g, gctx := errgroup.WithContext(ctx)
	for i, a := range s.adapters {
		g.Go(func() error {
			rep, obs := s.ingestOne(gctx, a)
			reports[i] = rep

			mu.Lock()
			published = append(published, obs...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return reports, err
	}

	if s.publisher != nil && len(published) > 0 {
		if err := s.publisher.PublishRates(ctx, published); err != nil {
			log.Warn().Err(err).Int("count", len(published)).Msg("publish rates failed")
		}
	}
	return reports, nil
}

func (s *IngestionService) ingestOne(ctx context.Context, a port.IngestionAdapter) (IngestionReport, []model.RateObservation) {
	name := strings.ToLower(a.Name())
	rep := IngestionReport{Exchange: name}

	raw, err := a.FetchLatestRates(ctx)
	if err != nil {
		rep.Err = &model.TransientAdapterError{Exchange: name, Op: "fetch rates", Err: err}
		log.Warn().Str("exchange", name).Err(err).Msg("fetch funding rates failed")
		return rep, nil
	}
	rep.Fetched = len(raw)

	intervals := s.intervals(ctx, name, a)

	var obs []model.RateObservation
	for _, r := range raw {
		base, err := s.mapper.ToCanonical(name, r.Symbol)
		if err != nil {
			rep.Skipped++
			continue
		}
		if s.symbols != nil {
			if _, ok := s.symbols[base]; !ok {
				rep.Skipped++
				continue
			}
		}

		asset, err := s.resolver.ResolveAsset(ctx, base)
		if err != nil {
			log.Error().Str("exchange", name).Str("symbol", base).Err(err).Msg("resolve asset failed")
			rep.Skipped++
			continue
		}

		extra := r.Extra
		if extra.FundingIntervalHours == 0 {
			extra.FundingIntervalHours = intervals[r.Symbol]
		}
		ts := r.Timestamp
		if ts <= 0 {
			ts = s.now().UnixMilli()
		}

		inserted, err := s.store.Record(ctx, asset.ID, name, r.Rate, ts, extra)
		if err != nil {
			log.Error().Str("exchange", name).Str("symbol", base).Err(err).Msg("record funding rate failed")
			rep.Skipped++
			continue
		}
		if !inserted {
			rep.Duplicates++
			continue
		}
		rep.Inserted++
		obs = append(obs, model.RateObservation{
			AssetID:   asset.ID,
			Symbol:    asset.Symbol,
			Exchange:  name,
			Rate:      r.Rate,
			Timestamp: ts,
			Extra:     extra,
		})
	}

	log.Debug().
		Str("exchange", name).
		Int("fetched", rep.Fetched).
		Int("inserted", rep.Inserted).
		Int("duplicates", rep.Duplicates).
		Int("skipped", rep.Skipped).
		Msg("ingested funding rates")
	return rep, obs
}

// intervals 可选的合约元数据：原生代码 -> 结算周期（小时）
func (s *IngestionService) intervals(ctx context.Context, name string, a port.IngestionAdapter) map[string]float64 {
	mp, ok := a.(port.MetadataProvider)
	if !ok {
		return nil
	}
	meta, err := mp.FetchMetadata(ctx)
	if err != nil {
		log.Warn().Str("exchange", name).Err(err).Msg("fetch instrument metadata failed")
		return nil
	}
	out := make(map[string]float64, len(meta))
	for _, m := range meta {
		out[m.Symbol] = m.FundingIntervalHours
	}
	return out
}
