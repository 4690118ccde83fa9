package svc

import (
	"context"
	"fmt"
	"os"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/application/service"
	"fundarb/internal/application/usecase/monitor"
	domainservice "fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/config"
	"fundarb/internal/infrastructure/factory"
	"fundarb/internal/infrastructure/storage/composite"
	postgresrepo "fundarb/internal/infrastructure/storage/postgres"
	redisrepo "fundarb/internal/infrastructure/storage/redis"
	sqliterepo "fundarb/internal/infrastructure/storage/sqlite"
	"fundarb/internal/interfaces/console"
)

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	// 基础设施层
	store     port.Store
	publisher *composite.Publisher
	redisRepo *redisrepo.Repo
	adapters  []port.IngestionAdapter
	venues    port.VenueMap
	mapper    *domainservice.SymbolMapper

	// 输出端口
	Sink port.Sink

	// 应用业务组件
	Resolver    *service.AssetResolver
	Rates       *service.RateStore
	Ingestion   *service.IngestionService
	Discovery   *service.DiscoveryService
	Query       *service.QueryService
	Coordinator *service.StrategyCoordinator

	// 资源管理
	closerChain []func() error
}

// New 创建并初始化 ServiceContext
// 这是应用启动的唯一入口点，所有依赖初始化都在这里完成
func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		Sink:        console.NewSink(os.Stdout),
		closerChain: make([]func() error, 0),
	}

	if err := sc.initializeComponents(); err != nil {
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

// initializeComponents 按依赖顺序初始化
func (sc *ServiceContext) initializeComponents() error {
	if err := sc.initializeStorage(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageInitFailed, err)
	}

	sc.adapters = factory.NewIngestionAdapters(sc.Config)
	if len(sc.adapters) == 0 {
		return ErrNoFeedsEnabled
	}
	sc.mapper = factory.NewSymbolMapper(sc.Config)

	venues, err := factory.NewVenues(sc.Config)
	if err != nil {
		return fmt.Errorf("trading venues: %w", err)
	}
	sc.venues = venues

	exchanges := make([]string, 0, len(sc.adapters))
	for _, a := range sc.adapters {
		exchanges = append(exchanges, a.Name())
	}

	sc.Resolver = service.NewAssetResolver(sc.store)
	sc.Rates = service.NewRateStore(sc.store)
	sc.Ingestion = service.NewIngestionService(sc.adapters, sc.mapper, sc.Resolver, sc.Rates, sc.publisher, sc.Config.Symbols.List)
	sc.Discovery = service.NewDiscoveryService(
		sc.Rates,
		sc.store,
		domainservice.NewFundingCalculator(sc.Config.Arbitrage.SettlementsPerDay),
		sc.publisher,
		service.DiscoveryConfig{
			Exchanges:         exchanges,
			RateFreshness:     sc.Config.Arbitrage.RateFreshness,
			OpportunityWindow: sc.Config.Arbitrage.OpportunityWindow,
			Retention:         sc.Config.Arbitrage.Retention,
		},
	)
	sc.Query = service.NewQueryService(sc.store, sc.store, sc.Rates, sc.Discovery)
	sc.Coordinator = service.NewStrategyCoordinator(sc.mapper, nil, sc.store)
	sc.Coordinator.SetSubmissionWindow(sc.Config.Trading.DuplicateWindow)
	limits, err := domainservice.NewRiskLimits(sc.Config.Trading.MaxPositionSize, sc.Config.Trading.MaxStrategiesPerSymbol)
	if err != nil {
		return fmt.Errorf("trading limits: %w", err)
	}
	sc.Coordinator.SetRiskLimits(limits)

	if len(sc.venues) > 0 {
		n, err := sc.Coordinator.Restore(sc.Ctx, sc.venues)
		if err != nil {
			log.Warn().Err(err).Msg("restore open strategies failed")
		} else if n > 0 {
			log.Info().Int("strategies", n).Msg("✓ open strategies restored")
		}
	}

	log.Info().
		Int("feeds", len(sc.adapters)).
		Int("venues", len(sc.venues)).
		Int("publishers", sc.publisher.Len()).
		Msg("✓ All components initialized")
	return nil
}

// initializeStorage 主存储（sqlite / postgres）+ 可选 Redis 推送
func (sc *ServiceContext) initializeStorage() error {
	switch sc.Config.Storage.Driver {
	case "postgres":
		if err := sc.initPostgres(); err != nil {
			return fmt.Errorf("postgres initialization failed: %w", err)
		}
	default:
		if err := sc.initSQLite(); err != nil {
			return fmt.Errorf("sqlite initialization failed: %w", err)
		}
	}

	var pubs []port.Publisher
	if sc.Config.Storage.Redis.Enabled {
		if err := sc.initRedis(); err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		pubs = append(pubs, sc.redisRepo)
	}
	sc.publisher = composite.New(pubs...)
	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing publishers")
		return sc.publisher.Close()
	})
	return nil
}

// initRedis 初始化 Redis 连接
func (sc *ServiceContext) initRedis() error {
	rc := sc.Config.Storage.Redis
	rdb := redisclient.NewClient(&redisclient.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(sc.Ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	// 连接由 publisher 关闭
	sc.redisRepo = redisrepo.New(rdb, rc.Prefix, rc.TTL, rc.OpportunityStream, rc.OpportunityChannel)

	log.Info().
		Str("addr", rc.Addr).
		Int("db", rc.DB).
		Msg("✓ Redis initialized")
	return nil
}

// initSQLite 初始化 SQLite 数据库
func (sc *ServiceContext) initSQLite() error {
	repo, err := sqliterepo.New(sc.Config.Storage.SQLite.Path)
	if err != nil {
		return fmt.Errorf("sqlite repo creation failed: %w", err)
	}
	sc.store = repo

	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing sqlite connection")
		return repo.Close()
	})

	log.Info().
		Str("path", sc.Config.Storage.SQLite.Path).
		Msg("✓ SQLite initialized")
	return nil
}

// initPostgres 初始化 Postgres 连接池
func (sc *ServiceContext) initPostgres() error {
	pc := sc.Config.Storage.Postgres
	repo, err := postgresrepo.New(pc.DSN, pc.MaxConns)
	if err != nil {
		return fmt.Errorf("postgres repo creation failed: %w", err)
	}
	sc.store = repo

	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing postgres connection")
		return repo.Close()
	})

	log.Info().
		Int("max_conns", pc.MaxConns).
		Msg("✓ Postgres initialized")
	return nil
}

// Store 主存储
func (sc *ServiceContext) Store() port.Store {
	return sc.store
}

// Venues 已配置的下单客户端
func (sc *ServiceContext) Venues() port.VenueMap {
	return sc.venues
}

// BuildMonitorServiceDeps 构建周期任务所需依赖
func (sc *ServiceContext) BuildMonitorServiceDeps() monitor.ServiceDeps {
	return monitor.ServiceDeps{
		Ingestion: sc.Ingestion,
		Discovery: sc.Discovery,
		Interval:  sc.Config.App.Interval,
		TopN:      sc.Config.App.TopN,
		Sink:      sc.Sink,
	}
}

// Close 按照相反的顺序关闭所有资源
func (sc *ServiceContext) Close() error {
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil {
			log.Error().Err(err).Msg("error closing resource")
		}
	}
	sc.closerChain = nil
	return nil
}
