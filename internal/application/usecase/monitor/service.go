package monitor

import (
	"context"
	"errors"
	"time"

	"fundarb/internal/application/port"
	"fundarb/internal/application/service"

	"github.com/rs/zerolog/log"
)

const DefaultInterval = 5 * time.Minute

type ServiceDeps struct {
	Ingestion *service.IngestionService
	Discovery *service.DiscoveryService
	Interval  time.Duration
	TopN      int
	Sink      port.Sink // 可为 nil
}

// Service 周期驱动：拉取全部交易所后再计算机会，轮次之间不重叠
type Service struct {
	deps ServiceDeps
	fmt  *Formatter
}

func NewService(deps ServiceDeps) *Service {
	if deps.Interval <= 0 {
		deps.Interval = DefaultInterval
	}
	if deps.TopN <= 0 {
		deps.TopN = service.DefaultTopN
	}
	return &Service{deps: deps, fmt: NewFormatter()}
}

// Run 首轮立即执行，之后按间隔执行，直到 ctx 取消
func (s *Service) Run(ctx context.Context) error {
	if s.deps.Ingestion == nil || s.deps.Discovery == nil {
		return errors.New("monitor: ingestion and discovery are required")
	}

	ticker := time.NewTicker(s.deps.Interval)
	defer ticker.Stop()

	s.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			if s.deps.Sink != nil {
				_ = s.deps.Sink.NewLine()
			}
			return ctx.Err()
		case <-ticker.C:
			s.cycle(ctx)
		}
	}
}

func (s *Service) cycle(ctx context.Context) {
	if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("cycle failed")
	}
}

// RunOnce 执行一轮：并发拉取 -> 等待全部完成 -> 计算机会
func (s *Service) RunOnce(ctx context.Context) (CycleResult, error) {
	res := CycleResult{StartedAt: time.Now()}
	if s.deps.Sink != nil {
		_ = s.deps.Sink.WriteLive(s.fmt.RenderProgress(res.StartedAt))
	}

	reports, err := s.deps.Ingestion.Ingest(ctx)
	res.Reports = reports
	if err != nil {
		return res, err
	}

	opps, err := s.deps.Discovery.Recompute(ctx)
	res.Opportunities = opps
	res.Duration = time.Since(res.StartedAt)
	if err != nil {
		return res, err
	}

	if failed := res.Failed(); len(failed) > 0 {
		log.Warn().Strs("exchanges", failed).Msg("some exchanges failed this cycle")
	}
	log.Info().
		Int("opportunities", len(opps)).
		Dur("took", res.Duration).
		Msg("cycle done")

	if s.deps.Sink != nil {
		for _, line := range s.fmt.RenderSnapshot(res, s.deps.TopN) {
			_ = s.deps.Sink.WriteSnapshot(res.StartedAt, line)
		}
	}
	return res, nil
}
