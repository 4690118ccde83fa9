package monitor

import (
	"time"

	"fundarb/internal/application/service"
	"fundarb/internal/domain/model"
)

// CycleResult 一轮拉取 + 计算的结果
type CycleResult struct {
	StartedAt     time.Time
	Duration      time.Duration
	Reports       []service.IngestionReport
	Opportunities []model.ArbitrageOpportunity
}

// Failed 本轮失败的交易所
func (r CycleResult) Failed() []string {
	var out []string
	for _, rep := range r.Reports {
		if rep.Err != nil {
			out = append(out, rep.Exchange)
		}
	}
	return out
}
