package port

import (
	"context"

	"fundarb/internal/domain/model"
)

// Publisher 向外部（看板、机器人）推送最新数据
type Publisher interface {
	PublishRates(ctx context.Context, rates []model.RateObservation) error
	PublishOpportunities(ctx context.Context, opps []model.ArbitrageOpportunity) error
	Close() error
}
