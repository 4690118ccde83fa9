package composite

import (
	"context"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
)

// Publisher 依次调用所有下游，返回第一个错误
type Publisher struct {
	pubs []port.Publisher
}

func New(pubs ...port.Publisher) *Publisher {
	// nil publishers are allowed; filter in constructor for safety
	out := make([]port.Publisher, 0, len(pubs))
	for _, p := range pubs {
		if p != nil {
			out = append(out, p)
		}
	}
	return &Publisher{pubs: out}
}

func (c *Publisher) Len() int { return len(c.pubs) }

func (c *Publisher) PublishRates(ctx context.Context, rates []model.RateObservation) error {
	var firstErr error
	for _, p := range c.pubs {
		if err := p.PublishRates(ctx, rates); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Publisher) PublishOpportunities(ctx context.Context, opps []model.ArbitrageOpportunity) error {
	var firstErr error
	for _, p := range c.pubs {
		if err := p.PublishOpportunities(ctx, opps); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (c *Publisher) Close() error {
	var firstErr error
	for _, p := range c.pubs {
		if err := p.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ port.Publisher = (*Publisher)(nil)
