package hyperliquid

import (
	"fundarb/internal/application/port"
	"fundarb/internal/infrastructure/exchange"
	"fundarb/internal/infrastructure/registry"
)

var _ port.IngestionAdapter = (*FundingClient)(nil)

func init() {
	registry.RegisterFeed(Name, func(opts exchange.Options) port.IngestionAdapter {
		return NewFundingClient(opts)
	})
}
