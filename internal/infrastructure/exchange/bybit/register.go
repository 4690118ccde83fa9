package bybit

import (
	"fundarb/internal/application/port"
	"fundarb/internal/infrastructure/exchange"
	"fundarb/internal/infrastructure/registry"
)

var (
	_ port.IngestionAdapter = (*FundingClient)(nil)
	_ port.MetadataProvider = (*FundingClient)(nil)
	_ port.TradingAdapter   = (*PerpetualClient)(nil)
)

func init() {
	registry.RegisterFeed(Name, func(opts exchange.Options) port.IngestionAdapter {
		return NewFundingClient(opts)
	})
	registry.RegisterVenue(Name, func(opts exchange.Options, creds exchange.Credentials) (port.TradingAdapter, error) {
		return NewPerpetualClient(opts, creds)
	})
}
