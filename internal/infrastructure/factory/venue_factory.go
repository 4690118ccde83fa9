package factory

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	"fundarb/internal/infrastructure/config"
	"fundarb/internal/infrastructure/exchange"
	"fundarb/internal/infrastructure/exchange/paper"
	"fundarb/internal/infrastructure/registry"
)

// NewVenues 为已启用的交易所创建下单客户端
// trading.paper = true 时全部使用模拟成交；否则只为配置了凭证且支持下单的交易所创建
func NewVenues(cfg *config.Config) (port.VenueMap, error) {
	venues := make(port.VenueMap)
	for _, name := range cfg.GetEnabledExchanges() {
		if cfg.Trading.Paper {
			venues[name] = paper.NewVenue(name)
			continue
		}

		ex := cfg.Exchanges[name]
		if !ex.HasCredentials() {
			log.Debug().Str("exchange", name).Msg("no credentials, trading disabled")
			continue
		}
		factory, ok := registry.Venue(name)
		if !ok {
			log.Warn().Str("exchange", name).Msg("credentials configured but exchange has no trading client")
			continue
		}
		venue, err := factory(optionsOf(ex), exchange.Credentials{APIKey: ex.APIKey, APISecret: ex.APISecret})
		if err != nil {
			return nil, fmt.Errorf("%s trading client: %w", name, err)
		}
		venues[name] = venue
		log.Info().Str("exchange", name).Msg("✓ trading venue initialized")
	}
	return venues, nil
}
