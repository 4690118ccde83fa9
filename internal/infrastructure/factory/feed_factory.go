package factory

import (
	"github.com/rs/zerolog/log"

	"fundarb/internal/application/port"
	domainservice "fundarb/internal/domain/service"
	"fundarb/internal/infrastructure/config"
	"fundarb/internal/infrastructure/exchange"
	"fundarb/internal/infrastructure/registry"
)

func optionsOf(ex config.ExchangeConfig) exchange.Options {
	return exchange.Options{
		RestURL:           ex.RestURL,
		RequestsPerSecond: ex.RequestsPerSecond,
		Timeout:           ex.Timeout,
	}
}

// NewIngestionAdapters 按配置顺序为已启用的交易所创建采集适配器
// 未注册的交易所跳过并告警
func NewIngestionAdapters(cfg *config.Config) []port.IngestionAdapter {
	var adapters []port.IngestionAdapter
	for _, name := range cfg.GetEnabledExchanges() {
		factory, ok := registry.Feed(name)
		if !ok {
			log.Warn().Str("exchange", name).Strs("registered", registry.Feeds()).Msg("no funding feed registered, skipping")
			continue
		}
		adapters = append(adapters, factory(optionsOf(cfg.Exchanges[name])))
		log.Info().Str("exchange", name).Msg("✓ funding feed initialized")
	}
	return adapters
}

// NewSymbolMapper 内置格式叠加配置中的 symbol_format 与 symbols 覆盖
func NewSymbolMapper(cfg *config.Config) *domainservice.SymbolMapper {
	table := domainservice.DefaultSymbolTable()
	for name, ex := range cfg.Exchanges {
		f := table[name]
		if ex.SymbolFormat != "" {
			f.Template = ex.SymbolFormat
		}
		if len(ex.Symbols) > 0 {
			overrides := make(map[string]string, len(f.Overrides)+len(ex.Symbols))
			for k, v := range f.Overrides {
				overrides[k] = v
			}
			for k, v := range ex.Symbols {
				overrides[k] = v
			}
			f.Overrides = overrides
		}
		if f.Template == "" {
			continue
		}
		table[name] = f
	}
	return domainservice.NewSymbolMapper(table)
}
