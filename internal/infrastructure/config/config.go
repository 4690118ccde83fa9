package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	EnvPostgresDSN   = "FUNDARB_POSTGRES_DSN"
	EnvRedisPassword = "FUNDARB_REDIS_PASSWORD"
)

// DefaultRestURLs 已知交易所的公开 REST 地址
var DefaultRestURLs = map[string]string{
	"binance":     "https://fapi.binance.com",
	"bybit":       "https://api.bybit.com",
	"hyperliquid": "https://api.hyperliquid.xyz",
	"paradex":     "https://api.prod.paradex.trade",
}

type ExchangeConfig struct {
	Enabled           bool              `toml:"enabled"`
	RestURL           string            `toml:"rest_url"`
	SymbolFormat      string            `toml:"symbol_format"` // 例如 "{base}-USD-PERP"，空则用内置格式
	Symbols           map[string]string `toml:"symbols"`       // 个别资产的原生代码覆盖
	RequestsPerSecond float64           `toml:"requests_per_second"`
	Timeout           time.Duration     `toml:"timeout"`
	APIKey            string            `toml:"api_key"`
	APISecret         string            `toml:"api_secret"`
}

// HasCredentials reports whether signed trading is possible.
func (e ExchangeConfig) HasCredentials() bool {
	return e.APIKey != "" && e.APISecret != ""
}

type SQLiteConfig struct {
	Path string `toml:"path"`
}

type PostgresConfig struct {
	DSN      string `toml:"dsn"`
	MaxConns int    `toml:"max_conns"`
}

type RedisConfig struct {
	Enabled            bool          `toml:"enabled"`
	Addr               string        `toml:"addr"`
	Password           string        `toml:"password"`
	DB                 int           `toml:"db"`
	Prefix             string        `toml:"prefix"`
	TTL                time.Duration `toml:"ttl"`
	OpportunityStream  string        `toml:"opportunity_stream"`
	OpportunityChannel string        `toml:"opportunity_channel"`
}

type Config struct {
	App struct {
		Interval time.Duration `toml:"interval"`
		LogLevel string        `toml:"log_level"`
		TopN     int           `toml:"top_n"`
	} `toml:"app"`

	Symbols struct {
		List []string `toml:"list"` // 空表示全部
	} `toml:"symbols"`

	Arbitrage struct {
		RateFreshness     time.Duration `toml:"rate_freshness"`
		OpportunityWindow time.Duration `toml:"opportunity_window"`
		Retention         time.Duration `toml:"retention"`
		SettlementsPerDay int           `toml:"settlements_per_day"`
	} `toml:"arbitrage"`

	Exchanges map[string]ExchangeConfig `toml:"exchanges"`

	Storage struct {
		Driver   string         `toml:"driver"` // sqlite | postgres
		SQLite   SQLiteConfig   `toml:"sqlite"`
		Postgres PostgresConfig `toml:"postgres"`
		Redis    RedisConfig    `toml:"redis"`
	} `toml:"storage"`

	HTTP struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
	} `toml:"http"`

	Trading struct {
		Paper bool `toml:"paper"`

		// 同一 symbol/方向再次开仓的最短间隔，负数关闭
		DuplicateWindow time.Duration `toml:"duplicate_window"`

		// 单腿最大数量，空表示不限制，例如 "0.5"
		MaxPositionSize        string `toml:"max_position_size"`
		MaxStrategiesPerSymbol int    `toml:"max_strategies_per_symbol"`
	} `toml:"trading"`

	exchangeOrder []string
}

// Load 读取 .env（可选）和 TOML 文件
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(string(data))
}

// Parse decodes TOML text, applies env overrides and defaults, then validates.
func Parse(data string) (*Config, error) {
	var cfg Config
	md, err := toml.Decode(data, &cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("unknown config keys: %v", undecoded)
	}
	cfg.exchangeOrder = exchangeOrder(md)

	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// exchangeOrder 交易所在文件中出现的顺序
func exchangeOrder(md toml.MetaData) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, k := range md.Keys() {
		if len(k) < 2 || k[0] != "exchanges" {
			continue
		}
		name := strings.ToLower(k[1])
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func applyEnv(cfg *Config) {
	if v := os.Getenv(EnvPostgresDSN); v != "" {
		cfg.Storage.Postgres.DSN = v
	}
	if v := os.Getenv(EnvRedisPassword); v != "" {
		cfg.Storage.Redis.Password = v
	}
	// FUNDARB_<EXCHANGE>_API_KEY / FUNDARB_<EXCHANGE>_API_SECRET
	for name, ex := range cfg.Exchanges {
		prefix := "FUNDARB_" + strings.ToUpper(name)
		if v := os.Getenv(prefix + "_API_KEY"); v != "" {
			ex.APIKey = v
		}
		if v := os.Getenv(prefix + "_API_SECRET"); v != "" {
			ex.APISecret = v
		}
		cfg.Exchanges[name] = ex
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Interval <= 0 {
		cfg.App.Interval = 5 * time.Minute
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.TopN <= 0 {
		cfg.App.TopN = 10
	}
	if cfg.Arbitrage.RateFreshness <= 0 {
		cfg.Arbitrage.RateFreshness = 24 * time.Hour
	}
	if cfg.Arbitrage.OpportunityWindow <= 0 {
		cfg.Arbitrage.OpportunityWindow = time.Hour
	}
	if cfg.Arbitrage.Retention <= 0 {
		cfg.Arbitrage.Retention = 6 * time.Hour
	}
	if cfg.Arbitrage.SettlementsPerDay <= 0 {
		cfg.Arbitrage.SettlementsPerDay = 3
	}
	if cfg.Trading.DuplicateWindow == 0 {
		cfg.Trading.DuplicateWindow = 5 * time.Second
	}

	normalized := make(map[string]ExchangeConfig, len(cfg.Exchanges))
	for name, ex := range cfg.Exchanges {
		name = strings.ToLower(strings.TrimSpace(name))
		if ex.RestURL == "" {
			ex.RestURL = DefaultRestURLs[name]
		}
		ex.RestURL = strings.TrimRight(ex.RestURL, "/")
		if ex.RequestsPerSecond <= 0 {
			ex.RequestsPerSecond = 5
		}
		if ex.Timeout <= 0 {
			ex.Timeout = 10 * time.Second
		}
		normalized[name] = ex
	}
	cfg.Exchanges = normalized

	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	cfg.Storage.Driver = strings.ToLower(cfg.Storage.Driver)
	if cfg.Storage.SQLite.Path == "" {
		cfg.Storage.SQLite.Path = "fundarb.db"
	}
	if cfg.Storage.Postgres.MaxConns <= 0 {
		cfg.Storage.Postgres.MaxConns = 10
	}

	r := &cfg.Storage.Redis
	if r.Addr == "" {
		r.Addr = "127.0.0.1:6379"
	}
	if r.Prefix == "" {
		r.Prefix = "fundarb"
	}
	if r.TTL <= 0 {
		r.TTL = 24 * time.Hour
	}
	if r.OpportunityStream == "" {
		r.OpportunityStream = r.Prefix + ":opportunities:stream"
	}
	if r.OpportunityChannel == "" {
		r.OpportunityChannel = r.Prefix + ":opportunities"
	}

	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
}

func validate(cfg *Config) error {
	cfg.Symbols.List = normalizeSymbols(cfg.Symbols.List)

	for _, name := range cfg.exchangeOrder {
		ex := cfg.Exchanges[name]
		if !ex.Enabled {
			continue
		}
		if ex.RestURL == "" {
			return fmt.Errorf("exchanges.%s.rest_url empty but enabled", name)
		}
		if ex.SymbolFormat != "" && !strings.Contains(ex.SymbolFormat, "{base}") {
			return fmt.Errorf("exchanges.%s.symbol_format must contain {base}", name)
		}
	}

	switch cfg.Storage.Driver {
	case "sqlite":
	case "postgres":
		if strings.TrimSpace(cfg.Storage.Postgres.DSN) == "" {
			return fmt.Errorf("storage.postgres.dsn empty (set it or %s)", EnvPostgresDSN)
		}
	default:
		return fmt.Errorf("storage.driver %q not supported", cfg.Storage.Driver)
	}

	if cfg.Trading.MaxStrategiesPerSymbol < 0 {
		return errors.New("trading.max_strategies_per_symbol must not be negative")
	}
	if cfg.Arbitrage.OpportunityWindow > cfg.Arbitrage.RateFreshness {
		return errors.New("arbitrage.opportunity_window must not exceed rate_freshness")
	}
	return nil
}

// GetEnabledExchanges 已启用的交易所，保持配置文件顺序
func (c *Config) GetEnabledExchanges() []string {
	var out []string
	for _, name := range c.exchangeOrder {
		if c.Exchanges[name].Enabled {
			out = append(out, name)
		}
	}
	return out
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
