package factory

// Exchange name constants
const (
	ExchangeBinance     = "binance"
	ExchangeBybit       = "bybit"
	ExchangeHyperliquid = "hyperliquid"
	ExchangeParadex     = "paradex"
)
