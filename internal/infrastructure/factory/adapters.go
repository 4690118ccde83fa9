package factory

// 各交易所包在 init() 中向 registry 注册采集与下单工厂
import (
	_ "fundarb/internal/infrastructure/exchange/binance"
	_ "fundarb/internal/infrastructure/exchange/bybit"
	_ "fundarb/internal/infrastructure/exchange/hyperliquid"
	_ "fundarb/internal/infrastructure/exchange/paradex"
)
