package port

import (
	"context"

	"fundarb/internal/domain/model"
)

// RawRate 适配器返回的单条费率，Symbol 为交易所原生代码
type RawRate struct {
	Symbol    string
	Rate      float64
	Timestamp int64 // unix ms
	Extra     model.RateExtra
}

// InstrumentMeta 合约元数据
type InstrumentMeta struct {
	Symbol               string
	FundingIntervalHours float64
}

type IngestionAdapter interface {
	Name() string
	FetchLatestRates(ctx context.Context) ([]RawRate, error)
}

// MetadataProvider is implemented by adapters that expose per-instrument metadata.
type MetadataProvider interface {
	FetchMetadata(ctx context.Context) ([]InstrumentMeta, error)
}
