package model

// RateExtra 可选的附加字段（各交易所不一定都提供）
type RateExtra struct {
	MarkPrice            float64 `json:"mark_price,omitempty"`
	IndexPrice           float64 `json:"index_price,omitempty"`
	Premium              float64 `json:"premium,omitempty"`
	FundingIntervalHours float64 `json:"funding_interval_hours,omitempty"` // 结算周期（小时）
	NextFundingTime      int64   `json:"next_funding_time,omitempty"`      // unix ms
}

// RateObservation 单条资金费率观测，只追加不修改
// (Exchange, AssetID, Timestamp) 为自然去重键
type RateObservation struct {
	ID        int64     `json:"id"`
	AssetID   int64     `json:"asset_id"`
	Symbol    string    `json:"symbol"`
	Exchange  string    `json:"exchange"`
	Rate      float64   `json:"rate"` // 有符号小数，0.0001 = 0.01%
	Timestamp int64     `json:"ts_ms"`
	Extra     RateExtra `json:"extra"`
}
