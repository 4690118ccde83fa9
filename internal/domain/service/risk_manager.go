package service

import (
	"github.com/shopspring/decimal"

	"fundarb/internal/domain/model"
)

// RiskLimits 开仓前的仓位限制，只检查仓位大小与同一资产的策略数
// 零值表示不限制
type RiskLimits struct {
	MaxPositionSize     decimal.Decimal // 单腿最大数量（合约张数/币数）
	MaxStrategiesPerSym int             // 同一资产最多同时存在的策略数
}

// NewRiskLimits 解析配置中的上限，maxSize 为空表示不限制
func NewRiskLimits(maxSize string, maxPerSymbol int) (RiskLimits, error) {
	limits := RiskLimits{MaxStrategiesPerSym: maxPerSymbol}
	if maxSize == "" {
		return limits, nil
	}
	d, err := decimal.NewFromString(maxSize)
	if err != nil {
		return RiskLimits{}, model.NewValidationError("max_position_size", "%q is not a number", maxSize)
	}
	if d.IsNegative() {
		return RiskLimits{}, model.NewValidationError("max_position_size", "must not be negative, got %s", d.String())
	}
	limits.MaxPositionSize = d
	return limits, nil
}

// CheckOpen 检查是否允许再开一个策略
// open 为该资产当前已登记的策略数
func (l RiskLimits) CheckOpen(symbol string, size decimal.Decimal, open int) error {
	if l.MaxPositionSize.IsPositive() && size.GreaterThan(l.MaxPositionSize) {
		return model.NewValidationError("size", "%s exceeds max position size %s", size.String(), l.MaxPositionSize.String())
	}
	if l.MaxStrategiesPerSym > 0 && open >= l.MaxStrategiesPerSym {
		return model.NewValidationError("symbol", "%s already has %d strategies (max %d)", NormalizeSymbol(symbol), open, l.MaxStrategiesPerSym)
	}
	return nil
}
