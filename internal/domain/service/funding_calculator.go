package service

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"

	"fundarb/internal/domain/model"
)

// DefaultSettlementsPerDay 固定的结算频率假设（每 8 小时一次）
// 并非按各交易所真实结算周期计算
const DefaultSettlementsPerDay = 3

const daysPerYear = 365

// FundingCalculator 资金费率差计算器
type FundingCalculator struct {
	settlementsPerDay int64
}

func NewFundingCalculator(settlementsPerDay int) *FundingCalculator {
	if settlementsPerDay <= 0 {
		settlementsPerDay = DefaultSettlementsPerDay
	}
	return &FundingCalculator{settlementsPerDay: int64(settlementsPerDay)}
}

// AnnualizationFactor returns settlements per day * 365 (1095 by default).
func (c *FundingCalculator) AnnualizationFactor() int64 {
	return c.settlementsPerDay * daysPerYear
}

// Calculate 计算一对交易所之间的费率差与年化收益
// diff = rateA - rateB, 使用十进制运算避免浮点误差
func (c *FundingCalculator) Calculate(asset model.Asset, exchangeA string, rateA float64, exchangeB string, rateB float64, createdAt int64) model.ArbitrageOpportunity {
	a := decimal.NewFromFloat(rateA)
	b := decimal.NewFromFloat(rateB)
	diff := a.Sub(b)
	annual := diff.Mul(decimal.NewFromInt(c.AnnualizationFactor()))

	diffF, _ := diff.Float64()
	annualF, _ := annual.Float64()

	opp := model.ArbitrageOpportunity{
		AssetID:          asset.ID,
		Symbol:           asset.Symbol,
		ExchangeA:        exchangeA,
		ExchangeB:        exchangeB,
		RateA:            rateA,
		RateB:            rateB,
		RateDifference:   diffF,
		AnnualizedReturn: annualF,
		CreatedAt:        createdAt,
	}
	opp.Strategy = model.RecommendationText(opp.Direction(), exchangeA, exchangeB)
	opp.Key = OpportunityKey(opp)
	return opp
}

// PairCatalog 所有无序交易所对（不含自身），顺序与输入一致
func PairCatalog(exchanges []string) [][2]string {
	pairs := make([][2]string, 0, len(exchanges)*(len(exchanges)-1)/2)
	for i := 0; i < len(exchanges); i++ {
		for j := i + 1; j < len(exchanges); j++ {
			if exchanges[i] == exchanges[j] {
				continue
			}
			pairs = append(pairs, [2]string{exchanges[i], exchanges[j]})
		}
	}
	return pairs
}

// OpportunityKey is a content address over the fields that define an
// opportunity snapshot.
func OpportunityKey(o model.ArbitrageOpportunity) string {
	d := xxhash.New()
	_, _ = d.WriteString(o.Symbol)
	_, _ = d.WriteString("|" + o.ExchangeA + "|" + o.ExchangeB + "|")
	_, _ = d.WriteString(strconv.FormatFloat(o.RateA, 'g', -1, 64))
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(strconv.FormatFloat(o.RateB, 'g', -1, 64))
	_, _ = d.WriteString("|")
	_, _ = d.WriteString(strconv.FormatInt(o.CreatedAt, 10))
	return strconv.FormatUint(d.Sum64(), 16)
}
