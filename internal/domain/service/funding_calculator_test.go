package service

import (
	"testing"

	"fundarb/internal/domain/model"
)

// TestCalculateBTCScenario 测试 A 费率高于 B 的典型情况
func TestCalculateBTCScenario(t *testing.T) {
	calc := NewFundingCalculator(0)
	asset := model.Asset{ID: 1, Symbol: "BTC"}

	opp := calc.Calculate(asset, "ExchangeA", 0.0010, "ExchangeB", 0.0002, 1700000000000)

	if opp.RateDifference != 0.0008 {
		t.Errorf("expected diff 0.0008, got %v", opp.RateDifference)
	}
	if opp.AnnualizedReturn != 0.876 {
		t.Errorf("expected annualized 0.876, got %v", opp.AnnualizedReturn)
	}
	if opp.Strategy != "long ExchangeB, short ExchangeA" {
		t.Errorf("unexpected strategy %q", opp.Strategy)
	}
	long, short, ok := opp.Legs()
	if !ok || long != "ExchangeB" || short != "ExchangeA" {
		t.Errorf("unexpected legs long=%s short=%s ok=%v", long, short, ok)
	}
	if opp.Key == "" {
		t.Error("expected non-empty key")
	}
}

func TestCalculateDirection(t *testing.T) {
	calc := NewFundingCalculator(DefaultSettlementsPerDay)
	asset := model.Asset{ID: 2, Symbol: "ETH"}

	tests := []struct {
		name     string
		rateA    float64
		rateB    float64
		strategy string
		dir      model.Direction
	}{
		{"a higher", 0.0003, -0.0001, "long b, short a", model.DirectionLongBShortA},
		{"b higher", -0.0002, 0.0001, "long a, short b", model.DirectionLongAShortB},
		{"tie", 0.0001, 0.0001, model.NoActionStrategy, model.DirectionNone},
		{"both zero", 0, 0, model.NoActionStrategy, model.DirectionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opp := calc.Calculate(asset, "a", tt.rateA, "b", tt.rateB, 1)
			if opp.Strategy != tt.strategy {
				t.Errorf("strategy = %q, want %q", opp.Strategy, tt.strategy)
			}
			if opp.Direction() != tt.dir {
				t.Errorf("direction = %v, want %v", opp.Direction(), tt.dir)
			}
		})
	}
}

func TestCalculateAnnualizedEqualsDiffTimesFactor(t *testing.T) {
	calc := NewFundingCalculator(0)
	if calc.AnnualizationFactor() != 1095 {
		t.Fatalf("expected factor 1095, got %d", calc.AnnualizationFactor())
	}

	opp := calc.Calculate(model.Asset{ID: 3, Symbol: "SOL"}, "x", -0.0005, "y", 0.00025, 1)
	if opp.RateDifference != -0.00075 {
		t.Errorf("expected diff -0.00075, got %v", opp.RateDifference)
	}
	if opp.AnnualizedReturn != -0.82125 {
		t.Errorf("expected annualized -0.82125, got %v", opp.AnnualizedReturn)
	}
}

func TestPairCatalog(t *testing.T) {
	pairs := PairCatalog([]string{"binance", "bybit", "paradex"})
	want := [][2]string{{"binance", "bybit"}, {"binance", "paradex"}, {"bybit", "paradex"}}
	if len(pairs) != len(want) {
		t.Fatalf("expected %d pairs, got %d", len(want), len(pairs))
	}
	for i := range want {
		if pairs[i] != want[i] {
			t.Errorf("pair %d = %v, want %v", i, pairs[i], want[i])
		}
	}

	if got := PairCatalog([]string{"binance"}); len(got) != 0 {
		t.Errorf("single exchange should give no pairs, got %v", got)
	}
	if got := PairCatalog(nil); len(got) != 0 {
		t.Errorf("no exchanges should give no pairs, got %v", got)
	}
}

func TestOpportunityKeyStable(t *testing.T) {
	calc := NewFundingCalculator(0)
	asset := model.Asset{ID: 1, Symbol: "BTC"}
	a := calc.Calculate(asset, "binance", 0.0001, "bybit", 0.0002, 100)
	b := calc.Calculate(asset, "binance", 0.0001, "bybit", 0.0002, 100)
	c := calc.Calculate(asset, "binance", 0.0001, "bybit", 0.0002, 101)

	if a.Key != b.Key {
		t.Errorf("same inputs should give same key: %s vs %s", a.Key, b.Key)
	}
	if a.Key == c.Key {
		t.Error("different creation time should give different key")
	}
}
