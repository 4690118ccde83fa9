package hyperliquid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fundarb/internal/infrastructure/exchange"
)

func TestFetchLatestRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req infoRequest
		if r.Method != http.MethodPost || r.URL.Path != "/info" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Type != "metaAndAssetCtxs" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`[
			{"universe":[{"name":"BTC","szDecimals":5},{"name":"OLD","szDecimals":0,"isDelisted":true},{"name":"ETH","szDecimals":4}]},
			[
				{"funding":"0.0000125","markPx":"65000.0","oraclePx":"64990.0","premium":"0.0001"},
				{"funding":"0.0","markPx":"1.0","oraclePx":"1.0","premium":"0.0"},
				{"funding":"-0.00002","markPx":"3500.1","oraclePx":"3500.0","premium":"-0.0002"}
			]
		]`))
	}))
	defer srv.Close()

	c := NewFundingClient(exchange.Options{RestURL: srv.URL})
	c.now = func() time.Time { return time.UnixMilli(1700000000000) }

	rates, err := c.FetchLatestRates(context.Background())
	if err != nil {
		t.Fatalf("FetchLatestRates failed: %v", err)
	}
	if len(rates) != 2 {
		t.Fatalf("expected 2 rates (delisted skipped), got %d", len(rates))
	}
	if rates[0].Symbol != "BTC" || rates[0].Rate != 0.0000125 || rates[0].Timestamp != 1700000000000 {
		t.Errorf("unexpected btc %+v", rates[0])
	}
	if rates[0].Extra.FundingIntervalHours != 1 || rates[0].Extra.IndexPrice != 64990 {
		t.Errorf("unexpected btc extra %+v", rates[0].Extra)
	}
	if rates[1].Symbol != "ETH" || rates[1].Rate != -0.00002 {
		t.Errorf("unexpected eth %+v", rates[1])
	}
}

func TestFetchLatestRatesMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"universe":[]}]`))
	}))
	defer srv.Close()

	if _, err := NewFundingClient(exchange.Options{RestURL: srv.URL}).FetchLatestRates(context.Background()); err == nil {
		t.Fatal("expected error for single-element response")
	}
}
