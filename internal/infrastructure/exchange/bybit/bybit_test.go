package bybit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"fundarb/internal/application/port"
	"fundarb/internal/domain/model"
	"fundarb/internal/infrastructure/exchange"
)

func TestFetchLatestRates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v5/market/tickers" || r.URL.Query().Get("category") != "linear" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"category":"linear","list":[
			{"symbol":"BTCUSDT","markPrice":"65000","indexPrice":"64999","fundingRate":"0.0001","nextFundingTime":"1700006400000"},
			{"symbol":"BTC-26DEC25","markPrice":"66000","fundingRate":""}
		]},"time":1700000000000}`))
	}))
	defer srv.Close()

	rates, err := NewFundingClient(exchange.Options{RestURL: srv.URL}).FetchLatestRates(context.Background())
	if err != nil {
		t.Fatalf("FetchLatestRates failed: %v", err)
	}
	if len(rates) != 1 {
		t.Fatalf("expected 1 rate, got %d", len(rates))
	}
	r := rates[0]
	if r.Symbol != "BTCUSDT" || r.Rate != 0.0001 || r.Timestamp != 1700000000000 || r.Extra.NextFundingTime != 1700006400000 {
		t.Errorf("unexpected rate %+v", r)
	}
}

func TestFetchLatestRatesRetCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":10006,"retMsg":"Too many visits!"}`))
	}))
	defer srv.Close()

	if _, err := NewFundingClient(exchange.Options{RestURL: srv.URL}).FetchLatestRates(context.Background()); err == nil {
		t.Fatal("expected error for non-zero retCode")
	}
}

func TestFetchMetadataPaginates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("cursor") == "" {
			_, _ = w.Write([]byte(`{"retCode":0,"result":{"list":[{"symbol":"BTCUSDT","fundingInterval":480}],"nextPageCursor":"p2"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"retCode":0,"result":{"list":[{"symbol":"XUSDT","fundingInterval":240}],"nextPageCursor":""}}`))
	}))
	defer srv.Close()

	meta, err := NewFundingClient(exchange.Options{RestURL: srv.URL}).FetchMetadata(context.Background())
	if err != nil {
		t.Fatalf("FetchMetadata failed: %v", err)
	}
	if len(meta) != 2 || meta[0].FundingIntervalHours != 8 || meta[1].FundingIntervalHours != 4 {
		t.Errorf("unexpected metadata %+v", meta)
	}
}

func TestSubmitOrderReduceOnly(t *testing.T) {
	payloads := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-BAPI-API-KEY") != "key" || r.Header.Get("X-BAPI-SIGN") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var p map[string]any
		_ = json.Unmarshal(body, &p)
		payloads <- p
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"orderId":"abc-1"}}`))
	}))
	defer srv.Close()

	c, err := NewPerpetualClient(exchange.Options{RestURL: srv.URL}, exchange.Credentials{APIKey: "key", APISecret: "secret"})
	if err != nil {
		t.Fatal(err)
	}
	res, err := c.SubmitOrder(context.Background(), port.OrderRequest{
		Symbol:     "ETHUSDT",
		Side:       model.SideBuy,
		Size:       decimal.RequireFromString("1.5"),
		ReduceOnly: true,
	})
	if err != nil {
		t.Fatalf("SubmitOrder failed: %v", err)
	}
	if res.OrderID != "abc-1" {
		t.Errorf("unexpected order id %s", res.OrderID)
	}
	got := <-payloads
	if got["side"] != "Buy" || got["orderType"] != "Market" || got["qty"] != "1.5" || got["reduceOnly"] != true {
		t.Errorf("unexpected payload %v", got)
	}
}

func TestGetPosition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "BTCUSDT" {
			_, _ = w.Write([]byte(`{"retCode":0,"result":{"list":[{"symbol":"BTCUSDT","side":"Sell","size":"0.5"}]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"retCode":0,"result":{"list":[{"symbol":"ETHUSDT","side":"","size":"0"}]}}`))
	}))
	defer srv.Close()

	c, err := NewPerpetualClient(exchange.Options{RestURL: srv.URL}, exchange.Credentials{APIKey: "k", APISecret: "s"})
	if err != nil {
		t.Fatal(err)
	}
	pos, err := c.GetPosition(context.Background(), "BTCUSDT")
	if err != nil || pos == nil || pos.Side != model.SideSell || !pos.Size.Equal(decimal.RequireFromString("0.5")) {
		t.Fatalf("unexpected position %+v %v", pos, err)
	}
	pos, err = c.GetPosition(context.Background(), "ETHUSDT")
	if err != nil || pos != nil {
		t.Errorf("expected flat, got %+v %v", pos, err)
	}
}
