package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestBuildQueryURL(t *testing.T) {
	got, err := BuildQueryURL("https://api.example.com/", "/v1/x", "a=1")
	if err != nil || got != "https://api.example.com/v1/x?a=1" {
		t.Errorf("got %s %v", got, err)
	}
	got, err = BuildQueryURL("https://api.example.com/base", "/v1/x", "")
	if err != nil || got != "https://api.example.com/base/v1/x" {
		t.Errorf("got %s %v", got, err)
	}
	if _, err := BuildQueryURL(" ", "/x", ""); err == nil {
		t.Error("expected error for empty base")
	}
}

func TestParseFloat(t *testing.T) {
	if v, err := ParseFloat(" 0.0001 "); err != nil || v != 0.0001 {
		t.Errorf("got %v %v", v, err)
	}
	if v, err := ParseFloat(""); err != nil || v != 0 {
		t.Errorf("empty: got %v %v", v, err)
	}
	if _, err := ParseFloat("x"); err == nil {
		t.Error("expected error")
	}
}

func TestRESTClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	c := NewRESTClient("slow", "", Options{RestURL: srv.URL, Timeout: 50 * time.Millisecond})
	var out map[string]any
	if err := c.GetJSON(context.Background(), "/", url.Values{}, &out); err == nil {
		t.Fatal("expected timeout error")
	}
}

func TestRESTClientDefaultURL(t *testing.T) {
	c := NewRESTClient("x", "https://default.example", Options{})
	if c.BaseURL() != "https://default.example" {
		t.Errorf("unexpected base %s", c.BaseURL())
	}
}

func TestRESTClientRateLimitHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewRESTClient("x", "", Options{RestURL: srv.URL, RequestsPerSecond: 0.5})
	var out map[string]any
	if err := c.GetJSON(context.Background(), "/", url.Values{}, &out); err != nil {
		t.Fatalf("first request: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := c.GetJSON(ctx, "/", url.Values{}, &out); err == nil {
		t.Fatal("expected limiter wait to fail on short deadline")
	}
}
