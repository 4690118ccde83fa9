package svc

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"fundarb/internal/infrastructure/config"
)

func parse(t *testing.T, data string) *config.Config {
	t.Helper()
	cfg, err := config.Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return cfg
}

func TestNewWiresSQLite(t *testing.T) {
	db := filepath.Join(t.TempDir(), "fundarb.db")
	cfg := parse(t, `
[exchanges.paradex]
enabled = true
[exchanges.binance]
enabled = true
[storage.sqlite]
path = "`+db+`"
[trading]
paper = true
`)

	sc, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer sc.Close()

	if got := sc.Ingestion.Exchanges(); len(got) != 2 || got[0] != "paradex" || got[1] != "binance" {
		t.Errorf("unexpected exchanges %v", got)
	}
	if len(sc.Venues()) != 2 {
		t.Errorf("expected 2 paper venues, got %d", len(sc.Venues()))
	}
	deps := sc.BuildMonitorServiceDeps()
	if deps.Ingestion == nil || deps.Discovery == nil || deps.Sink == nil {
		t.Errorf("incomplete monitor deps %+v", deps)
	}

	id, err := sc.Resolver.Resolve(context.Background(), "btc")
	if err != nil || id <= 0 {
		t.Errorf("resolve through wired store: %d %v", id, err)
	}
}

func TestNewNoFeeds(t *testing.T) {
	db := filepath.Join(t.TempDir(), "fundarb.db")
	cfg := parse(t, "[storage.sqlite]\npath = \""+db+"\"\n")

	if _, err := New(context.Background(), cfg); !errors.Is(err, ErrNoFeedsEnabled) {
		t.Fatalf("expected ErrNoFeedsEnabled, got %v", err)
	}
}

func TestNewWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	db := filepath.Join(t.TempDir(), "fundarb.db")
	cfg := parse(t, `
[exchanges.hyperliquid]
enabled = true
[storage.sqlite]
path = "`+db+`"
[storage.redis]
enabled = true
addr = "`+mr.Addr()+`"
`)

	sc, err := New(context.Background(), cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer sc.Close()

	if sc.publisher.Len() != 1 {
		t.Errorf("expected redis publisher, got %d", sc.publisher.Len())
	}
}

func TestNewRedisUnreachable(t *testing.T) {
	db := filepath.Join(t.TempDir(), "fundarb.db")
	cfg := parse(t, `
[exchanges.hyperliquid]
enabled = true
[storage.sqlite]
path = "`+db+`"
[storage.redis]
enabled = true
addr = "127.0.0.1:1"
`)

	if _, err := New(context.Background(), cfg); !errors.Is(err, ErrStorageInitFailed) {
		t.Fatalf("expected ErrStorageInitFailed, got %v", err)
	}
}
