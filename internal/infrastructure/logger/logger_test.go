package logger

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestSetupLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	Setup("debug")
	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Errorf("expected debug, got %s", zerolog.GlobalLevel())
	}

	Setup("nonsense")
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("expected info fallback, got %s", zerolog.GlobalLevel())
	}

	Setup("")
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Errorf("expected info for empty level, got %s", zerolog.GlobalLevel())
	}
}
