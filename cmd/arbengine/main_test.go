package main

import (
	"log/slog"
	"testing"
	"time"

	"github.com/polyarb/arbengine/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestApplyFlagOverrides_PaperWinsOverLive(t *testing.T) {
	cfg := config.Defaults()
	applyFlagOverrides(&cfg, true, true, 0, 0, 0, 0, 0)
	assert.False(t, cfg.Engine.LiveMode)
}

func TestApplyFlagOverrides_LiveSetsLiveMode(t *testing.T) {
	cfg := config.Defaults()
	applyFlagOverrides(&cfg, true, false, 0, 0, 0, 0, 0)
	assert.True(t, cfg.Engine.LiveMode)
}

func TestApplyFlagOverrides_OnlyNonZeroFlagsOverride(t *testing.T) {
	cfg := config.Defaults()
	originalMaxMarkets := cfg.Engine.MaxMarkets

	applyFlagOverrides(&cfg, false, false, 50, 2*time.Second, 0, 1.5, 10)

	assert.Equal(t, 50.0, cfg.Engine.MaxTradeUSD)
	assert.Equal(t, 2*time.Second, cfg.Engine.ScanIntervalS.Duration)
	assert.Equal(t, originalMaxMarkets, cfg.Engine.MaxMarkets)
	assert.Equal(t, 1.5, cfg.Engine.MinProfitUSD)
	assert.Equal(t, 10, cfg.Engine.FWMaxIters)
}

func TestLogLevel_MapsKnownLevels(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, logLevel("debug"))
	assert.Equal(t, slog.LevelWarn, logLevel("warn"))
	assert.Equal(t, slog.LevelError, logLevel("error"))
	assert.Equal(t, slog.LevelInfo, logLevel("info"))
	assert.Equal(t, slog.LevelInfo, logLevel("unknown"))
}
