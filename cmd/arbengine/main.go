// Command arbengine is the entry point for the binary-market arbitrage
// engine. It loads configuration, applies CLI overrides, validates the
// result, wires the orchestrator, and runs until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/polyarb/arbengine/internal/app"
	"github.com/polyarb/arbengine/internal/config"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	live := flag.Bool("live", false, "trade with real funds (overrides config)")
	paper := flag.Bool("paper", false, "force paper trading, ignoring --live and config (overrides config)")
	maxTrade := flag.Float64("max-trade", 0, "override max_trade_usd (0 = use config)")
	scanInterval := flag.Duration("scan-interval", 0, "override scan_interval_s (0 = use config)")
	maxMarkets := flag.Int("limit", 0, "override max_markets (0 = use config)")
	minProfit := flag.Float64("min-profit", 0, "override min_profit_usd (0 = use config)")
	fwIters := flag.Int("fw-iters", 0, "override fw_max_iters (0 = use config)")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("path", *configPath), slog.String("error", err.Error()))
		os.Exit(1)
	}

	applyFlagOverrides(cfg, *live, *paper, *maxTrade, *scanInterval, *maxMarkets, *minProfit, *fwIters)

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("arbengine starting",
		slog.Bool("live_mode", cfg.Engine.LiveMode),
		slog.String("config", *configPath),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		if err == context.Canceled {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error", slog.String("error", err.Error()))
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			os.Exit(1)
		}
	}

	logger.Info("arbengine stopped")
}

// applyFlagOverrides layers CLI flags on top of the loaded config. Only
// flags explicitly given a non-zero value override their config
// counterpart; --paper always wins over --live since it is the safer
// default.
func applyFlagOverrides(cfg *config.Config, live, paper bool, maxTrade float64, scanInterval time.Duration, maxMarkets int, minProfit float64, fwIters int) {
	if paper {
		cfg.Engine.LiveMode = false
	} else if live {
		cfg.Engine.LiveMode = true
	}
	if maxTrade > 0 {
		cfg.Engine.MaxTradeUSD = maxTrade
	}
	if scanInterval > 0 {
		cfg.Engine.ScanIntervalS.Duration = scanInterval
	}
	if maxMarkets > 0 {
		cfg.Engine.MaxMarkets = maxMarkets
	}
	if minProfit > 0 {
		cfg.Engine.MinProfitUSD = minProfit
	}
	if fwIters > 0 {
		cfg.Engine.FWMaxIters = fwIters
	}
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
