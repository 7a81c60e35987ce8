package main

import (
	"context"
	"fmt"
	"os"

	"market-analytics/internal/feed/binance"
	"market-analytics/internal/feed/static"
	"market-analytics/internal/interfaces"
	"market-analytics/internal/logger"
	"market-analytics/internal/service"
	"market-analytics/internal/service/serviceobs"
	"market-analytics/internal/signallog"
	"market-analytics/internal/store"
	"market-analytics/internal/trace"
	"market-analytics/internal/types"

	"github.com/joho/godotenv"
)

// initializeSystem initializes env, logger, and tracer
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context) (*store.Config, error) {
	cfg, err := store.LoadConfig("config.yaml")
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err)
		return nil, err
	}
	return cfg, nil
}

// compressOldLogs compresses old signal log files if retention is configured
func compressOldLogs(ctx context.Context) {
	if v := os.Getenv("SIGNAL_LOG_RETENTION_DAYS"); v != "" {
		var n int
		fmt.Sscanf(v, "%d", &n)
		if err := signallog.CompressOlder(n); err != nil {
			logger.Warn(ctx, "Failed to compress old logs", "error", err)
		}
	}
}

// initializeFeed constructs the market-data feed selected by the config
func initializeFeed(ctx context.Context, cfg *store.Config) interfaces.Feed {
	if cfg.Feed.Source == "BINANCE" {
		logger.Info(ctx, "Using LIVE Binance market data")
		return binance.New(binance.Params{
			WSURL:     cfg.Feed.WSURL,
			RESTURL:   cfg.Feed.RESTURL,
			Markets:   cfg.Markets,
			Timeframe: types.Timeframe(cfg.Timeframe),
			BookDepth: cfg.Buffers.Depth,
		})
	}

	logger.Warn(ctx, "Using STATIC replay market data")
	return static.New(cfg.Markets, types.Timeframe(cfg.Timeframe))
}

// initializeServices builds one observable MarketService per configured market
func initializeServices(cfg *store.Config, f interfaces.Feed) map[string]interfaces.MarketAnalytics {
	services := make(map[string]interfaces.MarketAnalytics, len(cfg.Markets))
	for _, market := range cfg.Markets {
		svc := service.New(service.Params{Market: market, Feed: f, Cfg: cfg})
		services[market] = serviceobs.Wrap(svc)
	}
	return services
}
