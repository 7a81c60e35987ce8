package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"market-analytics/internal/interfaces"
	"market-analytics/internal/logger"
	"market-analytics/internal/signallog"
	"market-analytics/internal/trace"
	"market-analytics/internal/types"
)

func must(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

func main() {
	must(initializeSystem())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	defer trace.Shutdown(context.Background())

	cfg, err := loadConfig(ctx)
	must(err)

	compressOldLogs(ctx)

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	f := initializeFeed(ctx, cfg)
	must(f.Start(ctx))

	services := initializeServices(cfg, f)
	for _, svc := range services {
		must(svc.Start(ctx))
		attachSignalLog(svc)
	}

	window, err := types.ParseWindow(cfg.Analytics.FlowWindow)
	if err != nil {
		window = types.Window5m
	}

	tick := time.NewTicker(time.Duration(cfg.PollSeconds) * time.Second)
	defer tick.Stop()

	logger.Info(ctx, "Analytics engine started",
		"markets", cfg.Markets,
		"feed", cfg.Feed.Source,
		"poll_seconds", cfg.PollSeconds,
	)

	for {
		select {
		case <-tick.C:
			for _, market := range cfg.Markets {
				printSnapshot(ctx, services[market], window)
			}
		case <-sigc:
			logger.Info(ctx, "Shutting down...")
			for _, svc := range services {
				svc.Close()
			}
			f.Stop(ctx)
			return
		case <-ctx.Done():
			return
		}
	}
}

// snapshot is the per-market JSON line printed on each poll tick.
type snapshot struct {
	Market        string                   `json:"market"`
	Depth         *types.DepthView         `json:"depth,omitempty"`
	OrderFlow     *types.OrderFlowView     `json:"order_flow,omitempty"`
	VolumeProfile *types.VolumeProfileView `json:"volume_profile,omitempty"`
	Indicators    *types.IndicatorSet      `json:"indicators,omitempty"`
}

func printSnapshot(ctx context.Context, svc interfaces.MarketAnalytics, window types.Window) {
	snap := snapshot{
		Market:        svc.Market(),
		Depth:         svc.Depth(),
		OrderFlow:     svc.OrderFlow(window),
		VolumeProfile: svc.VolumeProfile(),
		Indicators:    svc.Indicators(),
	}
	b, err := json.Marshal(snap)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to marshal snapshot", err, "market", svc.Market())
		return
	}
	fmt.Println(string(b))
}

// attachSignalLog appends every emitted derived view to the daily signal log.
func attachSignalLog(svc interfaces.MarketAnalytics) {
	market := svc.Market()
	svc.OnDepth(func(v *types.DepthView) {
		_ = signallog.Append(signallog.Entry{
			Time:   time.Now().UTC().Format(time.RFC3339),
			Market: market,
			Kind:   "DEPTH",
			Fields: map[string]any{
				"spread":         v.Spread,
				"spread_percent": v.SpreadPercent,
				"bid_levels":     len(v.Bids),
				"ask_levels":     len(v.Asks),
			},
			Skipped: v.Skipped,
		})
	})
	svc.OnOrderFlow(func(v *types.OrderFlowView) {
		_ = signallog.Append(signallog.Entry{
			Time:   time.Now().UTC().Format(time.RFC3339),
			Market: market,
			Kind:   "ORDER_FLOW",
			Fields: map[string]any{
				"window":       string(v.Window),
				"net_flow":     v.NetFlow,
				"flow_ratio":   v.FlowRatio,
				"total_trades": v.TotalTrades,
			},
			Skipped: v.Skipped,
		})
	})
	svc.OnVolumeProfile(func(v *types.VolumeProfileView) {
		_ = signallog.Append(signallog.Entry{
			Time:   time.Now().UTC().Format(time.RFC3339),
			Market: market,
			Kind:   "VOLUME_PROFILE",
			Fields: map[string]any{
				"poc":             v.POC.PriceCenter,
				"value_area_low":  v.ValueAreaLow,
				"value_area_high": v.ValueAreaHigh,
				"total_volume":    v.TotalVolume,
			},
			Skipped: v.Skipped,
		})
	})
}
