// Package serviceobs wraps a MarketAnalytics implementation with tracing
// and structured logging for the computed views.
package serviceobs

import (
	"context"

	"market-analytics/internal/interfaces"
	"market-analytics/internal/logger"
	"market-analytics/internal/trace"
	"market-analytics/internal/types"
)

type observableService struct {
	svc interfaces.MarketAnalytics
	ctx context.Context
}

var _ interfaces.MarketAnalytics = (*observableService)(nil)

func Wrap(svc interfaces.MarketAnalytics) interfaces.MarketAnalytics {
	return &observableService{
		svc: svc,
		ctx: context.Background(),
	}
}

func (os *observableService) Market() string { return os.svc.Market() }

func (os *observableService) Start(ctx context.Context) error {
	op := logger.StartOperation(ctx, "service.Start", "market", os.svc.Market())

	err := os.svc.Start(op.GetContext())
	if err != nil {
		op.EndWithError(err)
		return err
	}
	os.ctx = context.WithoutCancel(op.GetContext())
	op.End()
	return nil
}

func (os *observableService) Close() {
	os.svc.Close()
	// Attribute the record to whoever tore the service down, not the wrapper.
	logger.InfoSkip(os.ctx, 1, "Market service closed", "market", os.svc.Market())
}

func (os *observableService) Depth() *types.DepthView {
	ctx, span := trace.StartSpan(os.ctx, "service.Depth")
	defer span.End()

	view := os.svc.Depth()
	if view == nil {
		return nil
	}
	if view.Skipped > 0 {
		logger.SkippedRecords(ctx, os.svc.Market(), "depth", view.Skipped)
	}
	logger.Signal(ctx, os.svc.Market(), "depth",
		"bid_levels", len(view.Bids),
		"ask_levels", len(view.Asks),
		"spread", view.Spread,
	)
	return view
}

func (os *observableService) OrderFlow(window types.Window) *types.OrderFlowView {
	ctx, span := trace.StartSpan(os.ctx, "service.OrderFlow")
	defer span.End()

	view := os.svc.OrderFlow(window)
	if view == nil {
		return nil
	}
	if view.Skipped > 0 {
		logger.SkippedRecords(ctx, os.svc.Market(), "order_flow", view.Skipped)
	}
	logger.Signal(ctx, os.svc.Market(), "order_flow",
		"window", string(window),
		"net_flow", view.NetFlow,
		"flow_ratio", view.FlowRatio,
		"total_trades", view.TotalTrades,
	)
	return view
}

func (os *observableService) VolumeProfile() *types.VolumeProfileView {
	ctx, span := trace.StartSpan(os.ctx, "service.VolumeProfile")
	defer span.End()

	view := os.svc.VolumeProfile()
	if view == nil {
		return nil
	}
	if view.Skipped > 0 {
		logger.SkippedRecords(ctx, os.svc.Market(), "volume_profile", view.Skipped)
	}
	logger.Signal(ctx, os.svc.Market(), "volume_profile",
		"buckets", len(view.Buckets),
		"poc", view.POC.PriceCenter,
		"value_area_low", view.ValueAreaLow,
		"value_area_high", view.ValueAreaHigh,
	)
	return view
}

func (os *observableService) Indicators() *types.IndicatorSet {
	ctx, span := trace.StartSpan(os.ctx, "service.Indicators")
	defer span.End()

	set := os.svc.Indicators()
	if set == nil {
		return nil
	}
	logger.Debug(ctx, "Indicators computed",
		"market", os.svc.Market(),
		"rsi", set.RSI,
		"vwap", set.VWAP,
	)
	return set
}

func (os *observableService) Candles() []types.Candle { return os.svc.Candles() }
func (os *observableService) Trades() []types.Trade   { return os.svc.Trades() }

func (os *observableService) OnDepth(h func(*types.DepthView)) func() {
	return os.svc.OnDepth(h)
}

func (os *observableService) OnOrderFlow(h func(*types.OrderFlowView)) func() {
	return os.svc.OnOrderFlow(h)
}

func (os *observableService) OnVolumeProfile(h func(*types.VolumeProfileView)) func() {
	return os.svc.OnVolumeProfile(h)
}
