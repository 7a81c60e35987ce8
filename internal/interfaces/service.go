package interfaces

import (
	"context"

	"market-analytics/internal/types"
)

// MarketAnalytics is one market's analytics surface: snapshot accessors over
// the current buffers plus derived-view subscriptions. Accessors recompute
// from the buffers on every call and return nil when there is no data yet.
type MarketAnalytics interface {
	Market() string

	Depth() *types.DepthView
	OrderFlow(window types.Window) *types.OrderFlowView
	VolumeProfile() *types.VolumeProfileView
	Indicators() *types.IndicatorSet
	Candles() []types.Candle
	Trades() []types.Trade

	OnDepth(h func(*types.DepthView)) func()
	OnOrderFlow(h func(*types.OrderFlowView)) func()
	OnVolumeProfile(h func(*types.VolumeProfileView)) func()

	Start(ctx context.Context) error
	Close()
}
