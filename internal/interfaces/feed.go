package interfaces

import (
	"context"

	"market-analytics/internal/types"
)

// Handlers invoked synchronously on the feed's dispatch goroutine.
type (
	CandleHandler func(market string, candle types.Candle)
	TradeHandler  func(market string, trade types.Trade)
	BookHandler   func(market string, book types.OrderBook)
)

// Feed is the external market-data collaborator. Pull calls surface
// transport errors; push subscriptions deliver best-effort and return a
// disposer that removes the subscription.
type Feed interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context)

	GetCandles(ctx context.Context, market string, tf types.Timeframe, limit int) ([]types.Candle, error)
	GetRecentTrades(ctx context.Context, market string, limit int) ([]types.Trade, error)
	GetOrderBook(ctx context.Context, market string, depth int) (types.OrderBook, error)

	SubscribeCandles(market string, tf types.Timeframe, h CandleHandler) func()
	SubscribeTrades(market string, h TradeHandler) func()
	SubscribeOrderBook(market string, h BookHandler) func()
}
