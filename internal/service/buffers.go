package service

import (
	"sync"

	"market-analytics/internal/types"
)

// candleBuffer keeps the most recent candles for one market, oldest first.
// An incoming candle with the same open time as the newest one replaces it
// in place, so the forming candle is updated rather than appended.
type candleBuffer struct {
	mu      sync.RWMutex
	cap     int
	candles []types.Candle
}

func newCandleBuffer(capacity int) *candleBuffer {
	return &candleBuffer{cap: capacity, candles: make([]types.Candle, 0, capacity)}
}

func (b *candleBuffer) Put(c types.Candle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n := len(b.candles); n > 0 && b.candles[n-1].Ts == c.Ts {
		b.candles[n-1] = c
		return
	}
	b.candles = append(b.candles, c)
	if len(b.candles) > b.cap {
		b.candles = b.candles[len(b.candles)-b.cap:]
	}
}

// Seed replaces the buffer contents with a pulled history snapshot.
func (b *candleBuffer) Seed(candles []types.Candle) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(candles) > b.cap {
		candles = candles[len(candles)-b.cap:]
	}
	b.candles = append(b.candles[:0], candles...)
}

func (b *candleBuffer) Snapshot() []types.Candle {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.candles) == 0 {
		return nil
	}
	out := make([]types.Candle, len(b.candles))
	copy(out, b.candles)
	return out
}

func (b *candleBuffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.candles)
}

// tradeBuffer keeps the most recent trades, newest first.
type tradeBuffer struct {
	mu     sync.RWMutex
	cap    int
	trades []types.Trade
}

func newTradeBuffer(capacity int) *tradeBuffer {
	return &tradeBuffer{cap: capacity, trades: make([]types.Trade, 0, capacity)}
}

func (b *tradeBuffer) Put(t types.Trade) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trades = append([]types.Trade{t}, b.trades...)
	if len(b.trades) > b.cap {
		b.trades = b.trades[:b.cap]
	}
}

// Seed replaces the buffer contents, newest first.
func (b *tradeBuffer) Seed(trades []types.Trade) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(trades) > b.cap {
		trades = trades[:b.cap]
	}
	b.trades = append(b.trades[:0], trades...)
}

func (b *tradeBuffer) Snapshot() []types.Trade {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.trades) == 0 {
		return nil
	}
	out := make([]types.Trade, len(b.trades))
	copy(out, b.trades)
	return out
}

// bookHolder keeps the latest order book snapshot.
type bookHolder struct {
	mu   sync.RWMutex
	book *types.OrderBook
}

func (h *bookHolder) Put(b types.OrderBook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.book = &b
}

func (h *bookHolder) Snapshot() *types.OrderBook {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.book == nil {
		return nil
	}
	b := *h.book
	return &b
}
