// Package feed provides the market-data feed implementations and the
// subscription plumbing they share.
package feed

import (
	"sync"

	"market-analytics/internal/interfaces"
	"market-analytics/internal/types"
)

type candleSub struct {
	market string
	tf     types.Timeframe
	h      interfaces.CandleHandler
}

type tradeSub struct {
	market string
	h      interfaces.TradeHandler
}

type bookSub struct {
	market string
	h      interfaces.BookHandler
}

// Dispatcher is the subscriber registry embedded by feed implementations.
// Subscriptions return a disposer; emitting walks the matching handlers
// synchronously.
type Dispatcher struct {
	mu         sync.RWMutex
	nextID     int
	candleSubs map[int]candleSub
	tradeSubs  map[int]tradeSub
	bookSubs   map[int]bookSub
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{
		candleSubs: make(map[int]candleSub),
		tradeSubs:  make(map[int]tradeSub),
		bookSubs:   make(map[int]bookSub),
	}
}

func (d *Dispatcher) SubscribeCandles(market string, tf types.Timeframe, h interfaces.CandleHandler) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.candleSubs[id] = candleSub{market: market, tf: tf, h: h}
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		delete(d.candleSubs, id)
		d.mu.Unlock()
	}
}

func (d *Dispatcher) SubscribeTrades(market string, h interfaces.TradeHandler) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.tradeSubs[id] = tradeSub{market: market, h: h}
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		delete(d.tradeSubs, id)
		d.mu.Unlock()
	}
}

func (d *Dispatcher) SubscribeOrderBook(market string, h interfaces.BookHandler) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.bookSubs[id] = bookSub{market: market, h: h}
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		delete(d.bookSubs, id)
		d.mu.Unlock()
	}
}

// EmitCandle delivers a candle to subscribers of the market and timeframe.
func (d *Dispatcher) EmitCandle(market string, tf types.Timeframe, c types.Candle) {
	d.mu.RLock()
	handlers := make([]interfaces.CandleHandler, 0, len(d.candleSubs))
	for _, s := range d.candleSubs {
		if s.market == market && s.tf == tf {
			handlers = append(handlers, s.h)
		}
	}
	d.mu.RUnlock()
	for _, h := range handlers {
		h(market, c)
	}
}

// EmitTrade delivers a trade to subscribers of the market.
func (d *Dispatcher) EmitTrade(market string, t types.Trade) {
	d.mu.RLock()
	handlers := make([]interfaces.TradeHandler, 0, len(d.tradeSubs))
	for _, s := range d.tradeSubs {
		if s.market == market {
			handlers = append(handlers, s.h)
		}
	}
	d.mu.RUnlock()
	for _, h := range handlers {
		h(market, t)
	}
}

// EmitOrderBook delivers a book snapshot to subscribers of the market.
func (d *Dispatcher) EmitOrderBook(market string, b types.OrderBook) {
	d.mu.RLock()
	handlers := make([]interfaces.BookHandler, 0, len(d.bookSubs))
	for _, s := range d.bookSubs {
		if s.market == market {
			handlers = append(handlers, s.h)
		}
	}
	d.mu.RUnlock()
	for _, h := range handlers {
		h(market, b)
	}
}
