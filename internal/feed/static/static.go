// Package static implements a deterministic replay feed for development and
// DRY_RUN use: prices follow a fixed waveform, so repeated runs produce the
// same series.
package static

import (
	"context"
	"math"
	"sync"
	"time"

	"market-analytics/internal/feed"
	"market-analytics/internal/interfaces"
	"market-analytics/internal/logger"
	"market-analytics/internal/types"

	"github.com/google/uuid"
)

const (
	tickInterval   = 500 * time.Millisecond
	ticksPerCandle = 10
	historyCap     = 500
	tradeCap       = 200
	bookLevels     = 20
)

type marketState struct {
	step    int
	base    float64
	candles []types.Candle
	trades  []types.Trade // newest first
	current *types.Candle
}

type Feed struct {
	*feed.Dispatcher

	timeframe types.Timeframe
	mu        sync.RWMutex
	markets   map[string]*marketState

	cancel context.CancelFunc
	done   chan struct{}
}

var _ interfaces.Feed = (*Feed)(nil)

func New(markets []string, tf types.Timeframe) *Feed {
	if tf == "" {
		tf = types.Timeframe1m
	}
	f := &Feed{
		Dispatcher: feed.NewDispatcher(),
		timeframe:  tf,
		markets:    make(map[string]*marketState, len(markets)),
	}
	for _, m := range markets {
		f.markets[m] = &marketState{base: basePrice(m)}
	}
	return f
}

// basePrice derives a per-market starting price from the symbol so distinct
// markets get distinct ladders without any randomness.
func basePrice(market string) float64 {
	sum := 0
	for _, r := range market {
		sum += int(r)
	}
	return 1000 + float64(sum%9000)
}

func (f *Feed) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f.cancel = cancel
	f.done = make(chan struct{})
	go f.run(runCtx)
	logger.Info(ctx, "Static feed started", "markets", len(f.markets), "tick", tickInterval)
	return nil
}

func (f *Feed) Stop(ctx context.Context) {
	if f.cancel != nil {
		f.cancel()
		<-f.done
	}
	logger.Info(ctx, "Static feed stopped")
}

func (f *Feed) run(ctx context.Context) {
	defer close(f.done)
	tick := time.NewTicker(tickInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			f.advance()
		}
	}
}

// advance moves every market one step: updates the forming candle, emits a
// trade and a synthetic book.
func (f *Feed) advance() {
	now := time.Now().UnixMilli()

	type emission struct {
		market string
		candle types.Candle
		trade  types.Trade
		book   types.OrderBook
	}
	var emissions []emission

	f.mu.Lock()
	for market, st := range f.markets {
		st.step++
		price := st.price()

		if st.current == nil || st.step%ticksPerCandle == 0 {
			if st.current != nil {
				st.current.Closed = true
				st.candles = append(st.candles, *st.current)
				if len(st.candles) > historyCap {
					st.candles = st.candles[1:]
				}
			}
			st.current = &types.Candle{Ts: now, Open: price, High: price, Low: price, Close: price}
		}
		st.current.High = math.Max(st.current.High, price)
		st.current.Low = math.Min(st.current.Low, price)
		st.current.Close = price

		qty := 0.5 + float64(st.step%7)*0.25
		st.current.Vol += qty

		side := types.SideBuy
		if st.step%3 == 0 {
			side = types.SideSell
		}
		trade := types.Trade{
			ID:    uuid.NewString(),
			Price: price,
			Qty:   qty,
			Side:  side,
			Ts:    now,
		}
		st.trades = append([]types.Trade{trade}, st.trades...)
		if len(st.trades) > tradeCap {
			st.trades = st.trades[:tradeCap]
		}

		emissions = append(emissions, emission{
			market: market,
			candle: *st.current,
			trade:  trade,
			book:   st.book(now),
		})
	}
	f.mu.Unlock()

	for _, e := range emissions {
		f.EmitCandle(e.market, f.timeframe, e.candle)
		f.EmitTrade(e.market, e.trade)
		f.EmitOrderBook(e.market, e.book)
	}
}

// price is a fixed waveform around the base: a slow swing plus a fast
// ripple.
func (st *marketState) price() float64 {
	t := float64(st.step)
	return st.base * (1 + 0.01*math.Sin(t/20) + 0.002*math.Sin(t/3))
}

// book synthesizes a 20-level ladder around the current price with
// deterministic quantities.
func (st *marketState) book(ts int64) types.OrderBook {
	mid := st.price()
	step := mid * 0.0005
	bids := make([]types.RawLevel, 0, bookLevels)
	asks := make([]types.RawLevel, 0, bookLevels)
	for i := 1; i <= bookLevels; i++ {
		qty := 1 + float64((st.step+i)%11)*0.5
		bids = append(bids, types.RawLevel{Price: mid - float64(i)*step, Qty: qty})
		asks = append(asks, types.RawLevel{Price: mid + float64(i)*step, Qty: qty + 0.25})
	}
	return types.OrderBook{Bids: bids, Asks: asks, Ts: ts}
}

func (f *Feed) GetCandles(ctx context.Context, market string, tf types.Timeframe, limit int) ([]types.Candle, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	st, ok := f.markets[market]
	if !ok {
		return nil, nil
	}
	candles := st.candles
	if st.current != nil {
		candles = append(append([]types.Candle{}, candles...), *st.current)
	}
	if limit > 0 && len(candles) > limit {
		candles = candles[len(candles)-limit:]
	}
	out := make([]types.Candle, len(candles))
	copy(out, candles)
	return out, nil
}

func (f *Feed) GetRecentTrades(ctx context.Context, market string, limit int) ([]types.Trade, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	st, ok := f.markets[market]
	if !ok {
		return nil, nil
	}
	trades := st.trades
	if limit > 0 && len(trades) > limit {
		trades = trades[:limit]
	}
	out := make([]types.Trade, len(trades))
	copy(out, trades)
	return out, nil
}

func (f *Feed) GetOrderBook(ctx context.Context, market string, depth int) (types.OrderBook, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	st, ok := f.markets[market]
	if !ok {
		return types.OrderBook{}, nil
	}
	book := st.book(time.Now().UnixMilli())
	if depth > 0 && depth < len(book.Bids) {
		book.Bids = book.Bids[:depth]
		book.Asks = book.Asks[:depth]
	}
	return book, nil
}
