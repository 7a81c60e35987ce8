// Package service ties one market's feed subscriptions to its analytics
// surface. A MarketService owns the candle/trade/book buffers, recomputes
// views synchronously on demand, and notifies view subscribers on fresh data.
package service

import (
	"context"
	"sync"
	"time"

	"market-analytics/internal/analytics"
	"market-analytics/internal/interfaces"
	"market-analytics/internal/logger"
	"market-analytics/internal/store"
	"market-analytics/internal/ta"
	"market-analytics/internal/types"
)

type Params struct {
	Market string
	Feed   interfaces.Feed
	Cfg    *store.Config
}

type MarketService struct {
	market    string
	feed      interfaces.Feed
	cfg       *store.Config
	timeframe types.Timeframe
	window    types.Window

	candles *candleBuffer
	trades  *tradeBuffer
	book    bookHolder

	subMu         sync.RWMutex
	nextSubID     int
	depthSubs     map[int]func(*types.DepthView)
	flowSubs      map[int]func(*types.OrderFlowView)
	profileSubs   map[int]func(*types.VolumeProfileView)
	feedDisposers []func()
}

var _ interfaces.MarketAnalytics = (*MarketService)(nil)

func New(p Params) *MarketService {
	window, err := types.ParseWindow(p.Cfg.Analytics.FlowWindow)
	if err != nil {
		window = types.Window5m
	}
	return &MarketService{
		market:      p.Market,
		feed:        p.Feed,
		cfg:         p.Cfg,
		timeframe:   types.Timeframe(p.Cfg.Timeframe),
		window:      window,
		candles:     newCandleBuffer(p.Cfg.Buffers.Candles),
		trades:      newTradeBuffer(p.Cfg.Buffers.Trades),
		depthSubs:   make(map[int]func(*types.DepthView)),
		flowSubs:    make(map[int]func(*types.OrderFlowView)),
		profileSubs: make(map[int]func(*types.VolumeProfileView)),
	}
}

func (s *MarketService) Market() string { return s.market }

// Start seeds the buffers from the feed's pull API and wires the push
// subscriptions. Seed failures are logged and tolerated: the stream fills
// the buffers as data arrives.
func (s *MarketService) Start(ctx context.Context) error {
	if candles, err := s.feed.GetCandles(ctx, s.market, s.timeframe, s.cfg.Buffers.Candles); err != nil {
		logger.Warn(ctx, "Candle seed failed", "market", s.market, "error", err.Error())
	} else if len(candles) > 0 {
		s.candles.Seed(candles)
	}
	if trades, err := s.feed.GetRecentTrades(ctx, s.market, s.cfg.Buffers.Trades); err != nil {
		logger.Warn(ctx, "Trade seed failed", "market", s.market, "error", err.Error())
	} else if len(trades) > 0 {
		s.trades.Seed(trades)
	}
	if book, err := s.feed.GetOrderBook(ctx, s.market, s.cfg.Buffers.Depth); err != nil {
		logger.Warn(ctx, "Book seed failed", "market", s.market, "error", err.Error())
	} else if len(book.Bids) > 0 || len(book.Asks) > 0 {
		s.book.Put(book)
	}

	s.subMu.Lock()
	s.feedDisposers = append(s.feedDisposers,
		s.feed.SubscribeCandles(s.market, s.timeframe, s.onCandle),
		s.feed.SubscribeTrades(s.market, s.onTrade),
		s.feed.SubscribeOrderBook(s.market, s.onBook),
	)
	s.subMu.Unlock()

	logger.Info(ctx, "Market service started",
		"market", s.market,
		"timeframe", string(s.timeframe),
		"candles_seeded", s.candles.Len(),
	)
	return nil
}

// Close detaches from the feed. Buffers stay readable.
func (s *MarketService) Close() {
	s.subMu.Lock()
	disposers := s.feedDisposers
	s.feedDisposers = nil
	s.subMu.Unlock()
	for _, dispose := range disposers {
		dispose()
	}
}

func (s *MarketService) onCandle(market string, c types.Candle) {
	s.candles.Put(c)
	if c.Closed {
		if view := s.VolumeProfile(); view != nil {
			s.notifyProfile(view)
		}
	}
}

func (s *MarketService) onTrade(market string, t types.Trade) {
	s.trades.Put(t)
	if view := s.OrderFlow(s.window); view != nil {
		s.notifyFlow(view)
	}
}

func (s *MarketService) onBook(market string, b types.OrderBook) {
	s.book.Put(b)
	if view := s.Depth(); view != nil {
		s.notifyDepth(view)
	}
}

func (s *MarketService) Depth() *types.DepthView {
	book := s.book.Snapshot()
	if book == nil {
		return nil
	}
	return analytics.AggregateDepth(book.Bids, book.Asks)
}

func (s *MarketService) OrderFlow(window types.Window) *types.OrderFlowView {
	return analytics.AnalyzeOrderFlow(s.trades.Snapshot(), window, s.cfg.Analytics.FlowBucketWidth, time.Now())
}

func (s *MarketService) VolumeProfile() *types.VolumeProfileView {
	return analytics.BuildVolumeProfile(s.candles.Snapshot(), s.cfg.Analytics.ProfileBuckets, s.cfg.Analytics.ValueAreaFraction)
}

// Indicators computes the configured indicator set over the current candle
// buffer. Values with insufficient history come back NaN.
func (s *MarketService) Indicators() *types.IndicatorSet {
	candles := s.candles.Snapshot()
	if len(candles) == 0 {
		return nil
	}
	closes := ta.Closes(candles)
	ind := s.cfg.Indicators

	set := &types.IndicatorSet{
		SMA: make(map[int]float64, len(ind.SMAWindows)),
		EMA: make(map[int]float64, len(ind.EMAWindows)),
	}
	for _, n := range ind.SMAWindows {
		set.SMA[n] = ta.SMA(closes, n)
	}
	for _, n := range ind.EMAWindows {
		set.EMA[n] = ta.EMA(closes, n)
	}
	set.RSI = ta.RSI(closes, ind.RSIPeriod)

	line, sig, hist := ta.MACDSeries(closes, ind.MACDFast, ind.MACDSlow, ind.MACDSignal)
	if n := len(line); n > 0 {
		set.MACD.Line = line[n-1]
		set.MACD.Signal = sig[n-1]
		set.MACD.Histogram = hist[n-1]
	}

	set.BB.Middle, set.BB.Upper, set.BB.Lower = ta.Bollinger(closes, ind.BBWindow, ind.BBStdDev)

	vwap := ta.VWAPSeries(candles)
	if n := len(vwap); n > 0 {
		set.VWAP = vwap[n-1]
	}
	return set
}

func (s *MarketService) Candles() []types.Candle { return s.candles.Snapshot() }
func (s *MarketService) Trades() []types.Trade   { return s.trades.Snapshot() }

func (s *MarketService) OnDepth(h func(*types.DepthView)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.depthSubs[id] = h
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.depthSubs, id)
	}
}

func (s *MarketService) OnOrderFlow(h func(*types.OrderFlowView)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.flowSubs[id] = h
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.flowSubs, id)
	}
}

func (s *MarketService) OnVolumeProfile(h func(*types.VolumeProfileView)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextSubID++
	id := s.nextSubID
	s.profileSubs[id] = h
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.profileSubs, id)
	}
}

func (s *MarketService) notifyDepth(view *types.DepthView) {
	s.subMu.RLock()
	handlers := make([]func(*types.DepthView), 0, len(s.depthSubs))
	for _, h := range s.depthSubs {
		handlers = append(handlers, h)
	}
	s.subMu.RUnlock()
	for _, h := range handlers {
		h(view)
	}
}

func (s *MarketService) notifyFlow(view *types.OrderFlowView) {
	s.subMu.RLock()
	handlers := make([]func(*types.OrderFlowView), 0, len(s.flowSubs))
	for _, h := range s.flowSubs {
		handlers = append(handlers, h)
	}
	s.subMu.RUnlock()
	for _, h := range handlers {
		h(view)
	}
}

func (s *MarketService) notifyProfile(view *types.VolumeProfileView) {
	s.subMu.RLock()
	handlers := make([]func(*types.VolumeProfileView), 0, len(s.profileSubs))
	for _, h := range s.profileSubs {
		handlers = append(handlers, h)
	}
	s.subMu.RUnlock()
	for _, h := range handlers {
		h(view)
	}
}
