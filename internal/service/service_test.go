package service

import (
	"context"
	"math"
	"testing"
	"time"

	"market-analytics/internal/interfaces"
	"market-analytics/internal/store"
	"market-analytics/internal/types"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockFeed struct {
	mock.Mock

	candleHandler interfaces.CandleHandler
	tradeHandler  interfaces.TradeHandler
	bookHandler   interfaces.BookHandler
}

func (m *MockFeed) Start(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockFeed) Stop(ctx context.Context) {
	m.Called(ctx)
}

func (m *MockFeed) GetCandles(ctx context.Context, market string, tf types.Timeframe, limit int) ([]types.Candle, error) {
	args := m.Called(ctx, market, tf, limit)
	if v := args.Get(0); v != nil {
		return v.([]types.Candle), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFeed) GetRecentTrades(ctx context.Context, market string, limit int) ([]types.Trade, error) {
	args := m.Called(ctx, market, limit)
	if v := args.Get(0); v != nil {
		return v.([]types.Trade), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockFeed) GetOrderBook(ctx context.Context, market string, depth int) (types.OrderBook, error) {
	args := m.Called(ctx, market, depth)
	return args.Get(0).(types.OrderBook), args.Error(1)
}

func (m *MockFeed) SubscribeCandles(market string, tf types.Timeframe, h interfaces.CandleHandler) func() {
	m.candleHandler = h
	return func() { m.candleHandler = nil }
}

func (m *MockFeed) SubscribeTrades(market string, h interfaces.TradeHandler) func() {
	m.tradeHandler = h
	return func() { m.tradeHandler = nil }
}

func (m *MockFeed) SubscribeOrderBook(market string, h interfaces.BookHandler) func() {
	m.bookHandler = h
	return func() { m.bookHandler = nil }
}

func testConfig() *store.Config {
	cfg := &store.Config{}
	cfg.Markets = []string{"BTCUSDT"}
	cfg.Timeframe = "1m"
	cfg.Buffers.Candles = 5
	cfg.Buffers.Trades = 3
	cfg.Buffers.Depth = 20
	cfg.Analytics.ProfileBuckets = 10
	cfg.Analytics.ValueAreaFraction = 0.70
	cfg.Analytics.FlowBucketWidth = 10
	cfg.Analytics.FlowWindow = "5m"
	cfg.Indicators.SMAWindows = []int{3}
	cfg.Indicators.EMAWindows = []int{3}
	cfg.Indicators.RSIPeriod = 3
	cfg.Indicators.MACDFast = 2
	cfg.Indicators.MACDSlow = 3
	cfg.Indicators.MACDSignal = 2
	cfg.Indicators.BBWindow = 3
	cfg.Indicators.BBStdDev = 2.0
	return cfg
}

func emptyFeed() *MockFeed {
	f := new(MockFeed)
	f.On("GetCandles", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.On("GetRecentTrades", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	f.On("GetOrderBook", mock.Anything, mock.Anything, mock.Anything).Return(types.OrderBook{}, nil)
	return f
}

func TestMarketServiceSeedsFromFeed(t *testing.T) {
	f := new(MockFeed)
	seed := []types.Candle{
		{Ts: 60_000, Close: 100, High: 101, Low: 99, Vol: 1, Closed: true},
		{Ts: 120_000, Close: 101, High: 102, Low: 100, Vol: 2, Closed: true},
	}
	f.On("GetCandles", mock.Anything, "BTCUSDT", types.Timeframe1m, 5).Return(seed, nil)
	f.On("GetRecentTrades", mock.Anything, "BTCUSDT", 3).Return([]types.Trade{
		{ID: "t1", Price: 100, Qty: 1, Side: types.SideBuy, Ts: time.Now().UnixMilli()},
	}, nil)
	f.On("GetOrderBook", mock.Anything, "BTCUSDT", 20).Return(types.OrderBook{
		Bids: []types.RawLevel{{Price: 99, Qty: 1}},
		Asks: []types.RawLevel{{Price: 101, Qty: 1}},
	}, nil)

	svc := New(Params{Market: "BTCUSDT", Feed: f, Cfg: testConfig()})
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Close()

	require.Len(t, svc.Candles(), 2)
	require.Len(t, svc.Trades(), 1)

	depth := svc.Depth()
	require.NotNil(t, depth)
	require.Equal(t, 99.0, depth.BestBid.Price)
	f.AssertExpectations(t)
}

func TestMarketServiceToleratesSeedErrors(t *testing.T) {
	f := new(MockFeed)
	f.On("GetCandles", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil, context.DeadlineExceeded)
	f.On("GetRecentTrades", mock.Anything, mock.Anything, mock.Anything).Return(nil, context.DeadlineExceeded)
	f.On("GetOrderBook", mock.Anything, mock.Anything, mock.Anything).Return(types.OrderBook{}, context.DeadlineExceeded)

	svc := New(Params{Market: "BTCUSDT", Feed: f, Cfg: testConfig()})
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Close()

	require.Nil(t, svc.Depth())
	require.Nil(t, svc.Candles())
	require.Nil(t, svc.VolumeProfile())
	require.Nil(t, svc.Indicators())
}

func TestMarketServiceCandleBuffer(t *testing.T) {
	f := emptyFeed()
	svc := New(Params{Market: "BTCUSDT", Feed: f, Cfg: testConfig()})
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Close()

	// Same open time updates the forming candle in place.
	f.candleHandler("BTCUSDT", types.Candle{Ts: 60_000, Close: 100, High: 100, Low: 100, Vol: 1})
	f.candleHandler("BTCUSDT", types.Candle{Ts: 60_000, Close: 105, High: 105, Low: 100, Vol: 2})
	require.Len(t, svc.Candles(), 1)
	require.Equal(t, 105.0, svc.Candles()[0].Close)

	// Capacity is enforced, oldest evicted first.
	for i := int64(2); i <= 7; i++ {
		f.candleHandler("BTCUSDT", types.Candle{Ts: i * 60_000, Close: 100, High: 100, Low: 100, Vol: 1, Closed: true})
	}
	candles := svc.Candles()
	require.Len(t, candles, 5)
	require.Equal(t, int64(3*60_000), candles[0].Ts)
}

func TestMarketServiceTradeBuffer(t *testing.T) {
	f := emptyFeed()
	svc := New(Params{Market: "BTCUSDT", Feed: f, Cfg: testConfig()})
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Close()

	now := time.Now().UnixMilli()
	for i := 0; i < 5; i++ {
		f.tradeHandler("BTCUSDT", types.Trade{ID: string(rune('a' + i)), Price: 100, Qty: 1, Side: types.SideBuy, Ts: now})
	}
	trades := svc.Trades()
	require.Len(t, trades, 3)
	require.Equal(t, "e", trades[0].ID) // newest first
}

func TestMarketServiceNotifications(t *testing.T) {
	f := emptyFeed()
	svc := New(Params{Market: "BTCUSDT", Feed: f, Cfg: testConfig()})
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Close()

	var depths []*types.DepthView
	dispose := svc.OnDepth(func(v *types.DepthView) { depths = append(depths, v) })

	var flows []*types.OrderFlowView
	svc.OnOrderFlow(func(v *types.OrderFlowView) { flows = append(flows, v) })

	var profiles []*types.VolumeProfileView
	svc.OnVolumeProfile(func(v *types.VolumeProfileView) { profiles = append(profiles, v) })

	f.bookHandler("BTCUSDT", types.OrderBook{
		Bids: []types.RawLevel{{Price: 99, Qty: 1}},
		Asks: []types.RawLevel{{Price: 101, Qty: 1}},
	})
	require.Len(t, depths, 1)
	require.Equal(t, 2.0, depths[0].Spread)

	f.tradeHandler("BTCUSDT", types.Trade{ID: "t", Price: 100, Qty: 1, Side: types.SideBuy, Ts: time.Now().UnixMilli()})
	require.Len(t, flows, 1)
	require.Equal(t, 100.0, flows[0].BuyVolume)

	// Profiles notify on candle close only.
	f.candleHandler("BTCUSDT", types.Candle{Ts: 60_000, Close: 100, High: 101, Low: 99, Vol: 1})
	require.Empty(t, profiles)
	f.candleHandler("BTCUSDT", types.Candle{Ts: 60_000, Close: 100, High: 101, Low: 99, Vol: 1, Closed: true})
	require.Len(t, profiles, 1)

	// Disposed subscribers stop receiving.
	dispose()
	f.bookHandler("BTCUSDT", types.OrderBook{
		Bids: []types.RawLevel{{Price: 99, Qty: 1}},
		Asks: []types.RawLevel{{Price: 101, Qty: 1}},
	})
	require.Len(t, depths, 1)
}

func TestMarketServiceIndicators(t *testing.T) {
	f := emptyFeed()
	svc := New(Params{Market: "BTCUSDT", Feed: f, Cfg: testConfig()})
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Close()

	day := int64(86_400_000)
	for i := int64(0); i < 5; i++ {
		price := 100 + float64(i)
		f.candleHandler("BTCUSDT", types.Candle{
			Ts: day + i*60_000, Open: price, High: price, Low: price, Close: price, Vol: 1, Closed: true,
		})
	}

	set := svc.Indicators()
	require.NotNil(t, set)
	require.InDelta(t, 103.0, set.SMA[3], 1e-9) // (102+103+104)/3
	require.False(t, math.IsNaN(set.EMA[3]))
	require.InDelta(t, 100.0, set.RSI, 1e-9) // monotone gains
	require.False(t, math.IsNaN(set.BB.Middle))
	// VWAP of equal-volume candles at the typical prices 100..104.
	require.InDelta(t, 102.0, set.VWAP, 1e-9)
}

func TestMarketServiceOrderFlowWindowOverride(t *testing.T) {
	f := emptyFeed()
	svc := New(Params{Market: "BTCUSDT", Feed: f, Cfg: testConfig()})
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Close()

	now := time.Now()
	f.tradeHandler("BTCUSDT", types.Trade{ID: "old", Price: 100, Qty: 1, Side: types.SideBuy, Ts: now.Add(-3 * time.Minute).UnixMilli()})
	f.tradeHandler("BTCUSDT", types.Trade{ID: "new", Price: 100, Qty: 1, Side: types.SideBuy, Ts: now.UnixMilli()})

	wide := svc.OrderFlow(types.Window5m)
	require.NotNil(t, wide)
	require.Equal(t, 2, wide.TotalTrades)

	narrow := svc.OrderFlow(types.Window1m)
	require.NotNil(t, narrow)
	require.Equal(t, 1, narrow.TotalTrades)
}
