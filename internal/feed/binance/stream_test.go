package binance

import (
	"context"
	"testing"

	"market-analytics/internal/types"
)

func testFeed() *Feed {
	return New(Params{
		Markets:   []string{"BTCUSDT"},
		Timeframe: types.Timeframe1m,
	})
}

func TestHandleKline(t *testing.T) {
	f := testFeed()
	var got types.Candle
	f.SubscribeCandles("BTCUSDT", types.Timeframe1m, func(market string, c types.Candle) {
		got = c
	})

	msg := []byte(`{"stream":"btcusdt@kline_1m","data":{"s":"BTCUSDT","k":{"t":1700000000000,"o":"100.5","h":"101","l":"99.5","c":"100.75","v":"12.5","x":true}}}`)
	f.handleMessage(context.Background(), msg)

	if got.Ts != 1700000000000 {
		t.Errorf("Expected open time carried through, got %d", got.Ts)
	}
	if got.Open != 100.5 || got.Close != 100.75 || got.Vol != 12.5 {
		t.Errorf("Unexpected candle values: %+v", got)
	}
	if !got.Closed {
		t.Error("Expected the closed flag to carry through")
	}
}

func TestHandleAggTradeSides(t *testing.T) {
	f := testFeed()
	var got types.Trade
	f.SubscribeTrades("BTCUSDT", func(market string, tr types.Trade) {
		got = tr
	})

	// Buyer-maker means the taker hit the bid: classified as a sell.
	msg := []byte(`{"stream":"btcusdt@aggTrade","data":{"s":"BTCUSDT","a":42,"p":"100","q":"0.5","T":1700000000000,"m":true}}`)
	f.handleMessage(context.Background(), msg)
	if got.Side != types.SideSell {
		t.Errorf("Expected buyer-maker classified as sell, got %s", got.Side)
	}
	if got.ID != "42" || got.Price != 100 || got.Qty != 0.5 {
		t.Errorf("Unexpected trade values: %+v", got)
	}

	msg = []byte(`{"stream":"btcusdt@aggTrade","data":{"s":"BTCUSDT","a":43,"p":"100","q":"0.5","T":1700000000000,"m":false}}`)
	f.handleMessage(context.Background(), msg)
	if got.Side != types.SideBuy {
		t.Errorf("Expected taker buy, got %s", got.Side)
	}
}

func TestHandleDepth(t *testing.T) {
	f := testFeed()
	var got types.OrderBook
	f.SubscribeOrderBook("BTCUSDT", func(market string, b types.OrderBook) {
		got = b
	})

	msg := []byte(`{"stream":"btcusdt@depth20@100ms","data":{"lastUpdateId":1,"bids":[["99.5","2"],["99","1"]],"asks":[["100.5","3"]]}}`)
	f.handleMessage(context.Background(), msg)

	if len(got.Bids) != 2 || len(got.Asks) != 1 {
		t.Fatalf("Expected 2 bids / 1 ask, got %d/%d", len(got.Bids), len(got.Asks))
	}
	if got.Bids[0].Price != 99.5 || got.Bids[0].Qty != 2 {
		t.Errorf("Unexpected top bid: %+v", got.Bids[0])
	}
}

func TestHandleDepthUnknownMarket(t *testing.T) {
	f := testFeed()
	delivered := false
	f.SubscribeOrderBook("BTCUSDT", func(market string, b types.OrderBook) {
		delivered = true
	})

	msg := []byte(`{"stream":"ethusdt@depth20@100ms","data":{"lastUpdateId":1,"bids":[["99","1"]],"asks":[]}}`)
	f.handleMessage(context.Background(), msg)
	if delivered {
		t.Error("Expected events for unconfigured markets to be dropped")
	}
}

func TestMarketFromStream(t *testing.T) {
	markets := []string{"BTCUSDT", "ETHUSDT"}

	if got := marketFromStream("btcusdt@depth20@100ms", markets); got != "BTCUSDT" {
		t.Errorf("Expected BTCUSDT, got %q", got)
	}
	if got := marketFromStream("nostream", markets); got != "" {
		t.Errorf("Expected empty for a malformed stream name, got %q", got)
	}
	if got := marketFromStream("dogeusdt@depth20", markets); got != "" {
		t.Errorf("Expected empty for an unknown symbol, got %q", got)
	}
}

func TestStreamURL(t *testing.T) {
	f := New(Params{
		Markets:   []string{"BTCUSDT", "ETHUSDT"},
		Timeframe: types.Timeframe5m,
	})

	url := f.streamURL()
	want := defaultWSURL + "?streams=btcusdt@kline_5m/btcusdt@aggTrade/btcusdt@depth20@100ms/ethusdt@kline_5m/ethusdt@aggTrade/ethusdt@depth20@100ms"
	if url != want {
		t.Errorf("Unexpected stream URL:\n got %s\nwant %s", url, want)
	}
}

func TestStreamURLBookDepth(t *testing.T) {
	cases := []struct {
		depth int
		want  string
	}{
		{depth: 5, want: "btcusdt@depth5@100ms"},
		{depth: 8, want: "btcusdt@depth10@100ms"},
		{depth: 10, want: "btcusdt@depth10@100ms"},
		{depth: 50, want: "btcusdt@depth20@100ms"},
	}
	for _, tc := range cases {
		f := New(Params{
			Markets:   []string{"BTCUSDT"},
			Timeframe: types.Timeframe1m,
			BookDepth: tc.depth,
		})
		url := f.streamURL()
		want := defaultWSURL + "?streams=btcusdt@kline_1m/btcusdt@aggTrade/" + tc.want
		if url != want {
			t.Errorf("BookDepth %d: unexpected stream URL:\n got %s\nwant %s", tc.depth, url, want)
		}
	}
}

func TestHandleMessageMalformed(t *testing.T) {
	f := testFeed()
	delivered := false
	f.SubscribeCandles("BTCUSDT", types.Timeframe1m, func(market string, c types.Candle) {
		delivered = true
	})

	f.handleMessage(context.Background(), []byte(`not json`))
	f.handleMessage(context.Background(), []byte(`{"stream":"btcusdt@kline_1m","data":"oops"}`))
	if delivered {
		t.Error("Expected malformed messages to be dropped")
	}
}
