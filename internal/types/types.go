package types

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Side is the taker side of a trade or the direction of a position.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Timeframe is the candle interval requested from the feed.
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe1h  Timeframe = "1h"
	Timeframe4h  Timeframe = "4h"
	Timeframe1d  Timeframe = "1d"
)

// Window is the lookback used by the order-flow analyzer.
type Window string

const (
	Window1m  Window = "1m"
	Window5m  Window = "5m"
	Window15m Window = "15m"
	Window1h  Window = "1h"
)

func (w Window) Duration() time.Duration {
	switch w {
	case Window1m:
		return time.Minute
	case Window5m:
		return 5 * time.Minute
	case Window15m:
		return 15 * time.Minute
	case Window1h:
		return time.Hour
	}
	return 0
}

func ParseWindow(s string) (Window, error) {
	w := Window(s)
	if w.Duration() == 0 {
		return "", fmt.Errorf("invalid order-flow window %q: must be one of 1m, 5m, 15m, 1h", s)
	}
	return w, nil
}

// Candle is one OHLCV bar. The last candle of a series may be updated in
// place while Closed is false; once closed it is immutable.
type Candle struct {
	Ts     int64   `json:"ts"` // unix milliseconds, open time
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Vol    float64 `json:"vol"`
	Closed bool    `json:"closed"`
}

// Trade is a single executed trade as delivered by the feed.
type Trade struct {
	ID    string  `json:"id"`
	Price float64 `json:"price"`
	Qty   float64 `json:"qty"`
	Side  Side    `json:"side"`
	Ts    int64   `json:"ts"` // unix milliseconds
}

// RawLevel is one price level as delivered by the feed, already sorted
// (bids descending, asks ascending).
type RawLevel struct {
	Price float64 `json:"price"`
	Qty   float64 `json:"qty"`
}

// OrderBook is a feed snapshot of both sides of the book.
type OrderBook struct {
	Bids []RawLevel `json:"bids"`
	Asks []RawLevel `json:"asks"`
	Ts   int64      `json:"ts"`
}

// DepthLevel is one annotated ladder level of a DepthView.
type DepthLevel struct {
	Price        float64 `json:"price"`
	Qty          float64 `json:"qty"`
	Total        float64 `json:"total"`         // cumulative qty from best price outward
	WidthPercent float64 `json:"width_percent"` // qty vs max qty across both sides
}

// DepthView is the normalized order-book ladder exposed to presentation.
type DepthView struct {
	Bids          []DepthLevel `json:"bids"`
	Asks          []DepthLevel `json:"asks"`
	BestBid       *DepthLevel  `json:"best_bid,omitempty"`
	BestAsk       *DepthLevel  `json:"best_ask,omitempty"`
	Spread        float64      `json:"spread"`
	SpreadPercent float64      `json:"spread_percent"`
	Skipped       int          `json:"skipped,omitempty"` // malformed levels dropped
}

// FlowLevel is the buy/sell imbalance accumulated at one price bucket.
type FlowLevel struct {
	Price     float64 `json:"price"`
	Buy       float64 `json:"buy"`
	Sell      float64 `json:"sell"`
	Imbalance float64 `json:"imbalance"`
}

// OrderFlowView is the windowed order-flow summary for one market.
type OrderFlowView struct {
	Window      Window      `json:"window"`
	BuyVolume   float64     `json:"buy_volume"`
	SellVolume  float64     `json:"sell_volume"`
	NetFlow     float64     `json:"net_flow"`
	FlowRatio   float64     `json:"flow_ratio"`
	BuyCount    int         `json:"buy_count"`
	SellCount   int         `json:"sell_count"`
	TotalTrades int         `json:"total_trades"`
	Levels      []FlowLevel `json:"levels"`
	Skipped     int         `json:"skipped,omitempty"`
}

// VolumeBucket is one price bin of a volume profile.
type VolumeBucket struct {
	PriceCenter float64 `json:"price_center"`
	Volume      float64 `json:"volume"`
}

// VolumeProfileView is the binned volume distribution with POC and value area.
type VolumeProfileView struct {
	Buckets       []VolumeBucket `json:"buckets"` // zero-volume buckets omitted
	POC           VolumeBucket   `json:"poc"`
	ValueAreaLow  float64        `json:"value_area_low"`
	ValueAreaHigh float64        `json:"value_area_high"`
	TotalVolume   float64        `json:"total_volume"`
	BucketSize    float64        `json:"bucket_size"`
	Skipped       int            `json:"skipped,omitempty"`
}

// TradeHistoryEntry is one fill from the upstream ledger. RealizedPnl is
// already attributed per trade by that ledger.
type TradeHistoryEntry struct {
	Market      string  `json:"market"`
	Side        Side    `json:"side"`
	Price       float64 `json:"price"`
	Qty         float64 `json:"qty"`
	Fee         float64 `json:"fee"`
	RealizedPnl float64 `json:"realized_pnl"`
	Ts          int64   `json:"ts"`
}

// Position is the open exposure in one market. AvgEntryPrice is a
// volume-weighted average moved only by same-direction fills.
type Position struct {
	Market        string  `json:"market"`
	BaseAsset     string  `json:"base_asset"`
	QuoteAsset    string  `json:"quote_asset"`
	Side          Side    `json:"side"`
	BaseQty       float64 `json:"base_qty"`
	QuoteQty      float64 `json:"quote_qty"`
	AvgEntryPrice float64 `json:"avg_entry_price"`
	CurrentPrice  float64 `json:"current_price"`
	RealizedPnl   float64 `json:"realized_pnl"`
	UnrealizedPnl float64 `json:"unrealized_pnl"`
}

// PortfolioMetrics is derived from a trade-history sequence; it is never
// stored.
type PortfolioMetrics struct {
	TotalTrades           int     `json:"total_trades"`
	WinningTrades         int     `json:"winning_trades"`
	LosingTrades          int     `json:"losing_trades"`
	WinRate               float64 `json:"win_rate"`
	TotalRealizedPnl      float64 `json:"total_realized_pnl"`
	AverageProfitPerTrade float64 `json:"average_profit_per_trade"`
	AverageLossPerTrade   float64 `json:"average_loss_per_trade"`
	LargestWin            float64 `json:"largest_win"`
	LargestLoss           float64 `json:"largest_loss"`
	TotalVolume           float64 `json:"total_volume"`
	TotalFeesPaid         float64 `json:"total_fees_paid"`
	ROI                   float64 `json:"roi"`
	Skipped               int     `json:"skipped,omitempty"`
}

// IndicatorSet carries the latest indicator values for one market, computed
// from the current candle buffer.
type IndicatorSet struct {
	SMA  map[int]float64 `json:"sma"`
	EMA  map[int]float64 `json:"ema"`
	RSI  float64         `json:"rsi"`
	MACD struct {
		Line      float64 `json:"line"`
		Signal    float64 `json:"signal"`
		Histogram float64 `json:"histogram"`
	} `json:"macd"`
	BB struct {
		Middle float64 `json:"middle"`
		Upper  float64 `json:"upper"`
		Lower  float64 `json:"lower"`
	} `json:"bb"`
	VWAP float64 `json:"vwap"`
}

// MarshalJSON renders NaN sentinels (not enough history yet) as null, since
// JSON has no NaN literal and the views must serialize as-is.
func (s *IndicatorSet) MarshalJSON() ([]byte, error) {
	nanNull := func(v float64) any {
		if math.IsNaN(v) {
			return nil
		}
		return v
	}
	windowed := func(m map[int]float64) map[int]any {
		out := make(map[int]any, len(m))
		for n, v := range m {
			out[n] = nanNull(v)
		}
		return out
	}

	type macdJSON struct {
		Line      any `json:"line"`
		Signal    any `json:"signal"`
		Histogram any `json:"histogram"`
	}
	type bbJSON struct {
		Middle any `json:"middle"`
		Upper  any `json:"upper"`
		Lower  any `json:"lower"`
	}
	return json.Marshal(struct {
		SMA  map[int]any `json:"sma"`
		EMA  map[int]any `json:"ema"`
		RSI  any         `json:"rsi"`
		MACD macdJSON    `json:"macd"`
		BB   bbJSON      `json:"bb"`
		VWAP any         `json:"vwap"`
	}{
		SMA: windowed(s.SMA),
		EMA: windowed(s.EMA),
		RSI: nanNull(s.RSI),
		MACD: macdJSON{
			Line:      nanNull(s.MACD.Line),
			Signal:    nanNull(s.MACD.Signal),
			Histogram: nanNull(s.MACD.Histogram),
		},
		BB: bbJSON{
			Middle: nanNull(s.BB.Middle),
			Upper:  nanNull(s.BB.Upper),
			Lower:  nanNull(s.BB.Lower),
		},
		VWAP: nanNull(s.VWAP),
	})
}
