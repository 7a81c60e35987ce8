package analytics

import (
	"math"
	"sort"
	"time"

	"market-analytics/internal/types"
)

// DefaultFlowBucketWidth is the price quantization used for per-level
// imbalance when the caller passes a non-positive width.
const DefaultFlowBucketWidth = 10.0

// AnalyzeOrderFlow windows the trade buffer to now-window and computes
// buy/sell volume, net flow and per-price-bucket imbalance. Each call
// recomputes from the full buffer, so switching windows never leaks state.
// Returns nil when no valid trade falls inside the window.
func AnalyzeOrderFlow(trades []types.Trade, window types.Window, bucketWidth float64, now time.Time) *types.OrderFlowView {
	dur := window.Duration()
	if dur <= 0 {
		return nil
	}
	if bucketWidth <= 0 {
		bucketWidth = DefaultFlowBucketWidth
	}

	view := &types.OrderFlowView{Window: window}
	cutoff := now.Add(-dur).UnixMilli()

	type bucket struct{ buy, sell float64 }
	buckets := make(map[float64]*bucket)

	for _, t := range trades {
		if t.Ts <= cutoff {
			continue
		}
		if t.Price <= 0 || t.Qty <= 0 {
			view.Skipped++
			continue
		}
		if t.Side != types.SideBuy && t.Side != types.SideSell {
			view.Skipped++
			continue
		}

		notional := t.Price * t.Qty
		key := math.Floor(t.Price/bucketWidth) * bucketWidth
		b := buckets[key]
		if b == nil {
			b = &bucket{}
			buckets[key] = b
		}

		if t.Side == types.SideBuy {
			view.BuyVolume += notional
			view.BuyCount++
			b.buy += t.Qty
		} else {
			view.SellVolume += notional
			view.SellCount++
			b.sell += t.Qty
		}
	}

	view.TotalTrades = view.BuyCount + view.SellCount
	if view.TotalTrades == 0 {
		return nil
	}

	view.NetFlow = view.BuyVolume - view.SellVolume
	if total := view.BuyVolume + view.SellVolume; total > 0 {
		view.FlowRatio = view.NetFlow / total * 100
	}

	view.Levels = make([]types.FlowLevel, 0, len(buckets))
	for price, b := range buckets {
		view.Levels = append(view.Levels, types.FlowLevel{
			Price:     price,
			Buy:       b.buy,
			Sell:      b.sell,
			Imbalance: b.buy - b.sell,
		})
	}
	sort.Slice(view.Levels, func(i, j int) bool {
		return view.Levels[i].Price > view.Levels[j].Price
	})
	return view
}
