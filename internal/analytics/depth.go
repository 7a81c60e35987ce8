// Package analytics contains the pure derived-data transforms: depth
// aggregation, order-flow analysis, volume profiling and portfolio metrics.
// Every function allocates a fresh output and never mutates its input, so
// callers may invoke them concurrently with different snapshots.
package analytics

import "market-analytics/internal/types"

// AggregateDepth turns feed-sorted bid and ask levels into an annotated
// ladder with cumulative totals, best prices and spread. Returns nil when
// both sides are empty. Malformed levels (non-positive price or quantity)
// are dropped and counted in Skipped.
func AggregateDepth(bids, asks []types.RawLevel) *types.DepthView {
	view := &types.DepthView{}

	maxQty := 0.0
	cleanBids := filterLevels(bids, &view.Skipped, &maxQty)
	cleanAsks := filterLevels(asks, &view.Skipped, &maxQty)
	if len(cleanBids) == 0 && len(cleanAsks) == 0 {
		return nil
	}

	view.Bids = annotate(cleanBids, maxQty)
	view.Asks = annotate(cleanAsks, maxQty)

	if len(view.Bids) > 0 {
		view.BestBid = &view.Bids[0]
	}
	if len(view.Asks) > 0 {
		view.BestAsk = &view.Asks[0]
	}
	if view.BestBid != nil && view.BestAsk != nil {
		view.Spread = view.BestAsk.Price - view.BestBid.Price
		if view.BestBid.Price > 0 {
			view.SpreadPercent = view.Spread / view.BestBid.Price * 100
		}
	}
	return view
}

func filterLevels(levels []types.RawLevel, skipped *int, maxQty *float64) []types.RawLevel {
	out := make([]types.RawLevel, 0, len(levels))
	for _, l := range levels {
		if l.Price <= 0 || l.Qty <= 0 {
			*skipped++
			continue
		}
		if l.Qty > *maxQty {
			*maxQty = l.Qty
		}
		out = append(out, l)
	}
	return out
}

// annotate copies levels in feed order (best price first) adding running
// totals and width against the max quantity across both sides.
func annotate(levels []types.RawLevel, maxQty float64) []types.DepthLevel {
	out := make([]types.DepthLevel, len(levels))
	total := 0.0
	for i, l := range levels {
		total += l.Qty
		width := 0.0
		if maxQty > 0 {
			width = l.Qty / maxQty * 100
		}
		out[i] = types.DepthLevel{Price: l.Price, Qty: l.Qty, Total: total, WidthPercent: width}
	}
	return out
}
