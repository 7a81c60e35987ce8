package analytics

import (
	"market-analytics/internal/types"
)

// PositionBook folds a chronological fill sequence into per-market open
// positions. It is constructed fresh from caller-supplied history; nothing
// survives between calls unless the caller keeps the book.
type PositionBook struct {
	positions map[string]*types.Position
	order     []string // insertion order, for stable output
	skipped   int
}

func NewPositionBook() *PositionBook {
	return &PositionBook{positions: make(map[string]*types.Position)}
}

// FoldPositions builds a book from a fill sequence and returns it.
func FoldPositions(fills []types.TradeHistoryEntry) *PositionBook {
	book := NewPositionBook()
	for _, f := range fills {
		book.Apply(f)
	}
	return book
}

// Apply folds one fill into the book. A fill in the direction of the
// existing exposure moves the average entry price by volume weighting; a
// reducing fill realizes PnL against the unchanged average. A fill larger
// than the open quantity closes the position and reopens the remainder in
// the opposite direction at the fill price.
func (b *PositionBook) Apply(fill types.TradeHistoryEntry) {
	if fill.Price <= 0 || fill.Qty <= 0 || (fill.Side != types.SideBuy && fill.Side != types.SideSell) {
		b.skipped++
		return
	}

	p := b.positions[fill.Market]
	if p == nil {
		p = &types.Position{
			Market:        fill.Market,
			Side:          fill.Side,
			BaseQty:       fill.Qty,
			QuoteQty:      fill.Qty * fill.Price,
			AvgEntryPrice: fill.Price,
			CurrentPrice:  fill.Price,
		}
		b.positions[fill.Market] = p
		b.order = append(b.order, fill.Market)
		b.markPosition(p)
		return
	}

	if fill.Side == p.Side {
		// Same direction: weighted-average entry update.
		totalCost := p.AvgEntryPrice*p.BaseQty + fill.Price*fill.Qty
		p.BaseQty += fill.Qty
		p.AvgEntryPrice = totalCost / p.BaseQty
		p.QuoteQty = p.BaseQty * p.AvgEntryPrice
		p.CurrentPrice = fill.Price
		b.markPosition(p)
		return
	}

	// Reducing fill: realize PnL on the closed quantity, average unchanged.
	closed := fill.Qty
	if closed > p.BaseQty {
		closed = p.BaseQty
	}
	p.RealizedPnl += directional(p.Side, fill.Price-p.AvgEntryPrice) * closed
	p.BaseQty -= closed
	p.QuoteQty = p.BaseQty * p.AvgEntryPrice
	p.CurrentPrice = fill.Price

	if remainder := fill.Qty - closed; remainder > 0 {
		// Flip: the excess opens fresh exposure the other way.
		p.Side = fill.Side
		p.BaseQty = remainder
		p.AvgEntryPrice = fill.Price
		p.QuoteQty = remainder * fill.Price
	}
	b.markPosition(p)
}

// MarkPrice updates the live price for a market and recomputes its
// unrealized PnL.
func (b *PositionBook) MarkPrice(market string, price float64) {
	p := b.positions[market]
	if p == nil || price <= 0 {
		return
	}
	p.CurrentPrice = price
	b.markPosition(p)
}

func (b *PositionBook) markPosition(p *types.Position) {
	p.UnrealizedPnl = directional(p.Side, p.CurrentPrice-p.AvgEntryPrice) * p.BaseQty
}

// directional maps a raw price move to PnL sign for the exposure side.
func directional(side types.Side, move float64) float64 {
	if side == types.SideSell {
		return -move
	}
	return move
}

// Position returns the open position for a market, nil when flat.
func (b *PositionBook) Position(market string) *types.Position {
	p := b.positions[market]
	if p == nil || p.BaseQty <= 0 {
		return nil
	}
	cp := *p
	return &cp
}

// Positions returns all open positions in first-fill order.
func (b *PositionBook) Positions() []types.Position {
	out := make([]types.Position, 0, len(b.positions))
	for _, market := range b.order {
		p := b.positions[market]
		if p.BaseQty <= 0 {
			continue
		}
		out = append(out, *p)
	}
	return out
}

// Skipped reports how many malformed fills were dropped.
func (b *PositionBook) Skipped() int {
	return b.skipped
}

// CalculateMetrics derives aggregate performance statistics from a trade
// history. RealizedPnl is taken as attributed by the upstream ledger. ROI is
// computed against the explicit capitalBase and is 0 when the base is not
// positive. Malformed entries are skipped and counted.
func CalculateMetrics(history []types.TradeHistoryEntry, capitalBase float64) types.PortfolioMetrics {
	m := types.PortfolioMetrics{}

	var profitSum, lossSum float64
	for _, t := range history {
		if t.Price <= 0 || t.Qty <= 0 {
			m.Skipped++
			continue
		}
		m.TotalTrades++
		m.TotalVolume += t.Price * t.Qty
		m.TotalFeesPaid += t.Fee
		m.TotalRealizedPnl += t.RealizedPnl

		switch {
		case t.RealizedPnl > 0:
			m.WinningTrades++
			profitSum += t.RealizedPnl
			if t.RealizedPnl > m.LargestWin {
				m.LargestWin = t.RealizedPnl
			}
		case t.RealizedPnl < 0:
			m.LosingTrades++
			lossSum += -t.RealizedPnl
			if -t.RealizedPnl > -m.LargestLoss {
				m.LargestLoss = t.RealizedPnl
			}
		}
	}

	if m.WinningTrades > 0 {
		m.AverageProfitPerTrade = profitSum / float64(m.WinningTrades)
	}
	if m.LosingTrades > 0 {
		m.AverageLossPerTrade = -(lossSum / float64(m.LosingTrades))
	}
	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades) * 100
	}
	if capitalBase > 0 {
		m.ROI = m.TotalRealizedPnl / capitalBase * 100
	}
	return m
}
