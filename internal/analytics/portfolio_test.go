package analytics

import (
	"math"
	"testing"

	"market-analytics/internal/types"
)

func fill(market string, side types.Side, price, qty float64) types.TradeHistoryEntry {
	return types.TradeHistoryEntry{Market: market, Side: side, Price: price, Qty: qty}
}

func TestPositionBookWeightedAverage(t *testing.T) {
	book := FoldPositions([]types.TradeHistoryEntry{
		fill("BTCUSDT", types.SideBuy, 100, 1),
		fill("BTCUSDT", types.SideBuy, 200, 1),
	})

	p := book.Position("BTCUSDT")
	if p == nil {
		t.Fatal("Expected an open position")
	}
	if p.AvgEntryPrice != 150 {
		t.Errorf("Expected average entry 150, got %f", p.AvgEntryPrice)
	}
	if p.BaseQty != 2 {
		t.Errorf("Expected base quantity 2, got %f", p.BaseQty)
	}
	if p.QuoteQty != 300 {
		t.Errorf("Expected quote quantity 300, got %f", p.QuoteQty)
	}
}

func TestPositionBookReducingFill(t *testing.T) {
	book := FoldPositions([]types.TradeHistoryEntry{
		fill("BTCUSDT", types.SideBuy, 100, 1),
		fill("BTCUSDT", types.SideBuy, 200, 1),
		fill("BTCUSDT", types.SideSell, 180, 1),
	})

	p := book.Position("BTCUSDT")
	if p == nil {
		t.Fatal("Expected an open position")
	}
	// The sell realizes (180-150)*1 and leaves the average untouched.
	if p.RealizedPnl != 30 {
		t.Errorf("Expected realized PnL 30, got %f", p.RealizedPnl)
	}
	if p.AvgEntryPrice != 150 {
		t.Errorf("Expected average entry unchanged at 150, got %f", p.AvgEntryPrice)
	}
	if p.BaseQty != 1 {
		t.Errorf("Expected base quantity 1, got %f", p.BaseQty)
	}
}

func TestPositionBookFlip(t *testing.T) {
	book := FoldPositions([]types.TradeHistoryEntry{
		fill("ETHUSDT", types.SideBuy, 100, 1),
		fill("ETHUSDT", types.SideSell, 120, 3),
	})

	p := book.Position("ETHUSDT")
	if p == nil {
		t.Fatal("Expected an open position after the flip")
	}
	if p.Side != types.SideSell {
		t.Errorf("Expected a short position, got %s", p.Side)
	}
	if p.BaseQty != 2 {
		t.Errorf("Expected remainder quantity 2, got %f", p.BaseQty)
	}
	if p.AvgEntryPrice != 120 {
		t.Errorf("Expected remainder opened at the fill price, got %f", p.AvgEntryPrice)
	}
	if p.RealizedPnl != 20 {
		t.Errorf("Expected realized 20 on the closed unit, got %f", p.RealizedPnl)
	}
}

func TestPositionBookCloseAndReopen(t *testing.T) {
	book := FoldPositions([]types.TradeHistoryEntry{
		fill("BTCUSDT", types.SideBuy, 100, 1),
		fill("BTCUSDT", types.SideSell, 110, 1),
	})

	if book.Position("BTCUSDT") != nil {
		t.Error("Expected no open position after a full close")
	}
	if len(book.Positions()) != 0 {
		t.Error("Expected flat books to list nothing")
	}

	// Realized PnL keeps accumulating across a reopen.
	book.Apply(fill("BTCUSDT", types.SideBuy, 50, 2))
	book.Apply(fill("BTCUSDT", types.SideSell, 60, 2))
	book.Apply(fill("BTCUSDT", types.SideBuy, 10, 1))
	p := book.Position("BTCUSDT")
	if p == nil {
		t.Fatal("Expected a reopened position")
	}
	if p.RealizedPnl != 30 {
		t.Errorf("Expected accumulated realized PnL 10+20=30, got %f", p.RealizedPnl)
	}
	if p.AvgEntryPrice != 10 || p.BaseQty != 1 {
		t.Errorf("Expected fresh 1 @ 10, got %f @ %f", p.BaseQty, p.AvgEntryPrice)
	}
}

func TestPositionBookUnrealizedAfterIncrease(t *testing.T) {
	book := NewPositionBook()
	book.Apply(fill("BTCUSDT", types.SideBuy, 100, 1))
	book.MarkPrice("BTCUSDT", 300)
	book.Apply(fill("BTCUSDT", types.SideBuy, 200, 1))

	// The increasing fill moves both the average and the current price, so
	// unrealized PnL must be recomputed, not carried over from the old mark.
	p := book.Position("BTCUSDT")
	if p.AvgEntryPrice != 150 || p.CurrentPrice != 200 {
		t.Fatalf("Expected avg 150 at current 200, got %f at %f", p.AvgEntryPrice, p.CurrentPrice)
	}
	if p.UnrealizedPnl != 100 {
		t.Errorf("Expected unrealized (200-150)*2=100, got %f", p.UnrealizedPnl)
	}
}

func TestPositionBookMarkPrice(t *testing.T) {
	book := FoldPositions([]types.TradeHistoryEntry{
		fill("BTCUSDT", types.SideBuy, 100, 2),
	})

	book.MarkPrice("BTCUSDT", 110)
	p := book.Position("BTCUSDT")
	if p.UnrealizedPnl != 20 {
		t.Errorf("Expected unrealized 20, got %f", p.UnrealizedPnl)
	}

	// Shorts gain when price falls.
	book.Apply(fill("ETHUSDT", types.SideSell, 50, 1))
	book.MarkPrice("ETHUSDT", 45)
	p = book.Position("ETHUSDT")
	if p.UnrealizedPnl != 5 {
		t.Errorf("Expected unrealized 5 on the short, got %f", p.UnrealizedPnl)
	}

	book.MarkPrice("ETHUSDT", -1)
	if book.Position("ETHUSDT").CurrentPrice != 45 {
		t.Error("Expected non-positive marks ignored")
	}
}

func TestPositionBookSkipsMalformed(t *testing.T) {
	book := FoldPositions([]types.TradeHistoryEntry{
		fill("BTCUSDT", types.SideBuy, 100, 1),
		fill("BTCUSDT", types.SideBuy, -5, 1),
		fill("BTCUSDT", types.SideBuy, 100, 0),
		fill("BTCUSDT", "HODL", 100, 1),
	})

	if book.Skipped() != 3 {
		t.Errorf("Expected 3 skipped fills, got %d", book.Skipped())
	}
	p := book.Position("BTCUSDT")
	if p == nil || p.BaseQty != 1 {
		t.Error("Expected only the valid fill applied")
	}
}

func TestCalculateMetrics(t *testing.T) {
	history := []types.TradeHistoryEntry{
		{Market: "BTCUSDT", Side: types.SideSell, Price: 100, Qty: 1, Fee: 0.1, RealizedPnl: 30},
		{Market: "BTCUSDT", Side: types.SideSell, Price: 100, Qty: 1, Fee: 0.1, RealizedPnl: -10},
		{Market: "BTCUSDT", Side: types.SideSell, Price: 100, Qty: 2, Fee: 0.2, RealizedPnl: 50},
		{Market: "BTCUSDT", Side: types.SideBuy, Price: 100, Qty: 1, Fee: 0.1, RealizedPnl: 0},
	}

	m := CalculateMetrics(history, 1000)
	if m.TotalTrades != 4 {
		t.Errorf("Expected 4 trades, got %d", m.TotalTrades)
	}
	if m.TotalVolume != 500 {
		t.Errorf("Expected volume 500, got %f", m.TotalVolume)
	}
	if math.Abs(m.TotalFeesPaid-0.5) > 1e-9 {
		t.Errorf("Expected fees 0.5, got %f", m.TotalFeesPaid)
	}
	if m.TotalRealizedPnl != 70 {
		t.Errorf("Expected realized 70, got %f", m.TotalRealizedPnl)
	}
	if m.WinningTrades != 2 || m.LosingTrades != 1 {
		t.Errorf("Expected 2 wins / 1 loss, got %d/%d", m.WinningTrades, m.LosingTrades)
	}
	if m.WinRate != 50 {
		t.Errorf("Expected win rate 50, got %f", m.WinRate)
	}
	if m.AverageProfitPerTrade != 40 {
		t.Errorf("Expected average profit 40, got %f", m.AverageProfitPerTrade)
	}
	if m.AverageLossPerTrade != -10 {
		t.Errorf("Expected average loss -10, got %f", m.AverageLossPerTrade)
	}
	if m.LargestWin != 50 || m.LargestLoss != -10 {
		t.Errorf("Expected largest 50/-10, got %f/%f", m.LargestWin, m.LargestLoss)
	}
	if m.ROI != 7 {
		t.Errorf("Expected ROI 7%%, got %f", m.ROI)
	}
}

func TestCalculateMetricsNoCapitalBase(t *testing.T) {
	history := []types.TradeHistoryEntry{
		{Market: "BTCUSDT", Side: types.SideSell, Price: 100, Qty: 1, RealizedPnl: 30},
	}

	m := CalculateMetrics(history, 0)
	if m.ROI != 0 {
		t.Errorf("Expected ROI 0 without a capital base, got %f", m.ROI)
	}
}

func TestCalculateMetricsEmpty(t *testing.T) {
	m := CalculateMetrics(nil, 1000)
	if m.TotalTrades != 0 || m.WinRate != 0 || m.ROI != 0 {
		t.Error("Expected zeroed metrics for an empty history")
	}
}

func TestCalculateMetricsSkipsMalformed(t *testing.T) {
	history := []types.TradeHistoryEntry{
		{Market: "BTCUSDT", Side: types.SideSell, Price: 100, Qty: 1, RealizedPnl: 10},
		{Market: "BTCUSDT", Side: types.SideSell, Price: 0, Qty: 1, RealizedPnl: 99},
		{Market: "BTCUSDT", Side: types.SideSell, Price: 100, Qty: -1, RealizedPnl: 99},
	}

	m := CalculateMetrics(history, 0)
	if m.Skipped != 2 {
		t.Errorf("Expected 2 skipped entries, got %d", m.Skipped)
	}
	if m.TotalTrades != 1 || m.TotalRealizedPnl != 10 {
		t.Error("Expected malformed entries excluded from every aggregate")
	}
}
