package binance

import (
	"context"
	"fmt"
	"time"

	"market-analytics/internal/types"
)

// GetCandles fetches up to limit klines for a market. Binance returns each
// kline as a mixed-type JSON array.
func (f *Feed) GetCandles(ctx context.Context, market string, tf types.Timeframe, limit int) ([]types.Candle, error) {
	var raw [][]any
	url := fmt.Sprintf("/api/v3/klines?symbol=%s&interval=%s&limit=%d", market, tf, limit)
	if err := f.rest.GETJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch candles for %s: %w", market, err)
	}

	candles := make([]types.Candle, 0, len(raw))
	for _, k := range raw {
		if len(k) < 6 {
			continue
		}
		openTime, ok := k[0].(float64)
		if !ok {
			continue
		}
		candles = append(candles, types.Candle{
			Ts:     int64(openTime),
			Open:   parseField(k[1]),
			High:   parseField(k[2]),
			Low:    parseField(k[3]),
			Close:  parseField(k[4]),
			Vol:    parseField(k[5]),
			Closed: true,
		})
	}
	// The last kline of the response is the still-forming interval.
	if len(candles) > 0 {
		candles[len(candles)-1].Closed = false
	}
	return candles, nil
}

// GetRecentTrades fetches the most recent trades for a market, newest last
// on the wire; the result is returned newest first.
func (f *Feed) GetRecentTrades(ctx context.Context, market string, limit int) ([]types.Trade, error) {
	var raw []struct {
		ID           int64  `json:"id"`
		Price        string `json:"price"`
		Qty          string `json:"qty"`
		Time         int64  `json:"time"`
		IsBuyerMaker bool   `json:"isBuyerMaker"`
	}
	url := fmt.Sprintf("/api/v3/trades?symbol=%s&limit=%d", market, limit)
	if err := f.rest.GETJSON(ctx, url, &raw); err != nil {
		return nil, fmt.Errorf("failed to fetch trades for %s: %w", market, err)
	}

	trades := make([]types.Trade, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		t := raw[i]
		side := types.SideBuy
		if t.IsBuyerMaker {
			side = types.SideSell
		}
		trades = append(trades, types.Trade{
			ID:    fmt.Sprintf("%d", t.ID),
			Price: parseFloat(t.Price),
			Qty:   parseFloat(t.Qty),
			Side:  side,
			Ts:    t.Time,
		})
	}
	return trades, nil
}

// GetOrderBook fetches a book snapshot limited to depth levels per side.
func (f *Feed) GetOrderBook(ctx context.Context, market string, depth int) (types.OrderBook, error) {
	if depth <= 0 {
		depth = f.params.BookDepth
	}
	var raw struct {
		LastUpdateID int64      `json:"lastUpdateId"`
		Bids         [][]string `json:"bids"`
		Asks         [][]string `json:"asks"`
	}
	url := fmt.Sprintf("/api/v3/depth?symbol=%s&limit=%d", market, depth)
	if err := f.rest.GETJSON(ctx, url, &raw); err != nil {
		return types.OrderBook{}, fmt.Errorf("failed to fetch order book for %s: %w", market, err)
	}
	return types.OrderBook{
		Bids: parseLevels(raw.Bids),
		Asks: parseLevels(raw.Asks),
		Ts:   time.Now().UnixMilli(),
	}, nil
}

func parseField(v any) float64 {
	s, ok := v.(string)
	if !ok {
		return 0
	}
	return parseFloat(s)
}
