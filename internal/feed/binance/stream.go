package binance

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"market-analytics/internal/logger"
	"market-analytics/internal/types"

	"github.com/gorilla/websocket"
)

// combinedMessage is the envelope of the combined-stream endpoint.
type combinedMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type klineEvent struct {
	Symbol string `json:"s"`
	Kline  struct {
		OpenTime int64  `json:"t"`
		Open     string `json:"o"`
		High     string `json:"h"`
		Low      string `json:"l"`
		Close    string `json:"c"`
		Volume   string `json:"v"`
		Closed   bool   `json:"x"`
	} `json:"k"`
}

type aggTradeEvent struct {
	Symbol       string `json:"s"`
	TradeID      int64  `json:"a"`
	Price        string `json:"p"`
	Qty          string `json:"q"`
	TradeTime    int64  `json:"T"`
	IsBuyerMaker bool   `json:"m"`
}

type depthEvent struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// run keeps one websocket connection to the combined stream alive,
// reconnecting with capped exponential backoff.
func (f *Feed) run(ctx context.Context) {
	defer close(f.done)

	url := f.streamURL()
	backoff := minBackoff
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Feed stream loop shutting down")
			return
		default:
		}

		logger.Info(ctx, "Connecting to market data stream", "url", url, "backoff", backoff)
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
		if err != nil {
			logger.ErrorWithErr(ctx, "Stream connection failed", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
				backoff *= 2
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
			}
			continue
		}

		backoff = minBackoff
		logger.Info(ctx, "Market data stream connected")
		f.readLoop(ctx, conn)
		conn.Close()
	}
}

func (f *Feed) readLoop(ctx context.Context, conn *websocket.Conn) {
	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.ErrorWithErr(ctx, "Failed to read stream message", err)
			}
			return
		}
		f.handleMessage(ctx, message)
	}
}

func (f *Feed) handleMessage(ctx context.Context, message []byte) {
	var env combinedMessage
	if err := json.Unmarshal(message, &env); err != nil {
		logger.Warn(ctx, "Failed to parse stream envelope", "error", err)
		return
	}

	switch {
	case strings.Contains(env.Stream, "@kline"):
		f.handleKline(ctx, env.Data)
	case strings.Contains(env.Stream, "@aggTrade"):
		f.handleAggTrade(ctx, env.Data)
	case strings.Contains(env.Stream, "@depth"):
		f.handleDepth(ctx, env.Stream, env.Data)
	}
}

func (f *Feed) handleKline(ctx context.Context, data json.RawMessage) {
	var ev klineEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		logger.Warn(ctx, "Failed to parse kline event", "error", err)
		return
	}
	candle := types.Candle{
		Ts:     ev.Kline.OpenTime,
		Open:   parseFloat(ev.Kline.Open),
		High:   parseFloat(ev.Kline.High),
		Low:    parseFloat(ev.Kline.Low),
		Close:  parseFloat(ev.Kline.Close),
		Vol:    parseFloat(ev.Kline.Volume),
		Closed: ev.Kline.Closed,
	}
	f.EmitCandle(ev.Symbol, f.params.Timeframe, candle)
}

func (f *Feed) handleAggTrade(ctx context.Context, data json.RawMessage) {
	var ev aggTradeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		logger.Warn(ctx, "Failed to parse trade event", "error", err)
		return
	}
	// Buyer-maker means the taker hit the bid: a sell.
	side := types.SideBuy
	if ev.IsBuyerMaker {
		side = types.SideSell
	}
	trade := types.Trade{
		ID:    strconv.FormatInt(ev.TradeID, 10),
		Price: parseFloat(ev.Price),
		Qty:   parseFloat(ev.Qty),
		Side:  side,
		Ts:    ev.TradeTime,
	}
	f.EmitTrade(ev.Symbol, trade)
}

func (f *Feed) handleDepth(ctx context.Context, stream string, data json.RawMessage) {
	var ev depthEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		logger.Warn(ctx, "Failed to parse depth event", "error", err)
		return
	}
	market := marketFromStream(stream, f.params.Markets)
	if market == "" {
		return
	}
	book := types.OrderBook{
		Bids: parseLevels(ev.Bids),
		Asks: parseLevels(ev.Asks),
		Ts:   time.Now().UnixMilli(),
	}
	f.EmitOrderBook(market, book)
}

// marketFromStream recovers the configured market symbol from the stream
// name prefix; partial depth events carry no symbol field.
func marketFromStream(stream string, markets []string) string {
	sym, _, ok := strings.Cut(stream, "@")
	if !ok {
		return ""
	}
	for _, m := range markets {
		if strings.EqualFold(m, sym) {
			return m
		}
	}
	return ""
}

func parseLevels(raw [][]string) []types.RawLevel {
	out := make([]types.RawLevel, 0, len(raw))
	for _, l := range raw {
		if len(l) < 2 {
			continue
		}
		out = append(out, types.RawLevel{Price: parseFloat(l[0]), Qty: parseFloat(l[1])})
	}
	return out
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
