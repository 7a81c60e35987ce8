// Package binance implements the feed contract against Binance spot market
// data: a combined websocket stream for pushes and the public REST API for
// snapshots.
package binance

import (
	"context"
	"strconv"
	"strings"
	"time"

	"market-analytics/internal/api"
	"market-analytics/internal/feed"
	"market-analytics/internal/interfaces"
	"market-analytics/internal/logger"
	"market-analytics/internal/types"
)

const (
	defaultWSURL   = "wss://stream.binance.com:9443/stream"
	defaultRESTURL = "https://api.binance.com"

	minBackoff = time.Second
	maxBackoff = 16 * time.Second
)

type Params struct {
	WSURL     string
	RESTURL   string
	Markets   []string
	Timeframe types.Timeframe
	BookDepth int
}

type Feed struct {
	*feed.Dispatcher

	params Params
	rest   *api.Client

	cancel context.CancelFunc
	done   chan struct{}
}

var _ interfaces.Feed = (*Feed)(nil)

func New(p Params) *Feed {
	if p.WSURL == "" {
		p.WSURL = defaultWSURL
	}
	if p.RESTURL == "" {
		p.RESTURL = defaultRESTURL
	}
	if p.Timeframe == "" {
		p.Timeframe = types.Timeframe1m
	}
	if p.BookDepth <= 0 {
		p.BookDepth = 20
	}
	return &Feed{
		Dispatcher: feed.NewDispatcher(),
		params:     p,
		rest: api.NewClient(
			api.WithBaseURL(p.RESTURL),
			api.WithTimeout(15*time.Second),
			api.WithLogging(true),
		),
	}
}

// Start launches the websocket read loop. Reconnects with capped backoff
// until the feed is stopped.
func (f *Feed) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	f.cancel = cancel
	f.done = make(chan struct{})
	go f.run(runCtx)
	logger.Info(ctx, "Binance feed started", "markets", f.params.Markets, "timeframe", string(f.params.Timeframe))
	return nil
}

func (f *Feed) Stop(ctx context.Context) {
	if f.cancel != nil {
		f.cancel()
		<-f.done
	}
	logger.Info(ctx, "Binance feed stopped")
}

// streamDepth maps the configured book depth onto the partial-depth sizes
// Binance actually serves (5, 10 or 20 levels).
func (f *Feed) streamDepth() int {
	switch {
	case f.params.BookDepth <= 5:
		return 5
	case f.params.BookDepth <= 10:
		return 10
	default:
		return 20
	}
}

// streamURL builds the combined-stream URL covering kline, aggTrade and
// partial-depth streams for every configured market.
func (f *Feed) streamURL() string {
	depth := "@depth" + strconv.Itoa(f.streamDepth()) + "@100ms"
	streams := make([]string, 0, len(f.params.Markets)*3)
	for _, m := range f.params.Markets {
		sym := strings.ToLower(m)
		streams = append(streams,
			sym+"@kline_"+string(f.params.Timeframe),
			sym+"@aggTrade",
			sym+depth,
		)
	}
	return f.params.WSURL + "?streams=" + strings.Join(streams, "/")
}
