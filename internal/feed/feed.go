// Package feed wraps each venue's WebSocket client in a reconnecting
// long-lived task that writes every update straight into the order book
// cache, and exposes Subscribe so the cycle orchestrator can add newly
// discovered markets to the live feed without tearing down the connection.
package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/polyarb/arbengine/internal/bookcache"
	"github.com/polyarb/arbengine/internal/platform/kalshi"
	"github.com/polyarb/arbengine/internal/platform/polymarket"
)

// PolymarketFeed owns the Polymarket CLOB WebSocket connection and routes
// every book/price_change message into the shared order book cache.
type PolymarketFeed struct {
	client *polymarket.WSClient
	books  *bookcache.Cache
	logger *slog.Logger
}

// NewPolymarketFeed creates a feed bound to wsURL, writing every update to
// books.
func NewPolymarketFeed(wsURL string, books *bookcache.Cache, logger *slog.Logger) *PolymarketFeed {
	client := polymarket.NewWSClient(wsURL)
	f := &PolymarketFeed{
		client: client,
		books:  books,
		logger: logger.With(slog.String("component", "polymarket_feed")),
	}
	client.OnBookUpdate(books.Put)
	client.OnPriceChange(books.ApplyPriceChange)
	return f
}

// Run connects and blocks until ctx is cancelled; the underlying client
// reconnects on disconnect with exponential backoff capped at 60s.
func (f *PolymarketFeed) Run(ctx context.Context) error {
	if err := f.client.Connect(ctx); err != nil {
		return err
	}
	f.logger.Info("connected")
	<-ctx.Done()
	return f.client.Close()
}

// Subscribe adds the given asset IDs to the live book/price_change
// subscription. Safe to call repeatedly as the market set grows; each call
// sends every ID it is given, including IDs already subscribed.
func (f *PolymarketFeed) Subscribe(assetIDs []string) error {
	if len(assetIDs) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return f.client.Subscribe(ctx, assetIDs)
}

// KalshiFeed owns the Kalshi WebSocket connection and routes every
// orderbook_delta message into the shared order book cache.
type KalshiFeed struct {
	client *kalshi.WSClient
	books  *bookcache.Cache
	logger *slog.Logger
}

// NewKalshiFeed creates a feed bound to wsURL, writing every update to
// books.
func NewKalshiFeed(wsURL string, books *bookcache.Cache, logger *slog.Logger) *KalshiFeed {
	client := kalshi.NewWSClient(wsURL)
	f := &KalshiFeed{
		client: client,
		books:  books,
		logger: logger.With(slog.String("component", "kalshi_feed")),
	}
	client.OnOrderbook(func(ob kalshi.KalshiOrderbook) {
		books.Put(ob.ToDomainOrderbookSnapshot())
	})
	return f
}

// Run connects and blocks until ctx is cancelled.
func (f *KalshiFeed) Run(ctx context.Context) error {
	if err := f.client.Connect(ctx); err != nil {
		return err
	}
	f.logger.Info("connected")
	<-ctx.Done()
	return f.client.Close()
}

// Subscribe adds the given market tickers to the live orderbook_delta
// subscription.
func (f *KalshiFeed) Subscribe(tickers []string) error {
	if len(tickers) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return f.client.Subscribe(ctx, tickers)
}
