package polymarket

import (
	"context"
	"fmt"

	"github.com/polyarb/arbengine/internal/domain"
	"github.com/polyarb/arbengine/internal/venue"
)

// Adapter wires the Gamma discovery client and CLOB trading client behind
// the venue-agnostic venue.Adapter interface.
type Adapter struct {
	gamma *GammaClient
	clob  *ClobClient
}

// NewAdapter builds a Polymarket venue.Adapter.
func NewAdapter(gamma *GammaClient, clob *ClobClient) *Adapter {
	return &Adapter{gamma: gamma, clob: clob}
}

func (a *Adapter) Venue() domain.Venue { return domain.VenuePolymarket }

func (a *Adapter) ListMarkets(ctx context.Context, limit, offset int) ([]domain.Market, error) {
	return a.gamma.GetMarkets(ctx, limit, offset)
}

func (a *Adapter) GetMarket(ctx context.Context, marketID string) (domain.Market, error) {
	return a.gamma.GetMarket(ctx, marketID)
}

// GetOrderbook is not used on the REST hot path: book state is maintained
// by the WebSocket feed and internal/bookcache. It exists to satisfy
// venue.Adapter for cold-start and recovery paths.
func (a *Adapter) GetOrderbook(ctx context.Context, tokenID string) (domain.OrderbookSnapshot, error) {
	return domain.OrderbookSnapshot{}, fmt.Errorf("polymarket: %w: REST orderbook snapshot not implemented, use the WS feed", domain.ErrNotFound)
}

func (a *Adapter) PlaceOrder(ctx context.Context, req venue.OrderRequest) (venue.OrderAck, error) {
	return a.clob.PlaceOrder(ctx, req)
}

func (a *Adapter) CancelOrder(ctx context.Context, orderID string) error {
	return a.clob.CancelOrder(ctx, orderID)
}
