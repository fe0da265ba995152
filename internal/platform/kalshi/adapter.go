package kalshi

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/polyarb/arbengine/internal/domain"
	"github.com/polyarb/arbengine/internal/venue"
)

// Adapter wires the Kalshi REST client behind the venue-agnostic
// venue.Adapter interface.
type Adapter struct {
	client *Client
}

// NewAdapter builds a Kalshi venue.Adapter.
func NewAdapter(client *Client) *Adapter {
	return &Adapter{client: client}
}

func (a *Adapter) Venue() domain.Venue { return domain.VenueKalshi }

func (a *Adapter) ListMarkets(ctx context.Context, limit, offset int) ([]domain.Market, error) {
	markets, err := a.client.GetMarkets(ctx, fmt.Sprintf("%d", limit), "")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Market, 0, len(markets))
	for i := range markets {
		out = append(out, markets[i].ToDomainMarket())
	}
	return out, nil
}

func (a *Adapter) GetMarket(ctx context.Context, marketID string) (domain.Market, error) {
	m, err := a.client.GetMarket(ctx, marketID)
	if err != nil {
		return domain.Market{}, err
	}
	return m.ToDomainMarket(), nil
}

func (a *Adapter) GetOrderbook(ctx context.Context, tokenID string) (domain.OrderbookSnapshot, error) {
	ob, err := a.client.GetOrderbook(ctx, tokenID)
	if err != nil {
		return domain.OrderbookSnapshot{}, err
	}
	return ob.ToDomainOrderbookSnapshot(), nil
}

func (a *Adapter) PlaceOrder(ctx context.Context, req venue.OrderRequest) (venue.OrderAck, error) {
	priceCents := decimal.NewFromFloat(req.LimitPrice).Mul(decimal.New(100, 0)).Round(0).IntPart()
	if priceCents < 1 {
		priceCents = 1
	}
	if priceCents > 99 {
		priceCents = 99
	}

	order := KalshiOrder{
		Ticker: req.TokenID,
		Action: kalshiAction(req.Side),
		Side:   "yes",
		Type:   "limit",
		Count:  kalshiContractCount(req.SizeUSD, req.LimitPrice),
	}
	order.YesPrice = &priceCents

	if err := a.client.PlaceOrder(ctx, order); err != nil {
		return venue.OrderAck{}, fmt.Errorf("kalshi: %w", err)
	}

	return venue.OrderAck{Status: domain.LegStatusFilled}, nil
}

func (a *Adapter) CancelOrder(ctx context.Context, orderID string) error {
	return a.client.CancelOrder(ctx, orderID)
}

func kalshiAction(s domain.Side) string {
	if s == domain.SideSell {
		return "sell"
	}
	return "buy"
}

// kalshiContractCount converts a USD notional at a given YES price into a
// whole number of Kalshi contracts (each contract settles at $1).
func kalshiContractCount(sizeUSD, price float64) int64 {
	if price <= 0 {
		return 0
	}
	n := int64(sizeUSD/price + 0.5)
	if n < 1 {
		n = 1
	}
	return n
}
