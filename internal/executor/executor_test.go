package executor

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/polyarb/arbengine/internal/domain"
	"github.com/polyarb/arbengine/internal/venue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func book(bids, asks []domain.PriceLevel) domain.OrderbookSnapshot {
	snap := domain.OrderbookSnapshot{Bids: bids, Asks: asks}
	if len(bids) > 0 {
		snap.BestBid = bids[0].Price
	}
	if len(asks) > 0 {
		snap.BestAsk = asks[0].Price
	}
	return snap
}

func TestVWAP_WalksAsksUntilNotionalExhausted(t *testing.T) {
	b := book(nil, []domain.PriceLevel{{Price: 0.5, Size: 10}, {Price: 0.6, Size: 10}})
	vwap := VWAP(b, domain.SideBuy, 8) // 8 / 0.5 = 16 units, but level 1 only has 10*0.5=5 notional
	assert.Greater(t, vwap, 0.5)
	assert.Less(t, vwap, 0.6)
}

func TestVWAP_NoDepthReturnsZero(t *testing.T) {
	b := book(nil, nil)
	assert.Equal(t, 0.0, VWAP(b, domain.SideBuy, 10))
}

func TestSlippage_MaxWhenNoBest(t *testing.T) {
	b := book(nil, nil)
	assert.Equal(t, 1.0, Slippage(b, domain.SideBuy, 10))
}

func TestSlippage_ZeroWhenVWAPEqualsBest(t *testing.T) {
	b := book(nil, []domain.PriceLevel{{Price: 0.5, Size: 1000}})
	assert.InDelta(t, 0.0, Slippage(b, domain.SideBuy, 10), 1e-9)
}

type fakeRegistry struct {
	adapters map[domain.Venue]venue.Adapter
}

func (r *fakeRegistry) Adapter(v domain.Venue) (venue.Adapter, bool) {
	a, ok := r.adapters[v]
	return a, ok
}

type fakeAdapter struct {
	venue     domain.Venue
	ackStatus domain.LegStatus
	err       error
}

func (a *fakeAdapter) Venue() domain.Venue { return a.venue }
func (a *fakeAdapter) ListMarkets(ctx context.Context, limit, offset int) ([]domain.Market, error) {
	return nil, nil
}
func (a *fakeAdapter) GetMarket(ctx context.Context, id string) (domain.Market, error) {
	return domain.Market{}, nil
}
func (a *fakeAdapter) GetOrderbook(ctx context.Context, id string) (domain.OrderbookSnapshot, error) {
	return domain.OrderbookSnapshot{}, nil
}
func (a *fakeAdapter) PlaceOrder(ctx context.Context, req venue.OrderRequest) (venue.OrderAck, error) {
	if a.err != nil {
		return venue.OrderAck{}, a.err
	}
	return venue.OrderAck{OrderID: "ord-1", Status: a.ackStatus}, nil
}
func (a *fakeAdapter) CancelOrder(ctx context.Context, orderID string) error { return nil }

type fakeBooks struct {
	books map[string]domain.OrderbookSnapshot
}

func (b *fakeBooks) Snapshot(assetID string) (domain.OrderbookSnapshot, bool) {
	snap, ok := b.books[assetID]
	return snap, ok
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(noopWriter{}, nil))
}

type noopWriter struct{}

func (noopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestExecute_FillsAllLegs(t *testing.T) {
	registry := &fakeRegistry{adapters: map[domain.Venue]venue.Adapter{
		domain.VenuePolymarket: &fakeAdapter{venue: domain.VenuePolymarket, ackStatus: domain.LegStatusFilled},
	}}
	books := &fakeBooks{books: map[string]domain.OrderbookSnapshot{
		"yes-tok": book(nil, []domain.PriceLevel{{Price: 0.4, Size: 1000}}),
	}}

	e := New(registry, books, Config{FeeRate: 0.01, MinProfitUSD: 0.01, MaxExposureUSD: 1000}, testLogger())

	opp := domain.Opportunity{
		ID:                "opp-1",
		ProfitMetric:       0.1,
		TradeNotional:      100,
		ExpectedProfitUSD:  10,
		Legs: []domain.MarketLeg{
			{MarketID: "m1", Venue: domain.VenuePolymarket, YesTokenID: "yes-tok", NoTokenID: "no-tok", ObservedPrice: 0.4, ProjectedYes: 0.5, TradeSize: 0.1},
		},
	}

	result := e.Execute(context.Background(), opp, time.Now())
	require.Len(t, result.Legs, 1)
	assert.Equal(t, domain.TradeStatusFilled, result.Status)
	assert.Equal(t, domain.LegStatusFilled, result.Legs[0].Status)
}

func TestExecute_AbortsUnprofitable(t *testing.T) {
	registry := &fakeRegistry{adapters: map[domain.Venue]venue.Adapter{}}
	books := &fakeBooks{books: map[string]domain.OrderbookSnapshot{}}
	e := New(registry, books, Config{FeeRate: 0.5, MinProfitUSD: 100, MaxExposureUSD: 1000}, testLogger())

	opp := domain.Opportunity{
		ID:             "opp-2",
		ProfitMetric:   0.01,
		TradeNotional:  10,
		Legs: []domain.MarketLeg{
			{MarketID: "m1", YesTokenID: "yes-tok", NoTokenID: "no-tok", ObservedPrice: 0.4, ProjectedYes: 0.5, TradeSize: 0.1},
		},
	}

	result := e.Execute(context.Background(), opp, time.Now())
	assert.Equal(t, domain.TradeStatusAbortedSlippage, result.Status)
	assert.Empty(t, result.Legs)
}

func TestExecute_SkipsExtremePrice(t *testing.T) {
	registry := &fakeRegistry{adapters: map[domain.Venue]venue.Adapter{
		domain.VenuePolymarket: &fakeAdapter{venue: domain.VenuePolymarket, ackStatus: domain.LegStatusFilled},
	}}
	books := &fakeBooks{books: map[string]domain.OrderbookSnapshot{
		"yes-tok": book(nil, []domain.PriceLevel{{Price: 0.0001, Size: 1000}}),
	}}
	e := New(registry, books, Config{FeeRate: 0.0, MinProfitUSD: 0, MaxExposureUSD: 1000}, testLogger())

	opp := domain.Opportunity{
		ID:            "opp-3",
		ProfitMetric:  0.5,
		TradeNotional: 100,
		Legs: []domain.MarketLeg{
			{MarketID: "m1", Venue: domain.VenuePolymarket, YesTokenID: "yes-tok", NoTokenID: "no-tok", ObservedPrice: 0.0001, ProjectedYes: 0.1, TradeSize: 0.1},
		},
	}

	result := e.Execute(context.Background(), opp, time.Now())
	require.Len(t, result.Legs, 1)
	assert.Equal(t, domain.LegStatusSkipped, result.Legs[0].Status)
}

func TestExecute_AllOrNoneAbortsWholeTradeWhenOneLegSkipped(t *testing.T) {
	registry := &fakeRegistry{adapters: map[domain.Venue]venue.Adapter{
		domain.VenuePolymarket: &fakeAdapter{venue: domain.VenuePolymarket, ackStatus: domain.LegStatusFilled},
	}}
	books := &fakeBooks{books: map[string]domain.OrderbookSnapshot{
		"yes-tok-1": book(nil, []domain.PriceLevel{{Price: 0.4, Size: 1000}}),
		"yes-tok-2": book(nil, []domain.PriceLevel{{Price: 0.0001, Size: 1000}}), // extreme, skipped
	}}
	e := New(registry, books, Config{
		FeeRate: 0, MinProfitUSD: 0, MaxExposureUSD: 1000, LegPolicy: domain.LegPolicyAllOrNone,
	}, testLogger())

	opp := domain.Opportunity{
		ID:            "opp-all-or-none",
		ProfitMetric:  0.5,
		TradeNotional: 100,
		Legs: []domain.MarketLeg{
			{MarketID: "m1", Venue: domain.VenuePolymarket, YesTokenID: "yes-tok-1", NoTokenID: "no-tok-1", ObservedPrice: 0.4, ProjectedYes: 0.5, TradeSize: 0.1},
			{MarketID: "m2", Venue: domain.VenuePolymarket, YesTokenID: "yes-tok-2", NoTokenID: "no-tok-2", ObservedPrice: 0.0001, ProjectedYes: 0.1, TradeSize: 0.1},
		},
	}

	result := e.Execute(context.Background(), opp, time.Now())
	assert.Equal(t, domain.TradeStatusAbortedPrice, result.Status)
	for _, l := range result.Legs {
		assert.NotEqual(t, domain.LegStatusFilled, l.Status)
	}
}

func TestExecute_SequentialStopsAfterFirstFailure(t *testing.T) {
	registry := &fakeRegistry{adapters: map[domain.Venue]venue.Adapter{
		domain.VenuePolymarket: &fakeAdapter{venue: domain.VenuePolymarket, err: assert.AnError},
	}}
	books := &fakeBooks{books: map[string]domain.OrderbookSnapshot{
		"yes-tok-1": book(nil, []domain.PriceLevel{{Price: 0.4, Size: 1000}}),
		"yes-tok-2": book(nil, []domain.PriceLevel{{Price: 0.4, Size: 1000}}),
	}}
	e := New(registry, books, Config{
		FeeRate: 0, MinProfitUSD: 0, MaxExposureUSD: 1000, LegPolicy: domain.LegPolicySequential,
	}, testLogger())

	opp := domain.Opportunity{
		ID:            "opp-sequential",
		ProfitMetric:  0.5,
		TradeNotional: 100,
		Legs: []domain.MarketLeg{
			{MarketID: "m1", Venue: domain.VenuePolymarket, YesTokenID: "yes-tok-1", NoTokenID: "no-tok-1", ObservedPrice: 0.4, ProjectedYes: 0.5, TradeSize: 0.1},
			{MarketID: "m2", Venue: domain.VenuePolymarket, YesTokenID: "yes-tok-2", NoTokenID: "no-tok-2", ObservedPrice: 0.4, ProjectedYes: 0.5, TradeSize: 0.1},
		},
	}

	result := e.Execute(context.Background(), opp, time.Now())
	require.Len(t, result.Legs, 1)
	assert.Equal(t, domain.LegStatusFailed, result.Legs[0].Status)
}

func TestExecute_TimesOutWhenLatencyBudgetAlreadyExceeded(t *testing.T) {
	registry := &fakeRegistry{adapters: map[domain.Venue]venue.Adapter{
		domain.VenuePolymarket: &fakeAdapter{venue: domain.VenuePolymarket, ackStatus: domain.LegStatusFilled},
	}}
	books := &fakeBooks{books: map[string]domain.OrderbookSnapshot{
		"yes-tok-1": book(nil, []domain.PriceLevel{{Price: 0.4, Size: 1000}}),
		"yes-tok-2": book(nil, []domain.PriceLevel{{Price: 0.4, Size: 1000}}),
		"yes-tok-3": book(nil, []domain.PriceLevel{{Price: 0.4, Size: 1000}}),
		"yes-tok-4": book(nil, []domain.PriceLevel{{Price: 0.0001, Size: 1000}}), // extreme, skipped
	}}
	e := New(registry, books, Config{
		FeeRate: 0, MinProfitUSD: 0, MaxExposureUSD: 1000, LatencyBudget: DefaultLatencyBudget,
	}, testLogger())

	opp := domain.Opportunity{
		ID:            "opp-timeout",
		ProfitMetric:  0.5,
		TradeNotional: 100,
		Legs: []domain.MarketLeg{
			{MarketID: "m1", Venue: domain.VenuePolymarket, YesTokenID: "yes-tok-1", NoTokenID: "no-tok-1", ObservedPrice: 0.4, ProjectedYes: 0.5, TradeSize: 0.1},
			{MarketID: "m2", Venue: domain.VenuePolymarket, YesTokenID: "yes-tok-2", NoTokenID: "no-tok-2", ObservedPrice: 0.4, ProjectedYes: 0.5, TradeSize: 0.1},
			{MarketID: "m3", Venue: domain.VenuePolymarket, YesTokenID: "yes-tok-3", NoTokenID: "no-tok-3", ObservedPrice: 0.4, ProjectedYes: 0.5, TradeSize: 0.1},
			{MarketID: "m4", Venue: domain.VenuePolymarket, YesTokenID: "yes-tok-4", NoTokenID: "no-tok-4", ObservedPrice: 0.0001, ProjectedYes: 0.1, TradeSize: 0.1},
		},
	}

	// detectedAt is already 3000ms stale against a 2040ms budget, simulating
	// a cycle where per-leg book refreshes totalled more than the budget
	// before execution reached the surviving legs.
	detectedAt := time.Now().Add(-3000 * time.Millisecond)

	result := e.Execute(context.Background(), opp, detectedAt)
	assert.Equal(t, domain.TradeStatusTimeout, result.Status)
}

func TestExecute_DedupsRepeatedOpportunity(t *testing.T) {
	registry := &fakeRegistry{adapters: map[domain.Venue]venue.Adapter{}}
	books := &fakeBooks{books: map[string]domain.OrderbookSnapshot{}}
	e := New(registry, books, Config{FeeRate: 0, MinProfitUSD: 0, MaxExposureUSD: 1000}, testLogger())

	opp := domain.Opportunity{ID: "dup-1", ProfitMetric: 1, TradeNotional: 100}
	first := e.Execute(context.Background(), opp, time.Now())
	second := e.Execute(context.Background(), opp, time.Now())

	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, domain.TradeStatusAbortedProfit, second.Status)
}
