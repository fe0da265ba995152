package executor

import (
	"context"
	"testing"

	"github.com/polyarb/arbengine/internal/domain"
	"github.com/polyarb/arbengine/internal/venue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteCrossVenue_HedgeFillsBothLegs(t *testing.T) {
	registry := &fakeRegistry{adapters: map[domain.Venue]venue.Adapter{
		domain.VenuePolymarket: &fakeAdapter{venue: domain.VenuePolymarket, ackStatus: domain.LegStatusFilled},
		domain.VenueKalshi:     &fakeAdapter{venue: domain.VenueKalshi, ackStatus: domain.LegStatusFilled},
	}}
	books := &fakeBooks{books: map[string]domain.OrderbookSnapshot{
		"poly-yes":   book(nil, []domain.PriceLevel{{Price: 0.40, Size: 1000}}),
		"kalshi-mkt": book([]domain.PriceLevel{{Price: 0.60, Size: 1000}}, nil),
	}}
	e := New(registry, books, Config{FeeRate: 0.02, MinProfitUSD: 0, MaxExposureUSD: 1000}, testLogger())

	pm := domain.Market{ID: "poly-m1", Venue: domain.VenuePolymarket, TokenIDs: [2]string{"poly-yes", "poly-no"}}
	km := domain.Market{ID: "kalshi-mkt", Venue: domain.VenueKalshi, TokenIDs: [2]string{"kalshi-mkt", "kalshi-mkt"}}

	pair := domain.CrossVenuePair{
		PolymarketMarketID: pm.ID,
		KalshiMarketID:     km.ID,
		YesPricePolymarket: 0.40,
		YesPriceKalshi:     0.60,
		Spread:             0.20,
	}

	results := e.ExecuteCrossVenue(context.Background(),
		[]domain.CrossVenuePair{pair},
		func(id string) (domain.Market, bool) { return pm, id == pm.ID },
		func(id string) (domain.Market, bool) { return km, id == km.ID },
		100,
	)

	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, domain.TradeStatusFilled, res.Status)
	assert.Equal(t, "BUY_POLY_YES_BUY_KALSHI_NO", res.Action)
	assert.InDelta(t, 16.0, res.NetProfit, 1e-9)
	assert.Equal(t, domain.LegStatusFilled, res.PolyLeg.Status)
	assert.Equal(t, domain.LegStatusFilled, res.KalshiLeg.Status)
	assert.InDelta(t, 100, e.CurrentExposureUSD(), 1e-9)
}

func TestExecuteCrossVenue_AbortsOnExposureCap(t *testing.T) {
	registry := &fakeRegistry{adapters: map[domain.Venue]venue.Adapter{}}
	books := &fakeBooks{books: map[string]domain.OrderbookSnapshot{}}
	e := New(registry, books, Config{FeeRate: 0.02, MinProfitUSD: 0, MaxExposureUSD: 50}, testLogger())

	pm := domain.Market{ID: "poly-m1", Venue: domain.VenuePolymarket, TokenIDs: [2]string{"poly-yes", "poly-no"}}
	km := domain.Market{ID: "kalshi-mkt", Venue: domain.VenueKalshi, TokenIDs: [2]string{"kalshi-mkt", "kalshi-mkt"}}

	pair := domain.CrossVenuePair{
		PolymarketMarketID: pm.ID,
		KalshiMarketID:     km.ID,
		YesPricePolymarket: 0.40,
		YesPriceKalshi:     0.60,
		Spread:             0.20,
	}

	results := e.ExecuteCrossVenue(context.Background(),
		[]domain.CrossVenuePair{pair},
		func(id string) (domain.Market, bool) { return pm, id == pm.ID },
		func(id string) (domain.Market, bool) { return km, id == km.ID },
		100,
	)

	require.Len(t, results, 1)
	assert.Equal(t, domain.TradeStatusAbortedExposure, results[0].Status)
}

func TestExecuteCrossVenue_AbortsOnThinSpread(t *testing.T) {
	registry := &fakeRegistry{adapters: map[domain.Venue]venue.Adapter{}}
	books := &fakeBooks{books: map[string]domain.OrderbookSnapshot{}}
	e := New(registry, books, Config{FeeRate: 0.02, MinProfitUSD: 0, MaxExposureUSD: 1000}, testLogger())

	pm := domain.Market{ID: "poly-m1", Venue: domain.VenuePolymarket, TokenIDs: [2]string{"poly-yes", "poly-no"}}
	km := domain.Market{ID: "kalshi-mkt", Venue: domain.VenueKalshi, TokenIDs: [2]string{"kalshi-mkt", "kalshi-mkt"}}

	pair := domain.CrossVenuePair{
		PolymarketMarketID: pm.ID,
		KalshiMarketID:     km.ID,
		YesPricePolymarket: 0.49,
		YesPriceKalshi:     0.50,
		Spread:             0.01, // below 2*feeRate + 0.02 = 0.06
	}

	results := e.ExecuteCrossVenue(context.Background(),
		[]domain.CrossVenuePair{pair},
		func(id string) (domain.Market, bool) { return pm, id == pm.ID },
		func(id string) (domain.Market, bool) { return km, id == km.ID },
		100,
	)

	require.Len(t, results, 1)
	assert.Equal(t, domain.TradeStatusAbortedSlippage, results[0].Status)
}

func TestExecuteCrossVenue_AbortsOnIlliquidLeg(t *testing.T) {
	registry := &fakeRegistry{adapters: map[domain.Venue]venue.Adapter{}}
	books := &fakeBooks{books: map[string]domain.OrderbookSnapshot{}} // no depth for either asset
	e := New(registry, books, Config{FeeRate: 0.02, MinProfitUSD: 0, MaxExposureUSD: 1000}, testLogger())

	pm := domain.Market{ID: "poly-m1", Venue: domain.VenuePolymarket, TokenIDs: [2]string{"poly-yes", "poly-no"}}
	km := domain.Market{ID: "kalshi-mkt", Venue: domain.VenueKalshi, TokenIDs: [2]string{"kalshi-mkt", "kalshi-mkt"}}

	pair := domain.CrossVenuePair{
		PolymarketMarketID: pm.ID,
		KalshiMarketID:     km.ID,
		YesPricePolymarket: 0.40,
		YesPriceKalshi:     0.60,
		Spread:             0.20,
	}

	results := e.ExecuteCrossVenue(context.Background(),
		[]domain.CrossVenuePair{pair},
		func(id string) (domain.Market, bool) { return pm, id == pm.ID },
		func(id string) (domain.Market, bool) { return km, id == km.ID },
		100,
	)

	require.Len(t, results, 1)
	assert.Equal(t, domain.TradeStatusAbortedLiquidity, results[0].Status)
}
