package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/polyarb/arbengine/internal/bookcache"
	"github.com/polyarb/arbengine/internal/domain"
	"github.com/polyarb/arbengine/internal/projection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestOrchestrator() *Orchestrator {
	return &Orchestrator{
		books:     bookcache.New(time.Minute),
		logger:    noopLogger(),
		marketIdx: make(map[string]int),
		cfg:       Config{},
	}
}

func TestBuildOpportunity_OnlyIncludesLegsWithNonZeroDelta(t *testing.T) {
	o := newTestOrchestrator()
	o.cfg.MaxTradeUSD = 50
	o.markets = []domain.Market{
		{ID: "m1", Venue: domain.VenuePolymarket, TokenIDs: [2]string{"y1", "n1"}, Volume: 1000},
		{ID: "m2", Venue: domain.VenuePolymarket, TokenIDs: [2]string{"y2", "n2"}, Volume: 2000},
	}

	fw := projection.Result{
		Optimal:     []float64{0.6, 0.5},
		TradeVector: []float64{0.1, 0},
		Profit:      0.05,
		Converged:   true,
		Iterations:  7,
	}
	prices := []float64{0.5, 0.5}

	opp := o.buildOpportunity(fw, prices)

	require.Len(t, opp.Legs, 1)
	assert.Equal(t, "m1", opp.Legs[0].MarketID)
	assert.Equal(t, 0.1, opp.Legs[0].TradeSize)
	assert.True(t, opp.Converged)
	assert.Equal(t, 7, opp.Iterations)
	assert.Equal(t, 50.0, opp.TradeNotional)
	assert.Equal(t, opp.ProfitMetric*opp.TradeNotional, opp.ExpectedProfitUSD)
}

func TestBuildOpportunity_NotionalIsFixedConfiguredValueRegardlessOfVolume(t *testing.T) {
	o := newTestOrchestrator()
	o.cfg.MaxTradeUSD = 25
	o.markets = []domain.Market{
		{ID: "m1", Venue: domain.VenuePolymarket, TokenIDs: [2]string{"y1", "n1"}, Volume: 0},
		{ID: "m2", Venue: domain.VenuePolymarket, TokenIDs: [2]string{"y2", "n2"}, Volume: 9_000_000},
	}
	fw := projection.Result{
		Optimal:     []float64{0.6, 0.4},
		TradeVector: []float64{0.1, -0.1},
		Profit:      0.02,
	}
	opp := o.buildOpportunity(fw, []float64{0.5, 0.5})
	require.Len(t, opp.Legs, 2)
	assert.Equal(t, 25.0, opp.TradeNotional)
}

func TestEstimateSlippageCost_WalksBookForEachLeg(t *testing.T) {
	o := newTestOrchestrator()
	o.books.Put(domain.OrderbookSnapshot{
		AssetID: "yes1",
		Asks:    []domain.PriceLevel{{Price: 0.5, Size: 1000}},
		BestAsk: 0.5,
	})
	o.books.Put(domain.OrderbookSnapshot{
		AssetID: "no1",
		Bids:    []domain.PriceLevel{{Price: 0.4, Size: 1000}},
		BestBid: 0.4,
	})

	opp := domain.Opportunity{
		TradeNotional: 100,
		Legs: []domain.MarketLeg{
			{YesTokenID: "yes1", NoTokenID: "no1", ObservedPrice: 0.5, ProjectedYes: 0.6, TradeSize: 0.1},
		},
	}
	cost := o.estimateSlippageCost(opp)
	assert.GreaterOrEqual(t, cost, 0.0)
}

func TestAbs(t *testing.T) {
	assert.Equal(t, 3.0, abs(-3))
	assert.Equal(t, 3.0, abs(3))
	assert.Equal(t, 0.0, abs(0))
}

type fakeOppStore struct {
	mu       sync.Mutex
	inserted []domain.Opportunity
}

func (f *fakeOppStore) Insert(ctx context.Context, opp domain.Opportunity) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, opp)
	return nil
}
func (f *fakeOppStore) ListRecent(ctx context.Context, limit int) ([]domain.Opportunity, error) {
	return nil, nil
}

type fakeSignalBus struct {
	published chan struct {
		channel string
		payload []byte
	}
}

func newFakeSignalBus() *fakeSignalBus {
	return &fakeSignalBus{published: make(chan struct {
		channel string
		payload []byte
	}, 8)}
}

func (f *fakeSignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	f.published <- struct {
		channel string
		payload []byte
	}{channel, payload}
	return nil
}
func (f *fakeSignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	return nil, nil
}
func (f *fakeSignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	return nil
}
func (f *fakeSignalBus) StreamRead(ctx context.Context, stream string, lastID string, count int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func TestMirrorOpportunity_InsertsAndPublishesWhenWired(t *testing.T) {
	o := newTestOrchestrator()
	store := &fakeOppStore{}
	bus := newFakeSignalBus()
	o.SetMirrorStores(store, nil)
	o.SetSignalBus(bus)

	opp := domain.Opportunity{ID: "opp-1"}
	o.mirrorOpportunity(opp)

	select {
	case msg := <-bus.published:
		assert.Equal(t, opportunitiesChannel, msg.channel)
		assert.Contains(t, string(msg.payload), "opp-1")
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for publish")
	}

	require.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return len(store.inserted) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestMirrorOpportunity_NoopWhenNothingWired(t *testing.T) {
	o := newTestOrchestrator()
	o.mirrorOpportunity(domain.Opportunity{ID: "opp-1"}) // must not panic or block
}

func TestPublish_NoopWithNilSignalBus(t *testing.T) {
	o := newTestOrchestrator()
	o.publish(context.Background(), opportunitiesChannel, domain.Opportunity{})
}
