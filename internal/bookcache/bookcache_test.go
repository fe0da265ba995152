package bookcache

import (
	"testing"
	"time"

	"github.com/polyarb/arbengine/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestGet_ReturnsEmptyBookForUnknownAsset(t *testing.T) {
	c := New(time.Minute)
	snap, ok := c.Get("unknown")
	assert.False(t, ok)
	assert.Equal(t, EmptyBook("unknown"), snap)
}

func TestEmptyBook_YieldsMidHalfAndSpreadOne(t *testing.T) {
	snap := EmptyBook("unknown")
	assert.Equal(t, 0.5, snap.MidPrice)
	assert.Equal(t, 1.0, snap.Spread)
}

func TestPutThenGet_ReturnsStoredSnapshot(t *testing.T) {
	c := New(time.Minute)
	c.Put(domain.OrderbookSnapshot{AssetID: "tok-1", BestBid: 0.4, BestAsk: 0.5})

	snap, ok := c.Get("tok-1")
	assert.True(t, ok)
	assert.Equal(t, "tok-1", snap.AssetID)
	assert.Equal(t, 0.4, snap.BestBid)
	assert.Equal(t, 0.5, snap.BestAsk)
}

func TestGet_ReportsStaleAfterMaxAge(t *testing.T) {
	c := New(1 * time.Millisecond)
	c.Put(domain.OrderbookSnapshot{AssetID: "tok-1", BestBid: 0.4})
	time.Sleep(5 * time.Millisecond)

	snap, ok := c.Get("tok-1")
	assert.False(t, ok)
	assert.Equal(t, EmptyBook("tok-1"), snap)
}

func TestApplyPriceChange_InsertsNewLevel(t *testing.T) {
	c := New(time.Minute)
	c.Put(domain.OrderbookSnapshot{AssetID: "tok-1"})
	c.ApplyPriceChange(domain.PriceChange{AssetID: "tok-1", Side: "BUY", Price: 0.3, Size: 100})

	snap, ok := c.Get("tok-1")
	assert.True(t, ok)
	assert.Equal(t, 0.3, snap.BestBid)
}

func TestApplyPriceChange_UpdatesExistingLevelSize(t *testing.T) {
	c := New(time.Minute)
	c.Put(domain.OrderbookSnapshot{AssetID: "tok-1", Bids: []domain.PriceLevel{{Price: 0.3, Size: 100}}, BestBid: 0.3})
	c.ApplyPriceChange(domain.PriceChange{AssetID: "tok-1", Side: "BUY", Price: 0.3, Size: 250})

	snap, _ := c.Get("tok-1")
	assert.Len(t, snap.Bids, 1)
	assert.Equal(t, 250.0, snap.Bids[0].Size)
}

func TestApplyPriceChange_RemovesLevelWhenSizeZero(t *testing.T) {
	c := New(time.Minute)
	c.Put(domain.OrderbookSnapshot{AssetID: "tok-1", Bids: []domain.PriceLevel{{Price: 0.3, Size: 100}}, BestBid: 0.3})
	c.ApplyPriceChange(domain.PriceChange{AssetID: "tok-1", Side: "BUY", Price: 0.3, Size: 0})

	snap, _ := c.Get("tok-1")
	assert.Empty(t, snap.Bids)
	assert.Equal(t, 0.0, snap.BestBid)
}

func TestApplyPriceChange_RecomputesMidPrice(t *testing.T) {
	c := New(time.Minute)
	c.Put(domain.OrderbookSnapshot{AssetID: "tok-1"})
	c.ApplyPriceChange(domain.PriceChange{AssetID: "tok-1", Side: "BUY", Price: 0.4, Size: 100})
	c.ApplyPriceChange(domain.PriceChange{AssetID: "tok-1", Side: "SELL", Price: 0.6, Size: 100})

	snap, _ := c.Get("tok-1")
	assert.Equal(t, 0.4, snap.BestBid)
	assert.Equal(t, 0.6, snap.BestAsk)
	assert.InDelta(t, 0.5, snap.MidPrice, 1e-9)
	assert.InDelta(t, 0.2, snap.Spread, 1e-9)
}

func TestLen_CountsDistinctAssets(t *testing.T) {
	c := New(time.Minute)
	assert.Equal(t, 0, c.Len())
	c.Put(domain.OrderbookSnapshot{AssetID: "a"})
	c.Put(domain.OrderbookSnapshot{AssetID: "b"})
	c.Put(domain.OrderbookSnapshot{AssetID: "a"})
	assert.Equal(t, 2, c.Len())
}

func TestSnapshot_DelegatesToGet(t *testing.T) {
	c := New(time.Minute)
	c.Put(domain.OrderbookSnapshot{AssetID: "tok-1", BestBid: 0.1})
	snap, ok := c.Snapshot("tok-1")
	assert.True(t, ok)
	assert.Equal(t, 0.1, snap.BestBid)
}
