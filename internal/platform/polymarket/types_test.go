package polymarket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/polyarb/arbengine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexBool_UnmarshalsFromBoolOrString(t *testing.T) {
	var b flexBool
	require.NoError(t, json.Unmarshal([]byte(`true`), &b))
	assert.True(t, bool(b))

	require.NoError(t, json.Unmarshal([]byte(`"true"`), &b))
	assert.True(t, bool(b))

	require.NoError(t, json.Unmarshal([]byte(`"false"`), &b))
	assert.False(t, bool(b))

	require.NoError(t, json.Unmarshal([]byte(`"1"`), &b))
	assert.True(t, bool(b))
}

func TestAPIMarket_ToDomainMarket_MapsStatusAndTokens(t *testing.T) {
	m := &APIMarket{
		ID:          "mkt-1",
		Question:    "Will it happen?",
		ConditionID: "cond-1",
		Volume:      "1234.5",
		Closed:      false,
		Active:      true,
		Tokens: []Token{
			{TokenID: "yes-tok", Outcome: "Yes"},
			{TokenID: "no-tok", Outcome: "No"},
		},
		CreatedAt: "2026-01-01T00:00:00Z",
		UpdatedAt: "2026-01-02T00:00:00Z",
	}

	dm := m.ToDomainMarket()
	assert.Equal(t, domain.VenuePolymarket, dm.Venue)
	assert.Equal(t, domain.MarketStatusActive, dm.Status)
	assert.Equal(t, 1234.5, dm.Volume)
	assert.Equal(t, "yes-tok", dm.TokenIDs[0])
	assert.Equal(t, "no-tok", dm.TokenIDs[1])
	assert.Equal(t, 2026, dm.CreatedAt.Year())
}

func TestAPIMarket_ToDomainMarket_ClosedTakesPriorityOverActive(t *testing.T) {
	m := &APIMarket{ID: "mkt-1", Closed: true, Active: true}
	dm := m.ToDomainMarket()
	assert.Equal(t, domain.MarketStatusClosed, dm.Status)
}

func TestAPIMarket_ToDomainMarket_DefaultsQuestionWhenEmpty(t *testing.T) {
	m := &APIMarket{ID: "mkt-1"}
	dm := m.ToDomainMarket()
	assert.Equal(t, "Unknown", dm.Question)
	assert.Equal(t, domain.MarketStatusSettled, dm.Status)
}

func TestBookToDomainSnapshot_ComputesTopOfBookAndMid(t *testing.T) {
	b := &BookMessage{
		AssetID: "tok-1",
		Bids: []WSPriceLevel{
			{Price: "0.40", Size: "100"},
			{Price: "0.35", Size: "50"},
		},
		Asks: []WSPriceLevel{
			{Price: "0.60", Size: "80"},
			{Price: "0.65", Size: "20"},
		},
		Timestamp: "1700000000",
	}

	snap := BookToDomainSnapshot(b)
	assert.Equal(t, "tok-1", snap.AssetID)
	assert.Equal(t, 0.40, snap.BestBid)
	assert.Equal(t, 0.60, snap.BestAsk)
	assert.InDelta(t, 0.50, snap.MidPrice, 1e-9)
	assert.Equal(t, time.Unix(1700000000, 0), snap.Timestamp)
	assert.Len(t, snap.Bids, 2)
	assert.Len(t, snap.Asks, 2)
}

func TestBookToDomainSnapshot_FallsBackToNowOnUnparsableTimestamp(t *testing.T) {
	b := &BookMessage{AssetID: "tok-1", Timestamp: "not-a-timestamp"}
	snap := BookToDomainSnapshot(b)
	assert.WithinDuration(t, time.Now(), snap.Timestamp, 5*time.Second)
}

func TestPriceChangeToDomain_ParsesFields(t *testing.T) {
	p := &PriceChangeMessage{AssetID: "tok-1", Side: "BUY", Price: "0.42", Size: "10", Timestamp: "1700000000"}
	pc := PriceChangeToDomain(p)
	assert.Equal(t, "tok-1", pc.AssetID)
	assert.Equal(t, "BUY", pc.Side)
	assert.Equal(t, 0.42, pc.Price)
	assert.Equal(t, 10.0, pc.Size)
	assert.Equal(t, time.Unix(1700000000, 0), pc.Timestamp)
}

func TestPriceToDomainLastTrade_ParsesFields(t *testing.T) {
	p := &PriceMessage{AssetID: "tok-1", Price: "0.55", Size: "5", Timestamp: "1700000000"}
	ltp := PriceToDomainLastTrade(p)
	assert.Equal(t, "tok-1", ltp.AssetID)
	assert.Equal(t, 0.55, ltp.Price)
	assert.Equal(t, 5.0, ltp.Size)
}
