package matcher

import (
	"testing"

	"github.com/polyarb/arbengine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize_DropsStopwordsAndShortTokens(t *testing.T) {
	tokens := tokenize("Will the Fed raise rates in 2026?")
	assert.NotContains(t, tokens, "the")
	assert.NotContains(t, tokens, "in")
	assert.Contains(t, tokens, "fed")
	assert.Contains(t, tokens, "raise")
	assert.Contains(t, tokens, "rates")
	assert.Contains(t, tokens, "2026")
}

func TestJaccardSimilarity_IdenticalSetsScoreOne(t *testing.T) {
	a := []string{"fed", "raise", "rates"}
	assert.Equal(t, 1.0, jaccardSimilarity(a, a))
}

func TestJaccardSimilarity_DisjointSetsScoreZero(t *testing.T) {
	assert.Equal(t, 0.0, jaccardSimilarity([]string{"fed"}, []string{"election"}))
}

func TestMatch_BestMatchAboveThreshold(t *testing.T) {
	poly := []domain.Market{
		{ID: "p1", Question: "Will the Fed raise interest rates in March 2026?"},
		{ID: "p2", Question: "Will it rain in Seattle tomorrow?"},
	}
	kalshi := []domain.Market{
		{ID: "k1", Question: "Fed interest rate decision March 2026"},
		{ID: "k2", Question: "Seattle weather forecast precipitation"},
	}

	pairs := Match(poly, kalshi, 0.15, nil)

	require.Len(t, pairs, 2)
	byPoly := map[string]domain.CrossVenuePair{}
	for _, pr := range pairs {
		byPoly[pr.PolymarketMarketID] = pr
	}
	assert.Equal(t, "k1", byPoly["p1"].KalshiMarketID)
}

func TestMatch_SortedBySpreadDescending(t *testing.T) {
	poly := []domain.Market{
		{ID: "p1", Question: "Fed interest rate hike decision"},
		{ID: "p2", Question: "Presidential election winner outcome"},
	}
	kalshi := []domain.Market{
		{ID: "k1", Question: "Fed interest rate hike decision"},
		{ID: "k2", Question: "Presidential election winner outcome"},
	}
	prices := map[string]float64{"p1": 0.50, "k1": 0.52, "p2": 0.30, "k2": 0.70}

	pairs := Match(poly, kalshi, 0.2, func(m domain.Market) float64 { return prices[m.ID] })

	require.Len(t, pairs, 2)
	assert.Equal(t, "p2", pairs[0].PolymarketMarketID)
	assert.InDelta(t, 0.4, pairs[0].Spread, 1e-9)
}

func TestMatch_NoMatchBelowThreshold(t *testing.T) {
	poly := []domain.Market{{ID: "p1", Question: "Completely unrelated topic here"}}
	kalshi := []domain.Market{{ID: "k1", Question: "Something else entirely different"}}

	pairs := Match(poly, kalshi, 0.9, nil)
	assert.Empty(t, pairs)
}
