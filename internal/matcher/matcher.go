// Package matcher pairs equivalent binary markets across Polymarket and
// Kalshi by tokenizing their questions and scoring Jaccard similarity,
// following original_source/arbi/src/kalshi_market_feed.cpp.
package matcher

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/polyarb/arbengine/internal/domain"
)

// DefaultMinSimilarity is the minimum Jaccard score a cross-venue match must
// meet to be reported.
const DefaultMinSimilarity = 0.4

var stopwords = map[string]bool{
	"the": true, "will": true, "for": true, "and": true, "that": true,
	"this": true, "with": true, "from": true, "are": true, "was": true,
	"has": true, "been": true, "its": true, "what": true,
}

// tokenize lowercases and splits on non-alphanumeric runs, dropping stop
// words and any token of length <= 2.
func tokenize(text string) []string {
	var tokens []string
	var word strings.Builder

	flush := func() {
		if word.Len() == 0 {
			return
		}
		w := word.String()
		if len(w) > 2 && !stopwords[w] {
			tokens = append(tokens, w)
		}
		word.Reset()
	}

	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			word.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			word.WriteRune(r - 'A' + 'a')
		default:
			flush()
		}
	}
	flush()

	return tokens
}

// jaccardSimilarity scores two token sets, treating each as a set (repeated
// tokens count once).
func jaccardSimilarity(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)

	intersection := 0
	for w := range setA {
		if setB[w] {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func toSet(tokens []string) map[string]bool {
	s := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		s[t] = true
	}
	return s
}

// YesPricer resolves a market's current YES price (typically the cached
// book mid) for spread computation; it is injected so the matcher stays
// independent of the book cache's concrete type.
type YesPricer func(m domain.Market) float64

// Match pairs each Polymarket market with its best Kalshi match by question
// similarity, keeping only pairs meeting minSimilarity. Output is sorted by
// the absolute YES-price spread, descending (the most profitable-looking
// pairs first). Complexity is O(n·m) in the two input lengths, acceptable at
// the O(200)-market scale this engine operates at; the matcher is rerun only
// on market refresh, not every cycle.
func Match(polyMarkets, kalshiMarkets []domain.Market, minSimilarity float64, yesPrice YesPricer) []domain.CrossVenuePair {
	if minSimilarity <= 0 {
		minSimilarity = DefaultMinSimilarity
	}

	polyTokens := make([][]string, len(polyMarkets))
	for i, m := range polyMarkets {
		polyTokens[i] = tokenize(m.Question)
	}
	kalshiTokens := make([][]string, len(kalshiMarkets))
	for j, m := range kalshiMarkets {
		kalshiTokens[j] = tokenize(m.Question)
	}

	now := time.Now()
	var pairs []domain.CrossVenuePair
	for i, pm := range polyMarkets {
		bestSim := 0.0
		bestJ := -1
		for j := range kalshiMarkets {
			sim := jaccardSimilarity(polyTokens[i], kalshiTokens[j])
			if sim > bestSim {
				bestSim = sim
				bestJ = j
			}
		}
		if bestJ < 0 || bestSim < minSimilarity {
			continue
		}

		km := kalshiMarkets[bestJ]
		pair := domain.CrossVenuePair{
			PolymarketMarketID: pm.ID,
			KalshiMarketID:     km.ID,
			Similarity:         bestSim,
			MatchedAt:          now,
		}
		if yesPrice != nil {
			pair.YesPricePolymarket = yesPrice(pm)
			pair.YesPriceKalshi = yesPrice(km)
			pair.Spread = math.Abs(pair.YesPricePolymarket - pair.YesPriceKalshi)
		}
		pairs = append(pairs, pair)
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		return pairs[i].Spread > pairs[j].Spread
	})

	return pairs
}
