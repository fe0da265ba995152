package domain

import "time"

// MarketLeg is one binary market participating in a detected opportunity,
// carrying both the observed price and the I-projected target price.
type MarketLeg struct {
	MarketID      string
	Venue         Venue
	YesTokenID    string
	NoTokenID     string
	ObservedPrice float64 // clamped YES mid/reference price fed to the optimizer
	ProjectedYes  float64 // q_i from Frank-Wolfe, the feasible target YES price
	TradeSize     float64 // q_i - p_i, the signed trade vector component
}

// Opportunity is a mispricing detected by projecting observed prices onto the
// marginal polytope. Executing trades toward ProjectedYes on every leg moves
// the basket toward internal consistency and realizes ExpectedProfitUSD.
type Opportunity struct {
	ID                string
	Legs              []MarketLeg
	KLDivergence      float64
	L1Distance        float64 // ½‖q - p‖₁
	ProfitMetric      float64 // max(KLDivergence, L1Distance)
	ExpectedProfitUSD float64
	TradeNotional     float64
	DetectedAt        time.Time
	Converged         bool
	Iterations        int
}

// CrossVenuePair links an equivalent market across Polymarket and Kalshi, as
// produced by the cross-venue matcher.
type CrossVenuePair struct {
	PolymarketMarketID string
	KalshiMarketID     string
	Similarity         float64 // Jaccard token similarity in [0,1]
	YesPricePolymarket float64
	YesPriceKalshi     float64
	Spread             float64 // |YesPricePolymarket - YesPriceKalshi|
	MatchedAt          time.Time
}
