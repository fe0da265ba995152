// Package executor implements the Execution Engine: VWAP/slippage pricing,
// a net-profitability gate, and parallel multi-leg order submission for a
// detected Opportunity, following spec component 4.8. It also drives
// cross-venue hedge execution against matched pairs.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/polyarb/arbengine/internal/domain"
	"github.com/polyarb/arbengine/internal/venue"
)

// minLegNotionalUSD is the smallest leg size worth submitting; anything
// smaller is skipped outright rather than sent to a venue.
const minLegNotionalUSD = 1.0

// extremePriceFloor and extremePriceCeil bound the reference price a leg may
// trade at; prices outside this band are treated as stale or erroneous book
// data and the leg is skipped with LegStatusSkipped.
const (
	extremePriceFloor = 0.001
	extremePriceCeil  = 0.999
)

// DefaultLatencyBudget is the wall-clock ceiling on one execute() call,
// measured from opportunity detection, not from execute's own entry.
const DefaultLatencyBudget = 2040 * time.Millisecond

// BookProvider resolves the latest order book snapshot for an asset,
// preferring the in-process cache over a cold venue fetch.
type BookProvider interface {
	Snapshot(assetID string) (domain.OrderbookSnapshot, bool)
}

// VenueRegistry resolves the trading adapter for a leg's venue.
type VenueRegistry interface {
	Adapter(v domain.Venue) (venue.Adapter, bool)
}

// Executor is the Execution Engine: it turns a detected Opportunity into
// submitted orders, respecting a latency budget and a net-profitability
// gate, and separately drives cross-venue hedge trades against matched
// pairs.
type Executor struct {
	venues   VenueRegistry
	books    BookProvider
	logger   *slog.Logger
	dedup    *Dedup

	feeRate         float64
	minProfitUSD    float64
	latencyBudget   time.Duration
	maxExposureUSD  float64
	legPolicy       domain.LegPolicy

	exposureMu      sync.Mutex
	currentExposure float64
}

// Config bundles the Executor's cost-model and risk parameters.
type Config struct {
	FeeRate        float64
	MinProfitUSD   float64
	LatencyBudget  time.Duration
	MaxExposureUSD float64

	// LegPolicy governs how a multi-leg opportunity's surviving legs are
	// submitted. Defaults to domain.LegPolicyBestEffort.
	LegPolicy domain.LegPolicy
}

// New creates an Executor against the given venue registry and book
// provider.
func New(venues VenueRegistry, books BookProvider, cfg Config, logger *slog.Logger) *Executor {
	if cfg.LatencyBudget <= 0 {
		cfg.LatencyBudget = DefaultLatencyBudget
	}
	if cfg.LegPolicy == "" {
		cfg.LegPolicy = domain.LegPolicyBestEffort
	}
	return &Executor{
		venues:         venues,
		books:          books,
		logger:         logger.With(slog.String("component", "executor")),
		dedup:          NewDedup(2 * time.Minute),
		feeRate:        cfg.FeeRate,
		minProfitUSD:   cfg.MinProfitUSD,
		latencyBudget:  cfg.LatencyBudget,
		maxExposureUSD: cfg.MaxExposureUSD,
		legPolicy:      cfg.LegPolicy,
	}
}

// VWAP walks the opposite side of the book (asks for BUY, bids for SELL),
// accumulating fills until notional is exhausted or the book depletes, and
// returns the cost-weighted average price. It returns 0 if the relevant side
// has no depth.
func VWAP(book domain.OrderbookSnapshot, side domain.Side, notionalUSD float64) float64 {
	levels := book.Asks
	if side == domain.SideSell {
		levels = book.Bids
	}
	if len(levels) == 0 {
		return 0
	}

	remaining := notionalUSD
	var costUSD, filledUnits float64
	for _, lvl := range levels {
		if remaining <= 0 {
			break
		}
		levelNotional := lvl.Price * lvl.Size
		take := levelNotional
		if take > remaining {
			take = remaining
		}
		units := take / lvl.Price
		costUSD += take
		filledUnits += units
		remaining -= take
	}
	if filledUnits == 0 {
		return 0
	}
	return costUSD / filledUnits
}

// Slippage reports |vwap-best|/best, or 1.0 (the maximum) if the reference
// best price is zero (no quote to measure against).
func Slippage(book domain.OrderbookSnapshot, side domain.Side, notionalUSD float64) float64 {
	best := book.BestAsk
	if side == domain.SideSell {
		best = book.BestBid
	}
	if best == 0 {
		return 1.0
	}
	vwap := VWAP(book, side, notionalUSD)
	if vwap == 0 {
		return 1.0
	}
	diff := vwap - best
	if diff < 0 {
		diff = -diff
	}
	return diff / best
}

// CurrentExposureUSD returns the engine's current open-trade exposure, for
// the status endpoint and for tests.
func (e *Executor) CurrentExposureUSD() float64 {
	e.exposureMu.Lock()
	defer e.exposureMu.Unlock()
	return e.currentExposure
}

// IsProfitableAfterCosts computes gross profit from the opportunity's profit
// metric and trade notional, subtracts venue fees and the slippage cost
// accumulated across legs, and compares the remainder to MinProfitUSD.
func (e *Executor) IsProfitableAfterCosts(opp domain.Opportunity, totalSlippageCostUSD float64) bool {
	gross := opp.ProfitMetric * opp.TradeNotional
	fees := e.feeRate * opp.TradeNotional
	net := gross - fees - totalSlippageCostUSD
	return net >= e.minProfitUSD
}

// leg is one planned order derived from an Opportunity leg's trade vector
// entry, after the pre-submission gates have run.
type leg struct {
	marketLeg domain.MarketLeg
	side      domain.Side
	assetID   string
	sizeUSD   float64
	refPrice  float64
	vwap      float64
	slippage  float64
	skipped   bool
	skipErr   string
}

// Execute runs the full execution protocol against opp: builds and gates
// each leg's size/price, submits surviving legs in parallel via the venue
// adapters, and joins their outcomes into a TradeResult.
//
// detectedAt is when the opportunity was identified; the latency budget is
// measured from there, not from Execute's own entry, since the opportunity
// may have already aged while the orchestrator composed it.
func (e *Executor) Execute(ctx context.Context, opp domain.Opportunity, detectedAt time.Time) domain.TradeResult {
	started := time.Now()
	result := domain.TradeResult{
		ID:            uuid.New().String(),
		OpportunityID: opp.ID,
		StartedAt:     started,
	}

	if e.dedup.IsDuplicate(opp.ID) {
		result.Status = domain.TradeStatusAbortedProfit
		result.CompletedAt = started
		return result
	}

	legs := e.buildLegs(opp)

	for _, lg := range legs {
		if !lg.skipped && lg.vwap == 0 {
			e.logger.Warn("execution aborted: insufficient liquidity",
				slog.String("opportunity_id", opp.ID),
				slog.String("asset_id", lg.assetID),
				slog.String("error", domain.ErrInsufficientLiquidity.Error()))
			result.Status = domain.TradeStatusAbortedLiquidity
			result.CompletedAt = time.Now()
			result.LatencyMs = time.Since(started).Milliseconds()
			return result
		}
	}

	var totalSlippageCostUSD float64
	var survivors []leg
	timedOut := false
	for _, lg := range legs {
		if lg.skipped {
			continue
		}
		if time.Since(detectedAt) > e.latencyBudget {
			timedOut = true
			break
		}
		totalSlippageCostUSD += lg.slippage * lg.sizeUSD
		survivors = append(survivors, lg)
	}

	if !e.IsProfitableAfterCosts(opp, totalSlippageCostUSD) {
		e.logger.Warn("execution aborted: net cost exceeds edge",
			slog.String("opportunity_id", opp.ID),
			slog.String("error", domain.ErrSlippageExceedsEdge.Error()))
		result.Status = domain.TradeStatusAbortedSlippage
		result.CompletedAt = time.Now()
		result.LatencyMs = time.Since(started).Milliseconds()
		return result
	}

	skipped := skippedLegs(legs)
	if e.legPolicy == domain.LegPolicyAllOrNone && len(skipped) > 0 {
		result.Legs = skipped
		result.Status = domain.TradeStatusAbortedPrice
		result.CompletedAt = time.Now()
		result.LatencyMs = time.Since(started).Milliseconds()
		return result
	}

	var submitted []domain.ExecutionLeg
	if e.legPolicy == domain.LegPolicySequential {
		submitted = e.submitSequential(ctx, survivors)
	} else {
		submitted = e.submitParallel(ctx, survivors)
	}
	result.Legs = append(result.Legs, skipped...)
	result.Legs = append(result.Legs, submitted...)

	result.Status = terminalStatus(timedOut, result.Legs)
	result.TotalSlipUSD = totalSlippageCostUSD
	result.TotalFeesUSD = e.feeRate * opp.TradeNotional
	result.ExpectedPnLUSD = opp.ExpectedProfitUSD
	result.CompletedAt = time.Now()
	result.LatencyMs = time.Since(started).Milliseconds()

	e.logger.Info("execution complete",
		slog.String("opportunity_id", opp.ID),
		slog.String("status", string(result.Status)),
		slog.Int("legs", len(result.Legs)),
		slog.Int64("latency_ms", result.LatencyMs),
	)

	return result
}

// buildLegs derives one planned leg per MarketLeg with a non-negligible
// trade size, applying the reference-price and minimum-notional gates.
func (e *Executor) buildLegs(opp domain.Opportunity) []leg {
	legs := make([]leg, 0, len(opp.Legs))
	for _, ml := range opp.Legs {
		delta := ml.TradeSize
		if ml.ProjectedYes < ml.ObservedPrice {
			delta = -delta
		}
		if abs(delta) < 1e-6 {
			continue
		}

		side := domain.SideBuy
		assetID := ml.YesTokenID
		if delta < 0 {
			side = domain.SideSell
			assetID = ml.NoTokenID
		}

		sizeUSD := abs(delta) * opp.TradeNotional

		book, _ := e.books.Snapshot(assetID)
		refPrice := book.BestAsk
		if side == domain.SideSell {
			refPrice = book.BestBid
		}

		l := leg{marketLeg: ml, side: side, assetID: assetID, sizeUSD: sizeUSD, refPrice: refPrice}

		if refPrice < extremePriceFloor || refPrice > extremePriceCeil {
			l.skipped = true
			l.skipErr = "SkipExtremePrice"
			legs = append(legs, l)
			continue
		}
		if sizeUSD < minLegNotionalUSD {
			l.skipped = true
			l.skipErr = "below minimum notional"
			legs = append(legs, l)
			continue
		}

		l.vwap = VWAP(book, side, sizeUSD)
		l.slippage = Slippage(book, side, sizeUSD)
		legs = append(legs, l)
	}
	return legs
}

// submitParallel submits every surviving leg concurrently and joins their
// outcomes; it never awaits one leg before issuing the next.
func (e *Executor) submitParallel(ctx context.Context, legs []leg) []domain.ExecutionLeg {
	results := make([]domain.ExecutionLeg, len(legs))
	var wg sync.WaitGroup
	for i, lg := range legs {
		wg.Add(1)
		go func(i int, lg leg) {
			defer wg.Done()
			results[i] = e.submitLeg(ctx, lg)
		}(i, lg)
	}
	wg.Wait()
	return results
}

// submitSequential submits each leg in turn, waiting for its outcome before
// issuing the next, and stops submitting further legs once one fails.
func (e *Executor) submitSequential(ctx context.Context, legs []leg) []domain.ExecutionLeg {
	results := make([]domain.ExecutionLeg, 0, len(legs))
	for _, lg := range legs {
		out := e.submitLeg(ctx, lg)
		results = append(results, out)
		if out.Status == domain.LegStatusFailed {
			break
		}
	}
	return results
}

func (e *Executor) submitLeg(ctx context.Context, lg leg) domain.ExecutionLeg {
	out := domain.ExecutionLeg{
		MarketID:      lg.marketLeg.MarketID,
		Venue:         lg.marketLeg.Venue,
		TokenID:       lg.assetID,
		Side:          lg.side,
		ExpectedPrice: lg.refPrice,
		VWAP:          lg.vwap,
		SlippageRatio: lg.slippage,
		SizeUSD:       lg.sizeUSD,
	}

	adapter, ok := e.venues.Adapter(lg.marketLeg.Venue)
	if !ok {
		out.Status = domain.LegStatusFailed
		out.Err = fmt.Sprintf("no adapter registered for venue %s", lg.marketLeg.Venue)
		return out
	}

	ack, err := adapter.PlaceOrder(ctx, venue.OrderRequest{
		MarketID:   lg.marketLeg.MarketID,
		TokenID:    lg.assetID,
		Side:       lg.side,
		LimitPrice: lg.refPrice,
		SizeUSD:    lg.sizeUSD,
	})
	if err != nil {
		out.Status = domain.LegStatusFailed
		out.Err = err.Error()
		// RejectedByVenue and TransientNetwork are both non-retryable within
		// a cycle: the venue has already seen and refused the order, or the
		// opportunity has likely decayed by the time a retry could land.
		return out
	}

	out.OrderID = ack.OrderID
	out.Status = ack.Status
	if out.Status == "" {
		out.Status = domain.LegStatusFilled
	}
	return out
}

func skippedLegs(legs []leg) []domain.ExecutionLeg {
	var out []domain.ExecutionLeg
	for _, lg := range legs {
		if !lg.skipped {
			continue
		}
		out = append(out, domain.ExecutionLeg{
			MarketID: lg.marketLeg.MarketID,
			Venue:    lg.marketLeg.Venue,
			TokenID:  lg.assetID,
			Side:     lg.side,
			Status:   domain.LegStatusSkipped,
			Err:      lg.skipErr,
		})
	}
	return out
}

func terminalStatus(timedOut bool, legs []domain.ExecutionLeg) domain.TradeStatus {
	if timedOut {
		return domain.TradeStatusTimeout
	}
	allFilled := len(legs) > 0
	anyFilled := false
	for _, l := range legs {
		if l.Status == domain.LegStatusFilled {
			anyFilled = true
		} else if l.Status != domain.LegStatusSkipped {
			allFilled = false
		}
	}
	if allFilled {
		return domain.TradeStatusFilled
	}
	if anyFilled {
		return domain.TradeStatusPartial
	}
	return domain.TradeStatusPartial
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
