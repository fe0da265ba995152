// Package orchestrator drives the ~100ms main cycle: refresh markets, merge
// book prices into a vector, check polytope feasibility, project via
// Frank-Wolfe when violated, gate on net profitability, and execute —
// following spec component 4.9. It is the single owner of the market list
// and the only goroutine that mutates the exposure counter, mirroring the
// teacher's errgroup-fanned pipeline orchestrator but collapsed to one
// thread driving a tight loop instead of three independent long-running
// sub-pipelines.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/polyarb/arbengine/internal/bookcache"
	"github.com/polyarb/arbengine/internal/depgraph"
	"github.com/polyarb/arbengine/internal/domain"
	"github.com/polyarb/arbengine/internal/executor"
	"github.com/polyarb/arbengine/internal/matcher"
	"github.com/polyarb/arbengine/internal/metrics"
	"github.com/polyarb/arbengine/internal/polytope"
	"github.com/polyarb/arbengine/internal/projection"
	"github.com/polyarb/arbengine/internal/tradelog"
	"github.com/polyarb/arbengine/internal/venue"
)

// marketRefreshInterval bounds how often the market list is re-fetched from
// the venues, independent of the ~100ms cycle period.
const marketRefreshInterval = 60 * time.Second

// discoveryEveryNCycles triggers one async dependency-discovery batch every
// this many main-loop ticks.
const discoveryEveryNCycles = 20

// FeedSubscriber re-subscribes a venue's WS feed to a fresh set of asset ids
// after every market refresh. A nil subscriber is valid: that venue's assets
// are then never subscribed, and the book cache returns EmptyBook for them;
// the orchestrator makes no REST GetOrderbook calls.
type FeedSubscriber interface {
	Subscribe(assetIDs []string) error
}

// Config bundles the orchestrator's scan-loop and optimizer parameters,
// corresponding to the configuration struct named in the external
// interfaces section: scan_interval_s, max_markets, fw_max_iters,
// fw_tolerance, min_profit_usd.
type Config struct {
	ScanInterval        time.Duration
	MaxMarkets          int
	FWMaxIters          int
	FWTolerance         float64
	MinProfitUSD        float64
	MaxTradeUSD         float64
	CrossVenueEnabled   bool
	CrossVenueTradeSize float64
	CrossVenueMinSim    float64
}

// Orchestrator is the single cycle-driving thread described in the
// concurrency model: it exclusively owns the market list and the exposure
// counter, and it is the only reader of the dependency and price caches.
type Orchestrator struct {
	venues map[domain.Venue]venue.Adapter
	feeds  map[domain.Venue]FeedSubscriber

	books   *bookcache.Cache
	graph   *depgraph.Graph
	exec    *executor.Executor
	log     *tradelog.Writer
	logger  *slog.Logger

	// oppStore and tradeStore mirror every CSV row into Postgres, when
	// configured. Both are nil when no Postgres archive is wired; inserts
	// run off the hot path so a slow or unavailable database never eats
	// into the cycle's latency budget.
	oppStore   domain.OpportunityStore
	tradeStore domain.TradeResultStore

	// signals fans detected opportunities and trade results out to
	// observers beyond the HTTP polling surface, when configured.
	signals domain.SignalBus

	cfg Config

	markets    []domain.Market
	marketIdx  map[string]int
	crossPairs []domain.CrossVenuePair

	lastMarketRefresh time.Time
	cycle             int64
}

// New builds an Orchestrator. feeds may contain fewer entries than venues;
// a venue with no registered feed subscriber is simply never pushed a
// subscription update.
func New(
	venues map[domain.Venue]venue.Adapter,
	feeds map[domain.Venue]FeedSubscriber,
	books *bookcache.Cache,
	graph *depgraph.Graph,
	exec *executor.Executor,
	log *tradelog.Writer,
	cfg Config,
	logger *slog.Logger,
) *Orchestrator {
	if cfg.ScanInterval <= 0 {
		cfg.ScanInterval = 100 * time.Millisecond
	}
	if cfg.MaxMarkets <= 0 {
		cfg.MaxMarkets = 200
	}
	if cfg.FWMaxIters <= 0 {
		cfg.FWMaxIters = 500
	}
	if cfg.FWTolerance <= 0 {
		cfg.FWTolerance = 1e-6
	}
	if cfg.CrossVenueMinSim <= 0 {
		cfg.CrossVenueMinSim = matcher.DefaultMinSimilarity
	}
	if cfg.MaxTradeUSD <= 0 {
		cfg.MaxTradeUSD = 100
	}
	return &Orchestrator{
		venues:    venues,
		feeds:     feeds,
		books:     books,
		graph:     graph,
		exec:      exec,
		log:       log,
		logger:    logger.With(slog.String("component", "orchestrator")),
		cfg:       cfg,
		marketIdx: make(map[string]int),
	}
}

// SetMirrorStores wires an optional Postgres mirror for opportunities and
// trade results. Either argument may be nil to leave that mirror disabled.
func (o *Orchestrator) SetMirrorStores(oppStore domain.OpportunityStore, tradeStore domain.TradeResultStore) {
	o.oppStore = oppStore
	o.tradeStore = tradeStore
}

// SetSignalBus wires an optional pub/sub fan-out for detected opportunities
// and trade results. A nil bus leaves fan-out disabled.
func (o *Orchestrator) SetSignalBus(signals domain.SignalBus) {
	o.signals = signals
}

// opportunitiesChannel and tradesChannel are the pub/sub channels external
// observers subscribe to, parallel to the /opportunities HTTP poll.
const (
	opportunitiesChannel = "arbengine:opportunities"
	tradesChannel        = "arbengine:trades"
)

// Adapter implements executor.VenueRegistry so the Orchestrator's own venue
// map can be handed straight to the Executor.
func (o *Orchestrator) Adapter(v domain.Venue) (venue.Adapter, bool) {
	a, ok := o.venues[v]
	return a, ok
}

// Run drives the main cycle until ctx is cancelled, converting every
// recoverable error into a log entry rather than aborting the loop — only a
// cancelled context ends Run.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("orchestrator starting", slog.Duration("scan_interval", o.cfg.ScanInterval))

	if err := o.refreshMarkets(ctx); err != nil {
		o.logger.Error("initial market refresh failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(o.cfg.ScanInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator stopped")
			return nil
		case <-ticker.C:
			o.tick(ctx)
		}
	}
}

// tick runs exactly one cycle of the 8-step protocol in spec component 4.9.
func (o *Orchestrator) tick(ctx context.Context) {
	started := time.Now()
	defer func() { metrics.CycleDuration.Observe(time.Since(started).Seconds()) }()
	defer func() { metrics.ExposureUSD.Set(o.exec.CurrentExposureUSD()) }()

	o.cycle++

	if len(o.markets) == 0 || time.Since(o.lastMarketRefresh) >= marketRefreshInterval {
		if err := o.refreshMarkets(ctx); err != nil {
			o.logger.Error("market refresh failed", slog.String("error", err.Error()))
		}
	}

	if len(o.markets) == 0 {
		metrics.CyclesTotal.WithLabelValues("skipped").Inc()
		return
	}

	prices := o.priceVector()

	if o.cycle%discoveryEveryNCycles == 0 {
		o.graph.StartAsyncDiscovery(ctx, o.marketIDs())
	}

	deps := o.graph.GetDependencies(ctx, o.marketIDs())
	poly := polytope.Build(len(o.markets), deps, o.indexOf)

	feas := poly.CheckFeasibility(prices)
	if feas.Feasible {
		metrics.CyclesTotal.WithLabelValues("feasible").Inc()
		return
	}

	fw := projection.Optimize(prices, poly, o.cfg.FWMaxIters, o.cfg.FWTolerance, o.logger)
	if fw.Profit < o.cfg.MinProfitUSD {
		metrics.CyclesTotal.WithLabelValues("unprofitable").Inc()
		return
	}

	opp := o.buildOpportunity(fw, prices)
	metrics.MispricingMagnitude.WithLabelValues("kl_divergence").Observe(opp.KLDivergence)
	metrics.MispricingMagnitude.WithLabelValues("l1_distance").Observe(opp.L1Distance)
	if o.log != nil {
		if err := o.log.WriteOpportunity(opp); err != nil {
			o.logger.Error("opportunity log write failed", slog.String("error", err.Error()))
		}
	}
	o.mirrorOpportunity(opp)

	totalSlippageCostUSD := o.estimateSlippageCost(opp)
	if !o.exec.IsProfitableAfterCosts(opp, totalSlippageCostUSD) {
		metrics.CyclesTotal.WithLabelValues("unprofitable_after_costs").Inc()
		return
	}

	result := o.exec.Execute(ctx, opp, opp.DetectedAt)
	metrics.TradesTotal.WithLabelValues(string(result.Status)).Inc()
	metrics.CyclesTotal.WithLabelValues("executed").Inc()
	if o.log != nil {
		if err := o.log.WriteTrade(result); err != nil {
			o.logger.Error("trade log write failed", slog.String("error", err.Error()))
		}
	}
	o.mirrorTrade(result)

	o.logger.Info("opportunity executed",
		slog.String("opportunity_id", opp.ID),
		slog.String("status", string(result.Status)),
		slog.Float64("expected_profit_usd", opp.ExpectedProfitUSD),
	)
}

// refreshMarkets re-fetches the market list from every venue, rebuilds the
// index, re-subscribes every venue's WS feed to the new asset id set, and,
// when cross-venue matching is configured, recomputes matched pairs and runs
// cross-venue execution against them.
func (o *Orchestrator) refreshMarkets(ctx context.Context) error {
	var all []domain.Market
	for v, adapter := range o.venues {
		mkts, err := adapter.ListMarkets(ctx, o.cfg.MaxMarkets, 0)
		if err != nil {
			o.logger.Error("list markets failed", slog.String("venue", string(v)), slog.String("error", err.Error()))
			continue
		}
		all = append(all, mkts...)
	}
	if len(all) == 0 {
		return fmt.Errorf("no markets returned by any venue")
	}

	o.markets = all
	o.marketIdx = make(map[string]int, len(all))
	for i, m := range all {
		o.marketIdx[m.ID] = i
	}
	o.lastMarketRefresh = time.Now()

	categories := make(map[string]string, len(all))
	for _, m := range all {
		if m.Category != "" {
			categories[m.ID] = m.Category
		}
	}
	o.graph.SetCategories(categories)

	o.resubscribeFeeds()

	if o.cfg.CrossVenueEnabled {
		o.recomputeCrossVenuePairs()
		o.exec.ExecuteCrossVenue(ctx, o.crossPairs, o.polyMarketByID, o.kalshiMarketByID, o.cfg.CrossVenueTradeSize)
	}

	return nil
}

func (o *Orchestrator) resubscribeFeeds() {
	byVenue := make(map[domain.Venue][]string)
	for _, m := range o.markets {
		byVenue[m.Venue] = append(byVenue[m.Venue], m.TokenIDs[0], m.TokenIDs[1])
	}
	for v, sub := range o.feeds {
		if sub == nil {
			continue
		}
		if err := sub.Subscribe(byVenue[v]); err != nil {
			o.logger.Error("feed subscribe failed", slog.String("venue", string(v)), slog.String("error", err.Error()))
		}
	}
}

func (o *Orchestrator) recomputeCrossVenuePairs() {
	var polyMarkets, kalshiMarkets []domain.Market
	for _, m := range o.markets {
		if m.Venue == domain.VenuePolymarket {
			polyMarkets = append(polyMarkets, m)
		} else if m.Venue == domain.VenueKalshi {
			kalshiMarkets = append(kalshiMarkets, m)
		}
	}
	o.crossPairs = matcher.Match(polyMarkets, kalshiMarkets, o.cfg.CrossVenueMinSim, o.yesPrice)
}

// yesPrice is the documented derived accessor for a market's current YES mid
// price: Market.YesPrice/NoPrice are populated once from the venue's REST
// response at discovery time, but the order book moves far faster than the
// next market refresh, so every live read goes through the book cache
// instead of the Market struct's snapshot fields.
func (o *Orchestrator) yesPrice(m domain.Market) float64 {
	snap, _ := o.books.Snapshot(m.YesTokenID())
	return snap.MidPrice
}

func (o *Orchestrator) polyMarketByID(id string) (domain.Market, bool) {
	i, ok := o.marketIdx[id]
	if !ok || o.markets[i].Venue != domain.VenuePolymarket {
		return domain.Market{}, false
	}
	return o.markets[i], true
}

func (o *Orchestrator) kalshiMarketByID(id string) (domain.Market, bool) {
	i, ok := o.marketIdx[id]
	if !ok || o.markets[i].Venue != domain.VenueKalshi {
		return domain.Market{}, false
	}
	return o.markets[i], true
}

// priceVector merges the cached book mid-price for each market's YES token
// into a single vector, taking a consistent snapshot at this one point for
// the rest of the cycle (per the ordering guarantees in the concurrency
// model: mild staleness between cycles is tolerated, but one cycle reads a
// single coherent snapshot).
func (o *Orchestrator) priceVector() []float64 {
	p := make([]float64, len(o.markets))
	for i, m := range o.markets {
		snap, _ := o.books.Snapshot(m.YesTokenID())
		p[i] = snap.MidPrice
	}
	return p
}

func (o *Orchestrator) marketIDs() []string {
	ids := make([]string, len(o.markets))
	for i, m := range o.markets {
		ids[i] = m.ID
	}
	return ids
}

func (o *Orchestrator) indexOf(marketID string) (int, bool) {
	i, ok := o.marketIdx[marketID]
	return i, ok
}

// buildOpportunity assembles an ArbitrageOpportunity from a Frank-Wolfe
// result: one MarketLeg per market with a non-negligible trade size.
func (o *Orchestrator) buildOpportunity(fw projection.Result, prices []float64) domain.Opportunity {
	l1 := 0.0
	for _, d := range fw.TradeVector {
		l1 += abs(d)
	}
	opp := domain.Opportunity{
		ID:           uuid.New().String(),
		KLDivergence: projection.KLDivergence(prices, fw.Optimal),
		L1Distance:   0.5 * l1,
		ProfitMetric: fw.Profit,
		DetectedAt:   time.Now(),
		Converged:    fw.Converged,
		Iterations:   fw.Iterations,
	}

	for i, m := range o.markets {
		delta := fw.TradeVector[i]
		if delta == 0 {
			continue
		}
		opp.Legs = append(opp.Legs, domain.MarketLeg{
			MarketID:      m.ID,
			Venue:         m.Venue,
			YesTokenID:    m.YesTokenID(),
			NoTokenID:     m.NoTokenID(),
			ObservedPrice: prices[i],
			ProjectedYes:  fw.Optimal[i],
			TradeSize:     delta,
		})
	}
	opp.TradeNotional = o.cfg.MaxTradeUSD
	opp.ExpectedProfitUSD = opp.ProfitMetric * opp.TradeNotional
	return opp
}

// estimateSlippageCost sums each leg's expected slippage cost using the
// cached book, ahead of the full per-leg gating the Executor performs
// during Execute; this lets the orchestrator skip a doomed opportunity
// before paying for parallel order submission.
func (o *Orchestrator) estimateSlippageCost(opp domain.Opportunity) float64 {
	var total float64
	for _, leg := range opp.Legs {
		side := domain.SideBuy
		assetID := leg.YesTokenID
		delta := leg.TradeSize
		if leg.ProjectedYes < leg.ObservedPrice {
			side = domain.SideSell
			assetID = leg.NoTokenID
			delta = -delta
		}
		sizeUSD := abs(delta) * opp.TradeNotional
		book, _ := o.books.Snapshot(assetID)
		total += executor.Slippage(book, side, sizeUSD) * sizeUSD
	}
	return total
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// mirrorOpportunity inserts opp into the Postgres mirror and publishes it to
// the signal bus, both off the hot path, when configured.
func (o *Orchestrator) mirrorOpportunity(opp domain.Opportunity) {
	if o.oppStore == nil && o.signals == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if o.oppStore != nil {
			if err := o.oppStore.Insert(ctx, opp); err != nil {
				o.logger.Error("opportunity mirror insert failed", slog.String("error", err.Error()))
			}
		}
		o.publish(ctx, opportunitiesChannel, opp)
	}()
}

// mirrorTrade inserts tr into the Postgres mirror and publishes it to the
// signal bus, both off the hot path, when configured.
func (o *Orchestrator) mirrorTrade(tr domain.TradeResult) {
	if o.tradeStore == nil && o.signals == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if o.tradeStore != nil {
			if err := o.tradeStore.Insert(ctx, tr); err != nil {
				o.logger.Error("trade mirror insert failed", slog.String("error", err.Error()))
			}
		}
		o.publish(ctx, tradesChannel, tr)
	}()
}

// publish best-effort JSON-encodes payload and publishes it to channel on
// the signal bus. A nil bus or encode/publish failure is logged, never
// fatal: the signal bus is a convenience fan-out, not the system of record.
func (o *Orchestrator) publish(ctx context.Context, channel string, payload any) {
	if o.signals == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		o.logger.Error("signal bus marshal failed", slog.String("channel", channel), slog.String("error", err.Error()))
		return
	}
	if err := o.signals.Publish(ctx, channel, body); err != nil {
		o.logger.Error("signal bus publish failed", slog.String("channel", channel), slog.String("error", err.Error()))
	}
}
