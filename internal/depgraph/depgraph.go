// Package depgraph maintains the cross-market dependency cache and drives
// asynchronous classification of not-yet-cached market pairs, following
// spec component 4.4. The engine treats the classifier as an opaque RPC: it
// never depends on classifier semantics beyond the four-value relation
// alphabet, and malformed rows are silently dropped.
package depgraph

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/polyarb/arbengine/internal/domain"
	"github.com/polyarb/arbengine/internal/metrics"
)

// DefaultTTL is how long a discovered (or classifier-confirmed-independent)
// dependency is trusted before it must be re-queried.
const DefaultTTL = 24 * time.Hour

// DefaultBatchSize bounds how many uncached candidate pairs are submitted to
// the classifier in a single discovery round.
const DefaultBatchSize = 50

// Classifier is the external dependency-classification RPC. It accepts a
// batch of candidate market-ID pairs and returns one Dependency per pair it
// was able to classify; pairs it could not classify are simply absent from
// the result, not an error.
type Classifier interface {
	Classify(ctx context.Context, pairs [][2]string) ([]domain.Dependency, error)
}

// discoveryLockTTL bounds how long one replica holds the distributed
// discovery lock, long enough to cover one classifier round trip.
const discoveryLockTTL = 45 * time.Second

// Graph is the process-wide dependency graph: a TTL cache in front of the
// classifier, gated so at most one discovery batch is ever in flight.
type Graph struct {
	cache      domain.DependencyCache
	classifier Classifier
	log        *slog.Logger

	// lock and limiter coordinate discovery across horizontally-scaled
	// engine replicas sharing one Redis instance; both are optional and,
	// when nil, Graph falls back to the in-process atomic.Bool gate alone.
	lock    domain.LockManager
	limiter domain.RateLimiter

	discovering atomic.Bool
	ttl         time.Duration
	batchSize   int

	catMu      sync.RWMutex
	categories map[string]string // market ID -> venue-reported category, for same-category pair prioritization
}

// New builds a Graph over the given cache and classifier.
func New(cache domain.DependencyCache, classifier Classifier, log *slog.Logger) *Graph {
	return &Graph{
		cache:      cache,
		classifier: classifier,
		log:        log,
		ttl:        DefaultTTL,
		batchSize:  DefaultBatchSize,
	}
}

// SetCoordination wires a distributed lock and rate limiter shared across
// replicas, on top of the in-process discovery gate. Either argument may be
// nil to leave that layer of coordination disabled.
func (g *Graph) SetCoordination(lock domain.LockManager, limiter domain.RateLimiter) {
	g.lock = lock
	g.limiter = limiter
}

// SetCategories records the current market-ID -> category mapping so the
// next selectCandidates call can prioritize same-category pairs, per spec
// component 4.4. Markets sharing a category (e.g. two markets about the same
// election) are far more likely to have a real dependency than an arbitrary
// pair, so they are worth spending classifier budget on first.
func (g *Graph) SetCategories(categories map[string]string) {
	g.catMu.Lock()
	g.categories = categories
	g.catMu.Unlock()
}

func (g *Graph) categoryOf(marketID string) string {
	g.catMu.RLock()
	defer g.catMu.RUnlock()
	return g.categories[marketID]
}

// GetDependencies synchronously returns every cached, non-INDEPENDENT
// dependency among the given market IDs. It never blocks on the network: a
// cache miss is simply omitted from the result, never triggers a classifier
// call inline.
func (g *Graph) GetDependencies(ctx context.Context, marketIDs []string) []domain.Dependency {
	var deps []domain.Dependency
	for i := 0; i < len(marketIDs); i++ {
		for j := i + 1; j < len(marketIDs); j++ {
			dep, err := g.cache.Get(ctx, marketIDs[i], marketIDs[j])
			if err != nil {
				continue
			}
			if dep.Relation == domain.RelationIndependent {
				continue
			}
			deps = append(deps, dep)
		}
	}
	return deps
}

// StartAsyncDiscovery launches a background discovery batch if one is not
// already in flight. It selects up to batchSize candidate pairs not yet
// cached and submits them to the classifier in a single call; on success,
// every returned dependency (including INDEPENDENT ones) is cached so the
// pair is not re-queried until its TTL expires. A classifier failure leaves
// the cache untouched
// and simply clears the in-flight flag for the next cycle to retry.
//
// StartAsyncDiscovery itself never blocks: the classifier call runs on its
// own goroutine.
func (g *Graph) StartAsyncDiscovery(ctx context.Context, marketIDs []string) {
	if !g.discovering.CompareAndSwap(false, true) {
		return // a discovery batch is already running on this replica
	}

	var unlock func()
	if g.lock != nil {
		u, err := g.lock.Acquire(ctx, "depgraph:discovery", discoveryLockTTL)
		if err != nil {
			// another replica holds the lock, or Redis is unavailable; skip
			// this round rather than risk duplicate classifier calls.
			g.discovering.Store(false)
			return
		}
		unlock = u
	}

	candidates := g.selectCandidates(ctx, marketIDs)
	if len(candidates) == 0 {
		g.discovering.Store(false)
		if unlock != nil {
			unlock()
		}
		return
	}

	go func() {
		defer g.discovering.Store(false)
		if unlock != nil {
			defer unlock()
		}
		g.runDiscovery(ctx, candidates)
	}()
}

// IsDiscovering reports whether a discovery batch is currently in flight.
func (g *Graph) IsDiscovering() bool {
	return g.discovering.Load()
}

// selectCandidates walks every unordered pair among marketIDs and returns up
// to batchSize pairs with no cache entry yet, prioritizing pairs whose
// markets share a category: a same-category pair (two markets about the
// same election, say) is far more likely to carry a real dependency than an
// arbitrary pair, so it is classified first when the batch is full.
func (g *Graph) selectCandidates(ctx context.Context, marketIDs []string) [][2]string {
	var sameCategory, rest [][2]string
	for i := 0; i < len(marketIDs); i++ {
		for j := i + 1; j < len(marketIDs); j++ {
			has, err := g.cache.Has(ctx, marketIDs[i], marketIDs[j])
			if err != nil || has {
				continue
			}
			pair := [2]string{marketIDs[i], marketIDs[j]}
			catI, catJ := g.categoryOf(marketIDs[i]), g.categoryOf(marketIDs[j])
			if catI != "" && catI == catJ {
				sameCategory = append(sameCategory, pair)
			} else {
				rest = append(rest, pair)
			}
		}
	}

	candidates := sameCategory
	if len(candidates) > g.batchSize {
		return candidates[:g.batchSize]
	}
	remaining := g.batchSize - len(candidates)
	if remaining > len(rest) {
		remaining = len(rest)
	}
	return append(candidates, rest[:remaining]...)
}

func (g *Graph) runDiscovery(ctx context.Context, candidates [][2]string) {
	started := time.Now()
	defer func() { metrics.DiscoveryLatency.Observe(time.Since(started).Seconds()) }()

	if g.limiter != nil {
		// The classifier's quota is shared across every replica, unlike the
		// per-process venue REST limiters, so it is worth the extra hop.
		if err := g.limiter.Wait(ctx, "depgraph:classifier"); err != nil {
			if g.log != nil {
				g.log.Warn("classifier rate limiter wait failed", "error", err)
			}
			return
		}
	}

	discoCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	deps, err := g.classifier.Classify(discoCtx, candidates)
	if err != nil {
		if g.log != nil {
			g.log.Warn("dependency discovery batch failed", "pairs", len(candidates), "error", err)
		}
		return
	}

	now := time.Now()
	stored := 0
	for _, dep := range deps {
		if dep.SourceMarketID == "" || dep.TargetMarketID == "" || !validRelation(dep.Relation) {
			continue // malformed classifier row, silently dropped
		}
		dep.DiscoveredAt = now
		dep.ExpiresAt = now.Add(g.ttl)
		if err := g.cache.Set(ctx, dep, g.ttl); err != nil {
			if g.log != nil {
				g.log.Warn("dependency cache write failed", "source", dep.SourceMarketID, "target", dep.TargetMarketID, "error", err)
			}
			continue
		}
		stored++
	}

	if g.log != nil {
		g.log.Info("dependency discovery batch complete", "submitted", len(candidates), "stored", stored)
	}
}

func validRelation(r domain.RelationType) bool {
	switch r {
	case domain.RelationImplies, domain.RelationMutex, domain.RelationExactlyOne, domain.RelationIndependent:
		return true
	default:
		return false
	}
}
