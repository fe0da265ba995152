// Package bookcache holds the latest L2 order book snapshot for every
// tracked asset in process memory. Unlike the teacher's Redis-backed price
// and orderbook caches, this cache never leaves the process: the optimizer
// and execution engine read it on every cycle at sub-millisecond latency, and
// a distributed round trip would dominate the cycle budget.
package bookcache

import (
	"sync"
	"time"

	"github.com/polyarb/arbengine/internal/domain"
)

// entry pairs a snapshot with the mutex that guards writes to it. Per-asset
// locking (rather than one cache-wide mutex) means a burst of updates for
// one asset never blocks a reader of another.
type entry struct {
	mu       sync.RWMutex
	snapshot domain.OrderbookSnapshot
	updated  time.Time
}

// Cache is a thread-safe, in-process store of the latest order book
// snapshot per asset ID (Polymarket token ID or Kalshi ticker).
type Cache struct {
	mu      sync.RWMutex // guards the entries map itself, not individual entries
	entries map[string]*entry
	maxAge  time.Duration
}

// New creates an empty Cache. maxAge is the staleness threshold after which
// Get reports a snapshot as stale via the returned bool.
func New(maxAge time.Duration) *Cache {
	if maxAge <= 0 {
		maxAge = 5 * time.Second
	}
	return &Cache{
		entries: make(map[string]*entry),
		maxAge:  maxAge,
	}
}

func (c *Cache) entryFor(assetID string) *entry {
	c.mu.RLock()
	e, ok := c.entries[assetID]
	c.mu.RUnlock()
	if ok {
		return e
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok = c.entries[assetID]; ok {
		return e
	}
	e = &entry{}
	c.entries[assetID] = e
	return e
}

// Put stores the latest snapshot for an asset, overwriting any prior value.
// Writers are prioritized: Put never blocks behind a reader holding the
// entry's RLock for longer than the current critical section.
func (c *Cache) Put(snap domain.OrderbookSnapshot) {
	e := c.entryFor(snap.AssetID)
	e.mu.Lock()
	e.snapshot = snap
	e.updated = time.Now()
	e.mu.Unlock()
}

// ApplyPriceChange updates a single price level in place without replacing
// the whole snapshot, mirroring the venue feed's incremental update frames.
func (c *Cache) ApplyPriceChange(pc domain.PriceChange) {
	e := c.entryFor(pc.AssetID)
	e.mu.Lock()
	defer e.mu.Unlock()

	levels := &e.snapshot.Bids
	if pc.Side == "SELL" || pc.Side == "sell" || pc.Side == "no" {
		levels = &e.snapshot.Asks
	}

	replaced := false
	for i := range *levels {
		if (*levels)[i].Price == pc.Price {
			if pc.Size == 0 {
				*levels = append((*levels)[:i], (*levels)[i+1:]...)
			} else {
				(*levels)[i].Size = pc.Size
			}
			replaced = true
			break
		}
	}
	if !replaced && pc.Size > 0 {
		*levels = append(*levels, domain.PriceLevel{Price: pc.Price, Size: pc.Size})
	}

	recomputeTopOfBook(&e.snapshot)
	e.snapshot.AssetID = pc.AssetID
	e.updated = time.Now()
}

func recomputeTopOfBook(snap *domain.OrderbookSnapshot) {
	snap.BestBid = 0
	for _, lvl := range snap.Bids {
		if lvl.Price > snap.BestBid {
			snap.BestBid = lvl.Price
		}
	}
	snap.BestAsk = 0
	for _, lvl := range snap.Asks {
		if snap.BestAsk == 0 || lvl.Price < snap.BestAsk {
			snap.BestAsk = lvl.Price
		}
	}
	if snap.BestBid > 0 && snap.BestAsk > 0 {
		snap.MidPrice = (snap.BestBid + snap.BestAsk) / 2
	}
	snap.Spread = snap.BestAsk - snap.BestBid
}

// EmptyBook returns the zero-liquidity convention snapshot for an asset with
// no tracked book: no bid, a synthetic ask at the ceiling price, a mid of
// 0.5, and the maximum possible spread of 1. Every downstream consumer (the
// optimizer's price-vector build, the matcher, the executor's VWAP walk)
// treats this as "no executable edge" rather than special-casing a missing
// book.
func EmptyBook(assetID string) domain.OrderbookSnapshot {
	return domain.OrderbookSnapshot{
		AssetID:   assetID,
		BestBid:   0,
		BestAsk:   1,
		MidPrice:  0.5,
		Spread:    1,
	}
}

// Get returns the latest snapshot for an asset and whether it is present and
// fresh (age <= maxAge). When the asset has never been seen or its entry has
// gone stale, Get returns EmptyBook(assetID) rather than a bare zero value,
// so callers never need to special-case a nil orderbook.
func (c *Cache) Get(assetID string) (domain.OrderbookSnapshot, bool) {
	c.mu.RLock()
	e, ok := c.entries[assetID]
	c.mu.RUnlock()
	if !ok {
		return EmptyBook(assetID), false
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.updated.IsZero() {
		return EmptyBook(assetID), false
	}
	fresh := time.Since(e.updated) <= c.maxAge
	if !fresh {
		return EmptyBook(assetID), false
	}
	return e.snapshot, true
}

// Len returns the number of assets currently tracked.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot implements the venue-agnostic book-provider contract used by the
// optimizer and execution engine.
func (c *Cache) Snapshot(assetID string) (domain.OrderbookSnapshot, bool) {
	return c.Get(assetID)
}
