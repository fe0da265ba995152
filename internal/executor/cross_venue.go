package executor

import (
	"context"
	"log/slog"
	"sync"

	"github.com/polyarb/arbengine/internal/domain"
	"github.com/polyarb/arbengine/internal/venue"
)

// CrossVenueResult is the outcome of attempting to execute one CrossVenuePair
// as a YES/NO hedge across Polymarket and Kalshi.
type CrossVenueResult struct {
	Pair       domain.CrossVenuePair
	Action     string // "BUY_POLY_YES_BUY_KALSHI_NO" or "BUY_POLY_NO_BUY_KALSHI_YES"
	Status     domain.TradeStatus
	NetProfit  float64
	PolyLeg    domain.ExecutionLeg
	KalshiLeg  domain.ExecutionLeg
}

// ExecuteCrossVenue evaluates and, if profitable, executes every pair in
// pairs as a two-leg hedge: buy YES on whichever venue quotes it cheaper and
// buy NO (equivalently, sell YES) on the other, so total cost is
// yes_A + (1-yes_B) regardless of which side is cheap. A running exposure
// counter is checked before each trade and updated only on a filled trade.
func (e *Executor) ExecuteCrossVenue(ctx context.Context, pairs []domain.CrossVenuePair, polyMarket, kalshiMarket func(id string) (domain.Market, bool), tradeSizeUSD float64) []CrossVenueResult {
	var out []CrossVenueResult
	for _, pair := range pairs {
		pm, ok1 := polyMarket(pair.PolymarketMarketID)
		km, ok2 := kalshiMarket(pair.KalshiMarketID)
		if !ok1 || !ok2 {
			continue
		}
		out = append(out, e.executeCrossVenuePair(ctx, pair, pm, km, tradeSizeUSD))
	}
	return out
}

func (e *Executor) executeCrossVenuePair(ctx context.Context, pair domain.CrossVenuePair, pm, km domain.Market, tradeSizeUSD float64) CrossVenueResult {
	res := CrossVenueResult{Pair: pair}

	totalFees := 2 * e.feeRate
	minSpread := totalFees + 0.02
	if pair.Spread < minSpread {
		e.logger.Warn("cross-venue spread too thin after costs",
			slog.Float64("spread", pair.Spread), slog.Float64("min_spread", minSpread),
			slog.String("error", domain.ErrSlippageExceedsEdge.Error()))
		res.Status = domain.TradeStatusAbortedSlippage
		return res
	}

	e.exposureMu.Lock()
	if e.currentExposure+tradeSizeUSD > e.maxExposureUSD {
		e.exposureMu.Unlock()
		e.logger.Warn("cross-venue exposure cap reached",
			slog.Float64("current", e.currentExposure), slog.Float64("requested", tradeSizeUSD), slog.Float64("cap", e.maxExposureUSD))
		res.Status = domain.TradeStatusAbortedExposure
		return res
	}
	e.exposureMu.Unlock()

	buyPolyYes := pair.YesPricePolymarket < pair.YesPriceKalshi

	polyTokenID := pm.NoTokenID()
	kalshiSide := domain.SideBuy
	if buyPolyYes {
		polyTokenID = pm.YesTokenID()
		kalshiSide = domain.SideSell // buy NO on Kalshi == sell the YES-complement
	}

	polyBook, _ := e.books.Snapshot(polyTokenID)
	kalshiBook, _ := e.books.Snapshot(km.ID)

	polyVWAP := VWAP(polyBook, domain.SideBuy, tradeSizeUSD)
	kalshiVWAP := VWAP(kalshiBook, kalshiSide, tradeSizeUSD)

	if polyVWAP < 1e-6 || kalshiVWAP < 1e-6 {
		e.logger.Warn("cross-venue leg has no executable depth",
			slog.Float64("poly_vwap", polyVWAP), slog.Float64("kalshi_vwap", kalshiVWAP),
			slog.String("error", domain.ErrInsufficientLiquidity.Error()))
		res.Status = domain.TradeStatusAbortedLiquidity
		return res
	}

	var realCost float64
	if buyPolyYes {
		realCost = polyVWAP + (1 - kalshiVWAP)
	} else {
		realCost = polyVWAP + kalshiVWAP
	}

	if realCost >= 1-totalFees {
		e.logger.Warn("cross-venue real cost exceeds edge",
			slog.Float64("real_cost", realCost), slog.Float64("total_fees", totalFees),
			slog.String("error", domain.ErrSlippageExceedsEdge.Error()))
		res.Status = domain.TradeStatusAbortedSlippage
		return res
	}

	polyAdapter, ok := e.venues.Adapter(domain.VenuePolymarket)
	if !ok {
		res.Status = domain.TradeStatusPartial
		return res
	}
	kalshiAdapter, ok := e.venues.Adapter(domain.VenueKalshi)
	if !ok {
		res.Status = domain.TradeStatusPartial
		return res
	}

	kalshiPrice := kalshiVWAP
	if buyPolyYes {
		kalshiPrice = 1 - kalshiVWAP
	}

	var polyAck, kalshiAck venue.OrderAck
	var polyErr, kalshiErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		polyAck, polyErr = polyAdapter.PlaceOrder(ctx, venue.OrderRequest{
			MarketID: pm.ID, TokenID: polyTokenID, Side: domain.SideBuy, LimitPrice: polyVWAP, SizeUSD: tradeSizeUSD,
		})
	}()
	go func() {
		defer wg.Done()
		kalshiAck, kalshiErr = kalshiAdapter.PlaceOrder(ctx, venue.OrderRequest{
			MarketID: km.ID, TokenID: km.ID, Side: kalshiSide, LimitPrice: kalshiPrice, SizeUSD: tradeSizeUSD,
		})
	}()
	wg.Wait()

	res.PolyLeg = legFromAck(pm.ID, domain.VenuePolymarket, polyTokenID, domain.SideBuy, polyVWAP, tradeSizeUSD, polyAck, polyErr)
	res.KalshiLeg = legFromAck(km.ID, domain.VenueKalshi, km.ID, kalshiSide, kalshiPrice, tradeSizeUSD, kalshiAck, kalshiErr)

	if buyPolyYes {
		res.Action = "BUY_POLY_YES_BUY_KALSHI_NO"
	} else {
		res.Action = "BUY_POLY_NO_BUY_KALSHI_YES"
	}

	if polyErr == nil && kalshiErr == nil {
		res.Status = domain.TradeStatusFilled
		res.NetProfit = (1 - realCost - totalFees) * tradeSizeUSD
		e.exposureMu.Lock()
		e.currentExposure += tradeSizeUSD
		e.exposureMu.Unlock()
	} else {
		res.Status = domain.TradeStatusPartial
	}

	return res
}

func legFromAck(marketID string, v domain.Venue, tokenID string, side domain.Side, price, sizeUSD float64, ack venue.OrderAck, err error) domain.ExecutionLeg {
	leg := domain.ExecutionLeg{
		MarketID:      marketID,
		Venue:         v,
		TokenID:       tokenID,
		Side:          side,
		ExpectedPrice: price,
		SizeUSD:       sizeUSD,
	}
	if err != nil {
		leg.Status = domain.LegStatusFailed
		leg.Err = err.Error()
		return leg
	}
	leg.OrderID = ack.OrderID
	leg.Status = ack.Status
	if leg.Status == "" {
		leg.Status = domain.LegStatusFilled
	}
	return leg
}
