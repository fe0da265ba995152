package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidOrder  = errors.New("invalid order parameters")
	ErrSigningFailed = errors.New("signing failed")
	ErrWSDisconnect  = errors.New("websocket disconnected")
	ErrContextDone   = errors.New("context cancelled")
	ErrLockHeld      = errors.New("lock already held")

	// ErrLPInfeasible is returned by the polytope solver when the constraint
	// set admits no feasible point (e.g. contradictory dependencies).
	ErrLPInfeasible = errors.New("marginal polytope: linear program infeasible")
	// ErrInsufficientLiquidity is returned when an order book cannot fill the
	// requested size at any price.
	ErrInsufficientLiquidity = errors.New("insufficient order book liquidity")
	// ErrSlippageExceedsEdge is returned when estimated slippage on a leg
	// eats more than the opportunity's gross edge.
	ErrSlippageExceedsEdge = errors.New("estimated slippage exceeds gross edge")
	// ErrExposureCap is returned when a trade would exceed the configured
	// maximum per-market or per-cycle notional.
	ErrExposureCap = errors.New("trade exceeds exposure cap")
	// ErrLatencyBudget is returned when a leg group could not be completed
	// within the configured execution latency budget.
	ErrLatencyBudget = errors.New("execution exceeded latency budget")
	// ErrRejectedByVenue wraps a non-2xx response from a venue REST API.
	ErrRejectedByVenue = errors.New("order rejected by venue")
	// ErrTransientNetwork marks an error as safe to retry.
	ErrTransientNetwork = errors.New("transient network error")
	// ErrSigningError is returned when request signing fails (bad key,
	// unreadable PEM, missing credentials).
	ErrSigningError = errors.New("request signing failed")
	// ErrParseError marks a malformed venue response.
	ErrParseError = errors.New("malformed venue response")
	// ErrNoDependency is returned by the dependency graph cache on a miss.
	ErrNoDependency = errors.New("no cached dependency")
)
