package domain

// LegPolicy governs how a multi-leg opportunity's surviving legs are
// submitted to their venues.
type LegPolicy string

const (
	LegPolicyAllOrNone  LegPolicy = "all_or_none"  // cancel all if any leg fails
	LegPolicyBestEffort LegPolicy = "best_effort"  // place all, accept partials
	LegPolicySequential LegPolicy = "sequential"  // wait for each leg before next
)
