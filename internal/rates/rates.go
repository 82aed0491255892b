// Package rates computes how a payment is divided among merchant,
// platform, executor, referrer and treasury. Pure functions, no I/O.
package rates

import (
	"github.com/clearway/settle/pkg/types"
)

// Layer classifies the product/skill a payment settles, which determines
// the applicable fee schedule.
type Layer string

const (
	LayerInfra     Layer = "INFRA"
	LayerResource  Layer = "RESOURCE"
	LayerLogic     Layer = "LOGIC"
	LayerComposite Layer = "COMPOSITE"
)

// Schedule is the fee pair carved out of the merchant's side of a payment.
type Schedule struct {
	PlatformFee   types.BasisPoints
	IncentivePool types.BasisPoints
}

// Incentive pool split between executor and referrer when both are present.
const (
	executorPoolShare types.BasisPoints = 7000
	referrerPoolShare types.BasisPoints = 3000
)

// schedules holds the per-layer fee rates. LOGIC is fixed at 1% + 4%;
// the remaining layers follow the same ascending shape.
var schedules = map[Layer]Schedule{
	LayerInfra:     {PlatformFee: 50, IncentivePool: 150},
	LayerResource:  {PlatformFee: 100, IncentivePool: 300},
	LayerLogic:     {PlatformFee: 100, IncentivePool: 400},
	LayerComposite: {PlatformFee: 200, IncentivePool: 500},
}

// ScheduleFor returns the fee schedule for a layer.
func ScheduleFor(layer Layer) (Schedule, bool) {
	s, ok := schedules[layer]
	return s, ok
}

// SplitResult is the division of a payment. The five shares always sum to
// the input amount exactly; rounding remainders land in Treasury.
type SplitResult struct {
	Merchant types.Amount
	Platform types.Amount
	Executor types.Amount
	Referrer types.Amount
	Treasury types.Amount
}

// Total returns the sum of all shares.
func (r SplitResult) Total() types.Amount {
	return r.Merchant + r.Platform + r.Executor + r.Referrer + r.Treasury
}

// Calculate splits an amount for the given layer and participant presence.
//
// The platform fee and the incentive pool are floor carve-outs of the
// amount; the merchant keeps the rest, so the carve-out rounding favors
// the merchant. Inside the pool, the executor takes floor(70%) and the
// referrer floor(30%) when both are present; a sole participant takes the
// whole pool. Whatever the pool does not hand out (the floor remainder,
// an absent participant's side, or the executor share when the executor
// has no receiving account) goes to Treasury. Nothing is dropped.
func Calculate(amount types.Amount, layer Layer, hasReferrer, hasExecutor, executorHasAccount bool) (SplitResult, error) {
	if err := amount.Validate(); err != nil {
		return SplitResult{}, err
	}

	schedule, ok := schedules[layer]
	if !ok {
		return SplitResult{}, types.Errorf(types.ErrInvalidAmount, "unknown layer %q", layer)
	}

	platformFee := amount.ApplyBPS(schedule.PlatformFee)
	pool := amount.ApplyBPS(schedule.IncentivePool)
	merchant := amount - platformFee - pool

	var executorClaim, referrer types.Amount
	switch {
	case hasExecutor && hasReferrer:
		executorClaim = pool.ApplyBPS(executorPoolShare)
		referrer = pool.ApplyBPS(referrerPoolShare)
	case hasExecutor:
		executorClaim = pool
	case hasReferrer:
		referrer = pool
	}

	// Executor present but with no receiving account: the claim is
	// redirected to treasury, never reverted and never silently dropped.
	executor := executorClaim
	if hasExecutor && !executorHasAccount {
		executor = 0
	}

	treasury := pool - executor - referrer

	return SplitResult{
		Merchant: merchant,
		Platform: platformFee,
		Executor: executor,
		Referrer: referrer,
		Treasury: treasury,
	}, nil
}
