package analytics

import (
	"time"

	"curator-signal-lab/internal/domain"
)

// LiquidityTransition derives the trade-level liquidity state and the
// checkpoint reading from an exit quote.
//
// A nil quote (probe failure) leaves the state untouched and reads "unknown".
// The returned state never ranks better than current.
// exitReturnPct is the return that a forced exit at this moment would realize;
// it is recorded when the state first degrades.
func (p Params) LiquidityTransition(
	current domain.LiquidityState,
	quote *domain.ExitQuote,
	exitReturnPct float64,
	now time.Time,
) (domain.LiquidityState, domain.CheckpointLiquidity) {
	next := current
	if next.Status == "" {
		next.Status = domain.LiquidityExitable
	}

	if quote == nil {
		return next, domain.CheckpointLiquidityUnknown
	}

	if !quote.Routable {
		if next.Status != domain.LiquidityUnexitable {
			next.Status = domain.LiquidityUnexitable
			at := now
			next.FirstUnexitableAt = &at
		}
		return next, domain.CheckpointLiquidityUnexitable
	}

	if quote.PriceImpactBps != nil && *quote.PriceImpactBps > p.DegradedThresholdBps {
		if next.Status == domain.LiquidityExitable {
			next.Status = domain.LiquidityDegraded
			at := now
			next.FirstDegradedAt = &at
			ret := exitReturnPct
			next.WouldHaveExitedReturnPct = &ret
		}
		return next, domain.CheckpointLiquidityDegraded
	}

	return next, domain.CheckpointLiquidityExitable
}
