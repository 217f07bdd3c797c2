// Package analytics computes paper-trade returns and derived flags.
// All functions are pure: they read a trade and return values, never mutate it.
package analytics

// Default parameter values.
const (
	DefaultRoundTripFeePct           = 2.14
	DefaultProbationThresholdPct     = 5.0
	DefaultPrincipalBackThresholdPct = 50.0
	DefaultLockFraction              = 0.65
	DefaultDegradedThresholdBps      = 1000.0
	UnroutablePenaltyPct             = -100.0
)

// Params holds analytics thresholds.
type Params struct {
	RoundTripFeePct           float64 // subtracted from gross to get net
	ProbationThresholdPct     float64 // 15m net below this flags the trade
	PrincipalBackThresholdPct float64 // first net at or above this triggers principal-back
	LockFraction              float64 // share of the position locked at trigger
	DegradedThresholdBps      float64 // exit impact above this degrades liquidity
}

// DefaultParams returns the default analytics parameters.
func DefaultParams() Params {
	return Params{
		RoundTripFeePct:           DefaultRoundTripFeePct,
		ProbationThresholdPct:     DefaultProbationThresholdPct,
		PrincipalBackThresholdPct: DefaultPrincipalBackThresholdPct,
		LockFraction:              DefaultLockFraction,
		DegradedThresholdBps:      DefaultDegradedThresholdBps,
	}
}
