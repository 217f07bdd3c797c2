package analytics

import "curator-signal-lab/internal/domain"

// GrossReturnPct returns (price - entry) / entry * 100.
// Entry must be positive.
func GrossReturnPct(entry, price float64) float64 {
	return (price - entry) / entry * 100
}

// NetReturnPct subtracts the round-trip fee from a gross return.
func (p Params) NetReturnPct(gross float64) float64 {
	return gross - p.RoundTripFeePct
}

// ExecutableReturnPct returns the net return realizable through the quoted exit.
// Unroutable quotes yield UnroutablePenaltyPct. Returns nil when the quote
// is routable but carries no executable price, or when quote is nil.
func (p Params) ExecutableReturnPct(entry float64, quote *domain.ExitQuote) *float64 {
	if quote == nil {
		return nil
	}
	if !quote.Routable {
		v := UnroutablePenaltyPct
		return &v
	}
	if quote.ExecutablePrice == nil {
		return nil
	}
	v := p.NetReturnPct(GrossReturnPct(entry, *quote.ExecutablePrice))
	return &v
}
