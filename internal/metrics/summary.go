// Package metrics aggregates paper trades into the rolling ledger summary.
package metrics

import (
	"curator-signal-lab/internal/analytics"
	"curator-signal-lab/internal/domain"
)

// horizonSamples collects the raw values of one checkpoint horizon.
type horizonSamples struct {
	net        []float64
	executable []float64
	probed     int
	routable   int
}

// ComputeSummary aggregates trades in a single pass.
// Averages and rates with no underlying data are left nil.
func ComputeSummary(trades []*domain.PaperTrade) domain.AggregateStats {
	stats := domain.AggregateStats{TotalTrades: len(trades)}

	samples := make([]horizonSamples, len(domain.CheckpointSchedule))
	var combined, sizeUSD, sizeNative []float64

	for _, t := range trades {
		switch t.Status {
		case domain.StatusComplete:
			stats.CompleteTrades++
		case domain.StatusAbandoned:
			stats.AbandonedTrades++
		default:
			stats.OpenTrades++
		}

		for _, cp := range t.Checkpoints {
			idx := domain.CheckpointIndex(cp.Name)
			if idx < 0 {
				continue
			}
			s := &samples[idx]
			s.net = append(s.net, cp.NetReturnPct)
			if cp.Exit == nil {
				continue
			}
			s.probed++
			if cp.Exit.Routable {
				s.routable++
			}
			if cp.Exit.ExecutableReturnPct != nil {
				s.executable = append(s.executable, *cp.Exit.ExecutableReturnPct)
			}
		}

		switch t.Liquidity.Status {
		case domain.LiquidityDegraded:
			stats.DegradedCount++
		case domain.LiquidityUnexitable:
			stats.UnexitableCount++
		}

		if t.Probation != nil && t.Probation.FlaggedFlat {
			stats.ProbationFlaggedCount++
			if analytics.ProbationWouldHaveSaved(t.Probation) {
				stats.ProbationWouldHaveSavedCount++
			}
			if analytics.ProbationMissedGain(t.Probation) {
				stats.ProbationMissedGainCount++
			}
		}

		if pb := t.PrincipalBack; pb != nil {
			stats.PrincipalBackTriggeredCount++
			if pb.CombinedReturnPct != nil {
				combined = append(combined, *pb.CombinedReturnPct)
			}
		}

		if v := t.EntryContext.CuratorBuySizeUSD; v != nil {
			sizeUSD = append(sizeUSD, *v)
		}
		if v := t.EntryContext.CuratorBuySizeNative; v != nil {
			sizeNative = append(sizeNative, *v)
		}
	}

	stats.Horizons = make([]domain.HorizonStats, len(domain.CheckpointSchedule))
	for i, spec := range domain.CheckpointSchedule {
		s := samples[i]
		stats.Horizons[i] = domain.HorizonStats{
			Checkpoint:             spec.Name,
			Observed:               len(s.net),
			AvgNetReturnPct:        meanOf(s.net),
			WinRatePct:             winRatePct(s.net),
			AvgExecutableReturnPct: meanOf(s.executable),
			ExitFeasibilityRatePct: ratePct(s.routable, s.probed),
			ProbedCount:            s.probed,
		}
	}

	stats.AvgPrincipalBackCombinedPct = meanOf(combined)
	stats.AvgCuratorBuySizeUSD = meanOf(sizeUSD)
	stats.AvgCuratorBuySizeNative = meanOf(sizeNative)

	return stats
}
