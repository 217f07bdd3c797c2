package analytics

import (
	"math"
	"time"

	"curator-signal-lab/internal/domain"
)

// Probation returns the probation annotation after recording checkpoint name
// with net return net. current is the annotation before this checkpoint.
//
// The flag is only ever set at 15m and is never changed afterwards.
// For flagged trades the 1h checkpoint records the gain an early exit would
// have missed, and the 6h and 24h checkpoints each record the loss it would
// have saved. A later horizon never overwrites an earlier one.
func (p Params) Probation(
	current *domain.Probation,
	name domain.CheckpointName,
	net float64,
	now time.Time,
) *domain.Probation {
	if name == domain.Checkpoint15m {
		if current != nil {
			return current
		}
		return &domain.Probation{
			FlaggedFlat:   net < p.ProbationThresholdPct,
			ExitReturnPct: net,
			SetAt:         now,
		}
	}

	if current == nil || !current.FlaggedFlat {
		return current
	}

	next := *current
	switch name {
	case domain.Checkpoint1h:
		missed := math.Max(0, net-current.ExitReturnPct)
		next.MissedGainPct = &missed
	case domain.Checkpoint6h, domain.Checkpoint24h:
		entry := domain.ProbationLater{
			Checkpoint:        name,
			NetReturnPct:      net,
			WouldHaveSavedPct: math.Max(0, current.ExitReturnPct-net),
		}
		next.Later = make([]domain.ProbationLater, 0, len(current.Later)+1)
		for _, l := range current.Later {
			if l.Checkpoint != name {
				next.Later = append(next.Later, l)
			}
		}
		next.Later = append(next.Later, entry)

		best := 0.0
		for _, l := range next.Later {
			best = math.Max(best, l.WouldHaveSavedPct)
		}
		next.WouldHaveSavedPct = &best
	default:
		return current
	}
	return &next
}

// ProbationWouldHaveSaved reports whether an early exit at 15m would have
// avoided a loss that the trade showed at any later checkpoint.
func ProbationWouldHaveSaved(pr *domain.Probation) bool {
	if pr == nil || !pr.FlaggedFlat {
		return false
	}
	for _, l := range pr.Later {
		if l.WouldHaveSavedPct > 0 && l.NetReturnPct < 0 {
			return true
		}
	}
	return false
}

// ProbationMissedGain reports whether an early exit at 15m would have missed
// a gain observed at 1h.
func ProbationMissedGain(pr *domain.Probation) bool {
	return pr != nil && pr.FlaggedFlat && pr.MissedGainPct != nil && *pr.MissedGainPct > 0
}
