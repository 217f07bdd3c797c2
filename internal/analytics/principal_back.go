package analytics

import (
	"time"

	"curator-signal-lab/internal/domain"
)

// PrincipalBack returns the principal-back simulation after recording
// checkpoint name. current is the simulation before this checkpoint.
//
// The first checkpoint whose net return reaches the threshold locks
// LockFraction of the position at that return. The remaining moonbag is
// marked at the 6h checkpoint, or at the next checkpoint when the trigger
// happened at 6h or later. A trigger on the final checkpoint finalizes at once.
func (p Params) PrincipalBack(
	current *domain.PrincipalBack,
	name domain.CheckpointName,
	net, price float64,
	now time.Time,
) *domain.PrincipalBack {
	if current == nil {
		if net < p.PrincipalBackThresholdPct {
			return nil
		}
		pb := &domain.PrincipalBack{
			TriggeredAt:       now,
			TriggerCheckpoint: name,
			TriggeredPrice:    price,
			LockedReturnPct:   net * p.LockFraction,
		}
		if finalizesAt(name, name) {
			p.finalize(pb, name, net)
		}
		return pb
	}

	if current.IsFinalized() || !finalizesAt(current.TriggerCheckpoint, name) {
		return current
	}

	next := *current
	p.finalize(&next, name, net)
	return &next
}

func (p Params) finalize(pb *domain.PrincipalBack, name domain.CheckpointName, net float64) {
	moonbag := net * (1 - p.LockFraction)
	combined := pb.LockedReturnPct + moonbag
	final := name
	pb.MoonbagReturnPct = &moonbag
	pb.CombinedReturnPct = &combined
	pb.FinalCheckpoint = &final
}

// finalizesAt reports whether a simulation triggered at trigger is finalized
// when checkpoint current is recorded.
func finalizesAt(trigger, current domain.CheckpointName) bool {
	ti := domain.CheckpointIndex(trigger)
	ci := domain.CheckpointIndex(current)
	last := len(domain.CheckpointSchedule) - 1
	if ti == last {
		return ci == last
	}
	return ci > ti && ci >= domain.CheckpointIndex(domain.Checkpoint6h)
}
