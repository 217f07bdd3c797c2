package analytics

import (
	"errors"
	"fmt"
	"time"

	"curator-signal-lab/internal/domain"
)

var (
	// ErrInvalidEntry is returned when the trade has no usable entry price.
	ErrInvalidEntry = errors.New("invalid entry price")
	// ErrOutOfOrder is returned when the observation is not for the pending checkpoint.
	ErrOutOfOrder = errors.New("checkpoint out of order")
)

// Observation is a raw price and liquidity sample taken for a checkpoint.
type Observation struct {
	Checkpoint domain.CheckpointName
	Price      float64
	Exit       *domain.ExitQuote // nil when the liquidity probe failed
	CheckedAt  time.Time
}

// Delta is the state change produced by a checkpoint evaluation.
type Delta struct {
	Checkpoint    domain.Checkpoint
	Liquidity     domain.LiquidityState
	Probation     *domain.Probation
	PrincipalBack *domain.PrincipalBack
	Status        domain.TradeStatus
}

// Evaluate computes the delta of recording obs on trade.
// trade is not modified.
func (p Params) Evaluate(trade *domain.PaperTrade, obs Observation) (Delta, error) {
	if trade.EntryPrice <= 0 {
		return Delta{}, fmt.Errorf("trade %s: %w", trade.ID, ErrInvalidEntry)
	}
	spec, ok := trade.Status.PendingCheckpoint()
	if !ok || spec.Name != obs.Checkpoint {
		return Delta{}, fmt.Errorf("trade %s status %s, got %s: %w",
			trade.ID, trade.Status, obs.Checkpoint, ErrOutOfOrder)
	}

	gross := GrossReturnPct(trade.EntryPrice, obs.Price)
	net := p.NetReturnPct(gross)

	var exit *domain.ExitQuote
	if obs.Exit != nil {
		q := *obs.Exit
		q.ExecutableReturnPct = p.ExecutableReturnPct(trade.EntryPrice, obs.Exit)
		exit = &q
	}

	exitReturn := net
	if exit != nil && exit.ExecutableReturnPct != nil {
		exitReturn = *exit.ExecutableReturnPct
	}
	liquidity, reading := p.LiquidityTransition(trade.Liquidity, exit, exitReturn, obs.CheckedAt)

	return Delta{
		Checkpoint: domain.Checkpoint{
			Name:           obs.Checkpoint,
			Price:          obs.Price,
			GrossReturnPct: gross,
			NetReturnPct:   net,
			Exit:           exit,
			Liquidity:      reading,
			CheckedAt:      obs.CheckedAt,
		},
		Liquidity:     liquidity,
		Probation:     p.Probation(trade.Probation, obs.Checkpoint, net, obs.CheckedAt),
		PrincipalBack: p.PrincipalBack(trade.PrincipalBack, obs.Checkpoint, net, obs.Price, obs.CheckedAt),
		Status:        domain.StatusAfter(obs.Checkpoint),
	}, nil
}

// Apply writes the delta onto trade.
func (d Delta) Apply(trade *domain.PaperTrade) {
	trade.Checkpoints = append(trade.Checkpoints, d.Checkpoint)
	trade.Liquidity = d.Liquidity
	trade.Probation = d.Probation
	trade.PrincipalBack = d.PrincipalBack
	trade.Status = d.Status
	trade.UpdatedAt = d.Checkpoint.CheckedAt
}
