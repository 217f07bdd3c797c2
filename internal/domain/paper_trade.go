package domain

import "time"

// TradeStatus is the checkpoint state machine value of a PaperTrade.
type TradeStatus string

const (
	StatusPending15m TradeStatus = "pending_15m"
	StatusPending30m TradeStatus = "pending_30m"
	StatusPending1h  TradeStatus = "pending_1h"
	StatusPending6h  TradeStatus = "pending_6h"
	StatusPending24h TradeStatus = "pending_24h"
	StatusComplete   TradeStatus = "complete"
	StatusAbandoned  TradeStatus = "abandoned"
)

// IsTerminal reports whether no further checkpoint will be evaluated.
func (s TradeStatus) IsTerminal() bool {
	return s == StatusComplete || s == StatusAbandoned
}

// IsValid checks if the status is a valid value.
func (s TradeStatus) IsValid() bool {
	if s.IsTerminal() {
		return true
	}
	_, ok := s.PendingCheckpoint()
	return ok
}

// PendingCheckpoint returns the checkpoint this status is waiting for.
func (s TradeStatus) PendingCheckpoint() (CheckpointSpec, bool) {
	for _, spec := range CheckpointSchedule {
		if spec.Pending == s {
			return spec, true
		}
	}
	return CheckpointSpec{}, false
}

// StatusAfter returns the status that follows a recorded checkpoint.
func StatusAfter(name CheckpointName) TradeStatus {
	idx := CheckpointIndex(name)
	if idx < 0 || idx+1 >= len(CheckpointSchedule) {
		return StatusComplete
	}
	return CheckpointSchedule[idx+1].Pending
}

// LiquidityStatus is the sticky trade-level exit feasibility.
// Transitions only along exitable -> degraded -> unexitable.
type LiquidityStatus string

const (
	LiquidityExitable   LiquidityStatus = "exitable"
	LiquidityDegraded   LiquidityStatus = "degraded"
	LiquidityUnexitable LiquidityStatus = "unexitable"
)

// Rank orders statuses from best (0) to worst (2).
func (s LiquidityStatus) Rank() int {
	switch s {
	case LiquidityDegraded:
		return 1
	case LiquidityUnexitable:
		return 2
	default:
		return 0
	}
}

// LiquidityState tracks liquidity degradation over the trade lifetime.
type LiquidityState struct {
	Status                   LiquidityStatus `json:"status"`
	FirstDegradedAt          *time.Time      `json:"firstDegradedAt,omitempty"`
	WouldHaveExitedReturnPct *float64        `json:"wouldHaveExitedReturnPct,omitempty"` // return if forced out at degradation
	FirstUnexitableAt        *time.Time      `json:"firstUnexitableAt,omitempty"`
}

// Probation is the early-momentum diagnostic set at the 15m checkpoint.
// FlaggedFlat and ExitReturnPct never change once set.
type Probation struct {
	FlaggedFlat       bool             `json:"flaggedFlat"`
	ExitReturnPct     float64          `json:"exitReturnPct"` // net return at 15m
	SetAt             time.Time        `json:"setAt"`
	MissedGainPct     *float64         `json:"missedGainPct,omitempty"`     // set at 1h when flagged
	WouldHaveSavedPct *float64         `json:"wouldHaveSavedPct,omitempty"` // largest saving over Later
	Later             []ProbationLater `json:"later,omitempty"`             // one entry per 6h and 24h checkpoint when flagged
}

// ProbationLater is the early-exit comparison at one later checkpoint.
type ProbationLater struct {
	Checkpoint        CheckpointName `json:"checkpoint"`
	NetReturnPct      float64        `json:"netReturnPct"`
	WouldHaveSavedPct float64        `json:"wouldHaveSavedPct"`
}

// PrincipalBack simulates locking a fraction of the position at a return threshold.
type PrincipalBack struct {
	TriggeredAt       time.Time       `json:"triggeredAt"`
	TriggerCheckpoint CheckpointName  `json:"triggerCheckpoint"`
	TriggeredPrice    float64         `json:"triggeredPrice"`
	LockedReturnPct   float64         `json:"lockedReturnPct"`             // net at trigger * lock fraction
	MoonbagReturnPct  *float64        `json:"moonbagReturnPct,omitempty"`  // final net * (1 - lock fraction)
	CombinedReturnPct *float64        `json:"combinedReturnPct,omitempty"` // locked + moonbag
	FinalCheckpoint   *CheckpointName `json:"finalCheckpoint,omitempty"`
}

// IsFinalized reports whether the blended return has been computed.
func (p *PrincipalBack) IsFinalized() bool {
	return p != nil && p.CombinedReturnPct != nil
}

// EntryContext captures market conditions at confirmation.
type EntryContext struct {
	CuratorBuySizeUSD    *float64 `json:"curatorBuySizeUsd,omitempty"`
	CuratorBuySizeNative *float64 `json:"curatorBuySizeNative,omitempty"` // SOL
	SellRoutableAtEntry  bool     `json:"sellRoutableAtEntry"`
	SellImpactBpsAtEntry *float64 `json:"sellImpactBpsAtEntry,omitempty"`
	TokenAgeSecAtEntry   *int64   `json:"tokenAgeSecAtEntry,omitempty"`
}

// PaperTrade is a simulated position opened on a confirmed curator buy.
type PaperTrade struct {
	ID            string    `json:"id"` // deterministic hash
	CuratorWallet string    `json:"curatorWallet"`
	TokenID       string    `json:"token"` // mint address
	TokenName     string    `json:"tokenName,omitempty"`
	TokenSymbol   string    `json:"tokenSymbol,omitempty"`
	DetectedAt    time.Time `json:"detectedAt"` // confirmation time
	EntryPrice    float64   `json:"entryPrice"` // immutable
	SignalRef     string    `json:"signalRef,omitempty"`
	SignalID      string    `json:"signalId,omitempty"`

	EntryContext  EntryContext   `json:"entryContext"`
	Checkpoints   []Checkpoint   `json:"checkpoints"` // prefix of CheckpointSchedule, in order
	Liquidity     LiquidityState `json:"liquidity"`
	Probation     *Probation     `json:"probation,omitempty"`
	PrincipalBack *PrincipalBack `json:"principalBack,omitempty"`

	Status        TradeStatus `json:"status"`
	AbandonedAt   *time.Time  `json:"abandonedAt,omitempty"`
	AbandonReason string      `json:"abandonReason,omitempty"`
	UpdatedAt     time.Time   `json:"updatedAt"`
	Version       int64       `json:"version"` // optimistic concurrency counter, owned by stores
}

// Abandon reasons
const (
	AbandonReasonCheckpointUnobtainable = "checkpoint_unobtainable"
)

// Checkpoint returns the recorded checkpoint with the given name, or nil.
func (t *PaperTrade) Checkpoint(name CheckpointName) *Checkpoint {
	for i := range t.Checkpoints {
		if t.Checkpoints[i].Name == name {
			return &t.Checkpoints[i]
		}
	}
	return nil
}

// LastCheckpoint returns the most recent checkpoint, or nil.
func (t *PaperTrade) LastCheckpoint() *Checkpoint {
	if len(t.Checkpoints) == 0 {
		return nil
	}
	return &t.Checkpoints[len(t.Checkpoints)-1]
}

// Key returns the (wallet, token) key of the trade.
func (t *PaperTrade) Key() SignalKey {
	return SignalKey{WalletID: t.CuratorWallet, TokenID: t.TokenID}
}

// Clone returns a deep copy of the trade.
func (t *PaperTrade) Clone() *PaperTrade {
	if t == nil {
		return nil
	}
	c := *t
	c.EntryContext = EntryContext{
		CuratorBuySizeUSD:    cloneFloat(t.EntryContext.CuratorBuySizeUSD),
		CuratorBuySizeNative: cloneFloat(t.EntryContext.CuratorBuySizeNative),
		SellRoutableAtEntry:  t.EntryContext.SellRoutableAtEntry,
		SellImpactBpsAtEntry: cloneFloat(t.EntryContext.SellImpactBpsAtEntry),
		TokenAgeSecAtEntry:   cloneInt(t.EntryContext.TokenAgeSecAtEntry),
	}
	if t.Checkpoints != nil {
		c.Checkpoints = make([]Checkpoint, len(t.Checkpoints))
		for i, cp := range t.Checkpoints {
			c.Checkpoints[i] = cp
			if cp.Exit != nil {
				exit := ExitQuote{
					Routable:            cp.Exit.Routable,
					PriceImpactBps:      cloneFloat(cp.Exit.PriceImpactBps),
					ExecutablePrice:     cloneFloat(cp.Exit.ExecutablePrice),
					ExecutableReturnPct: cloneFloat(cp.Exit.ExecutableReturnPct),
				}
				c.Checkpoints[i].Exit = &exit
			}
		}
	}
	c.Liquidity = LiquidityState{
		Status:                   t.Liquidity.Status,
		FirstDegradedAt:          cloneTime(t.Liquidity.FirstDegradedAt),
		WouldHaveExitedReturnPct: cloneFloat(t.Liquidity.WouldHaveExitedReturnPct),
		FirstUnexitableAt:        cloneTime(t.Liquidity.FirstUnexitableAt),
	}
	if t.Probation != nil {
		p := *t.Probation
		p.MissedGainPct = cloneFloat(t.Probation.MissedGainPct)
		p.WouldHaveSavedPct = cloneFloat(t.Probation.WouldHaveSavedPct)
		p.Later = append([]ProbationLater(nil), t.Probation.Later...)
		c.Probation = &p
	}
	if t.PrincipalBack != nil {
		pb := *t.PrincipalBack
		pb.MoonbagReturnPct = cloneFloat(t.PrincipalBack.MoonbagReturnPct)
		pb.CombinedReturnPct = cloneFloat(t.PrincipalBack.CombinedReturnPct)
		if t.PrincipalBack.FinalCheckpoint != nil {
			name := *t.PrincipalBack.FinalCheckpoint
			pb.FinalCheckpoint = &name
		}
		c.PrincipalBack = &pb
	}
	c.AbandonedAt = cloneTime(t.AbandonedAt)
	return &c
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	x := *v
	return &x
}

func cloneInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	x := *v
	return &x
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	x := *v
	return &x
}
