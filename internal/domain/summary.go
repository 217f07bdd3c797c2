package domain

import "time"

// HorizonStats aggregates one checkpoint horizon across all trades.
// Nil fields mean no trade has data for the horizon yet.
type HorizonStats struct {
	Checkpoint             CheckpointName `json:"checkpoint"`
	Observed               int            `json:"observed"` // trades with this checkpoint populated
	AvgNetReturnPct        *float64       `json:"avgNetReturnPct"`
	WinRatePct             *float64       `json:"winRatePct"` // % of net returns > 0
	AvgExecutableReturnPct *float64       `json:"avgExecutableReturnPct"`
	ExitFeasibilityRatePct *float64       `json:"exitFeasibilityRatePct"` // % routable among probed checkpoints
	ProbedCount            int            `json:"probedCount"`
}

// AggregateStats is the rolling summary over all persisted paper trades.
type AggregateStats struct {
	TotalTrades     int `json:"totalTrades"`
	OpenTrades      int `json:"openTrades"`
	CompleteTrades  int `json:"completeTrades"`
	AbandonedTrades int `json:"abandonedTrades"`

	Horizons []HorizonStats `json:"horizons"` // in CheckpointSchedule order

	DegradedCount   int `json:"degradedCount"`
	UnexitableCount int `json:"unexitableCount"`

	ProbationFlaggedCount        int `json:"probationFlaggedCount"`
	ProbationWouldHaveSavedCount int `json:"probationWouldHaveSavedCount"`
	ProbationMissedGainCount     int `json:"probationMissedGainCount"`

	PrincipalBackTriggeredCount int      `json:"principalBackTriggeredCount"`
	AvgPrincipalBackCombinedPct *float64 `json:"avgPrincipalBackCombinedPct"`

	AvgCuratorBuySizeUSD    *float64 `json:"avgCuratorBuySizeUsd"`
	AvgCuratorBuySizeNative *float64 `json:"avgCuratorBuySizeNative"`
}

// Horizon returns the stats of the given checkpoint, or nil.
func (s *AggregateStats) Horizon(name CheckpointName) *HorizonStats {
	for i := range s.Horizons {
		if s.Horizons[i].Checkpoint == name {
			return &s.Horizons[i]
		}
	}
	return nil
}

// Document is the persisted aggregate layout of the paper-trade ledger.
type Document struct {
	StartedAt       time.Time      `json:"startedAt"`
	LastUpdatedAt   time.Time      `json:"lastUpdatedAt"`
	TotalSignals    int            `json:"totalSignals"`
	CompleteSignals int            `json:"completeSignals"`
	Summary         AggregateStats `json:"summary"`
	Trades          []*PaperTrade  `json:"trades"`
}
