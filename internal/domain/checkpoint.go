package domain

import "time"

// CheckpointName is a fixed offset from trade entry.
type CheckpointName string

const (
	Checkpoint15m CheckpointName = "15m"
	Checkpoint30m CheckpointName = "30m"
	Checkpoint1h  CheckpointName = "1h"
	Checkpoint6h  CheckpointName = "6h"
	Checkpoint24h CheckpointName = "24h"
)

// CheckpointSpec binds a checkpoint to its offset and the status awaiting it.
type CheckpointSpec struct {
	Name    CheckpointName
	Offset  time.Duration
	Pending TradeStatus
}

// CheckpointSchedule is the ordered checkpoint sequence. Order is significant.
var CheckpointSchedule = []CheckpointSpec{
	{Name: Checkpoint15m, Offset: 15 * time.Minute, Pending: StatusPending15m},
	{Name: Checkpoint30m, Offset: 30 * time.Minute, Pending: StatusPending30m},
	{Name: Checkpoint1h, Offset: time.Hour, Pending: StatusPending1h},
	{Name: Checkpoint6h, Offset: 6 * time.Hour, Pending: StatusPending6h},
	{Name: Checkpoint24h, Offset: 24 * time.Hour, Pending: StatusPending24h},
}

// CheckpointIndex returns the position of name in CheckpointSchedule, or -1.
func CheckpointIndex(name CheckpointName) int {
	for i, spec := range CheckpointSchedule {
		if spec.Name == name {
			return i
		}
	}
	return -1
}

// CheckpointLiquidity is the liquidity reading of a single checkpoint.
// Unlike LiquidityStatus it is not sticky and may be "unknown".
type CheckpointLiquidity string

const (
	CheckpointLiquidityExitable   CheckpointLiquidity = "exitable"
	CheckpointLiquidityDegraded   CheckpointLiquidity = "degraded"
	CheckpointLiquidityUnexitable CheckpointLiquidity = "unexitable"
	CheckpointLiquidityUnknown    CheckpointLiquidity = "unknown"
)

// ExitQuote is the liquidity probe result recorded on a checkpoint.
type ExitQuote struct {
	Routable            bool     `json:"routable"`
	PriceImpactBps      *float64 `json:"priceImpactBps,omitempty"`      // nullable
	ExecutablePrice     *float64 `json:"executablePrice,omitempty"`     // nullable
	ExecutableReturnPct *float64 `json:"executableReturnPct,omitempty"` // net of fees; -100 when unroutable
}

// Checkpoint is a populated price/liquidity sample.
type Checkpoint struct {
	Name           CheckpointName      `json:"name"`
	Price          float64             `json:"price"`
	GrossReturnPct float64             `json:"grossReturnPct"`
	NetReturnPct   float64             `json:"netReturnPct"`
	Exit           *ExitQuote          `json:"exit,omitempty"` // nil when the probe failed
	Liquidity      CheckpointLiquidity `json:"liquidity"`
	CheckedAt      time.Time           `json:"checkedAt"`
}

// CheckpointObservation is the flattened, append-only log row of one
// recorded checkpoint.
type CheckpointObservation struct {
	TradeID             string
	CuratorWallet       string
	TokenID             string
	Checkpoint          CheckpointName
	EntryPrice          float64
	Price               float64
	GrossReturnPct      float64
	NetReturnPct        float64
	Probed              bool
	Routable            bool
	PriceImpactBps      *float64 // nullable
	ExecutableReturnPct *float64 // nullable
	Liquidity           CheckpointLiquidity
	TradeLiquidity      LiquidityStatus
	CheckedAt           time.Time
}

// NewCheckpointObservation flattens the checkpoint name of trade into a log row.
// Returns false if the checkpoint is not populated.
func NewCheckpointObservation(trade *PaperTrade, name CheckpointName) (*CheckpointObservation, bool) {
	cp := trade.Checkpoint(name)
	if cp == nil {
		return nil, false
	}
	obs := &CheckpointObservation{
		TradeID:        trade.ID,
		CuratorWallet:  trade.CuratorWallet,
		TokenID:        trade.TokenID,
		Checkpoint:     cp.Name,
		EntryPrice:     trade.EntryPrice,
		Price:          cp.Price,
		GrossReturnPct: cp.GrossReturnPct,
		NetReturnPct:   cp.NetReturnPct,
		Liquidity:      cp.Liquidity,
		TradeLiquidity: trade.Liquidity.Status,
		CheckedAt:      cp.CheckedAt,
	}
	if cp.Exit != nil {
		obs.Probed = true
		obs.Routable = cp.Exit.Routable
		obs.PriceImpactBps = cloneFloat(cp.Exit.PriceImpactBps)
		obs.ExecutableReturnPct = cloneFloat(cp.Exit.ExecutableReturnPct)
	}
	return obs, true
}
