// Package reporting renders the paper-trade ledger as tables, Markdown and CSV.
package reporting

import (
	"time"

	"curator-signal-lab/internal/domain"
)

// Report is a flattened view of the ledger at GeneratedAt.
type Report struct {
	GeneratedAt   time.Time
	StartedAt     time.Time
	LastUpdatedAt time.Time
	Summary       domain.AggregateStats
	Trades        []TradeRow
}

// TradeRow is one paper trade reduced to its reportable fields.
type TradeRow struct {
	ID         string
	Wallet     string
	Token      string // mint address
	Symbol     string
	DetectedAt time.Time
	EntryPrice float64
	Status     domain.TradeStatus
	Liquidity  domain.LiquidityStatus

	// NetReturns holds the net return per checkpoint, in CheckpointSchedule
	// order. Nil entries were not observed.
	NetReturns []*float64

	LastExecutablePct *float64 // executable return at the latest probed checkpoint
	ProbationFlagged  bool
	PrincipalBackPct  *float64 // blended return once finalized
	BuySizeUSD        *float64
	BuySizeNative     *float64
}

// Label returns the symbol when known, else a shortened mint.
func (r TradeRow) Label() string {
	if r.Symbol != "" {
		return r.Symbol
	}
	return shortAddr(r.Token)
}

// Filter selects trade rows. Zero fields match everything.
type Filter struct {
	Wallet string
	Status string // a TradeStatus, or "open" for every non-terminal status
	Limit  int    // keep the most recent Limit rows
}

func (f Filter) match(t *domain.PaperTrade) bool {
	if f.Wallet != "" && t.CuratorWallet != f.Wallet {
		return false
	}
	switch f.Status {
	case "":
		return true
	case "open":
		return !t.Status.IsTerminal()
	default:
		return string(t.Status) == f.Status
	}
}

func shortAddr(addr string) string {
	if len(addr) <= 10 {
		return addr
	}
	return addr[:4] + ".." + addr[len(addr)-4:]
}
