package reporting

import (
	"context"
	"sort"
	"time"

	"curator-signal-lab/internal/domain"
	"curator-signal-lab/internal/metrics"
	"curator-signal-lab/internal/storage"
)

// Generator builds reports from a snapshot document or a trade store.
type Generator struct {
	filter Filter
	now    func() time.Time // injectable clock for deterministic output
}

// NewGenerator creates a report generator.
func NewGenerator(filter Filter) *Generator {
	return &Generator{
		filter: filter,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// FromDocument builds a report from a persisted ledger document.
// The summary is taken as persisted and covers all trades regardless of filter.
func (g *Generator) FromDocument(doc *domain.Document) *Report {
	return &Report{
		GeneratedAt:   g.now(),
		StartedAt:     doc.StartedAt,
		LastUpdatedAt: doc.LastUpdatedAt,
		Summary:       doc.Summary,
		Trades:        g.rows(doc.Trades),
	}
}

// FromStore builds a report from every trade in store, recomputing the summary.
func (g *Generator) FromStore(ctx context.Context, store storage.PaperTradeStore) (*Report, error) {
	trades, err := store.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	r := &Report{
		GeneratedAt: g.now(),
		Summary:     metrics.ComputeSummary(trades),
		Trades:      g.rows(trades),
	}
	for _, t := range trades {
		if r.StartedAt.IsZero() || t.DetectedAt.Before(r.StartedAt) {
			r.StartedAt = t.DetectedAt
		}
		if t.UpdatedAt.After(r.LastUpdatedAt) {
			r.LastUpdatedAt = t.UpdatedAt
		}
	}
	return r, nil
}

// rows converts matching trades to rows ordered by detection time.
func (g *Generator) rows(trades []*domain.PaperTrade) []TradeRow {
	rows := make([]TradeRow, 0, len(trades))
	for _, t := range trades {
		if g.filter.match(t) {
			rows = append(rows, toRow(t))
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if !rows[i].DetectedAt.Equal(rows[j].DetectedAt) {
			return rows[i].DetectedAt.Before(rows[j].DetectedAt)
		}
		return rows[i].ID < rows[j].ID
	})
	if g.filter.Limit > 0 && len(rows) > g.filter.Limit {
		rows = rows[len(rows)-g.filter.Limit:]
	}
	return rows
}

func toRow(t *domain.PaperTrade) TradeRow {
	row := TradeRow{
		ID:            t.ID,
		Wallet:        t.CuratorWallet,
		Token:         t.TokenID,
		Symbol:        t.TokenSymbol,
		DetectedAt:    t.DetectedAt,
		EntryPrice:    t.EntryPrice,
		Status:        t.Status,
		Liquidity:     t.Liquidity.Status,
		NetReturns:    make([]*float64, len(domain.CheckpointSchedule)),
		BuySizeUSD:    t.EntryContext.CuratorBuySizeUSD,
		BuySizeNative: t.EntryContext.CuratorBuySizeNative,
	}
	for i, spec := range domain.CheckpointSchedule {
		if cp := t.Checkpoint(spec.Name); cp != nil {
			v := cp.NetReturnPct
			row.NetReturns[i] = &v
			if cp.Exit != nil && cp.Exit.ExecutableReturnPct != nil {
				row.LastExecutablePct = cp.Exit.ExecutableReturnPct
			}
		}
	}
	if t.Probation != nil {
		row.ProbationFlagged = t.Probation.FlaggedFlat
	}
	if t.PrincipalBack.IsFinalized() {
		row.PrincipalBackPct = t.PrincipalBack.CombinedReturnPct
	}
	return row
}
