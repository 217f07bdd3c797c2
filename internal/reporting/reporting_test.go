package reporting

import (
	"bytes"
	"context"
	"encoding/csv"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator-signal-lab/internal/domain"
	"curator-signal-lab/internal/metrics"
	"curator-signal-lab/internal/storage/memory"
)

var (
	t0    = time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)
	fixed = func() time.Time { return time.Date(2026, 2, 12, 0, 0, 0, 0, time.UTC) }
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func f(v float64) *float64 { return &v }

func fixtureTrades() []*domain.PaperTrade {
	return []*domain.PaperTrade{
		{
			ID:            "t2",
			CuratorWallet: "WalletBBBBBBBBBBBBBBBBBBBBBBBBBBBB",
			TokenID:       "MintTwo222222222222222222222222222222",
			DetectedAt:    t0.Add(time.Hour),
			EntryPrice:    0.5,
			Status:        domain.StatusPending30m,
			Liquidity:     domain.LiquidityState{Status: domain.LiquidityDegraded},
			Checkpoints: []domain.Checkpoint{
				{Name: domain.Checkpoint15m, NetReturnPct: -12.5, Exit: &domain.ExitQuote{Routable: true, ExecutableReturnPct: f(-20)}},
			},
			Probation: &domain.Probation{FlaggedFlat: true, ExitReturnPct: -12.5},
			UpdatedAt: t0.Add(75 * time.Minute),
		},
		{
			ID:            "t1",
			CuratorWallet: "WalletAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
			TokenID:       "MintOne111111111111111111111111111111",
			TokenSymbol:   "ONE",
			DetectedAt:    t0,
			EntryPrice:    1,
			Status:        domain.StatusComplete,
			Liquidity:     domain.LiquidityState{Status: domain.LiquidityExitable},
			Checkpoints: []domain.Checkpoint{
				{Name: domain.Checkpoint15m, NetReturnPct: 7.86},
				{Name: domain.Checkpoint30m, NetReturnPct: 17.86},
				{Name: domain.Checkpoint1h, NetReturnPct: 57.86},
				{Name: domain.Checkpoint6h, NetReturnPct: 27.86},
				{Name: domain.Checkpoint24h, NetReturnPct: -2.14, Exit: &domain.ExitQuote{Routable: true, ExecutableReturnPct: f(-5)}},
			},
			PrincipalBack: &domain.PrincipalBack{LockedReturnPct: 37.6, CombinedReturnPct: f(36.85)},
			EntryContext:  domain.EntryContext{CuratorBuySizeUSD: f(150), CuratorBuySizeNative: f(1)},
			UpdatedAt:     t0.Add(24 * time.Hour),
		},
	}
}

func TestGenerator_FromStore(t *testing.T) {
	store := memory.NewPaperTradeStore()
	require.NoError(t, store.Seed(fixtureTrades()))

	r, err := NewGenerator(Filter{}).WithClock(fixed).FromStore(context.Background(), store)
	require.NoError(t, err)

	assert.Equal(t, fixed(), r.GeneratedAt)
	assert.Equal(t, t0, r.StartedAt)
	assert.Equal(t, t0.Add(24*time.Hour), r.LastUpdatedAt)
	assert.Equal(t, 2, r.Summary.TotalTrades)
	assert.Equal(t, 1, r.Summary.CompleteTrades)

	require.Len(t, r.Trades, 2)
	first := r.Trades[0]
	assert.Equal(t, "t1", first.ID, "rows ordered by detection time")
	assert.Equal(t, "ONE", first.Label())
	require.Len(t, first.NetReturns, len(domain.CheckpointSchedule))
	assert.Equal(t, -2.14, *first.NetReturns[4])
	assert.Equal(t, -5.0, *first.LastExecutablePct)
	assert.Equal(t, 36.85, *first.PrincipalBackPct)

	second := r.Trades[1]
	assert.Equal(t, "Mint..2222", second.Label())
	assert.Nil(t, second.NetReturns[1])
	assert.True(t, second.ProbationFlagged)
	assert.Nil(t, second.PrincipalBackPct)
}

func TestGenerator_FromDocumentFilters(t *testing.T) {
	trades := fixtureTrades()
	doc := &domain.Document{StartedAt: t0, LastUpdatedAt: t0, Summary: metrics.ComputeSummary(trades), Trades: trades}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all", Filter{}, []string{"t1", "t2"}},
		{"open", Filter{Status: "open"}, []string{"t2"}},
		{"complete", Filter{Status: "complete"}, []string{"t1"}},
		{"wallet", Filter{Wallet: "WalletAAAAAAAAAAAAAAAAAAAAAAAAAAAA"}, []string{"t1"}},
		{"limit keeps latest", Filter{Limit: 1}, []string{"t2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewGenerator(tt.filter).WithClock(fixed).FromDocument(doc)
			var ids []string
			for _, row := range r.Trades {
				ids = append(ids, row.ID)
			}
			assert.Equal(t, tt.want, ids)
			assert.Equal(t, 2, r.Summary.TotalTrades, "summary is unfiltered")
		})
	}
}

func TestRenderSummaryAndTrades(t *testing.T) {
	trades := fixtureTrades()
	doc := &domain.Document{StartedAt: t0, LastUpdatedAt: t0, Summary: metrics.ComputeSummary(trades), Trades: trades}
	r := NewGenerator(Filter{}).WithClock(fixed).FromDocument(doc)

	var buf bytes.Buffer
	require.NoError(t, RenderSummary(&buf, r))
	out := buf.String()
	assert.Contains(t, out, "2 total, 1 open, 1 complete, 0 abandoned")
	assert.Contains(t, strings.ToLower(out), "horizon")
	assert.Contains(t, out, "1 flagged")

	buf.Reset()
	require.NoError(t, RenderTrades(&buf, r))
	out = buf.String()
	assert.Contains(t, out, "ONE")
	assert.Contains(t, out, "+57.86%")
	assert.Contains(t, out, "-12.50%")
	assert.Contains(t, out, "degraded")
	assert.Contains(t, out, "pending_30m")

	buf.Reset()
	require.NoError(t, RenderTrades(&buf, &Report{}))
	assert.Contains(t, buf.String(), "No paper trades yet")
}

func TestWriteCSV(t *testing.T) {
	trades := fixtureTrades()
	r := NewGenerator(Filter{}).WithClock(fixed).FromDocument(&domain.Document{Trades: trades})

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, r.Trades))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	header := records[0]
	assert.Equal(t, "id", header[0])
	assert.Contains(t, header, "net_24h")

	col := func(name string) int {
		for i, h := range header {
			if h == name {
				return i
			}
		}
		t.Fatalf("missing column %s", name)
		return -1
	}
	assert.Equal(t, "t1", records[1][col("id")])
	assert.Equal(t, "57.8600", records[1][col("net_1h")])
	assert.Equal(t, "150.0000", records[1][col("buy_size_usd")])
	assert.Equal(t, "", records[2][col("net_30m")])
	assert.Equal(t, "true", records[2][col("probation_flagged")])
}

func TestRenderMarkdown(t *testing.T) {
	trades := fixtureTrades()
	doc := &domain.Document{StartedAt: t0, LastUpdatedAt: t0, Summary: metrics.ComputeSummary(trades), Trades: trades}
	md := RenderMarkdown(NewGenerator(Filter{}).WithClock(fixed).FromDocument(doc))

	assert.True(t, strings.HasPrefix(md, "# Curator Paper Trades\n"))
	assert.Contains(t, md, "| Total Trades | 2 |")
	assert.Contains(t, md, "| 2026-02-10 08:00 | ONE | 1 | 7.86% | 17.86% | 57.86% | 27.86% | -2.14% | exitable | complete |")

	empty := RenderMarkdown(NewGenerator(Filter{}).WithClock(fixed).FromDocument(&domain.Document{}))
	assert.Contains(t, empty, "No paper trades.")
}
