package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string. Values are uncolored.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder
	s := r.Summary

	// Header
	sb.WriteString("# Curator Paper Trades\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	if !r.StartedAt.IsZero() {
		sb.WriteString(fmt.Sprintf("Tracking since %s | Last update %s\n\n",
			r.StartedAt.Format(time.RFC3339), r.LastUpdatedAt.Format(time.RFC3339)))
	}

	// Totals
	sb.WriteString("## Totals\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Trades | %d |\n", s.TotalTrades))
	sb.WriteString(fmt.Sprintf("| Open | %d |\n", s.OpenTrades))
	sb.WriteString(fmt.Sprintf("| Complete | %d |\n", s.CompleteTrades))
	sb.WriteString(fmt.Sprintf("| Abandoned | %d |\n", s.AbandonedTrades))
	sb.WriteString(fmt.Sprintf("| Degraded | %d |\n", s.DegradedCount))
	sb.WriteString(fmt.Sprintf("| Unexitable | %d |\n", s.UnexitableCount))
	sb.WriteString(fmt.Sprintf("| Probation Flagged | %d |\n", s.ProbationFlaggedCount))
	sb.WriteString(fmt.Sprintf("| Probation Would Have Saved | %d |\n", s.ProbationWouldHaveSavedCount))
	sb.WriteString(fmt.Sprintf("| Probation Missed Gain | %d |\n", s.ProbationMissedGainCount))
	sb.WriteString(fmt.Sprintf("| Principal Back Triggered | %d |\n", s.PrincipalBackTriggeredCount))
	sb.WriteString(fmt.Sprintf("| Avg Principal Back Combined | %s |\n", plainPct(s.AvgPrincipalBackCombinedPct)))
	sb.WriteString("\n")

	// Horizons
	sb.WriteString("## Horizons\n\n")
	sb.WriteString("| Horizon | Observed | Avg Net | Win Rate | Avg Executable | Exit Feasibility |\n")
	sb.WriteString("|---------|----------|---------|----------|----------------|------------------|\n")
	for _, h := range s.Horizons {
		sb.WriteString(fmt.Sprintf("| %s | %d | %s | %s | %s | %s |\n",
			h.Checkpoint, h.Observed,
			plainPct(h.AvgNetReturnPct), plainPct(h.WinRatePct),
			plainPct(h.AvgExecutableReturnPct), plainPct(h.ExitFeasibilityRatePct)))
	}
	sb.WriteString("\n")

	// Trades
	sb.WriteString("## Trades\n\n")
	if len(r.Trades) == 0 {
		sb.WriteString("No paper trades.\n\n")
		return sb.String()
	}
	sb.WriteString("| Detected | Token | Entry | 15m | 30m | 1h | 6h | 24h | Liquidity | Status |\n")
	sb.WriteString("|----------|-------|-------|-----|-----|----|----|-----|-----------|--------|\n")
	for _, t := range r.Trades {
		sb.WriteString(fmt.Sprintf("| %s | %s | %g |", t.DetectedAt.Format("2006-01-02 15:04"), t.Label(), t.EntryPrice))
		for _, v := range t.NetReturns {
			sb.WriteString(" " + plainPct(v) + " |")
		}
		sb.WriteString(fmt.Sprintf(" %s | %s |\n", t.Liquidity, t.Status))
	}
	sb.WriteString("\n")

	return sb.String()
}

func plainPct(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f%%", *v)
}
