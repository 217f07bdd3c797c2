package reporting

import (
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"curator-signal-lab/internal/domain"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// RenderSummary writes the header block and the per-horizon table.
func RenderSummary(w io.Writer, r *Report) error {
	s := r.Summary

	fmt.Fprintf(w, "\n%s\n", bold("CURATOR PAPER TRADES"))
	if !r.StartedAt.IsZero() {
		fmt.Fprintf(w, "  tracking since %s, updated %s\n",
			r.StartedAt.Format("2006-01-02 15:04"), r.LastUpdatedAt.Format("2006-01-02 15:04"))
	}
	fmt.Fprintf(w, "  trades: %d total, %d open, %d complete, %d abandoned\n\n",
		s.TotalTrades, s.OpenTrades, s.CompleteTrades, s.AbandonedTrades)

	tbl := tablewriter.NewWriter(w)
	tbl.Header("Horizon", "Obs", "Avg net", "Win rate", "Avg exec", "Exit feasible", "Probed")
	for _, h := range s.Horizons {
		if err := tbl.Append(
			string(h.Checkpoint),
			strconv.Itoa(h.Observed),
			signedPct(h.AvgNetReturnPct),
			pct(h.WinRatePct),
			signedPct(h.AvgExecutableReturnPct),
			pct(h.ExitFeasibilityRatePct),
			strconv.Itoa(h.ProbedCount),
		); err != nil {
			return err
		}
	}
	if err := tbl.Render(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n  liquidity: %d degraded, %d unexitable\n", s.DegradedCount, s.UnexitableCount)
	fmt.Fprintf(w, "  probation: %d flagged, %d would have saved, %d missed gain\n",
		s.ProbationFlaggedCount, s.ProbationWouldHaveSavedCount, s.ProbationMissedGainCount)
	fmt.Fprintf(w, "  principal back: %d triggered, avg combined %s\n",
		s.PrincipalBackTriggeredCount, signedPct(s.AvgPrincipalBackCombinedPct))
	fmt.Fprintf(w, "  avg curator buy: %s / %s SOL\n",
		usd(s.AvgCuratorBuySizeUSD), num(s.AvgCuratorBuySizeNative, 3))
	return nil
}

// RenderTrades writes one table row per trade.
func RenderTrades(w io.Writer, r *Report) error {
	if len(r.Trades) == 0 {
		fmt.Fprintln(w, "\n  No paper trades yet.")
		return nil
	}

	header := []any{"Detected", "Token", "Wallet", "Entry"}
	for _, spec := range domain.CheckpointSchedule {
		header = append(header, string(spec.Name))
	}
	header = append(header, "Exec", "Liquidity", "Flags", "Status")

	tbl := tablewriter.NewWriter(w)
	tbl.Header(header...)
	for _, row := range r.Trades {
		cells := []any{
			row.DetectedAt.Format("01-02 15:04"),
			row.Label(),
			shortAddr(row.Wallet),
			strconv.FormatFloat(row.EntryPrice, 'g', 6, 64),
		}
		for _, v := range row.NetReturns {
			cells = append(cells, signedPct(v))
		}
		cells = append(cells,
			signedPct(row.LastExecutablePct),
			liquidityLabel(row.Liquidity),
			flags(row),
			string(row.Status),
		)
		if err := tbl.Append(cells...); err != nil {
			return err
		}
	}
	return tbl.Render()
}

func liquidityLabel(s domain.LiquidityStatus) string {
	switch s {
	case domain.LiquidityDegraded:
		return yellow(string(s))
	case domain.LiquidityUnexitable:
		return red(string(s))
	default:
		return string(s)
	}
}

// flags is P for probation-flagged and B for a finalized principal-back.
func flags(r TradeRow) string {
	f := ""
	if r.ProbationFlagged {
		f += "P"
	}
	if r.PrincipalBackPct != nil {
		f += "B"
	}
	if f == "" {
		return "-"
	}
	return f
}

func signedPct(v *float64) string {
	if v == nil {
		return "-"
	}
	s := fmt.Sprintf("%+.2f%%", *v)
	switch {
	case *v > 0:
		return green(s)
	case *v < 0:
		return red(s)
	default:
		return s
	}
}

func pct(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", *v)
}

func usd(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("$%.2f", *v)
}

func num(v *float64, prec int) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', prec, 64)
}
