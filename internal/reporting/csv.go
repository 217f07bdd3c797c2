package reporting

import (
	"encoding/csv"
	"io"
	"strconv"
	"time"

	"curator-signal-lab/internal/domain"
)

// WriteCSV writes one record per trade row. Missing values are empty.
func WriteCSV(w io.Writer, rows []TradeRow) error {
	cw := csv.NewWriter(w)

	header := []string{"id", "wallet", "token", "symbol", "detected_at", "entry_price", "status", "liquidity"}
	for _, spec := range domain.CheckpointSchedule {
		header = append(header, "net_"+string(spec.Name))
	}
	header = append(header, "last_executable_pct", "probation_flagged", "principal_back_pct",
		"buy_size_usd", "buy_size_sol")
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, r := range rows {
		rec := []string{
			r.ID,
			r.Wallet,
			r.Token,
			r.Symbol,
			r.DetectedAt.UTC().Format(time.RFC3339),
			strconv.FormatFloat(r.EntryPrice, 'f', -1, 64),
			string(r.Status),
			string(r.Liquidity),
		}
		for _, v := range r.NetReturns {
			rec = append(rec, csvFloat(v))
		}
		rec = append(rec,
			csvFloat(r.LastExecutablePct),
			strconv.FormatBool(r.ProbationFlagged),
			csvFloat(r.PrincipalBackPct),
			csvFloat(r.BuySizeUSD),
			csvFloat(r.BuySizeNative),
		)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

func csvFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 4, 64)
}
