// Package main renders the paper-trade ledger from a snapshot or a store.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"

	"curator-signal-lab/internal/reporting"
	"curator-signal-lab/internal/storage/postgres"
	"curator-signal-lab/internal/storage/snapshot"
	"curator-signal-lab/internal/storage/sqlite"
)

func main() {
	source := flag.String("source", "snapshot", "Trade source: snapshot, sqlite or postgres")
	snapshotPath := flag.String("snapshot", "reports/paper_trades_curator.json", "Snapshot document path")
	sqlitePath := flag.String("sqlite-path", "data/paper_trades.db", "SQLite database path")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	format := flag.String("format", "table", "Output format: table, markdown or csv")
	output := flag.String("output", "", "Output file (default stdout)")
	status := flag.String("status", "", "Only trades with this status, or \"open\"")
	wallet := flag.String("wallet", "", "Only trades of this curator wallet")
	limit := flag.Int("limit", 0, "Only the most recent N trades")
	noColor := flag.Bool("no-color", false, "Disable colored output")
	flag.Parse()

	if *noColor || *output != "" {
		color.NoColor = true
	}

	ctx := context.Background()
	gen := reporting.NewGenerator(reporting.Filter{Wallet: *wallet, Status: *status, Limit: *limit})

	var (
		report *reporting.Report
		err    error
	)
	switch *source {
	case "snapshot":
		doc, rerr := snapshot.Read(*snapshotPath)
		if rerr != nil {
			exitf("Error reading snapshot %s: %v", *snapshotPath, rerr)
		}
		report = gen.FromDocument(doc)

	case "sqlite":
		db, oerr := sqlite.Open(ctx, *sqlitePath)
		if oerr != nil {
			exitf("Error opening sqlite: %v", oerr)
		}
		defer db.Close()
		report, err = gen.FromStore(ctx, sqlite.NewPaperTradeStore(db))

	case "postgres":
		if *postgresDSN == "" {
			exitf("Error: --postgres-dsn is required for source postgres")
		}
		pool, perr := postgres.NewPool(ctx, *postgresDSN)
		if perr != nil {
			exitf("Error connecting to postgres: %v", perr)
		}
		defer pool.Close()
		report, err = gen.FromStore(ctx, postgres.NewPaperTradeStore(pool))

	default:
		exitf("Error: unknown source %q", *source)
	}
	if err != nil {
		exitf("Error loading trades: %v", err)
	}

	var w io.Writer = os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			exitf("Error creating %s: %v", *output, err)
		}
		defer f.Close()
		w = f
	}

	if err := render(w, *format, report); err != nil {
		exitf("Error rendering report: %v", err)
	}
	if *output != "" {
		fmt.Fprintf(os.Stderr, "Wrote %d trades to %s\n", len(report.Trades), *output)
	}
}

func render(w io.Writer, format string, r *reporting.Report) error {
	switch format {
	case "table":
		if err := reporting.RenderSummary(w, r); err != nil {
			return err
		}
		fmt.Fprintln(w)
		return reporting.RenderTrades(w, r)
	case "markdown":
		_, err := io.WriteString(w, reporting.RenderMarkdown(r))
		return err
	case "csv":
		return reporting.WriteCSV(w, r.Trades)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
