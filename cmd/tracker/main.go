// Package main runs the curator signal tracker: it watches curator wallets,
// confirms buy signals into paper trades, records forward-return checkpoints
// and serves health, metrics and ledger endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"curator-signal-lab/internal/api"
	"curator-signal-lab/internal/config"
	"curator-signal-lab/internal/logger"
	"curator-signal-lab/internal/observability"
	"curator-signal-lab/internal/tracker"
)

func main() {
	configPath := flag.String("config", envOr("CONFIG_PATH", "config.yaml"), "Path to YAML config (empty for env only)")
	httpAddr := flag.String("http-addr", os.Getenv("HTTP_ADDR"), "HTTP listen address (overrides api.addr)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *httpAddr != "" {
		cfg.API.Addr = *httpAddr
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", logger.String("signal", sig.String()))
		cancel()

		select {
		case sig := <-sigCh:
			log.Warn("second signal, forcing exit", logger.String("signal", sig.String()))
			os.Exit(1)
		case <-time.After(30 * time.Second):
			log.Error("graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	err = run(ctx, cfg, log)
	close(done)
	if err != nil {
		log.Fatal("tracker stopped", logger.Err(err))
	}
	log.Info("shutdown complete")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(reg, "")

	stores, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.close()

	ledger, err := newLedger(ctx, stores, log)
	if err != nil {
		return err
	}
	log.Info("ledger loaded",
		logger.String("backend", cfg.Storage.Backend),
		logger.Int("trades", len(ledger.AllTrades())),
		logger.Int("open", len(ledger.OpenTrades())),
	)

	adapters, err := newAdapters(cfg, metrics, log)
	if err != nil {
		return err
	}
	defer adapters.close()

	clock := tracker.RealClock()
	trk, err := tracker.New(tracker.Options{
		Config:   trackerConfig(cfg),
		Ledger:   ledger,
		Oracle:   adapters.oracle,
		Probe:    adapters.probe,
		Metadata: adapters.metadata,
		Age:      adapters.age,
		Clock:    clock,
		Logger:   log,
		Metrics:  metrics,
	})
	if err != nil {
		return err
	}

	debouncer := tracker.NewDebouncer(tracker.DebounceConfig{
		ConfirmationDelay: cfg.Signals.ConfirmationDelay,
		Cooldown:          cfg.Signals.Cooldown,
		MintSuffix:        cfg.Curators.MintSuffix,
	}, ledger)

	scheduler, err := tracker.NewScheduler(tracker.SchedulerOptions{
		Tracker:       trk,
		Debouncer:     debouncer,
		Clock:         clock,
		SweepInterval: cfg.Tracker.SweepInterval,
		Logger:        log,
		Metrics:       metrics,
	})
	if err != nil {
		return err
	}

	server, err := api.NewServer(api.Options{
		Ledger:    ledger,
		Scheduler: scheduler,
		Gatherer:  reg,
		StartedAt: time.Now().UTC(),
		Wallets:   len(cfg.Curators.Wallets),
		Logger:    log,
	})
	if err != nil {
		return err
	}

	events, err := subscribe(ctx, cfg, adapters, metrics, log)
	if err != nil {
		return err
	}

	log.Info("tracker started",
		logger.Strings("wallets", cfg.Curators.Wallets),
		logger.String("source", cfg.Ingestion.Source),
		logger.Duration("confirmation_delay", cfg.Signals.ConfirmationDelay),
		logger.Duration("cooldown", cfg.Signals.Cooldown),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.ListenAndServe(gctx, cfg.API.Addr)
	})
	g.Go(func() error {
		return scheduler.Run(gctx, events)
	})
	return g.Wait()
}

func trackerConfig(cfg *config.Config) tracker.Config {
	c := tracker.DefaultConfig()
	c.Params.RoundTripFeePct = cfg.Analytics.RoundTripFeePct
	c.Params.ProbationThresholdPct = cfg.Analytics.ProbationThresholdPct
	c.Params.PrincipalBackThresholdPct = cfg.Analytics.PrincipalBackThresholdPct
	c.Params.LockFraction = cfg.Analytics.LockFraction
	c.Params.DegradedThresholdBps = cfg.Analytics.DegradedThresholdBps
	c.ProbeSizeUSD = cfg.Tracker.ProbeSizeUSD
	c.CallTimeout = cfg.Tracker.CallTimeout
	c.Workers = cfg.Tracker.Workers
	c.StallTimeout = *cfg.Tracker.StallTimeout
	return c
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
