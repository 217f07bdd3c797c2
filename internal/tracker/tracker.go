// Package tracker turns confirmed curator buys into paper trades and advances
// them through the checkpoint schedule.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"curator-signal-lab/internal/analytics"
	"curator-signal-lab/internal/domain"
	"curator-signal-lab/internal/idhash"
	"curator-signal-lab/internal/logger"
	"curator-signal-lab/internal/observability"
)

// Tracker defaults.
const (
	DefaultProbeSizeUSD = 100.0
	DefaultCallTimeout  = 10 * time.Second
	DefaultWorkers      = 8
	DefaultStallTimeout = 48 * time.Hour
)

// PriceOracle returns the current USD price of a token.
// A nil price with a nil error means the price is unavailable.
type PriceOracle interface {
	CurrentPrice(ctx context.Context, token string) (*float64, error)
}

// LiquidityProbe quotes exiting a position of sizeUSD in token.
type LiquidityProbe interface {
	QuoteExit(ctx context.Context, token string, sizeUSD float64) (domain.ExitQuote, error)
}

// MetadataSource returns descriptive token data.
type MetadataSource interface {
	TokenMetadata(ctx context.Context, token string) (*domain.TokenMetadata, error)
}

// AgeSource returns the time of a token's first on-chain activity.
type AgeSource interface {
	FirstSeen(ctx context.Context, token string) (time.Time, error)
}

// Ledger is the trade record the tracker mutates.
type Ledger interface {
	RecentTrades
	Append(ctx context.Context, t *domain.PaperTrade) error
	Update(ctx context.Context, t *domain.PaperTrade, recorded ...domain.CheckpointName) error
	OpenTrades() []*domain.PaperTrade
}

// Config holds tracker parameters.
type Config struct {
	Params       analytics.Params
	ProbeSizeUSD float64       // test position size for exit quotes
	CallTimeout  time.Duration // per external call
	Workers      int           // concurrent trades per sweep
	StallTimeout time.Duration // pending trades older than this are abandoned; 0 disables
}

// DefaultConfig returns the default tracker configuration.
func DefaultConfig() Config {
	return Config{
		Params:       analytics.DefaultParams(),
		ProbeSizeUSD: DefaultProbeSizeUSD,
		CallTimeout:  DefaultCallTimeout,
		Workers:      DefaultWorkers,
		StallTimeout: DefaultStallTimeout,
	}
}

// Options configures a Tracker. Ledger, Oracle and Probe are required.
type Options struct {
	Config   Config
	Ledger   Ledger
	Oracle   PriceOracle
	Probe    LiquidityProbe
	Metadata MetadataSource // optional
	Age      AgeSource      // optional
	Clock    Clock
	Logger   *logger.Logger
	Metrics  *observability.Metrics // optional
}

// Tracker confirms pending signals and sweeps open trades.
type Tracker struct {
	cfg      Config
	ledger   Ledger
	oracle   PriceOracle
	probe    LiquidityProbe
	metadata MetadataSource
	age      AgeSource
	clock    Clock
	log      *logger.Logger
	metrics  *observability.Metrics
}

// New creates a Tracker.
func New(opts Options) (*Tracker, error) {
	switch {
	case opts.Ledger == nil:
		return nil, errors.New("tracker: ledger is required")
	case opts.Oracle == nil:
		return nil, errors.New("tracker: price oracle is required")
	case opts.Probe == nil:
		return nil, errors.New("tracker: liquidity probe is required")
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	cfg := opts.Config
	if cfg.ProbeSizeUSD <= 0 {
		cfg.ProbeSizeUSD = DefaultProbeSizeUSD
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.Workers <= 0 {
		cfg.Workers = DefaultWorkers
	}
	if cfg.StallTimeout < 0 {
		cfg.StallTimeout = 0
	}

	return &Tracker{
		cfg:      cfg,
		ledger:   opts.Ledger,
		oracle:   opts.Oracle,
		probe:    opts.Probe,
		metadata: opts.Metadata,
		age:      opts.Age,
		clock:    opts.Clock,
		log:      opts.Logger.Named("tracker"),
		metrics:  opts.Metrics,
	}, nil
}

// Outcome is the result of confirming a pending signal.
type Outcome string

const (
	OutcomeOpened           Outcome = "opened"
	OutcomeLandmine         Outcome = "landmine"
	OutcomeProbeFailed      Outcome = "probe-failed"
	OutcomePriceUnavailable Outcome = "price-unavailable"
)

// Confirm re-probes liquidity for sig and, when the token is routable and
// priced, opens a paper trade. A non-nil error means the trade could not be
// persisted.
func (t *Tracker) Confirm(ctx context.Context, sig *domain.PendingSignal) (*domain.PaperTrade, Outcome, error) {
	log := t.log.With(
		logger.String("signal_id", sig.SignalID),
		logger.String("wallet", sig.Key.WalletID),
		logger.String("token", sig.Key.TokenID),
	)

	quote, err := t.quoteExit(ctx, sig.Key.TokenID)
	if err != nil {
		log.Warn("confirmation probe failed", logger.Err(err))
		t.metrics.RecordDiscarded(string(OutcomeProbeFailed))
		return nil, OutcomeProbeFailed, nil
	}
	if !quote.Routable {
		log.Info("landmine avoided")
		t.metrics.RecordDiscarded(string(OutcomeLandmine))
		return nil, OutcomeLandmine, nil
	}

	price, err := t.currentPrice(ctx, sig.Key.TokenID)
	if err != nil {
		log.Warn("entry price lookup failed", logger.Err(err))
	}
	if price == nil || *price <= 0 {
		log.Info("entry price unavailable, signal discarded")
		t.metrics.RecordDiscarded(string(OutcomePriceUnavailable))
		return nil, OutcomePriceUnavailable, nil
	}

	now := t.clock.Now().UTC()
	trade := &domain.PaperTrade{
		ID:            idhash.ComputeTradeID(sig.Key.WalletID, sig.Key.TokenID, now.UnixMilli()),
		CuratorWallet: sig.Key.WalletID,
		TokenID:       sig.Key.TokenID,
		DetectedAt:    now,
		EntryPrice:    *price,
		SignalRef:     sig.Signature,
		SignalID:      sig.SignalID,
		EntryContext: domain.EntryContext{
			CuratorBuySizeNative: sig.RawSizeNative,
			SellRoutableAtEntry:  true,
			SellImpactBpsAtEntry: quote.PriceImpactBps,
		},
		Liquidity: domain.LiquidityState{Status: domain.LiquidityExitable},
		Status:    domain.StatusPending15m,
		UpdatedAt: now,
	}
	t.enrich(ctx, log, trade)

	if err := t.ledger.Append(ctx, trade); err != nil {
		log.Error("persist trade failed", logger.Err(err))
		return nil, "", fmt.Errorf("confirm %s: %w", sig.Key, err)
	}
	t.metrics.RecordConfirmed()
	log.Info("trade opened",
		logger.String("trade_id", trade.ID),
		logger.Float64("entry_price", trade.EntryPrice),
		logger.Float64p("impact_bps", quote.PriceImpactBps),
	)
	return trade, OutcomeOpened, nil
}

// enrich fills the optional entry context. Failures are logged and ignored.
func (t *Tracker) enrich(ctx context.Context, log *logger.Logger, trade *domain.PaperTrade) {
	if size := trade.EntryContext.CuratorBuySizeNative; size != nil {
		solPrice, err := t.currentPrice(ctx, domain.WrappedSOLMint)
		switch {
		case err != nil:
			log.Warn("SOL price lookup failed", logger.Err(err))
		case solPrice != nil:
			usd := *size * *solPrice
			trade.EntryContext.CuratorBuySizeUSD = &usd
		}
	}

	if t.metadata != nil {
		callCtx, cancel := context.WithTimeout(ctx, t.cfg.CallTimeout)
		md, err := t.metadata.TokenMetadata(callCtx, trade.TokenID)
		cancel()
		switch {
		case err != nil:
			log.Warn("token metadata lookup failed", logger.Err(err))
		case md != nil:
			trade.TokenName = md.Name
			trade.TokenSymbol = md.Symbol
		}
	}

	if t.age != nil {
		callCtx, cancel := context.WithTimeout(ctx, t.cfg.CallTimeout)
		first, err := t.age.FirstSeen(callCtx, trade.TokenID)
		cancel()
		if err != nil {
			log.Warn("token age lookup failed", logger.Err(err))
		} else if !first.IsZero() && !first.After(trade.DetectedAt) {
			secs := int64(trade.DetectedAt.Sub(first) / time.Second)
			trade.EntryContext.TokenAgeSecAtEntry = &secs
		}
	}
}

// SweepResult summarizes one sweep.
type SweepResult struct {
	Evaluated int   // open trades inspected
	Recorded  int   // checkpoints recorded
	Skipped   int   // due checkpoints skipped for missing prices
	Abandoned int   // trades abandoned by the stall policy
	Transient error // aggregated non-fatal I/O errors, nil if none
}

type sweepJob struct {
	trade     *domain.PaperTrade
	recorded  []domain.CheckpointName
	skipped   domain.CheckpointName
	transient *multierror.Error
}

// Sweep evaluates every due checkpoint of every open trade as of now.
// Price and liquidity I/O for different trades runs concurrently on private
// copies; results are persisted serially. A trade still pending after the
// stall timeout is abandoned. Only persistence failures are returned as errors.
func (t *Tracker) Sweep(ctx context.Context, now time.Time) (SweepResult, error) {
	start := time.Now()
	open := t.ledger.OpenTrades()
	res := SweepResult{Evaluated: len(open)}

	var jobs []*sweepJob
	for _, trade := range open {
		if isDue(trade, now) || t.stalled(trade, now) {
			jobs = append(jobs, &sweepJob{trade: trade})
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.Workers)
	for _, job := range jobs {
		g.Go(func() error {
			t.advance(gctx, job, now)
			return nil
		})
	}
	_ = g.Wait()

	var transient *multierror.Error
	closed := 0
	for _, job := range jobs {
		transient = multierror.Append(transient, job.transient.ErrorOrNil())
		if job.skipped != "" {
			res.Skipped++
			t.metrics.RecordCheckpointSkipped(string(job.skipped))
		}

		abandoned := false
		if !job.trade.Status.IsTerminal() && t.stalled(job.trade, now) {
			markAbandoned(job.trade, now)
			abandoned = true
		}
		if len(job.recorded) == 0 && !abandoned {
			continue
		}

		if err := t.ledger.Update(ctx, job.trade, job.recorded...); err != nil {
			t.log.Error("persist trade failed", logger.String("trade_id", job.trade.ID), logger.Err(err))
			return res, fmt.Errorf("sweep: %w", err)
		}
		t.logRecorded(job)
		res.Recorded += len(job.recorded)
		if abandoned {
			res.Abandoned++
			t.metrics.RecordAbandoned()
			t.log.Warn("trade abandoned",
				logger.String("trade_id", job.trade.ID),
				logger.String("token", job.trade.TokenID),
				logger.Int("checkpoints", len(job.trade.Checkpoints)),
				logger.String("reason", job.trade.AbandonReason),
			)
		}
		if job.trade.Status.IsTerminal() {
			closed++
		}
	}

	res.Transient = transient.ErrorOrNil()
	errCount := 0
	if res.Transient != nil {
		errCount = len(transient.Errors)
		t.log.Warn("sweep completed with transient errors",
			logger.Int("errors", errCount), logger.Err(res.Transient))
	}
	t.metrics.SetOpenTrades(len(open) - closed)
	t.metrics.RecordSweep(time.Since(start), errCount, now)
	return res, nil
}

// advance records checkpoints on job.trade while one is due.
func (t *Tracker) advance(ctx context.Context, job *sweepJob, now time.Time) {
	trade := job.trade
	for isDue(trade, now) {
		if ctx.Err() != nil {
			return
		}
		spec, _ := trade.Status.PendingCheckpoint()

		price, err := t.currentPrice(ctx, trade.TokenID)
		if err != nil {
			job.transient = multierror.Append(job.transient,
				fmt.Errorf("price %s %s: %w", trade.ID, spec.Name, err))
		}
		if price == nil || *price <= 0 {
			job.skipped = spec.Name
			return
		}

		var exit *domain.ExitQuote
		quote, err := t.quoteExit(ctx, trade.TokenID)
		if err != nil {
			job.transient = multierror.Append(job.transient,
				fmt.Errorf("probe %s %s: %w", trade.ID, spec.Name, err))
		} else {
			exit = &quote
		}

		delta, err := t.cfg.Params.Evaluate(trade, analytics.Observation{
			Checkpoint: spec.Name,
			Price:      *price,
			Exit:       exit,
			CheckedAt:  now,
		})
		if err != nil {
			job.transient = multierror.Append(job.transient, err)
			return
		}
		delta.Apply(trade)
		job.recorded = append(job.recorded, spec.Name)
	}
}

// markAbandoned moves trade to the terminal abandoned status.
func markAbandoned(trade *domain.PaperTrade, now time.Time) {
	at := now
	trade.Status = domain.StatusAbandoned
	trade.AbandonedAt = &at
	trade.AbandonReason = domain.AbandonReasonCheckpointUnobtainable
	trade.UpdatedAt = now
}

func (t *Tracker) logRecorded(job *sweepJob) {
	trade := job.trade
	for _, name := range job.recorded {
		cp := trade.Checkpoint(name)
		t.metrics.RecordCheckpoint(string(name), string(cp.Liquidity))
		t.log.Info("checkpoint recorded",
			logger.String("trade_id", trade.ID),
			logger.String("token", trade.TokenID),
			logger.String("checkpoint", string(name)),
			logger.Float64("net_pct", cp.NetReturnPct),
			logger.String("liquidity", string(cp.Liquidity)),
		)
	}
	if trade.Status == domain.StatusComplete {
		t.log.Info("trade complete",
			logger.String("trade_id", trade.ID),
			logger.String("liquidity", string(trade.Liquidity.Status)),
		)
	}
}

// stalled reports whether trade exceeded the stall timeout.
func (t *Tracker) stalled(trade *domain.PaperTrade, now time.Time) bool {
	return t.cfg.StallTimeout > 0 && now.Sub(trade.DetectedAt) > t.cfg.StallTimeout
}

func (t *Tracker) currentPrice(ctx context.Context, token string) (*float64, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.CallTimeout)
	defer cancel()
	return t.oracle.CurrentPrice(ctx, token)
}

func (t *Tracker) quoteExit(ctx context.Context, token string) (domain.ExitQuote, error) {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.CallTimeout)
	defer cancel()
	return t.probe.QuoteExit(ctx, token, t.cfg.ProbeSizeUSD)
}

// isDue reports whether the pending checkpoint of trade is due at now.
func isDue(trade *domain.PaperTrade, now time.Time) bool {
	spec, ok := trade.Status.PendingCheckpoint()
	return ok && now.Sub(trade.DetectedAt) >= spec.Offset
}
