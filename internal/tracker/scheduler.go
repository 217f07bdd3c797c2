package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"curator-signal-lab/internal/domain"
	"curator-signal-lab/internal/logger"
	"curator-signal-lab/internal/observability"
)

// DefaultSweepInterval is the period between scheduled sweeps.
const DefaultSweepInterval = 2 * time.Minute

// SchedulerOptions configures a Scheduler.
type SchedulerOptions struct {
	Tracker       *Tracker
	Debouncer     *Debouncer
	Clock         Clock
	SweepInterval time.Duration
	Logger        *logger.Logger
	Metrics       *observability.Metrics // optional
}

// Scheduler is the single goroutine that owns all tracker state. Inbound
// events, confirmation timer fires and sweep ticks are handled one at a time.
type Scheduler struct {
	tracker   *Tracker
	debouncer *Debouncer
	clock     Clock
	interval  time.Duration
	log       *logger.Logger
	metrics   *observability.Metrics

	confirms chan domain.SignalKey
	timers   map[domain.SignalKey]Timer
	done     chan struct{}

	pending   atomic.Int64
	sweeps    atomic.Int64
	lastSweep atomic.Int64 // unix ms, 0 before the first sweep
}

// Status is a point-in-time view of the scheduler, safe to read from any
// goroutine.
type Status struct {
	PendingSignals int
	Sweeps         int64
	LastSweepAt    time.Time
}

// Status returns the current scheduler status.
func (s *Scheduler) Status() Status {
	st := Status{
		PendingSignals: int(s.pending.Load()),
		Sweeps:         s.sweeps.Load(),
	}
	if ms := s.lastSweep.Load(); ms > 0 {
		st.LastSweepAt = time.UnixMilli(ms).UTC()
	}
	return st
}

func (s *Scheduler) setPending() {
	n := s.debouncer.Pending()
	s.pending.Store(int64(n))
	s.metrics.SetPending(n)
}

// NewScheduler creates a Scheduler.
func NewScheduler(opts SchedulerOptions) (*Scheduler, error) {
	if opts.Tracker == nil || opts.Debouncer == nil {
		return nil, errors.New("scheduler: tracker and debouncer are required")
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	return &Scheduler{
		tracker:   opts.Tracker,
		debouncer: opts.Debouncer,
		clock:     opts.Clock,
		interval:  opts.SweepInterval,
		log:       opts.Logger.Named("scheduler"),
		metrics:   opts.Metrics,
		confirms:  make(chan domain.SignalKey, 64),
		timers:    make(map[domain.SignalKey]Timer),
		done:      make(chan struct{}),
	}, nil
}

// Run processes events until ctx is cancelled or a persistence error occurs.
// A closed events channel stops intake but sweeps continue.
// Returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context, events <-chan domain.TradeEvent) error {
	defer s.shutdown()

	// Sweeps run off the injected clock so a FakeClock drives them too.
	ticks := make(chan struct{}, 1)
	var sweepTimer Timer
	arm := func() {
		sweepTimer = s.clock.AfterFunc(s.interval, func() {
			select {
			case ticks <- struct{}{}:
			default:
			}
		})
	}
	arm()
	defer func() { sweepTimer.Stop() }()

	s.log.Info("scheduler started", logger.Duration("sweep_interval", s.interval))
	if err := s.Sweep(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopping", logger.Int("dropped_pending", s.debouncer.Pending()))
			return nil

		case ev, ok := <-events:
			if !ok {
				s.log.Warn("event source closed")
				events = nil
				continue
			}
			s.HandleEvent(ctx, ev)

		case key := <-s.confirms:
			if err := s.HandleConfirm(ctx, key); err != nil {
				return err
			}

		case <-ticks:
			if err := s.Sweep(ctx); err != nil {
				return err
			}
			arm()
		}
	}
}

// HandleEvent runs ev through the debouncer and arms a confirmation timer
// for accepted signals.
func (s *Scheduler) HandleEvent(ctx context.Context, ev domain.TradeEvent) {
	s.metrics.RecordEvent()

	decision, err := s.debouncer.Accept(ctx, ev)
	if err != nil {
		s.log.Warn("event dropped", logger.Err(err))
		return
	}
	if !decision.Accepted {
		s.metrics.RecordRejected(string(decision.Reason))
		lvl := s.log.Debug
		if decision.Reason == RejectInvalid {
			lvl = s.log.Warn
		}
		lvl("event rejected",
			logger.String("reason", string(decision.Reason)),
			logger.String("wallet", ev.WalletID),
			logger.String("token", ev.TokenID),
			logger.String("side", string(ev.Side)),
		)
		return
	}

	sig := decision.Signal
	delay := sig.ConfirmAt.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	key := sig.Key
	s.timers[key] = s.clock.AfterFunc(delay, func() {
		select {
		case s.confirms <- key:
		case <-s.done:
		}
	})
	s.setPending()
	s.log.Info("signal accepted",
		logger.String("signal_id", sig.SignalID),
		logger.String("wallet", key.WalletID),
		logger.String("token", key.TokenID),
		logger.Time("confirm_at", sig.ConfirmAt),
	)
}

// HandleConfirm confirms the pending signal for key, if any.
func (s *Scheduler) HandleConfirm(ctx context.Context, key domain.SignalKey) error {
	delete(s.timers, key)
	sig, ok := s.debouncer.Take(key)
	s.setPending()
	if !ok {
		return nil
	}
	if _, _, err := s.tracker.Confirm(ctx, sig); err != nil {
		return err
	}
	return nil
}

// Sweep runs one tracker sweep at the current clock time.
func (s *Scheduler) Sweep(ctx context.Context) error {
	now := s.clock.Now()
	res, err := s.tracker.Sweep(ctx, now)
	if err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}
	s.sweeps.Add(1)
	s.lastSweep.Store(now.UnixMilli())
	if res.Recorded > 0 || res.Abandoned > 0 {
		s.log.Debug("sweep done",
			logger.Int("open", res.Evaluated),
			logger.Int("recorded", res.Recorded),
			logger.Int("skipped", res.Skipped),
			logger.Int("abandoned", res.Abandoned),
		)
	}
	return nil
}

// Confirmations exposes queued timer fires. Used by callers driving the
// scheduler without Run.
func (s *Scheduler) Confirmations() <-chan domain.SignalKey {
	return s.confirms
}

// shutdown stops all timers and drops unconfirmed signals.
func (s *Scheduler) shutdown() {
	close(s.done)
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
	s.debouncer.Clear()
	s.setPending()
}
