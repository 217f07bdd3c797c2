// Package ledger is the durable record of all paper trades plus the rolling
// summary. Every mutation goes through one mutex, recomputes the summary and
// replaces the snapshot document.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"curator-signal-lab/internal/domain"
	"curator-signal-lab/internal/logger"
	"curator-signal-lab/internal/metrics"
	"curator-signal-lab/internal/storage"
)

// DocumentWriter persists the aggregate document.
type DocumentWriter interface {
	Write(doc *domain.Document) error
}

// Options configures a Ledger. Store is required.
type Options struct {
	Store        storage.PaperTradeStore
	Observations storage.ObservationLog // optional
	Snapshot     DocumentWriter         // optional
	Logger       *logger.Logger
	Now          func() time.Time
	StartedAt    time.Time // zero means now
}

// Ledger wraps a PaperTradeStore with summary recomputation, the snapshot
// document and the checkpoint observation log.
type Ledger struct {
	mu sync.Mutex

	store        storage.PaperTradeStore
	observations storage.ObservationLog
	snapshot     DocumentWriter
	log          *logger.Logger
	now          func() time.Time

	startedAt     time.Time
	lastUpdatedAt time.Time
	trades        []*domain.PaperTrade
	summary       domain.AggregateStats
}

// New loads the current trades from the store and computes the summary.
func New(ctx context.Context, opts Options) (*Ledger, error) {
	if opts.Store == nil {
		return nil, errors.New("ledger: store is required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	l := &Ledger{
		store:        opts.Store,
		observations: opts.Observations,
		snapshot:     opts.Snapshot,
		log:          opts.Logger.Named("ledger"),
		now:          opts.Now,
		startedAt:    opts.StartedAt,
	}
	if l.startedAt.IsZero() {
		l.startedAt = l.now().UTC()
	}
	l.lastUpdatedAt = l.startedAt

	if err := l.reload(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// Append persists a new trade.
func (l *Ledger) Append(ctx context.Context, t *domain.PaperTrade) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Insert(ctx, t); err != nil {
		return fmt.Errorf("append trade %s: %w", t.ID, err)
	}
	return l.commit(ctx)
}

// Update persists a modified trade. recorded names the checkpoints populated
// since the trade was last persisted; they are mirrored to the observation log.
func (l *Ledger) Update(ctx context.Context, t *domain.PaperTrade, recorded ...domain.CheckpointName) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.store.Update(ctx, t); err != nil {
		return fmt.Errorf("update trade %s: %w", t.ID, err)
	}
	l.appendObservations(ctx, t, recorded)
	return l.commit(ctx)
}

// Summary returns the summary as of the last mutation.
func (l *Ledger) Summary() domain.AggregateStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.summary
}

// AllTrades returns copies of all trades, ordered by detection time.
func (l *Ledger) AllTrades() []*domain.PaperTrade {
	l.mu.Lock()
	defer l.mu.Unlock()
	return cloneAll(l.trades)
}

// OpenTrades returns copies of trades with pending checkpoints.
func (l *Ledger) OpenTrades() []*domain.PaperTrade {
	l.mu.Lock()
	defer l.mu.Unlock()

	var open []*domain.PaperTrade
	for _, t := range l.trades {
		if !t.Status.IsTerminal() {
			open = append(open, t.Clone())
		}
	}
	return open
}

// Trade returns a copy of the trade with id, or storage.ErrNotFound.
func (l *Ledger) Trade(id string) (*domain.PaperTrade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, t := range l.trades {
		if t.ID == id {
			return t.Clone(), nil
		}
	}
	return nil, storage.ErrNotFound
}

// LatestForPair returns the most recently detected trade for (wallet, token),
// or storage.ErrNotFound.
func (l *Ledger) LatestForPair(ctx context.Context, wallet, token string) (*domain.PaperTrade, error) {
	return l.store.GetLatestForPair(ctx, wallet, token)
}

// Document returns the aggregate document as of the last mutation.
func (l *Ledger) Document() *domain.Document {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.document()
}

func (l *Ledger) document() *domain.Document {
	complete := 0
	for _, t := range l.trades {
		if t.Status == domain.StatusComplete {
			complete++
		}
	}
	return &domain.Document{
		StartedAt:       l.startedAt,
		LastUpdatedAt:   l.lastUpdatedAt,
		TotalSignals:    len(l.trades),
		CompleteSignals: complete,
		Summary:         l.summary,
		Trades:          cloneAll(l.trades),
	}
}

// commit recomputes the summary and replaces the snapshot. Caller holds mu.
func (l *Ledger) commit(ctx context.Context) error {
	if err := l.reload(ctx); err != nil {
		return err
	}
	l.lastUpdatedAt = l.now().UTC()

	if l.snapshot == nil {
		return nil
	}
	if err := l.snapshot.Write(l.document()); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

func (l *Ledger) reload(ctx context.Context) error {
	trades, err := l.store.GetAll(ctx)
	if err != nil {
		return fmt.Errorf("load trades: %w", err)
	}
	l.trades = trades
	l.summary = metrics.ComputeSummary(trades)
	return nil
}

// appendObservations mirrors recorded checkpoints to the observation log.
// The log is an analytical copy; failures are logged and not returned.
func (l *Ledger) appendObservations(ctx context.Context, t *domain.PaperTrade, recorded []domain.CheckpointName) {
	if l.observations == nil || len(recorded) == 0 {
		return
	}

	rows := make([]*domain.CheckpointObservation, 0, len(recorded))
	for _, name := range recorded {
		if obs, ok := domain.NewCheckpointObservation(t, name); ok {
			rows = append(rows, obs)
		}
	}
	if err := l.observations.Append(ctx, rows); err != nil {
		l.log.Warn("observation log append failed",
			logger.String("trade_id", t.ID),
			logger.Int("rows", len(rows)),
			logger.Err(err))
	}
}

func cloneAll(trades []*domain.PaperTrade) []*domain.PaperTrade {
	out := make([]*domain.PaperTrade, len(trades))
	for i, t := range trades {
		out[i] = t.Clone()
	}
	return out
}
