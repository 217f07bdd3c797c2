package tracker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"curator-signal-lab/internal/domain"
	"curator-signal-lab/internal/ledger"
	"curator-signal-lab/internal/observability"
	"curator-signal-lab/internal/storage"
	"curator-signal-lab/internal/storage/memory"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const (
	wallet = "CuratorWa11et"
	token  = "TokenMint"
)

type fakeOracle struct {
	mu     sync.Mutex
	prices map[string]float64
	err    error
	calls  map[string]int
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{prices: map[string]float64{}, calls: map[string]int{}}
}

func (o *fakeOracle) set(token string, price float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[token] = price
}

func (o *fakeOracle) unset(token string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.prices, token)
}

func (o *fakeOracle) CurrentPrice(_ context.Context, token string) (*float64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls[token]++
	if o.err != nil {
		return nil, o.err
	}
	p, ok := o.prices[token]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (o *fakeOracle) callCount(token string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls[token]
}

type fakeProbe struct {
	mu     sync.Mutex
	quotes map[string]domain.ExitQuote
	err    error
	sizes  []float64
}

func newFakeProbe() *fakeProbe {
	return &fakeProbe{quotes: map[string]domain.ExitQuote{}}
}

func (p *fakeProbe) set(token string, q domain.ExitQuote) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.quotes[token] = q
}

func (p *fakeProbe) fail(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *fakeProbe) QuoteExit(_ context.Context, token string, sizeUSD float64) (domain.ExitQuote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sizes = append(p.sizes, sizeUSD)
	if p.err != nil {
		return domain.ExitQuote{}, p.err
	}
	q, ok := p.quotes[token]
	if !ok {
		return domain.ExitQuote{Routable: false}, nil
	}
	return q, nil
}

type fakeMetadata struct{}

func (fakeMetadata) TokenMetadata(_ context.Context, mint string) (*domain.TokenMetadata, error) {
	return &domain.TokenMetadata{Mint: mint, Name: "Bags Token", Symbol: "BAGS"}, nil
}

type fakeAge struct{ first time.Time }

func (a fakeAge) FirstSeen(context.Context, string) (time.Time, error) {
	return a.first, nil
}

// failingStore rejects every update.
type failingStore struct {
	*memory.PaperTradeStore
}

func (failingStore) Update(context.Context, *domain.PaperTrade) error {
	return errors.New("disk full")
}

func routableQuote(impactBps, execPrice float64) domain.ExitQuote {
	return domain.ExitQuote{Routable: true, PriceImpactBps: &impactBps, ExecutablePrice: &execPrice}
}

type env struct {
	clock     *FakeClock
	oracle    *fakeOracle
	probe     *fakeProbe
	ledger    *ledger.Ledger
	tracker   *Tracker
	debouncer *Debouncer
	scheduler *Scheduler
	metrics   *observability.Metrics
}

type envOption func(*Options)

func newEnv(t *testing.T, opts ...envOption) *env {
	t.Helper()
	return newEnvWithStore(t, memory.NewPaperTradeStore(), opts...)
}

func newEnvWithStore(t *testing.T, store storage.PaperTradeStore, opts ...envOption) *env {
	t.Helper()

	e := &env{
		clock:   NewFakeClock(t0),
		oracle:  newFakeOracle(),
		probe:   newFakeProbe(),
		metrics: observability.NewMetrics(prometheus.NewRegistry(), "test"),
	}

	l, err := ledger.New(context.Background(), ledger.Options{
		Store: store,
		Now:   e.clock.Now,
	})
	require.NoError(t, err)
	e.ledger = l

	o := Options{
		Config:  DefaultConfig(),
		Ledger:  l,
		Oracle:  e.oracle,
		Probe:   e.probe,
		Clock:   e.clock,
		Metrics: e.metrics,
	}
	for _, opt := range opts {
		opt(&o)
	}
	e.tracker, err = New(o)
	require.NoError(t, err)

	e.debouncer = NewDebouncer(DebounceConfig{}, l)
	e.scheduler, err = NewScheduler(SchedulerOptions{
		Tracker:   e.tracker,
		Debouncer: e.debouncer,
		Clock:     e.clock,
		Metrics:   e.metrics,
	})
	require.NoError(t, err)
	return e
}

// buy delivers a buy event observed at the current clock time.
func (e *env) buy(wallet, token string) {
	e.scheduler.HandleEvent(context.Background(), domain.TradeEvent{
		WalletID:   wallet,
		TokenID:    token,
		Side:       domain.SideBuy,
		ObservedAt: e.clock.Now(),
	})
}

// advance moves the clock and handles every confirmation that fired.
func (e *env) advance(t *testing.T, d time.Duration) {
	t.Helper()
	e.clock.Advance(d)
	for {
		select {
		case key := <-e.scheduler.Confirmations():
			require.NoError(t, e.scheduler.HandleConfirm(context.Background(), key))
		default:
			return
		}
	}
}

// sweepAt moves the clock to at and runs a sweep.
func (e *env) sweepAt(t *testing.T, at time.Time) SweepResult {
	t.Helper()
	e.clock.Set(at)
	res, err := e.tracker.Sweep(context.Background(), at)
	require.NoError(t, err)
	return res
}

// openTrade confirms a signal for (wallet, token) at entry price 1.00.
func (e *env) openTrade(t *testing.T) *domain.PaperTrade {
	t.Helper()
	e.oracle.set(token, 1.00)
	e.probe.set(token, routableQuote(50, 0.99))
	e.buy(wallet, token)
	e.advance(t, DefaultConfirmationDelay)

	trades := e.ledger.AllTrades()
	require.Len(t, trades, 1)
	return trades[0]
}
