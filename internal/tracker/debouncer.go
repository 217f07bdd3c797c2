package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"curator-signal-lab/internal/domain"
	"curator-signal-lab/internal/storage"
)

// Debounce defaults.
const (
	DefaultConfirmationDelay = 120 * time.Second
	DefaultCooldown          = time.Hour
)

// RejectReason explains why an event did not produce a PendingSignal.
type RejectReason string

const (
	RejectNotBuy       RejectReason = "not-buy"
	RejectDuplicate    RejectReason = "duplicate-in-window"
	RejectInFlight     RejectReason = "in-flight"
	RejectInvalid      RejectReason = "invalid-event"
	RejectMintFiltered RejectReason = "mint-filtered"
)

// RecentTrades looks up the most recent trade for a (wallet, token) pair.
// Returns storage.ErrNotFound when there is none.
type RecentTrades interface {
	LatestForPair(ctx context.Context, wallet, token string) (*domain.PaperTrade, error)
}

// DebounceConfig configures the Debouncer.
type DebounceConfig struct {
	ConfirmationDelay time.Duration
	Cooldown          time.Duration
	// MintSuffix, when set, rejects tokens whose mint does not end with it.
	MintSuffix string
}

// Decision is the outcome of Debouncer.Accept.
type Decision struct {
	Accepted bool
	Reason   RejectReason          // set when rejected
	Signal   *domain.PendingSignal // set when accepted
}

// Debouncer turns curator buy events into PendingSignals, suppressing
// duplicates within the cooldown window. Not safe for concurrent use:
// the Scheduler goroutine owns it.
type Debouncer struct {
	cfg     DebounceConfig
	recent  RecentTrades
	pending map[domain.SignalKey]*domain.PendingSignal
	newID   func() string
}

// NewDebouncer creates a Debouncer. Zero durations fall back to defaults.
func NewDebouncer(cfg DebounceConfig, recent RecentTrades) *Debouncer {
	if cfg.ConfirmationDelay <= 0 {
		cfg.ConfirmationDelay = DefaultConfirmationDelay
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return &Debouncer{
		cfg:     cfg,
		recent:  recent,
		pending: make(map[domain.SignalKey]*domain.PendingSignal),
		newID:   uuid.NewString,
	}
}

// ConfirmationDelay returns the delay between acceptance and confirmation.
func (d *Debouncer) ConfirmationDelay() time.Duration {
	return d.cfg.ConfirmationDelay
}

// Accept evaluates ev. An error is returned only when the recent trade
// lookup fails; the event is then neither accepted nor rejected.
func (d *Debouncer) Accept(ctx context.Context, ev domain.TradeEvent) (Decision, error) {
	if ev.WalletID == "" || ev.TokenID == "" || ev.ObservedAt.IsZero() {
		return rejected(RejectInvalid), nil
	}
	if ev.Side != domain.SideBuy {
		return rejected(RejectNotBuy), nil
	}
	if d.cfg.MintSuffix != "" && !strings.HasSuffix(ev.TokenID, d.cfg.MintSuffix) {
		return rejected(RejectMintFiltered), nil
	}

	key := ev.Key()
	if _, ok := d.pending[key]; ok {
		return rejected(RejectInFlight), nil
	}

	if d.recent != nil {
		last, err := d.recent.LatestForPair(ctx, key.WalletID, key.TokenID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
		case err != nil:
			return Decision{}, fmt.Errorf("lookup recent trade %s: %w", key, err)
		case ev.ObservedAt.Sub(last.DetectedAt) < d.cfg.Cooldown:
			return rejected(RejectDuplicate), nil
		}
	}

	sig := &domain.PendingSignal{
		SignalID:      d.newID(),
		Key:           key,
		DetectedAt:    ev.ObservedAt,
		ConfirmAt:     ev.ObservedAt.Add(d.cfg.ConfirmationDelay),
		RawSizeNative: ev.SizeNative,
		Signature:     ev.Signature,
	}
	d.pending[key] = sig
	return Decision{Accepted: true, Signal: sig}, nil
}

// Take removes and returns the pending signal for key.
func (d *Debouncer) Take(key domain.SignalKey) (*domain.PendingSignal, bool) {
	sig, ok := d.pending[key]
	if ok {
		delete(d.pending, key)
	}
	return sig, ok
}

// Pending returns the number of signals awaiting confirmation.
func (d *Debouncer) Pending() int {
	return len(d.pending)
}

// Clear drops all pending signals.
func (d *Debouncer) Clear() {
	clear(d.pending)
}

func rejected(reason RejectReason) Decision {
	return Decision{Reason: reason}
}
