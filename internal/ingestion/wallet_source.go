package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"curator-signal-lab/internal/domain"
	"curator-signal-lab/internal/logger"
	"curator-signal-lab/internal/observability"
	"curator-signal-lab/internal/solana"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 500 * time.Millisecond
	defaultBuffer     = 256
	seenCapacity      = 4096
)

// WalletSourceConfig configures a WalletSource.
type WalletSourceConfig struct {
	MaxRetries int           // parse attempts per signature
	RetryDelay time.Duration // first backoff, doubled per attempt
	Buffer     int           // output channel capacity
}

// WalletSource streams curator trades from per-wallet logsSubscribe
// notifications, resolving each signature through a TxParser.
type WalletSource struct {
	ws      solana.WSClient
	parser  TxParser
	cfg     WalletSourceConfig
	now     func() time.Time
	log     *logger.Logger
	metrics *observability.Metrics
}

// NewWalletSource creates a source. Zero config fields take defaults.
func NewWalletSource(ws solana.WSClient, parser TxParser, cfg WalletSourceConfig, log *logger.Logger, metrics *observability.Metrics) *WalletSource {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = defaultBuffer
	}
	if log == nil {
		log = logger.Nop()
	}
	return &WalletSource{
		ws:      ws,
		parser:  parser,
		cfg:     cfg,
		now:     time.Now,
		log:     log.Named("wallet-source"),
		metrics: metrics,
	}
}

type walletNotification struct {
	wallet string
	notif  solana.LogNotification
}

// Subscribe opens one logs subscription per wallet; providers accept a single
// mentions address per subscription. Every wallet is processed on its own
// goroutine, so a slow parse for one wallet never holds back another.
// All subscriptions are opened before any processing starts.
func (s *WalletSource) Subscribe(ctx context.Context, wallets []string) (<-chan domain.TradeEvent, error) {
	if len(wallets) == 0 {
		return nil, errors.New("no wallets to subscribe")
	}

	subs := make([]<-chan solana.LogNotification, 0, len(wallets))
	for _, wallet := range wallets {
		logsCh, err := s.ws.SubscribeLogs(ctx, solana.LogsFilter{Mentions: []string{wallet}})
		if err != nil {
			return nil, fmt.Errorf("subscribe wallet %s: %w", wallet, err)
		}
		s.log.Info("subscribed", logger.String("wallet", wallet))
		subs = append(subs, logsCh)
	}

	out := make(chan domain.TradeEvent, s.cfg.Buffer)
	var wg sync.WaitGroup
	for i, wallet := range wallets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.watch(ctx, out, wallet, subs[i])
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out, nil
}

// watch handles one wallet's notifications until its subscription closes.
func (s *WalletSource) watch(ctx context.Context, out chan<- domain.TradeEvent, wallet string, logsCh <-chan solana.LogNotification) {
	seen := newSeenSet(seenCapacity)
	for {
		select {
		case <-ctx.Done():
			return
		case notif, ok := <-logsCh:
			if !ok {
				s.log.Warn("log subscription closed", logger.String("wallet", wallet))
				return
			}
			if notif.Err != nil || !seen.add(notif.Signature) {
				continue
			}
			s.process(ctx, out, walletNotification{wallet: wallet, notif: notif})
		}
	}
}

func (s *WalletSource) process(ctx context.Context, out chan<- domain.TradeEvent, n walletNotification) {
	events, err := s.parseWithRetry(ctx, n.wallet, n.notif.Signature)
	if err != nil {
		if ctx.Err() == nil {
			s.metrics.RecordSourceError("wallet")
			s.log.Warn("transaction dropped",
				logger.String("wallet", n.wallet),
				logger.String("signature", n.notif.Signature),
				logger.Err(err))
		}
		return
	}

	observed := s.now()
	for _, ev := range events {
		ev.ObservedAt = observed
		if ev.Slot == 0 {
			ev.Slot = n.notif.Slot
		}
		s.log.Debug("trade",
			logger.String("wallet", ev.WalletID),
			logger.String("token", ev.TokenID),
			logger.String("side", ev.Side.String()),
			logger.String("signature", ev.Signature))
		select {
		case out <- ev:
		case <-ctx.Done():
			return
		}
	}
}

// parseWithRetry backs off exponentially: RetryDelay, 2x, 4x...
func (s *WalletSource) parseWithRetry(ctx context.Context, wallet, signature string) ([]domain.TradeEvent, error) {
	var lastErr error
	for attempt := 0; attempt < s.cfg.MaxRetries; attempt++ {
		events, err := s.parser.Parse(ctx, wallet, signature)
		if err == nil {
			return events, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == s.cfg.MaxRetries-1 {
			break
		}

		delay := s.cfg.RetryDelay * time.Duration(1<<attempt)
		s.log.Debug("retrying parse",
			logger.String("signature", signature),
			logger.Int("attempt", attempt+1),
			logger.Duration("delay", delay),
			logger.Err(err))
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// seenSet remembers the most recent keys in insertion order.
type seenSet struct {
	keys  map[string]struct{}
	order []string
	next  int
}

func newSeenSet(capacity int) *seenSet {
	return &seenSet{keys: make(map[string]struct{}, capacity), order: make([]string, capacity)}
}

// add returns false if key was already present.
func (s *seenSet) add(key string) bool {
	if _, ok := s.keys[key]; ok {
		return false
	}
	if old := s.order[s.next]; old != "" {
		delete(s.keys, old)
	}
	s.order[s.next] = key
	s.next = (s.next + 1) % len(s.order)
	s.keys[key] = struct{}{}
	return true
}
