package tracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator-signal-lab/internal/domain"
	"curator-signal-lab/internal/storage"
)

type stubRecent struct {
	trade *domain.PaperTrade
	err   error
}

func (s stubRecent) LatestForPair(context.Context, string, string) (*domain.PaperTrade, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.trade == nil {
		return nil, storage.ErrNotFound
	}
	return s.trade, nil
}

func buyEvent(token string, at time.Time) domain.TradeEvent {
	return domain.TradeEvent{WalletID: wallet, TokenID: token, Side: domain.SideBuy, ObservedAt: at}
}

func TestDebouncer_Accept(t *testing.T) {
	recentTrade := &domain.PaperTrade{CuratorWallet: wallet, TokenID: token, DetectedAt: t0}

	tests := []struct {
		name   string
		cfg    DebounceConfig
		recent stubRecent
		event  domain.TradeEvent
		want   RejectReason // empty means accepted
	}{
		{
			name:  "buy accepted",
			event: buyEvent(token, t0),
		},
		{
			name:  "sell rejected",
			event: domain.TradeEvent{WalletID: wallet, TokenID: token, Side: domain.SideSell, ObservedAt: t0},
			want:  RejectNotBuy,
		},
		{
			name:  "missing token",
			event: buyEvent("", t0),
			want:  RejectInvalid,
		},
		{
			name:  "missing timestamp",
			event: buyEvent(token, time.Time{}),
			want:  RejectInvalid,
		},
		{
			name:  "mint suffix filter",
			cfg:   DebounceConfig{MintSuffix: "BAGS"},
			event: buyEvent("7xKpumpfun", t0),
			want:  RejectMintFiltered,
		},
		{
			name:  "mint suffix match",
			cfg:   DebounceConfig{MintSuffix: "BAGS"},
			event: buyEvent("7xKqBAGS", t0),
		},
		{
			name:   "recent trade inside cooldown",
			recent: stubRecent{trade: recentTrade},
			event:  buyEvent(token, t0.Add(59*time.Minute)),
			want:   RejectDuplicate,
		},
		{
			name:   "recent trade outside cooldown",
			recent: stubRecent{trade: recentTrade},
			event:  buyEvent(token, t0.Add(time.Hour)),
		},
		{
			name:   "custom cooldown",
			cfg:    DebounceConfig{Cooldown: 10 * time.Minute},
			recent: stubRecent{trade: recentTrade},
			event:  buyEvent(token, t0.Add(11*time.Minute)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(tt.cfg, tt.recent)
			got, err := d.Accept(context.Background(), tt.event)
			require.NoError(t, err)

			if tt.want != "" {
				assert.False(t, got.Accepted)
				assert.Equal(t, tt.want, got.Reason)
				assert.Nil(t, got.Signal)
				assert.Equal(t, 0, d.Pending())
				return
			}
			assert.True(t, got.Accepted)
			require.NotNil(t, got.Signal)
			assert.Equal(t, tt.event.Key(), got.Signal.Key)
			assert.Equal(t, tt.event.ObservedAt.Add(d.ConfirmationDelay()), got.Signal.ConfirmAt)
			assert.Equal(t, 1, d.Pending())
		})
	}
}

func TestDebouncer_InFlightAndTake(t *testing.T) {
	d := NewDebouncer(DebounceConfig{}, nil)
	ctx := context.Background()

	first, err := d.Accept(ctx, buyEvent(token, t0))
	require.NoError(t, err)
	require.True(t, first.Accepted)

	second, err := d.Accept(ctx, buyEvent(token, t0.Add(30*time.Second)))
	require.NoError(t, err)
	assert.Equal(t, RejectInFlight, second.Reason)

	// A different token from the same wallet is independent.
	other, err := d.Accept(ctx, buyEvent("other", t0))
	require.NoError(t, err)
	assert.True(t, other.Accepted)
	assert.NotEqual(t, first.Signal.SignalID, other.Signal.SignalID)

	sig, ok := d.Take(first.Signal.Key)
	require.True(t, ok)
	assert.Same(t, first.Signal, sig)
	_, ok = d.Take(first.Signal.Key)
	assert.False(t, ok)

	d.Clear()
	assert.Equal(t, 0, d.Pending())
}

func TestDebouncer_LookupErrorPropagates(t *testing.T) {
	d := NewDebouncer(DebounceConfig{}, stubRecent{err: errors.New("connection reset")})

	_, err := d.Accept(context.Background(), buyEvent(token, t0))
	require.Error(t, err)
	assert.Equal(t, 0, d.Pending())
}

func TestDebouncer_Defaults(t *testing.T) {
	d := NewDebouncer(DebounceConfig{}, nil)
	assert.Equal(t, 120*time.Second, d.ConfirmationDelay())
	assert.Equal(t, time.Hour, d.cfg.Cooldown)
}
