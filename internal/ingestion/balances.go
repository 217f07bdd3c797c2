package ingestion

import (
	"sort"

	"github.com/shopspring/decimal"

	"curator-signal-lab/internal/domain"
)

const solDecimals = 9

// balanceChange is a wallet's net movement within one transaction.
type balanceChange struct {
	native decimal.Decimal            // SOL, wrapped SOL folded in
	tokens map[string]decimal.Decimal // mint -> UI amount
}

func newBalanceChange() *balanceChange {
	return &balanceChange{tokens: make(map[string]decimal.Decimal)}
}

func (b *balanceChange) addLamports(lamports int64) {
	b.native = b.native.Add(decimal.New(lamports, -solDecimals))
}

func (b *balanceChange) addToken(mint string, amount decimal.Decimal) {
	if mint == domain.WrappedSOLMint {
		b.native = b.native.Add(amount)
		return
	}
	b.tokens[mint] = b.tokens[mint].Add(amount)
}

// events converts the change into trade events, one per mint with a
// non-zero delta, ordered by mint. A positive delta is a buy. SizeNative is
// set only when a single mint moved and SOL flowed the opposite way.
func (b *balanceChange) events(wallet, signature string, slot int64) []domain.TradeEvent {
	mints := make([]string, 0, len(b.tokens))
	for mint, delta := range b.tokens {
		if !delta.IsZero() {
			mints = append(mints, mint)
		}
	}
	sort.Strings(mints)

	out := make([]domain.TradeEvent, 0, len(mints))
	for _, mint := range mints {
		delta := b.tokens[mint]
		ev := domain.TradeEvent{
			WalletID:  wallet,
			TokenID:   mint,
			Side:      domain.SideSell,
			Signature: signature,
			Slot:      slot,
		}
		if delta.IsPositive() {
			ev.Side = domain.SideBuy
		}
		if len(mints) == 1 {
			opposite := (ev.Side == domain.SideBuy && b.native.IsNegative()) ||
				(ev.Side == domain.SideSell && b.native.IsPositive())
			if opposite {
				size := b.native.Abs().InexactFloat64()
				ev.SizeNative = &size
			}
		}
		out = append(out, ev)
	}
	return out
}
