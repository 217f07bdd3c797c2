package domain

import "time"

// Side is the direction of a curator trade.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// String returns the string representation of Side.
func (s Side) String() string {
	return string(s)
}

// IsValid checks if the side is a valid value.
func (s Side) IsValid() bool {
	return s == SideBuy || s == SideSell
}

// TradeEvent is a single curator action extracted from the chain.
// Ephemeral: produced by a TradeEventSource and consumed once by the debouncer.
type TradeEvent struct {
	WalletID   string    `json:"wallet"`               // curator wallet address
	TokenID    string    `json:"token"`                // token mint address
	Side       Side      `json:"side"`                 // buy | sell
	ObservedAt time.Time `json:"observedAt"`           // wall-clock of detection
	SizeNative *float64  `json:"sizeNative,omitempty"` // curator trade size in SOL (nullable)
	Signature  string    `json:"signature,omitempty"`  // source transaction signature
	Slot       int64     `json:"slot,omitempty"`       // slot of the source transaction
}

// Key returns the (wallet, token) key used for dedup.
func (e TradeEvent) Key() SignalKey {
	return SignalKey{WalletID: e.WalletID, TokenID: e.TokenID}
}

// WrappedSOLMint is the wrapped SOL token mint. Curator sizes are denominated in SOL.
const WrappedSOLMint = "So11111111111111111111111111111111111111112"

// LamportsPerSOL converts lamports to SOL.
const LamportsPerSOL = 1_000_000_000
