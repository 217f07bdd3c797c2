package domain

import "time"

// SignalKey identifies a (curator wallet, token) pair.
type SignalKey struct {
	WalletID string
	TokenID  string
}

// String returns "wallet|token".
func (k SignalKey) String() string {
	return k.WalletID + "|" + k.TokenID
}

// PendingSignal is an accepted buy awaiting its confirmation timer.
type PendingSignal struct {
	SignalID      string    // random id, for log correlation
	Key           SignalKey // (wallet, token)
	DetectedAt    time.Time // observedAt of the triggering event
	ConfirmAt     time.Time // DetectedAt + confirmation delay
	RawSizeNative *float64  // curator size in SOL (nullable)
	Signature     string    // source transaction signature
}
