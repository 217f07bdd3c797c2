// Package ingestion turns curator wallet activity into domain.TradeEvent streams.
package ingestion

import (
	"context"
	"errors"

	"curator-signal-lab/internal/domain"
)

// TradeEventSource provides curator trade events from an external feed.
type TradeEventSource interface {
	// Subscribe starts the feed for the given curator wallets. The channel is
	// closed when ctx is cancelled or the feed terminates.
	Subscribe(ctx context.Context, wallets []string) (<-chan domain.TradeEvent, error)
}

// TxParser extracts the trades a wallet made in a single transaction.
// Returned events carry no ObservedAt; the source stamps it.
type TxParser interface {
	Parse(ctx context.Context, wallet, signature string) ([]domain.TradeEvent, error)
}

// ErrTxNotFound is returned when the transaction is not yet visible to the node.
// Sources retry on it.
var ErrTxNotFound = errors.New("transaction not found")
