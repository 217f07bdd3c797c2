package solana

import "context"

// WSClient is a Solana PubSub connection.
type WSClient interface {
	// SubscribeLogs streams logs of transactions matching filter.
	// The channel is closed when the client is closed.
	SubscribeLogs(ctx context.Context, filter LogsFilter) (<-chan LogNotification, error)

	// Close closes the connection and all subscription channels.
	Close() error
}

// LogsFilter selects transactions for a logs subscription.
type LogsFilter struct {
	// Mentions selects transactions mentioning this address. The RPC accepts
	// exactly one address per subscription.
	Mentions []string
}

// LogNotification is a logsNotification payload.
type LogNotification struct {
	Signature string
	Slot      int64
	Logs      []string
	Err       interface{}
}
