package storage

import (
	"context"

	"curator-signal-lab/internal/domain"
)

// PaperTradeStore provides access to paper_trades storage.
//
// Records are versioned for optimistic concurrency: Insert stores version 1,
// and Update succeeds only when the caller holds the stored version.
// On success both set t.Version to the stored version.
type PaperTradeStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if id exists.
	Insert(ctx context.Context, t *domain.PaperTrade) error

	// Update replaces an existing trade. Returns ErrNotFound if id does not exist
	// and ErrVersionConflict if t.Version is stale.
	Update(ctx context.Context, t *domain.PaperTrade) error

	// GetByID retrieves a trade by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id string) (*domain.PaperTrade, error)

	// GetAll retrieves all trades, ordered by detected_at ASC, id ASC.
	GetAll(ctx context.Context) ([]*domain.PaperTrade, error)

	// GetOpen retrieves trades in a non-terminal status, ordered by detected_at ASC, id ASC.
	GetOpen(ctx context.Context) ([]*domain.PaperTrade, error)

	// GetLatestForPair retrieves the most recently detected trade for (wallet, token).
	// Returns ErrNotFound if the pair was never traded.
	GetLatestForPair(ctx context.Context, wallet, token string) (*domain.PaperTrade, error)
}

// ObservationLog provides access to the append-only checkpoint_observations log.
type ObservationLog interface {
	// Append adds observations. Duplicates are not rejected.
	Append(ctx context.Context, obs []*domain.CheckpointObservation) error

	// GetByTradeID retrieves all observations of a trade, ordered by checked_at ASC.
	GetByTradeID(ctx context.Context, tradeID string) ([]*domain.CheckpointObservation, error)
}
