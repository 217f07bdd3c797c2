package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"curator-signal-lab/internal/domain"
	"curator-signal-lab/internal/storage"
)

// PaperTradeStore implements storage.PaperTradeStore using PostgreSQL.
// The full trade is kept in a JSONB record column; the remaining columns
// are indexed projections of it.
type PaperTradeStore struct {
	pool *Pool
}

// NewPaperTradeStore creates a new PaperTradeStore.
func NewPaperTradeStore(pool *Pool) *PaperTradeStore {
	return &PaperTradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PaperTradeStore = (*PaperTradeStore)(nil)

// Insert adds a new trade. Returns ErrDuplicateKey if id or
// (curator_wallet, token_id, detected_at_ms) exists.
func (s *PaperTradeStore) Insert(ctx context.Context, t *domain.PaperTrade) error {
	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}

	record, err := storage.EncodeTrade(t)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO paper_trades (
			id, curator_wallet, token_id, detected_at_ms, entry_price,
			status, liquidity_status, record, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1)
	`

	_, err = s.pool.Exec(ctx, query,
		t.ID, t.CuratorWallet, t.TokenID, t.DetectedAt.UnixMilli(), t.EntryPrice,
		string(t.Status), string(t.Liquidity.Status), record,
	)
	if err != nil {
		return storeError("insert paper trade", err)
	}

	t.Version = 1
	return nil
}

// Update replaces the trade record if t.Version matches the stored version.
// entry_price and detected_at_ms are never rewritten.
func (s *PaperTradeStore) Update(ctx context.Context, t *domain.PaperTrade) error {
	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}

	record, err := storage.EncodeTrade(t)
	if err != nil {
		return err
	}

	query := `
		UPDATE paper_trades
		SET status = $2, liquidity_status = $3, record = $4,
			version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $5
	`

	tag, err := s.pool.Exec(ctx, query,
		t.ID, string(t.Status), string(t.Liquidity.Status), record, t.Version,
	)
	if err != nil {
		return fmt.Errorf("update paper trade: %w", err)
	}

	if tag.RowsAffected() == 0 {
		var exists bool
		err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM paper_trades WHERE id = $1)`, t.ID).Scan(&exists)
		if err != nil {
			return fmt.Errorf("check paper trade exists: %w", err)
		}
		if !exists {
			return storage.ErrNotFound
		}
		return storage.ErrVersionConflict
	}

	t.Version++
	return nil
}

// GetByID retrieves a trade by its ID.
func (s *PaperTradeStore) GetByID(ctx context.Context, id string) (*domain.PaperTrade, error) {
	row := s.pool.QueryRow(ctx, `SELECT record, version FROM paper_trades WHERE id = $1`, id)

	t, err := scanTrade(row)
	if err != nil {
		return nil, storeError("get paper trade", err)
	}
	return t, nil
}

// GetAll retrieves all trades, ordered by detected_at_ms ASC, id ASC.
func (s *PaperTradeStore) GetAll(ctx context.Context) ([]*domain.PaperTrade, error) {
	return s.query(ctx, `
		SELECT record, version FROM paper_trades
		ORDER BY detected_at_ms ASC, id ASC
	`)
}

// GetOpen retrieves trades in a non-terminal status.
func (s *PaperTradeStore) GetOpen(ctx context.Context) ([]*domain.PaperTrade, error) {
	return s.query(ctx, `
		SELECT record, version FROM paper_trades
		WHERE status NOT IN ($1, $2)
		ORDER BY detected_at_ms ASC, id ASC
	`, string(domain.StatusComplete), string(domain.StatusAbandoned))
}

// GetLatestForPair retrieves the most recently detected trade for (wallet, token).
func (s *PaperTradeStore) GetLatestForPair(ctx context.Context, wallet, token string) (*domain.PaperTrade, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT record, version FROM paper_trades
		WHERE curator_wallet = $1 AND token_id = $2
		ORDER BY detected_at_ms DESC
		LIMIT 1
	`, wallet, token)

	t, err := scanTrade(row)
	if err != nil {
		return nil, storeError("get latest paper trade", err)
	}
	return t, nil
}

func (s *PaperTradeStore) query(ctx context.Context, query string, args ...any) ([]*domain.PaperTrade, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query paper trades: %w", err)
	}
	defer rows.Close()

	var trades []*domain.PaperTrade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan paper trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate paper trades: %w", err)
	}
	return trades, nil
}

func scanTrade(row pgx.Row) (*domain.PaperTrade, error) {
	var (
		record  []byte
		version int64
	)
	if err := row.Scan(&record, &version); err != nil {
		return nil, err
	}
	return storage.DecodeTrade(record, version)
}
