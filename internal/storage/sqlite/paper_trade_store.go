package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"curator-signal-lab/internal/domain"
	"curator-signal-lab/internal/storage"
)

// PaperTradeStore implements storage.PaperTradeStore using SQLite.
type PaperTradeStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewPaperTradeStore creates a new PaperTradeStore on an opened database.
func NewPaperTradeStore(db *sql.DB) *PaperTradeStore {
	return &PaperTradeStore{db: db, now: time.Now}
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

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO paper_trades (
			id, curator_wallet, token_id, detected_at_ms, entry_price,
			status, liquidity_status, record, version, updated_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		t.ID, t.CuratorWallet, t.TokenID, t.DetectedAt.UnixMilli(), t.EntryPrice,
		string(t.Status), string(t.Liquidity.Status), string(record), s.now().UnixMilli(),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert paper trade: %w", err)
	}

	t.Version = 1
	return nil
}

// Update replaces the trade record if t.Version matches the stored version.
func (s *PaperTradeStore) Update(ctx context.Context, t *domain.PaperTrade) error {
	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}

	record, err := storage.EncodeTrade(t)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE paper_trades
		SET status = ?, liquidity_status = ?, record = ?,
			version = version + 1, updated_at_ms = ?
		WHERE id = ? AND version = ?`,
		string(t.Status), string(t.Liquidity.Status), string(record), s.now().UnixMilli(),
		t.ID, t.Version,
	)
	if err != nil {
		return fmt.Errorf("update paper trade: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update paper trade: %w", err)
	}
	if affected == 0 {
		var n int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM paper_trades WHERE id = ?`, t.ID).Scan(&n); err != nil {
			return fmt.Errorf("check paper trade exists: %w", err)
		}
		if n == 0 {
			return storage.ErrNotFound
		}
		return storage.ErrVersionConflict
	}

	t.Version++
	return nil
}

// GetByID retrieves a trade by its ID.
func (s *PaperTradeStore) GetByID(ctx context.Context, id string) (*domain.PaperTrade, error) {
	row := s.db.QueryRowContext(ctx, `SELECT record, version FROM paper_trades WHERE id = ?`, id)
	return s.one(row)
}

// GetAll retrieves all trades, ordered by detected_at_ms ASC, id ASC.
func (s *PaperTradeStore) GetAll(ctx context.Context) ([]*domain.PaperTrade, error) {
	return s.query(ctx, `
		SELECT record, version FROM paper_trades
		ORDER BY detected_at_ms ASC, id ASC`)
}

// GetOpen retrieves trades in a non-terminal status.
func (s *PaperTradeStore) GetOpen(ctx context.Context) ([]*domain.PaperTrade, error) {
	return s.query(ctx, `
		SELECT record, version FROM paper_trades
		WHERE status NOT IN (?, ?)
		ORDER BY detected_at_ms ASC, id ASC`,
		string(domain.StatusComplete), string(domain.StatusAbandoned))
}

// GetLatestForPair retrieves the most recently detected trade for (wallet, token).
func (s *PaperTradeStore) GetLatestForPair(ctx context.Context, wallet, token string) (*domain.PaperTrade, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT record, version FROM paper_trades
		WHERE curator_wallet = ? AND token_id = ?
		ORDER BY detected_at_ms DESC
		LIMIT 1`, wallet, token)
	return s.one(row)
}

func (s *PaperTradeStore) one(row *sql.Row) (*domain.PaperTrade, error) {
	var (
		record  string
		version int64
	)
	if err := row.Scan(&record, &version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get paper trade: %w", err)
	}
	return storage.DecodeTrade([]byte(record), version)
}

func (s *PaperTradeStore) query(ctx context.Context, query string, args ...any) ([]*domain.PaperTrade, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query paper trades: %w", err)
	}
	defer rows.Close()

	var trades []*domain.PaperTrade
	for rows.Next() {
		var (
			record  string
			version int64
		)
		if err := rows.Scan(&record, &version); err != nil {
			return nil, fmt.Errorf("scan paper trade: %w", err)
		}
		t, err := storage.DecodeTrade([]byte(record), version)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate paper trades: %w", err)
	}
	return trades, nil
}
