package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curator-signal-lab/internal/domain"
	"curator-signal-lab/internal/storage"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func setupStore(t *testing.T) *PaperTradeStore {
	t.Helper()

	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "trades.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewPaperTradeStore(db)
}

func newTrade(id, wallet, token string, detectedAt time.Time) *domain.PaperTrade {
	return &domain.PaperTrade{
		ID:            id,
		CuratorWallet: wallet,
		TokenID:       token,
		DetectedAt:    detectedAt,
		EntryPrice:    0.0021,
		Liquidity:     domain.LiquidityState{Status: domain.LiquidityExitable},
		Status:        domain.StatusPending15m,
	}
}

func TestPaperTradeStore_InsertAndGet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	trade := newTrade("t1", "W", "T", base)
	trade.EntryContext.TokenAgeSecAtEntry = func() *int64 { v := int64(3600); return &v }()
	require.NoError(t, store.Insert(ctx, trade))
	assert.Equal(t, int64(1), trade.Version)

	got, err := store.GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 0.0021, got.EntryPrice)
	require.NotNil(t, got.EntryContext.TokenAgeSecAtEntry)
	assert.Equal(t, int64(3600), *got.EntryContext.TokenAgeSecAtEntry)

	_, err = store.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPaperTradeStore_Duplicate(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, newTrade("t1", "W", "T", base)))
	assert.ErrorIs(t, store.Insert(ctx, newTrade("t1", "W", "U", base)), storage.ErrDuplicateKey)
	assert.ErrorIs(t, store.Insert(ctx, newTrade("t2", "W", "T", base)), storage.ErrDuplicateKey)
}

func TestPaperTradeStore_UpdateVersioning(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	trade := newTrade("t1", "W", "T", base)
	require.NoError(t, store.Insert(ctx, trade))
	stale := trade.Clone()

	trade.Status = domain.StatusComplete
	require.NoError(t, store.Update(ctx, trade))
	assert.Equal(t, int64(2), trade.Version)

	assert.ErrorIs(t, store.Update(ctx, stale), storage.ErrVersionConflict)
	assert.ErrorIs(t, store.Update(ctx, newTrade("nope", "W", "T", base)), storage.ErrNotFound)

	open, err := store.GetOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestPaperTradeStore_Queries(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, newTrade("late", "W", "T", base.Add(2*time.Hour))))
	require.NoError(t, store.Insert(ctx, newTrade("early", "W", "T", base)))
	require.NoError(t, store.Insert(ctx, newTrade("other", "W2", "T", base.Add(time.Hour))))

	all, err := store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "early", all[0].ID)
	assert.Equal(t, "other", all[1].ID)
	assert.Equal(t, "late", all[2].ID)

	latest, err := store.GetLatestForPair(ctx, "W", "T")
	require.NoError(t, err)
	assert.Equal(t, "late", latest.ID)

	_, err = store.GetLatestForPair(ctx, "X", "T")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPaperTradeStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.db")
	ctx := context.Background()

	db, err := Open(ctx, path)
	require.NoError(t, err)
	require.NoError(t, NewPaperTradeStore(db).Insert(ctx, newTrade("t1", "W", "T", base)))
	require.NoError(t, db.Close())

	db, err = Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	got, err := NewPaperTradeStore(db).GetByID(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "T", got.TokenID)
}
