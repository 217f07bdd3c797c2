package memory

import (
	"context"
	"sort"
	"sync"

	"curator-signal-lab/internal/domain"
	"curator-signal-lab/internal/storage"
)

// PaperTradeStore is an in-memory implementation of storage.PaperTradeStore.
type PaperTradeStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PaperTrade // keyed by id
}

// NewPaperTradeStore creates a new in-memory paper trade store.
func NewPaperTradeStore() *PaperTradeStore {
	return &PaperTradeStore{
		data: make(map[string]*domain.PaperTrade),
	}
}

// Compile-time interface check.
var _ storage.PaperTradeStore = (*PaperTradeStore)(nil)

// Seed loads trades as stored, keeping their versions.
// Used to restore state from a snapshot document on restart.
func (s *PaperTradeStore) Seed(trades []*domain.PaperTrade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range trades {
		if t == nil || t.ID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[t.ID]; exists {
			return storage.ErrDuplicateKey
		}
		c := t.Clone()
		if c.Version == 0 {
			c.Version = 1
		}
		s.data[t.ID] = c
	}
	return nil
}

// Insert adds a new trade. Returns ErrDuplicateKey if id exists.
func (s *PaperTradeStore) Insert(_ context.Context, t *domain.PaperTrade) error {
	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.ID]; exists {
		return storage.ErrDuplicateKey
	}

	t.Version = 1
	s.data[t.ID] = t.Clone()
	return nil
}

// Update replaces an existing trade if t.Version matches the stored version.
func (s *PaperTradeStore) Update(_ context.Context, t *domain.PaperTrade) error {
	if t == nil || t.ID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.data[t.ID]
	if !exists {
		return storage.ErrNotFound
	}
	if stored.Version != t.Version {
		return storage.ErrVersionConflict
	}

	t.Version++
	s.data[t.ID] = t.Clone()
	return nil
}

// GetByID retrieves a trade by its ID.
func (s *PaperTradeStore) GetByID(_ context.Context, id string) (*domain.PaperTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return t.Clone(), nil
}

// GetAll retrieves all trades, ordered by detected_at ASC, id ASC.
func (s *PaperTradeStore) GetAll(_ context.Context) ([]*domain.PaperTrade, error) {
	return s.collect(func(*domain.PaperTrade) bool { return true }), nil
}

// GetOpen retrieves trades in a non-terminal status.
func (s *PaperTradeStore) GetOpen(_ context.Context) ([]*domain.PaperTrade, error) {
	return s.collect(func(t *domain.PaperTrade) bool { return !t.Status.IsTerminal() }), nil
}

// GetLatestForPair retrieves the most recently detected trade for (wallet, token).
func (s *PaperTradeStore) GetLatestForPair(_ context.Context, wallet, token string) (*domain.PaperTrade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.PaperTrade
	for _, t := range s.data {
		if t.CuratorWallet != wallet || t.TokenID != token {
			continue
		}
		if latest == nil || t.DetectedAt.After(latest.DetectedAt) {
			latest = t
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}
	return latest.Clone(), nil
}

func (s *PaperTradeStore) collect(keep func(*domain.PaperTrade) bool) []*domain.PaperTrade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.PaperTrade, 0, len(s.data))
	for _, t := range s.data {
		if keep(t) {
			result = append(result, t.Clone())
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].DetectedAt.Equal(result[j].DetectedAt) {
			return result[i].DetectedAt.Before(result[j].DetectedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result
}
