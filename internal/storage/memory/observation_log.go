package memory

import (
	"context"
	"sort"
	"sync"

	"curator-signal-lab/internal/domain"
	"curator-signal-lab/internal/storage"
)

// ObservationLog is an in-memory implementation of storage.ObservationLog.
type ObservationLog struct {
	mu   sync.RWMutex
	data map[string][]*domain.CheckpointObservation // keyed by trade_id
}

// NewObservationLog creates a new in-memory observation log.
func NewObservationLog() *ObservationLog {
	return &ObservationLog{
		data: make(map[string][]*domain.CheckpointObservation),
	}
}

var _ storage.ObservationLog = (*ObservationLog)(nil)

// Append adds observations.
func (l *ObservationLog) Append(_ context.Context, obs []*domain.CheckpointObservation) error {
	for _, o := range obs {
		if o == nil || o.TradeID == "" {
			return storage.ErrInvalidInput
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	for _, o := range obs {
		c := *o
		l.data[o.TradeID] = append(l.data[o.TradeID], &c)
	}
	return nil
}

// GetByTradeID retrieves all observations of a trade, ordered by checked_at ASC.
func (l *ObservationLog) GetByTradeID(_ context.Context, tradeID string) ([]*domain.CheckpointObservation, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rows := l.data[tradeID]
	result := make([]*domain.CheckpointObservation, len(rows))
	for i, o := range rows {
		c := *o
		result[i] = &c
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CheckedAt.Before(result[j].CheckedAt)
	})
	return result, nil
}
