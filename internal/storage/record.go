package storage

import (
	"encoding/json"
	"fmt"

	"curator-signal-lab/internal/domain"
)

// EncodeTrade serializes a trade into the record column of the SQL stores.
func EncodeTrade(t *domain.PaperTrade) ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode trade %s: %w", t.ID, err)
	}
	return data, nil
}

// DecodeTrade restores a trade from its record column.
// version is taken from the version column, which is authoritative.
func DecodeTrade(data []byte, version int64) (*domain.PaperTrade, error) {
	var t domain.PaperTrade
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode trade record: %w", err)
	}
	t.Version = version
	return &t, nil
}
