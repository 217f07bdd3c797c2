package clickhouse

import (
	"context"
	"fmt"
	"time"

	"curator-signal-lab/internal/domain"
	"curator-signal-lab/internal/storage"
)

// ObservationLog implements storage.ObservationLog on the
// checkpoint_observations MergeTree table.
type ObservationLog struct {
	conn *Conn
}

// NewObservationLog creates a new ObservationLog.
func NewObservationLog(conn *Conn) *ObservationLog {
	return &ObservationLog{conn: conn}
}

// Compile-time interface check.
var _ storage.ObservationLog = (*ObservationLog)(nil)

const observationColumns = `
	trade_id, curator_wallet, token_id, checkpoint,
	entry_price, price, gross_return_pct, net_return_pct,
	probed, routable, price_impact_bps, executable_return_pct,
	liquidity, trade_liquidity, checked_at_ms`

// Append adds observations in a single batch.
func (l *ObservationLog) Append(ctx context.Context, obs []*domain.CheckpointObservation) error {
	if len(obs) == 0 {
		return nil
	}

	batch, err := l.conn.PrepareBatch(ctx, "INSERT INTO checkpoint_observations ("+observationColumns+")")
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, o := range obs {
		if o == nil || o.TradeID == "" {
			_ = batch.Abort()
			return storage.ErrInvalidInput
		}
		err = batch.Append(
			o.TradeID, o.CuratorWallet, o.TokenID, string(o.Checkpoint),
			o.EntryPrice, o.Price, o.GrossReturnPct, o.NetReturnPct,
			o.Probed, o.Routable, o.PriceImpactBps, o.ExecutableReturnPct,
			string(o.Liquidity), string(o.TradeLiquidity), uint64(o.CheckedAt.UnixMilli()),
		)
		if err != nil {
			_ = batch.Abort()
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByTradeID retrieves all observations of a trade, ordered by checked_at ASC.
func (l *ObservationLog) GetByTradeID(ctx context.Context, tradeID string) ([]*domain.CheckpointObservation, error) {
	query := "SELECT " + observationColumns + `
		FROM checkpoint_observations
		WHERE trade_id = ?
		ORDER BY checked_at_ms ASC`

	rows, err := l.conn.Query(ctx, query, tradeID)
	if err != nil {
		return nil, fmt.Errorf("query by trade id: %w", err)
	}
	defer rows.Close()

	var result []*domain.CheckpointObservation
	for rows.Next() {
		var (
			o                                     domain.CheckpointObservation
			checkpoint, liquidity, tradeLiquidity string
			checkedAtMs                           uint64
		)
		err := rows.Scan(
			&o.TradeID, &o.CuratorWallet, &o.TokenID, &checkpoint,
			&o.EntryPrice, &o.Price, &o.GrossReturnPct, &o.NetReturnPct,
			&o.Probed, &o.Routable, &o.PriceImpactBps, &o.ExecutableReturnPct,
			&liquidity, &tradeLiquidity, &checkedAtMs,
		)
		if err != nil {
			return nil, fmt.Errorf("scan observation row: %w", err)
		}
		o.Checkpoint = domain.CheckpointName(checkpoint)
		o.Liquidity = domain.CheckpointLiquidity(liquidity)
		o.TradeLiquidity = domain.LiquidityStatus(tradeLiquidity)
		o.CheckedAt = time.UnixMilli(int64(checkedAtMs)).UTC()
		result = append(result, &o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate observation rows: %w", err)
	}
	return result, nil
}
