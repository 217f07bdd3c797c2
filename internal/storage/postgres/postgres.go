// Package postgres implements the durable paper trade store on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"curator-signal-lab/internal/storage"
)

const (
	applicationName = "curator-signal-lab"

	// The scheduler writes serially, but sweeps and API reads overlap it.
	minConns    = 2
	maxConns    = 8
	maxIdleTime = 5 * time.Minute
	healthCheck = 30 * time.Second

	codeUniqueViolation = "23505"
)

// Pool is the connection pool shared by the paper trade store, the
// migrations and the report CLI.
type Pool struct {
	*pgxpool.Pool
}

// NewPool connects to dsn and pings it. Pool limits set in the DSN win over
// the defaults here.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	tune(cfg)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Pool{Pool: pool}, nil
}

func tune(cfg *pgxpool.Config) {
	if cfg.ConnConfig.RuntimeParams["application_name"] == "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = applicationName
	}
	if cfg.MinConns < minConns {
		cfg.MinConns = minConns
	}
	if cfg.MaxConns < maxConns {
		cfg.MaxConns = maxConns
	}
	cfg.MaxConnIdleTime = maxIdleTime
	cfg.HealthCheckPeriod = healthCheck
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

// storeError maps driver errors onto the storage sentinels and wraps the
// rest with op.
func storeError(op string, err error) error {
	var pgErr *pgconn.PgError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return storage.ErrNotFound
	case errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation:
		return storage.ErrDuplicateKey
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
