package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Pool wraps pgxpool.Pool for dependency injection.
type Pool struct {
	*pgxpool.Pool
}

// NewPool creates a new Postgres connection pool.
func NewPool(ctx context.Context, dsn string) (*Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() {
	p.Pool.Close()
}

const schema = `
	CREATE TABLE IF NOT EXISTS save_points (
		binding_id  BIGINT NOT NULL,
		ts          TIMESTAMPTZ NOT NULL,
		value       DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (binding_id, ts)
	);

	CREATE TABLE IF NOT EXISTS evaluations (
		id                            BIGSERIAL PRIMARY KEY,
		type                          TEXT NOT NULL,
		entry_id                      BIGINT NOT NULL,
		exit_id                       BIGINT NOT NULL,
		symbol                        TEXT NOT NULL,
		side                          TEXT NOT NULL,
		entry_price                   DOUBLE PRECISION,
		exit_price                    DOUBLE PRECISION,
		stop_price                    DOUBLE PRECISION,
		close_price                   DOUBLE PRECISION,
		highest_price                 DOUBLE PRECISION NOT NULL DEFAULT 0,
		lowest_price                  DOUBLE PRECISION NOT NULL DEFAULT 0,
		highest_entry_price           DOUBLE PRECISION,
		lowest_entry_price            DOUBLE PRECISION,
		highest_price_to_lowest_exit  DOUBLE PRECISION,
		lowest_price_to_highest_exit  DOUBLE PRECISION,
		entry_timestamp               TIMESTAMPTZ,
		exit_timestamp                TIMESTAMPTZ,
		is_entry_price_valid          BOOLEAN NOT NULL DEFAULT FALSE,
		is_exit_price_valid           BOOLEAN NOT NULL DEFAULT FALSE,
		is_stopped                    BOOLEAN NOT NULL DEFAULT FALSE,
		is_closed                     BOOLEAN NOT NULL DEFAULT FALSE,
		is_ambiguous                  BOOLEAN NOT NULL DEFAULT FALSE,
		realized_roi                  DOUBLE PRECISION,
		highest_roi                   DOUBLE PRECISION,
		lowest_roi                    DOUBLE PRECISION,
		created_at                    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at                    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (type, entry_id, exit_id)
	);

	CREATE INDEX IF NOT EXISTS idx_evaluations_exit ON evaluations (type, exit_id);
	CREATE INDEX IF NOT EXISTS idx_evaluations_symbol ON evaluations (symbol, type, entry_timestamp);
`

// Migrate creates the evaluation and save point tables if they do not exist.
func Migrate(ctx context.Context, pool *Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	return nil
}

// PostgreSQL error codes
const (
	pgErrUniqueViolation = "23505" // unique_violation
)

// isDuplicateKeyError checks if error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgErrUniqueViolation
	}

	return false
}

// nullTime maps the zero time to NULL.
func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func timeOrZero(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}
