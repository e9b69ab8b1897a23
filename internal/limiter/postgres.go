package limiter

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PG is a PostgreSQL-backed Limiter. Each call is a single upsert, so the
// read-modify-write on a username's row is atomic across server instances.
type PG struct {
	pool     pgxQuerier
	window   time.Duration
	maxFails int
}

var (
	_ Limiter = (*PG)(nil)
	_ Sweeper = (*PG)(nil)
)

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a PostgreSQL-backed limiter.
func NewPG(pool *pgxpool.Pool, window time.Duration, maxFails int) *PG {
	return NewPGWithQuerier(pool, window, maxFails)
}

// NewPGWithQuerier constructs a PostgreSQL-backed limiter over any querier.
func NewPGWithQuerier(q pgxQuerier, window time.Duration, maxFails int) *PG {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxFails <= 0 {
		maxFails = DefaultMaxFails
	}
	return &PG{pool: q, window: window, maxFails: maxFails}
}

// Allow opens or resets the window for username and reports whether the
// current failure count is below the cap.
func (l *PG) Allow(ctx context.Context, username string, now time.Time) (bool, error) {
	const q = `
INSERT INTO login_attempts (username, fail_count, window_start)
VALUES ($1, 0, $2)
ON CONFLICT (username) DO UPDATE
SET
  fail_count = CASE WHEN $2::timestamptz - login_attempts.window_start > $3::interval THEN 0 ELSE login_attempts.fail_count END,
  window_start = CASE WHEN $2::timestamptz - login_attempts.window_start > $3::interval THEN $2 ELSE login_attempts.window_start END
RETURNING fail_count`
	var fails int
	if err := l.pool.QueryRow(ctx, q, username, now, l.window).Scan(&fails); err != nil {
		return false, err
	}
	return fails < l.maxFails, nil
}

// RecordFailure increments fail_count, creating the row if absent.
func (l *PG) RecordFailure(ctx context.Context, username string, now time.Time) error {
	const q = `
INSERT INTO login_attempts (username, fail_count, window_start)
VALUES ($1, 1, $2)
ON CONFLICT (username) DO UPDATE
SET fail_count = login_attempts.fail_count + 1`
	_, err := l.pool.Exec(ctx, q, username, now)
	return err
}

// Sweep deletes rows whose window elapsed before now.
func (l *PG) Sweep(ctx context.Context, now time.Time) (int64, error) {
	const q = `DELETE FROM login_attempts WHERE $1::timestamptz - window_start > $2::interval`
	tag, err := l.pool.Exec(ctx, q, now, l.window)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
