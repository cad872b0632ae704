// Package ratelimit implements a sliding-window request limiter backed by
// the rate_events table. Atomicity is delegated to the database; the
// limiter itself holds no state, so one instance is shared process-wide.
package ratelimit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrLimited is returned when the window for an identifier is exhausted.
var ErrLimited = errors.New("rate limit exceeded")

// DefaultLimit and DefaultWindow give interactive single-user headroom
// while stopping scripted abuse.
const (
	DefaultLimit  = 2
	DefaultWindow = 5 * time.Second
)

// Limiter checks per-identifier sliding windows.
type Limiter struct {
	db     *sql.DB
	limit  int
	window time.Duration
	now    func() time.Time
}

// New creates a Limiter with the default quota.
func New(db *sql.DB) *Limiter {
	return &Limiter{db: db, limit: DefaultLimit, window: DefaultWindow, now: time.Now}
}

// NewWithQuota creates a Limiter with an explicit quota, for tests and
// non-default deployments.
func NewWithQuota(db *sql.DB, limit int, window time.Duration) *Limiter {
	return &Limiter{db: db, limit: limit, window: window, now: time.Now}
}

// Check records one request attempt for identifier and returns ErrLimited
// when the window quota is already spent. Expired events are pruned as a
// side effect, keeping the table bounded.
func (l *Limiter) Check(ctx context.Context, identifier string) error {
	nowMs := l.now().UnixMilli()
	windowStart := nowMs - l.window.Milliseconds()

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ratelimit: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM rate_events WHERE identifier = ? AND at_ms < ?",
		identifier, windowStart,
	); err != nil {
		return fmt.Errorf("ratelimit: prune: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM rate_events WHERE identifier = ? AND at_ms >= ?",
		identifier, windowStart,
	).Scan(&count); err != nil {
		return fmt.Errorf("ratelimit: count: %w", err)
	}

	if count >= l.limit {
		// The denied attempt is not recorded; callers backing off
		// correctly are not penalized further.
		return ErrLimited
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO rate_events (identifier, at_ms) VALUES (?, ?)",
		identifier, nowMs,
	); err != nil {
		return fmt.Errorf("ratelimit: record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ratelimit: commit: %w", err)
	}
	return nil
}
