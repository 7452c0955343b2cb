package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// BulkSendLockKey is the advisory lock key shared by every worker process
const BulkSendLockKey int64 = 0x77615f62756c6b // "wa_bulk"

type advisoryLocker struct {
	db  *sql.DB
	key int64
}

// NewAdvisoryLocker returns a TickLocker backed by a Postgres session advisory lock
func NewAdvisoryLocker(db *sql.DB, key int64) TickLocker {
	return &advisoryLocker{db: db, key: key}
}

// TryLock pins a connection and tries to take the lock without waiting.
// The returned release func unlocks and returns the connection to the pool.
func (l *advisoryLocker) TryLock(ctx context.Context) (func(), bool, error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to get connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&acquired); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("failed to acquire advisory lock: %w", err)
	}

	if !acquired {
		conn.Close()
		return nil, false, nil
	}

	release := func() {
		// the tick context may already be cancelled
		_, _ = conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", l.key)
		conn.Close()
	}

	return release, true, nil
}
