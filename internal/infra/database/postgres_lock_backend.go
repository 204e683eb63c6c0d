package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresLockBackend implements a named distributed lock as a lease row in
// the 'scheduler_locks' table (name TEXT PRIMARY KEY, holder TEXT,
// expires_at TIMESTAMPTZ). Acquiring upserts the row, stealing it only when
// the previous holder's lease has expired, so a crashed holder frees the
// lock automatically.
type PostgresLockBackend struct {
	db     *sql.DB
	holder string // unique per process instance
}

func NewPostgresLockBackend(db *sql.DB, holder string) *PostgresLockBackend {
	return &PostgresLockBackend{db: db, holder: holder}
}

func (b *PostgresLockBackend) Acquire(ctx context.Context, name string, lease time.Duration) (bool, error) {
	// The WHERE clause makes contention a zero-row update rather than a
	// conflict error: only an expired lease or our own row can be taken.
	query := `INSERT INTO scheduler_locks (name, holder, expires_at)
               VALUES ($1, $2, NOW() + ($3 * interval '1 second'))
               ON CONFLICT (name) DO UPDATE
               SET holder = EXCLUDED.holder, expires_at = EXCLUDED.expires_at
               WHERE scheduler_locks.expires_at < NOW() OR scheduler_locks.holder = EXCLUDED.holder
               RETURNING name`
	leaseSeconds := int(lease / time.Second)

	var acquired string
	err := b.db.QueryRowContext(ctx, query, name, b.holder, leaseSeconds).Scan(&acquired)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("error acquiring lock %q: %w", name, err)
	}
	return true, nil
}

func (b *PostgresLockBackend) Release(ctx context.Context, name string) error {
	// Only our own row may be deleted; a lock stolen after lease expiry
	// belongs to the new holder.
	query := `DELETE FROM scheduler_locks WHERE name = $1 AND holder = $2`
	if _, err := b.db.ExecContext(ctx, query, name, b.holder); err != nil {
		return fmt.Errorf("error releasing lock %q: %w", name, err)
	}
	return nil
}
