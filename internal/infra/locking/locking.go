package locking

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Backend is a named distributed lock with a lease. Acquire returns false
// when another holder owns the lock and its lease has not expired; that is
// contention, not an error. A crashed holder's lock frees itself when the
// lease runs out, so the lease must exceed the expected duration of the
// guarded work.
type Backend interface {
	Acquire(ctx context.Context, name string, lease time.Duration) (bool, error)
	Release(ctx context.Context, name string) error
}

// Runner executes functions under cluster-wide mutual exclusion, keeping
// callers independent of the specific lock backend.
type Runner struct {
	backend Backend
	logger  *log.Logger
}

func NewRunner(backend Backend, logger *log.Logger) *Runner {
	return &Runner{backend: backend, logger: logger}
}

// TryRunExclusive runs fn if the named lock can be acquired, and reports
// whether fn ran. A held lock is a silent skip: (false, nil). Errors from
// the backend itself (e.g. the lock store being unreachable) are returned.
func (r *Runner) TryRunExclusive(ctx context.Context, name string, lease time.Duration, fn func(ctx context.Context) error) (bool, error) {
	acquired, err := r.backend.Acquire(ctx, name, lease)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %q: %w", name, err)
	}
	if !acquired {
		return false, nil
	}
	defer func() {
		if err := r.backend.Release(ctx, name); err != nil {
			// The lease will expire on its own; the next holder just waits
			// longer than necessary.
			r.logger.Printf("WARN: Failed to release lock %q: %v", name, err)
		}
	}()

	return true, fn(ctx)
}
