package locking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"testing"
	"time"
)

type stubBackend struct {
	busy       bool
	acquireErr error
	releaseErr error

	acquiredName  string
	acquiredLease time.Duration
	released      int
}

func (b *stubBackend) Acquire(_ context.Context, name string, lease time.Duration) (bool, error) {
	if b.acquireErr != nil {
		return false, b.acquireErr
	}
	if b.busy {
		return false, nil
	}
	b.acquiredName = name
	b.acquiredLease = lease
	return true, nil
}

func (b *stubBackend) Release(_ context.Context, name string) error {
	b.released++
	return b.releaseErr
}

func newTestRunner(backend Backend) *Runner {
	return NewRunner(backend, log.New(io.Discard, "", 0))
}

func TestTryRunExclusiveRunsWhenLockAcquired(t *testing.T) {
	backend := &stubBackend{}
	runner := newTestRunner(backend)

	ran := false
	ok, err := runner.TryRunExclusive(context.Background(), "nightly-sweep", time.Minute, func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if !ok || !ran {
		t.Errorf("ok=%v ran=%v, want both true", ok, ran)
	}
	if backend.acquiredName != "nightly-sweep" || backend.acquiredLease != time.Minute {
		t.Errorf("acquired %q/%v, want nightly-sweep/1m", backend.acquiredName, backend.acquiredLease)
	}
	if backend.released != 1 {
		t.Errorf("released %d time(s), want 1", backend.released)
	}
}

func TestTryRunExclusiveSkipsWhenLockHeld(t *testing.T) {
	backend := &stubBackend{busy: true}
	runner := newTestRunner(backend)

	ran := false
	ok, err := runner.TryRunExclusive(context.Background(), "nightly-sweep", time.Minute, func(ctx context.Context) error {
		ran = true
		return nil
	})
	if err != nil {
		t.Fatalf("contention must not be an error, got %v", err)
	}
	if ok || ran {
		t.Errorf("ok=%v ran=%v, want both false", ok, ran)
	}
	if backend.released != 0 {
		t.Error("a lock that was never acquired must not be released")
	}
}

func TestTryRunExclusiveSurfacesBackendError(t *testing.T) {
	backendErr := fmt.Errorf("lock store unreachable")
	runner := newTestRunner(&stubBackend{acquireErr: backendErr})

	ok, err := runner.TryRunExclusive(context.Background(), "nightly-sweep", time.Minute, func(ctx context.Context) error {
		return nil
	})
	if ok {
		t.Error("fn must not run when acquisition fails")
	}
	if !errors.Is(err, backendErr) {
		t.Errorf("err = %v, want wrapped backend error", err)
	}
}

func TestTryRunExclusiveReleasesAfterFnError(t *testing.T) {
	backend := &stubBackend{}
	runner := newTestRunner(backend)

	fnErr := fmt.Errorf("sweep failed")
	ok, err := runner.TryRunExclusive(context.Background(), "nightly-sweep", time.Minute, func(ctx context.Context) error {
		return fnErr
	})
	if !ok {
		t.Error("fn ran, so ok must be true")
	}
	if !errors.Is(err, fnErr) {
		t.Errorf("err = %v, want the fn error", err)
	}
	if backend.released != 1 {
		t.Errorf("released %d time(s) after fn error, want 1", backend.released)
	}
}

func TestTryRunExclusiveToleratesReleaseFailure(t *testing.T) {
	backend := &stubBackend{releaseErr: fmt.Errorf("connection dropped")}
	runner := newTestRunner(backend)

	ok, err := runner.TryRunExclusive(context.Background(), "nightly-sweep", time.Minute, func(ctx context.Context) error {
		return nil
	})
	if err != nil || !ok {
		t.Errorf("ok=%v err=%v; a release failure must not fail the run", ok, err)
	}
}
