package app

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"trainee_notification_service/internal/domain/notification"
	"trainee_notification_service/internal/infra/locking"

	"github.com/google/uuid"
)

func newOutboxFixture(t *testing.T, backend *fakeLockBackend) (*OutboxService, *memoryRepository, *fakeQueue) {
	t.Helper()
	repo := newMemoryRepository()
	queue := newFakeQueue()
	runner := locking.NewRunner(backend, testLogger())
	svc := NewOutboxService(repo, queue, runner, testLogger(), 2*time.Minute)
	return svc, repo, queue
}

func seedRecord(t *testing.T, repo *memoryRepository, status notification.Status, scheduledFor time.Time) uuid.UUID {
	t.Helper()
	rec := &notification.Record{
		ID:     uuid.New(),
		Type:   notification.TypeProgrammeStart8Weeks,
		Status: status,
		Recipient: notification.Recipient{
			Identity:       "acct-1",
			Channel:        notification.ChannelEmail,
			ContactAddress: "trainee@example.com",
		},
	}
	if !scheduledFor.IsZero() {
		rec.ScheduledFor = sql.NullTime{Time: scheduledFor, Valid: true}
	}
	if err := repo.Create(context.Background(), rec); err != nil {
		t.Fatal(err)
	}
	return rec.ID
}

func TestSweepEnqueuesExactlyDueRecords(t *testing.T) {
	svc, repo, queue := newOutboxFixture(t, &fakeLockBackend{})
	now := time.Now()

	dueID := seedRecord(t, repo, notification.StatusScheduled, now.Add(-time.Hour))
	overdueID := seedRecord(t, repo, notification.StatusScheduled, now.Add(-30*24*time.Hour))
	seedRecord(t, repo, notification.StatusScheduled, now.Add(time.Hour)) // future
	seedRecord(t, repo, notification.StatusPending, time.Time{})          // not scheduled
	seedRecord(t, repo, notification.StatusSent, now.Add(-time.Hour))     // already dispatched

	ran, failures, err := svc.SweepDue(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Fatal("sweep should have run with a free lock")
	}
	if len(failures) != 0 {
		t.Fatalf("unexpected enqueue failures: %v", failures)
	}

	want := map[uuid.UUID]bool{dueID: true, overdueID: true}
	if len(queue.enqueued) != len(want) {
		t.Fatalf("enqueued %d record(s), want %d", len(queue.enqueued), len(want))
	}
	for _, id := range queue.enqueued {
		if !want[id] {
			t.Errorf("unexpected record %s enqueued", id)
		}
	}
}

func TestSweepSkipsWhenLockHeldElsewhere(t *testing.T) {
	svc, repo, queue := newOutboxFixture(t, &fakeLockBackend{busy: true})
	seedRecord(t, repo, notification.StatusScheduled, time.Now().Add(-time.Hour))

	ran, failures, err := svc.SweepDue(context.Background())
	if err != nil {
		t.Fatalf("a held lock is a skip, not an error: %v", err)
	}
	if ran {
		t.Error("sweep must not run while another instance holds the lock")
	}
	if len(failures) != 0 || len(queue.enqueued) != 0 {
		t.Error("skipped sweep must not touch the queue")
	}
}

func TestSweepCollectsPartialEnqueueFailures(t *testing.T) {
	svc, repo, queue := newOutboxFixture(t, &fakeLockBackend{})
	now := time.Now()

	okID := seedRecord(t, repo, notification.StatusScheduled, now.Add(-time.Hour))
	badID := seedRecord(t, repo, notification.StatusScheduled, now.Add(-2*time.Hour))
	queue.failIDs[badID] = true

	ran, failures, err := svc.SweepDue(context.Background())
	if err != nil || !ran {
		t.Fatalf("SweepDue = (%v, _, %v)", ran, err)
	}

	if len(failures) != 1 || failures[0].NotificationID != badID {
		t.Fatalf("failures = %v, want exactly the broken record %s", failures, badID)
	}
	if len(queue.enqueued) != 1 || queue.enqueued[0] != okID {
		t.Errorf("the healthy record must still be enqueued, got %v", queue.enqueued)
	}
}

func TestSweepReleasesLock(t *testing.T) {
	backend := &fakeLockBackend{}
	svc, _, _ := newOutboxFixture(t, backend)

	if _, _, err := svc.SweepDue(context.Background()); err != nil {
		t.Fatal(err)
	}
	if backend.acquired != 1 || backend.released != 1 {
		t.Errorf("lock acquired %d time(s), released %d time(s); want 1/1", backend.acquired, backend.released)
	}
}
