package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"trainee_notification_service/internal/domain/account"
	"trainee_notification_service/internal/domain/action"
	"trainee_notification_service/internal/domain/notification"
	idb "trainee_notification_service/internal/infra/database"

	"github.com/google/uuid"
)

func testLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// memoryRepository is an in-memory notification.Repository for tests,
// mimicking the Postgres repository's sentinel errors and uniqueness
// behavior.
type memoryRepository struct {
	mu      sync.Mutex
	records map[uuid.UUID]*notification.Record

	createErr error
	updateErr error
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{records: make(map[uuid.UUID]*notification.Record)}
}

func cloneRecord(rec *notification.Record) *notification.Record {
	clone := *rec
	if rec.TisReference != nil {
		ref := *rec.TisReference
		clone.TisReference = &ref
	}
	if rec.Template.Variables != nil {
		vars := make(map[string]any, len(rec.Template.Variables))
		for k, v := range rec.Template.Variables {
			vars[k] = v
		}
		clone.Template.Variables = vars
	}
	return &clone
}

func (r *memoryRepository) Create(_ context.Context, rec *notification.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	if rec.TisReference != nil {
		for _, existing := range r.records {
			if existing.TisReference != nil &&
				existing.Recipient.Identity == rec.Recipient.Identity &&
				*existing.TisReference == *rec.TisReference &&
				existing.Type == rec.Type {
				return idb.ErrDuplicateNotification
			}
		}
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.CreatedAt = time.Now()
	rec.UpdatedAt = rec.CreatedAt
	r.records[rec.ID] = cloneRecord(rec)
	return nil
}

func (r *memoryRepository) GetByID(_ context.Context, id uuid.UUID) (*notification.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, idb.ErrNotificationNotFound
	}
	return cloneRecord(rec), nil
}

func (r *memoryRepository) Update(_ context.Context, rec *notification.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	stored, ok := r.records[rec.ID]
	if !ok {
		return idb.ErrNotificationNotFound
	}
	// Same write-time guard as the Postgres repository: a snapshot older
	// than the stored row loses.
	if stored.LatestStatusEventAt.Valid &&
		(!rec.LatestStatusEventAt.Valid || stored.LatestStatusEventAt.Time.After(rec.LatestStatusEventAt.Time)) {
		return idb.ErrStaleRecord
	}
	rec.UpdatedAt = time.Now()
	r.records[rec.ID] = cloneRecord(rec)
	return nil
}

func (r *memoryRepository) FindDue(_ context.Context, now time.Time) ([]*notification.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []*notification.Record
	for _, rec := range r.records {
		if rec.Status == notification.StatusScheduled && rec.ScheduledFor.Valid && !rec.ScheduledFor.Time.After(now) {
			due = append(due, cloneRecord(rec))
		}
	}
	return due, nil
}

func (r *memoryRepository) FindExisting(_ context.Context, identity string, ref notification.TisReference, t notification.Type) (*notification.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *notification.Record
	for _, rec := range r.records {
		if rec.TisReference != nil && rec.Recipient.Identity == identity && *rec.TisReference == ref && rec.Type == t {
			if latest == nil || rec.CreatedAt.After(latest.CreatedAt) {
				latest = rec
			}
		}
	}
	if latest == nil {
		return nil, idb.ErrNotificationNotFound
	}
	return cloneRecord(latest), nil
}

func (r *memoryRepository) ListByRecipient(_ context.Context, identity string) ([]*notification.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*notification.Record
	for _, rec := range r.records {
		if rec.Recipient.Identity == identity {
			out = append(out, cloneRecord(rec))
		}
	}
	return out, nil
}

func (r *memoryRepository) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// fakeQueue records enqueued ids and can fail selected ones.
type fakeQueue struct {
	mu       sync.Mutex
	enqueued []uuid.UUID
	failIDs  map[uuid.UUID]bool
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{failIDs: make(map[uuid.UUID]bool)}
}

func (q *fakeQueue) EnqueueDelivery(_ context.Context, id uuid.UUID) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failIDs[id] {
		return fmt.Errorf("broker unavailable")
	}
	q.enqueued = append(q.enqueued, id)
	return nil
}

// fakeGateway counts sends and can be told to fail.
type fakeGateway struct {
	sent    []uuid.UUID
	sendErr error
}

func (g *fakeGateway) Send(_ context.Context, rec *notification.Record) error {
	if g.sendErr != nil {
		return g.sendErr
	}
	g.sent = append(g.sent, rec.ID)
	return nil
}

// fakePublisher collects change events.
type fakePublisher struct {
	published []*notification.Record
	err       error
}

func (p *fakePublisher) PublishRecordChanged(_ context.Context, rec *notification.Record) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, cloneRecord(rec))
	return nil
}

// fakeActionService returns a fixed action set or error.
type fakeActionService struct {
	actions []action.Action
	err     error
	calls   int
}

func (s *fakeActionService) ListActions(_ context.Context, _, _ string) ([]action.Action, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.actions, nil
}

// fakeResolver returns a fixed account set or error.
type fakeResolver struct {
	accounts []account.Account
	err      error
}

func (r *fakeResolver) Resolve(_ context.Context, _ string) ([]account.Account, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.accounts, nil
}

func (r *fakeResolver) Details(_ context.Context, identity string) (*account.Account, error) {
	for _, acct := range r.accounts {
		if acct.Identity == identity {
			return &acct, nil
		}
	}
	return nil, fmt.Errorf("no account %s", identity)
}

// fakeLockBackend hands the lock out according to 'busy'.
type fakeLockBackend struct {
	busy     bool
	err      error
	acquired int
	released int
}

func (b *fakeLockBackend) Acquire(_ context.Context, _ string, _ time.Duration) (bool, error) {
	if b.err != nil {
		return false, b.err
	}
	if b.busy {
		return false, nil
	}
	b.acquired++
	return true, nil
}

func (b *fakeLockBackend) Release(_ context.Context, _ string) error {
	b.released++
	return nil
}
