package app

import (
	"context"
	"log"
	"time"

	"trainee_notification_service/internal/domain/notification"
	"trainee_notification_service/internal/infra/locking"

	"github.com/google/uuid"
)

// sweepLockName is the cluster-wide lock guarding the outbox sweep. Only
// one instance executes a given sweep; the others skip silently.
const sweepLockName = "outbox-sweep"

// DeliveryQueue enqueues dispatch requests for the delivery worker. The
// queue is at-least-once: its invisibility window must exceed the time to
// complete a full sweep, otherwise a request can be redelivered while the
// first attempt is still in flight. That is an operational setting, not
// something this code can enforce.
type DeliveryQueue interface {
	EnqueueDelivery(ctx context.Context, notificationID uuid.UUID) error
}

// EnqueueFailure is one record of a sweep that could not be handed to the
// queue. The rest of the sweep proceeds regardless.
type EnqueueFailure struct {
	NotificationID uuid.UUID
	Err            error
}

// OutboxService promotes due records to delivery on a recurring trigger.
type OutboxService struct {
	repo      notification.Repository
	queue     DeliveryQueue
	runner    *locking.Runner
	logger    *log.Logger
	lockLease time.Duration
}

func NewOutboxService(
	repo notification.Repository,
	queue DeliveryQueue,
	runner *locking.Runner,
	logger *log.Logger,
	lockLease time.Duration,
) *OutboxService {
	return &OutboxService{
		repo:      repo,
		queue:     queue,
		runner:    runner,
		logger:    logger,
		lockLease: lockLease,
	}
}

// SweepDue finds every SCHEDULED record with ScheduledFor <= now and
// enqueues a delivery request for each, under the cluster-wide sweep lock.
// It returns the set of enqueue failures; ran is false when another
// instance held the lock, which is a skip, not an error.
func (s *OutboxService) SweepDue(ctx context.Context) (ran bool, failures []EnqueueFailure, err error) {
	ran, runErr := s.runner.TryRunExclusive(ctx, sweepLockName, s.lockLease, func(ctx context.Context) error {
		failures = s.sweep(ctx)
		return nil
	})
	if runErr != nil {
		return ran, failures, runErr
	}
	if !ran {
		s.logger.Printf("INFO: Outbox sweep lock %q held elsewhere. Skipping this sweep.", sweepLockName)
	}
	return ran, failures, nil
}

func (s *OutboxService) sweep(ctx context.Context) []EnqueueFailure {
	now := time.Now()
	due, err := s.repo.FindDue(ctx, now)
	if err != nil {
		s.logger.Printf("ERROR: Failed to query due notifications: %v", err)
		return nil
	}
	if len(due) == 0 {
		return nil
	}
	s.logger.Printf("INFO: Outbox sweep found %d due notification(s).", len(due))

	var failures []EnqueueFailure
	for _, rec := range due {
		if err := s.queue.EnqueueDelivery(ctx, rec.ID); err != nil {
			s.logger.Printf("ERROR: Failed to enqueue delivery for notification %s: %v", rec.ID, err)
			failures = append(failures, EnqueueFailure{NotificationID: rec.ID, Err: err})
			continue
		}
	}
	s.logger.Printf("INFO: Outbox sweep enqueued %d of %d due notification(s).", len(due)-len(failures), len(due))
	return failures
}
