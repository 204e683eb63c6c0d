package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"trainee_notification_service/internal/domain/notification"
	idb "trainee_notification_service/internal/infra/database"

	"github.com/google/uuid"
)

// ErrInvalidCorrelator marks an inbound event whose notification-id
// correlator is missing, malformed, or unknown. The event is broken, not
// merely late, so callers should dead-letter it rather than retry.
var ErrInvalidCorrelator = fmt.Errorf("event has no resolvable notification id")

// NotificationService owns the shared creation and status-event paths. All
// other services create and mutate records through it so the uniqueness and
// monotonicity invariants live in one place.
type NotificationService struct {
	repo   notification.Repository
	logger *log.Logger
}

func NewNotificationService(repo notification.Repository, logger *log.Logger) *NotificationService {
	return &NotificationService{repo: repo, logger: logger}
}

// CreateOrSkip persists rec unless a record already exists for the same
// (recipient identity, business reference, type) tuple. It reports whether
// a record was created. Records without a business reference are always
// created: there is no tuple to deduplicate on.
func (s *NotificationService) CreateOrSkip(ctx context.Context, rec *notification.Record) (bool, error) {
	if rec.TisReference != nil {
		existing, err := s.repo.FindExisting(ctx, rec.Recipient.Identity, *rec.TisReference, rec.Type)
		if err == nil {
			s.logger.Printf("INFO: Notification %s for %s/%s to %s already exists (ID: %s). Skipping creation.",
				rec.Type, rec.TisReference.Type, rec.TisReference.ID, rec.Recipient.Identity, existing.ID)
			return false, nil
		}
		if err != idb.ErrNotificationNotFound {
			return false, fmt.Errorf("failed to check existing notification: %w", err)
		}
	}

	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		if err == idb.ErrDuplicateNotification {
			// Lost a create race with another instance; the invariant held.
			s.logger.Printf("INFO: Concurrent creation of notification %s for %s detected. Skipping.", rec.Type, rec.Recipient.Identity)
			return false, nil
		}
		return false, fmt.Errorf("failed to create notification record: %w", err)
	}
	s.logger.Printf("INFO: Created notification %s (ID: %s, status: %s) for %s.", rec.Type, rec.ID, rec.Status, rec.Recipient.Identity)
	return true, nil
}

// ApplyStatusEvent loads the record and applies a guarded status change. It
// reports whether the event was applied; a discarded out-of-order event is
// (false, nil).
func (s *NotificationService) ApplyStatusEvent(ctx context.Context, id uuid.UUID, to notification.Status, detail string, eventAt time.Time) (bool, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == idb.ErrNotificationNotFound {
			return false, idb.ErrNotificationNotFound
		}
		return false, fmt.Errorf("failed to load notification %s: %w", id, err)
	}

	applied, err := rec.ApplyStatusEvent(to, detail, eventAt)
	if err != nil {
		return false, err
	}
	if !applied {
		s.logger.Printf("INFO: Status event %s for notification %s at %s is not newer than %s. Discarded.",
			to, id, eventAt.Format(time.RFC3339), rec.LatestStatusEventAt.Time.Format(time.RFC3339))
		return false, nil
	}

	if err := s.repo.Update(ctx, rec); err != nil {
		if err == idb.ErrStaleRecord {
			// Another instance persisted a newer event between our load and
			// write; this event lost the race, which is the same outcome as
			// failing the in-memory guard.
			s.logger.Printf("INFO: Notification %s was updated concurrently with a newer event. Discarding status event %s at %s.",
				id, to, eventAt.Format(time.RFC3339))
			return false, nil
		}
		return false, fmt.Errorf("failed to persist status %s for notification %s: %w", to, id, err)
	}
	s.logger.Printf("INFO: Notification %s is now %s.", id, to)
	return true, nil
}

// MarkRead marks an in-app notification read. The record must be UNREAD.
func (s *NotificationService) MarkRead(ctx context.Context, id uuid.UUID) error {
	_, err := s.ApplyStatusEvent(ctx, id, notification.StatusRead, "", time.Now())
	return err
}

// MarkUnread returns a READ in-app notification to UNREAD.
func (s *NotificationService) MarkUnread(ctx context.Context, id uuid.UUID) error {
	_, err := s.ApplyStatusEvent(ctx, id, notification.StatusUnread, "", time.Now())
	return err
}

// Archive archives an in-app notification.
func (s *NotificationService) Archive(ctx context.Context, id uuid.UUID) error {
	_, err := s.ApplyStatusEvent(ctx, id, notification.StatusArchived, "", time.Now())
	return err
}

// Resend is the operator-triggered redelivery override: it re-marks the
// record SCHEDULED so the next outbox sweep picks it up. The state machine
// has no edge back to SCHEDULED, so this bypasses the guarded path on
// purpose. SentAt stays untouched; the next successful send records
// LastRetry instead.
func (s *NotificationService) Resend(ctx context.Context, id uuid.UUID) error {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	rec.Status = notification.StatusScheduled
	rec.StatusDetail = ""
	rec.ScheduledFor = sql.NullTime{Time: time.Now(), Valid: true}
	if err := s.repo.Update(ctx, rec); err != nil {
		return fmt.Errorf("failed to re-schedule notification %s: %w", id, err)
	}
	s.logger.Printf("INFO: Notification %s re-marked SCHEDULED for resend.", id)
	return nil
}
