package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"trainee_notification_service/internal/domain/notification"
	idb "trainee_notification_service/internal/infra/database"

	"github.com/google/uuid"
)

// DeliveryService is the queue-consumer side of the outbox: given a
// dispatch request it loads the record, sends it through the channel's
// gateway and records the outcome. It never retries on its own: a failed
// record is only picked up again once it is re-marked SCHEDULED.
type DeliveryService struct {
	repo     notification.Repository
	gateways map[notification.Channel]notification.Gateway
	logger   *log.Logger
}

func NewDeliveryService(
	repo notification.Repository,
	gateways map[notification.Channel]notification.Gateway,
	logger *log.Logger,
) *DeliveryService {
	return &DeliveryService{repo: repo, gateways: gateways, logger: logger}
}

// ProcessDeliveryRequest handles one dispatch request from the work queue.
// Duplicate triggers (at-least-once redelivery) and unknown ids are
// acknowledged as no-ops so the queue does not spin on them.
func (s *DeliveryService) ProcessDeliveryRequest(ctx context.Context, id uuid.UUID) error {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if err == idb.ErrNotificationNotFound {
			s.logger.Printf("WARN: Delivery request for unknown notification %s. Possibly a stale redelivery. Ignoring.", id)
			return nil
		}
		return fmt.Errorf("failed to load notification %s for delivery: %w", id, err)
	}

	if rec.Dispatched() {
		s.logger.Printf("INFO: Notification %s is already %s. Duplicate delivery trigger ignored.", rec.ID, rec.Status)
		return nil
	}

	gateway, ok := s.gateways[rec.Recipient.Channel]
	if !ok {
		return fmt.Errorf("no delivery gateway configured for channel %s", rec.Recipient.Channel)
	}

	if err := gateway.Send(ctx, rec); err != nil {
		s.logger.Printf("ERROR: Delivery gateway failed for notification %s (channel %s): %v", rec.ID, rec.Recipient.Channel, err)
		return s.recordFailure(ctx, rec, err)
	}
	return s.recordSent(ctx, rec)
}

func (s *DeliveryService) recordSent(ctx context.Context, rec *notification.Record) error {
	sentAt := time.Now()
	applied, err := rec.ApplyStatusEvent(notification.StatusSent, "", sentAt)
	if err != nil {
		return err
	}
	if !applied {
		s.logger.Printf("INFO: Notification %s holds a newer status event than this delivery. Not recording it as sent.", rec.ID)
		return nil
	}
	// An in-app record lands in the recipient's inbox the moment it is
	// written, so it advances straight to UNREAD. The marker needs a
	// strictly later event time or the monotonic guard would reject it.
	if rec.Recipient.Channel == notification.ChannelInApp {
		if _, err := rec.ApplyStatusEvent(notification.StatusUnread, "", sentAt.Add(time.Millisecond)); err != nil {
			return err
		}
	}
	if err := s.repo.Update(ctx, rec); err != nil {
		return fmt.Errorf("failed to persist delivery of notification %s: %w", rec.ID, err)
	}
	s.logger.Printf("INFO: Notification %s delivered via %s.", rec.ID, rec.Recipient.Channel)
	return nil
}

func (s *DeliveryService) recordFailure(ctx context.Context, rec *notification.Record, sendErr error) error {
	detail := fmt.Sprintf("Delivery failed: %v", sendErr)
	applied, err := rec.ApplyStatusEvent(notification.StatusFailed, detail, time.Now())
	if err != nil {
		// In-app records cannot FAIL; surface the original send error and
		// let the queue's redelivery policy decide.
		return sendErr
	}
	if applied {
		if err := s.repo.Update(ctx, rec); err != nil {
			return fmt.Errorf("failed to persist failure of notification %s: %w", rec.ID, err)
		}
	}
	return nil
}
