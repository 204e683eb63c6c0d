package app

import (
	"context"
	"fmt"
	"log"

	"trainee_notification_service/internal/domain/notification"
	idb "trainee_notification_service/internal/infra/database"

	"github.com/google/uuid"
)

// ReconcileService merges asynchronous delivery-outcome events from the
// email provider into the record store. Outcomes arrive out of order
// relative to the original send; the record's latest-event timestamp is the
// sole ordering mechanism.
type ReconcileService struct {
	notifService *NotificationService
	logger       *log.Logger
}

func NewReconcileService(notifService *NotificationService, logger *log.Logger) *ReconcileService {
	return &ReconcileService{notifService: notifService, logger: logger}
}

// ProcessOutcome applies one delivery-outcome event. It reports whether the
// record was changed. Delivered outcomes and out-of-order or duplicate
// callbacks are discarded without error; an event that cannot be correlated
// to a record fails with ErrInvalidCorrelator before any mutation.
func (s *ReconcileService) ProcessOutcome(ctx context.Context, outcome notification.DeliveryOutcome) (bool, error) {
	if outcome.NotificationID == "" {
		return false, fmt.Errorf("%w: empty notification id", ErrInvalidCorrelator)
	}
	id, err := uuid.Parse(outcome.NotificationID)
	if err != nil {
		return false, fmt.Errorf("%w: %q", ErrInvalidCorrelator, outcome.NotificationID)
	}

	if outcome.Kind == notification.OutcomeDelivered {
		s.logger.Printf("INFO: Delivery confirmed for notification %s. No status change.", id)
		return false, nil
	}
	if outcome.Kind != notification.OutcomeBounced && outcome.Kind != notification.OutcomeComplaint {
		return false, fmt.Errorf("unknown delivery outcome kind %q for notification %s", outcome.Kind, id)
	}

	applied, err := s.notifService.ApplyStatusEvent(ctx, id, notification.StatusFailed, outcome.FailureDetail(), outcome.EventAt)
	if err != nil {
		if err == idb.ErrNotificationNotFound {
			return false, fmt.Errorf("%w: no record %s", ErrInvalidCorrelator, id)
		}
		return false, err
	}
	if applied {
		s.logger.Printf("INFO: Notification %s reconciled to FAILED (%s).", id, outcome.Kind)
	}
	return applied, nil
}
