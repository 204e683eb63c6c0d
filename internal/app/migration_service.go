package app

import (
	"context"
	"fmt"
	"log"

	"trainee_notification_service/internal/domain/notification"
)

// MigrationService moves a trainee's notification history between account
// identities, e.g. after an account merge in the identity service.
type MigrationService struct {
	repo      notification.Repository
	publisher notification.ChangePublisher
	logger    *log.Logger
}

func NewMigrationService(
	repo notification.Repository,
	publisher notification.ChangePublisher,
	logger *log.Logger,
) *MigrationService {
	return &MigrationService{repo: repo, publisher: publisher, logger: logger}
}

// MigrateOwnership reassigns every record of fromIdentity to toIdentity,
// preserving channel and contact address, and publishes one change event
// per migrated record carrying the new state. Re-invocation with no
// matching records is a no-op. Per-record failures are logged and do not
// abort the batch; the returned count is the number actually migrated.
func (s *MigrationService) MigrateOwnership(ctx context.Context, fromIdentity, toIdentity string) (int, error) {
	if fromIdentity == "" || toIdentity == "" {
		return 0, fmt.Errorf("migration requires both a source and a target identity")
	}

	records, err := s.repo.ListByRecipient(ctx, fromIdentity)
	if err != nil {
		return 0, fmt.Errorf("failed to list notifications for identity %s: %w", fromIdentity, err)
	}
	if len(records) == 0 {
		s.logger.Printf("INFO: No notifications found for identity %s. Nothing to migrate.", fromIdentity)
		return 0, nil
	}
	s.logger.Printf("INFO: Migrating %d notification(s) from %s to %s.", len(records), fromIdentity, toIdentity)

	migrated := 0
	for _, rec := range records {
		rec.Recipient.Identity = toIdentity
		if err := s.repo.Update(ctx, rec); err != nil {
			s.logger.Printf("ERROR: Failed to migrate notification %s: %v", rec.ID, err)
			continue
		}
		migrated++
		if err := s.publisher.PublishRecordChanged(ctx, rec); err != nil {
			s.logger.Printf("ERROR: Failed to publish change event for migrated notification %s: %v", rec.ID, err)
		}
	}
	s.logger.Printf("INFO: Migrated %d of %d notification(s) from %s to %s.", migrated, len(records), fromIdentity, toIdentity)
	return migrated, nil
}
