package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"trainee_notification_service/internal/domain/account"
	"trainee_notification_service/internal/domain/action"
	"trainee_notification_service/internal/domain/notification"
	idb "trainee_notification_service/internal/infra/database"
)

// ReminderService computes which programme-start reminders are due for a
// programme membership and schedules them idempotently. Whether a reminder
// is needed depends on external, mutable state: the prerequisite actions
// the trainee may already have completed.
type ReminderService struct {
	notifService *NotificationService
	repo         notification.Repository
	actions      action.StatusService
	accounts     account.Resolver
	logger       *log.Logger
	// graceWindow is how far past its due date a reminder may still be
	// scheduled. Older reminders are stale and skipped.
	graceWindow time.Duration
}

func NewReminderService(
	notifService *NotificationService,
	repo notification.Repository,
	actions action.StatusService,
	accounts account.Resolver,
	logger *log.Logger,
	graceWindow time.Duration,
) *ReminderService {
	return &ReminderService{
		notifService: notifService,
		repo:         repo,
		actions:      actions,
		accounts:     accounts,
		logger:       logger,
		graceWindow:  graceWindow,
	}
}

// PlanProgrammeReminders evaluates every reminder kind for the membership
// and creates-or-skips a SCHEDULED record per kind still worth sending.
// Re-invocation is safe: creation is deduplicated per (recipient,
// reference, type). Per-kind failures are logged and do not abort the rest.
func (s *ReminderService) PlanProgrammeReminders(ctx context.Context, pm notification.ProgrammeMembership) error {
	accts, err := s.accounts.Resolve(ctx, pm.PersonID)
	if err != nil {
		return fmt.Errorf("failed to resolve accounts for person %s: %w", pm.PersonID, err)
	}
	if len(accts) == 0 {
		s.logger.Printf("WARN: Person %s has no deliverable account. Skipping reminders for programme membership %s.", pm.PersonID, pm.ID)
		return nil
	}
	acct := accts[0]

	// Treat an Action Status outage as "no information": the reminders
	// still fire. An upstream outage must never permanently suppress a
	// notification.
	actions, err := s.actions.ListActions(ctx, pm.PersonID, pm.ID)
	if err != nil {
		s.logger.Printf("WARN: Action Status service unavailable for person %s, entity %s: %v. Proceeding as if actions are incomplete.", pm.PersonID, pm.ID, err)
		actions = nil
	}
	allComplete := action.AllComplete(actions)

	ref := notification.TisReference{Type: notification.RefProgrammeMembership, ID: pm.ID}
	welcomeSentAt := s.welcomeSentAt(ctx, acct.Identity, ref)
	now := time.Now()

	for _, kind := range notification.ReminderTypes() {
		def, ok := kind.Definition()
		if !ok || !def.IsReminder {
			continue
		}
		dueAt := pm.StartDate.Add(def.StartOffset)

		if allComplete {
			s.logger.Printf("INFO: All %d tracked action(s) complete for person %s, membership %s. Suppressing %s.", len(actions), pm.PersonID, pm.ID, kind)
			continue
		}
		if now.After(dueAt.Add(s.graceWindow)) {
			s.logger.Printf("INFO: Reminder %s for membership %s was due %s, past the grace window. Skipping.", kind, pm.ID, dueAt.Format("2006-01-02"))
			continue
		}

		refCopy := ref
		rec := &notification.Record{
			Type:         kind,
			TisReference: &refCopy,
			Recipient: notification.Recipient{
				Identity:       acct.Identity,
				Channel:        def.Channel,
				ContactAddress: acct.Email,
			},
			Template: notification.Template{
				Name:      def.TemplateName,
				Version:   def.TemplateVersion,
				Variables: s.templateVariables(pm, acct, actions, welcomeSentAt),
			},
			Status:       notification.StatusScheduled,
			ScheduledFor: sql.NullTime{Time: dueAt, Valid: true},
		}

		if _, err := s.notifService.CreateOrSkip(ctx, rec); err != nil {
			s.logger.Printf("ERROR: Failed to schedule reminder %s for membership %s: %v", kind, pm.ID, err)
			continue
		}
	}
	return nil
}

// welcomeSentAt looks up the prior welcome notification for this recipient
// and membership and returns its retry-aware sent timestamp, so reminder
// templates can reference when the trainee was first told about the
// programme. Absence is fine; the variable is simply omitted.
func (s *ReminderService) welcomeSentAt(ctx context.Context, identity string, ref notification.TisReference) sql.NullTime {
	welcome, err := s.repo.FindExisting(ctx, identity, ref, notification.TypeProgrammeCreated)
	if err != nil {
		if err != idb.ErrNotificationNotFound {
			s.logger.Printf("WARN: Failed to look up welcome notification for %s/%s: %v", identity, ref.ID, err)
		}
		return sql.NullTime{}
	}
	return welcome.SentOrRetriedAt()
}

func (s *ReminderService) templateVariables(
	pm notification.ProgrammeMembership,
	acct account.Account,
	actions []action.Action,
	welcomeSentAt sql.NullTime,
) map[string]any {
	vars := map[string]any{
		"personId":      pm.PersonID,
		"programmeName": pm.ProgrammeName,
		"startDate":     pm.StartDate,
		"displayName":   acct.DisplayName,
	}
	for _, a := range actions {
		vars["action:"+a.Type] = a.Completed()
	}
	if welcomeSentAt.Valid {
		vars["welcomeSentAt"] = welcomeSentAt.Time
	}
	return vars
}
