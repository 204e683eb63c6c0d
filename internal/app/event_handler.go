package app

import (
	"context"
	"fmt"
	"log"

	"trainee_notification_service/internal/domain/account"
	"trainee_notification_service/internal/domain/notification"
)

// EventHandler turns inbound business events into notification records.
// Dispatch is an explicit switch over the event kind; every arm builds its
// records through the shared CreateOrSkip path so scheduling and
// duplicate-suppression logic is centralized, not duplicated per listener.
type EventHandler struct {
	notifService *NotificationService
	reminders    *ReminderService
	migrations   *MigrationService
	accounts     account.Resolver
	logger       *log.Logger
}

func NewEventHandler(
	notifService *NotificationService,
	reminders *ReminderService,
	migrations *MigrationService,
	accounts account.Resolver,
	logger *log.Logger,
) *EventHandler {
	return &EventHandler{
		notifService: notifService,
		reminders:    reminders,
		migrations:   migrations,
		accounts:     accounts,
		logger:       logger,
	}
}

// Handle processes one business event. Unknown kinds are an error: the
// catalog is closed and a new upstream event type needs an explicit arm.
func (h *EventHandler) Handle(ctx context.Context, ev notification.BusinessEvent) error {
	switch ev.Kind {
	case notification.EventDocumentSigned:
		return h.createImmediate(ctx, ev, notification.TypeDocumentSigned)
	case notification.EventFormUpdated:
		return h.createImmediate(ctx, ev, notification.TypeFormUpdated)
	case notification.EventCredentialRevoked:
		return h.createImmediate(ctx, ev, notification.TypeCredentialRevoked)
	case notification.EventProgrammeCreated:
		return h.handleProgrammeEvent(ctx, ev, notification.TypeProgrammeCreated)
	case notification.EventProgrammeUpdated:
		return h.handleProgrammeEvent(ctx, ev, notification.TypeProgrammeUpdated)
	case notification.EventAccountChanged:
		if ev.AccountChange == nil {
			return fmt.Errorf("account change event is missing its payload")
		}
		_, err := h.migrations.MigrateOwnership(ctx, ev.AccountChange.FromIdentity, ev.AccountChange.ToIdentity)
		return err
	default:
		return fmt.Errorf("unhandled business event kind %q", ev.Kind)
	}
}

// createImmediate builds one PENDING record for an event that notifies
// right away, addressed to the person's primary account.
func (h *EventHandler) createImmediate(ctx context.Context, ev notification.BusinessEvent, t notification.Type) error {
	def, ok := t.Definition()
	if !ok {
		return fmt.Errorf("notification type %q is not in the catalog", t)
	}

	acct, err := h.primaryAccount(ctx, ev.PersonID)
	if err != nil {
		return err
	}
	if acct == nil {
		h.logger.Printf("WARN: Person %s has no deliverable account. Dropping %s event.", ev.PersonID, ev.Kind)
		return nil
	}

	ref := ev.Reference
	rec := &notification.Record{
		Type:         t,
		TisReference: &ref,
		Recipient: notification.Recipient{
			Identity:       acct.Identity,
			Channel:        def.Channel,
			ContactAddress: acct.Email,
		},
		Template: notification.Template{
			Name:      def.TemplateName,
			Version:   def.TemplateVersion,
			Variables: h.templateVariables(ev, acct),
		},
		Status: notification.StatusPending,
	}
	_, err = h.notifService.CreateOrSkip(ctx, rec)
	return err
}

// handleProgrammeEvent creates the immediate programme notification and
// re-plans the membership's reminders. Updates re-plan idempotently: kinds
// already scheduled are skipped by the uniqueness invariant.
func (h *EventHandler) handleProgrammeEvent(ctx context.Context, ev notification.BusinessEvent, t notification.Type) error {
	if ev.Programme == nil {
		return fmt.Errorf("programme event %s is missing its membership payload", ev.Kind)
	}
	if err := h.createImmediate(ctx, ev, t); err != nil {
		return err
	}
	return h.reminders.PlanProgrammeReminders(ctx, *ev.Programme)
}

func (h *EventHandler) primaryAccount(ctx context.Context, personID string) (*account.Account, error) {
	accts, err := h.accounts.Resolve(ctx, personID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve accounts for person %s: %w", personID, err)
	}
	if len(accts) == 0 {
		return nil, nil
	}
	return &accts[0], nil
}

func (h *EventHandler) templateVariables(ev notification.BusinessEvent, acct *account.Account) map[string]any {
	vars := map[string]any{
		"personId":    ev.PersonID,
		"displayName": acct.DisplayName,
		"occurredAt":  ev.OccurredAt,
	}
	for k, v := range ev.Attributes {
		vars[k] = v
	}
	if ev.Programme != nil {
		vars["programmeName"] = ev.Programme.ProgrammeName
		vars["startDate"] = ev.Programme.StartDate
	}
	return vars
}
