package queue

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"trainee_notification_service/internal/app"
	"trainee_notification_service/internal/domain/notification"

	"github.com/IBM/sarama"
)

// businessEventMessage is the wire format of inbound business events.
type businessEventMessage struct {
	Kind          string         `json:"kind"`
	PersonID      string         `json:"personId"`
	ReferenceType string         `json:"referenceType,omitempty"`
	ReferenceID   string         `json:"referenceId,omitempty"`
	OccurredAt    time.Time      `json:"occurredAt"`
	Programme     *programmeDTO  `json:"programmeMembership,omitempty"`
	AccountChange *accChangeDTO  `json:"accountChange,omitempty"`
	Attributes    map[string]any `json:"attributes,omitempty"`
}

type programmeDTO struct {
	ID            string    `json:"id"`
	PersonID      string    `json:"personId"`
	ProgrammeName string    `json:"programmeName"`
	StartDate     time.Time `json:"startDate"`
}

type accChangeDTO struct {
	FromIdentity string `json:"fromIdentity"`
	ToIdentity   string `json:"toIdentity"`
}

func (m businessEventMessage) toDomain() notification.BusinessEvent {
	ev := notification.BusinessEvent{
		Kind:       notification.BusinessEventKind(m.Kind),
		PersonID:   m.PersonID,
		OccurredAt: m.OccurredAt,
		Attributes: m.Attributes,
		Reference: notification.TisReference{
			Type: notification.ReferenceType(m.ReferenceType),
			ID:   m.ReferenceID,
		},
	}
	if m.Programme != nil {
		ev.Programme = &notification.ProgrammeMembership{
			ID:            m.Programme.ID,
			PersonID:      m.Programme.PersonID,
			ProgrammeName: m.Programme.ProgrammeName,
			StartDate:     m.Programme.StartDate,
		}
	}
	if m.AccountChange != nil {
		ev.AccountChange = &notification.AccountChange{
			FromIdentity: m.AccountChange.FromIdentity,
			ToIdentity:   m.AccountChange.ToIdentity,
		}
	}
	return ev
}

// BusinessEventConsumer feeds inbound business events to the event handler.
type BusinessEventConsumer struct {
	group   sarama.ConsumerGroup
	topic   string
	handler *app.EventHandler
	logger  *log.Logger
}

func NewBusinessEventConsumer(brokers []string, groupID, topic string, handler *app.EventHandler, logger *log.Logger) (*BusinessEventConsumer, error) {
	group, err := newConsumerGroup(brokers, groupID)
	if err != nil {
		return nil, err
	}
	return &BusinessEventConsumer{group: group, topic: topic, handler: handler, logger: logger}, nil
}

func (c *BusinessEventConsumer) Run(ctx context.Context) error {
	return consumeLoop(ctx, c.group, c.topic, &businessEventGroupHandler{handler: c.handler, logger: c.logger}, c.logger)
}

func (c *BusinessEventConsumer) Close() error { return c.group.Close() }

type businessEventGroupHandler struct {
	handler *app.EventHandler
	logger  *log.Logger
}

func (h *businessEventGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *businessEventGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *businessEventGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var wire businessEventMessage
		if err := json.Unmarshal(msg.Value, &wire); err != nil {
			h.logger.Printf("ERROR: Undecodable business event at %s/%d/%d: %v", msg.Topic, msg.Partition, msg.Offset, err)
			session.MarkMessage(msg, "")
			continue
		}

		if err := h.handler.Handle(session.Context(), wire.toDomain()); err != nil {
			h.logger.Printf("ERROR: Failed to handle business event %s for person %s: %v", wire.Kind, wire.PersonID, err)
			continue
		}
		session.MarkMessage(msg, "")
	}
	return nil
}

// outcomeMessage is the wire format of provider delivery-outcome events.
type outcomeMessage struct {
	NotificationID string    `json:"notificationId"`
	Kind           string    `json:"outcomeKind"`
	SubType        string    `json:"subType,omitempty"`
	Diagnostic     string    `json:"diagnosticSubType,omitempty"`
	FeedbackType   string    `json:"feedbackType,omitempty"`
	EventAt        time.Time `json:"eventTimestamp"`
}

// OutcomeConsumer feeds provider delivery feedback to the reconciler.
type OutcomeConsumer struct {
	group      sarama.ConsumerGroup
	topic      string
	reconciler *app.ReconcileService
	logger     *log.Logger
}

func NewOutcomeConsumer(brokers []string, groupID, topic string, reconciler *app.ReconcileService, logger *log.Logger) (*OutcomeConsumer, error) {
	group, err := newConsumerGroup(brokers, groupID)
	if err != nil {
		return nil, err
	}
	return &OutcomeConsumer{group: group, topic: topic, reconciler: reconciler, logger: logger}, nil
}

func (c *OutcomeConsumer) Run(ctx context.Context) error {
	return consumeLoop(ctx, c.group, c.topic, &outcomeGroupHandler{reconciler: c.reconciler, logger: c.logger}, c.logger)
}

func (c *OutcomeConsumer) Close() error { return c.group.Close() }

type outcomeGroupHandler struct {
	reconciler *app.ReconcileService
	logger     *log.Logger
}

func (h *outcomeGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *outcomeGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *outcomeGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var wire outcomeMessage
		if err := json.Unmarshal(msg.Value, &wire); err != nil {
			h.logger.Printf("ERROR: Undecodable delivery outcome at %s/%d/%d: %v", msg.Topic, msg.Partition, msg.Offset, err)
			session.MarkMessage(msg, "")
			continue
		}

		outcome := notification.DeliveryOutcome{
			NotificationID: wire.NotificationID,
			Kind:           notification.OutcomeKind(wire.Kind),
			SubType:        wire.SubType,
			Diagnostic:     wire.Diagnostic,
			FeedbackType:   wire.FeedbackType,
			EventAt:        wire.EventAt,
		}
		if _, err := h.reconciler.ProcessOutcome(session.Context(), outcome); err != nil {
			if errors.Is(err, app.ErrInvalidCorrelator) {
				// Malformed event; retrying cannot fix it.
				h.logger.Printf("ERROR: Dropping malformed delivery outcome: %v", err)
				session.MarkMessage(msg, "")
				continue
			}
			h.logger.Printf("ERROR: Failed to reconcile delivery outcome for %q: %v", wire.NotificationID, err)
			continue
		}
		session.MarkMessage(msg, "")
	}
	return nil
}
