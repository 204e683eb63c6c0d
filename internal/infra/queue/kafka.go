package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"trainee_notification_service/internal/domain/notification"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// NewSyncProducer builds an idempotent Kafka producer. Idempotence plus
// WaitForAll keeps the at-least-once queue from silently dropping dispatch
// requests on broker failover.
func NewSyncProducer(brokers []string) (sarama.SyncProducer, error) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	return sarama.NewSyncProducer(brokers, cfg)
}

// deliveryRequest is the wire format of one dispatch request on the
// delivery topic.
type deliveryRequest struct {
	NotificationID string    `json:"notificationId"`
	EnqueuedAt     time.Time `json:"enqueuedAt"`
}

// KafkaDeliveryQueue publishes dispatch requests for the delivery worker,
// keyed by notification id so redeliveries of the same record stay on one
// partition.
type KafkaDeliveryQueue struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaDeliveryQueue(producer sarama.SyncProducer, topic string) *KafkaDeliveryQueue {
	return &KafkaDeliveryQueue{producer: producer, topic: topic}
}

func (q *KafkaDeliveryQueue) EnqueueDelivery(ctx context.Context, notificationID uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := json.Marshal(deliveryRequest{
		NotificationID: notificationID.String(),
		EnqueuedAt:     time.Now(),
	})
	if err != nil {
		return fmt.Errorf("error encoding delivery request: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: q.topic,
		Key:   sarama.StringEncoder(notificationID.String()),
		Value: sarama.ByteEncoder(payload),
	}
	if _, _, err := q.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("error publishing delivery request for %s: %w", notificationID, err)
	}
	return nil
}

// recordChanged is the wire format of a change event on the changes topic.
// It carries the record's new state for downstream history projections.
type recordChanged struct {
	ID                string     `json:"id"`
	Type              string     `json:"type"`
	ReferenceType     string     `json:"referenceType,omitempty"`
	ReferenceID       string     `json:"referenceId,omitempty"`
	RecipientIdentity string     `json:"recipientIdentity"`
	Channel           string     `json:"channel"`
	ContactAddress    string     `json:"contactAddress,omitempty"`
	Status            string     `json:"status"`
	StatusDetail      string     `json:"statusDetail,omitempty"`
	ScheduledFor      *time.Time `json:"scheduledFor,omitempty"`
	SentAt            *time.Time `json:"sentAt,omitempty"`
	ChangedAt         time.Time  `json:"changedAt"`
}

// KafkaChangePublisher implements notification.ChangePublisher on top of
// the changes topic.
type KafkaChangePublisher struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaChangePublisher(producer sarama.SyncProducer, topic string) *KafkaChangePublisher {
	return &KafkaChangePublisher{producer: producer, topic: topic}
}

func (p *KafkaChangePublisher) PublishRecordChanged(ctx context.Context, rec *notification.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	ev := recordChanged{
		ID:                rec.ID.String(),
		Type:              string(rec.Type),
		RecipientIdentity: rec.Recipient.Identity,
		Channel:           string(rec.Recipient.Channel),
		ContactAddress:    rec.Recipient.ContactAddress,
		Status:            string(rec.Status),
		StatusDetail:      rec.StatusDetail,
		ChangedAt:         time.Now(),
	}
	if rec.TisReference != nil {
		ev.ReferenceType = string(rec.TisReference.Type)
		ev.ReferenceID = rec.TisReference.ID
	}
	if rec.ScheduledFor.Valid {
		ev.ScheduledFor = &rec.ScheduledFor.Time
	}
	if rec.SentAt.Valid {
		ev.SentAt = &rec.SentAt.Time
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("error encoding change event: %w", err)
	}
	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.ID),
		Value: sarama.ByteEncoder(payload),
	}
	if _, _, err := p.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("error publishing change event for %s: %w", ev.ID, err)
	}
	return nil
}
