package queue

import (
	"context"
	"encoding/json"
	"log"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

// DeliveryProcessor is the consumer-side contract: process one dispatch
// request. Implementations must be idempotent, because the delivery topic
// is at-least-once: the consumer session timeout must exceed the time to
// process a batch, or an in-flight message will be redelivered to another
// instance while the first attempt is still running.
type DeliveryProcessor interface {
	ProcessDeliveryRequest(ctx context.Context, notificationID uuid.UUID) error
}

// DeliveryConsumer reads dispatch requests from the delivery topic and
// hands them to the delivery worker.
type DeliveryConsumer struct {
	group     sarama.ConsumerGroup
	topic     string
	processor DeliveryProcessor
	logger    *log.Logger
}

func NewDeliveryConsumer(brokers []string, groupID, topic string, processor DeliveryProcessor, logger *log.Logger) (*DeliveryConsumer, error) {
	group, err := newConsumerGroup(brokers, groupID)
	if err != nil {
		return nil, err
	}
	return &DeliveryConsumer{group: group, topic: topic, processor: processor, logger: logger}, nil
}

func (c *DeliveryConsumer) Run(ctx context.Context) error {
	handler := &deliveryGroupHandler{processor: c.processor, logger: c.logger}
	return consumeLoop(ctx, c.group, c.topic, handler, c.logger)
}

func (c *DeliveryConsumer) Close() error {
	return c.group.Close()
}

type deliveryGroupHandler struct {
	processor DeliveryProcessor
	logger    *log.Logger
}

func (h *deliveryGroupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *deliveryGroupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *deliveryGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		var req deliveryRequest
		if err := json.Unmarshal(msg.Value, &req); err != nil {
			// Poison message: ack it, there is nothing to retry.
			h.logger.Printf("ERROR: Undecodable delivery request at %s/%d/%d: %v", msg.Topic, msg.Partition, msg.Offset, err)
			session.MarkMessage(msg, "")
			continue
		}
		id, err := uuid.Parse(req.NotificationID)
		if err != nil {
			h.logger.Printf("ERROR: Delivery request carries invalid notification id %q. Skipping.", req.NotificationID)
			session.MarkMessage(msg, "")
			continue
		}

		if err := h.processor.ProcessDeliveryRequest(session.Context(), id); err != nil {
			// Leave the offset unmarked so the request is redelivered; the
			// worker's duplicate-trigger guard keeps that safe.
			h.logger.Printf("ERROR: Failed to process delivery request for %s: %v", id, err)
			continue
		}
		session.MarkMessage(msg, "")
	}
	return nil
}
