package queue

import (
	"context"
	"log"

	"github.com/IBM/sarama"
)

// newConsumerGroup builds a consumer group reading from the oldest
// unconsumed offset, so records enqueued while no instance was running are
// not lost.
func newConsumerGroup(brokers []string, groupID string) (sarama.ConsumerGroup, error) {
	cfg := sarama.NewConfig()
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	cfg.Consumer.Return.Errors = true
	return sarama.NewConsumerGroup(brokers, groupID, cfg)
}

// consumeLoop runs group.Consume until ctx is cancelled. Consume returns on
// every rebalance, so it is called in a loop.
func consumeLoop(ctx context.Context, group sarama.ConsumerGroup, topic string, handler sarama.ConsumerGroupHandler, logger *log.Logger) error {
	for {
		if err := group.Consume(ctx, []string{topic}, handler); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Printf("ERROR: Kafka consume on topic %q failed: %v", topic, err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}
