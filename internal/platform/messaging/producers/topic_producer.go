package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/daxchui/orderflow/internal/config"
	"github.com/segmentio/kafka-go"
)

// TopicProducer publishes JSON messages to one topic. Writes are synchronous
// with full acks: the outbox sweeper marks an event processed only when
// Publish returns nil, so a positive return must mean the broker has the
// message.
type TopicProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewTopicProducer creates a producer for the given topic and ensures the
// topic exists
func NewTopicProducer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig, topic string) (*TopicProducer, error) {
	if topic == "" {
		return nil, fmt.Errorf("kafka topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for producer: %w", err)
	}
	defer conn.Close()

	err = ensureTopic(conn, topic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure topic %s exists: %w", topic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}

	return &TopicProducer{
		logger: logger,
		writer: writer,
		topic:  topic,
	}, nil
}

func (p *TopicProducer) Publish(ctx context.Context, key string, value interface{}) error {
	return p.PublishWithHeaders(ctx, key, value, nil)
}

func (p *TopicProducer) PublishWithHeaders(ctx context.Context, key string, value interface{}, headers []kafka.Header) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message value: %w", err)
	}

	msg := kafka.Message{
		Key:     []byte(key),
		Value:   jsonValue,
		Headers: headers,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish message",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published message",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *TopicProducer) Close() error {
	p.logger.Info("Closing Kafka message producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
