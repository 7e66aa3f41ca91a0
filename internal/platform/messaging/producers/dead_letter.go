package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/daxchui/orderflow/internal/config"
)

// parkedMessage is the dead-letter envelope. The original bytes travel as a
// string so the envelope stays valid JSON even when the original is not.
type parkedMessage struct {
	OriginalKey   string `json:"original_key"`
	OriginalValue string `json:"original_value"`
	Reason        string `json:"dlq_reason"`
	Timestamp     string `json:"timestamp"`
}

// DeadLetterProducer parks unprocessable messages on the dead-letter topic so
// a handler can commit past them without losing the payload. A nil
// *DeadLetterProducer is valid and reports parking as unavailable.
type DeadLetterProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewDeadLetterProducer returns (nil, nil) when no dead-letter topic is
// configured; callers treat a nil producer as parking disabled.
func NewDeadLetterProducer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*DeadLetterProducer, error) {
	if cfg.DLQTopic == "" {
		logger.Info("Dead-letter topic not configured, parking disabled")
		return nil, nil
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for dead-letter producer: %w", err)
	}
	defer conn.Close()

	if err := ensureTopic(conn, cfg.DLQTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure dead-letter topic %s exists: %w", cfg.DLQTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.DLQTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}

	return &DeadLetterProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.DLQTopic,
	}, nil
}

// Enabled reports whether parking is configured
func (p *DeadLetterProducer) Enabled() bool {
	return p != nil && p.writer != nil
}

// Park publishes the original message bytes with the reason they could not be
// processed. A nil return means the broker holds the parked copy and the
// caller may commit the offset.
func (p *DeadLetterProducer) Park(ctx context.Context, key string, original []byte, reason string) error {
	if p == nil || p.writer == nil {
		return fmt.Errorf("dead-letter producer not initialized")
	}

	envelope := parkedMessage{
		OriginalKey:   key,
		OriginalValue: string(original),
		Reason:        reason,
		Timestamp:     time.Now().UTC().Format(time.RFC3339Nano),
	}

	value, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal dead-letter envelope: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "dlq-reason", Value: []byte(reason)},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to park message on dead-letter topic",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to park message on %s: %w", p.topic, err)
	}

	p.logger.Warn("Message parked on dead-letter topic",
		"topic", p.topic,
		"key", key,
		"reason", reason,
	)
	return nil
}

// Close is safe on a nil producer
func (p *DeadLetterProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	p.logger.Info("Closing dead-letter producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close dead-letter writer for topic %s: %w", p.topic, err)
	}
	return nil
}
