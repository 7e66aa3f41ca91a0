package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// MessagePublisher handles publishing messages to a single topic
type MessagePublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	PublishWithHeaders(ctx context.Context, key string, value interface{}, headers []kafka.Header) error
	Close() error
}

// DeadLetterPublisher parks unprocessable messages so consumers can commit
// past them. Enabled reports whether parking is configured; a disabled
// publisher rejects Park.
type DeadLetterPublisher interface {
	Enabled() bool
	Park(ctx context.Context, key string, original []byte, reason string) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
