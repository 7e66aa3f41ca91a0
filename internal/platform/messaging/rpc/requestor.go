// Package rpc layers a synchronous request/reply exchange over two Kafka
// topics. The requestor tags each request with a correlation id header,
// parks the caller on a channel, and wakes it when a reply carrying the same
// id arrives on the reply topic. Replies that arrive after the caller gave
// up are dropped.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/daxchui/orderflow/internal/platform/messaging/producers"
)

// CorrelationHeader is the Kafka header carrying the exchange id
const CorrelationHeader = "correlation_id"

// ErrTimeout indicates no reply arrived within the deadline. Callers treat it
// the same as a negative reply; the responder's idempotency keys make the
// eventual retry safe.
var ErrTimeout = errors.New("request timed out waiting for reply")

// Requestor issues requests and matches replies by correlation id
type Requestor struct {
	logger    *slog.Logger
	publisher producers.MessagePublisher
	timeout   time.Duration

	mu      sync.Mutex
	pending map[string]chan json.RawMessage
}

func NewRequestor(logger *slog.Logger, publisher producers.MessagePublisher, timeout time.Duration) *Requestor {
	return &Requestor{
		logger:    logger,
		publisher: publisher,
		timeout:   timeout,
		pending:   make(map[string]chan json.RawMessage),
	}
}

// Request publishes value on the request topic and blocks until the matching
// reply arrives, the timeout elapses, or ctx is canceled. The returned bytes
// are the raw reply payload.
func (r *Requestor) Request(ctx context.Context, key string, value interface{}) (json.RawMessage, error) {
	correlationID := uuid.NewString()

	replyCh := make(chan json.RawMessage, 1)
	r.mu.Lock()
	r.pending[correlationID] = replyCh
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pending, correlationID)
		r.mu.Unlock()
	}()

	headers := []kafka.Header{{Key: CorrelationHeader, Value: []byte(correlationID)}}
	if err := r.publisher.PublishWithHeaders(ctx, key, value, headers); err != nil {
		return nil, err
	}

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case reply := <-replyCh:
		return reply, nil
	case <-timer.C:
		r.logger.Warn("Request timed out", "correlation_id", correlationID, "key", key)
		return nil, ErrTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// HandleReply is the consumer handler for the reply topic. Replies with no
// waiting requestor are logged and dropped; the request already failed by
// timeout and its effects are reconciled through idempotent retries.
func (r *Requestor) HandleReply(_ context.Context, _ []byte, value []byte, headers []kafka.Header) error {
	correlationID := headerValue(headers, CorrelationHeader)
	if correlationID == "" {
		r.logger.Warn("Reply without correlation id header, dropping")
		return nil
	}

	r.mu.Lock()
	replyCh, ok := r.pending[correlationID]
	r.mu.Unlock()
	if !ok {
		r.logger.Warn("Reply for unknown or expired request, dropping", "correlation_id", correlationID)
		return nil
	}

	// Buffered channel, the single send never blocks
	select {
	case replyCh <- json.RawMessage(value):
	default:
	}
	return nil
}

func headerValue(headers []kafka.Header, key string) string {
	for _, h := range headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
