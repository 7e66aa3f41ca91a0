package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event stores a state-change announcement for reliable publishing. It is
// written in the same transaction as the state change it describes and marked
// processed only after a positive publish acknowledgment, giving at-least-once
// delivery; consumers deduplicate by event and aggregate id.
type Event struct {
	ID            int64           `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	Attempts      int             `json:"attempts"`
	CreatedAt     time.Time       `json:"created_at"`
	ProcessedAt   *time.Time      `json:"processed_at,omitempty"`
}

// NewEvent builds an unprocessed event with a marshaled payload
func NewEvent(aggregateType string, aggregateID uuid.UUID, eventType string, payload interface{}) (*Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       raw,
		Attempts:      0,
		CreatedAt:     time.Now(),
	}, nil
}

// MarkProcessed records a successful publish
func (e *Event) MarkProcessed() {
	now := time.Now()
	e.ProcessedAt = &now
}

// IncrementAttempts counts a failed publish attempt. The event stays
// unprocessed and is retried on the next sweep.
func (e *Event) IncrementAttempts() {
	e.Attempts++
}
