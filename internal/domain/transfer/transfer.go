package transfer

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Status defines transfer processing states. A transfer is created PENDING
// and reaches a terminal state within the same unit of work; it is never
// reopened afterwards.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// Kind distinguishes a charge from its compensating refund
type Kind string

const (
	KindCharge Kind = "CHARGE"
	KindRefund Kind = "REFUND"
)

// Failure reasons persisted on FAILED transfers
const (
	ReasonInsufficientFunds = "insufficient funds"
	ReasonVersionConflict   = "concurrent balance update"
)

var (
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Transfer is one requested money movement between two accounts.
// CorrelationID links it to the message exchange that produced it;
// IdempotencyKey (when present) guarantees a retried request returns this
// record instead of re-executing.
type Transfer struct {
	ID             uuid.UUID  `json:"id"`
	CorrelationID  string     `json:"correlation_id"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
	FromAccountID  uuid.UUID  `json:"from_account_id"`
	ToAccountID    uuid.UUID  `json:"to_account_id"`
	Amount         int64      `json:"amount"` // minor units
	Status         Status     `json:"status"`
	Kind           Kind       `json:"kind"`
	FailureReason  string     `json:"failure_reason,omitempty"`
	OrderID        uuid.UUID  `json:"order_id"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// New creates a PENDING transfer
func New(correlationID, idempotencyKey string, from, to uuid.UUID, amount int64, kind Kind, orderID uuid.UUID) (*Transfer, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	return &Transfer{
		ID:             uuid.New(),
		CorrelationID:  correlationID,
		IdempotencyKey: idempotencyKey,
		FromAccountID:  from,
		ToAccountID:    to,
		Amount:         amount,
		Status:         StatusPending,
		Kind:           kind,
		OrderID:        orderID,
		CreatedAt:      time.Now(),
	}, nil
}

// MarkSucceeded moves the transfer to its terminal SUCCEEDED state
func (t *Transfer) MarkSucceeded() {
	t.Status = StatusSucceeded
	now := time.Now()
	t.CompletedAt = &now
}

// MarkFailed moves the transfer to its terminal FAILED state with a reason
func (t *Transfer) MarkFailed(reason string) {
	t.Status = StatusFailed
	t.FailureReason = reason
	now := time.Now()
	t.CompletedAt = &now
}

// Terminal reports whether the transfer has reached a final state
func (t *Transfer) Terminal() bool {
	return t.Status == StatusSucceeded || t.Status == StatusFailed
}
