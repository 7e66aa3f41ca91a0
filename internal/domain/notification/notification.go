package notification

import (
	"time"

	"github.com/google/uuid"
)

// Status marks whether a notification has been handed to the mail transport
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
)

// Notification is an archived customer email. Every notification is stored
// before any send attempt, so the archive is complete even when the
// transport is down.
type Notification struct {
	ID        string     `bson:"_id,omitempty" json:"id"`
	Recipient string     `bson:"recipient" json:"recipient"`
	Subject   string     `bson:"subject" json:"subject"`
	Body      string     `bson:"body" json:"body"`
	OrderID   *uuid.UUID `bson:"order_id,omitempty" json:"order_id,omitempty"`
	Status    Status     `bson:"status" json:"status"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	SentAt    *time.Time `bson:"sent_at,omitempty" json:"sent_at,omitempty"`
}

// New creates a PENDING notification
func New(recipient, subject, body string, orderID *uuid.UUID) *Notification {
	return &Notification{
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		OrderID:   orderID,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
}

// MarkSent records a successful hand-off to the mail transport
func (n *Notification) MarkSent() {
	now := time.Now()
	n.Status = StatusSent
	n.SentAt = &now
}
