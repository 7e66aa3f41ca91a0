package notification

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNotificationNotFound indicates missing notification
var ErrNotificationNotFound = errors.New("notification not found")

// Repository archives notifications in the document store
type Repository interface {
	Save(ctx context.Context, n *Notification) error

	// GetPending returns PENDING notifications oldest first, capped at limit
	GetPending(ctx context.Context, limit int) ([]*Notification, error)

	MarkSent(ctx context.Context, id string) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]*Notification, error)
}
