// Package mongo provides the MongoDB-backed notification archive.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/daxchui/orderflow/internal/domain/notification"
	"github.com/daxchui/orderflow/internal/platform/persistence"
)

const notificationCollection = "notifications"

// NotificationRepository implements the notification.Repository interface for MongoDB
type NotificationRepository struct {
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewNotificationRepository creates a new MongoDB notification repository
func NewNotificationRepository(logger *slog.Logger, db *persistence.MongoDB) notification.Repository {
	return &NotificationRepository{
		collection: db.Collection(notificationCollection),
		logger:     logger,
	}
}

// Save archives a notification. The document is written before any send
// attempt so the archive stays complete when the transport is down.
func (r *NotificationRepository) Save(ctx context.Context, n *notification.Notification) error {
	doc := bson.M{
		"recipient":  n.Recipient,
		"subject":    n.Subject,
		"body":       n.Body,
		"status":     n.Status,
		"created_at": n.CreatedAt,
	}
	if n.OrderID != nil {
		doc["order_id"] = n.OrderID.String()
	}
	if n.SentAt != nil {
		doc["sent_at"] = n.SentAt
	}

	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		r.logger.Error("Failed to save notification", "recipient", n.Recipient, "error", err)
		return fmt.Errorf("failed to save notification: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		n.ID = oid.Hex()
	}

	return nil
}

// GetPending retrieves PENDING notifications oldest first
func (r *NotificationRepository) GetPending(ctx context.Context, limit int) ([]*notification.Notification, error) {
	filter := bson.M{"status": notification.StatusPending}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get pending notifications", "error", err)
		return nil, fmt.Errorf("failed to get pending notifications: %w", err)
	}
	defer cursor.Close(ctx)

	return r.decodeAll(ctx, cursor)
}

// MarkSent records a successful hand-off to the mail transport
func (r *NotificationRepository) MarkSent(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid notification id %s: %w", id, err)
	}

	update := bson.M{"$set": bson.M{
		"status":  notification.StatusSent,
		"sent_at": time.Now(),
	}}

	result, err := r.collection.UpdateByID(ctx, oid, update)
	if err != nil {
		r.logger.Error("Failed to mark notification sent", "id", id, "error", err)
		return fmt.Errorf("failed to mark notification sent: %w", err)
	}

	if result.MatchedCount == 0 {
		return notification.ErrNotificationNotFound
	}

	return nil
}

// GetByOrderID retrieves every notification archived for an order
func (r *NotificationRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]*notification.Notification, error) {
	filter := bson.M{"order_id": orderID.String()}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get notifications by order", "order_id", orderID.String(), "error", err)
		return nil, fmt.Errorf("failed to get notifications by order: %w", err)
	}
	defer cursor.Close(ctx)

	return r.decodeAll(ctx, cursor)
}

type notificationDoc struct {
	ID        primitive.ObjectID  `bson:"_id"`
	Recipient string              `bson:"recipient"`
	Subject   string              `bson:"subject"`
	Body      string              `bson:"body"`
	OrderID   string              `bson:"order_id,omitempty"`
	Status    notification.Status `bson:"status"`
	CreatedAt time.Time           `bson:"created_at"`
	SentAt    *time.Time          `bson:"sent_at,omitempty"`
}

func (r *NotificationRepository) decodeAll(ctx context.Context, cursor *mongo.Cursor) ([]*notification.Notification, error) {
	var notifications []*notification.Notification
	for cursor.Next(ctx) {
		var doc notificationDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode notification: %w", err)
		}

		n := &notification.Notification{
			ID:        doc.ID.Hex(),
			Recipient: doc.Recipient,
			Subject:   doc.Subject,
			Body:      doc.Body,
			Status:    doc.Status,
			CreatedAt: doc.CreatedAt,
			SentAt:    doc.SentAt,
		}
		if doc.OrderID != "" {
			if oid, err := uuid.Parse(doc.OrderID); err == nil {
				n.OrderID = &oid
			}
		}
		notifications = append(notifications, n)
	}

	if err := cursor.Err(); err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("error iterating over notifications: %w", err)
	}

	return notifications, nil
}
