package consumer

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/daxchui/orderflow/internal/contracts"
	"github.com/daxchui/orderflow/internal/domain/notification"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type MockNotificationRepo struct {
	mock.Mock
}

func (m *MockNotificationRepo) Save(ctx context.Context, n *notification.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

func (m *MockNotificationRepo) GetPending(ctx context.Context, limit int) ([]*notification.Notification, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*notification.Notification), args.Error(1)
}

func (m *MockNotificationRepo) MarkSent(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockNotificationRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) ([]*notification.Notification, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*notification.Notification), args.Error(1)
}

func TestArchiveHandler_ArchivesPending(t *testing.T) {
	repo := &MockNotificationRepo{}
	handler := NewArchiveHandler(newTestLogger(), repo, nil)

	orderID := uuid.New()
	repo.On("Save", mock.Anything, mock.MatchedBy(func(n *notification.Notification) bool {
		return n.Status == notification.StatusPending &&
			n.Recipient == "dana@example.com" &&
			n.OrderID != nil && *n.OrderID == orderID
	})).Return(nil).Once()

	value, err := json.Marshal(contracts.Notification{
		Recipient: "dana@example.com",
		Subject:   "Order confirmed",
		Body:      "on its way",
		OrderID:   &orderID,
	})
	require.NoError(t, err)

	require.NoError(t, handler.HandleMessage(context.Background(), nil, value, nil))
	repo.AssertExpectations(t)
}

func TestArchiveHandler_SaveFailureIsRedelivered(t *testing.T) {
	repo := &MockNotificationRepo{}
	handler := NewArchiveHandler(newTestLogger(), repo, nil)

	repo.On("Save", mock.Anything, mock.Anything).Return(assert.AnError).Once()

	value, _ := json.Marshal(contracts.Notification{Recipient: "dana@example.com"})
	err := handler.HandleMessage(context.Background(), nil, value, nil)
	assert.Error(t, err)
}

func TestArchiveHandler_MalformedMessageIsDropped(t *testing.T) {
	repo := &MockNotificationRepo{}
	handler := NewArchiveHandler(newTestLogger(), repo, nil)

	err := handler.HandleMessage(context.Background(), nil, []byte("not json"), nil)
	assert.NoError(t, err)
	repo.AssertNotCalled(t, "Save")
}

// MockDeadLetters mocks producers.DeadLetterPublisher
type MockDeadLetters struct {
	mock.Mock
}

func (m *MockDeadLetters) Enabled() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockDeadLetters) Park(ctx context.Context, key string, original []byte, reason string) error {
	args := m.Called(ctx, key, original, reason)
	return args.Error(0)
}

func (m *MockDeadLetters) Close() error {
	args := m.Called()
	return args.Error(0)
}

func TestArchiveHandler_MalformedMessageIsParked(t *testing.T) {
	repo := &MockNotificationRepo{}
	deadLetters := &MockDeadLetters{}
	handler := NewArchiveHandler(newTestLogger(), repo, deadLetters)

	deadLetters.On("Enabled").Return(true).Once()
	deadLetters.On("Park", mock.Anything, "key-1", []byte("not json"), mock.Anything).Return(nil).Once()

	err := handler.HandleMessage(context.Background(), []byte("key-1"), []byte("not json"), nil)
	assert.NoError(t, err)
	repo.AssertNotCalled(t, "Save")
	deadLetters.AssertExpectations(t)
}
