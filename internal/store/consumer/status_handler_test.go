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
	"github.com/daxchui/orderflow/internal/domain/order"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type MockStatusApplier struct {
	mock.Mock
}

func (m *MockStatusApplier) ApplyDeliveryStatus(ctx context.Context, orderID uuid.UUID, state contracts.DeliveryState) error {
	args := m.Called(ctx, orderID, state)
	return args.Error(0)
}

func statusMessage(t *testing.T, status contracts.DeliveryStatus) []byte {
	t.Helper()
	value, err := json.Marshal(status)
	require.NoError(t, err)
	return value
}

func TestStatusHandler_AppliesStatus(t *testing.T) {
	applier := &MockStatusApplier{}
	handler := NewStatusHandler(newTestLogger(), applier, nil)

	orderID := uuid.New()
	applier.On("ApplyDeliveryStatus", mock.Anything, orderID, contracts.DeliveryStateInTransit).Return(nil).Once()

	value := statusMessage(t, contracts.DeliveryStatus{OrderID: orderID, State: contracts.DeliveryStateInTransit})
	err := handler.HandleMessage(context.Background(), []byte(orderID.String()), value, nil)
	require.NoError(t, err)
	applier.AssertExpectations(t)
}

func TestStatusHandler_UnknownOrderIsDropped(t *testing.T) {
	applier := &MockStatusApplier{}
	handler := NewStatusHandler(newTestLogger(), applier, nil)

	orderID := uuid.New()
	applier.On("ApplyDeliveryStatus", mock.Anything, orderID, contracts.DeliveryStateDelivered).
		Return(order.ErrOrderNotFound{OrderID: orderID}).Once()

	value := statusMessage(t, contracts.DeliveryStatus{OrderID: orderID, State: contracts.DeliveryStateDelivered})
	err := handler.HandleMessage(context.Background(), nil, value, nil)
	assert.NoError(t, err, "redelivering a report for a missing order can never succeed")
}

func TestStatusHandler_ConflictIsRedelivered(t *testing.T) {
	applier := &MockStatusApplier{}
	handler := NewStatusHandler(newTestLogger(), applier, nil)

	orderID := uuid.New()
	applier.On("ApplyDeliveryStatus", mock.Anything, orderID, contracts.DeliveryStateLost).
		Return(order.ErrConcurrentModification{OrderID: orderID}).Once()

	value := statusMessage(t, contracts.DeliveryStatus{OrderID: orderID, State: contracts.DeliveryStateLost})
	err := handler.HandleMessage(context.Background(), nil, value, nil)
	assert.Error(t, err)
}

func TestStatusHandler_MalformedMessageIsDropped(t *testing.T) {
	applier := &MockStatusApplier{}
	handler := NewStatusHandler(newTestLogger(), applier, nil)

	err := handler.HandleMessage(context.Background(), nil, []byte("not json"), nil)
	assert.NoError(t, err)
	applier.AssertNotCalled(t, "ApplyDeliveryStatus")
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

func TestStatusHandler_MalformedMessageIsParked(t *testing.T) {
	applier := &MockStatusApplier{}
	deadLetters := &MockDeadLetters{}
	handler := NewStatusHandler(newTestLogger(), applier, deadLetters)

	deadLetters.On("Enabled").Return(true).Once()
	deadLetters.On("Park", mock.Anything, "key-1", []byte("not json"), mock.Anything).Return(nil).Once()

	err := handler.HandleMessage(context.Background(), []byte("key-1"), []byte("not json"), nil)
	assert.NoError(t, err)
	applier.AssertNotCalled(t, "ApplyDeliveryStatus")
	deadLetters.AssertExpectations(t)
}
