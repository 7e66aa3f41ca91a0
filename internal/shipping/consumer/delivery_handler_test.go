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
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type MockSimulator struct {
	mock.Mock
}

func (m *MockSimulator) StartDelivery(ctx context.Context, request contracts.DeliveryRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

func (m *MockSimulator) CancelDelivery(ctx context.Context, orderID uuid.UUID) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
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

func TestDeliveryHandler_StartsDelivery(t *testing.T) {
	simulator := &MockSimulator{}
	handler := NewDeliveryHandler(newTestLogger(), simulator, nil)

	request := contracts.DeliveryRequest{
		OrderID:           uuid.New(),
		WarehouseLocation: "Sydney",
		DeliveryAddress:   "12 Harbour St, Sydney",
	}
	simulator.On("StartDelivery", mock.Anything, request).Return(nil).Once()

	value, err := json.Marshal(request)
	require.NoError(t, err)

	require.NoError(t, handler.HandleMessage(context.Background(), []byte(request.OrderID.String()), value, nil))
	simulator.AssertExpectations(t)
}

func TestDeliveryHandler_MalformedMessageIsParked(t *testing.T) {
	simulator := &MockSimulator{}
	deadLetters := &MockDeadLetters{}
	handler := NewDeliveryHandler(newTestLogger(), simulator, deadLetters)

	deadLetters.On("Enabled").Return(true).Once()
	deadLetters.On("Park", mock.Anything, "key-1", []byte("not json"), mock.Anything).Return(nil).Once()

	err := handler.HandleMessage(context.Background(), []byte("key-1"), []byte("not json"), nil)
	assert.NoError(t, err)
	simulator.AssertNotCalled(t, "StartDelivery")
	deadLetters.AssertExpectations(t)
}

func TestDeliveryHandler_MalformedMessageIsDroppedWithoutParking(t *testing.T) {
	simulator := &MockSimulator{}
	handler := NewDeliveryHandler(newTestLogger(), simulator, nil)

	err := handler.HandleMessage(context.Background(), nil, []byte("not json"), nil)
	assert.NoError(t, err)
	simulator.AssertNotCalled(t, "StartDelivery")
}

func TestCancelHandler_CancelsDelivery(t *testing.T) {
	simulator := &MockSimulator{}
	handler := NewCancelHandler(newTestLogger(), simulator, nil)

	orderID := uuid.New()
	simulator.On("CancelDelivery", mock.Anything, orderID).Return(nil).Once()

	value, err := json.Marshal(contracts.CancelOrder{OrderID: orderID})
	require.NoError(t, err)

	require.NoError(t, handler.HandleMessage(context.Background(), []byte(orderID.String()), value, nil))
	simulator.AssertExpectations(t)
}

func TestCancelHandler_MalformedMessageIsParked(t *testing.T) {
	simulator := &MockSimulator{}
	deadLetters := &MockDeadLetters{}
	handler := NewCancelHandler(newTestLogger(), simulator, deadLetters)

	deadLetters.On("Enabled").Return(true).Once()
	deadLetters.On("Park", mock.Anything, "key-2", []byte("not json"), mock.Anything).Return(assert.AnError).Once()

	err := handler.HandleMessage(context.Background(), []byte("key-2"), []byte("not json"), nil)
	assert.Error(t, err, "the payload stays on the topic until it can be parked")
	simulator.AssertNotCalled(t, "CancelDelivery")
	deadLetters.AssertExpectations(t)
}
