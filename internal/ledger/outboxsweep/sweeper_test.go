package outboxsweep

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/daxchui/orderflow/internal/domain/outbox"
	"github.com/daxchui/orderflow/internal/platform/messaging/producers"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type MockOutboxRepo struct {
	mock.Mock
}

func (m *MockOutboxRepo) Create(ctx context.Context, event *outbox.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockOutboxRepo) GetUnprocessed(ctx context.Context, limit int) ([]*outbox.Event, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*outbox.Event), args.Error(1)
}

func (m *MockOutboxRepo) MarkProcessed(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepo) IncrementAttempts(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockOutboxRepo) WithTx(tx pgx.Tx) outbox.Repository {
	return m
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockPublisher) PublishWithHeaders(ctx context.Context, key string, value interface{}, headers []kafka.Header) error {
	args := m.Called(ctx, key, value, headers)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newEvent(t *testing.T, id int64, eventType string) *outbox.Event {
	t.Helper()
	event, err := outbox.NewEvent("transfer", uuid.New(), eventType, map[string]string{"k": "v"})
	require.NoError(t, err)
	event.ID = id
	return event
}

func TestSweeper_Sweep_PublishAndMark(t *testing.T) {
	ctx := context.Background()
	repo := &MockOutboxRepo{}
	publisher := &MockPublisher{}

	event := newEvent(t, 1, "transfer.settled")
	repo.On("GetUnprocessed", ctx, 10).Return([]*outbox.Event{event}, nil).Once()
	publisher.On("Publish", ctx, event.AggregateID.String(), mock.Anything).Return(nil).Once()
	repo.On("MarkProcessed", ctx, int64(1)).Return(nil).Once()

	sweeper := NewSweeper(newTestLogger(), repo, map[string]producers.MessagePublisher{
		"transfer.settled": publisher,
	}, time.Second, 10)
	sweeper.Sweep(ctx)

	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestSweeper_Sweep_PublishFailureIncrementsAttempts(t *testing.T) {
	ctx := context.Background()
	repo := &MockOutboxRepo{}
	publisher := &MockPublisher{}

	event := newEvent(t, 2, "transfer.settled")
	repo.On("GetUnprocessed", ctx, 10).Return([]*outbox.Event{event}, nil).Once()
	publisher.On("Publish", ctx, event.AggregateID.String(), mock.Anything).Return(errors.New("broker down")).Once()
	repo.On("IncrementAttempts", ctx, int64(2)).Return(nil).Once()

	sweeper := NewSweeper(newTestLogger(), repo, map[string]producers.MessagePublisher{
		"transfer.settled": publisher,
	}, time.Second, 10)
	sweeper.Sweep(ctx)

	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
	repo.AssertNotCalled(t, "MarkProcessed", ctx, int64(2))
}

func TestSweeper_Sweep_UnroutableEventIsParked(t *testing.T) {
	ctx := context.Background()
	repo := &MockOutboxRepo{}

	event := newEvent(t, 3, "unknown.type")
	repo.On("GetUnprocessed", ctx, 10).Return([]*outbox.Event{event}, nil).Once()
	repo.On("MarkProcessed", ctx, int64(3)).Return(nil).Once()

	sweeper := NewSweeper(newTestLogger(), repo, map[string]producers.MessagePublisher{}, time.Second, 10)
	sweeper.Sweep(ctx)

	repo.AssertExpectations(t)
}

func TestSweeper_Sweep_FetchFailureIsQuiet(t *testing.T) {
	ctx := context.Background()
	repo := &MockOutboxRepo{}
	repo.On("GetUnprocessed", ctx, 10).Return(nil, errors.New("db gone")).Once()

	sweeper := NewSweeper(newTestLogger(), repo, nil, time.Second, 10)
	assert.NotPanics(t, func() { sweeper.Sweep(ctx) })

	repo.AssertExpectations(t)
}
