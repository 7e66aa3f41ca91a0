package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/daxchui/orderflow/internal/contracts"
	"github.com/daxchui/orderflow/internal/domain/catalog"
	"github.com/daxchui/orderflow/internal/domain/order"
	"github.com/daxchui/orderflow/internal/domain/warehouse"
	"github.com/daxchui/orderflow/internal/platform/messaging/rpc"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type passthroughTx struct{}

func (p *passthroughTx) ExecuteTx(_ context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type MockOrderRepo struct {
	mock.Mock
}

func (m *MockOrderRepo) Create(ctx context.Context, ord *order.Order) error {
	args := m.Called(ctx, ord)
	return args.Error(0)
}

func (m *MockOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepo) GetLatestByCustomerID(ctx context.Context, customerID uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepo) Update(ctx context.Context, ord *order.Order) error {
	args := m.Called(ctx, ord)
	return args.Error(0)
}

func (m *MockOrderRepo) SaveAllocations(ctx context.Context, ord *order.Order) error {
	args := m.Called(ctx, ord)
	return args.Error(0)
}

func (m *MockOrderRepo) DeleteAllocations(ctx context.Context, orderID uuid.UUID) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

func (m *MockOrderRepo) WithTx(tx pgx.Tx) order.Repository { return m }

type MockWarehouseRepo struct {
	mock.Mock
}

func (m *MockWarehouseRepo) GetByID(ctx context.Context, id uuid.UUID) (*warehouse.Warehouse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*warehouse.Warehouse), args.Error(1)
}

func (m *MockWarehouseRepo) GetAll(ctx context.Context) ([]*warehouse.Warehouse, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*warehouse.Warehouse), args.Error(1)
}

func (m *MockWarehouseRepo) GetStockByProduct(ctx context.Context, productID uuid.UUID) ([]*warehouse.Stock, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*warehouse.Stock), args.Error(1)
}

func (m *MockWarehouseRepo) GetStock(ctx context.Context, warehouseID, productID uuid.UUID) (*warehouse.Stock, error) {
	args := m.Called(ctx, warehouseID, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*warehouse.Stock), args.Error(1)
}

func (m *MockWarehouseRepo) UpdateStock(ctx context.Context, stock *warehouse.Stock) error {
	args := m.Called(ctx, stock)
	return args.Error(0)
}

func (m *MockWarehouseRepo) WithTx(tx pgx.Tx) warehouse.Repository { return m }

type MockCatalogRepo struct {
	mock.Mock
}

func (m *MockCatalogRepo) GetProductByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogRepo) GetAllProducts(ctx context.Context) ([]*catalog.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*catalog.Product), args.Error(1)
}

func (m *MockCatalogRepo) GetCustomerByID(ctx context.Context, id uuid.UUID) (*catalog.Customer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Customer), args.Error(1)
}

func (m *MockCatalogRepo) WithTx(tx pgx.Tx) catalog.Repository { return m }

// fakePayments replays a canned ledger reply and records every request
type fakePayments struct {
	requests []contracts.PaymentRequest
	response contracts.PaymentResponse
	err      error
}

func (f *fakePayments) Request(_ context.Context, _ string, value interface{}) (json.RawMessage, error) {
	f.requests = append(f.requests, value.(contracts.PaymentRequest))
	if f.err != nil {
		return nil, f.err
	}
	raw, err := json.Marshal(f.response)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// capturingPublisher records published values in order
type capturingPublisher struct {
	values []interface{}
}

func (p *capturingPublisher) Publish(_ context.Context, _ string, value interface{}) error {
	p.values = append(p.values, value)
	return nil
}

func (p *capturingPublisher) PublishWithHeaders(ctx context.Context, key string, value interface{}, _ []kafka.Header) error {
	return p.Publish(ctx, key, value)
}

func (p *capturingPublisher) Close() error { return nil }

func (p *capturingPublisher) notifications(t *testing.T) []contracts.Notification {
	t.Helper()
	var out []contracts.Notification
	for _, v := range p.values {
		if n, ok := v.(contracts.Notification); ok {
			out = append(out, n)
		}
	}
	return out
}

type fixture struct {
	svc           *OrderService
	orders        *MockOrderRepo
	warehouses    *MockWarehouseRepo
	catalog       *MockCatalogRepo
	payments      *fakePayments
	deliveries    *capturingPublisher
	cancellations *capturingPublisher
	notifications *capturingPublisher

	storeAccountID uuid.UUID
	customer       *catalog.Customer
	product        *catalog.Product
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		orders:         &MockOrderRepo{},
		warehouses:     &MockWarehouseRepo{},
		catalog:        &MockCatalogRepo{},
		payments:       &fakePayments{},
		deliveries:     &capturingPublisher{},
		cancellations:  &capturingPublisher{},
		notifications:  &capturingPublisher{},
		storeAccountID: uuid.New(),
	}
	f.customer = &catalog.Customer{
		ID:            uuid.New(),
		Name:          "Dana Cole",
		Email:         "dana@example.com",
		Address:       "12 Harbour St, Sydney",
		BankAccountID: uuid.New(),
	}
	f.product = &catalog.Product{
		ID:    uuid.New(),
		Name:  "Desk Lamp",
		Price: 2_500,
	}
	f.svc = NewOrderService(newTestLogger(), &passthroughTx{},
		f.orders, f.warehouses, f.catalog, f.payments,
		f.deliveries, f.cancellations, f.notifications, f.storeAccountID)
	return f
}

func (f *fixture) expectCatalog() {
	f.catalog.On("GetProductByID", mock.Anything, f.product.ID).Return(f.product, nil)
	f.catalog.On("GetCustomerByID", mock.Anything, f.customer.ID).Return(f.customer, nil)
}

func stockRow(warehouseID, productID uuid.UUID, quantity int) *warehouse.Stock {
	return &warehouse.Stock{
		ID:          uuid.New(),
		WarehouseID: warehouseID,
		ProductID:   productID,
		Quantity:    quantity,
		Version:     1,
	}
}

func TestOrderService_PlaceOrder_Succeeds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.expectCatalog()

	warehouseA := uuid.New()
	warehouseB := uuid.New()
	stocks := []*warehouse.Stock{
		stockRow(warehouseA, f.product.ID, 3),
		stockRow(warehouseB, f.product.ID, 10),
	}
	f.warehouses.On("GetStockByProduct", mock.Anything, f.product.ID).Return(stocks, nil)
	f.warehouses.On("UpdateStock", mock.Anything, mock.Anything).Return(nil)
	f.warehouses.On("GetByID", mock.Anything, warehouseA).
		Return(&warehouse.Warehouse{ID: warehouseA, Location: "Sydney"}, nil)

	f.orders.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	f.orders.On("Update", mock.Anything, mock.Anything).Return(nil).Once()
	f.orders.On("SaveAllocations", mock.Anything, mock.Anything).Return(nil).Once()

	f.payments.response = contracts.PaymentResponse{Success: true, TransactionID: uuid.New().String(), Message: "settled"}

	ord, err := f.svc.PlaceOrder(ctx, PlaceOrderCommand{
		CustomerID: f.customer.ID,
		ProductID:  f.product.ID,
		Quantity:   5,
	})
	require.NoError(t, err)

	assert.Equal(t, order.StatusProcessing, ord.Status)
	assert.Equal(t, int64(12_500), ord.TotalAmount)
	assert.NotEmpty(t, ord.PaymentTransactionID)

	// first-fit: warehouse A drained, remainder from B
	require.Len(t, ord.Allocations, 2)
	assert.Equal(t, warehouseA, ord.Allocations[0].WarehouseID)
	assert.Equal(t, 3, ord.Allocations[0].Quantity)
	assert.Equal(t, warehouseB, ord.Allocations[1].WarehouseID)
	assert.Equal(t, 2, ord.Allocations[1].Quantity)

	require.Len(t, f.payments.requests, 1)
	charge := f.payments.requests[0]
	assert.Equal(t, contracts.PaymentKindCharge, charge.Kind)
	assert.Equal(t, "charge-"+ord.ID.String(), charge.IdempotencyKey)
	assert.Equal(t, f.customer.BankAccountID, charge.CustomerAccountID)
	assert.Equal(t, f.storeAccountID, charge.StoreAccountID)

	require.Len(t, f.deliveries.values, 1)
	delivery := f.deliveries.values[0].(contracts.DeliveryRequest)
	assert.Equal(t, ord.ID, delivery.OrderID)
	assert.Equal(t, "Sydney", delivery.WarehouseLocation)
	assert.Equal(t, f.customer.Address, delivery.DeliveryAddress)

	require.Len(t, f.notifications.notifications(t), 1)
	f.orders.AssertExpectations(t)
}

func TestOrderService_PlaceOrder_InsufficientStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.expectCatalog()

	stocks := []*warehouse.Stock{stockRow(uuid.New(), f.product.ID, 2)}
	f.warehouses.On("GetStockByProduct", mock.Anything, f.product.ID).Return(stocks, nil)

	f.orders.On("Create", mock.Anything, mock.MatchedBy(func(ord *order.Order) bool {
		return ord.Status == order.StatusFailed
	})).Return(nil).Once()

	ord, err := f.svc.PlaceOrder(ctx, PlaceOrderCommand{
		CustomerID: f.customer.ID,
		ProductID:  f.product.ID,
		Quantity:   5,
	})
	assert.ErrorIs(t, err, warehouse.ErrInsufficientStock)
	require.NotNil(t, ord)
	assert.Equal(t, order.StatusFailed, ord.Status)

	assert.Empty(t, f.payments.requests, "no money moves on insufficient stock")
	assert.Empty(t, f.deliveries.values)
	require.Len(t, f.notifications.notifications(t), 1)
	f.warehouses.AssertNotCalled(t, "UpdateStock")
}

func TestOrderService_PlaceOrder_ChargeDeclined(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.expectCatalog()

	stocks := []*warehouse.Stock{stockRow(uuid.New(), f.product.ID, 10)}
	f.warehouses.On("GetStockByProduct", mock.Anything, f.product.ID).Return(stocks, nil)

	f.orders.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	f.orders.On("Update", mock.Anything, mock.MatchedBy(func(ord *order.Order) bool {
		return ord.Status == order.StatusFailed
	})).Return(nil).Once()

	f.payments.response = contracts.PaymentResponse{Success: false, Message: "insufficient funds"}

	ord, err := f.svc.PlaceOrder(ctx, PlaceOrderCommand{
		CustomerID: f.customer.ID,
		ProductID:  f.product.ID,
		Quantity:   2,
	})
	require.NoError(t, err, "a declined charge is a committed result, not an error")
	assert.Equal(t, order.StatusFailed, ord.Status)

	assert.Empty(t, f.deliveries.values, "no delivery without payment")
	f.warehouses.AssertNotCalled(t, "UpdateStock")
	f.orders.AssertExpectations(t)
}

func TestOrderService_PlaceOrder_ChargeTimeout(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.expectCatalog()

	stocks := []*warehouse.Stock{stockRow(uuid.New(), f.product.ID, 10)}
	f.warehouses.On("GetStockByProduct", mock.Anything, f.product.ID).Return(stocks, nil)

	f.orders.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	f.orders.On("Update", mock.Anything, mock.MatchedBy(func(ord *order.Order) bool {
		return ord.Status == order.StatusFailed
	})).Return(nil).Once()

	f.payments.err = rpc.ErrTimeout

	ord, err := f.svc.PlaceOrder(ctx, PlaceOrderCommand{
		CustomerID: f.customer.ID,
		ProductID:  f.product.ID,
		Quantity:   2,
	})
	require.NoError(t, err, "a missing reply is treated like a declined charge")
	assert.Equal(t, order.StatusFailed, ord.Status)
	f.warehouses.AssertNotCalled(t, "UpdateStock")
}

func processingOrder(t *testing.T, f *fixture, quantity int, allocations ...order.Allocation) *order.Order {
	t.Helper()
	ord, err := order.New(f.customer.ID, f.product.ID, quantity, f.product.Price*int64(quantity), f.customer.Address)
	require.NoError(t, err)
	require.NoError(t, ord.ApplyStatus(order.StatusProcessing))
	ord.Allocations = allocations
	return ord
}

func TestOrderService_CancelOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("restores stock and refunds", func(t *testing.T) {
		f := newFixture(t)
		warehouseID := uuid.New()
		ord := processingOrder(t, f, 2, order.Allocation{WarehouseID: warehouseID, Quantity: 2})

		f.orders.On("GetByID", ctx, ord.ID).Return(ord, nil).Once()
		f.catalog.On("GetCustomerByID", mock.Anything, f.customer.ID).Return(f.customer, nil)

		stock := stockRow(warehouseID, f.product.ID, 3)
		f.warehouses.On("GetStock", ctx, warehouseID, f.product.ID).Return(stock, nil).Once()
		f.warehouses.On("UpdateStock", ctx, stock).Return(nil).Once()
		f.orders.On("DeleteAllocations", ctx, ord.ID).Return(nil).Once()
		f.orders.On("Update", ctx, ord).Return(nil).Once()

		f.payments.response = contracts.PaymentResponse{Success: true, TransactionID: uuid.New().String()}

		cancelled, err := f.svc.CancelOrder(ctx, ord.ID)
		require.NoError(t, err)

		assert.Equal(t, order.StatusCancelled, cancelled.Status)
		assert.Equal(t, 5, stock.Quantity, "allocation returned to the warehouse")

		require.Len(t, f.payments.requests, 1)
		refund := f.payments.requests[0]
		assert.Equal(t, contracts.PaymentKindRefund, refund.Kind)
		assert.Equal(t, "refund-cancel-"+ord.ID.String(), refund.IdempotencyKey)

		require.Len(t, f.cancellations.values, 1)
		broadcast := f.cancellations.values[0].(contracts.CancelOrder)
		assert.Equal(t, ord.ID, broadcast.OrderID)
		require.Len(t, f.notifications.notifications(t), 1)
	})

	t.Run("rejected unless processing", func(t *testing.T) {
		f := newFixture(t)
		ord, err := order.New(f.customer.ID, f.product.ID, 1, 2_500, f.customer.Address)
		require.NoError(t, err)

		f.orders.On("GetByID", ctx, ord.ID).Return(ord, nil).Once()

		_, err = f.svc.CancelOrder(ctx, ord.ID)
		assert.ErrorIs(t, err, order.ErrNotCancellable)

		assert.Empty(t, f.payments.requests)
		assert.Empty(t, f.cancellations.values)
		f.orders.AssertNotCalled(t, "Update")
	})

	t.Run("refund rejection aborts the cancellation", func(t *testing.T) {
		f := newFixture(t)
		warehouseID := uuid.New()
		ord := processingOrder(t, f, 1, order.Allocation{WarehouseID: warehouseID, Quantity: 1})

		f.orders.On("GetByID", ctx, ord.ID).Return(ord, nil).Once()
		f.catalog.On("GetCustomerByID", mock.Anything, f.customer.ID).Return(f.customer, nil)

		stock := stockRow(warehouseID, f.product.ID, 0)
		f.warehouses.On("GetStock", ctx, warehouseID, f.product.ID).Return(stock, nil).Once()
		f.warehouses.On("UpdateStock", ctx, stock).Return(nil).Once()
		f.orders.On("DeleteAllocations", ctx, ord.ID).Return(nil).Once()
		f.orders.On("Update", ctx, ord).Return(nil).Once()

		f.payments.response = contracts.PaymentResponse{Success: false, Message: "original transfer not found"}

		_, err := f.svc.CancelOrder(ctx, ord.ID)
		assert.ErrorIs(t, err, ErrPaymentRejected)

		assert.Empty(t, f.cancellations.values, "no broadcast for an aborted cancellation")
		assert.Empty(t, f.notifications.notifications(t))
	})
}

func TestOrderService_ApplyDeliveryStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("terminal order discards report", func(t *testing.T) {
		f := newFixture(t)
		ord, err := order.New(f.customer.ID, f.product.ID, 1, 2_500, f.customer.Address)
		require.NoError(t, err)
		require.NoError(t, ord.ApplyStatus(order.StatusFailed))

		f.orders.On("GetByID", ctx, ord.ID).Return(ord, nil).Once()

		err = f.svc.ApplyDeliveryStatus(ctx, ord.ID, contracts.DeliveryStateDelivered)
		require.NoError(t, err)

		assert.Equal(t, order.StatusFailed, ord.Status, "terminal state never changes")
		f.orders.AssertNotCalled(t, "Update")
	})

	t.Run("pass-through states update without notification", func(t *testing.T) {
		f := newFixture(t)
		ord := processingOrder(t, f, 1)

		f.orders.On("GetByID", ctx, ord.ID).Return(ord, nil).Once()
		f.orders.On("Update", ctx, ord).Return(nil).Once()

		require.NoError(t, f.svc.ApplyDeliveryStatus(ctx, ord.ID, contracts.DeliveryStateRequested))
		assert.Equal(t, order.StatusDispatched, ord.Status)
		assert.Empty(t, f.notifications.notifications(t))
	})

	t.Run("delivered finalizes and notifies", func(t *testing.T) {
		f := newFixture(t)
		ord := processingOrder(t, f, 1)

		f.orders.On("GetByID", ctx, ord.ID).Return(ord, nil).Once()
		f.orders.On("Update", ctx, ord).Return(nil).Once()
		f.catalog.On("GetCustomerByID", mock.Anything, f.customer.ID).Return(f.customer, nil)

		require.NoError(t, f.svc.ApplyDeliveryStatus(ctx, ord.ID, contracts.DeliveryStateDelivered))
		assert.Equal(t, order.StatusDelivered, ord.Status)
		require.Len(t, f.notifications.notifications(t), 1)
		assert.Empty(t, f.payments.requests, "delivery needs no refund")
	})

	t.Run("lost finalizes then refunds", func(t *testing.T) {
		f := newFixture(t)
		ord := processingOrder(t, f, 1)

		f.orders.On("GetByID", ctx, ord.ID).Return(ord, nil).Once()
		f.orders.On("Update", ctx, ord).Return(nil).Once()
		f.catalog.On("GetCustomerByID", mock.Anything, f.customer.ID).Return(f.customer, nil)

		f.payments.response = contracts.PaymentResponse{Success: true, TransactionID: uuid.New().String()}

		require.NoError(t, f.svc.ApplyDeliveryStatus(ctx, ord.ID, contracts.DeliveryStateLost))
		assert.Equal(t, order.StatusDeliveryLost, ord.Status)

		require.Len(t, f.payments.requests, 1)
		assert.Equal(t, contracts.PaymentKindRefund, f.payments.requests[0].Kind)
		assert.Equal(t, "refund-lost-"+ord.ID.String(), f.payments.requests[0].IdempotencyKey)

		f.warehouses.AssertNotCalled(t, "UpdateStock")

		notes := f.notifications.notifications(t)
		require.Len(t, notes, 1)
		assert.Contains(t, notes[0].Body, "refunded")
	})

	t.Run("lost with failed refund flags it unresolved", func(t *testing.T) {
		f := newFixture(t)
		ord := processingOrder(t, f, 1)

		f.orders.On("GetByID", ctx, ord.ID).Return(ord, nil).Once()
		f.orders.On("Update", ctx, ord).Return(nil).Once()
		f.catalog.On("GetCustomerByID", mock.Anything, f.customer.ID).Return(f.customer, nil)

		f.payments.err = rpc.ErrTimeout

		require.NoError(t, f.svc.ApplyDeliveryStatus(ctx, ord.ID, contracts.DeliveryStateLost))
		assert.Equal(t, order.StatusDeliveryLost, ord.Status, "order finalizes even when the refund does not")

		notes := f.notifications.notifications(t)
		require.Len(t, notes, 1)
		assert.Contains(t, notes[0].Body, "refund unresolved")
	})

	t.Run("losing version check surfaces for redelivery", func(t *testing.T) {
		f := newFixture(t)
		ord := processingOrder(t, f, 1)

		f.orders.On("GetByID", ctx, ord.ID).Return(ord, nil).Once()
		f.orders.On("Update", ctx, ord).Return(order.ErrConcurrentModification{OrderID: ord.ID}).Once()

		err := f.svc.ApplyDeliveryStatus(ctx, ord.ID, contracts.DeliveryStateDelivered)
		assert.ErrorIs(t, err, order.ErrConcurrentModification{})
	})
}
