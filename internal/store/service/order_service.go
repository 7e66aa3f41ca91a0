// Package service implements the order saga orchestrator: it places and
// cancels orders, drives the synchronous payment round trip, allocates
// stock, and folds shipment status reports into the order state machine.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/daxchui/orderflow/internal/contracts"
	"github.com/daxchui/orderflow/internal/domain/catalog"
	"github.com/daxchui/orderflow/internal/domain/order"
	"github.com/daxchui/orderflow/internal/domain/warehouse"
	"github.com/daxchui/orderflow/internal/metrics"
	"github.com/daxchui/orderflow/internal/platform/messaging/producers"
	"github.com/daxchui/orderflow/internal/platform/messaging/rpc"
)

// ErrPaymentRejected reports a refund the ledger declined or never answered.
// Charges never surface it; a declined charge is a committed FAILED order.
var ErrPaymentRejected = errors.New("payment rejected by ledger")

// PaymentClient is the synchronous request/reply seam to the ledger.
// *rpc.Requestor satisfies it.
type PaymentClient interface {
	Request(ctx context.Context, key string, value interface{}) (json.RawMessage, error)
}

// TxRunner runs a function inside one database transaction
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// PlaceOrderCommand carries one order request
type PlaceOrderCommand struct {
	CustomerID uuid.UUID
	ProductID  uuid.UUID
	Quantity   int
}

// OrderService orchestrates the fulfillment saga. Business failures
// (insufficient stock, declined charge) commit the order in a terminal FAILED
// state and are returned as results, not errors; callers inspect the order's
// status.
type OrderService struct {
	logger         *slog.Logger
	db             TxRunner
	orders         order.Repository
	warehouses     warehouse.Repository
	catalog        catalog.Repository
	payments       PaymentClient
	deliveries     producers.MessagePublisher
	cancellations  producers.MessagePublisher
	notifications  producers.MessagePublisher
	storeAccountID uuid.UUID
}

func NewOrderService(
	logger *slog.Logger,
	db TxRunner,
	orders order.Repository,
	warehouses warehouse.Repository,
	catalogRepo catalog.Repository,
	payments PaymentClient,
	deliveries producers.MessagePublisher,
	cancellations producers.MessagePublisher,
	notifications producers.MessagePublisher,
	storeAccountID uuid.UUID,
) *OrderService {
	return &OrderService{
		logger:         logger,
		db:             db,
		orders:         orders,
		warehouses:     warehouses,
		catalog:        catalogRepo,
		payments:       payments,
		deliveries:     deliveries,
		cancellations:  cancellations,
		notifications:  notifications,
		storeAccountID: storeAccountID,
	}
}

// GetOrder retrieves one order with its allocations
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	return s.orders.GetByID(ctx, id)
}

// GetLatestOrder retrieves a customer's most recent order
func (s *OrderService) GetLatestOrder(ctx context.Context, customerID uuid.UUID) (*order.Order, error) {
	return s.orders.GetLatestByCustomerID(ctx, customerID)
}

// PlaceOrder runs the happy path of the saga: stock pre-check, synchronous
// charge, first-fit allocation, PROCESSING. The delivery request and the
// customer notification go out only after the PROCESSING transition has
// committed, so no other service can observe an order state that could still
// roll back.
//
// On insufficient stock the order commits FAILED and
// warehouse.ErrInsufficientStock is returned alongside it. A declined or
// timed-out charge also commits FAILED but returns a nil error; the caller
// reads the status.
func (s *OrderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (*order.Order, error) {
	product, err := s.catalog.GetProductByID(ctx, cmd.ProductID)
	if err != nil {
		return nil, err
	}
	customer, err := s.catalog.GetCustomerByID(ctx, cmd.CustomerID)
	if err != nil {
		return nil, err
	}

	ord, err := order.New(cmd.CustomerID, cmd.ProductID, cmd.Quantity, product.Price*int64(cmd.Quantity), customer.Address)
	if err != nil {
		return nil, err
	}

	logger := s.logger.With("order_id", ord.ID.String())

	available, err := s.availableStock(ctx, cmd.ProductID)
	if err != nil {
		return nil, err
	}
	if available < cmd.Quantity {
		if err := ord.ApplyStatus(order.StatusFailed); err != nil {
			return nil, err
		}
		if err := s.orders.Create(ctx, ord); err != nil {
			return nil, err
		}
		logger.Info("Order rejected, insufficient stock",
			"product_id", cmd.ProductID.String(),
			"requested", cmd.Quantity,
			"available", available,
		)
		metrics.OrdersTotal.WithLabelValues(string(order.StatusFailed)).Inc()
		s.notify(ctx, customer.Email, "Order could not be placed",
			fmt.Sprintf("order %s rejected: only %d of %d units of %s in stock", ord.ID, available, cmd.Quantity, product.Name), ord.ID)
		return ord, warehouse.ErrInsufficientStock
	}

	if err := s.orders.Create(ctx, ord); err != nil {
		return nil, err
	}

	response, err := s.charge(ctx, ord, customer)
	if err != nil || !response.Success {
		if err != nil {
			logger.Warn("Charge round trip failed", "error", err)
		} else {
			logger.Info("Charge declined by ledger", "message", response.Message)
		}
		if err := s.failOrder(ctx, ord); err != nil {
			return nil, err
		}
		s.notify(ctx, customer.Email, "Order payment failed",
			fmt.Sprintf("order %s failed: payment was not completed", ord.ID), ord.ID)
		return ord, nil
	}

	ord.PaymentTransactionID = response.TransactionID

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		return s.allocateAndProcess(ctx, tx, ord)
	})
	if err != nil {
		logger.Error("Allocation failed after successful charge", "error", err)
		if failErr := s.failOrder(ctx, ord); failErr != nil {
			return nil, failErr
		}
		// The charge stands; flagged for manual reconciliation rather than
		// auto-refunded
		s.notify(ctx, customer.Email, "Order failed",
			fmt.Sprintf("order %s failed during stock allocation, refund unresolved", ord.ID), ord.ID)
		return ord, nil
	}

	metrics.OrdersTotal.WithLabelValues(string(order.StatusProcessing)).Inc()
	logger.Info("Order placed",
		"customer_id", customer.ID.String(),
		"product_id", product.ID.String(),
		"quantity", cmd.Quantity,
		"total_amount", ord.TotalAmount,
	)

	s.dispatchDelivery(ctx, ord)
	s.notify(ctx, customer.Email, "Order confirmed",
		fmt.Sprintf("order %s confirmed, %d x %s on its way to %s", ord.ID, cmd.Quantity, product.Name, ord.DeliveryAddress), ord.ID)

	return ord, nil
}

// CancelOrder compensates a PROCESSING order: every allocation's quantity
// goes back to its warehouse, the refund round trip runs, and the order flips
// to CANCELLED, all inside one unit of work. A failed refund rolls the whole
// cancellation back; the deterministic idempotency key makes a retried cancel
// safe.
func (s *OrderService) CancelOrder(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	ord, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !ord.Cancellable() {
		return nil, order.ErrNotCancellable
	}

	customer, err := s.catalog.GetCustomerByID(ctx, ord.CustomerID)
	if err != nil {
		return nil, err
	}

	err = s.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		orders := s.orders.WithTx(tx)
		warehouses := s.warehouses.WithTx(tx)

		for _, alloc := range ord.Allocations {
			stock, err := warehouses.GetStock(ctx, alloc.WarehouseID, ord.ProductID)
			if err != nil {
				return err
			}
			if err := stock.Restore(alloc.Quantity); err != nil {
				return err
			}
			if err := warehouses.UpdateStock(ctx, stock); err != nil {
				return err
			}
		}

		if err := orders.DeleteAllocations(ctx, ord.ID); err != nil {
			return err
		}

		// A delivery status racing this cancel loses on the version check
		if err := ord.ApplyStatus(order.StatusCancelled); err != nil {
			return err
		}
		if err := orders.Update(ctx, ord); err != nil {
			return err
		}

		// Refund runs inside the unit of work: stock restoration and the
		// CANCELLED transition only commit together with a successful refund
		response, err := s.refund(ctx, ord, customer, "refund-cancel-"+ord.ID.String())
		if err != nil {
			return err
		}
		if !response.Success {
			return fmt.Errorf("%w: %s", ErrPaymentRejected, response.Message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.OrdersTotal.WithLabelValues(string(order.StatusCancelled)).Inc()
	s.logger.Info("Order cancelled", "order_id", ord.ID.String())

	s.broadcastCancellation(ctx, ord.ID)
	s.notify(ctx, customer.Email, "Order cancelled",
		fmt.Sprintf("order %s cancelled and refunded in full", ord.ID), ord.ID)

	return ord, nil
}

// ApplyDeliveryStatus folds a shipment report into the order. Reports on an
// already-terminal order are discarded as no-ops: the channel is
// at-least-once and stale statuses from a cancelled shipment are expected.
// LOST finalizes the order first and only then attempts the compensating
// refund; stock is not restored because the goods are presumed lost.
func (s *OrderService) ApplyDeliveryStatus(ctx context.Context, orderID uuid.UUID, state contracts.DeliveryState) error {
	ord, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	logger := s.logger.With("order_id", orderID.String())

	if ord.Status.Terminal() {
		logger.Info("Delivery status for terminal order discarded",
			"status", string(ord.Status),
			"reported_state", string(state),
		)
		return nil
	}

	next, err := mapDeliveryState(state)
	if err != nil {
		return err
	}

	if err := ord.ApplyStatus(next); err != nil {
		if errors.Is(err, order.ErrAlreadyFinal) {
			return nil
		}
		return err
	}
	if err := s.orders.Update(ctx, ord); err != nil {
		// A losing version check means another transition committed first;
		// redelivery re-reads and hits the terminal guard
		return err
	}

	logger.Info("Delivery status applied", "status", string(next))

	switch next {
	case order.StatusDelivered:
		metrics.OrdersTotal.WithLabelValues(string(order.StatusDelivered)).Inc()
		s.notifyCustomer(ctx, ord, "Order delivered",
			fmt.Sprintf("order %s was delivered to %s", ord.ID, ord.DeliveryAddress))
	case order.StatusDeliveryLost:
		metrics.OrdersTotal.WithLabelValues(string(order.StatusDeliveryLost)).Inc()
		s.refundLostOrder(ctx, ord, logger)
	}

	return nil
}

// refundLostOrder attempts the compensating refund after the DELIVERY_LOST
// transition has committed. A failed refund is flagged for manual
// reconciliation; there is no retry loop.
func (s *OrderService) refundLostOrder(ctx context.Context, ord *order.Order, logger *slog.Logger) {
	customer, err := s.catalog.GetCustomerByID(ctx, ord.CustomerID)
	if err != nil {
		logger.Error("Failed to load customer for lost-order refund", "error", err)
		return
	}

	response, err := s.refund(ctx, ord, customer, "refund-lost-"+ord.ID.String())
	if err == nil && response.Success {
		logger.Info("Lost order refunded", "transaction_id", response.TransactionID)
		s.notify(ctx, customer.Email, "Order lost in transit",
			fmt.Sprintf("order %s was lost in transit, your payment has been refunded", ord.ID), ord.ID)
		return
	}

	if err != nil {
		logger.Error("Lost-order refund round trip failed", "error", err)
	} else {
		logger.Error("Lost-order refund declined", "message", response.Message)
	}
	s.notify(ctx, customer.Email, "Order lost in transit",
		fmt.Sprintf("order %s was lost in transit, refund unresolved, our team will contact you", ord.ID), ord.ID)
}

func (s *OrderService) availableStock(ctx context.Context, productID uuid.UUID) (int, error) {
	stocks, err := s.warehouses.GetStockByProduct(ctx, productID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, stock := range stocks {
		total += stock.Quantity
	}
	return total, nil
}

// allocateAndProcess walks warehouses in their stable order, taking stock
// first-fit until the quantity is satisfied, then commits the PROCESSING
// transition together with the allocation rows
func (s *OrderService) allocateAndProcess(ctx context.Context, tx pgx.Tx, ord *order.Order) error {
	orders := s.orders.WithTx(tx)
	warehouses := s.warehouses.WithTx(tx)

	stocks, err := warehouses.GetStockByProduct(ctx, ord.ProductID)
	if err != nil {
		return err
	}

	remaining := ord.Quantity
	for _, stock := range stocks {
		if remaining == 0 {
			break
		}
		taken, err := stock.Take(remaining)
		if err != nil {
			return err
		}
		if taken == 0 {
			continue
		}
		if err := warehouses.UpdateStock(ctx, stock); err != nil {
			return err
		}
		ord.AddAllocation(stock.WarehouseID, taken)
		remaining -= taken
	}
	if remaining > 0 {
		// The pre-check passed but a concurrent order drained the stock
		return warehouse.ErrInsufficientStock
	}

	if err := ord.ApplyStatus(order.StatusProcessing); err != nil {
		return err
	}
	if err := orders.Update(ctx, ord); err != nil {
		return err
	}
	return orders.SaveAllocations(ctx, ord)
}

func (s *OrderService) charge(ctx context.Context, ord *order.Order, customer *catalog.Customer) (*contracts.PaymentResponse, error) {
	return s.paymentRoundTrip(ctx, contracts.PaymentRequest{
		OrderID:           ord.ID,
		StoreAccountID:    s.storeAccountID,
		CustomerAccountID: customer.BankAccountID,
		Amount:            ord.TotalAmount,
		Kind:              contracts.PaymentKindCharge,
		IdempotencyKey:    "charge-" + ord.ID.String(),
	})
}

func (s *OrderService) refund(ctx context.Context, ord *order.Order, customer *catalog.Customer, idempotencyKey string) (*contracts.PaymentResponse, error) {
	return s.paymentRoundTrip(ctx, contracts.PaymentRequest{
		OrderID:           ord.ID,
		StoreAccountID:    s.storeAccountID,
		CustomerAccountID: customer.BankAccountID,
		Amount:            ord.TotalAmount,
		Kind:              contracts.PaymentKindRefund,
		IdempotencyKey:    idempotencyKey,
	})
}

// paymentRoundTrip runs one bounded request/reply exchange with the ledger.
// A missing reply is indistinguishable from a ledger-reported failure to the
// caller; the idempotency key makes retrying safe either way.
func (s *OrderService) paymentRoundTrip(ctx context.Context, request contracts.PaymentRequest) (*contracts.PaymentResponse, error) {
	raw, err := s.payments.Request(ctx, request.OrderID.String(), request)
	if err != nil {
		if errors.Is(err, rpc.ErrTimeout) {
			metrics.PaymentRoundTripsTotal.WithLabelValues("timeout").Inc()
		} else {
			metrics.PaymentRoundTripsTotal.WithLabelValues("failure").Inc()
		}
		return nil, err
	}

	var response contracts.PaymentResponse
	if err := json.Unmarshal(raw, &response); err != nil {
		metrics.PaymentRoundTripsTotal.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("failed to decode payment reply: %w", err)
	}

	if response.Success {
		metrics.PaymentRoundTripsTotal.WithLabelValues("success").Inc()
	} else {
		metrics.PaymentRoundTripsTotal.WithLabelValues("failure").Inc()
	}
	return &response, nil
}

func (s *OrderService) failOrder(ctx context.Context, ord *order.Order) error {
	if err := ord.ApplyStatus(order.StatusFailed); err != nil {
		return err
	}
	if err := s.orders.Update(ctx, ord); err != nil {
		return err
	}
	metrics.OrdersTotal.WithLabelValues(string(order.StatusFailed)).Inc()
	return nil
}

// dispatchDelivery publishes the delivery request for the order's first
// allocation's warehouse. Fire-and-forget: a publish failure is logged, the
// committed order state stands.
func (s *OrderService) dispatchDelivery(ctx context.Context, ord *order.Order) {
	location := ""
	if len(ord.Allocations) > 0 {
		wh, err := s.warehouses.GetByID(ctx, ord.Allocations[0].WarehouseID)
		if err != nil {
			s.logger.Error("Failed to resolve warehouse for delivery request",
				"order_id", ord.ID.String(),
				"error", err,
			)
		} else {
			location = wh.Location
		}
	}

	request := contracts.DeliveryRequest{
		OrderID:           ord.ID,
		WarehouseLocation: location,
		DeliveryAddress:   ord.DeliveryAddress,
	}
	if err := s.deliveries.Publish(ctx, ord.ID.String(), request); err != nil {
		s.logger.Error("Failed to publish delivery request",
			"order_id", ord.ID.String(),
			"error", err,
		)
	}
}

func (s *OrderService) broadcastCancellation(ctx context.Context, orderID uuid.UUID) {
	if err := s.cancellations.Publish(ctx, orderID.String(), contracts.CancelOrder{OrderID: orderID}); err != nil {
		s.logger.Error("Failed to broadcast cancellation",
			"order_id", orderID.String(),
			"error", err,
		)
	}
}

func (s *OrderService) notifyCustomer(ctx context.Context, ord *order.Order, subject, body string) {
	customer, err := s.catalog.GetCustomerByID(ctx, ord.CustomerID)
	if err != nil {
		s.logger.Error("Failed to load customer for notification",
			"order_id", ord.ID.String(),
			"error", err,
		)
		return
	}
	s.notify(ctx, customer.Email, subject, body, ord.ID)
}

// notify publishes a fire-and-forget notification; content is outside the
// consistency model, so failures are only logged
func (s *OrderService) notify(ctx context.Context, recipient, subject, body string, orderID uuid.UUID) {
	id := orderID
	notification := contracts.Notification{
		Recipient: recipient,
		Subject:   subject,
		Body:      body,
		OrderID:   &id,
	}
	if err := s.notifications.Publish(ctx, orderID.String(), notification); err != nil {
		s.logger.Error("Failed to publish notification",
			"order_id", orderID.String(),
			"error", err,
		)
	}
}

// mapDeliveryState converts a wire shipment state to an order status
func mapDeliveryState(state contracts.DeliveryState) (order.Status, error) {
	switch state {
	case contracts.DeliveryStateRequested:
		return order.StatusDispatched, nil
	case contracts.DeliveryStateInTransit:
		return order.StatusInTransit, nil
	case contracts.DeliveryStateDelivered:
		return order.StatusDelivered, nil
	case contracts.DeliveryStateLost:
		return order.StatusDeliveryLost, nil
	default:
		return "", fmt.Errorf("unknown delivery state %q", state)
	}
}
