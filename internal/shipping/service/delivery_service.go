// Package service simulates deliveries: one detached task per order walks
// REQUESTED -> IN_TRANSIT -> {DELIVERED | LOST}, reporting each step back to
// the store.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"

	"github.com/daxchui/orderflow/internal/contracts"
	"github.com/daxchui/orderflow/internal/domain/shipment"
	"github.com/daxchui/orderflow/internal/metrics"
	"github.com/daxchui/orderflow/internal/platform/messaging/producers"
)

// Outcome source seeded per process; injected so tests are deterministic
type outcomeSource struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newOutcomeSource(seed int64) *outcomeSource {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &outcomeSource{rng: rand.New(rand.NewSource(seed))}
}

func (o *outcomeSource) lost(probability float64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.rng.Float64() < probability
}

// DeliveryService runs the shipment simulation. The in-memory cancellation
// hint set is a fast path valid only inside one process; the persisted
// cancelled flag stays authoritative and is consulted at every suspension
// point.
type DeliveryService struct {
	logger    *slog.Logger
	shipments shipment.Repository
	statuses  producers.MessagePublisher
	pool      *ants.Pool

	preparationDelay time.Duration
	transitDelay     time.Duration
	lostProbability  float64
	outcomes         *outcomeSource

	mu        sync.RWMutex
	cancelled map[uuid.UUID]struct{}

	tasks sync.WaitGroup
}

func NewDeliveryService(
	logger *slog.Logger,
	shipments shipment.Repository,
	statuses producers.MessagePublisher,
	poolSize int,
	preparationDelay time.Duration,
	transitDelay time.Duration,
	lostProbability float64,
	seed int64,
) (*DeliveryService, error) {
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create delivery pool: %w", err)
	}

	return &DeliveryService{
		logger:           logger,
		shipments:        shipments,
		statuses:         statuses,
		pool:             pool,
		preparationDelay: preparationDelay,
		transitDelay:     transitDelay,
		lostProbability:  lostProbability,
		outcomes:         newOutcomeSource(seed),
		cancelled:        make(map[uuid.UUID]struct{}),
	}, nil
}

// Wait blocks until all in-flight simulation tasks finish
func (s *DeliveryService) Wait() {
	s.tasks.Wait()
}

// Close releases the worker pool
func (s *DeliveryService) Close() {
	s.pool.Release()
}

// GetShipment retrieves one shipment by the order it serves
func (s *DeliveryService) GetShipment(ctx context.Context, orderID uuid.UUID) (*shipment.Shipment, error) {
	return s.shipments.GetByOrderID(ctx, orderID)
}

// StartDelivery accepts a delivery request, persists the REQUESTED shipment,
// reports it, and spawns the simulation task. A request whose order is
// already in the cancellation hint set arrived after its own cancellation and
// is ignored.
func (s *DeliveryService) StartDelivery(ctx context.Context, request contracts.DeliveryRequest) error {
	if s.hinted(request.OrderID) {
		s.logger.Info("Delivery request for cancelled order ignored",
			"order_id", request.OrderID.String(),
		)
		return nil
	}

	sh := shipment.New(request.OrderID, request.WarehouseLocation, request.DeliveryAddress)
	if err := s.shipments.Create(ctx, sh); err != nil {
		// A duplicate request hits the order_id primary key; the running
		// task keeps the original shipment
		s.logger.Warn("Shipment already exists, duplicate request skipped",
			"order_id", request.OrderID.String(),
			"error", err,
		)
		return nil
	}

	s.publishStatus(ctx, sh.OrderID, contracts.DeliveryStateRequested, "delivery accepted")

	s.tasks.Add(1)
	err := s.pool.Submit(func() {
		defer s.tasks.Done()
		s.simulate(ctx, sh)
	})
	if err != nil {
		s.tasks.Done()
		return fmt.Errorf("failed to submit delivery task: %w", err)
	}

	s.logger.Info("Delivery started",
		"order_id", request.OrderID.String(),
		"warehouse", request.WarehouseLocation,
	)
	return nil
}

// CancelDelivery handles a cancellation broadcast: hint set first (fast
// path), then the authoritative persisted flag, then a best-effort state
// update. A task already past its last checkpoint completes anyway; the
// store's terminal guard discards the stale report.
func (s *DeliveryService) CancelDelivery(ctx context.Context, orderID uuid.UUID) error {
	s.mu.Lock()
	s.cancelled[orderID] = struct{}{}
	s.mu.Unlock()

	err := s.shipments.MarkCancelled(ctx, orderID)
	if err != nil {
		if errors.Is(err, shipment.ErrShipmentNotFound{}) {
			// Cancellation raced ahead of the delivery request; the hint set
			// makes the late request a no-op
			s.logger.Info("Cancellation for unknown shipment recorded in hint set",
				"order_id", orderID.String(),
			)
			return nil
		}
		return err
	}

	s.finalizeCancelled(ctx, orderID)
	metrics.ShipmentOutcomesTotal.WithLabelValues(string(shipment.StateCancelled)).Inc()
	s.logger.Info("Shipment cancelled", "order_id", orderID.String())
	return nil
}

// simulate runs one shipment to its end, rechecking cancellation before and
// after each simulated delay
func (s *DeliveryService) simulate(ctx context.Context, sh *shipment.Shipment) {
	logger := s.logger.With("order_id", sh.OrderID.String())

	if !s.sleep(ctx, s.preparationDelay) {
		return
	}
	if s.isCancelled(ctx, sh.OrderID) {
		logger.Info("Shipment cancelled during preparation")
		return
	}

	if err := sh.Advance(shipment.StateInTransit); err != nil {
		logger.Warn("Shipment no longer advanceable", "error", err)
		return
	}
	if err := s.shipments.Update(ctx, sh); err != nil {
		// Losing the version check means the cancellation handler got there
		// first
		logger.Warn("Shipment transit update lost", "error", err)
		return
	}
	s.publishStatus(ctx, sh.OrderID, contracts.DeliveryStateInTransit, "package in transit")

	if !s.sleep(ctx, s.transitDelay) {
		return
	}
	if s.isCancelled(ctx, sh.OrderID) {
		logger.Info("Shipment cancelled during transit")
		return
	}

	outcome := shipment.StateDelivered
	note := "package delivered"
	if s.outcomes.lost(s.lostProbability) {
		outcome = shipment.StateLost
		note = "package lost by carrier"
	}

	if err := sh.Advance(outcome); err != nil {
		logger.Warn("Shipment no longer advanceable", "error", err)
		return
	}
	if err := s.shipments.Update(ctx, sh); err != nil {
		logger.Warn("Shipment outcome update lost", "error", err)
		return
	}

	metrics.ShipmentOutcomesTotal.WithLabelValues(string(outcome)).Inc()
	s.publishStatus(ctx, sh.OrderID, mapState(outcome), note)
	logger.Info("Shipment finished", "outcome", string(outcome))
}

// sleep waits for d unless the service is shutting down
func (s *DeliveryService) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *DeliveryService) hinted(orderID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.cancelled[orderID]
	return ok
}

// isCancelled checks the hint set first, then the authoritative persisted
// flag
func (s *DeliveryService) isCancelled(ctx context.Context, orderID uuid.UUID) bool {
	if s.hinted(orderID) {
		return true
	}

	sh, err := s.shipments.GetByOrderID(ctx, orderID)
	if err != nil {
		s.logger.Error("Failed to check persisted cancellation flag",
			"order_id", orderID.String(),
			"error", err,
		)
		return false
	}
	return sh.Cancelled
}

// finalizeCancelled moves the persisted state to CANCELLED, best effort. A
// conflict means the worker advanced concurrently; it will stop at its next
// checkpoint because the flag is already set.
func (s *DeliveryService) finalizeCancelled(ctx context.Context, orderID uuid.UUID) {
	sh, err := s.shipments.GetByOrderID(ctx, orderID)
	if err != nil {
		s.logger.Warn("Failed to load shipment for state finalize",
			"order_id", orderID.String(),
			"error", err,
		)
		return
	}
	if err := sh.Cancel(); err != nil {
		return
	}
	if err := s.shipments.Update(ctx, sh); err != nil {
		s.logger.Warn("Cancelled state finalize lost, flag remains authoritative",
			"order_id", orderID.String(),
			"error", err,
		)
	}
}

func (s *DeliveryService) publishStatus(ctx context.Context, orderID uuid.UUID, state contracts.DeliveryState, note string) {
	status := contracts.DeliveryStatus{
		OrderID: orderID,
		State:   state,
		Note:    note,
	}
	if err := s.statuses.Publish(ctx, orderID.String(), status); err != nil {
		s.logger.Error("Failed to publish delivery status",
			"order_id", orderID.String(),
			"state", string(state),
			"error", err,
		)
	}
}

func mapState(state shipment.State) contracts.DeliveryState {
	switch state {
	case shipment.StateInTransit:
		return contracts.DeliveryStateInTransit
	case shipment.StateDelivered:
		return contracts.DeliveryStateDelivered
	case shipment.StateLost:
		return contracts.DeliveryStateLost
	default:
		return contracts.DeliveryStateRequested
	}
}
