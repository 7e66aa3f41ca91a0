// Package metrics registers the Prometheus counters shared by the services.
// Every counter is labeled by outcome so dashboards can split success from
// failure without separate series.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TransfersTotal counts ledger transfers by kind and terminal status
	TransfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderflow",
		Subsystem: "ledger",
		Name:      "transfers_total",
		Help:      "Ledger transfers by kind and terminal status.",
	}, []string{"kind", "status"})

	// InjectedFaultsTotal counts synthetic failures fired by the fault seam
	InjectedFaultsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "orderflow",
		Subsystem: "ledger",
		Name:      "injected_faults_total",
		Help:      "Synthetic transient failures fired by the fault injector.",
	})

	// OutboxPublishesTotal counts outbox sweep publish attempts by result
	OutboxPublishesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderflow",
		Subsystem: "ledger",
		Name:      "outbox_publishes_total",
		Help:      "Outbox event publish attempts by result.",
	}, []string{"result"})

	// OrdersTotal counts orchestrator orders by terminal status
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderflow",
		Subsystem: "store",
		Name:      "orders_total",
		Help:      "Orders by reached status.",
	}, []string{"status"})

	// PaymentRoundTripsTotal counts synchronous payment calls by outcome
	PaymentRoundTripsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderflow",
		Subsystem: "store",
		Name:      "payment_round_trips_total",
		Help:      "Synchronous payment round trips by outcome (success, failure, timeout).",
	}, []string{"outcome"})

	// ShipmentOutcomesTotal counts finished shipment simulations by outcome
	ShipmentOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "orderflow",
		Subsystem: "shipping",
		Name:      "shipment_outcomes_total",
		Help:      "Finished shipment simulations by outcome.",
	}, []string{"outcome"})

	// NotificationsSentTotal counts notifications handed to the transport
	NotificationsSentTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "orderflow",
		Subsystem: "notifier",
		Name:      "notifications_sent_total",
		Help:      "Notifications marked SENT by the send loop.",
	})
)
