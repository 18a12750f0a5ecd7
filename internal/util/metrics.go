package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders committed by the ledger",
	})

	OrdersAbortedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_aborted_total",
		Help: "Total number of aborted placement attempts",
	}, []string{"reason"})

	ReservationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_reservation_latency_seconds",
		Help:    "Latency of stock reservation operations",
		Buckets: prometheus.DefBuckets,
	})

	ReservationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_reservations_failed_total",
		Help: "Total number of failed stock reservations",
	}, []string{"reason"})

	StockReleasedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_releases_total",
		Help: "Total number of released reservations",
	})

	StatusTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_transitions_total",
		Help: "Total number of order status transitions",
	}, []string{"to"})

	AuditRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "consistency_audit_runs_total",
		Help: "Total number of consistency audit runs",
	})

	AuditViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "consistency_audit_violations_total",
		Help: "Total number of invariant violations found by audits",
	}, []string{"invariant"})
)
