package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReorderRequestsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reorder_requests_created_total",
		Help: "Total number of reorder requests created",
	}, []string{"reason"})

	PurchaseOrdersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchase_orders_created_total",
		Help: "Total number of purchase orders created",
	}, []string{"source"})

	PurchaseOrderGenerationFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchase_order_generation_failed_total",
		Help: "Total number of automatic purchase order creations that failed",
	})

	WarehouseChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warehouse_checks_total",
		Help: "Total number of warehouse checks by outcome",
	}, []string{"status"})

	SupplierOrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "supplier_orders_created_total",
		Help: "Total number of supplier orders created by escalation",
	})

	SupplierOrdersReceivedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "supplier_orders_received_total",
		Help: "Total number of supplier orders received",
	})

	SupplierWorkflowPausedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "supplier_workflow_paused_total",
		Help: "Total number of supplier order workflow pauses",
	})

	InventoryDeltasTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_deltas_total",
		Help: "Total number of inventory ledger deltas applied",
	}, []string{"reason"})

	PlanVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "production_plan_verifications_total",
		Help: "Total number of production plan verifications by resulting status",
	}, []string{"status"})

	PlanVerificationLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "production_plan_verification_latency_seconds",
		Help:    "Latency of production plan inventory verification",
		Buckets: prometheus.DefBuckets,
	})

	ProductionStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "production_started_total",
		Help: "Total number of kit production orders started from plans",
	})

	VendorAlertsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vendor_assignment_alerts_pending",
		Help: "Number of paused supplier orders waiting for a vendor assignment",
	})

	KafkaEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kafka_events_total",
		Help: "Domain events written to or consumed from Kafka",
	}, []string{"direction", "event_type", "result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
