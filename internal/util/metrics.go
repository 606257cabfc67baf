package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QuotationsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quotations_created_total",
		Help: "Total number of quotations created",
	})

	QuotationTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotation_transitions_total",
		Help: "Total number of committed quotation status transitions",
	}, []string{"from", "to"})

	QuotationTransitionsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quotation_transitions_rejected_total",
		Help: "Total number of rejected quotation status transitions",
	}, []string{"reason"})

	InventoryAllocationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_allocations_total",
		Help: "Total number of committed stock allocations",
	})

	InventoryAllocationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_allocations_failed_total",
		Help: "Total number of failed stock allocations",
	}, []string{"reason"})

	InventoryMutationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "inventory_mutation_latency_seconds",
		Help:    "Latency of inventory ledger mutations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	StockLowAlertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_low_alerts_total",
		Help: "Total number of low stock alerts handled",
	})

	BillsGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bills_generated_total",
		Help: "Total number of bills generated",
	})

	PaymentsRecordedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_recorded_total",
		Help: "Total number of payment transactions recorded",
	}, []string{"method"})

	PaymentsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_rejected_total",
		Help: "Total number of rejected payment attempts",
	}, []string{"reason"})

	PaymentProcessingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_processing_latency_seconds",
		Help:    "Latency of payment recording",
		Buckets: prometheus.DefBuckets,
	})

	SequenceIssueLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sequence_issue_latency_seconds",
		Help:    "Latency of document number issuance",
		Buckets: prometheus.DefBuckets,
	}, []string{"kind"})

	SequenceRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "sequence_retries_total",
		Help: "Total number of retried document number issuances",
	}, []string{"kind"})

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
