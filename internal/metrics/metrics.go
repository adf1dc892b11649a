package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline
	PipelineStepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoice_proof",
		Subsystem: "pipeline",
		Name:      "steps_total",
		Help:      "Pipeline step outcomes by step and result kind",
	}, []string{"step", "outcome"})

	PipelineStepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "invoice_proof",
		Subsystem: "pipeline",
		Name:      "step_duration_seconds",
		Help:      "Pipeline step duration including retries",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"step"})

	PipelineAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoice_proof",
		Subsystem: "pipeline",
		Name:      "attempts_total",
		Help:      "Tokenization attempts by terminal state",
	}, []string{"state"})

	// Ledger
	LedgerCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoice_proof",
		Subsystem: "ledger",
		Name:      "calls_total",
		Help:      "Ledger service calls by service, operation and outcome",
	}, []string{"service", "operation", "outcome"})

	LedgerCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "invoice_proof",
		Subsystem: "ledger",
		Name:      "call_duration_seconds",
		Help:      "Single ledger call duration",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"service", "operation"})

	LedgerReplaysTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoice_proof",
		Subsystem: "ledger",
		Name:      "replays_total",
		Help:      "Calls answered with the prior result of the same request token",
	}, []string{"service"})

	// Signing
	SigningSessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoice_proof",
		Subsystem: "signing",
		Name:      "sessions_total",
		Help:      "Wallet signing session outcomes",
	}, []string{"outcome"})

	SigningSessionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "invoice_proof",
		Subsystem: "signing",
		Name:      "sessions_open",
		Help:      "Signing sessions currently awaiting a wallet response",
	})

	SignatureVerificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoice_proof",
		Subsystem: "signing",
		Name:      "verifications_total",
		Help:      "Signature verification results",
	}, []string{"result"})

	// Invoices
	InvoiceTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoice_proof",
		Subsystem: "invoice",
		Name:      "transitions_total",
		Help:      "Invoice lifecycle transitions",
	}, []string{"from", "to"})

	ProofsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoice_proof",
		Subsystem: "proof",
		Name:      "published_total",
		Help:      "Proof records pushed to stream consumers",
	}, []string{"sink", "kind"})

	// Event bus
	EventsDroppedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoice_proof",
		Subsystem: "eventbus",
		Name:      "dropped_total",
		Help:      "Events dropped because a subscriber queue was full",
	}, []string{"event_type"})

	EventsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoice_proof",
		Subsystem: "eventbus",
		Name:      "failed_total",
		Help:      "Events a consumer still failed after retries",
	}, []string{"event_type"})

	// HTTP
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "invoice_proof",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status code",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "invoice_proof",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)
