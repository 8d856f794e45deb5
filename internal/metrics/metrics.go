package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinmatch_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coinmatch_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// Ledger
	LedgerOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinmatch_ledger_operations_total",
			Help: "Committed balance changes",
		},
		[]string{"category"}, // purchase|spend|refund
	)
	LedgerRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinmatch_ledger_rejected_total",
			Help: "Balance changes refused",
		},
		[]string{"reason"},
	)

	// Matching
	MatchTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinmatch_match_transitions_total",
			Help: "Match request status transitions",
		},
		[]string{"to"},
	)
	SettlementFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coinmatch_settlement_failures_total",
			Help: "Refunds that failed and rolled back a transition",
		},
	)
	LessonsCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coinmatch_lessons_completed_total",
			Help: "Lessons settled as completed",
		},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinmatch_notifications_total",
			Help: "Notifications recorded",
		},
		[]string{"type"},
	)

	BalanceEventsDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coinmatch_balance_events_dropped_total",
			Help: "Balance change events not delivered",
		},
		[]string{"sink"},
	)

	// Worker queue
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "coinmatch_worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
)

var Handler = promhttp.Handler

var initOnce sync.Once

func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			RequestDuration,
			LedgerOpsTotal,
			LedgerRejected,
			MatchTransitions,
			SettlementFailures,
			LessonsCompleted,
			NotificationsTotal,
			BalanceEventsDropped,
			WorkerQueueDepth,
		)
	})
}
