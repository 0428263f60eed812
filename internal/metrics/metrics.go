// Package metrics defines the Prometheus collectors exported at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts requests by method, route pattern, and status code.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_http_requests_total",
		Help: "Total number of HTTP requests.",
	}, []string{"method", "route", "status"})

	// HTTPDuration observes request latency by route pattern.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tally_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// ExpensesRecorded counts accepted expenses.
	ExpensesRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_expenses_recorded_total",
		Help: "Total number of expenses recorded.",
	})

	// SettlementsRecorded counts accepted settle-up payments.
	SettlementsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_settlements_recorded_total",
		Help: "Total number of settlements recorded.",
	})

	// PlanComputations counts settlement plan computations.
	PlanComputations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_plan_computations_total",
		Help: "Total number of settlement plan computations.",
	})

	// PlanFallbacks counts plans that hit the search budget and fell back to
	// the greedy result.
	PlanFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_plan_fallbacks_total",
		Help: "Total number of plan computations that exceeded the search budget.",
	})
)
