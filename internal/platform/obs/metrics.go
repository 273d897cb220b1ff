package obs

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	opDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "looproute_op_duration_seconds",
		Help:    "Duration of timed operations (external calls, search phases)",
		Buckets: []float64{0.005, 0.02, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"op", "outcome"})

	// CandidatesFound counts DFS candidates produced per invocation.
	CandidatesFound = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "looproute_search_candidates",
		Help:    "Loop candidates produced by graph search per request",
		Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64},
	})

	// RoutesAccepted counts validated routes by the strategy that produced them.
	RoutesAccepted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "looproute_routes_accepted_total",
		Help: "Routes accepted by validation, by source",
	}, []string{"source"})

	// RoutesRejected counts candidates dropped during validation, by reason.
	RoutesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "looproute_routes_rejected_total",
		Help: "Candidates rejected during validation, by reason",
	}, []string{"reason"})

	// FallbackTriggered counts invocations that needed the shape fallback, by cause.
	FallbackTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "looproute_fallback_total",
		Help: "Fallback shape generation runs, by trigger",
	}, []string{"trigger"})
)
