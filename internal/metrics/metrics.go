// Package metrics holds the Prometheus collectors shared by the generators,
// the retry policy and the session orchestrator.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adventure_generation_requests_total",
			Help: "Total number of requests sent to the generative model.",
		},
		[]string{"provider", "kind", "status"},
	)
	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "adventure_generation_duration_seconds",
			Help:    "Histogram of generative model request durations.",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 20, 40, 80},
		},
		[]string{"provider", "kind"},
	)
	quotaRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adventure_quota_retries_total",
			Help: "Number of backoff retries caused by quota or rate-limit errors.",
		},
		[]string{"kind"},
	)
	turnOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adventure_turn_outcomes_total",
			Help: "Turn resolutions by outcome (committed, failed, game_over, rejected).",
		},
		[]string{"kind", "outcome"},
	)
	staleResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adventure_stale_results_total",
			Help: "Async results discarded because their turn or session was superseded.",
		},
		[]string{"kind"},
	)
	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "adventure_active_sessions",
			Help: "Number of sessions currently held in memory.",
		},
	)
)

// ObserveGeneration records one call to the generative model.
func ObserveGeneration(provider, kind string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	generationRequests.WithLabelValues(provider, kind, status).Inc()
	generationDuration.WithLabelValues(provider, kind).Observe(time.Since(start).Seconds())
}

// QuotaRetry counts one backoff caused by a quota error.
func QuotaRetry(kind string) {
	quotaRetries.WithLabelValues(kind).Inc()
}

// TurnOutcome counts a finished init or turn request.
func TurnOutcome(kind, outcome string) {
	turnOutcomes.WithLabelValues(kind, outcome).Inc()
}

// StaleResult counts a discarded async result.
func StaleResult(kind string) {
	staleResults.WithLabelValues(kind).Inc()
}

// SessionOpened and SessionClosed track the in-memory session count.
func SessionOpened() { activeSessions.Inc() }

func SessionClosed() { activeSessions.Dec() }
