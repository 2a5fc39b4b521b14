package counsel

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "counsel_turns_total",
			Help: "Total number of processed conversation turns",
		},
		[]string{"status"},
	)

	generationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "counsel_generation_duration_seconds",
			Help:    "Generation collaborator call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	closuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "counsel_session_closures_total",
			Help: "Total number of sessions that reached the closure stage",
		},
	)

	persistenceFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "counsel_persistence_failures_total",
			Help: "Total number of soft-failed summary store writes",
		},
	)
)

func init() {
	prometheus.MustRegister(
		turnsTotal,
		generationDuration,
		closuresTotal,
		persistenceFailuresTotal,
	)
}

func recordTurn(status string) { turnsTotal.WithLabelValues(status).Inc() }

func observeGeneration(d time.Duration) { generationDuration.Observe(d.Seconds()) }

func recordClosure() { closuresTotal.Inc() }

func recordPersistenceFailure() { persistenceFailuresTotal.Inc() }

// MetricsHandler exposes the process metrics for an HTTP mux.
func MetricsHandler() http.Handler { return promhttp.Handler() }
