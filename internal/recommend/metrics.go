package recommend

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Request outcomes used as metric labels.
const (
	outcomeHit     = "hit"
	outcomeMiss    = "miss"
	outcomeInvalid = "invalid"
	outcomeError   = "error"
	outcomePanic   = "panic"
)

// Metrics are the Prometheus collectors of a Service.
type Metrics struct {
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	engineDuration  *prometheus.HistogramVec
	engineErrors    *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		requests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bamrec_requests_total",
				Help: "Recommendation requests by outcome",
			},
			[]string{"outcome"},
		),
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bamrec_request_duration_seconds",
				Help:    "End-to-end recommendation latency in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"outcome"},
		),
		engineDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bamrec_engine_duration_seconds",
				Help:    "Ranking engine latency in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"engine"},
		),
		engineErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bamrec_engine_errors_total",
				Help: "Ranking engine failures",
			},
			[]string{"engine"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bamrec_cache_lookups_total",
				Help: "Result cache lookups by result",
			},
			[]string{"result"},
		),
	}
}
