// Package metrics defines the Prometheus collectors exported by the worker pool.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Failure kinds used as label values.
const (
	KindStart   = "start"
	KindTimeout = "timeout"
	KindCrash   = "crash"
	KindCancel  = "cancel"
)

// Request outcomes used as label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed" // worker reported an error
	OutcomeError   = "error"  // timeout, crash or cancel
)

// Metrics holds the pool collectors.
type Metrics struct {
	Spawns   prometheus.Counter
	Recycles prometheus.Counter
	Failures *prometheus.CounterVec
	Requests *prometheus.HistogramVec
	Busy     prometheus.Gauge
}

// New creates the collectors and registers them with reg.
// A nil reg leaves them unregistered, which keeps tests and embedded
// use free of global state.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Spawns: f.NewCounter(prometheus.CounterOpts{
			Namespace: "docconv",
			Subsystem: "pool",
			Name:      "worker_spawns_total",
			Help:      "Worker processes started successfully.",
		}),
		Recycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: "docconv",
			Subsystem: "pool",
			Name:      "worker_recycles_total",
			Help:      "Workers retired after reaching their conversion limit.",
		}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docconv",
			Subsystem: "pool",
			Name:      "worker_failures_total",
			Help:      "Worker failures by kind.",
		}, []string{"kind"}),
		Requests: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docconv",
			Subsystem: "pool",
			Name:      "request_duration_seconds",
			Help:      "Time spent executing a request on a worker.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"outcome"}),
		Busy: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "docconv",
			Subsystem: "pool",
			Name:      "busy_workers",
			Help:      "Workers currently executing a request.",
		}),
	}
}

// ObserveRequest records one request outcome.
func (m *Metrics) ObserveRequest(outcome string, d time.Duration) {
	m.Requests.WithLabelValues(outcome).Observe(d.Seconds())
}

// Failure counts one failure of kind.
func (m *Metrics) Failure(kind string) {
	m.Failures.WithLabelValues(kind).Inc()
}
