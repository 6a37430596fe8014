// Package prometheus provides Prometheus-backed implementations of the
// metrics interfaces in pkg/metrics.
//
// All constructors return nil when metrics are disabled (InitRegistry not
// called), and every method tolerates nil receivers, so callers never need
// to branch on whether metrics are enabled.
package prometheus

import (
	"strconv"
	"time"

	"github.com/marmos91/stevedore/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// poolMetrics is the Prometheus implementation of metrics.PoolMetrics.
type poolMetrics struct {
	workersConfigured prometheus.Gauge
	workersRunning    prometheus.Gauge
	workerStarts      *prometheus.CounterVec
	workerExits       *prometheus.CounterVec
	workerRestarts    *prometheus.CounterVec
	requestsInFlight  *prometheus.GaugeVec
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	requestTimeouts   *prometheus.CounterVec
}

// NewPoolMetrics creates a new Prometheus-backed PoolMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewPoolMetrics() metrics.PoolMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &poolMetrics{
		workersConfigured: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "stevedore_workers_configured",
				Help: "Number of workers the pool was configured to run",
			},
		),
		workersRunning: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "stevedore_workers_running",
				Help: "Current number of live workers",
			},
		),
		workerStarts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "stevedore_worker_starts_total",
				Help: "Total number of worker launches by pool slot",
			},
			[]string{"worker_id"},
		),
		workerExits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "stevedore_worker_exits_total",
				Help: "Total number of worker exits by pool slot and reason",
			},
			[]string{"worker_id", "reason"}, // reason: "crash", "shutdown"
		),
		workerRestarts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "stevedore_worker_restarts_total",
				Help: "Total number of replacement workers launched after crashes",
			},
			[]string{"worker_id"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "stevedore_http_requests_in_flight",
				Help: "Current number of requests being processed",
			},
			[]string{"method"},
		),
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "stevedore_http_requests_total",
				Help: "Total number of completed requests by method and status code",
			},
			[]string{"method", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "stevedore_http_request_duration_milliseconds",
				Help: "Duration of completed requests in milliseconds",
				Buckets: []float64{
					1,      // 1ms - health checks
					5,      // 5ms
					10,     // 10ms
					50,     // 50ms
					100,    // 100ms
					500,    // 500ms
					1000,   // 1s
					5000,   // 5s - slow handlers
					30000,  // 30s
					120000, // 120s - request timeout ceiling
				},
			},
			[]string{"method"},
		),
		requestTimeouts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "stevedore_http_request_timeouts_total",
				Help: "Total number of requests that exceeded the request timeout",
			},
			[]string{"method"},
		),
	}
}

func (m *poolMetrics) SetWorkersConfigured(count int) {
	if m == nil {
		return
	}
	m.workersConfigured.Set(float64(count))
}

func (m *poolMetrics) SetWorkersRunning(count int) {
	if m == nil {
		return
	}
	m.workersRunning.Set(float64(count))
}

func (m *poolMetrics) RecordWorkerStart(workerID int) {
	if m == nil {
		return
	}
	m.workerStarts.WithLabelValues(strconv.Itoa(workerID)).Inc()
}

func (m *poolMetrics) RecordWorkerExit(workerID int, reason string) {
	if m == nil {
		return
	}
	m.workerExits.WithLabelValues(strconv.Itoa(workerID), reason).Inc()
}

func (m *poolMetrics) RecordWorkerRestart(workerID int) {
	if m == nil {
		return
	}
	m.workerRestarts.WithLabelValues(strconv.Itoa(workerID)).Inc()
}

func (m *poolMetrics) RecordRequestStart(method string) {
	if m == nil {
		return
	}
	m.requestsInFlight.WithLabelValues(method).Inc()
}

func (m *poolMetrics) RecordRequestEnd(method string) {
	if m == nil {
		return
	}
	m.requestsInFlight.WithLabelValues(method).Dec()
}

func (m *poolMetrics) RecordRequest(method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(duration.Seconds() * 1000)
}

func (m *poolMetrics) RecordRequestTimeout(method string) {
	if m == nil {
		return
	}
	m.requestTimeouts.WithLabelValues(method).Inc()
}
