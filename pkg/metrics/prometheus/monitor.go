package prometheus

import (
	"time"

	"github.com/marmos91/stevedore/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// healthMetrics is the Prometheus implementation of metrics.HealthMetrics.
type healthMetrics struct {
	checksTotal         *prometheus.CounterVec
	checkDuration       prometheus.Histogram
	healthState         prometheus.Gauge
	consecutiveFailures prometheus.Gauge
}

// NewHealthMetrics creates a new Prometheus-backed HealthMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewHealthMetrics() metrics.HealthMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &healthMetrics{
		checksTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "stevedore_health_checks_total",
				Help: "Total number of health check probes by result",
			},
			[]string{"result"}, // "success", "failure", "timeout"
		),
		checkDuration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name: "stevedore_health_check_duration_milliseconds",
				Help: "Duration of health check probes in milliseconds",
				Buckets: []float64{
					1,     // 1ms - local socket
					5,     // 5ms
					10,    // 10ms
					50,    // 50ms
					100,   // 100ms
					1000,  // 1s - degraded workers
					5000,  // 5s
					30000, // 30s - probe timeout ceiling
				},
			},
		),
		healthState: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "stevedore_health_state",
				Help: "Current instance health state (0=starting, 1=healthy, 2=unhealthy)",
			},
		),
		consecutiveFailures: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "stevedore_health_consecutive_failures",
				Help: "Current number of consecutive health check failures",
			},
		),
	}
}

func (m *healthMetrics) RecordCheck(result string, duration time.Duration) {
	if m == nil {
		return
	}

	m.checksTotal.WithLabelValues(result).Inc()
	m.checkDuration.Observe(duration.Seconds() * 1000)
}

func (m *healthMetrics) SetState(state string) {
	if m == nil {
		return
	}

	switch state {
	case "starting":
		m.healthState.Set(0)
	case "healthy":
		m.healthState.Set(1)
	case "unhealthy":
		m.healthState.Set(2)
	}
}

func (m *healthMetrics) SetConsecutiveFailures(count int) {
	if m == nil {
		return
	}
	m.consecutiveFailures.Set(float64(count))
}
