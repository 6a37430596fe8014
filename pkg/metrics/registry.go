// Package metrics provides process-wide Prometheus metrics for stevedore.
//
// Metrics are opt-in: call InitRegistry once during startup to enable
// collection. The constructors in the prometheus subpackage return nil when
// the registry was never initialized, and every implementation tolerates nil
// receivers, so disabled metrics cost nothing on the hot path.
package metrics

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.RWMutex
	registry *prometheus.Registry
)

// InitRegistry creates the process-wide metrics registry and registers the
// standard Go runtime and process collectors.
//
// Safe to call multiple times; subsequent calls are no-ops. Must be called
// before any metrics constructors, otherwise they return nil and collection
// stays disabled.
func InitRegistry() {
	mu.Lock()
	defer mu.Unlock()

	if registry != nil {
		return
	}

	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// IsEnabled returns true if InitRegistry has been called.
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return registry != nil
}

// GetRegistry returns the process-wide registry, or nil when metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	mu.RLock()
	defer mu.RUnlock()
	return registry
}

// NewServer returns an HTTP server exposing the registry on /metrics at the
// given port. Returns nil when metrics are disabled.
//
// The caller owns the server lifecycle: start it with ListenAndServe and stop
// it with Shutdown during instance teardown.
func NewServer(port int) *http.Server {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
