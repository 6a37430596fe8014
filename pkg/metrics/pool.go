package metrics

import (
	"time"
)

// PoolMetrics provides observability for the worker pool and the requests it
// serves.
//
// Implementations can collect metrics about worker lifecycle, restarts,
// request latency, and timeouts. This interface is optional - pass nil to
// disable metrics collection with zero overhead.
//
// Example usage:
//
//	// With metrics enabled
//	poolMetrics := prometheus.NewPoolMetrics()
//	pool, err := server.New(cfg, poolMetrics, nil)
//
//	// Without metrics (pass nil for zero overhead)
//	pool, err := server.New(cfg, nil, nil)
type PoolMetrics interface {
	// SetWorkersConfigured records the number of workers the pool was asked
	// to run.
	SetWorkersConfigured(count int)

	// SetWorkersRunning updates the current number of live workers.
	SetWorkersRunning(count int)

	// RecordWorkerStart records a worker entering the running state.
	//
	// Parameters:
	//   - workerID: Pool slot identifier (1-based, stable across restarts)
	RecordWorkerStart(workerID int)

	// RecordWorkerExit records a worker leaving the running state.
	//
	// Parameters:
	//   - workerID: Pool slot identifier
	//   - reason: "crash" for unexpected exits, "shutdown" for ordered stops
	RecordWorkerExit(workerID int, reason string)

	// RecordWorkerRestart records a replacement worker being launched after
	// a crash.
	RecordWorkerRestart(workerID int)

	// RecordRequestStart increments the in-flight request counter.
	RecordRequestStart(method string)

	// RecordRequestEnd decrements the in-flight request counter.
	RecordRequestEnd(method string)

	// RecordRequest records a completed request with its method, status code,
	// and duration.
	RecordRequest(method string, status int, duration time.Duration)

	// RecordRequestTimeout records a request that exceeded the configured
	// request timeout.
	RecordRequestTimeout(method string)
}
