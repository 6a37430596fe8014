package metrics

import (
	"time"
)

// HealthMetrics provides observability for the health monitor.
//
// This interface is optional - pass nil to disable metrics collection with
// zero overhead.
type HealthMetrics interface {
	// RecordCheck records a completed health check probe.
	//
	// Parameters:
	//   - result: "success", "failure", or "timeout"
	//   - duration: Time taken by the probe
	RecordCheck(result string, duration time.Duration)

	// SetState records the current instance health state.
	//
	// Parameters:
	//   - state: "starting", "healthy", or "unhealthy"
	SetState(state string)

	// SetConsecutiveFailures updates the current consecutive probe failure
	// count.
	SetConsecutiveFailures(count int)
}
