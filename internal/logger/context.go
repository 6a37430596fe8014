package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// runContextKey is the key for RunContext in context.Context
var runContextKey = contextKey{}

// RunContext holds run-scoped logging context. A run is one invocation of
// the startup sequence; its fields are injected by the *Ctx log functions.
type RunContext struct {
	RunID     string    // Identifier of this startup run
	Phase     string    // Current lifecycle phase (probe, prepare, serve, drain)
	WorkerID  int       // Worker this context belongs to, 0 when not worker-scoped
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context with the given RunContext
func WithContext(ctx context.Context, rc *RunContext) context.Context {
	return context.WithValue(ctx, runContextKey, rc)
}

// FromContext retrieves the RunContext from context, or nil if not present
func FromContext(ctx context.Context) *RunContext {
	if ctx == nil {
		return nil
	}
	rc, _ := ctx.Value(runContextKey).(*RunContext)
	return rc
}

// NewRunContext creates a new RunContext for a startup run
func NewRunContext(runID string) *RunContext {
	return &RunContext{
		RunID:     runID,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the RunContext
func (rc *RunContext) Clone() *RunContext {
	if rc == nil {
		return nil
	}
	return &RunContext{
		RunID:     rc.RunID,
		Phase:     rc.Phase,
		WorkerID:  rc.WorkerID,
		StartTime: rc.StartTime,
	}
}

// WithPhase returns a copy with the lifecycle phase set
func (rc *RunContext) WithPhase(phase string) *RunContext {
	clone := rc.Clone()
	if clone != nil {
		clone.Phase = phase
	}
	return clone
}

// WithWorker returns a copy scoped to a worker
func (rc *RunContext) WithWorker(id int) *RunContext {
	clone := rc.Clone()
	if clone != nil {
		clone.WorkerID = id
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (rc *RunContext) DurationMs() float64 {
	if rc == nil || rc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(rc.StartTime).Microseconds()) / 1000.0
}
