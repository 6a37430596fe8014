package server

import "time"

// Worker states.
const (
	// WorkerStateLaunching marks a worker between creation and serving.
	WorkerStateLaunching = "launching"

	// WorkerStateServing marks a worker accepting and handling requests.
	WorkerStateServing = "serving"

	// WorkerStateDraining marks a worker finishing in-flight requests
	// during graceful shutdown.
	WorkerStateDraining = "draining"

	// WorkerStateTerminated is the terminal state, reached only under
	// supervisor shutdown.
	WorkerStateTerminated = "terminated"

	// WorkerStateCrashed marks a worker whose serve loop exited
	// unexpectedly or that was recycled.
	WorkerStateCrashed = "crashed"

	// WorkerStateRelaunching marks a crashed worker waiting for its
	// restart delay.
	WorkerStateRelaunching = "relaunching"
)

// Pool phases.
const (
	PoolPhaseStarting = "starting"
	PoolPhaseServing  = "serving"
	PoolPhaseDraining = "draining"
)

// PoolStatus is a point-in-time snapshot of the worker pool.
type PoolStatus struct {
	// Phase is the pool-level phase: starting, serving or draining.
	Phase string

	// Configured is the worker count the pool was started with.
	Configured int

	// Running is the number of workers currently serving.
	Running int

	// Restarts is the total number of worker relaunches since start.
	Restarts int

	// Ready reports whether all workers came up and the pool is serving.
	// False again once draining begins.
	Ready bool

	// Workers holds the per-worker detail, ordered by worker ID.
	Workers []WorkerStatus
}

// WorkerStatus is a point-in-time snapshot of one worker unit.
type WorkerStatus struct {
	// ID is the stable 1-based worker slot.
	ID int

	// Handle identifies the current worker instance. A relaunched worker
	// keeps its ID but gets a fresh handle.
	Handle string

	// State is the worker state machine position.
	State string

	// StartedAt is when the current instance launched.
	StartedAt time.Time

	// LastAlive is the most recent liveness heartbeat or completed request.
	LastAlive time.Time

	// Restarts counts relaunches of this slot.
	Restarts int

	// InFlight is the number of requests currently held by this worker.
	InFlight int
}
