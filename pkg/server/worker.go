package server

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/marmos91/stevedore/internal/logger"
)

// workerHeartbeatInterval is how often a live worker refreshes its
// last-alive timestamp between requests.
const workerHeartbeatInterval = 5 * time.Second

// worker is one unit of the pool: an http.Server accepting from the shared
// socket through its own workerListener, bounded by a request semaphore.
type worker struct {
	slot     int
	handle   string
	server   *http.Server
	listener *workerListener

	// sem bounds concurrent in-flight requests. Acquired per request,
	// len(sem) is the current in-flight count.
	sem chan struct{}

	mu            sync.RWMutex
	state         string
	startedAt     time.Time
	lastAlive     time.Time
	recycleReason string
}

// newWorker creates a fresh worker instance for a slot. The instance gets
// its own handle; the slot number is stable across relaunches.
func (s *Supervisor) newWorker(slot int) *worker {
	now := time.Now()
	wk := &worker{
		slot:      slot,
		handle:    uuid.New().String(),
		listener:  newWorkerListener(s.pump),
		sem:       make(chan struct{}, s.cfg.WorkerConnections),
		state:     WorkerStateLaunching,
		startedAt: now,
		lastAlive: now,
	}

	wk.server = &http.Server{
		Handler:           s.workerHandler(wk),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
		IdleTimeout:       s.cfg.IdleTimeout,
		// requestCtx is cancelled when the drain window expires, aborting
		// whatever is still in flight.
		BaseContext: func(net.Listener) context.Context { return s.requestCtx },
	}

	return wk
}

// workerHandler wraps the shared router with the per-worker concerns: the
// in-flight semaphore, request metrics, the request timeout and the
// recycle trigger when the timeout fires.
func (s *Supervisor) workerHandler(wk *worker) http.Handler {
	timed := http.TimeoutHandler(s.handler, s.cfg.RequestTimeout,
		`{"status":"error","error":"request timeout"}`)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case wk.sem <- struct{}{}:
		case <-r.Context().Done():
			return
		}
		defer func() { <-wk.sem }()

		wk.touch()
		if s.metrics != nil {
			s.metrics.RecordRequestStart(r.Method)
		}

		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		timed.ServeHTTP(ww, r)
		duration := time.Since(start)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		if s.metrics != nil {
			s.metrics.RecordRequestEnd(r.Method)
			s.metrics.RecordRequest(r.Method, status, duration)
		}
		wk.touch()

		// A 503 after the full timeout window means the deadline fired,
		// not that the application returned 503 itself.
		if status == http.StatusServiceUnavailable && duration >= s.cfg.RequestTimeout && !s.draining.Load() {
			if s.metrics != nil {
				s.metrics.RecordRequestTimeout(r.Method)
			}
			logger.Warn("Request timed out - recycling worker",
				logger.WorkerID(wk.slot),
				"method", r.Method,
				"path", r.URL.Path,
				"timeout", s.cfg.RequestTimeout.String(),
			)
			// Recycle closes this worker's server; it must not run on the
			// goroutine currently handling one of its requests.
			go s.Recycle(wk.slot, "timeout")
		}
	})
}

// heartbeat refreshes lastAlive while the worker's serve loop is running.
func (wk *worker) heartbeat(stop <-chan struct{}) {
	ticker := time.NewTicker(workerHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			wk.touch()
		}
	}
}

func (wk *worker) setState(state string) {
	wk.mu.Lock()
	wk.state = state
	wk.lastAlive = time.Now()
	wk.mu.Unlock()
}

func (wk *worker) touch() {
	wk.mu.Lock()
	wk.lastAlive = time.Now()
	wk.mu.Unlock()
}

// markDraining moves a serving worker into the draining state. Workers
// that already crashed or are waiting to relaunch keep their state.
func (wk *worker) markDraining() {
	wk.mu.Lock()
	if wk.state == WorkerStateServing {
		wk.state = WorkerStateDraining
		wk.lastAlive = time.Now()
	}
	wk.mu.Unlock()
}

// markRecycle flags a serving worker for recycling. Returns false when the
// worker is not serving or a recycle is already in progress.
func (wk *worker) markRecycle(reason string) bool {
	wk.mu.Lock()
	defer wk.mu.Unlock()

	if wk.state != WorkerStateServing || wk.recycleReason != "" {
		return false
	}
	wk.recycleReason = reason
	return true
}

func (wk *worker) takeRecycleReason() string {
	wk.mu.RLock()
	defer wk.mu.RUnlock()
	return wk.recycleReason
}

// snapshot returns the worker state for health reporting.
func (wk *worker) snapshot(restarts int) WorkerStatus {
	wk.mu.RLock()
	defer wk.mu.RUnlock()

	return WorkerStatus{
		ID:        wk.slot,
		Handle:    wk.handle,
		State:     wk.state,
		StartedAt: wk.startedAt,
		LastAlive: wk.lastAlive,
		Restarts:  restarts,
		InFlight:  len(wk.sem),
	}
}
