// Package server implements the worker pool: one listening socket shared
// by N supervised worker units, the health endpoints they serve, and the
// graceful drain protocol.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/stevedore/internal/logger"
	"github.com/marmos91/stevedore/pkg/metrics"
)

// EventRecorder receives worker lifecycle events for bookkeeping. The run
// journal implements it. A nil recorder disables event recording.
type EventRecorder interface {
	WorkerStarted(ctx context.Context, workerID int)
	WorkerExited(ctx context.Context, workerID int, reason string)
	WorkerRestarted(ctx context.Context, workerID int)
}

// Supervisor owns the listening socket and the worker units behind it.
//
// Lifecycle: Run binds the socket, launches all workers, closes Ready()
// once every worker is serving, and blocks until the context is cancelled
// or the listener fails. A worker whose serve loop exits unexpectedly is
// relaunched without an attempt limit; restart limiting is delegated to
// the external orchestrator's policy on the whole process.
//
// Thread safety:
// All exported methods are safe for concurrent use. The shutdown sequence
// runs at most once even if triggered by both a signal and a listener
// failure.
type Supervisor struct {
	cfg     Config
	handler http.Handler
	metrics metrics.PoolMetrics
	events  EventRecorder

	accessCloser io.Closer

	listenerMu    sync.RWMutex
	listener      net.Listener
	listenerReady chan struct{}

	pump *acceptPump

	// mu protects workers and restarts. Each slot is replaced in place on
	// relaunch; the slice length never changes after New.
	mu       sync.RWMutex
	workers  []*worker
	restarts []int

	startedAt     time.Time
	started       atomic.Int32
	serving       atomic.Int32
	totalRestarts atomic.Int64

	ready     chan struct{}
	readyOnce sync.Once

	draining     atomic.Bool
	shutdownOnce sync.Once

	// requestCtx is the base context of every request; cancelled when the
	// drain window expires to abort whatever is still in flight.
	requestCtx     context.Context
	cancelRequests context.CancelFunc

	fatalOnce sync.Once
	fatalErr  error
	fatalCh   chan struct{}

	wg sync.WaitGroup
}

// New creates a worker pool supervisor.
//
// The pool is created in a stopped state. Call Run() to bind the socket
// and start the workers.
//
// Parameters:
//   - cfg: Pool configuration (bind address, worker counts, timeouts)
//   - m: Pool metrics recorder (may be nil when metrics are disabled)
//   - events: Worker lifecycle recorder (may be nil)
//
// Returns:
//   - a configured but not yet started Supervisor
//   - error if the access log destination cannot be opened
func New(cfg Config, m metrics.PoolMetrics, events EventRecorder) (*Supervisor, error) {
	cfg.applyDefaults()

	access, accessCloser, err := newAccessLogger(cfg.AccessLog, cfg.AccessLogFormat)
	if err != nil {
		return nil, err
	}

	requestCtx, cancelRequests := context.WithCancel(context.Background())

	s := &Supervisor{
		cfg:            cfg,
		metrics:        m,
		events:         events,
		accessCloser:   accessCloser,
		listenerReady:  make(chan struct{}),
		workers:        make([]*worker, cfg.Workers),
		restarts:       make([]int, cfg.Workers),
		ready:          make(chan struct{}),
		requestCtx:     requestCtx,
		cancelRequests: cancelRequests,
		fatalCh:        make(chan struct{}),
	}
	s.handler = NewRouter(cfg, s, access)

	return s, nil
}

// Run binds the listening socket, starts all workers and blocks until ctx
// is cancelled or the listener fails.
//
// On cancellation the pool stops accepting, drains in-flight requests up
// to ShutdownTimeout and force-terminates the remainder.
//
// Returns:
//   - nil on graceful shutdown (a forced drain still counts as graceful)
//   - error if the socket cannot be bound or the listener fails while serving
func (s *Supervisor) Run(ctx context.Context) error {
	if s.accessCloser != nil {
		defer func() { _ = s.accessCloser.Close() }()
	}

	listenAddr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("failed to bind listener on %s: %w", listenAddr, err)
	}

	s.listenerMu.Lock()
	s.listener = ln
	s.listenerMu.Unlock()
	s.startedAt = time.Now()
	s.pump = newAcceptPump(ln)
	close(s.listenerReady)

	logger.Info("Worker pool listening",
		logger.Addr(ln.Addr().String()),
		logger.Workers(s.cfg.Workers),
		logger.Connections(int64(s.cfg.WorkerConnections)),
	)
	if s.metrics != nil {
		s.metrics.SetWorkersConfigured(s.cfg.Workers)
	}

	go s.pump.run()

	for slot := 1; slot <= s.cfg.Workers; slot++ {
		s.wg.Add(1)
		go s.supervise(ctx, slot)
	}

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received - draining worker pool")
		s.shutdown()
	case <-s.fatalCh:
		s.shutdown()
	}

	s.wg.Wait()
	s.cancelRequests()
	_ = ln.Close()

	return s.fatalErr
}

// supervise runs one worker slot: launch, wait for exit, classify, and
// relaunch on crash. Returns when the pool is draining or the listener
// died.
func (s *Supervisor) supervise(ctx context.Context, slot int) {
	defer s.wg.Done()

	relaunch := false
	for {
		wk := s.launchWorker(slot, relaunch)

		// Shutdown may have started while this worker was launching. A
		// worker stored after the drain snapshot was taken would never be
		// told to stop, so close it here instead.
		if s.draining.Load() {
			_ = wk.server.Close()
		}

		hbStop := make(chan struct{})
		go wk.heartbeat(hbStop)

		err := wk.server.Serve(wk.listener)

		close(hbStop)
		s.setServing(-1)

		// Shutdown path: the drain itself is coordinated by shutdown()
		if s.draining.Load() {
			wk.setState(WorkerStateTerminated)
			if s.metrics != nil {
				s.metrics.RecordWorkerExit(slot, "shutdown")
			}
			if s.events != nil {
				s.events.WorkerExited(context.Background(), slot, "shutdown")
			}
			logger.Debug("Worker terminated", logger.WorkerID(slot))
			return
		}

		reason := wk.takeRecycleReason()

		// The shared socket itself failed: no worker can accept anymore
		if reason == "" && s.pump.dead() {
			wk.setState(WorkerStateCrashed)
			s.reportFatal(fmt.Errorf("listener failed: %w", s.pump.Err()))
			return
		}

		if reason == "" {
			reason = "crash"
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				reason = err.Error()
			}
		}

		wk.setState(WorkerStateCrashed)
		if s.metrics != nil {
			s.metrics.RecordWorkerExit(slot, "crash")
		}
		if s.events != nil {
			s.events.WorkerExited(context.Background(), slot, reason)
		}
		logger.Warn("Worker exited unexpectedly - relaunching",
			logger.WorkerID(slot),
			"reason", reason,
			"delay", s.cfg.RestartDelay.String(),
		)

		wk.setState(WorkerStateRelaunching)
		select {
		case <-ctx.Done():
			wk.setState(WorkerStateTerminated)
			return
		case <-time.After(s.cfg.RestartDelay):
		}
		if s.draining.Load() {
			wk.setState(WorkerStateTerminated)
			return
		}

		s.mu.Lock()
		s.restarts[slot-1]++
		s.mu.Unlock()
		s.totalRestarts.Add(1)

		if s.metrics != nil {
			s.metrics.RecordWorkerRestart(slot)
		}
		if s.events != nil {
			s.events.WorkerRestarted(context.Background(), slot)
		}
		relaunch = true
	}
}

// launchWorker creates, registers and marks serving one worker instance.
// The ready gate closes once every slot launched its first instance.
func (s *Supervisor) launchWorker(slot int, relaunch bool) *worker {
	wk := s.newWorker(slot)

	s.mu.Lock()
	s.workers[slot-1] = wk
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.RecordWorkerStart(slot)
	}
	if s.events != nil {
		s.events.WorkerStarted(context.Background(), slot)
	}

	// The worker accepts as soon as Serve enters its loop; there is no
	// separate handshake to wait for.
	wk.setState(WorkerStateServing)
	s.setServing(1)

	if relaunch {
		logger.Info("Worker relaunched", logger.WorkerID(slot), "handle", wk.handle)
	} else {
		logger.Info("Worker started", logger.WorkerID(slot), "handle", wk.handle)
		if s.started.Add(1) == int32(s.cfg.Workers) {
			s.readyOnce.Do(func() {
				close(s.ready)
				logger.Info("Worker pool ready",
					logger.Workers(s.cfg.Workers),
					logger.Addr(s.Addr()),
				)
			})
		}
	}

	return wk
}

func (s *Supervisor) setServing(delta int32) {
	n := s.serving.Add(delta)
	if s.metrics != nil {
		s.metrics.SetWorkersRunning(int(n))
	}
}

// shutdown drains the pool: stop accepting, drain in-flight requests up
// to ShutdownTimeout, then force-terminate the remainder. Safe to call
// multiple times and from multiple goroutines.
func (s *Supervisor) shutdown() {
	s.shutdownOnce.Do(func() {
		s.draining.Store(true)

		s.mu.RLock()
		workers := make([]*worker, 0, len(s.workers))
		for _, wk := range s.workers {
			if wk != nil {
				workers = append(workers, wk)
			}
		}
		s.mu.RUnlock()

		inFlight := 0
		for _, wk := range workers {
			inFlight += len(wk.sem)
		}
		logger.Info("Draining worker pool",
			"in_flight", inFlight,
			"timeout", s.cfg.ShutdownTimeout.String(),
		)

		// Stop accepting first: new clients get connection refused
		s.pump.stopDispatch()
		s.listenerMu.RLock()
		if s.listener != nil {
			_ = s.listener.Close()
		}
		s.listenerMu.RUnlock()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()

		var (
			dwg    sync.WaitGroup
			forced atomic.Int32
		)
		for _, wk := range workers {
			wk.markDraining()
			dwg.Add(1)
			go func(wk *worker) {
				defer dwg.Done()
				if err := wk.server.Shutdown(shutdownCtx); err != nil {
					// Drain window expired: abort whatever is left
					forced.Add(1)
					s.cancelRequests()
					_ = wk.server.Close()
				}
			}(wk)
		}
		dwg.Wait()

		if n := forced.Load(); n > 0 {
			logger.Warn("Drain timeout exceeded - force-terminated remaining requests",
				"workers", n,
			)
		} else {
			logger.Info("Worker pool drained")
		}
	})
}

func (s *Supervisor) reportFatal(err error) {
	s.fatalOnce.Do(func() {
		s.fatalErr = err
		logger.Error("Worker pool failed", logger.Err(err))
		close(s.fatalCh)
	})
}

// Recycle force-terminates a worker instance and lets the supervisor
// relaunch it. The request timeout handler uses it to replace a worker
// that held a request past the deadline.
//
// Returns false when the worker does not exist, is not serving, or the
// pool is draining.
func (s *Supervisor) Recycle(workerID int, reason string) bool {
	if s.draining.Load() {
		return false
	}

	s.mu.RLock()
	var wk *worker
	if workerID >= 1 && workerID <= len(s.workers) {
		wk = s.workers[workerID-1]
	}
	s.mu.RUnlock()

	if wk == nil || !wk.markRecycle(reason) {
		return false
	}

	logger.Warn("Recycling worker", logger.WorkerID(workerID), "reason", reason)
	_ = wk.server.Close()
	return true
}

// Ready returns a channel closed once all workers launched and the pool
// is serving.
func (s *Supervisor) Ready() <-chan struct{} {
	return s.ready
}

func (s *Supervisor) isReady() bool {
	select {
	case <-s.ready:
		return !s.draining.Load()
	default:
		return false
	}
}

// Status returns a point-in-time snapshot of the pool.
func (s *Supervisor) Status() PoolStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := PoolStatus{
		Phase:      PoolPhaseStarting,
		Configured: s.cfg.Workers,
		Restarts:   int(s.totalRestarts.Load()),
		Ready:      s.isReady(),
		Workers:    make([]WorkerStatus, 0, len(s.workers)),
	}

	for i, wk := range s.workers {
		if wk == nil {
			continue
		}
		snap := wk.snapshot(s.restarts[i])
		if snap.State == WorkerStateServing {
			st.Running++
		}
		st.Workers = append(st.Workers, snap)
	}

	switch {
	case s.draining.Load():
		st.Phase = PoolPhaseDraining
	case s.started.Load() == int32(s.cfg.Workers):
		st.Phase = PoolPhaseServing
	}

	return st
}

// StartedAt returns when the pool bound its socket.
func (s *Supervisor) StartedAt() time.Time {
	return s.startedAt
}

// Addr returns the bound listener address. This method blocks until the
// listener is ready, making it safe for tests.
func (s *Supervisor) Addr() string {
	<-s.listenerReady

	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()

	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}
