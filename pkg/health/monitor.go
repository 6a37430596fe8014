// Package health polls the instance's own health endpoint the same way
// the external orchestrator does, so the process and the orchestrator
// agree on what "unhealthy" means.
package health

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/stevedore/internal/logger"
	"github.com/marmos91/stevedore/pkg/metrics"
)

// Instance health states.
const (
	StateStarting  = "starting"
	StateHealthy   = "healthy"
	StateUnhealthy = "unhealthy"
)

// Probe results recorded in metrics.
const (
	resultSuccess = "success"
	resultFailure = "failure"
	resultTimeout = "timeout"
)

// Config configures the health monitor.
type Config struct {
	// Addr is the host:port of the application listener to probe.
	Addr string

	// Path is the liveness endpoint path.
	// Default: /health
	Path string

	// Interval between probes.
	// Default: 30s
	Interval time.Duration

	// Timeout for one probe, independent of the request timeout.
	// Default: 30s
	Timeout time.Duration

	// StartPeriod is the grace window after Start during which probe
	// failures do not count toward the threshold. Zero disables the
	// grace window.
	StartPeriod time.Duration

	// Retries is the number of consecutive failures past the grace
	// window before the instance is reported unhealthy.
	// Default: 3
	Retries int

	// OnUnhealthy is invoked once per transition into the unhealthy
	// state. Optional.
	OnUnhealthy func(err error)
}

func (c *Config) applyDefaults() {
	if c.Path == "" {
		c.Path = "/health"
	}
	if c.Interval <= 0 {
		c.Interval = 30 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
}

// Status is a point-in-time snapshot of the monitor.
type Status struct {
	State               string
	ConsecutiveFailures int
	LastCheck           time.Time
	LastError           string
}

// Monitor probes the worker pool with a real HTTP request on a fixed
// schedule.
//
// Design:
//   - One synchronous probe per tick; a probe that exceeds its own
//     timeout is a failed probe and is not retried until the next tick
//   - Failures inside the start period never count toward the threshold
//   - Retries consecutive failures past the grace window flip the state
//     to unhealthy; any success flips it back and resets the counter
//   - The probe goes through the listening socket, so a pool that
//     accepts but never responds is caught by the probe timeout
//
// Thread safety:
//   - The probe goroutine is the only writer; Status() readers acquire
//     an RLock
type Monitor struct {
	cfg     Config
	client  *http.Client
	metrics metrics.HealthMetrics

	mu          sync.RWMutex
	state       string
	consecutive int
	lastCheck   time.Time
	lastErr     error
	startedAt   time.Time

	stopCh  chan struct{}
	stopped chan struct{}
}

// NewMonitor creates a health monitor for the listener at cfg.Addr.
//
// Parameters:
//   - cfg: Probe schedule, timeout and failure threshold
//   - m: Health metrics recorder (may be nil when metrics are disabled)
func NewMonitor(cfg Config, m metrics.HealthMetrics) *Monitor {
	cfg.applyDefaults()

	return &Monitor{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		metrics: m,
		state:   StateStarting,
		stopCh:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
}

// Start begins probing in a background goroutine. The first probe runs
// after one full interval, matching how external orchestrators schedule
// health checks.
//
// The goroutine continues until Stop() is called or the context is
// cancelled.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	m.startedAt = time.Now()
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.SetState(StateStarting)
	}

	go func() {
		defer close(m.stopped)

		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		logger.Info("Health monitor started",
			"url", m.probeURL(),
			"interval", m.cfg.Interval.String(),
			"timeout", m.cfg.Timeout.String(),
			"retries", m.cfg.Retries,
		)

		for {
			select {
			case <-ctx.Done():
				logger.Debug("Health monitor stopping (context cancelled)")
				return
			case <-m.stopCh:
				logger.Debug("Health monitor stopping (stop signal)")
				return
			case <-ticker.C:
				m.check(ctx)
			}
		}
	}()
}

// Stop signals the probe goroutine to stop and waits for it to exit.
func (m *Monitor) Stop() {
	select {
	case <-m.stopCh:
		// Already stopped
		return
	default:
		close(m.stopCh)
	}
	<-m.stopped
	logger.Debug("Health monitor stopped")
}

// Status returns the current monitor snapshot.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Status{
		State:               m.state,
		ConsecutiveFailures: m.consecutive,
		LastCheck:           m.lastCheck,
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	return st
}

func (m *Monitor) probeURL() string {
	return "http://" + m.cfg.Addr + m.cfg.Path
}

// check runs one probe and folds the result into the state machine.
func (m *Monitor) check(ctx context.Context) {
	start := time.Now()
	err := m.probe(ctx)
	duration := time.Since(start)

	if err == nil {
		if m.metrics != nil {
			m.metrics.RecordCheck(resultSuccess, duration)
		}
		m.recordSuccess(start)
		return
	}

	result := resultFailure
	if isTimeout(err) {
		result = resultTimeout
	}
	if m.metrics != nil {
		m.metrics.RecordCheck(result, duration)
	}
	m.recordFailure(err, start)
}

// probe performs the real request against the listening socket.
func (m *Monitor) probe(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, m.probeURL(), nil)
	if err != nil {
		return err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// Drain so the connection can be reused
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("health endpoint returned status %d", resp.StatusCode)
	}
	return nil
}

func (m *Monitor) recordSuccess(start time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	first := m.state == StateStarting
	recovered := m.state == StateUnhealthy

	m.state = StateHealthy
	m.consecutive = 0
	m.lastCheck = time.Now()
	m.lastErr = nil

	if m.metrics != nil {
		m.metrics.SetState(StateHealthy)
		m.metrics.SetConsecutiveFailures(0)
	}

	switch {
	case first:
		logger.Info("Instance healthy", logger.DurationMs(logger.Duration(start)))
	case recovered:
		logger.Info("Instance recovered", logger.DurationMs(logger.Duration(start)))
	default:
		logger.Debug("Health check passed", logger.DurationMs(logger.Duration(start)))
	}
}

func (m *Monitor) recordFailure(err error, start time.Time) {
	m.mu.Lock()

	m.lastCheck = time.Now()
	m.lastErr = err

	// Failures during the start period give the pool time to come up
	if time.Since(m.startedAt) < m.cfg.StartPeriod {
		m.mu.Unlock()
		logger.Debug("Health check failed during start period", logger.Err(err))
		return
	}

	m.consecutive++
	consecutive := m.consecutive
	if m.metrics != nil {
		m.metrics.SetConsecutiveFailures(consecutive)
	}

	becameUnhealthy := consecutive >= m.cfg.Retries && m.state != StateUnhealthy
	if becameUnhealthy {
		m.state = StateUnhealthy
		if m.metrics != nil {
			m.metrics.SetState(StateUnhealthy)
		}
	}
	cb := m.cfg.OnUnhealthy
	m.mu.Unlock()

	switch {
	case becameUnhealthy:
		logger.Error("Instance unhealthy - eligible for replacement",
			"consecutive", consecutive,
			"threshold", m.cfg.Retries,
			logger.Err(err),
			logger.DurationMs(logger.Duration(start)),
		)
	default:
		logger.Warn("Health check failed",
			"consecutive", consecutive,
			"threshold", m.cfg.Retries,
			logger.Err(err),
			logger.DurationMs(logger.Duration(start)),
		)
	}

	if becameUnhealthy && cb != nil {
		cb(err)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
