package server

import (
	"net/http"
	"time"
)

// PoolReporter exposes pool state to the health endpoints. *Supervisor
// implements it; tests substitute fakes.
type PoolReporter interface {
	Status() PoolStatus
	StartedAt() time.Time
}

// healthHandler handles the health endpoints.
//
// The endpoints are unauthenticated and provide:
//   - Liveness probe: is the process up and the pool phase
//   - Readiness probe: did preparation finish and is the pool serving
//   - Worker detail: per-worker state, restarts and last-alive
type healthHandler struct {
	pool PoolReporter
}

func newHealthHandler(pool PoolReporter) *healthHandler {
	return &healthHandler{pool: pool}
}

// livenessData is the /health payload.
type livenessData struct {
	Service   string         `json:"service"`
	State     string         `json:"state"`
	StartedAt string         `json:"started_at"`
	Uptime    string         `json:"uptime"`
	UptimeSec int64          `json:"uptime_sec"`
	Workers   workersSummary `json:"workers"`
}

type workersSummary struct {
	Configured int `json:"configured"`
	Running    int `json:"running"`
	Restarts   int `json:"restarts"`
}

// workerDetail is one entry of the /health/workers payload.
type workerDetail struct {
	ID        int    `json:"id"`
	Handle    string `json:"handle"`
	State     string `json:"state"`
	StartedAt string `json:"started_at"`
	Uptime    string `json:"uptime"`
	LastAlive string `json:"last_alive"`
	Restarts  int    `json:"restarts"`
	InFlight  int    `json:"in_flight"`
}

type workersData struct {
	Workers []workerDetail `json:"workers"`
}

// Liveness handles GET /health - the externally polled liveness probe.
//
// Returns 200 OK whenever the process is up and a worker accepted the
// request. A hung pool never gets here, which is exactly what the
// poller's own timeout is for.
func (h *healthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	st := h.pool.Status()
	startedAt := h.pool.StartedAt()
	uptime := time.Since(startedAt)

	writeJSON(w, http.StatusOK, healthyResponse(livenessData{
		Service:   "stevedore",
		State:     st.Phase,
		StartedAt: startedAt.UTC().Format(time.RFC3339),
		Uptime:    uptime.Round(time.Second).String(),
		UptimeSec: int64(uptime.Seconds()),
		Workers: workersSummary{
			Configured: st.Configured,
			Running:    st.Running,
			Restarts:   st.Restarts,
		},
	}))
}

// Readiness handles GET /health/ready - readiness probe.
//
// Returns 200 OK once every worker came up and the pool is serving.
// Returns 503 Service Unavailable while starting and again while
// draining.
func (h *healthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	st := h.pool.Status()

	if !st.Ready {
		msg := "worker pool not ready"
		if st.Phase == PoolPhaseDraining {
			msg = "worker pool draining"
		}
		writeJSON(w, http.StatusServiceUnavailable, unhealthyResponse(msg))
		return
	}

	writeJSON(w, http.StatusOK, healthyResponse(workersSummary{
		Configured: st.Configured,
		Running:    st.Running,
		Restarts:   st.Restarts,
	}))
}

// Workers handles GET /health/workers - per-worker detail.
func (h *healthHandler) Workers(w http.ResponseWriter, r *http.Request) {
	st := h.pool.Status()

	data := workersData{Workers: make([]workerDetail, 0, len(st.Workers))}
	for _, wk := range st.Workers {
		data.Workers = append(data.Workers, workerDetail{
			ID:        wk.ID,
			Handle:    wk.Handle,
			State:     wk.State,
			StartedAt: wk.StartedAt.UTC().Format(time.RFC3339),
			Uptime:    time.Since(wk.StartedAt).Round(time.Second).String(),
			LastAlive: wk.LastAlive.UTC().Format(time.RFC3339),
			Restarts:  wk.Restarts,
			InFlight:  wk.InFlight,
		})
	}

	writeJSON(w, http.StatusOK, okResponse(data))
}
