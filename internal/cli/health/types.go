// Package health provides shared types for instance health responses.
package health

// Response represents the /health endpoint response structure.
type Response struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		Service   string  `json:"service"`
		State     string  `json:"state"`
		StartedAt string  `json:"started_at"`
		Uptime    string  `json:"uptime"`
		UptimeSec int64   `json:"uptime_sec"`
		Workers   Workers `json:"workers"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// Workers summarizes the worker pool inside a health response.
type Workers struct {
	Configured int `json:"configured"`
	Running    int `json:"running"`
	Restarts   int `json:"restarts"`
}

// WorkersResponse represents the /health/workers endpoint response structure.
type WorkersResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Data      struct {
		Workers []Worker `json:"workers"`
	} `json:"data"`
	Error string `json:"error,omitempty"`
}

// Worker describes one pool member in a workers response.
type Worker struct {
	ID        int    `json:"id"`
	Handle    string `json:"handle"`
	State     string `json:"state"`
	StartedAt string `json:"started_at"`
	Uptime    string `json:"uptime"`
	LastAlive string `json:"last_alive"`
	Restarts  int    `json:"restarts"`
	InFlight  int    `json:"in_flight"`
}
