package server

import (
	"net/http"
	"runtime"
	"time"
)

// Config configures the listener and the worker pool.
//
// The pool binds exactly one listening socket and spawns Workers worker
// units against it, each handling up to WorkerConnections concurrent
// in-flight requests.
type Config struct {
	// BindAddress is the IP address the listening socket binds to.
	// Empty string or "0.0.0.0" binds to all interfaces.
	// Default: 0.0.0.0
	BindAddress string

	// Port is the TCP port the listening socket binds to. Port 0 binds an
	// ephemeral port.
	Port int

	// Workers is the number of worker units sharing the listener.
	// Default: number of CPUs
	Workers int

	// WorkerConnections caps the concurrent in-flight requests per worker.
	// Requests beyond the cap wait for a slot.
	// Default: 10
	WorkerConnections int

	// RequestTimeout aborts any request that exceeds it. The handling
	// worker is considered unhealthy and recycled.
	// Default: 120s
	RequestTimeout time.Duration

	// ShutdownTimeout is the maximum duration to drain in-flight requests
	// during graceful shutdown before the remainder is force-terminated.
	// Default: 120s
	ShutdownTimeout time.Duration

	// RestartDelay is the pause before a crashed worker is relaunched.
	// Default: 1s
	RestartDelay time.Duration

	// ReadHeaderTimeout bounds reading a request's headers.
	// Default: 10s
	ReadHeaderTimeout time.Duration

	// IdleTimeout is the keep-alive idle limit per connection.
	// Default: 60s
	IdleTimeout time.Duration

	// HealthPath is the base path of the health endpoints.
	// Default: /health
	HealthPath string

	// StaticDir is the collected asset directory served at the root when
	// no Handler is configured.
	StaticDir string

	// Handler is the application handler mounted at the root. When nil,
	// the pool serves StaticDir.
	Handler http.Handler

	// AccessLog routes the access log stream.
	// Valid values: stdout, stderr, a file path, or "off".
	// Default: stdout
	AccessLog string

	// AccessLogFormat is "text" or "json".
	// Default: text
	AccessLogFormat string
}

// applyDefaults fills in zero values with sensible defaults.
//
// Defaults are applied again here to ensure the pool works correctly even
// when created directly (e.g., in tests). This is idempotent with the
// defaults applied during config loading.
func (c *Config) applyDefaults() {
	if c.BindAddress == "" {
		c.BindAddress = "0.0.0.0"
	}
	if c.Workers <= 0 {
		c.Workers = runtime.NumCPU()
	}
	if c.WorkerConnections <= 0 {
		c.WorkerConnections = 10
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 120 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 120 * time.Second
	}
	if c.RestartDelay <= 0 {
		c.RestartDelay = time.Second
	}
	if c.ReadHeaderTimeout <= 0 {
		c.ReadHeaderTimeout = 10 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.HealthPath == "" {
		c.HealthPath = "/health"
	}
	if c.AccessLog == "" {
		c.AccessLog = "stdout"
	}
	if c.AccessLogFormat == "" {
		c.AccessLogFormat = "text"
	}
}
