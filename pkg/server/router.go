package server

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/stevedore/internal/logger"
)

// NewRouter creates and configures the chi router shared by all workers.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Access logging with health endpoint noise demoted to debug
//   - Panic recovery so a handler panic becomes a 500, not a dead worker
//
// Routes:
//   - GET {HealthPath}          - Liveness probe
//   - GET {HealthPath}/ready    - Readiness probe
//   - GET {HealthPath}/workers  - Per-worker detail
//   - /*                        - Application handler, or the collected
//     static assets when none is configured
func NewRouter(cfg Config, pool PoolReporter, access *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(access, cfg.HealthPath))
	r.Use(middleware.Recoverer)

	h := newHealthHandler(pool)
	r.Route(cfg.HealthPath, func(r chi.Router) {
		r.Get("/", h.Liveness)
		r.Get("/ready", h.Readiness)
		r.Get("/workers", h.Workers)
	})

	switch {
	case cfg.Handler != nil:
		r.Handle("/*", cfg.Handler)
	case cfg.StaticDir != "":
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticDir)))
	default:
		// Root redirect to health for convenience
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, cfg.HealthPath, http.StatusTemporaryRedirect)
		})
	}

	return r
}

// newAccessLogger builds the dedicated access log stream. Returns a nil
// logger when the stream is turned off; the closer is non-nil only when
// the destination is a file.
func newAccessLogger(dest, format string) (*slog.Logger, io.Closer, error) {
	var (
		w io.Writer
		c io.Closer
	)

	switch strings.ToLower(dest) {
	case "off":
		return nil, nil, nil
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open access log %q: %w", dest, err)
		}
		w = f
		c = f
	}

	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = logger.NewColorTextHandler(w, opts, false)
	}

	return slog.New(handler), c, nil
}

// requestLogger logs requests: start at debug on the application stream,
// completion on the access stream. Health endpoint completions go to the
// application stream at debug so the poller does not flood the access log.
func requestLogger(access *slog.Logger, healthPath string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := middleware.GetReqID(r.Context())

			logger.Debug("Request started",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			isHealth := healthPath != "" && strings.HasPrefix(r.URL.Path, healthPath)
			if access == nil || isHealth {
				logger.Debug("Request completed",
					"request_id", requestID,
					"method", r.Method,
					"path", r.URL.Path,
					"status", status,
					"bytes", ww.BytesWritten(),
					"duration", duration.String(),
				)
				return
			}

			access.Info("Request completed",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"duration", duration.String(),
			)
		})
	}
}
