package logger

import (
	"log/slog"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements so that runs,
// preparation steps, and worker events can be correlated in aggregated logs.
const (
	// ========================================================================
	// Run Correlation
	// ========================================================================
	KeyRunID   = "run_id"   // Identifier of this startup run
	KeyPhase   = "phase"    // Lifecycle phase: probe, prepare, serve, drain
	KeyTraceID = "trace_id" // OpenTelemetry trace ID
	KeySpanID  = "span_id"  // OpenTelemetry span ID

	// ========================================================================
	// Dependency Probe
	// ========================================================================
	KeyTarget  = "target"  // Probed dependency (redacted descriptor)
	KeyAttempt = "attempt" // Probe attempt number
	KeyElapsed = "elapsed" // Time spent waiting so far

	// ========================================================================
	// Preparation Steps
	// ========================================================================
	KeyStep    = "step"    // Preparation step name
	KeyPath    = "path"    // Filesystem path involved in a step
	KeyFiles   = "files"   // Number of files processed
	KeyBytes   = "bytes"   // Bytes processed
	KeySource  = "source"  // Asset source: directory path or s3 bucket
	KeyBucket  = "bucket"  // S3 bucket name
	KeyKey     = "key"     // S3 object key
	KeyRegion  = "region"  // Cloud region
	KeyVersion = "version" // Schema migration version
	KeyDirty   = "dirty"   // Migration dirty flag

	// ========================================================================
	// Worker Pool
	// ========================================================================
	KeyWorkerID = "worker_id" // Worker identifier (1-based)
	KeyWorkers  = "workers"   // Configured worker count
	KeyRestarts = "restarts"  // Cumulative restart count
	KeyExitErr  = "exit_err"  // Error a worker exited with
	KeyState    = "state"     // Worker or instance state

	// ========================================================================
	// Serving
	// ========================================================================
	KeyAddr        = "addr"        // Bind address (host:port)
	KeyPort        = "port"        // TCP port
	KeyPID         = "pid"         // Process ID
	KeyConnections = "connections" // Active connection count
	KeyMethod      = "method"      // HTTP method
	KeyStatus      = "status"      // HTTP status code
	KeyRequestID   = "request_id"  // Per-request correlation ID
	KeyRemoteAddr  = "remote_addr" // Client address

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
	KeySignal     = "signal"      // OS signal name
	KeyTimeout    = "timeout"     // Timeout that applied to the operation
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// RunID returns a slog.Attr for the startup run identifier
func RunID(id string) slog.Attr {
	return slog.String(KeyRunID, id)
}

// Phase returns a slog.Attr for the lifecycle phase
func Phase(p string) slog.Attr {
	return slog.String(KeyPhase, p)
}

// Target returns a slog.Attr for a probed dependency descriptor
func Target(t string) slog.Attr {
	return slog.String(KeyTarget, t)
}

// Attempt returns a slog.Attr for an attempt number
func Attempt(n int) slog.Attr {
	return slog.Int(KeyAttempt, n)
}

// Step returns a slog.Attr for a preparation step name
func Step(name string) slog.Attr {
	return slog.String(KeyStep, name)
}

// Path returns a slog.Attr for a filesystem path
func Path(p string) slog.Attr {
	return slog.String(KeyPath, p)
}

// Files returns a slog.Attr for a processed file count
func Files(n int) slog.Attr {
	return slog.Int(KeyFiles, n)
}

// Bytes returns a slog.Attr for a processed byte count
func Bytes(n int64) slog.Attr {
	return slog.Int64(KeyBytes, n)
}

// Source returns a slog.Attr for an asset source
func Source(s string) slog.Attr {
	return slog.String(KeySource, s)
}

// Bucket returns a slog.Attr for an S3 bucket name
func Bucket(name string) slog.Attr {
	return slog.String(KeyBucket, name)
}

// Key returns a slog.Attr for an S3 object key
func Key(k string) slog.Attr {
	return slog.String(KeyKey, k)
}

// MigrationVersion returns a slog.Attr for a schema version
func MigrationVersion(v uint) slog.Attr {
	return slog.Uint64(KeyVersion, uint64(v))
}

// Dirty returns a slog.Attr for the migration dirty flag
func Dirty(d bool) slog.Attr {
	return slog.Bool(KeyDirty, d)
}

// WorkerID returns a slog.Attr for a worker identifier
func WorkerID(id int) slog.Attr {
	return slog.Int(KeyWorkerID, id)
}

// Workers returns a slog.Attr for the configured worker count
func Workers(n int) slog.Attr {
	return slog.Int(KeyWorkers, n)
}

// Restarts returns a slog.Attr for a cumulative restart count
func Restarts(n int) slog.Attr {
	return slog.Int(KeyRestarts, n)
}

// State returns a slog.Attr for a worker or instance state
func State(s string) slog.Attr {
	return slog.String(KeyState, s)
}

// Addr returns a slog.Attr for a bind address
func Addr(a string) slog.Attr {
	return slog.String(KeyAddr, a)
}

// Port returns a slog.Attr for a TCP port
func Port(p int) slog.Attr {
	return slog.Int(KeyPort, p)
}

// PID returns a slog.Attr for a process ID
func PID(pid int) slog.Attr {
	return slog.Int(KeyPID, pid)
}

// Connections returns a slog.Attr for an active connection count
func Connections(n int64) slog.Attr {
	return slog.Int64(KeyConnections, n)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// Signal returns a slog.Attr for an OS signal name
func Signal(sig string) slog.Attr {
	return slog.String(KeySignal, sig)
}
