package config

import (
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyShutdownTimeoutDefaults(cfg)
	applyDatabaseDefaults(&cfg.Database)
	applyServerDefaults(&cfg.Server)
	applyAssetsDefaults(&cfg.Assets)
	applyMigrationsDefaults(&cfg.Migrations)
	applyHealthDefaults(&cfg.Health)
	applyJournalDefaults(&cfg.Journal)
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyTelemetryDefaults sets OpenTelemetry defaults.
func applyTelemetryDefaults(cfg *TelemetryConfig) {
	// Enabled defaults to false (opt-in for telemetry)

	// Default endpoint is localhost:4317 (standard OTLP gRPC port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}

	// Default sample rate is 1.0 (sample all traces)
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	applyProfilingDefaults(&cfg.Profiling)
}

// applyProfilingDefaults sets Pyroscope profiling defaults.
func applyProfilingDefaults(cfg *ProfilingConfig) {
	// Default endpoint is localhost:4040 (standard Pyroscope port)
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}

	// Default profile types include CPU, memory allocation, and goroutines
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

// applyShutdownTimeoutDefaults sets the drain timeout default.
func applyShutdownTimeoutDefaults(cfg *Config) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 120 * time.Second
	}
}

// applyDatabaseDefaults sets dependency descriptor defaults.
// The URL itself has no default: an absent descriptor is meaningful
// (probe skipped, SQLite fallback).
func applyDatabaseDefaults(cfg *DatabaseConfig) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
}

// applyServerDefaults sets listener and worker pool defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.BindAddress == "" {
		cfg.BindAddress = "0.0.0.0"
	}
	if cfg.Port == 0 {
		cfg.Port = 8000
	}
	if cfg.Workers == 0 {
		// One worker per CPU, never fewer than one
		cfg.Workers = runtime.NumCPU()
		if cfg.Workers < 1 {
			cfg.Workers = 1
		}
	}
	if cfg.WorkerConnections == 0 {
		cfg.WorkerConnections = 10
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 120 * time.Second
	}
	if cfg.AccessLog == "" {
		cfg.AccessLog = "stdout"
	}
}

// applyAssetsDefaults sets asset collection defaults.
func applyAssetsDefaults(cfg *AssetsConfig) {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./staticfiles"
	}
	// SourceDirs has no default: collection with no sources is a no-op
}

// applyMigrationsDefaults sets schema migration defaults.
func applyMigrationsDefaults(cfg *MigrationsConfig) {
	if cfg.Path == "" {
		cfg.Path = "./migrations"
	}
	if cfg.Table == "" {
		cfg.Table = "schema_migrations"
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = filepath.Join(getStateDir(), "app.db")
	}
}

// applyHealthDefaults sets the probe contract defaults. These mirror the
// orchestrator-side probe configuration (interval 30s, timeout 30s,
// start period 5s, 3 retries).
func applyHealthDefaults(cfg *HealthConfig) {
	if cfg.Path == "" {
		cfg.Path = "/health"
	}
	if cfg.Interval == 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.StartPeriod == 0 {
		cfg.StartPeriod = 5 * time.Second
	}
	if cfg.Retries == 0 {
		cfg.Retries = 3
	}
}

// applyJournalDefaults sets run ledger defaults.
func applyJournalDefaults(cfg *JournalConfig) {
	if cfg.Path == "" {
		cfg.Path = filepath.Join(getStateDir(), "journal.db")
	}
}

// applyMetricsDefaults sets metrics defaults.
func applyMetricsDefaults(cfg *MetricsConfig) {
	// Enabled defaults to false (opt-in for metrics)
	// Port defaults to 9090 if metrics are enabled
	if cfg.Enabled && cfg.Port == 0 {
		cfg.Port = 9090
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{
		Journal: JournalConfig{
			Enabled: true,
		},
		Telemetry: TelemetryConfig{
			Insecure: true,
		},
	}

	ApplyDefaults(cfg)
	return cfg
}
