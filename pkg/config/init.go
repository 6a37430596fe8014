package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// configTemplate is the commented sample configuration written by
// `stevedore init`. Every value shown is the default; a fresh instance
// runs identically with no config file at all.
const configTemplate = `# Stevedore Configuration File
#
# Every key can be overridden with an environment variable using the
# STEVEDORE_ prefix and underscores for nesting, e.g.
#   STEVEDORE_SERVER_WORKERS=4
#   STEVEDORE_DATABASE_URL=postgres://app:secret@db:5432/app
# The conventional DATABASE_URL variable is honored as well.

logging:
  # Minimum log level: DEBUG, INFO, WARN, ERROR
  level: "INFO"
  # Output format: text, json
  format: "text"
  # Destination for the application/error stream: stdout, stderr, or a file path
  output: "stdout"

database:
  # Connection descriptor of the external datastore. Leave empty to skip
  # the startup readiness probe and run against the local SQLite fallback.
  # Example: postgres://app:secret@db:5432/app?sslmode=disable
  url: ""
  # Bound on the single readiness probe attempt
  connect_timeout: "5s"

server:
  # Address and port of the single listening socket
  bind_address: "0.0.0.0"
  port: 8000
  # Worker units sharing the listener; 0 means one per CPU
  workers: 0
  # Concurrent in-flight requests each worker accepts
  worker_connections: 10
  # Requests exceeding this are aborted and the worker is recycled
  request_timeout: "120s"
  # Destination for the access stream: stdout, stderr, a file path, or "off"
  access_log: "stdout"

assets:
  # Local directories gathered into output_dir (later entries win)
  source_dirs: []
  # Serving directory assets are collected into
  output_dir: "./staticfiles"
  # Remove files no source provides (collection always overwrites)
  clean: false
  # Optional remote source, collected after the local directories
  # s3:
  #   bucket: "my-assets"
  #   prefix: "static/"
  #   region: "us-east-1"
  #   endpoint: ""        # set for MinIO/Localstack
  #   path_style: false   # required for MinIO/Localstack

migrations:
  # Directory holding migration files (NNN_name.up.sql / NNN_name.down.sql)
  path: "./migrations"
  # Schema version bookkeeping table
  table: "schema_migrations"
  # SQLite target when database.url is empty
  # sqlite_path: ""

health:
  # Liveness endpoint on the application listener
  path: "/health"
  # Probe cadence, per-probe timeout, startup grace, and failure threshold
  interval: "30s"
  timeout: "30s"
  start_period: "5s"
  retries: 3

# Maximum time to drain in-flight requests on a termination signal
shutdown_timeout: "120s"

journal:
  # Record preparation runs and worker lifecycle events
  enabled: true
  # SQLite ledger location when database.url is empty
  # path: ""

metrics:
  # Prometheus metrics server (own port, separate from the app listener)
  enabled: false
  port: 9090

telemetry:
  # OpenTelemetry tracing (OTLP gRPC)
  enabled: false
  endpoint: "localhost:4317"
  insecure: true
  sample_rate: 1.0
  profiling:
    # Pyroscope continuous profiling
    enabled: false
    endpoint: "http://localhost:4040"
`

// InitConfig writes the sample configuration file to the default
// location ($XDG_CONFIG_HOME/stevedore/config.yaml).
//
// Parameters:
//   - force: Overwrite an existing file
//
// Returns:
//   - string: Path the file was written to
//   - error: Write failure, or the file already exists and force is false
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes the sample configuration file to the given path,
// creating parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// 0600: the file may later carry datastore credentials
	if err := os.WriteFile(path, []byte(configTemplate), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
