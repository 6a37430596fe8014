package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/marmos91/stevedore/internal/logger"
	"github.com/marmos91/stevedore/internal/telemetry"
	"github.com/marmos91/stevedore/pkg/config"
	"github.com/marmos91/stevedore/pkg/health"
	"github.com/marmos91/stevedore/pkg/journal"
	"github.com/marmos91/stevedore/pkg/metrics"
	promexp "github.com/marmos91/stevedore/pkg/metrics/prometheus"
	"github.com/marmos91/stevedore/pkg/prepare"
	"github.com/marmos91/stevedore/pkg/prepare/assets"
	"github.com/marmos91/stevedore/pkg/prepare/migrate"
	"github.com/marmos91/stevedore/pkg/probe"
	"github.com/marmos91/stevedore/pkg/server"
)

var (
	runWorkers int
	runPort    int
)

var runCmd = &cobra.Command{
	Use:   "run [flags] [-- command [args...]]",
	Short: "Run the startup sequence and serve",
	Long: `Run the full startup sequence and serve.

The sequence is fixed: probe the external datastore, run the preparation
steps (asset collection, schema migration), then bring up the supervised
worker pool and report health. Any failure before the pool is serving
aborts with an exit code identifying the failed phase:

  0  graceful shutdown after a termination signal
  1  configuration or other generic error
  2  dependency unreachable
  3  preparation step failed
  4  worker pool failed

Trailing arguments replace the built-in worker pool: once preparation
has succeeded they are executed verbatim as the long-running command,
with signals forwarded and the command's exit code propagated.

Examples:
  # Serve the collected assets with the built-in pool
  stevedore run

  # Override pool sizing from the command line
  stevedore run --workers 4 --port 9000

  # Prepare, then hand off to an application server
  stevedore run -- gunicorn app.wsgi:application --bind 0.0.0.0:8000`,
	Args: cobra.ArbitraryArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().IntVar(&runWorkers, "workers", 0, "Number of worker units (overrides config)")
	runCmd.Flags().IntVar(&runPort, "port", 0, "Listener port (overrides config)")

	// Everything after the first positional argument belongs to the
	// override command, flags included.
	runCmd.Flags().SetInterspersed(false)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// CLI flags take precedence over environment and file.
	if cmd.Flags().Changed("workers") {
		cfg.Server.Workers = runWorkers
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = runPort
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "stevedore",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(ctx); err != nil {
			logger.Error("Telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:        cfg.Telemetry.Profiling.Enabled,
		ServiceName:    "stevedore",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes:   cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("Profiling shutdown error", logger.Err(err))
		}
	}()

	logger.Info("Stevedore starting",
		"version", Version,
		logger.PID(os.Getpid()),
		logger.Workers(cfg.Server.Workers))
	logger.Info("Configuration loaded", logger.Source(getConfigSource(GetConfigFile())))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint)
	}

	// Metrics come up before anything that records into them.
	var (
		poolMetrics   metrics.PoolMetrics
		prepMetrics   metrics.PrepareMetrics
		healthMetrics metrics.HealthMetrics
	)
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		poolMetrics = promexp.NewPoolMetrics()
		prepMetrics = promexp.NewPrepareMetrics()
		healthMetrics = promexp.NewHealthMetrics()

		metricsSrv := metrics.NewServer(cfg.Metrics.Port)
		go func() {
			logger.Info("Metrics server listening", logger.Port(cfg.Metrics.Port))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("Metrics server error", logger.Err(err))
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	// The journal is bookkeeping only: failure to open it never blocks
	// startup.
	jnl, err := journal.Open(journal.Config{
		Enabled:     cfg.Journal.Enabled,
		Path:        cfg.Journal.Path,
		DatabaseURL: cfg.Database.URL,
	})
	if err != nil {
		logger.Warn("Run journal unavailable", logger.Err(err))
		jnl = nil
	}
	defer func() { _ = jnl.Close() }()

	runID := jnl.BeginRun(ctx)
	ctx = logger.WithContext(ctx, logger.NewRunContext(runID))

	if err := startupSequence(ctx, cfg, jnl, prepMetrics); err != nil {
		return err
	}

	// Trailing arguments replace the built-in pool as the long-running
	// command.
	if len(args) > 0 {
		return execCommand(ctx, jnl, args)
	}

	srv, err := server.New(serverConfig(cfg), poolMetrics, jnl)
	if err != nil {
		jnl.MarkFailed(ctx, "serve", err)
		return err
	}

	serveCtx := logger.WithContext(ctx, logger.FromContext(ctx).WithPhase("serve"))
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Run(serveCtx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	// The pool is ready once every worker is serving. A bind failure
	// surfaces on serverDone before readiness.
	select {
	case <-srv.Ready():

	case err := <-serverDone:
		if err == nil {
			err = errors.New("worker pool stopped before becoming ready")
		}
		jnl.MarkFailed(ctx, "serve", err)
		return &ExitError{Code: ExitPoolFailed, Err: err}

	case sig := <-sigChan:
		logger.InfoCtx(ctx, "Shutdown signal received during startup", logger.Signal(sig.String()))
		// The run context gets cancelled to drain the pool, so journal
		// writes from here on need their own lifetime.
		stopCtx := context.WithoutCancel(ctx)
		cancel()
		err := <-serverDone
		jnl.MarkStopped(stopCtx)
		if err != nil {
			return &ExitError{Code: ExitPoolFailed, Err: err}
		}
		return nil
	}

	jnl.MarkReady(ctx)

	monitor := health.NewMonitor(health.Config{
		Addr:        probeAddr(srv.Addr()),
		Path:        cfg.Health.Path,
		Interval:    cfg.Health.Interval,
		Timeout:     cfg.Health.Timeout,
		StartPeriod: cfg.Health.StartPeriod,
		Retries:     cfg.Health.Retries,
	}, healthMetrics)
	monitor.Start(ctx)
	defer monitor.Stop()

	logger.InfoCtx(ctx, "Startup sequence complete - instance is serving",
		logger.RunID(runID),
		logger.Addr(srv.Addr()),
		logger.Workers(cfg.Server.Workers))

	select {
	case sig := <-sigChan:
		logger.InfoCtx(ctx, "Shutdown signal received - stopping instance", logger.Signal(sig.String()))
		stopCtx := context.WithoutCancel(ctx)
		cancel()
		if err := <-serverDone; err != nil {
			jnl.MarkFailed(stopCtx, "serve", err)
			return &ExitError{Code: ExitPoolFailed, Err: err}
		}
		jnl.MarkStopped(stopCtx)
		logger.InfoCtx(stopCtx, "Instance stopped gracefully")
		return nil

	case err := <-serverDone:
		if err == nil {
			err = errors.New("worker pool stopped unexpectedly")
		}
		jnl.MarkFailed(ctx, "serve", err)
		return &ExitError{Code: ExitPoolFailed, Err: err}
	}
}

// startupSequence runs the readiness probe and the preparation steps in
// strict order, recording the outcome in the journal. The returned error
// already carries its exit code.
func startupSequence(ctx context.Context, cfg *config.Config, jnl *journal.Journal, m metrics.PrepareMetrics) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanStartup)
	defer span.End()

	if err := probePhase(ctx, cfg); err != nil {
		jnl.MarkFailed(ctx, "probe", err)
		return &ExitError{Code: ExitDependencyUnreachable, Err: err}
	}

	if err := preparePhase(ctx, cfg, jnl, m); err != nil {
		step := "prepare"
		var stepErr *prepare.StepError
		if errors.As(err, &stepErr) {
			step = stepErr.Step
		}
		jnl.MarkFailed(ctx, step, err)
		return &ExitError{Code: ExitPreparationFailed, Err: err}
	}

	return nil
}

// probePhase checks the external datastore accepts connections. With no
// descriptor configured it is a no-op.
func probePhase(ctx context.Context, cfg *config.Config) error {
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).WithPhase("probe"))
	ctx, span := telemetry.StartPhaseSpan(ctx, "probe",
		telemetry.Target(probe.Redact(cfg.Database.URL)))
	defer span.End()

	prober := probe.New(cfg.Database.URL, cfg.Database.ConnectTimeout)
	if err := prober.Check(ctx); err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}
	return nil
}

// preparePhase runs asset collection and schema migration in order, each
// wrapped for journal recording.
func preparePhase(ctx context.Context, cfg *config.Config, jnl *journal.Journal, m metrics.PrepareMetrics) error {
	ctx = logger.WithContext(ctx, logger.FromContext(ctx).WithPhase("prepare"))
	ctx, span := telemetry.StartPhaseSpan(ctx, "prepare")
	defer span.End()

	runner := prepare.NewRunner(m,
		jnl.WrapStep(assets.NewCollector(assetsConfig(cfg), m)),
		jnl.WrapStep(migrate.New(migrateConfig(cfg), m)),
	)
	if err := runner.Run(ctx); err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}
	return nil
}

// execCommand replaces the built-in worker pool with the given command,
// executed verbatim. Signals are forwarded to the child and its exit
// code becomes ours. A child that dies from a signal we forwarded counts
// as a graceful stop.
func execCommand(ctx context.Context, jnl *journal.Journal, argv []string) error {
	logger.InfoCtx(ctx, "Executing override command", "command", strings.Join(argv, " "))

	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		err = fmt.Errorf("failed to start %q: %w", argv[0], err)
		jnl.MarkFailed(ctx, "exec", err)
		return err
	}

	jnl.MarkReady(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	forwarded := false
	for {
		select {
		case sig := <-sigChan:
			// The child owns its own drain; keep waiting for it.
			logger.InfoCtx(ctx, "Forwarding signal to command", logger.Signal(sig.String()))
			forwarded = true
			_ = cmd.Process.Signal(sig)

		case err := <-waitDone:
			if err == nil {
				jnl.MarkStopped(ctx)
				return nil
			}

			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				if forwarded && !exitErr.Exited() {
					// Killed by the signal we forwarded.
					jnl.MarkStopped(ctx)
					return nil
				}
				if code := exitErr.ExitCode(); code > 0 {
					jnl.MarkFailed(ctx, "exec", err)
					return &ExitError{Code: code, Err: fmt.Errorf("command %q: %w", argv[0], err)}
				}
			}

			err = fmt.Errorf("command %q: %w", argv[0], err)
			jnl.MarkFailed(ctx, "exec", err)
			return err
		}
	}
}
