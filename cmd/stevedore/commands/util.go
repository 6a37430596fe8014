package commands

import (
	"fmt"
	"net"

	"github.com/marmos91/stevedore/internal/logger"
	"github.com/marmos91/stevedore/pkg/config"
	"github.com/marmos91/stevedore/pkg/prepare/assets"
	"github.com/marmos91/stevedore/pkg/prepare/migrate"
	"github.com/marmos91/stevedore/pkg/server"
)

// InitLogger initializes the structured logger from configuration.
func InitLogger(cfg *config.Config) error {
	loggerCfg := logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if err := logger.Init(loggerCfg); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// loadAndInit loads the configuration and brings up the logger, the
// shared preamble of every command that does real work.
func loadAndInit() (*config.Config, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, err
	}
	if err := InitLogger(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// getConfigSource returns a description of where the config was loaded from.
func getConfigSource(configFile string) string {
	if configFile != "" {
		return configFile
	}
	if config.DefaultConfigExists() {
		return config.GetDefaultConfigPath()
	}
	return "environment and defaults"
}

// assetsConfig maps the loaded configuration onto the asset collection
// step. The S3 source is attached only when a bucket is configured.
func assetsConfig(cfg *config.Config) assets.Config {
	ac := assets.Config{
		SourceDirs: cfg.Assets.SourceDirs,
		OutputDir:  cfg.Assets.OutputDir,
		Clean:      cfg.Assets.Clean,
	}
	if cfg.Assets.S3.Bucket != "" {
		ac.S3 = &assets.S3Config{
			Bucket:          cfg.Assets.S3.Bucket,
			Prefix:          cfg.Assets.S3.Prefix,
			Region:          cfg.Assets.S3.Region,
			Endpoint:        cfg.Assets.S3.Endpoint,
			AccessKeyID:     cfg.Assets.S3.AccessKeyID,
			SecretAccessKey: cfg.Assets.S3.SecretAccessKey,
			PathStyle:       cfg.Assets.S3.PathStyle,
		}
	}
	return ac
}

// migrateConfig maps the loaded configuration onto the schema migration
// step. An empty database URL selects the SQLite fallback.
func migrateConfig(cfg *config.Config) migrate.Config {
	return migrate.Config{
		DatabaseURL: cfg.Database.URL,
		SQLitePath:  cfg.Migrations.SQLitePath,
		Path:        cfg.Migrations.Path,
		Table:       cfg.Migrations.Table,
	}
}

// serverConfig maps the loaded configuration onto the worker pool. The
// collected asset directory doubles as the default application surface,
// and the access log format follows the error log format.
func serverConfig(cfg *config.Config) server.Config {
	return server.Config{
		BindAddress:       cfg.Server.BindAddress,
		Port:              cfg.Server.Port,
		Workers:           cfg.Server.Workers,
		WorkerConnections: cfg.Server.WorkerConnections,
		RequestTimeout:    cfg.Server.RequestTimeout,
		ShutdownTimeout:   cfg.ShutdownTimeout,
		HealthPath:        cfg.Health.Path,
		StaticDir:         cfg.Assets.OutputDir,
		AccessLog:         cfg.Server.AccessLog,
		AccessLogFormat:   cfg.Logging.Format,
	}
}

// probeAddr rewrites a wildcard bind address into one the in-process
// health monitor can actually connect to.
func probeAddr(bound string) string {
	host, port, err := net.SplitHostPort(bound)
	if err != nil {
		return bound
	}
	switch host {
	case "", "0.0.0.0", "::":
		return net.JoinHostPort("127.0.0.1", port)
	}
	return bound
}
