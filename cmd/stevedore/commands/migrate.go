package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/stevedore/pkg/prepare/migrate"
	"github.com/marmos91/stevedore/pkg/probe"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `Apply pending schema migrations to the configured datastore.

This is the migration phase of the startup sequence run on its own: the
dependency is probed first, then every pending migration under the
configured directory is applied in version order. Re-running against an
up-to-date schema is a no-op. Without a database URL the migrations
target the local SQLite fallback.

Exit codes match the entry sequence: 2 when the dependency is
unreachable, 3 when a migration fails.

Examples:
  # Apply migrations with default config
  stevedore migrate

  # Apply migrations with custom config
  stevedore migrate --config /etc/stevedore/config.yaml`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadAndInit()
	if err != nil {
		return err
	}

	ctx := context.Background()

	prober := probe.New(cfg.Database.URL, cfg.Database.ConnectTimeout)
	if err := prober.Check(ctx); err != nil {
		return &ExitError{Code: ExitDependencyUnreachable, Err: err}
	}

	migrator := migrate.New(migrateConfig(cfg), nil)
	if err := migrator.Run(ctx); err != nil {
		return &ExitError{Code: ExitPreparationFailed, Err: err}
	}

	version, dirty, err := migrator.Version(ctx)
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	switch {
	case version == 0:
		fmt.Println("No migrations applied (schema at version 0)")
	case dirty:
		fmt.Printf("Migrations completed, schema at version %d (dirty)\n", version)
	default:
		fmt.Printf("Migrations completed, schema at version %d\n", version)
	}
	return nil
}
