package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/stevedore/pkg/probe"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check that the external dependency is reachable",
	Long: `Check that the external dependency is reachable.

This is the readiness probe of the startup sequence run on its own: one
connection attempt against the configured datastore, bounded by the
connect timeout, no retries. Exits 0 when the dependency accepts
connections (or none is configured) and 2 when it does not, so the
command slots directly into wait-for scripts:

  until stevedore check; do sleep 1; done

Examples:
  # Probe the configured datastore
  stevedore check

  # Probe with an explicit descriptor
  DATABASE_URL=postgres://app@db:5432/app stevedore check`,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadAndInit()
	if err != nil {
		return err
	}

	if !cfg.Database.HasDependency() {
		fmt.Println("No dependency configured, nothing to check")
		return nil
	}

	prober := probe.New(cfg.Database.URL, cfg.Database.ConnectTimeout)
	if err := prober.Check(context.Background()); err != nil {
		return &ExitError{Code: ExitDependencyUnreachable, Err: err}
	}

	fmt.Printf("Dependency reachable: %s\n", probe.Redact(cfg.Database.URL))
	return nil
}
