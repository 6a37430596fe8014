package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/stevedore/internal/bytesize"
	"github.com/marmos91/stevedore/pkg/prepare/assets"
)

var collectClean bool

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect static assets into the serving directory",
	Long: `Collect static assets into the serving directory.

This is the asset collection phase of the startup sequence run on its
own: every configured source directory is gathered into the output
directory in order, later sources winning on name collisions, followed
by the S3 source when one is configured. Files already up to date are
skipped, so re-running on unchanged sources copies nothing.

Examples:
  # Collect with default config
  stevedore collect

  # Remove output files no source provides anymore
  stevedore collect --clean`,
	RunE: runCollect,
}

func init() {
	collectCmd.Flags().BoolVar(&collectClean, "clean", false, "Remove files from the output directory that no source provides")
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, err := loadAndInit()
	if err != nil {
		return err
	}

	ac := assetsConfig(cfg)
	if collectClean {
		ac.Clean = true
	}

	collector := assets.NewCollector(ac, nil)
	stats, err := collector.Collect(context.Background())
	if err != nil {
		return &ExitError{Code: ExitPreparationFailed, Err: err}
	}

	fmt.Printf("%d files collected into %s (%s written, %d up to date)\n",
		stats.Copied+stats.Skipped, ac.OutputDir, bytesize.ByteSize(stats.Bytes).String(), stats.Skipped)
	return nil
}
