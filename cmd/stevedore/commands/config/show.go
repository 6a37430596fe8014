package config

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/marmos91/stevedore/internal/cli/output"
	"github.com/marmos91/stevedore/pkg/config"
)

var showOutput string

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the effective configuration",
	Long: `Display the effective stevedore configuration.

The output is the fully resolved configuration: file, environment
variables and defaults merged in precedence order. By default it is
rendered as YAML; use --output to change the format.

Examples:
  # Show the effective config as YAML
  stevedore config show

  # Show as JSON
  stevedore config show --output json

  # Show a specific config file
  stevedore config show --config /etc/stevedore/config.yaml`,
	RunE: runConfigShow,
}

func init() {
	showCmd.Flags().StringVarP(&showOutput, "output", "o", "yaml", "Output format (yaml|json)")
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	// Config path comes from the root command's persistent flag.
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return err
	}

	format, err := output.ParseFormat(showOutput)
	if err != nil {
		return err
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, cfg)
	default:
		return output.PrintYAML(os.Stdout, cfg)
	}
}
