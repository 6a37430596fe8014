package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	clihealth "github.com/marmos91/stevedore/internal/cli/health"
	"github.com/marmos91/stevedore/internal/cli/output"
	"github.com/marmos91/stevedore/internal/cli/timeutil"
	"github.com/marmos91/stevedore/pkg/config"
	"github.com/marmos91/stevedore/pkg/journal"
)

var (
	statusOutput string
	statusAddr   string
	statusRuns   int
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show instance status",
	Long: `Display the current status of a running stevedore instance.

The command queries the health endpoints on the application listener and
reports readiness, uptime and per-worker detail. With --runs it also
lists the most recent startup runs recorded in the journal.

Examples:
  # Check the local instance
  stevedore status

  # Check an instance on another port
  stevedore status --addr 127.0.0.1:9000

  # Include the last five recorded runs
  stevedore status --runs 5

  # Output as JSON
  stevedore status --output json`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "table", "Output format (table|json|yaml)")
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "Instance address (default: 127.0.0.1:<server.port>)")
	statusCmd.Flags().IntVar(&statusRuns, "runs", 0, "Include the last N recorded startup runs")
}

// InstanceStatus aggregates everything the status command reports.
type InstanceStatus struct {
	Running   bool               `json:"running" yaml:"running"`
	Healthy   bool               `json:"healthy" yaml:"healthy"`
	Message   string             `json:"message" yaml:"message"`
	State     string             `json:"state,omitempty" yaml:"state,omitempty"`
	StartedAt string             `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	Uptime    string             `json:"uptime,omitempty" yaml:"uptime,omitempty"`
	Workers   *clihealth.Workers `json:"workers,omitempty" yaml:"workers,omitempty"`
	Detail    []clihealth.Worker `json:"worker_detail,omitempty" yaml:"worker_detail,omitempty"`
	Runs      []journal.Run      `json:"runs,omitempty" yaml:"runs,omitempty"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	format, err := output.ParseFormat(statusOutput)
	if err != nil {
		return err
	}

	// Best effort: without a loadable config the defaults still point at
	// a conventionally configured local instance.
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		cfg = config.GetDefaultConfig()
	}

	addr := statusAddr
	if addr == "" {
		addr = "127.0.0.1:" + strconv.Itoa(cfg.Server.Port)
	}

	status := InstanceStatus{
		Running: false,
		Healthy: false,
		Message: "Instance is not running",
	}

	client := &http.Client{Timeout: 2 * time.Second}
	queryHealth(client, addr, cfg.Health.Path, &status)
	if status.Running {
		queryWorkers(client, addr, cfg.Health.Path, &status)
	}

	if statusRuns > 0 {
		if runs, err := recentRuns(cfg, statusRuns); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: journal unavailable: %v\n", err)
		} else {
			status.Runs = runs
		}
	}

	switch format {
	case output.FormatJSON:
		return output.PrintJSON(os.Stdout, status)
	case output.FormatYAML:
		return output.PrintYAML(os.Stdout, status)
	default:
		return printStatusTable(status)
	}
}

// queryHealth fills the overview fields from the liveness endpoint.
func queryHealth(client *http.Client, addr, healthPath string, status *InstanceStatus) {
	resp, err := client.Get("http://" + addr + healthPath)
	if err != nil {
		return
	}
	defer func() { _ = resp.Body.Close() }()

	var healthResp clihealth.Response
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		status.Running = true
		status.Message = "Instance is running but health response is invalid"
		return
	}

	status.Running = true
	status.Healthy = healthResp.Status == "healthy"
	status.State = healthResp.Data.State
	status.StartedAt = healthResp.Data.StartedAt
	status.Uptime = healthResp.Data.Uptime
	status.Workers = &clihealth.Workers{
		Configured: healthResp.Data.Workers.Configured,
		Running:    healthResp.Data.Workers.Running,
		Restarts:   healthResp.Data.Workers.Restarts,
	}
	if status.Healthy {
		status.Message = "Instance is running and healthy"
	} else {
		status.Message = fmt.Sprintf("Instance is running but unhealthy: %s", healthResp.Error)
	}
}

// queryWorkers fills the per-worker detail from the workers endpoint.
func queryWorkers(client *http.Client, addr, healthPath string, status *InstanceStatus) {
	resp, err := client.Get("http://" + addr + healthPath + "/workers")
	if err != nil {
		return
	}
	defer func() { _ = resp.Body.Close() }()

	var workersResp clihealth.WorkersResponse
	if err := json.NewDecoder(resp.Body).Decode(&workersResp); err != nil {
		return
	}
	status.Detail = workersResp.Data.Workers
}

// recentRuns reads the last N runs from the journal.
func recentRuns(cfg *config.Config, limit int) ([]journal.Run, error) {
	jnl, err := journal.Open(journal.Config{
		Enabled:     true,
		Path:        cfg.Journal.Path,
		DatabaseURL: cfg.Database.URL,
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = jnl.Close() }()

	return jnl.RecentRuns(context.Background(), limit)
}

func printStatusTable(status InstanceStatus) error {
	fmt.Println()
	fmt.Println("Stevedore Instance Status")
	fmt.Println("=========================")
	fmt.Println()

	if status.Running {
		if status.Healthy {
			fmt.Printf("  Status:     \033[32m● Running\033[0m\n")
		} else {
			fmt.Printf("  Status:     \033[33m● Running (unhealthy)\033[0m\n")
		}
		if status.State != "" {
			fmt.Printf("  State:      %s\n", status.State)
		}
		if status.StartedAt != "" {
			fmt.Printf("  Started:    %s\n", timeutil.FormatTime(status.StartedAt))
		}
		if status.Uptime != "" {
			fmt.Printf("  Uptime:     %s\n", timeutil.FormatUptime(status.Uptime))
		}
		if status.Workers != nil {
			fmt.Printf("  Workers:    %d/%d running, %d restarts\n",
				status.Workers.Running, status.Workers.Configured, status.Workers.Restarts)
		}
	} else {
		fmt.Printf("  Status:     \033[31m○ Stopped\033[0m\n")
	}

	fmt.Println()
	fmt.Printf("  %s\n", status.Message)
	fmt.Println()

	if len(status.Detail) > 0 {
		table := output.NewTableData("ID", "STATE", "UPTIME", "RESTARTS", "IN-FLIGHT", "LAST ALIVE")
		for _, w := range status.Detail {
			table.AddRow(
				strconv.Itoa(w.ID),
				w.State,
				timeutil.FormatUptime(w.Uptime),
				strconv.Itoa(w.Restarts),
				strconv.Itoa(w.InFlight),
				timeutil.FormatTime(w.LastAlive),
			)
		}
		if err := output.PrintTable(os.Stdout, table); err != nil {
			return err
		}
		fmt.Println()
	}

	if len(status.Runs) > 0 {
		table := output.NewTableData("RUN", "STARTED", "OUTCOME", "FAILED STEP")
		for _, r := range status.Runs {
			table.AddRow(
				shortID(r.ID),
				r.StartedAt.Format(timeutil.LocalTimeFormat),
				r.Outcome,
				r.FailureStep,
			)
		}
		if err := output.PrintTable(os.Stdout, table); err != nil {
			return err
		}
		fmt.Println()
	}

	return nil
}

// shortID abbreviates a run UUID for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
