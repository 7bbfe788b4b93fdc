package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/onestopradio/stationctl/internal/config"
	"github.com/onestopradio/stationctl/internal/pipeline"
)

var upSkipSmoke bool

var upCmd = &cobra.Command{
	Use:   "up [project-dir]",
	Short: "Bootstrap the backend end to end",
	Long: `Runs the full pipeline against a project checkout: interpreter detection,
sandbox, dependencies, configuration, migrations and smoke test.

The command is idempotent: a second run on a healthy checkout installs
nothing, rewrites nothing and applies no migration steps.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUp,
}

func init() {
	upCmd.Flags().BoolVar(&upSkipSmoke, "skip-smoke", false, "Skip the smoke test stage")
}

func runUp(cmd *cobra.Command, args []string) error {
	dir, err := projectDir(args)
	if err != nil {
		return err
	}
	settings, err := config.Load(dir)
	if err != nil {
		return err
	}
	if upSkipSmoke {
		settings.SkipSmoke = true
	}

	lock := pipeline.NewRunLock(dir)
	if err := lock.Acquire(); err != nil {
		return err
	}
	defer lock.Release()

	run := pipeline.NewRun(settings)
	runner := &pipeline.Runner{Callback: printProgress}

	fmt.Printf("Bootstrapping %s (run %s)\n\n", dir, run.ID)
	report, err := runner.Execute(cmd.Context(), run, pipeline.Bootstrap())
	renderSummary(report)
	if err != nil {
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	if run.Probe.Reachable {
		fmt.Printf("\nService is up: %s answered %d.\n", settings.ProbeURL(), run.Probe.StatusCode)
	}
	fmt.Printf("Done in %s.\n", roundDuration(report.Duration))
	return nil
}
