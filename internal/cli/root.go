package cli

import (
	"github.com/spf13/cobra"

	"github.com/onestopradio/stationctl/internal/logging"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "stationctl",
	Short: "Declarative bootstrap for the OneStopRadio backend",
	Long: `Stationctl brings a OneStopRadio backend checkout from a bare clone to a
running, verified service with one command.

It drives a fixed pipeline:
  • Interpreter detection
  • Sandbox (virtualenv) creation and reuse
  • Dependency installation from requirements.txt
  • Configuration (.env) materialization
  • Database schema migration
  • Smoke test against the health endpoint`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(logLevel)
	},
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(doctorCmd)
	rootCmd.AddCommand(depsCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(smokeCmd)
	rootCmd.AddCommand(versionCmd)
}
