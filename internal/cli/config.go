package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/onestopradio/stationctl/internal/config"
	"github.com/onestopradio/stationctl/internal/envfile"
)

var (
	configReveal   bool
	configMaxLines int
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the backend configuration file",
}

var configShowCmd = &cobra.Command{
	Use:   "show [project-dir]",
	Short: "Print the configuration file, secrets redacted",
	Long: `Prints the backend .env file. Values whose keys look like secrets are
masked; pass --reveal to print them verbatim.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigShow,
}

func init() {
	configShowCmd.Flags().BoolVar(&configReveal, "reveal", false, "Print secret values instead of masking them")
	configShowCmd.Flags().IntVar(&configMaxLines, "max-lines", 0, "Limit output to the first N entries (0 = all)")
	configCmd.AddCommand(configShowCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	dir, err := projectDir(args)
	if err != nil {
		return err
	}
	settings, err := config.Load(dir)
	if err != nil {
		return err
	}

	snap, err := envfile.Load(settings.EnvFileAbsPath())
	if err != nil {
		return err
	}

	if configReveal {
		for _, e := range snap.Entries {
			fmt.Printf("%s=%s\n", e.Key, e.Value)
		}
		return nil
	}
	fmt.Print(envfile.Redacted(snap, configMaxLines))
	return nil
}
