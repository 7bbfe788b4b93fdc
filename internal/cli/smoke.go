package cli

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/onestopradio/stationctl/internal/config"
	"github.com/onestopradio/stationctl/internal/envfile"
	"github.com/onestopradio/stationctl/internal/sandbox"
	"github.com/onestopradio/stationctl/internal/smoketest"
	"github.com/onestopradio/stationctl/internal/toolchain"
)

var smokeCmd = &cobra.Command{
	Use:   "smoke [project-dir]",
	Short: "Launch the backend and probe its health endpoint",
	Long: `Starts the service from an already bootstrapped checkout, performs one GET
against the health endpoint and tears the process tree down again. The
sandbox and configuration file must already exist (run ` + "`stationctl up`" + ` first).`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSmoke,
}

func runSmoke(cmd *cobra.Command, args []string) error {
	dir, err := projectDir(args)
	if err != nil {
		return err
	}
	settings, err := config.Load(dir)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	info, err := toolchain.NewProber().Detect(ctx)
	if err != nil {
		return err
	}
	handle, err := sandbox.NewManager(info.Path).Ensure(ctx, settings.SandboxPath())
	if err != nil {
		return err
	}
	snap, err := envfile.Load(settings.EnvFileAbsPath())
	if err != nil {
		return fmt.Errorf("configuration missing, run `stationctl up` first: %w", err)
	}

	env := append(sandbox.Activate(handle, os.Environ()), envfile.Env(snap)...)
	command := smoketest.Command{
		Argv: settings.ServiceCommand(handle.Python),
		Dir:  settings.ProjectDir,
		Env:  env,
	}
	probe := smoketest.Probe{
		URL:            settings.ProbeURL(),
		Timeout:        settings.ProbeTimeout.Std(),
		ExpectedStatus: http.StatusOK,
	}

	fmt.Printf("Probing %s... ", probe.URL)
	res, err := smoketest.Run(ctx, command, probe, settings.GracePeriod.Std())
	if err != nil {
		fmt.Println("FAILED")
		return err
	}
	fmt.Printf("OK (%d)\n", res.StatusCode)
	return nil
}
