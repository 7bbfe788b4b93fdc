package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/onestopradio/stationctl/internal/config"
	"github.com/onestopradio/stationctl/internal/deps"
	"github.com/onestopradio/stationctl/internal/sandbox"
	"github.com/onestopradio/stationctl/internal/toolchain"
)

var depsManifest string

var depsCmd = &cobra.Command{
	Use:   "deps [project-dir]",
	Short: "Install backend dependencies into the sandbox",
	Long: `Resolves the dependency manifest and installs missing or outdated packages
into the project sandbox, creating the sandbox first when needed. Satisfied
requirements are skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDeps,
}

func init() {
	depsCmd.Flags().StringVar(&depsManifest, "manifest", "", "Dependency manifest path (default: requirements.txt)")
}

func runDeps(cmd *cobra.Command, args []string) error {
	dir, err := projectDir(args)
	if err != nil {
		return err
	}
	settings, err := config.Load(dir)
	if err != nil {
		return err
	}
	if depsManifest != "" {
		settings.ManifestPath = depsManifest
	}
	ctx := cmd.Context()

	reqs, err := deps.LoadManifest(settings.ManifestAbsPath())
	if errors.Is(err, os.ErrNotExist) {
		fmt.Printf("Manifest %s missing, using built-in requirements.\n", settings.ManifestAbsPath())
		reqs = deps.Fallback()
	} else if err != nil {
		return err
	}

	info, err := toolchain.NewProber().Detect(ctx)
	if err != nil {
		return err
	}

	fmt.Print("Preparing sandbox... ")
	handle, err := sandbox.NewManager(info.Path).Ensure(ctx, settings.SandboxPath())
	if err != nil {
		fmt.Println("FAILED")
		return err
	}
	fmt.Println("OK")

	env := sandbox.Activate(handle, os.Environ())
	installer := deps.NewInstaller(handle, env, deps.NewPipInventory(handle, env))

	fmt.Printf("Installing %d requirement(s)... ", len(reqs))
	report, err := installer.Install(ctx, reqs)
	if err != nil {
		fmt.Println("FAILED")
	} else {
		fmt.Println("OK")
	}
	fmt.Printf("  installed: %d, already satisfied: %d, failed: %d\n",
		len(report.Installed), len(report.Satisfied), len(report.Failed))

	var resErr *deps.ResolutionError
	if errors.As(err, &resErr) {
		for _, f := range resErr.Failures {
			fmt.Printf("  - %s: %s\n", f.Requirement.Spec(), f.Reason)
		}
	}
	return err
}
