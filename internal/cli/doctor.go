package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/onestopradio/stationctl/internal/config"
	"github.com/onestopradio/stationctl/internal/deps"
	"github.com/onestopradio/stationctl/internal/envfile"
	"github.com/onestopradio/stationctl/internal/migrate"
	"github.com/onestopradio/stationctl/internal/toolchain"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor [project-dir]",
	Short: "Check the checkout without changing it",
	Long: `Runs read-only diagnostics: interpreter availability, sandbox presence,
manifest parse, configuration file and migration store reachability.
Nothing is created, installed or migrated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDoctor,
}

type check struct {
	id string
	ok bool
	// advisory: a failed check that does not fail doctor overall.
	advisory bool
	message  string
}

func runDoctor(cmd *cobra.Command, args []string) error {
	dir, err := projectDir(args)
	if err != nil {
		return err
	}
	settings, err := config.Load(dir)
	if err != nil {
		return err
	}

	checks := runChecks(cmd.Context(), settings)

	healthy := true
	for _, c := range checks {
		status := "OK"
		if !c.ok {
			if c.advisory {
				status = "WARN"
			} else {
				status = "FAILED"
				healthy = false
			}
		}
		if c.message != "" {
			fmt.Printf("  %-18s %-7s %s\n", c.id, status, c.message)
		} else {
			fmt.Printf("  %-18s %s\n", c.id, status)
		}
	}

	if !healthy {
		return fmt.Errorf("doctor found problems in %s", dir)
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

func runChecks(ctx context.Context, settings *config.Settings) []check {
	var checks []check

	info, err := toolchain.NewProber().Detect(ctx)
	switch {
	case err != nil:
		checks = append(checks, check{id: "interpreter", message: err.Error()})
	default:
		ok, verr := info.AtLeast(">= 3.9")
		if verr == nil && !ok {
			checks = append(checks, check{id: "interpreter", message: fmt.Sprintf("%s %s is too old, need >= 3.9", info.Command, info.Version)})
		} else {
			checks = append(checks, check{id: "interpreter", ok: true, message: fmt.Sprintf("%s %s", info.Command, info.Version)})
		}
	}

	// Sandbox presence is advisory: `up` creates it on demand.
	marker := filepath.Join(settings.SandboxPath(), "pyvenv.cfg")
	if _, err := os.Stat(marker); err != nil {
		checks = append(checks, check{id: "sandbox", advisory: true, message: "not created yet (run `stationctl up`)"})
	} else {
		checks = append(checks, check{id: "sandbox", ok: true, message: settings.SandboxPath()})
	}

	reqs, err := deps.LoadManifest(settings.ManifestAbsPath())
	switch {
	case os.IsNotExist(err):
		checks = append(checks, check{id: "manifest", ok: true, message: "missing, built-in requirements apply"})
	case err != nil:
		checks = append(checks, check{id: "manifest", message: err.Error()})
	default:
		checks = append(checks, check{id: "manifest", ok: true, message: fmt.Sprintf("%d requirement(s)", len(reqs))})
	}

	if _, err := os.Stat(settings.EnvFileAbsPath()); err != nil {
		checks = append(checks, check{id: "configuration", advisory: true, message: "missing (created on first up)"})
	} else if _, err := envfile.Load(settings.EnvFileAbsPath()); err != nil {
		checks = append(checks, check{id: "configuration", message: err.Error()})
	} else {
		checks = append(checks, check{id: "configuration", ok: true, message: settings.EnvFileAbsPath()})
	}

	store, err := migrate.Open(settings.ResolvedDatabaseURL())
	if err != nil {
		checks = append(checks, check{id: "migration-store", message: err.Error()})
		return checks
	}
	defer store.Close()

	if err := store.Ping(ctx); err != nil {
		checks = append(checks, check{id: "migration-store", message: err.Error()})
		return checks
	}
	state, err := store.Current(ctx)
	if err != nil {
		checks = append(checks, check{id: "migration-store", message: err.Error()})
		return checks
	}
	checks = append(checks, check{id: "migration-store", ok: true, message: state.String()})
	return checks
}
