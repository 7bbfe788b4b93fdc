package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/onestopradio/stationctl/internal/deps"
	"github.com/onestopradio/stationctl/internal/envfile"
	"github.com/onestopradio/stationctl/internal/logging"
	"github.com/onestopradio/stationctl/internal/migrate"
	"github.com/onestopradio/stationctl/internal/sandbox"
	"github.com/onestopradio/stationctl/internal/smoketest"
	"github.com/onestopradio/stationctl/internal/toolchain"
)

// Bootstrap returns the full stage sequence for `stationctl up`. Order is
// fixed: each stage consumes what the previous ones put on the Run.
func Bootstrap() []Stage {
	return []Stage{
		NewStage("toolchain", true, probeToolchain),
		NewStage("sandbox", true, ensureSandbox),
		NewStage("dependencies", false, installDependencies),
		NewStage("configuration", true, materializeConfig),
		NewStage("migrations", true, upgradeStore),
		NewStage("smoke-test", false, runSmokeTest),
	}
}

// minInterpreter is the oldest interpreter the backend supports.
const minInterpreter = ">= 3.9"

func probeToolchain(ctx context.Context, run *Run) error {
	info, err := toolchain.NewProber().Detect(ctx)
	if err != nil {
		return err
	}
	if ok, err := info.AtLeast(minInterpreter); err != nil {
		return err
	} else if !ok {
		return fmt.Errorf("interpreter %s %s is too old, need %s", info.Command, info.Version, minInterpreter)
	}
	run.Toolchain = info
	logging.Info("interpreter detected", "command", info.Command, "version", info.Version)
	return nil
}

func ensureSandbox(ctx context.Context, run *Run) error {
	mgr := sandbox.NewManager(run.Toolchain.Path)
	handle, err := mgr.Ensure(ctx, run.Settings.SandboxPath())
	if err != nil {
		return err
	}
	run.Sandbox = handle
	run.SandboxEnv = sandbox.Activate(handle, os.Environ())
	return nil
}

// installDependencies is non-fatal: individual resolution failures degrade
// the run to a warning so later stages still execute.
func installDependencies(ctx context.Context, run *Run) error {
	reqs, err := deps.LoadManifest(run.Settings.ManifestAbsPath())
	if errors.Is(err, os.ErrNotExist) {
		logging.Warn("manifest missing, using built-in requirements", "path", run.Settings.ManifestAbsPath())
		reqs = deps.Fallback()
	} else if err != nil {
		return err
	}

	inv := deps.NewPipInventory(run.Sandbox, run.SandboxEnv)
	installer := deps.NewInstaller(run.Sandbox, run.SandboxEnv, inv)
	report, err := installer.Install(ctx, reqs)
	run.Install = report
	return err
}

func materializeConfig(ctx context.Context, run *Run) error {
	snap, err := envfile.Ensure(run.Settings.EnvFileAbsPath())
	if err != nil {
		return err
	}
	run.EnvFile = snap
	if snap.WasCreated {
		logging.Info("configuration file created", "path", snap.Path)
	}
	return nil
}

func upgradeStore(ctx context.Context, run *Run) error {
	store, err := migrate.Open(run.Settings.ResolvedDatabaseURL())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Ping(ctx); err != nil {
		return err
	}
	applied, err := store.Upgrade(ctx)
	run.Applied = applied
	return err
}

func runSmokeTest(ctx context.Context, run *Run) error {
	if run.Settings.SkipSmoke {
		logging.Info("smoke test skipped by settings")
		return nil
	}

	cmd := smoketest.Command{
		Argv: run.Settings.ServiceCommand(run.Sandbox.Python),
		Dir:  run.Settings.ProjectDir,
		Env:  append(append([]string{}, run.SandboxEnv...), envfile.Env(run.EnvFile)...),
	}
	probe := smoketest.Probe{
		URL:            run.Settings.ProbeURL(),
		Timeout:        run.Settings.ProbeTimeout.Std(),
		ExpectedStatus: 200,
	}

	res, err := smoketest.Run(ctx, cmd, probe, run.Settings.GracePeriod.Std())
	run.Probe = res
	if err != nil {
		return err
	}
	logging.Info("service answered health probe",
		"url", probe.URL, "status", res.StatusCode, "after", time.Since(run.StartedAt))
	return nil
}
