package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/onestopradio/stationctl/internal/logging"
	"github.com/onestopradio/stationctl/internal/sandbox"
)

// Failure records one requirement the installer could not resolve.
type Failure struct {
	Requirement Requirement
	Reason      string
}

// ResolutionError aggregates failed requirements. It is surfaced but
// non-fatal: the pipeline records it as a warning and continues.
type ResolutionError struct {
	Failures []Failure
}

func (e *ResolutionError) Error() string {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.Requirement.Name
	}
	return fmt.Sprintf("failed to resolve %d package(s): %s", len(e.Failures), strings.Join(names, ", "))
}

// Report summarizes an install pass. Satisfied requirements were already
// present at an acceptable version and were not touched.
type Report struct {
	Installed []Requirement
	Satisfied []Requirement
	Failed    []Failure
}

// Inventory answers what is already installed in the sandbox.
type Inventory interface {
	InstalledVersion(ctx context.Context, name string) (version string, found bool, err error)
}

// RunFunc executes an installer command to completion.
type RunFunc func(ctx context.Context, argv []string, env []string) error

// Installer installs declared requirements into a sandbox, idempotently:
// requirements the inventory already satisfies are skipped.
type Installer struct {
	handle sandbox.Handle
	env    []string
	inv    Inventory
	run    RunFunc
	retry  *RetryPolicy
}

func NewInstaller(handle sandbox.Handle, env []string, inv Inventory) *Installer {
	return &Installer{
		handle: handle,
		env:    env,
		inv:    inv,
		run:    runPip,
		retry:  DefaultRetryPolicy(),
	}
}

// NewInstallerWithRunner is NewInstaller with an injected command runner.
func NewInstallerWithRunner(handle sandbox.Handle, env []string, inv Inventory, run RunFunc) *Installer {
	return &Installer{handle: handle, env: env, inv: inv, run: run, retry: DefaultRetryPolicy()}
}

// Install upgrades the installer tool itself, then installs each unsatisfied
// requirement in manifest order. The report is always returned; a
// *ResolutionError accompanies it when any requirement failed.
func (i *Installer) Install(ctx context.Context, reqs []Requirement) (Report, error) {
	var report Report

	if err := i.pip(ctx, "install", "--upgrade", "pip"); err != nil {
		logging.Warn("failed to upgrade pip, continuing with bundled version", "error", err)
	}

	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("install cancelled: %w", err)
		}

		version, found, err := i.inv.InstalledVersion(ctx, req.Name)
		if err != nil {
			logging.Debug("inventory lookup failed, forcing install", "package", req.Name, "error", err)
		}
		if err == nil && found && req.Satisfies(version) {
			logging.Debug("requirement already satisfied", "package", req.Name, "installed", version)
			report.Satisfied = append(report.Satisfied, req)
			continue
		}

		if err := i.pip(ctx, "install", req.Spec()); err != nil {
			logging.Warn("failed to install package", "package", req.Name, "error", err)
			report.Failed = append(report.Failed, Failure{Requirement: req, Reason: err.Error()})
			continue
		}
		report.Installed = append(report.Installed, req)
	}

	if len(report.Failed) > 0 {
		return report, &ResolutionError{Failures: report.Failed}
	}
	return report, nil
}

func (i *Installer) pip(ctx context.Context, args ...string) error {
	argv := append([]string{i.handle.Python, "-m", "pip"}, args...)
	return retryWithBackoff(ctx, i.retry, func() error {
		return i.run(ctx, argv, i.env)
	}, isTransientInstallError)
}

func runPip(ctx context.Context, argv []string, env []string) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = env
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", strings.Join(argv, " "), err, lastLine(out))
	}
	return nil
}

// lastLine extracts the final non-empty output line, which is where pip
// reports its actual error.
func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(lines[i]); line != "" {
			return line
		}
	}
	return ""
}
