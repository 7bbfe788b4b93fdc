package toolchain

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/onestopradio/stationctl/internal/logging"
)

// ErrNotFound is returned when no compatible interpreter is on the search path.
var ErrNotFound = errors.New("no python interpreter found on PATH")

// Info describes the detected runtime toolchain. It is produced once and
// consumed read-only by every downstream stage.
type Info struct {
	Command string
	Path    string
	Version string
}

// candidates is the probe order. Versioned names come before the generic
// aliases so an explicit python3.x wins when both are installed.
var candidates = []string{
	"python3.13",
	"python3.12",
	"python3.11",
	"python3.10",
	"python3.9",
	"python3",
	"python",
}

// Prober locates the interpreter the sandbox will be built from.
// Probing is read-only: it never mutates the environment.
type Prober struct {
	lookPath func(string) (string, error)
	version  func(ctx context.Context, path string) (string, error)
}

func NewProber() *Prober {
	return &Prober{
		lookPath: exec.LookPath,
		version:  runVersion,
	}
}

// Detect returns the first interpreter found in candidate order.
func (p *Prober) Detect(ctx context.Context) (Info, error) {
	for _, name := range candidates {
		path, err := p.lookPath(name)
		if err != nil {
			continue
		}
		version, err := p.version(ctx, path)
		if err != nil {
			logging.Debug("interpreter did not report a version", "command", name, "error", err)
			continue
		}
		logging.Debug("detected interpreter", "command", name, "path", path, "version", version)
		return Info{Command: name, Path: path, Version: version}, nil
	}
	return Info{}, ErrNotFound
}

// AtLeast reports whether the detected version satisfies a constraint such
// as ">= 3.9". An unparsable reported version counts as not satisfying.
func (i Info) AtLeast(constraint string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, fmt.Errorf("invalid version constraint %q: %w", constraint, err)
	}
	v, err := semver.NewVersion(i.Version)
	if err != nil {
		return false, nil
	}
	return c.Check(v), nil
}

func runVersion(ctx context.Context, path string) (string, error) {
	out, err := exec.CommandContext(ctx, path, "--version").CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("failed to run %s --version: %w", path, err)
	}
	v := parseVersion(string(out))
	if v == "" {
		return "", fmt.Errorf("unrecognized version output %q", strings.TrimSpace(string(out)))
	}
	return v, nil
}

// parseVersion extracts "3.12.1" from output like "Python 3.12.1".
func parseVersion(out string) string {
	fields := strings.Fields(strings.TrimSpace(out))
	if len(fields) == 0 {
		return ""
	}
	last := fields[len(fields)-1]
	if last == "" || last[0] < '0' || last[0] > '9' {
		return ""
	}
	return last
}
