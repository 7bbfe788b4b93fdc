package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/onestopradio/stationctl/internal/sandbox"
)

// PipInventory reads the sandbox's installed package set via the installer
// tool's freeze listing. The listing is fetched once and cached for the run.
type PipInventory struct {
	handle sandbox.Handle
	env    []string
	output func(ctx context.Context, argv []string, env []string) ([]byte, error)

	cached   map[string]string
	attempts int
}

func NewPipInventory(handle sandbox.Handle, env []string) *PipInventory {
	return &PipInventory{handle: handle, env: env, output: runOutput}
}

// NewPipInventoryWithRunner is NewPipInventory with an injected runner.
func NewPipInventoryWithRunner(handle sandbox.Handle, env []string, output func(ctx context.Context, argv []string, env []string) ([]byte, error)) *PipInventory {
	return &PipInventory{handle: handle, env: env, output: output}
}

// InstalledVersion implements Inventory.
func (p *PipInventory) InstalledVersion(ctx context.Context, name string) (string, bool, error) {
	if p.cached == nil {
		if p.attempts > 0 {
			// A failed listing stays failed for this run; don't re-exec per package.
			return "", false, fmt.Errorf("package listing unavailable")
		}
		p.attempts++
		listing, err := p.output(ctx, []string{p.handle.Python, "-m", "pip", "freeze"}, p.env)
		if err != nil {
			return "", false, fmt.Errorf("failed to list installed packages: %w", err)
		}
		p.cached = parseFreeze(listing)
	}
	v, ok := p.cached[normalizeName(name)]
	return v, ok, nil
}

// Invalidate drops the cached listing, e.g. after installs.
func (p *PipInventory) Invalidate() {
	p.cached = nil
	p.attempts = 0
}

// parseFreeze parses "name==version" lines.
func parseFreeze(out []byte) map[string]string {
	installed := make(map[string]string)
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		name, version, ok := strings.Cut(line, "==")
		if !ok || name == "" {
			continue
		}
		installed[normalizeName(name)] = version
	}
	return installed
}

// normalizeName folds case and the underscore/hyphen distinction, matching
// how the package index treats names.
func normalizeName(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", "-"))
}

func runOutput(ctx context.Context, argv []string, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Env = env
	return cmd.Output()
}
