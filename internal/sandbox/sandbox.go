package sandbox

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/onestopradio/stationctl/internal/logging"
)

// Handle describes an ensured sandbox. It is owned by the bootstrap run and
// never shared outside the process.
type Handle struct {
	Root    string
	BinDir  string
	Python  string
	Created bool // false when an existing sandbox was reused
}

// CreateError reports a failed sandbox creation. It is fatal to the run.
type CreateError struct {
	Root string
	Err  error
}

func (e *CreateError) Error() string {
	return fmt.Sprintf("failed to create sandbox at %s: %v", e.Root, e.Err)
}

func (e *CreateError) Unwrap() error { return e.Err }

// CommandFunc runs a command to completion; swapped out in tests.
type CommandFunc func(ctx context.Context, name string, args ...string) error

// Manager creates and reuses isolated dependency sandboxes built from a
// detected interpreter.
type Manager struct {
	python string
	run    CommandFunc
}

func NewManager(python string) *Manager {
	return &Manager{python: python, run: runCommand}
}

// NewManagerWithRunner is NewManager with an injected command runner.
func NewManagerWithRunner(python string, run CommandFunc) *Manager {
	return &Manager{python: python, run: run}
}

// Ensure returns a handle for the sandbox at root, creating it when absent.
// An existing sandbox (detected by its pyvenv.cfg marker) is reused as-is.
func (m *Manager) Ensure(ctx context.Context, root string) (Handle, error) {
	h := Handle{
		Root:   root,
		BinDir: filepath.Join(root, "bin"),
		Python: filepath.Join(root, "bin", "python"),
	}

	marker := filepath.Join(root, "pyvenv.cfg")
	if _, err := os.Stat(marker); err == nil {
		logging.Debug("reusing existing sandbox", "root", root)
		return h, nil
	}

	if err := os.MkdirAll(filepath.Dir(root), 0755); err != nil {
		return Handle{}, &CreateError{Root: root, Err: err}
	}
	logging.Info("creating sandbox", "root", root, "python", m.python)
	if err := m.run(ctx, m.python, "-m", "venv", root); err != nil {
		return Handle{}, &CreateError{Root: root, Err: err}
	}

	h.Created = true
	return h, nil
}

// Activate returns base with the sandbox layered on: VIRTUAL_ENV set, the
// sandbox bin directory first on PATH, PYTHONHOME dropped. Activating an
// already-activated environment returns the same result.
func Activate(h Handle, base []string) []string {
	out := make([]string, 0, len(base)+2)
	pathSeen := false
	for _, kv := range base {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			out = append(out, kv)
			continue
		}
		switch key {
		case "VIRTUAL_ENV", "PYTHONHOME":
			// replaced or dropped below
		case "PATH":
			pathSeen = true
			out = append(out, "PATH="+prependPath(h.BinDir, value))
		default:
			out = append(out, kv)
		}
	}
	if !pathSeen {
		out = append(out, "PATH="+h.BinDir)
	}
	out = append(out, "VIRTUAL_ENV="+h.Root)
	return out
}

func prependPath(binDir, path string) string {
	if path == binDir || strings.HasPrefix(path, binDir+string(os.PathListSeparator)) {
		return path
	}
	return binDir + string(os.PathListSeparator) + path
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return nil
}
