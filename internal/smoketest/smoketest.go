// Package smoketest starts the freshly bootstrapped service, probes its
// health endpoint once, and guarantees the process tree is torn down.
package smoketest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/onestopradio/stationctl/internal/logging"
)

// ErrUnreachable classifies a service that started but never answered the
// probe. Callers treat it as a warning, not a failure.
var ErrUnreachable = errors.New("service did not answer health probe")

// Command describes the service to launch.
type Command struct {
	Argv []string
	Dir  string
	Env  []string
}

// Probe describes the single health check performed after launch.
type Probe struct {
	URL            string
	Timeout        time.Duration
	ExpectedStatus int
}

// Result reports what the probe observed.
type Result struct {
	Reachable  bool
	StatusCode int
}

// Run launches cmd in its own process group, waits grace for it to bind,
// performs one GET against the probe URL, and tears the whole group down
// before returning. Teardown runs on every exit path. An unreachable
// service yields ErrUnreachable.
func Run(ctx context.Context, cmd Command, probe Probe, grace time.Duration) (Result, error) {
	if len(cmd.Argv) == 0 {
		return Result{}, errors.New("no service command configured")
	}

	proc := exec.Command(cmd.Argv[0], cmd.Argv[1:]...)
	proc.Dir = cmd.Dir
	proc.Env = cmd.Env
	proc.Stdout = os.Stderr
	proc.Stderr = os.Stderr
	// Own process group so teardown reaches uvicorn's worker children too.
	proc.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := proc.Start(); err != nil {
		return Result{}, fmt.Errorf("failed to start service: %w", err)
	}
	defer terminate(proc, grace)

	logging.Debug("service started", "pid", proc.Process.Pid, "argv", cmd.Argv)

	select {
	case <-time.After(grace):
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}

	status, err := get(ctx, probe)
	if err != nil {
		logging.Warn("health probe failed", "url", probe.URL, "error", err)
		return Result{}, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	res := Result{Reachable: status == probe.ExpectedStatus, StatusCode: status}
	if !res.Reachable {
		return res, fmt.Errorf("%w: unexpected status %d", ErrUnreachable, status)
	}
	return res, nil
}

func get(ctx context.Context, probe Probe) (int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, probe.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, probe.URL, nil)
	if err != nil {
		return 0, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode, nil
}

// terminate stops the service's entire process group: SIGTERM first, then
// SIGKILL once the grace window expires, then reap.
func terminate(proc *exec.Cmd, grace time.Duration) {
	if proc.Process == nil {
		return
	}
	pgid := proc.Process.Pid

	_ = unix.Kill(-pgid, unix.SIGTERM)

	done := make(chan struct{})
	go func() {
		_ = proc.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(grace):
		logging.Warn("service ignored SIGTERM, escalating", "pgid", pgid)
		_ = unix.Kill(-pgid, unix.SIGKILL)
		<-done
	}
}
