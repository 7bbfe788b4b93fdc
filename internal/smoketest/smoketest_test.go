package smoketest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// sleeperCommand launches a shell that records its pid and then idles,
// standing in for a service that binds but must still be torn down.
func sleeperCommand(t *testing.T) (Command, string) {
	t.Helper()
	pidFile := filepath.Join(t.TempDir(), "pid")
	cmd := Command{
		Argv: []string{"/bin/sh", "-c", "echo $$ > " + pidFile + "; sleep 60"},
	}
	return cmd, pidFile
}

func readPid(t *testing.T, pidFile string) int {
	t.Helper()
	raw, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	require.NoError(t, err)
	return pid
}

func assertReaped(t *testing.T, pid int) {
	t.Helper()
	// Signal 0 only checks existence. The process group leader was the
	// direct child, so once reaped the pid must be gone.
	require.Eventually(t, func() bool {
		return unix.Kill(pid, 0) == unix.ESRCH
	}, 2*time.Second, 10*time.Millisecond, "service process %d still alive", pid)
}

func TestRun_Reachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	cmd, pidFile := sleeperCommand(t)
	probe := Probe{URL: srv.URL + "/health", Timeout: time.Second, ExpectedStatus: http.StatusOK}

	res, err := Run(context.Background(), cmd, probe, 100*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, res.Reachable)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	assertReaped(t, readPid(t, pidFile))
}

func TestRun_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cmd, pidFile := sleeperCommand(t)
	probe := Probe{URL: srv.URL + "/health", Timeout: time.Second, ExpectedStatus: http.StatusOK}

	res, err := Run(context.Background(), cmd, probe, 100*time.Millisecond)
	require.ErrorIs(t, err, ErrUnreachable)
	assert.False(t, res.Reachable)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	assertReaped(t, readPid(t, pidFile))
}

func TestRun_BindsButNeverResponds(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(time.Second)
	}))
	defer srv.Close()

	cmd, pidFile := sleeperCommand(t)
	probe := Probe{URL: srv.URL + "/health", Timeout: 50 * time.Millisecond, ExpectedStatus: http.StatusOK}

	_, err := Run(context.Background(), cmd, probe, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrUnreachable)

	assertReaped(t, readPid(t, pidFile))
}

func TestRun_NothingListening(t *testing.T) {
	cmd, pidFile := sleeperCommand(t)
	probe := Probe{URL: "http://127.0.0.1:1/health", Timeout: 100 * time.Millisecond, ExpectedStatus: http.StatusOK}

	res, err := Run(context.Background(), cmd, probe, 50*time.Millisecond)
	require.ErrorIs(t, err, ErrUnreachable)
	assert.False(t, res.Reachable)

	assertReaped(t, readPid(t, pidFile))
}

func TestRun_CancelledDuringGrace(t *testing.T) {
	cmd, pidFile := sleeperCommand(t)
	probe := Probe{URL: "http://127.0.0.1:1/health", Timeout: time.Second, ExpectedStatus: http.StatusOK}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Run(ctx, cmd, probe, 10*time.Second)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	assertReaped(t, readPid(t, pidFile))
}

func TestRun_EmptyCommand(t *testing.T) {
	_, err := Run(context.Background(), Command{}, Probe{}, time.Millisecond)
	require.Error(t, err)
}

func TestRun_StartFailure(t *testing.T) {
	cmd := Command{Argv: []string{filepath.Join(t.TempDir(), "no-such-binary")}}
	_, err := Run(context.Background(), cmd, Probe{}, time.Millisecond)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnreachable)
}

func TestTerminate_EscalatesToKill(t *testing.T) {
	// Trap TERM so only the KILL escalation can end the process.
	proc := exec.Command("/bin/sh", "-c", "trap '' TERM; sleep 60")
	proc.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	require.NoError(t, proc.Start())
	pid := proc.Process.Pid

	start := time.Now()
	terminate(proc, 100*time.Millisecond)

	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
	assertReaped(t, pid)
}
