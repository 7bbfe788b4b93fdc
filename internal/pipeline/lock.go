package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// staleAfter is how old a lock file must be before another run may take it
// over, covering crashed runs that never unlocked.
const staleAfter = 10 * time.Minute

// RunLock serializes bootstrap runs against one project directory.
type RunLock struct {
	path string
}

// NewRunLock returns the lock guarding projectDir.
func NewRunLock(projectDir string) *RunLock {
	return &RunLock{path: filepath.Join(projectDir, ".stationctl.lock")}
}

// Acquire takes the lock, stealing it when the holder looks dead.
func (l *RunLock) Acquire() error {
	if info, err := os.Stat(l.path); err == nil {
		if time.Since(info.ModTime()) > staleAfter {
			_ = os.Remove(l.path)
		} else {
			return fmt.Errorf("project is locked by another run (lock file: %s). "+
				"If this is an error, remove the lock file manually", l.path)
		}
	}

	content := fmt.Sprintf("pid=%d\ntime=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(l.path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	return nil
}

// Release drops the lock. Releasing an unheld lock is not an error.
func (l *RunLock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	return nil
}
