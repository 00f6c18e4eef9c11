// Package instance enforces single-instance ownership of a data directory.
package instance

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/flock"
)

// LockFileName is the lock file created inside the data directory.
const LockFileName = "mapd_server_pid.lck"

// ErrAlreadyRunning is returned when another server process holds the lock.
var ErrAlreadyRunning = errors.New("data directory is locked by another server instance")

// Lock is a held, process-lifetime claim on a data directory. It is released
// automatically when the process exits; Release exists for tests.
type Lock struct {
	fl   *flock.Flock
	path string
}

// Acquire takes a non-blocking exclusive lock on the PID file inside dataPath,
// creating the file if absent, and rewrites it with the current process id.
func Acquire(dataPath string) (*Lock, error) {
	path := filepath.Join(dataPath, LockFileName)

	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("open PID file %s: %w", path, err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}

	pid := strconv.Itoa(os.Getpid())
	if err := os.WriteFile(path, []byte(pid), 0o644); err != nil {
		fl.Unlock()
		return nil, fmt.Errorf("write PID file %s: %w", path, err)
	}

	return &Lock{fl: fl, path: path}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string { return l.path }

// Release drops the lock. The server never calls this: process exit releases
// the lock, and shutdown is abrupt.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}
