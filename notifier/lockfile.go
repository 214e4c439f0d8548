package notifier

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"
)

const lockFileName = "gmail-notifier.lock"

// ErrAlreadyRunning is returned when another live instance holds the lock.
var ErrAlreadyRunning = errors.New("another instance of gmail-notifier seems to be running")

// AcquireLock takes the single-instance pid lock.  A lock held by a dead
// process is considered stale and is taken over; force skips the liveness
// check entirely.  The returned release function removes the lock.
func AcquireLock(force bool) (func(), error) {
	path := filepath.Join(os.TempDir(), lockFileName)

	if force {
		_ = os.Remove(path)
	}

	release, err := tryLock(path)
	if err == nil {
		return release, nil
	}
	if !os.IsExist(errors.UnwrapAll(err)) {
		return nil, err
	}

	if lockHolderAlive(path) {
		return nil, ErrAlreadyRunning
	}

	// Stale lock from a dead process.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, errors.WithStack(err)
	}
	return tryLock(path)
}

func tryLock(path string) (func(), error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
	cerr := f.Close()
	if err := appendError(werr, cerr); err != nil {
		_ = os.Remove(path)
		return nil, errors.WithStack(err)
	}

	return func() {
		_ = os.Remove(path)
	}, nil
}

// lockHolderAlive reports whether the pid recorded in the lock file still
// names a running process.  An unreadable file counts as alive; better to
// refuse startup than to fight a live instance.
func lockHolderAlive(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return true
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return true
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
