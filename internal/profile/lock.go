package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/conn-castle/modlayer/internal/messages"
)

var flockFn = unix.Flock
var lockSleep = time.Sleep

var (
	lockWaitTimeout = 30 * time.Second
	lockPollEvery   = 100 * time.Millisecond
)

// withFileLock holds an exclusive advisory lock on path while fn runs, so two
// ml processes never interleave a read-modify-write of the same store.
func withFileLock(path string, fn func() error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf(messages.FSCreateDirFmt, dir, err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf(messages.LockOpenFmt, path, err)
	}
	defer func() {
		_ = file.Close()
	}()
	fd := int(file.Fd())
	if err := waitForLock(fd); err != nil {
		return fmt.Errorf(messages.LockAcquireFmt, path, err)
	}
	defer func() {
		_ = flockFn(fd, unix.LOCK_UN)
	}()
	return fn()
}

// waitForLock polls a non-blocking flock until it succeeds or
// lockWaitTimeout passes. Errors other than contention return at once.
func waitForLock(fd int) error {
	deadline := time.Now().Add(lockWaitTimeout)
	for {
		err := flockFn(fd, unix.LOCK_EX|unix.LOCK_NB)
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, unix.EWOULDBLOCK) && !errors.Is(err, unix.EAGAIN):
			return err
		case time.Now().After(deadline):
			return fmt.Errorf(messages.LockTimeoutFmt, lockWaitTimeout)
		}
		lockSleep(lockPollEvery)
	}
}
