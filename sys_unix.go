//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris
// +build darwin dragonfly freebsd linux netbsd openbsd solaris

package streamer

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// lockFile takes an exclusive advisory lock on the log file. the lock backs
// the single-writer-per-file contract; a second writer fails fast instead of
// corrupting the log.
func lockFile(_file *os.File) error {
	if err := unix.Flock(int(_file.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return WriteLockErr
		}
		return err
	}
	return nil
}

func unlockFile(_file *os.File) error {
	return unix.Flock(int(_file.Fd()), unix.LOCK_UN)
}
