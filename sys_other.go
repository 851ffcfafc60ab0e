//go:build !darwin && !dragonfly && !freebsd && !linux && !netbsd && !openbsd && !solaris
// +build !darwin,!dragonfly,!freebsd,!linux,!netbsd,!openbsd,!solaris

package streamer

import "os"

// no advisory locking on this platform. the single-writer-per-file contract
// is the caller's responsibility here.
func lockFile(_file *os.File) error { return nil }

func unlockFile(_file *os.File) error { return nil }
