//go:build unix

package fsutil

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Lock takes an exclusive advisory lock on path so that separate processes
// sharing a data file serialize their writes. Call the returned func to unlock.
func Lock(path string) (func() error, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}
	fd := int(f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	return func() error {
		if err := unix.Flock(fd, unix.LOCK_UN); err != nil {
			f.Close()
			return fmt.Errorf("unlocking %s: %w", path, err)
		}
		return f.Close()
	}, nil
}
