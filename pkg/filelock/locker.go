// Package filelock provides a single-instance advisory file lock, used to
// guard each Library's FileIndex database against a second server process
// opening it concurrently.
package filelock

import (
	"os"

	"github.com/pkg/errors"
)

// Locker locks a single file on disk. The lock is held for the lifetime of
// the underlying file descriptor and is automatically released if the
// owning process dies, making it safe as a crash-tolerant single-instance
// guard.
type Locker struct {
	file *os.File
}

// NewLocker opens (creating if necessary) the file at path and returns a
// Locker for it, in an unlocked state.
func NewLocker(path string, permissions os.FileMode) (*Locker, error) {
	mode := os.O_RDWR | os.O_CREATE | os.O_APPEND
	file, err := os.OpenFile(path, mode, permissions)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open lock file")
	}
	return &Locker{file: file}, nil
}

// Close releases the underlying file descriptor without explicitly
// unlocking; the lock is released by the OS as soon as the descriptor is
// closed.
func (l *Locker) Close() error {
	return l.file.Close()
}
