//go:build !windows

package pathmodel

import (
	"io"
	"os"
)

// openShared opens a file for reading. On POSIX systems a plain open
// already permits concurrent readers, writers, and unlinkers, so shared has
// no additional effect here; the parameter exists to keep the call site
// platform-independent (see open_windows.go for the platform where it
// matters).
func openShared(native string, shared bool) (io.ReadCloser, error) {
	return os.Open(native)
}
