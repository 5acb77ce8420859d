//go:build windows

package pathmodel

import (
	"io"
	"os"

	"golang.org/x/sys/windows"
)

// openShared opens a file for reading. When shared is true, it requests full
// share mode (read, write, and delete) so that the caller's open handle
// never blocks the user from editing, moving, or deleting the file in
// another application while the indexer is reading it.
func openShared(native string, shared bool) (io.ReadCloser, error) {
	if !shared {
		return os.Open(native)
	}

	path16, err := windows.UTF16PtrFromString(native)
	if err != nil {
		return nil, err
	}

	handle, err := windows.CreateFile(
		path16,
		windows.GENERIC_READ,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE|windows.FILE_SHARE_DELETE,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		return nil, err
	}

	return os.NewFile(uintptr(handle), native), nil
}
