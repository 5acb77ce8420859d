//go:build windows

package library

import (
	"os/exec"
	"strings"

	"medialib/pkg/apierror"
)

// reveal shells out to explorer.exe /select, mirroring the original
// application's Windows-only reveal-in-file-manager behavior. explorer.exe
// only understands backslash-separated paths.
func reveal(nativePath string) error {
	windowsPath := strings.ReplaceAll(nativePath, "/", "\\")
	cmd := exec.Command("explorer.exe", "/select,", windowsPath)
	// explorer.exe always exits nonzero even on success; the launch itself
	// succeeding is all that can be checked here.
	if err := cmd.Start(); err != nil {
		return apierror.Wrap(apierror.BackendUnavailable, "unable to launch explorer.exe", err)
	}
	_ = cmd.Wait()
	return nil
}
