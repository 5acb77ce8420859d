//go:build !windows

package library

import "medialib/pkg/apierror"

// reveal has no equivalent on non-Windows platforms in this repo.
func reveal(nativePath string) error {
	return apierror.New(apierror.BackendUnavailable, "reveal-in-file-manager is not supported on this platform")
}
