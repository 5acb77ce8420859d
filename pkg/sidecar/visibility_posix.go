//go:build !windows

package sidecar

// clearHidden is a no-op on POSIX, where hidden files are just dotfiles and
// carry no attribute that would block an overwrite. It reports wasHidden as
// false unconditionally.
func clearHidden(path string) (wasHidden bool, err error) {
	return false, nil
}

// markHidden is a no-op on POSIX; dotfile naming already keeps the sidecar
// out of casual directory listings.
func markHidden(path string) error {
	return nil
}
