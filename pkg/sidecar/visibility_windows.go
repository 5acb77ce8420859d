//go:build windows

package sidecar

import (
	"fmt"
	"os"
	"syscall"
)

// clearHidden removes the hidden attribute from path, if present, reporting
// whether it was set beforehand so the caller can restore it after
// overwriting the file. A missing file is not an error: the attribute simply
// doesn't need clearing.
func clearHidden(path string) (wasHidden bool, err error) {
	path16, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return false, fmt.Errorf("unable to convert path encoding: %w", err)
	}

	attributes, err := syscall.GetFileAttributes(path16)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("unable to get file attributes: %w", err)
	}

	wasHidden = attributes&syscall.FILE_ATTRIBUTE_HIDDEN != 0
	if !wasHidden {
		return false, nil
	}

	if err := syscall.SetFileAttributes(path16, attributes&^syscall.FILE_ATTRIBUTE_HIDDEN); err != nil {
		return true, fmt.Errorf("unable to clear hidden attribute: %w", err)
	}

	return true, nil
}

// markHidden sets the hidden attribute on path.
func markHidden(path string) error {
	path16, err := syscall.UTF16PtrFromString(path)
	if err != nil {
		return fmt.Errorf("unable to convert path encoding: %w", err)
	}

	attributes, err := syscall.GetFileAttributes(path16)
	if err != nil {
		return fmt.Errorf("unable to get file attributes: %w", err)
	}

	return syscall.SetFileAttributes(path16, attributes|syscall.FILE_ATTRIBUTE_HIDDEN)
}
