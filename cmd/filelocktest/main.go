// Command filelocktest exercises pkg/filelock from a standalone process, so
// that lock contention between two genuinely separate processes (the case
// fcntl-based locks actually guard against) can be driven from a shell
// script rather than a same-process unit test.
package main

import (
	"errors"
	"fmt"
	"os"

	"medialib/pkg/filelock"
)

func main() {
	if len(os.Args) != 2 || os.Args[1] == "" {
		fail(errors.New("usage: filelocktest <lock-path>"))
	}
	path := os.Args[1]

	locker, err := filelock.NewLocker(path, 0o600)
	if err != nil {
		fail(fmt.Errorf("unable to create locker: %w", err))
	}
	if err := locker.Lock(false); err != nil {
		fail(fmt.Errorf("lock acquisition failed: %w", err))
	}
	if err := locker.Unlock(); err != nil {
		fail(fmt.Errorf("lock release failed: %w", err))
	}
	if err := locker.Close(); err != nil {
		fail(fmt.Errorf("locker closure failed: %w", err))
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
