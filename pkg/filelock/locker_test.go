package filelock

import (
	"os"
	"path/filepath"
	"testing"
)

// fcntl-based locks are associated with the owning process, not the file
// descriptor, so two Lockers opened by the same test process never
// conflict with each other — that's why this only exercises the
// lock/unlock/close sequence. Cross-process contention is exercised by
// cmd/filelocktest.
func TestLockUnlockClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.lock")

	locker, err := NewLocker(path, 0o600)
	if err != nil {
		t.Fatalf("NewLocker: %v", err)
	}
	if err := locker.Lock(false); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if err := locker.Unlock(); err != nil {
		t.Fatalf("Unlock: %v", err)
	}
	if err := locker.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestNewLockerCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.lock")
	if _, err := NewLocker(path, 0o600); err == nil {
		t.Fatalf("expected NewLocker to fail for a nonexistent parent directory")
	}

	path = filepath.Join(t.TempDir(), "test.lock")
	locker, err := NewLocker(path, 0o600)
	if err != nil {
		t.Fatalf("NewLocker: %v", err)
	}
	defer locker.Close()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected NewLocker to create the lock file: %v", err)
	}
}
