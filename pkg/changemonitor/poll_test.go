package changemonitor

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func collectEvents(t *testing.T, w *PollWatcher, timeout time.Duration) []Event {
	t.Helper()
	var got []Event
	deadline := time.After(timeout)
	for {
		select {
		case e, ok := <-w.Events():
			if !ok {
				return got
			}
			got = append(got, e)
		case <-deadline:
			return got
		}
	}
}

func TestPollWatcherDetectsAdd(t *testing.T) {
	dir := t.TempDir()
	w := NewPollWatcher(dir, 20*time.Millisecond, nil)
	defer w.Close()

	time.Sleep(30 * time.Millisecond) // let the first (empty) snapshot settle

	if err := os.WriteFile(filepath.Join(dir, "a.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	events := collectEvents(t, w, 200*time.Millisecond)
	found := false
	for _, e := range events {
		if e.Action == Added && filepath.Base(e.Path) == "a.txt" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected an Added event for a.txt, got %+v", events)
	}
}

func TestPollWatcherDetectsModify(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewPollWatcher(dir, 20*time.Millisecond, nil)
	defer w.Close()

	time.Sleep(30 * time.Millisecond)

	future := time.Now().Add(5 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("hello, longer"), 0o644); err != nil {
		t.Fatal(err)
	}

	events := collectEvents(t, w, 200*time.Millisecond)
	found := false
	for _, e := range events {
		if e.Action == Modified && filepath.Base(e.Path) == "a.txt" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a Modified event for a.txt, got %+v", events)
	}
}

func TestPollWatcherDetectsRemove(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(path, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewPollWatcher(dir, 20*time.Millisecond, nil)
	defer w.Close()

	time.Sleep(30 * time.Millisecond)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	events := collectEvents(t, w, 200*time.Millisecond)
	found := false
	for _, e := range events {
		if e.Action == Removed && filepath.Base(e.Path) == "a.txt" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a Removed event for a.txt, got %+v", events)
	}
}
