package changemonitor

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"medialib/pkg/logging"
	"medialib/pkg/sidecar"
)

// snapshotEntry is the subset of os.FileInfo a PollWatcher needs to detect
// changes between scans.
type snapshotEntry struct {
	isDir bool
	size  int64
	mtime time.Time
}

func infoEqual(a, b snapshotEntry) bool {
	if a.isDir != b.isDir {
		return false
	}
	if a.isDir {
		return true
	}
	return a.size == b.size && a.mtime.Equal(b.mtime)
}

// PollWatcher periodically re-walks a root directory tree and diffs the
// result against its previous snapshot to synthesize change events. It is
// the default Monitor implementation, used whenever a platform-native
// watcher (inotify, FSEvents, ReadDirectoryChangesW) is unavailable.
type PollWatcher struct {
	root     string
	interval time.Duration
	events   chan Event
	done     chan struct{}
	stopped  chan struct{}
	logger   *logging.Logger
}

// NewPollWatcher starts polling root every interval for changes. The
// returned watcher must be closed with Close.
func NewPollWatcher(root string, interval time.Duration, logger *logging.Logger) *PollWatcher {
	w := &PollWatcher{
		root:     root,
		interval: interval,
		events:   make(chan Event, 64),
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
		logger:   logger,
	}
	go w.run()
	return w
}

// Events implements Monitor.
func (w *PollWatcher) Events() <-chan Event {
	return w.events
}

// Close implements Monitor, stopping the polling loop.
func (w *PollWatcher) Close() error {
	close(w.done)
	<-w.stopped
	close(w.events)
	return nil
}

func (w *PollWatcher) run() {
	defer close(w.stopped)

	timer := time.NewTimer(0)
	defer timer.Stop()

	var previous map[string]snapshotEntry

	for {
		select {
		case <-w.done:
			return
		case <-timer.C:
			current, err := snapshot(w.root)
			if err != nil {
				if w.logger != nil {
					w.logger.Debugf("poll snapshot failed: %v", err)
				}
				timer.Reset(w.interval)
				continue
			}

			if previous != nil {
				w.emitDiff(previous, current)
			}
			previous = current

			timer.Reset(w.interval)
		}
	}
}

// snapshot walks root, recording every descendant path's directory/size/
// mtime triple. Sidecar files are excluded so that Library's sidecar writes
// never feed back into a change-loop (see sidecar.IsSidecarName).
func snapshot(root string) (map[string]snapshotEntry, error) {
	contents := make(map[string]snapshotEntry, 1024)

	err := filepath.Walk(root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if sidecar.IsSidecarName(info.Name()) {
			return nil
		}
		contents[path] = snapshotEntry{isDir: info.IsDir(), size: info.Size(), mtime: info.ModTime()}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return contents, nil
}

// emitDiff compares two snapshots and sends the corresponding Events,
// detecting renames by matching removed and added non-directory entries
// that share identical size and mtime.
func (w *PollWatcher) emitDiff(previous, current map[string]snapshotEntry) {
	var removedPaths []string
	addedPaths := make([]string, 0)

	for path, prevEntry := range previous {
		if curEntry, ok := current[path]; !ok {
			removedPaths = append(removedPaths, path)
		} else if !infoEqual(prevEntry, curEntry) {
			w.send(Event{Path: path, Action: Modified})
		}
	}
	for path := range current {
		if _, ok := previous[path]; !ok {
			addedPaths = append(addedPaths, path)
		}
	}

	matchedAdded := make(map[string]bool, len(addedPaths))
	for _, removedPath := range removedPaths {
		removedEntry := previous[removedPath]
		if removedEntry.isDir {
			w.send(Event{Path: removedPath, Action: Removed})
			continue
		}

		renamedTo := ""
		for _, addedPath := range addedPaths {
			if matchedAdded[addedPath] {
				continue
			}
			addedEntry := current[addedPath]
			if !addedEntry.isDir && infoEqual(removedEntry, addedEntry) {
				renamedTo = addedPath
				break
			}
		}

		if renamedTo != "" {
			matchedAdded[renamedTo] = true
			w.send(Event{Path: renamedTo, OldPath: removedPath, Action: Renamed})
		} else {
			w.send(Event{Path: removedPath, Action: Removed})
		}
	}

	for _, addedPath := range addedPaths {
		if !matchedAdded[addedPath] {
			w.send(Event{Path: addedPath, Action: Added})
		}
	}
}

func (w *PollWatcher) send(e Event) {
	select {
	case w.events <- e:
	case <-w.done:
	}
}
