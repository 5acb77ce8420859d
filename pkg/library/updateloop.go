package library

import (
	"time"

	"github.com/pkg/errors"

	"medialib/pkg/changemonitor"
	"medialib/pkg/fileindex"
)

// drainChanges forwards every event from the attached ChangeMonitor into
// the appropriate pending set, waking the update loop. It runs for the
// lifetime of the Library, one per Library.
func (l *Library) drainChanges() {
	defer l.wg.Done()

	for {
		select {
		case <-l.done:
			return
		case event, ok := <-l.monitor.Events():
			if !ok {
				return
			}
			l.handleChangeEvent(event)
		}
	}
}

func (l *Library) handleChangeEvent(event changemonitor.Event) {
	action := fromMonitorAction(event.Action)

	switch action {
	case ReconcileRenamed, ReconcileRemoved, ReconcileRenamedOldName:
		// These are structural and cheap to apply immediately rather
		// than folding into the debounced file-update path: debounce
		// exists to coalesce duplicate rapid events against the same
		// file, and renames/removals aren't that case.
		if err := l.withTransaction(func(tx *fileindex.Tx) error {
			return l.reconcile(tx, event.Path, action, event.OldPath, nil)
		}); err != nil {
			l.logger.Warn(errors.Wrap(err, "unable to apply change event"))
		}
	default:
		l.enqueueFileUpdate(event.Path)
	}
}

// runUpdateLoop is the single background task per Library: it periodically
// persists last_update_time, drains pending directory refreshes and
// debounced file updates, and otherwise blocks on the RefreshEvent.
func (l *Library) runUpdateLoop() {
	defer l.wg.Done()

	lastWrite := time.Now()

	for {
		select {
		case <-l.done:
			l.drainPending()
			return
		default:
		}

		now := time.Now()
		if now.Sub(lastWrite) >= l.idleWriteInterval {
			if err := l.index.SetLastUpdateTime(nil, now); err != nil {
				l.logger.Warn(errors.Wrap(err, "unable to persist last update time"))
			}
			lastWrite = now
		}

		drained := l.drainPending()
		if drained {
			continue
		}

		wait := l.nextWait(lastWrite)
		l.refreshEvent.Wait(wait)
	}
}

// nextWait computes how long the update loop should block on RefreshEvent:
// the remaining time until the next idle write, bounded by the earliest
// pending file-update deadline so a debounce is retried promptly.
func (l *Library) nextWait(lastWrite time.Time) time.Duration {
	remaining := l.idleWriteInterval - time.Since(lastWrite)
	if remaining <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, deadline := range l.pendingFileUpdates {
		if until := time.Until(deadline); until < remaining {
			remaining = until
		}
	}
	if remaining < 0 {
		remaining = 0
	}
	return remaining
}

// drainPending processes all currently-pending directory refreshes and any
// debounced file updates that have become eligible, returning whether
// anything was processed.
func (l *Library) drainPending() bool {
	didWork := false

	l.mu.Lock()
	directories := l.pendingDirectoryRefreshes
	l.pendingDirectoryRefreshes = make(map[string]bool)
	l.mu.Unlock()

	for dir := range directories {
		didWork = true
		if err := l.Refresh(dir, true, nil); err != nil {
			l.logger.Warn(errors.Wrapf(err, "background refresh failed for %s", dir))
		}
	}

	now := time.Now()
	l.mu.Lock()
	var ready []string
	for p, deadline := range l.pendingFileUpdates {
		if !now.Before(deadline) {
			ready = append(ready, p)
		}
	}
	for _, p := range ready {
		delete(l.pendingFileUpdates, p)
	}
	l.mu.Unlock()

	for _, p := range ready {
		didWork = true
		path := p
		if err := l.withTransaction(func(tx *fileindex.Tx) error {
			return l.reconcile(tx, path, ReconcileModified, "", nil)
		}); err != nil {
			l.logger.Warn(errors.Wrapf(err, "unable to re-index %s", path))
		}
	}

	return didWork
}
