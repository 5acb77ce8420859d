// Package library implements the Library component: a named mount bundling
// a root directory, a FileIndex, and a ChangeMonitor, with an asynchronous
// background update loop that keeps the index converged with the
// filesystem.
package library

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"medialib/pkg/apierror"
	"medialib/pkg/changemonitor"
	"medialib/pkg/coalesce"
	"medialib/pkg/externalsearch"
	"medialib/pkg/fileindex"
	"medialib/pkg/filelock"
	"medialib/pkg/logging"
	"medialib/pkg/metadata"
	"medialib/pkg/pathmodel"
	"medialib/pkg/sidecar"
)

// Config configures a Library at construction time.
type Config struct {
	Name     string
	Root     string
	DBPath   string
	External externalsearch.Backend // nil disables ExternalSearch for this library
	Logger   *logging.Logger

	// IdleWriteInterval is how long the background loop waits with no
	// other pending work before refreshing last_update_time; defaults to
	// 600s if zero.
	IdleWriteInterval time.Duration
	// FileUpdateDebounce is how long a file update stays pending after its
	// most recent event before being eligible for re-indexing.
	FileUpdateDebounce time.Duration
	// MaxProbeSize caps how large a file can be before reconcile skips
	// media-metadata probing for it. Zero means unlimited.
	MaxProbeSize uint64
}

// Library owns one (name, root, FileIndex, ChangeMonitor) bundle.
type Library struct {
	name   string
	root   string
	index  *fileindex.FileIndex
	lock   *filelock.Locker
	logger *logging.Logger

	external          externalsearch.Backend
	idleWriteInterval time.Duration
	fileUpdateDebounce time.Duration
	maxProbeSize      uint64

	monitor changemonitor.Monitor

	refreshEvent *coalesce.Event

	mu                       sync.Mutex
	pendingDirectoryRefreshes map[string]bool
	pendingFileUpdates        map[string]time.Time

	done chan struct{}
	wg   sync.WaitGroup
}

// Open creates a Library, opening (and creating, if necessary) its
// FileIndex database.
func Open(cfg Config) (*Library, error) {
	if cfg.IdleWriteInterval <= 0 {
		cfg.IdleWriteInterval = 600 * time.Second
	}
	if cfg.FileUpdateDebounce <= 0 {
		cfg.FileUpdateDebounce = time.Second
	}

	lock, err := filelock.NewLocker(cfg.DBPath+".lock", 0600)
	if err != nil {
		return nil, apierror.Wrap(apierror.IO, "unable to create library lock", err)
	}
	if err := lock.Lock(false); err != nil {
		lock.Close()
		return nil, apierror.Wrap(apierror.IO, fmt.Sprintf("library %q is already open by another process", cfg.Name), err)
	}

	index, err := fileindex.Open(cfg.DBPath)
	if err != nil {
		lock.Unlock()
		lock.Close()
		return nil, apierror.Wrap(apierror.IO, "unable to open library index", err)
	}

	root := filepath.Clean(cfg.Root)

	l := &Library{
		name:                      cfg.Name,
		root:                      root,
		index:                     index,
		lock:                      lock,
		logger:                    cfg.Logger,
		external:                  cfg.External,
		idleWriteInterval:         cfg.IdleWriteInterval,
		fileUpdateDebounce:        cfg.FileUpdateDebounce,
		maxProbeSize:              cfg.MaxProbeSize,
		refreshEvent:              coalesce.New(),
		pendingDirectoryRefreshes: make(map[string]bool),
		pendingFileUpdates:        make(map[string]time.Time),
		done:                      make(chan struct{}),
	}

	return l, nil
}

// Name returns the library's mount name.
func (l *Library) Name() string {
	return l.name
}

// Root returns the library's native root directory.
func (l *Library) Root() string {
	return l.root
}

// StartWatching attaches a ChangeMonitor and starts the background update
// loop and change-drain tasks. Must be called at most once.
func (l *Library) StartWatching(monitor changemonitor.Monitor) {
	l.monitor = monitor
	l.wg.Add(2)
	go l.drainChanges()
	go l.runUpdateLoop()
}

// Shutdown cancels the change-monitor task first, drains the update loop
// once more, then closes the FileIndex connection and releases the lock
// in that order so a second process can safely reopen the database.
func (l *Library) Shutdown() error {
	close(l.done)
	if l.monitor != nil {
		l.monitor.Close()
	}
	l.wg.Wait()
	err := l.index.Close()
	if unlockErr := l.lock.Unlock(); err == nil {
		err = unlockErr
	}
	if closeErr := l.lock.Close(); err == nil {
		err = closeErr
	}
	return err
}

// PublicPath maps an absolute native path under root to "/name/rel"
// (POSIX-style), or ("", false) if p is not under root.
func (l *Library) PublicPath(native string) (string, bool) {
	native = filepath.Clean(native)
	if native == l.root {
		return "/" + l.name, true
	}
	prefix := l.root + string(filepath.Separator)
	if !strings.HasPrefix(native, prefix) {
		return "", false
	}
	rel := strings.TrimPrefix(native, prefix)
	rel = filepath.ToSlash(rel)
	return "/" + l.name + "/" + rel, true
}

// resolve reverses PublicPath: given the portion of a public path after
// "/name/", returns the native path. Returns InvalidRequest if rel
// contains a ".." component.
func (l *Library) resolve(rel string) (string, error) {
	for _, part := range strings.Split(rel, "/") {
		if part == ".." {
			return "", apierror.Newf(apierror.InvalidRequest, "path must not contain '..': %q", rel)
		}
	}
	if rel == "" {
		return l.root, nil
	}
	return filepath.Join(l.root, filepath.FromSlash(rel)), nil
}

// MountEntry is the synthetic directory Entry for this library, used by the
// API server's /list handler when listing the root of all libraries.
func (l *Library) MountEntry() *fileindex.Entry {
	return &fileindex.Entry{
		Path:        l.root,
		Parent:      filepath.Dir(l.root),
		IsDirectory: true,
		MimeType:    "application/folder",
		CTime:       0,
		MTime:       0,
		Tags:        fileindex.NewSet(),
		BookmarkTags: fileindex.NewSet(),
	}
}

// Index exposes the underlying FileIndex for callers that need direct
// access to it.
func (l *Library) Index() *fileindex.FileIndex {
	return l.index
}

// ReconcileAction classifies the cause of a reconcile call: either a
// directory-walk discovery during a full refresh, or one of the live
// change-monitor actions.
type ReconcileAction int

const (
	// ReconcileRefresh marks a path discovered by Refresh's directory walk.
	ReconcileRefresh ReconcileAction = iota
	ReconcileAdded
	ReconcileRemoved
	ReconcileRenamed
	ReconcileRenamedOldName
	ReconcileModified
)

func fromMonitorAction(a changemonitor.Action) ReconcileAction {
	switch a {
	case changemonitor.Added:
		return ReconcileAdded
	case changemonitor.Removed:
		return ReconcileRemoved
	case changemonitor.Renamed:
		return ReconcileRenamed
	case changemonitor.RenamedOldName:
		return ReconcileRenamedOldName
	case changemonitor.Modified:
		return ReconcileModified
	default:
		return ReconcileModified
	}
}

// reconcile is the single entry point for both explicit refresh and live
// events, per the rule table: sidecar files are ignored; renames either
// rewrite the index in place or degrade to an add; removals delete the
// subtree; newly added directories are queued for a full refresh rather
// than indexed directly; images with no sidecar metadata are skipped so
// routine image counts stay out of the index; everything else is re-stat
// and upserted only if its mtime actually moved.
func (l *Library) reconcile(tx *fileindex.Tx, p string, action ReconcileAction, oldPath string, meta *sidecar.Metadata) error {
	return l.reconcileEntry(tx, p, action, oldPath, meta, false)
}

// reconcileEntry is reconcile's implementation. When force is true, the
// mtime-unchanged shortcut is bypassed so the record is always rebuilt, and
// an image that no longer qualifies for indexing (no bookmark, no tags) is
// deleted rather than left as a stale record; bookmarkEdit uses this to make
// sure a sidecar edit is always reflected in the index.
func (l *Library) reconcileEntry(tx *fileindex.Tx, p string, action ReconcileAction, oldPath string, meta *sidecar.Metadata, force bool) error {
	if sidecar.IsSidecarName(filepath.Base(p)) {
		return nil
	}

	if action == ReconcileRenamed {
		if oldPath != "" {
			if existing, err := l.index.Get(tx, oldPath); err != nil {
				return err
			} else if existing != nil {
				return l.index.Rename(tx, oldPath, p)
			}
		}
		action = ReconcileAdded
	}

	if action == ReconcileRemoved || action == ReconcileRenamedOldName {
		return l.index.DeleteRecursively(tx, []string{p})
	}

	info, err := os.Lstat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return l.index.DeleteRecursively(tx, []string{p})
		}
		return apierror.Wrap(apierror.IO, "unable to stat path during reconcile", err)
	}

	if info.IsDir() && action == ReconcileAdded {
		l.enqueueDirectoryRefresh(p)
		return nil
	}

	mimeType := "application/folder"
	if !info.IsDir() {
		mimeType = metadata.DetectMimeType(p)
	}

	if !info.IsDir() && strings.HasPrefix(mimeType, "image/") {
		if meta == nil {
			m := sidecar.LoadFile(filepath.Dir(p), filepath.Base(p))
			meta = &m
		}
		if !meta.Bookmarked && meta.BookmarkTags == "" {
			if force {
				return l.index.DeleteRecursively(tx, []string{p})
			}
			return nil
		}
	}

	existing, err := l.index.Get(tx, p)
	if err != nil {
		return err
	}

	if !force {
		diskMtime := float64(info.ModTime().Unix())
		if existing != nil && existing.IsDirectory == info.IsDir() && absFloat(existing.MTime-diskMtime) < 1.0 {
			return nil
		}
	}

	entry, err := l.buildRecord(p, info, mimeType, meta)
	if err != nil {
		return err
	}
	return l.index.AddRecord(tx, entry)
}

// buildRecord constructs a fresh Entry for path, merging header-derived
// metadata (for files) with sidecar bookmark state.
func (l *Library) buildRecord(p string, info os.FileInfo, mimeType string, meta *sidecar.Metadata) (*fileindex.Entry, error) {
	entry := &fileindex.Entry{
		Path:        p,
		Parent:      filepath.Dir(p),
		IsDirectory: info.IsDir(),
		MimeType:    mimeType,
		CTime:       statCTime(info),
		MTime:       float64(info.ModTime().Unix()),
		Tags:        fileindex.NewSet(),
		BookmarkTags: fileindex.NewSet(),
	}

	if !info.IsDir() && !l.exceedsProbeSize(info) {
		header := metadata.Probe(p, mimeType)
		entry.Width = header.Width
		entry.Height = header.Height
		entry.Duration = header.Duration
		entry.Title = header.Title
		entry.Author = header.Author
		entry.Comment = header.Comment
	} else if !info.IsDir() {
		l.logger.Debugf("skipping metadata probe for %s (%d bytes exceeds configured limit)", p, info.Size())
	}

	if meta == nil {
		m := sidecar.LoadFile(filepath.Dir(p), filepath.Base(p))
		meta = &m
	}
	entry.Bookmarked = meta.Bookmarked
	entry.BookmarkTags = fileindex.ParseSet(meta.BookmarkTags)

	entry.Animation = !info.IsDir() && strings.EqualFold(filepath.Ext(p), ".zip") && looksLikeAnimation(p)

	return entry, nil
}

// looksLikeAnimation reports whether a zip archive's member list is
// entirely image files, the repository's heuristic for "this zip is really
// a frame-per-file animation" rather than an ordinary archive.
func looksLikeAnimation(zipPath string) bool {
	root := pathmodel.NewFilesystem(zipPath)
	if !root.IsDir() {
		return false
	}
	iter, err := root.Iterdir()
	if err != nil {
		return false
	}
	defer iter.Close()

	sawMember := false
	for iter.Next() {
		sawMember = true
		member := iter.Path()
		if member.IsDir() {
			return false
		}
		mimeType := metadata.DetectMimeType(member.Name())
		if !strings.HasPrefix(mimeType, "image/") {
			return false
		}
	}
	return sawMember && iter.Err() == nil
}

// exceedsProbeSize reports whether info's size is over the library's
// configured MaxProbeSize (0 means unlimited, so it never exceeds).
func (l *Library) exceedsProbeSize(info os.FileInfo) bool {
	return l.maxProbeSize > 0 && uint64(info.Size()) > l.maxProbeSize
}

func statCTime(info os.FileInfo) float64 {
	return float64(info.ModTime().Unix())
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// enqueueDirectoryRefresh marks path for a background full refresh and
// wakes the update loop.
func (l *Library) enqueueDirectoryRefresh(p string) {
	l.mu.Lock()
	l.pendingDirectoryRefreshes[p] = true
	l.mu.Unlock()
	l.refreshEvent.Set()
}

// enqueueFileUpdate debounces a live file-change event: the file becomes
// eligible fileUpdateDebounce after its most recent event.
func (l *Library) enqueueFileUpdate(p string) {
	l.mu.Lock()
	l.pendingFileUpdates[p] = time.Now().Add(l.fileUpdateDebounce)
	l.mu.Unlock()
	l.refreshEvent.Set()
}

// bookmarkEdit mutates the sidecar for entry's path, then re-reads it to
// return a fresh Entry, per the "mutate, re-cache, return fresh" contract.
func (l *Library) bookmarkEdit(nativePath string, set bool, tags []string) (*fileindex.Entry, error) {
	dir := filepath.Dir(nativePath)
	name := filepath.Base(nativePath)

	meta := sidecar.Metadata{}
	if set {
		meta.Bookmarked = true
		meta.BookmarkTags = strings.Join(tags, " ")
	}

	if err := sidecar.SaveFile(dir, name, meta); err != nil {
		return nil, apierror.Wrap(apierror.IO, "unable to update bookmark sidecar", err)
	}

	tx, err := l.index.Connect(nil)
	if err != nil {
		return nil, err
	}
	var result *fileindex.Entry
	reconcileErr := l.reconcileEntry(tx, nativePath, ReconcileModified, "", &meta, true)
	if reconcileErr != nil {
		tx.Rollback()
		return nil, reconcileErr
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	result, err = l.index.Get(nil, nativePath)
	if err != nil {
		return nil, err
	}
	if result == nil {
		// Un-bookmarking an image that no longer qualifies for indexing
		// deletes its record rather than leaving it stale (reconcileEntry's
		// force path); that's the expected end state, not a failure.
		if !set {
			return nil, nil
		}
		return nil, apierror.Newf(apierror.NotFound, "entry not found after bookmark edit: %s", nativePath)
	}
	return result, nil
}

// GetAllBookmarkTags exposes FileIndex.GetAllBookmarkTags for this library.
func (l *Library) GetAllBookmarkTags() (map[string]int, error) {
	return l.index.GetAllBookmarkTags(nil)
}
