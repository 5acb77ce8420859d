//go:build linux

package changemonitor

import (
	"os"
	"path/filepath"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"

	"medialib/pkg/logging"
	"medialib/pkg/sidecar"
)

const inotifyMask = unix.IN_CREATE | unix.IN_DELETE | unix.IN_MOVED_FROM | unix.IN_MOVED_TO |
	unix.IN_CLOSE_WRITE | unix.IN_ATTRIB | unix.IN_DELETE_SELF | unix.IN_MOVE_SELF

// NativeWatcher watches a directory tree using Linux inotify, adding
// watches for subdirectories as they're discovered (at start and as
// Added events for directories arrive).
type NativeWatcher struct {
	root   string
	fd     int
	events chan Event
	done   chan struct{}
	stopped chan struct{}
	logger *logging.Logger

	mu           sync.Mutex
	watchToPath  map[int32]string
	pathToWatch  map[string]int32
	pendingMoves map[uint32]string // cookie -> old path, for IN_MOVED_FROM/IN_MOVED_TO pairing
}

// NewNativeWatcher creates an inotify-backed watcher rooted at root. It
// falls back to returning an error (rather than partially watching) if the
// initial inotify_init1 or the root directory walk fails; callers should
// fall back to NewPollWatcher in that case.
func NewNativeWatcher(root string, logger *logging.Logger) (*NativeWatcher, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC)
	if err != nil {
		return nil, os.NewSyscallError("inotify_init1", err)
	}

	w := &NativeWatcher{
		root:         root,
		fd:           fd,
		events:       make(chan Event, 256),
		done:         make(chan struct{}),
		stopped:      make(chan struct{}),
		logger:       logger,
		watchToPath:  make(map[int32]string),
		pathToWatch:  make(map[string]int32),
		pendingMoves: make(map[uint32]string),
	}

	if err := w.addTreeWatches(root); err != nil {
		unix.Close(fd)
		return nil, err
	}

	go w.run()
	return w, nil
}

func (w *NativeWatcher) addTreeWatches(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if !info.IsDir() {
			return nil
		}
		return w.addWatch(path)
	})
}

func (w *NativeWatcher) addWatch(path string) error {
	wd, err := unix.InotifyAddWatch(w.fd, path, inotifyMask)
	if err != nil {
		return os.NewSyscallError("inotify_add_watch", err)
	}
	w.mu.Lock()
	w.watchToPath[int32(wd)] = path
	w.pathToWatch[path] = int32(wd)
	w.mu.Unlock()
	return nil
}

func (w *NativeWatcher) removeWatch(path string) {
	w.mu.Lock()
	wd, ok := w.pathToWatch[path]
	if ok {
		delete(w.pathToWatch, path)
		delete(w.watchToPath, wd)
	}
	w.mu.Unlock()
	if ok {
		unix.InotifyRmWatch(w.fd, uint32(wd))
	}
}

// Events implements Monitor.
func (w *NativeWatcher) Events() <-chan Event {
	return w.events
}

// Close implements Monitor.
func (w *NativeWatcher) Close() error {
	close(w.done)
	unix.Close(w.fd)
	<-w.stopped
	close(w.events)
	return nil
}

const inotifyEventHeaderSize = unix.SizeofInotifyEvent

func (w *NativeWatcher) run() {
	defer close(w.stopped)

	buf := make([]byte, 64*(inotifyEventHeaderSize+unix.NAME_MAX+1))
	for {
		n, err := unix.Read(w.fd, buf)
		select {
		case <-w.done:
			return
		default:
		}
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			if w.logger != nil {
				w.logger.Debugf("inotify read failed: %v", err)
			}
			return
		}
		if n <= 0 {
			continue
		}
		w.processBuffer(buf[:n])
	}
}

func (w *NativeWatcher) processBuffer(buf []byte) {
	offset := 0
	for offset+inotifyEventHeaderSize <= len(buf) {
		raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
		nameLen := int(raw.Len)
		nameStart := offset + inotifyEventHeaderSize
		name := ""
		if nameLen > 0 {
			name = cString(buf[nameStart : nameStart+nameLen])
		}
		offset = nameStart + nameLen

		w.mu.Lock()
		dir, known := w.watchToPath[raw.Wd]
		w.mu.Unlock()
		if !known {
			continue
		}

		path := dir
		if name != "" {
			path = filepath.Join(dir, name)
		}
		if sidecar.IsSidecarName(filepath.Base(path)) {
			continue
		}

		w.handleEvent(raw.Mask, raw.Cookie, path)
	}
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func (w *NativeWatcher) handleEvent(mask, cookie uint32, path string) {
	switch {
	case mask&unix.IN_CREATE != 0:
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.addWatch(path)
			w.addTreeWatches(path)
		}
		w.send(Event{Path: path, Action: Added})
	case mask&unix.IN_MOVED_FROM != 0:
		w.mu.Lock()
		w.pendingMoves[cookie] = path
		w.mu.Unlock()
		w.removeWatch(path)
		w.send(Event{Path: path, Action: RenamedOldName})
	case mask&unix.IN_MOVED_TO != 0:
		w.mu.Lock()
		oldPath, had := w.pendingMoves[cookie]
		if had {
			delete(w.pendingMoves, cookie)
		}
		w.mu.Unlock()
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			w.addWatch(path)
			w.addTreeWatches(path)
		}
		if had {
			w.send(Event{Path: path, OldPath: oldPath, Action: Renamed})
		} else {
			w.send(Event{Path: path, Action: Added})
		}
	case mask&(unix.IN_DELETE|unix.IN_DELETE_SELF) != 0:
		w.removeWatch(path)
		w.send(Event{Path: path, Action: Removed})
	case mask&unix.IN_MOVE_SELF != 0:
		w.removeWatch(path)
		w.send(Event{Path: path, Action: Removed})
	case mask&(unix.IN_CLOSE_WRITE|unix.IN_ATTRIB) != 0:
		w.send(Event{Path: path, Action: Modified})
	}
}

func (w *NativeWatcher) send(e Event) {
	select {
	case w.events <- e:
	case <-w.done:
	}
}
