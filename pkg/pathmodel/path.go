// Package pathmodel implements a uniform capability over native filesystem
// files and directories and paths inside ZIP archives. An archive whose name
// ends in ".zip" is promoted: it reports itself as a directory and its
// members are reachable the same way a directory's children are.
package pathmodel

import (
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// Info is the subset of stat() information the indexer needs, independent of
// whether the underlying entry came from the native filesystem or from
// inside a ZIP archive.
type Info struct {
	// CTime stands in for the creation time. Native entries report their
	// modification time here, as os.FileInfo carries no portable creation
	// time; ZIP members report their stored modification time, since ZIP
	// carries no separate creation time.
	CTime time.Time
	// MTime is the last-modification time.
	MTime time.Time
	// Size is the size in bytes. It is meaningless for directories.
	Size int64
	// IsDir reports whether the entry is a directory (or a promoted ZIP
	// archive root).
	IsDir bool
}

// Path is a capability over one filesystem or archive location. Two
// concrete implementations exist: Filesystem and zipEntry (returned from
// Filesystem.Iterdir/Child when the path resolves inside a promoted ZIP).
// Callers should treat Path as an opaque handle and never type-assert to a
// concrete type; the archive-promotion rule is entirely internal.
type Path interface {
	// String returns the path in its native display form.
	String() string
	// Name returns the final path component.
	Name() string
	// Exists reports whether the path currently resolves to something on
	// disk (or inside its containing archive).
	Exists() bool
	// IsFile reports whether the path is a regular file. A ".zip" file is
	// never reported as a file by IsFile: it is promoted to a directory.
	IsFile() bool
	// IsDir reports whether the path is a directory, including a
	// promoted ".zip" archive root.
	IsDir() bool
	// Suffix returns the file extension, including the leading dot, or
	// the empty string if there is none.
	Suffix() string
	// Stat returns metadata about the path.
	Stat() (Info, error)
	// Iterdir lazily enumerates the children of a directory path. It is
	// an error to call it on a non-directory.
	Iterdir() (Iterator, error)
	// Open opens the path for reading. shared requests a share mode that
	// permits concurrent readers and writers on platforms that
	// distinguish share modes; it is always honored transparently on
	// POSIX, where opens never lock.
	Open(shared bool) (io.ReadCloser, error)
	// WithName returns a sibling path with the given final component.
	WithName(name string) Path
	// Child returns the path for a named child of this directory path.
	Child(name string) Path
	// RealFile returns the on-disk container path to use for sidecar
	// storage, or the empty string if this path is a virtual location
	// inside an archive (SidecarStore must never try to write there).
	RealFile() string
}

// Iterator lazily yields the children of a directory Path.
type Iterator interface {
	// Next advances to the next child, returning false when exhausted or
	// on error (inspect Err after Next returns false).
	Next() bool
	// Path returns the current child. It is only valid after a Next call
	// that returned true.
	Path() Path
	// Err returns any error encountered during iteration.
	Err() error
	// Close releases resources held by the iterator.
	Close() error
}

// isZipName reports whether name ends in ".zip", case-insensitively.
func isZipName(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".zip")
}

// infoFromFileInfo converts a standard library fs.FileInfo into an Info.
func infoFromFileInfo(fi fs.FileInfo) Info {
	return Info{
		CTime: fi.ModTime(),
		MTime: fi.ModTime(),
		Size:  fi.Size(),
		IsDir: fi.IsDir(),
	}
}
