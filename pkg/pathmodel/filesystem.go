package pathmodel

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Filesystem is the native filesystem implementation of Path. A Filesystem
// path whose name ends in ".zip" is promoted: IsDir reports true and Iterdir
// enumerates the archive's members instead of failing.
type Filesystem struct {
	// native is the OS path in native separator form.
	native string
	// cachedInfo holds a stat result obtained from a parent directory
	// listing (e.g. os.ReadDir), avoiding a redundant stat call. It is
	// nil if no such information is available.
	cachedInfo os.FileInfo
}

// NewFilesystem wraps a native OS path.
func NewFilesystem(native string) *Filesystem {
	return &Filesystem{native: filepath.Clean(native)}
}

// newFilesystemWithInfo wraps a native OS path for which stat information
// was already obtained while iterating its parent directory.
func newFilesystemWithInfo(native string, info os.FileInfo) *Filesystem {
	return &Filesystem{native: native, cachedInfo: info}
}

// String implements Path.String.
func (f *Filesystem) String() string {
	return f.native
}

// Name implements Path.Name.
func (f *Filesystem) Name() string {
	return filepath.Base(f.native)
}

// Exists implements Path.Exists.
func (f *Filesystem) Exists() bool {
	if f.cachedInfo != nil {
		return true
	}
	_, err := os.Lstat(f.native)
	return err == nil
}

// Suffix implements Path.Suffix.
func (f *Filesystem) Suffix() string {
	return filepath.Ext(f.native)
}

// isZip reports whether this path is a regular file promoted to a directory
// by the ".zip" archive-promotion rule.
func (f *Filesystem) isZip() bool {
	if !isZipName(f.native) {
		return false
	}
	return f.statRegularFile()
}

// statRegularFile reports whether the underlying path is a plain file (as
// opposed to a directory or something absent), using the cached stat result
// when available.
func (f *Filesystem) statRegularFile() bool {
	info, err := f.osStat()
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

func (f *Filesystem) osStat() (os.FileInfo, error) {
	if f.cachedInfo != nil {
		return f.cachedInfo, nil
	}
	return os.Stat(f.native)
}

// IsFile implements Path.IsFile.
func (f *Filesystem) IsFile() bool {
	if f.isZip() {
		return false
	}
	info, err := f.osStat()
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}

// IsDir implements Path.IsDir.
func (f *Filesystem) IsDir() bool {
	if f.isZip() {
		return true
	}
	info, err := f.osStat()
	if err != nil {
		return false
	}
	return info.IsDir()
}

// Stat implements Path.Stat.
func (f *Filesystem) Stat() (Info, error) {
	info, err := f.osStat()
	if err != nil {
		return Info{}, errors.Wrap(err, "unable to stat path")
	}
	result := infoFromFileInfo(info)
	if f.isZip() {
		result.IsDir = true
	}
	return result, nil
}

// Iterdir implements Path.Iterdir.
func (f *Filesystem) Iterdir() (Iterator, error) {
	if f.isZip() {
		zr, err := openZipRoot(f)
		if err != nil {
			return nil, err
		}
		return zr.Iterdir()
	}

	entries, err := os.ReadDir(f.native)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read directory")
	}
	return &filesystemIterator{parent: f, entries: entries}, nil
}

// Open implements Path.Open.
func (f *Filesystem) Open(shared bool) (io.ReadCloser, error) {
	if f.isZip() {
		zr, err := openZipRoot(f)
		if err != nil {
			return nil, err
		}
		return zr.Open(shared)
	}
	return openShared(f.native, shared)
}

// WithName implements Path.WithName.
func (f *Filesystem) WithName(name string) Path {
	return NewFilesystem(filepath.Join(filepath.Dir(f.native), name))
}

// Child implements Path.Child.
func (f *Filesystem) Child(name string) Path {
	if f.isZip() {
		zr, err := openZipRoot(f)
		if err != nil {
			// Fall through to a non-existent filesystem path rather
			// than panicking; callers check Exists()/errors from
			// Stat before relying on the result.
			return NewFilesystem(filepath.Join(f.native, name))
		}
		return zr.Child(name)
	}
	return NewFilesystem(filepath.Join(f.native, name))
}

// RealFile implements Path.RealFile.
func (f *Filesystem) RealFile() string {
	return f.native
}

// filesystemIterator implements Iterator over a native directory listing.
type filesystemIterator struct {
	parent  *Filesystem
	entries []os.DirEntry
	index   int
	current Path
	err     error
}

func (it *filesystemIterator) Next() bool {
	if it.index >= len(it.entries) {
		return false
	}
	entry := it.entries[it.index]
	it.index++

	info, err := entry.Info()
	native := filepath.Join(it.parent.native, entry.Name())
	if err != nil {
		// The entry may have been removed between ReadDir and Info; skip
		// it rather than failing the whole listing, consistent with the
		// "best effort under concurrent external change" posture of the
		// rest of the indexer.
		it.current = NewFilesystem(native)
		return it.Next()
	}
	it.current = newFilesystemWithInfo(native, info)
	return true
}

func (it *filesystemIterator) Path() Path {
	return it.current
}

func (it *filesystemIterator) Err() error {
	return it.err
}

func (it *filesystemIterator) Close() error {
	return nil
}
