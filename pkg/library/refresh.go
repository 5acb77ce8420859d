package library

import (
	"medialib/pkg/fileindex"
	"medialib/pkg/pathmodel"
	"medialib/pkg/sidecar"
)

// progressInterval is how often (in entries processed) Refresh invokes its
// progress callback.
const progressInterval = 25000

// Refresh walks the tree rooted at nativePath (which must be under l.root)
// and reconciles every entry it finds against the index, deleting any
// indexed descendant that's no longer present on disk. progress, if
// non-nil, is called every progressInterval entries and once more at the
// end with the final count.
func (l *Library) Refresh(nativePath string, recurse bool, progress func(count int)) error {
	count := 0
	report := func() {
		if progress != nil {
			count++
			if count%progressInterval == 0 {
				progress(count)
			}
		}
	}

	if err := l.refreshDirectory(nativePath, recurse, report); err != nil {
		return err
	}

	if progress != nil {
		progress(count)
	}
	return nil
}

// refreshDirectory processes exactly one directory level: it opens one
// FileIndex transaction bounding the whole directory's reconcile, then
// (outside that transaction) recurses into subdirectories so that no
// single transaction spans more than one directory's worth of work.
func (l *Library) refreshDirectory(nativePath string, recurse bool, report func()) error {
	dirPath := pathmodel.NewFilesystem(nativePath)
	if !dirPath.Exists() {
		return nil
	}

	sidecarData := sidecar.Load(nativePath)

	var subdirectories []string

	err := l.withTransaction(func(tx *fileindex.Tx) error {
		stale, err := l.snapshotDescendants(tx, nativePath)
		if err != nil {
			return err
		}

		iter, err := dirPath.Iterdir()
		if err != nil {
			return err
		}
		defer iter.Close()

		for iter.Next() {
			child := iter.Path()
			childNative := child.String()

			meta := sidecarData[child.Name()]
			if err := l.reconcile(tx, childNative, ReconcileRefresh, "", &meta); err != nil {
				return err
			}
			delete(stale, childNative)
			report()

			if recurse && child.IsDir() {
				subdirectories = append(subdirectories, childNative)
			}
		}
		if err := iter.Err(); err != nil {
			return err
		}

		if len(stale) > 0 {
			paths := make([]string, 0, len(stale))
			for p := range stale {
				paths = append(paths, p)
			}
			if err := l.index.DeleteRecursively(tx, paths); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return err
	}

	for _, sub := range subdirectories {
		if err := l.refreshDirectory(sub, recurse, report); err != nil {
			return err
		}
	}

	return nil
}

// snapshotDescendants returns the current set of this directory's direct
// children's paths in the index, used to detect entries that disappeared
// between refreshes.
func (l *Library) snapshotDescendants(tx *fileindex.Tx, nativePath string) (map[string]bool, error) {
	stale := make(map[string]bool)
	err := l.index.Search(tx, fileindex.SearchOptions{
		Mode: fileindex.DirectChildren, Path: nativePath,
		IncludeFiles: true, IncludeDirs: true,
	}, func(e *fileindex.Entry) error {
		stale[e.Path] = true
		return nil
	})
	return stale, err
}

// withTransaction opens a scoped FileIndex transaction, running fn inside
// it and committing on success or rolling back on error.
func (l *Library) withTransaction(fn func(tx *fileindex.Tx) error) error {
	tx, err := l.index.Connect(nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
