package library

import (
	"os"
	"strings"

	"github.com/pkg/errors"

	"medialib/pkg/apierror"
	"medialib/pkg/externalsearch"
	"medialib/pkg/fileindex"
	"medialib/pkg/metadata"
)

// Search produces entries matching opts, merging ExternalSearch (if
// enabled, available, and no bookmark filter is active) ahead of
// FileIndex, deduplicating purely by exact path equality. fn is called
// once per result in merge order; returning an error from fn stops the
// search early and that error is returned unwrapped.
func (l *Library) Search(opts fileindex.SearchOptions, fn func(*fileindex.Entry) error) error {
	seen := make(map[string]bool)

	bookmarkFilterActive := opts.Bookmarked != nil || len(opts.BookmarkTags) > 0

	if !bookmarkFilterActive && l.external != nil && l.external.Available() {
		var stopErr error
		externalErr := l.external.Search(l.root, opts.Substr, opts.MediaType, func(result externalsearch.Result) error {
			if seen[result.Path] {
				return nil
			}
			entry, err := l.index.Get(nil, result.Path)
			if err != nil {
				return err
			}
			if entry == nil {
				// ExternalSearch knows about the file; FileIndex
				// doesn't have a record yet (the common case for
				// routine images). Materialize a minimal record on
				// the fly rather than re-stating the file twice.
				entry, err = l.buildTransientEntry(result.Path)
				if err != nil || entry == nil {
					return nil
				}
			}
			seen[result.Path] = true
			if err := fn(entry); err != nil {
				stopErr = err
				return err
			}
			return nil
		})
		if stopErr != nil {
			return stopErr
		}
		if externalErr != nil {
			// ExternalSearch failures are soft: log and continue with
			// FileIndex-only results, per BackendUnavailable semantics.
			l.logger.Warn(errors.Wrap(externalErr, "external search unavailable"))
		}
	}

	return l.index.Search(nil, opts, func(entry *fileindex.Entry) error {
		if seen[entry.Path] {
			return nil
		}
		return fn(entry)
	})
}

// Resolve maps rel, the portion of a public path after "/name/", to a
// native path under this Library's root.
func (l *Library) Resolve(rel string) (string, error) {
	return l.resolve(rel)
}

// BookmarkEdit mutates the sidecar for the entry at the given public path's
// native equivalent, re-caches it, and returns the fresh Entry.
func (l *Library) BookmarkEdit(nativePath string, set bool, tags []string) (*fileindex.Entry, error) {
	return l.bookmarkEdit(nativePath, set, tags)
}

// Get returns the entry at nativePath. A path FileIndex has no record for
// is re-stated and reconciled first, so that /illust requests reflect
// current disk state even for paths ExternalSearch has never indexed.
func (l *Library) Get(nativePath string) (*fileindex.Entry, error) {
	entry, err := l.index.Get(nil, nativePath)
	if err != nil {
		return nil, err
	}
	if entry != nil {
		return entry, nil
	}
	return l.buildTransientEntry(nativePath)
}

// buildTransientEntry re-stats nativePath and reconciles it, used both by
// Get for never-indexed paths and by Search when materializing an
// ExternalSearch hit FileIndex doesn't know about yet. An image with no
// sidecar metadata is not stored; its record is built in memory only.
func (l *Library) buildTransientEntry(nativePath string) (*fileindex.Entry, error) {
	var result *fileindex.Entry
	err := l.withTransaction(func(tx *fileindex.Tx) error {
		if err := l.reconcile(tx, nativePath, ReconcileModified, "", nil); err != nil {
			return err
		}
		entry, err := l.index.Get(tx, nativePath)
		if err != nil {
			return err
		}
		result = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	if result == nil {
		info, statErr := os.Lstat(nativePath)
		mimeType := metadata.DetectMimeType(nativePath)
		if statErr != nil || info.IsDir() || !strings.HasPrefix(mimeType, "image/") {
			return nil, apierror.Newf(apierror.NotFound, "no such entry: %s", nativePath)
		}
		return l.buildRecord(nativePath, info, mimeType, nil)
	}
	return result, nil
}
