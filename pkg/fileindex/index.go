// Package fileindex implements a persistent, embedded index of file and
// directory records, backed by SQLite (via the pure-Go modernc.org/sqlite
// driver), supporting range, substring, and tag queries with deterministic
// ordering.
package fileindex

import (
	"database/sql"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// FileIndex is a single library's persistent index. It is single-writer,
// many-reader: writeMu serializes the write transactions obtained through
// Connect, while plain reads (Get, Search) use the shared *sql.DB
// connection pool directly and may proceed concurrently with each other.
type FileIndex struct {
	db      *sql.DB
	writeMu sync.Mutex
}

// Open opens (creating if necessary) the SQLite database file at path and
// ensures its schema is present.
func Open(path string) (*FileIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open index database")
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "unable to apply index schema")
	}

	return &FileIndex{db: db}, nil
}

// Close closes the underlying database connection.
func (fi *FileIndex) Close() error {
	return fi.db.Close()
}

// Tx is a scoped transactional handle. Connect is reentrant: passing an
// existing Tx reuses it without nesting a transaction, and only the
// outermost acquirer's Commit/Rollback call has any effect.
type Tx struct {
	fi    *FileIndex
	tx    *sql.Tx
	outer bool
}

// Connect acquires a write transaction, or reuses existing if non-nil. The
// returned Tx (or, when existing was non-nil, existing itself) must have
// Commit or Rollback called on it exactly once by whichever call owns it
// (the one that receives outer=true, i.e. the one where existing was nil).
func (fi *FileIndex) Connect(existing *Tx) (*Tx, error) {
	if existing != nil {
		// A distinct handle sharing the same underlying transaction: its
		// own Commit/Rollback must be no-ops so only the call that
		// created the outermost handle can finalize it.
		return &Tx{fi: existing.fi, tx: existing.tx, outer: false}, nil
	}

	fi.writeMu.Lock()
	tx, err := fi.db.Begin()
	if err != nil {
		fi.writeMu.Unlock()
		return nil, errors.Wrap(err, "unable to begin transaction")
	}

	return &Tx{fi: fi, tx: tx, outer: true}, nil
}

// Commit commits the transaction if this Tx owns it; otherwise it is a
// no-op, leaving commit/rollback to the outer owner.
func (t *Tx) Commit() error {
	if !t.outer {
		return nil
	}
	defer t.fi.writeMu.Unlock()
	return t.tx.Commit()
}

// Rollback rolls back the transaction if this Tx owns it; otherwise it is a
// no-op.
func (t *Tx) Rollback() error {
	if !t.outer {
		return nil
	}
	defer t.fi.writeMu.Unlock()
	return t.tx.Rollback()
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting read helpers
// run against either a bare connection or an in-flight transaction.
type querier interface {
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

func (fi *FileIndex) reader(tx *Tx) querier {
	if tx != nil {
		return tx.tx
	}
	return fi.db
}

// AddRecord upserts entry by Path.
func (fi *FileIndex) AddRecord(tx *Tx, entry *Entry) error {
	t, err := fi.Connect(tx)
	if err != nil {
		return err
	}
	if tx == nil {
		defer func() {
			if err != nil {
				t.Rollback()
			} else {
				err = t.Commit()
			}
		}()
	}

	err = upsert(t.tx, entry)
	return err
}

func upsert(q querier, entry *Entry) error {
	_, err := q.Exec(`
		INSERT INTO entries (
			path, parent, name, is_directory, mime_type, ctime, mtime,
			width, height, duration, title, author, comment, tags,
			bookmarked, bookmark_tags, animation
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			parent = excluded.parent,
			name = excluded.name,
			is_directory = excluded.is_directory,
			mime_type = excluded.mime_type,
			ctime = excluded.ctime,
			mtime = excluded.mtime,
			width = excluded.width,
			height = excluded.height,
			duration = excluded.duration,
			title = excluded.title,
			author = excluded.author,
			comment = excluded.comment,
			tags = excluded.tags,
			bookmarked = excluded.bookmarked,
			bookmark_tags = excluded.bookmark_tags,
			animation = excluded.animation
	`,
		entry.Path, entry.Parent, entry.Name(), boolToInt(entry.IsDirectory), entry.MimeType,
		entry.CTime, entry.MTime, nullInt(entry.Width), nullInt(entry.Height), nullFloat(entry.Duration),
		entry.Title, entry.Author, entry.Comment, entry.Tags.String(),
		boolToInt(entry.Bookmarked), entry.BookmarkTags.String(), boolToInt(entry.Animation),
	)
	return errors.Wrap(err, "unable to upsert entry")
}

// Get returns the entry at path, or nil if absent.
func (fi *FileIndex) Get(tx *Tx, path string) (*Entry, error) {
	row := fi.reader(tx).QueryRow(entrySelectColumns+" FROM entries WHERE path = ?", path)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return entry, err
}

// Rename atomically rewrites path and parent for the node at oldPath (and,
// if it is a directory, for all of its descendants) to newPath.
func (fi *FileIndex) Rename(tx *Tx, oldPath, newPath string) error {
	t, err := fi.Connect(tx)
	if err != nil {
		return err
	}
	if tx == nil {
		defer func() {
			if err != nil {
				t.Rollback()
			} else {
				err = t.Commit()
			}
		}()
	}

	var isDirectory int
	if scanErr := t.tx.QueryRow(`SELECT is_directory FROM entries WHERE path = ?`, oldPath).Scan(&isDirectory); scanErr != nil {
		err = errors.Wrap(scanErr, "unable to find entry to rename")
		return err
	}

	if _, execErr := t.tx.Exec(`UPDATE entries SET path = ?, parent = ?, name = ? WHERE path = ?`,
		newPath, parentOf(newPath), basename(newPath), oldPath); execErr != nil {
		err = errors.Wrap(execErr, "unable to rename entry")
		return err
	}

	if isDirectory != 0 {
		sep := string(separatorFor(oldPath))
		oldPrefix := oldPath + sep
		rows, queryErr := t.tx.Query(`SELECT path, parent FROM entries WHERE path LIKE ? ESCAPE '\'`, likePrefix(oldPrefix))
		if queryErr != nil {
			err = errors.Wrap(queryErr, "unable to enumerate descendants to rename")
			return err
		}

		type rename struct{ oldPath, oldParent string }
		var renames []rename
		for rows.Next() {
			var p, parent string
			if scanErr := rows.Scan(&p, &parent); scanErr != nil {
				rows.Close()
				err = errors.Wrap(scanErr, "unable to scan descendant")
				return err
			}
			renames = append(renames, rename{p, parent})
		}
		rows.Close()

		for _, r := range renames {
			rewrittenPath := newPath + sep + strings.TrimPrefix(r.oldPath, oldPrefix)
			rewrittenParent := newPath + strings.TrimPrefix(r.oldParent, oldPath)
			if _, execErr := t.tx.Exec(`UPDATE entries SET path = ?, parent = ?, name = ? WHERE path = ?`,
				rewrittenPath, rewrittenParent, basename(rewrittenPath), r.oldPath); execErr != nil {
				err = errors.Wrap(execErr, "unable to rename descendant")
				return err
			}
		}
	}

	return nil
}

// DeleteRecursively removes each path in paths and any entry whose path is a
// strict descendant of it.
func (fi *FileIndex) DeleteRecursively(tx *Tx, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	t, err := fi.Connect(tx)
	if err != nil {
		return err
	}
	if tx == nil {
		defer func() {
			if err != nil {
				t.Rollback()
			} else {
				err = t.Commit()
			}
		}()
	}

	for _, p := range paths {
		sep := string(separatorFor(p))
		if _, execErr := t.tx.Exec(`DELETE FROM entries WHERE path = ? OR path LIKE ? ESCAPE '\'`,
			p, likePrefix(p+sep)); execErr != nil {
			err = errors.Wrap(execErr, "unable to delete entry subtree")
			return err
		}
	}

	return nil
}

// GetAllBookmarkTags returns a multiset of bookmark tags across all entries.
func (fi *FileIndex) GetAllBookmarkTags(tx *Tx) (map[string]int, error) {
	rows, err := fi.reader(tx).Query(`SELECT bookmark_tags FROM entries WHERE bookmarked = 1 AND bookmark_tags != ''`)
	if err != nil {
		return nil, errors.Wrap(err, "unable to query bookmark tags")
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var joined string
		if err := rows.Scan(&joined); err != nil {
			return nil, errors.Wrap(err, "unable to scan bookmark tags")
		}
		for tag := range ParseSet(joined) {
			counts[tag]++
		}
	}
	return counts, rows.Err()
}

// GetLastUpdateTime returns the persisted last-update scalar, or the zero
// time if it has never been set.
func (fi *FileIndex) GetLastUpdateTime(tx *Tx) (time.Time, error) {
	var value string
	err := fi.reader(tx).QueryRow(`SELECT value FROM meta WHERE key = ?`, lastUpdateTimeKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, errors.Wrap(err, "unable to read last update time")
	}

	seconds, parseErr := strconv.ParseInt(value, 10, 64)
	if parseErr != nil {
		return time.Time{}, errors.Wrap(parseErr, "unable to parse last update time")
	}
	return time.Unix(seconds, 0).UTC(), nil
}

// SetLastUpdateTime persists the last-update scalar.
func (fi *FileIndex) SetLastUpdateTime(tx *Tx, when time.Time) error {
	t, err := fi.Connect(tx)
	if err != nil {
		return err
	}
	if tx == nil {
		defer func() {
			if err != nil {
				t.Rollback()
			} else {
				err = t.Commit()
			}
		}()
	}

	_, execErr := t.tx.Exec(`
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, lastUpdateTimeKey, strconv.FormatInt(when.Unix(), 10))
	if execErr != nil {
		err = errors.Wrap(execErr, "unable to write last update time")
	}
	return err
}

// parentOf returns the parent directory of path, preserving whichever
// separator path itself uses.
func parentOf(path string) string {
	sep := separatorFor(path)
	trimmed := strings.TrimRight(path, string(sep))
	idx := strings.LastIndexByte(trimmed, sep)
	if idx <= 0 {
		return string(sep)
	}
	return trimmed[:idx]
}

// separatorFor reports which path separator a stored path uses: '\\' only
// if the path contains a backslash and no forward slash, '/' otherwise.
func separatorFor(path string) byte {
	if strings.ContainsRune(path, '\\') && !strings.ContainsRune(path, '/') {
		return '\\'
	}
	return '/'
}

// likePrefix escapes SQL LIKE metacharacters in prefix and appends a
// wildcard, for use with `LIKE ? ESCAPE '\'`.
func likePrefix(prefix string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	return escaped + "%"
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullInt(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
