package fileindex

import (
	"strings"

	"github.com/pkg/errors"
)

// Mode selects how the path filter in SearchOptions is interpreted.
type Mode int

const (
	// Exact matches only the entry whose path equals the filter path.
	Exact Mode = iota
	// DirectChildren matches entries whose parent equals the filter path.
	DirectChildren
	// Subdir matches entries that are strict descendants of the filter
	// path (path has it as a directory prefix).
	Subdir
)

// Range is an inclusive [Low, High] bound. A scalar filter is represented
// by setting Low == High; ScalarRange builds one.
type Range struct {
	Low  float64
	High float64
}

// ScalarRange broadens a single value to [v, v], per the scalar-to-range
// broadening rule used by range-filtered search fields.
func ScalarRange(v float64) *Range {
	return &Range{Low: v, High: v}
}

// SortOrder names a FileIndex.Search ordering. The zero value is
// SortDefault (insertion order).
type SortOrder int

const (
	SortDefault SortOrder = iota
	SortDefaultReverse
	SortName
	SortNameReverse
	SortCTime
	SortCTimeReverse
	SortMTime
	SortMTimeReverse
)

// ParseSortOrder parses the wire names used by the HTTP API ("default",
// "name", "ctime", "mtime", each optionally suffixed with "-reverse").
func ParseSortOrder(name string) (SortOrder, error) {
	switch name {
	case "default":
		return SortDefault, nil
	case "default-reverse":
		return SortDefaultReverse, nil
	case "name":
		return SortName, nil
	case "name-reverse":
		return SortNameReverse, nil
	case "ctime":
		return SortCTime, nil
	case "ctime-reverse":
		return SortCTimeReverse, nil
	case "mtime":
		return SortMTime, nil
	case "mtime-reverse":
		return SortMTimeReverse, nil
	default:
		return SortDefault, errors.Errorf("unrecognized sort order %q", name)
	}
}

func (o SortOrder) orderByClause() string {
	switch o {
	case SortDefault:
		return "ORDER BY rowid ASC"
	case SortDefaultReverse:
		return "ORDER BY rowid DESC"
	case SortName:
		return "ORDER BY name COLLATE NOCASE ASC, rowid ASC"
	case SortNameReverse:
		return "ORDER BY name COLLATE NOCASE DESC, rowid DESC"
	case SortCTime:
		return "ORDER BY ctime ASC, rowid ASC"
	case SortCTimeReverse:
		return "ORDER BY ctime DESC, rowid DESC"
	case SortMTime:
		return "ORDER BY mtime ASC, rowid ASC"
	case SortMTimeReverse:
		return "ORDER BY mtime DESC, rowid DESC"
	default:
		return "ORDER BY rowid ASC"
	}
}

// SearchOptions configures FileIndex.Search. Path and Mode together select
// the candidate subtree; the remaining fields narrow it further. A nil
// pointer field means "unfiltered".
type SearchOptions struct {
	Path string
	Mode Mode

	Substr       string
	Bookmarked   *bool
	BookmarkTags []string
	MediaType    string

	TotalPixelsRange *Range
	AspectRatioRange *Range

	IncludeFiles bool
	IncludeDirs  bool

	SortOrder SortOrder
}

// Search streams matching entries to fn in sort order, stopping early if fn
// returns an error (which Search then returns unwrapped). Range filters on
// computed columns (total pixel count, aspect ratio) are applied in Go
// after the SQL-filterable predicates, since SQLite has no generated
// columns for them here.
func (fi *FileIndex) Search(tx *Tx, opts SearchOptions, fn func(*Entry) error) error {
	if !opts.IncludeFiles && !opts.IncludeDirs {
		return nil
	}

	query, args := buildSearchQuery(opts)

	rows, err := fi.reader(tx).Query(query, args...)
	if err != nil {
		return errors.Wrap(err, "unable to execute search query")
	}
	defer rows.Close()

	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return errors.Wrap(err, "unable to scan search result")
		}
		if !passesComputedRanges(entry, opts) {
			continue
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return rows.Err()
}

// escapeLikeChars escapes LIKE metacharacters ('\', '%', '_') in s so it can
// be embedded in a LIKE pattern with ESCAPE '\'.
func escapeLikeChars(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func buildSearchQuery(opts SearchOptions) (string, []interface{}) {
	var where []string
	var args []interface{}

	switch opts.Mode {
	case Exact:
		where = append(where, "path = ?")
		args = append(args, opts.Path)
	case DirectChildren:
		where = append(where, "parent = ?")
		args = append(args, opts.Path)
	case Subdir:
		sep := string(separatorFor(opts.Path))
		where = append(where, "path LIKE ? ESCAPE '\\'")
		args = append(args, escapeLikeChars(opts.Path+sep)+"%")
	}

	if opts.Substr != "" {
		where = append(where, "name LIKE ? ESCAPE '\\' COLLATE NOCASE")
		args = append(args, "%"+escapeLikeChars(opts.Substr)+"%")
	}

	if opts.Bookmarked != nil {
		where = append(where, "bookmarked = ?")
		args = append(args, boolToInt(*opts.Bookmarked))
	}

	for _, tag := range opts.BookmarkTags {
		where = append(where, "(' ' || bookmark_tags || ' ') LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLikeChars(" "+tag+" ")+"%")
	}

	switch opts.MediaType {
	case "directory":
		where = append(where, "is_directory = 1")
	case "image":
		where = append(where, "is_directory = 0 AND mime_type LIKE 'image/%'")
	case "video":
		where = append(where, "is_directory = 0 AND mime_type LIKE 'video/%'")
	case "other":
		where = append(where, "is_directory = 0 AND mime_type NOT LIKE 'image/%' AND mime_type NOT LIKE 'video/%'")
	}

	if opts.IncludeFiles && !opts.IncludeDirs {
		where = append(where, "is_directory = 0")
	} else if opts.IncludeDirs && !opts.IncludeFiles {
		where = append(where, "is_directory = 1")
	}

	query := entrySelectColumns + " FROM entries"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " " + opts.SortOrder.orderByClause()

	return query, args
}

// passesComputedRanges applies the total-pixel-count and aspect-ratio range
// filters, which can't be expressed as SQL predicates over nullable
// width/height columns without per-row arithmetic that SQLite would still
// have to evaluate row by row anyway.
func passesComputedRanges(e *Entry, opts SearchOptions) bool {
	if opts.TotalPixelsRange != nil {
		if e.Width == nil || e.Height == nil {
			return false
		}
		total := float64(*e.Width) * float64(*e.Height)
		if total < opts.TotalPixelsRange.Low || total > opts.TotalPixelsRange.High {
			return false
		}
	}

	if opts.AspectRatioRange != nil {
		if e.Width == nil || e.Height == nil || *e.Height == 0 {
			return false
		}
		ratio := float64(*e.Width) / float64(*e.Height)
		if ratio < opts.AspectRatioRange.Low || ratio > opts.AspectRatioRange.High {
			return false
		}
	}

	return true
}
