package fileindex

// entrySelectColumns is the fixed column list shared by Get and Search so
// that scanEntry can be reused across both.
const entrySelectColumns = `SELECT
	path, parent, is_directory, mime_type, ctime, mtime,
	width, height, duration, title, author, comment, tags,
	bookmarked, bookmark_tags, animation`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanEntry scans one row (in entrySelectColumns order) into an Entry. The
// caller is responsible for mapping sql.ErrNoRows to "not found".
func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var isDirectory, bookmarked, animation int
	var tags, bookmarkTags string

	err := row.Scan(
		&e.Path, &e.Parent, &isDirectory, &e.MimeType, &e.CTime, &e.MTime,
		&e.Width, &e.Height, &e.Duration, &e.Title, &e.Author, &e.Comment, &tags,
		&bookmarked, &bookmarkTags, &animation,
	)
	if err != nil {
		return nil, err
	}

	e.IsDirectory = isDirectory != 0
	e.Bookmarked = bookmarked != 0
	e.Animation = animation != 0
	e.Tags = ParseSet(tags)
	e.BookmarkTags = ParseSet(bookmarkTags)

	return &e, nil
}
