package fileindex

// schema is applied once per connection via Open. It is written so that
// re-applying it against an already-initialized database is a no-op.
const schema = `
CREATE TABLE IF NOT EXISTS entries (
	path          TEXT PRIMARY KEY,
	parent        TEXT NOT NULL,
	name          TEXT NOT NULL,
	is_directory  INTEGER NOT NULL,
	mime_type     TEXT NOT NULL,
	ctime         REAL NOT NULL,
	mtime         REAL NOT NULL,
	width         INTEGER,
	height        INTEGER,
	duration      REAL,
	title         TEXT NOT NULL DEFAULT '',
	author        TEXT NOT NULL DEFAULT '',
	comment       TEXT NOT NULL DEFAULT '',
	tags          TEXT NOT NULL DEFAULT '',
	bookmarked    INTEGER NOT NULL DEFAULT 0,
	bookmark_tags TEXT NOT NULL DEFAULT '',
	animation     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_entries_parent ON entries(parent);
CREATE INDEX IF NOT EXISTS idx_entries_name_lower ON entries(name COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_entries_bookmarked ON entries(bookmarked);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// lastUpdateTimeKey is the meta table key holding the last-update scalar
// used to detect how long the server was offline.
const lastUpdateTimeKey = "last_update_time"
