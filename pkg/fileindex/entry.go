package fileindex

import (
	"sort"
	"strings"
)

// Entry is one indexed file or directory record.
type Entry struct {
	// Path is the absolute native path and primary key.
	Path string
	// Parent is the absolute native path of the containing directory. It
	// is always a strict prefix of Path.
	Parent string
	// IsDirectory is true for native directories. A ".zip" archive is
	// recorded as a file (IsDirectory false), and its members get no records.
	IsDirectory bool
	// MimeType is "application/folder" for directories.
	MimeType string
	// CTime and MTime are seconds since the epoch, as floating point
	// values, matching the tolerance-based comparisons used during
	// reconcile.
	CTime float64
	MTime float64
	// Width and Height are pixel dimensions, nil for directories and for
	// files where dimensions are unknown.
	Width  *int64
	Height *int64
	// Duration is in seconds, nil unless the entry is a video.
	Duration *float64
	// Title, Author, and Comment come from sidecar data or embedded
	// metadata. Fields the source format doesn't supply are empty
	// strings, never left as some other sentinel.
	Title   string
	Author  string
	Comment string
	// Tags is the entry's tag set.
	Tags Set
	// Bookmarked and BookmarkTags are sidecar-sourced. BookmarkTags is
	// always empty when Bookmarked is false.
	Bookmarked   bool
	BookmarkTags Set
	// Animation is true iff the file is an animation archive.
	Animation bool
}

// Set is a set of strings, serialized as a space-joined string in storage.
type Set map[string]struct{}

// NewSet builds a Set from a slice of strings.
func NewSet(values ...string) Set {
	s := make(Set, len(values))
	for _, v := range values {
		if v != "" {
			s[v] = struct{}{}
		}
	}
	return s
}

// ParseSet splits a space-joined string into a Set.
func ParseSet(joined string) Set {
	return NewSet(strings.Fields(joined)...)
}

// String serializes the set as a space-joined string, with entries in
// sorted order so that the on-disk representation (and therefore any
// substring matching against it) is deterministic.
func (s Set) String() string {
	if len(s) == 0 {
		return ""
	}
	values := make([]string, 0, len(s))
	for v := range s {
		values = append(values, v)
	}
	sort.Strings(values)
	return strings.Join(values, " ")
}

// Slice returns the set's members in sorted order.
func (s Set) Slice() []string {
	values := make([]string, 0, len(s))
	for v := range s {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}

// MediaType classifies the entry for the media_type search filter.
func (e *Entry) MediaType() string {
	if e.IsDirectory {
		return "directory"
	}
	switch {
	case strings.HasPrefix(e.MimeType, "image/"):
		return "image"
	case strings.HasPrefix(e.MimeType, "video/"):
		return "video"
	default:
		return "other"
	}
}

// Name returns the final path component, used for substring matching and
// name-based sort ordering.
func (e *Entry) Name() string {
	return basename(e.Path)
}

// basename returns the final path component for a native path, tolerating
// both "/" and the OS-native separator so that tests can use POSIX-style
// fixture paths uniformly.
func basename(path string) string {
	trimmed := strings.TrimRight(path, "/\\")
	if trimmed == "" {
		return path
	}
	idx := strings.LastIndexAny(trimmed, "/\\")
	if idx == -1 {
		return trimmed
	}
	return trimmed[idx+1:]
}
