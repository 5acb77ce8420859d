// Package externalsearch defines the interface Library uses to consult an
// OS-provided content index (e.g. locate/plocate) ahead of FileIndex, and
// ships one concrete backend.
package externalsearch

// Result is one match from a Backend query.
type Result struct {
	Path string
}

// Backend is an opaque external content index. Implementations must be
// safe to call with any subset of the optional filters populated; an
// implementation that cannot honor a given filter must silently drop it
// rather than error, per the consumed-interface contract.
type Backend interface {
	// Search streams matches under root whose final path component
	// contains substr (case-insensitively), optionally narrowed by
	// mediaType ("image", "video", "other", "directory", or "" for
	// unfiltered). fn is called once per result in the backend's native
	// order; returning an error from fn stops the search early.
	Search(root, substr, mediaType string, fn func(Result) error) error

	// Available reports whether the backend is currently usable (e.g. the
	// underlying command exists on PATH and its database is readable).
	// Library treats an unavailable backend the same as a disabled one.
	Available() bool
}
