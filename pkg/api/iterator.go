package api

import (
	"medialib/pkg/fileindex"
	"medialib/pkg/library"
)

// searchIterator adapts Library.Search's streaming-callback shape to the
// pull-based pagecache.Iterator interface the shared PageCache expects. The
// first call to Next runs the full query and buffers its results; FileIndex
// result sets are small enough (one library's worth of entries) that this
// is simpler than threading a suspend/resume point through Search itself.
type searchIterator struct {
	lib     *library.Library
	opts    fileindex.SearchOptions
	entries []*fileindex.Entry
	loaded  bool
	pos     int
}

func newSearchIterator(lib *library.Library, opts fileindex.SearchOptions) *searchIterator {
	return &searchIterator{lib: lib, opts: opts}
}

func (s *searchIterator) load() error {
	if s.loaded {
		return nil
	}
	s.loaded = true
	return s.lib.Search(s.opts, func(entry *fileindex.Entry) error {
		s.entries = append(s.entries, entry)
		return nil
	})
}

// Next returns up to n entries starting at the iterator's current position.
func (s *searchIterator) Next(n int) ([]*fileindex.Entry, bool, error) {
	if err := s.load(); err != nil {
		return nil, false, err
	}
	start := s.pos
	if start > len(s.entries) {
		start = len(s.entries)
	}
	end := start + n
	if end > len(s.entries) {
		end = len(s.entries)
	}
	s.pos = end
	return s.entries[start:end], end < len(s.entries), nil
}
