package manager

import (
	"path/filepath"
	"testing"
	"time"

	"medialib/pkg/fileindex"
	"medialib/pkg/library"
	"medialib/pkg/pagecache"
)

func openTestLibrary(t *testing.T, name string) *library.Library {
	t.Helper()
	root := t.TempDir()
	dbPath := filepath.Join(t.TempDir(), name+".db")

	lib, err := library.Open(library.Config{
		Name:               name,
		Root:               root,
		DBPath:             dbPath,
		IdleWriteInterval:  time.Hour,
		FileUpdateDebounce: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Open(%s): %v", name, err)
	}
	t.Cleanup(func() { lib.Shutdown() })
	return lib
}

func TestLibraryForUnknownName(t *testing.T) {
	m := New(nil, 0, nil)
	if _, err := m.LibraryFor("missing"); err == nil {
		t.Fatalf("expected error for unknown library name")
	}
}

func TestResolveSplitsNameAndRelative(t *testing.T) {
	a := openTestLibrary(t, "alpha")
	m := New([]*library.Library{a}, 0, nil)

	lib, native, err := m.Resolve("/alpha/sub/file.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if lib.Name() != "alpha" {
		t.Fatalf("expected alpha, got %s", lib.Name())
	}
	want := filepath.Join(a.Root(), "sub", "file.txt")
	if native != want {
		t.Fatalf("got %q, want %q", native, want)
	}
}

func TestResolveRejectsUnknownLibrary(t *testing.T) {
	m := New(nil, 0, nil)
	if _, _, err := m.Resolve("/nope/x"); err == nil {
		t.Fatalf("expected error for unknown library")
	}
}

func TestLibrariesSortedByName(t *testing.T) {
	z := openTestLibrary(t, "zeta")
	a := openTestLibrary(t, "alpha")
	m := New([]*library.Library{z, a}, 0, nil)

	libs := m.Libraries()
	if len(libs) != 2 || libs[0].Name() != "alpha" || libs[1].Name() != "zeta" {
		t.Fatalf("expected [alpha zeta], got %v", names(libs))
	}
}

func names(libs []*library.Library) []string {
	result := make([]string, len(libs))
	for i, l := range libs {
		result[i] = l.Name()
	}
	return result
}

func TestCachePagePaginatesAndCaches(t *testing.T) {
	m := New(nil, 0, nil)

	items := []*fileindex.Entry{{Path: "/a"}, {Path: "/b"}, {Path: "/c"}}
	newFactory := func() func() pagecache.Iterator[*fileindex.Entry] {
		return func() pagecache.Iterator[*fileindex.Entry] {
			idx := 0
			return &sliceIterator{items: items, idx: &idx}
		}
	}

	page, err := m.CachePage("", 0, newFactory(), 2)
	if err != nil {
		t.Fatalf("CachePage: %v", err)
	}
	if len(page.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(page.Results))
	}
	if page.Next == "" {
		t.Fatalf("expected a next page UUID")
	}

	replay, err := m.CachePage(page.This, 0, newFactory(), 2)
	if err != nil {
		t.Fatalf("CachePage replay: %v", err)
	}
	if replay.This != page.This || len(replay.Results) != len(page.Results) {
		t.Fatalf("expected identical replay, got %+v vs %+v", replay, page)
	}
}

type sliceIterator struct {
	items []*fileindex.Entry
	idx   *int
}

func (s *sliceIterator) Next(n int) ([]*fileindex.Entry, bool, error) {
	start := *s.idx
	end := start + n
	if end > len(s.items) {
		end = len(s.items)
	}
	*s.idx = end
	return s.items[start:end], end < len(s.items), nil
}
