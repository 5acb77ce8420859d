package fileindex

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestIndex(t *testing.T) *FileIndex {
	t.Helper()
	fi, err := Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { fi.Close() })
	return fi
}

func dirEntry(path, parent string) *Entry {
	return &Entry{
		Path: path, Parent: parent, IsDirectory: true, MimeType: "application/folder",
		Tags: NewSet(), BookmarkTags: NewSet(),
	}
}

func fileEntry(path, parent, mime string, width, height int64) *Entry {
	w, h := width, height
	return &Entry{
		Path: path, Parent: parent, MimeType: mime,
		Width: &w, Height: &h,
		Tags: NewSet(), BookmarkTags: NewSet(),
	}
}

func TestAddRecordAndGet(t *testing.T) {
	fi := openTestIndex(t)

	entry := fileEntry("/root/a.jpg", "/root", "image/jpeg", 100, 50)
	entry.Tags = NewSet("x", "y")
	if err := fi.AddRecord(nil, entry); err != nil {
		t.Fatalf("AddRecord: %v", err)
	}

	got, err := fi.Get(nil, "/root/a.jpg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected entry, got nil")
	}
	if got.MimeType != "image/jpeg" || *got.Width != 100 || *got.Height != 50 {
		t.Fatalf("unexpected entry: %+v", got)
	}
	if got.Tags.String() != "x y" {
		t.Fatalf("unexpected tags: %v", got.Tags)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	fi := openTestIndex(t)
	got, err := fi.Get(nil, "/root/missing.jpg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestUpsertPreservesRowidOrder(t *testing.T) {
	fi := openTestIndex(t)

	for _, p := range []string{"/root/a.jpg", "/root/b.jpg", "/root/c.jpg"} {
		if err := fi.AddRecord(nil, fileEntry(p, "/root", "image/jpeg", 1, 1)); err != nil {
			t.Fatalf("AddRecord(%s): %v", p, err)
		}
	}

	// Re-upsert b.jpg; its insertion-order position must not move.
	if err := fi.AddRecord(nil, fileEntry("/root/b.jpg", "/root", "image/jpeg", 2, 2)); err != nil {
		t.Fatalf("re-AddRecord: %v", err)
	}

	var order []string
	err := fi.Search(nil, SearchOptions{
		Mode: DirectChildren, Path: "/root",
		IncludeFiles: true, IncludeDirs: true,
		SortOrder: SortDefault,
	}, func(e *Entry) error {
		order = append(order, e.Name())
		return nil
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(order) != 3 || order[0] != "a.jpg" || order[1] != "b.jpg" || order[2] != "c.jpg" {
		t.Fatalf("expected insertion order preserved across upsert, got %v", order)
	}
}

func TestSearchModes(t *testing.T) {
	fi := openTestIndex(t)

	must(t, fi.AddRecord(nil, dirEntry("/root/sub", "/root")))
	must(t, fi.AddRecord(nil, fileEntry("/root/a.jpg", "/root", "image/jpeg", 1, 1)))
	must(t, fi.AddRecord(nil, fileEntry("/root/sub/b.jpg", "/root/sub", "image/jpeg", 1, 1)))
	must(t, fi.AddRecord(nil, fileEntry("/root/sub/c.jpg", "/root/sub", "image/jpeg", 1, 1)))

	var exact []string
	must(t, fi.Search(nil, SearchOptions{Mode: Exact, Path: "/root/a.jpg", IncludeFiles: true, IncludeDirs: true},
		func(e *Entry) error { exact = append(exact, e.Path); return nil }))
	if len(exact) != 1 || exact[0] != "/root/a.jpg" {
		t.Fatalf("Exact mode: got %v", exact)
	}

	var children []string
	must(t, fi.Search(nil, SearchOptions{Mode: DirectChildren, Path: "/root", IncludeFiles: true, IncludeDirs: true},
		func(e *Entry) error { children = append(children, e.Name()); return nil }))
	if len(children) != 2 {
		t.Fatalf("DirectChildren mode: expected 2, got %v", children)
	}

	var sub []string
	must(t, fi.Search(nil, SearchOptions{Mode: Subdir, Path: "/root", IncludeFiles: true, IncludeDirs: true},
		func(e *Entry) error { sub = append(sub, e.Path); return nil }))
	if len(sub) != 4 {
		t.Fatalf("Subdir mode: expected 4 (sub dir plus 3 files), got %v", sub)
	}
}

func TestSearchSubstrCaseInsensitiveOnName(t *testing.T) {
	fi := openTestIndex(t)
	must(t, fi.AddRecord(nil, fileEntry("/root/Sunset.JPG", "/root", "image/jpeg", 1, 1)))
	must(t, fi.AddRecord(nil, fileEntry("/root/moon.jpg", "/root", "image/jpeg", 1, 1)))

	var names []string
	must(t, fi.Search(nil, SearchOptions{
		Mode: DirectChildren, Path: "/root", Substr: "sun",
		IncludeFiles: true, IncludeDirs: true,
	}, func(e *Entry) error { names = append(names, e.Name()); return nil }))

	if len(names) != 1 || names[0] != "Sunset.JPG" {
		t.Fatalf("expected case-insensitive substring match, got %v", names)
	}
}

func TestSearchIncludeFilesDirsFilter(t *testing.T) {
	fi := openTestIndex(t)
	must(t, fi.AddRecord(nil, dirEntry("/root/sub", "/root")))
	must(t, fi.AddRecord(nil, fileEntry("/root/a.jpg", "/root", "image/jpeg", 1, 1)))

	var filesOnly []string
	must(t, fi.Search(nil, SearchOptions{Mode: DirectChildren, Path: "/root", IncludeFiles: true, IncludeDirs: false},
		func(e *Entry) error { filesOnly = append(filesOnly, e.Name()); return nil }))
	if len(filesOnly) != 1 || filesOnly[0] != "a.jpg" {
		t.Fatalf("expected only files, got %v", filesOnly)
	}

	var none []string
	must(t, fi.Search(nil, SearchOptions{Mode: DirectChildren, Path: "/root", IncludeFiles: false, IncludeDirs: false},
		func(e *Entry) error { none = append(none, e.Name()); return nil }))
	if len(none) != 0 {
		t.Fatalf("expected no results when both filters false, got %v", none)
	}
}

func TestSearchBookmarkAndRangeFilters(t *testing.T) {
	fi := openTestIndex(t)

	small := fileEntry("/root/small.jpg", "/root", "image/jpeg", 10, 10)
	small.Bookmarked = true
	small.BookmarkTags = NewSet("favorite")
	must(t, fi.AddRecord(nil, small))

	big := fileEntry("/root/big.jpg", "/root", "image/jpeg", 1000, 1000)
	must(t, fi.AddRecord(nil, big))

	bookmarkedOnly := true
	var names []string
	must(t, fi.Search(nil, SearchOptions{
		Mode: DirectChildren, Path: "/root", Bookmarked: &bookmarkedOnly,
		IncludeFiles: true, IncludeDirs: true,
	}, func(e *Entry) error { names = append(names, e.Name()); return nil }))
	if len(names) != 1 || names[0] != "small.jpg" {
		t.Fatalf("expected only bookmarked, got %v", names)
	}

	names = nil
	must(t, fi.Search(nil, SearchOptions{
		Mode: DirectChildren, Path: "/root", TotalPixelsRange: ScalarRange(10 * 10),
		IncludeFiles: true, IncludeDirs: true,
	}, func(e *Entry) error { names = append(names, e.Name()); return nil }))
	if len(names) != 1 || names[0] != "small.jpg" {
		t.Fatalf("expected total-pixels range to select small.jpg, got %v", names)
	}
}

func TestRenameUpdatesSubtree(t *testing.T) {
	fi := openTestIndex(t)

	must(t, fi.AddRecord(nil, dirEntry("/root/old", "/root")))
	must(t, fi.AddRecord(nil, fileEntry("/root/old/a.jpg", "/root/old", "image/jpeg", 1, 1)))
	must(t, fi.AddRecord(nil, dirEntry("/root/old/sub", "/root/old")))
	must(t, fi.AddRecord(nil, fileEntry("/root/old/sub/b.jpg", "/root/old/sub", "image/jpeg", 1, 1)))

	if err := fi.Rename(nil, "/root/old", "/root/new"); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	for _, p := range []string{"/root/new", "/root/new/a.jpg", "/root/new/sub", "/root/new/sub/b.jpg"} {
		got, err := fi.Get(nil, p)
		if err != nil {
			t.Fatalf("Get(%s): %v", p, err)
		}
		if got == nil {
			t.Fatalf("expected %s to exist after rename", p)
		}
	}

	if got, _ := fi.Get(nil, "/root/old"); got != nil {
		t.Fatal("expected old path to be gone after rename")
	}

	sub, err := fi.Get(nil, "/root/new/sub")
	if err != nil {
		t.Fatalf("Get sub: %v", err)
	}
	if sub.Parent != "/root/new" {
		t.Fatalf("expected sub's parent rewritten, got %q", sub.Parent)
	}

	leaf, err := fi.Get(nil, "/root/new/sub/b.jpg")
	if err != nil {
		t.Fatalf("Get leaf: %v", err)
	}
	if leaf.Parent != "/root/new/sub" {
		t.Fatalf("expected leaf's parent rewritten, got %q", leaf.Parent)
	}
}

func TestDeleteRecursively(t *testing.T) {
	fi := openTestIndex(t)

	must(t, fi.AddRecord(nil, dirEntry("/root/sub", "/root")))
	must(t, fi.AddRecord(nil, fileEntry("/root/sub/a.jpg", "/root/sub", "image/jpeg", 1, 1)))
	must(t, fi.AddRecord(nil, fileEntry("/root/keep.jpg", "/root", "image/jpeg", 1, 1)))

	if err := fi.DeleteRecursively(nil, []string{"/root/sub"}); err != nil {
		t.Fatalf("DeleteRecursively: %v", err)
	}

	if got, _ := fi.Get(nil, "/root/sub"); got != nil {
		t.Fatal("expected sub to be deleted")
	}
	if got, _ := fi.Get(nil, "/root/sub/a.jpg"); got != nil {
		t.Fatal("expected descendant to be deleted")
	}
	if got, _ := fi.Get(nil, "/root/keep.jpg"); got == nil {
		t.Fatal("expected unrelated entry to survive")
	}
}

func TestGetAllBookmarkTags(t *testing.T) {
	fi := openTestIndex(t)

	a := fileEntry("/root/a.jpg", "/root", "image/jpeg", 1, 1)
	a.Bookmarked = true
	a.BookmarkTags = NewSet("favorite", "trip")
	must(t, fi.AddRecord(nil, a))

	b := fileEntry("/root/b.jpg", "/root", "image/jpeg", 1, 1)
	b.Bookmarked = true
	b.BookmarkTags = NewSet("favorite")
	must(t, fi.AddRecord(nil, b))

	counts, err := fi.GetAllBookmarkTags(nil)
	if err != nil {
		t.Fatalf("GetAllBookmarkTags: %v", err)
	}
	if counts["favorite"] != 2 || counts["trip"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}
}

func TestLastUpdateTimeRoundTrip(t *testing.T) {
	fi := openTestIndex(t)

	zero, err := fi.GetLastUpdateTime(nil)
	if err != nil {
		t.Fatalf("GetLastUpdateTime: %v", err)
	}
	if !zero.IsZero() {
		t.Fatalf("expected zero time before any write, got %v", zero)
	}

	when := time.Unix(1700000000, 0).UTC()
	if err := fi.SetLastUpdateTime(nil, when); err != nil {
		t.Fatalf("SetLastUpdateTime: %v", err)
	}

	got, err := fi.GetLastUpdateTime(nil)
	if err != nil {
		t.Fatalf("GetLastUpdateTime: %v", err)
	}
	if !got.Equal(when) {
		t.Fatalf("expected %v, got %v", when, got)
	}
}

func TestConnectReentrant(t *testing.T) {
	fi := openTestIndex(t)

	tx, err := fi.Connect(nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	inner, err := fi.Connect(tx)
	if err != nil {
		t.Fatalf("reentrant Connect: %v", err)
	}
	if inner.tx != tx.tx {
		t.Fatal("expected reentrant Connect to share the same underlying transaction")
	}

	if err := fi.AddRecord(tx, fileEntry("/root/a.jpg", "/root", "image/jpeg", 1, 1)); err != nil {
		t.Fatalf("AddRecord within tx: %v", err)
	}

	// The inner handle's Commit must be a no-op; only the outer commits.
	if err := inner.Commit(); err != nil {
		t.Fatalf("inner Commit: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("outer Commit: %v", err)
	}

	got, err := fi.Get(nil, "/root/a.jpg")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected committed entry to be visible")
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
