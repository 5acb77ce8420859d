package sidecar

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingIsEmpty(t *testing.T) {
	dir := t.TempDir()
	data := Load(dir)
	if len(data) != 0 {
		t.Fatalf("expected empty map, got %v", data)
	}
}

func TestLoadCorruptIsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(sidecarPath(dir), []byte("not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	data := Load(dir)
	if len(data) != 0 {
		t.Fatalf("expected empty map for corrupt sidecar, got %v", data)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()

	if err := SaveFile(dir, "a.jpg", Metadata{Bookmarked: true, BookmarkTags: "x y"}); err != nil {
		t.Fatal(err)
	}

	data := Load(dir)
	got, ok := data["a.jpg"]
	if !ok {
		t.Fatal("expected a.jpg entry")
	}
	if !got.Bookmarked || got.BookmarkTags != "x y" {
		t.Fatalf("unexpected metadata: %+v", got)
	}

	if _, err := os.Stat(sidecarPath(dir)); err != nil {
		t.Fatalf("expected sidecar file to exist: %v", err)
	}
}

func TestSaveEmptyDeletesSidecar(t *testing.T) {
	dir := t.TempDir()

	if err := SaveFile(dir, "a.jpg", Metadata{Bookmarked: true, BookmarkTags: "x"}); err != nil {
		t.Fatal(err)
	}
	if err := SaveFile(dir, "a.jpg", Metadata{}); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(sidecarPath(dir)); !os.IsNotExist(err) {
		t.Fatalf("expected sidecar file to be deleted, stat error: %v", err)
	}

	data := Load(dir)
	if len(data) != 0 {
		t.Fatalf("expected empty map after delete, got %v", data)
	}
}

func TestSaveDirectoryMetadataUsesSelfKey(t *testing.T) {
	dir := t.TempDir()

	if err := SaveFile(dir, selfKey, Metadata{Bookmarked: true, BookmarkTags: "dirtag"}); err != nil {
		t.Fatal(err)
	}

	got := LoadFile(dir, ".")
	if !got.Bookmarked || got.BookmarkTags != "dirtag" {
		t.Fatalf("unexpected directory metadata: %+v", got)
	}
}

func TestMultipleFilesKeepIndependentEntries(t *testing.T) {
	dir := t.TempDir()

	if err := SaveFile(dir, "a.jpg", Metadata{Bookmarked: true, BookmarkTags: "a"}); err != nil {
		t.Fatal(err)
	}
	if err := SaveFile(dir, "b.jpg", Metadata{Bookmarked: true, BookmarkTags: "b"}); err != nil {
		t.Fatal(err)
	}
	if err := SaveFile(dir, "a.jpg", Metadata{}); err != nil {
		t.Fatal(err)
	}

	data := Load(dir)
	if len(data) != 1 {
		t.Fatalf("expected exactly one remaining entry, got %v", data)
	}
	if _, ok := data["b.jpg"]; !ok {
		t.Fatal("expected b.jpg to remain")
	}

	if _, err := os.Stat(sidecarPath(dir)); err != nil {
		t.Fatalf("sidecar should still exist: %v", err)
	}
}

func TestIsSidecarName(t *testing.T) {
	if !IsSidecarName(FileName) {
		t.Fatal("expected FileName to be recognized as the sidecar name")
	}
	if IsSidecarName(filepath.Base("a.jpg")) {
		t.Fatal("did not expect a.jpg to be recognized as the sidecar name")
	}
}
