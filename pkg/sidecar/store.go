// Package sidecar implements per-directory JSON sidecar files holding
// user-editable metadata (bookmarks and bookmark tags) that the filesystem
// itself cannot represent.
package sidecar

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// FileName is the fixed name of the sidecar file stored in each indexed
// directory.
const FileName = ".medialib-bookmarks.json.txt"

// identifier and version are written into every sidecar file so that a
// future format revision can detect and migrate older files; this module
// only ever writes the current version and treats any other value as
// unrecognized (falling back to an empty load rather than failing).
const (
	identifier     = "medialib-sidecar"
	currentVersion = 1
)

// Metadata is the user-editable metadata for a single file or directory.
type Metadata struct {
	// Bookmarked indicates whether the entry has been bookmarked.
	Bookmarked bool `json:"bookmarked"`
	// BookmarkTags is a space-joined set of tags, matching how FileIndex
	// stores tag sets. It is always empty when Bookmarked is false.
	BookmarkTags string `json:"bookmark_tags"`
}

// isEmpty reports whether m carries no information worth persisting.
func (m Metadata) isEmpty() bool {
	return !m.Bookmarked && m.BookmarkTags == ""
}

// document is the on-disk sidecar file shape.
type document struct {
	Identifier string              `json:"identifier"`
	Version    int                 `json:"version"`
	Data       map[string]Metadata `json:"data"`
}

// selfKey is the key used within a sidecar's Data map for metadata that
// applies to the directory itself, as opposed to one of its children.
const selfKey = "."

// sidecarPath returns the sidecar file location for the directory dir.
func sidecarPath(dir string) string {
	return filepath.Join(dir, FileName)
}

// Load reads the sidecar file for directory dir, returning a mapping from
// filename (or "." for the directory itself) to Metadata. A missing or
// corrupt sidecar file yields an empty, non-nil mapping rather than an
// error: sidecar corruption must never fail the caller.
func Load(dir string) map[string]Metadata {
	doc, err := readDocument(dir)
	if err != nil || doc == nil {
		return map[string]Metadata{}
	}
	if doc.Data == nil {
		return map[string]Metadata{}
	}
	return doc.Data
}

// LoadFile returns the metadata for a single filename inside dir, or for the
// directory itself when name is "." (see selfKey). Missing metadata returns
// the zero Metadata.
func LoadFile(dir, name string) Metadata {
	data := Load(dir)
	return data[name]
}

// readDocument loads and parses the sidecar file for dir, returning (nil,
// nil) if it doesn't exist and (nil, err) only for errors reading a file
// that does exist (parse failures are reported as (nil, nil) per the
// degrade-to-empty contract).
func readDocument(dir string) (*document, error) {
	raw, err := os.ReadFile(sidecarPath(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "unable to read sidecar file")
	}

	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, nil
	}
	if doc.Identifier != identifier || doc.Version != currentVersion {
		return nil, nil
	}

	return &doc, nil
}

// SaveFile performs a read-modify-write of the sidecar for directory dir,
// setting the key name (a filename inside dir, or selfKey for the directory
// itself) to metadata. If metadata is the zero value, the key is removed
// instead of being written as an empty entry. If the resulting Data map is
// empty, the sidecar file is deleted rather than left behind as an empty
// shell. It returns a wrapped error when an existing sidecar can't be read
// or the sidecar can't be written or deleted; a sidecar that can't be
// parsed never fails this call (it is replaced).
func SaveFile(dir, name string, metadata Metadata) error {
	doc, err := readDocument(dir)
	if err != nil {
		return errors.Wrap(err, "unable to load existing sidecar")
	}
	if doc == nil {
		doc = &document{Identifier: identifier, Version: currentVersion, Data: map[string]Metadata{}}
	}
	if doc.Data == nil {
		doc.Data = map[string]Metadata{}
	}

	if metadata.isEmpty() {
		delete(doc.Data, name)
	} else {
		doc.Data[name] = metadata
	}

	if len(doc.Data) == 0 {
		return deleteSidecar(dir)
	}

	return writeSidecar(dir, doc)
}

// writeSidecar clears the hidden attribute (on platforms that enforce it),
// writes the document, and restores the hidden attribute, so that a sidecar
// marked hidden to keep it out of the user's view doesn't block an
// overwrite.
func writeSidecar(dir string, doc *document) error {
	path := sidecarPath(dir)

	wasHidden, unhideErr := clearHidden(path)
	if unhideErr != nil {
		return errors.Wrap(unhideErr, "unable to clear hidden attribute")
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, "unable to encode sidecar")
	}

	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return errors.Wrap(err, "unable to write sidecar file")
	}

	if hideErr := markHidden(path); hideErr != nil && wasHidden {
		// Only a failure to *restore* a previously-hidden attribute is
		// surfaced: the write itself succeeded, but silently dropping
		// a pre-existing hidden attribute would be a visible
		// regression. Failing to hide a brand-new sidecar is not
		// fatal, since the write still succeeded.
		return errors.Wrap(hideErr, "unable to restore hidden attribute")
	}

	return nil
}

// deleteSidecar removes the sidecar file for dir, tolerating its absence.
func deleteSidecar(dir string) error {
	if err := os.Remove(sidecarPath(dir)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "unable to delete sidecar file")
	}
	return nil
}

// IsSidecarName reports whether name is the fixed sidecar filename, used by
// Library to ignore change events on its own metadata files and avoid a
// reconcile feedback loop.
func IsSidecarName(name string) bool {
	return name == FileName
}
