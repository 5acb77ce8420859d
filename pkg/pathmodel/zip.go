package pathmodel

import (
	"archive/zip"
	"bytes"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// zipArchive holds the opened archive shared by every zipEntry path derived
// from it. The container is read into memory anew each time a ".zip"
// Filesystem path is traversed (Iterdir, Open or Child), and that copy stays
// alive for the lifetime of the entries created from it; later changes to
// the container file are not seen by those entries.
type zipArchive struct {
	container *Filesystem
	data      []byte
	reader    *zip.Reader
	// dirs collects the set of directory prefixes implied by member
	// names, since the ZIP format doesn't always store explicit directory
	// entries.
	dirs map[string]bool
}

func openZipRoot(container *Filesystem) (*zipEntry, error) {
	f, err := openShared(container.native, true)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open archive")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, errors.Wrap(err, "unable to read archive")
	}

	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, errors.Wrap(err, "unable to parse archive")
	}

	archive := &zipArchive{
		container: container,
		data:      data,
		reader:    reader,
		dirs:      map[string]bool{"": true},
	}
	for _, f := range reader.File {
		name := strings.TrimSuffix(f.Name, "/")
		for dir := path.Dir(name); dir != "." && dir != "/"; dir = path.Dir(dir) {
			archive.dirs[dir] = true
		}
	}

	return &zipEntry{archive: archive, member: ""}, nil
}

// zipEntry is a Path inside an opened ZIP archive. member is the archive
// member path using forward slashes, relative to the archive root; the
// empty string refers to the archive root itself.
type zipEntry struct {
	archive *zipArchive
	member  string
}

func (z *zipEntry) file() *zip.File {
	for _, f := range z.archive.reader.File {
		if strings.TrimSuffix(f.Name, "/") == z.member {
			return f
		}
	}
	return nil
}

func (z *zipEntry) String() string {
	if z.member == "" {
		return z.archive.container.String()
	}
	return z.archive.container.String() + "/" + z.member
}

func (z *zipEntry) Name() string {
	if z.member == "" {
		return z.archive.container.Name()
	}
	return path.Base(z.member)
}

func (z *zipEntry) Exists() bool {
	if z.member == "" {
		return true
	}
	return z.file() != nil || z.archive.dirs[z.member]
}

func (z *zipEntry) IsFile() bool {
	return z.file() != nil
}

func (z *zipEntry) IsDir() bool {
	if z.member == "" {
		return true
	}
	return z.archive.dirs[z.member]
}

func (z *zipEntry) Suffix() string {
	return path.Ext(z.member)
}

func (z *zipEntry) Stat() (Info, error) {
	if f := z.file(); f != nil {
		return Info{
			CTime: f.Modified,
			MTime: f.Modified,
			Size:  int64(f.UncompressedSize64),
			IsDir: false,
		}, nil
	}
	if z.IsDir() {
		mtime := time.Time{}
		if cinfo, err := z.archive.container.Stat(); err == nil {
			mtime = cinfo.MTime
		}
		return Info{CTime: mtime, MTime: mtime, IsDir: true}, nil
	}
	return Info{}, errors.New("archive member not found")
}

func (z *zipEntry) Iterdir() (Iterator, error) {
	if !z.IsDir() {
		return nil, errors.New("not a directory")
	}

	seen := map[string]bool{}
	var children []string
	prefix := z.member
	for _, f := range z.archive.reader.File {
		name := strings.TrimSuffix(f.Name, "/")
		addZipChild(prefix, name, seen, &children)
	}
	for dir := range z.archive.dirs {
		addZipChild(prefix, dir, seen, &children)
	}
	sort.Strings(children)

	return &zipIterator{archive: z.archive, parentMember: prefix, names: children}, nil
}

// addZipChild records name as a direct child of prefix, if it is one.
func addZipChild(prefix, name string, seen map[string]bool, children *[]string) {
	if name == prefix {
		return
	}
	var rel string
	if prefix == "" {
		rel = name
	} else if strings.HasPrefix(name, prefix+"/") {
		rel = name[len(prefix)+1:]
	} else {
		return
	}
	if rel == "" {
		return
	}
	child := rel
	if idx := strings.IndexByte(rel, '/'); idx != -1 {
		child = rel[:idx]
	}
	full := child
	if prefix != "" {
		full = prefix + "/" + child
	}
	if !seen[full] {
		seen[full] = true
		*children = append(*children, full)
	}
}

func (z *zipEntry) Open(shared bool) (io.ReadCloser, error) {
	f := z.file()
	if f == nil {
		return nil, errors.New("archive member is not a file")
	}
	rc, err := f.Open()
	if err != nil {
		return nil, errors.Wrap(err, "unable to open archive member")
	}
	return rc, nil
}

func (z *zipEntry) WithName(name string) Path {
	parent := path.Dir(z.member)
	if parent == "." {
		parent = ""
	}
	return z.archive.child(parent, name)
}

func (z *zipEntry) Child(name string) Path {
	return z.archive.child(z.member, name)
}

func (a *zipArchive) child(parentMember, name string) Path {
	member := name
	if parentMember != "" {
		member = parentMember + "/" + name
	}
	return &zipEntry{archive: a, member: member}
}

// RealFile implements Path.RealFile: entries inside a ZIP have no writable
// on-disk location of their own, so SidecarStore must never target one.
func (z *zipEntry) RealFile() string {
	return ""
}

// zipIterator implements Iterator over the direct children of a ZIP member.
type zipIterator struct {
	archive      *zipArchive
	parentMember string
	names        []string
	index        int
	current      Path
}

func (it *zipIterator) Next() bool {
	if it.index >= len(it.names) {
		return false
	}
	it.current = &zipEntry{archive: it.archive, member: it.names[it.index]}
	it.index++
	return true
}

func (it *zipIterator) Path() Path {
	return it.current
}

func (it *zipIterator) Err() error {
	return nil
}

func (it *zipIterator) Close() error {
	return nil
}
