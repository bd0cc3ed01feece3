package memarchive

import (
	"bytes"
	"io"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/meigma/memarchive/internal/pathutil"
)

// Interface compliance.
var (
	_ fs.FS         = (*Resolver)(nil)
	_ fs.StatFS     = (*Resolver)(nil)
	_ fs.ReadFileFS = (*Resolver)(nil)
	_ fs.ReadDirFS  = (*Resolver)(nil)
)

// Open implements fs.FS over the merged contents of the bound archives.
//
// Files resolve to the first archive holding the name. Directories are
// synthesized from entry names and explicit directory entries.
func (r *Resolver) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}

	if e, a, ok := r.Entry(name); ok && !e.IsDir() {
		data, err := r.ExtractAt(a, e.Offset, name)
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}
		return &openFile{Reader: bytes.NewReader(data), info: newFileInfo(&e)}, nil
	}

	if r.isDir(name) {
		return &openDir{r: r, name: name}, nil
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// Stat implements fs.StatFS without decoding the entry.
func (r *Resolver) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}
	if e, _, ok := r.Entry(name); ok && !e.IsDir() {
		return newFileInfo(&e), nil
	}
	if r.isDir(name) {
		return newDirInfo(name), nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

// ReadFile implements fs.ReadFileFS.
//
// The returned slice is a private copy the caller may modify.
func (r *Resolver) ReadFile(name string) ([]byte, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrInvalid}
	}
	e, a, ok := r.Entry(name)
	if !ok || e.IsDir() {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrNotExist}
	}
	data, err := r.ExtractAt(a, e.Offset, name)
	if err != nil {
		if isNotFound(err) {
			err = fs.ErrNotExist
		}
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: err}
	}
	return bytes.Clone(data), nil
}

// ReadDir implements fs.ReadDirFS.
//
// Entries from every bound archive are merged and sorted by name.
func (r *Resolver) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	if !r.isDir(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	return r.children(name), nil
}

// isDir reports whether name is the root, an explicit directory entry, or a
// prefix of some entry name.
func (r *Resolver) isDir(name string) bool {
	if name == "." {
		return true
	}
	prefix := pathutil.DirPrefix(name)
	for _, b := range r.bindings {
		if b.toc.Contains(prefix) {
			return true
		}
		for n := range b.toc.Names() {
			if strings.HasPrefix(n, prefix) {
				return true
			}
		}
	}
	return false
}

// children lists the immediate children of directory dir, first archive wins.
func (r *Resolver) children(dir string) []fs.DirEntry {
	prefix := pathutil.DirPrefix(dir)
	seen := make(map[string]fs.DirEntry)
	for _, b := range r.bindings {
		for e := range b.toc.Entries() {
			child, nested, ok := pathutil.Child(e.Name, prefix)
			if !ok || !fs.ValidPath(child) {
				continue
			}
			if _, ok := seen[child]; ok {
				continue
			}
			if nested {
				seen[child] = fs.FileInfoToDirEntry(newDirInfo(prefix + child))
			} else {
				seen[child] = fs.FileInfoToDirEntry(newFileInfo(&e))
			}
		}
	}

	out := make([]fs.DirEntry, 0, len(seen))
	for _, de := range seen {
		out = append(out, de)
	}
	slices.SortFunc(out, func(a, b fs.DirEntry) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return out
}

// openFile is an extracted entry opened through fs.FS.
type openFile struct {
	*bytes.Reader
	info *fileInfo
}

func (f *openFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *openFile) Close() error               { return nil }

// openDir is a synthesized directory opened through fs.FS.
type openDir struct {
	r       *Resolver
	name    string
	entries []fs.DirEntry
	offset  int
	listed  bool
}

func (d *openDir) Read(_ []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: fs.ErrInvalid}
}

func (d *openDir) Stat() (fs.FileInfo, error) { return newDirInfo(d.name), nil }
func (d *openDir) Close() error               { return nil }

// ReadDir implements fs.ReadDirFile.
func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	if !d.listed {
		d.entries = d.r.children(d.name)
		d.listed = true
	}
	remaining := d.entries[d.offset:]
	if n <= 0 {
		d.offset = len(d.entries)
		return remaining, nil
	}
	if len(remaining) == 0 {
		return nil, io.EOF
	}
	if n > len(remaining) {
		n = len(remaining)
	}
	d.offset += n
	return remaining[:n], nil
}

// fileInfo describes an archive entry.
type fileInfo struct {
	entry Entry
}

func newFileInfo(e *Entry) *fileInfo {
	return &fileInfo{entry: *e}
}

func (fi *fileInfo) Name() string { return pathutil.Base(fi.entry.Name) }
func (fi *fileInfo) Size() int64  { return int64(fi.entry.UncompressedSize) } //nolint:gosec // bounded by reader limits
func (fi *fileInfo) Mode() fs.FileMode {
	if fi.entry.Mode.Perm() == 0 {
		return fi.entry.Mode | 0o444
	}
	return fi.entry.Mode
}
func (fi *fileInfo) ModTime() time.Time { return fi.entry.Modified }
func (fi *fileInfo) IsDir() bool        { return false }

// Sys returns the entry's Entry metadata.
func (fi *fileInfo) Sys() any { return fi.entry }

// dirInfo describes a synthesized directory.
type dirInfo struct {
	name string
}

func newDirInfo(name string) *dirInfo {
	return &dirInfo{name: pathutil.Base(name)}
}

func (di *dirInfo) Name() string       { return di.name }
func (di *dirInfo) Size() int64        { return 0 }
func (di *dirInfo) Mode() fs.FileMode  { return fs.ModeDir | 0o555 }
func (di *dirInfo) ModTime() time.Time { return time.Time{} }
func (di *dirInfo) IsDir() bool        { return true }
func (di *dirInfo) Sys() any           { return nil }
