package static

import (
	"net/http"
	"path"
)

const indexFileName = "index.html"

// LocalFile returns a ServeFileSystem over the directory root. When
// allowIndexes is false only regular files exist; directories never do, even
// with an index.html inside.
func LocalFile(root string, allowIndexes bool) ServeFileSystem {
	return &dirFS{FileSystem: http.Dir(root), indexes: allowIndexes}
}

type dirFS struct {
	http.FileSystem
	indexes bool
}

type entryKind int

const (
	entryMissing entryKind = iota
	entryFile
	entryDir
)

func (d *dirFS) stat(name string) entryKind {
	f, err := d.Open(name)
	if err != nil {
		return entryMissing
	}
	defer f.Close()

	info, err := f.Stat()
	switch {
	case err != nil:
		return entryMissing
	case info.IsDir():
		return entryDir
	default:
		return entryFile
	}
}

// Exists implements ServeFileSystem. A directory exists only when indexes are
// allowed and it holds a regular index.html.
func (d *dirFS) Exists(prefix, requestPath string) bool {
	name, ok := sanitizeRequestPath(prefix, requestPath)
	if !ok {
		return false
	}
	switch d.stat(name) {
	case entryFile:
		return true
	case entryDir:
		return d.indexes && d.stat(path.Join(name, indexFileName)) == entryFile
	}
	return false
}
