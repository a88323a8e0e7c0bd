package filesystem

import (
	"io"
	"io/fs"
)

// FileInfo is an alias for fs.FileInfo from the standard library.
type FileInfo = fs.FileInfo

// FileSystemProvider gives streaming, read-only access to input files.
// Implementations must be safe for concurrent use; partition workers open
// data files in parallel.
type FileSystemProvider interface {
	// Open returns a reader over the file at path. The caller must close it.
	// A missing file yields an error satisfying errors.Is(err, fs.ErrNotExist).
	Open(path string) (io.ReadCloser, error)

	// ReadDir returns the entries of the directory at path, sorted by name.
	ReadDir(path string) ([]FileInfo, error)

	// Stat returns file information for the given path.
	Stat(path string) (FileInfo, error)
}
