package filesystem

import (
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryFileInfo struct {
	name    string
	size    int64
	modTime time.Time
	isDir   bool
}

func (f *memoryFileInfo) Name() string       { return f.name }
func (f *memoryFileInfo) Size() int64        { return f.size }
func (f *memoryFileInfo) ModTime() time.Time { return f.modTime }
func (f *memoryFileInfo) IsDir() bool        { return f.isDir }
func (f *memoryFileInfo) Sys() interface{}   { return nil }

func (f *memoryFileInfo) Mode() fs.FileMode {
	if f.isDir {
		return 0755 | fs.ModeDir
	}
	return 0644
}

// MemoryFileSystem implements FileSystemProvider for in-memory testing.
// Paths use forward slashes; directories are implied by file paths.
type MemoryFileSystem struct {
	mu    sync.RWMutex
	files map[string][]byte
}

func NewMemoryFileSystem() *MemoryFileSystem {
	return &MemoryFileSystem{files: make(map[string][]byte)}
}

// AddFile stores content at filePath, replacing any existing file.
func (m *MemoryFileSystem) AddFile(filePath string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[clean(filePath)] = content
}

func (m *MemoryFileSystem) Open(filePath string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.files[clean(filePath)]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: filePath, Err: fs.ErrNotExist}
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (m *MemoryFileSystem) ReadDir(dirPath string) ([]FileInfo, error) {
	dir := clean(dirPath)
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[string]FileInfo)
	for p, content := range m.files {
		rest, ok := strings.CutPrefix(p, dir+"/")
		if !ok {
			continue
		}
		name, _, nested := strings.Cut(rest, "/")
		if nested {
			seen[name] = &memoryFileInfo{name: name, isDir: true}
		} else {
			seen[name] = &memoryFileInfo{name: name, size: int64(len(content))}
		}
	}
	if len(seen) == 0 && !m.isDirLocked(dir) {
		return nil, fmt.Errorf("failed to read directory: %w", &fs.PathError{Op: "readdir", Path: dirPath, Err: fs.ErrNotExist})
	}

	result := make([]FileInfo, 0, len(seen))
	for _, info := range seen {
		result = append(result, info)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result, nil
}

func (m *MemoryFileSystem) Stat(filePath string) (FileInfo, error) {
	p := clean(filePath)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if content, ok := m.files[p]; ok {
		return &memoryFileInfo{name: path.Base(p), size: int64(len(content))}, nil
	}
	if m.isDirLocked(p) {
		return &memoryFileInfo{name: path.Base(p), isDir: true}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: filePath, Err: fs.ErrNotExist}
}

func (m *MemoryFileSystem) isDirLocked(dir string) bool {
	for p := range m.files {
		if strings.HasPrefix(p, dir+"/") {
			return true
		}
	}
	return false
}

func clean(p string) string {
	return path.Clean(filepath.ToSlash(p))
}
