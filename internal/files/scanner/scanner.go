package scanner

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vvka-141/widload/internal/files/filesystem"
	"github.com/vvka-141/widload/pkg/widload"
)

// SourceFile is a resolved input file.
type SourceFile struct {
	// Name is the file name without directory, including any ".gz" suffix.
	Name string
	Path string
	Size int64

	Compressed bool
}

// Scanner resolves input files. Safe for concurrent use if the underlying
// FileSystemProvider is.
type Scanner struct {
	fsProvider filesystem.FileSystemProvider
}

// NewScanner creates a scanner over the OS filesystem.
func NewScanner() *Scanner {
	return &Scanner{fsProvider: filesystem.NewOSFileSystem()}
}

// NewScannerWithFS creates a scanner over a custom filesystem provider.
// Panics if fsProvider is nil.
func NewScannerWithFS(fsProvider filesystem.FileSystemProvider) *Scanner {
	if fsProvider == nil {
		panic("fsProvider cannot be nil")
	}
	return &Scanner{fsProvider: fsProvider}
}

// FS returns the filesystem the scanner reads from.
func (s *Scanner) FS() filesystem.FileSystemProvider {
	return s.fsProvider
}

// Resolve finds name in dir, falling back to name+".gz".
// A missing file yields an error wrapping widload.ErrSourceNotFound.
func (s *Scanner) Resolve(dir, name string) (SourceFile, error) {
	for _, candidate := range []string{name, name + widload.CompressedSuffix} {
		p := filepath.Join(dir, candidate)
		info, err := s.fsProvider.Stat(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return SourceFile{}, fmt.Errorf("stat %s: %w", p, err)
		}
		if info.IsDir() {
			return SourceFile{}, fmt.Errorf("%s is a directory: %w", p, widload.ErrSourceNotFound)
		}
		return newSourceFile(dir, info), nil
	}
	return SourceFile{}, fmt.Errorf("%s not found in %s: %w", name, dir, widload.ErrSourceNotFound)
}

// DataFile resolves the fact file for a source country code.
func (s *Scanner) DataFile(dir, pattern, code string) (SourceFile, error) {
	if code == "" || strings.ContainsAny(code, `/\`) || code == "." || code == ".." {
		return SourceFile{}, fmt.Errorf("country code %q cannot name a data file: %w", code, widload.ErrSourceNotFound)
	}
	return s.Resolve(dir, widload.DataFileName(pattern, code))
}

// MetadataFiles lists files in dir whose name matches glob, or glob plus
// ".gz", sorted by name. When both "x.csv" and "x.csv.gz" exist only the
// plain file is returned.
func (s *Scanner) MetadataFiles(dir, glob string) ([]SourceFile, error) {
	if _, err := path.Match(glob, ""); err != nil {
		return nil, fmt.Errorf("invalid metadata glob %q: %w", glob, widload.ErrInvalidConfig)
	}

	entries, err := s.fsProvider.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}

	plain := make(map[string]bool)
	var files []SourceFile
	for _, info := range entries {
		if info.IsDir() {
			continue
		}
		name := info.Name()
		if ok, _ := path.Match(glob, name); ok {
			plain[name] = true
			files = append(files, newSourceFile(dir, info))
			continue
		}
		if base, isGz := strings.CutSuffix(name, widload.CompressedSuffix); isGz {
			if ok, _ := path.Match(glob, base); ok {
				files = append(files, newSourceFile(dir, info))
			}
		}
	}

	result := files[:0]
	for _, f := range files {
		if f.Compressed && plain[strings.TrimSuffix(f.Name, widload.CompressedSuffix)] {
			continue
		}
		result = append(result, f)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// LargestFirst returns the n largest files ordered by size descending, ties
// broken by name ascending. n <= 0 or n >= len(files) ranks all files.
// The input slice is not modified.
func LargestFirst(files []SourceFile, n int) []SourceFile {
	ranked := make([]SourceFile, len(files))
	copy(ranked, files)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Size != ranked[j].Size {
			return ranked[i].Size > ranked[j].Size
		}
		return ranked[i].Name < ranked[j].Name
	})
	if n > 0 && n < len(ranked) {
		ranked = ranked[:n]
	}
	return ranked
}

func newSourceFile(dir string, info filesystem.FileInfo) SourceFile {
	return SourceFile{
		Name:       info.Name(),
		Path:       filepath.Join(dir, info.Name()),
		Size:       info.Size(),
		Compressed: strings.HasSuffix(info.Name(), widload.CompressedSuffix),
	}
}
