package scanner

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vvka-141/widload/internal/files/filesystem"
	"github.com/vvka-141/widload/pkg/widload"
)

func newTestScanner(files map[string]string) *Scanner {
	m := filesystem.NewMemoryFileSystem()
	for name, content := range files {
		m.AddFile(filepath.Join("/in", name), []byte(content))
	}
	return NewScannerWithFS(m)
}

func TestResolve(t *testing.T) {
	s := newTestScanner(map[string]string{
		"WID_countries.csv":  "alpha2\nFR\n",
		"WID_data_DE.csv.gz": "gz",
	})

	f, err := s.Resolve("/in", "WID_countries.csv")
	require.NoError(t, err)
	assert.Equal(t, "WID_countries.csv", f.Name)
	assert.False(t, f.Compressed)

	f, err = s.DataFile("/in", widload.DefaultDataFilePattern, "DE")
	require.NoError(t, err)
	assert.Equal(t, "WID_data_DE.csv.gz", f.Name)
	assert.True(t, f.Compressed)

	_, err = s.DataFile("/in", widload.DefaultDataFilePattern, "FR")
	assert.True(t, errors.Is(err, widload.ErrSourceNotFound))
}

func TestDataFile_RejectsPathLikeCodes(t *testing.T) {
	s := newTestScanner(map[string]string{"x.csv": ""})
	for _, code := range []string{"", "..", "a/b", `a\b`} {
		_, err := s.DataFile("/in", widload.DefaultDataFilePattern, code)
		assert.True(t, errors.Is(err, widload.ErrSourceNotFound), "code %q", code)
	}
}

func TestMetadataFiles(t *testing.T) {
	s := newTestScanner(map[string]string{
		"WID_metadata_FR.csv":    "f",
		"WID_metadata_DE.csv":    "d",
		"WID_metadata_DE.csv.gz": "dup",
		"WID_metadata_US.csv.gz": "u",
		"WID_data_FR.csv":        "x",
		"notes.txt":              "y",
		"sub/WID_metadata_X.csv": "nested",
	})

	files, err := s.MetadataFiles("/in", widload.DefaultMetadataGlob)
	require.NoError(t, err)

	var names []string
	for _, f := range files {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"WID_metadata_DE.csv", "WID_metadata_FR.csv", "WID_metadata_US.csv.gz"}, names)
}

func TestMetadataFiles_InvalidGlob(t *testing.T) {
	s := newTestScanner(map[string]string{"a.csv": ""})
	_, err := s.MetadataFiles("/in", "[")
	assert.True(t, errors.Is(err, widload.ErrInvalidConfig))
}

func TestLargestFirst(t *testing.T) {
	files := []SourceFile{
		{Name: "a.csv", Size: 10},
		{Name: "b.csv", Size: 30},
		{Name: "d.csv", Size: 20},
		{Name: "c.csv", Size: 20},
	}

	tests := []struct {
		n    int
		want string
	}{
		{2, "b.csv,c.csv"},
		{3, "b.csv,c.csv,d.csv"},
		{0, "b.csv,c.csv,d.csv,a.csv"},
		{10, "b.csv,c.csv,d.csv,a.csv"},
	}
	for _, tt := range tests {
		var names []string
		for _, f := range LargestFirst(files, tt.n) {
			names = append(names, f.Name)
		}
		assert.Equal(t, tt.want, strings.Join(names, ","), "n=%d", tt.n)
	}

	assert.Equal(t, "a.csv", files[0].Name, "input must not be reordered")
}
