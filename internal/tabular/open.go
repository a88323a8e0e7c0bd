package tabular

import (
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/vvka-141/widload/internal/files/filesystem"
	"github.com/vvka-141/widload/pkg/widload"
)

type gzipReadCloser struct {
	*gzip.Reader
	src io.Closer
}

func (g *gzipReadCloser) Close() error {
	gzErr := g.Reader.Close()
	if err := g.src.Close(); err != nil {
		return err
	}
	return gzErr
}

// Open returns the content of path, gunzipped when path ends in ".gz".
func Open(fsys filesystem.FileSystemProvider, path string) (io.ReadCloser, error) {
	src, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(path, widload.CompressedSuffix) {
		return src, nil
	}
	zr, err := gzip.NewReader(src)
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("gzip %s: %w", path, err)
	}
	return &gzipReadCloser{Reader: zr, src: src}, nil
}
