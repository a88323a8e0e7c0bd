package tabular

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrBadHeader is wrapped by every header validation failure.
var ErrBadHeader = errors.New("bad header")

func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = ';'
	// Free-text metadata columns carry bare quotes, e.g. uses the "DINA" method.
	cr.LazyQuotes = true
	cr.ReuseRecord = true
	return cr
}

// NormalizeHeader trims a leading byte order mark and surrounding space from
// every name and lowercases it.
func NormalizeHeader(header []string) []string {
	out := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		out[i] = strings.ToLower(strings.TrimSpace(h))
	}
	return out
}

// columnIndex maps each wanted column to its position in header.
// Every wanted column must be present.
func columnIndex(header, wanted []string) ([]int, error) {
	pos := make(map[string]int, len(header))
	for i, h := range header {
		if _, dup := pos[h]; dup {
			return nil, fmt.Errorf("duplicate column %q: %w", h, ErrBadHeader)
		}
		pos[h] = i
	}
	idx := make([]int, len(wanted))
	var missing []string
	for i, w := range wanted {
		p, ok := pos[w]
		if !ok {
			missing = append(missing, w)
			continue
		}
		idx[i] = p
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing column(s) %s: %w", strings.Join(missing, ", "), ErrBadHeader)
	}
	return idx, nil
}

// SplitHeader reads the first line of r as a header and returns it
// normalized, along with a reader positioned at the first data row.
// The header line must not contain quoted newlines.
func SplitHeader(r io.Reader) ([]string, io.Reader, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	line, err := br.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("empty file: %w", ErrBadHeader)
		}
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	record, err := newReader(strings.NewReader(line)).Read()
	if err != nil {
		return nil, nil, fmt.Errorf("parse header: %v: %w", err, ErrBadHeader)
	}
	return NormalizeHeader(record), br, nil
}

// ValidateFactHeader checks that every header name is a known fact column,
// that none repeats, and that every required column is present.
func ValidateFactHeader(header, known, required []string) error {
	allowed := make(map[string]bool, len(known))
	for _, k := range known {
		allowed[k] = true
	}
	for _, h := range header {
		if !allowed[h] {
			return fmt.Errorf("unknown column %q: %w", h, ErrBadHeader)
		}
	}
	_, err := columnIndex(header, required)
	return err
}
