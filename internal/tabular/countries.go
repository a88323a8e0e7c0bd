package tabular

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ReadCountryCodes returns the distinct non-empty values of column in the
// order they first appear. Values are trimmed but otherwise kept verbatim.
func ReadCountryCodes(r io.Reader, column string) ([]string, error) {
	cr := newReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty country file: %w", ErrBadHeader)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx, err := columnIndex(NormalizeHeader(header), []string{strings.ToLower(column)})
	if err != nil {
		return nil, err
	}
	col := idx[0]

	seen := make(map[string]bool)
	var codes []string
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return codes, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read country codes: %w", err)
		}
		if col >= len(record) {
			continue
		}
		code := strings.TrimSpace(record[col])
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		codes = append(codes, code)
	}
}
