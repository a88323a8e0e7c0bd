package tabular

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ReadProjected reads every row of a ';'-delimited file with a header,
// keeping only columns in the given order. Absent values are "".
//
// A header lacking any of columns, or a row whose field count differs from
// the header's, fails the whole read. ctx is checked between rows.
func ReadProjected(ctx context.Context, r io.Reader, columns []string) ([][]any, error) {
	cr := newReader(r)

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("empty file: %w", ErrBadHeader)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	idx, err := columnIndex(NormalizeHeader(header), columns)
	if err != nil {
		return nil, err
	}

	var rows [][]any
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		row := make([]any, len(columns))
		for i, src := range idx {
			row[i] = record[src]
		}
		rows = append(rows, row)
	}
}
