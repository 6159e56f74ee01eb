package recipients

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
)

// CSVFile reads recipients from a comma-separated file with a header row.
type CSVFile struct {
	Path string
}

func (f CSVFile) Rows(ctx context.Context) ([]Recipient, error) {
	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	r := csv.NewReader(fh)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%s: %w", f.Path, ErrMissingEmailCol)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", f.Path, err)
	}
	t, err := newTable(header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}

	var out []Recipient
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Path, err)
		}
		if row, ok := t.row(rec); ok {
			out = append(out, row)
		}
	}
	return out, nil
}
