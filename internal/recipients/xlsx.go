package recipients

import (
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// XLSXFile reads recipients from the first sheet of a workbook.
type XLSXFile struct {
	Path string
}

func (f XLSXFile) Rows(ctx context.Context) ([]Recipient, error) {
	wb, err := excelize.OpenFile(f.Path)
	if err != nil {
		return nil, err
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%s: workbook has no sheets", f.Path)
	}
	rows, err := wb.Rows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	defer rows.Close()

	var (
		t      table
		header = true
		out    []Recipient
	)
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		cells, err := rows.Columns()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Path, err)
		}
		if header {
			t, err = newTable(cells)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f.Path, err)
			}
			header = false
			continue
		}
		if row, ok := t.row(cells); ok {
			out = append(out, row)
		}
	}
	if err := rows.Error(); err != nil {
		return nil, fmt.Errorf("%s: %w", f.Path, err)
	}
	if header {
		return nil, fmt.Errorf("%s: %w", f.Path, ErrMissingEmailCol)
	}
	return out, nil
}
