// Package recipients reads recipient rows from tabular files.
//
// Supported formats are CSV and XLSX. The first row is a header; an "email"
// column is required and a "name" column is optional (matched
// case-insensitively).
package recipients

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported email list format; only CSV and XLSX are supported")
	ErrMissingEmailCol   = errors.New("recipient list has no email column")
)

// Recipient is one row of a recipient list.
type Recipient struct {
	Email string
	Name  string
}

// Source yields the recipient rows of one list.
type Source interface {
	Rows(ctx context.Context) ([]Recipient, error)
}

// Opener resolves a list path to a Source.
type Opener func(path string) (Source, error)

// Open picks a Source by file extension.
func Open(path string) (Source, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return CSVFile{Path: path}, nil
	case ".xlsx":
		return XLSXFile{Path: path}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
	}
}

// table maps header cells to column indexes and converts data rows.
type table struct {
	email int
	name  int
}

func newTable(header []string) (table, error) {
	t := table{email: -1, name: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "email":
			if t.email < 0 {
				t.email = i
			}
		case "name":
			if t.name < 0 {
				t.name = i
			}
		}
	}
	if t.email < 0 {
		return t, ErrMissingEmailCol
	}
	return t, nil
}

// row converts one data row; ok is false for fully blank rows.
func (t table) row(cells []string) (Recipient, bool) {
	blank := true
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			blank = false
			break
		}
	}
	if blank {
		return Recipient{}, false
	}
	return Recipient{Email: cell(cells, t.email), Name: cell(cells, t.name)}, true
}

func cell(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}
