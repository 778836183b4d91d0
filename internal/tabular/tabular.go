// Package tabular reads spreadsheet-like files as a header row followed by
// data rows keyed by header label.
package tabular

import (
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/listenupapp/catalog-server/internal/errors"
)

// Row maps a header label to the raw cell text.
type Row map[string]string

// Empty reports whether every cell is blank.
func (r Row) Empty() bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Source is an open table.
type Source interface {
	// Name is the sheet name, or the file base name for formats without sheets.
	Name() string
	// Headers returns the column labels in column order.
	Headers() []string
	// Rows yields data rows in file order. A read error ends the sequence.
	Rows() iter.Seq2[Row, error]
	Close() error
}

// Supported reports whether path has an extension Open can read.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx", ".xlsm":
		return true
	}
	return false
}

// Open opens path, picking the reader by file extension.
func Open(path string) (Source, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !Supported(path) {
		return nil, apperrors.Unsupportedf("unsupported file type %q: expected .csv, .xlsx or .xlsm", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if ext == ".csv" {
		return ReadCSV(name, f)
	}
	return ReadXLSX(f)
}

// Count drains src and returns the number of data rows, stopping at the
// first read error.
func Count(src Source) int {
	n := 0
	for _, err := range src.Rows() {
		if err != nil {
			break
		}
		n++
	}
	return n
}

// labelHeaders trims raw header cells and makes repeated labels unique by
// suffixing _1, _2 and so on. Blank headers keep an empty label and their
// column is ignored.
func labelHeaders(raw []string) []string {
	used := make(map[string]bool, len(raw))
	repeats := make(map[string]int)
	out := make([]string, len(raw))
	for i, h := range raw {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if h == "" {
			continue
		}
		label := h
		for used[label] {
			repeats[h]++
			label = fmt.Sprintf("%s_%d", h, repeats[h])
		}
		used[label] = true
		out[i] = label
	}
	return out
}

// visible returns the non-blank labels.
func visible(labels []string) []string {
	out := make([]string, 0, len(labels))
	for _, l := range labels {
		if l != "" {
			out = append(out, l)
		}
	}
	return out
}

func toRow(labels, cells []string) Row {
	row := make(Row, len(labels))
	for i, l := range labels {
		if l == "" {
			continue
		}
		if i < len(cells) {
			row[l] = cells[i]
		} else {
			row[l] = ""
		}
	}
	return row
}
