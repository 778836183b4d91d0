package tabular

import (
	"fmt"
	"io"
	"iter"

	"github.com/xuri/excelize/v2"
)

// rawValues reads the stored cell value, not the number-formatted text, so
// "1,234.50" or "10%" in the sheet arrive as 1234.5 and 0.1.
var rawValues = excelize.Options{RawCellValue: true}

type xlsxSource struct {
	file   *excelize.File
	sheet  string
	labels []string
}

// ReadXLSX reads the first worksheet of an Excel workbook from r. The first
// row is the header row.
func ReadXLSX(r io.Reader) (Source, error) {
	s, err := readXLSX(r)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func readXLSX(r io.Reader) (*xlsxSource, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, fmt.Errorf("workbook has no sheets")
	}
	s := &xlsxSource{file: f, sheet: sheets[0]}

	rows, err := f.Rows(s.sheet)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("read sheet %q: %w", s.sheet, err)
	}
	defer rows.Close()
	if rows.Next() {
		header, err := rows.Columns(rawValues)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("read header row: %w", err)
		}
		s.labels = labelHeaders(header)
	}
	return s, nil
}

func (s *xlsxSource) Name() string      { return s.sheet }
func (s *xlsxSource) Headers() []string { return visible(s.labels) }
func (s *xlsxSource) Close() error      { return s.file.Close() }

func (s *xlsxSource) Rows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		if s.labels == nil {
			return
		}
		rows, err := s.file.Rows(s.sheet)
		if err != nil {
			yield(nil, fmt.Errorf("read sheet %q: %w", s.sheet, err))
			return
		}
		defer rows.Close()

		// header
		if !rows.Next() {
			return
		}
		for rows.Next() {
			cells, err := rows.Columns(rawValues)
			if err != nil {
				yield(nil, fmt.Errorf("read row: %w", err))
				return
			}
			if !yield(toRow(s.labels, cells), nil) {
				return
			}
		}
		if err := rows.Error(); err != nil {
			yield(nil, fmt.Errorf("read sheet %q: %w", s.sheet, err))
		}
	}
}
