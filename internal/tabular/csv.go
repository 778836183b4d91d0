package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"iter"
)

type csvSource struct {
	name   string
	data   []byte
	labels []string
}

// ReadCSV reads a comma separated table from r. The first record is the
// header row.
func ReadCSV(name string, r io.Reader) (Source, error) {
	s, err := readCSV(name, r)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func readCSV(name string, r io.Reader) (*csvSource, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	header, err := newCSVReader(data).Read()
	if errors.Is(err, io.EOF) {
		return &csvSource{name: name, data: data}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	return &csvSource{name: name, data: data, labels: labelHeaders(header)}, nil
}

func newCSVReader(data []byte) *csv.Reader {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	return r
}

func (s *csvSource) Name() string      { return s.name }
func (s *csvSource) Headers() []string { return visible(s.labels) }
func (s *csvSource) Close() error      { return nil }

func (s *csvSource) Rows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		if s.labels == nil {
			return
		}
		r := newCSVReader(s.data)
		if _, err := r.Read(); err != nil {
			return
		}
		for {
			rec, err := r.Read()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield(nil, fmt.Errorf("read csv: %w", err))
				return
			}
			if !yield(toRow(s.labels, rec), nil) {
				return
			}
		}
	}
}
