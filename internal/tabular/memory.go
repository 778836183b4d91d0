package tabular

import "iter"

type memorySource struct {
	name    string
	labels  []string
	records [][]string
}

// FromRecords builds a Source from in-memory records. The first record is
// the header row.
func FromRecords(name string, records [][]string) Source {
	s := &memorySource{name: name}
	if len(records) > 0 {
		s.labels = labelHeaders(records[0])
		s.records = records[1:]
	}
	return s
}

func (s *memorySource) Name() string      { return s.name }
func (s *memorySource) Headers() []string { return visible(s.labels) }
func (s *memorySource) Close() error      { return nil }

func (s *memorySource) Rows() iter.Seq2[Row, error] {
	return func(yield func(Row, error) bool) {
		for _, rec := range s.records {
			if !yield(toRow(s.labels, rec), nil) {
				return
			}
		}
	}
}
