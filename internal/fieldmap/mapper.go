package fieldmap

import (
	"slices"
	"strings"
)

// Mapping maps a trimmed column label to its canonical field.
type Mapping map[string]Field

// Mapper resolves column labels. It is immutable and safe for concurrent use.
type Mapper struct {
	tables Tables
}

// New builds a Mapper over the given tables.
func New(t Tables) (*Mapper, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &Mapper{tables: t.clone()}, nil
}

// Default returns a Mapper over DefaultTables.
func Default() *Mapper {
	return &Mapper{tables: DefaultTables().clone()}
}

// Exact looks the trimmed header up in the header table.
func (m *Mapper) Exact(header string) (Field, bool) {
	f, ok := m.tables.Headers[strings.TrimSpace(header)]
	return f, ok
}

// Suggest looks the lower-cased header up in the synonym table.
func (m *Mapper) Suggest(header string) (Field, bool) {
	f, ok := m.tables.Synonyms[strings.ToLower(strings.TrimSpace(header))]
	return f, ok
}

// Map returns the canonical field for a header, trying the exact table first
// and the synonym table second. Unknown headers report false and are meant
// to be ignored.
func (m *Mapper) Map(header string) (Field, bool) {
	if f, ok := m.Exact(header); ok {
		return f, true
	}
	return m.Suggest(header)
}

// Resolve returns the effective mapping for a header row. Blank headers are
// dropped.
func (m *Mapper) Resolve(headers []string) Mapping {
	out := make(Mapping, len(headers))
	for _, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if f, ok := m.Map(h); ok {
			out[h] = f
		}
	}
	return out
}

// Validation reports which required fields a mapping covers. It is
// advisory: imports proceed regardless.
type Validation struct {
	HasRequiredBookFields    bool         `json:"has_required_book_fields"`
	HasRequiredPricingFields bool         `json:"has_required_pricing_fields"`
	MissingBookFields        []Field      `json:"missing_book_fields"`
	MissingPricingFields     []Field      `json:"missing_pricing_fields"`
	MappedFields             MappedFields `json:"mapped_fields"`
	TotalRows                int          `json:"total_rows"`
}

// MappedFields lists the mapped targets by record kind.
type MappedFields struct {
	Book    []Field `json:"book"`
	Pricing []Field `json:"pricing"`
}

// Check reports required-field coverage of a mapping.
func Check(mapping Mapping) Validation {
	var v Validation
	v.MappedFields.Book = []Field{}
	v.MappedFields.Pricing = []Field{}
	for _, f := range mapping {
		switch {
		case f.IsPricing():
			if !slices.Contains(v.MappedFields.Pricing, f) {
				v.MappedFields.Pricing = append(v.MappedFields.Pricing, f)
			}
		case f.IsBook():
			if !slices.Contains(v.MappedFields.Book, f) {
				v.MappedFields.Book = append(v.MappedFields.Book, f)
			}
		}
	}
	slices.Sort(v.MappedFields.Book)
	slices.Sort(v.MappedFields.Pricing)

	v.MissingBookFields = missing(requiredBookFields, v.MappedFields.Book)
	v.MissingPricingFields = missing(requiredPricingFields, v.MappedFields.Pricing)
	v.HasRequiredBookFields = len(v.MissingBookFields) == 0
	v.HasRequiredPricingFields = len(v.MissingPricingFields) == 0
	return v
}

func missing(required, have []Field) []Field {
	out := []Field{}
	for _, f := range required {
		if !slices.Contains(have, f) {
			out = append(out, f)
		}
	}
	return out
}

// Analysis is the header report for an uploaded sheet.
type Analysis struct {
	Headers          []string   `json:"headers"`
	Mapping          Mapping    `json:"mapping"`
	UnmappedHeaders  []string   `json:"unmapped_headers"`
	SuggestedMapping Mapping    `json:"suggested_mapping"`
	Validation       Validation `json:"validation"`
}

// Analyze splits headers into exact matches, suggestions, and unmapped
// labels. Suggested headers are also listed as unmapped. Validation covers
// exact matches only.
func (m *Mapper) Analyze(headers []string, totalRows int) Analysis {
	a := Analysis{
		Headers:          []string{},
		Mapping:          Mapping{},
		UnmappedHeaders:  []string{},
		SuggestedMapping: Mapping{},
	}
	for _, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		a.Headers = append(a.Headers, h)
		if f, ok := m.Exact(h); ok {
			a.Mapping[h] = f
			continue
		}
		a.UnmappedHeaders = append(a.UnmappedHeaders, h)
		if f, ok := m.Suggest(h); ok {
			a.SuggestedMapping[h] = f
		}
	}
	a.Validation = Check(a.Mapping)
	a.Validation.TotalRows = totalRows
	return a
}

// ParseMapping converts a caller-supplied label -> field map, rejecting
// unknown targets.
func ParseMapping(raw map[string]string) (Mapping, []string) {
	out := make(Mapping, len(raw))
	var unknown []string
	for label, target := range raw {
		f := Field(strings.TrimSpace(target))
		if !f.Known() {
			unknown = append(unknown, label)
			continue
		}
		out[strings.TrimSpace(label)] = f
	}
	slices.Sort(unknown)
	return out, unknown
}
