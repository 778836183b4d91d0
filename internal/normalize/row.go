package normalize

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/fieldmap"
)

// Normalizer converts raw rows into typed fields.
type Normalizer struct {
	defaultCurrency string
}

// New creates a Normalizer. An empty currency falls back to
// domain.DefaultCurrency.
func New(defaultCurrency string) *Normalizer {
	if strings.TrimSpace(defaultCurrency) == "" {
		defaultCurrency = domain.DefaultCurrency
	}
	return &Normalizer{defaultCurrency: strings.TrimSpace(defaultCurrency)}
}

// DefaultCurrency returns the currency applied when a row names none.
func (n *Normalizer) DefaultCurrency() string {
	return n.defaultCurrency
}

// Normalize builds book and pricing fields from one row.
//
// Only mapped columns with a non-blank value contribute. When several
// columns map to the same field, the last non-blank one in header order
// wins; mapped labels missing from headers follow in label order. Source
// defaults to sourceName and currency to the configured default. Year and
// rate that do not parse are left nil; discount falls back to 0.
func (n *Normalizer) Normalize(row map[string]string, headers []string, mapping fieldmap.Mapping, sourceName string) (domain.BookFields, domain.PricingFields) {
	values := make(map[fieldmap.Field]string, len(mapping))
	for _, label := range labelOrder(headers, mapping) {
		v := Clean(row[label])
		if v == "" {
			continue
		}
		values[mapping[label]] = v
	}

	return n.book(values), n.pricing(values, sourceName)
}

// labelOrder lists the mapped labels, headers first.
func labelOrder(headers []string, mapping fieldmap.Mapping) []string {
	order := make([]string, 0, len(mapping))
	seen := make(map[string]bool, len(mapping))
	for _, h := range headers {
		if _, ok := mapping[h]; ok && !seen[h] {
			seen[h] = true
			order = append(order, h)
		}
	}
	rest := make([]string, 0, len(mapping)-len(order))
	for label := range mapping {
		if !seen[label] {
			rest = append(rest, label)
		}
	}
	slices.Sort(rest)
	return append(order, rest...)
}

func (n *Normalizer) book(v map[fieldmap.Field]string) domain.BookFields {
	b := domain.BookFields{
		ISBN:           v[fieldmap.FieldISBN],
		NonISBN:        v[fieldmap.FieldNonISBN],
		OtherCode:      v[fieldmap.FieldOtherCode],
		Title:          v[fieldmap.FieldTitle],
		Author:         v[fieldmap.FieldAuthor],
		Edition:        v[fieldmap.FieldEdition],
		PublisherName:  v[fieldmap.FieldPublisherName],
		BindingType:    v[fieldmap.FieldBindingType],
		Classification: v[fieldmap.FieldClassification],
		Remarks:        v[fieldmap.FieldRemarks],
	}
	if raw, ok := v[fieldmap.FieldYear]; ok {
		b.Year = ParseYear(raw)
	}
	if raw, ok := v[fieldmap.FieldTags]; ok {
		b.Tags = SplitTags(raw)
	}
	return b
}

func (n *Normalizer) pricing(v map[fieldmap.Field]string, sourceName string) domain.PricingFields {
	p := domain.PricingFields{
		Source:   v[fieldmap.FieldSource],
		Currency: v[fieldmap.FieldCurrency],
	}
	if raw, ok := v[fieldmap.FieldRate]; ok {
		p.Rate = ParseNumber(raw)
	}
	if raw, ok := v[fieldmap.FieldDiscount]; ok {
		if d := ParseNumber(raw); d != nil {
			p.Discount = *d
		}
	}
	if p.Source == "" {
		p.Source = strings.TrimSpace(sourceName)
	}
	if p.Currency == "" {
		p.Currency = n.defaultCurrency
	}
	return p
}

// ApplyPricingDefaults fills source and currency on fields that arrived
// without them, the same way Normalize does for sheet rows.
func (n *Normalizer) ApplyPricingDefaults(p domain.PricingFields, sourceName string) domain.PricingFields {
	p.Source = Clean(p.Source)
	p.Currency = Clean(p.Currency)
	if p.Source == "" {
		p.Source = strings.TrimSpace(sourceName)
	}
	if p.Currency == "" {
		p.Currency = n.defaultCurrency
	}
	return p
}

// ParseNumber parses a finite decimal number. Anything else yields nil.
func ParseNumber(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// ParseYear parses an integral year. "2020" and "2020.0" are accepted;
// fractions and non-numbers yield nil.
func ParseYear(raw string) *int {
	f := ParseNumber(raw)
	if f == nil || *f != math.Trunc(*f) || math.Abs(*f) > math.MaxInt32 {
		return nil
	}
	y := int(*f)
	return &y
}

// SplitTags splits a comma or semicolon separated list, dropping blanks.
func SplitTags(raw string) []string {
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ';' })
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// CleanBook trims every string field of caller-supplied book fields.
func CleanBook(b domain.BookFields) domain.BookFields {
	for _, s := range []*string{
		&b.ISBN, &b.NonISBN, &b.OtherCode, &b.Title, &b.Author, &b.Edition,
		&b.PublisherName, &b.BindingType, &b.Classification, &b.Remarks,
	} {
		*s = Clean(*s)
	}
	if len(b.Tags) > 0 {
		b.Tags = SplitTags(strings.Join(b.Tags, ","))
	}
	return b
}
