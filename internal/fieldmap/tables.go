package fieldmap

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Tables holds the lookup data behind a Mapper. Headers is matched against
// the trimmed column label exactly; Synonyms against the lower-cased label.
type Tables struct {
	Headers  map[string]Field `yaml:"headers"`
	Synonyms map[string]Field `yaml:"synonyms"`
}

// DefaultTables returns the built-in header and synonym tables.
func DefaultTables() Tables {
	return Tables{
		Headers: map[string]Field{
			"ISBN":           FieldISBN,
			"Non ISBN":       FieldNonISBN,
			"Other Code":     FieldOtherCode,
			"Title":          FieldTitle,
			"Author":         FieldAuthor,
			"EDITION":        FieldEdition,
			"Edition":        FieldEdition,
			"Year":           FieldYear,
			"Publisher Code": FieldPublisherID,
			"Publisher":      FieldPublisherName,
			"Binding Type":   FieldBindingType,
			"Sub_Subject":    FieldClassification,
			"Subject":        FieldRemarks,
			"Classification": FieldClassification,
			"Remarks":        FieldRemarks,
			"Tags":           FieldTags,

			"Price":    FieldRate,
			"Rate":     FieldRate,
			"Curr":     FieldCurrency,
			"Currency": FieldCurrency,
			"Discount": FieldDiscount,
			"Source":   FieldSource,
		},
		Synonyms: map[string]Field{
			"book title":       FieldTitle,
			"book name":        FieldTitle,
			"name":             FieldTitle,
			"writer":           FieldAuthor,
			"book author":      FieldAuthor,
			"cost":             FieldRate,
			"amount":           FieldRate,
			"price":            FieldRate,
			"usd":              FieldCurrency,
			"inr":              FieldCurrency,
			"rs":               FieldCurrency,
			"rupees":           FieldCurrency,
			"dollars":          FieldCurrency,
			"publisher":        FieldPublisherName,
			"publishing house": FieldPublisherName,
			"category":         FieldClassification,
			"subject":          FieldClassification,
			"type":             FieldBindingType,
			"binding":          FieldBindingType,
			"hardcover":        FieldBindingType,
			"paperback":        FieldBindingType,
			"notes":            FieldRemarks,
			"comment":          FieldRemarks,
			"description":      FieldRemarks,
		},
	}
}

// LoadTables reads tables from a YAML file. A section missing from the file
// keeps the built-in defaults.
//
//	headers:
//	  "Book Title": title
//	synonyms:
//	  "writer": author
func LoadTables(path string) (Tables, error) {
	data, err := os.ReadFile(path) //#nosec G304 -- operator-supplied config path
	if err != nil {
		return Tables{}, fmt.Errorf("read field map %s: %w", path, err)
	}
	return ParseTables(data)
}

// ParseTables parses YAML table data.
func ParseTables(data []byte) (Tables, error) {
	var t Tables
	if err := yaml.Unmarshal(data, &t); err != nil {
		return Tables{}, fmt.Errorf("parse field map: %w", err)
	}

	def := DefaultTables()
	if t.Headers == nil {
		t.Headers = def.Headers
	}
	if t.Synonyms == nil {
		t.Synonyms = def.Synonyms
	}
	if err := t.Validate(); err != nil {
		return Tables{}, err
	}
	return t, nil
}

// Validate checks that every table entry targets a canonical field.
func (t Tables) Validate() error {
	var bad []string
	for _, table := range []map[string]Field{t.Headers, t.Synonyms} {
		for label, f := range table {
			if !f.Known() {
				bad = append(bad, fmt.Sprintf("%q -> %q", label, f))
			}
		}
	}
	if len(bad) > 0 {
		sort.Strings(bad)
		return fmt.Errorf("field map: unknown target fields: %s", strings.Join(bad, ", "))
	}
	return nil
}

func (t Tables) clone() Tables {
	out := Tables{
		Headers:  make(map[string]Field, len(t.Headers)),
		Synonyms: make(map[string]Field, len(t.Synonyms)),
	}
	for k, v := range t.Headers {
		out.Headers[strings.TrimSpace(k)] = v
	}
	for k, v := range t.Synonyms {
		out.Synonyms[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}
