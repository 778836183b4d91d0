// Package domain contains the catalog entities and the tagged outcomes
// produced while reconciling incoming records against the catalog.
package domain

import (
	"strings"
	"time"
)

// BookFields is the descriptive part of a book as supplied by a caller or a
// spreadsheet row. An empty string means "not supplied"; Year is nil when
// missing or not numeric.
type BookFields struct {
	ISBN           string   `json:"isbn,omitempty"`
	NonISBN        string   `json:"nonisbn,omitempty"`
	OtherCode      string   `json:"other_code,omitempty"`
	Title          string   `json:"title,omitempty"`
	Author         string   `json:"author,omitempty"`
	Edition        string   `json:"edition,omitempty"`
	Year           *int     `json:"year,omitempty"`
	PublisherName  string   `json:"publisher_name,omitempty"`
	BindingType    string   `json:"binding_type,omitempty"`
	Classification string   `json:"classification,omitempty"`
	Remarks        string   `json:"remarks,omitempty"`
	Tags           []string `json:"tags,omitempty"`
}

// Book is a catalog entry. Pricing is owned separately, keyed by BookID.
type Book struct {
	ID string `json:"id"`
	BookFields
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Identifiable reports whether the fields carry enough to locate or create a
// catalog entry: a title or an ISBN.
func (f BookFields) Identifiable() bool {
	return strings.TrimSpace(f.Title) != "" || strings.TrimSpace(f.ISBN) != ""
}

// Empty reports whether no field at all was supplied.
func (f BookFields) Empty() bool {
	return f.ISBN == "" && f.NonISBN == "" && f.OtherCode == "" &&
		f.Title == "" && f.Author == "" && f.Edition == "" && f.Year == nil &&
		f.PublisherName == "" && f.BindingType == "" && f.Classification == "" &&
		f.Remarks == "" && len(f.Tags) == 0
}

// Apply overlays every supplied field of f onto the book. Fields left empty
// in f keep their current value.
func (b *Book) Apply(f BookFields) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&b.ISBN, f.ISBN)
	set(&b.NonISBN, f.NonISBN)
	set(&b.OtherCode, f.OtherCode)
	set(&b.Title, f.Title)
	set(&b.Author, f.Author)
	set(&b.Edition, f.Edition)
	set(&b.PublisherName, f.PublisherName)
	set(&b.BindingType, f.BindingType)
	set(&b.Classification, f.Classification)
	set(&b.Remarks, f.Remarks)
	if f.Year != nil {
		y := *f.Year
		b.Year = &y
	}
	if len(f.Tags) > 0 {
		b.Tags = append([]string(nil), f.Tags...)
	}
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// FloatPtr returns a pointer to v.
func FloatPtr(v float64) *float64 { return &v }
