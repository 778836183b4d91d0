// Package search keeps a Bleve full-text index of catalog books so they can
// be found by title, author, publisher or code, with filtering on
// classification, tags and year.
package search

import (
	"github.com/listenupapp/catalog-server/internal/domain"
)

// BookDocument is the indexed form of a catalog book.
type BookDocument struct {
	ID             string   `json:"id"`
	ISBN           string   `json:"isbn,omitempty"`
	OtherCode      string   `json:"other_code,omitempty"`
	Title          string   `json:"title"`
	Author         string   `json:"author,omitempty"`
	PublisherName  string   `json:"publisher_name,omitempty"`
	Classification string   `json:"classification,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Year           int      `json:"year,omitempty"`
	UpdatedAt      int64    `json:"updated_at"` // Unix millis
}

// NewBookDocument builds the document for a book.
func NewBookDocument(b *domain.Book) *BookDocument {
	doc := &BookDocument{
		ID:             b.ID,
		ISBN:           b.ISBN,
		OtherCode:      b.OtherCode,
		Title:          b.Title,
		Author:         b.Author,
		PublisherName:  b.PublisherName,
		Classification: b.Classification,
		Tags:           b.Tags,
		UpdatedAt:      b.UpdatedAt.UnixMilli(),
	}
	if b.Year != nil {
		doc.Year = *b.Year
	}
	return doc
}

// ToMap converts the document to the field names used by the index mapping.
// Empty fields are left out so they do not match empty-term queries.
func (d *BookDocument) ToMap() map[string]any {
	m := map[string]any{
		"id":         d.ID,
		"title":      d.Title,
		"updated_at": d.UpdatedAt,
	}
	for field, v := range map[string]string{
		"isbn":           d.ISBN,
		"other_code":     d.OtherCode,
		"author":         d.Author,
		"publisher_name": d.PublisherName,
		"classification": d.Classification,
	} {
		if v != "" {
			m[field] = v
		}
	}
	if len(d.Tags) > 0 {
		m["tags"] = d.Tags
	}
	if d.Year != 0 {
		m["year"] = d.Year
	}
	return m
}
