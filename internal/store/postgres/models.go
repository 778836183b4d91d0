package postgres

import (
	"time"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/normalize"
)

// bookRow is the gorm model for books. Seq gives rows a stable insertion
// order independent of clock resolution.
type bookRow struct {
	Seq       int64     `gorm:"autoIncrement;uniqueIndex"`
	ID        string    `gorm:"primaryKey;type:text"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	ISBN           *string  `gorm:"column:isbn;type:text"`
	NonISBN        *string  `gorm:"column:nonisbn;type:text"`
	OtherCode      *string  `gorm:"type:text"`
	Title          string   `gorm:"type:text;not null;default:''"`
	Author         string   `gorm:"type:text;not null;default:''"`
	Edition        *string  `gorm:"type:text"`
	Year           *int     `gorm:"index"`
	PublisherName  *string  `gorm:"type:text"`
	BindingType    *string  `gorm:"type:text"`
	Classification *string  `gorm:"type:text;index"`
	Remarks        *string  `gorm:"type:text"`
	Tags           []string `gorm:"serializer:json;type:text"`

	ISBNKey      *string `gorm:"column:isbn_key;type:text;uniqueIndex"`
	OtherCodeKey *string `gorm:"type:text;index"`
	TitleKey     string  `gorm:"type:text;not null;index"`
	AuthorKey    string  `gorm:"type:text;not null"`
	PublisherKey string  `gorm:"type:text;not null;default:''"`

	Pricing []pricingRow `gorm:"foreignKey:BookID;references:ID;constraint:OnDelete:CASCADE"`
}

func (bookRow) TableName() string { return "books" }

type pricingRow struct {
	Seq       int64     `gorm:"autoIncrement;uniqueIndex"`
	ID        string    `gorm:"primaryKey;type:text"`
	BookID    string    `gorm:"type:text;not null;index:idx_book_pricing_book_source,priority:1"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`

	Source   string   `gorm:"type:text;not null;index:idx_book_pricing_book_source,priority:2"`
	Rate     *float64
	Discount float64  `gorm:"not null;default:0"`
	Currency string   `gorm:"type:text;not null"`
}

func (pricingRow) TableName() string { return "book_pricing" }

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// setFields copies the book fields and refreshes the match keys.
func (r *bookRow) setFields(f domain.BookFields) {
	r.ISBN = optional(f.ISBN)
	r.NonISBN = optional(f.NonISBN)
	r.OtherCode = optional(f.OtherCode)
	r.Title = f.Title
	r.Author = f.Author
	r.Edition = optional(f.Edition)
	r.Year = f.Year
	r.PublisherName = optional(f.PublisherName)
	r.BindingType = optional(f.BindingType)
	r.Classification = optional(f.Classification)
	r.Remarks = optional(f.Remarks)
	r.Tags = f.Tags
	if r.Tags == nil {
		r.Tags = []string{}
	}

	r.ISBNKey = optional(normalize.Key(f.ISBN))
	r.OtherCodeKey = optional(normalize.Key(f.OtherCode))
	r.TitleKey = normalize.Key(f.Title)
	r.AuthorKey = normalize.Key(f.Author)
	r.PublisherKey = normalize.Key(f.PublisherName)
}

func (r *bookRow) toDomain() *domain.Book {
	b := &domain.Book{
		ID:        r.ID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		BookFields: domain.BookFields{
			ISBN:           deref(r.ISBN),
			NonISBN:        deref(r.NonISBN),
			OtherCode:      deref(r.OtherCode),
			Title:          r.Title,
			Author:         r.Author,
			Edition:        deref(r.Edition),
			Year:           r.Year,
			PublisherName:  deref(r.PublisherName),
			BindingType:    deref(r.BindingType),
			Classification: deref(r.Classification),
			Remarks:        deref(r.Remarks),
		},
	}
	if len(r.Tags) > 0 {
		b.Tags = r.Tags
	}
	return b
}

func (r *pricingRow) toDomain() *domain.Pricing {
	return &domain.Pricing{
		ID:        r.ID,
		BookID:    r.BookID,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
		PricingFields: domain.PricingFields{
			Source:   r.Source,
			Rate:     r.Rate,
			Discount: r.Discount,
			Currency: r.Currency,
		},
	}
}
