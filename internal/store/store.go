// Package store defines the catalog persistence contract shared by the
// SQLite and Postgres backends.
package store

import (
	"context"
	"errors"

	"github.com/listenupapp/catalog-server/internal/domain"
)

// Sentinel errors.
var (
	ErrBookNotFound    = errors.New("book not found")
	ErrPricingNotFound = errors.New("pricing not found")
	ErrDuplicateISBN   = errors.New("isbn already used by another book")
)

// Catalog is what reconciliation needs from persistence.
//
// The Find methods compare case-insensitively and return (nil, nil) when
// nothing matches. FindBookByTitle matches the whole title, and when several
// books share it the oldest wins.
type Catalog interface {
	FindBookByISBN(ctx context.Context, isbn string) (*domain.Book, error)
	FindBookByOtherCode(ctx context.Context, code string) (*domain.Book, error)
	FindBookByTitle(ctx context.Context, title string) (*domain.Book, error)
	InsertBook(ctx context.Context, fields domain.BookFields) (*domain.Book, error)
	// UpdateBook overlays the supplied (non-empty) fields onto the book.
	UpdateBook(ctx context.Context, id string, fields domain.BookFields) (*domain.Book, error)
	DeleteBook(ctx context.Context, id string) error

	FindPricing(ctx context.Context, bookID, source string) (*domain.Pricing, error)
	InsertPricing(ctx context.Context, bookID string, fields domain.PricingFields) (*domain.Pricing, error)
	// UpdatePricing replaces source, rate, discount and currency.
	UpdatePricing(ctx context.Context, id string, fields domain.PricingFields) (*domain.Pricing, error)
	DeletePricingByBook(ctx context.Context, bookID string) (int, error)
}

// Browser covers reads and maintenance outside reconciliation.
type Browser interface {
	GetBook(ctx context.Context, id string) (*domain.Book, error)
	ListBooks(ctx context.Context, filter BookFilter, page Page) ([]*domain.Book, error)
	CountBooks(ctx context.Context, filter BookFilter) (int, error)
	// ListPricing returns pricing for the given books, newest first.
	ListPricing(ctx context.Context, bookIDs ...string) ([]*domain.Pricing, error)
	GetPricing(ctx context.Context, id string) (*domain.Pricing, error)
	DeletePricing(ctx context.Context, id string) error
	Ping(ctx context.Context) error
}

// Store is a complete catalog backend.
type Store interface {
	Catalog
	Browser
	SetSearchIndexer(indexer SearchIndexer)
	Close() error
}

// BookFilter narrows a book listing. Title, Author, ISBN and PublisherName
// are case-insensitive substring filters; Year and Classification are exact.
type BookFilter struct {
	Title          string `json:"title,omitempty"`
	Author         string `json:"author,omitempty"`
	ISBN           string `json:"isbn,omitempty"`
	Year           *int   `json:"year,omitempty"`
	Classification string `json:"classification,omitempty"`
	PublisherName  string `json:"publisher_name,omitempty"`
}

// SearchIndexer keeps a search index in step with catalog writes.
type SearchIndexer interface {
	IndexBook(ctx context.Context, book *domain.Book) error
	DeleteBook(ctx context.Context, bookID string) error
}

// NoopSearchIndexer discards index updates.
type NoopSearchIndexer struct{}

// IndexBook is a no-op.
func (NoopSearchIndexer) IndexBook(context.Context, *domain.Book) error { return nil }

// DeleteBook is a no-op.
func (NoopSearchIndexer) DeleteBook(context.Context, string) error { return nil }
