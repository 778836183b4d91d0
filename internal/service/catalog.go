// Package service holds the catalog use cases shared by the HTTP API, the
// CLI and the drop-folder watcher.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/normalize"
	"github.com/listenupapp/catalog-server/internal/reconcile"
	"github.com/listenupapp/catalog-server/internal/search"
	"github.com/listenupapp/catalog-server/internal/store"
)

// ManualSource names pricing entered by hand when the caller gives no source.
const ManualSource = "manual"

// BookSearcher runs full-text book queries.
type BookSearcher interface {
	Search(ctx context.Context, params search.Params) (*search.Result, error)
}

// CatalogService checks, commits, lists and deletes catalog records.
type CatalogService struct {
	store      store.Store
	engine     *reconcile.Engine
	normalizer *normalize.Normalizer
	searcher   BookSearcher
	logger     *slog.Logger
}

// NewCatalogService creates a CatalogService. searcher may be nil, in which
// case SearchBooks reports that search is unavailable.
func NewCatalogService(s store.Store, engine *reconcile.Engine, normalizer *normalize.Normalizer, searcher BookSearcher, logger *slog.Logger) *CatalogService {
	if logger == nil {
		logger = slog.Default()
	}
	if normalizer == nil {
		normalizer = normalize.New("")
	}
	return &CatalogService{
		store:      s,
		engine:     engine,
		normalizer: normalizer,
		searcher:   searcher,
		logger:     logger,
	}
}

// prepare cleans caller-supplied fields and fills pricing defaults.
func (s *CatalogService) prepare(book domain.BookFields, pricing domain.PricingFields) (domain.BookFields, domain.PricingFields, error) {
	book = normalize.CleanBook(book)
	if !book.Identifiable() {
		return book, pricing, errors.Validation("book needs a title or an isbn")
	}
	return book, s.normalizer.ApplyPricingDefaults(pricing, ManualSource), nil
}

// Check classifies a record against the catalog without writing.
func (s *CatalogService) Check(ctx context.Context, book domain.BookFields, pricing domain.PricingFields, policy domain.Policy) (*reconcile.Assessment, error) {
	book, pricing, err := s.prepare(book, pricing)
	if err != nil {
		return nil, err
	}
	a, err := s.engine.Check(ctx, book, pricing, policy)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "check failed")
	}
	return a, nil
}

// Commit classifies a record and applies the resulting action.
//
// A flagged or skipped record is not an error; the result says what happened.
// Write failures come back as internal errors whose details carry the failed
// stage and any orphaned book.
func (s *CatalogService) Commit(ctx context.Context, book domain.BookFields, pricing domain.PricingFields, policy domain.Policy) (*reconcile.Result, error) {
	book, pricing, err := s.prepare(book, pricing)
	if err != nil {
		return nil, err
	}

	res, err := s.engine.Reconcile(ctx, book, pricing, policy)
	if err != nil {
		var execErr *reconcile.ExecError
		if !errors.As(err, &execErr) {
			return nil, errors.Wrap(err, errors.CodeInternal, "commit failed")
		}
		return nil, errors.Wrapf(err, errors.CodeInternal, "%s failed at %s", execErr.Action, execErr.Stage).
			WithDetails(map[string]any{
				"stage":           execErr.Stage,
				"rolled_back":     execErr.RolledBack,
				"rollback_failed": execErr.RollbackFailed,
				"orphan_book_id":  execErr.OrphanBookID,
			})
	}

	s.logger.Info("record committed",
		"action", res.Action,
		"match", res.Match.Kind,
		"pricing", res.Pricing.Kind,
	)
	return res, nil
}

// BookWithPricing is a listed book with all of its pricing. Price is the
// rate of the earliest recorded pricing, or nil.
type BookWithPricing struct {
	*domain.Book
	Pricing []*domain.Pricing `json:"pricing"`
	Price   *float64          `json:"price"`
}

// BookPage is one page of a book listing.
type BookPage struct {
	Books      []BookWithPricing `json:"books"`
	Pagination store.Pagination  `json:"pagination"`
	Filters    store.BookFilter  `json:"filters"`
}

// ListBooks returns a filtered page of books, newest first, each with its
// pricing attached.
func (s *CatalogService) ListBooks(ctx context.Context, filter store.BookFilter, page store.Page) (*BookPage, error) {
	page.Validate()

	books, err := s.store.ListBooks(ctx, filter, page)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	total, err := s.store.CountBooks(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("count books: %w", err)
	}

	ids := make([]string, len(books))
	for i, b := range books {
		ids[i] = b.ID
	}
	byBook := map[string][]*domain.Pricing{}
	if len(ids) > 0 {
		prices, err := s.store.ListPricing(ctx, ids...)
		if err != nil {
			return nil, fmt.Errorf("list pricing: %w", err)
		}
		for _, p := range prices {
			byBook[p.BookID] = append(byBook[p.BookID], p)
		}
	}

	out := &BookPage{
		Books:      make([]BookWithPricing, 0, len(books)),
		Pagination: store.Paginate(page, total),
		Filters:    filter,
	}
	for _, b := range books {
		prices := byBook[b.ID]
		if prices == nil {
			prices = []*domain.Pricing{}
		}
		entry := BookWithPricing{Book: b, Pricing: prices}
		if n := len(prices); n > 0 {
			entry.Price = prices[n-1].Rate
		}
		out.Books = append(out.Books, entry)
	}
	return out, nil
}

// SearchBooks runs a full-text query.
func (s *CatalogService) SearchBooks(ctx context.Context, params search.Params) (*search.Result, error) {
	if s.searcher == nil {
		return nil, errors.Internal("search is not enabled")
	}
	if strings.TrimSpace(params.Query) == "" && params.Classification == "" && len(params.Tags) == 0 &&
		params.MinYear == 0 && params.MaxYear == 0 {
		return nil, errors.Validation("search needs a query or a filter")
	}
	res, err := s.searcher.Search(ctx, params)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "search failed")
	}
	return res, nil
}

// BookPricing is a book with its pricing, newest first, and statistics.
type BookPricing struct {
	Book       *domain.Book        `json:"book"`
	Pricing    []*domain.Pricing   `json:"pricing"`
	Statistics domain.PricingStats `json:"statistics"`
	Message    string              `json:"message"`
}

// GetBookPricing returns every price recorded for a book.
func (s *CatalogService) GetBookPricing(ctx context.Context, bookID string) (*BookPricing, error) {
	book, err := s.getBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	prices, err := s.store.ListPricing(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("list pricing: %w", err)
	}
	if prices == nil {
		prices = []*domain.Pricing{}
	}

	msg := "No pricing information found for this book."
	if len(prices) > 0 {
		msg = fmt.Sprintf("Found %d pricing source(s).", len(prices))
	}
	return &BookPricing{
		Book:       book,
		Pricing:    prices,
		Statistics: domain.SummarizePricing(prices),
		Message:    msg,
	}, nil
}

func (s *CatalogService) getBook(ctx context.Context, id string) (*domain.Book, error) {
	book, err := s.store.GetBook(ctx, id)
	if errors.Is(err, store.ErrBookNotFound) {
		return nil, errors.NotFoundf("book %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get book %s: %w", id, err)
	}
	return book, nil
}

// DeletedBook describes a removed book.
type DeletedBook struct {
	Book                *domain.Book `json:"book"`
	DeletedPricingCount int          `json:"deleted_pricing_count"`
}

// DeleteBook removes a book and all of its pricing.
func (s *CatalogService) DeleteBook(ctx context.Context, bookID string) (*DeletedBook, error) {
	book, err := s.getBook(ctx, bookID)
	if err != nil {
		return nil, err
	}
	n, err := s.store.DeletePricingByBook(ctx, bookID)
	if err != nil {
		return nil, fmt.Errorf("delete pricing of %s: %w", bookID, err)
	}
	if err := s.store.DeleteBook(ctx, bookID); err != nil {
		if errors.Is(err, store.ErrBookNotFound) {
			return nil, errors.NotFoundf("book %s not found", bookID)
		}
		return nil, fmt.Errorf("delete book %s: %w", bookID, err)
	}

	s.logger.Info("book deleted", "book_id", bookID, "pricing_deleted", n)
	return &DeletedBook{Book: book, DeletedPricingCount: n}, nil
}

// BulkDeleteError is a book that could not be deleted.
type BulkDeleteError struct {
	BookID string `json:"book_id"`
	Error  string `json:"error"`
}

// BulkDeleteResult reports a multi-book delete.
type BulkDeleteResult struct {
	Deleted             []DeletedBook     `json:"deleted"`
	DeletedBooksCount   int               `json:"deleted_books_count"`
	DeletedPricingCount int               `json:"deleted_pricing_count"`
	Errors              []BulkDeleteError `json:"errors"`
}

// DeleteBooks deletes each book in turn. A failure for one ID is recorded
// and the rest continue.
func (s *CatalogService) DeleteBooks(ctx context.Context, bookIDs []string) (*BulkDeleteResult, error) {
	if len(bookIDs) == 0 {
		return nil, errors.Validation("book_ids must not be empty")
	}

	out := &BulkDeleteResult{Deleted: []DeletedBook{}, Errors: []BulkDeleteError{}}
	for _, id := range bookIDs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		d, err := s.DeleteBook(ctx, id)
		if err != nil {
			out.Errors = append(out.Errors, BulkDeleteError{BookID: id, Error: err.Error()})
			continue
		}
		out.Deleted = append(out.Deleted, *d)
		out.DeletedBooksCount++
		out.DeletedPricingCount += d.DeletedPricingCount
	}
	return out, nil
}

// DeletedPricing describes a removed pricing record.
type DeletedPricing struct {
	Pricing               *domain.Pricing `json:"pricing"`
	Book                  *domain.Book    `json:"book,omitempty"`
	RemainingPricingCount int             `json:"remaining_pricing_count"`
}

// DeletePricing removes one pricing record. The book stays.
func (s *CatalogService) DeletePricing(ctx context.Context, pricingID string) (*DeletedPricing, error) {
	p, err := s.store.GetPricing(ctx, pricingID)
	if errors.Is(err, store.ErrPricingNotFound) {
		return nil, errors.NotFoundf("pricing %s not found", pricingID)
	}
	if err != nil {
		return nil, fmt.Errorf("get pricing %s: %w", pricingID, err)
	}

	if err := s.store.DeletePricing(ctx, pricingID); err != nil {
		if errors.Is(err, store.ErrPricingNotFound) {
			return nil, errors.NotFoundf("pricing %s not found", pricingID)
		}
		return nil, fmt.Errorf("delete pricing %s: %w", pricingID, err)
	}

	remaining, err := s.store.ListPricing(ctx, p.BookID)
	if err != nil {
		return nil, fmt.Errorf("list pricing: %w", err)
	}
	out := &DeletedPricing{Pricing: p, RemainingPricingCount: len(remaining)}
	if book, err := s.store.GetBook(ctx, p.BookID); err == nil {
		out.Book = book
	}
	return out, nil
}

// Health reports whether the catalog backend answers.
func (s *CatalogService) Health(ctx context.Context) error {
	return s.store.Ping(ctx)
}
