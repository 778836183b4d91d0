package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/reconcile"
	"github.com/listenupapp/catalog-server/internal/search"
	"github.com/listenupapp/catalog-server/internal/service"
	"github.com/listenupapp/catalog-server/internal/store"
)

func (s *Server) registerBookRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "checkBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/check",
		Summary:     "Check a record",
		Description: "Classifies a book and its pricing against the catalog without writing anything",
		Tags:        []string{"Books"},
	}, s.handleCheckBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "commitBook",
		Method:      http.MethodPost,
		Path:        "/api/v1/books",
		Summary:     "Commit a record",
		Description: "Classifies a book and its pricing, then inserts, updates, flags or skips it under the given policy",
		Tags:        []string{"Books"},
	}, s.handleCommitBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "listBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books",
		Summary:     "List books",
		Description: "Returns a filtered page of books, newest first, each with its pricing",
		Tags:        []string{"Books"},
	}, s.handleListBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchBooks",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/search",
		Summary:     "Search books",
		Description: "Full-text search over title, author, publisher and codes",
		Tags:        []string{"Books"},
	}, s.handleSearchBooks)

	huma.Register(s.api, huma.Operation{
		OperationID: "getBookPricing",
		Method:      http.MethodGet,
		Path:        "/api/v1/books/{id}/pricing",
		Summary:     "Get book pricing",
		Description: "Returns every pricing source recorded for a book with summary statistics",
		Tags:        []string{"Books"},
	}, s.handleGetBookPricing)

	huma.Register(s.api, huma.Operation{
		OperationID: "deleteBook",
		Method:      http.MethodDelete,
		Path:        "/api/v1/books/{id}",
		Summary:     "Delete book",
		Description: "Deletes a book and all of its pricing",
		Tags:        []string{"Books"},
	}, s.handleDeleteBook)

	huma.Register(s.api, huma.Operation{
		OperationID: "deletePricing",
		Method:      http.MethodDelete,
		Path:        "/api/v1/books/pricing/{pricingId}",
		Summary:     "Delete pricing",
		Description: "Deletes one pricing record; the book stays",
		Tags:        []string{"Books"},
	}, s.handleDeletePricing)

	huma.Register(s.api, huma.Operation{
		OperationID: "bulkDeleteBooks",
		Method:      http.MethodPost,
		Path:        "/api/v1/books/bulk-delete",
		Summary:     "Delete many books",
		Description: "Deletes each listed book with its pricing; failures are reported per ID",
		Tags:        []string{"Books"},
	}, s.handleBulkDeleteBooks)
}

// === DTOs ===

// BookInput is the book half of a record.
type BookInput struct {
	ISBN           string   `json:"isbn,omitempty" validate:"required_without=Title,max=32" doc:"ISBN; hyphens and spaces are ignored when matching"`
	NonISBN        string   `json:"nonisbn,omitempty" validate:"max=64" doc:"Non-ISBN identifier, stored only"`
	OtherCode      string   `json:"other_code,omitempty" validate:"max=64" doc:"Vendor or catalog code"`
	Title          string   `json:"title,omitempty" validate:"required_without=ISBN,max=500" doc:"Title"`
	Author         string   `json:"author,omitempty" validate:"max=500" doc:"Author"`
	Edition        string   `json:"edition,omitempty" validate:"max=100" doc:"Edition"`
	Year           *int     `json:"year,omitempty" validate:"omitempty,gte=0,lte=9999" doc:"Publication year"`
	PublisherName  string   `json:"publisher_name,omitempty" validate:"max=300" doc:"Publisher"`
	BindingType    string   `json:"binding_type,omitempty" validate:"max=100" doc:"Binding, e.g. paperback"`
	Classification string   `json:"classification,omitempty" validate:"max=200" doc:"Classification"`
	Remarks        string   `json:"remarks,omitempty" validate:"max=2000" doc:"Free-text remarks"`
	Tags           []string `json:"tags,omitempty" validate:"omitempty,max=50,dive,max=100" doc:"Tags"`
}

func (in BookInput) fields() domain.BookFields {
	return domain.BookFields{
		ISBN:           in.ISBN,
		NonISBN:        in.NonISBN,
		OtherCode:      in.OtherCode,
		Title:          in.Title,
		Author:         in.Author,
		Edition:        in.Edition,
		Year:           in.Year,
		PublisherName:  in.PublisherName,
		BindingType:    in.BindingType,
		Classification: in.Classification,
		Remarks:        in.Remarks,
		Tags:           in.Tags,
	}
}

// PricingInput is the pricing half of a record.
type PricingInput struct {
	Source   string   `json:"source,omitempty" validate:"max=200" doc:"Pricing source; defaults to manual"`
	Rate     *float64 `json:"rate,omitempty" validate:"omitempty,gte=0" doc:"Price"`
	Discount float64  `json:"discount,omitempty" validate:"gte=0" doc:"Discount"`
	Currency string   `json:"currency,omitempty" validate:"omitempty,iso4217" doc:"ISO 4217 currency code"`
}

func (in PricingInput) fields() domain.PricingFields {
	return domain.PricingFields{
		Source:   in.Source,
		Rate:     in.Rate,
		Discount: in.Discount,
		Currency: in.Currency,
	}
}

// PolicyInput overrides parts of the server's default policy.
type PolicyInput struct {
	SkipDuplicates *bool `json:"skip_duplicates,omitempty" doc:"Keep duplicates out of the review list"`
	SkipConflicts  *bool `json:"skip_conflicts,omitempty" doc:"Keep conflicts out of the review list"`
	UpdateExisting *bool `json:"update_existing,omitempty" doc:"Apply conflicting values instead of flagging them"`
}

// RecordRequest is a book, its pricing and an optional policy.
type RecordRequest struct {
	Book    BookInput    `json:"book" doc:"Book fields; needs a title or an ISBN"`
	Pricing PricingInput `json:"pricing,omitempty" doc:"Pricing fields"`
	Policy  *PolicyInput `json:"policy,omitempty" doc:"Policy overrides"`
}

// RecordInput wraps the record request for Huma.
type RecordInput struct {
	Body RecordRequest
}

// CheckOutput wraps the assessment for Huma.
type CheckOutput struct {
	Body *reconcile.Assessment
}

// CommitOutput wraps the commit result for Huma.
type CommitOutput struct {
	Body *reconcile.Result
}

// ListBooksInput contains filter and pagination parameters.
type ListBooksInput struct {
	Title          string `query:"title" doc:"Title contains"`
	Author         string `query:"author" doc:"Author contains"`
	ISBN           string `query:"isbn" doc:"ISBN contains"`
	Year           int    `query:"year" minimum:"0" doc:"Exact publication year"`
	Classification string `query:"classification" doc:"Exact classification"`
	PublisherName  string `query:"publisher_name" doc:"Publisher contains"`
	Page           int    `query:"page" default:"1" minimum:"1" doc:"Page number"`
	Limit          int    `query:"limit" default:"10" minimum:"1" maximum:"500" doc:"Books per page"`
}

// ListBooksOutput wraps the page for Huma.
type ListBooksOutput struct {
	Body *service.BookPage
}

// SearchBooksInput contains search parameters.
type SearchBooksInput struct {
	Query          string   `query:"q" doc:"Search text"`
	Classification string   `query:"classification" doc:"Exact classification"`
	Tags           []string `query:"tags" doc:"Any of these tags"`
	MinYear        int      `query:"min_year" minimum:"0" doc:"Earliest year"`
	MaxYear        int      `query:"max_year" minimum:"0" doc:"Latest year"`
	Limit          int      `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Max hits"`
	Offset         int      `query:"offset" minimum:"0" doc:"Hits to skip"`
	Sort           string   `query:"sort" enum:"relevance,title,author,year,recent" default:"relevance" doc:"Sort field"`
	Order          string   `query:"order" enum:"asc,desc" default:"desc" doc:"Sort order"`
	Facets         bool     `query:"facets" doc:"Include classification and tag counts"`
}

// SearchBooksOutput wraps search hits for Huma.
type SearchBooksOutput struct {
	Body *search.Result
}

// BookIDInput identifies a book by path.
type BookIDInput struct {
	ID string `path:"id" doc:"Book ID"`
}

// BookPricingOutput wraps a book's pricing for Huma.
type BookPricingOutput struct {
	Body *service.BookPricing
}

// DeleteBookOutput wraps a deleted book for Huma.
type DeleteBookOutput struct {
	Body *service.DeletedBook
}

// PricingIDInput identifies a pricing record by path.
type PricingIDInput struct {
	PricingID string `path:"pricingId" doc:"Pricing ID"`
}

// DeletePricingOutput wraps a deleted pricing record for Huma.
type DeletePricingOutput struct {
	Body *service.DeletedPricing
}

// BulkDeleteRequest lists books to delete.
type BulkDeleteRequest struct {
	BookIDs []string `json:"book_ids" validate:"required,min=1,max=500,dive,required" doc:"IDs of the books to delete"`
}

// BulkDeleteInput wraps the bulk delete request for Huma.
type BulkDeleteInput struct {
	Body BulkDeleteRequest
}

// BulkDeleteOutput wraps the bulk delete result for Huma.
type BulkDeleteOutput struct {
	Body *service.BulkDeleteResult
}

// === Handlers ===

func (s *Server) handleCheckBook(ctx context.Context, input *RecordInput) (*CheckOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}
	a, err := s.services.Catalog.Check(ctx, input.Body.Book.fields(), input.Body.Pricing.fields(), s.policy(input.Body.Policy))
	if err != nil {
		return nil, err
	}
	return &CheckOutput{Body: a}, nil
}

func (s *Server) handleCommitBook(ctx context.Context, input *RecordInput) (*CommitOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}
	res, err := s.services.Catalog.Commit(ctx, input.Body.Book.fields(), input.Body.Pricing.fields(), s.policy(input.Body.Policy))
	if err != nil {
		return nil, err
	}
	return &CommitOutput{Body: res}, nil
}

func (s *Server) handleListBooks(ctx context.Context, input *ListBooksInput) (*ListBooksOutput, error) {
	filter := store.BookFilter{
		Title:          input.Title,
		Author:         input.Author,
		ISBN:           input.ISBN,
		Classification: input.Classification,
		PublisherName:  input.PublisherName,
	}
	if input.Year > 0 {
		filter.Year = domain.IntPtr(input.Year)
	}

	page, err := s.services.Catalog.ListBooks(ctx, filter, store.Page{Page: input.Page, Limit: input.Limit})
	if err != nil {
		return nil, err
	}
	return &ListBooksOutput{Body: page}, nil
}

func (s *Server) handleSearchBooks(ctx context.Context, input *SearchBooksInput) (*SearchBooksOutput, error) {
	res, err := s.services.Catalog.SearchBooks(ctx, search.Params{
		Query:          input.Query,
		Classification: input.Classification,
		Tags:           input.Tags,
		MinYear:        input.MinYear,
		MaxYear:        input.MaxYear,
		Limit:          input.Limit,
		Offset:         input.Offset,
		SortBy:         input.Sort,
		SortOrder:      input.Order,
		IncludeFacets:  input.Facets,
	})
	if err != nil {
		return nil, err
	}
	return &SearchBooksOutput{Body: res}, nil
}

func (s *Server) handleGetBookPricing(ctx context.Context, input *BookIDInput) (*BookPricingOutput, error) {
	res, err := s.services.Catalog.GetBookPricing(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &BookPricingOutput{Body: res}, nil
}

func (s *Server) handleDeleteBook(ctx context.Context, input *BookIDInput) (*DeleteBookOutput, error) {
	res, err := s.services.Catalog.DeleteBook(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &DeleteBookOutput{Body: res}, nil
}

func (s *Server) handleDeletePricing(ctx context.Context, input *PricingIDInput) (*DeletePricingOutput, error) {
	res, err := s.services.Catalog.DeletePricing(ctx, input.PricingID)
	if err != nil {
		return nil, err
	}
	return &DeletePricingOutput{Body: res}, nil
}

func (s *Server) handleBulkDeleteBooks(ctx context.Context, input *BulkDeleteInput) (*BulkDeleteOutput, error) {
	if err := s.validator.Validate(input.Body); err != nil {
		return nil, err
	}
	res, err := s.services.Catalog.DeleteBooks(ctx, input.Body.BookIDs)
	if err != nil {
		return nil, err
	}
	return &BulkDeleteOutput{Body: res}, nil
}

// policy overlays the request's overrides onto the server default.
func (s *Server) policy(in *PolicyInput) domain.Policy {
	p := domain.DefaultPolicy()
	if s.services.Imports != nil {
		p = s.services.Imports.DefaultPolicy()
	}
	if in == nil {
		return p
	}
	if in.SkipDuplicates != nil {
		p.SkipDuplicates = *in.SkipDuplicates
	}
	if in.SkipConflicts != nil {
		p.SkipConflicts = *in.SkipConflicts
	}
	if in.UpdateExisting != nil {
		p.UpdateExisting = *in.UpdateExisting
	}
	return p
}
