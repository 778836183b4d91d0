package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/reconcile"
	"github.com/listenupapp/catalog-server/internal/search"
	"github.com/listenupapp/catalog-server/internal/service"
)

func (ts *testServer) commit(t *testing.T, body map[string]any) *reconcile.Result {
	t.Helper()
	resp := ts.api.Post("/api/v1/books", body)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	env := decodeEnvelope[*reconcile.Result](t, resp.Body.Bytes())
	require.True(t, env.Success)
	return env.Data
}

func hobbit(rate float64, source string) map[string]any {
	return map[string]any{
		"book": map[string]any{
			"isbn":   "978-0261103344",
			"title":  "The Hobbit",
			"author": "J.R.R. Tolkien",
			"year":   1937,
		},
		"pricing": map[string]any{"source": source, "rate": rate},
	}
}

func TestCheckBook_NewRecord(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/books/check", hobbit(12.5, "vendor-a"))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	env := decodeEnvelope[reconcile.Assessment](t, resp.Body.Bytes())
	assert.True(t, env.Success)
	assert.Equal(t, domain.MatchNew, env.Data.Match.Kind)
	assert.Equal(t, domain.ActionInsertBookAndPricing, env.Data.Action)
	assert.NotEmpty(t, env.Data.Message)

	list := ts.api.Get("/api/v1/books")
	page := decodeEnvelope[service.BookPage](t, list.Body.Bytes())
	assert.Empty(t, page.Data.Books, "check never writes")
}

func TestCommitBook_ThenDuplicate(t *testing.T) {
	ts := setupTestServer(t)

	first := ts.commit(t, hobbit(12.5, "vendor-a"))
	assert.Equal(t, domain.ActionInsertBookAndPricing, first.Action)
	require.NotNil(t, first.Book)
	assert.NotEmpty(t, first.Book.ID)

	second := ts.commit(t, hobbit(12.5, "vendor-a"))
	assert.Equal(t, domain.MatchDuplicate, second.Match.Kind)
	assert.Equal(t, domain.ActionSkip, second.Action)

	third := ts.commit(t, hobbit(10, "vendor-b"))
	assert.Equal(t, domain.ActionAddPricing, third.Action)
}

func TestCommitBook_PolicyOverride(t *testing.T) {
	ts := setupTestServer(t)
	ts.commit(t, hobbit(12.5, "vendor-a"))

	changed := hobbit(12.5, "vendor-a")
	changed["book"].(map[string]any)["author"] = "Tolkien, J."

	flagged := ts.commit(t, changed)
	assert.Equal(t, domain.ActionFlagConflict, flagged.Action)

	changed["policy"] = map[string]any{"update_existing": true}
	updated := ts.commit(t, changed)
	assert.Equal(t, domain.ActionUpdateBookAndPricing, updated.Action)
	require.NotNil(t, updated.Book)
	assert.Equal(t, "Tolkien, J.", updated.Book.Author)
}

func TestCommitBook_Validation(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{
			name:  "no title or isbn",
			body:  map[string]any{"book": map[string]any{"author": "Anon"}},
			field: "book.isbn",
		},
		{
			name: "negative rate",
			body: map[string]any{
				"book":    map[string]any{"title": "Dune"},
				"pricing": map[string]any{"rate": -1},
			},
			field: "pricing.rate",
		},
		{
			name: "bad currency",
			body: map[string]any{
				"book":    map[string]any{"title": "Dune"},
				"pricing": map[string]any{"currency": "DOLLARS"},
			},
			field: "pricing.currency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := ts.api.Post("/api/v1/books", tt.body)
			require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())

			env := decodeEnvelope[any](t, resp.Body.Bytes())
			assert.False(t, env.Success)
			require.NotNil(t, env.Error)
			assert.Equal(t, "VALIDATION", env.Error.Code)
			assert.Contains(t, env.Error.Details, tt.field)
		})
	}
}

func TestCommitBook_BlankTitleRejected(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.api.Post("/api/v1/books", map[string]any{"book": map[string]any{"title": "   "}})
	require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
	env := decodeEnvelope[any](t, resp.Body.Bytes())
	assert.Equal(t, "VALIDATION", env.Error.Code)
}

func TestListBooks_FiltersAndPaginates(t *testing.T) {
	ts := setupTestServer(t)
	ts.commit(t, hobbit(12.5, "vendor-a"))
	ts.commit(t, map[string]any{
		"book":    map[string]any{"title": "Dune", "author": "Frank Herbert", "year": 1965},
		"pricing": map[string]any{"source": "vendor-a", "rate": 9},
	})
	ts.commit(t, map[string]any{
		"book":    map[string]any{"title": "Cosmos", "author": "Carl Sagan", "year": 1980},
		"pricing": map[string]any{"source": "vendor-a", "rate": 15},
	})

	resp := ts.api.Get("/api/v1/books?limit=2")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	page := decodeEnvelope[service.BookPage](t, resp.Body.Bytes()).Data
	require.Len(t, page.Books, 2)
	assert.Equal(t, "Cosmos", page.Books[0].Title, "newest first")
	assert.Equal(t, 3, page.Pagination.TotalBooks)
	assert.Equal(t, 2, page.Pagination.TotalPages)
	assert.True(t, page.Pagination.HasNextPage)
	require.NotNil(t, page.Books[0].Price)
	assert.InDelta(t, 15.0, *page.Books[0].Price, 0.001)
	require.Len(t, page.Books[0].Pricing, 1)

	resp = ts.api.Get("/api/v1/books?author=herbert")
	page = decodeEnvelope[service.BookPage](t, resp.Body.Bytes()).Data
	require.Len(t, page.Books, 1)
	assert.Equal(t, "Dune", page.Books[0].Title)
	assert.Equal(t, "herbert", page.Filters.Author)

	resp = ts.api.Get("/api/v1/books?year=1937")
	page = decodeEnvelope[service.BookPage](t, resp.Body.Bytes()).Data
	require.Len(t, page.Books, 1)
	assert.Equal(t, "The Hobbit", page.Books[0].Title)
}

func TestSearchBooks(t *testing.T) {
	ts := setupTestServer(t)
	ts.commit(t, hobbit(12.5, "vendor-a"))
	ts.commit(t, map[string]any{
		"book": map[string]any{"title": "Dune", "author": "Frank Herbert"},
	})

	resp := ts.api.Get("/api/v1/books/search?q=hobbit")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	res := decodeEnvelope[search.Result](t, resp.Body.Bytes()).Data
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "The Hobbit", res.Hits[0].Title)

	resp = ts.api.Get("/api/v1/books/search")
	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetBookPricing(t *testing.T) {
	ts := setupTestServer(t)
	first := ts.commit(t, hobbit(10, "vendor-a"))
	ts.commit(t, hobbit(20, "vendor-b"))

	resp := ts.api.Get("/api/v1/books/" + first.Book.ID + "/pricing")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	data := decodeEnvelope[service.BookPricing](t, resp.Body.Bytes()).Data
	assert.Equal(t, first.Book.ID, data.Book.ID)
	assert.Len(t, data.Pricing, 2)
	assert.Equal(t, 2, data.Statistics.TotalSources)
	assert.InDelta(t, 15.0, data.Statistics.AverageRate, 0.001)
	assert.InDelta(t, 10.0, data.Statistics.MinRate, 0.001)
	assert.InDelta(t, 20.0, data.Statistics.MaxRate, 0.001)
	assert.Equal(t, "Found 2 pricing source(s).", data.Message)

	resp = ts.api.Get("/api/v1/books/book-missing/pricing")
	require.Equal(t, http.StatusNotFound, resp.Code)
	env := decodeEnvelope[any](t, resp.Body.Bytes())
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestDeleteBook(t *testing.T) {
	ts := setupTestServer(t)
	first := ts.commit(t, hobbit(10, "vendor-a"))
	ts.commit(t, hobbit(20, "vendor-b"))

	resp := ts.api.Delete("/api/v1/books/" + first.Book.ID)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	data := decodeEnvelope[service.DeletedBook](t, resp.Body.Bytes()).Data
	assert.Equal(t, 2, data.DeletedPricingCount)

	resp = ts.api.Delete("/api/v1/books/" + first.Book.ID)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestDeletePricing(t *testing.T) {
	ts := setupTestServer(t)
	first := ts.commit(t, hobbit(10, "vendor-a"))
	ts.commit(t, hobbit(20, "vendor-b"))
	require.NotNil(t, first.Written)

	resp := ts.api.Delete("/api/v1/books/pricing/" + first.Written.ID)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	data := decodeEnvelope[service.DeletedPricing](t, resp.Body.Bytes()).Data
	assert.Equal(t, 1, data.RemainingPricingCount)
	assert.Equal(t, first.Book.ID, data.Book.ID)

	resp = ts.api.Delete("/api/v1/books/pricing/" + first.Written.ID)
	assert.Equal(t, http.StatusNotFound, resp.Code)
}

func TestBulkDeleteBooks(t *testing.T) {
	ts := setupTestServer(t)
	a := ts.commit(t, hobbit(10, "vendor-a"))
	b := ts.commit(t, map[string]any{
		"book":    map[string]any{"title": "Dune"},
		"pricing": map[string]any{"rate": 9},
	})

	resp := ts.api.Post("/api/v1/books/bulk-delete", map[string]any{
		"book_ids": []string{a.Book.ID, "book-missing", b.Book.ID},
	})
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	data := decodeEnvelope[service.BulkDeleteResult](t, resp.Body.Bytes()).Data
	assert.Equal(t, 2, data.DeletedBooksCount)
	assert.Equal(t, 2, data.DeletedPricingCount)
	require.Len(t, data.Errors, 1)
	assert.Equal(t, "book-missing", data.Errors[0].BookID)

	resp = ts.api.Post("/api/v1/books/bulk-delete", map[string]any{"book_ids": []string{}})
	assert.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestPolicyOverlay(t *testing.T) {
	s := &Server{}
	yes, no := true, false

	assert.Equal(t, domain.DefaultPolicy(), s.policy(nil))

	got := s.policy(&PolicyInput{SkipDuplicates: &no, UpdateExisting: &yes})
	assert.Equal(t, domain.Policy{SkipDuplicates: false, SkipConflicts: true, UpdateExisting: true}, got)
}
