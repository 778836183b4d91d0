// Package storetest is a behavior suite run against every catalog backend.
package storetest

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/store"
)

// Factory returns an empty store. Cleanup is the factory's job.
type Factory func(t *testing.T) store.Store

// Run executes the suite.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"FindBookIgnoresCase", testFindBookIgnoresCase},
		{"FindBookByTitleIsAnchored", testFindBookByTitleIsAnchored},
		{"FindBookByTitleOldestWins", testFindBookByTitleOldestWins},
		{"FindMissingReturnsNil", testFindMissingReturnsNil},
		{"UpdateBookOverlaysFields", testUpdateBookOverlaysFields},
		{"DuplicateISBNRejected", testDuplicateISBNRejected},
		{"DeleteBook", testDeleteBook},
		{"PricingLifecycle", testPricingLifecycle},
		{"ListBooksFilters", testListBooksFilters},
		{"SearchIndexerNotified", testSearchIndexerNotified},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func insert(t *testing.T, s store.Store, f domain.BookFields) *domain.Book {
	t.Helper()
	b, err := s.InsertBook(context.Background(), f)
	require.NoError(t, err)
	require.NotEmpty(t, b.ID)
	return b
}

func testFindBookIgnoresCase(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := insert(t, s, domain.BookFields{
		ISBN: "978-0-ABC", OtherCode: "OC-7", Title: "The Hobbit", Author: "Tolkien",
		Year: domain.IntPtr(1937), Tags: []string{"fantasy"},
	})

	got, err := s.FindBookByISBN(ctx, "978-0-abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, "978-0-ABC", got.ISBN, "stored value keeps its case")
	assert.Equal(t, 1937, *got.Year)
	assert.Equal(t, []string{"fantasy"}, got.Tags)

	got, err = s.FindBookByOtherCode(ctx, "oc-7")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, b.ID, got.ID)

	got, err = s.FindBookByTitle(ctx, "  THE HOBBIT ")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, b.ID, got.ID)
}

func testFindBookByTitleIsAnchored(t *testing.T, s store.Store) {
	ctx := context.Background()
	insert(t, s, domain.BookFields{Title: "The Hobbit", Author: "Tolkien"})

	for _, q := range []string{"Hobbit", "The Hobbit 2", "The"} {
		got, err := s.FindBookByTitle(ctx, q)
		require.NoError(t, err)
		assert.Nil(t, got, q)
	}
}

func testFindBookByTitleOldestWins(t *testing.T, s store.Store) {
	ctx := context.Background()
	first := insert(t, s, domain.BookFields{Title: "Dune", Author: "Herbert"})
	insert(t, s, domain.BookFields{Title: "DUNE", Author: "Someone Else"})

	got, err := s.FindBookByTitle(ctx, "dune")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, first.ID, got.ID)
}

func testFindMissingReturnsNil(t *testing.T, s store.Store) {
	ctx := context.Background()

	b, err := s.FindBookByISBN(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, b)

	b, err = s.FindBookByISBN(ctx, "")
	require.NoError(t, err)
	assert.Nil(t, b)

	p, err := s.FindPricing(ctx, "book-missing", "src")
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = s.GetBook(ctx, "book-missing")
	assert.ErrorIs(t, err, store.ErrBookNotFound)
}

func testUpdateBookOverlaysFields(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := insert(t, s, domain.BookFields{
		ISBN: "978-1", Title: "Foo", Author: "Bar", Year: domain.IntPtr(2020), PublisherName: "P",
	})

	updated, err := s.UpdateBook(ctx, b.ID, domain.BookFields{Year: domain.IntPtr(2021), Remarks: "reprint"})
	require.NoError(t, err)
	assert.Equal(t, 2021, *updated.Year)
	assert.Equal(t, "Foo", updated.Title)
	assert.Equal(t, "P", updated.PublisherName)
	assert.Equal(t, "reprint", updated.Remarks)

	got, err := s.GetBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.BookFields, got.BookFields)

	_, err = s.UpdateBook(ctx, "book-missing", domain.BookFields{Title: "x"})
	assert.ErrorIs(t, err, store.ErrBookNotFound)
}

func testDuplicateISBNRejected(t *testing.T, s store.Store) {
	ctx := context.Background()
	insert(t, s, domain.BookFields{ISBN: "978-1", Title: "Foo"})
	other := insert(t, s, domain.BookFields{Title: "Bar"})

	_, err := s.InsertBook(ctx, domain.BookFields{ISBN: "978-1", Title: "Copy"})
	assert.ErrorIs(t, err, store.ErrDuplicateISBN)

	_, err = s.UpdateBook(ctx, other.ID, domain.BookFields{ISBN: "978-1"})
	assert.ErrorIs(t, err, store.ErrDuplicateISBN)

	// books without an ISBN never collide
	insert(t, s, domain.BookFields{Title: "No ISBN 1"})
	insert(t, s, domain.BookFields{Title: "No ISBN 2"})
}

func testDeleteBook(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := insert(t, s, domain.BookFields{ISBN: "978-9", Title: "Gone"})
	_, err := s.InsertPricing(ctx, b.ID, domain.PricingFields{Source: "a", Currency: "USD"})
	require.NoError(t, err)

	n, err := s.DeletePricingByBook(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.DeleteBook(ctx, b.ID))
	got, err := s.FindBookByISBN(ctx, "978-9")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, s.DeleteBook(ctx, b.ID), store.ErrBookNotFound)
}

func testPricingLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	b := insert(t, s, domain.BookFields{Title: "Priced"})

	p, err := s.InsertPricing(ctx, b.ID, domain.PricingFields{
		Source: "Vendor A", Rate: domain.FloatPtr(10), Discount: 5, Currency: "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, b.ID, p.BookID)

	got, err := s.FindPricing(ctx, b.ID, "Vendor A")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, p.ID, got.ID)
	assert.InDelta(t, 10.0, *got.Rate, 1e-9)

	none, err := s.FindPricing(ctx, b.ID, "vendor a")
	require.NoError(t, err)
	assert.Nil(t, none, "source matches exactly")

	updated, err := s.UpdatePricing(ctx, p.ID, domain.PricingFields{
		Source: "Vendor A", Rate: nil, Discount: 7.5, Currency: "INR",
	})
	require.NoError(t, err)
	assert.Nil(t, updated.Rate)
	assert.InDelta(t, 7.5, updated.Discount, 1e-9)
	assert.Equal(t, "INR", updated.Currency)

	_, err = s.InsertPricing(ctx, b.ID, domain.PricingFields{Source: "Vendor B", Rate: domain.FloatPtr(12), Currency: "USD"})
	require.NoError(t, err)

	all, err := s.ListPricing(ctx, b.ID)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Vendor B", all[0].Source, "newest first")

	require.NoError(t, s.DeletePricing(ctx, p.ID))
	assert.ErrorIs(t, s.DeletePricing(ctx, p.ID), store.ErrPricingNotFound)

	_, err = s.UpdatePricing(ctx, p.ID, domain.PricingFields{Source: "x"})
	assert.ErrorIs(t, err, store.ErrPricingNotFound)

	_, err = s.GetPricing(ctx, p.ID)
	assert.ErrorIs(t, err, store.ErrPricingNotFound)
}

func testListBooksFilters(t *testing.T, s store.Store) {
	ctx := context.Background()
	insert(t, s, domain.BookFields{ISBN: "111", Title: "Go Programming", Author: "Kernighan", Year: domain.IntPtr(2015), PublisherName: "Addison-Wesley", Classification: "CS"})
	insert(t, s, domain.BookFields{ISBN: "222", Title: "The C Programming Language", Author: "Kernighan", Year: domain.IntPtr(1978), PublisherName: "Prentice Hall", Classification: "CS"})
	insert(t, s, domain.BookFields{Title: "Cooking 100%", Author: "Chef", Year: domain.IntPtr(2015), Classification: "Food"})

	count := func(f store.BookFilter) int {
		n, err := s.CountBooks(ctx, f)
		require.NoError(t, err)
		return n
	}

	assert.Equal(t, 3, count(store.BookFilter{}))
	assert.Equal(t, 2, count(store.BookFilter{Title: "programming"}))
	assert.Equal(t, 2, count(store.BookFilter{Author: "KERNIGHAN"}))
	assert.Equal(t, 1, count(store.BookFilter{ISBN: "22"}))
	assert.Equal(t, 2, count(store.BookFilter{Year: domain.IntPtr(2015)}))
	assert.Equal(t, 1, count(store.BookFilter{Classification: "Food"}))
	assert.Equal(t, 0, count(store.BookFilter{Classification: "food"}), "classification is exact")
	assert.Equal(t, 1, count(store.BookFilter{PublisherName: "prentice"}))
	assert.Equal(t, 1, count(store.BookFilter{Title: "100%"}), "wildcards are literal")
	assert.Equal(t, 0, count(store.BookFilter{Title: "_"}))

	books, err := s.ListBooks(ctx, store.BookFilter{}, store.Page{Page: 1, Limit: 2})
	require.NoError(t, err)
	require.Len(t, books, 2)
	assert.Equal(t, "Cooking 100%", books[0].Title, "newest first")

	books, err = s.ListBooks(ctx, store.BookFilter{}, store.Page{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "Go Programming", books[0].Title)
}

type recordingIndexer struct {
	mu      sync.Mutex
	indexed []string
	deleted []string
}

func (r *recordingIndexer) IndexBook(_ context.Context, b *domain.Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexed = append(r.indexed, b.ID)
	return nil
}

func (r *recordingIndexer) DeleteBook(_ context.Context, bookID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deleted = append(r.deleted, bookID)
	return nil
}

func testSearchIndexerNotified(t *testing.T, s store.Store) {
	ctx := context.Background()
	idx := &recordingIndexer{}
	s.SetSearchIndexer(idx)

	b := insert(t, s, domain.BookFields{Title: "Indexed"})
	_, err := s.UpdateBook(ctx, b.ID, domain.BookFields{Author: "Someone"})
	require.NoError(t, err)
	require.NoError(t, s.DeleteBook(ctx, b.ID))

	assert.Equal(t, []string{b.ID, b.ID}, idx.indexed)
	assert.Equal(t, []string{b.ID}, idx.deleted)
}
