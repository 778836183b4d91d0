package search

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/domain"
)

func setupTestIndex(t *testing.T) *Index {
	t.Helper()
	index, err := NewIndex(Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })
	return index
}

func testBook(id, title, author string) *domain.Book {
	return &domain.Book{
		ID: id,
		BookFields: domain.BookFields{
			Title:  title,
			Author: author,
		},
		UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func seed(t *testing.T, index *Index) {
	t.Helper()
	hobbit := testBook("book-1", "The Hobbit", "J.R.R. Tolkien")
	hobbit.ISBN = "9780261103344"
	hobbit.Classification = "fiction"
	hobbit.Year = domain.IntPtr(1937)
	hobbit.Tags = []string{"fantasy", "classic"}

	dune := testBook("book-2", "Dune", "Frank Herbert")
	dune.Classification = "fiction"
	dune.Year = domain.IntPtr(1965)
	dune.Tags = []string{"scifi"}

	cosmos := testBook("book-3", "Cosmos", "Carl Sagan")
	cosmos.OtherCode = "SKU-42"
	cosmos.Classification = "science"
	cosmos.Year = domain.IntPtr(1980)
	cosmos.PublisherName = "Random House"

	require.NoError(t, index.IndexBooks(context.Background(), []*domain.Book{hobbit, dune, cosmos}))
}

func hitIDs(res *Result) []string {
	ids := make([]string, len(res.Hits))
	for i, h := range res.Hits {
		ids[i] = h.ID
	}
	return ids
}

func TestNewIndex_Empty(t *testing.T) {
	index := setupTestIndex(t)

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestIndex_IndexAndDelete(t *testing.T) {
	ctx := context.Background()
	index := setupTestIndex(t)

	require.NoError(t, index.IndexBook(ctx, testBook("book-1", "The Hobbit", "Tolkien")))
	require.NoError(t, index.IndexBook(ctx, testBook("book-1", "The Hobbit", "J.R.R. Tolkien")))

	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), count, "reindexing replaces the document")

	require.NoError(t, index.DeleteBook(ctx, "book-1"))
	require.NoError(t, index.DeleteBook(ctx, "missing"))

	count, err = index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestSearch_ByTitle(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res, err := index.Search(context.Background(), Params{Query: "hobbit"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "book-1", res.Hits[0].ID)
	assert.Equal(t, "The Hobbit", res.Hits[0].Title)
	assert.Equal(t, "J.R.R. Tolkien", res.Hits[0].Author)
	assert.Equal(t, 1937, res.Hits[0].Year)
}

func TestSearch_ByAuthorAndPublisher(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res, err := index.Search(context.Background(), Params{Query: "herbert"})
	require.NoError(t, err)
	assert.Equal(t, []string{"book-2"}, hitIDs(res))

	res, err = index.Search(context.Background(), Params{Query: "random"})
	require.NoError(t, err)
	assert.Equal(t, []string{"book-3"}, hitIDs(res))
}

func TestSearch_ByCode(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res, err := index.Search(context.Background(), Params{Query: "9780261103344"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "book-1", res.Hits[0].ID)
	assert.Equal(t, "9780261103344", res.Hits[0].ISBN)

	res, err = index.Search(context.Background(), Params{Query: "SKU-42"})
	require.NoError(t, err)
	require.NotEmpty(t, res.Hits)
	assert.Equal(t, "book-3", res.Hits[0].ID)
}

func TestSearch_Filters(t *testing.T) {
	ctx := context.Background()
	index := setupTestIndex(t)
	seed(t, index)

	res, err := index.Search(ctx, Params{Classification: "fiction", SortBy: "title"})
	require.NoError(t, err)
	assert.Equal(t, []string{"book-2", "book-1"}, hitIDs(res))

	res, err = index.Search(ctx, Params{Tags: []string{"scifi", "classic"}, SortBy: "year"})
	require.NoError(t, err)
	assert.Equal(t, []string{"book-1", "book-2"}, hitIDs(res))

	res, err = index.Search(ctx, Params{MinYear: 1960, MaxYear: 1980, SortBy: "year", SortOrder: "desc"})
	require.NoError(t, err)
	assert.Equal(t, []string{"book-3", "book-2"}, hitIDs(res))
}

func TestSearch_Facets(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res, err := index.Search(context.Background(), Params{IncludeFacets: true})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Total)
	assert.Contains(t, res.Facets.Classifications, FacetCount{Value: "fiction", Count: 2})
	assert.Contains(t, res.Facets.Classifications, FacetCount{Value: "science", Count: 1})
}

func TestSearch_Pagination(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	res, err := index.Search(context.Background(), Params{Limit: 2, SortBy: "title"})
	require.NoError(t, err)
	assert.Equal(t, uint64(3), res.Total)
	assert.Equal(t, []string{"book-3", "book-2"}, hitIDs(res))

	res, err = index.Search(context.Background(), Params{Limit: 2, Offset: 2, SortBy: "title"})
	require.NoError(t, err)
	assert.Equal(t, []string{"book-1"}, hitIDs(res))
}

func TestIndex_Rebuild(t *testing.T) {
	index := setupTestIndex(t)
	seed(t, index)

	require.NoError(t, index.Rebuild())
	count, err := index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), count)
}

func TestNewIndex_OnDisk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	index, err := NewIndex(Options{DataPath: dir})
	require.NoError(t, err)
	require.NoError(t, index.IndexBook(ctx, testBook("book-1", "Dune", "Frank Herbert")))
	require.NoError(t, index.Close())

	version, err := os.ReadFile(filepath.Join(dir, "books.version"))
	require.NoError(t, err)
	assert.Equal(t, mappingVersion, string(version))

	t.Run("reopen keeps documents", func(t *testing.T) {
		reopened, err := NewIndex(Options{DataPath: dir})
		require.NoError(t, err)
		defer reopened.Close()

		count, err := reopened.DocumentCount()
		require.NoError(t, err)
		assert.Equal(t, uint64(1), count)
	})

	t.Run("stale mapping version rebuilds", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "books.version"), []byte("0"), 0o644))

		rebuilt, err := NewIndex(Options{DataPath: dir})
		require.NoError(t, err)
		defer rebuilt.Close()

		count, err := rebuilt.DocumentCount()
		require.NoError(t, err)
		assert.Equal(t, uint64(0), count)
	})
}
