package importer

import (
	"context"
	"errors"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/fieldmap"
	"github.com/listenupapp/catalog-server/internal/normalize"
	"github.com/listenupapp/catalog-server/internal/reconcile"
	"github.com/listenupapp/catalog-server/internal/store"
	"github.com/listenupapp/catalog-server/internal/store/sqlite"
	"github.com/listenupapp/catalog-server/internal/tabular"
)

var testMapping = fieldmap.Mapping{
	"ISBN":   fieldmap.FieldISBN,
	"Title":  fieldmap.FieldTitle,
	"Author": fieldmap.FieldAuthor,
	"Year":   fieldmap.FieldYear,
	"Rate":   fieldmap.FieldRate,
}

var testHeader = []string{"ISBN", "Title", "Author", "Year", "Rate"}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "catalog.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// countingStore counts every catalog call and can fail selected writes.
type countingStore struct {
	store.Store
	calls          atomic.Int64
	failPricingFor string // book title whose pricing insert fails
	deleteBookErr  error
}

func (c *countingStore) FindBookByISBN(ctx context.Context, v string) (*domain.Book, error) {
	c.calls.Add(1)
	return c.Store.FindBookByISBN(ctx, v)
}

func (c *countingStore) FindBookByOtherCode(ctx context.Context, v string) (*domain.Book, error) {
	c.calls.Add(1)
	return c.Store.FindBookByOtherCode(ctx, v)
}

func (c *countingStore) FindBookByTitle(ctx context.Context, v string) (*domain.Book, error) {
	c.calls.Add(1)
	return c.Store.FindBookByTitle(ctx, v)
}

func (c *countingStore) InsertBook(ctx context.Context, f domain.BookFields) (*domain.Book, error) {
	c.calls.Add(1)
	return c.Store.InsertBook(ctx, f)
}

func (c *countingStore) InsertPricing(ctx context.Context, bookID string, p domain.PricingFields) (*domain.Pricing, error) {
	c.calls.Add(1)
	if c.failPricingFor != "" {
		b, err := c.Store.GetBook(ctx, bookID)
		if err == nil && b.Title == c.failPricingFor {
			return nil, errors.New("pricing write refused")
		}
	}
	return c.Store.InsertPricing(ctx, bookID, p)
}

func (c *countingStore) DeleteBook(ctx context.Context, id string) error {
	c.calls.Add(1)
	if c.deleteBookErr != nil {
		return c.deleteBookErr
	}
	return c.Store.DeleteBook(ctx, id)
}

func newRunner(t *testing.T, catalog store.Catalog, audit AuditLog) *Runner {
	t.Helper()
	return NewRunner(reconcile.NewEngine(catalog, nil), normalize.New("USD"), audit, nil)
}

func sheet(rows ...[]string) tabular.Source {
	return tabular.FromRecords("Sheet1", append([][]string{testHeader}, rows...))
}

func TestRun_InsertsNewBook(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	report := newRunner(t, s, nil).Run(ctx, sheet([]string{"", "New", "X", "", "12.5"}), testMapping, "vendor-a", domain.DefaultPolicy())

	assert.Equal(t, 1, report.Stats.Total)
	assert.Equal(t, 1, report.Stats.Inserted)
	assert.Equal(t, 1, report.Summary.Successful)
	assert.NotEmpty(t, report.ID)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	books, err := s.ListBooks(ctx, store.BookFilter{}, store.Page{})
	require.NoError(t, err)
	require.Len(t, books, 1)
	assert.Equal(t, "New", books[0].Title)

	prices, err := s.ListPricing(ctx, books[0].ID)
	require.NoError(t, err)
	require.Len(t, prices, 1)
	assert.Equal(t, "vendor-a", prices[0].Source)
	assert.Equal(t, "USD", prices[0].Currency)
	assert.InDelta(t, 12.5, *prices[0].Rate, 1e-9)
}

func TestRun_EmptyAndInvalidRowsMakeNoStoreCalls(t *testing.T) {
	cs := &countingStore{Store: newTestStore(t)}

	report := newRunner(t, cs, nil).Run(context.Background(), sheet(
		[]string{"", "", "", "", ""},
		[]string{" ", "\t", "", "", ""},
		[]string{"", "", "Author Only", "2020", "3"},
	), testMapping, "vendor", domain.DefaultPolicy())

	assert.Equal(t, 3, report.Stats.Total)
	assert.Equal(t, 3, report.Stats.Skipped)
	assert.Equal(t, 3, report.Summary.Failed)
	assert.Zero(t, cs.calls.Load())
}

func TestRun_DuplicateWithinBatch(t *testing.T) {
	s := newTestStore(t)
	row := []string{"978-1", "Foo", "Bar", "2020", "10"}

	report := newRunner(t, s, nil).Run(context.Background(), sheet(row, row), testMapping, "vendor", domain.DefaultPolicy())

	assert.Equal(t, 1, report.Stats.Inserted)
	assert.Equal(t, 1, report.Stats.Duplicates)
	require.Len(t, report.DuplicateDetails, 1)
	assert.Equal(t, 2, report.DuplicateDetails[0].Row)
	assert.Equal(t, domain.MatchedByISBN, report.DuplicateDetails[0].MatchedBy)
	assert.Empty(t, report.PendingReview, "default policy keeps duplicates out of review")
}

func TestRun_ConflictsAndReview(t *testing.T) {
	s := newTestStore(t)
	policy := domain.Policy{SkipDuplicates: true, SkipConflicts: false}

	report := newRunner(t, s, nil).Run(context.Background(), sheet(
		[]string{"978-1", "Foo", "Bar", "2020", "10"},
		[]string{"978-1", "Foo", "Baz", "2020", "10"},
		[]string{"978-1", "Foo", "Bar", "2020", "11"},
	), testMapping, "vendor", policy)

	assert.Equal(t, 1, report.Stats.Inserted)
	assert.Equal(t, 2, report.Stats.Conflicts)
	require.Len(t, report.ConflictDetails, 2)
	assert.Equal(t, string(domain.MatchAuthorConflict), report.ConflictDetails[0].ConflictType)
	assert.Equal(t, []string{"author"}, report.ConflictDetails[0].ConflictFields.Fields())
	assert.Equal(t, reconcile.ReasonPricingConflict, report.ConflictDetails[1].ConflictType)
	require.Len(t, report.ConflictDetails[1].PricingConflicts, 1)

	require.Len(t, report.PendingReview, 2)
	assert.Equal(t, ReviewConflict, report.PendingReview[0].Kind)
	assert.Equal(t, 2, report.PendingReview[0].Row)
}

func TestRun_UpdateExisting(t *testing.T) {
	s := newTestStore(t)
	policy := domain.Policy{UpdateExisting: true}

	report := newRunner(t, s, nil).Run(context.Background(), sheet(
		[]string{"978-1", "Foo", "Bar", "2020", "10"},
		[]string{"978-1", "Foo", "Bar", "2021", "12"},
	), testMapping, "vendor", policy)

	assert.Equal(t, 1, report.Stats.Inserted)
	assert.Equal(t, 1, report.Stats.Updated)
	assert.Equal(t, 2, report.Summary.Successful)

	b, err := s.FindBookByISBN(context.Background(), "978-1")
	require.NoError(t, err)
	assert.Equal(t, 2021, *b.Year)
}

func TestRun_PricingFailureRollsBackAndContinues(t *testing.T) {
	ctx := context.Background()
	cs := &countingStore{Store: newTestStore(t), failPricingFor: "Doomed"}

	report := newRunner(t, cs, nil).Run(ctx, sheet(
		[]string{"978-5", "Doomed", "A", "", "1"},
		[]string{"978-6", "Fine", "B", "", "1"},
	), testMapping, "vendor", domain.DefaultPolicy())

	assert.Equal(t, 1, report.Stats.Errors)
	assert.Equal(t, 1, report.Stats.Inserted)
	require.Len(t, report.ErrorDetails, 1)
	e := report.ErrorDetails[0]
	assert.Equal(t, 1, e.Row)
	assert.Equal(t, reconcile.StageInsertPricing, e.Stage)
	assert.False(t, e.RollbackFailed)
	assert.Equal(t, "Doomed", e.Data["Title"])

	got, err := cs.Store.FindBookByISBN(ctx, "978-5")
	require.NoError(t, err)
	assert.Nil(t, got, "the half-written book is removed")
}

func TestRun_RollbackFailureIsFlagged(t *testing.T) {
	cs := &countingStore{Store: newTestStore(t), failPricingFor: "Doomed", deleteBookErr: errors.New("gone away")}

	report := newRunner(t, cs, nil).Run(context.Background(), sheet(
		[]string{"978-5", "Doomed", "A", "", "1"},
	), testMapping, "vendor", domain.DefaultPolicy())

	require.Len(t, report.ErrorDetails, 1)
	assert.True(t, report.ErrorDetails[0].RollbackFailed)
	assert.NotEmpty(t, report.ErrorDetails[0].OrphanBookID)
}

type reconcileFunc func(ctx context.Context, book domain.BookFields) (*reconcile.Result, error)

func (f reconcileFunc) Reconcile(ctx context.Context, book domain.BookFields, _ domain.PricingFields, _ domain.Policy) (*reconcile.Result, error) {
	return f(ctx, book)
}

func inserted() *reconcile.Result {
	return &reconcile.Result{Assessment: reconcile.Assessment{Action: domain.ActionInsertBookAndPricing}}
}

func TestRun_PanicIsARowError(t *testing.T) {
	engine := reconcileFunc(func(_ context.Context, b domain.BookFields) (*reconcile.Result, error) {
		if b.Title == "Boom" {
			panic("unexpected nil")
		}
		return inserted(), nil
	})
	runner := NewRunner(engine, nil, nil, nil)

	report := runner.Run(context.Background(), sheet(
		[]string{"", "Boom", "", "", ""},
		[]string{"", "Calm", "", "", ""},
	), testMapping, "vendor", domain.DefaultPolicy())

	assert.Equal(t, 1, report.Stats.Errors)
	assert.Equal(t, 1, report.Stats.Inserted)
	assert.Contains(t, report.ErrorDetails[0].Error, "unexpected nil")
}

type brokenSource struct{}

func (brokenSource) Name() string      { return "broken" }
func (brokenSource) Headers() []string { return testHeader }
func (brokenSource) Close() error      { return nil }
func (brokenSource) Rows() iter.Seq2[tabular.Row, error] {
	return func(yield func(tabular.Row, error) bool) {
		if !yield(tabular.Row{"Title": "Ok"}, nil) {
			return
		}
		yield(nil, errors.New("bad quote"))
	}
}

func TestRun_ReadErrorIsARowError(t *testing.T) {
	runner := NewRunner(reconcileFunc(func(context.Context, domain.BookFields) (*reconcile.Result, error) {
		return inserted(), nil
	}), nil, nil, nil)

	report := runner.Run(context.Background(), brokenSource{}, testMapping, "vendor", domain.DefaultPolicy())

	assert.Equal(t, 2, report.Stats.Total)
	assert.Equal(t, 1, report.Stats.Inserted)
	assert.Equal(t, 1, report.Stats.Errors)
	assert.Equal(t, 2, report.ErrorDetails[0].Row)
	assert.NotNil(t, report.ErrorDetails[0].Data)
}

func TestRun_CancelStopsBetweenRows(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner := NewRunner(reconcileFunc(func(context.Context, domain.BookFields) (*reconcile.Result, error) {
		cancel()
		return inserted(), nil
	}), nil, nil, nil)

	report := runner.Run(ctx, sheet(
		[]string{"", "One", "", "", ""},
		[]string{"", "Two", "", "", ""},
		[]string{"", "Three", "", "", ""},
	), testMapping, "vendor", domain.DefaultPolicy())

	assert.True(t, report.Cancelled)
	assert.Equal(t, 1, report.Stats.Total)
	assert.Equal(t, 1, report.Stats.Inserted)
}

func TestRun_WritesAuditLog(t *testing.T) {
	dir := t.TempDir()
	s := newTestStore(t)
	cs := &countingStore{Store: s, failPricingFor: "Doomed"}

	report := newRunner(t, cs, NewFileAuditLog(dir)).Run(context.Background(), sheet(
		[]string{"978-1", "Foo", "Bar", "2020", "10"},
		[]string{"978-1", "Foo", "Bar", "2020", "10"},
		[]string{"978-1", "Foo", "Baz", "2020", "10"},
		[]string{"978-2", "Doomed", "X", "", "1"},
	), testMapping, "Vendor Sheet", domain.DefaultPolicy())

	require.NotEmpty(t, report.LogFile)
	assert.Equal(t, dir, filepath.Dir(report.LogFile))
	assert.True(t, strings.HasPrefix(filepath.Base(report.LogFile), "bulk-import-Vendor_Sheet-"))

	data, err := os.ReadFile(report.LogFile)
	require.NoError(t, err)
	text := string(data)

	conflicts := strings.Index(text, "CONFLICTS (1 records)")
	duplicates := strings.Index(text, "DUPLICATES (1 records)")
	errs := strings.Index(text, "ERRORS (1 records)")
	require.NotEqual(t, -1, conflicts)
	require.NotEqual(t, -1, duplicates)
	require.NotEqual(t, -1, errs)
	assert.Less(t, conflicts, duplicates)
	assert.Less(t, duplicates, errs)
	assert.Contains(t, text, "Row 3: AUTHOR_CONFLICT")
}

func TestStatsSummarize(t *testing.T) {
	s := Stats{Total: 10, Inserted: 3, Updated: 2, Skipped: 1, Conflicts: 2, Duplicates: 1, Errors: 1}
	assert.Equal(t, Summary{
		TotalProcessed: 10,
		Successful:     5,
		Failed:         5,
		Conflicts:      2,
		Duplicates:     1,
		Errors:         1,
		Skipped:        1,
	}, s.Summarize())
}
