package sqlite

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/store"
	"github.com/listenupapp/catalog-server/internal/store/storetest"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "catalog.db")
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	s, err := Open(dbPath, logger)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCatalogBehavior(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return newTestStore(t) })
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var fk int
	require.NoError(t, s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	for _, table := range []string{"books", "book_pricing"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		assert.NoError(t, err, "table %s", table)
	}

	require.NoError(t, s.Ping(context.Background()))
}

func TestOpen_Reopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "catalog.db")

	s, err := Open(dbPath, nil)
	require.NoError(t, err)
	b, err := s.InsertBook(context.Background(), domain.BookFields{ISBN: "978-1", Title: "Persisted"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(dbPath, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetBook(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Persisted", got.Title)
}

func TestInsertPricing_UnknownBook(t *testing.T) {
	s := newTestStore(t)
	_, err := s.InsertPricing(context.Background(), "book-missing", domain.PricingFields{Source: "a", Currency: "USD"})
	assert.ErrorIs(t, err, store.ErrBookNotFound)
}

func TestDeleteBook_CascadesPricing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	b, err := s.InsertBook(ctx, domain.BookFields{Title: "Cascade"})
	require.NoError(t, err)
	_, err = s.InsertPricing(ctx, b.ID, domain.PricingFields{Source: "a", Currency: "USD"})
	require.NoError(t, err)

	require.NoError(t, s.DeleteBook(ctx, b.ID))

	prices, err := s.ListPricing(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestLikePattern(t *testing.T) {
	assert.Equal(t, `%50\%\_off%`, likePattern("50%_off"))
	assert.Equal(t, `%a\\b%`, likePattern(`a\b`))
}
