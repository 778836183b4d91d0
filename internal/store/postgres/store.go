// Package postgres is the catalog backend for shared deployments, built on
// gorm with the pgx-backed Postgres driver.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/id"
	"github.com/listenupapp/catalog-server/internal/normalize"
	"github.com/listenupapp/catalog-server/internal/store"
)

// Store provides Postgres-backed catalog persistence.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger

	searchIndexer store.SearchIndexer
	now           func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open connects to dsn and migrates the catalog tables.
func Open(dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	now := func() time.Time { return time.Now().UTC() }
	db, err := gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc:        now,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&bookRow{}, &pricingRow{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Debug("catalog database opened", "driver", "postgres")

	return &Store{
		db:            db,
		logger:        logger,
		searchIndexer: store.NoopSearchIndexer{},
		now:           now,
	}, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// SetSearchIndexer sets the indexer notified on book writes.
func (s *Store) SetSearchIndexer(indexer store.SearchIndexer) {
	if indexer == nil {
		indexer = store.NoopSearchIndexer{}
	}
	s.searchIndexer = indexer
}

func (s *Store) findBookBy(ctx context.Context, column, value string) (*domain.Book, error) {
	key := normalize.Key(value)
	if key == "" {
		return nil, nil
	}
	var rows []bookRow
	err := s.db.WithContext(ctx).
		Where(column+" = ?", key).
		Order("seq ASC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find book by %s: %w", column, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toDomain(), nil
}

// FindBookByISBN returns the book with the given ISBN, ignoring case.
func (s *Store) FindBookByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	return s.findBookBy(ctx, "isbn_key", isbn)
}

// FindBookByOtherCode returns the oldest book with the given code.
func (s *Store) FindBookByOtherCode(ctx context.Context, code string) (*domain.Book, error) {
	return s.findBookBy(ctx, "other_code_key", code)
}

// FindBookByTitle returns the oldest book whose whole title matches.
func (s *Store) FindBookByTitle(ctx context.Context, title string) (*domain.Book, error) {
	return s.findBookBy(ctx, "title_key", title)
}

// GetBook returns a book by ID.
func (s *Store) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	var row bookRow
	err := s.db.WithContext(ctx).Where("id = ?", bookID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrBookNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// InsertBook creates a book from fields.
func (s *Store) InsertBook(ctx context.Context, fields domain.BookFields) (*domain.Book, error) {
	bookID, err := id.Generate(id.PrefixBook)
	if err != nil {
		return nil, err
	}
	now := s.now()
	row := bookRow{ID: bookID, CreatedAt: now, UpdatedAt: now}
	row.setFields(fields)

	err = s.db.WithContext(ctx).Omit("Pricing").Create(&row).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, store.ErrDuplicateISBN
	}
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}

	b := row.toDomain()
	s.index(ctx, b)
	return b, nil
}

// UpdateBook overlays the supplied fields onto the stored book.
func (s *Store) UpdateBook(ctx context.Context, bookID string, fields domain.BookFields) (*domain.Book, error) {
	var row bookRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", bookID).Take(&row).Error; err != nil {
			return err
		}
		b := row.toDomain()
		b.Apply(fields)
		row.setFields(b.BookFields)
		row.UpdatedAt = s.now()
		return tx.Omit("Pricing").Save(&row).Error
	})
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, store.ErrBookNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return nil, store.ErrDuplicateISBN
	case err != nil:
		return nil, fmt.Errorf("update book: %w", err)
	}

	b := row.toDomain()
	s.index(ctx, b)
	return b, nil
}

// DeleteBook removes a book. Its pricing goes with it.
func (s *Store) DeleteBook(ctx context.Context, bookID string) error {
	result := s.db.WithContext(ctx).Where("id = ?", bookID).Delete(&bookRow{})
	if result.Error != nil {
		return fmt.Errorf("delete book: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrBookNotFound
	}
	if err := s.searchIndexer.DeleteBook(ctx, bookID); err != nil {
		s.logger.Warn("failed to remove book from search index", "book_id", bookID, "error", err)
	}
	return nil
}

// ListBooks returns a page of books, newest first.
func (s *Store) ListBooks(ctx context.Context, filter store.BookFilter, page store.Page) ([]*domain.Book, error) {
	page.Validate()
	var rows []bookRow
	err := s.filtered(ctx, filter).
		Order("seq DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	books := make([]*domain.Book, 0, len(rows))
	for i := range rows {
		books = append(books, rows[i].toDomain())
	}
	return books, nil
}

// CountBooks counts books matching filter.
func (s *Store) CountBooks(ctx context.Context, filter store.BookFilter) (int, error) {
	var n int64
	if err := s.filtered(ctx, filter).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return int(n), nil
}

func (s *Store) filtered(ctx context.Context, f store.BookFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&bookRow{})
	like := func(column, value string) {
		if key := normalize.Key(value); key != "" {
			q = q.Where(column+` LIKE ? ESCAPE '\'`, likePattern(key))
		}
	}
	like("title_key", f.Title)
	like("author_key", f.Author)
	like("COALESCE(isbn_key, '')", f.ISBN)
	like("publisher_key", f.PublisherName)
	if f.Year != nil {
		q = q.Where("year = ?", *f.Year)
	}
	if c := strings.TrimSpace(f.Classification); c != "" {
		q = q.Where("classification = ?", c)
	}
	return q
}

// FindPricing returns the pricing recorded for a book by source.
func (s *Store) FindPricing(ctx context.Context, bookID, source string) (*domain.Pricing, error) {
	var rows []pricingRow
	err := s.db.WithContext(ctx).
		Where("book_id = ? AND source = ?", bookID, source).
		Order("seq ASC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("find pricing: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0].toDomain(), nil
}

// GetPricing returns a pricing record by ID.
func (s *Store) GetPricing(ctx context.Context, pricingID string) (*domain.Pricing, error) {
	var row pricingRow
	err := s.db.WithContext(ctx).Where("id = ?", pricingID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrPricingNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain(), nil
}

// InsertPricing records a price for an existing book.
func (s *Store) InsertPricing(ctx context.Context, bookID string, fields domain.PricingFields) (*domain.Pricing, error) {
	pricingID, err := id.Generate(id.PrefixPricing)
	if err != nil {
		return nil, err
	}
	now := s.now()
	row := pricingRow{
		ID:        pricingID,
		BookID:    bookID,
		CreatedAt: now,
		UpdatedAt: now,
		Source:    fields.Source,
		Rate:      fields.Rate,
		Discount:  fields.Discount,
		Currency:  fields.Currency,
	}
	err = s.db.WithContext(ctx).Create(&row).Error
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return nil, store.ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("insert pricing: %w", err)
	}
	return row.toDomain(), nil
}

// UpdatePricing replaces the price fields of a record.
func (s *Store) UpdatePricing(ctx context.Context, pricingID string, fields domain.PricingFields) (*domain.Pricing, error) {
	result := s.db.WithContext(ctx).Model(&pricingRow{}).
		Where("id = ?", pricingID).
		Updates(map[string]any{
			"updated_at": s.now(),
			"source":     fields.Source,
			"rate":       fields.Rate,
			"discount":   fields.Discount,
			"currency":   fields.Currency,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("update pricing: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, store.ErrPricingNotFound
	}
	return s.GetPricing(ctx, pricingID)
}

// DeletePricing removes one pricing record.
func (s *Store) DeletePricing(ctx context.Context, pricingID string) error {
	result := s.db.WithContext(ctx).Where("id = ?", pricingID).Delete(&pricingRow{})
	if result.Error != nil {
		return fmt.Errorf("delete pricing: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrPricingNotFound
	}
	return nil
}

// DeletePricingByBook removes every pricing record of a book.
func (s *Store) DeletePricingByBook(ctx context.Context, bookID string) (int, error) {
	result := s.db.WithContext(ctx).Where("book_id = ?", bookID).Delete(&pricingRow{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete pricing by book: %w", result.Error)
	}
	return int(result.RowsAffected), nil
}

// ListPricing returns pricing for the given books, newest first.
func (s *Store) ListPricing(ctx context.Context, bookIDs ...string) ([]*domain.Pricing, error) {
	out := []*domain.Pricing{}
	if len(bookIDs) == 0 {
		return out, nil
	}
	var rows []pricingRow
	err := s.db.WithContext(ctx).
		Where("book_id IN ?", bookIDs).
		Order("seq DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list pricing: %w", err)
	}
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (s *Store) index(ctx context.Context, b *domain.Book) {
	if err := s.searchIndexer.IndexBook(ctx, b); err != nil {
		s.logger.Warn("failed to index book", "book_id", b.ID, "error", err)
	}
}

// likePattern builds a substring LIKE pattern with wildcards escaped.
func likePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
