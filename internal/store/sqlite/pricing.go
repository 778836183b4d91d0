package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/id"
	"github.com/listenupapp/catalog-server/internal/store"
)

const pricingColumns = `id, book_id, created_at, updated_at, source, rate, discount, currency`

func scanPricing(scanner interface{ Scan(dest ...any) error }) (*domain.Pricing, error) {
	var (
		p         domain.Pricing
		createdAt string
		updatedAt string
		rate      sql.NullFloat64
	)
	err := scanner.Scan(&p.ID, &p.BookID, &createdAt, &updatedAt, &p.Source, &rate, &p.Discount, &p.Currency)
	if err != nil {
		return nil, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if rate.Valid {
		r := rate.Float64
		p.Rate = &r
	}
	return &p, nil
}

// FindPricing returns the pricing recorded for a book by source. Source is
// matched exactly. The oldest record wins if several exist.
func (s *Store) FindPricing(ctx context.Context, bookID, source string) (*domain.Pricing, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pricingColumns+` FROM book_pricing
		WHERE book_id = ? AND source = ?
		ORDER BY rowid ASC LIMIT 1`, bookID, source)
	p, err := scanPricing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find pricing: %w", err)
	}
	return p, nil
}

// GetPricing returns a pricing record by ID.
func (s *Store) GetPricing(ctx context.Context, pricingID string) (*domain.Pricing, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+pricingColumns+` FROM book_pricing WHERE id = ?`, pricingID)
	p, err := scanPricing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrPricingNotFound
	}
	return p, err
}

// InsertPricing records a price for an existing book.
func (s *Store) InsertPricing(ctx context.Context, bookID string, fields domain.PricingFields) (*domain.Pricing, error) {
	pricingID, err := id.Generate(id.PrefixPricing)
	if err != nil {
		return nil, err
	}
	now := s.now()
	p := &domain.Pricing{ID: pricingID, BookID: bookID, PricingFields: fields, CreatedAt: now, UpdatedAt: now}

	_, err = s.db.ExecContext(ctx, `INSERT INTO book_pricing (`+pricingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.BookID, formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
		p.Source, nullFloat(p.Rate), p.Discount, p.Currency)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return nil, store.ErrBookNotFound
		}
		return nil, fmt.Errorf("insert pricing: %w", err)
	}
	return p, nil
}

// UpdatePricing replaces the price fields of a record.
func (s *Store) UpdatePricing(ctx context.Context, pricingID string, fields domain.PricingFields) (*domain.Pricing, error) {
	now := s.now()
	result, err := s.db.ExecContext(ctx, `UPDATE book_pricing
		SET updated_at = ?, source = ?, rate = ?, discount = ?, currency = ?
		WHERE id = ?`,
		formatTime(now), fields.Source, nullFloat(fields.Rate), fields.Discount, fields.Currency, pricingID)
	if err != nil {
		return nil, fmt.Errorf("update pricing: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, store.ErrPricingNotFound
	}
	return s.GetPricing(ctx, pricingID)
}

// DeletePricing removes one pricing record.
func (s *Store) DeletePricing(ctx context.Context, pricingID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM book_pricing WHERE id = ?`, pricingID)
	if err != nil {
		return fmt.Errorf("delete pricing: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrPricingNotFound
	}
	return nil
}

// DeletePricingByBook removes every pricing record of a book and reports
// how many went.
func (s *Store) DeletePricingByBook(ctx context.Context, bookID string) (int, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM book_pricing WHERE book_id = ?`, bookID)
	if err != nil {
		return 0, fmt.Errorf("delete pricing by book: %w", err)
	}
	n, err := result.RowsAffected()
	return int(n), err
}

// ListPricing returns pricing for the given books, newest first.
func (s *Store) ListPricing(ctx context.Context, bookIDs ...string) ([]*domain.Pricing, error) {
	out := []*domain.Pricing{}
	if len(bookIDs) == 0 {
		return out, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(bookIDs)), ",")
	args := make([]any, len(bookIDs))
	for i, v := range bookIDs {
		args[i] = v
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pricingColumns+` FROM book_pricing
		WHERE book_id IN (`+placeholders+`)
		ORDER BY rowid DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list pricing: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPricing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
