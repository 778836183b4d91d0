package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/id"
	"github.com/listenupapp/catalog-server/internal/normalize"
	"github.com/listenupapp/catalog-server/internal/store"
)

// bookColumns must match the scan order in scanBook.
const bookColumns = `id, created_at, updated_at,
	isbn, nonisbn, other_code, title, author, edition, year,
	publisher_name, binding_type, classification, remarks, tags`

func scanBook(scanner interface{ Scan(dest ...any) error }) (*domain.Book, error) {
	var (
		b         domain.Book
		createdAt string
		updatedAt string
		isbn      sql.NullString
		nonISBN   sql.NullString
		otherCode sql.NullString
		edition   sql.NullString
		year      sql.NullInt64
		publisher sql.NullString
		binding   sql.NullString
		class     sql.NullString
		remarks   sql.NullString
		tags      string
	)

	err := scanner.Scan(
		&b.ID, &createdAt, &updatedAt,
		&isbn, &nonISBN, &otherCode, &b.Title, &b.Author, &edition, &year,
		&publisher, &binding, &class, &remarks, &tags,
	)
	if err != nil {
		return nil, err
	}

	if b.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	b.ISBN = isbn.String
	b.NonISBN = nonISBN.String
	b.OtherCode = otherCode.String
	b.Edition = edition.String
	b.PublisherName = publisher.String
	b.BindingType = binding.String
	b.Classification = class.String
	b.Remarks = remarks.String
	if year.Valid {
		y := int(year.Int64)
		b.Year = &y
	}
	if tags != "" && tags != "[]" {
		if err := json.Unmarshal([]byte(tags), &b.Tags); err != nil {
			return nil, fmt.Errorf("decode tags: %w", err)
		}
	}
	return &b, nil
}

// bookArgs returns the column values after id and created_at, in
// bookColumns order, followed by the five key columns.
func bookArgs(b *domain.Book) ([]any, error) {
	tags := b.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return nil, fmt.Errorf("encode tags: %w", err)
	}
	return []any{
		formatTime(b.UpdatedAt),
		nullString(b.ISBN),
		nullString(b.NonISBN),
		nullString(b.OtherCode),
		b.Title,
		b.Author,
		nullString(b.Edition),
		nullInt(b.Year),
		nullString(b.PublisherName),
		nullString(b.BindingType),
		nullString(b.Classification),
		nullString(b.Remarks),
		string(tagsJSON),
		nullString(normalize.Key(b.ISBN)),
		nullString(normalize.Key(b.OtherCode)),
		normalize.Key(b.Title),
		normalize.Key(b.Author),
		normalize.Key(b.PublisherName),
	}, nil
}

func (s *Store) findBookBy(ctx context.Context, column, value string) (*domain.Book, error) {
	key := normalize.Key(value)
	if key == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+bookColumns+` FROM books WHERE `+column+` = ?
		ORDER BY rowid ASC LIMIT 1`, key)

	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find book by %s: %w", column, err)
	}
	return b, nil
}

// FindBookByISBN returns the book with the given ISBN, ignoring case.
func (s *Store) FindBookByISBN(ctx context.Context, isbn string) (*domain.Book, error) {
	return s.findBookBy(ctx, "isbn_key", isbn)
}

// FindBookByOtherCode returns the oldest book with the given code, ignoring case.
func (s *Store) FindBookByOtherCode(ctx context.Context, code string) (*domain.Book, error) {
	return s.findBookBy(ctx, "other_code_key", code)
}

// FindBookByTitle returns the oldest book whose whole title matches, ignoring case.
func (s *Store) FindBookByTitle(ctx context.Context, title string) (*domain.Book, error) {
	return s.findBookBy(ctx, "title_key", title)
}

// GetBook returns a book by ID.
func (s *Store) GetBook(ctx context.Context, bookID string) (*domain.Book, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, bookID)
	b, err := scanBook(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrBookNotFound
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// InsertBook creates a book from fields.
func (s *Store) InsertBook(ctx context.Context, fields domain.BookFields) (*domain.Book, error) {
	bookID, err := id.Generate(id.PrefixBook)
	if err != nil {
		return nil, err
	}
	now := s.now()
	b := &domain.Book{ID: bookID, BookFields: fields, CreatedAt: now, UpdatedAt: now}

	args, err := bookArgs(b)
	if err != nil {
		return nil, err
	}
	args = append([]any{b.ID, formatTime(b.CreatedAt)}, args...)

	_, err = s.db.ExecContext(ctx, `INSERT INTO books (
		id, created_at, updated_at,
		isbn, nonisbn, other_code, title, author, edition, year,
		publisher_name, binding_type, classification, remarks, tags,
		isbn_key, other_code_key, title_key, author_key, publisher_key
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
	if isUniqueViolation(err) {
		return nil, store.ErrDuplicateISBN
	}
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}

	s.index(ctx, b)
	return b, nil
}

// UpdateBook overlays the supplied fields onto the stored book.
func (s *Store) UpdateBook(ctx context.Context, bookID string, fields domain.BookFields) (*domain.Book, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	b, err := scanBook(tx.QueryRowContext(ctx, `SELECT `+bookColumns+` FROM books WHERE id = ?`, bookID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrBookNotFound
	}
	if err != nil {
		return nil, err
	}

	b.Apply(fields)
	b.UpdatedAt = s.now()

	args, err := bookArgs(b)
	if err != nil {
		return nil, err
	}
	args = append(args, b.ID)

	_, err = tx.ExecContext(ctx, `UPDATE books SET
		updated_at = ?,
		isbn = ?, nonisbn = ?, other_code = ?, title = ?, author = ?, edition = ?, year = ?,
		publisher_name = ?, binding_type = ?, classification = ?, remarks = ?, tags = ?,
		isbn_key = ?, other_code_key = ?, title_key = ?, author_key = ?, publisher_key = ?
		WHERE id = ?`, args...)
	if isUniqueViolation(err) {
		return nil, store.ErrDuplicateISBN
	}
	if err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	s.index(ctx, b)
	return b, nil
}

// DeleteBook removes a book. Its pricing goes with it.
func (s *Store) DeleteBook(ctx context.Context, bookID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM books WHERE id = ?`, bookID)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
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
	where, args := bookWhere(filter)
	args = append(args, page.Limit, page.Offset())

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+bookColumns+` FROM books`+where+`
		ORDER BY rowid DESC
		LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	defer rows.Close()

	books := []*domain.Book{}
	for rows.Next() {
		b, err := scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// CountBooks counts books matching filter.
func (s *Store) CountBooks(ctx context.Context, filter store.BookFilter) (int, error) {
	where, args := bookWhere(filter)
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count books: %w", err)
	}
	return n, nil
}

func bookWhere(f store.BookFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	like := func(column, value string) {
		if key := normalize.Key(value); key != "" {
			clauses = append(clauses, column+` LIKE ? ESCAPE '\'`)
			args = append(args, likePattern(key))
		}
	}
	like("title_key", f.Title)
	like("author_key", f.Author)
	like("COALESCE(isbn_key, '')", f.ISBN)
	like("publisher_key", f.PublisherName)
	if f.Year != nil {
		clauses = append(clauses, "year = ?")
		args = append(args, *f.Year)
	}
	if c := strings.TrimSpace(f.Classification); c != "" {
		clauses = append(clauses, "classification = ?")
		args = append(args, c)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (s *Store) index(ctx context.Context, b *domain.Book) {
	if err := s.searchIndexer.IndexBook(ctx, b); err != nil {
		s.logger.Warn("failed to index book", "book_id", b.ID, "error", err)
	}
}
