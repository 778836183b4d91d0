// Package reconcile classifies incoming book and pricing records against the
// catalog and applies the resulting action.
package reconcile

import (
	"context"
	"fmt"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/normalize"
)

// BookFinder is the read side of the catalog the Matcher needs.
type BookFinder interface {
	FindBookByISBN(ctx context.Context, isbn string) (*domain.Book, error)
	FindBookByOtherCode(ctx context.Context, code string) (*domain.Book, error)
	FindBookByTitle(ctx context.Context, title string) (*domain.Book, error)
}

// Matcher locates the catalog entry an incoming book refers to.
type Matcher struct {
	books BookFinder
}

// NewMatcher creates a Matcher over books.
func NewMatcher(books BookFinder) *Matcher {
	return &Matcher{books: books}
}

// Resolve looks the book up by ISBN, then other code, then whole title, and
// classifies the first hit. Nothing found is MatchNew, not an error.
func (m *Matcher) Resolve(ctx context.Context, in domain.BookFields) (domain.MatchOutcome, error) {
	lookups := []struct {
		by    domain.MatchedBy
		value string
		find  func(context.Context, string) (*domain.Book, error)
	}{
		{domain.MatchedByISBN, in.ISBN, m.books.FindBookByISBN},
		{domain.MatchedByOtherCode, in.OtherCode, m.books.FindBookByOtherCode},
		{domain.MatchedByTitle, in.Title, m.books.FindBookByTitle},
	}

	for _, l := range lookups {
		if normalize.Key(l.value) == "" {
			continue
		}
		existing, err := l.find(ctx, l.value)
		if err != nil {
			return domain.MatchOutcome{}, fmt.Errorf("match by %s: %w", l.by, err)
		}
		if existing != nil {
			return Classify(existing, l.by, in), nil
		}
	}
	return domain.MatchOutcome{Kind: domain.MatchNew}, nil
}

// Classify compares in against the book found by the given lookup.
//
// Title and author compare ignoring case; year and publisher name compare
// exactly. A title match also reports the identifier mismatch: isbn and
// other_code for duplicates, isbn for an author conflict.
func Classify(existing *domain.Book, by domain.MatchedBy, in domain.BookFields) domain.MatchOutcome {
	out := domain.MatchOutcome{ExistingBook: existing, MatchedBy: by}

	sameTitle := normalize.SameText(existing.Title, in.Title)
	sameAuthor := normalize.SameText(existing.Author, in.Author)
	byTitle := by == domain.MatchedByTitle

	switch {
	case sameTitle && sameAuthor:
		sameYear := equalYear(existing.Year, in.Year)
		samePublisher := existing.PublisherName == in.PublisherName
		if sameYear && samePublisher {
			out.Kind = domain.MatchDuplicate
			return out
		}
		out.Kind = domain.MatchDuplicateWithConflicts
		if byTitle {
			out.ConflictFields.Add("isbn", change(existing.ISBN, in.ISBN))
			out.ConflictFields.Add("other_code", change(existing.OtherCode, in.OtherCode))
		}
		if !sameYear {
			out.ConflictFields.Add("year", &domain.FieldChange{Old: yearValue(existing.Year), New: yearValue(in.Year)})
		}
		if !samePublisher {
			out.ConflictFields.Add("publisher_name", change(existing.PublisherName, in.PublisherName))
		}

	case sameTitle:
		out.Kind = domain.MatchAuthorConflict
		if byTitle {
			out.ConflictFields.Add("isbn", change(existing.ISBN, in.ISBN))
		}
		out.ConflictFields.Add("author", change(existing.Author, in.Author))

	default:
		// Only reachable through an identifier lookup.
		out.Kind = domain.MatchConflict
		var title, author *domain.FieldChange
		if !sameTitle {
			title = change(existing.Title, in.Title)
		}
		if !sameAuthor {
			author = change(existing.Author, in.Author)
		}
		out.ConflictFields.Add("title", title)
		out.ConflictFields.Add("author", author)
	}
	return out
}

func equalYear(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func yearValue(y *int) any {
	if y == nil {
		return nil
	}
	return *y
}

// change builds a FieldChange, reporting blank strings as null.
func change(was, now string) *domain.FieldChange {
	return &domain.FieldChange{Old: textValue(was), New: textValue(now)}
}

func textValue(s string) any {
	if s == "" {
		return nil
	}
	return s
}
