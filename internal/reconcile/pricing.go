package reconcile

import (
	"context"
	"fmt"

	"github.com/listenupapp/catalog-server/internal/domain"
)

// PricingFinder looks up a book's pricing for one source.
type PricingFinder interface {
	FindPricing(ctx context.Context, bookID, source string) (*domain.Pricing, error)
}

// PricingMatcher compares incoming pricing with what a source already
// recorded for a book.
type PricingMatcher struct {
	prices PricingFinder
}

// NewPricingMatcher creates a PricingMatcher over prices.
func NewPricingMatcher(prices PricingFinder) *PricingMatcher {
	return &PricingMatcher{prices: prices}
}

// Resolve classifies in against the pricing stored for (bookID, in.Source).
func (m *PricingMatcher) Resolve(ctx context.Context, bookID string, in domain.PricingFields) (domain.PricingOutcome, error) {
	existing, err := m.prices.FindPricing(ctx, bookID, in.Source)
	if err != nil {
		return domain.PricingOutcome{}, fmt.Errorf("find pricing for source %q: %w", in.Source, err)
	}
	return ComparePricing(existing, in), nil
}

// ComparePricing classifies in against existing, which may be nil. Rate,
// discount and currency compare strictly; a null rate equals only a null
// rate.
func ComparePricing(existing *domain.Pricing, in domain.PricingFields) domain.PricingOutcome {
	if existing == nil {
		return domain.PricingOutcome{Kind: domain.PricingNew}
	}

	var diffs []domain.PricingDifference
	if !equalRate(existing.Rate, in.Rate) {
		diffs = append(diffs, domain.PricingDifference{Field: "rate", Existing: rateValue(existing.Rate), New: rateValue(in.Rate)})
	}
	if existing.Discount != in.Discount {
		diffs = append(diffs, domain.PricingDifference{Field: "discount", Existing: existing.Discount, New: in.Discount})
	}
	if existing.Currency != in.Currency {
		diffs = append(diffs, domain.PricingDifference{Field: "currency", Existing: existing.Currency, New: in.Currency})
	}

	out := domain.PricingOutcome{Kind: domain.PricingDuplicate, ExistingPricing: existing}
	if len(diffs) > 0 {
		out.Kind = domain.PricingConflict
		out.Differences = diffs
	}
	return out
}

func equalRate(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func rateValue(r *float64) any {
	if r == nil {
		return nil
	}
	return *r
}
