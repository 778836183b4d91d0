package domain

import "time"

// DefaultCurrency is applied to pricing rows that name no currency.
const DefaultCurrency = "USD"

// PricingFields is one source's price for a book. Rate is nil when the
// source gave no usable number.
type PricingFields struct {
	Source   string   `json:"source"`
	Rate     *float64 `json:"rate"`
	Discount float64  `json:"discount"`
	Currency string   `json:"currency"`
}

// Pricing is a stored price. At most one per (BookID, Source) is expected;
// nothing enforces it below the reconciliation layer.
type Pricing struct {
	ID     string `json:"id"`
	BookID string `json:"book_id"`
	PricingFields
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PricingStats summarizes all prices recorded for one book.
// Rates that are null are left out of the rate aggregates.
type PricingStats struct {
	TotalSources    int     `json:"total_sources"`
	AverageRate     float64 `json:"average_rate"`
	MinRate         float64 `json:"min_rate"`
	MaxRate         float64 `json:"max_rate"`
	AverageDiscount float64 `json:"average_discount"`
}

// SummarizePricing computes PricingStats over prices.
func SummarizePricing(prices []*Pricing) PricingStats {
	stats := PricingStats{TotalSources: len(prices)}
	if len(prices) == 0 {
		return stats
	}

	var rateSum, discountSum float64
	rated := 0
	for _, p := range prices {
		discountSum += p.Discount
		if p.Rate == nil {
			continue
		}
		r := *p.Rate
		if rated == 0 || r < stats.MinRate {
			stats.MinRate = r
		}
		if rated == 0 || r > stats.MaxRate {
			stats.MaxRate = r
		}
		rateSum += r
		rated++
	}
	if rated > 0 {
		stats.AverageRate = rateSum / float64(rated)
	}
	stats.AverageDiscount = discountSum / float64(len(prices))
	return stats
}
