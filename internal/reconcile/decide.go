package reconcile

import "github.com/listenupapp/catalog-server/internal/domain"

// Conflict reasons reported for pricing-only disagreements on a duplicate book.
const (
	ReasonPricingConflict           = "PRICING_CONFLICT"
	ReasonNewPricingForExistingBook = "NEW_PRICING_FOR_EXISTING_BOOK"
)

// Decide maps a match and pricing classification to an action.
//
//	NEW                                  -> INSERT_BOOK_AND_PRICING
//	DUPLICATE + DUPLICATE                -> SKIP
//	DUPLICATE + CONFLICT                 -> UPDATE_PRICING_ONLY | FLAG_CONFLICT
//	DUPLICATE_WITH_CONFLICTS, AUTHOR_CONFLICT, CONFLICT
//	                                     -> UPDATE_BOOK_AND_PRICING | FLAG_CONFLICT
//	DUPLICATE + NEW                      -> ADD_PRICING | FLAG_CONFLICT
//
// The update variants apply only when policy.UpdateExisting is set.
func Decide(match domain.MatchOutcome, pricing domain.PricingOutcome, policy domain.Policy) domain.Action {
	orFlag := func(a domain.Action) domain.Action {
		if policy.UpdateExisting {
			return a
		}
		return domain.ActionFlagConflict
	}

	switch {
	case match.Kind == domain.MatchNew:
		return domain.ActionInsertBookAndPricing
	case match.Kind == domain.MatchDuplicate && pricing.Kind == domain.PricingDuplicate:
		return domain.ActionSkip
	case match.Kind == domain.MatchDuplicate && pricing.Kind == domain.PricingConflict:
		return orFlag(domain.ActionUpdatePricingOnly)
	case match.Kind.IsConflict():
		return orFlag(domain.ActionUpdateBookAndPricing)
	default:
		return orFlag(domain.ActionAddPricing)
	}
}

// Reason names why a record is not a clean insert or duplicate. It is the
// match kind for book-level conflicts and a pricing reason otherwise.
func Reason(match domain.MatchOutcome, pricing domain.PricingOutcome) string {
	if match.Kind == domain.MatchDuplicate {
		switch pricing.Kind {
		case domain.PricingConflict:
			return ReasonPricingConflict
		case domain.PricingNew:
			return ReasonNewPricingForExistingBook
		}
	}
	return string(match.Kind)
}
