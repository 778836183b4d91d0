package reconcile

import (
	"fmt"

	"github.com/listenupapp/catalog-server/internal/domain"
)

// PricingAction tells an interactive caller what it can do with the
// pricing part of a record.
type PricingAction string

// Pricing actions.
const (
	PricingActionAddWithBook    PricingAction = "PRICE_ADDED"
	PricingActionAdd            PricingAction = "ADD_PRICE"
	PricingActionUpdatePossible PricingAction = "UPDATE_POSSIBLE"
	PricingActionNoChange       PricingAction = "NO_CHANGE"
)

func pricingActionFor(match domain.MatchOutcome, pricing domain.PricingOutcome) PricingAction {
	if match.Kind == domain.MatchNew {
		return PricingActionAddWithBook
	}
	switch pricing.Kind {
	case domain.PricingConflict:
		return PricingActionUpdatePossible
	case domain.PricingDuplicate:
		return PricingActionNoChange
	default:
		return PricingActionAdd
	}
}

// Message describes a classification in a sentence for people reviewing a
// check result.
func Message(match domain.MatchOutcome, pricing domain.PricingOutcome) string {
	if match.Kind == domain.MatchNew {
		return "No matching book found. The book and its pricing can be added as new."
	}

	var msg string
	if match.MatchedBy == domain.MatchedByTitle {
		switch match.Kind {
		case domain.MatchDuplicate:
			msg = "Book already exists with the same title and author, but ISBN differs or was not provided."
		case domain.MatchDuplicateWithConflicts:
			msg = "Book already exists with the same title and author, but year or publisher name differ."
		default:
			msg = "Same title found but author is different."
		}
	} else {
		id := "ISBN"
		if match.MatchedBy == domain.MatchedByOtherCode {
			id = "code"
		}
		switch match.Kind {
		case domain.MatchDuplicate:
			msg = fmt.Sprintf("Book already exists with the same %s, title and author.", id)
		case domain.MatchDuplicateWithConflicts:
			msg = fmt.Sprintf("Book already exists with the same %s, title and author, but year or publisher name differ.", id)
		case domain.MatchAuthorConflict:
			msg = fmt.Sprintf("Same %s and title found but author is different.", id)
		default:
			msg = fmt.Sprintf("Same %s found but title or author differ.", id)
		}
	}

	switch pricing.Kind {
	case domain.PricingNew:
		msg += " Pricing source is new, pricing can be added."
	case domain.PricingConflict:
		msg += " Pricing differs from what this source recorded."
	}
	return msg
}
