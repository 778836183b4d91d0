package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/store"
)

// Execution stages reported by ExecError.
const (
	StageInsertBook    = "insert_book"
	StageInsertPricing = "insert_pricing"
	StageUpdateBook    = "update_book"
	StageUpdatePricing = "update_pricing"
)

// ExecError reports a failed catalog write.
//
// When pricing could not be stored for a freshly inserted book, the book is
// deleted again. RolledBack is set when that delete succeeded; RollbackFailed
// when it did not, leaving OrphanBookID in the catalog.
type ExecError struct {
	Action         domain.Action
	Stage          string
	RolledBack     bool
	RollbackFailed bool
	OrphanBookID   string
	Err            error
	RollbackErr    error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("%s: %s: %v", e.Action, e.Stage, e.Err)
	switch {
	case e.RollbackFailed:
		msg += fmt.Sprintf(" (rollback of book %s failed: %v)", e.OrphanBookID, e.RollbackErr)
	case e.RolledBack:
		msg += " (book removed)"
	}
	return msg
}

func (e *ExecError) Unwrap() []error {
	if e.RollbackErr != nil {
		return []error{e.Err, e.RollbackErr}
	}
	return []error{e.Err}
}

// RollbackFailed reports whether err carries a failed orphan cleanup.
func RollbackFailed(err error) bool {
	var execErr *ExecError
	return errors.As(err, &execErr) && execErr.RollbackFailed
}

// Assessment is the classification of one record and the action a commit
// under the given policy takes.
type Assessment struct {
	Match         domain.MatchOutcome   `json:"match"`
	Pricing       domain.PricingOutcome `json:"pricing"`
	Action        domain.Action         `json:"action"`
	Reason        string                `json:"reason"`
	PricingAction PricingAction         `json:"pricing_action"`
	Message       string                `json:"message"`
}

// Result is an executed assessment. Book is the inserted, updated or matched
// book; Written is the stored pricing and nil when nothing was written.
type Result struct {
	Assessment
	Book    *domain.Book    `json:"book,omitempty"`
	Written *domain.Pricing `json:"written_pricing,omitempty"`
}

// Engine classifies records and applies the decided action to the catalog.
type Engine struct {
	catalog store.Catalog
	books   *Matcher
	prices  *PricingMatcher
	logger  *slog.Logger
}

// NewEngine creates an Engine over catalog.
func NewEngine(catalog store.Catalog, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		catalog: catalog,
		books:   NewMatcher(catalog),
		prices:  NewPricingMatcher(catalog),
		logger:  logger,
	}
}

// Check classifies book and pricing without writing anything.
func (e *Engine) Check(ctx context.Context, book domain.BookFields, pricing domain.PricingFields, policy domain.Policy) (*Assessment, error) {
	match, err := e.books.Resolve(ctx, book)
	if err != nil {
		return nil, err
	}

	pricingOutcome := domain.PricingOutcome{Kind: domain.PricingNew}
	if match.ExistingBook != nil {
		pricingOutcome, err = e.prices.Resolve(ctx, match.ExistingBook.ID, pricing)
		if err != nil {
			return nil, err
		}
	}

	a := &Assessment{
		Match:   match,
		Pricing: pricingOutcome,
		Action:  Decide(match, pricingOutcome, policy),
		Reason:  Reason(match, pricingOutcome),
	}
	a.PricingAction = pricingActionFor(match, pricingOutcome)
	a.Message = Message(match, pricingOutcome)
	return a, nil
}

// Reconcile classifies book and pricing and executes the decided action.
//
// Lookup failures come back as plain errors. Write failures come back as
// *ExecError alongside the assessment.
func (e *Engine) Reconcile(ctx context.Context, book domain.BookFields, pricing domain.PricingFields, policy domain.Policy) (*Result, error) {
	a, err := e.Check(ctx, book, pricing, policy)
	if err != nil {
		return nil, err
	}
	res := &Result{Assessment: *a, Book: a.Match.ExistingBook}

	switch a.Action {
	case domain.ActionInsertBookAndPricing:
		err = e.insert(ctx, res, book, pricing)
	case domain.ActionAddPricing:
		res.Written, err = e.catalog.InsertPricing(ctx, res.Book.ID, pricing)
		err = stageErr(a.Action, StageInsertPricing, err)
	case domain.ActionUpdatePricingOnly:
		res.Written, err = e.catalog.UpdatePricing(ctx, a.Pricing.ExistingPricing.ID, pricing)
		err = stageErr(a.Action, StageUpdatePricing, err)
	case domain.ActionUpdateBookAndPricing:
		err = e.update(ctx, res, book, pricing)
	case domain.ActionSkip, domain.ActionFlagConflict:
	}
	if err != nil {
		return res, err
	}

	if a.Action.Mutates() {
		e.logger.Debug("record reconciled",
			"action", a.Action,
			"book_id", res.Book.ID,
			"source", pricing.Source,
		)
	}
	return res, nil
}

func (e *Engine) insert(ctx context.Context, res *Result, book domain.BookFields, pricing domain.PricingFields) error {
	created, err := e.catalog.InsertBook(ctx, book)
	if err != nil {
		return stageErr(res.Action, StageInsertBook, err)
	}
	res.Book = created

	res.Written, err = e.catalog.InsertPricing(ctx, created.ID, pricing)
	if err == nil {
		return nil
	}

	execErr := &ExecError{Action: res.Action, Stage: StageInsertPricing, Err: err}
	// The cleanup must run even when ctx is what failed the pricing insert.
	if delErr := e.catalog.DeleteBook(context.WithoutCancel(ctx), created.ID); delErr != nil {
		execErr.RollbackFailed = true
		execErr.OrphanBookID = created.ID
		execErr.RollbackErr = delErr
		e.logger.Error("orphan book left after failed pricing insert",
			"book_id", created.ID,
			"error", err,
			"rollback_error", delErr,
		)
	} else {
		execErr.RolledBack = true
		res.Book = nil
		e.logger.Warn("pricing insert failed, book removed", "book_id", created.ID, "error", err)
	}
	res.Written = nil
	return execErr
}

func (e *Engine) update(ctx context.Context, res *Result, book domain.BookFields, pricing domain.PricingFields) error {
	updated, err := e.catalog.UpdateBook(ctx, res.Book.ID, book)
	if err != nil {
		return stageErr(res.Action, StageUpdateBook, err)
	}
	res.Book = updated

	if existing := res.Pricing.ExistingPricing; existing != nil {
		res.Written, err = e.catalog.UpdatePricing(ctx, existing.ID, pricing)
		return stageErr(res.Action, StageUpdatePricing, err)
	}
	res.Written, err = e.catalog.InsertPricing(ctx, updated.ID, pricing)
	return stageErr(res.Action, StageInsertPricing, err)
}

func stageErr(action domain.Action, stage string, err error) error {
	if err == nil {
		return nil
	}
	return &ExecError{Action: action, Stage: stage, Err: err}
}
