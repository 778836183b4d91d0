package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/fieldmap"
	"github.com/listenupapp/catalog-server/internal/normalize"
	"github.com/listenupapp/catalog-server/internal/reconcile"
	"github.com/listenupapp/catalog-server/internal/tabular"
)

// Reconciler applies one record to the catalog.
type Reconciler interface {
	Reconcile(ctx context.Context, book domain.BookFields, pricing domain.PricingFields, policy domain.Policy) (*reconcile.Result, error)
}

// Runner drives imports row by row. Rows run strictly in source order so
// later rows see what earlier rows inserted.
type Runner struct {
	engine     Reconciler
	normalizer *normalize.Normalizer
	audit      AuditLog
	logger     *slog.Logger
	now        func() time.Time
}

// NewRunner creates a Runner. A nil audit log disables log files.
func NewRunner(engine Reconciler, normalizer *normalize.Normalizer, audit AuditLog, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if normalizer == nil {
		normalizer = normalize.New("")
	}
	return &Runner{
		engine:     engine,
		normalizer: normalizer,
		audit:      audit,
		logger:     logger,
		now:        time.Now,
	}
}

// Run imports every row of src using mapping. sourceName is the default
// pricing source and names the audit log.
//
// Row failures are recorded and never stop the batch. Cancelling ctx stops
// the batch between rows; the report built so far is returned with
// Cancelled set. FileName is left for the caller.
func (r *Runner) Run(ctx context.Context, src tabular.Source, mapping fieldmap.Mapping, sourceName string, policy domain.Policy) *Report {
	report := &Report{
		ID:               uuid.NewString(),
		Source:           sourceName,
		StartedAt:        r.now().UTC(),
		Policy:           policy,
		Mapping:          mapping,
		ConflictDetails:  []ConflictDetail{},
		DuplicateDetails: []DuplicateDetail{},
		ErrorDetails:     []ErrorDetail{},
	}

	r.logger.Info("import started",
		"import_id", report.ID,
		"source", sourceName,
		"sheet", src.Name(),
		"update_existing", policy.UpdateExisting,
	)

	headers := src.Headers()
	rowNum := 0
	for row, readErr := range src.Rows() {
		if ctx.Err() != nil {
			report.Cancelled = true
			break
		}
		rowNum++
		report.Stats.Total++

		if readErr != nil {
			r.recordError(report, rowNum, readErr, row)
			continue
		}
		r.processRow(ctx, report, rowNum, row, headers, mapping, sourceName, policy)
	}

	report.finish(r.now().UTC())

	if r.audit != nil {
		path, err := r.audit.Write(report)
		if err != nil {
			r.logger.Warn("failed to write import log", "import_id", report.ID, "error", err)
		} else {
			report.LogFile = path
		}
	}

	r.logger.Info("import finished",
		"import_id", report.ID,
		"total", report.Stats.Total,
		"inserted", report.Stats.Inserted,
		"updated", report.Stats.Updated,
		"skipped", report.Stats.Skipped,
		"conflicts", report.Stats.Conflicts,
		"duplicates", report.Stats.Duplicates,
		"errors", report.Stats.Errors,
		"cancelled", report.Cancelled,
		"duration", report.Duration(),
	)
	return report
}

// processRow handles one row, turning a panic into a row error.
func (r *Runner) processRow(ctx context.Context, report *Report, rowNum int, row tabular.Row, headers []string, mapping fieldmap.Mapping, sourceName string, policy domain.Policy) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("panic while importing row", "row", rowNum, "panic", p, "stack", string(debug.Stack()))
			r.recordError(report, rowNum, fmt.Errorf("panic: %v", p), row)
		}
	}()

	if row.Empty() {
		report.Stats.Skipped++
		return
	}

	book, pricing := r.normalizer.Normalize(row, headers, mapping, sourceName)
	if !book.Identifiable() {
		report.Stats.Skipped++
		r.logger.Warn("skipping row without title or isbn", "row", rowNum)
		return
	}

	res, err := r.engine.Reconcile(ctx, book, pricing, policy)
	if err != nil {
		r.recordError(report, rowNum, err, row)
		return
	}

	switch res.Action {
	case domain.ActionInsertBookAndPricing:
		report.Stats.Inserted++
	case domain.ActionUpdateBookAndPricing, domain.ActionUpdatePricingOnly, domain.ActionAddPricing:
		report.Stats.Updated++
	case domain.ActionSkip:
		report.Stats.Duplicates++
		report.DuplicateDetails = append(report.DuplicateDetails, DuplicateDetail{
			Row:            rowNum,
			MatchedBy:      res.Match.MatchedBy,
			ExistingBookID: res.Match.ExistingBook.ID,
			Book:           book,
			Pricing:        pricing,
		})
	case domain.ActionFlagConflict:
		report.Stats.Conflicts++
		detail := ConflictDetail{
			Row:              rowNum,
			ConflictType:     res.Reason,
			MatchedBy:        res.Match.MatchedBy,
			ConflictFields:   res.Match.ConflictFields,
			PricingConflicts: res.Pricing.Differences,
			Book:             book,
			Pricing:          pricing,
		}
		if res.Match.ExistingBook != nil {
			detail.ExistingBookID = res.Match.ExistingBook.ID
		}
		report.ConflictDetails = append(report.ConflictDetails, detail)
	}
}

func (r *Runner) recordError(report *Report, rowNum int, err error, row tabular.Row) {
	report.Stats.Errors++
	detail := ErrorDetail{Row: rowNum, Error: err.Error(), Data: maps.Clone(row)}
	if detail.Data == nil {
		detail.Data = map[string]string{}
	}

	var execErr *reconcile.ExecError
	if errors.As(err, &execErr) {
		detail.Stage = execErr.Stage
		detail.RollbackFailed = execErr.RollbackFailed
		detail.OrphanBookID = execErr.OrphanBookID
	}
	report.ErrorDetails = append(report.ErrorDetails, detail)

	r.logger.Error("failed to import row",
		"row", rowNum,
		"error", err,
		"rollback_failed", detail.RollbackFailed,
	)
}
