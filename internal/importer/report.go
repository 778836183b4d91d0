// Package importer runs bulk imports: every row of a tabular source is
// normalized and reconciled against the catalog, and the outcomes are
// gathered into a Report.
package importer

import (
	"time"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/fieldmap"
)

// Stats counts row outcomes. Every row lands in exactly one counter besides
// Total.
type Stats struct {
	Total      int `json:"total"`
	Inserted   int `json:"inserted"`
	Updated    int `json:"updated"`
	Skipped    int `json:"skipped"`
	Conflicts  int `json:"conflicts"`
	Duplicates int `json:"duplicates"`
	Errors     int `json:"errors"`
}

// Summary is the headline view of Stats.
type Summary struct {
	TotalProcessed int `json:"total_processed"`
	Successful     int `json:"successful"`
	Failed         int `json:"failed"`
	Conflicts      int `json:"conflicts"`
	Duplicates     int `json:"duplicates"`
	Errors         int `json:"errors"`
	Skipped        int `json:"skipped"`
}

// Summarize derives the summary. Successful rows changed the catalog;
// everything else counts as failed.
func (s Stats) Summarize() Summary {
	return Summary{
		TotalProcessed: s.Total,
		Successful:     s.Inserted + s.Updated,
		Failed:         s.Conflicts + s.Duplicates + s.Errors + s.Skipped,
		Conflicts:      s.Conflicts,
		Duplicates:     s.Duplicates,
		Errors:         s.Errors,
		Skipped:        s.Skipped,
	}
}

// ConflictDetail records a row that was flagged instead of written.
type ConflictDetail struct {
	Row              int                        `json:"row"`
	ConflictType     string                     `json:"conflict_type"`
	MatchedBy        domain.MatchedBy           `json:"matched_by,omitempty"`
	ExistingBookID   string                     `json:"existing_book_id,omitempty"`
	ConflictFields   domain.ConflictFields      `json:"conflict_fields,omitempty"`
	PricingConflicts []domain.PricingDifference `json:"pricing_conflicts,omitempty"`
	Book             domain.BookFields          `json:"book"`
	Pricing          domain.PricingFields       `json:"pricing"`
}

// DuplicateDetail records a row whose book and pricing were already present.
type DuplicateDetail struct {
	Row            int                  `json:"row"`
	MatchedBy      domain.MatchedBy     `json:"matched_by"`
	ExistingBookID string               `json:"existing_book_id"`
	Book           domain.BookFields    `json:"book"`
	Pricing        domain.PricingFields `json:"pricing"`
}

// ErrorDetail records a row that failed. Data is the raw row.
type ErrorDetail struct {
	Row            int               `json:"row"`
	Error          string            `json:"error"`
	Stage          string            `json:"stage,omitempty"`
	RollbackFailed bool              `json:"rollback_failed"`
	OrphanBookID   string            `json:"orphan_book_id,omitempty"`
	Data           map[string]string `json:"data"`
}

// Review kinds.
const (
	ReviewConflict  = "conflict"
	ReviewDuplicate = "duplicate"
)

// ReviewItem is a row left for a person to look at.
type ReviewItem struct {
	Row            int    `json:"row"`
	Kind           string `json:"kind"`
	Reason         string `json:"reason"`
	Title          string `json:"title,omitempty"`
	ISBN           string `json:"isbn,omitempty"`
	ExistingBookID string `json:"existing_book_id,omitempty"`
}

// Report is the outcome of one import.
type Report struct {
	ID               string            `json:"id"`
	Source           string            `json:"source"`
	FileName         string            `json:"file_name,omitempty"`
	StartedAt        time.Time         `json:"started_at"`
	FinishedAt       time.Time         `json:"finished_at"`
	Policy           domain.Policy     `json:"policy"`
	Mapping          fieldmap.Mapping  `json:"mapping"`
	Stats            Stats             `json:"stats"`
	ConflictDetails  []ConflictDetail  `json:"conflict_details"`
	DuplicateDetails []DuplicateDetail `json:"duplicate_details"`
	ErrorDetails     []ErrorDetail     `json:"error_details"`
	PendingReview    []ReviewItem      `json:"pending_review"`
	Summary          Summary           `json:"summary"`
	LogFile          string            `json:"log_file,omitempty"`
	Cancelled        bool              `json:"cancelled"`
}

// Duration is how long the import ran.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// finish seals the report: summary and review list are derived from the
// accumulated details.
func (r *Report) finish(at time.Time) {
	r.FinishedAt = at
	r.Summary = r.Stats.Summarize()

	r.PendingReview = []ReviewItem{}
	if !r.Policy.SkipConflicts {
		for _, c := range r.ConflictDetails {
			r.PendingReview = append(r.PendingReview, ReviewItem{
				Row:            c.Row,
				Kind:           ReviewConflict,
				Reason:         c.ConflictType,
				Title:          c.Book.Title,
				ISBN:           c.Book.ISBN,
				ExistingBookID: c.ExistingBookID,
			})
		}
	}
	if !r.Policy.SkipDuplicates {
		for _, d := range r.DuplicateDetails {
			r.PendingReview = append(r.PendingReview, ReviewItem{
				Row:            d.Row,
				Kind:           ReviewDuplicate,
				Reason:         string(domain.MatchDuplicate),
				Title:          d.Book.Title,
				ISBN:           d.Book.ISBN,
				ExistingBookID: d.ExistingBookID,
			})
		}
	}
}
