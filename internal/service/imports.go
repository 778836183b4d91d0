package service

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/listenupapp/catalog-server/internal/domain"
	"github.com/listenupapp/catalog-server/internal/errors"
	"github.com/listenupapp/catalog-server/internal/fieldmap"
	"github.com/listenupapp/catalog-server/internal/history"
	"github.com/listenupapp/catalog-server/internal/importer"
	"github.com/listenupapp/catalog-server/internal/tabular"
)

// ReportArchive keeps finished import reports.
type ReportArchive interface {
	Save(ctx context.Context, report *importer.Report) error
	Get(ctx context.Context, id string) (*importer.Report, error)
	List(ctx context.Context, limit, offset int) ([]history.Entry, error)
	Count(ctx context.Context) (int, error)
}

// ImportService runs spreadsheet imports and keeps their reports.
type ImportService struct {
	runner  *importer.Runner
	mapper  *fieldmap.Mapper
	archive ReportArchive
	policy  domain.Policy
	logger  *slog.Logger
}

// NewImportService creates an ImportService. policy is used when a request
// does not carry its own. archive may be nil to keep no history.
func NewImportService(runner *importer.Runner, mapper *fieldmap.Mapper, archive ReportArchive, policy domain.Policy, logger *slog.Logger) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	if mapper == nil {
		mapper = fieldmap.Default()
	}
	return &ImportService{
		runner:  runner,
		mapper:  mapper,
		archive: archive,
		policy:  policy,
		logger:  logger,
	}
}

// DefaultPolicy is the policy applied when a request sets none.
func (s *ImportService) DefaultPolicy() domain.Policy {
	return s.policy
}

// ValidateHeaders analyzes the header row of a spreadsheet: which labels map
// to catalog fields, which could, and whether the required fields are there.
func (s *ImportService) ValidateHeaders(_ context.Context, path string) (*fieldmap.Analysis, error) {
	src, err := tabular.Open(path)
	if err != nil {
		return nil, openError(err)
	}
	defer src.Close()

	a := s.mapper.Analyze(src.Headers(), tabular.Count(src))
	return &a, nil
}

// ImportRequest describes one import.
type ImportRequest struct {
	// Path is the spreadsheet on disk.
	Path string
	// FileName is the name the user knows the file by; defaults to the base of Path.
	FileName string
	// Source is the pricing source for rows without one; defaults to the
	// file name without extension.
	Source string
	// Mapping overrides header resolution when set: label -> field.
	Mapping map[string]string
	// Policy overrides the service default when set.
	Policy *domain.Policy
}

// ImportFile imports every row of a spreadsheet and archives the report.
// Row failures are in the report; an error means the file could not be
// imported at all.
func (s *ImportService) ImportFile(ctx context.Context, req ImportRequest) (*importer.Report, error) {
	fileName := req.FileName
	if fileName == "" {
		fileName = filepath.Base(req.Path)
	}

	src, err := tabular.Open(req.Path)
	if err != nil {
		return nil, openError(err)
	}
	defer src.Close()

	var mapping fieldmap.Mapping
	if req.Mapping != nil {
		var unknown []string
		mapping, unknown = fieldmap.ParseMapping(req.Mapping)
		if len(unknown) > 0 {
			return nil, errors.ValidationWithDetails("mapping names unknown fields", map[string]any{"labels": unknown})
		}
	} else {
		mapping = s.mapper.Resolve(src.Headers())
	}
	if len(mapping) == 0 {
		return nil, errors.ValidationWithDetails("no column maps to a catalog field", map[string]any{"headers": src.Headers()})
	}

	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = strings.TrimSuffix(fileName, filepath.Ext(fileName))
	}
	policy := s.policy
	if req.Policy != nil {
		policy = *req.Policy
	}

	report := s.runner.Run(ctx, src, mapping, source, policy)
	report.FileName = fileName

	if s.archive != nil {
		if err := s.archive.Save(context.WithoutCancel(ctx), report); err != nil {
			s.logger.Warn("failed to archive import report", "import_id", report.ID, "error", err)
		}
	}
	return report, nil
}

// ReportList is a page of archived reports, newest first.
type ReportList struct {
	Reports []history.Entry `json:"reports"`
	Total   int             `json:"total"`
}

// ListReports lists archived imports.
func (s *ImportService) ListReports(ctx context.Context, limit, offset int) (*ReportList, error) {
	if s.archive == nil {
		return &ReportList{Reports: []history.Entry{}}, nil
	}
	entries, err := s.archive.List(ctx, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "list reports failed")
	}
	total, err := s.archive.Count(ctx)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "count reports failed")
	}
	return &ReportList{Reports: entries, Total: total}, nil
}

// GetReport returns an archived report.
func (s *ImportService) GetReport(ctx context.Context, id string) (*importer.Report, error) {
	if s.archive == nil {
		return nil, errors.NotFoundf("report %s not found", id)
	}
	r, err := s.archive.Get(ctx, id)
	if errors.Is(err, history.ErrNotFound) {
		return nil, errors.NotFoundf("report %s not found", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "get report failed")
	}
	return r, nil
}

// openError keeps coded errors from tabular.Open and marks the rest as
// unreadable input.
func openError(err error) error {
	var coded *errors.Error
	if errors.As(err, &coded) {
		return err
	}
	return errors.Wrap(err, errors.CodeValidation, "cannot read spreadsheet")
}
