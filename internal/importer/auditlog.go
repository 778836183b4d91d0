package importer

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// AuditLog persists a human-readable account of an import and returns where
// it went.
type AuditLog interface {
	Write(report *Report) (string, error)
}

// FileAuditLog writes bulk-import-<source>-<timestamp>.log files into Dir.
type FileAuditLog struct {
	Dir string
}

// NewFileAuditLog creates a FileAuditLog writing into dir.
func NewFileAuditLog(dir string) *FileAuditLog {
	return &FileAuditLog{Dir: dir}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName returns the log file name for a report.
func FileName(report *Report) string {
	source := strings.Trim(unsafeName.ReplaceAllString(report.Source, "_"), "_")
	if source == "" {
		source = "import"
	}
	stamp := strings.NewReplacer(":", "-", ".", "-").Replace(report.FinishedAt.UTC().Format("2006-01-02T15:04:05.000Z"))
	return fmt.Sprintf("bulk-import-%s-%s.log", source, stamp)
}

// Write renders report into a new file.
func (l *FileAuditLog) Write(report *Report) (string, error) {
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}

	f, path, err := createUnique(l.Dir, FileName(report))
	if err != nil {
		return "", fmt.Errorf("create log file: %w", err)
	}
	if err := Render(f, report); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close log file: %w", err)
	}
	return path, nil
}

// createUnique creates dir/name, adding -1, -2, ... before the extension
// when the name is taken. Existing logs are never truncated.
func createUnique(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 0; n < 1000; n++ {
		candidate := name
		if n > 0 {
			candidate = fmt.Sprintf("%s-%d%s", stem, n, ext)
		}
		path := filepath.Join(dir, candidate)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", err
		}
		return f, path, nil
	}
	return nil, "", fmt.Errorf("no free log name for %s in %s", name, dir)
}

// Render writes the audit text: a header, then the conflicts, duplicates and
// errors sections in that order. Empty sections are left out.
func Render(w io.Writer, report *Report) error {
	bw := bufio.NewWriter(w)
	p := func(format string, args ...any) {
		fmt.Fprintf(bw, format, args...)
	}
	rule := strings.Repeat("-", 40)

	p("BULK IMPORT LOG - %s\n", report.FinishedAt.UTC().Format(time.RFC3339))
	p("%s\n", strings.Repeat("=", 42))
	p("Import: %s\nSource: %s\n", report.ID, report.Source)
	s := report.Summary
	p("Processed: %d  Successful: %d  Failed: %d (conflicts %d, duplicates %d, errors %d, skipped %d)\n",
		s.TotalProcessed, s.Successful, s.Failed, s.Conflicts, s.Duplicates, s.Errors, s.Skipped)
	if report.Cancelled {
		p("Import was cancelled before the last row.\n")
	}
	p("\n")

	if n := len(report.ConflictDetails); n > 0 {
		p("CONFLICTS (%d records):\n%s\n", n, rule)
		for i, c := range report.ConflictDetails {
			p("%d. Row %d: %s\n", i+1, c.Row, c.ConflictType)
			p("   Book: %s by %s\n", orNA(c.Book.Title), orNA(c.Book.Author))
			p("   ISBN: %s\n", orNA(c.Book.ISBN))
			if c.ExistingBookID != "" {
				p("   Existing Book ID: %s\n", c.ExistingBookID)
			}
			if len(c.ConflictFields) > 0 {
				p("   Conflicts: %s\n", indentJSON(c.ConflictFields))
			}
			if len(c.PricingConflicts) > 0 {
				p("   Pricing Conflicts: %s\n", indentJSON(c.PricingConflicts))
			}
			p("\n")
		}
		p("\n")
	}

	if n := len(report.DuplicateDetails); n > 0 {
		p("DUPLICATES (%d records):\n%s\n", n, rule)
		for i, d := range report.DuplicateDetails {
			p("%d. Row %d: DUPLICATE\n", i+1, d.Row)
			p("   Book: %s by %s\n", orNA(d.Book.Title), orNA(d.Book.Author))
			p("   ISBN: %s\n", orNA(d.Book.ISBN))
			p("   Existing Book ID: %s\n", d.ExistingBookID)
			p("   Pricing: Also duplicate\n\n")
		}
		p("\n")
	}

	if n := len(report.ErrorDetails); n > 0 {
		p("ERRORS (%d records):\n%s\n", n, rule)
		for i, e := range report.ErrorDetails {
			p("%d. Row %d: %s\n", i+1, e.Row, e.Error)
			if e.RollbackFailed {
				p("   ROLLBACK FAILED: orphan book %s\n", e.OrphanBookID)
			}
			p("   Data: %s\n\n", indentJSON(e.Data))
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write import log: %w", err)
	}
	return nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func indentJSON(v any) string {
	b, err := json.MarshalIndent(v, "   ", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}
