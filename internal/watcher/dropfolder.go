package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/listenupapp/catalog-server/internal/importer"
	"github.com/listenupapp/catalog-server/internal/service"
)

// Subdirectories of the drop folder that finished files are moved into.
const (
	ProcessedDir = "processed"
	FailedDir    = "failed"
)

// Importer runs one spreadsheet import.
type Importer interface {
	ImportFile(ctx context.Context, req service.ImportRequest) (*importer.Report, error)
}

// DropFolder imports every spreadsheet that lands in a directory, one at a
// time, then files it under processed/ or failed/.
type DropFolder struct {
	dir      string
	importer Importer
	logger   *slog.Logger
	opts     Options
}

// NewDropFolder prepares dir and its processed/ and failed/ subdirectories.
func NewDropFolder(dir string, imp Importer, logger *slog.Logger, opts Options) (*DropFolder, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts.setDefaults()

	dir = filepath.Clean(dir)
	for _, sub := range []string{dir, filepath.Join(dir, ProcessedDir), filepath.Join(dir, FailedDir)} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return nil, fmt.Errorf("create drop folder %s: %w", sub, err)
		}
	}

	return &DropFolder{dir: dir, importer: imp, logger: logger, opts: opts}, nil
}

// Dir returns the watched directory.
func (d *DropFolder) Dir() string {
	return d.dir
}

// Run imports files already present, then watches for new ones until ctx is
// cancelled.
func (d *DropFolder) Run(ctx context.Context) error {
	w, err := New(d.logger, d.opts)
	if err != nil {
		return err
	}
	defer w.Stop()

	if err := w.Watch(d.dir); err != nil {
		return err
	}

	go func() {
		if err := w.Start(ctx); err != nil {
			d.logger.Error("drop folder watcher stopped", "error", err)
		}
	}()

	d.logger.Info("watching drop folder", "dir", d.dir)
	d.scan(w)

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-w.Errors():
			d.logger.Warn("drop folder watch error", "error", err)
		case ev := <-w.Events():
			if ev.Type == EventAdded {
				d.process(ctx, ev.Path)
			}
		}
	}
}

// scan queues files that were dropped while the server was down. They go
// through the same settle check as watched files, so a copy still in
// progress is not imported half-written.
func (d *DropFolder) scan(w *Watcher) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		d.logger.Warn("failed to scan drop folder", "dir", d.dir, "error", err)
		return
	}
	for _, e := range entries {
		path := filepath.Join(d.dir, e.Name())
		if e.IsDir() || d.opts.shouldIgnore(path) || !d.opts.accepts(path) {
			continue
		}
		w.startSettling(path)
	}
}

// process imports one file and moves it out of the way. A cancelled import
// leaves the file where it is so the next run picks it up again.
func (d *DropFolder) process(ctx context.Context, path string) {
	if filepath.Dir(path) != d.dir || d.opts.shouldIgnore(path) || !d.opts.accepts(path) {
		return
	}
	if _, err := os.Stat(path); err != nil {
		// Already moved by an earlier event.
		return
	}

	logger := d.logger.With("file", filepath.Base(path))
	logger.Info("importing dropped file")

	report, err := d.importer.ImportFile(ctx, service.ImportRequest{Path: path})
	switch {
	case err != nil:
		logger.Error("dropped file import failed", "error", err)
		d.move(path, FailedDir, logger)
	case report.Cancelled:
		logger.Warn("dropped file import cancelled", "import_id", report.ID)
	default:
		logger.Info("dropped file imported",
			"import_id", report.ID,
			"inserted", report.Stats.Inserted,
			"updated", report.Stats.Updated,
			"conflicts", report.Stats.Conflicts,
			"errors", report.Stats.Errors,
		)
		d.move(path, ProcessedDir, logger)
	}
}

func (d *DropFolder) move(path, sub string, logger *slog.Logger) {
	dst, err := uniquePath(filepath.Join(d.dir, sub), filepath.Base(path))
	if err != nil {
		logger.Error("failed to pick destination for dropped file", "error", err)
		return
	}
	if err := os.Rename(path, dst); err != nil {
		logger.Error("failed to move dropped file", "to", dst, "error", err)
	}
}

// uniquePath returns dir/name, or dir/name-<timestamp>[-n].ext if taken.
func uniquePath(dir, name string) (string, error) {
	candidate := filepath.Join(dir, name)
	if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
		return candidate, nil
	} else if err != nil {
		return "", err
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	stamp := time.Now().UTC().Format("20060102T150405")
	for n := 0; n < 1000; n++ {
		suffix := stamp
		if n > 0 {
			suffix = fmt.Sprintf("%s-%d", stamp, n)
		}
		candidate = filepath.Join(dir, stem+"-"+suffix+ext)
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free name for %s in %s", name, dir)
}
