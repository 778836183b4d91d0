// Package history archives finished import reports in Badger so they can be
// listed and fetched after the import returns.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/listenupapp/catalog-server/internal/importer"
)

// ErrNotFound is returned when no report has the requested ID.
var ErrNotFound = errors.New("import report not found")

// Key layout. The time index uses inverted timestamps so a forward scan
// yields the newest report first.
const (
	reportPrefix    = "report:"
	timeIndexPrefix = "report:idx:time:"
)

// Entry is the listing view of an archived report.
type Entry struct {
	ID         string           `json:"id"`
	Source     string           `json:"source"`
	FileName   string           `json:"file_name,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Summary    importer.Summary `json:"summary"`
	Cancelled  bool             `json:"cancelled"`
}

func entryOf(r *importer.Report) Entry {
	return Entry{
		ID:         r.ID,
		Source:     r.Source,
		FileName:   r.FileName,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Summary:    r.Summary,
		Cancelled:  r.Cancelled,
	}
}

// Archive stores import reports.
type Archive struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens (or creates) an archive in the directory at path.
func Open(path string, logger *slog.Logger) (*Archive, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	return open(opts, logger)
}

// OpenInMemory opens an archive that lives only as long as the process.
func OpenInMemory(logger *slog.Logger) (*Archive, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return open(opts, logger)
}

func open(opts badger.Options, logger *slog.Logger) (*Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}
	logger.Info("import history opened", "path", opts.Dir, "in_memory", opts.InMemory)
	return &Archive{db: db, logger: logger}, nil
}

// Close closes the archive.
func (a *Archive) Close() error {
	return a.db.Close()
}

func invertedTimestamp(t time.Time) string {
	return fmt.Sprintf("%019d", math.MaxInt64-t.UnixNano())
}

func timeKey(r *importer.Report) []byte {
	return []byte(timeIndexPrefix + invertedTimestamp(r.FinishedAt) + ":" + r.ID)
}

// Save stores a report, replacing any report with the same ID.
func (a *Archive) Save(ctx context.Context, report *importer.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if report.ID == "" {
		return errors.New("report has no id")
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshaling report: %w", err)
	}
	entry, err := json.Marshal(entryOf(report))
	if err != nil {
		return fmt.Errorf("marshaling entry: %w", err)
	}

	return a.db.Update(func(txn *badger.Txn) error {
		primaryKey := []byte(reportPrefix + report.ID)

		// Drop the old time index entry when a report is saved twice.
		if item, err := txn.Get(primaryKey); err == nil {
			var old importer.Report
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &old) }); err != nil {
				return fmt.Errorf("reading previous report: %w", err)
			}
			if err := txn.Delete(timeKey(&old)); err != nil {
				return fmt.Errorf("deleting time index: %w", err)
			}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := txn.Set(primaryKey, data); err != nil {
			return fmt.Errorf("setting primary key: %w", err)
		}
		if err := txn.Set(timeKey(report), entry); err != nil {
			return fmt.Errorf("setting time index: %w", err)
		}
		return nil
	})
}

// Get returns the full report.
func (a *Archive) Get(ctx context.Context, id string) (*importer.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var report importer.Report
	err := a.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(reportPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &report)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("report %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting report %s: %w", id, err)
	}
	return &report, nil
}

// List returns up to limit entries, newest first, skipping offset entries.
// A limit of zero or less means no limit.
func (a *Archive) List(ctx context.Context, limit, offset int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := []Entry{}
	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(timeIndexPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		skipped := 0
		for it.Rewind(); it.Valid(); it.Next() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			if skipped < offset {
				skipped++
				continue
			}
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				a.logger.Warn("skipping unreadable history entry", "key", string(it.Item().Key()), "error", err)
				continue
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing reports: %w", err)
	}
	return entries, nil
}

// Count returns the number of archived reports.
func (a *Archive) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n := 0
	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(timeIndexPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("counting reports: %w", err)
	}
	return n, nil
}

// Delete removes a report.
func (a *Archive) Delete(ctx context.Context, id string) error {
	report, err := a.Get(ctx, id)
	if err != nil {
		return err
	}
	return a.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(reportPrefix + id)); err != nil {
			return err
		}
		return txn.Delete(timeKey(report))
	})
}

