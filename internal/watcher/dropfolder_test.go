package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/importer"
	"github.com/listenupapp/catalog-server/internal/service"
)

type fakeImporter struct {
	mu     sync.Mutex
	paths  []string
	result func(path string) (*importer.Report, error)
}

func (f *fakeImporter) ImportFile(_ context.Context, req service.ImportRequest) (*importer.Report, error) {
	f.mu.Lock()
	f.paths = append(f.paths, filepath.Base(req.Path))
	f.mu.Unlock()
	if f.result != nil {
		return f.result(req.Path)
	}
	return &importer.Report{ID: "imp-1"}, nil
}

func (f *fakeImporter) seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

func newTestDropFolder(t *testing.T, imp Importer) *DropFolder {
	t.Helper()
	d, err := NewDropFolder(filepath.Join(t.TempDir(), "drop"), imp, slog.New(slog.DiscardHandler), Options{SettleDelay: 30 * time.Millisecond})
	require.NoError(t, err)
	return d
}

func runDropFolder(t *testing.T, d *DropFolder) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, d.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestNewDropFolder_CreatesLayout(t *testing.T) {
	d := newTestDropFolder(t, &fakeImporter{})

	for _, sub := range []string{ProcessedDir, FailedDir} {
		info, err := os.Stat(filepath.Join(d.Dir(), sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestDropFolder_ImportsExistingAndNewFiles(t *testing.T) {
	imp := &fakeImporter{}
	d := newTestDropFolder(t, imp)

	require.NoError(t, os.WriteFile(filepath.Join(d.Dir(), "early.csv"), []byte("isbn\n1\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(d.Dir(), "notes.txt"), []byte("skip me"), 0o644))

	runDropFolder(t, d)

	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(d.Dir(), ProcessedDir, "early.csv"))
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(d.Dir(), "late.xlsx"), []byte("data"), 0o644))

	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(d.Dir(), ProcessedDir, "late.xlsx"))
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	assert.FileExists(t, filepath.Join(d.Dir(), "notes.txt"))
	assert.NotContains(t, imp.seen(), "notes.txt")
}

func TestDropFolder_ExistingFileWaitsUntilSettled(t *testing.T) {
	var (
		mu       sync.Mutex
		imported string
	)
	imp := &fakeImporter{result: func(path string) (*importer.Report, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		mu.Lock()
		imported = string(data)
		mu.Unlock()
		return &importer.Report{ID: "imp-3"}, nil
	}}
	d, err := NewDropFolder(filepath.Join(t.TempDir(), "drop"), imp, slog.New(slog.DiscardHandler), Options{SettleDelay: 150 * time.Millisecond})
	require.NoError(t, err)

	path := filepath.Join(d.Dir(), "copying.csv")
	require.NoError(t, os.WriteFile(path, []byte("isbn\n"), 0o644))

	runDropFolder(t, d)

	// Keep appending as a slow copy would.
	want := "isbn\n"
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0)
	require.NoError(t, err)
	for i := range 5 {
		line := fmt.Sprintf("%d\n", i)
		_, err := f.WriteString(line)
		require.NoError(t, err)
		want += line
		time.Sleep(20 * time.Millisecond)
	}
	require.NoError(t, f.Close())

	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(d.Dir(), ProcessedDir, "copying.csv"))
		return err == nil
	}, 3*time.Second, 20*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, want, imported)
	assert.Equal(t, []string{"copying.csv"}, imp.seen())
}

func TestDropFolder_FailedImportMovesToFailed(t *testing.T) {
	imp := &fakeImporter{result: func(string) (*importer.Report, error) {
		return nil, errors.New("unreadable")
	}}
	d := newTestDropFolder(t, imp)
	require.NoError(t, os.WriteFile(filepath.Join(d.Dir(), "broken.csv"), []byte("x"), 0o644))

	runDropFolder(t, d)

	assert.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(d.Dir(), FailedDir, "broken.csv"))
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
}

func TestDropFolder_CancelledImportStaysInPlace(t *testing.T) {
	imp := &fakeImporter{result: func(string) (*importer.Report, error) {
		return &importer.Report{ID: "imp-2", Cancelled: true}, nil
	}}
	d := newTestDropFolder(t, imp)
	path := filepath.Join(d.Dir(), "halfway.csv")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	d.process(context.Background(), path)

	assert.FileExists(t, path)
	assert.Equal(t, []string{"halfway.csv"}, imp.seen())
}

func TestDropFolder_ProcessSkipsVanishedFile(t *testing.T) {
	imp := &fakeImporter{}
	d := newTestDropFolder(t, imp)

	d.process(context.Background(), filepath.Join(d.Dir(), "gone.csv"))

	assert.Empty(t, imp.seen())
}

func TestUniquePath(t *testing.T) {
	dir := t.TempDir()

	first, err := uniquePath(dir, "books.csv")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "books.csv"), first)

	require.NoError(t, os.WriteFile(first, nil, 0o644))
	second, err := uniquePath(dir, "books.csv")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, ".csv", filepath.Ext(second))
	assert.Contains(t, filepath.Base(second), "books-")
}
