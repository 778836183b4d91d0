package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startWatcher(t *testing.T, opts Options) (*Watcher, string) {
	t.Helper()

	w, err := New(slog.New(slog.DiscardHandler), opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Stop() })

	dir := t.TempDir()
	require.NoError(t, w.Watch(dir))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Start(ctx) //nolint:errcheck // Test goroutine

	return w, dir
}

func nextEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case event := <-w.Events():
		return event
	case err := <-w.Errors():
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for event")
	}
	return Event{}
}

func TestNew(t *testing.T) {
	w, err := New(nil, Options{})
	require.NoError(t, err)
	require.NotNil(t, w)

	assert.NoError(t, w.Stop())
	assert.NoError(t, w.Stop(), "second stop is a no-op")
}

func TestWatcher_Watch_Errors(t *testing.T) {
	w, err := New(nil, Options{})
	require.NoError(t, err)
	defer w.Stop() //nolint:errcheck // Test cleanup

	assert.Error(t, w.Watch(filepath.Join(t.TempDir(), "missing")))

	file := filepath.Join(t.TempDir(), "books.csv")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.Error(t, w.Watch(file))
}

func TestWatcher_FileCreation(t *testing.T) {
	w, dir := startWatcher(t, Options{SettleDelay: 50 * time.Millisecond})

	testFile := filepath.Join(dir, "books.csv")
	require.NoError(t, os.WriteFile(testFile, []byte("isbn,title\n1,Dune\n"), 0o644))

	event := nextEvent(t, w)
	assert.Equal(t, EventAdded, event.Type)
	assert.Equal(t, testFile, event.Path)
	assert.Equal(t, int64(18), event.Size)
}

func TestWatcher_SettlesBeforeEmitting(t *testing.T) {
	w, dir := startWatcher(t, Options{SettleDelay: 100 * time.Millisecond})

	testFile := filepath.Join(dir, "books.csv")
	f, err := os.Create(testFile)
	require.NoError(t, err)
	for range 3 {
		_, err = f.WriteString("isbn,title\n")
		require.NoError(t, err)
		time.Sleep(30 * time.Millisecond)
	}
	require.NoError(t, f.Close())

	event := nextEvent(t, w)
	assert.Equal(t, EventAdded, event.Type)
	assert.Equal(t, int64(33), event.Size, "only the finished file is reported")

	select {
	case extra := <-w.Events():
		t.Fatalf("unexpected second event: %+v", extra)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestWatcher_FileDeletion(t *testing.T) {
	w, dir := startWatcher(t, Options{SettleDelay: 50 * time.Millisecond})

	testFile := filepath.Join(dir, "books.csv")
	require.NoError(t, os.WriteFile(testFile, []byte("x"), 0o644))
	require.Equal(t, EventAdded, nextEvent(t, w).Type)

	require.NoError(t, os.Remove(testFile))

	event := nextEvent(t, w)
	assert.Equal(t, EventRemoved, event.Type)
	assert.Equal(t, testFile, event.Path)
}

func TestWatcher_IgnoresHidden(t *testing.T) {
	w, dir := startWatcher(t, Options{SettleDelay: 50 * time.Millisecond})

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden.csv"), []byte("x"), 0o644))
	visible := filepath.Join(dir, "books.csv")
	require.NoError(t, os.WriteFile(visible, []byte("x"), 0o644))

	assert.Equal(t, visible, nextEvent(t, w).Path)
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "added", EventAdded.String())
	assert.Equal(t, "removed", EventRemoved.String())
	assert.Equal(t, "unknown", EventType(9).String())
}
