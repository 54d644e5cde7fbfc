package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type changeCollector struct {
	mu    sync.Mutex
	calls [][]string
}

func (c *changeCollector) record(paths []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, paths)
}

func (c *changeCollector) waitForCall(t *testing.T, timeout time.Duration) [][]string {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		c.mu.Lock()
		if len(c.calls) > 0 {
			out := append([][]string(nil), c.calls...)
			c.mu.Unlock()
			return out
		}
		c.mu.Unlock()
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("no change callback before deadline")
	return nil
}

func TestWatcher_ReportsWrites(t *testing.T) {
	dir := t.TempDir()
	col := &changeCollector{}

	w, err := New(Options{
		Root:     dir,
		Exts:     []string{".ts"},
		Debounce: 100 * time.Millisecond,
		OnChange: col.record,
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	path := filepath.Join(dir, "app.ts")
	require.NoError(t, os.WriteFile(path, []byte("let x = 1\n"), 0644))

	calls := col.waitForCall(t, 5*time.Second)
	require.NotEmpty(t, calls)
	assert.Contains(t, calls[0], path)
}

func TestWatcher_FiltersExtensions(t *testing.T) {
	dir := t.TempDir()
	col := &changeCollector{}

	w, err := New(Options{
		Root:     dir,
		Exts:     []string{".ts"},
		Debounce: 100 * time.Millisecond,
		OnChange: col.record,
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.ts"), []byte("x"), 0644))

	calls := col.waitForCall(t, 5*time.Second)
	for _, batch := range calls {
		for _, p := range batch {
			assert.Equal(t, ".ts", filepath.Ext(p))
		}
	}
}

func TestWatcher_DebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	col := &changeCollector{}

	w, err := New(Options{
		Root:     dir,
		Exts:     []string{".ts"},
		Debounce: 200 * time.Millisecond,
		OnChange: col.record,
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	path := filepath.Join(dir, "app.ts")
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
		time.Sleep(20 * time.Millisecond)
	}

	calls := col.waitForCall(t, 5*time.Second)
	// A burst of writes to one file collapses into one batch mentioning
	// the path once.
	require.NotEmpty(t, calls)
	assert.Equal(t, []string{path}, calls[0])
}

func TestWatcher_StopIdempotent(t *testing.T) {
	w, err := New(Options{Root: t.TempDir(), Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}

func TestWatcher_StartTwice(t *testing.T) {
	w, err := New(Options{Root: t.TempDir(), Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
}
