package pipeline

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"logremap/pkg/models"
)

type memCursors struct {
	mu sync.Mutex
	m  map[string]int64
}

func newMemCursors() *memCursors { return &memCursors{m: make(map[string]int64)} }

func (c *memCursors) SaveCursor(cur models.Cursor) {
	c.mu.Lock()
	c.m[cur.Source] = cur.Offset
	c.mu.Unlock()
}

func (c *memCursors) LoadCursors() (map[string]int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int64, len(c.m))
	for k, v := range c.m {
		out[k] = v
	}
	return out, nil
}

func newTestPipeline(t *testing.T, sink Sink) (*Pipeline, *recorder) {
	t.Helper()
	rec := &recorder{}
	p, err := New(Options{Program: identity(), BatchSize: 4, MaxWorkers: 2, SkipErrors: true, Output: rec, Errors: rec, Metrics: sink})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.Start()
	return p, rec
}

func waitResults(t *testing.T, rec *recorder, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for rec.len() < n && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if rec.len() != n {
		t.Fatalf("have %d results, want %d (%v)", rec.len(), n, rec.snapshot())
	}
}

func TestWatcherAppendAndIdempotence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	if err := os.WriteFile(path, []byte("one\ntwo\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	sink := &countSink{}
	p, rec := newTestPipeline(t, sink)
	w, err := NewWatcher(p, WatcherConfig{Input: path, Interval: time.Hour, Metrics: sink})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}

	if err := w.pollOnce(); err != nil {
		t.Fatalf("poll: %v", err)
	}
	waitResults(t, rec, 2)
	if w.Cursor(path) != 8 {
		t.Fatalf("cursor = %d, want 8", w.Cursor(path))
	}

	// no new content: zero new lines, cursor unchanged
	if err := w.pollOnce(); err != nil {
		t.Fatalf("poll: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if rec.len() != 2 || w.Cursor(path) != 8 {
		t.Fatalf("idempotence broken: results=%d cursor=%d", rec.len(), w.Cursor(path))
	}

	// append picks up only the new range
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := f.WriteString("three\n"); err != nil {
		t.Fatalf("append: %v", err)
	}
	f.Close()
	if err := w.pollOnce(); err != nil {
		t.Fatalf("poll: %v", err)
	}
	waitResults(t, rec, 3)
	got := rec.snapshot()
	if got[2] != "ok:three" {
		t.Fatalf("appended line = %q", got[2])
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestWatcherTruncationResetsCursor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rotate.log")
	if err := os.WriteFile(path, []byte("one\ntwo\nthree\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	sink := &countSink{}
	p, rec := newTestPipeline(t, sink)
	w, err := NewWatcher(p, WatcherConfig{Input: path, Interval: time.Hour, Metrics: sink})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.pollOnce(); err != nil {
		t.Fatalf("poll: %v", err)
	}
	waitResults(t, rec, 3)
	if w.Cursor(path) != 14 {
		t.Fatalf("cursor = %d, want 14", w.Cursor(path))
	}

	// replace with a shorter file: cursor resets and the whole new content
	// is treated as fresh
	if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := w.pollOnce(); err != nil {
		t.Fatalf("poll: %v", err)
	}
	waitResults(t, rec, 4)
	if got := rec.snapshot()[3]; got != "ok:x" {
		t.Fatalf("post-truncation line = %q", got)
	}
	if w.Cursor(path) != 2 {
		t.Fatalf("cursor after truncation = %d, want 2", w.Cursor(path))
	}
	if sink.truncs.Load() != 1 {
		t.Fatalf("truncation count = %d, want 1", sink.truncs.Load())
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestWatcherDirectoryMode(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.log"), []byte("alpha\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "skip.txt"), []byte("nope\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	sink := &countSink{}
	p, rec := newTestPipeline(t, sink)
	w, err := NewWatcher(p, WatcherConfig{Input: dir, Interval: time.Hour, Include: []string{"*.log"}, Metrics: sink})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.pollOnce(); err != nil {
		t.Fatalf("poll: %v", err)
	}
	waitResults(t, rec, 1)
	if got := rec.snapshot()[0]; got != "ok:alpha" {
		t.Fatalf("got %q", got)
	}

	// a new matching file is picked up on the next poll
	if err := os.WriteFile(filepath.Join(dir, "b.log"), []byte("beta\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.pollOnce(); err != nil {
		t.Fatalf("poll: %v", err)
	}
	waitResults(t, rec, 2)
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestWatcherRestoresCursors(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	if err := os.WriteFile(path, []byte("old-1\nold-2\nnew-1\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	saved := newMemCursors()
	saved.SaveCursor(models.Cursor{Source: path, Offset: 12}) // past the two old lines

	sink := &countSink{}
	p, rec := newTestPipeline(t, sink)
	w, err := NewWatcher(p, WatcherConfig{Input: path, Interval: time.Hour, Cursors: saved, Metrics: sink})
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	if err := w.pollOnce(); err != nil {
		t.Fatalf("poll: %v", err)
	}
	waitResults(t, rec, 1)
	if got := rec.snapshot()[0]; got != "ok:new-1" {
		t.Fatalf("got %q, want only content past the restored cursor", got)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
