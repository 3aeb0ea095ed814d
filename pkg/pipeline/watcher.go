package pipeline

import (
	"context"
	"os"
	"sync"
	"time"

	"logremap/pkg/logger"
	"logremap/pkg/models"
	"logremap/pkg/source"
)

// WatcherConfig configures a Watcher. Input may be a single file or a
// directory; directory mode filters entries by the include/exclude
// patterns.
type WatcherConfig struct {
	Input        string
	Interval     time.Duration
	Include      []string
	Exclude      []string
	MaxLineBytes int64
	Cursors      CursorSink // optional
	Metrics      Sink       // optional
}

// Watcher polls sources for appended content and feeds new lines into the
// pipeline. Each source keeps its own cursor; one source failing does not
// stop the others.
type Watcher struct {
	pipe     *Pipeline
	cfg      WatcherConfig
	dirMode  bool
	cursors  map[string]int64
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWatcher builds a watcher and restores persisted cursors when a cursor
// sink is configured.
func NewWatcher(p *Pipeline, cfg WatcherConfig) (*Watcher, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NopSink{}
	}
	st, err := os.Stat(cfg.Input)
	if err != nil {
		return nil, &source.SourceError{Path: cfg.Input, Op: "stat", Err: err}
	}
	w := &Watcher{
		pipe:    p,
		cfg:     cfg,
		dirMode: st.IsDir(),
		cursors: make(map[string]int64),
		stop:    make(chan struct{}),
	}
	if cfg.Cursors != nil {
		saved, err := cfg.Cursors.LoadCursors()
		if err != nil {
			logger.Warn("cursor_restore_failed", "err", err)
		} else if len(saved) > 0 {
			w.cursors = saved
			logger.Info("cursors_restored", "sources", len(saved))
		}
	}
	return w, nil
}

// Start polls once immediately so existing content is processed, then
// keeps polling on the configured interval.
func (w *Watcher) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop()
	}()
	logger.Info("watcher_started", "input", w.cfg.Input, "interval", w.cfg.Interval, "dir_mode", w.dirMode)
}

// Stop lets the in-progress poll cycle finish, then returns. It does not
// wait for the next interval to elapse.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	w.wg.Wait()
}

func (w *Watcher) loop() {
	if err := w.pollOnce(); err != nil {
		return
	}
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			if err := w.pollOnce(); err != nil {
				return
			}
		}
	}
}

// pollOnce advances every source and flushes the partial batch so results
// are not held until the next interval. A non-nil return means the
// pipeline stopped accepting work.
func (w *Watcher) pollOnce() error {
	for _, path := range w.sources() {
		if err := w.pollSource(path); err != nil {
			return err
		}
	}
	w.pipe.Flush()
	return nil
}

func (w *Watcher) sources() []string {
	if !w.dirMode {
		return []string{w.cfg.Input}
	}
	paths, err := source.Scan(w.cfg.Input, w.cfg.Include, w.cfg.Exclude)
	if err != nil {
		w.cfg.Metrics.IncSourceErrors()
		logger.Warn("source_scan_failed", "dir", w.cfg.Input, "err", err)
		return nil
	}
	return paths
}

func (w *Watcher) pollSource(path string) error {
	h, err := source.Open(path, w.cfg.MaxLineBytes)
	if err != nil {
		w.cfg.Metrics.IncSourceErrors()
		logger.Warn("source_open_failed", "source", path, "err", err)
		return nil
	}
	size, _, err := h.Stat()
	if err != nil {
		w.cfg.Metrics.IncSourceErrors()
		logger.Warn("source_stat_failed", "source", path, "err", err)
		return nil
	}

	cur := w.cursors[path]
	if size < cur {
		// rotation or truncation: everything present counts as new
		w.cfg.Metrics.IncTruncations()
		logger.Warn("source_truncated", "source", path, "cursor", cur, "size", size)
		cur = 0
		w.advance(path, 0)
	}
	if size == cur {
		return nil
	}

	lines, newOff, err := h.ReadFrom(cur)
	if err != nil {
		w.cfg.Metrics.IncSourceErrors()
		logger.Warn("source_read_failed", "source", path, "err", err)
		return nil
	}
	for _, ln := range lines {
		if err := w.pipe.Submit(context.Background(), ln); err != nil {
			return err
		}
	}
	if newOff != cur {
		w.advance(path, newOff)
	}
	return nil
}

func (w *Watcher) advance(path string, off int64) {
	w.cursors[path] = off
	if w.cfg.Cursors != nil {
		w.cfg.Cursors.SaveCursor(models.Cursor{Source: path, Offset: off})
	}
	logger.Debug("cursor_advanced", "source", path, "offset", off)
}

// Cursor returns the in-memory cursor for a source. Only safe once the
// watcher is stopped.
func (w *Watcher) Cursor(path string) int64 {
	return w.cursors[path]
}
