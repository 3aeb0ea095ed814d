// Package telemetry records sampled per-operation traces as JSONL files.
// Traces are cheap when the subsystem is disabled or a trace is not
// sampled; slow traces are logged at warn even when unsampled.
package telemetry

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"logremap/pkg/config"
	"logremap/pkg/logger"
)

const (
	bufferSize = 32 * 1024
	queueCap   = 1024
)

// Step is one marked segment inside a trace.
type Step struct {
	Name       string  `json:"name"`
	DurationMS float64 `json:"duration_ms"`
}

// Trace accumulates marks between Track and Finish.
type Trace struct {
	Name    string    `json:"name"`
	Start   time.Time `json:"start"`
	Steps   []Step    `json:"steps,omitempty"`
	TotalMS float64   `json:"total_ms"`

	lastMark time.Time
	slow     time.Duration
	tel      *Telemetry
	finished bool
}

// Telemetry owns the background writer that appends traces to per-op
// JSONL files under its directory.
type Telemetry struct {
	cfg   config.TelemetryConfig
	dir   string
	denom uint64
	ctr   atomic.Uint64

	mu      sync.Mutex
	files   map[string]*os.File
	buffers map[string]*bufio.Writer

	traces   chan *Trace
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var tel *Telemetry

// Init builds the global instance. Until Init is called, Track returns
// inert traces and nothing is written.
func Init(cfg config.TelemetryConfig) error {
	t, err := New(cfg)
	if err != nil {
		return err
	}
	tel = t
	return nil
}

// Track starts a trace on the global instance.
func Track(name string) *Trace {
	return tel.Track(name)
}

// Close flushes and stops the global instance.
func Close() {
	if tel != nil {
		tel.Close()
		tel = nil
	}
}

// New creates a telemetry subsystem writing under cfg.Dir.
func New(cfg config.TelemetryConfig) (*Telemetry, error) {
	if cfg.Dir == "" {
		cfg.Dir = "telemetry"
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, err
	}
	if cfg.FlushInterval.Duration() <= 0 {
		cfg.FlushInterval = config.Duration(2 * time.Second)
	}
	if cfg.FileMaxSize.Int64() <= 0 {
		cfg.FileMaxSize = config.SizeBytes(40 << 20)
	}
	t := &Telemetry{
		cfg:     cfg,
		dir:     cfg.Dir,
		denom:   sampleDenom(cfg.SampleRate),
		files:   make(map[string]*os.File),
		buffers: make(map[string]*bufio.Writer),
		traces:  make(chan *Trace, queueCap),
		stopCh:  make(chan struct{}),
	}
	t.wg.Add(1)
	go t.writerLoop()
	return t, nil
}

// sampleDenom converts a 0..1 rate into 1-in-N sampling. Zero disables
// trace writing entirely.
func sampleDenom(rate float64) uint64 {
	if rate <= 0 {
		return 0
	}
	if rate >= 1 {
		return 1
	}
	return uint64(1 / rate)
}

func (t *Telemetry) sampled() bool {
	switch t.denom {
	case 0:
		return false
	case 1:
		return true
	}
	return t.ctr.Add(1)%t.denom == 0
}

// Track starts a trace. Safe on a nil receiver; the returned trace still
// measures time so slow warnings keep working, but nothing is written.
func (t *Telemetry) Track(name string) *Trace {
	now := time.Now()
	tr := &Trace{Name: name, Start: now, lastMark: now}
	if t == nil {
		return tr
	}
	tr.slow = t.cfg.SlowThreshold.Duration()
	if t.sampled() {
		tr.tel = t
	}
	return tr
}

// Mark records the elapsed duration since the previous mark.
func (tr *Trace) Mark(label string) {
	now := time.Now()
	tr.Steps = append(tr.Steps, Step{Name: label, DurationMS: now.Sub(tr.lastMark).Seconds() * 1000})
	tr.lastMark = now
}

// Finish finalizes the trace and enqueues it for background writing.
// Safe to call more than once or via defer.
func (tr *Trace) Finish() {
	if tr.finished {
		return
	}
	tr.finished = true
	tr.TotalMS = time.Since(tr.Start).Seconds() * 1000

	var sum float64
	for _, s := range tr.Steps {
		sum += s.DurationMS
	}
	if rem := tr.TotalMS - sum; rem > 0.001 {
		tr.Steps = append(tr.Steps, Step{Name: "unmarked", DurationMS: rem})
	}

	if tr.slow > 0 && tr.TotalMS > tr.slow.Seconds()*1000 {
		logger.Warn("slow_trace", "name", tr.Name, "total_ms", tr.TotalMS, "threshold", tr.slow.String())
	}
	if tr.tel == nil {
		return
	}
	// Drop rather than block when the writer is behind.
	select {
	case tr.tel.traces <- tr:
	default:
	}
	tr.tel = nil
}

func (t *Telemetry) writerLoop() {
	defer t.wg.Done()
	ticker := time.NewTicker(t.cfg.FlushInterval.Duration())
	defer ticker.Stop()

	for {
		select {
		case tr := <-t.traces:
			t.writeTrace(tr)
		case <-ticker.C:
			t.flushAndRotate()
		case <-t.stopCh:
			t.drain()
			t.mu.Lock()
			for _, b := range t.buffers {
				b.Flush()
			}
			for _, f := range t.files {
				f.Sync()
				f.Close()
			}
			t.mu.Unlock()
			return
		}
	}
}

// drain writes any traces still queued at shutdown.
func (t *Telemetry) drain() {
	for {
		select {
		case tr := <-t.traces:
			t.writeTrace(tr)
		default:
			return
		}
	}
}

func (t *Telemetry) writeTrace(tr *Trace) {
	if tr == nil {
		return
	}
	data, err := json.Marshal(tr)
	if err != nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	b := t.bufferFor(tr.Name)
	if b == nil {
		return
	}
	b.Write(data)
	b.WriteByte('\n')
}

// bufferFor returns the buffered writer for op, opening the backing file
// on first use. Caller holds t.mu.
func (t *Telemetry) bufferFor(op string) *bufio.Writer {
	if b, ok := t.buffers[op]; ok {
		return b
	}
	path := filepath.Join(t.dir, fmt.Sprintf("%s.jsonl", op))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger.Warn("telemetry_open_failed", "path", path, "error", err)
		return nil
	}
	b := bufio.NewWriterSize(f, bufferSize)
	t.files[op] = f
	t.buffers[op] = b
	return b
}

// flushAndRotate flushes all buffers and truncates any file that grew
// past the configured cap.
func (t *Telemetry) flushAndRotate() {
	maxSize := t.cfg.FileMaxSize.Int64()
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, b := range t.buffers {
		b.Flush()
		f := t.files[name]
		fi, err := f.Stat()
		if err != nil || fi.Size() <= maxSize {
			continue
		}
		f.Close()
		os.Remove(f.Name())
		newF, err := os.OpenFile(f.Name(), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
		if err != nil {
			logger.Warn("telemetry_rotate_failed", "path", f.Name(), "error", err)
			delete(t.files, name)
			delete(t.buffers, name)
			continue
		}
		t.files[name] = newF
		t.buffers[name] = bufio.NewWriterSize(newF, bufferSize)
		logger.Warn("telemetry_file_truncated", "path", newF.Name(), "max_bytes", maxSize)
	}
}

// Close stops the background writer after flushing remaining traces.
func (t *Telemetry) Close() {
	t.stopOnce.Do(func() {
		close(t.stopCh)
		t.wg.Wait()
	})
}
