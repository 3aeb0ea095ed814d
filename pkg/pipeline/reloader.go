package pipeline

import (
	"errors"
	"hash/fnv"
	"os"
	"sync"
	"time"

	"logremap/pkg/engine"
	"logremap/pkg/logger"
	"logremap/pkg/telemetry"
)

// Reloader watches the script file and swaps the program slot when the
// content changes and compiles. A failed compile keeps the previous
// program active; a single bad edit never halts processing.
type Reloader struct {
	path     string
	interval time.Duration
	eng      engine.Engine
	slot     *Slot
	sink     Sink

	force    chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	lastSize int64
	lastMod  time.Time
	lastHash uint64
}

// NewReloader builds a reloader primed with the currently loaded source so
// an unchanged file is not recompiled on the first tick.
func NewReloader(eng engine.Engine, slot *Slot, path string, interval time.Duration, sink Sink, currentSource string) *Reloader {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if sink == nil {
		sink = NopSink{}
	}
	r := &Reloader{
		path:     path,
		interval: interval,
		eng:      eng,
		slot:     slot,
		sink:     sink,
		force:    make(chan struct{}, 1),
		stop:     make(chan struct{}),
		lastHash: hashSource([]byte(currentSource)),
	}
	if st, err := os.Stat(path); err == nil {
		r.lastSize = st.Size()
		r.lastMod = st.ModTime()
	}
	return r
}

// Start launches the reload loop.
func (r *Reloader) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.loop()
	}()
	logger.Info("reloader_started", "script", r.path, "interval", r.interval)
}

// Stop halts the loop and waits for it to exit.
func (r *Reloader) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.wg.Wait()
}

// ForceReload schedules an immediate recompile regardless of whether the
// file looks changed. Used by the SIGHUP handler.
func (r *Reloader) ForceReload() {
	select {
	case r.force <- struct{}{}:
	default:
	}
}

func (r *Reloader) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.reloadIfChanged(false)
		case <-r.force:
			r.reloadIfChanged(true)
		}
	}
}

// reloadIfChanged runs the shared compile-and-swap routine. Interval ticks
// only recompile when the stat signature or content hash moved; forced
// reloads always recompile.
func (r *Reloader) reloadIfChanged(forced bool) {
	st, err := os.Stat(r.path)
	if err != nil {
		logger.Warn("script_stat_failed", "script", r.path, "err", err)
		return
	}
	if !forced && st.Size() == r.lastSize && st.ModTime().Equal(r.lastMod) {
		return
	}
	b, err := os.ReadFile(r.path)
	if err != nil {
		logger.Warn("script_read_failed", "script", r.path, "err", err)
		return
	}
	r.lastSize = st.Size()
	r.lastMod = st.ModTime()

	h := hashSource(b)
	if !forced && h == r.lastHash {
		return
	}

	tr := telemetry.Track("reload")
	defer tr.Finish()
	prog, err := r.eng.Compile(string(b))
	tr.Mark("compile")
	if err != nil {
		r.sink.IncReloadFailures()
		var ce *engine.CompileError
		if errors.As(err, &ce) {
			logger.Error("script_compile_failed", "script", r.path, "line", ce.Line, "err", ce.Message)
		} else {
			logger.Error("script_compile_failed", "script", r.path, "err", err)
		}
		return
	}
	r.lastHash = h
	epoch := r.slot.Swap(prog)
	r.sink.IncReloads()
	r.sink.SetEpoch(epoch)
	logger.Info("program_reloaded", "script", r.path, "epoch", epoch)
}

func hashSource(b []byte) uint64 {
	h := fnv.New64a()
	_, _ = h.Write(b)
	return h.Sum64()
}
