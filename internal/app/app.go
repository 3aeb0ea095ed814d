// Package app assembles the pipeline and its collaborators into the two
// runnable modes behind the CLI: one-shot transform and continuous watch.
package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/time/rate"

	"logremap/internal/report"
	"logremap/pkg/checkpoint"
	"logremap/pkg/config"
	"logremap/pkg/config/banner"
	"logremap/pkg/logger"
	"logremap/pkg/metrics"
	"logremap/pkg/models"
	"logremap/pkg/output"
	"logremap/pkg/pipeline"
	"logremap/pkg/remap"
	"logremap/pkg/sensor"
	"logremap/pkg/source"
	"logremap/pkg/telemetry"
)

// App owns every component of a run: the compiled program, the pipeline,
// the output writer and the optional watch-mode collaborators.
type App struct {
	eff     config.EffectiveConfigResult
	version string

	eng      *remap.Engine
	m        *metrics.Metrics
	pipe     *pipeline.Pipeline
	out      *output.StreamWriter
	outPath  string // empty means stdout
	failures *failureLog
	reloader *pipeline.Reloader

	watcher  *pipeline.Watcher
	msrv     *metrics.Server
	reporter *report.Reporter
	repStop  context.CancelFunc
	hwSensor *sensor.Sensor
	cursors  *checkpoint.Store

	flushStop chan struct{}
	flushWG   sync.WaitGroup

	start time.Time
}

// streamOutput adapts the stream writer to the pipeline's output sink.
type streamOutput struct{ sw *output.StreamWriter }

func (s streamOutput) WriteRecord(rec models.Record) error { return s.sw.Write(rec) }

// New compiles the script, opens the output destination and builds the
// pipeline. It starts nothing; Run picks the mode and starts components.
// The config must already be validated.
func New(eff config.EffectiveConfigResult, version string) (*App, error) {
	cfg := eff.Config

	src, err := os.ReadFile(cfg.Script)
	if err != nil {
		return nil, fmt.Errorf("read script %s: %w", cfg.Script, err)
	}
	eng := remap.New()
	prog, err := eng.Compile(string(src))
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", cfg.Script, err)
	}

	format, err := output.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	var sw *output.StreamWriter
	outPath := ""
	if cfg.Output == "" {
		sw = output.NewStreamWriter(os.Stdout, format)
	} else {
		outPath = output.ResolvePath(cfg.Output, format)
		sw, err = output.Create(outPath, format)
		if err != nil {
			return nil, err
		}
	}

	var failures *failureLog
	var errSink pipeline.ErrorSink
	if outPath != "" {
		failures = newFailureLog(outPath + ".failures")
		errSink = failures
	}

	var limiter *rate.Limiter
	if cfg.RateLimit.RecordsPerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit.RecordsPerSec), cfg.RateLimit.Burst)
	}

	m := metrics.New()
	pipe, err := pipeline.New(pipeline.Options{
		Program:    prog,
		BatchSize:  cfg.Pipeline.BatchSize,
		MaxWorkers: cfg.Pipeline.MaxWorkers,
		QueueDepth: cfg.Pipeline.QueueDepth,
		SkipErrors: cfg.Pipeline.SkipErrorsEnabled(),
		Output:     streamOutput{sw},
		Errors:     errSink,
		Metrics:    m,
		Limiter:    limiter,
	})
	if err != nil {
		sw.Close()
		return nil, err
	}

	if cfg.Telemetry.Enabled {
		if err := telemetry.Init(cfg.Telemetry); err != nil {
			return nil, fmt.Errorf("init telemetry: %w", err)
		}
	}

	a := &App{
		eff:      eff,
		version:  version,
		eng:      eng,
		m:        m,
		pipe:     pipe,
		out:      sw,
		outPath:  outPath,
		failures: failures,
		start:    time.Now(),
	}
	a.reloader = pipeline.NewReloader(eng, pipe.Slot(), cfg.Script, cfg.Reload.Interval.Duration(), m, string(src))
	return a, nil
}

// ForceReload asks the reloader to recompile the script now. Wired to
// SIGHUP; a no-op when hot reload is not running.
func (a *App) ForceReload() {
	if a.reloader != nil {
		a.reloader.ForceReload()
	}
}

// Run dispatches to watch or transform mode based on the config.
func (a *App) Run(ctx context.Context) error {
	if a.eff.Config.Watch.Enabled {
		return a.RunWatch(ctx)
	}
	return a.RunTransform(ctx)
}

// RunTransform reads every source to EOF once, drains the pipeline and
// finalizes the output. Fatal errors surface as the return value.
func (a *App) RunTransform(ctx context.Context) error {
	cfg := a.eff.Config
	a.pipe.Start()

	paths, dirMode, err := a.listSources()
	if err != nil {
		a.pipe.Close()
		a.closeOutputs()
		return err
	}

	var fatal error
	for _, path := range paths {
		err := a.submitFile(ctx, path)
		if err == nil {
			continue
		}
		var se *source.SourceError
		if errors.As(err, &se) && dirMode {
			// one unreadable source never sinks a directory run
			a.m.IncSourceErrors()
			logger.Warn("source_read_failed", "source", path, "err", err)
			continue
		}
		fatal = err
		break
	}

	closeErr := a.pipe.Close()
	writeErr := a.closeOutputs()
	telemetry.Close()

	snap := a.m.Snapshot()
	logger.Info("transform_complete",
		"sources", len(paths),
		"processed", humanize.Comma(int64(snap.Processed)),
		"failed", humanize.Comma(int64(snap.Failed)),
		"format", cfg.Format,
		"duration", time.Since(a.start).Round(time.Millisecond).String(),
	)

	switch {
	case closeErr != nil:
		return closeErr
	case fatal != nil:
		return fatal
	default:
		return writeErr
	}
}

// RunWatch starts the watcher, the hot reloader and the optional
// collaborators, then blocks until the context is cancelled or the
// pipeline raises a fatal error.
func (a *App) RunWatch(ctx context.Context) error {
	cfg := a.eff.Config

	if a.outPath != "" {
		banner.PrintWithEff(a.eff, a.version)
	}

	if cfg.Watch.DataDir != "" {
		store, err := checkpoint.Open(cfg.Watch.DataDir)
		if err != nil {
			return err
		}
		a.cursors = store
	}

	a.pipe.Start()

	var cursorSink pipeline.CursorSink
	if a.cursors != nil {
		cursorSink = a.cursors
	}
	w, err := pipeline.NewWatcher(a.pipe, pipeline.WatcherConfig{
		Input:        cfg.Input,
		Interval:     cfg.Watch.Interval.Duration(),
		Include:      cfg.Watch.Include,
		Exclude:      cfg.Watch.Exclude,
		MaxLineBytes: cfg.Pipeline.MaxLineBytes.Int64(),
		Cursors:      cursorSink,
		Metrics:      a.m,
	})
	if err != nil {
		return a.shutdown(err)
	}
	a.watcher = w
	w.Start()

	if cfg.Reload.ReloadEnabled() {
		a.reloader.Start()
	}

	// push buffered output to disk between polls so live consumers see
	// results without waiting for shutdown
	a.flushStop = make(chan struct{})
	a.flushWG.Add(1)
	go func() {
		defer a.flushWG.Done()
		ticker := time.NewTicker(cfg.Watch.Interval.Duration())
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := a.out.Flush(); err != nil {
					logger.Warn("output_flush_failed", "err", err)
				}
			case <-a.flushStop:
				return
			}
		}
	}()

	var msrvErr <-chan error
	if cfg.Metrics.Enabled {
		a.msrv = metrics.NewServer(a.m, cfg.Metrics.Addr)
		msrvErr = a.msrv.Start()
	}

	a.reporter, a.repStop = report.Start(ctx, cfg.Report, a.m)

	if cfg.Sensor.Enabled {
		path := cfg.Watch.DataDir
		if path == "" && a.outPath != "" {
			path = filepath.Dir(a.outPath)
		}
		a.hwSensor = sensor.New(cfg.Sensor, path)
		a.hwSensor.Start()
	}

	select {
	case <-ctx.Done():
		return a.shutdown(nil)
	case <-a.pipe.Fatal():
		return a.shutdown(nil) // pipe.Close reports the fatal error
	case err := <-msrvErr:
		return a.shutdown(err)
	}
}

// listSources resolves the input into concrete file paths.
func (a *App) listSources() ([]string, bool, error) {
	input := a.eff.Config.Input
	st, err := os.Stat(input)
	if err != nil {
		return nil, false, &source.SourceError{Path: input, Op: "stat", Err: err}
	}
	if !st.IsDir() {
		return []string{input}, false, nil
	}
	paths, err := source.Scan(input, a.eff.Config.Watch.Include, a.eff.Config.Watch.Exclude)
	if err != nil {
		return nil, true, err
	}
	return paths, true, nil
}

// submitFile feeds one file into the pipeline in full, including a final
// unterminated line.
func (a *App) submitFile(ctx context.Context, path string) error {
	h, err := source.Open(path, a.eff.Config.Pipeline.MaxLineBytes.Int64())
	if err != nil {
		return err
	}
	lines, _, err := h.ReadToEOF(0)
	if err != nil {
		return err
	}
	for _, ln := range lines {
		if err := a.pipe.Submit(ctx, ln); err != nil {
			return err
		}
	}
	logger.Info("source_drained", "source", path, "lines", len(lines))
	return nil
}

// shutdown tears everything down in dependency order: stop intake, drain
// the pipeline, then stop the observers and close the files. The first
// error wins; later ones are logged.
func (a *App) shutdown(cause error) error {
	logger.Info("shutdown_requested")

	if a.watcher != nil {
		logger.Info("shutdown_stopping_watcher")
		a.watcher.Stop()
	}
	if a.reloader != nil {
		a.reloader.Stop()
	}

	if a.flushStop != nil {
		close(a.flushStop)
		a.flushWG.Wait()
	}

	logger.Info("shutdown_draining_pipeline")
	if err := a.pipe.Close(); err != nil && cause == nil {
		cause = err
	}

	a.reporter.RunImmediate()
	if a.repStop != nil {
		a.repStop()
	}

	if a.msrv != nil {
		logger.Info("shutdown_stopping_metrics_server")
		if err := a.msrv.Shutdown(); err != nil {
			logger.Error("metrics_shutdown_failed", "err", err)
		}
	}
	if a.hwSensor != nil {
		a.hwSensor.Stop()
	}

	if err := a.closeOutputs(); err != nil && cause == nil {
		cause = err
	}
	if a.cursors != nil {
		logger.Info("shutdown_closing_checkpoints")
		if err := a.cursors.Close(); err != nil {
			logger.Error("checkpoint_close_failed", "err", err)
		}
	}
	telemetry.Close()

	logger.Info("shutdown_complete", "uptime", time.Since(a.start).Round(time.Second).String())
	return cause
}

// closeOutputs finalizes output framing and the failure log.
func (a *App) closeOutputs() error {
	err := a.out.Close()
	if a.failures != nil {
		if ferr := a.failures.Close(); ferr != nil && err == nil {
			err = ferr
		}
		if n := a.failures.Count(); n > 0 {
			logger.Warn("failures_recorded", "count", n, "path", a.failures.Path())
		}
	}
	return err
}
