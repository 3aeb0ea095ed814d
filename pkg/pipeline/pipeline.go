// Package pipeline turns raw log lines into ordered transform results. It
// coordinates batching, a bounded worker pool, result re-sequencing, the
// skip-errors policy, live source watching and hot program reloads.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"logremap/pkg/engine"
	"logremap/pkg/logger"
	"logremap/pkg/models"
)

// Options configures a Pipeline. Program and Output are required; the rest
// have working defaults.
type Options struct {
	Program    engine.Program
	BatchSize  int
	MaxWorkers int
	QueueDepth int
	SkipErrors bool
	Output     Output
	Errors     ErrorSink // optional
	Metrics    Sink      // optional, defaults to NopSink
	Limiter    *rate.Limiter
}

// Pipeline is the transform orchestrator. Lines enter through Submit,
// results leave through the configured Output and ErrorSink in submission
// order. Close drains all in-flight work before returning.
type Pipeline struct {
	slot    *Slot
	asm     *assembler
	pool    *pool
	col     *collector
	limiter *rate.Limiter
	sink    Sink

	fatal     *FatalPipelineError
	fatalCh   chan struct{}
	fatalOnce sync.Once
	closeOnce sync.Once
}

// New validates options and builds a pipeline. Workers do not run until
// Start is called.
func New(opts Options) (*Pipeline, error) {
	if opts.Program == nil {
		return nil, fmt.Errorf("pipeline: program is required")
	}
	if opts.Output == nil {
		return nil, fmt.Errorf("pipeline: output is required")
	}
	if opts.BatchSize <= 0 {
		return nil, fmt.Errorf("pipeline: batch size must be positive, got %d", opts.BatchSize)
	}
	if opts.MaxWorkers <= 0 {
		return nil, fmt.Errorf("pipeline: worker count must be positive, got %d", opts.MaxWorkers)
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = 4
	}
	if opts.Metrics == nil {
		opts.Metrics = NopSink{}
	}

	p := &Pipeline{
		slot:    NewSlot(opts.Program),
		limiter: opts.Limiter,
		sink:    opts.Metrics,
		fatalCh: make(chan struct{}),
	}
	p.asm = newAssembler(opts.BatchSize, opts.QueueDepth)
	p.pool = newPool(opts.MaxWorkers, p.slot, opts.Metrics, p.asm.out, opts.QueueDepth*opts.BatchSize)
	p.col = newCollector(p.pool.out, opts.SkipErrors, opts.Output, opts.Errors, opts.Metrics, p.escalate)
	opts.Metrics.SetEpoch(p.slot.Epoch())
	return p, nil
}

// Start launches the assembler, workers and collector.
func (p *Pipeline) Start() {
	go p.asm.run()
	p.pool.start()
	go p.col.run()
	logger.Info("pipeline_started", "workers", p.pool.workers, "batch_size", p.asm.size)
}

// Slot exposes the program slot for the reload coordinator.
func (p *Pipeline) Slot() *Slot { return p.slot }

// Submit hands one line to the pipeline. It blocks while the pipeline is
// saturated (bounded queues) and returns an error once a fatal condition is
// raised or the context is cancelled.
func (p *Pipeline) Submit(ctx context.Context, raw models.RawLine) error {
	select {
	case <-p.fatalCh:
		return p.fatal
	default:
	}
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	select {
	case p.asm.in <- raw:
		return nil
	case <-p.fatalCh:
		return p.fatal
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush forces the current partial batch out so results are not held back
// between polls.
func (p *Pipeline) Flush() {
	ack := make(chan struct{})
	select {
	case p.asm.flush <- ack:
		<-ack
	case <-p.col.done:
	}
}

// Close stops intake, drains everything in flight, and returns the fatal
// error if one was raised. Safe to call more than once.
func (p *Pipeline) Close() error {
	p.closeOnce.Do(func() {
		close(p.asm.in)
	})
	<-p.col.done
	return p.Err()
}

// Fatal is closed once the pipeline escalates; Err carries the cause.
// Callers running the pipeline in the background select on it alongside
// their own shutdown signal.
func (p *Pipeline) Fatal() <-chan struct{} { return p.fatalCh }

// Err returns the fatal error once one has been raised, nil otherwise.
func (p *Pipeline) Err() error {
	select {
	case <-p.fatalCh:
		return p.fatal
	default:
		return nil
	}
}

// escalate records the first fatal condition and unblocks submitters. The
// error value is published before the channel closes, so readers that
// observe the close see the error.
func (p *Pipeline) escalate(reason string, err error) {
	p.fatalOnce.Do(func() {
		p.fatal = &FatalPipelineError{Reason: reason, Err: err}
		logger.Error("pipeline_fatal", "reason", reason, "err", err)
		close(p.fatalCh)
	})
}
