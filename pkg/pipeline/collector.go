package pipeline

import (
	"fmt"
	"maps"
	"slices"

	"logremap/pkg/logger"
	"logremap/pkg/models"
)

// collector re-sequences completion-ordered results back into submission
// order and applies the error policy. It runs as a single goroutine so
// downstream writes need no locking.
type collector struct {
	in      <-chan models.TransformResult
	next    uint64
	pending map[uint64]models.TransformResult
	skip    bool
	out     Output
	errs    ErrorSink
	sink    Sink
	onFatal func(reason string, err error)
	done    chan struct{}
}

func newCollector(in <-chan models.TransformResult, skip bool, out Output, errs ErrorSink, sink Sink, onFatal func(string, error)) *collector {
	return &collector{
		in:      in,
		pending: make(map[uint64]models.TransformResult),
		skip:    skip,
		out:     out,
		errs:    errs,
		sink:    sink,
		onFatal: onFatal,
		done:    make(chan struct{}),
	}
}

func (c *collector) run() {
	defer close(c.done)
	for res := range c.in {
		c.pending[res.Seq] = res
		for {
			next, ok := c.pending[c.next]
			if !ok {
				break
			}
			delete(c.pending, c.next)
			c.next++
			c.emit(next)
		}
	}
	if len(c.pending) > 0 {
		// every submitted record must reach a terminal result; a gap here
		// means one was lost upstream
		logger.Error("collector_sequence_gap", "expected", c.next, "stranded", len(c.pending))
		c.onFatal("sequence_gap", fmt.Errorf("%d results stranded behind missing seq %d", len(c.pending), c.next))
		for _, seq := range slices.Sorted(maps.Keys(c.pending)) {
			c.emit(c.pending[seq])
		}
	}
}

func (c *collector) emit(res models.TransformResult) {
	c.sink.ObserveEval(res.Dur)
	if res.Err != nil {
		c.sink.IncFailed()
		if c.errs != nil {
			c.errs.RecordFailure(res)
		}
		logger.Debug("record_failed", "source", res.Raw.Source, "offset", res.Raw.Offset, "epoch", res.Epoch, "err", res.Err)
		if !c.skip {
			c.onFatal("eval_error", res.Err)
		}
		return
	}
	c.sink.IncProcessed()
	if err := c.out.WriteRecord(res.Rec); err != nil {
		logger.Error("output_write_failed", "err", err)
		c.onFatal("output_write_failed", err)
	}
}
