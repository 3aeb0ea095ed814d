package pipeline

import (
	"time"

	"logremap/pkg/models"
)

// Sink receives counters and timing samples from the pipeline. Counters are
// incremented from multiple goroutines; implementations must be safe for
// concurrent use.
type Sink interface {
	IncProcessed()
	IncFailed()
	IncBatches()
	IncSourceErrors()
	IncTruncations()
	IncReloads()
	IncReloadFailures()
	SetEpoch(epoch uint64)
	ObserveEval(d time.Duration)
}

// Output receives successfully transformed records in submission order.
type Output interface {
	WriteRecord(rec models.Record) error
}

// ErrorSink receives failed results. Best-effort; implementations must not
// block the pipeline indefinitely.
type ErrorSink interface {
	RecordFailure(res models.TransformResult)
}

// CursorSink persists per-source read offsets between runs. Optional; the
// watcher keeps cursors in memory and mirrors them here when present.
type CursorSink interface {
	SaveCursor(c models.Cursor)
	LoadCursors() (map[string]int64, error)
}

// NopSink discards all metrics.
type NopSink struct{}

func (NopSink) IncProcessed()               {}
func (NopSink) IncFailed()                  {}
func (NopSink) IncBatches()                 {}
func (NopSink) IncSourceErrors()            {}
func (NopSink) IncTruncations()             {}
func (NopSink) IncReloads()                 {}
func (NopSink) IncReloadFailures()          {}
func (NopSink) SetEpoch(uint64)             {}
func (NopSink) ObserveEval(time.Duration)   {}
