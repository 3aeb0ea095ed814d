// Package metrics tracks pipeline counters and exposes them over a small
// fasthttp endpoint in Prometheus exposition format.
package metrics

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics implements the pipeline's sink with atomic counters, mirrored
// into a per-instance Prometheus registry so tests can build as many as
// they like without duplicate-registration panics.
type Metrics struct {
	processed    atomic.Uint64
	failed       atomic.Uint64
	batches      atomic.Uint64
	sourceErrors atomic.Uint64
	truncations  atomic.Uint64
	reloads      atomic.Uint64
	reloadFails  atomic.Uint64
	epoch        atomic.Uint64
	evalCount    atomic.Uint64
	evalTotalNs  atomic.Int64

	start    time.Time
	reg      *prometheus.Registry
	evalHist prometheus.Histogram
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Processed      uint64        `json:"processed"`
	Failed         uint64        `json:"failed"`
	Batches        uint64        `json:"batches"`
	SourceErrors   uint64        `json:"source_errors"`
	Truncations    uint64        `json:"truncations"`
	Reloads        uint64        `json:"reloads"`
	ReloadFailures uint64        `json:"reload_failures"`
	Epoch          uint64        `json:"epoch"`
	EvalCount      uint64        `json:"eval_count"`
	EvalMean       time.Duration `json:"eval_mean_ns"`
	Uptime         time.Duration `json:"uptime_ns"`
}

// New builds a metrics set with its own Prometheus registry.
func New() *Metrics {
	m := &Metrics{
		start: time.Now(),
		reg:   prometheus.NewRegistry(),
		evalHist: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "logremap_eval_duration_seconds",
			Help:    "Per-record evaluation latency.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
	}
	m.register()
	return m
}

func (m *Metrics) register() {
	gauge := func(name, help string, fn func() float64) {
		m.reg.MustRegister(prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{Name: name, Help: help}, fn,
		))
	}

	gauge("logremap_records_processed_total", "Records transformed successfully.",
		func() float64 { return float64(m.processed.Load()) })
	gauge("logremap_records_failed_total", "Records that failed transformation.",
		func() float64 { return float64(m.failed.Load()) })
	gauge("logremap_batches_total", "Batches evaluated by the worker pool.",
		func() float64 { return float64(m.batches.Load()) })
	gauge("logremap_source_errors_total", "Source read failures.",
		func() float64 { return float64(m.sourceErrors.Load()) })
	gauge("logremap_source_truncations_total", "Detected source truncations.",
		func() float64 { return float64(m.truncations.Load()) })
	gauge("logremap_program_reloads_total", "Successful program reloads.",
		func() float64 { return float64(m.reloads.Load()) })
	gauge("logremap_compile_errors_total", "Script compiles that failed.",
		func() float64 { return float64(m.reloadFails.Load()) })
	gauge("logremap_program_epoch", "Epoch of the active program.",
		func() float64 { return float64(m.epoch.Load()) })

	// runtime health, same set the service endpoints always carried
	gauge("go_goroutines", "Number of active goroutines.",
		func() float64 { return float64(runtime.NumGoroutine()) })
	gauge("go_heap_alloc_bytes", "Current heap allocation in bytes.",
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.HeapAlloc)
		})
	gauge("go_gc_cycles_total", "Total number of GC cycles.",
		func() float64 {
			var stats runtime.MemStats
			runtime.ReadMemStats(&stats)
			return float64(stats.NumGC)
		})

	m.reg.MustRegister(m.evalHist)
}

func (m *Metrics) IncProcessed()      { m.processed.Add(1) }
func (m *Metrics) IncFailed()         { m.failed.Add(1) }
func (m *Metrics) IncBatches()        { m.batches.Add(1) }
func (m *Metrics) IncSourceErrors()   { m.sourceErrors.Add(1) }
func (m *Metrics) IncTruncations()    { m.truncations.Add(1) }
func (m *Metrics) IncReloads()        { m.reloads.Add(1) }
func (m *Metrics) IncReloadFailures() { m.reloadFails.Add(1) }
func (m *Metrics) SetEpoch(e uint64)  { m.epoch.Store(e) }

func (m *Metrics) ObserveEval(d time.Duration) {
	m.evalCount.Add(1)
	m.evalTotalNs.Add(int64(d))
	m.evalHist.Observe(d.Seconds())
}

// Snapshot returns a consistent-enough copy for reports; counters advance
// independently so this is not a transaction.
func (m *Metrics) Snapshot() Snapshot {
	s := Snapshot{
		Processed:      m.processed.Load(),
		Failed:         m.failed.Load(),
		Batches:        m.batches.Load(),
		SourceErrors:   m.sourceErrors.Load(),
		Truncations:    m.truncations.Load(),
		Reloads:        m.reloads.Load(),
		ReloadFailures: m.reloadFails.Load(),
		Epoch:          m.epoch.Load(),
		EvalCount:      m.evalCount.Load(),
		Uptime:         time.Since(m.start),
	}
	if s.EvalCount > 0 {
		s.EvalMean = time.Duration(m.evalTotalNs.Load() / int64(s.EvalCount))
	}
	return s
}

// Registry exposes the Prometheus registry for the exposition server.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }
