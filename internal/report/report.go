// Package report logs a periodic processing summary on a cron schedule.
package report

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/dustin/go-humanize"

	"logremap/pkg/config"
	"logremap/pkg/logger"
	"logremap/pkg/metrics"
)

// Reporter emits a summary of pipeline counters on every cron tick. Each
// summary carries totals plus the delta since the previous report.
type Reporter struct {
	cron string
	m    *metrics.Metrics
	ctx  context.Context

	mu     sync.Mutex
	last   metrics.Snapshot
	lastAt time.Time
}

// Start launches the report loop. The returned cancel func stops it; a
// disabled config yields a nil reporter and a no-op cancel.
func Start(ctx context.Context, cfg config.ReportConfig, m *metrics.Metrics) (*Reporter, context.CancelFunc) {
	if !cfg.Enabled {
		logger.Info("report_disabled")
		return nil, func() {}
	}

	ctx2, cancel := context.WithCancel(ctx)
	r := &Reporter{
		cron:   cfg.Cron,
		m:      m,
		ctx:    ctx2,
		last:   m.Snapshot(),
		lastAt: time.Now(),
	}
	logger.Info("report_enabled", "cron", cfg.Cron)
	go r.scheduleLoop()
	return r, cancel
}

func (r *Reporter) scheduleLoop() {
	for {
		next, err := gronx.NextTickAfter(r.cron, time.Now(), false)
		if err != nil {
			logger.Error("report_nexttick_failed", "cron", r.cron, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-r.ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			r.RunImmediate()
			select {
			case <-time.After(time.Second):
			case <-r.ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(wait):
			r.RunImmediate()
		case <-r.ctx.Done():
			return
		}
	}
}

// RunImmediate emits one summary right now. Safe on a nil reporter so
// callers can fire a final report without checking whether reporting is
// enabled.
func (r *Reporter) RunImmediate() {
	if r == nil {
		return
	}
	snap := r.m.Snapshot()
	now := time.Now()

	r.mu.Lock()
	prev := r.last
	prevAt := r.lastAt
	r.last = snap
	r.lastAt = now
	r.mu.Unlock()

	intervalProcessed := snap.Processed - prev.Processed
	intervalFailed := snap.Failed - prev.Failed
	elapsed := now.Sub(prevAt).Seconds()
	var rate float64
	if elapsed > 0 {
		rate = float64(intervalProcessed+intervalFailed) / elapsed
	}

	logger.Info("processing_report",
		"processed", humanize.Comma(int64(snap.Processed)),
		"failed", humanize.Comma(int64(snap.Failed)),
		"interval_processed", humanize.Comma(int64(intervalProcessed)),
		"interval_failed", humanize.Comma(int64(intervalFailed)),
		"rate", fmt.Sprintf("%.1f/s", rate),
		"eval_mean", snap.EvalMean.String(),
		"epoch", snap.Epoch,
		"reloads", snap.Reloads,
		"reload_failures", snap.ReloadFailures,
		"source_errors", snap.SourceErrors,
		"truncations", snap.Truncations,
		"uptime", snap.Uptime.Round(time.Second).String(),
	)
}
