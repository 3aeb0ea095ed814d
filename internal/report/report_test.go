package report

import (
	"context"
	"testing"
	"time"

	"logremap/pkg/config"
	"logremap/pkg/metrics"
)

func TestRunImmediateAdvancesBaseline(t *testing.T) {
	m := metrics.New()
	r := &Reporter{
		cron:   "*/1 * * * *",
		m:      m,
		ctx:    context.Background(),
		last:   m.Snapshot(),
		lastAt: time.Now(),
	}

	m.IncProcessed()
	m.IncProcessed()
	m.IncProcessed()
	m.IncFailed()

	r.RunImmediate()
	if r.last.Processed != 3 || r.last.Failed != 1 {
		t.Fatalf("baseline not advanced: %+v", r.last)
	}

	// A second run with no new work reports a zero delta off the new
	// baseline rather than double counting.
	r.RunImmediate()
	if r.last.Processed != 3 {
		t.Fatalf("baseline moved without new work: %+v", r.last)
	}
}

func TestStartDisabled(t *testing.T) {
	r, cancel := Start(context.Background(), config.ReportConfig{Enabled: false}, metrics.New())
	defer cancel()
	if r != nil {
		t.Fatalf("disabled report returned a reporter")
	}
	r.RunImmediate() // nil receiver must be safe
}

func TestStartEnabled(t *testing.T) {
	r, cancel := Start(context.Background(), config.ReportConfig{Enabled: true, Cron: "*/1 * * * *"}, metrics.New())
	if r == nil {
		t.Fatalf("enabled report returned nil reporter")
	}
	cancel()
}
