package config

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/adhocore/gronx"
	"gopkg.in/yaml.v3"

	"logremap/pkg/logger"
	"logremap/pkg/output"
	"logremap/pkg/source"
)

// Defaults for pipeline, watch and reload configuration.
const (
	DefaultBatchSize    = 100
	DefaultQueueDepth   = 4
	defaultMaxLineBytes = source.DefaultMaxLineBytes

	DefaultWatchInterval  = 5 * time.Second
	DefaultReloadInterval = 5 * time.Second

	defaultMetricsAddr = ":9090"
	defaultReportCron  = "*/1 * * * *" // every minute

	// telemetry defaults
	defaultTelemetrySampleRate  = 0.001
	defaultTelemetrySlowMs      = 200
	defaultTelemetryFlushMs     = 2000
	defaultTelemetryFileMaxSize = 40 * 1024 * 1024 // 40MB

	// sensor defaults
	defaultSensorPollInterval   = 30 * time.Second
	defaultSensorDiskHighPct    = 90
	defaultSensorDiskLowPct     = 80
	defaultSensorMemHighPct     = 90
	defaultSensorRecoveryWindow = 5 * time.Minute
)

// LoadConfigFile reads and parses a config file.
func LoadConfigFile(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &cfg, nil
}

// Validate applies defaults and validates values in the config. It mutates
// the receiver to fill in missing defaults and returns an error if any
// configuration value is invalid.
func (c *Config) Validate() error {
	p := &c.Pipeline
	if p.BatchSize < 0 {
		return fmt.Errorf("pipeline.batch_size must be a positive integer, got %d", p.BatchSize)
	}
	if p.BatchSize == 0 {
		p.BatchSize = DefaultBatchSize
	}
	if p.MaxWorkers < 0 {
		return fmt.Errorf("pipeline.max_workers must be a positive integer, got %d", p.MaxWorkers)
	}
	numCPU := runtime.NumCPU()
	if p.MaxWorkers == 0 {
		p.MaxWorkers = numCPU
	}
	// cap worker count to 2x logical cores
	maxAllowed := numCPU * 2
	if p.MaxWorkers > maxAllowed {
		logger.Warn("worker_count_capped", "requested", p.MaxWorkers, "capped_to", maxAllowed)
		p.MaxWorkers = maxAllowed
	}
	if p.QueueDepth < 0 {
		return fmt.Errorf("pipeline.queue_depth must be positive, got %d", p.QueueDepth)
	}
	if p.QueueDepth == 0 {
		p.QueueDepth = DefaultQueueDepth
	}
	if p.SkipErrors == nil {
		v := true
		p.SkipErrors = &v
	}
	if p.MaxLineBytes.Int64() == 0 {
		p.MaxLineBytes = SizeBytes(defaultMaxLineBytes)
	}

	if c.RateLimit.RecordsPerSec < 0 {
		return fmt.Errorf("rate_limit.records_per_sec cannot be negative")
	}
	if c.RateLimit.RecordsPerSec > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = int(c.RateLimit.RecordsPerSec)
		if c.RateLimit.Burst < 1 {
			c.RateLimit.Burst = 1
		}
	}

	if c.Format == "" {
		if c.Output == "" {
			// Writing to stdout: pretty-print when attached to a terminal.
			c.Format = string(output.TerminalFormat(os.Stdout))
		} else {
			c.Format = string(output.FormatNDJSON)
		}
	}
	if _, err := output.ParseFormat(c.Format); err != nil {
		return err
	}

	w := &c.Watch
	if w.Interval.Duration() == 0 {
		w.Interval = Duration(DefaultWatchInterval)
	}
	if w.Interval.Duration() < 0 {
		return fmt.Errorf("watch.interval cannot be negative")
	}
	if err := source.ValidatePatterns(w.Include); err != nil {
		return fmt.Errorf("invalid watch.include pattern: %w", err)
	}
	if err := source.ValidatePatterns(w.Exclude); err != nil {
		return fmt.Errorf("invalid watch.exclude pattern: %w", err)
	}

	r := &c.Reload
	if r.Enabled == nil {
		v := true
		r.Enabled = &v
	}
	if r.Interval.Duration() == 0 {
		r.Interval = Duration(DefaultReloadInterval)
	}
	if r.Interval.Duration() < 0 {
		return fmt.Errorf("reload.interval cannot be negative")
	}

	if c.Metrics.Addr == "" {
		c.Metrics.Addr = defaultMetricsAddr
	}

	if c.Report.Cron == "" {
		c.Report.Cron = defaultReportCron
	}
	if c.Report.Enabled && !gronx.IsValid(c.Report.Cron) {
		return fmt.Errorf("invalid report.cron expression: %s", c.Report.Cron)
	}

	t := &c.Telemetry
	if t.SampleRate == 0 {
		t.SampleRate = defaultTelemetrySampleRate
	}
	if t.SlowThreshold.Duration() == 0 {
		t.SlowThreshold = Duration(defaultTelemetrySlowMs * time.Millisecond)
	}
	if t.FlushInterval.Duration() == 0 {
		t.FlushInterval = Duration(defaultTelemetryFlushMs * time.Millisecond)
	}
	if t.FileMaxSize.Int64() == 0 {
		t.FileMaxSize = SizeBytes(defaultTelemetryFileMaxSize)
	}

	s := &c.Sensor
	if s.PollInterval.Duration() == 0 {
		s.PollInterval = Duration(defaultSensorPollInterval)
	}
	if s.DiskHighPct == 0 {
		s.DiskHighPct = defaultSensorDiskHighPct
	}
	if s.DiskLowPct == 0 {
		s.DiskLowPct = defaultSensorDiskLowPct
	}
	if s.MemHighPct == 0 {
		s.MemHighPct = defaultSensorMemHighPct
	}
	if s.RecoveryWindow.Duration() == 0 {
		s.RecoveryWindow = Duration(defaultSensorRecoveryWindow)
	}

	return nil
}

// ResolveConfigPath returns the config file path, preferring flag, then env.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("LOGREMAP_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
