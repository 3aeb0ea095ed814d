package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Script    string          `yaml:"script"`
	Input     string          `yaml:"input"`
	Output    string          `yaml:"output"`
	Format    string          `yaml:"format"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Watch     WatchConfig     `yaml:"watch"`
	Reload    ReloadConfig    `yaml:"reload"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Report    ReportConfig    `yaml:"report"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Sensor    SensorConfig    `yaml:"sensor"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// PipelineConfig controls worker concurrency, batching and error policy.
type PipelineConfig struct {
	BatchSize  int `yaml:"batch_size"`
	MaxWorkers int `yaml:"max_workers"`
	// QueueDepth bounds the number of outstanding batches; assembly blocks
	// when the pool is this far behind (backpressure).
	QueueDepth   int       `yaml:"queue_depth"`
	SkipErrors   *bool     `yaml:"skip_errors"`
	MaxLineBytes SizeBytes `yaml:"max_line_bytes"`
}

// SkipErrorsEnabled resolves the skip_errors tri-state; unset means true.
func (p PipelineConfig) SkipErrorsEnabled() bool {
	if p.SkipErrors == nil {
		return true
	}
	return *p.SkipErrors
}

// RateLimitConfig throttles intake. Zero records_per_sec disables it.
type RateLimitConfig struct {
	RecordsPerSec float64 `yaml:"records_per_sec"`
	Burst         int     `yaml:"burst"`
}

// WatchConfig holds live-source polling settings.
type WatchConfig struct {
	Enabled  bool     `yaml:"enabled"`
	Interval Duration `yaml:"interval"`
	Include  []string `yaml:"include"`
	Exclude  []string `yaml:"exclude"`
	// DataDir enables on-disk cursor checkpoints when set.
	DataDir string `yaml:"data_dir"`
}

// ReloadConfig holds hot-reload settings for the mapping script.
type ReloadConfig struct {
	Enabled  *bool    `yaml:"enabled"`
	Interval Duration `yaml:"interval"`
}

// ReloadEnabled resolves the enabled tri-state; unset means true.
func (r ReloadConfig) ReloadEnabled() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}

// MetricsConfig controls the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// ReportConfig controls the cron-scheduled processing summary.
type ReportConfig struct {
	Enabled bool   `yaml:"enabled"`
	Cron    string `yaml:"cron"`
}

// TelemetryConfig controls trace sampling and the slow-batch threshold.
type TelemetryConfig struct {
	Enabled       bool      `yaml:"enabled"`
	Dir           string    `yaml:"dir"`
	SampleRate    float64   `yaml:"sample_rate"`
	SlowThreshold Duration  `yaml:"slow_threshold"`
	FlushInterval Duration  `yaml:"flush_interval"`
	FileMaxSize   SizeBytes `yaml:"file_max_size"`
}

// SensorConfig holds resource watchdog tuning knobs.
type SensorConfig struct {
	Enabled        bool     `yaml:"enabled"`
	PollInterval   Duration `yaml:"poll_interval"`
	DiskHighPct    int      `yaml:"disk_high_pct"`
	DiskLowPct     int      `yaml:"disk_low_pct"`
	MemHighPct     int      `yaml:"mem_high_pct"`
	RecoveryWindow Duration `yaml:"recovery_window"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly strings like "64MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", node.Value)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

func (s SizeBytes) MarshalYAML() (interface{}, error) { return int64(s), nil }

// Duration is a wrapper around time.Duration that supports YAML parsing from strings like "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) MarshalYAML() (interface{}, error) { return time.Duration(d).String(), nil }
