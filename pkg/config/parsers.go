package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// holds command-line values relevant to config resolution and which were set
type Flags struct {
	Script string
	Input  string
	Output string
	Format string
	Config string
	Set    map[string]bool
}

// holds the result of LoadEffectiveConfig
type EffectiveConfigResult struct {
	Config *Config
	Source string // "flags", "config", or "env"
}

// ParseConfigFile loads the config file referenced by flags, returning the
// config, whether the file existed, and any parse error.
func ParseConfigFile(flags Flags) (*Config, bool, error) {
	cfgPath := ResolveConfigPath(flags.Config, flags.Set["config"])
	if cfgPath == "" {
		return &Config{}, false, nil
	}
	cfg, err := LoadConfigFile(cfgPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, false, nil
		}
		return nil, false, err
	}
	return cfg, true, nil
}

// ParseConfigEnvs loads environment variables into a new Config and reports
// whether any were set; the caller's config is unchanged.
func ParseConfigEnvs() (*Config, bool) {
	envs := map[string]string{
		"SCRIPT": os.Getenv("LOGREMAP_SCRIPT"),
		"INPUT":  os.Getenv("LOGREMAP_INPUT"),
		"OUTPUT": os.Getenv("LOGREMAP_OUTPUT"),
		"FORMAT": os.Getenv("LOGREMAP_FORMAT"),

		"BATCH_SIZE":     os.Getenv("LOGREMAP_BATCH_SIZE"),
		"MAX_WORKERS":    os.Getenv("LOGREMAP_MAX_WORKERS"),
		"QUEUE_DEPTH":    os.Getenv("LOGREMAP_QUEUE_DEPTH"),
		"SKIP_ERRORS":    os.Getenv("LOGREMAP_SKIP_ERRORS"),
		"MAX_LINE_BYTES": os.Getenv("LOGREMAP_MAX_LINE_BYTES"),

		"RATE_RPS":   os.Getenv("LOGREMAP_RATE_RPS"),
		"RATE_BURST": os.Getenv("LOGREMAP_RATE_BURST"),

		"WATCH_ENABLED":  os.Getenv("LOGREMAP_WATCH_ENABLED"),
		"WATCH_INTERVAL": os.Getenv("LOGREMAP_WATCH_INTERVAL"),
		"WATCH_INCLUDE":  os.Getenv("LOGREMAP_WATCH_INCLUDE"),
		"WATCH_EXCLUDE":  os.Getenv("LOGREMAP_WATCH_EXCLUDE"),
		"WATCH_DATA_DIR": os.Getenv("LOGREMAP_WATCH_DATA_DIR"),

		"RELOAD_ENABLED":  os.Getenv("LOGREMAP_RELOAD_ENABLED"),
		"RELOAD_INTERVAL": os.Getenv("LOGREMAP_RELOAD_INTERVAL"),

		"METRICS_ENABLED": os.Getenv("LOGREMAP_METRICS_ENABLED"),
		"METRICS_ADDR":    os.Getenv("LOGREMAP_METRICS_ADDR"),

		"REPORT_ENABLED": os.Getenv("LOGREMAP_REPORT_ENABLED"),
		"REPORT_CRON":    os.Getenv("LOGREMAP_REPORT_CRON"),

		"TELEMETRY_ENABLED":        os.Getenv("LOGREMAP_TELEMETRY_ENABLED"),
		"TELEMETRY_DIR":            os.Getenv("LOGREMAP_TELEMETRY_DIR"),
		"TELEMETRY_SAMPLE_RATE":    os.Getenv("LOGREMAP_TELEMETRY_SAMPLE_RATE"),
		"TELEMETRY_SLOW_THRESHOLD": os.Getenv("LOGREMAP_TELEMETRY_SLOW_THRESHOLD"),

		"SENSOR_ENABLED":         os.Getenv("LOGREMAP_SENSOR_ENABLED"),
		"SENSOR_POLL_INTERVAL":   os.Getenv("LOGREMAP_SENSOR_POLL_INTERVAL"),
		"SENSOR_DISK_HIGH_PCT":   os.Getenv("LOGREMAP_SENSOR_DISK_HIGH_PCT"),
		"SENSOR_DISK_LOW_PCT":    os.Getenv("LOGREMAP_SENSOR_DISK_LOW_PCT"),
		"SENSOR_MEM_HIGH_PCT":    os.Getenv("LOGREMAP_SENSOR_MEM_HIGH_PCT"),
		"SENSOR_RECOVERY_WINDOW": os.Getenv("LOGREMAP_SENSOR_RECOVERY_WINDOW"),

		"LOG_LEVEL": os.Getenv("LOGREMAP_LOG_LEVEL"),
	}

	envUsed := false
	for _, v := range envs {
		if v != "" {
			envUsed = true
			break
		}
	}
	envCfg := &Config{}

	// parse helpers
	parseList := func(v string) []string {
		if v == "" {
			return nil
		}
		parts := []string{}
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				parts = append(parts, s)
			}
		}
		return parts
	}

	parseBool := func(v string) bool {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes":
			return true
		default:
			return false
		}
	}

	parseInt := func(v string, def int) int {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
		return def
	}

	parseSizeBytes := func(v string) SizeBytes {
		if strings.TrimSpace(v) == "" {
			return SizeBytes(0)
		}
		if u, err := humanize.ParseBytes(v); err == nil {
			return SizeBytes(u)
		}
		if i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return SizeBytes(i)
		}
		return SizeBytes(0)
	}

	parseDuration := func(v string) Duration {
		if strings.TrimSpace(v) == "" {
			return Duration(0)
		}
		if td, err := time.ParseDuration(v); err == nil {
			return Duration(td)
		}
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return Duration(time.Duration(f * float64(time.Second)))
		}
		return Duration(0)
	}

	if v := envs["SCRIPT"]; v != "" {
		envCfg.Script = v
	}
	if v := envs["INPUT"]; v != "" {
		envCfg.Input = v
	}
	if v := envs["OUTPUT"]; v != "" {
		envCfg.Output = v
	}
	if v := envs["FORMAT"]; v != "" {
		envCfg.Format = strings.ToLower(strings.TrimSpace(v))
	}

	if v := envs["BATCH_SIZE"]; v != "" {
		envCfg.Pipeline.BatchSize = parseInt(v, 0)
	}
	if v := envs["MAX_WORKERS"]; v != "" {
		envCfg.Pipeline.MaxWorkers = parseInt(v, 0)
	}
	if v := envs["QUEUE_DEPTH"]; v != "" {
		envCfg.Pipeline.QueueDepth = parseInt(v, 0)
	}
	if v := envs["SKIP_ERRORS"]; v != "" {
		b := parseBool(v)
		envCfg.Pipeline.SkipErrors = &b
	}
	if v := envs["MAX_LINE_BYTES"]; v != "" {
		envCfg.Pipeline.MaxLineBytes = parseSizeBytes(v)
	}

	if v := envs["RATE_RPS"]; v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envCfg.RateLimit.RecordsPerSec = f
		}
	}
	if v := envs["RATE_BURST"]; v != "" {
		envCfg.RateLimit.Burst = parseInt(v, 0)
	}

	if v := envs["WATCH_ENABLED"]; v != "" {
		envCfg.Watch.Enabled = parseBool(v)
	}
	if v := envs["WATCH_INTERVAL"]; v != "" {
		envCfg.Watch.Interval = parseDuration(v)
	}
	if v := envs["WATCH_INCLUDE"]; v != "" {
		envCfg.Watch.Include = parseList(v)
	}
	if v := envs["WATCH_EXCLUDE"]; v != "" {
		envCfg.Watch.Exclude = parseList(v)
	}
	if v := envs["WATCH_DATA_DIR"]; v != "" {
		envCfg.Watch.DataDir = v
	}

	if v := envs["RELOAD_ENABLED"]; v != "" {
		b := parseBool(v)
		envCfg.Reload.Enabled = &b
	}
	if v := envs["RELOAD_INTERVAL"]; v != "" {
		envCfg.Reload.Interval = parseDuration(v)
	}

	if v := envs["METRICS_ENABLED"]; v != "" {
		envCfg.Metrics.Enabled = parseBool(v)
	}
	if v := envs["METRICS_ADDR"]; v != "" {
		envCfg.Metrics.Addr = v
	}

	if v := envs["REPORT_ENABLED"]; v != "" {
		envCfg.Report.Enabled = parseBool(v)
	}
	if v := envs["REPORT_CRON"]; v != "" {
		envCfg.Report.Cron = v
	}

	if v := envs["TELEMETRY_ENABLED"]; v != "" {
		envCfg.Telemetry.Enabled = parseBool(v)
	}
	if v := envs["TELEMETRY_DIR"]; v != "" {
		envCfg.Telemetry.Dir = v
	}
	if v := envs["TELEMETRY_SAMPLE_RATE"]; v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envCfg.Telemetry.SampleRate = f
		}
	}
	if v := envs["TELEMETRY_SLOW_THRESHOLD"]; v != "" {
		envCfg.Telemetry.SlowThreshold = parseDuration(v)
	}

	if v := envs["SENSOR_ENABLED"]; v != "" {
		envCfg.Sensor.Enabled = parseBool(v)
	}
	if v := envs["SENSOR_POLL_INTERVAL"]; v != "" {
		envCfg.Sensor.PollInterval = parseDuration(v)
	}
	if v := envs["SENSOR_DISK_HIGH_PCT"]; v != "" {
		envCfg.Sensor.DiskHighPct = parseInt(v, 0)
	}
	if v := envs["SENSOR_DISK_LOW_PCT"]; v != "" {
		envCfg.Sensor.DiskLowPct = parseInt(v, 0)
	}
	if v := envs["SENSOR_MEM_HIGH_PCT"]; v != "" {
		envCfg.Sensor.MemHighPct = parseInt(v, 0)
	}
	if v := envs["SENSOR_RECOVERY_WINDOW"]; v != "" {
		envCfg.Sensor.RecoveryWindow = parseDuration(v)
	}

	if v := envs["LOG_LEVEL"]; v != "" {
		envCfg.Logging.Level = strings.TrimSpace(v)
	}

	return envCfg, envUsed
}

// LoadEffectiveConfig decides which single source to use (flags, config
// file, or env) and returns the effective config. If --config is set, only
// the config file is used; otherwise flags if any core flag was set; else
// the config file if present; else env. Flag-driven configs backfill unset
// core fields from env, then file.
func LoadEffectiveConfig(flags Flags, fileCfg *Config, fileExists bool, envCfg *Config, envUsed bool) (EffectiveConfigResult, error) {
	var res EffectiveConfigResult

	if flags.Set["config"] {
		if !fileExists {
			return res, fmt.Errorf("config file %s not found", flags.Config)
		}
		res.Config = fileCfg
		res.Source = "config"
		return res, nil
	}

	coreFlag := flags.Set["script"] || flags.Set["input"] || flags.Set["output"] || flags.Set["format"]
	if coreFlag {
		out := &Config{}
		out.Script = pickString(flags.Set["script"], flags.Script, envCfg.Script, fileCfg.Script)
		out.Input = pickString(flags.Set["input"], flags.Input, envCfg.Input, fileCfg.Input)
		out.Output = pickString(flags.Set["output"], flags.Output, envCfg.Output, fileCfg.Output)
		out.Format = pickString(flags.Set["format"], flags.Format, envCfg.Format, fileCfg.Format)
		res.Config = out
		res.Source = "flags"
		return res, nil
	}

	if fileExists {
		res.Config = fileCfg
		res.Source = "config"
		return res, nil
	}
	res.Config = envCfg
	res.Source = "env"
	return res, nil
}

func pickString(flagSet bool, flagVal, envVal, fileVal string) string {
	if flagSet {
		return flagVal
	}
	if strings.TrimSpace(envVal) != "" {
		return envVal
	}
	return fileVal
}
