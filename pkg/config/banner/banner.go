package banner

import (
	"fmt"
	"time"

	"logremap/pkg/config"
)

const banner = `
██╗      ██████╗  ██████╗ ██████╗ ███████╗███╗   ███╗ █████╗ ██████╗
██║     ██╔═══██╗██╔════╝ ██╔══██╗██╔════╝████╗ ████║██╔══██╗██╔══██╗
██║     ██║   ██║██║  ███╗██████╔╝█████╗  ██╔████╔██║███████║██████╔╝
██║     ██║   ██║██║   ██║██╔══██╗██╔══╝  ██║╚██╔╝██║██╔══██║██╔═══╝
███████╗╚██████╔╝╚██████╔╝██║  ██║███████╗██║ ╚═╝ ██║██║  ██║██║
╚══════╝ ╚═════╝  ╚═════╝ ╚═╝  ╚═╝╚══════╝╚═╝     ╚═╝╚═╝  ╚═╝╚═╝
`

// PrintWithEff prints the banner using an EffectiveConfigResult which
// provides richer context (config, source).
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	cfg := eff.Config
	if cfg == nil {
		cfg = &config.Config{}
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}
	out := cfg.Output
	if out == "" {
		out = "stdout"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Script:   %s\n", cfg.Script)
	fmt.Printf("Input:    %s\n", cfg.Input)
	fmt.Printf("Output:   %s\n", out)
	fmt.Printf("Format:   %s\n", cfg.Format)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config: %s\n", src)

	fmt.Println("\n== Pipeline ====================================================")
	fmt.Printf("- Workers: %d, batch size %d, queue depth %d\n",
		cfg.Pipeline.MaxWorkers, cfg.Pipeline.BatchSize, cfg.Pipeline.QueueDepth)
	if cfg.Pipeline.SkipErrorsEnabled() {
		fmt.Println("- Failed records: skipped and counted")
	} else {
		fmt.Println("- Failed records: fatal (pipeline stops)")
	}
	if cfg.Watch.Enabled {
		fmt.Printf("- Watch: enabled (interval=%s)\n", time.Duration(cfg.Watch.Interval))
		if cfg.Watch.DataDir != "" {
			fmt.Printf("- Checkpoints: %s\n", cfg.Watch.DataDir)
		} else {
			fmt.Println("- Checkpoints: in-memory only")
		}
	} else {
		fmt.Println("- Watch: disabled (one-shot)")
	}
	if cfg.Reload.ReloadEnabled() {
		fmt.Printf("- Hot reload: enabled (interval=%s)\n", time.Duration(cfg.Reload.Interval))
	} else {
		fmt.Println("- Hot reload: disabled")
	}
	if cfg.RateLimit.RecordsPerSec > 0 {
		fmt.Printf("- Rate limit: %.0f records/s (burst %d)\n", cfg.RateLimit.RecordsPerSec, cfg.RateLimit.Burst)
	} else {
		fmt.Println("- Rate limit: none")
	}
	if cfg.Metrics.Enabled {
		fmt.Printf("- Metrics: %s\n", cfg.Metrics.Addr)
	} else {
		fmt.Println("- Metrics: disabled")
	}
	if cfg.Report.Enabled {
		fmt.Printf("- Stats report: cron=%s\n", cfg.Report.Cron)
	} else {
		fmt.Println("- Stats report: disabled")
	}
}
