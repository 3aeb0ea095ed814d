package cli

import (
	"time"

	"github.com/spf13/cobra"

	"logremap/pkg/config"
)

var (
	watchIntervalFlag time.Duration
	watchDataDirFlag  string
	watchNoReloadFlag bool
)

// watchCmd follows live files and keeps transforming until interrupted.
var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously watch input for new lines",
	Long: `Watch polls the input for appended content, transforms new lines as
they arrive and hot-reloads the mapping script when it changes. It runs
until SIGINT or SIGTERM; SIGHUP forces an immediate script reload.

Example usage:
  logremap watch -s rules.remap -i /var/log/app.log -o out.ndjson
  logremap watch -s rules.remap -i /var/log/myapp --interval 2s
  logremap watch -s rules.remap -i app.log --data-dir ./state`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addCoreFlags(watchCmd)
	watchCmd.Flags().DurationVar(&watchIntervalFlag, "interval", 0, "poll interval (default 5s)")
	watchCmd.Flags().StringVar(&watchDataDirFlag, "data-dir", "", "directory for cursor checkpoints (default in-memory)")
	watchCmd.Flags().BoolVar(&watchNoReloadFlag, "no-reload", false, "disable hot reloading of the mapping script")
}

func runWatch(cmd *cobra.Command, args []string) error {
	eff, err := setup(cmd, func(cfg *config.Config) {
		cfg.Watch.Enabled = true
		if watchIntervalFlag > 0 {
			cfg.Watch.Interval = config.Duration(watchIntervalFlag)
		}
		if watchDataDirFlag != "" {
			cfg.Watch.DataDir = watchDataDirFlag
		}
		if watchNoReloadFlag {
			off := false
			cfg.Reload.Enabled = &off
		}
	})
	if err != nil {
		return err
	}
	return runApp(eff)
}
