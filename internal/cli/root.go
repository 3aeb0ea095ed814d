// Package cli wires the logremap commands: one-shot transforms, continuous
// watch mode, config-driven runs, script validation and Vector config
// conversion.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// build metadata, injected via -ldflags
var (
	version = "dev"
	commit  = "none"
)

// shared core flags; transform and watch register them, run reads only the
// persistent --config
var (
	scriptFlag string
	inputFlag  string
	outputFlag string
	formatFlag string

	configFlag   string
	logLevelFlag string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "logremap",
	Short: "Transform raw log lines into structured events with a remap script",
	Long: `logremap reads raw text log lines, applies a user-authored mapping
script to every line, and emits structured events as JSON, NDJSON or YAML.

It runs either as a one-shot transform over existing files or as a
continuous watcher that follows live files and hot-reloads the mapping
script in place without dropping in-flight records.`,
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
}

// Execute adds all child commands to the root command and sets flags
// appropriately. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	// Disable completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.SilenceUsage = true

	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "config file path (or LOGREMAP_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn or error")
}

// addCoreFlags registers the script/input/output/format quartet shared by
// the transform and watch commands.
func addCoreFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&scriptFlag, "script", "s", "", "mapping script path")
	cmd.Flags().StringVarP(&inputFlag, "input", "i", "", "input log file or directory")
	cmd.Flags().StringVarP(&outputFlag, "output", "o", "", "output path (default stdout)")
	cmd.Flags().StringVarP(&formatFlag, "format", "f", "", "output format: json, json-pretty, ndjson or yaml (default ndjson, or json-pretty on a terminal)")
}
