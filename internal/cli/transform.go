package cli

import (
	"github.com/spf13/cobra"

	"logremap/pkg/config"
)

// transformCmd runs the pipeline once over existing input and exits.
var transformCmd = &cobra.Command{
	Use:   "transform",
	Short: "Transform a log file or directory once",
	Long: `Transform reads the input to the end, applies the mapping script to
every line and writes the results, then exits. Directories are expanded
using the watch include/exclude patterns.

Example usage:
  logremap transform -s rules.remap -i app.log
  logremap transform -s rules.remap -i ./logs -o out.ndjson
  logremap transform -s rules.remap -i app.log -o events.json --format json-pretty`,
	RunE: runTransform,
}

func init() {
	rootCmd.AddCommand(transformCmd)
	addCoreFlags(transformCmd)
}

func runTransform(cmd *cobra.Command, args []string) error {
	eff, err := setup(cmd, func(cfg *config.Config) {
		cfg.Watch.Enabled = false
	})
	if err != nil {
		return err
	}
	return runApp(eff)
}
