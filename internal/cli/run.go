package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// runCmd is the config-file driven mode: whether the run is a one-shot
// transform or a live watch comes from the file, not from flags.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run from a config file",
	Long: `Run loads the full configuration from a file and starts in the mode
it describes: a one-shot transform, or a live watch when watch.enabled is
set.

Example usage:
  logremap run -c logremap.yaml
  LOGREMAP_CONFIG=logremap.yaml logremap run`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	if !cmd.Flags().Changed("config") && os.Getenv("LOGREMAP_CONFIG") == "" {
		return fmt.Errorf("run requires --config or LOGREMAP_CONFIG")
	}
	eff, err := setup(cmd, nil)
	if err != nil {
		return err
	}
	return runApp(eff)
}
