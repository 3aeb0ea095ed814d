package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"logremap/pkg/remap"
)

// validateCmd compiles a script without running anything, so edits can be
// checked before they reach a live watcher.
var validateCmd = &cobra.Command{
	Use:   "validate [script]",
	Short: "Check that a mapping script compiles",
	Long: `Validate compiles the mapping script and reports the first error with
its line. Nothing is transformed.

Example usage:
  logremap validate -s rules.remap
  logremap validate rules.remap`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVarP(&scriptFlag, "script", "s", "", "mapping script path")
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := scriptFlag
	if path == "" && len(args) == 1 {
		path = args[0]
	}
	if path == "" {
		return fmt.Errorf("no script given (use --script or a positional path)")
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read script: %w", err)
	}
	if _, err := remap.New().Compile(string(src)); err != nil {
		return fmt.Errorf("%s: %v", path, err)
	}
	fmt.Printf("%s: ok\n", path)
	return nil
}
