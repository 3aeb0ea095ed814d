package cli

import (
	"fmt"
	"os"
	"path/filepath"

	yamlv "github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"logremap/pkg/config"
	"logremap/pkg/logger"
)

var (
	convertFileFlag string
	convertDirFlag  string
)

// convertCmd turns a Vector-style config into a logremap config plus any
// inline remap scripts it carried.
var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a Vector config into a logremap config",
	Long: `Convert reads a Vector-style YAML or JSON config (file source, remap
transform, file sink) and writes the equivalent logremap config. Inline
transform source text is extracted into .remap script files next to it.

Example usage:
  logremap convert -f vector.yaml
  logremap convert -f vector.yaml -o ./converted`,
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)
	convertCmd.Flags().StringVarP(&convertFileFlag, "file", "f", "", "Vector config path (required)")
	convertCmd.Flags().StringVarP(&convertDirFlag, "out-dir", "o", ".", "directory for the generated config and scripts")
	convertCmd.MarkFlagRequired("file")
}

func runConvert(cmd *cobra.Command, args []string) error {
	logger.Init(logLevelFlag)
	defer logger.Sync()

	data, err := os.ReadFile(convertFileFlag)
	if err != nil {
		return fmt.Errorf("read vector config: %w", err)
	}

	cfg, scripts, err := config.ConvertVector(data)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(convertDirFlag, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	for name, text := range scripts {
		p := filepath.Join(convertDirFlag, name+".remap")
		if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
			return fmt.Errorf("write script %s: %w", p, err)
		}
		if cfg.Script == name+".remap" {
			cfg.Script = p
		}
		fmt.Printf("wrote script %s\n", p)
	}

	// fill defaults so the generated file is explicit about what will run
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("converted config is invalid: %w", err)
	}
	out, err := yamlv.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	cfgPath := filepath.Join(convertDirFlag, "logremap.yaml")
	if err := os.WriteFile(cfgPath, out, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Printf("wrote config %s\n", cfgPath)
	fmt.Printf("run it with: logremap run -c %s\n", cfgPath)
	return nil
}
