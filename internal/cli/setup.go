package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"logremap/internal/app"
	"logremap/pkg/config"
	"logremap/pkg/logger"
)

// buildFlags translates cobra flag state into the config package's flag
// shape, recording which flags were set on the command line.
func buildFlags(cmd *cobra.Command) config.Flags {
	fl := config.Flags{
		Script: scriptFlag,
		Input:  inputFlag,
		Output: outputFlag,
		Format: formatFlag,
		Config: configFlag,
		Set:    map[string]bool{},
	}
	for _, name := range []string{"script", "input", "output", "format", "config"} {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			fl.Set[name] = true
		}
	}
	return fl
}

// setup runs the flags > file > env config sequence, applies the command's
// overrides, validates and initializes logging. Every runnable command goes
// through here so the precedence rules stay in one place.
func setup(cmd *cobra.Command, override func(*config.Config)) (config.EffectiveConfigResult, error) {
	flags := buildFlags(cmd)

	fileCfg, fileExists, err := config.ParseConfigFile(flags)
	if err != nil {
		return config.EffectiveConfigResult{}, fmt.Errorf("load config file: %w", err)
	}
	envCfg, envUsed := config.ParseConfigEnvs()

	eff, err := config.LoadEffectiveConfig(flags, fileCfg, fileExists, envCfg, envUsed)
	if err != nil {
		return eff, err
	}
	if override != nil {
		override(eff.Config)
	}
	if logLevelFlag != "" {
		eff.Config.Logging.Level = logLevelFlag
	}
	if err := eff.Config.Validate(); err != nil {
		return eff, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.Init(eff.Config.Logging.Level)
	logger.Info("effective_config_loaded",
		"source", eff.Source,
		"script", eff.Config.Script,
		"input", eff.Config.Input,
		"watch", eff.Config.Watch.Enabled,
	)
	return eff, nil
}

// runApp builds the app from a loaded config and runs it until completion
// or a shutdown signal. SIGHUP forces a script reload instead of stopping.
func runApp(eff config.EffectiveConfigResult) error {
	defer logger.Sync()

	if eff.Config.Script == "" {
		return fmt.Errorf("no mapping script configured (use --script or set script in the config)")
	}
	if eff.Config.Input == "" {
		return fmt.Errorf("no input configured (use --input or set input in the config)")
	}

	a, err := app.New(eff, version)
	if err != nil {
		return err
	}

	ctx, cancel := app.SetupSignalHandler(context.Background(), a.ForceReload)
	defer cancel()

	return a.Run(ctx)
}
