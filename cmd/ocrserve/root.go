package main

import (
	"fmt"

	"github.com/platinummonkey/ocrserve/internal/config"
	"github.com/platinummonkey/ocrserve/internal/engine"
	"github.com/platinummonkey/ocrserve/internal/layout"
	"github.com/platinummonkey/ocrserve/internal/logger"
	"github.com/platinummonkey/ocrserve/internal/recognize"
	"github.com/platinummonkey/ocrserve/internal/staging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "ocrserve",
	Short: "Turn text recognition engine output into structured results",
	Long: `ocrserve runs an external text detection/recognition engine against
images and turns its line-oriented output into structured results.

Modes:
  - universal:   one line of text per detection
  - document:    paragraphs rebuilt from line geometry
  - idcard:      resident ID card fields
  - handwritten: handwriting-tuned engine on a contrast-enhanced image`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ocrserve.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (console, json)")
	rootCmd.PersistentFlags().String("log-file", "", "also write logs to this rotated file")
	rootCmd.PersistentFlags().String("engine-binary", "ppocr", "recognition engine executable")
	rootCmd.PersistentFlags().Duration("engine-timeout", engine.DefaultTimeout, "deadline for one engine invocation")
	rootCmd.PersistentFlags().Int("engine-max-concurrent", 0, "concurrent engine processes (0 = number of CPUs)")
	rootCmd.PersistentFlags().String("staging-dir", staging.DefaultDir, "scratch directory for staged images")

	// Bind flags to viper
	for _, name := range []string{"log-level", "log-format", "log-file", "engine-binary", "engine-timeout", "engine-max-concurrent", "staging-dir"} {
		_ = viper.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name))
	}
}

// loadConfig resolves configuration with bound CLI flags taking precedence
func loadConfig() (*config.Config, error) {
	return config.LoadWith(viper.GetViper(), cfgFile)
}

// newLogger builds the logger from configuration and installs it globally
func newLogger(cfg *config.Config, useStderr bool) (*logger.Logger, error) {
	err := logger.Init(&logger.Config{
		Level:            cfg.LogLevel,
		Format:           cfg.LogFormat,
		OutputPath:       cfg.LogFile,
		MaxSizeMB:        cfg.LogMaxSizeMB,
		MaxAgeDays:       cfg.LogMaxAgeDays,
		UseStderr:        useStderr,
		EnableStacktrace: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.Get(), nil
}

// newService wires the engine gateway, staging and composers
func newService(cfg *config.Config, log *logger.Logger) (*recognize.Service, error) {
	gateway := engine.New(&engine.Config{
		Logger:        log,
		Binary:        cfg.Engine.Binary,
		Subcommand:    cfg.Engine.Subcommand,
		Timeout:       cfg.Engine.Timeout,
		MaxConcurrent: cfg.Engine.MaxConcurrent,
		MinConfidence: cfg.Engine.MinConfidence,
		Handwriting: engine.HandwritingConfig{
			UnclipRatio:  cfg.Engine.UnclipRatio,
			RecModelDir:  cfg.Engine.RecModelDir,
			CharListFile: cfg.Engine.CharListFile,
			RecMode:      cfg.Engine.RecMode,
		},
	})

	stager, err := staging.New(&staging.Config{Dir: cfg.StagingDir, Logger: log})
	if err != nil {
		return nil, err
	}

	svc, err := recognize.New(&recognize.Config{
		Logger:        log,
		Invoker:       gateway,
		Stager:        stager,
		Reconstructor: layout.New(&layout.Config{Logger: log}),
		Parallelism:   cfg.LocalParallelism,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create recognition service: %w", err)
	}
	return svc, nil
}
