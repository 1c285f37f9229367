package main

import (
	"fmt"
	"os"

	"github.com/artpar/modforge/bootstrap"
	"github.com/artpar/modforge/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "modforge",
	Short: "Compile declarative module definitions into validation and persistence schemas",
	Long: `modforge compiles YAML module definitions into validation schemas,
persistence schemas, population paths and shared enum declarations.

Quick start:
  modforge compile modules/          # Print the compiled result
  modforge compile -o build/ -f yaml # Write one artifact per module
  modforge watch                     # Rebuild on every change
  modforge serve                     # Preview API over HTTP

History:
  modforge history list              # Recorded builds
  modforge history show <id>         # One build and its artifacts`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "modforge.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: json or console")
}

// loadConfig loads the config file when present, environment variables and
// defaults otherwise. Positional paths replace the configured inputs.
func loadConfig(paths []string) (*config.Config, error) {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if len(paths) > 0 {
		cfg.Input.Paths = paths
	}
	return cfg, nil
}

// appOptions carries the global flags into application bootstrap.
func appOptions(cmd *cobra.Command) bootstrap.Options {
	return bootstrap.Options{
		Version:   version,
		LogOutput: cmd.ErrOrStderr(),
		LogLevel:  logLevel,
		LogFormat: logFormat,
	}
}
