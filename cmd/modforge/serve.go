package main

import (
	"context"
	"fmt"
	"os"

	"github.com/artpar/modforge/bootstrap"
	"github.com/artpar/modforge/config"
	"github.com/spf13/cobra"
)

var (
	hotReload bool
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the preview API server",
	Long: `Start the modforge preview API server.

The server will:
  - Load configuration from modforge.yaml (or --config)
  - Or load configuration from MODFORGE_* environment variables
  - Compile the input paths and rebuild on every change
  - Serve compiled modules, enums and the credential schema as JSON
  - Record builds when history is enabled

Endpoints:
  GET  /modules                      Compiled modules
  GET  /modules/{name}               One module (?format=json|yaml|table)
  GET  /modules/{name}/validation    Effective validation schema
  GET  /modules/{name}/persistence   Persistence schema
  POST /modules/{name}/check         Validate a document
  GET  /enums                        Shared enum declarations
  GET  /credential                   Credential schema of the auth module
  GET  /builds, /builds/{id}         Build history
  GET  /health, /metrics, /version

Environment variables:
  MODFORGE_INPUT            - Comma-separated module paths
  MODFORGE_SERVER_HOST      - Server host (default: 127.0.0.1)
  MODFORGE_SERVER_PORT      - Server port (default: 8420)
  MODFORGE_HISTORY_ENABLED  - Record builds in SQLite
  MODFORGE_METRICS_ENABLED  - Enable /metrics

Examples:
  modforge serve
  modforge serve --config /etc/modforge/config.yaml
  modforge serve --port 9000 --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "enable hot reload of configuration")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "listen host")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "listen port")
}

func runServe(cmd *cobra.Command, args []string) error {
	hasConfigFile := false
	if _, err := os.Stat(cfgFile); err == nil {
		hasConfigFile = true
	}

	opts := appOptions(cmd)

	var a *bootstrap.App
	var err error

	if hasConfigFile && hotReload {
		// Hot reload only works with config file
		a, err = bootstrap.NewWithHotReload(cfgFile, opts)
		if err == nil {
			applyServeFlags(a.Config())
		}
	} else {
		cfg, loadErr := loadConfig(nil)
		if loadErr != nil {
			return loadErr
		}
		applyServeFlags(cfg)

		if !hasConfigFile {
			fmt.Fprintln(cmd.ErrOrStderr(), "Running with environment variables (no config file)")
		}

		a, err = bootstrap.New(cfg, opts)
	}

	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return a.Run(context.Background())
}

// applyServeFlags applies listen overrides before the server starts. Server
// settings are never reloaded, so later config reloads keep them.
func applyServeFlags(cfg *config.Config) {
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort != 0 {
		cfg.Server.Port = servePort
	}
}
