package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/artpar/modforge/app"
	"github.com/artpar/modforge/bootstrap"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch [paths...]",
	Short: "Rebuild whenever a module definition changes",
	Long: `Compile once, then rebuild whenever a module definition changes.

A failed rebuild is logged and the previous artifacts stay in place.
With --out every successful rebuild rewrites the artifact directory.

Examples:
  modforge watch
  modforge watch modules/ -o build/ -f yaml`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&compileOut, "out", "o", "", "artifact directory (default: none)")
	watchCmd.Flags().StringVarP(&compileFormat, "format", "f", "", "artifact format")
	watchCmd.Flags().StringSliceVar(&compileSections, "sections", nil, "limit artifacts to validation, persistence, populations")
	watchCmd.Flags().BoolVar(&compileCompact, "compact", false, "minimize whitespace")
	watchCmd.Flags().BoolVar(&compileHistory, "history", false, "record builds in the history database")
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	applyOutputFlags(cmd, &cfg.Output)
	if compileHistory {
		cfg.History.Enabled = true
	}

	a, err := bootstrap.New(cfg, appOptions(cmd))
	if err != nil {
		return err
	}
	defer a.Shutdown()

	if cfg.Output.Dir != "" {
		a.OnBuild(func(out app.Outcome, err error) {
			if err != nil {
				return
			}
			written, werr := bootstrap.WriteArtifacts(out.Result, a.Config().Output, cmd.OutOrStdout())
			if werr != nil {
				a.Logger.Error().Err(werr).Msg("failed to write artifacts")
				return
			}
			a.Logger.Info().Int("artifacts", len(written)).Str("dir", cfg.Output.Dir).Msg("artifacts written")
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.Watch(ctx)
}
