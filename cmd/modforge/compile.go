package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/artpar/modforge/bootstrap"
	"github.com/artpar/modforge/config"
	"github.com/artpar/modforge/core/formatter"
	"github.com/spf13/cobra"
)

var (
	compileOut      string
	compileFormat   string
	compileSections []string
	compileCompact  bool
	compileHistory  bool
)

var compileCmd = &cobra.Command{
	Use:   "compile [paths...]",
	Short: "Compile module definitions",
	Long: `Compile module definitions into validation schemas, persistence schemas,
population paths and enum declarations.

Paths default to input.paths from the config file (or MODFORGE_INPUT).
Directories are read recursively for .yaml, .yml and .json files.

Without --out the combined result is printed. With --out one artifact per
module is written, plus _result.<ext> holding the combined result.

Examples:
  modforge compile modules/
  modforge compile -o build/ -f yaml
  modforge compile -f table --sections persistence
  modforge compile --history       # Record the build in the history database`,
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)

	compileCmd.Flags().StringVarP(&compileOut, "out", "o", "", "artifact directory (default: stdout)")
	compileCmd.Flags().StringVarP(&compileFormat, "format", "f", "", "output format: "+fmt.Sprint(formatter.List()))
	compileCmd.Flags().StringSliceVar(&compileSections, "sections", nil, "limit output to validation, persistence, populations")
	compileCmd.Flags().BoolVar(&compileCompact, "compact", false, "minimize whitespace")
	compileCmd.Flags().BoolVar(&compileHistory, "history", false, "record the build in the history database")
}

func runCompile(cmd *cobra.Command, args []string) error {
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

	out, err := a.Compile(context.Background())
	if err != nil {
		reportError(cmd.ErrOrStderr(), cfg.Output.Format, err)
		return fmt.Errorf("compile failed")
	}

	written, err := bootstrap.WriteArtifacts(out.Result, cfg.Output, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	for _, path := range written {
		a.Logger.Debug().Str("path", path).Msg("wrote artifact")
	}
	if len(written) > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d artifacts to %s (build %s)\n", len(written), cfg.Output.Dir, shortID(out.Build.ID))
	}
	return nil
}

// applyOutputFlags overrides output settings with the flags the user set.
func applyOutputFlags(cmd *cobra.Command, out *config.OutputConfig) {
	flags := cmd.Flags()
	if flags.Changed("out") {
		out.Dir = compileOut
	}
	if flags.Changed("format") {
		out.Format = compileFormat
	}
	if flags.Changed("sections") {
		out.Sections = compileSections
	}
	if flags.Changed("compact") {
		out.Compact = compileCompact
	}
}

// reportError prints a compile error in the selected format, one line per
// shape violation when there are several.
func reportError(w io.Writer, format string, err error) {
	f, ok := formatter.Get(format)
	if !ok {
		f = formatter.Default()
	}
	if ferr := f.FormatError(w, err); ferr != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
