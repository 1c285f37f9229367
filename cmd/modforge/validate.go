package main

import (
	"context"
	"fmt"

	"github.com/artpar/modforge/bootstrap"
	"github.com/artpar/modforge/core/schema"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [paths...]",
	Short: "Check module definitions without writing artifacts",
	Long: `Check module definitions without writing artifacts.

Every shape violation is listed, not just the first one.

Examples:
  modforge validate
  modforge validate modules/ extra/comment.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	cfg.History.Enabled = false
	cfg.Metrics.Textfile = ""

	a, err := bootstrap.New(cfg, appOptions(cmd))
	if err != nil {
		return err
	}
	defer a.Shutdown()

	out, err := a.Compile(context.Background())
	if err != nil {
		violations := schema.Violations(err)
		if len(violations) == 0 {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(cmd.OutOrStdout())
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Module", "Attribute", "Problem"})
		for _, v := range violations {
			path := v.Path
			if path == "" {
				path = "-"
			}
			t.AppendRow(table.Row{v.Module, path, v.Reason})
		}
		t.Render()
		return fmt.Errorf("%d shape violations", len(violations))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "OK: %d modules, %d enums, %d population paths\n",
		out.Build.Modules, out.Build.Enums, out.Build.References)
	return nil
}
