package main

import (
	"fmt"

	"github.com/artpar/modforge/core/formatter"
	"github.com/spf13/cobra"
)

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "List output formats",
	Run: func(cmd *cobra.Command, args []string) {
		def := formatter.Default().Name()
		for _, name := range formatter.List() {
			f, _ := formatter.Get(name)
			marker := " "
			if name == def {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %-6s %s\n", marker, name, f.Description())
		}
	},
}

func init() {
	rootCmd.AddCommand(formatsCmd)
}
