package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/artpar/modforge/adapters/sqlite"
	"github.com/artpar/modforge/config"
	"github.com/artpar/modforge/domain/build"
	"github.com/goccy/go-json"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect recorded builds",
	Long: `Inspect builds recorded in the history database.

Builds are recorded when history.enabled is set or with compile --history.
Build IDs may be shortened to any unique prefix.

Examples:
  modforge history list
  modforge history list --status failed --limit 5
  modforge history show 3f2a9c1e
  modforge history show 3f2a9c1e --module post
  modforge history prune --keep 50`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded builds, newest first",
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one build and its artifacts",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete all but the newest builds",
	RunE:  runHistoryPrune,
}

var (
	historyStatus string
	historyLimit  int
	historyModule string
	historyKeep   int
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPruneCmd)

	historyListCmd.Flags().StringVar(&historyStatus, "status", "", "filter by status: success or failed")
	historyListCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of builds to show (0 = all)")

	historyShowCmd.Flags().StringVar(&historyModule, "module", "", "print the artifact of one module")

	historyPruneCmd.Flags().IntVar(&historyKeep, "keep", 20, "number of builds to keep")
}

// openHistory opens the history database named by the config.
func openHistory() (*sqlite.DB, *sqlite.BuildStore, error) {
	cfg, err := loadConfig(nil)
	if err != nil {
		return nil, nil, err
	}
	if cfg.History.Driver != config.HistorySQLite {
		return nil, nil, fmt.Errorf("history.driver %q keeps no history between runs", cfg.History.Driver)
	}

	db, err := sqlite.Open(cfg.History.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open history: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate history: %w", err)
	}
	return db, sqlite.NewBuildStore(db), nil
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	filter := build.Filter{Limit: historyLimit}
	switch build.Status(historyStatus) {
	case "":
	case build.StatusSuccess, build.StatusFailed:
		filter.Status = build.Status(historyStatus)
	default:
		return fmt.Errorf("invalid status %q: must be success or failed", historyStatus)
	}

	db, store, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	builds, err := store.List(context.Background(), filter)
	if err != nil {
		return err
	}

	if len(builds) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No builds recorded")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Started", "Status", "Modules", "Enums", "Refs", "Duration", "Source"})
	for _, b := range builds {
		status := string(b.Status)
		if b.ErrorKind != "" {
			status += " (" + b.ErrorKind + ")"
		}
		t.AppendRow(table.Row{
			shortID(b.ID),
			b.StartedAt.Local().Format("2006-01-02 15:04:05"),
			status,
			b.Modules,
			b.Enums,
			b.References,
			b.Duration.Round(time.Microsecond),
			shortID(b.SourceHash),
		})
	}
	t.Render()
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	db, store, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := context.Background()
	b, err := store.Get(ctx, args[0])
	if errors.Is(err, build.ErrNotFound) {
		return fmt.Errorf("no build matches %q", args[0])
	}
	if errors.Is(err, build.ErrAmbiguousID) {
		return fmt.Errorf("%q matches more than one build, use a longer prefix", args[0])
	}
	if err != nil {
		return err
	}

	artifacts, err := store.Artifacts(ctx, b.ID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if historyModule != "" {
		for _, a := range artifacts {
			if a.Module != historyModule {
				continue
			}
			var buf bytes.Buffer
			if err := json.Indent(&buf, a.Body, "", "  "); err != nil {
				return fmt.Errorf("decode artifact: %w", err)
			}
			buf.WriteByte('\n')
			_, err := buf.WriteTo(out)
			return err
		}
		return fmt.Errorf("build %s has no artifact for module %q", shortID(b.ID), historyModule)
	}

	fmt.Fprintf(out, "Build %s\n", b.ID)
	fmt.Fprintf(out, "  Started:     %s\n", b.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(out, "  Status:      %s\n", b.Status)
	fmt.Fprintf(out, "  Duration:    %s\n", b.Duration)
	fmt.Fprintf(out, "  Source hash: %s\n", b.SourceHash)
	fmt.Fprintf(out, "  Modules:     %d\n", b.Modules)
	fmt.Fprintf(out, "  Enums:       %d\n", b.Enums)
	fmt.Fprintf(out, "  References:  %d\n", b.References)
	if !b.Succeeded() {
		fmt.Fprintf(out, "  Error:       %s (%s)\n", b.Error, b.ErrorKind)
	}

	if len(artifacts) == 0 {
		return nil
	}

	fmt.Fprintln(out)
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Module", "Size"})
	for _, a := range artifacts {
		t.AppendRow(table.Row{a.Module, strconv.Itoa(len(a.Body)) + " B"})
	}
	t.Render()
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	if historyKeep < 1 {
		return fmt.Errorf("--keep must be at least 1")
	}

	db, store, err := openHistory()
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := store.Prune(context.Background(), historyKeep)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pruned %d builds, kept the newest %d\n", n, historyKeep)
	return nil
}
