package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/justinrayshort/os-sub001/internal/history"
)

// NewHistoryCommand creates the history command group backed by the run index.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect the local run index",
	}
	cmd.PersistentFlags().StringVar(&dbPath, "db", "e2e-artifacts/history.db", "run-history database path")

	cmd.AddCommand(newHistoryListCommand(rootOpts, &dbPath))
	cmd.AddCommand(newHistoryPruneCommand(rootOpts, &dbPath))
	return cmd
}

func newHistoryListCommand(rootOpts *RootOptions, dbPath *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.Open(*dbPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "cannot open run index", err)
			}
			defer store.Close()

			entries, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return WrapExitError(ExitFailure, "cannot read run index", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if rootOpts.Format == "json" {
				return out.Success(entries)
			}
			return out.Success(renderHistory(entries))
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show")
	return cmd
}

func newHistoryPruneCommand(rootOpts *RootOptions, dbPath *string) *cobra.Command {
	var keep time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete index entries older than the retention window",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.Open(*dbPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "cannot open run index", err)
			}
			defer store.Close()

			removed, err := store.Prune(cmd.Context(), time.Now().Add(-keep))
			if err != nil {
				return WrapExitError(ExitFailure, "cannot prune run index", err)
			}

			out := &OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			if rootOpts.Format == "json" {
				return out.Success(map[string]int64{"removed": removed})
			}
			return out.Success(fmt.Sprintf("removed %d entries", removed))
		},
	}

	cmd.Flags().DurationVar(&keep, "keep", 30*24*time.Hour, "retention window (entries older than now minus this are removed)")
	return cmd
}

func renderHistory(entries []history.Entry) string {
	if len(entries) == 0 {
		return "no runs recorded"
	}
	var b strings.Builder
	for i, e := range entries {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s  %-16s  %-8s  %-8s  %d/%d passed  %s",
			e.StartedAt, e.RunID, e.Profile, e.Status, e.Passed, e.SliceCount, e.ManifestPath)
	}
	return b.String()
}
