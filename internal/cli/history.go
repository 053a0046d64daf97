package cli

import (
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/configstore/internal/journal"
	"github.com/roach88/configstore/internal/model"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Journal string
	Limit   int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [id]",
		Short: "Show recorded scans or the changes of one entity",
		Long: `Read the scan journal written by watch.

Without an id, lists the most recent scans. With an id, lists every
recorded change to that entity, oldest first.

Examples:
  configstore history --limit 5
  configstore history payments/cards/limits/1.0
  configstore history --journal /var/lib/configstore/journal.db`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			id := ""
			if len(args) == 1 {
				id = args[0]
			}
			return runHistory(opts, id, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "journal database (defaults to journal.path from the configuration)")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 10, "number of scans to list")
	return cmd
}

func runHistory(opts *HistoryOptions, id string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	path := opts.Journal
	if path == "" {
		cfg, err := opts.loadConfig()
		if err != nil {
			return f.Fail(ExitFailure, ErrCodeConfig, err)
		}
		path = cfg.Journal.Path
	}
	if path == "" {
		return f.Fail(ExitCommandError, ErrCodeJournal, errors.New("no journal configured: set journal.path or --journal"))
	}

	j, err := journal.Open(path)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeJournal, err)
	}
	defer j.Close()

	ctx := cmd.Context()
	if id != "" {
		rows, err := j.EntityHistory(ctx, id)
		if err != nil {
			return f.Fail(ExitFailure, ErrCodeJournal, err)
		}
		if f.JSON() {
			return f.Success(rows)
		}
		writeEntityHistory(f.Writer, id, rows)
		return nil
	}

	scans, err := j.RecentScans(ctx, opts.Limit)
	if err != nil {
		return f.Fail(ExitFailure, ErrCodeJournal, err)
	}
	if f.JSON() {
		return f.Success(scans)
	}
	writeScans(f.Writer, scans)
	return nil
}

func writeEntityHistory(w io.Writer, id string, rows []journal.DeltaRow) {
	if len(rows) == 0 {
		fmt.Fprintf(w, "No recorded changes for %s.\n", id)
		return
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s  %-6s patch=%d version=%s location=%s\n",
			r.At.Format(time.RFC3339), r.Type, r.Entity.Patch, r.Entity.Version, r.Entity.IDPrefix+r.Entity.ID)
	}
}

func writeScans(w io.Writer, scans []journal.ScanSummary) {
	if len(scans) == 0 {
		fmt.Fprintln(w, "No recorded scans.")
		return
	}
	for _, s := range scans {
		fmt.Fprintf(w, "%s  %-6s %d entities  %s  took %s\n",
			s.EndActual.Format(time.RFC3339), s.Type, s.Entities, formatChanges(s.Changes), s.EndActual.Sub(s.StartActual))
	}
}

func formatChanges(changes map[model.ChangeType]int) string {
	var parts []string
	for _, t := range slices.Sorted(maps.Keys(changes)) {
		if changes[t] > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", t, changes[t]))
		}
	}
	if len(parts) == 0 {
		return "no changes"
	}
	return strings.Join(parts, " ")
}
