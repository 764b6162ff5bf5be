package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/outboundlabs/leadflow/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show lead counts and recent run history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("status"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		stats, err := st.Stats(ctx)
		if err != nil {
			return eris.Wrap(err, "status stats")
		}

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.ListRuns(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "status runs")
		}

		formatStats(os.Stdout, stats)
		fmt.Fprintln(os.Stdout)
		formatRuns(os.Stdout, runs)
		return nil
	},
}

func init() {
	statusCmd.Flags().Int("limit", 10, "max number of runs to display")
	rootCmd.AddCommand(statusCmd)
}

// statusOrder fixes the display order of lifecycle buckets.
var statusOrder = []model.Status{
	model.StatusNew, model.StatusQueued, model.StatusContacted,
	model.StatusReplied, model.StatusMeeting, model.StatusWon, model.StatusLost,
}

func formatStats(out io.Writer, stats *model.Stats) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total leads:\t%d\n", stats.TotalLeads)
	for _, s := range statusOrder {
		if n := stats.ByStatus[s]; n > 0 {
			_, _ = fmt.Fprintf(w, "  %s:\t%d\n", s, n)
		}
	}
	_ = w.Flush()
}

func formatRuns(out io.Writer, runs []model.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tKIND\tSTATUS\tSTARTED\tDURATION\tSTORED\tENQUEUED\tSYNCED\tERRORS")

	for _, r := range runs {
		dur := ""
		if r.CompletedAt != nil {
			dur = r.CompletedAt.Sub(r.StartedAt).Round(time.Second).String()
		}

		stored, enqueued, synced, errs := "-", "-", "-", "-"
		if r.Summary != nil {
			stored = fmt.Sprintf("%d", r.Summary.Stored)
			enqueued = fmt.Sprintf("%d", r.Summary.Enqueued)
			synced = fmt.Sprintf("%d", r.Summary.Synced)
			errs = fmt.Sprintf("%d", r.Summary.Errors.Total())
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			r.Kind,
			r.Status,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
			stored,
			enqueued,
			synced,
			errs,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
