package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/propensity-cli/internal/model"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent opportunity rebuild runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		limit, _ := cmd.Flags().GetInt("limit")
		showErrors, _ := cmd.Flags().GetBool("errors")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		runs, err := st.ListRebuildRuns(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "runs")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRunsList(os.Stdout, runs)
		if showErrors {
			formatRunErrors(os.Stdout, runs)
		}
		return nil
	},
}

func init() {
	runsCmd.Flags().Int("limit", 20, "max number of runs to display")
	runsCmd.Flags().Bool("errors", false, "also print per-incident errors")
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of rebuild runs to w.
func formatRunsList(out io.Writer, runs []model.RebuildRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tWINDOW\tINCIDENTS\tCREATED\tUPDATED\tSKIPPED\tERRORS\tSTARTED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t------\t---------\t-------\t-------\t-------\t------\t-------\t--------")

	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
			truncateID(r.ID),
			formatWindow(r.Since, r.Until),
			r.Incidents,
			r.Created,
			r.Updated,
			r.Skipped,
			len(r.Errors),
			r.StartedAt.Format("2006-01-02 15:04"),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Second).String(),
		)
	}
	_ = w.Flush()
}

func formatRunErrors(out io.Writer, runs []model.RebuildRun) {
	for _, r := range runs {
		for _, e := range r.Errors {
			_, _ = fmt.Fprintf(out, "%s  %s\n", truncateID(r.ID), e)
		}
	}
}

// formatWindow renders an optional date range; open ends print as "*".
func formatWindow(since, until *time.Time) string {
	if since == nil && until == nil {
		return "all"
	}
	from, to := "*", "*"
	if since != nil {
		from = since.Format(time.DateOnly)
	}
	if until != nil {
		to = until.Format(time.DateOnly)
	}
	return from + ".." + to
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
