package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/propensity-cli/internal/config"
	"github.com/sells-group/propensity-cli/internal/model"
	"github.com/sells-group/propensity-cli/internal/opportunity"
	"github.com/sells-group/propensity-cli/internal/scorer"
	"github.com/sells-group/propensity-cli/internal/store"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild opportunities from qualifying incidents",
	Long:  "Scores every GC and owner linked to the sub of each incident in the window whose severity hint meets rebuild.min_severity, and upserts pairs scoring at least rebuild.min_score. Safe to re-run; only one rebuild runs at a time.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		sinceStr, _ := cmd.Flags().GetString("since")
		untilStr, _ := cmd.Flags().GetString("until")
		since, err := parseDateFlag("since", sinceStr)
		if err != nil {
			return err
		}
		until, err := parseDateFlag("until", untilStr)
		if err != nil {
			return err
		}
		if since != nil && until != nil && until.Before(*since) {
			return eris.New("--until is before --since")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		s, err := initScorer(st)
		if err != nil {
			return err
		}

		res, err := opportunity.NewBuilder(st, s, cfg.Rebuild).Rebuild(ctx, since, until)
		if errors.Is(err, opportunity.ErrRebuildInProgress) {
			fmt.Fprintln(os.Stderr, "Another rebuild is in progress; try again later.")
			return err
		}
		if res != nil {
			if werr := writeJSON(os.Stdout, res); werr != nil && err == nil {
				err = werr
			}
		}
		return eris.Wrap(err, "rebuild")
	},
}

var opportunitiesCmd = &cobra.Command{
	Use:   "opportunities",
	Short: "List opportunities by score",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		minScore, _ := cmd.Flags().GetFloat64("min-score")
		targetID, _ := cmd.Flags().GetInt64("target")
		limit, _ := cmd.Flags().GetInt("limit")
		asJSON, _ := cmd.Flags().GetBool("json")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		opps, err := st.ListOpportunities(ctx, store.OpportunityFilter{
			MinScore: minScore,
			TargetID: targetID,
			Limit:    limit,
		})
		if err != nil {
			return eris.Wrap(err, "opportunities")
		}
		if asJSON {
			return writeJSON(os.Stdout, opps)
		}
		if len(opps) == 0 {
			fmt.Fprintln(os.Stderr, "No opportunities found.")
			return nil
		}

		tables, err := scorer.LoadConfig(cfg.Scoring.ConfigPath)
		if err != nil {
			return err
		}
		formatOpportunities(os.Stdout, opps, tables)
		return nil
	},
}

func init() {
	rebuildCmd.Flags().String("since", "", "only incidents on or after this date (YYYY-MM-DD)")
	rebuildCmd.Flags().String("until", "", "only incidents on or before this date (YYYY-MM-DD)")

	opportunitiesCmd.Flags().Float64("min-score", 0, "minimum score")
	opportunitiesCmd.Flags().Int64("target", 0, "only this GC/owner company id")
	opportunitiesCmd.Flags().Int("limit", 50, "max number of opportunities to display")
	opportunitiesCmd.Flags().Bool("json", false, "print JSON instead of a table")

	rootCmd.AddCommand(rebuildCmd, opportunitiesCmd)
}

// formatOpportunities writes a tabular list of opportunities to w.
func formatOpportunities(out io.Writer, opps []model.Opportunity, tables config.ScorerConfig) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "SCORE\tTARGET\tROLE\tINCIDENT\tCONFIDENCE\tTALK TRACK\tUPDATED")
	_, _ = fmt.Fprintln(w, "-----\t------\t----\t--------\t----------\t----------\t-------")
	for _, o := range opps {
		target := o.TargetName
		if target == "" {
			target = fmt.Sprintf("#%d", o.TargetID)
		}
		_, _ = fmt.Fprintf(w, "%.1f\t%s\t%s\t%d\t%.2f\t%s\t%s\n",
			o.Score,
			truncate(target, 30),
			roleOrDash(o.TargetRole),
			o.DriverIncidentID,
			o.Confidence,
			scorer.Label(tables, o.TalkTrack),
			o.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}
