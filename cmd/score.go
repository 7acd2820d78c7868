package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/propensity-cli/internal/scorer"
)

// scoreOutput is a scorer.Result with the talk-track display label.
type scoreOutput struct {
	*scorer.Result
	TalkTrackLabel string `json:"talk_track_label"`
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score one GC/owner against one driver incident",
	Long:  "Computes the propensity score, component breakdown, rationale and talk-track for a (target, incident) pair. Nothing is written.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		targetID, _ := cmd.Flags().GetInt64("target")
		incidentID, _ := cmd.Flags().GetInt64("incident")

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		target, err := st.GetCompany(ctx, targetID)
		if err != nil {
			return eris.Wrap(err, "score")
		}
		if target == nil {
			return eris.Errorf("score: target %d not found", targetID)
		}
		incident, err := st.GetIncident(ctx, incidentID)
		if err != nil {
			return eris.Wrap(err, "score")
		}
		if incident == nil {
			return eris.Errorf("score: incident %d not found", incidentID)
		}

		s, err := initScorer(st)
		if err != nil {
			return err
		}
		res, err := s.Score(ctx, target, incident)
		if err != nil {
			return eris.Wrap(err, "score")
		}
		return writeJSON(os.Stdout, scoreOutput{
			Result:         res,
			TalkTrackLabel: scorer.Label(s.Config(), res.TalkTrack),
		})
	},
}

var scoringCmd = &cobra.Command{
	Use:   "scoring",
	Short: "Validate and print the effective scoring tables",
	Long:  "Loads scoring.config_path over the built-in defaults, validates the result and prints it as YAML. Does not touch the database.",
	RunE: func(_ *cobra.Command, _ []string) error {
		tables, err := scorer.LoadConfig(cfg.Scoring.ConfigPath)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(os.Stdout)
		enc.SetIndent(2)
		defer enc.Close() //nolint:errcheck
		return enc.Encode(tables)
	},
}

func init() {
	scoreCmd.Flags().Int64("target", 0, "GC or owner company id (required)")
	scoreCmd.Flags().Int64("incident", 0, "driver incident id (required)")
	_ = scoreCmd.MarkFlagRequired("target")
	_ = scoreCmd.MarkFlagRequired("incident")

	rootCmd.AddCommand(scoreCmd, scoringCmd)
}
