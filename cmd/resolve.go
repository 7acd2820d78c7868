package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/propensity-cli/internal/model"
	"github.com/sells-group/propensity-cli/internal/resolve"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <name>",
	Short: "Resolve a raw company name to a canonical company",
	Long:  "Looks the name up by exact normalized name, alias and fuzzy match. With --create-as, a name that matches nothing is added as a new canonical company with that role.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		createAs, _ := cmd.Flags().GetString("create-as")
		policy := createPolicy(createAs)

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		c, created, err := initResolver(st).FindOrCreate(ctx, args[0], policy)
		if err != nil {
			return eris.Wrap(err, "resolve")
		}
		if c == nil {
			fmt.Fprintf(os.Stderr, "No match for %q.\n", args[0])
			return nil
		}
		if created {
			fmt.Fprintf(os.Stderr, "Created company %d as %s.\n", c.ID, c.Role)
		}
		return writeJSON(os.Stdout, c)
	},
}

// createPolicy maps the --create-as flag to a resolver policy. Blank means lookup only.
func createPolicy(role string) resolve.CreatePolicy {
	if strings.TrimSpace(role) == "" {
		return resolve.LookupOnly
	}
	return resolve.CreateAs(model.ParseRole(role))
}

var similarCmd = &cobra.Command{
	Use:   "similar <name>",
	Short: "List fuzzy matches for a name with their scores",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		matches, err := initResolver(st).FindSimilar(ctx, args[0], limit)
		if err != nil {
			return eris.Wrap(err, "similar")
		}
		if len(matches) == 0 {
			fmt.Fprintln(os.Stderr, "No similar companies found.")
			return nil
		}
		formatMatches(os.Stdout, matches)
		return nil
	},
}

var aliasCmd = &cobra.Command{
	Use:   "alias <company-id> <alias>",
	Short: "Record an alternate name for a company",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		companyID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "invalid company id %q", args[0])
		}
		confidence, err := aliasConfidence(cmd)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		added, err := initResolver(st).AddAlias(ctx, companyID, args[1], confidence)
		if err != nil {
			return eris.Wrap(err, "alias")
		}
		if added {
			fmt.Fprintf(os.Stdout, "Alias %q added to company %d.\n", args[1], companyID)
		} else {
			fmt.Fprintf(os.Stdout, "Alias %q already recorded for company %d.\n", args[1], companyID)
		}
		return nil
	},
}

// assertedAliasConfidence is the confidence of an alias entered by hand.
// Uploaded aliases use resolve.alias_confidence instead.
const assertedAliasConfidence = 1.0

func aliasConfidence(cmd *cobra.Command) (float64, error) {
	confidence, err := cmd.Flags().GetFloat64("confidence")
	if err != nil {
		return 0, eris.Wrap(err, "alias: confidence flag")
	}
	if confidence < 0 || confidence > 1 {
		return 0, eris.Errorf("--confidence must be between 0 and 1, got %g", confidence)
	}
	return confidence, nil
}

var suggestLinksCmd = &cobra.Command{
	Use:   "suggest-links <sub-id>",
	Short: "Suggest GC relationships for a sub from projects at an incident location",
	Long:  "Finds projects at the given location whose timeline, widened by the buffer, covers the incident date. Suggestions are printed, not stored.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		subID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return eris.Wrapf(err, "invalid sub id %q", args[0])
		}
		location, _ := cmd.Flags().GetString("location")
		dateStr, _ := cmd.Flags().GetString("date")
		buffer, _ := cmd.Flags().GetDuration("buffer")

		occurred, err := parseDateFlag("date", dateStr)
		if err != nil {
			return err
		}
		if occurred == nil {
			return eris.New("--date is required")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rels, err := resolve.SuggestRelationships(ctx, st, subID, location, *occurred, buffer)
		if err != nil {
			return eris.Wrap(err, "suggest links")
		}
		if len(rels) == 0 {
			fmt.Fprintln(os.Stderr, "No candidate projects found.")
			return nil
		}
		return writeJSON(os.Stdout, rels)
	},
}

func init() {
	similarCmd.Flags().Int("limit", 0, "max matches to return (0 uses resolve.similar_limit)")
	resolveCmd.Flags().String("create-as", "", "create an unmatched name with this role (gc, owner, sub); blank only looks up")
	aliasCmd.Flags().Float64("confidence", assertedAliasConfidence, "alias confidence between 0 and 1")

	suggestLinksCmd.Flags().String("location", "", "incident location (required)")
	suggestLinksCmd.Flags().String("date", "", "incident date, YYYY-MM-DD (required)")
	suggestLinksCmd.Flags().Duration("buffer", resolve.DefaultTimingBuffer, "slack around project start and end dates")
	_ = suggestLinksCmd.MarkFlagRequired("location")

	rootCmd.AddCommand(resolveCmd, similarCmd, aliasCmd, suggestLinksCmd)
}

// formatMatches writes a tabular list of fuzzy matches to w.
func formatMatches(out io.Writer, matches []resolve.Match) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tNAME\tROLE\tSCORE")
	_, _ = fmt.Fprintln(w, "--\t----\t----\t-----")
	for _, m := range matches {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%.1f\n", m.Company.ID, truncate(m.Company.Name, 40), roleOrDash(m.Company.Role), m.Score)
	}
	_ = w.Flush()
}

func roleOrDash(r model.Role) string {
	if r == "" {
		return "-"
	}
	return string(r)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
