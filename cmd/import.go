package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/propensity-cli/internal/ingest"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Bulk import relationships, aliases or lagging metrics from CSV/XLSX",
}

var importRelationshipsCmd = &cobra.Command{
	Use:   "relationships <file>",
	Short: "Import sub-to-GC/owner relationships",
	Long:  "Each row names a sub and a GC and/or owner, with optional project, trade, contract value and dates. Companies and projects are created as needed. Bad rows are reported and skipped.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sheet, _ := cmd.Flags().GetString("sheet")
		rows, err := readRows[ingest.RelationshipRow](args[0], sheet)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := initImporter(st).ImportRelationships(ctx, rows)
		if err != nil {
			return eris.Wrap(err, "import relationships")
		}
		logImport("relationships", args[0], res)
		return writeJSON(os.Stdout, res)
	},
}

var importAliasesCmd = &cobra.Command{
	Use:   "aliases <file>",
	Short: "Import canonical_name/alias pairs",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sheet, _ := cmd.Flags().GetString("sheet")
		rows, err := readRows[ingest.AliasRow](args[0], sheet)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := initImporter(st).ImportAliases(ctx, rows)
		if err != nil {
			return eris.Wrap(err, "import aliases")
		}
		logImport("aliases", args[0], res)
		return writeJSON(os.Stdout, res)
	},
}

var importMetricsCmd = &cobra.Command{
	Use:   "metrics <file>",
	Short: "Import yearly lagging injury metrics per sub",
	Long:  "Each row names a sub and a year with dart_rate, or darts and hours_worked. Rows are written in one bulk upsert; an existing (sub, year) is replaced.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sheet, _ := cmd.Flags().GetString("sheet")
		rows, err := readRows[ingest.MetricRow](args[0], sheet)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := initImporter(st).ImportMetrics(ctx, rows)
		if err != nil {
			return eris.Wrap(err, "import metrics")
		}
		logImport("metrics", args[0], res)
		return writeJSON(os.Stdout, res)
	},
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file|->",
	Short: "Ingest normalized incident records (JSON array or NDJSON)",
	Long:  "Reads incident records produced by source adapters, resolves or creates each subcontractor, and stores the incidents. Lagging-metric records also update the sub's yearly metrics.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		var r io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return eris.Wrapf(err, "open %s", args[0])
			}
			defer f.Close() //nolint:errcheck
			r = f
		}
		records, err := ingest.ReadIncidents(r)
		if err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := initImporter(st).Incidents(ctx, records)
		if err != nil {
			return eris.Wrap(err, "ingest")
		}
		logImport("incidents", args[0], res)
		return writeJSON(os.Stdout, res)
	},
}

func init() {
	importCmd.PersistentFlags().String("sheet", "", "worksheet name for .xlsx files (default first sheet)")

	importCmd.AddCommand(importRelationshipsCmd, importAliasesCmd, importMetricsCmd)
	rootCmd.AddCommand(importCmd, ingestCmd)
}

// readRows decodes a CSV or XLSX file, honoring an explicit sheet for workbooks.
func readRows[T any](path, sheet string) ([]T, error) {
	if sheet != "" && strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return ingest.ReadXLSX[T](path, sheet)
	}
	return ingest.ReadFile[T](path)
}

func logImport(kind, path string, res *ingest.Result) {
	zap.L().Info("import complete",
		zap.String("kind", kind),
		zap.String("file", path),
		zap.Int("processed", res.Processed),
		zap.Int("created", res.Created),
		zap.Int("errors", len(res.Errors)),
	)
}
