package main

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/propensity-cli/internal/config"
	"github.com/sells-group/propensity-cli/internal/ingest"
	"github.com/sells-group/propensity-cli/internal/resolve"
	"github.com/sells-group/propensity-cli/internal/scorer"
	"github.com/sells-group/propensity-cli/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	if err := cfg.Validate(config.ModeStore); err != nil {
		return nil, err
	}
	return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{MaxConns: cfg.Store.MaxConns})
}

func initResolver(st store.Store) *resolve.Resolver {
	return resolve.NewResolver(st, cfg.Resolve)
}

func initImporter(st store.Store) *ingest.Importer {
	return ingest.NewImporter(initResolver(st), st, cfg.Resolve.AliasConfidence)
}

func initScorer(st scorer.Store) (*scorer.Scorer, error) {
	tables, err := scorer.LoadConfig(cfg.Scoring.ConfigPath)
	if err != nil {
		return nil, err
	}
	return scorer.New(st, tables), nil
}

// parseDateFlag parses an optional YYYY-MM-DD flag value.
func parseDateFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, eris.Wrapf(err, "--%s must be YYYY-MM-DD", name)
	}
	return &t, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
