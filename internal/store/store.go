// Package store persists companies, relationships, incidents and opportunities in Postgres.
package store

import (
	"context"

	"github.com/sells-group/propensity-cli/internal/ingest"
	"github.com/sells-group/propensity-cli/internal/model"
	"github.com/sells-group/propensity-cli/internal/opportunity"
	"github.com/sells-group/propensity-cli/internal/resolve"
	"github.com/sells-group/propensity-cli/internal/scorer"
)

// OpportunityFilter specifies criteria for listing opportunities.
type OpportunityFilter struct {
	MinScore float64 `json:"min_score,omitempty"`
	TargetID int64   `json:"target_id,omitempty"`
	Limit    int     `json:"limit,omitempty"`
}

// Store is every persistence interface the core packages declare, plus the
// read paths used by the CLI.
type Store interface {
	resolve.Store
	resolve.ProjectFinder
	ingest.Store
	scorer.Store
	opportunity.Store

	GetIncident(ctx context.Context, id int64) (*model.Incident, error)
	ListOpportunities(ctx context.Context, filter OpportunityFilter) ([]model.Opportunity, error)
	ListRebuildRuns(ctx context.Context, limit int) ([]model.RebuildRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

var _ Store = (*PostgresStore)(nil)
