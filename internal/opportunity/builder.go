// Package opportunity materializes ranked (GC-or-owner, driver incident) opportunities.
package opportunity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/propensity-cli/internal/config"
	"github.com/sells-group/propensity-cli/internal/model"
	"github.com/sells-group/propensity-cli/internal/resilience"
	"github.com/sells-group/propensity-cli/internal/scorer"
)

// ErrRebuildInProgress is returned when another rebuild holds the lock.
var ErrRebuildInProgress = eris.New("opportunity: rebuild already in progress")

// IncidentFilter selects driver incidents for a rebuild. Nil bounds are open.
type IncidentFilter struct {
	Since       *time.Time
	Until       *time.Time
	MinSeverity float64
}

// Store is the persistence the builder needs on top of the scorer's reads.
type Store interface {
	scorer.Store
	// TryRebuildLock takes the rebuild lock without waiting. The returned
	// function releases it.
	TryRebuildLock(ctx context.Context, key int64) (unlock func(context.Context) error, acquired bool, err error)
	ListQualifyingIncidents(ctx context.Context, f IncidentFilter) ([]model.Incident, error)
	// UpsertOpportunity inserts or overwrites the row keyed by
	// (TargetID, DriverIncidentID) and reports whether it was inserted.
	UpsertOpportunity(ctx context.Context, o *model.Opportunity) (created bool, err error)
	RecordRun(ctx context.Context, run *model.RebuildRun) error
}

// Result summarizes a rebuild.
type Result struct {
	RunID     string   `json:"run_id"`
	Incidents int      `json:"incidents"`
	Created   int      `json:"created"`
	Updated   int      `json:"updated"`
	Skipped   int      `json:"skipped"` // pairs below the score floor
	Errors    []string `json:"errors"`
}

// Builder runs the scorer over qualifying incidents and upserts opportunities.
type Builder struct {
	store  Store
	scorer *scorer.Scorer
	cfg    config.RebuildConfig
	retry  resilience.Policy
	now    func() time.Time
}

// NewBuilder creates a Builder. Transient database failures are retried up
// to cfg.MaxAttempts times per statement.
func NewBuilder(store Store, s *scorer.Scorer, cfg config.RebuildConfig) *Builder {
	retry := resilience.DefaultPolicy()
	if cfg.MaxAttempts > 0 {
		retry.MaxAttempts = cfg.MaxAttempts
	}
	return &Builder{store: store, scorer: s, cfg: cfg, retry: retry, now: time.Now}
}

// Rebuild scores every (GC-or-owner, incident) pair for incidents in the window
// whose severity hint meets MinSeverity, keeps pairs scoring at least MinScore,
// and upserts them. Failures are recorded per incident and do not stop the run.
// Running it twice over the same data only updates.
func (b *Builder) Rebuild(ctx context.Context, since, until *time.Time) (*Result, error) {
	run := &model.RebuildRun{
		ID:        uuid.NewString(),
		Since:     since,
		Until:     until,
		StartedAt: b.now(),
	}
	log := zap.L().With(zap.String("component", "opportunity.rebuild"), zap.String("run_id", run.ID))

	unlock, acquired, err := b.store.TryRebuildLock(ctx, b.cfg.LockKey)
	if err != nil {
		return nil, eris.Wrap(err, "opportunity: acquire rebuild lock")
	}
	if !acquired {
		return nil, ErrRebuildInProgress
	}
	defer func() {
		if err := unlock(context.WithoutCancel(ctx)); err != nil {
			log.Warn("opportunity: release rebuild lock", zap.Error(err))
		}
	}()

	incidents, err := b.store.ListQualifyingIncidents(ctx, IncidentFilter{
		Since:       since,
		Until:       until,
		MinSeverity: b.cfg.MinSeverity,
	})
	if err != nil {
		return nil, eris.Wrap(err, "opportunity: list incidents")
	}
	run.Incidents = len(incidents)
	log.Info("opportunity: rebuild started", zap.Int("incidents", len(incidents)))

	for i := range incidents {
		if err := ctx.Err(); err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("rebuild cancelled after %d of %d incidents", i, len(incidents)))
			break
		}
		b.rebuildIncident(ctx, &incidents[i], run, log)
	}

	run.FinishedAt = b.now()
	err = resilience.Do(context.WithoutCancel(ctx), b.retry, "record run", func(ctx context.Context) error {
		return b.store.RecordRun(ctx, run)
	})
	if err != nil {
		log.Warn("opportunity: record run", zap.Error(err))
	}

	log.Info("opportunity: rebuild complete",
		zap.Int("created", run.Created),
		zap.Int("updated", run.Updated),
		zap.Int("skipped", run.Skipped),
		zap.Int("errors", len(run.Errors)),
		zap.Duration("elapsed", run.FinishedAt.Sub(run.StartedAt)),
	)

	return &Result{
		RunID:     run.ID,
		Incidents: run.Incidents,
		Created:   run.Created,
		Updated:   run.Updated,
		Skipped:   run.Skipped,
		Errors:    run.Errors,
	}, ctx.Err()
}

// rebuildIncident scores one incident against each distinct GC/owner that hired its sub.
func (b *Builder) rebuildIncident(ctx context.Context, inc *model.Incident, run *model.RebuildRun, log *zap.Logger) {
	fail := func(err error) {
		log.Warn("opportunity: incident failed", zap.Int64("incident_id", inc.ID), zap.Error(err))
		run.Errors = append(run.Errors, fmt.Sprintf("incident %d: %v", inc.ID, err))
	}

	ev, err := resilience.DoVal(ctx, b.retry, "gather evidence", func(ctx context.Context) (*scorer.Evidence, error) {
		return b.scorer.Gather(ctx, inc)
	})
	if err != nil {
		fail(err)
		return
	}

	for _, t := range distinctTargets(ev.Relationships) {
		target, err := resilience.DoVal(ctx, b.retry, "get target", func(ctx context.Context) (*model.Company, error) {
			return b.store.GetCompany(ctx, t.CompanyID)
		})
		if err != nil {
			fail(eris.Wrapf(err, "opportunity: get target %d", t.CompanyID))
			continue
		}
		if target == nil {
			fail(eris.Errorf("opportunity: target %d not found", t.CompanyID))
			continue
		}

		res := b.scorer.Compute(target, inc, ev)
		scorer.LogResult(res)
		if res.RawTotal < b.cfg.MinScore {
			run.Skipped++
			continue
		}

		opp := &model.Opportunity{
			TargetID:         target.ID,
			TargetRole:       t.Role,
			DriverIncidentID: inc.ID,
			Score:            res.Total,
			Confidence:       res.Confidence,
			TalkTrack:        res.TalkTrack,
		}
		created, err := resilience.DoVal(ctx, b.retry, "upsert opportunity", func(ctx context.Context) (bool, error) {
			return b.store.UpsertOpportunity(ctx, opp)
		})
		if err != nil {
			fail(eris.Wrapf(err, "opportunity: upsert target %d", target.ID))
			continue
		}
		if created {
			run.Created++
		} else {
			run.Updated++
		}
	}
}

// distinctTargets flattens relationship targets, keeping the first role seen per company.
func distinctTargets(rels []model.Relationship) []model.Target {
	seen := make(map[int64]bool)
	var out []model.Target
	for _, r := range rels {
		for _, t := range r.Targets() {
			if seen[t.CompanyID] {
				continue
			}
			seen[t.CompanyID] = true
			out = append(out, t)
		}
	}
	return out
}
