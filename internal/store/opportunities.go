package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/propensity-cli/internal/model"
	"github.com/sells-group/propensity-cli/internal/opportunity"
)

// TryRebuildLock takes a transaction-scoped advisory lock on a dedicated
// connection. The lock lives until unlock ends the transaction.
func (s *PostgresStore) TryRebuildLock(ctx context.Context, key int64) (func(context.Context) error, bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: begin lock tx")
	}

	var acquired bool
	if err := tx.QueryRow(ctx, "SELECT pg_try_advisory_xact_lock($1)", key).Scan(&acquired); err != nil {
		_ = tx.Rollback(ctx)
		return nil, false, eris.Wrap(err, "postgres: try advisory lock")
	}
	if !acquired {
		_ = tx.Rollback(ctx)
		return nil, false, nil
	}

	unlock := func(ctx context.Context) error {
		return eris.Wrap(tx.Commit(ctx), "postgres: release advisory lock")
	}
	return unlock, true, nil
}

// ListQualifyingIncidents returns safety and news incidents in the window whose
// severity hint is at least f.MinSeverity, oldest first.
func (s *PostgresStore) ListQualifyingIncidents(ctx context.Context, f opportunity.IncidentFilter) ([]model.Incident, error) {
	query := `SELECT ` + incidentColumns + ` FROM incidents WHERE severity_hint >= $1 AND category <> $2`
	args := []any{f.MinSeverity, string(model.CategoryLaggingMetric)}
	argIdx := 3

	if f.Since != nil {
		query += fmt.Sprintf(` AND occurred_on >= $%d`, argIdx)
		args = append(args, *f.Since)
		argIdx++
	}
	if f.Until != nil {
		query += fmt.Sprintf(` AND occurred_on <= $%d`, argIdx)
		args = append(args, *f.Until)
	}
	query += ` ORDER BY occurred_on, id`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list qualifying incidents")
	}
	defer rows.Close()

	var out []model.Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan incident")
		}
		out = append(out, *inc)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list qualifying incidents iterate")
}

// UpsertOpportunity writes the (target, incident) row. xmax is 0 only for a
// freshly inserted tuple.
func (s *PostgresStore) UpsertOpportunity(ctx context.Context, o *model.Opportunity) (bool, error) {
	var inserted bool
	err := s.pool.QueryRow(ctx,
		`INSERT INTO opportunities (target_id, target_role, driver_incident_id, score, confidence, talk_track)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (target_id, driver_incident_id) DO UPDATE SET
			target_role = EXCLUDED.target_role,
			score = EXCLUDED.score,
			confidence = EXCLUDED.confidence,
			talk_track = EXCLUDED.talk_track,
			updated_at = now()
		 RETURNING id, created_at, updated_at, (xmax = 0)`,
		o.TargetID, string(o.TargetRole), o.DriverIncidentID, o.Score, o.Confidence, string(o.TalkTrack),
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt, &inserted)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: upsert opportunity target %d incident %d", o.TargetID, o.DriverIncidentID)
	}
	return inserted, nil
}

func (s *PostgresStore) RecordRun(ctx context.Context, run *model.RebuildRun) error {
	errs := run.Errors
	if errs == nil {
		errs = []string{}
	}
	errsJSON, err := json.Marshal(errs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run errors")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO rebuild_runs (id, since, until, incidents, created, updated, skipped, errors, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		run.ID, run.Since, run.Until, run.Incidents, run.Created, run.Updated, run.Skipped,
		errsJSON, run.StartedAt, run.FinishedAt,
	)
	return eris.Wrapf(err, "postgres: record run %s", run.ID)
}

func (s *PostgresStore) ListRebuildRuns(ctx context.Context, limit int) ([]model.RebuildRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, since, until, incidents, created, updated, skipped, errors, started_at, finished_at
		 FROM rebuild_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list rebuild runs")
	}
	defer rows.Close()

	var runs []model.RebuildRun
	for rows.Next() {
		var (
			r        model.RebuildRun
			errsJSON []byte
		)
		if err := rows.Scan(&r.ID, &r.Since, &r.Until, &r.Incidents, &r.Created, &r.Updated, &r.Skipped,
			&errsJSON, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan rebuild run")
		}
		if len(errsJSON) > 0 {
			if err := json.Unmarshal(errsJSON, &r.Errors); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal run errors")
			}
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list rebuild runs iterate")
}

// ListOpportunities returns opportunities ordered by score descending, then id.
func (s *PostgresStore) ListOpportunities(ctx context.Context, filter OpportunityFilter) ([]model.Opportunity, error) {
	query := `SELECT o.id, o.target_id, c.name, o.target_role, o.driver_incident_id, o.score,
		o.confidence, o.talk_track, o.created_at, o.updated_at
		FROM opportunities o JOIN companies c ON c.id = o.target_id
		WHERE o.score >= $1`
	args := []any{filter.MinScore}
	argIdx := 2

	if filter.TargetID > 0 {
		query += fmt.Sprintf(` AND o.target_id = $%d`, argIdx)
		args = append(args, filter.TargetID)
		argIdx++
	}
	query += ` ORDER BY o.score DESC, o.id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list opportunities")
	}
	defer rows.Close()

	var out []model.Opportunity
	for rows.Next() {
		var o model.Opportunity
		if err := rows.Scan(&o.ID, &o.TargetID, &o.TargetName, &o.TargetRole, &o.DriverIncidentID,
			&o.Score, &o.Confidence, &o.TalkTrack, &o.CreatedAt, &o.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan opportunity")
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list opportunities iterate")
}
