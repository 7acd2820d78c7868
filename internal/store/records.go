package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/propensity-cli/internal/db"
	"github.com/sells-group/propensity-cli/internal/model"
)

const projectColumns = `id, name, location, owner_id, gc_id, start_date, end_date`

func scanProject(row pgx.Row) (*model.Project, error) {
	var p model.Project
	if err := row.Scan(&p.ID, &p.Name, &p.Location, &p.OwnerID, &p.GCID, &p.StartDate, &p.EndDate); err != nil {
		return nil, err
	}
	return &p, nil
}

// FindProjectByName returns the oldest project with exactly this name.
func (s *PostgresStore) FindProjectByName(ctx context.Context, name string) (*model.Project, error) {
	p, err := scanProject(s.pool.QueryRow(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE name = $1 ORDER BY id LIMIT 1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: find project %q", name)
	}
	return p, nil
}

// ProjectsByLocation returns projects whose location contains location,
// ignoring case. The input is matched literally, not as a LIKE pattern.
func (s *PostgresStore) ProjectsByLocation(ctx context.Context, location string) ([]model.Project, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+projectColumns+` FROM projects WHERE strpos(lower(location), lower($1)) > 0 ORDER BY id`, location)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: projects by location")
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan project")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: projects by location iterate")
}

func (s *PostgresStore) CreateProject(ctx context.Context, p *model.Project) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO projects (name, location, owner_id, gc_id, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		p.Name, p.Location, p.OwnerID, p.GCID, p.StartDate, p.EndDate,
	).Scan(&p.ID)
	if err != nil {
		return insertErr(err, "create project")
	}
	return nil
}

func (s *PostgresStore) CreateRelationship(ctx context.Context, r *model.Relationship) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO relationships (sub_id, gc_id, owner_id, project_id, trade, contract_value, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		r.SubID, r.GCID, r.OwnerID, r.ProjectID, r.Trade, r.ContractValue, r.StartDate, r.EndDate,
	).Scan(&r.ID)
	if err != nil {
		return insertErr(err, "create relationship")
	}
	return nil
}

func (s *PostgresStore) RelationshipsForSub(ctx context.Context, subID int64) ([]model.Relationship, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, sub_id, gc_id, owner_id, project_id, trade, contract_value::float8, start_date, end_date
		 FROM relationships WHERE sub_id = $1 ORDER BY id`,
		subID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: relationships for sub %d", subID)
	}
	defer rows.Close()

	var out []model.Relationship
	for rows.Next() {
		var r model.Relationship
		if err := rows.Scan(&r.ID, &r.SubID, &r.GCID, &r.OwnerID, &r.ProjectID, &r.Trade,
			&r.ContractValue, &r.StartDate, &r.EndDate); err != nil {
			return nil, eris.Wrap(err, "postgres: scan relationship")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: relationships iterate")
}

const incidentColumns = `id, source, category, company_id, project_id, occurred_on, severity_hint, attributes, link, created_at`

func scanIncident(row pgx.Row) (*model.Incident, error) {
	var (
		inc   model.Incident
		attrs []byte
	)
	if err := row.Scan(&inc.ID, &inc.Source, &inc.Category, &inc.CompanyID, &inc.ProjectID,
		&inc.OccurredOn, &inc.SeverityHint, &attrs, &inc.Link, &inc.CreatedAt); err != nil {
		return nil, err
	}
	d, err := model.DecodeDetails(inc.Category, attrs)
	if err != nil {
		return nil, err
	}
	inc.Details = d
	return &inc, nil
}

// CreateIncident stores an incident. A repeat of (source, category, company,
// date, link) returns db.ErrDuplicate.
func (s *PostgresStore) CreateIncident(ctx context.Context, i *model.Incident) error {
	attrs, err := model.EncodeDetails(i.Details)
	if err != nil {
		return eris.Wrap(err, "postgres: encode incident attributes")
	}
	err = s.pool.QueryRow(ctx,
		`INSERT INTO incidents (source, category, company_id, project_id, occurred_on, severity_hint, attributes, link)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		i.Source, string(i.Category), i.CompanyID, i.ProjectID, i.OccurredOn, i.SeverityHint, attrs, i.Link,
	).Scan(&i.ID, &i.CreatedAt)
	if err != nil {
		return insertErr(err, "create incident")
	}
	return nil
}

func (s *PostgresStore) GetIncident(ctx context.Context, id int64) (*model.Incident, error) {
	inc, err := scanIncident(s.pool.QueryRow(ctx,
		`SELECT `+incidentColumns+` FROM incidents WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get incident %d", id)
	}
	return inc, nil
}

func (s *PostgresStore) CountIncidents(ctx context.Context, companyID int64, categories []model.Category, since time.Time) (int, error) {
	cats := make([]string, len(categories))
	for i, c := range categories {
		cats[i] = string(c)
	}
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM incidents
		 WHERE company_id = $1 AND category = ANY($2) AND occurred_on >= $3`,
		companyID, cats, since,
	).Scan(&n)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: count incidents for company %d", companyID)
	}
	return n, nil
}

// UpsertMetric inserts or replaces the sub's metric for the year.
func (s *PostgresStore) UpsertMetric(ctx context.Context, m *model.LaggingMetric) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO lagging_metrics (sub_id, year, recordables, darts, hours_worked, dart_rate, source_link)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (sub_id, year) DO UPDATE SET
			recordables = EXCLUDED.recordables,
			darts = EXCLUDED.darts,
			hours_worked = EXCLUDED.hours_worked,
			dart_rate = EXCLUDED.dart_rate,
			source_link = EXCLUDED.source_link
		 RETURNING id`,
		m.SubID, m.Year, m.Recordables, m.DARTs, m.HoursWorked, m.DARTRate, m.SourceLink,
	).Scan(&m.ID)
	return eris.Wrapf(err, "postgres: upsert metric for sub %d", m.SubID)
}

// LatestMetric returns the sub's most recent metric by year.
func (s *PostgresStore) LatestMetric(ctx context.Context, subID int64) (*model.LaggingMetric, error) {
	var m model.LaggingMetric
	err := s.pool.QueryRow(ctx,
		`SELECT id, sub_id, year, recordables, darts, hours_worked, dart_rate, source_link
		 FROM lagging_metrics WHERE sub_id = $1 ORDER BY year DESC LIMIT 1`,
		subID,
	).Scan(&m.ID, &m.SubID, &m.Year, &m.Recordables, &m.DARTs, &m.HoursWorked, &m.DARTRate, &m.SourceLink)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: latest metric for sub %d", subID)
	}
	return &m, nil
}

// metricColumns are the lagging_metrics columns written by BulkUpsertMetrics.
var metricColumns = []string{"sub_id", "year", "recordables", "darts", "hours_worked", "dart_rate", "source_link"}

// BulkUpsertMetrics writes many metrics in one COPY-backed upsert keyed on
// (sub_id, year). Returns the number of rows inserted or updated.
func (s *PostgresStore) BulkUpsertMetrics(ctx context.Context, metrics []model.LaggingMetric) (int64, error) {
	rows := make([][]any, len(metrics))
	for i, m := range metrics {
		rows[i] = []any{m.SubID, m.Year, m.Recordables, m.DARTs, m.HoursWorked, m.DARTRate, m.SourceLink}
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "lagging_metrics",
		Columns:      metricColumns,
		ConflictKeys: []string{"sub_id", "year"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: bulk upsert metrics")
	}
	return n, nil
}
