package ingest

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/propensity-cli/internal/model"
	"github.com/sells-group/propensity-cli/internal/resolve"
)

// Store persists the records produced by ingestion.
type Store interface {
	FindProjectByName(ctx context.Context, name string) (*model.Project, error)
	CreateProject(ctx context.Context, p *model.Project) error
	CreateRelationship(ctx context.Context, r *model.Relationship) error
	CreateIncident(ctx context.Context, i *model.Incident) error
	UpsertMetric(ctx context.Context, m *model.LaggingMetric) error
	BulkUpsertMetrics(ctx context.Context, metrics []model.LaggingMetric) (int64, error)
}

// Result summarizes a bulk import. Errors holds one message per failed row.
type Result struct {
	Processed int      `json:"processed"`
	Created   int      `json:"created"`
	Errors    []string `json:"errors"`
}

func (r *Result) fail(row int, err error) {
	r.Errors = append(r.Errors, fmt.Sprintf("row %d: %v", row, err))
}

// Importer runs best-effort bulk ingestion: a bad row is recorded in the
// result and the batch continues.
type Importer struct {
	resolver        *resolve.Resolver
	store           Store
	aliasConfidence float64
}

// NewImporter creates an Importer. aliasConfidence is the confidence given to
// aliases loaded from uploads.
func NewImporter(resolver *resolve.Resolver, store Store, aliasConfidence float64) *Importer {
	return &Importer{resolver: resolver, store: store, aliasConfidence: aliasConfidence}
}

// rowNumber converts a 0-based data index to the 1-based file line (header is line 1).
func rowNumber(i int) int { return i + 2 }

// ImportRelationships find-or-creates the GC, owner, sub and project named by
// each row and links them with a new Relationship.
func (im *Importer) ImportRelationships(ctx context.Context, rows []RelationshipRow) (*Result, error) {
	res := &Result{}
	log := zap.L().With(zap.String("component", "ingest.relationships"))

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "ingest: relationships cancelled")
		}
		row.trim()
		created, err := im.importRelationship(ctx, row)
		if err != nil {
			log.Warn("ingest: relationship row failed", zap.Int("row", rowNumber(i)), zap.Error(err))
			res.fail(rowNumber(i), err)
			continue
		}
		res.Processed++
		res.Created += created
	}

	log.Info("ingest: relationships imported",
		zap.Int("rows", len(rows)),
		zap.Int("processed", res.Processed),
		zap.Int("created", res.Created),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}

// importRelationship returns the number of records created for one row.
func (im *Importer) importRelationship(ctx context.Context, row RelationshipRow) (int, error) {
	parsed, err := row.parse()
	if err != nil {
		return 0, err
	}

	created := 0
	findOrCreate := func(name string, role model.Role) (*int64, error) {
		c, isNew, err := im.resolver.FindOrCreate(ctx, name, resolve.CreateAs(role))
		if err != nil || c == nil {
			return nil, err
		}
		if isNew {
			created++
		}
		return &c.ID, nil
	}

	gcID, err := findOrCreate(row.GCName, model.RoleGC)
	if err != nil {
		return created, err
	}
	ownerID, err := findOrCreate(row.OwnerName, model.RoleOwner)
	if err != nil {
		return created, err
	}
	subID, err := findOrCreate(row.SubName, model.RoleSub)
	if err != nil {
		return created, err
	}
	if subID == nil {
		return created, eris.Errorf("sub_name %q normalizes to empty", row.SubName)
	}

	var projectID *int64
	if row.ProjectName != "" {
		p, isNew, err := im.findOrCreateProject(ctx, row, gcID, ownerID, parsed)
		if err != nil {
			return created, err
		}
		if isNew {
			created++
		}
		projectID = &p.ID
	}

	rel := &model.Relationship{
		SubID:         *subID,
		GCID:          gcID,
		OwnerID:       ownerID,
		ProjectID:     projectID,
		Trade:         row.Trade,
		ContractValue: parsed.value,
		StartDate:     parsed.start,
		EndDate:       parsed.end,
	}
	if err := im.store.CreateRelationship(ctx, rel); err != nil {
		return created, eris.Wrap(err, "ingest: create relationship")
	}
	return created + 1, nil
}

// findOrCreateProject matches projects by exact name.
func (im *Importer) findOrCreateProject(ctx context.Context, row RelationshipRow, gcID, ownerID *int64, parsed *parsedRelationship) (*model.Project, bool, error) {
	p, err := im.store.FindProjectByName(ctx, row.ProjectName)
	if err != nil {
		return nil, false, eris.Wrap(err, "ingest: find project")
	}
	if p != nil {
		return p, false, nil
	}

	p = &model.Project{
		Name:      row.ProjectName,
		Location:  row.Location,
		GCID:      gcID,
		OwnerID:   ownerID,
		StartDate: parsed.start,
		EndDate:   parsed.end,
	}
	if err := im.store.CreateProject(ctx, p); err != nil {
		return nil, false, eris.Wrap(err, "ingest: create project")
	}
	return p, true, nil
}

// ImportAliases find-or-creates each row's canonical company and registers the alias.
// Created counts aliases actually added; re-uploading the same file creates nothing.
func (im *Importer) ImportAliases(ctx context.Context, rows []AliasRow) (*Result, error) {
	res := &Result{}
	log := zap.L().With(zap.String("component", "ingest.aliases"))

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "ingest: aliases cancelled")
		}
		row.trim()
		if err := validateRow(row); err != nil {
			res.fail(rowNumber(i), err)
			continue
		}

		c, _, err := im.resolver.FindOrCreate(ctx, row.CanonicalName, resolve.CreateAs(model.RoleUnknown))
		if err == nil && c == nil {
			err = eris.Errorf("canonical_name %q normalizes to empty", row.CanonicalName)
		}
		if err != nil {
			log.Warn("ingest: alias row failed", zap.Int("row", rowNumber(i)), zap.Error(err))
			res.fail(rowNumber(i), err)
			continue
		}

		added, err := im.resolver.AddAlias(ctx, c.ID, row.Alias, im.aliasConfidence)
		if err != nil {
			res.fail(rowNumber(i), err)
			continue
		}
		res.Processed++
		if added {
			res.Created++
		}
	}

	log.Info("ingest: aliases imported",
		zap.Int("rows", len(rows)),
		zap.Int("processed", res.Processed),
		zap.Int("created", res.Created),
		zap.Int("errors", len(res.Errors)),
	)
	return res, nil
}
