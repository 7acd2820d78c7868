package ingest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/propensity-cli/internal/config"
	"github.com/sells-group/propensity-cli/internal/model"
	"github.com/sells-group/propensity-cli/internal/resolve"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestImporter(store *memStore) *Importer {
	cfg := config.ResolveConfig{FuzzyThreshold: 85, AutoMatchThreshold: 95, SimilarLimit: 5, AliasConfidence: 0.9}
	return NewImporter(resolve.NewResolver(store, cfg), store, cfg.AliasConfidence)
}

func TestImportRelationships(t *testing.T) {
	store := newMemStore()
	im := newTestImporter(store)

	rows := []RelationshipRow{
		{
			GCName: "Turner Build Group", OwnerName: "City of Austin", SubName: "Lone Star Steel LLC",
			ProjectName: "Tower A", Location: "Austin, TX", Trade: "Steel Erection",
			ContractValue: "$1,250,000", StartDate: "2024-01-15", EndDate: "2024-09-30",
		},
		{GCName: " Turner Build Group Inc ", SubName: "Lone Star Steel", ProjectName: "Tower A", Trade: "Steel Erection", POValue: "5000"},
		{GCName: "Turner Build Group", SubName: "Hill Country Roofing", StartDate: "not-a-date"},
		{OwnerName: "City of Austin", SubName: "  "},
		{SubName: "Orphan Sub"},
	}

	res, err := im.ImportRelationships(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 6, res.Created, "3 companies + 1 project + 2 relationships")
	require.Len(t, res.Errors, 3)
	assert.Contains(t, res.Errors[0], `row 4: start_date: invalid date "not-a-date"`)
	assert.Contains(t, res.Errors[1], "row 5: sub_name is required")
	assert.Contains(t, res.Errors[2], "row 6: gc_name or owner_name is required")

	require.Len(t, store.companies, 3)
	gc := store.companyByName("TURNER BUILD GROUP")
	require.NotNil(t, gc)
	assert.Equal(t, model.RoleGC, gc.Role)
	owner := store.companyByName("CITY OF AUSTIN")
	require.NotNil(t, owner)
	assert.Equal(t, model.RoleOwner, owner.Role)
	sub := store.companyByName("LONE STAR STEEL")
	require.NotNil(t, sub)
	assert.Equal(t, model.RoleSub, sub.Role)

	require.Len(t, store.projects, 1)
	p := store.projects[0]
	assert.Equal(t, "Austin, TX", p.Location)
	assert.Equal(t, gc.ID, *p.GCID)
	assert.Equal(t, owner.ID, *p.OwnerID)
	assert.Equal(t, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), *p.StartDate)

	require.Len(t, store.relationships, 2)
	first, second := store.relationships[0], store.relationships[1]
	assert.Equal(t, sub.ID, first.SubID)
	assert.InDelta(t, 1_250_000.0, *first.ContractValue, 0.001)
	assert.True(t, first.FullyDetailed())
	assert.Equal(t, p.ID, *second.ProjectID)
	assert.Nil(t, second.OwnerID)
	assert.InDelta(t, 5000.0, *second.ContractValue, 0.001)
}

func TestImportRelationships_BadValues(t *testing.T) {
	im := newTestImporter(newMemStore())
	rows := []RelationshipRow{
		{GCName: "Acme GC", SubName: "Beta Sub", ContractValue: "lots"},
		{GCName: "Acme GC", SubName: "Beta Sub", ContractValue: "-5"},
		{GCName: "Acme GC", SubName: "Beta Sub", StartDate: "2024-05-01", EndDate: "2024-01-01"},
	}

	res, err := im.ImportRelationships(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	require.Len(t, res.Errors, 3)
	assert.Contains(t, res.Errors[0], `contract_value: invalid number "lots"`)
	assert.Contains(t, res.Errors[1], "must be >= 0")
	assert.Contains(t, res.Errors[2], "end_date 2024-01-01 is before start_date 2024-05-01")
}

func TestImportRelationships_StoreFailureContinues(t *testing.T) {
	store := newMemStore()
	store.relationshipErr = errors.New("insert failed")
	im := newTestImporter(store)

	res, err := im.ImportRelationships(context.Background(), []RelationshipRow{
		{GCName: "Acme GC", SubName: "Beta Sub"},
		{GCName: "Acme GC", SubName: "Gamma Sub"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Processed)
	require.Len(t, res.Errors, 2)
	assert.Contains(t, res.Errors[0], "ingest: create relationship")
}

func TestImportRelationships_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newTestImporter(newMemStore()).ImportRelationships(ctx, []RelationshipRow{{GCName: "A", SubName: "B"}})
	require.Error(t, err)
	assert.Equal(t, 0, res.Processed)
}

func TestImportAliases(t *testing.T) {
	store := newMemStore()
	im := newTestImporter(store)
	rows := []AliasRow{
		{CanonicalName: "ABC Construction LLC", Alias: "ABC Builders"},
		{CanonicalName: "ABC Construction", Alias: ""},
		{CanonicalName: "ABC Construction", Alias: "A.B.C. Const"},
		{CanonicalName: "", Alias: "Nobody"},
	}

	res, err := im.ImportAliases(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Processed, "row missing alias is not processed")
	assert.Equal(t, 2, res.Created)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "row 3: alias is required", res.Errors[0])
	assert.Equal(t, "row 5: canonical_name is required", res.Errors[1])

	require.Len(t, store.companies, 1)
	assert.Equal(t, model.RoleUnknown, store.companies[0].Role)
	require.Len(t, store.aliases, 2)
	assert.Equal(t, "ABC BUILDERS", store.aliases[0].Alias)
	assert.Equal(t, "ABC CONST", store.aliases[1].Alias)
	assert.InDelta(t, 0.9, store.aliases[0].Confidence, 0.001)

	// Re-importing is idempotent.
	res, err = im.ImportAliases(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 0, res.Created)
	assert.Len(t, store.aliases, 2)
}

func TestIncidents(t *testing.T) {
	store := newMemStore()
	im := newTestImporter(store)
	occurred := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	accident := IncidentRecord{
		Source:       "osha",
		Category:     "accident",
		CompanyName:  "Lone Star Steel LLC",
		OccurredOn:   occurred,
		SeverityHint: 90,
		Attributes: map[string]any{
			"fatality":  true,
			"naics":     "238120",
			"state":     "TX",
			"narrative": "fall from steel beam",
		},
		Link: "https://osha.gov/1",
	}
	records := []IncidentRecord{
		accident,
		accident,
		{
			Source: "ita", Category: "ita", CompanyName: "Lone Star Steel", OccurredOn: occurred, SeverityHint: 20,
			Attributes: map[string]any{"year": 2023, "darts": 6, "hours_worked": 100000},
			Link:       "https://osha.gov/ita/1",
		},
		{Source: "blog", Category: "blog", CompanyName: "Lone Star Steel", OccurredOn: occurred},
		{Source: "osha", Category: "citation", CompanyName: "Lone Star Steel", OccurredOn: occurred, SeverityHint: 150},
		{Source: "osha", Category: "accident", CompanyName: "Lone Star Steel", OccurredOn: occurred, Attributes: map[string]any{"fatality": "yes"}},
	}

	res, err := im.Incidents(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 3, res.Processed)
	assert.Equal(t, 3, res.Created, "sub + accident + metric incident")
	require.Len(t, res.Errors, 3)
	assert.Contains(t, res.Errors[0], "row 4: model: unknown incident category")
	assert.Contains(t, res.Errors[1], "severity_hint must be <= 100")
	assert.Contains(t, res.Errors[2], "model: decode accident attributes")

	require.Len(t, store.companies, 1)
	sub := store.companies[0]
	assert.Equal(t, model.RoleSub, sub.Role)
	assert.Equal(t, "238120", sub.NAICS)
	assert.Equal(t, "TX", sub.State)

	require.Len(t, store.incidents, 2)
	det, ok := store.incidents[0].Details.(*model.AccidentDetails)
	require.True(t, ok)
	assert.True(t, det.Fatality)
	assert.Equal(t, sub.ID, store.incidents[0].CompanyID)

	require.Len(t, store.metrics, 1)
	m := store.metrics[0]
	assert.Equal(t, 2023, m.Year)
	assert.Equal(t, sub.ID, m.SubID)
	assert.Equal(t, "https://osha.gov/ita/1", m.SourceLink)
	rate, ok := m.Rate()
	require.True(t, ok)
	assert.InDelta(t, 12.0, rate, 0.001)
}

func TestIncidents_MetricYearDefaultsToOccurrence(t *testing.T) {
	store := newMemStore()
	im := newTestImporter(store)

	_, err := im.Incidents(context.Background(), []IncidentRecord{{
		Source: "ita", Category: "lagging-metric", CompanyName: "Acme Sub",
		OccurredOn: time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC),
		Attributes: map[string]any{"dart_rate": 3.2},
	}})
	require.NoError(t, err)
	require.Len(t, store.metrics, 1)
	assert.Equal(t, 2022, store.metrics[0].Year)
}

func TestIncidents_ProjectHint(t *testing.T) {
	store := newMemStore()
	store.projects = []model.Project{{ID: 7, Name: "Tower A"}}
	im := newTestImporter(store)

	_, err := im.Incidents(context.Background(), []IncidentRecord{{
		Source: "osha", Category: "inspection", CompanyName: "Acme Sub",
		OccurredOn: time.Now(), Attributes: map[string]any{"project_name": "Tower A"},
	}})
	require.NoError(t, err)
	require.Len(t, store.incidents, 1)
	require.NotNil(t, store.incidents[0].ProjectID)
	assert.Equal(t, int64(7), *store.incidents[0].ProjectID)
}

func TestReadIncidents(t *testing.T) {
	t.Run("array with date only", func(t *testing.T) {
		input := `  [{"source":"osha","category":"accident","company_name":"Acme","occurred_on":"2024-05-01","severity_hint":80,"attributes":{"fatality":true}}]`
		recs, err := ReadIncidents(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), recs[0].OccurredOn)
		assert.Equal(t, true, recs[0].Attributes["fatality"])
	})

	t.Run("newline delimited", func(t *testing.T) {
		input := `{"source":"rss","category":"news","company_name":"Acme","occurred_on":"2024-05-01T10:00:00Z"}
{"source":"rss","category":"news","company_name":"Beta","occurred_on":"2024-05-02T10:00:00Z"}
`
		recs, err := ReadIncidents(strings.NewReader(input))
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, "Beta", recs[1].CompanyName)
	})

	t.Run("empty", func(t *testing.T) {
		recs, err := ReadIncidents(strings.NewReader("\n  "))
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("bad date", func(t *testing.T) {
		_, err := ReadIncidents(strings.NewReader(`{"occurred_on":"yesterday"}`))
		require.Error(t, err)
	})
}
