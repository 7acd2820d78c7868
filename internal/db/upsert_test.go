package db

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkUpsert_EmptyRows(t *testing.T) {
	n, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "lagging_metrics",
		Columns:      []string{"sub_id", "year"},
		ConflictKeys: []string{"sub_id", "year"},
	}, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestBulkUpsert_NoColumns(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:        "lagging_metrics",
		ConflictKeys: []string{"sub_id"},
	}, [][]any{{1, 2023}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no columns specified")
}

func TestBulkUpsert_NoConflictKeys(t *testing.T) {
	_, err := BulkUpsert(context.Background(), nil, UpsertConfig{
		Table:   "lagging_metrics",
		Columns: []string{"sub_id", "year"},
	}, [][]any{{1, 2023}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no conflict keys specified")
}

func TestUpsertSQL(t *testing.T) {
	cfg := UpsertConfig{
		Table:        "lagging_metrics",
		Columns:      []string{"sub_id", "year", "dart_rate"},
		ConflictKeys: []string{"sub_id", "year"},
	}

	got := upsertSQL(cfg, tempTableName(cfg.Table), nonConflictColumns(cfg))
	assert.Equal(t,
		`INSERT INTO "lagging_metrics" ("sub_id", "year", "dart_rate") SELECT "sub_id", "year", "dart_rate" FROM "_tmp_upsert_lagging_metrics" ON CONFLICT ("sub_id", "year") DO UPDATE SET "dart_rate" = EXCLUDED."dart_rate"`,
		got)
}

func TestUpsertSQL_AllKeys(t *testing.T) {
	cfg := UpsertConfig{
		Table:        "public.company_aliases",
		Columns:      []string{"company_id", "alias"},
		ConflictKeys: []string{"company_id", "alias"},
	}

	got := upsertSQL(cfg, tempTableName(cfg.Table), nonConflictColumns(cfg))
	assert.Contains(t, got, `INSERT INTO "public"."company_aliases"`)
	assert.Contains(t, got, `FROM "_tmp_upsert_public_company_aliases"`)
	assert.True(t, strings.HasSuffix(got, "ON CONFLICT (\"company_id\", \"alias\") DO NOTHING"))
}

func TestSanitizeTable(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", `"simple"`},
		{"public.lagging_metrics", `"public"."lagging_metrics"`},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := sanitizeTable(tt.input)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestQuoteAndJoin(t *testing.T) {
	result := quoteAndJoin([]string{"id", "name", "value"})
	assert.Equal(t, `"id", "name", "value"`, result)
}
