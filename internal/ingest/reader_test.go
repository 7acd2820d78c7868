package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"
)

type sampleRow struct {
	Name  string `csv:"name"`
	Value string `csv:"contract_value"`
}

func createTestXLSX(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Relationships")
	require.NoError(t, err)
	for _, rowData := range rows {
		row := sheet.AddRow()
		for _, cellData := range rowData {
			row.AddCell().SetString(cellData)
		}
	}
	path := filepath.Join(t.TempDir(), "upload.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadCSV(t *testing.T) {
	input := "\ufeffName, Contract Value\nAcme,100\nBeta\n,\n"
	rows, err := ReadCSV[sampleRow](strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, sampleRow{Name: "Acme", Value: "100"}, rows[0])
	assert.Equal(t, sampleRow{Name: "Beta"}, rows[1])
}

func TestReadCSV_Empty(t *testing.T) {
	rows, err := ReadCSV[sampleRow](strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReadCSV_RelationshipColumns(t *testing.T) {
	input := `gc_name,owner_name,sub_name,project_name,location,trade,contract_value,start_date,end_date
Turner Build Group,City of Austin,Lone Star Steel,Tower A,"Austin, TX",Steel Erection,"$1,250,000",2024-01-15,2024-09-30
`
	rows, err := ReadCSV[RelationshipRow](strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Austin, TX", rows[0].Location)
	assert.Equal(t, "$1,250,000", rows[0].ContractValue)
	assert.Equal(t, "2024-09-30", rows[0].EndDate)
}

func TestReadXLSX(t *testing.T) {
	path := createTestXLSX(t, [][]string{
		{"GC Name", "Sub Name", "Trade"},
		{"Acme GC", "Steel Sub"},
		{"", "", ""},
		{"Beta GC", "Roof Sub", "Roofing"},
	})

	rows, err := ReadXLSX[RelationshipRow](path, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Acme GC", rows[0].GCName)
	assert.Equal(t, "Steel Sub", rows[0].SubName)
	assert.Empty(t, rows[0].Trade)
	assert.Equal(t, "Roofing", rows[1].Trade)
}

func TestReadXLSX_MissingSheet(t *testing.T) {
	path := createTestXLSX(t, [][]string{{"gc_name"}})
	_, err := ReadXLSX[RelationshipRow](path, "Nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `sheet "Nope" not found`)
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()
	csvPath := filepath.Join(dir, "aliases.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("canonical_name,alias\nAcme,Acme Co\n"), 0644))

	rows, err := ReadFile[AliasRow](csvPath)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, AliasRow{CanonicalName: "Acme", Alias: "Acme Co"}, rows[0])

	xlsxPath := createTestXLSX(t, [][]string{{"canonical_name", "alias"}, {"Beta", "Beta Inc"}})
	rows, err = ReadFile[AliasRow](xlsxPath)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Beta Inc", rows[0].Alias)

	_, err = ReadFile[AliasRow](filepath.Join(dir, "aliases.pdf"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file type")
}

func TestHeaderKey(t *testing.T) {
	assert.Equal(t, "gc_name", headerKey(" GC  Name "))
	assert.Equal(t, "alias", headerKey("\ufeffAlias"))
}
