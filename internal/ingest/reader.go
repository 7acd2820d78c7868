// Package ingest loads relationship, alias and incident records into the registry.
package ingest

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// ReadFile decodes a .csv or .xlsx file into rows of T using csv struct tags.
func ReadFile[T any](path string) ([]T, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX[T](path, "")
	case ".csv", ".txt", "":
		f, err := os.Open(path)
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: open %s", path)
		}
		defer f.Close() //nolint:errcheck
		return ReadCSV[T](f)
	default:
		return nil, eris.Errorf("ingest: unsupported file type %q", filepath.Ext(path))
	}
}

// ReadCSV decodes CSV with a header row into rows of T. Header names are
// matched case-insensitively, with spaces treated as underscores.
func ReadCSV[T any](r io.Reader) ([]T, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // allow ragged rows
	cr.TrimLeadingSpace = true
	return decodeRecords[T](cr)
}

// ReadXLSX decodes a worksheet whose first row is a header. An empty sheet
// name selects the first sheet.
func ReadXLSX[T any](path, sheetName string) ([]T, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open xlsx")
	}

	var sheet *xlsx.Sheet
	if sheetName != "" {
		s, ok := f.Sheet[sheetName]
		if !ok {
			return nil, eris.Errorf("ingest: sheet %q not found", sheetName)
		}
		sheet = s
	} else {
		if len(f.Sheets) == 0 {
			return nil, eris.New("ingest: workbook has no sheets")
		}
		sheet = f.Sheets[0]
	}

	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return decodeRecords[T](&sliceReader{rows: rows})
}

// recordReader is satisfied by *csv.Reader and sliceReader.
type recordReader interface {
	Read() ([]string, error)
}

// sliceReader serves pre-read rows to csvutil.
type sliceReader struct {
	rows [][]string
	pos  int
}

func (s *sliceReader) Read() ([]string, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

// fixedReader skips blank rows and pads or truncates the rest to the header
// width, since spreadsheets drop trailing empty cells.
type fixedReader struct {
	r     recordReader
	width int
}

func (f *fixedReader) Read() ([]string, error) {
	for {
		row, err := f.r.Read()
		if err != nil {
			return nil, err
		}
		if blank(row) {
			continue
		}
		switch {
		case len(row) < f.width:
			row = append(row, make([]string, f.width-len(row))...)
		case len(row) > f.width:
			row = row[:f.width]
		}
		return row, nil
	}
}

func decodeRecords[T any](r recordReader) ([]T, error) {
	header, err := (&fixedReader{r: r}).first()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read header")
	}
	for i, h := range header {
		header[i] = headerKey(h)
	}

	dec, err := csvutil.NewDecoder(&fixedReader{r: r, width: len(header)}, header...)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: create decoder")
	}

	var out []T
	for {
		var v T
		err := dec.Decode(&v)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: decode row %d", len(out)+2)
		}
		out = append(out, v)
	}
	return out, nil
}

// first returns the first non-blank row unmodified.
func (f *fixedReader) first() ([]string, error) {
	for {
		row, err := f.r.Read()
		if err != nil || !blank(row) {
			return row, err
		}
	}
}

func headerKey(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.Join(strings.Fields(h), "_")
}

func blank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
