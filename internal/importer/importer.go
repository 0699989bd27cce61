// Package importer turns uploaded lot data files into batches of field maps.
// File-format knowledge lives here only; the rest of the system sees
// []types.FieldMap.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/dataherd/dataherd/internal/types"
)

// ReadFile parses a lot data file by extension. Supported: .xlsx, .csv.
func ReadFile(r io.Reader, filename string) ([]types.FieldMap, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return ReadXLSX(r)
	case ".csv":
		return ReadCSV(r)
	default:
		return nil, types.Validation(fmt.Errorf("unsupported file type %q, expected .xlsx or .csv", filepath.Ext(filename)))
	}
}

// ReadXLSX reads the first sheet. Row one is the header; every later row
// becomes one field map keyed by header name.
func ReadXLSX(r io.Reader) ([]types.FieldMap, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, types.Validation(fmt.Errorf("open xlsx: %w", err))
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, types.Validation(errors.New("xlsx has no sheets"))
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(rows) < 2 {
		return nil, types.Validation(errors.New("file needs a header row and at least one data row"))
	}

	header := normalizeHeader(rows[0])
	out := make([]types.FieldMap, 0, len(rows)-1)
	for _, row := range rows[1:] {
		if emptyRow(row) {
			continue
		}
		out = append(out, rowToFields(header, row))
	}
	return validated(out)
}

// ReadCSV reads comma-separated lot data with a header row.
func ReadCSV(r io.Reader) ([]types.FieldMap, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, types.Validation(fmt.Errorf("parse csv: %w", err))
	}
	if len(records) < 2 {
		return nil, types.Validation(errors.New("file needs a header row and at least one data row"))
	}

	header := normalizeHeader(records[0])
	out := make([]types.FieldMap, 0, len(records)-1)
	for _, row := range records[1:] {
		if emptyRow(row) {
			continue
		}
		out = append(out, rowToFields(header, row))
	}
	return validated(out)
}

func validated(rows []types.FieldMap) ([]types.FieldMap, error) {
	if len(rows) == 0 {
		return nil, types.Validation(errors.New("no data rows"))
	}
	if len(rows) > types.MaxBatchRecords {
		return nil, types.Validation(fmt.Errorf("%d rows exceeds batch limit of %d", len(rows), types.MaxBatchRecords))
	}
	return rows, nil
}

// normalizeHeader lowercases and underscores column names so "Birth Date"
// and "birth_date" address the same field.
func normalizeHeader(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		name := strings.ToLower(strings.TrimSpace(c))
		name = strings.ReplaceAll(name, " ", "_")
		out[i] = name
	}
	return out
}

// rowToFields zips header and row. Values that read as numbers become
// float64 so the rule engine compares them without string coercion; the
// lot_id column stays textual because identifiers are not quantities.
func rowToFields(header []string, row []string) types.FieldMap {
	fields := make(types.FieldMap, len(header))
	for i, name := range header {
		if name == "" {
			continue
		}
		var raw string
		if i < len(row) {
			raw = strings.TrimSpace(row[i])
		}
		if name != "lot_id" {
			if f, err := strconv.ParseFloat(raw, 64); err == nil && raw != "" {
				fields[name] = f
				continue
			}
		}
		fields[name] = raw
	}
	return fields
}

func emptyRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// RecordID derives the record identifier for a parsed row: the lot_id field
// when present, else a positional fallback.
func RecordID(fields types.FieldMap, index int) types.RecordID {
	if v, ok := fields["lot_id"]; ok {
		if s, ok := v.(string); ok && s != "" {
			return types.RecordID(s)
		}
	}
	return types.RecordID(fmt.Sprintf("row-%05d", index+1))
}
