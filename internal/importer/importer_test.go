// internal/importer/importer_test.go
package importer

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/dataherd/dataherd/internal/types"
)

func TestReadCSV(t *testing.T) {
	csv := strings.Join([]string{
		"Lot ID,Weight,Breed,Birth Date",
		"lot-1,350,angus,2024-03-01",
		"lot-2,800,Hereford,",
		",,,",
	}, "\n")

	rows, err := ReadCSV(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("ReadCSV: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2 (empty row skipped)", len(rows))
	}

	first := rows[0]
	if first["lot_id"] != "lot-1" {
		t.Errorf("lot_id = %v, want lot-1 (headers normalized, ids stay text)", first["lot_id"])
	}
	if first["weight"] != 350.0 {
		t.Errorf("weight = %v (%T), want 350.0", first["weight"], first["weight"])
	}
	if first["breed"] != "angus" {
		t.Errorf("breed = %v, want angus", first["breed"])
	}
	if rows[1]["birth_date"] != "" {
		t.Errorf("birth_date = %v, want empty string", rows[1]["birth_date"])
	}
}

func TestReadCSV_NoDataRows(t *testing.T) {
	_, err := ReadCSV(strings.NewReader("lot_id,weight\n"))
	if !errors.Is(err, types.ErrValidation) {
		t.Fatalf("ReadCSV(header only) error = %v, want ErrValidation", err)
	}
}

func TestReadXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	rows := [][]any{
		{"lot_id", "weight", "breed"},
		{"lot-1", 350, "angus"},
		{"lot-2", 800, "Hereford"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatal(err)
		}
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatal(err)
	}
	f.Close()

	parsed, err := ReadXLSX(&buf)
	if err != nil {
		t.Fatalf("ReadXLSX: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("len(parsed) = %d, want 2", len(parsed))
	}
	if parsed[0]["lot_id"] != "lot-1" || parsed[0]["weight"] != 350.0 {
		t.Errorf("parsed[0] = %+v, want lot-1 at 350", parsed[0])
	}
}

func TestReadFile_UnsupportedExtension(t *testing.T) {
	_, err := ReadFile(strings.NewReader("x"), "cattle.pdf")
	if !errors.Is(err, types.ErrValidation) {
		t.Fatalf("ReadFile(.pdf) error = %v, want ErrValidation", err)
	}
}

func TestRecordID(t *testing.T) {
	if got := RecordID(types.FieldMap{"lot_id": "lot-7"}, 0); got != "lot-7" {
		t.Errorf("RecordID = %s, want lot-7", got)
	}
	if got := RecordID(types.FieldMap{"weight": 1.0}, 2); got != "row-00003" {
		t.Errorf("RecordID = %s, want positional row-00003", got)
	}
}
