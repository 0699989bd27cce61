package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

// ExportXLSX renders a summary as an xlsx workbook with Summary, Clients,
// and Rules sheets.
func ExportXLSX(s Summary) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	const summarySheet = "Summary"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	rows := [][]any{
		{"Generated At", s.GeneratedAt.Format(time.RFC3339)},
		{"Total Operations", s.TotalOperations},
		{"Commits", s.Commits},
		{"Rollbacks", s.Rollbacks},
		{"Records Flagged", s.Flagged},
		{"Records Modified", s.Modified},
		{"Records Deleted", s.Deleted},
		{"Records Rolled Back", s.RolledBack},
	}
	for result, count := range s.ByResult {
		rows = append(rows, []any{fmt.Sprintf("Result: %s", result), count})
	}
	if err := writeRows(f, summarySheet, rows); err != nil {
		return nil, err
	}

	const clientSheet = "Clients"
	if _, err := f.NewSheet(clientSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	clientRows := [][]any{{"Client Context", "Operations", "Changes"}}
	for _, c := range s.Clients {
		clientRows = append(clientRows, []any{c.ClientContext, c.Operations, c.Changes})
	}
	if err := writeRows(f, clientSheet, clientRows); err != nil {
		return nil, err
	}

	const ruleSheet = "Rules"
	if _, err := f.NewSheet(ruleSheet); err != nil {
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	ruleRows := [][]any{{"Rule ID", "Name", "Scope", "Active", "Permanent", "Usage Count", "Success Rate"}}
	for _, r := range s.Rules {
		ruleRows = append(ruleRows, []any{
			string(r.RuleID), r.Name, string(r.Scope),
			r.IsActive, r.IsPermanent, r.UsageCount, r.SuccessRate,
		})
	}
	if err := writeRows(f, ruleSheet, ruleRows); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d on %s: %w", i+1, sheet, err)
		}
	}
	return nil
}
