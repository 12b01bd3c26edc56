package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"legislens/internal/analyses"
)

const (
	summarySheet = "Summary"
	clausesSheet = "Clauses"
)

// Meta describes where a result came from. Zero fields are omitted.
type Meta struct {
	DocumentName string
	AnalysisID   string
	GeneratedAt  time.Time
}

// WriteXLSX renders a workbook with a Summary sheet and a Clauses sheet.
func WriteXLSX(w io.Writer, r analyses.Result, meta Meta) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := writeSummary(f, r, meta); err != nil {
		return err
	}
	if _, err := f.NewSheet(clausesSheet); err != nil {
		return fmt.Errorf("create clauses sheet: %w", err)
	}
	if err := writeClauses(f, r); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, r analyses.Result, meta Meta) error {
	counts := r.CountByLevel()
	rows := [][]interface{}{
		{"Summary", escapeFormula(r.Summary)},
		{"Risk Score", r.RiskScore},
		{"Risk Band", string(r.RiskBand())},
		{"High Risk Clauses", counts.High},
		{"Medium Risk Clauses", counts.Medium},
		{"Low Risk Clauses", counts.Low},
		{"Approximate Result", r.Degraded},
	}
	if meta.DocumentName != "" {
		rows = append(rows, []interface{}{"Document", escapeFormula(meta.DocumentName)})
	}
	if meta.AnalysisID != "" {
		rows = append(rows, []interface{}{"Analysis ID", meta.AnalysisID})
	}
	if !meta.GeneratedAt.IsZero() {
		rows = append(rows, []interface{}{"Generated At", meta.GeneratedAt.UTC().Format(time.RFC3339)})
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &row); err != nil {
			return fmt.Errorf("write summary row %d: %w", i+1, err)
		}
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 22); err != nil {
		return err
	}
	return f.SetColWidth(summarySheet, "B", "B", 80)
}

func writeClauses(f *excelize.File, r analyses.Result) error {
	header := make([]interface{}, len(clauseColumns))
	for i, c := range clauseColumns {
		header[i] = c
	}
	if err := f.SetSheetRow(clausesSheet, "A1", &header); err != nil {
		return fmt.Errorf("write clauses header: %w", err)
	}
	for i, cl := range r.Clauses {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			i + 1,
			string(cl.RiskLevel),
			escapeFormula(cl.Text),
			escapeFormula(cl.Explanation),
			escapeFormula(cl.Suggestion),
		}
		if err := f.SetSheetRow(clausesSheet, cell, &row); err != nil {
			return fmt.Errorf("write clause row %d: %w", i+1, err)
		}
	}
	if err := f.SetColWidth(clausesSheet, "C", "E", 60); err != nil {
		return err
	}
	return f.SetPanes(clausesSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}
