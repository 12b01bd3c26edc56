package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"legislens/internal/analyses"
)

// BOM lets Excel on Windows open the CSV as UTF-8.
var BOM = []byte{0xEF, 0xBB, 0xBF}

var clauseColumns = []string{
	"#",
	"Risk Level",
	"Clause",
	"Explanation",
	"Suggestion",
}

// WriteCSV writes one row per clause after a header row.
func WriteCSV(w io.Writer, r analyses.Result) error {
	if _, err := w.Write(BOM); err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(clauseColumns); err != nil {
		return err
	}
	for i, cl := range r.Clauses {
		if err := cw.Write(clauseRow(i, cl)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func clauseRow(i int, cl analyses.Clause) []string {
	return []string{
		strconv.Itoa(i + 1),
		string(cl.RiskLevel),
		escapeFormula(cl.Text),
		escapeFormula(cl.Explanation),
		escapeFormula(cl.Suggestion),
	}
}

// escapeFormula keeps spreadsheet apps from evaluating model text as a formula.
func escapeFormula(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@', '\t', '\r':
		return "'" + s
	}
	return s
}
