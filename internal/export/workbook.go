package export

import (
	"io"

	"github.com/go-faster/errors"
	"github.com/xuri/excelize/v2"

	"okrtrack/internal/insights"
	"okrtrack/internal/okr"
)

const (
	sheetSummary  = "Summary"
	sheetOKRs     = "OKRs"
	sheetCheckIns = "Check-ins"
)

var checkInColumns = []string{
	"OKR ID",
	"Objective",
	"Date",
	"Progress",
	"Confidence",
	"Confidence Label",
	"Root Cause",
	"Reason For Change",
	"Note",
}

// WorkbookRenderer renders a DeckBundle as an XLSX workbook with summary,
// OKR and check-in sheets.
type WorkbookRenderer struct{}

// Extension implements Renderer.
func (WorkbookRenderer) Extension() string { return ".xlsx" }

// Render implements Renderer.
func (WorkbookRenderer) Render(w io.Writer, b DeckBundle) error {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return errors.Wrap(err, "create header style")
	}

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return errors.Wrap(err, "rename summary sheet")
	}
	s := b.Summary
	summaryRows := [][]any{
		{"Quarter", okr.FormatQuarter(b.Quarter)},
		{"Scope", b.ScopeLabel},
		{"Generated", b.GeneratedAt.Format(okr.DateLayout)},
		{"Overall confidence", s.OverallConfidence},
		{"OKRs", s.Total},
		{"With check-ins", s.WithCheckIns},
		{"At risk", s.AtRisk},
		{"On track", s.OnTrack},
		{"Orphaned", s.Orphaned},
		{"Closed", s.Closed},
	}
	if s.Weekly != nil {
		summaryRows = append(summaryRows, []any{"Week over week", s.Weekly.Delta})
	}
	if err := writeRows(f, sheetSummary, summaryRows); err != nil {
		return err
	}
	if err := f.SetColWidth(sheetSummary, "A", "A", 22); err != nil {
		return errors.Wrap(err, "size summary sheet")
	}

	if _, err := f.NewSheet(sheetOKRs); err != nil {
		return errors.Wrap(err, "add okr sheet")
	}
	okrRows := [][]any{toAny(Columns)}
	for _, d := range b.OKRs {
		okrRows = append(okrRows, toAny(RowFor(d).fields(func(s string) string { return s })))
	}
	if err := writeRows(f, sheetOKRs, okrRows); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheetOKRs, 1, 1, header); err != nil {
		return errors.Wrap(err, "style okr header")
	}

	if _, err := f.NewSheet(sheetCheckIns); err != nil {
		return errors.Wrap(err, "add check-in sheet")
	}
	if err := writeRows(f, sheetCheckIns, checkInRows(b.OKRs)); err != nil {
		return err
	}
	if err := f.SetRowStyle(sheetCheckIns, 1, 1, header); err != nil {
		return errors.Wrap(err, "style check-in header")
	}

	f.SetActiveSheet(0)
	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "write workbook")
	}
	return nil
}

func checkInRows(details []insights.OKRWithDetails) [][]any {
	rows := [][]any{toAny(checkInColumns)}
	for _, d := range details {
		for _, ci := range d.CheckIns {
			rootCause := ""
			if ci.RootCause != nil {
				rootCause = string(*ci.RootCause)
			}
			rows = append(rows, []any{
				d.OKR.ID,
				d.OKR.ObjectiveText,
				ci.Date.Format(okr.DateLayout),
				ci.Progress,
				ci.Confidence,
				string(ci.ConfidenceLabel),
				rootCause,
				okr.Deref(ci.ReasonForChange),
				okr.Deref(ci.OptionalNote),
			})
		}
	}
	return rows
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return errors.Wrap(err, "cell name")
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return errors.Wrapf(err, "set %s row %d", sheet, i+1)
		}
	}
	return nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
