// Package export renders a quarter's OKRs as CSV, Markdown tables, slide
// decks and workbooks.
package export

import (
	"fmt"
	"strconv"
	"strings"

	"okrtrack/internal/insights"
	"okrtrack/internal/okr"
)

// Columns is the header shared by the CSV and table exports.
var Columns = []string{
	"OKR ID",
	"Quarter",
	"Level",
	"Owner",
	"Objective",
	"Status",
	"Confidence",
	"Confidence Label",
	"Health",
	"Trend",
	"Progress",
	"KR Progress",
	"Orphaned",
}

// Row is one OKR flattened for tabular output.
type Row struct {
	OKRID           string
	Quarter         string
	Level           string
	Owner           string
	Objective       string
	Status          string
	Confidence      string
	ConfidenceLabel string
	Health          string
	Trend           string
	Progress        string
	KRProgress      string
	Orphaned        string
}

// RowFor flattens one enriched OKR. Columns that depend on a check-in are
// blank when there is none.
func RowFor(d insights.OKRWithDetails) Row {
	r := Row{
		OKRID:      d.OKR.ID,
		Quarter:    okr.FormatQuarter(d.OKR.Quarter),
		Level:      string(d.OKR.Level),
		Owner:      d.OwnerName,
		Objective:  d.OKR.ObjectiveText,
		Status:     string(d.OKR.Status),
		Trend:      string(d.Trend),
		KRProgress: formatNumber(insights.KeyResultsPercent(d.KeyResults)),
		Orphaned:   strconv.FormatBool(d.IsOrphaned),
	}
	if ci := d.LatestCheckIn; ci != nil {
		r.Confidence = formatNumber(ci.Confidence)
		r.ConfidenceLabel = string(ci.ConfidenceLabel)
		r.Health = string(insights.HealthTierFor(ci.Confidence))
		r.Progress = formatNumber(ci.Progress)
	}
	return r
}

func (r Row) fields(quote func(string) string) []string {
	return []string{
		r.OKRID,
		r.Quarter,
		r.Level,
		quote(r.Owner),
		quote(r.Objective),
		r.Status,
		r.Confidence,
		r.ConfidenceLabel,
		r.Health,
		r.Trend,
		r.Progress,
		r.KRProgress,
		r.Orphaned,
	}
}

// CSV renders a header and one line per OKR, joined by newlines with no
// trailing newline. Owner and objective are wrapped in double quotes
// verbatim: embedded quotes are not escaped, so values containing quotes or
// commas do not survive a CSV parser.
func CSV(details []insights.OKRWithDetails) string {
	lines := make([]string, 0, len(details)+1)
	lines = append(lines, strings.Join(Columns, ","))
	for _, d := range details {
		lines = append(lines, strings.Join(RowFor(d).fields(wrapQuotes), ","))
	}
	return strings.Join(lines, "\n")
}

func wrapQuotes(s string) string {
	return `"` + s + `"`
}

// Table renders a Markdown table with the same columns as CSV. Pipes in free
// text are escaped so each row keeps its cell count.
func Table(details []insights.OKRWithDetails) string {
	var b strings.Builder
	b.WriteString("| " + strings.Join(Columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(Columns)) + "\n")
	for _, d := range details {
		cells := RowFor(d).fields(escapePipes)
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
	return b.String()
}

func escapePipes(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return fmt.Sprintf("%.1f", v)
}
