package export

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"okrtrack/internal/insights"
	"okrtrack/internal/okr"
	"okrtrack/internal/okrstore"
)

func fixture(t *testing.T) *okrstore.Store {
	t.Helper()
	s := okrstore.New("acme")
	s.PutProductArea(okr.ProductArea{ID: "pa-1", Name: "Growth"})
	s.PutDomain(okr.Domain{ID: "dom-1", Name: "Onboarding", ProductAreaID: "pa-1"})
	s.PutTeam(okr.Team{ID: "team-1", Name: "Alpha", DomainID: "dom-1", Cadence: okr.CadenceWeekly})

	s.PutOKR(okr.OKR{ID: "okr-pa", Level: okr.LevelProductArea, OwnerID: "pa-1", Quarter: "2025-Q3", ObjectiveText: "Grow activation", Status: okr.StatusActive})
	s.PutOKR(okr.OKR{ID: "okr-team", Level: okr.LevelTeam, OwnerID: "team-1", Quarter: "2025-Q3", ObjectiveText: "Ship guided setup", ParentOKRID: okr.Ptr("okr-pa"), Status: okr.StatusActive})
	s.PutOKR(okr.OKR{ID: "okr-risk", Level: okr.LevelTeam, OwnerID: "team-1", Quarter: "2025-Q3", ObjectiveText: "Cut churn", Status: okr.StatusActive})
	s.PutOKR(okr.OKR{ID: "okr-later", Level: okr.LevelTeam, OwnerID: "team-1", Quarter: "2025-Q4", ObjectiveText: "Next quarter"})

	s.PutKeyResult(okr.KeyResult{ID: "kr-1", OKRID: "okr-team", Text: "Completion", Baseline: 50, TargetValue: 80, CurrentValue: 65, NeedsAttention: true})

	add := func(id, okrID, day string, progress, confidence float64) {
		d, err := okr.ParseDate(day)
		require.NoError(t, err)
		s.AppendCheckIn(okr.CheckIn{
			ID: id, OKRID: okrID, Date: d, Progress: progress, Confidence: confidence,
			ConfidenceLabel: okr.ConfidenceLabelFor(confidence),
		})
	}
	add("ci-1", "okr-team", "2025-07-06", 10, 65)
	add("ci-2", "okr-team", "2025-07-13", 20, 30)
	add("ci-3", "okr-team", "2025-07-20", 45, 70)
	add("ci-4", "okr-risk", "2025-07-06", 5, 35)
	add("ci-5", "okr-risk", "2025-07-13", 8, 28)
	return s
}

func quarterDetails(t *testing.T, s *okrstore.Store) []insights.OKRWithDetails {
	t.Helper()
	details, err := insights.DetailsForQuarter(s, "2025-Q3", nil)
	require.NoError(t, err)
	return details
}

func TestCSVLineAndFieldCounts(t *testing.T) {
	details := quarterDetails(t, fixture(t))
	out := CSV(details)

	lines := strings.Split(out, "\n")
	require.Len(t, lines, len(details)+1)
	headerFields := len(strings.Split(lines[0], ","))
	assert.Equal(t, len(Columns), headerFields)
	for _, line := range lines[1:] {
		assert.Equal(t, headerFields, len(strings.Split(line, ",")), line)
	}
	assert.False(t, strings.HasSuffix(out, "\n"))
}

func TestCSVEmpty(t *testing.T) {
	assert.Equal(t, strings.Join(Columns, ","), CSV(nil))
}

func TestCSVRow(t *testing.T) {
	details := quarterDetails(t, fixture(t))
	lines := strings.Split(CSV(details), "\n")
	assert.Equal(t, `okr-team,Q3 2025,team,"Alpha","Ship guided setup",active,70,Medium,high,up,45,50,false`, lines[2])
	assert.Equal(t, `okr-pa,Q3 2025,productArea,"Growth","Grow activation",active,,,,flat,,0,false`, lines[1])
}

func TestCSVDoesNotEscapeQuotes(t *testing.T) {
	s := fixture(t)
	s.PutOKR(okr.OKR{ID: "okr-pa", Level: okr.LevelProductArea, OwnerID: "pa-1", Quarter: "2025-Q3", ObjectiveText: `Win "best onboarding"`, Status: okr.StatusActive})
	lines := strings.Split(CSV(quarterDetails(t, s)), "\n")
	assert.Contains(t, lines[1], `"Win "best onboarding""`)
}

func TestTable(t *testing.T) {
	s := fixture(t)
	s.PutOKR(okr.OKR{ID: "okr-risk", Level: okr.LevelTeam, OwnerID: "team-1", Quarter: "2025-Q3", ObjectiveText: "Cut churn | retention", Status: okr.StatusActive})
	out := Table(quarterDetails(t, s))

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 2+3)
	assert.True(t, strings.HasPrefix(lines[0], "| OKR ID | Quarter |"))
	assert.Contains(t, out, `Cut churn \| retention`)
	for _, line := range lines {
		assert.Equal(t, len(Columns)+1, strings.Count(line, "|")-strings.Count(line, `\|`), line)
	}
}

func TestNewDeckBundle(t *testing.T) {
	now := time.Date(2025, 7, 25, 9, 0, 0, 0, time.UTC)
	b, err := NewDeckBundle(fixture(t), "2025-Q3", "Growth", nil, now)
	require.NoError(t, err)

	assert.Equal(t, []string{"okr-risk", "okr-team", "okr-pa"}, insights.IDs(b.OKRs))
	assert.Equal(t, 3, b.Summary.Total)
	assert.Equal(t, 49, b.Summary.OverallConfidence)
	require.Len(t, b.Narrative.Entries, 3)
}

func TestMarkdownDeckRenderer(t *testing.T) {
	now := time.Date(2025, 7, 25, 9, 0, 0, 0, time.UTC)
	b, err := NewDeckBundle(fixture(t), "2025-Q3", "Growth", insights.ByLevel(okr.LevelTeam), now)
	require.NoError(t, err)

	var buf bytes.Buffer
	r := MarkdownDeckRenderer{}
	require.NoError(t, r.Render(&buf, b))
	out := buf.String()

	slides := strings.Split(out, "\n---\n")
	require.Len(t, slides, 2+2+1)
	assert.Contains(t, slides[0], "# Q3 2025 OKR review")
	assert.Contains(t, slides[0], "Generated 2025-07-25")
	assert.Contains(t, slides[1], "- Overall confidence: 49%")
	assert.Contains(t, out, "- Completion: 65 / 80, 50% (needs attention)")
	assert.Contains(t, out, "Recovered (1)")
	assert.Equal(t, ".md", r.Extension())
}

func TestWorkbookRenderer(t *testing.T) {
	now := time.Date(2025, 7, 25, 9, 0, 0, 0, time.UTC)
	b, err := NewDeckBundle(fixture(t), "2025-Q3", "Growth", nil, now)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WorkbookRenderer{}.Render(&buf, b))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() {
		_ = f.Close()
	}()

	assert.Equal(t, []string{sheetSummary, sheetOKRs, sheetCheckIns}, f.GetSheetList())

	okrRows, err := f.GetRows(sheetOKRs)
	require.NoError(t, err)
	require.Len(t, okrRows, 4)
	assert.Equal(t, Columns, okrRows[0])
	assert.Equal(t, "okr-risk", okrRows[1][0])

	ciRows, err := f.GetRows(sheetCheckIns)
	require.NoError(t, err)
	assert.Len(t, ciRows, 1+5)

	v, err := f.GetCellValue(sheetSummary, "B4")
	require.NoError(t, err)
	assert.Equal(t, "49", v)
}

func TestWriteRowsFillsWholeRows(t *testing.T) {
	f := excelize.NewFile()
	defer func() {
		_ = f.Close()
	}()

	require.NoError(t, writeRows(f, "Sheet1", [][]any{
		{"id", "confidence", "note"},
		{"okr-1", 72.5, "steady"},
		{"okr-2", 40, "blocked"},
	}))

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"id", "confidence", "note"},
		{"okr-1", "72.5", "steady"},
		{"okr-2", "40", "blocked"},
	}, rows)
}

func TestDiff(t *testing.T) {
	diff, err := Diff("a\nb\n", "a\nc\n", "previous.csv", "current.csv")
	require.NoError(t, err)
	assert.Contains(t, diff, "--- previous.csv")
	assert.Contains(t, diff, "+++ current.csv")
	assert.Contains(t, diff, "-b\n")
	assert.Contains(t, diff, "+c\n")

	diff, err = Diff("same", "same", "a", "b")
	require.NoError(t, err)
	assert.Empty(t, diff)

	diff, err = DiffAgainstFile(filepath.Join(t.TempDir(), "missing.csv"), "x\n", "current.csv")
	require.NoError(t, err)
	assert.Contains(t, diff, "+x\n")
}
