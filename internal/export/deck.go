package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"okrtrack/internal/insights"
	"okrtrack/internal/narrative"
	"okrtrack/internal/okr"
	"okrtrack/internal/okrstore"
)

// DeckBundle is the plain data handed to a Renderer. Renderers own the
// output format entirely.
type DeckBundle struct {
	Quarter     string
	ScopeLabel  string
	GeneratedAt time.Time
	Summary     insights.Summary
	OKRs        []insights.OKRWithDetails
	Narrative   narrative.Report
}

// NewDeckBundle enriches the OKRs of a quarter that pass filter and bundles
// them with their roll-ups and narrative. OKRs are sorted most urgent first.
func NewDeckBundle(r okrstore.Reader, quarter, scopeLabel string, filter insights.Filter, now time.Time) (DeckBundle, error) {
	details, err := insights.DetailsForQuarter(r, quarter, filter)
	if err != nil {
		return DeckBundle{}, errors.Wrap(err, "collect okrs")
	}
	insights.SortByUrgency(details)
	summary := insights.Summarize(r, insights.IDs(details))
	return DeckBundle{
		Quarter:     quarter,
		ScopeLabel:  scopeLabel,
		GeneratedAt: now.UTC(),
		Summary:     summary,
		OKRs:        details,
		Narrative: narrative.Generate(narrative.Input{
			Quarter:    quarter,
			ScopeLabel: scopeLabel,
			OKRs:       details,
			Summary:    &summary,
		}),
	}, nil
}

// Renderer writes a DeckBundle in some presentation format.
type Renderer interface {
	Render(w io.Writer, bundle DeckBundle) error
	Extension() string
}

// MarkdownDeckRenderer renders slides as Markdown separated by "---" lines,
// the format most slide tools import.
type MarkdownDeckRenderer struct{}

// Extension implements Renderer.
func (MarkdownDeckRenderer) Extension() string { return ".md" }

// Render implements Renderer.
func (MarkdownDeckRenderer) Render(w io.Writer, b DeckBundle) error {
	var slides []string

	title := fmt.Sprintf("# %s OKR review", okr.FormatQuarter(b.Quarter))
	if b.ScopeLabel != "" {
		title += "\n\n## " + b.ScopeLabel
	}
	title += fmt.Sprintf("\n\nGenerated %s", b.GeneratedAt.Format(okr.DateLayout))
	slides = append(slides, title)

	s := b.Summary
	overview := fmt.Sprintf("# Overview\n\n- Overall confidence: %d%%\n- OKRs: %d (%d with check-ins)\n- At risk: %d\n- On track: %d\n- Orphaned: %d",
		s.OverallConfidence, s.Total, s.WithCheckIns, s.AtRisk, s.OnTrack, s.Orphaned)
	if s.Weekly != nil {
		overview += fmt.Sprintf("\n- Week over week: %+d points", s.Weekly.Delta)
	}
	slides = append(slides, overview)

	for _, d := range b.OKRs {
		slides = append(slides, okrSlide(d))
	}

	slides = append(slides, "# Narrative\n\n"+strings.TrimRight(b.Narrative.Text(), "\n"))

	_, err := io.WriteString(w, strings.Join(slides, "\n\n---\n\n")+"\n")
	if err != nil {
		return errors.Wrap(err, "write deck")
	}
	return nil
}

func okrSlide(d insights.OKRWithDetails) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.OKR.ObjectiveText)
	if d.OwnerName != "" {
		fmt.Fprintf(&b, "Owner: %s (%s)\n\n", d.OwnerName, d.OKR.Level)
	}
	if ci := d.LatestCheckIn; ci != nil {
		fmt.Fprintf(&b, "Confidence %s (%s, %s), progress %s%%, trend %s\n\n",
			formatNumber(ci.Confidence), ci.ConfidenceLabel, insights.HealthTierFor(ci.Confidence),
			formatNumber(ci.Progress), d.Trend)
	} else {
		b.WriteString("No check-ins yet\n\n")
	}
	for _, kr := range d.KeyResults {
		marker := ""
		if kr.NeedsAttention {
			marker = " (needs attention)"
		}
		fmt.Fprintf(&b, "- %s: %s / %s, %s%%%s\n",
			kr.Text, formatNumber(kr.CurrentValue), formatNumber(kr.TargetValue),
			formatNumber(insights.KeyResultPercent(kr)), marker)
	}
	if d.OKR.QuarterClose != nil {
		qc := d.OKR.QuarterClose
		fmt.Fprintf(&b, "\nClosed as %s: %s\n", strings.ReplaceAll(string(qc.Achievement), "_", " "), qc.Summary)
	}
	return strings.TrimRight(b.String(), "\n")
}
