package okrstore

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"okrtrack/internal/okr"
)

type rawDocument struct {
	Organization string           `yaml:"organization"`
	ProductAreas []rawProductArea `yaml:"product_areas"`
	Domains      []rawDomain      `yaml:"domains"`
	Teams        []rawTeam        `yaml:"teams"`
	OKRs         []rawOKR         `yaml:"okrs"`
}

type rawProductArea struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type rawDomain struct {
	ID            string `yaml:"id"`
	Name          string `yaml:"name"`
	ProductAreaID string `yaml:"product_area_id"`
}

type rawTeam struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	DomainID string `yaml:"domain_id"`
	PMName   string `yaml:"pm_name"`
	PMUserID string `yaml:"pm_user_id,omitempty"`
	Cadence  string `yaml:"cadence"`
}

type rawOKR struct {
	ID             string         `yaml:"id"`
	Level          string         `yaml:"level"`
	OwnerID        string         `yaml:"owner_id"`
	Quarter        string         `yaml:"quarter"`
	Objective      string         `yaml:"objective"`
	ParentOKRID    string         `yaml:"parent_okr_id,omitempty"`
	IsRolledOver   bool           `yaml:"is_rolled_over,omitempty"`
	RolledOverFrom string         `yaml:"rolled_over_from,omitempty"`
	Status         string         `yaml:"status,omitempty"`
	QuarterClose   *rawClose      `yaml:"quarter_close,omitempty"`
	KeyResults     []rawKeyResult `yaml:"key_results"`
	CheckIns       []rawCheckIn   `yaml:"check_ins,omitempty"`
	JiraLinks      []string       `yaml:"jira_links,omitempty"`
}

type rawClose struct {
	FinalValue  float64 `yaml:"final_value"`
	Achievement string  `yaml:"achievement"`
	Summary     string  `yaml:"summary"`
	ClosedAt    string  `yaml:"closed_at"`
}

type rawKeyResult struct {
	ID              string   `yaml:"id"`
	Text            string   `yaml:"text"`
	Target          *float64 `yaml:"target"`
	Current         *float64 `yaml:"current,omitempty"`
	Baseline        *float64 `yaml:"baseline,omitempty"`
	NeedsAttention  bool     `yaml:"needs_attention,omitempty"`
	AttentionReason string   `yaml:"attention_reason,omitempty"`
}

type rawCheckIn struct {
	ID                 string   `yaml:"id"`
	Date               string   `yaml:"date"`
	Cadence            string   `yaml:"cadence,omitempty"`
	Progress           *float64 `yaml:"progress"`
	Confidence         *float64 `yaml:"confidence"`
	ConfidenceLabel    string   `yaml:"confidence_label,omitempty"`
	ReasonForChange    string   `yaml:"reason_for_change,omitempty"`
	Note               string   `yaml:"note,omitempty"`
	RootCause          string   `yaml:"root_cause,omitempty"`
	RootCauseNote      string   `yaml:"root_cause_note,omitempty"`
	RecoveryLikelihood string   `yaml:"recovery_likelihood,omitempty"`
}

// ValidationError captures a single field-specific validation issue.
type ValidationError struct {
	File    string
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.File, e.Field, e.Message)
}

// ValidationErrors aggregates multiple validation problems.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Error())
	}
	return strings.Join(parts, "\n")
}

// Document is a normalized seed document.
type Document struct {
	Organization string
	ProductAreas []okr.ProductArea
	Domains      []okr.Domain
	Teams        []okr.Team
	OKRs         []okr.OKR
	KeyResults   []okr.KeyResult
	CheckIns     []okr.CheckIn
	JiraLinks    []okr.JiraLink
	Source       string
}

// ParseAndValidateDocument unmarshals and validates a YAML seed document.
// Cross-document references are checked later by LoadFromDir.
func ParseAndValidateDocument(data []byte, source string) (Document, error) {
	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Document{}, ValidationErrors{{
			File:    source,
			Field:   "yaml",
			Message: err.Error(),
		}}
	}
	return validateRawDocument(raw, source)
}

func validateRawDocument(raw rawDocument, source string) (Document, error) {
	v := &validator{source: source}
	doc := Document{
		Organization: strings.TrimSpace(raw.Organization),
		Source:       source,
	}

	if doc.Organization == "" {
		v.add("organization", "organization is required")
	}

	for i, rp := range raw.ProductAreas {
		path := fmt.Sprintf("product_areas[%d]", i)
		v.required(path+".id", rp.ID)
		v.required(path+".name", rp.Name)
		doc.ProductAreas = append(doc.ProductAreas, okr.ProductArea{
			ID:   strings.TrimSpace(rp.ID),
			Name: strings.TrimSpace(rp.Name),
		})
	}

	for i, rd := range raw.Domains {
		path := fmt.Sprintf("domains[%d]", i)
		v.required(path+".id", rd.ID)
		v.required(path+".name", rd.Name)
		v.required(path+".product_area_id", rd.ProductAreaID)
		doc.Domains = append(doc.Domains, okr.Domain{
			ID:            strings.TrimSpace(rd.ID),
			Name:          strings.TrimSpace(rd.Name),
			ProductAreaID: strings.TrimSpace(rd.ProductAreaID),
		})
	}

	for i, rt := range raw.Teams {
		path := fmt.Sprintf("teams[%d]", i)
		v.required(path+".id", rt.ID)
		v.required(path+".name", rt.Name)
		v.required(path+".domain_id", rt.DomainID)
		cadence := okr.CadenceWeekly
		if strings.TrimSpace(rt.Cadence) != "" {
			parsed, ok := okr.ParseCadence(strings.TrimSpace(rt.Cadence))
			if !ok {
				v.add(path+".cadence", fmt.Sprintf("invalid cadence %q (expected weekly or biweekly)", rt.Cadence))
			}
			cadence = parsed
		}
		team := okr.Team{
			ID:       strings.TrimSpace(rt.ID),
			Name:     strings.TrimSpace(rt.Name),
			DomainID: strings.TrimSpace(rt.DomainID),
			PMName:   strings.TrimSpace(rt.PMName),
			Cadence:  cadence,
		}
		if id := strings.TrimSpace(rt.PMUserID); id != "" {
			team.PMUserID = okr.Ptr(id)
		}
		doc.Teams = append(doc.Teams, team)
	}

	for i, ro := range raw.OKRs {
		v.okr(&doc, ro, fmt.Sprintf("okrs[%d]", i))
	}

	if len(v.errs) > 0 {
		return Document{}, v.errs
	}
	return doc, nil
}

type validator struct {
	source string
	errs   ValidationErrors
}

func (v *validator) add(field, message string) {
	v.errs = append(v.errs, ValidationError{File: v.source, Field: field, Message: message})
}

func (v *validator) required(field, value string) {
	if strings.TrimSpace(value) == "" {
		name := field[strings.LastIndex(field, ".")+1:]
		v.add(field, name+" is required")
	}
}

func (v *validator) okr(doc *Document, ro rawOKR, path string) {
	v.required(path+".id", ro.ID)
	v.required(path+".owner_id", ro.OwnerID)
	v.required(path+".objective", ro.Objective)

	level, ok := okr.ParseLevel(strings.TrimSpace(ro.Level))
	if !ok {
		v.add(path+".level", fmt.Sprintf("invalid level %q (expected productArea, domain, or team)", ro.Level))
	}

	quarter, err := okr.ParseQuarter(ro.Quarter)
	if err != nil {
		v.add(path+".quarter", err.Error())
	}

	status := okr.StatusActive
	switch strings.TrimSpace(ro.Status) {
	case "", string(okr.StatusActive):
	case string(okr.StatusClosed):
		status = okr.StatusClosed
	default:
		v.add(path+".status", fmt.Sprintf("invalid status %q", ro.Status))
	}

	o := okr.OKR{
		ID:            strings.TrimSpace(ro.ID),
		Level:         level,
		OwnerID:       strings.TrimSpace(ro.OwnerID),
		Quarter:       quarter.String(),
		Year:          quarter.Year,
		QuarterNum:    quarter.Num,
		ObjectiveText: strings.TrimSpace(ro.Objective),
		IsRolledOver:  ro.IsRolledOver,
		Status:        status,
	}
	if p := strings.TrimSpace(ro.ParentOKRID); p != "" {
		o.ParentOKRID = okr.Ptr(p)
	}
	if r := strings.TrimSpace(ro.RolledOverFrom); r != "" {
		o.RolledOverFrom = okr.Ptr(r)
	}
	if ro.QuarterClose != nil {
		o.QuarterClose = v.quarterClose(*ro.QuarterClose, path+".quarter_close")
	}
	doc.OKRs = append(doc.OKRs, o)

	if len(ro.KeyResults) == 0 {
		v.add(path+".key_results", "must contain at least one key result")
	}
	for i, rk := range ro.KeyResults {
		krPath := fmt.Sprintf("%s.key_results[%d]", path, i)
		v.required(krPath+".id", rk.ID)
		v.required(krPath+".text", rk.Text)
		if rk.Target == nil {
			v.add(krPath+".target", "target is required")
		}
		kr := okr.KeyResult{
			ID:             strings.TrimSpace(rk.ID),
			OKRID:          o.ID,
			Text:           strings.TrimSpace(rk.Text),
			TargetValue:    okr.Deref(rk.Target),
			CurrentValue:   okr.Deref(rk.Current),
			Baseline:       okr.Deref(rk.Baseline),
			NeedsAttention: rk.NeedsAttention,
		}
		if rk.Current == nil {
			kr.CurrentValue = kr.Baseline
		}
		if reason := strings.TrimSpace(rk.AttentionReason); reason != "" {
			kr.AttentionReason = okr.Ptr(reason)
		}
		doc.KeyResults = append(doc.KeyResults, kr)
	}

	for i, rc := range ro.CheckIns {
		ciPath := fmt.Sprintf("%s.check_ins[%d]", path, i)
		if ci, ok := v.checkIn(rc, ciPath, o.ID); ok {
			doc.CheckIns = append(doc.CheckIns, ci)
		}
	}

	for i, link := range ro.JiraLinks {
		link = strings.TrimSpace(link)
		if link == "" {
			v.add(fmt.Sprintf("%s.jira_links[%d]", path, i), "jira link cannot be empty")
			continue
		}
		doc.JiraLinks = append(doc.JiraLinks, okr.JiraLink{
			ID:                  fmt.Sprintf("%s-link-%d", o.ID, i+1),
			OKRID:               o.ID,
			EpicIdentifierOrURL: link,
		})
	}
}

func (v *validator) quarterClose(rc rawClose, path string) *okr.QuarterClose {
	achievement, ok := okr.ParseAchievement(strings.TrimSpace(rc.Achievement))
	if !ok {
		v.add(path+".achievement", fmt.Sprintf("invalid achievement %q", rc.Achievement))
	}
	qc := &okr.QuarterClose{
		FinalValue:  rc.FinalValue,
		Achievement: achievement,
		Summary:     strings.TrimSpace(rc.Summary),
	}
	if rc.ClosedAt != "" {
		ts, err := parseISO8601(rc.ClosedAt)
		if err != nil {
			v.add(path+".closed_at", "must be ISO-8601 date or datetime")
		}
		qc.ClosedAt = ts.UTC()
	}
	return qc
}

func (v *validator) checkIn(rc rawCheckIn, path, okrID string) (okr.CheckIn, bool) {
	before := len(v.errs)
	v.required(path+".id", rc.ID)

	date, err := okr.ParseDate(rc.Date)
	if err != nil {
		v.add(path+".date", "must be a YYYY-MM-DD date")
	}
	if rc.Progress == nil {
		v.add(path+".progress", "progress is required")
	}
	if rc.Confidence == nil {
		v.add(path+".confidence", "confidence is required")
	}

	cadence := okr.CadenceWeekly
	if c := strings.TrimSpace(rc.Cadence); c != "" {
		parsed, ok := okr.ParseCadence(c)
		if !ok {
			v.add(path+".cadence", fmt.Sprintf("invalid cadence %q", rc.Cadence))
		}
		cadence = parsed
	}

	ci := okr.CheckIn{
		ID:                 strings.TrimSpace(rc.ID),
		OKRID:              okrID,
		Date:               date,
		Cadence:            cadence,
		Progress:           okr.Deref(rc.Progress),
		Confidence:         okr.Deref(rc.Confidence),
		ReasonForChange:    optional(rc.ReasonForChange),
		OptionalNote:       optional(rc.Note),
		RootCauseNote:      optional(rc.RootCauseNote),
		RecoveryLikelihood: optional(rc.RecoveryLikelihood),
		CreatedAt:          date,
	}

	// A stored label is history and wins over the current thresholds.
	switch label := okr.ConfidenceLabel(strings.TrimSpace(rc.ConfidenceLabel)); label {
	case okr.LabelHigh, okr.LabelMedium, okr.LabelLow:
		ci.ConfidenceLabel = label
	case "":
		ci.ConfidenceLabel = okr.ConfidenceLabelFor(ci.Confidence)
	default:
		v.add(path+".confidence_label", fmt.Sprintf("invalid confidence label %q", label))
	}

	if rc := strings.TrimSpace(rc.RootCause); rc != "" {
		cause, ok := okr.ParseRootCause(rc)
		if !ok {
			v.add(path+".root_cause", fmt.Sprintf("invalid root cause %q", rc))
		}
		ci.RootCause = okr.Ptr(cause)
	}

	return ci, len(v.errs) == before
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return okr.Ptr(value)
}

func parseISO8601(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}

	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02", value)
}
