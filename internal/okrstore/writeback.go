package okrstore

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"

	"okrtrack/internal/okr"
)

// EncodeDocument renders the store as a single seed document that
// LoadFromDir accepts.
func EncodeDocument(s *Store) ([]byte, error) {
	raw := rawDocument{Organization: s.OrganizationID}
	for _, pa := range s.ProductAreas() {
		raw.ProductAreas = append(raw.ProductAreas, rawProductArea{ID: pa.ID, Name: pa.Name})
	}
	for _, d := range s.Domains() {
		raw.Domains = append(raw.Domains, rawDomain{ID: d.ID, Name: d.Name, ProductAreaID: d.ProductAreaID})
	}
	for _, t := range s.Teams() {
		raw.Teams = append(raw.Teams, rawTeam{
			ID:       t.ID,
			Name:     t.Name,
			DomainID: t.DomainID,
			PMName:   t.PMName,
			PMUserID: okr.Deref(t.PMUserID),
			Cadence:  string(t.Cadence),
		})
	}
	for _, o := range s.OKRs() {
		raw.OKRs = append(raw.OKRs, encodeOKR(s, o))
	}

	data, err := yaml.Marshal(raw)
	if err != nil {
		return nil, errors.Wrap(err, "encode seed document")
	}
	return data, nil
}

func encodeOKR(s *Store, o okr.OKR) rawOKR {
	ro := rawOKR{
		ID:             o.ID,
		Level:          string(o.Level),
		OwnerID:        o.OwnerID,
		Quarter:        o.Quarter,
		Objective:      o.ObjectiveText,
		ParentOKRID:    okr.Deref(o.ParentOKRID),
		IsRolledOver:   o.IsRolledOver,
		RolledOverFrom: okr.Deref(o.RolledOverFrom),
		Status:         string(o.Status),
	}
	if qc := o.QuarterClose; qc != nil {
		ro.QuarterClose = &rawClose{
			FinalValue:  qc.FinalValue,
			Achievement: string(qc.Achievement),
			Summary:     qc.Summary,
			ClosedAt:    qc.ClosedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		}
	}
	for _, kr := range s.KeyResultsFor(o.ID) {
		ro.KeyResults = append(ro.KeyResults, rawKeyResult{
			ID:              kr.ID,
			Text:            kr.Text,
			Target:          okr.Ptr(kr.TargetValue),
			Current:         okr.Ptr(kr.CurrentValue),
			Baseline:        okr.Ptr(kr.Baseline),
			NeedsAttention:  kr.NeedsAttention,
			AttentionReason: okr.Deref(kr.AttentionReason),
		})
	}
	for _, ci := range s.CheckInsFor(o.ID) {
		rc := rawCheckIn{
			ID:                 ci.ID,
			Date:               ci.Date.Format(okr.DateLayout),
			Cadence:            string(ci.Cadence),
			Progress:           okr.Ptr(ci.Progress),
			Confidence:         okr.Ptr(ci.Confidence),
			ConfidenceLabel:    string(ci.ConfidenceLabel),
			ReasonForChange:    okr.Deref(ci.ReasonForChange),
			Note:               okr.Deref(ci.OptionalNote),
			RootCauseNote:      okr.Deref(ci.RootCauseNote),
			RecoveryLikelihood: okr.Deref(ci.RecoveryLikelihood),
		}
		if ci.RootCause != nil {
			rc.RootCause = string(*ci.RootCause)
		}
		ro.CheckIns = append(ro.CheckIns, rc)
	}
	for _, link := range s.JiraLinksFor(o.ID) {
		ro.JiraLinks = append(ro.JiraLinks, link.EpicIdentifierOrURL)
	}
	return ro
}

// WriteSnapshot writes the store as a seed document to path and returns a
// unified diff against whatever the file held before. An empty diff means
// nothing changed.
func WriteSnapshot(s *Store, path string) (string, error) {
	data, err := EncodeDocument(s)
	if err != nil {
		return "", err
	}

	oldBytes, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return "", errors.Wrapf(err, "read %s", path)
	}

	base := filepath.Base(path)
	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(oldBytes)),
		B:        difflib.SplitLines(string(data)),
		FromFile: filepath.Join("previous", base),
		ToFile:   filepath.Join("current", base),
		Context:  3,
	}
	diffText, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", errors.Wrapf(err, "diff %s", base)
	}

	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}
	if strings.TrimSpace(diffText) == "" {
		return "", nil
	}
	return diffText, nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, "ensure snapshot dir")
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".seed-*.yml")
	if err != nil {
		return errors.Wrap(err, "create temp snapshot")
	}
	tmpName := tmp.Name()
	defer func() {
		_ = os.Remove(tmpName)
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "write temp snapshot")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp snapshot")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return errors.Wrap(err, "replace snapshot")
	}
	return nil
}
