package lifecycle

import (
	"time"

	"okrtrack/internal/okr"
)

// CheckInInput is one check-in submission. A zero Date means today and an
// empty Cadence falls back to the owning team's cadence.
type CheckInInput struct {
	OKRID              string
	Date               time.Time
	Cadence            okr.Cadence
	Progress           float64
	Confidence         float64
	ReasonForChange    *string
	OptionalNote       *string
	RootCause          *okr.RootCause
	RootCauseNote      *string
	RecoveryLikelihood *string
}

// AddCheckIn appends a check-in and returns its id, or "" if the OKR is
// missing. The confidence label is fixed here. Key result values are not
// touched: progress is a holistic self-report.
func (s *Service) AddCheckIn(in CheckInInput) string {
	o, ok := s.Store.OKR(in.OKRID)
	if !ok {
		return ""
	}
	now := s.now()
	day := in.Date
	if day.IsZero() {
		day = now
	}
	cadence := in.Cadence
	if cadence == "" {
		cadence = s.cadenceFor(o)
	}

	ci := okr.CheckIn{
		ID:                 s.newID(),
		OKRID:              o.ID,
		Date:               okr.DateOnly(day),
		Cadence:            cadence,
		Progress:           in.Progress,
		Confidence:         in.Confidence,
		ConfidenceLabel:    okr.ConfidenceLabelFor(in.Confidence),
		ReasonForChange:    in.ReasonForChange,
		OptionalNote:       in.OptionalNote,
		RootCause:          in.RootCause,
		RootCauseNote:      in.RootCauseNote,
		RecoveryLikelihood: in.RecoveryLikelihood,
		CreatedAt:          now,
	}
	s.Store.AppendCheckIn(ci)
	s.record(EntityCheckIn, OpInsert, ci.ID)
	return ci.ID
}

// UpdateTeamCadence changes a team's check-in cadence. Existing check-ins
// keep the cadence they were recorded with; the next due date is computed at
// read time. It reports false if the team is missing.
func (s *Service) UpdateTeamCadence(teamID string, cadence okr.Cadence) bool {
	t, ok := s.Store.Team(teamID)
	if !ok {
		return false
	}
	t.Cadence = cadence
	s.Store.PutTeam(t)
	s.record(EntityTeam, OpUpdate, t.ID)
	return true
}

// SetKeyResultAttention flags or clears a key result for attention. Clearing
// also drops the reason.
func (s *Service) SetKeyResultAttention(krID string, needs bool, reason *string) bool {
	kr, ok := s.Store.KeyResult(krID)
	if !ok {
		return false
	}
	kr.NeedsAttention = needs
	kr.AttentionReason = nil
	if needs {
		kr.AttentionReason = reason
	}
	s.Store.PutKeyResult(kr)
	s.record(EntityKeyResult, OpUpdate, kr.ID)
	return true
}

// UpdateKeyResultValue records a new current value for a key result.
func (s *Service) UpdateKeyResultValue(krID string, value float64) bool {
	kr, ok := s.Store.KeyResult(krID)
	if !ok {
		return false
	}
	kr.CurrentValue = value
	s.Store.PutKeyResult(kr)
	s.record(EntityKeyResult, OpUpdate, kr.ID)
	return true
}
