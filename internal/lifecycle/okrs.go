package lifecycle

import (
	"strconv"
	"strings"

	"github.com/go-faster/errors"

	"okrtrack/internal/okr"
)

// InitialCheckInNote is attached to the check-in created with every OKR.
const InitialCheckInNote = "Initial confidence established at OKR creation"

const (
	defaultTarget   = 100
	defaultBaseline = 0
)

// ErrLinkCycle is returned when a parent link would make an OKR its own ancestor.
var ErrLinkCycle = errors.New("link would create a cycle")

// KeyResultDraft is a key result as typed into a form. Target and Baseline
// are free text such as "40%" or "$1.5M".
type KeyResultDraft struct {
	Text     string
	Target   string
	Baseline string
}

// CreateOKRInput describes a new OKR. Inputs are assumed to be validated by
// the caller; nothing here rejects an empty objective or missing key results.
type CreateOKRInput struct {
	Level             okr.Level
	OwnerID           string
	Quarter           string
	ObjectiveText     string
	KeyResults        []KeyResultDraft
	ParentOKRID       *string
	InitialConfidence float64
}

// CreateOKR adds an OKR, its key results and one initial check-in, and
// returns the new OKR id.
func (s *Service) CreateOKR(in CreateOKRInput) string {
	now := s.now()
	o := okr.OKR{
		ID:            s.newID(),
		Level:         in.Level,
		OwnerID:       in.OwnerID,
		Quarter:       in.Quarter,
		ObjectiveText: in.ObjectiveText,
		ParentOKRID:   in.ParentOKRID,
		Status:        okr.StatusActive,
	}
	if q, err := okr.ParseQuarter(in.Quarter); err == nil {
		o.Quarter = q.String()
		o.Year = q.Year
		o.QuarterNum = q.Num
	}
	s.Store.PutOKR(o)
	s.record(EntityOKR, OpInsert, o.ID)

	for _, draft := range in.KeyResults {
		baseline := ParseNumber(draft.Baseline, defaultBaseline)
		kr := okr.KeyResult{
			ID:           s.newID(),
			OKRID:        o.ID,
			Text:         draft.Text,
			TargetValue:  ParseNumber(draft.Target, defaultTarget),
			Baseline:     baseline,
			CurrentValue: baseline,
		}
		s.Store.PutKeyResult(kr)
		s.record(EntityKeyResult, OpInsert, kr.ID)
	}

	ci := okr.CheckIn{
		ID:              s.newID(),
		OKRID:           o.ID,
		Date:            okr.DateOnly(now),
		Cadence:         s.cadenceFor(o),
		Progress:        0,
		Confidence:      in.InitialConfidence,
		ConfidenceLabel: okr.ConfidenceLabelFor(in.InitialConfidence),
		OptionalNote:    okr.Ptr(InitialCheckInNote),
		CreatedAt:       now,
	}
	s.Store.AppendCheckIn(ci)
	s.record(EntityCheckIn, OpInsert, ci.ID)

	return o.ID
}

// ParseNumber keeps only digits, '.' and '-' from value and parses the
// longest leading number of what is left, so "10-20" is 10 and "1.2.3" is
// 1.2. If no digits lead the cleaned value it yields def.
func ParseNumber(value string, def float64) float64 {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' || r == '-' {
			return r
		}
		return -1
	}, value)
	n, err := strconv.ParseFloat(numericPrefix(cleaned), 64)
	if err != nil {
		return def
	}
	return n
}

// numericPrefix returns the longest prefix of s shaped like -?digits[.digits].
func numericPrefix(s string) string {
	i := 0
	if i < len(s) && s[i] == '-' {
		i++
	}
	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		j := i + 1
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
			digits++
		}
		if j > i+1 {
			i = j
		}
	}
	if digits == 0 {
		return ""
	}
	return s[:i]
}

// RolloverOKR copies an OKR into the next quarter under a new id and returns
// that id. Key results are duplicated with their current and target values
// unchanged. Check-ins, Jira links and the parent link are not carried over.
// It reports false and does nothing if the OKR is missing or its quarter
// cannot be parsed.
func (s *Service) RolloverOKR(id string) (string, bool) {
	orig, ok := s.Store.OKR(id)
	if !ok {
		return "", false
	}
	next, err := okr.ParseQuarter(orig.Quarter)
	if err != nil {
		return "", false
	}
	next = next.Next()

	rolled := okr.OKR{
		ID:             s.newID(),
		Level:          orig.Level,
		OwnerID:        orig.OwnerID,
		Quarter:        next.String(),
		Year:           next.Year,
		QuarterNum:     next.Num,
		ObjectiveText:  orig.ObjectiveText,
		IsRolledOver:   true,
		RolledOverFrom: okr.Ptr(orig.ID),
		Status:         okr.StatusActive,
	}
	s.Store.PutOKR(rolled)
	s.record(EntityOKR, OpInsert, rolled.ID)

	for _, kr := range s.Store.KeyResultsFor(orig.ID) {
		kr.ID = s.newID()
		kr.OKRID = rolled.ID
		s.Store.PutKeyResult(kr)
		s.record(EntityKeyResult, OpInsert, kr.ID)
	}
	return rolled.ID, true
}

// AddOKRLink makes parentID the parent of childID. Missing OKRs make it a
// no-op. Links that would make the child its own ancestor are rejected with
// ErrLinkCycle. Level ordering is left to the caller; see okr.ValidParentLevel.
func (s *Service) AddOKRLink(parentID, childID string) error {
	child, ok := s.Store.OKR(childID)
	if !ok {
		return nil
	}
	if _, ok := s.Store.OKR(parentID); !ok {
		return nil
	}
	if s.isAncestorOrSelf(childID, parentID) {
		return errors.Wrapf(ErrLinkCycle, "%s under %s", childID, parentID)
	}
	child.ParentOKRID = okr.Ptr(parentID)
	s.Store.PutOKR(child)
	s.record(EntityOKR, OpUpdate, child.ID)
	return nil
}

// isAncestorOrSelf walks parent links up from id looking for ancestor. It
// stops on a repeat so pre-existing cycles in the data cannot hang it.
func (s *Service) isAncestorOrSelf(ancestor, id string) bool {
	seen := make(map[string]bool)
	for cur := id; cur != "" && !seen[cur]; {
		if cur == ancestor {
			return true
		}
		seen[cur] = true
		o, ok := s.Store.OKR(cur)
		if !ok || o.ParentOKRID == nil {
			return false
		}
		cur = *o.ParentOKRID
	}
	return false
}

// CloseInput is the human judgment recorded at quarter end.
type CloseInput struct {
	FinalValue  float64
	Achievement okr.Achievement
	Summary     string
}

// CloseQuarter marks an OKR closed and attaches the close record. Check-in
// history is untouched. It reports false if the OKR is missing.
func (s *Service) CloseQuarter(id string, in CloseInput) bool {
	o, ok := s.Store.OKR(id)
	if !ok {
		return false
	}
	o.Status = okr.StatusClosed
	o.QuarterClose = &okr.QuarterClose{
		FinalValue:  in.FinalValue,
		Achievement: in.Achievement,
		Summary:     in.Summary,
		ClosedAt:    s.now(),
	}
	s.Store.PutOKR(o)
	s.record(EntityOKR, OpUpdate, o.ID)
	return true
}

// ReopenQuarter sets an OKR back to active. The previous close record is kept.
func (s *Service) ReopenQuarter(id string) bool {
	o, ok := s.Store.OKR(id)
	if !ok {
		return false
	}
	o.Status = okr.StatusActive
	s.Store.PutOKR(o)
	s.record(EntityOKR, OpUpdate, o.ID)
	return true
}

// AddJiraLink attaches an external ticket reference to an OKR and returns
// the link id, or "" if the OKR is missing.
func (s *Service) AddJiraLink(okrID, epic string) string {
	if _, ok := s.Store.OKR(okrID); !ok {
		return ""
	}
	link := okr.JiraLink{
		ID:                  s.newID(),
		OKRID:               okrID,
		EpicIdentifierOrURL: strings.TrimSpace(epic),
	}
	s.Store.PutJiraLink(link)
	s.record(EntityJiraLink, OpInsert, link.ID)
	return link.ID
}
