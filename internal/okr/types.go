// Package okr holds the entity shapes and pure helpers shared by every other
// package: quarter math, confidence labels, trend and cadence arithmetic.
package okr

import "time"

// Level is the hierarchy level an OKR is owned at.
type Level string

const (
	LevelProductArea Level = "productArea"
	LevelDomain      Level = "domain"
	LevelTeam        Level = "team"
)

// Cadence is how often a team checks in.
type Cadence string

const (
	CadenceWeekly   Cadence = "weekly"
	CadenceBiweekly Cadence = "biweekly"
)

// Status is the lifecycle state of an OKR.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Achievement is the human judgment recorded when a quarter is closed.
type Achievement string

const (
	AchievementAchieved          Achievement = "achieved"
	AchievementPartiallyAchieved Achievement = "partially_achieved"
	AchievementMissed            Achievement = "missed"
)

// RootCause classifies why confidence moved.
type RootCause string

const (
	RootCauseCapacity      RootCause = "capacity"
	RootCauseDependency    RootCause = "dependency"
	RootCauseVendor        RootCause = "vendor"
	RootCauseCompliance    RootCause = "compliance"
	RootCauseStrategyShift RootCause = "strategy_shift"
	RootCauseTechnicalDebt RootCause = "technical_debt"
	RootCauseDataQuality   RootCause = "data_quality"
	RootCauseScopeChange   RootCause = "scope_change"
)

// RootCauses lists every root cause in display order.
var RootCauses = []RootCause{
	RootCauseCapacity,
	RootCauseDependency,
	RootCauseVendor,
	RootCauseCompliance,
	RootCauseStrategyShift,
	RootCauseTechnicalDebt,
	RootCauseDataQuality,
	RootCauseScopeChange,
}

// ProductArea is the top of the hierarchy.
type ProductArea struct {
	ID   string
	Name string
}

// Domain belongs to exactly one product area.
type Domain struct {
	ID            string
	Name          string
	ProductAreaID string
}

// Team belongs to exactly one domain.
//
// PMName is the legacy, free-text accountable person. PMUserID links the team
// to an identity by id and takes precedence when set.
type Team struct {
	ID       string
	Name     string
	DomainID string
	PMName   string
	PMUserID *string
	Cadence  Cadence
}

// QuarterClose is the record attached when a quarter is closed.
type QuarterClose struct {
	FinalValue  float64
	Achievement Achievement
	Summary     string
	ClosedAt    time.Time
}

// OKR is an objective owned at one level of the hierarchy for one quarter.
type OKR struct {
	ID             string
	Level          Level
	OwnerID        string
	Quarter        string
	Year           int
	QuarterNum     int
	ObjectiveText  string
	ParentOKRID    *string
	IsRolledOver   bool
	RolledOverFrom *string
	Status         Status
	QuarterClose   *QuarterClose
}

// IsOrphaned reports whether a non top-level OKR lacks a parent link.
func (o OKR) IsOrphaned() bool {
	return o.Level != LevelProductArea && o.ParentOKRID == nil
}

// KeyResult is a measurable sub-target of one OKR.
type KeyResult struct {
	ID              string
	OKRID           string
	Text            string
	TargetValue     float64
	CurrentValue    float64
	Baseline        float64
	NeedsAttention  bool
	AttentionReason *string
}

// CheckIn is an append-only snapshot of progress and confidence.
//
// ConfidenceLabel is computed once when the check-in is created and is never
// recomputed afterwards.
type CheckIn struct {
	ID                 string
	OKRID              string
	Date               time.Time
	Cadence            Cadence
	Progress           float64
	Confidence         float64
	ConfidenceLabel    ConfidenceLabel
	ReasonForChange    *string
	OptionalNote       *string
	RootCause          *RootCause
	RootCauseNote      *string
	RecoveryLikelihood *string
	CreatedAt          time.Time
}

// JiraLink ties an OKR to an external ticket or epic.
type JiraLink struct {
	ID                  string
	OKRID               string
	EpicIdentifierOrURL string
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Deref returns the pointed-to value, or the zero value for nil.
func Deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

// ValidParentLevel reports whether parent may sit above child in the alignment tree.
func ValidParentLevel(parent, child Level) bool {
	switch child {
	case LevelTeam:
		return parent == LevelDomain || parent == LevelProductArea
	case LevelDomain:
		return parent == LevelProductArea
	default:
		return false
	}
}

// ParseLevel validates a level string.
func ParseLevel(value string) (Level, bool) {
	switch Level(value) {
	case LevelProductArea, LevelDomain, LevelTeam:
		return Level(value), true
	}
	return Level(value), false
}

// ParseCadence validates a cadence string.
func ParseCadence(value string) (Cadence, bool) {
	switch Cadence(value) {
	case CadenceWeekly, CadenceBiweekly:
		return Cadence(value), true
	}
	return Cadence(value), false
}

// ParseRootCause validates a root cause string.
func ParseRootCause(value string) (RootCause, bool) {
	for _, rc := range RootCauses {
		if string(rc) == value {
			return rc, true
		}
	}
	return RootCause(value), false
}

// ParseAchievement validates an achievement string.
func ParseAchievement(value string) (Achievement, bool) {
	switch Achievement(value) {
	case AchievementAchieved, AchievementPartiallyAchieved, AchievementMissed:
		return Achievement(value), true
	}
	return Achievement(value), false
}
