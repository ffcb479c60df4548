package persistence

import (
	"database/sql"
	"time"

	"github.com/go-faster/errors"

	"okrtrack/internal/okr"
	"okrtrack/internal/okrstore"
)

// Rows is everything stored for one organization, as read from the tables.
type Rows struct {
	OrganizationID string
	ProductAreas   []ProductAreaRow
	Domains        []DomainRow
	Teams          []TeamRow
	OKRs           []OKRRow
	KeyResults     []KeyResultRow
	CheckIns       []CheckInRow
	JiraLinks      []JiraLinkRow
}

// ProductAreaRow mirrors product_areas.
type ProductAreaRow struct {
	ID   string
	Name string
}

// DomainRow mirrors domains.
type DomainRow struct {
	ID            string
	Name          string
	ProductAreaID string
}

// TeamRow mirrors teams.
type TeamRow struct {
	ID       string
	Name     string
	DomainID string
	PMName   string
	PMUserID sql.NullString
	Cadence  string
}

// OKRRow mirrors okrs. The quarter close columns are all null for OKRs that
// were never closed.
type OKRRow struct {
	ID               string
	Level            string
	OwnerID          string
	Quarter          string
	Year             int
	QuarterNum       int
	ObjectiveText    string
	ParentOKRID      sql.NullString
	IsRolledOver     bool
	RolledOverFrom   sql.NullString
	Status           string
	CloseFinalValue  sql.NullFloat64
	CloseAchievement sql.NullString
	CloseSummary     sql.NullString
	CloseClosedAt    sql.NullString
}

// KeyResultRow mirrors key_results.
type KeyResultRow struct {
	ID              string
	OKRID           string
	Text            string
	TargetValue     float64
	CurrentValue    float64
	Baseline        float64
	NeedsAttention  bool
	AttentionReason sql.NullString
}

// CheckInRow mirrors check_ins.
type CheckInRow struct {
	ID                 string
	OKRID              string
	Date               string
	Cadence            string
	Progress           float64
	Confidence         float64
	ConfidenceLabel    string
	ReasonForChange    sql.NullString
	OptionalNote       sql.NullString
	RootCause          sql.NullString
	RootCauseNote      sql.NullString
	RecoveryLikelihood sql.NullString
	CreatedAt          string
}

// JiraLinkRow mirrors jira_links.
type JiraLinkRow struct {
	ID                  string
	OKRID               string
	EpicIdentifierOrURL string
}

// ToStore maps the rows into a fresh snapshot. Enum columns pass through
// unchanged; unparseable timestamps become the zero time. A check-in whose
// date does not parse is an error, since dates order the history.
func (r Rows) ToStore() (*okrstore.Store, error) {
	s := okrstore.New(r.OrganizationID)
	for _, row := range r.ProductAreas {
		s.PutProductArea(okr.ProductArea{ID: row.ID, Name: row.Name})
	}
	for _, row := range r.Domains {
		s.PutDomain(okr.Domain{ID: row.ID, Name: row.Name, ProductAreaID: row.ProductAreaID})
	}
	for _, row := range r.Teams {
		s.PutTeam(okr.Team{
			ID:       row.ID,
			Name:     row.Name,
			DomainID: row.DomainID,
			PMName:   row.PMName,
			PMUserID: fromNull(row.PMUserID),
			Cadence:  okr.Cadence(row.Cadence),
		})
	}
	for _, row := range r.OKRs {
		o := okr.OKR{
			ID:             row.ID,
			Level:          okr.Level(row.Level),
			OwnerID:        row.OwnerID,
			Quarter:        row.Quarter,
			Year:           row.Year,
			QuarterNum:     row.QuarterNum,
			ObjectiveText:  row.ObjectiveText,
			ParentOKRID:    fromNull(row.ParentOKRID),
			IsRolledOver:   row.IsRolledOver,
			RolledOverFrom: fromNull(row.RolledOverFrom),
			Status:         okr.Status(row.Status),
		}
		if row.CloseAchievement.Valid {
			o.QuarterClose = &okr.QuarterClose{
				FinalValue:  row.CloseFinalValue.Float64,
				Achievement: okr.Achievement(row.CloseAchievement.String),
				Summary:     row.CloseSummary.String,
				ClosedAt:    parseTimestamp(row.CloseClosedAt.String),
			}
		}
		s.PutOKR(o)
	}
	for _, row := range r.KeyResults {
		s.PutKeyResult(okr.KeyResult{
			ID:              row.ID,
			OKRID:           row.OKRID,
			Text:            row.Text,
			TargetValue:     row.TargetValue,
			CurrentValue:    row.CurrentValue,
			Baseline:        row.Baseline,
			NeedsAttention:  row.NeedsAttention,
			AttentionReason: fromNull(row.AttentionReason),
		})
	}
	for _, row := range r.CheckIns {
		date, err := okr.ParseDate(row.Date)
		if err != nil {
			return nil, errors.Wrapf(err, "check-in %s", row.ID)
		}
		ci := okr.CheckIn{
			ID:                 row.ID,
			OKRID:              row.OKRID,
			Date:               date,
			Cadence:            okr.Cadence(row.Cadence),
			Progress:           row.Progress,
			Confidence:         row.Confidence,
			ConfidenceLabel:    okr.ConfidenceLabel(row.ConfidenceLabel),
			ReasonForChange:    fromNull(row.ReasonForChange),
			OptionalNote:       fromNull(row.OptionalNote),
			RootCauseNote:      fromNull(row.RootCauseNote),
			RecoveryLikelihood: fromNull(row.RecoveryLikelihood),
			CreatedAt:          parseTimestamp(row.CreatedAt),
		}
		if row.RootCause.Valid {
			ci.RootCause = okr.Ptr(okr.RootCause(row.RootCause.String))
		}
		s.AppendCheckIn(ci)
	}
	for _, row := range r.JiraLinks {
		s.PutJiraLink(okr.JiraLink{ID: row.ID, OKRID: row.OKRID, EpicIdentifierOrURL: row.EpicIdentifierOrURL})
	}
	return s, nil
}

func fromNull(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	return okr.Ptr(v.String)
}

func toNull(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTimestamp(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
