package insights

import (
	"sort"
	"time"

	"okrtrack/internal/okr"
	"okrtrack/internal/okrstore"
)

// DueCheckIn is an active team OKR whose next check-in date has arrived.
type DueCheckIn struct {
	OKR         okr.OKR
	TeamName    string
	Cadence     okr.Cadence
	LastCheckIn *okr.CheckIn
	NextDue     time.Time
	DaysOverdue int
}

// DueCheckIns lists the active team OKRs of a quarter that need a check-in on
// or before asOf. The cadence is the team's current one, so a cadence change
// moves every due date. OKRs without check-ins are due on asOf. Results are
// ordered by due date, then OKR id.
func DueCheckIns(r okrstore.Reader, quarter string, asOf time.Time) []DueCheckIn {
	today := okr.DateOnly(asOf)
	var out []DueCheckIn
	for _, o := range r.OKRs() {
		if o.Quarter != quarter || o.Level != okr.LevelTeam || o.Status == okr.StatusClosed {
			continue
		}
		due := DueCheckIn{OKR: o, Cadence: okr.CadenceWeekly, NextDue: today}
		if t, ok := r.Team(o.OwnerID); ok {
			due.TeamName = t.Name
			if t.Cadence != "" {
				due.Cadence = t.Cadence
			}
		}
		if last, ok := LatestCheckIn(r, o.ID); ok {
			due.LastCheckIn = &last
			due.NextDue = okr.NextCheckInDate(okr.DateOnly(last.Date), due.Cadence)
		}
		if due.NextDue.After(today) {
			continue
		}
		due.DaysOverdue = int(today.Sub(due.NextDue).Hours() / 24)
		out = append(out, due)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].NextDue.Equal(out[j].NextDue) {
			return out[i].NextDue.Before(out[j].NextDue)
		}
		return out[i].OKR.ID < out[j].OKR.ID
	})
	return out
}
