// Package insights derives enriched OKR views and roll-ups from a store
// snapshot. Nothing here mutates the snapshot.
package insights

import (
	"sort"

	"github.com/go-faster/errors"

	"okrtrack/internal/okr"
	"okrtrack/internal/okrstore"
)

// ErrNotFound is returned when an OKR id is not in the snapshot.
var ErrNotFound = errors.New("okr not found")

// OKRWithDetails is an OKR enriched with everything a view needs to render it.
type OKRWithDetails struct {
	OKR             okr.OKR
	OwnerName       string
	KeyResults      []okr.KeyResult
	CheckIns        []okr.CheckIn // newest first
	JiraLinks       []okr.JiraLink
	LatestCheckIn   *okr.CheckIn
	PreviousCheckIn *okr.CheckIn
	Trend           okr.Trend
	IsOrphaned      bool
	ChildOKRs       []OKRWithDetails
}

// LatestConfidence returns the latest check-in's confidence, if any.
func (d OKRWithDetails) LatestConfidence() (float64, bool) {
	if d.LatestCheckIn == nil {
		return 0, false
	}
	return d.LatestCheckIn.Confidence, true
}

// Details builds the enriched view of one OKR, including its child tree.
func Details(r okrstore.Reader, id string) (OKRWithDetails, error) {
	o, ok := r.OKR(id)
	if !ok {
		return OKRWithDetails{}, errors.Wrapf(ErrNotFound, "okr %q", id)
	}
	t := newTraversal(r)
	return t.enrich(o)
}

// Filter selects OKRs for list views. A nil filter keeps everything.
type Filter func(okr.OKR) bool

// ByLevel keeps OKRs at the given level.
func ByLevel(level okr.Level) Filter {
	return func(o okr.OKR) bool { return o.Level == level }
}

// ByOwner keeps OKRs owned by the given product area, domain or team.
func ByOwner(ownerID string) Filter {
	return func(o okr.OKR) bool { return o.OwnerID == ownerID }
}

// DetailsForQuarter enriches every OKR of the quarter that passes filter, in
// insertion order.
func DetailsForQuarter(r okrstore.Reader, quarter string, filter Filter) ([]OKRWithDetails, error) {
	var out []OKRWithDetails
	for _, o := range r.OKRs() {
		if o.Quarter != quarter {
			continue
		}
		if filter != nil && !filter(o) {
			continue
		}
		d, err := Details(r, o.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// IDs returns the OKR ids of the given views.
func IDs(details []OKRWithDetails) []string {
	ids := make([]string, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.OKR.ID)
	}
	return ids
}

// OwnerName resolves the display name of an OKR's owner. Unknown owners
// resolve to the empty string.
func OwnerName(r okrstore.Reader, o okr.OKR) string {
	switch o.Level {
	case okr.LevelTeam:
		if t, ok := r.Team(o.OwnerID); ok {
			return t.Name
		}
	case okr.LevelDomain:
		if d, ok := r.Domain(o.OwnerID); ok {
			return d.Name
		}
	case okr.LevelProductArea:
		if pa, ok := r.ProductArea(o.OwnerID); ok {
			return pa.Name
		}
	}
	return ""
}

// SortedCheckIns returns the OKR's check-ins newest first. Check-ins sharing
// a date keep their insertion order.
func SortedCheckIns(r okrstore.Reader, okrID string) []okr.CheckIn {
	checkIns := r.CheckInsFor(okrID)
	sort.SliceStable(checkIns, func(i, j int) bool {
		return checkIns[i].Date.After(checkIns[j].Date)
	})
	return checkIns
}

// LatestCheckIn returns the newest check-in of an OKR.
func LatestCheckIn(r okrstore.Reader, okrID string) (okr.CheckIn, bool) {
	checkIns := SortedCheckIns(r, okrID)
	if len(checkIns) == 0 {
		return okr.CheckIn{}, false
	}
	return checkIns[0], true
}

func baseDetails(r okrstore.Reader, o okr.OKR) OKRWithDetails {
	d := OKRWithDetails{
		OKR:        o,
		OwnerName:  OwnerName(r, o),
		KeyResults: r.KeyResultsFor(o.ID),
		CheckIns:   SortedCheckIns(r, o.ID),
		JiraLinks:  r.JiraLinksFor(o.ID),
		IsOrphaned: o.IsOrphaned(),
	}
	if len(d.CheckIns) > 0 {
		latest := d.CheckIns[0]
		d.LatestCheckIn = &latest
	}
	if len(d.CheckIns) > 1 {
		previous := d.CheckIns[1]
		d.PreviousCheckIn = &previous
	}
	d.Trend = okr.TrendOf(d.LatestCheckIn, d.PreviousCheckIn)
	return d
}
